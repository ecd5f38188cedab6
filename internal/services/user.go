package services

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/huangang/feedbackbot/internal/models"
	"github.com/huangang/feedbackbot/pkg/logger"
	"gorm.io/gorm"
)

// Identifier names a user either by @handle or by numeric Telegram id.
type Identifier struct {
	Username   string
	TelegramID int64
}

func (i Identifier) String() string {
	if i.Username != "" {
		return "@" + i.Username
	}
	return strconv.FormatInt(i.TelegramID, 10)
}

// ParseIdentifier accepts "@handle" or a positive numeric id.
func ParseIdentifier(text string) (Identifier, error) {
	text = strings.TrimSpace(text)
	if handle, ok := strings.CutPrefix(text, "@"); ok {
		if handle == "" || strings.ContainsAny(handle, " \t\n@") {
			return Identifier{}, invalid("identifier", "invalid username")
		}
		return Identifier{Username: handle}, nil
	}
	id, err := strconv.ParseInt(text, 10, 64)
	if err != nil || id <= 0 {
		return Identifier{}, invalid("identifier", "ID must be a number or an @username")
	}
	return Identifier{TelegramID: id}, nil
}

// RoleChange reports the outcome of a role mutation.
type RoleChange struct {
	User     models.User
	Previous string
	Created  bool
}

// UserService manages staff roles. Every mutation is admin-only; callers authorize first.
type UserService struct {
	db         *gorm.DB
	dispatcher *Dispatcher
}

func NewUserService(db *gorm.DB, dispatcher *Dispatcher) *UserService {
	return &UserService{db: db, dispatcher: dispatcher}
}

// find resolves ident. Numeric ids that are unknown are created when create is set.
func (s *UserService) find(tx *gorm.DB, ident Identifier, create bool) (*models.User, bool, error) {
	var user models.User
	var err error
	if ident.Username != "" {
		err = tx.Where("LOWER(username) = ?", strings.ToLower(ident.Username)).First(&user).Error
	} else {
		err = tx.Where("telegram_id = ?", ident.TelegramID).First(&user).Error
	}
	if err == nil {
		return &user, false, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, false, err
	}
	if !create || ident.Username != "" {
		return nil, false, ErrNotFound
	}
	user = models.User{TelegramID: ident.TelegramID, Role: models.RoleUser}
	if err := tx.Create(&user).Error; err != nil {
		return nil, false, fmt.Errorf("create user: %w", err)
	}
	return &user, true, nil
}

// AssignRole grants role (admin or manager) to the identified user. Handles must belong to
// a known user; numeric ids are registered on the fly.
func (s *UserService) AssignRole(ctx context.Context, actor *models.User, ident Identifier, role string) (*RoleChange, error) {
	if role != models.RoleAdmin && role != models.RoleManager {
		return nil, invalid("role", "unknown role %q", role)
	}

	var change RoleChange
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		user, created, err := s.find(tx, ident, true)
		if err != nil {
			return err
		}
		if user.IsAdmin() {
			return ErrAlreadyAdmin
		}
		if role == models.RoleManager && user.Role == models.RoleManager {
			return ErrAlreadyManager
		}
		change.Previous = user.Role
		change.Created = created
		if err := tx.Model(user).Update("role", role).Error; err != nil {
			return err
		}
		user.Role = role
		change.User = *user
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.afterRoleChange(ctx, actor, &change, "assign_role")
	return &change, nil
}

// RemoveRole demotes a staff member back to a plain user. Admins cannot demote themselves.
func (s *UserService) RemoveRole(ctx context.Context, actor *models.User, ident Identifier) (*RoleChange, error) {
	if ident.TelegramID != 0 && ident.TelegramID == actor.TelegramID {
		return nil, ErrSelfDemotion
	}

	var change RoleChange
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		user, _, err := s.find(tx, ident, false)
		if err != nil {
			return err
		}
		if user.ID == actor.ID {
			return ErrSelfDemotion
		}
		if user.Role == models.RoleUser {
			return invalid("identifier", "%s has no staff role", user.DisplayName())
		}
		change.Previous = user.Role
		if err := tx.Model(user).Update("role", models.RoleUser).Error; err != nil {
			return err
		}
		user.Role = models.RoleUser
		change.User = *user
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.afterRoleChange(ctx, actor, &change, "remove_role")
	return &change, nil
}

// PromoteFromGroup makes the author of a work-group message a manager.
func (s *UserService) PromoteFromGroup(ctx context.Context, actor *models.User, target Identity) (*RoleChange, error) {
	if target.IsBot {
		return nil, invalid("user", "bots cannot be promoted")
	}

	var change RoleChange
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		user, created, err := s.find(tx, Identifier{TelegramID: target.TelegramID}, true)
		if err != nil {
			return err
		}
		if user.IsAdmin() {
			return ErrAlreadyAdmin
		}
		if user.Role == models.RoleManager {
			return ErrAlreadyManager
		}
		change.Previous = user.Role
		change.Created = created
		updates := map[string]interface{}{"role": models.RoleManager}
		if target.Username != "" {
			updates["username"] = target.Username
			user.Username = target.Username
		}
		if target.FullName != "" {
			updates["full_name"] = target.FullName
			user.FullName = target.FullName
		}
		if err := tx.Model(user).Updates(updates).Error; err != nil {
			return err
		}
		user.Role = models.RoleManager
		change.User = *user
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.afterRoleChange(ctx, actor, &change, "promote")
	return &change, nil
}

func (s *UserService) afterRoleChange(ctx context.Context, actor *models.User, change *RoleChange, action string) {
	logger.Info().
		Int64("telegram_id", change.User.TelegramID).
		Str("from", change.Previous).
		Str("to", change.User.Role).
		Uint("actor_id", actor.ID).
		Msg("[User] Role changed")

	LogInfo(ModuleUser, action, fmt.Sprintf("%s: %s -> %s", change.User.DisplayName(), change.Previous, change.User.Role), &actor.ID, map[string]interface{}{
		"telegram_id": change.User.TelegramID,
	})

	s.dispatcher.Notify(ctx, &Notification{
		Kind:   NotifyRoleChanged,
		ChatID: change.User.TelegramID,
		Text:   roleChangedText(change.User.Role),
		UserID: change.User.ID,
	})
}

// UsersByRole groups every known user by role.
type UsersByRole struct {
	Admins   []models.User `json:"admins"`
	Managers []models.User `json:"managers"`
	Users    []models.User `json:"users"`
}

func (u *UsersByRole) Total() int {
	return len(u.Admins) + len(u.Managers) + len(u.Users)
}

func (s *UserService) ListByRole(ctx context.Context) (*UsersByRole, error) {
	var users []models.User
	if err := s.db.WithContext(ctx).Order("created_at ASC").Order("id ASC").Find(&users).Error; err != nil {
		return nil, err
	}
	out := &UsersByRole{}
	for _, u := range users {
		switch u.Role {
		case models.RoleAdmin:
			out.Admins = append(out.Admins, u)
		case models.RoleManager:
			out.Managers = append(out.Managers, u)
		default:
			out.Users = append(out.Users, u)
		}
	}
	return out, nil
}
