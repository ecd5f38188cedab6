package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/huangang/feedbackbot/internal/models"
	"github.com/huangang/feedbackbot/pkg/logger"
	"gorm.io/gorm"
)

// Tier is a capability level. Higher tiers include the lower ones.
type Tier int

const (
	TierRegistered Tier = iota
	TierManager
	TierAdmin
)

func (t Tier) String() string {
	switch t {
	case TierManager:
		return "manager"
	case TierAdmin:
		return "admin"
	}
	return "registered"
}

// Identity is what the platform tells us about the sender of an update.
type Identity struct {
	TelegramID int64
	Username   string
	FullName   string
	IsBot      bool
}

// AccessService resolves users and gates operations by role.
type AccessService struct {
	db             *gorm.DB
	initialAdminID int64
}

func NewAccessService(db *gorm.DB, initialAdminID int64) *AccessService {
	return &AccessService{db: db, initialAdminID: initialAdminID}
}

// EnsureUser finds the user or creates it. The configured initial admin is created as admin.
// Profile fields are refreshed when Telegram reports new values.
func (s *AccessService) EnsureUser(ctx context.Context, id Identity) (*models.User, error) {
	var user models.User
	err := s.db.WithContext(ctx).Where("telegram_id = ?", id.TelegramID).First(&user).Error
	if err == nil {
		return s.refreshProfile(ctx, &user, id)
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	user = models.User{
		TelegramID: id.TelegramID,
		Username:   id.Username,
		FullName:   id.FullName,
		Role:       models.RoleUser,
	}
	if id.TelegramID == s.initialAdminID {
		user.Role = models.RoleAdmin
	}
	if err := s.db.WithContext(ctx).Create(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			// lost a race with a concurrent update from the same user
			return s.Lookup(ctx, id.TelegramID)
		}
		return nil, fmt.Errorf("create user: %w", err)
	}
	logger.Info().Int64("telegram_id", user.TelegramID).Str("role", user.Role).Msg("[Access] New user registered")
	return &user, nil
}

func (s *AccessService) refreshProfile(ctx context.Context, user *models.User, id Identity) (*models.User, error) {
	updates := map[string]interface{}{}
	if id.Username != "" && id.Username != user.Username {
		updates["username"] = id.Username
	}
	if id.FullName != "" && id.FullName != user.FullName {
		updates["full_name"] = id.FullName
	}
	if len(updates) == 0 {
		return user, nil
	}
	if err := s.db.WithContext(ctx).Model(user).Updates(updates).Error; err != nil {
		logger.Warn().Err(err).Int64("telegram_id", user.TelegramID).Msg("[Access] Failed to refresh profile")
	}
	return user, nil
}

// Lookup returns the user with the given Telegram id or ErrNotFound.
func (s *AccessService) Lookup(ctx context.Context, telegramID int64) (*models.User, error) {
	var user models.User
	err := s.db.WithContext(ctx).Where("telegram_id = ?", telegramID).First(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// Authorize resolves the caller and checks the tier. Registered callers are created
// on the fly; manager and admin tiers require an existing row with the right role.
func (s *AccessService) Authorize(ctx context.Context, id Identity, tier Tier) (*models.User, error) {
	if tier == TierRegistered {
		return s.EnsureUser(ctx, id)
	}

	user, err := s.Lookup(ctx, id.TelegramID)
	if errors.Is(err, ErrNotFound) {
		return nil, ErrForbidden
	}
	if err != nil {
		return nil, err
	}

	allowed := false
	switch tier {
	case TierManager:
		allowed = user.IsManager()
	case TierAdmin:
		allowed = user.IsAdmin()
	}
	if !allowed {
		logger.Debug().Int64("telegram_id", id.TelegramID).Str("tier", tier.String()).Msg("[Access] Denied")
		return user, ErrForbidden
	}
	return user, nil
}
