package models

import (
	"fmt"
	"time"
)

const (
	RoleUser    = "user"
	RoleManager = "manager"
	RoleAdmin   = "admin"
)

// User is a Telegram account known to the bot. Rows are created lazily on first contact.
type User struct {
	ID         uint      `gorm:"primaryKey" json:"id"`
	TelegramID int64     `gorm:"uniqueIndex;not null" json:"telegram_id"`
	Username   string    `gorm:"size:255;index" json:"username"`
	FullName   string    `gorm:"size:255" json:"full_name"`
	Role       string    `gorm:"size:20;default:user;index;not null" json:"role"` // user, manager, admin
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

func (User) TableName() string { return "users" }

func (u *User) IsAdmin() bool { return u.Role == RoleAdmin }

// IsManager is true for managers and admins alike.
func (u *User) IsManager() bool { return u.Role == RoleManager || u.Role == RoleAdmin }

// DisplayName prefers the full name, then the @handle, then the numeric id.
func (u *User) DisplayName() string {
	switch {
	case u.FullName != "":
		return u.FullName
	case u.Username != "":
		return "@" + u.Username
	default:
		return fmt.Sprintf("ID %d", u.TelegramID)
	}
}

// Handle renders "@username" or "no username".
func (u *User) Handle() string {
	if u.Username == "" {
		return "no username"
	}
	return "@" + u.Username
}
