package models

import (
	"time"

	"gorm.io/gorm"
)

// User represents a registered dashboard user
type User struct {
	ID            uint       `gorm:"primaryKey" json:"id"`
	Email         string     `gorm:"uniqueIndex;not null" json:"email"`
	PasswordHash  string     `gorm:"not null" json:"-"`
	FullName      string     `json:"full_name"`
	AvatarURL     string     `json:"avatar_url"`
	Role          string     `gorm:"default:'user'" json:"role"` // user, admin
	IsActive      bool       `gorm:"default:true" json:"is_active"`
	EmailVerified bool       `gorm:"default:false" json:"email_verified"`
	LastLoginAt   *time.Time `json:"last_login_at"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
}

// UserSession represents an issued token for session tracking
type UserSession struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	UserID    uint      `gorm:"index" json:"user_id"`
	User      User      `gorm:"foreignKey:UserID" json:"user,omitempty"`
	TokenID   string    `gorm:"uniqueIndex;not null" json:"-"`
	IPAddress string    `json:"ip_address"`
	UserAgent string    `json:"user_agent"`
	ExpiresAt time.Time `json:"expires_at"`
	CreatedAt time.Time `json:"created_at"`
}

// NotificationPreferences holds per-user notification settings
type NotificationPreferences struct {
	ID            uint      `gorm:"primaryKey" json:"id"`
	UserID        uint      `gorm:"uniqueIndex" json:"user_id"`
	User          User      `gorm:"foreignKey:UserID" json:"user,omitempty"`
	DailyDigest   bool      `gorm:"default:true" json:"daily_digest"`
	BreakingNews  bool      `gorm:"default:true" json:"breaking_news"`
	WeeklySummary bool      `gorm:"default:true" json:"weekly_summary"`
	EmailEnabled  bool      `gorm:"default:true" json:"email_enabled"`
	PushEnabled   bool      `gorm:"default:false" json:"push_enabled"`
	WebhookURL    string    `json:"webhook_url"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// DefaultNotificationPreferences returns the defaults for a new user
func DefaultNotificationPreferences(userID uint) NotificationPreferences {
	return NotificationPreferences{
		UserID:        userID,
		DailyDigest:   true,
		BreakingNews:  true,
		WeeklySummary: true,
		EmailEnabled:  true,
		PushEnabled:   false,
	}
}

// MigrateUserModels runs database migrations for user-related models
func MigrateUserModels(db *gorm.DB) error {
	return db.AutoMigrate(
		&User{},
		&UserSession{},
		&NotificationPreferences{},
	)
}
