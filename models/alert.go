package models

import (
	"time"

	"gorm.io/gorm"
)

// Notification channel constants
const (
	ChannelEmail   = "email"
	ChannelPush    = "push"
	ChannelWebhook = "webhook"
)

// ValidChannels returns valid notification channels
func ValidChannels() []string {
	return []string{ChannelEmail, ChannelPush, ChannelWebhook}
}

// IsValidChannel checks if the channel name is valid
func IsValidChannel(channel string) bool {
	for _, valid := range ValidChannels() {
		if channel == valid {
			return true
		}
	}
	return false
}

// Alert represents one user-owned alert definition.
//
// The condition is persisted as its raw kind/value pair. Parsing and
// validation live in services/alerts; the stored strings are returned
// byte-for-byte so the condition that was saved is the condition that
// gets evaluated.
//
// Version guards concurrent writes: the dispatcher only commits trigger
// state when the row version it read is still current, so a user edit or
// delete racing an evaluation cycle wins and the cycle's outcome is
// dropped.
type Alert struct {
	ID              uint       `gorm:"primaryKey" json:"id"`
	UserID          uint       `gorm:"index;not null" json:"user_id"`
	User            User       `gorm:"foreignKey:UserID" json:"user,omitempty"`
	Name            string     `json:"name"`
	Symbol          string     `gorm:"type:varchar(20);not null;index" json:"symbol"`
	ConditionKind   string     `gorm:"type:varchar(40);not null" json:"condition_kind"`
	ConditionValue  string     `gorm:"type:varchar(100);not null" json:"condition_value"`
	Channels        string     `gorm:"type:jsonb;default:'[\"email\"]'" json:"channels"`
	Enabled         bool       `gorm:"default:true;index" json:"enabled"`
	LastSatisfied   bool       `gorm:"default:false" json:"last_satisfied"`
	LastTriggeredAt *time.Time `json:"last_triggered_at"`
	TriggerCount    int        `gorm:"default:0" json:"trigger_count"`
	Version         int64      `gorm:"default:0" json:"-"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
}

// TriggerEvent records one edge-triggered firing of an alert.
// Rows are append-only; retention cleanup is the only deletion path.
type TriggerEvent struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	AlertID     uint      `gorm:"index" json:"alert_id"`
	Alert       *Alert    `gorm:"foreignKey:AlertID" json:"alert,omitempty"`
	UserID      uint      `gorm:"index" json:"user_id"`
	Symbol      string    `gorm:"type:varchar(20);not null;index" json:"symbol"`
	Kind        string    `gorm:"type:varchar(40)" json:"kind"`
	Evidence    string    `gorm:"type:jsonb" json:"evidence"`
	TriggeredAt time.Time `gorm:"index" json:"triggered_at"`
	CreatedAt   time.Time `json:"created_at"`
}

// MigrateAlertModels runs database migrations for alert models
func MigrateAlertModels(db *gorm.DB) error {
	return db.AutoMigrate(
		&Alert{},
		&TriggerEvent{},
	)
}
