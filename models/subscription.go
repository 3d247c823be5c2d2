package models

import (
	"time"

	"gorm.io/gorm"
)

// Subscription tier constants
const (
	TierFree       = "free"
	TierPro        = "pro"
	TierEnterprise = "enterprise"
)

// Subscription status constants
const (
	SubscriptionActive   = "active"
	SubscriptionCanceled = "canceled"
	SubscriptionPastDue  = "past_due"
)

// Subscription represents a user's billing state, reconciled from
// payment-provider webhook events
type Subscription struct {
	ID                     uint       `gorm:"primaryKey" json:"id"`
	UserID                 uint       `gorm:"uniqueIndex" json:"user_id"`
	User                   User       `gorm:"foreignKey:UserID" json:"user,omitempty"`
	Tier                   string     `gorm:"default:'free'" json:"tier"`
	Status                 string     `gorm:"default:'active'" json:"status"`
	ProviderCustomerID     string     `gorm:"index" json:"-"`
	ProviderSubscriptionID string     `gorm:"index" json:"-"`
	ProviderPriceID        string     `json:"-"`
	CurrentPeriodStart     *time.Time `json:"current_period_start"`
	CurrentPeriodEnd       *time.Time `json:"current_period_end"`
	CreatedAt              time.Time  `json:"created_at"`
	UpdatedAt              time.Time  `json:"updated_at"`
}

// BillingEvent logs every webhook event received from the payment provider,
// keyed by the provider's event id for idempotent processing
type BillingEvent struct {
	ID              uint      `gorm:"primaryKey" json:"id"`
	ProviderEventID string    `gorm:"uniqueIndex;not null" json:"provider_event_id"`
	EventType       string    `gorm:"index" json:"event_type"`
	Payload         string    `gorm:"type:jsonb" json:"payload"`
	ProcessedAt     time.Time `json:"processed_at"`
	CreatedAt       time.Time `json:"created_at"`
}

// ValidTiers returns valid subscription tiers
func ValidTiers() []string {
	return []string{TierFree, TierPro, TierEnterprise}
}

// IsValidTier checks if the tier name is valid
func IsValidTier(tier string) bool {
	for _, valid := range ValidTiers() {
		if tier == valid {
			return true
		}
	}
	return false
}

// MigrateSubscriptionModels runs database migrations for billing models
func MigrateSubscriptionModels(db *gorm.DB) error {
	return db.AutoMigrate(
		&Subscription{},
		&BillingEvent{},
	)
}
