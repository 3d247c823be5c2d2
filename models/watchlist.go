package models

import (
	"time"

	"gorm.io/gorm"
)

// Watchlist represents a named collection of symbols owned by one user
type Watchlist struct {
	ID        uint            `gorm:"primaryKey" json:"id"`
	UserID    uint            `gorm:"index" json:"user_id"`
	User      User            `gorm:"foreignKey:UserID" json:"user,omitempty"`
	Name      string          `gorm:"not null" json:"name"`
	IsDefault bool            `gorm:"default:false" json:"is_default"`
	Items     []WatchlistItem `gorm:"foreignKey:WatchlistID" json:"items,omitempty"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
}

// WatchlistItem represents a single symbol within a watchlist
type WatchlistItem struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	WatchlistID uint      `gorm:"index:idx_watchlist_symbol,unique" json:"watchlist_id"`
	Symbol      string    `gorm:"type:varchar(20);not null;index:idx_watchlist_symbol,unique" json:"symbol"`
	Notes       string    `json:"notes"`
	CreatedAt   time.Time `json:"created_at"`
}

// MigrateWatchlistModels runs database migrations for watchlist models
func MigrateWatchlistModels(db *gorm.DB) error {
	return db.AutoMigrate(
		&Watchlist{},
		&WatchlistItem{},
	)
}
