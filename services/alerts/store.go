package alerts

import (
	"context"
	"errors"
	"fmt"
	"time"

	"marketpulse_backend/models"

	"gorm.io/gorm"
)

// ErrVersionConflict signals that the alert row changed (user edit, disable
// or delete) between read and write. The losing cycle outcome is dropped,
// not retried; the alert is re-evaluated next cycle if still enabled.
var ErrVersionConflict = errors.New("alert version conflict")

// Store is the persistence surface the dispatcher needs
type Store interface {
	ListEnabled(ctx context.Context) ([]models.Alert, error)
	SaveSatisfaction(ctx context.Context, alert *models.Alert, satisfied bool) error
	CommitTrigger(ctx context.Context, alert *models.Alert, event *models.TriggerEvent) error
}

// GormStore is the gorm-backed Store implementation
type GormStore struct {
	db *gorm.DB
}

// NewGormStore creates a new gorm-backed alert store
func NewGormStore(db *gorm.DB) *GormStore {
	return &GormStore{db: db}
}

// ListEnabled returns all enabled alerts
func (s *GormStore) ListEnabled(ctx context.Context) ([]models.Alert, error) {
	var alerts []models.Alert
	if err := s.db.WithContext(ctx).Where("enabled = ?", true).Find(&alerts).Error; err != nil {
		return nil, fmt.Errorf("failed to list enabled alerts: %w", err)
	}
	return alerts, nil
}

// SaveSatisfaction persists a satisfaction change that did not fire
// (the true to false transition that re-arms edge-triggering). The write
// is version-checked so a concurrent user edit wins.
func (s *GormStore) SaveSatisfaction(ctx context.Context, alert *models.Alert, satisfied bool) error {
	result := s.db.WithContext(ctx).Model(&models.Alert{}).
		Where("id = ? AND version = ? AND enabled = ?", alert.ID, alert.Version, true).
		Updates(map[string]interface{}{
			"last_satisfied": satisfied,
			"version":        gorm.Expr("version + 1"),
		})
	if result.Error != nil {
		return fmt.Errorf("failed to save satisfaction for alert %d: %w", alert.ID, result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrVersionConflict
	}
	return nil
}

// CommitTrigger atomically increments the trigger count, stamps the
// last-triggered time, marks the alert satisfied and appends the
// TriggerEvent. The alert update is version-checked: if the row was edited,
// disabled or deleted mid-cycle, nothing is written and ErrVersionConflict
// is returned.
func (s *GormStore) CommitTrigger(ctx context.Context, alert *models.Alert, event *models.TriggerEvent) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		result := tx.Model(&models.Alert{}).
			Where("id = ? AND version = ? AND enabled = ?", alert.ID, alert.Version, true).
			Updates(map[string]interface{}{
				"trigger_count":     gorm.Expr("trigger_count + 1"),
				"last_triggered_at": event.TriggeredAt,
				"last_satisfied":    true,
				"version":           gorm.Expr("version + 1"),
			})
		if result.Error != nil {
			return fmt.Errorf("failed to commit trigger for alert %d: %w", alert.ID, result.Error)
		}
		if result.RowsAffected == 0 {
			return ErrVersionConflict
		}

		if err := tx.Create(event).Error; err != nil {
			return fmt.Errorf("failed to append trigger event for alert %d: %w", alert.ID, err)
		}
		return nil
	})
}

// PruneTriggerEvents deletes trigger events older than the cutoff.
// Retention cleanup is the only deletion path for TriggerEvent rows.
func (s *GormStore) PruneTriggerEvents(ctx context.Context, cutoff time.Time) (int64, error) {
	result := s.db.WithContext(ctx).
		Where("triggered_at < ?", cutoff).
		Delete(&models.TriggerEvent{})
	if result.Error != nil {
		return 0, fmt.Errorf("failed to prune trigger events: %w", result.Error)
	}
	return result.RowsAffected, nil
}

// EnabledSymbols returns the distinct symbols of enabled alerts
func (s *GormStore) EnabledSymbols(ctx context.Context) ([]string, error) {
	var symbols []string
	err := s.db.WithContext(ctx).Model(&models.Alert{}).
		Where("enabled = ?", true).
		Distinct("symbol").
		Pluck("symbol", &symbols).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list enabled symbols: %w", err)
	}
	return symbols, nil
}
