// Package analytics keeps a local SQLite archive of fired triggers backing
// the read-only market analysis views.
package analytics

import (
	"database/sql"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sync"
	"time"

	"marketpulse_backend/models"

	_ "github.com/mattn/go-sqlite3"
)

// TriggerArchive handles the local trigger analytics database
type TriggerArchive struct {
	db *sql.DB
	mu sync.RWMutex
}

// SymbolCount is a per-symbol trigger tally
type SymbolCount struct {
	Symbol string `json:"symbol"`
	Count  int    `json:"count"`
}

// DayCount is a per-day trigger tally for one symbol
type DayCount struct {
	Day   string `json:"day"`
	Count int    `json:"count"`
}

// NewTriggerArchive opens (creating if needed) the archive database
func NewTriggerArchive(path string) (*TriggerArchive, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open trigger archive: %w", err)
	}

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping trigger archive: %w", err)
	}

	archive := &TriggerArchive{db: db}
	if err := archive.createTables(); err != nil {
		return nil, fmt.Errorf("failed to create archive tables: %w", err)
	}

	log.Printf("Trigger archive initialized at %s", path)
	return archive, nil
}

// Close closes the archive database
func (a *TriggerArchive) Close() error {
	if a.db != nil {
		return a.db.Close()
	}
	return nil
}

func (a *TriggerArchive) createTables() error {
	a.mu.Lock()
	defer a.mu.Unlock()

	triggersTable := `
		CREATE TABLE IF NOT EXISTS triggers (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			alert_id INTEGER NOT NULL,
			user_id INTEGER NOT NULL,
			symbol VARCHAR NOT NULL,
			kind VARCHAR,
			triggered_at TIMESTAMP NOT NULL,
			created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		)
	`
	if _, err := a.db.Exec(triggersTable); err != nil {
		return fmt.Errorf("failed to create triggers table: %w", err)
	}

	indexes := []string{
		`CREATE INDEX IF NOT EXISTS idx_triggers_symbol ON triggers(symbol, triggered_at)`,
		`CREATE INDEX IF NOT EXISTS idx_triggers_time ON triggers(triggered_at)`,
	}
	for _, stmt := range indexes {
		if _, err := a.db.Exec(stmt); err != nil {
			return fmt.Errorf("failed to create archive index: %w", err)
		}
	}
	return nil
}

// RecordTrigger appends one fired trigger to the archive. Implements the
// dispatcher's Recorder interface; failures are logged, the archive is a
// best-effort secondary store.
func (a *TriggerArchive) RecordTrigger(event models.TriggerEvent) {
	a.mu.Lock()
	defer a.mu.Unlock()

	_, err := a.db.Exec(
		`INSERT INTO triggers (alert_id, user_id, symbol, kind, triggered_at) VALUES (?, ?, ?, ?, ?)`,
		event.AlertID, event.UserID, event.Symbol, event.Kind, event.TriggeredAt,
	)
	if err != nil {
		log.Printf("Failed to archive trigger for alert %d: %v", event.AlertID, err)
	}
}

// TopSymbols returns the most-triggered symbols since the given time
func (a *TriggerArchive) TopSymbols(since time.Time, limit int) ([]SymbolCount, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()

	rows, err := a.db.Query(
		`SELECT symbol, COUNT(*) AS cnt FROM triggers
		 WHERE triggered_at >= ?
		 GROUP BY symbol ORDER BY cnt DESC LIMIT ?`,
		since, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query top symbols: %w", err)
	}
	defer rows.Close()

	var results []SymbolCount
	for rows.Next() {
		var sc SymbolCount
		if err := rows.Scan(&sc.Symbol, &sc.Count); err != nil {
			return nil, fmt.Errorf("failed to scan symbol count: %w", err)
		}
		results = append(results, sc)
	}
	return results, rows.Err()
}

// DailyCounts returns per-day trigger counts for a symbol over the last
// N days
func (a *TriggerArchive) DailyCounts(symbol string, days int) ([]DayCount, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()

	since := time.Now().UTC().AddDate(0, 0, -days)
	rows, err := a.db.Query(
		`SELECT date(triggered_at) AS day, COUNT(*) AS cnt FROM triggers
		 WHERE symbol = ? AND triggered_at >= ?
		 GROUP BY day ORDER BY day`,
		symbol, since,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query daily counts for %s: %w", symbol, err)
	}
	defer rows.Close()

	var results []DayCount
	for rows.Next() {
		var dc DayCount
		if err := rows.Scan(&dc.Day, &dc.Count); err != nil {
			return nil, fmt.Errorf("failed to scan day count: %w", err)
		}
		results = append(results, dc)
	}
	return results, rows.Err()
}

// Prune removes archived triggers older than the cutoff
func (a *TriggerArchive) Prune(cutoff time.Time) (int64, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	result, err := a.db.Exec(`DELETE FROM triggers WHERE triggered_at < ?`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to prune trigger archive: %w", err)
	}
	return result.RowsAffected()
}
