package analytics

import (
	"path/filepath"
	"testing"
	"time"

	"marketpulse_backend/models"
)

func newTestArchive(t *testing.T) *TriggerArchive {
	t.Helper()
	archive, err := NewTriggerArchive(filepath.Join(t.TempDir(), "triggers.db"))
	if err != nil {
		t.Fatalf("NewTriggerArchive failed: %v", err)
	}
	t.Cleanup(func() { archive.Close() })
	return archive
}

func recordAt(a *TriggerArchive, alertID uint, symbol string, at time.Time) {
	a.RecordTrigger(models.TriggerEvent{
		AlertID:     alertID,
		UserID:      1,
		Symbol:      symbol,
		Kind:        "price_above",
		TriggeredAt: at,
	})
}

func TestTopSymbols(t *testing.T) {
	archive := newTestArchive(t)
	now := time.Now().UTC()

	recordAt(archive, 1, "AAPL", now)
	recordAt(archive, 1, "AAPL", now.Add(-time.Hour))
	recordAt(archive, 2, "TSLA", now)
	recordAt(archive, 3, "NVDA", now.AddDate(0, 0, -30)) // outside window

	counts, err := archive.TopSymbols(now.AddDate(0, 0, -7), 10)
	if err != nil {
		t.Fatalf("TopSymbols failed: %v", err)
	}
	if len(counts) != 2 {
		t.Fatalf("got %d symbols, want 2: %+v", len(counts), counts)
	}
	if counts[0].Symbol != "AAPL" || counts[0].Count != 2 {
		t.Errorf("top symbol = %+v, want AAPL with 2", counts[0])
	}
	if counts[1].Symbol != "TSLA" || counts[1].Count != 1 {
		t.Errorf("second symbol = %+v, want TSLA with 1", counts[1])
	}
}

func TestTopSymbolsLimit(t *testing.T) {
	archive := newTestArchive(t)
	now := time.Now().UTC()
	for i, symbol := range []string{"AAPL", "TSLA", "NVDA"} {
		recordAt(archive, uint(i+1), symbol, now)
	}

	counts, err := archive.TopSymbols(now.Add(-time.Hour), 2)
	if err != nil {
		t.Fatalf("TopSymbols failed: %v", err)
	}
	if len(counts) != 2 {
		t.Errorf("got %d symbols, want limit of 2", len(counts))
	}
}

func TestDailyCounts(t *testing.T) {
	archive := newTestArchive(t)
	now := time.Now().UTC()

	recordAt(archive, 1, "AAPL", now)
	recordAt(archive, 1, "AAPL", now)
	recordAt(archive, 2, "TSLA", now) // different symbol, excluded

	counts, err := archive.DailyCounts("AAPL", 7)
	if err != nil {
		t.Fatalf("DailyCounts failed: %v", err)
	}
	total := 0
	for _, dc := range counts {
		total += dc.Count
	}
	if total != 2 {
		t.Errorf("total AAPL triggers = %d, want 2", total)
	}
}

func TestPrune(t *testing.T) {
	archive := newTestArchive(t)
	now := time.Now().UTC()

	recordAt(archive, 1, "AAPL", now)
	recordAt(archive, 1, "AAPL", now.AddDate(-2, 0, 0))

	pruned, err := archive.Prune(now.AddDate(-1, 0, 0))
	if err != nil {
		t.Fatalf("Prune failed: %v", err)
	}
	if pruned != 1 {
		t.Errorf("pruned %d rows, want 1", pruned)
	}

	counts, err := archive.TopSymbols(now.AddDate(-3, 0, 0), 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(counts) != 1 || counts[0].Count != 1 {
		t.Errorf("remaining counts = %+v, want one AAPL row", counts)
	}
}
