package alerts

import (
	"context"
	"sync"
	"testing"
	"time"

	"marketpulse_backend/models"
	"marketpulse_backend/services/marketdata"

	"github.com/shopspring/decimal"
)

// fakeStore is an in-memory Store that mimics the version-checked writes
type fakeStore struct {
	mu      sync.Mutex
	alerts  map[uint]*models.Alert
	events  []models.TriggerEvent
	failAll bool // when set, every write reports a version conflict
}

func newFakeStore(alerts ...*models.Alert) *fakeStore {
	s := &fakeStore{alerts: make(map[uint]*models.Alert)}
	for _, a := range alerts {
		s.alerts[a.ID] = a
	}
	return s
}

func (s *fakeStore) ListEnabled(ctx context.Context) ([]models.Alert, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.Alert
	for _, a := range s.alerts {
		if a.Enabled {
			out = append(out, *a)
		}
	}
	return out, nil
}

func (s *fakeStore) SaveSatisfaction(ctx context.Context, alert *models.Alert, satisfied bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	current, ok := s.alerts[alert.ID]
	if s.failAll || !ok || current.Version != alert.Version || !current.Enabled {
		return ErrVersionConflict
	}
	current.LastSatisfied = satisfied
	current.Version++
	return nil
}

func (s *fakeStore) CommitTrigger(ctx context.Context, alert *models.Alert, event *models.TriggerEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	current, ok := s.alerts[alert.ID]
	if s.failAll || !ok || current.Version != alert.Version || !current.Enabled {
		return ErrVersionConflict
	}
	current.TriggerCount++
	current.LastSatisfied = true
	current.Version++
	s.events = append(s.events, *event)
	return nil
}

func (s *fakeStore) eventCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.events)
}

func (s *fakeStore) alertState(id uint) models.Alert {
	s.mu.Lock()
	defer s.mu.Unlock()
	return *s.alerts[id]
}

// fakeFeed serves canned snapshots; symbols absent from the map are
// reported as unavailable
type fakeFeed struct {
	mu    sync.Mutex
	snaps map[string]*marketdata.Snapshot
}

func (f *fakeFeed) GetSnapshot(ctx context.Context, symbol string) (*marketdata.Snapshot, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	snap, ok := f.snaps[symbol]
	if !ok {
		return nil, marketdata.ErrSnapshotUnavailable
	}
	return snap, nil
}

// captureNotifier records trigger hand-offs
type captureNotifier struct {
	mu     sync.Mutex
	events []models.TriggerEvent
}

func (n *captureNotifier) NotifyTrigger(alert models.Alert, event models.TriggerEvent) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, event)
}

func (n *captureNotifier) count() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.events)
}

func testAlert(id uint, symbol, kind, value string) *models.Alert {
	return &models.Alert{
		ID:             id,
		UserID:         1,
		Symbol:         symbol,
		ConditionKind:  kind,
		ConditionValue: value,
		Channels:       `["email"]`,
		Enabled:        true,
	}
}

func priceSnapshot(symbol, price string) *marketdata.Snapshot {
	return &marketdata.Snapshot{
		Symbol:    symbol,
		LastPrice: decimal.RequireFromString(price),
		AsOf:      time.Now().UTC(),
	}
}

func TestRunCycleFiresOnRisingEdge(t *testing.T) {
	store := newFakeStore(testAlert(1, "AAPL", "price_above", "185"))
	feed := &fakeFeed{snaps: map[string]*marketdata.Snapshot{
		"AAPL": priceSnapshot("AAPL", "190"),
	}}
	notifier := &captureNotifier{}
	d := NewDispatcher(store, feed, notifier, 4, time.Second)

	stats := d.RunCycle(context.Background())
	if stats.Fired != 1 {
		t.Fatalf("Fired = %d, want 1", stats.Fired)
	}
	if store.eventCount() != 1 {
		t.Fatalf("trigger events = %d, want 1", store.eventCount())
	}
	if notifier.count() != 1 {
		t.Fatalf("notifications = %d, want 1", notifier.count())
	}

	// Second cycle with the condition still true must not re-fire
	stats = d.RunCycle(context.Background())
	if stats.Fired != 0 {
		t.Errorf("second cycle Fired = %d, want 0", stats.Fired)
	}
	if store.eventCount() != 1 {
		t.Errorf("trigger events after second cycle = %d, want 1", store.eventCount())
	}
}

func TestRunCycleSkipsOnSnapshotOutage(t *testing.T) {
	alert := testAlert(1, "AAPL", "price_above", "185")
	alert.LastSatisfied = true
	store := newFakeStore(alert)
	feed := &fakeFeed{snaps: map[string]*marketdata.Snapshot{}} // total outage
	d := NewDispatcher(store, feed, nil, 2, time.Second)

	stats := d.RunCycle(context.Background())
	if stats.Skipped != 1 || stats.Evaluated != 0 {
		t.Fatalf("stats = %+v, want 1 skipped, 0 evaluated", stats)
	}

	// previousState must be untouched so service restoration cannot cause
	// a spurious re-fire
	if got := store.alertState(1); !got.LastSatisfied {
		t.Error("LastSatisfied was cleared during outage")
	}

	// Feed comes back with the condition still true: no fire
	feed.mu.Lock()
	feed.snaps["AAPL"] = priceSnapshot("AAPL", "190")
	feed.mu.Unlock()
	stats = d.RunCycle(context.Background())
	if stats.Fired != 0 {
		t.Errorf("Fired = %d after outage recovery, want 0", stats.Fired)
	}
}

func TestRunCycleDropsConflictedOutcome(t *testing.T) {
	store := newFakeStore(testAlert(1, "AAPL", "price_above", "185"))
	store.failAll = true
	feed := &fakeFeed{snaps: map[string]*marketdata.Snapshot{
		"AAPL": priceSnapshot("AAPL", "190"),
	}}
	notifier := &captureNotifier{}
	d := NewDispatcher(store, feed, notifier, 2, time.Second)

	stats := d.RunCycle(context.Background())
	if stats.Conflicts != 1 {
		t.Fatalf("Conflicts = %d, want 1", stats.Conflicts)
	}
	if stats.Fired != 0 || store.eventCount() != 0 || notifier.count() != 0 {
		t.Error("a conflicted trigger must not persist or notify")
	}
}

func TestRunCycleCountsInvalidConditions(t *testing.T) {
	store := newFakeStore(testAlert(1, "AAPL", "price_above", "not-a-number"))
	feed := &fakeFeed{snaps: map[string]*marketdata.Snapshot{
		"AAPL": priceSnapshot("AAPL", "190"),
	}}
	d := NewDispatcher(store, feed, nil, 2, time.Second)

	stats := d.RunCycle(context.Background())
	if stats.Invalid != 1 || stats.Evaluated != 0 {
		t.Fatalf("stats = %+v, want 1 invalid, 0 evaluated", stats)
	}
}

func TestRunCycleEvaluatesAlertsIndependently(t *testing.T) {
	store := newFakeStore(
		testAlert(1, "AAPL", "price_above", "185"),
		testAlert(2, "TSLA", "price_below", "200"),
		testAlert(3, "NVDA", "price_above", "1000"),
	)
	feed := &fakeFeed{snaps: map[string]*marketdata.Snapshot{
		"AAPL": priceSnapshot("AAPL", "190"), // fires
		"TSLA": priceSnapshot("TSLA", "250"), // not satisfied
		// NVDA unavailable: skipped
	}}
	notifier := &captureNotifier{}
	d := NewDispatcher(store, feed, notifier, 8, time.Second)

	stats := d.RunCycle(context.Background())
	if stats.Fired != 1 {
		t.Errorf("Fired = %d, want 1", stats.Fired)
	}
	if stats.Skipped != 1 {
		t.Errorf("Skipped = %d, want 1", stats.Skipped)
	}
	if stats.Evaluated != 2 {
		t.Errorf("Evaluated = %d, want 2", stats.Evaluated)
	}
}

func TestRunCycleSkipsPartialSnapshot(t *testing.T) {
	store := newFakeStore(testAlert(1, "TSLA", "price_change_percent", "5"))
	feed := &fakeFeed{snaps: map[string]*marketdata.Snapshot{
		"TSLA": {
			Symbol:    "TSLA",
			LastPrice: decimal.RequireFromString("105"),
			PrevClose: decimal.RequireFromString("100"),
			AsOf:      time.Now().UTC(),
		},
	}}
	d := NewDispatcher(store, feed, nil, 2, time.Second)

	// +5% crossing fires once
	stats := d.RunCycle(context.Background())
	if stats.Fired != 1 || store.eventCount() != 1 {
		t.Fatalf("first cycle: stats=%+v events=%d, want 1 fire", stats, store.eventCount())
	}

	// Provider omits the previous close for one cycle. The alert must be
	// skipped, not read as "condition became false".
	feed.mu.Lock()
	feed.snaps["TSLA"] = &marketdata.Snapshot{
		Symbol:    "TSLA",
		LastPrice: decimal.RequireFromString("105"),
		AsOf:      time.Now().UTC(),
	}
	feed.mu.Unlock()
	stats = d.RunCycle(context.Background())
	if stats.Skipped != 1 || stats.Evaluated != 0 {
		t.Fatalf("partial snapshot cycle: stats=%+v, want 1 skipped, 0 evaluated", stats)
	}
	if got := store.alertState(1); !got.LastSatisfied {
		t.Fatal("LastSatisfied cleared by a partial snapshot")
	}

	// Reference returns with the condition still true: no crossing
	// happened, so nothing may fire again
	feed.mu.Lock()
	feed.snaps["TSLA"] = &marketdata.Snapshot{
		Symbol:    "TSLA",
		LastPrice: decimal.RequireFromString("105"),
		PrevClose: decimal.RequireFromString("100"),
		AsOf:      time.Now().UTC(),
	}
	feed.mu.Unlock()
	stats = d.RunCycle(context.Background())
	if stats.Fired != 0 {
		t.Errorf("re-fired without a crossing: stats=%+v", stats)
	}
	if store.eventCount() != 1 {
		t.Errorf("events = %d, want 1", store.eventCount())
	}
}

func TestRunCycleSameSymbolAlertsDoNotInterfere(t *testing.T) {
	store := newFakeStore(
		testAlert(1, "AAPL", "price_above", "185"),
		testAlert(2, "AAPL", "price_below", "200"),
	)
	feed := &fakeFeed{snaps: map[string]*marketdata.Snapshot{
		"AAPL": priceSnapshot("AAPL", "190"),
	}}
	notifier := &captureNotifier{}
	d := NewDispatcher(store, feed, notifier, 8, time.Second)

	// 190 satisfies both conditions; both fire independently
	stats := d.RunCycle(context.Background())
	if stats.Fired != 2 || store.eventCount() != 2 {
		t.Fatalf("stats=%+v events=%d, want both alerts to fire", stats, store.eventCount())
	}

	// 150 is a falling edge for price_above only; price_below stays
	// satisfied and must not fire or re-arm
	feed.mu.Lock()
	feed.snaps["AAPL"] = priceSnapshot("AAPL", "150")
	feed.mu.Unlock()
	stats = d.RunCycle(context.Background())
	if stats.Fired != 0 {
		t.Fatalf("falling cycle fired: stats=%+v", stats)
	}
	if got := store.alertState(1); got.LastSatisfied {
		t.Error("price_above alert did not re-arm")
	}
	if got := store.alertState(2); !got.LastSatisfied {
		t.Error("price_below alert state disturbed by its neighbor")
	}

	// Back to 190: only the re-armed price_above alert fires
	feed.mu.Lock()
	feed.snaps["AAPL"] = priceSnapshot("AAPL", "190")
	feed.mu.Unlock()
	stats = d.RunCycle(context.Background())
	if stats.Fired != 1 {
		t.Errorf("recross cycle: stats=%+v, want exactly 1 fire", stats)
	}
	if store.eventCount() != 3 {
		t.Errorf("events = %d, want 3", store.eventCount())
	}
}

func TestRunCycleRearmsAfterFallingEdge(t *testing.T) {
	store := newFakeStore(testAlert(1, "AAPL", "price_above", "185"))
	feed := &fakeFeed{snaps: map[string]*marketdata.Snapshot{
		"AAPL": priceSnapshot("AAPL", "190"),
	}}
	d := NewDispatcher(store, feed, nil, 2, time.Second)

	// Rising edge fires
	d.RunCycle(context.Background())
	if store.eventCount() != 1 {
		t.Fatalf("events = %d, want 1", store.eventCount())
	}

	// Falling edge re-arms without firing
	feed.mu.Lock()
	feed.snaps["AAPL"] = priceSnapshot("AAPL", "180")
	feed.mu.Unlock()
	stats := d.RunCycle(context.Background())
	if stats.Fired != 0 {
		t.Fatalf("falling edge fired")
	}
	if got := store.alertState(1); got.LastSatisfied {
		t.Fatal("LastSatisfied not cleared on falling edge")
	}

	// Second rising edge fires again
	feed.mu.Lock()
	feed.snaps["AAPL"] = priceSnapshot("AAPL", "200")
	feed.mu.Unlock()
	stats = d.RunCycle(context.Background())
	if stats.Fired != 1 {
		t.Fatalf("second crossing did not fire")
	}
	if store.eventCount() != 2 {
		t.Errorf("events = %d, want 2", store.eventCount())
	}
}
