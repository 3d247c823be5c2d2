package alerts

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"marketpulse_backend/models"
	"marketpulse_backend/services/marketdata"
)

// Notifier hands fired triggers to notification delivery. Delivery is
// fire-and-forget from the dispatcher's point of view: a failed hand-off
// never rolls back the persisted trigger.
type Notifier interface {
	NotifyTrigger(alert models.Alert, event models.TriggerEvent)
}

// Recorder receives fired triggers for fan-out (analytics archive,
// websocket stream)
type Recorder interface {
	RecordTrigger(event models.TriggerEvent)
}

// CycleStats summarizes one evaluation cycle
type CycleStats struct {
	Evaluated int64
	Fired     int64
	Skipped   int64
	Conflicts int64
	Invalid   int64
}

// Dispatcher drives periodic evaluation of all enabled alerts. Distinct
// alerts evaluate concurrently under a bounded worker pool; evaluation of
// the same alert is serialized by an in-flight guard so previousState
// stays consistent for edge-triggering.
type Dispatcher struct {
	store       Store
	feed        marketdata.SnapshotFeed
	notifier    Notifier
	recorders   []Recorder
	workers     int
	taskTimeout time.Duration
	inflight    sync.Map
}

// NewDispatcher creates a dispatcher with the given worker-pool size and
// per-task snapshot timeout
func NewDispatcher(store Store, feed marketdata.SnapshotFeed, notifier Notifier, workers int, taskTimeout time.Duration) *Dispatcher {
	if workers < 1 {
		workers = 1
	}
	if taskTimeout <= 0 {
		taskTimeout = 10 * time.Second
	}
	return &Dispatcher{
		store:       store,
		feed:        feed,
		notifier:    notifier,
		workers:     workers,
		taskTimeout: taskTimeout,
	}
}

// AddRecorder registers a trigger fan-out target. Not safe to call after
// RunCycle has started.
func (d *Dispatcher) AddRecorder(r Recorder) {
	d.recorders = append(d.recorders, r)
}

// RunCycle evaluates every enabled alert once. Individual failures
// (snapshot outage, version conflict, bad stored condition) are counted
// and logged but never abort the batch.
func (d *Dispatcher) RunCycle(ctx context.Context) CycleStats {
	var stats CycleStats

	enabled, err := d.store.ListEnabled(ctx)
	if err != nil {
		log.Printf("Alert cycle aborted, cannot list alerts: %v", err)
		return stats
	}
	if len(enabled) == 0 {
		return stats
	}

	jobs := make(chan models.Alert)
	var wg sync.WaitGroup

	workers := d.workers
	if workers > len(enabled) {
		workers = len(enabled)
	}
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for alert := range jobs {
				d.evaluateOne(ctx, alert, &stats)
			}
		}()
	}

	for _, alert := range enabled {
		select {
		case jobs <- alert:
		case <-ctx.Done():
			close(jobs)
			wg.Wait()
			return stats
		}
	}
	close(jobs)
	wg.Wait()

	log.Printf("Alert cycle: evaluated=%d fired=%d skipped=%d conflicts=%d invalid=%d",
		stats.Evaluated, stats.Fired, stats.Skipped, stats.Conflicts, stats.Invalid)
	return stats
}

func (d *Dispatcher) evaluateOne(ctx context.Context, alert models.Alert, stats *CycleStats) {
	// Serialize evaluation per alert across overlapping cycles
	if _, busy := d.inflight.LoadOrStore(alert.ID, struct{}{}); busy {
		atomic.AddInt64(&stats.Skipped, 1)
		return
	}
	defer d.inflight.Delete(alert.ID)

	cond, err := ParseCondition(alert.ConditionKind, alert.ConditionValue)
	if err != nil {
		log.Printf("Alert %d has an invalid stored condition, skipping: %v", alert.ID, err)
		atomic.AddInt64(&stats.Invalid, 1)
		return
	}

	taskCtx, cancel := context.WithTimeout(ctx, d.taskTimeout)
	defer cancel()

	snap, err := d.feed.GetSnapshot(taskCtx, alert.Symbol)
	if err != nil {
		// An outage is not "condition became false"; previousState is
		// left untouched so edge-triggering does not re-arm spuriously.
		if !errors.Is(err, marketdata.ErrSnapshotUnavailable) {
			log.Printf("Snapshot fetch failed for %s (alert %d): %v", alert.Symbol, alert.ID, err)
		}
		atomic.AddInt64(&stats.Skipped, 1)
		return
	}

	outcome := Evaluate(cond, snap, alert.LastSatisfied)
	if outcome.Indeterminate {
		// The snapshot lacks the reference this kind needs (partial
		// outage). Same treatment as no snapshot at all: skip, leave
		// previousState alone so the edge cannot re-arm spuriously.
		atomic.AddInt64(&stats.Skipped, 1)
		return
	}
	atomic.AddInt64(&stats.Evaluated, 1)

	if outcome.ShouldFire {
		d.fire(taskCtx, alert, outcome, stats)
		return
	}

	if outcome.SatisfiedNow != alert.LastSatisfied {
		if err := d.store.SaveSatisfaction(taskCtx, &alert, outcome.SatisfiedNow); err != nil {
			if errors.Is(err, ErrVersionConflict) {
				atomic.AddInt64(&stats.Conflicts, 1)
			} else {
				log.Printf("Failed to save satisfaction for alert %d: %v", alert.ID, err)
			}
		}
	}
}

func (d *Dispatcher) fire(ctx context.Context, alert models.Alert, outcome Outcome, stats *CycleStats) {
	evidence, err := json.Marshal(outcome.Evidence)
	if err != nil {
		log.Printf("Failed to encode evidence for alert %d: %v", alert.ID, err)
		return
	}

	event := models.TriggerEvent{
		AlertID:     alert.ID,
		UserID:      alert.UserID,
		Symbol:      alert.Symbol,
		Kind:        alert.ConditionKind,
		Evidence:    string(evidence),
		TriggeredAt: time.Now().UTC(),
	}

	if err := d.store.CommitTrigger(ctx, &alert, &event); err != nil {
		if errors.Is(err, ErrVersionConflict) {
			atomic.AddInt64(&stats.Conflicts, 1)
		} else {
			log.Printf("Failed to commit trigger for alert %d: %v", alert.ID, err)
		}
		return
	}
	atomic.AddInt64(&stats.Fired, 1)

	// Trigger is durable at this point; notification delivery failures
	// are the notifier's problem (at-least-once, logged there).
	if d.notifier != nil {
		d.notifier.NotifyTrigger(alert, event)
	}
	for _, r := range d.recorders {
		r.RecordTrigger(event)
	}
}
