package notifications

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"marketpulse_backend/models"
)

// fakeChannel records deliveries
type fakeChannel struct {
	name    string
	enabled bool
	mu      sync.Mutex
	sent    []Notification
}

func (f *fakeChannel) Name() string    { return f.name }
func (f *fakeChannel) IsEnabled() bool { return f.enabled }

func (f *fakeChannel) Send(ctx context.Context, n Notification) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, n)
	return nil
}

func (f *fakeChannel) sentCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.sent)
}

func TestQueueDeliversToMatchingChannel(t *testing.T) {
	email := &fakeChannel{name: models.ChannelEmail, enabled: true}
	q := NewQueue(nil, email)
	q.Start(1)

	q.Enqueue(Notification{
		UserID:    1,
		Channel:   models.ChannelEmail,
		Recipient: "trader@example.com",
		Subject:   "MarketPulse alert: AAPL",
	})
	q.Stop()

	if email.sentCount() != 1 {
		t.Fatalf("email deliveries = %d, want 1", email.sentCount())
	}
}

func TestQueueSkipsDisabledChannel(t *testing.T) {
	email := &fakeChannel{name: models.ChannelEmail, enabled: false}
	q := NewQueue(nil, email)
	q.Start(1)

	q.Enqueue(Notification{UserID: 1, Channel: models.ChannelEmail})
	q.Stop()

	if email.sentCount() != 0 {
		t.Errorf("disabled channel received %d deliveries", email.sentCount())
	}
}

func TestQueueIgnoresUnknownChannel(t *testing.T) {
	email := &fakeChannel{name: models.ChannelEmail, enabled: true}
	q := NewQueue(nil, email)
	q.Start(1)

	q.Enqueue(Notification{UserID: 1, Channel: "sms"})
	q.Stop()

	if email.sentCount() != 0 {
		t.Errorf("unexpected delivery: %d", email.sentCount())
	}
}

func TestBuildTriggerBody(t *testing.T) {
	alert := models.Alert{
		ID:             7,
		Name:           "AAPL breakout",
		Symbol:         "AAPL",
		ConditionKind:  "price_above",
		ConditionValue: "185.00",
	}
	event := models.TriggerEvent{
		AlertID:     7,
		Symbol:      "AAPL",
		Kind:        "price_above",
		Evidence:    `{"last_price":"190"}`,
		TriggeredAt: time.Date(2026, 8, 28, 14, 30, 0, 0, time.UTC),
	}

	body := buildTriggerBody(alert, event)
	for _, want := range []string{"AAPL breakout", "price_above 185.00", `"last_price":"190"`} {
		if !strings.Contains(body, want) {
			t.Errorf("body missing %q:\n%s", want, body)
		}
	}
}

func TestBuildTriggerBodyUnnamedAlert(t *testing.T) {
	alert := models.Alert{Symbol: "TSLA", ConditionKind: "price_below", ConditionValue: "200"}
	body := buildTriggerBody(alert, models.TriggerEvent{TriggeredAt: time.Now()})
	if !strings.Contains(body, "TSLA price_below") {
		t.Errorf("fallback name missing:\n%s", body)
	}
}
