// Package notifications delivers alert trigger notifications to user
// channels. Delivery is at-least-once relative to trigger persistence:
// jobs are enqueued only after the trigger event is durable, and failures
// are logged without affecting the stored trigger.
package notifications

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"sync"
	"time"

	"marketpulse_backend/models"

	"gorm.io/gorm"
)

// Notification is one delivery job for one channel
type Notification struct {
	UserID    uint
	Channel   string
	Recipient string // email address or webhook URL
	Subject   string
	Body      string
	Data      map[string]interface{}
	Timestamp time.Time
}

// Channel is a single delivery transport
type Channel interface {
	Name() string
	Send(ctx context.Context, n Notification) error
	IsEnabled() bool
}

const (
	queueCapacity   = 256
	deliveryTimeout = 30 * time.Second
)

// Queue fans trigger notifications out to channels via a background worker
type Queue struct {
	db       *gorm.DB
	channels map[string]Channel
	jobs     chan Notification
	wg       sync.WaitGroup
	once     sync.Once
}

// NewQueue creates a notification queue with the given channels
func NewQueue(db *gorm.DB, channels ...Channel) *Queue {
	q := &Queue{
		db:       db,
		channels: make(map[string]Channel),
		jobs:     make(chan Notification, queueCapacity),
	}
	for _, ch := range channels {
		q.channels[ch.Name()] = ch
	}
	return q
}

// Start launches the delivery workers
func (q *Queue) Start(workers int) {
	if workers < 1 {
		workers = 1
	}
	for i := 0; i < workers; i++ {
		q.wg.Add(1)
		go q.worker()
	}
	log.Printf("Notification queue started with %d worker(s)", workers)
}

// Stop closes the queue and waits for in-flight deliveries to finish
func (q *Queue) Stop() {
	q.once.Do(func() {
		close(q.jobs)
	})
	q.wg.Wait()
	log.Println("Notification queue stopped")
}

func (q *Queue) worker() {
	defer q.wg.Done()
	for n := range q.jobs {
		ch, ok := q.channels[n.Channel]
		if !ok || !ch.IsEnabled() {
			continue
		}
		ctx, cancel := context.WithTimeout(context.Background(), deliveryTimeout)
		if err := ch.Send(ctx, n); err != nil {
			// Trigger persistence is unaffected; the provider retries
			// on its own schedule.
			log.Printf("Notification delivery failed (user %d, channel %s): %v", n.UserID, n.Channel, err)
		}
		cancel()
	}
}

// Enqueue submits a delivery job without blocking the caller
func (q *Queue) Enqueue(n Notification) {
	select {
	case q.jobs <- n:
	default:
		log.Printf("Notification queue full, dropping job for user %d channel %s", n.UserID, n.Channel)
	}
}

// NotifyTrigger builds and enqueues one notification per requested channel
// for a fired alert. Implements the dispatcher's Notifier interface.
func (q *Queue) NotifyTrigger(alert models.Alert, event models.TriggerEvent) {
	var user models.User
	if err := q.db.First(&user, alert.UserID).Error; err != nil {
		log.Printf("Cannot notify for alert %d, user %d not found: %v", alert.ID, alert.UserID, err)
		return
	}

	var prefs models.NotificationPreferences
	if err := q.db.Where("user_id = ?", alert.UserID).First(&prefs).Error; err != nil {
		prefs = models.DefaultNotificationPreferences(alert.UserID)
	}

	var channels []string
	if err := json.Unmarshal([]byte(alert.Channels), &channels); err != nil {
		log.Printf("Alert %d has malformed channels %q: %v", alert.ID, alert.Channels, err)
		return
	}

	var evidence map[string]interface{}
	_ = json.Unmarshal([]byte(event.Evidence), &evidence)

	subject := fmt.Sprintf("MarketPulse alert: %s", alert.Symbol)
	body := buildTriggerBody(alert, event)

	for _, channel := range channels {
		n := Notification{
			UserID:    alert.UserID,
			Channel:   channel,
			Subject:   subject,
			Body:      body,
			Data:      evidence,
			Timestamp: event.TriggeredAt,
		}

		switch channel {
		case models.ChannelEmail:
			if !prefs.EmailEnabled {
				continue
			}
			n.Recipient = user.Email
		case models.ChannelWebhook:
			if prefs.WebhookURL == "" {
				continue
			}
			n.Recipient = prefs.WebhookURL
		case models.ChannelPush:
			if !prefs.PushEnabled {
				continue
			}
		default:
			log.Printf("Alert %d requests unknown channel %q, skipping", alert.ID, channel)
			continue
		}

		q.Enqueue(n)
	}
}

func buildTriggerBody(alert models.Alert, event models.TriggerEvent) string {
	name := alert.Name
	if name == "" {
		name = fmt.Sprintf("%s %s", alert.Symbol, alert.ConditionKind)
	}
	return fmt.Sprintf("Your alert %q fired at %s.\nSymbol: %s\nCondition: %s %s\nEvidence: %s",
		name,
		event.TriggeredAt.Format(time.RFC1123),
		alert.Symbol,
		alert.ConditionKind,
		alert.ConditionValue,
		event.Evidence,
	)
}
