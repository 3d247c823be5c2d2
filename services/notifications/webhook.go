package notifications

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"marketpulse_backend/models"
)

// WebhookChannel POSTs trigger payloads to a user-configured URL
type WebhookChannel struct {
	httpClient *http.Client
}

// NewWebhookChannel creates a webhook delivery channel
func NewWebhookChannel() *WebhookChannel {
	return &WebhookChannel{
		httpClient: &http.Client{
			Timeout: 15 * time.Second,
		},
	}
}

// Name returns the channel identifier
func (w *WebhookChannel) Name() string {
	return models.ChannelWebhook
}

// IsEnabled reports whether the channel can deliver
func (w *WebhookChannel) IsEnabled() bool {
	return true
}

// Send POSTs the notification payload as JSON
func (w *WebhookChannel) Send(ctx context.Context, n Notification) error {
	if n.Recipient == "" {
		return fmt.Errorf("webhook notification for user %d has no URL", n.UserID)
	}

	payload := map[string]interface{}{
		"subject":   n.Subject,
		"message":   n.Body,
		"data":      n.Data,
		"timestamp": n.Timestamp.Format(time.RFC3339),
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to encode webhook payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.Recipient, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to build webhook request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", "MarketPulse-Webhook/1.0")

	resp, err := w.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("webhook delivery failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("webhook endpoint returned status %d", resp.StatusCode)
	}
	return nil
}
