package controllers

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"io"
	"log"
	"net/http"
	"strconv"
	"time"

	"marketpulse_backend/config"
	"marketpulse_backend/middleware"
	"marketpulse_backend/models"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// BillingController handles payment-provider webhooks and subscription reads
type BillingController struct {
	db *gorm.DB
}

// NewBillingController creates a new billing controller
func NewBillingController(db *gorm.DB) *BillingController {
	return &BillingController{db: db}
}

// webhookEvent is the provider's event envelope
type webhookEvent struct {
	ID   string `json:"id"`
	Type string `json:"type"`
	Data struct {
		Object json.RawMessage `json:"object"`
	} `json:"data"`
}

// checkoutSession is the object carried by checkout.session.completed
type checkoutSession struct {
	ClientReferenceID string `json:"client_reference_id"`
	Customer          string `json:"customer"`
	Subscription      string `json:"subscription"`
	Metadata          struct {
		Tier string `json:"tier"`
	} `json:"metadata"`
}

// providerSubscription is the object carried by customer.subscription events
type providerSubscription struct {
	ID                 string `json:"id"`
	Customer           string `json:"customer"`
	Status             string `json:"status"`
	CurrentPeriodStart int64  `json:"current_period_start"`
	CurrentPeriodEnd   int64  `json:"current_period_end"`
	Items              struct {
		Data []struct {
			Price struct {
				ID string `json:"id"`
			} `json:"price"`
		} `json:"data"`
	} `json:"items"`
}

// GetSubscription returns the authenticated user's subscription
// GET /api/v1/billing/subscription
func (bc *BillingController) GetSubscription(c *gin.Context) {
	userID, err := middleware.GetUserIDFromContext(c)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Not authenticated"})
		return
	}

	var subscription models.Subscription
	err = bc.db.Where("user_id = ?", userID).First(&subscription).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		subscription = models.Subscription{
			UserID: userID,
			Tier:   models.TierFree,
			Status: models.SubscriptionActive,
		}
	} else if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch subscription"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": subscription})
}

// HandleWebhook receives payment-provider events. The request body is
// verified with an HMAC-SHA256 signature and each event id is processed
// at most once.
// POST /api/v1/billing/webhook
func (bc *BillingController) HandleWebhook(c *gin.Context) {
	body, err := io.ReadAll(io.LimitReader(c.Request.Body, 1<<20))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Failed to read body"})
		return
	}

	signature := c.GetHeader("X-Webhook-Signature")
	if !verifySignature(body, signature, config.AppConfig.BillingWebhookSecret) {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid webhook signature"})
		return
	}

	var event webhookEvent
	if err := json.Unmarshal(body, &event); err != nil || event.ID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Malformed webhook payload"})
		return
	}

	// Duplicate deliveries are acknowledged without reprocessing
	var existing models.BillingEvent
	if err := bc.db.Where("provider_event_id = ?", event.ID).First(&existing).Error; err == nil {
		c.JSON(http.StatusOK, gin.H{"received": true, "duplicate": true})
		return
	}

	if err := bc.processEvent(&event); err != nil {
		log.Printf("Webhook %s (%s) failed: %v", event.ID, event.Type, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to process event"})
		return
	}

	record := models.BillingEvent{
		ProviderEventID: event.ID,
		EventType:       event.Type,
		Payload:         string(body),
		ProcessedAt:     time.Now().UTC(),
	}
	if err := bc.db.Create(&record).Error; err != nil {
		// A concurrent delivery may have won the unique-index race
		log.Printf("Failed to record billing event %s: %v", event.ID, err)
	}

	c.JSON(http.StatusOK, gin.H{"received": true})
}

func (bc *BillingController) processEvent(event *webhookEvent) error {
	switch event.Type {
	case "checkout.session.completed":
		return bc.handleCheckoutCompleted(event.Data.Object)
	case "customer.subscription.updated":
		return bc.handleSubscriptionUpdated(event.Data.Object)
	case "customer.subscription.deleted":
		return bc.handleSubscriptionDeleted(event.Data.Object)
	default:
		log.Printf("Ignoring unhandled webhook event type %s", event.Type)
		return nil
	}
}

// handleCheckoutCompleted upgrades the user named by the checkout session
func (bc *BillingController) handleCheckoutCompleted(object json.RawMessage) error {
	var session checkoutSession
	if err := json.Unmarshal(object, &session); err != nil {
		return err
	}

	userID, err := strconv.ParseUint(session.ClientReferenceID, 10, 64)
	if err != nil {
		return errors.New("checkout session missing user reference")
	}

	tier := session.Metadata.Tier
	if !models.IsValidTier(tier) || tier == models.TierFree {
		tier = models.TierPro
	}

	updates := models.Subscription{
		Tier:                   tier,
		Status:                 models.SubscriptionActive,
		ProviderCustomerID:     session.Customer,
		ProviderSubscriptionID: session.Subscription,
	}

	return bc.db.Transaction(func(tx *gorm.DB) error {
		var subscription models.Subscription
		err := tx.Where("user_id = ?", uint(userID)).First(&subscription).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			updates.UserID = uint(userID)
			return tx.Create(&updates).Error
		}
		if err != nil {
			return err
		}
		return tx.Model(&subscription).Updates(map[string]interface{}{
			"tier":                     updates.Tier,
			"status":                   updates.Status,
			"provider_customer_id":     updates.ProviderCustomerID,
			"provider_subscription_id": updates.ProviderSubscriptionID,
		}).Error
	})
}

// handleSubscriptionUpdated syncs status and billing period from the provider
func (bc *BillingController) handleSubscriptionUpdated(object json.RawMessage) error {
	var sub providerSubscription
	if err := json.Unmarshal(object, &sub); err != nil {
		return err
	}

	status := models.SubscriptionActive
	switch sub.Status {
	case "past_due", "unpaid":
		status = models.SubscriptionPastDue
	case "canceled":
		status = models.SubscriptionCanceled
	}

	updates := map[string]interface{}{"status": status}
	if sub.CurrentPeriodStart > 0 {
		updates["current_period_start"] = time.Unix(sub.CurrentPeriodStart, 0).UTC()
	}
	if sub.CurrentPeriodEnd > 0 {
		updates["current_period_end"] = time.Unix(sub.CurrentPeriodEnd, 0).UTC()
	}
	if len(sub.Items.Data) > 0 {
		updates["provider_price_id"] = sub.Items.Data[0].Price.ID
	}

	result := bc.db.Model(&models.Subscription{}).
		Where("provider_subscription_id = ?", sub.ID).
		Updates(updates)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		log.Printf("Subscription update for unknown provider subscription %s", sub.ID)
	}
	return nil
}

// handleSubscriptionDeleted downgrades the owning user back to the free tier
func (bc *BillingController) handleSubscriptionDeleted(object json.RawMessage) error {
	var sub providerSubscription
	if err := json.Unmarshal(object, &sub); err != nil {
		return err
	}

	result := bc.db.Model(&models.Subscription{}).
		Where("provider_subscription_id = ?", sub.ID).
		Updates(map[string]interface{}{
			"tier":                     models.TierFree,
			"status":                   models.SubscriptionCanceled,
			"provider_subscription_id": "",
			"provider_price_id":        "",
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		log.Printf("Subscription delete for unknown provider subscription %s", sub.ID)
	}
	return nil
}

// verifySignature checks the hex-encoded HMAC-SHA256 of the raw body
func verifySignature(body []byte, signature, secret string) bool {
	if secret == "" || signature == "" {
		return false
	}
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	expected := hex.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(expected), []byte(signature))
}
