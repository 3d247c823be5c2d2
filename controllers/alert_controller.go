package controllers

import (
	"encoding/json"
	"net/http"
	"strings"

	"marketpulse_backend/middleware"
	"marketpulse_backend/models"
	"marketpulse_backend/services/alerts"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// AlertController handles alert CRUD requests
type AlertController struct {
	db *gorm.DB
}

// NewAlertController creates a new alert controller
func NewAlertController(db *gorm.DB) *AlertController {
	return &AlertController{db: db}
}

// GetAlerts returns the authenticated user's alerts
// GET /api/v1/alerts
func (ac *AlertController) GetAlerts(c *gin.Context) {
	userID, err := middleware.GetUserIDFromContext(c)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Not authenticated"})
		return
	}

	var userAlerts []models.Alert
	if err := ac.db.Where("user_id = ?", userID).Order("created_at DESC").Find(&userAlerts).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch alerts"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": userAlerts})
}

// GetAlert returns a single alert owned by the authenticated user
// GET /api/v1/alerts/:id
func (ac *AlertController) GetAlert(c *gin.Context) {
	userID, err := middleware.GetUserIDFromContext(c)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Not authenticated"})
		return
	}

	var alert models.Alert
	if err := ac.db.Where("id = ? AND user_id = ?", c.Param("id"), userID).First(&alert).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Alert not found"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": alert})
}

// CreateAlert creates a new alert for the authenticated user
// POST /api/v1/alerts
func (ac *AlertController) CreateAlert(c *gin.Context) {
	userID, err := middleware.GetUserIDFromContext(c)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Not authenticated"})
		return
	}

	var request struct {
		Name     string   `json:"name"`
		Symbol   string   `json:"symbol" binding:"required"`
		Kind     string   `json:"condition_kind" binding:"required"`
		Value    string   `json:"condition_value" binding:"required"`
		Channels []string `json:"channels"`
	}

	if err := c.ShouldBindJSON(&request); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	symbol := normalizeSymbol(request.Symbol)
	if symbol == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Symbol must be a non-empty ticker"})
		return
	}

	cond, err := alerts.ParseCondition(request.Kind, request.Value)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	channels, err := encodeChannels(request.Channels)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	kind, value := cond.Encode()
	alert := models.Alert{
		UserID:         userID,
		Name:           request.Name,
		Symbol:         symbol,
		ConditionKind:  kind,
		ConditionValue: value,
		Channels:       channels,
		Enabled:        true,
	}

	if err := ac.db.Create(&alert).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create alert"})
		return
	}

	c.JSON(http.StatusCreated, gin.H{"data": alert})
}

// UpdateAlert edits an alert owned by the authenticated user. A condition
// edit must supply both kind and value; the condition is replaced
// wholesale and the satisfaction state re-armed.
// PATCH /api/v1/alerts/:id
func (ac *AlertController) UpdateAlert(c *gin.Context) {
	userID, err := middleware.GetUserIDFromContext(c)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Not authenticated"})
		return
	}

	var alert models.Alert
	if err := ac.db.Where("id = ? AND user_id = ?", c.Param("id"), userID).First(&alert).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Alert not found"})
		return
	}

	var request struct {
		Name     *string  `json:"name"`
		Symbol   *string  `json:"symbol"`
		Kind     *string  `json:"condition_kind"`
		Value    *string  `json:"condition_value"`
		Channels []string `json:"channels"`
		Enabled  *bool    `json:"enabled"`
	}

	if err := c.ShouldBindJSON(&request); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	updates := map[string]interface{}{}
	rearm := false

	if request.Name != nil {
		updates["name"] = *request.Name
	}

	if request.Symbol != nil {
		symbol := normalizeSymbol(*request.Symbol)
		if symbol == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Symbol must be a non-empty ticker"})
			return
		}
		if symbol != alert.Symbol {
			updates["symbol"] = symbol
			rearm = true
		}
	}

	if request.Kind != nil || request.Value != nil {
		if request.Kind == nil || request.Value == nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Condition edits must supply both condition_kind and condition_value"})
			return
		}
		cond, err := alerts.ParseCondition(*request.Kind, *request.Value)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		kind, value := cond.Encode()
		updates["condition_kind"] = kind
		updates["condition_value"] = value
		rearm = true
	}

	if request.Channels != nil {
		channels, err := encodeChannels(request.Channels)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		updates["channels"] = channels
	}

	if request.Enabled != nil {
		updates["enabled"] = *request.Enabled
	}

	if len(updates) == 0 {
		c.JSON(http.StatusOK, gin.H{"data": alert})
		return
	}

	if rearm {
		updates["last_satisfied"] = false
	}
	// Any edit bumps the version so a mid-cycle evaluation using the old
	// row loses its optimistic check
	updates["version"] = gorm.Expr("version + 1")

	if err := ac.db.Model(&alert).Updates(updates).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update alert"})
		return
	}

	if err := ac.db.First(&alert, alert.ID).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to reload alert"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": alert})
}

// DeleteAlert permanently deletes an alert owned by the authenticated user
// DELETE /api/v1/alerts/:id
func (ac *AlertController) DeleteAlert(c *gin.Context) {
	userID, err := middleware.GetUserIDFromContext(c)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Not authenticated"})
		return
	}

	result := ac.db.Where("id = ? AND user_id = ?", c.Param("id"), userID).Delete(&models.Alert{})
	if result.Error != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to delete alert"})
		return
	}
	if result.RowsAffected == 0 {
		c.JSON(http.StatusNotFound, gin.H{"error": "Alert not found"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Alert deleted"})
}

// GetAlertHistory returns the trigger events of one alert, newest first
// GET /api/v1/alerts/:id/history
func (ac *AlertController) GetAlertHistory(c *gin.Context) {
	userID, err := middleware.GetUserIDFromContext(c)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Not authenticated"})
		return
	}

	var alert models.Alert
	if err := ac.db.Where("id = ? AND user_id = ?", c.Param("id"), userID).First(&alert).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Alert not found"})
		return
	}

	var events []models.TriggerEvent
	if err := ac.db.Where("alert_id = ?", alert.ID).
		Order("triggered_at DESC").Limit(100).Find(&events).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch trigger history"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": events})
}

// normalizeSymbol uppercases and trims a ticker symbol
func normalizeSymbol(symbol string) string {
	return strings.ToUpper(strings.TrimSpace(symbol))
}

// encodeChannels validates channel names and encodes them for storage.
// An empty list defaults to email.
func encodeChannels(channels []string) (string, error) {
	if len(channels) == 0 {
		channels = []string{models.ChannelEmail}
	}
	for _, channel := range channels {
		if !models.IsValidChannel(channel) {
			return "", &invalidChannelError{channel}
		}
	}
	encoded, err := json.Marshal(channels)
	if err != nil {
		return "", err
	}
	return string(encoded), nil
}

type invalidChannelError struct {
	channel string
}

func (e *invalidChannelError) Error() string {
	return "invalid notification channel: " + e.channel
}
