package controllers

import (
	"errors"
	"net/http"

	"marketpulse_backend/middleware"
	"marketpulse_backend/models"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// PreferencesController handles notification preference requests
type PreferencesController struct {
	db *gorm.DB
}

// NewPreferencesController creates a new preferences controller
func NewPreferencesController(db *gorm.DB) *PreferencesController {
	return &PreferencesController{db: db}
}

// GetPreferences returns the user's notification preferences, falling back
// to the defaults when no row exists yet
// GET /api/v1/preferences
func (pc *PreferencesController) GetPreferences(c *gin.Context) {
	userID, err := middleware.GetUserIDFromContext(c)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Not authenticated"})
		return
	}

	var prefs models.NotificationPreferences
	err = pc.db.Where("user_id = ?", userID).First(&prefs).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		prefs = models.DefaultNotificationPreferences(userID)
	} else if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch preferences"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": prefs})
}

// UpdatePreferences updates notification preferences, creating the row if
// the user has none
// PATCH /api/v1/preferences
func (pc *PreferencesController) UpdatePreferences(c *gin.Context) {
	userID, err := middleware.GetUserIDFromContext(c)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Not authenticated"})
		return
	}

	var request struct {
		DailyDigest   *bool   `json:"daily_digest"`
		BreakingNews  *bool   `json:"breaking_news"`
		WeeklySummary *bool   `json:"weekly_summary"`
		EmailEnabled  *bool   `json:"email_enabled"`
		PushEnabled   *bool   `json:"push_enabled"`
		WebhookURL    *string `json:"webhook_url"`
	}
	if err := c.ShouldBindJSON(&request); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	var prefs models.NotificationPreferences
	err = pc.db.Where("user_id = ?", userID).First(&prefs).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		prefs = models.DefaultNotificationPreferences(userID)
		if err := pc.db.Create(&prefs).Error; err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update preferences"})
			return
		}
	} else if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch preferences"})
		return
	}

	updates := map[string]interface{}{}
	if request.DailyDigest != nil {
		updates["daily_digest"] = *request.DailyDigest
	}
	if request.BreakingNews != nil {
		updates["breaking_news"] = *request.BreakingNews
	}
	if request.WeeklySummary != nil {
		updates["weekly_summary"] = *request.WeeklySummary
	}
	if request.EmailEnabled != nil {
		updates["email_enabled"] = *request.EmailEnabled
	}
	if request.PushEnabled != nil {
		updates["push_enabled"] = *request.PushEnabled
	}
	if request.WebhookURL != nil {
		updates["webhook_url"] = *request.WebhookURL
	}

	if len(updates) > 0 {
		if err := pc.db.Model(&prefs).Updates(updates).Error; err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update preferences"})
			return
		}
		if err := pc.db.Where("user_id = ?", userID).First(&prefs).Error; err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to reload preferences"})
			return
		}
	}

	c.JSON(http.StatusOK, gin.H{"data": prefs})
}
