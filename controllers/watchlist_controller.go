package controllers

import (
	"errors"
	"net/http"

	"marketpulse_backend/middleware"
	"marketpulse_backend/models"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// WatchlistController handles watchlist CRUD requests
type WatchlistController struct {
	db *gorm.DB
}

// NewWatchlistController creates a new watchlist controller
func NewWatchlistController(db *gorm.DB) *WatchlistController {
	return &WatchlistController{db: db}
}

// GetWatchlists returns the authenticated user's watchlists with their items
// GET /api/v1/watchlists
func (wc *WatchlistController) GetWatchlists(c *gin.Context) {
	userID, err := middleware.GetUserIDFromContext(c)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Not authenticated"})
		return
	}

	var watchlists []models.Watchlist
	if err := wc.db.Preload("Items").Where("user_id = ?", userID).
		Order("created_at ASC").Find(&watchlists).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch watchlists"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": watchlists})
}

// GetWatchlist returns one watchlist owned by the authenticated user
// GET /api/v1/watchlists/:id
func (wc *WatchlistController) GetWatchlist(c *gin.Context) {
	userID, err := middleware.GetUserIDFromContext(c)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Not authenticated"})
		return
	}

	var watchlist models.Watchlist
	if err := wc.db.Preload("Items").
		Where("id = ? AND user_id = ?", c.Param("id"), userID).
		First(&watchlist).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Watchlist not found"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": watchlist})
}

// CreateWatchlist creates a new watchlist
// POST /api/v1/watchlists
func (wc *WatchlistController) CreateWatchlist(c *gin.Context) {
	userID, err := middleware.GetUserIDFromContext(c)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Not authenticated"})
		return
	}

	var request struct {
		Name string `json:"name" binding:"required"`
	}
	if err := c.ShouldBindJSON(&request); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	watchlist := models.Watchlist{
		UserID: userID,
		Name:   request.Name,
	}
	if err := wc.db.Create(&watchlist).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create watchlist"})
		return
	}

	c.JSON(http.StatusCreated, gin.H{"data": watchlist})
}

// UpdateWatchlist renames a watchlist
// PATCH /api/v1/watchlists/:id
func (wc *WatchlistController) UpdateWatchlist(c *gin.Context) {
	userID, err := middleware.GetUserIDFromContext(c)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Not authenticated"})
		return
	}

	var watchlist models.Watchlist
	if err := wc.db.Where("id = ? AND user_id = ?", c.Param("id"), userID).
		First(&watchlist).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Watchlist not found"})
		return
	}

	var request struct {
		Name string `json:"name" binding:"required"`
	}
	if err := c.ShouldBindJSON(&request); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := wc.db.Model(&watchlist).Update("name", request.Name).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update watchlist"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": watchlist})
}

// DeleteWatchlist deletes a watchlist and its items. The default watchlist
// cannot be deleted.
// DELETE /api/v1/watchlists/:id
func (wc *WatchlistController) DeleteWatchlist(c *gin.Context) {
	userID, err := middleware.GetUserIDFromContext(c)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Not authenticated"})
		return
	}

	var watchlist models.Watchlist
	if err := wc.db.Where("id = ? AND user_id = ?", c.Param("id"), userID).
		First(&watchlist).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Watchlist not found"})
		return
	}

	if watchlist.IsDefault {
		c.JSON(http.StatusBadRequest, gin.H{"error": "The default watchlist cannot be deleted"})
		return
	}

	err = wc.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("watchlist_id = ?", watchlist.ID).
			Delete(&models.WatchlistItem{}).Error; err != nil {
			return err
		}
		return tx.Delete(&watchlist).Error
	})
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to delete watchlist"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Watchlist deleted"})
}

// AddItem adds a symbol to a watchlist. Duplicate symbols within one
// watchlist are rejected.
// POST /api/v1/watchlists/:id/items
func (wc *WatchlistController) AddItem(c *gin.Context) {
	userID, err := middleware.GetUserIDFromContext(c)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Not authenticated"})
		return
	}

	var watchlist models.Watchlist
	if err := wc.db.Where("id = ? AND user_id = ?", c.Param("id"), userID).
		First(&watchlist).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Watchlist not found"})
		return
	}

	var request struct {
		Symbol string `json:"symbol" binding:"required"`
		Notes  string `json:"notes"`
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

	var existing models.WatchlistItem
	err = wc.db.Where("watchlist_id = ? AND symbol = ?", watchlist.ID, symbol).
		First(&existing).Error
	if err == nil {
		c.JSON(http.StatusConflict, gin.H{"error": "Symbol already in watchlist"})
		return
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to add symbol"})
		return
	}

	item := models.WatchlistItem{
		WatchlistID: watchlist.ID,
		Symbol:      symbol,
		Notes:       request.Notes,
	}
	if err := wc.db.Create(&item).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to add symbol"})
		return
	}

	c.JSON(http.StatusCreated, gin.H{"data": item})
}

// RemoveItem removes a symbol from a watchlist. The item is addressed by
// its ticker symbol.
// DELETE /api/v1/watchlists/:id/items/:symbol
func (wc *WatchlistController) RemoveItem(c *gin.Context) {
	userID, err := middleware.GetUserIDFromContext(c)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Not authenticated"})
		return
	}

	var watchlist models.Watchlist
	if err := wc.db.Where("id = ? AND user_id = ?", c.Param("id"), userID).
		First(&watchlist).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Watchlist not found"})
		return
	}

	symbol := normalizeSymbol(c.Param("symbol"))
	result := wc.db.Where("watchlist_id = ? AND symbol = ?", watchlist.ID, symbol).
		Delete(&models.WatchlistItem{})
	if result.Error != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to remove symbol"})
		return
	}
	if result.RowsAffected == 0 {
		c.JSON(http.StatusNotFound, gin.H{"error": "Symbol not in watchlist"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Symbol removed"})
}
