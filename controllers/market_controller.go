package controllers

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"marketpulse_backend/services/analytics"
	"marketpulse_backend/services/marketdata"

	"github.com/gin-gonic/gin"
)

// MarketController serves quotes, news and trigger analytics
type MarketController struct {
	feed    marketdata.SnapshotFeed
	news    *marketdata.NewsStore
	archive *analytics.TriggerArchive
}

// NewMarketController creates a new market data controller
func NewMarketController(feed marketdata.SnapshotFeed, news *marketdata.NewsStore, archive *analytics.TriggerArchive) *MarketController {
	return &MarketController{feed: feed, news: news, archive: archive}
}

// GetQuote returns a point-in-time snapshot for a symbol
// GET /api/v1/market/quotes/:symbol
func (mc *MarketController) GetQuote(c *gin.Context) {
	symbol := normalizeSymbol(c.Param("symbol"))
	if symbol == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Symbol must be a non-empty ticker"})
		return
	}

	snapshot, err := mc.feed.GetSnapshot(c.Request.Context(), symbol)
	if err != nil {
		if errors.Is(err, marketdata.ErrSnapshotUnavailable) {
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Market data temporarily unavailable"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch quote"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": snapshot})
}

// GetNews returns recent stored headlines for a symbol
// GET /api/v1/market/news/:symbol
func (mc *MarketController) GetNews(c *gin.Context) {
	symbol := normalizeSymbol(c.Param("symbol"))
	if symbol == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Symbol must be a non-empty ticker"})
		return
	}

	limit := parseIntQuery(c, "limit", 20, 100)
	articles, err := mc.news.RecentArticles(c.Request.Context(), symbol, limit)
	if err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "News store unavailable"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": articles})
}

// GetTopTriggered returns the symbols with the most fired alerts over the
// requested window (default 7 days)
// GET /api/v1/market/top-triggered
func (mc *MarketController) GetTopTriggered(c *gin.Context) {
	days := parseIntQuery(c, "days", 7, 90)
	limit := parseIntQuery(c, "limit", 10, 50)

	since := time.Now().UTC().AddDate(0, 0, -days)
	counts, err := mc.archive.TopSymbols(since, limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to query trigger analytics"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": counts, "since": since})
}

// GetTriggerActivity returns per-day trigger counts for one symbol
// GET /api/v1/market/trigger-activity/:symbol
func (mc *MarketController) GetTriggerActivity(c *gin.Context) {
	symbol := normalizeSymbol(c.Param("symbol"))
	if symbol == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Symbol must be a non-empty ticker"})
		return
	}

	days := parseIntQuery(c, "days", 30, 365)
	counts, err := mc.archive.DailyCounts(symbol, days)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to query trigger analytics"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": counts, "symbol": symbol, "days": days})
}

// parseIntQuery parses a positive int query param with a default and a cap
func parseIntQuery(c *gin.Context, key string, defaultValue, max int) int {
	raw := c.Query(key)
	if raw == "" {
		return defaultValue
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		return defaultValue
	}
	if n > max {
		return max
	}
	return n
}
