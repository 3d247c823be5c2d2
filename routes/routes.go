package routes

import (
	"marketpulse_backend/controllers"
	"marketpulse_backend/middleware"
	"marketpulse_backend/services/analytics"
	"marketpulse_backend/services/marketdata"
	"marketpulse_backend/services/stream"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// Deps carries the shared services the route handlers need
type Deps struct {
	DB      *gorm.DB
	Feed    marketdata.SnapshotFeed
	News    *marketdata.NewsStore
	Archive *analytics.TriggerArchive
	Hub     *stream.Hub
}

// SetupRoutes sets up all API routes
func SetupRoutes(router *gin.Engine, deps Deps) {
	// Initialize controllers
	authController := controllers.NewAuthController(deps.DB)
	alertController := controllers.NewAlertController(deps.DB)
	watchlistController := controllers.NewWatchlistController(deps.DB)
	preferencesController := controllers.NewPreferencesController(deps.DB)
	billingController := controllers.NewBillingController(deps.DB)
	marketController := controllers.NewMarketController(deps.Feed, deps.News, deps.Archive)

	// API v1 group
	api := router.Group("/api/v1")
	{
		// Auth routes
		auth := api.Group("/auth")
		{
			auth.POST("/register", authController.Register)
			auth.POST("/login", middleware.LoginRateLimitMiddleware(), authController.Login)
			auth.GET("/me", middleware.JWTAuthMiddleware(), authController.Me)
		}

		// Billing webhook is authenticated by its signature, not a token
		api.POST("/billing/webhook", billingController.HandleWebhook)

		// Authenticated routes
		authed := api.Group("")
		authed.Use(middleware.JWTAuthMiddleware())
		{
			// Alert routes
			alerts := authed.Group("/alerts")
			{
				alerts.GET("", alertController.GetAlerts)
				alerts.POST("", alertController.CreateAlert)
				alerts.GET("/:id", alertController.GetAlert)
				alerts.PATCH("/:id", alertController.UpdateAlert)
				alerts.DELETE("/:id", alertController.DeleteAlert)
				alerts.GET("/:id/history", alertController.GetAlertHistory)
			}

			// Watchlist routes
			watchlists := authed.Group("/watchlists")
			{
				watchlists.GET("", watchlistController.GetWatchlists)
				watchlists.POST("", watchlistController.CreateWatchlist)
				watchlists.GET("/:id", watchlistController.GetWatchlist)
				watchlists.PATCH("/:id", watchlistController.UpdateWatchlist)
				watchlists.DELETE("/:id", watchlistController.DeleteWatchlist)
				watchlists.POST("/:id/items", watchlistController.AddItem)
				watchlists.DELETE("/:id/items/:symbol", watchlistController.RemoveItem)
			}

			// Notification preferences
			authed.GET("/preferences", preferencesController.GetPreferences)
			authed.PATCH("/preferences", preferencesController.UpdatePreferences)

			// Billing
			authed.GET("/billing/subscription", billingController.GetSubscription)

			// Market data and analytics
			market := authed.Group("/market")
			{
				market.GET("/quotes/:symbol", marketController.GetQuote)
				market.GET("/news/:symbol", marketController.GetNews)
				market.GET("/top-triggered", marketController.GetTopTriggered)
				market.GET("/trigger-activity/:symbol", marketController.GetTriggerActivity)
			}
		}
	}

	// Live trigger stream
	router.GET("/ws/triggers", func(c *gin.Context) {
		deps.Hub.HandleWebSocket(c.Writer, c.Request)
	})
}
