package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"marketpulse_backend/config"
	"marketpulse_backend/middleware"
	"marketpulse_backend/models"
	"marketpulse_backend/routes"
	"marketpulse_backend/scheduler"
	"marketpulse_backend/services/alerts"
	"marketpulse_backend/services/analytics"
	"marketpulse_backend/services/marketdata"
	"marketpulse_backend/services/notifications"
	"marketpulse_backend/services/stream"

	"github.com/gin-gonic/gin"
)

// dbInitialized tracks whether database has been successfully initialized
// so the /ready endpoint can report readiness dynamically
var dbInitialized bool
var dbInitMutex sync.RWMutex

func main() {
	log.Println("==============================================")
	log.Println("  MarketPulse Backend API - Starting...")
	log.Println("==============================================")

	// Load configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Printf("Warning: Config load issue: %v", err)
	}

	// Set Gin mode based on environment
	if cfg.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	// Create Gin router
	router := gin.New()

	// Add middlewares
	router.Use(gin.Recovery())
	router.Use(corsMiddleware())
	router.Use(requestLogger())

	// Setup health check endpoints FIRST so the platform can detect the
	// service is up while the database initializes in background
	setupHealthEndpoints(router)

	// Create HTTP server with timeouts suited for containerized deployment
	server := &http.Server{
		Addr:              "0.0.0.0:" + cfg.Port,
		Handler:           router,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
		ReadHeaderTimeout: 10 * time.Second,
		MaxHeaderBytes:    1 << 20, // 1 MB
	}

	// Start server IMMEDIATELY so the platform knows we're listening
	go func() {
		log.Printf("Server listening on 0.0.0.0:%s", cfg.Port)
		log.Println("==============================================")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server error: %v", err)
		}
	}()

	// Initialize database and services in background
	var jobScheduler *scheduler.Scheduler
	var hub *stream.Hub
	var queue *notifications.Queue
	var archive *analytics.TriggerArchive
	var newsStore *marketdata.NewsStore
	go func() {
		// Initialize database connection
		db, err := config.InitDB()
		if err != nil {
			log.Printf("ERROR: Database connection failed: %v", err)
			log.Println("Service will continue in limited mode (health check only)")
			return
		}

		// Run database migrations
		log.Println("Running database migrations...")
		if err := runMigrations(); err != nil {
			log.Printf("ERROR: Migration failed: %v", err)
		} else {
			log.Println("Database migrations completed successfully")
		}

		// Login rate limiter
		middleware.InitLoginRateLimiter()

		// News store (MongoDB, optional)
		newsStore, err = marketdata.NewNewsStore(cfg.MongoURI)
		if err != nil {
			log.Printf("Warning: news store unavailable: %v", err)
			newsStore, _ = marketdata.NewNewsStore("")
		}

		// Market data feed
		var headlines marketdata.HeadlineSource
		if newsStore.IsConnected() {
			headlines = newsStore
		}
		feed := marketdata.NewQuoteFeed(cfg.QuoteAPIURL, cfg.QuoteAPIKey, headlines)

		// Trigger analytics archive (local SQLite)
		archive, err = analytics.NewTriggerArchive(cfg.TriggerArchivePath)
		if err != nil {
			log.Printf("Warning: trigger archive unavailable: %v", err)
			archive = nil
		}

		// Notification delivery
		queue = notifications.NewQueue(db,
			notifications.NewEmailChannel(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPUser, cfg.SMTPPassword, cfg.SMTPFrom),
			notifications.NewWebhookChannel(),
			notifications.NewPushChannel(),
		)
		queue.Start(2)

		// Live trigger stream
		hub = stream.NewHub()

		// Alert evaluation pipeline
		store := alerts.NewGormStore(db)
		dispatcher := alerts.NewDispatcher(store, feed, queue, cfg.EvalWorkers, cfg.SnapshotTimeout)
		dispatcher.AddRecorder(hub)
		if archive != nil {
			dispatcher.AddRecorder(archive)
		}

		// Mark database as ready
		dbInitMutex.Lock()
		dbInitialized = true
		dbInitMutex.Unlock()

		// Setup all API routes
		routes.SetupRoutes(router, routes.Deps{
			DB:      db,
			Feed:    feed,
			News:    newsStore,
			Archive: archive,
			Hub:     hub,
		})

		// Start background scheduler
		jobScheduler = scheduler.NewScheduler(dispatcher, store, feed, newsStore, archive, cfg.EvalInterval)
		go jobScheduler.Start()

		log.Println("Application fully initialized with database")
	}()

	// Graceful shutdown
	gracefulShutdown(server, func() {
		if jobScheduler != nil {
			jobScheduler.Stop()
		}
		if queue != nil {
			queue.Stop()
		}
		if hub != nil {
			hub.Close()
		}
		if archive != nil {
			archive.Close()
		}
		if newsStore != nil {
			newsStore.Close()
		}
	})
}

// runMigrations runs all database migrations
func runMigrations() error {
	db := config.DB

	// Migrate user models
	if err := models.MigrateUserModels(db); err != nil {
		return err
	}

	// Migrate watchlist models
	if err := models.MigrateWatchlistModels(db); err != nil {
		return err
	}

	// Migrate alert models
	if err := models.MigrateAlertModels(db); err != nil {
		return err
	}

	// Migrate subscription models
	if err := models.MigrateSubscriptionModels(db); err != nil {
		return err
	}

	return nil
}

// setupHealthEndpoints sets up health check endpoints
func setupHealthEndpoints(router *gin.Engine) {
	// Root endpoint
	router.GET("/", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":  "ok",
			"message": "MarketPulse Backend API",
			"version": "1.0.0",
		})
	})

	// Liveness probe - always returns OK if server is running
	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status": "ok",
		})
	})

	// Readiness probe - checks if service is ready to receive traffic
	router.GET("/ready", func(c *gin.Context) {
		dbInitMutex.RLock()
		isDBReady := dbInitialized
		dbInitMutex.RUnlock()

		if !isDBReady {
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"status":  "not_ready",
				"message": "Database not connected",
			})
			return
		}

		sqlDB, err := config.DB.DB()
		if err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"status":  "not_ready",
				"message": "Database connection error",
			})
			return
		}

		if err := sqlDB.Ping(); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"status":  "not_ready",
				"message": "Database ping failed",
			})
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"status": "ready",
		})
	})

	// Startup probe
	router.GET("/startup", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status": "started",
		})
	})
}

// corsMiddleware returns a CORS middleware handler
func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		origin := c.Request.Header.Get("Origin")
		if origin == "" {
			origin = "*"
		}

		c.Header("Access-Control-Allow-Origin", origin)
		c.Header("Access-Control-Allow-Methods", "GET, POST, PUT, PATCH, DELETE, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Origin, Content-Type, Accept, Authorization, X-Requested-With")
		c.Header("Access-Control-Allow-Credentials", "true")
		c.Header("Access-Control-Max-Age", "86400")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}

// requestLogger returns a request logging middleware
func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		// Skip logging for health checks to reduce noise
		path := c.Request.URL.Path
		if path == "/health" || path == "/ready" || path == "/startup" {
			c.Next()
			return
		}

		start := time.Now()
		c.Next()
		duration := time.Since(start)

		// Only log errors or slow requests in production
		if c.Writer.Status() >= 400 || duration > 1*time.Second {
			log.Printf("%s %s %d %v", c.Request.Method, path, c.Writer.Status(), duration)
		}
	}
}

// gracefulShutdown handles graceful shutdown of the server
func gracefulShutdown(server *http.Server, stopServices func()) {
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	// Wait for shutdown signal
	sig := <-quit
	log.Printf("Received signal %v, shutting down gracefully...", sig)

	// Stop background services first so no new work is produced
	stopServices()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Printf("Server forced to shutdown: %v", err)
	}

	log.Println("Server stopped")
}
