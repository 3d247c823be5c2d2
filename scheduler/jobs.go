package scheduler

import (
	"context"
	"log"
	"time"

	"marketpulse_backend/services/alerts"
	"marketpulse_backend/services/analytics"
	"marketpulse_backend/services/marketdata"

	"github.com/go-co-op/gocron"
)

// Retention windows for the weekly cleanup job
const (
	triggerEventRetention = 90 * 24 * time.Hour
	archiveRetention      = 365 * 24 * time.Hour
	headlineRetention     = 30 * 24 * time.Hour
)

// Scheduler manages scheduled jobs
type Scheduler struct {
	cron       *gocron.Scheduler
	dispatcher *alerts.Dispatcher
	store      *alerts.GormStore
	feed       *marketdata.QuoteFeed
	news       *marketdata.NewsStore
	archive    *analytics.TriggerArchive

	evalInterval time.Duration
	marketTZ     *time.Location
}

// NewScheduler creates a new scheduler instance
func NewScheduler(dispatcher *alerts.Dispatcher, store *alerts.GormStore, feed *marketdata.QuoteFeed, news *marketdata.NewsStore, archive *analytics.TriggerArchive, evalInterval time.Duration) *Scheduler {
	tz, err := time.LoadLocation("America/New_York")
	if err != nil {
		log.Printf("Warning: cannot load market timezone, falling back to UTC: %v", err)
		tz = time.UTC
	}
	if evalInterval <= 0 {
		evalInterval = time.Minute
	}
	return &Scheduler{
		cron:         gocron.NewScheduler(time.UTC),
		dispatcher:   dispatcher,
		store:        store,
		feed:         feed,
		news:         news,
		archive:      archive,
		evalInterval: evalInterval,
		marketTZ:     tz,
	}
}

// Start starts all scheduled jobs
func (s *Scheduler) Start() {
	log.Println("Starting scheduler...")

	// Evaluate enabled alerts during market hours
	s.cron.Every(s.evalInterval).Do(func() {
		if s.isMarketOpen() {
			s.runAlertCycle()
		}
	})

	// Refresh news headlines every 5 minutes during market hours
	s.cron.Every(5).Minutes().Do(func() {
		if s.isMarketOpen() {
			s.refreshNews()
		}
	})

	// Cleanup old data weekly on Sunday at 01:00
	s.cron.Every(1).Week().Sunday().At("01:00").Do(func() {
		s.cleanupOldData()
	})

	s.cron.StartAsync()
	log.Println("Scheduler started successfully")
}

// Stop stops the scheduler
func (s *Scheduler) Stop() {
	s.cron.Stop()
	log.Println("Scheduler stopped")
}

// runAlertCycle evaluates every enabled alert once
func (s *Scheduler) runAlertCycle() {
	ctx, cancel := context.WithTimeout(context.Background(), s.evalInterval)
	defer cancel()
	s.dispatcher.RunCycle(ctx)
}

// refreshNews pulls fresh headlines for every symbol that has an enabled
// alert and stores them for snapshot assembly and the news API
func (s *Scheduler) refreshNews() {
	if s.news == nil || !s.news.IsConnected() {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	symbols, err := s.store.EnabledSymbols(ctx)
	if err != nil {
		log.Printf("News refresh aborted, cannot list symbols: %v", err)
		return
	}

	refreshed := 0
	for _, symbol := range symbols {
		headlines, err := s.feed.FetchHeadlines(ctx, symbol)
		if err != nil {
			log.Printf("Error fetching news for %s: %v", symbol, err)
			continue
		}
		if len(headlines) == 0 {
			continue
		}
		if err := s.news.SaveHeadlines(ctx, headlines); err != nil {
			log.Printf("Error saving news for %s: %v", symbol, err)
			continue
		}
		refreshed++
	}

	log.Printf("Refreshed news for %d of %d symbols", refreshed, len(symbols))
}

// cleanupOldData removes old data to save storage
func (s *Scheduler) cleanupOldData() {
	log.Println("Cleaning up old data...")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	now := time.Now().UTC()

	if pruned, err := s.store.PruneTriggerEvents(ctx, now.Add(-triggerEventRetention)); err != nil {
		log.Printf("Error cleaning up trigger events: %v", err)
	} else if pruned > 0 {
		log.Printf("Pruned %d trigger events", pruned)
	}

	if s.archive != nil {
		if pruned, err := s.archive.Prune(now.Add(-archiveRetention)); err != nil {
			log.Printf("Error cleaning up trigger archive: %v", err)
		} else if pruned > 0 {
			log.Printf("Pruned %d archived triggers", pruned)
		}
	}

	if s.news != nil && s.news.IsConnected() {
		if pruned, err := s.news.PruneOlderThan(ctx, now.Add(-headlineRetention)); err != nil {
			log.Printf("Error cleaning up headlines: %v", err)
		} else if pruned > 0 {
			log.Printf("Pruned %d headlines", pruned)
		}
	}

	log.Println("Cleanup completed")
}

// isMarketOpen checks if the US stock market is currently open
func (s *Scheduler) isMarketOpen() bool {
	now := time.Now().In(s.marketTZ)

	// Check if weekend
	if now.Weekday() == time.Saturday || now.Weekday() == time.Sunday {
		return false
	}

	// US market hours: 9:30 - 16:00 Eastern
	minutes := now.Hour()*60 + now.Minute()
	return minutes >= 9*60+30 && minutes < 16*60
}
