package scheduler

// Package scheduler provides scheduled job management for the MarketPulse
// backend. It handles:
// - Periodic evaluation of enabled alerts during market hours
// - News headline refresh for symbols with enabled alerts
// - Weekly retention cleanup across the primary store, the trigger
//   archive and the news store
//
// The main scheduler is implemented in jobs.go
