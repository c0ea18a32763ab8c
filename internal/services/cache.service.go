package services

import (
	"sync"
	"time"

	"github.com/rs/zerolog"
	"vawter.tech/stopper"

	"github.com/high001/webpanel/internal/models"
)

// StatsCollector produces a fresh metrics snapshot
type StatsCollector func() (*models.DashboardStats, error)

// StatsCache holds the last dashboard snapshot with a TTL
type StatsCache struct {
	mu        sync.RWMutex
	stats     *models.DashboardStats
	cacheTime time.Time
	ttl       time.Duration
	collect   StatsCollector
	now       func() time.Time
	logger    zerolog.Logger
}

// NewStatsCache wraps collect with a TTL cache
func NewStatsCache(collect StatsCollector, ttl time.Duration, logger zerolog.Logger) *StatsCache {
	if ttl <= 0 {
		ttl = time.Second
	}
	return &StatsCache{
		collect: collect,
		ttl:     ttl,
		now:     time.Now,
		logger:  logger,
	}
}

// isCacheValid checks if cache is still valid
func (sc *StatsCache) isCacheValid() bool {
	return sc.stats != nil && sc.now().Sub(sc.cacheTime) < sc.ttl
}

// Get returns the cached snapshot if valid, otherwise collects a fresh one.
// Callers must not modify the returned value.
func (sc *StatsCache) Get() (*models.DashboardStats, error) {
	sc.mu.RLock()
	if sc.isCacheValid() {
		defer sc.mu.RUnlock()
		return sc.stats, nil
	}
	sc.mu.RUnlock()

	stats, err := sc.collect()
	if err != nil {
		return nil, err
	}

	sc.mu.Lock()
	sc.stats = stats
	sc.cacheTime = sc.now()
	sc.mu.Unlock()

	return stats, nil
}

// Clear drops the cached snapshot
func (sc *StatsCache) Clear() {
	sc.mu.Lock()
	defer sc.mu.Unlock()
	sc.stats = nil
	sc.cacheTime = time.Time{}
}

// Warm keeps the cache fresh in the background so requests rarely pay for a
// collection. It returns when ctx stops.
func (sc *StatsCache) Warm(ctx *stopper.Context, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Stopping():
			return nil
		case <-ticker.C:
			if _, err := sc.Get(); err != nil {
				sc.logger.Warn().Err(err).Msg("stats collection failed")
			}
		}
	}
}
