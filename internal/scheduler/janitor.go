package scheduler

import (
	"context"
	"time"

	"github.com/MrSnakeDoc/mediabot/internal/logger"
)

// DefaultJanitorInterval is how often expired cache entries and idle
// rate-limit identities are dropped.
const DefaultJanitorInterval = 5 * time.Minute

// Purger drops expired cache entries and reports how many were removed.
type Purger interface {
	Purge() int
}

// Sweeper drops rate-limit identities with no request inside the window.
type Sweeper interface {
	Sweep() int
}

// Janitor periodically trims in-memory state so it does not grow with the
// number of distinct links and users seen.
type Janitor struct {
	cache    Purger
	limiter  Sweeper
	logger   logger.Logger
	interval time.Duration
	stopCh   chan struct{}
}

// NewJanitor creates a new janitor
func NewJanitor(cache Purger, limiter Sweeper, log logger.Logger, interval time.Duration) *Janitor {
	if interval <= 0 {
		interval = DefaultJanitorInterval
	}

	return &Janitor{
		cache:    cache,
		limiter:  limiter,
		logger:   log,
		interval: interval,
		stopCh:   make(chan struct{}),
	}
}

// Start begins the periodic cleanup
func (j *Janitor) Start(ctx context.Context) {
	ticker := time.NewTicker(j.interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				j.Collect()
			case <-j.stopCh:
				return
			case <-ctx.Done():
				return
			}
		}
	}()
}

// Stop stops the janitor
func (j *Janitor) Stop() {
	close(j.stopCh)
}

// Collect runs one cleanup pass and returns the number of cache entries and
// limiter identities removed.
func (j *Janitor) Collect() (entries, identities int) {
	if j.cache != nil {
		entries = j.cache.Purge()
	}
	if j.limiter != nil {
		identities = j.limiter.Sweep()
	}

	if entries > 0 || identities > 0 {
		j.logger.Info("janitor pass completed",
			logger.Int("cache_entries_purged", entries),
			logger.Int("limiter_identities_swept", identities))
	} else {
		j.logger.Debug("nothing to clean up")
	}
	return entries, identities
}
