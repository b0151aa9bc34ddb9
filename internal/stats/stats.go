// Package stats counts handler events in memory and mirrors them to an
// optional persistent backend.
package stats

import (
	"context"
	"sync"
	"time"

	"github.com/MrSnakeDoc/mediabot/internal/logger"
)

const backendTimeout = 500 * time.Millisecond

// Backend persists counters across restarts.
type Backend interface {
	IncrStat(ctx context.Context, name string) error
	IncrPlatform(ctx context.Context, platform, method string) error
}

// Snapshot is a copy of the in-memory counters.
type Snapshot struct {
	Totals    map[string]int64 `json:"totals"`
	Platforms map[string]int64 `json:"platforms"`
}

type Counters struct {
	mu        sync.Mutex
	totals    map[string]int64
	platforms map[string]int64
	backend   Backend
	logger    logger.Logger
}

// New returns counters mirrored to backend; backend may be nil.
func New(backend Backend, log logger.Logger) *Counters {
	return &Counters{
		totals:    make(map[string]int64),
		platforms: make(map[string]int64),
		backend:   backend,
		logger:    log,
	}
}

func (c *Counters) Incr(ctx context.Context, name string) {
	c.mu.Lock()
	c.totals[name]++
	c.mu.Unlock()

	if c.backend == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), backendTimeout)
	defer cancel()
	if err := c.backend.IncrStat(ctx, name); err != nil {
		c.logger.Debug("stats_backend_failed", logger.String("stat", name), logger.Error(err))
	}
}

// Extraction counts one finished extraction by platform and winning method.
func (c *Counters) Extraction(ctx context.Context, platform, method string) {
	c.mu.Lock()
	c.platforms[platform+":"+method]++
	c.mu.Unlock()

	if c.backend == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), backendTimeout)
	defer cancel()
	if err := c.backend.IncrPlatform(ctx, platform, method); err != nil {
		c.logger.Debug("stats_backend_failed", logger.String("platform", platform), logger.Error(err))
	}
}

func (c *Counters) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()

	s := Snapshot{
		Totals:    make(map[string]int64, len(c.totals)),
		Platforms: make(map[string]int64, len(c.platforms)),
	}
	for k, v := range c.totals {
		s.Totals[k] = v
	}
	for k, v := range c.platforms {
		s.Platforms[k] = v
	}
	return s
}
