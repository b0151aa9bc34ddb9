package scheduler

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/MrSnakeDoc/mediabot/internal/cache"
	"github.com/MrSnakeDoc/mediabot/internal/domain"
	"github.com/MrSnakeDoc/mediabot/internal/logger"
	"github.com/MrSnakeDoc/mediabot/internal/ratelimit"
)

type fakeClock struct{ now time.Time }

func (c *fakeClock) Now() time.Time { return c.now }

func TestJanitor_Collect(t *testing.T) {
	log := logger.New("error", false)

	c := cache.New(10*time.Millisecond, 10)
	c.Put("https://x.com/u/status/1", &domain.ScrapedResult{})
	c.Put("https://x.com/u/status/2", &domain.ScrapedResult{})

	clock := &fakeClock{now: time.Now()}
	l := ratelimit.New(5, time.Minute).WithClock(clock)
	l.Allow("1")
	l.Allow("2")

	time.Sleep(20 * time.Millisecond)
	clock.now = clock.now.Add(2 * time.Minute)

	j := NewJanitor(c, l, log, time.Hour)
	entries, identities := j.Collect()
	if entries != 2 {
		t.Errorf("purged %d cache entries, want 2", entries)
	}
	if identities != 2 {
		t.Errorf("swept %d identities, want 2", identities)
	}
	if c.Len() != 0 || l.Identities() != 0 {
		t.Errorf("state left behind: cache=%d limiter=%d", c.Len(), l.Identities())
	}
}

type countingPurger struct{ n atomic.Int32 }

func (p *countingPurger) Purge() int {
	p.n.Add(1)
	return 0
}

func TestJanitor_StartStop(t *testing.T) {
	p := &countingPurger{}
	j := NewJanitor(p, nil, logger.New("error", false), 5*time.Millisecond)

	j.Start(context.Background())
	deadline := time.Now().Add(2 * time.Second)
	for p.n.Load() < 2 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	j.Stop()

	if p.n.Load() < 2 {
		t.Fatalf("janitor ran %d times, want at least 2", p.n.Load())
	}
}

func TestNewJanitor_DefaultInterval(t *testing.T) {
	j := NewJanitor(nil, nil, logger.New("error", false), 0)
	if j.interval != DefaultJanitorInterval {
		t.Errorf("interval = %v", j.interval)
	}
}
