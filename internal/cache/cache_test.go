package cache

import (
	"fmt"
	"testing"
	"time"

	"github.com/MrSnakeDoc/mediabot/internal/domain"
)

type fakeClock struct{ t time.Time }

func (f *fakeClock) now() time.Time          { return f.t }
func (f *fakeClock) advance(d time.Duration) { f.t = f.t.Add(d) }

func newTestCache(ttl time.Duration, capacity int) (*ResultCache, *fakeClock) {
	clock := &fakeClock{t: time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)}
	c := New(ttl, capacity)
	c.now = clock.now
	return c, clock
}

func TestResultCache_PutGet(t *testing.T) {
	c, clock := newTestCache(time.Minute, 10)

	want := &domain.ScrapedResult{
		Platform:    domain.PlatformTwitter,
		OriginalURL: "https://x.com/u/status/1",
		Author:      "someone",
		MethodUsed:  "primary",
	}
	c.Put(want.OriginalURL, want)

	clock.advance(30 * time.Second)
	got, ok := c.Get(want.OriginalURL)
	if !ok {
		t.Fatal("Get() before TTL reported absent")
	}
	if got != want {
		t.Errorf("Get() = %+v, want %+v", got, want)
	}

	clock.advance(31 * time.Second)
	if _, ok := c.Get(want.OriginalURL); ok {
		t.Error("Get() after TTL reported present")
	}
	if c.Len() != 0 {
		t.Errorf("Len() after expired Get = %d, want 0", c.Len())
	}
}

func TestResultCache_CapacityEvictsOldest(t *testing.T) {
	const capacity = 5
	c, clock := newTestCache(time.Hour, capacity)

	for i := 0; i < capacity+2; i++ {
		c.Put(fmt.Sprintf("k%d", i), &domain.ScrapedResult{OriginalURL: fmt.Sprintf("k%d", i)})
		clock.advance(time.Second)
	}

	if c.Len() > capacity {
		t.Fatalf("Len() = %d, want <= %d", c.Len(), capacity)
	}
	for i := 0; i < 2; i++ {
		if _, ok := c.Get(fmt.Sprintf("k%d", i)); ok {
			t.Errorf("k%d survived, want evicted", i)
		}
	}
	for i := 2; i < capacity+2; i++ {
		if _, ok := c.Get(fmt.Sprintf("k%d", i)); !ok {
			t.Errorf("k%d evicted, want kept", i)
		}
	}
}

func TestResultCache_PutPurgesExpiredBeforeEvicting(t *testing.T) {
	c, clock := newTestCache(time.Minute, 2)

	c.Put("old", &domain.ScrapedResult{})
	clock.advance(50 * time.Second)
	c.Put("fresh", &domain.ScrapedResult{})
	clock.advance(20 * time.Second) // "old" is now expired, "fresh" is not

	c.Put("new", &domain.ScrapedResult{})

	if _, ok := c.Get("fresh"); !ok {
		t.Error("fresh entry evicted although an expired one was available")
	}
	if _, ok := c.Get("new"); !ok {
		t.Error("new entry missing")
	}
}

func TestResultCache_PlaceholderCached(t *testing.T) {
	c, _ := newTestCache(time.Minute, 10)
	ph := domain.Placeholder(domain.PlatformReddit, "https://reddit.com/r/x")
	c.Put(ph.OriginalURL, ph)

	got, ok := c.Get(ph.OriginalURL)
	if !ok || !got.IsPlaceholder() {
		t.Errorf("placeholder not served from cache: ok=%v result=%+v", ok, got)
	}
}

func TestResultCache_PurgeAndFlush(t *testing.T) {
	c, clock := newTestCache(time.Minute, 10)
	c.Put("a", &domain.ScrapedResult{})
	c.Put("b", &domain.ScrapedResult{})
	clock.advance(2 * time.Minute)
	c.Put("c", &domain.ScrapedResult{}) // purges a and b on insert

	if n := c.Purge(); n != 0 {
		t.Errorf("Purge() = %d, want 0", n)
	}
	clock.advance(2 * time.Minute)
	if n := c.Purge(); n != 1 {
		t.Errorf("Purge() = %d, want 1", n)
	}

	c.Put("d", &domain.ScrapedResult{})
	c.Put("e", &domain.ScrapedResult{})
	if n := c.Flush(); n != 2 {
		t.Errorf("Flush() = %d, want 2", n)
	}
	if c.Len() != 0 {
		t.Errorf("Len() after Flush = %d, want 0", c.Len())
	}
}
