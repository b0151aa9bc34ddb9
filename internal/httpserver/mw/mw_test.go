package mw

import (
	"testing"
	"time"
)

func TestMatchHost(t *testing.T) {
	tests := []struct {
		host, pattern string
		want          bool
	}{
		{"bot.example.com", "bot.example.com", true},
		{"a.example.com", "*.example.com", true},
		{"example.com", "*.example.com", false},
		{"evil-example.com", "*.example.com", false},
		{"other.com", "bot.example.com", false},
	}
	for _, tt := range tests {
		if got := matchHost(tt.host, tt.pattern); got != tt.want {
			t.Errorf("matchHost(%q, %q) = %v, want %v", tt.host, tt.pattern, got, tt.want)
		}
	}
}

func TestIPLimiter(t *testing.T) {
	l := newIPLimiter(RateLimitConfig{Burst: 2, RefillPerIPPerMin: 60})
	now := time.Now()

	for i := 0; i < 2; i++ {
		if ok, _, _ := l.allow("1.1.1.1", now); !ok {
			t.Fatalf("request %d denied", i)
		}
	}
	ok, _, retry := l.allow("1.1.1.1", now)
	if ok || retry != 1 {
		t.Errorf("third request: ok = %v, retry = %d", ok, retry)
	}
	if ok, _, _ := l.allow("2.2.2.2", now); !ok {
		t.Error("other IP should have its own bucket")
	}
	if ok, _, _ := l.allow("1.1.1.1", now.Add(time.Second)); !ok {
		t.Error("bucket should refill after one second")
	}
}

func TestIPLimiter_Sweep(t *testing.T) {
	l := newIPLimiter(RateLimitConfig{Burst: 1, RefillPerIPPerMin: 1, IdleTTL: time.Minute, SweepInterval: time.Minute})
	now := time.Now()
	l.allow("1.1.1.1", now)
	l.allow("2.2.2.2", now.Add(2*time.Minute))

	l.mu.Lock()
	defer l.mu.Unlock()
	if _, ok := l.visitors["1.1.1.1"]; ok {
		t.Error("idle visitor not swept")
	}
	if len(l.visitors) != 1 {
		t.Errorf("visitors = %d", len(l.visitors))
	}
}
