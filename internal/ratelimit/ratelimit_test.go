package ratelimit

import (
	"testing"
	"time"
)

type fakeClock struct{ t time.Time }

func (f *fakeClock) Now() time.Time { return f.t }

func newFakeClock() *fakeClock {
	return &fakeClock{t: time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)}
}

func TestLimiter_Allow(t *testing.T) {
	clock := newFakeClock()
	l := New(5, 60*time.Second).WithClock(clock)

	for i := 1; i <= 5; i++ {
		if !l.Allow("42") {
			t.Fatalf("call %d denied, want allowed", i)
		}
		clock.t = clock.t.Add(time.Second)
	}

	if l.Allow("42") {
		t.Fatal("6th call allowed, want denied")
	}

	// Other identities are independent.
	if !l.Allow("7") {
		t.Error("other identity denied")
	}

	// The first call was at +0s; at +60s it is out of the window.
	clock.t = time.Date(2025, 6, 1, 10, 1, 0, 0, time.UTC)
	if !l.Allow("42") {
		t.Error("call after window elapsed denied, want allowed")
	}
}

func TestLimiter_DeniedCallsNotRecorded(t *testing.T) {
	clock := newFakeClock()
	l := New(2, 10*time.Second).WithClock(clock)

	l.Allow("u")
	l.Allow("u")
	for i := 0; i < 10; i++ {
		clock.t = clock.t.Add(500 * time.Millisecond)
		if l.Allow("u") {
			t.Fatalf("call allowed at %v, want denied", clock.t)
		}
	}

	// Only the two recorded calls count, so the window frees up 10s after them.
	clock.t = newFakeClock().t.Add(10 * time.Second)
	if !l.Allow("u") {
		t.Error("denied calls extended the window")
	}
}

func TestLimiter_Sweep(t *testing.T) {
	clock := newFakeClock()
	l := New(5, time.Minute).WithClock(clock)

	l.Allow("idle")
	clock.t = clock.t.Add(45 * time.Second)
	l.Allow("active")

	clock.t = clock.t.Add(30 * time.Second)
	if removed := l.Sweep(); removed != 1 {
		t.Errorf("Sweep() = %d, want 1", removed)
	}
	if n := l.Identities(); n != 1 {
		t.Errorf("Identities() = %d, want 1", n)
	}
}
