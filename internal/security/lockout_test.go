package security

import (
	"context"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
)

// newTestGuard returns a guard on a manual clock.
func newTestGuard(t *testing.T) (*FailureGuard, *time.Time) {
	t.Helper()

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	log := logrus.New()
	log.SetLevel(logrus.PanicLevel)

	now := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	g := NewFailureGuard(ctx, log)
	g.now = func() time.Time { return now }

	return g, &now
}

func TestFailureGuard_SuccessfulAuthResetsCount(t *testing.T) {
	g, _ := newTestGuard(t)

	g.RecordFailure("192.0.2.1")
	g.RecordFailure("192.0.2.1")
	g.Reset("192.0.2.1")

	if g.IsBlocked("192.0.2.1") {
		t.Fatal("client should not be blocked after reset")
	}
}

func TestFailureGuard_BlocksAtMaxAttempts(t *testing.T) {
	g, _ := newTestGuard(t)

	for range LockoutMaxAttempts - 1 {
		g.RecordFailure("192.0.2.1")
	}
	if g.IsBlocked("192.0.2.1") {
		t.Fatal("client should not be blocked before max failures")
	}

	g.RecordFailure("192.0.2.1")
	if !g.IsBlocked("192.0.2.1") {
		t.Fatal("client should be blocked after max failures")
	}
	if g.IsBlocked("192.0.2.2") {
		t.Fatal("other clients must not be affected")
	}
}

func TestFailureGuard_LockoutExpires(t *testing.T) {
	g, now := newTestGuard(t)

	for range LockoutMaxAttempts {
		g.RecordFailure("192.0.2.1")
	}

	*now = now.Add(LockoutDuration + time.Second)
	if g.IsBlocked("192.0.2.1") {
		t.Fatal("lockout should have expired")
	}
}

func TestFailureGuard_WindowResets(t *testing.T) {
	g, now := newTestGuard(t)

	for range LockoutMaxAttempts - 1 {
		g.RecordFailure("192.0.2.1")
	}

	*now = now.Add(LockoutWindow + time.Second)
	g.RecordFailure("192.0.2.1")

	if g.IsBlocked("192.0.2.1") {
		t.Fatal("failures outside the window should not count")
	}
}

func TestFailureGuard_Prune(t *testing.T) {
	g, now := newTestGuard(t)

	g.RecordFailure("stale")
	for range LockoutMaxAttempts {
		g.RecordFailure("locked")
	}

	*now = now.Add(LockoutDuration + time.Second)
	g.RecordFailure("fresh")

	g.mu.Lock()
	g.prune(*now)
	_, stale := g.records["stale"]
	_, locked := g.records["locked"]
	_, fresh := g.records["fresh"]
	g.mu.Unlock()

	// The stale record is still inside its window; only the lockout ended.
	if !stale || locked || !fresh {
		t.Errorf("after prune: stale=%v locked=%v fresh=%v", stale, locked, fresh)
	}
}
