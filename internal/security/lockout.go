// Package security tracks repeated authentication failures on the admin API.
package security

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

const (
	LockoutMaxAttempts = 5
	LockoutWindow      = 15 * time.Minute
	LockoutDuration    = 5 * time.Minute
	lockoutCleanup     = 60 * time.Second
	lockoutMaxRecords  = 10000
)

type failureRecord struct {
	attempts  int
	firstFail time.Time
	lockedAt  time.Time
}

// FailureGuard tracks admin authentication failures per client and locks
// out clients that exceed the failure threshold within the tracking window.
type FailureGuard struct {
	mu      sync.Mutex
	records map[string]*failureRecord
	log     *logrus.Logger
	now     func() time.Time
}

// NewFailureGuard creates a guard and starts a background cleanup goroutine
// that stops when ctx is cancelled.
func NewFailureGuard(ctx context.Context, log *logrus.Logger) *FailureGuard {
	g := &FailureGuard{
		records: make(map[string]*failureRecord),
		log:     log,
		now:     time.Now,
	}
	go g.cleanupLoop(ctx)
	return g
}

// IsBlocked reports whether the client is currently locked out.
func (g *FailureGuard) IsBlocked(client string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()

	rec, ok := g.records[client]
	if !ok {
		return false
	}

	return !rec.lockedAt.IsZero() && g.now().Sub(rec.lockedAt) < LockoutDuration
}

// RecordFailure records a rejected admin token from the client.
func (g *FailureGuard) RecordFailure(client string) {
	now := g.now()

	g.mu.Lock()
	defer g.mu.Unlock()

	rec, ok := g.records[client]
	if !ok {
		g.records[client] = &failureRecord{attempts: 1, firstFail: now}
		return
	}

	// Reset if outside the tracking window.
	if now.Sub(rec.firstFail) > LockoutWindow {
		rec.attempts = 1
		rec.firstFail = now
		rec.lockedAt = time.Time{}
		return
	}

	rec.attempts++
	if rec.attempts >= LockoutMaxAttempts && rec.lockedAt.IsZero() {
		rec.lockedAt = now
		g.log.WithField("client_ip", client).Warn("client locked out of admin endpoints after repeated auth failures")
	}
}

// Reset clears failure tracking for a client (call on successful auth).
func (g *FailureGuard) Reset(client string) {
	g.mu.Lock()
	delete(g.records, client)
	g.mu.Unlock()
}

func (g *FailureGuard) cleanupLoop(ctx context.Context) {
	ticker := time.NewTicker(lockoutCleanup)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			g.mu.Lock()
			g.prune(g.now())
			g.mu.Unlock()
		}
	}
}

// prune drops expired records and caps the table size. Caller must hold g.mu.
func (g *FailureGuard) prune(now time.Time) {
	for k, rec := range g.records {
		if !rec.lockedAt.IsZero() && now.Sub(rec.lockedAt) >= LockoutDuration {
			delete(g.records, k)
		} else if rec.lockedAt.IsZero() && now.Sub(rec.firstFail) >= LockoutWindow {
			delete(g.records, k)
		}
	}
	if len(g.records) > lockoutMaxRecords {
		g.evictOldest(len(g.records) - lockoutMaxRecords)
	}
}

// evictOldest removes n entries with the oldest firstFail times.
// Caller must hold g.mu. Complexity: O(m log m) via sort.
func (g *FailureGuard) evictOldest(n int) {
	type entry struct {
		key  string
		time time.Time
	}
	entries := make([]entry, 0, len(g.records))
	for k, rec := range g.records {
		entries = append(entries, entry{k, rec.firstFail})
	}
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].time.Before(entries[j].time)
	})
	for i := range n {
		delete(g.records, entries[i].key)
	}
}
