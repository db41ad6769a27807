// Package replay provides the TTL guard that blocks proof re-acceptance.
package replay

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"sync"
	"time"
)

// Guard records fingerprints of successfully verified proofs. Add is an
// atomic check-and-set: of two concurrent identical verifications only one
// may win the insert, the other must be reported as a replay.
type Guard interface {
	// Exists reports whether a live fingerprint is present.
	Exists(ctx context.Context, fingerprint string) (bool, error)
	// Add inserts the fingerprint with the given TTL. Returns false when a
	// live entry already exists.
	Add(ctx context.Context, fingerprint string, ttl time.Duration) (bool, error)
}

// Fingerprint derives the guard key from the verification context. The
// separator keeps field boundaries unambiguous so ("ab","c") never collides
// with ("a","bc").
func Fingerprint(format, canonicalHash, challenge, domain string) string {
	h := sha256.New()
	for i, part := range []string{format, canonicalHash, challenge, domain} {
		if i > 0 {
			h.Write([]byte{0x1f})
		}
		h.Write([]byte(part))
	}
	return hex.EncodeToString(h.Sum(nil))
}

// InMemoryGuard is a process-local Guard for tests and single-instance
// deployments. Expired entries are dropped lazily on access and swept by a
// janitor goroutine.
type InMemoryGuard struct {
	mu      sync.Mutex
	entries map[string]time.Time
	now     func() time.Time
	stop    chan struct{}
	once    sync.Once
}

// NewInMemoryGuard constructs a guard and starts its sweep loop.
func NewInMemoryGuard() *InMemoryGuard {
	g := &InMemoryGuard{
		entries: make(map[string]time.Time),
		now:     time.Now,
		stop:    make(chan struct{}),
	}
	go g.sweep()
	return g
}

func (g *InMemoryGuard) Exists(_ context.Context, fingerprint string) (bool, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.live(fingerprint), nil
}

func (g *InMemoryGuard) Add(_ context.Context, fingerprint string, ttl time.Duration) (bool, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.live(fingerprint) {
		return false, nil
	}
	g.entries[fingerprint] = g.now().Add(ttl)
	return true, nil
}

// Close stops the sweep loop.
func (g *InMemoryGuard) Close() {
	g.once.Do(func() { close(g.stop) })
}

// live must be called with the mutex held.
func (g *InMemoryGuard) live(fingerprint string) bool {
	expiry, ok := g.entries[fingerprint]
	if !ok {
		return false
	}
	if g.now().After(expiry) {
		delete(g.entries, fingerprint)
		return false
	}
	return true
}

func (g *InMemoryGuard) sweep() {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()
	for {
		select {
		case <-g.stop:
			return
		case <-ticker.C:
			g.mu.Lock()
			now := g.now()
			for fp, expiry := range g.entries {
				if now.After(expiry) {
					delete(g.entries, fp)
				}
			}
			g.mu.Unlock()
		}
	}
}
