package cache

import (
	"log"
	"sync"
	"time"
)

// Tiered tries the remote cache first and degrades silently to the local
// in-process cache when the remote is unreachable. The outage is logged
// once per transition, not once per call; calculations never fail because
// the cache is down.
type Tiered struct {
	remote Cache
	local  Cache

	mu       sync.Mutex
	degraded bool
}

// NewTiered wraps remote with a local fallback
func NewTiered(remote, local Cache) *Tiered {
	if local == nil {
		local = NewMemory()
	}
	return &Tiered{remote: remote, local: local}
}

// Get reads from the remote tier, falling back to the local tier on error
func (t *Tiered) Get(key string) ([]byte, bool, error) {
	value, ok, err := t.remote.Get(key)
	if err != nil {
		t.markDegraded(err)
		return t.local.Get(key)
	}
	t.markHealthy()
	if ok {
		return value, true, nil
	}
	// remote miss: the local tier may still hold the entry from a
	// previous outage
	return t.local.Get(key)
}

// Set writes to both tiers; a remote failure only flips the degraded flag
func (t *Tiered) Set(key string, value []byte, ttl time.Duration) error {
	if err := t.remote.Set(key, value, ttl); err != nil {
		t.markDegraded(err)
	} else {
		t.markHealthy()
	}
	return t.local.Set(key, value, ttl)
}

// Invalidate removes the prefix from both tiers
func (t *Tiered) Invalidate(prefix string) error {
	if err := t.remote.Invalidate(prefix); err != nil {
		t.markDegraded(err)
	}
	return t.local.Invalidate(prefix)
}

// Flush clears both tiers
func (t *Tiered) Flush() error {
	if err := t.remote.Flush(); err != nil {
		t.markDegraded(err)
	}
	return t.local.Flush()
}

func (t *Tiered) markDegraded(err error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.degraded {
		t.degraded = true
		log.Printf("Кэш: внешний кэш недоступен, переход на локальный: %v", err)
	}
}

func (t *Tiered) markHealthy() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.degraded {
		t.degraded = false
		log.Printf("Кэш: внешний кэш снова доступен")
	}
}
