// Package dedupe suppresses duplicate playlist additions with two layered
// caches: a short-lived record of this process's own recent adds, and a
// longer-lived snapshot of playlist membership revalidated against the
// remote change marker.
package dedupe

import (
	"sync"
	"time"

	"github.com/tessro/riffd/internal/core"
)

// recentTTL bounds how long a successful add suppresses re-adds without any
// remote lookup.
const recentTTL = 10 * time.Minute

// RecentAdds is the first tier: identities this process added recently.
// Entries expire after the TTL; expired entries are dropped lazily on lookup
// and swept in bulk on insert.
type RecentAdds struct {
	mu      sync.Mutex
	entries map[core.TrackIdentity]time.Time
	ttl     time.Duration
	now     func() time.Time
}

// NewRecentAdds creates an empty recent-add cache.
func NewRecentAdds() *RecentAdds {
	return &RecentAdds{
		entries: make(map[core.TrackIdentity]time.Time),
		ttl:     recentTTL,
		now:     time.Now,
	}
}

// Contains reports whether the identity was added within the TTL window.
func (r *RecentAdds) Contains(id core.TrackIdentity) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	at, found := r.entries[id]
	if !found {
		return false
	}
	if r.now().Sub(at) > r.ttl {
		delete(r.entries, id)
		return false
	}
	return true
}

// Add records a successful add at the current time and sweeps out any
// entries that have expired in the meantime.
func (r *RecentAdds) Add(id core.TrackIdentity) {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now()
	r.entries[id] = now

	for key, at := range r.entries {
		if now.Sub(at) > r.ttl {
			delete(r.entries, key)
		}
	}
}

// Len reports the number of live entries, for diagnostics.
func (r *RecentAdds) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries)
}
