package dedupe

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
)

const (
	// membershipTTL bounds how long a scanned snapshot may keep being
	// revalidated before a full rescan is forced.
	membershipTTL = 7 * 24 * time.Hour

	// pageSize is the number of playlist items requested per page.
	pageSize = 100
)

// PlaylistSource is the remote playlist the membership cache scans. The
// bridge binds a concrete API client and playlist ID to it.
type PlaylistSource interface {
	// PlaylistMeta returns the playlist's change marker and item count.
	PlaylistMeta(ctx context.Context) (snapshotID string, total int, err error)
	// PlaylistTrackIDs returns one page of member track IDs.
	PlaylistTrackIDs(ctx context.Context, offset, limit int) (ids []string, total int, err error)
}

// Scope describes how much of the playlist membership scans cover.
type Scope struct {
	// All scans the entire playlist. When false, only the newest Window
	// items are scanned.
	All    bool
	Window int
}

// Key identifies the scope for snapshot validity and refresh coalescing.
func (s Scope) Key() string {
	if s.All {
		return "all"
	}
	return fmt.Sprintf("last-%d", s.Window)
}

// snapshot is one scanned view of playlist membership.
type snapshot struct {
	ids        map[string]struct{}
	snapshotID string
	total      int
	scopeKey   string
	fetchedAt  time.Time
}

// MembershipCache is the second tier: a scoped snapshot of playlist
// membership. A snapshot is trusted only while its scope key matches the
// configured scope and its age is under the TTL, and trusting it still
// requires a revalidation probe of the remote change marker and total
// count. Refreshes are coalesced so at most one scan per scope is in
// flight at a time.
type MembershipCache struct {
	source PlaylistSource
	scope  Scope
	ttl    time.Duration
	now    func() time.Time

	mu   sync.Mutex
	snap *snapshot

	flight singleflight.Group
}

// NewMembershipCache creates an unpopulated cache over source.
func NewMembershipCache(source PlaylistSource, scope Scope) *MembershipCache {
	return &MembershipCache{
		source: source,
		scope:  scope,
		ttl:    membershipTTL,
		now:    time.Now,
	}
}

// SetTTL overrides how long a snapshot may keep being revalidated.
// Zero and negative values are ignored.
func (m *MembershipCache) SetTTL(ttl time.Duration) {
	if ttl > 0 {
		m.ttl = ttl
	}
}

// Contains reports whether trackID is a member of the scoped playlist
// view. The snapshot is rebuilt when it is missing, mis-scoped, or past
// the TTL, and whenever the revalidation probe observes a changed marker
// or total.
func (m *MembershipCache) Contains(ctx context.Context, trackID string) (bool, error) {
	m.mu.Lock()
	snap := m.snap
	usable := snap != nil && snap.scopeKey == m.scope.Key() && m.now().Sub(snap.fetchedAt) < m.ttl
	m.mu.Unlock()

	if !usable {
		fresh, err := m.refresh(ctx)
		if err != nil {
			return false, err
		}
		return m.lookup(fresh, trackID), nil
	}

	snapshotID, total, err := m.source.PlaylistMeta(ctx)
	if err != nil {
		return false, err
	}

	m.mu.Lock()
	if snapshotID == snap.snapshotID && total == snap.total {
		if m.snap == snap {
			snap.fetchedAt = m.now()
		}
		_, member := snap.ids[trackID]
		m.mu.Unlock()
		return member, nil
	}
	m.mu.Unlock()

	fresh, err := m.refresh(ctx)
	if err != nil {
		return false, err
	}
	return m.lookup(fresh, trackID), nil
}

// DirectContains scans the playlist without reading or replacing the
// cached snapshot. It is the fallback when the cached path is
// unavailable.
func (m *MembershipCache) DirectContains(ctx context.Context, trackID string) (bool, error) {
	snap, err := m.scan(ctx)
	if err != nil {
		return false, err
	}
	_, member := snap.ids[trackID]
	return member, nil
}

// NoteAdded records a track this process just added so checks made before
// the next rescan see it. The counted total grows only when the track was
// not already a member, keeping revalidation against the remote total
// honest.
func (m *MembershipCache) NoteAdded(trackID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.snap == nil {
		return
	}
	if _, ok := m.snap.ids[trackID]; ok {
		return
	}
	m.snap.ids[trackID] = struct{}{}
	m.snap.total++
}

// Refresh forces a scoped rescan, replacing the cached snapshot.
// Concurrent callers share a single in-flight scan.
func (m *MembershipCache) Refresh(ctx context.Context) error {
	_, err := m.refresh(ctx)
	return err
}

func (m *MembershipCache) refresh(ctx context.Context) (*snapshot, error) {
	v, err, _ := m.flight.Do(m.scope.Key(), func() (any, error) {
		snap, err := m.scan(ctx)
		if err != nil {
			return nil, err
		}
		m.mu.Lock()
		m.snap = snap
		m.mu.Unlock()
		return snap, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*snapshot), nil
}

// lookup reads membership under the lock; NoteAdded may be mutating the
// snapshot's id set concurrently.
func (m *MembershipCache) lookup(snap *snapshot, trackID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, member := snap.ids[trackID]
	return member
}

// scan walks the scoped slice of the playlist page by page. An empty page
// stops the walk early; upstream totals are not always consistent while
// the playlist is being edited.
func (m *MembershipCache) scan(ctx context.Context) (*snapshot, error) {
	snapshotID, total, err := m.source.PlaylistMeta(ctx)
	if err != nil {
		return nil, err
	}

	start := 0
	if !m.scope.All {
		start = total - m.scope.Window
		if start < 0 {
			start = 0
		}
	}

	ids := make(map[string]struct{}, total-start)
	for offset := start; offset < total; offset += pageSize {
		page, _, err := m.source.PlaylistTrackIDs(ctx, offset, pageSize)
		if err != nil {
			return nil, err
		}
		if len(page) == 0 {
			break
		}
		for _, id := range page {
			ids[id] = struct{}{}
		}
	}

	return &snapshot{
		ids:        ids,
		snapshotID: snapshotID,
		total:      total,
		scopeKey:   m.scope.Key(),
		fetchedAt:  m.now(),
	}, nil
}
