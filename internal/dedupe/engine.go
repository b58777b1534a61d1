package dedupe

import (
	"context"

	"github.com/tessro/riffd/internal/core"
)

// Reasons reported when an add is suppressed.
const (
	ReasonRecentlyAdded = "already in playlist (recent)"
	ReasonInPlaylist    = "already in playlist"
)

// Engine decides whether a track still needs adding, consulting the two
// tiers cheapest first.
type Engine struct {
	recent     *RecentAdds
	membership *MembershipCache
	logFunc    func(format string, args ...interface{})
	spawn      func(func())
}

// NewEngine composes the two tiers into an engine.
func NewEngine(recent *RecentAdds, membership *MembershipCache) *Engine {
	return &Engine{
		recent:     recent,
		membership: membership,
		logFunc:    func(string, ...interface{}) {},
		spawn:      func(fn func()) { go fn() },
	}
}

// SetLogFunc sets a logger for cache-path diagnostics.
func (e *Engine) SetLogFunc(fn func(format string, args ...interface{})) {
	if fn != nil {
		e.logFunc = fn
	}
}

// AlreadyHandled reports whether the identity was added recently or is
// already a playlist member, with a caller-visible reason. A failure on
// the cached membership path falls back to a direct scan before giving
// up.
func (e *Engine) AlreadyHandled(ctx context.Context, id core.TrackIdentity) (bool, string, error) {
	if e.recent.Contains(id) {
		return true, ReasonRecentlyAdded, nil
	}

	member, err := e.membership.Contains(ctx, string(id))
	if err != nil {
		e.logFunc("membership cache unavailable, scanning directly: %v", err)
		member, err = e.membership.DirectContains(ctx, string(id))
		if err != nil {
			return false, "", err
		}
	}
	if member {
		return true, ReasonInPlaylist, nil
	}
	return false, "", nil
}

// Remember records a successful add in both tiers, then reconciles the
// membership snapshot against the remote playlist in the background.
func (e *Engine) Remember(id core.TrackIdentity) {
	e.recent.Add(id)
	e.membership.NoteAdded(string(id))

	e.spawn(func() {
		if err := e.membership.Refresh(context.Background()); err != nil {
			e.logFunc("background playlist refresh failed: %v", err)
		}
	})
}
