// Package arbiter decides which speaker zone counts as the authoritative
// "what is playing right now" when several zones are active at once.
package arbiter

import (
	"sort"
	"strings"

	"github.com/tessro/riffd/internal/core"
)

// Mode controls how strictly candidate zones are filtered by source type.
type Mode string

const (
	// ModeMusic discards zones whose coordinator is playing a TV or
	// line-in input.
	ModeMusic Mode = "music"
	// ModeAny considers every active zone regardless of source.
	ModeAny Mode = "any"
)

// ParseMode maps a request parameter to a Mode. Anything other than "any"
// falls back to the music default.
func ParseMode(s string) Mode {
	if strings.EqualFold(s, string(ModeAny)) {
		return ModeAny
	}
	return ModeMusic
}

// SelectActiveZone picks the zone whose current item wins when several are
// playing. Returns nil when nothing is active.
//
// Candidates are ordered by a stable key before any tie-breaking applies, so
// the result never depends on the order the gateway happens to enumerate
// zones. Preference tiers, best first: a zone containing preferredRoom, a
// zone whose coordinator item carries a native track identity, a zone whose
// item merely looks like music, and finally any active zone at all.
func SelectActiveZone(zones []core.Zone, preferredRoom string, mode Mode) *core.Zone {
	active := make([]core.Zone, 0, len(zones))
	for i := range zones {
		if zones[i].Active() && zones[i].Coordinator() != nil {
			active = append(active, zones[i])
		}
	}
	if len(active) == 0 {
		return nil
	}

	sort.SliceStable(active, func(i, j int) bool {
		return orderKey(&active[i]) < orderKey(&active[j])
	})

	candidates := active
	if mode != ModeAny {
		filtered := make([]core.Zone, 0, len(active))
		for i := range active {
			if t := active[i].Coordinator().CurrentTrack; t != nil && (core.IsTVSource(t.URI) || core.IsLineIn(t.URI)) {
				continue
			}
			filtered = append(filtered, active[i])
		}
		candidates = filtered
	}

	if preferredRoom != "" {
		for i := range candidates {
			if candidates[i].HasRoom(preferredRoom) {
				return &candidates[i]
			}
		}
	}

	for i := range candidates {
		if t := candidates[i].Coordinator().CurrentTrack; t != nil {
			if _, found := core.NativeTrackID(t.URI); found {
				return &candidates[i]
			}
		}
	}

	for i := range candidates {
		if candidates[i].Coordinator().CurrentTrack.IsMusicLike() {
			return &candidates[i]
		}
	}

	// Last resort: any active zone, ignoring the source filter.
	return &active[0]
}

// orderKey gives zones a reproducible ordering: coordinator room first, then
// every member room sorted.
func orderKey(z *core.Zone) string {
	rooms := z.Rooms()
	sort.Strings(rooms)
	return z.Coordinator().Room + "\x00" + strings.Join(rooms, "\x00")
}
