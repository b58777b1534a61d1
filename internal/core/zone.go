package core

import "strings"

// TransportState is a speaker's playback state as reported by the mesh
// gateway.
type TransportState string

const (
	StatePlaying       TransportState = "PLAYING"
	StateTransitioning TransportState = "TRANSITIONING"
	StatePaused        TransportState = "PAUSED_PLAYBACK"
	StateStopped       TransportState = "STOPPED"
)

// IsActive reports whether the state counts as actively playing. Gateways
// disagree on exact spellings ("PAUSED" vs "PAUSED_PLAYBACK"), so anything
// that is not playing or about to play is inactive.
func (s TransportState) IsActive() bool {
	switch TransportState(strings.ToUpper(string(s))) {
	case StatePlaying, StateTransitioning:
		return true
	}
	return false
}

// Member is a single speaker within a zone.
type Member struct {
	Room         string         `json:"room"`
	UUID         string         `json:"uuid,omitempty"`
	Address      string         `json:"address,omitempty"`
	State        TransportState `json:"state"`
	Volume       int            `json:"volume"`
	Coordinator  bool           `json:"coordinator"`
	CurrentTrack *Track         `json:"currentTrack,omitempty"`
}

// Zone is a playback group: one coordinator speaker plus the members joined
// to it. A standalone speaker is a zone of one.
type Zone struct {
	ID      string   `json:"id,omitempty"`
	Members []Member `json:"members"`
}

// Coordinator returns the member that drives playback for the zone: the one
// carrying the coordinator flag, else the first member. Nil for an empty
// zone.
func (z *Zone) Coordinator() *Member {
	if z == nil || len(z.Members) == 0 {
		return nil
	}
	for i := range z.Members {
		if z.Members[i].Coordinator {
			return &z.Members[i]
		}
	}
	return &z.Members[0]
}

// HasRoom reports whether the named room is a member of the zone. Room names
// are compared case-insensitively.
func (z *Zone) HasRoom(room string) bool {
	if z == nil {
		return false
	}
	for i := range z.Members {
		if strings.EqualFold(z.Members[i].Room, room) {
			return true
		}
	}
	return false
}

// Active reports whether any member of the zone is in an active playback
// state.
func (z *Zone) Active() bool {
	if z == nil {
		return false
	}
	for i := range z.Members {
		if z.Members[i].State.IsActive() {
			return true
		}
	}
	return false
}

// Rooms returns the member room names in zone order.
func (z *Zone) Rooms() []string {
	if z == nil {
		return nil
	}
	rooms := make([]string, 0, len(z.Members))
	for i := range z.Members {
		rooms = append(rooms, z.Members[i].Room)
	}
	return rooms
}
