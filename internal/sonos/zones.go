package sonos

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/tessro/riffd/internal/core"
)

// The gateway's /zones payload varies by version: member state arrives
// either as a bare transport-state string with the current track alongside,
// or as a nested object carrying transport state, volume, and track. Both
// forms are accepted; anything structurally unusable is an error so a
// garbled payload never silently becomes an empty house.

type zoneJSON struct {
	ID          string       `json:"id"`
	UUID        string       `json:"uuid"`
	Coordinator *memberJSON  `json:"coordinator"`
	Members     []memberJSON `json:"members"`
}

type memberJSON struct {
	RoomName     string     `json:"roomName"`
	Room         string     `json:"room"`
	UUID         string     `json:"uuid"`
	Address      string     `json:"address"`
	Coordinator  bool       `json:"coordinator"`
	State        stateJSON  `json:"state"`
	CurrentTrack *trackJSON `json:"currentTrack"`
}

func (m *memberJSON) room() string {
	if m.RoomName != "" {
		return m.RoomName
	}
	return m.Room
}

type stateJSON struct {
	PlaybackState string
	Volume        int
	CurrentTrack  *trackJSON
}

func (s *stateJSON) UnmarshalJSON(data []byte) error {
	// Bare string form: "PLAYING"
	var plain string
	if err := json.Unmarshal(data, &plain); err == nil {
		s.PlaybackState = plain
		return nil
	}

	var full struct {
		PlaybackState string     `json:"playbackState"`
		ZoneState     string     `json:"zoneState"`
		Volume        int        `json:"volume"`
		CurrentTrack  *trackJSON `json:"currentTrack"`
	}
	if err := json.Unmarshal(data, &full); err != nil {
		return err
	}
	s.PlaybackState = full.PlaybackState
	if s.PlaybackState == "" {
		s.PlaybackState = full.ZoneState
	}
	s.Volume = full.Volume
	s.CurrentTrack = full.CurrentTrack
	return nil
}

type trackJSON struct {
	Title       string  `json:"title"`
	Artist      string  `json:"artist"`
	Album       string  `json:"album"`
	AlbumArtURI string  `json:"albumArtUri"`
	URI         string  `json:"uri"`
	TrackURI    string  `json:"trackUri"`
	Duration    float64 `json:"duration"` // seconds
	Type        string  `json:"type"`
}

func (t *trackJSON) toTrack() *core.Track {
	if t == nil {
		return nil
	}
	uri := t.URI
	if uri == "" {
		uri = t.TrackURI
	}
	if uri == "" && t.Title == "" {
		return nil
	}
	track := &core.Track{
		URI:         uri,
		Title:       t.Title,
		Artist:      t.Artist,
		Album:       t.Album,
		AlbumArtURI: t.AlbumArtURI,
		Duration:    time.Duration(t.Duration * float64(time.Second)),
		Source:      core.SourceSonos,
	}
	return track
}

// parseZones decodes a /zones payload into the core topology model.
func parseZones(data []byte) ([]core.Zone, error) {
	var raw []zoneJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parse zones payload: %w", err)
	}

	zones := make([]core.Zone, 0, len(raw))
	for i, zj := range raw {
		zone, err := zj.toZone()
		if err != nil {
			return nil, fmt.Errorf("zone %d: %w", i, err)
		}
		zones = append(zones, zone)
	}
	return zones, nil
}

func (z *zoneJSON) toZone() (core.Zone, error) {
	members := z.Members
	if len(members) == 0 {
		// Some gateways report a lone speaker as a bare coordinator.
		if z.Coordinator == nil {
			return core.Zone{}, fmt.Errorf("zone has no members")
		}
		members = []memberJSON{*z.Coordinator}
	}

	zone := core.Zone{ID: z.ID}
	if zone.ID == "" {
		zone.ID = z.UUID
	}

	for i, mj := range members {
		room := mj.room()
		if room == "" {
			return core.Zone{}, fmt.Errorf("member %d has no room name", i)
		}

		track := mj.CurrentTrack
		if track == nil {
			track = mj.State.CurrentTrack
		}

		member := core.Member{
			Room:         room,
			UUID:         mj.UUID,
			Address:      mj.Address,
			State:        core.TransportState(strings.ToUpper(mj.State.PlaybackState)),
			Volume:       mj.State.Volume,
			Coordinator:  mj.Coordinator,
			CurrentTrack: track.toTrack(),
		}
		zone.Members = append(zone.Members, member)
	}

	// A zone-level coordinator object marks the matching member when none
	// carried its own flag.
	if z.Coordinator != nil && !hasFlaggedCoordinator(zone.Members) {
		for i := range zone.Members {
			if sameSpeaker(&zone.Members[i], z.Coordinator) {
				zone.Members[i].Coordinator = true
				break
			}
		}
	}

	return zone, nil
}

func hasFlaggedCoordinator(members []core.Member) bool {
	for i := range members {
		if members[i].Coordinator {
			return true
		}
	}
	return false
}

func sameSpeaker(m *core.Member, cj *memberJSON) bool {
	if cj.UUID != "" && m.UUID != "" {
		return cj.UUID == m.UUID
	}
	return strings.EqualFold(cj.room(), m.Room)
}
