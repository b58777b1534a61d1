package bridge

import (
	"context"

	"github.com/tessro/riffd/internal/arbiter"
	"github.com/tessro/riffd/internal/core"
	"github.com/tessro/riffd/internal/errors"
)

// ResolvedTrack is the currently playing track with its derived identity.
// Zone is set when the track came from the speaker mesh rather than the
// account's own playback report.
type ResolvedTrack struct {
	Identity core.TrackIdentity
	TrackID  string
	Title    string
	Artist   string
	Source   core.Source
	Zone     string
}

// Resolver figures out what is playing right now. The account's playback
// report wins when it shows an active track, because it is accurate no
// matter which room the audio is routed to; otherwise the speaker
// topology is arbitrated for a zone worth reading.
type Resolver struct {
	playback PlaybackSource
	zones    ZoneSource
	logFunc  func(format string, args ...interface{})
}

// NewResolver creates a resolver over the two playback views.
func NewResolver(playback PlaybackSource, zones ZoneSource) *Resolver {
	return &Resolver{
		playback: playback,
		zones:    zones,
		logFunc:  func(string, ...interface{}) {},
	}
}

// SetLogFunc installs a debug logging function.
func (r *Resolver) SetLogFunc(logFunc func(format string, args ...interface{})) {
	if logFunc != nil {
		r.logFunc = logFunc
	}
}

// Resolve returns the current track, or a NotActionable error naming why
// there is nothing to act on.
func (r *Resolver) Resolve(ctx context.Context, preferredRoom string, mode arbiter.Mode) (*ResolvedTrack, error) {
	state, err := r.playback.GetPlaybackState(ctx)
	if err != nil {
		// The speaker mesh can still answer when the account API cannot.
		r.logFunc("playback state unavailable, falling back to zones: %v", err)
	} else if state != nil && state.IsPlaying && state.CurrentlyPlayingType == "track" && state.Item != nil && state.Item.ID != "" {
		return &ResolvedTrack{
			Identity: core.TrackIdentity(state.Item.ID),
			TrackID:  state.Item.ID,
			Title:    state.Item.Name,
			Artist:   state.Item.ArtistNames(),
			Source:   core.SourceSpotify,
		}, nil
	}

	zones, err := r.zones.Zones(ctx)
	if err != nil {
		return nil, err
	}

	zone := arbiter.SelectActiveZone(zones, preferredRoom, mode)
	if zone == nil {
		return nil, &errors.NotActionable{Reason: "nothing playing"}
	}

	co := zone.Coordinator()
	track := co.CurrentTrack
	if mode != arbiter.ModeAny && !track.IsMusicLike() {
		return nil, &errors.NotActionable{Reason: "current source is not music"}
	}

	var uri string
	if track != nil {
		uri = track.URI
	}
	id, ok := core.NativeTrackID(uri)
	if !ok {
		return nil, &errors.NotActionable{Reason: "not a recognized track"}
	}

	resolved := &ResolvedTrack{
		Identity: core.TrackIdentity(id),
		TrackID:  id,
		Source:   core.SourceSonos,
		Zone:     co.Room,
	}
	if track != nil {
		resolved.Title = track.Title
		resolved.Artist = track.Artist
	}
	return resolved, nil
}
