// Package bridge ties the streaming account and the speaker mesh together:
// it resolves whatever is currently playing to a track identity, suppresses
// duplicates, commits novel tracks to the target playlist, and starts
// playback on resolved devices.
package bridge

import (
	"context"

	"github.com/tessro/riffd/internal/core"
	"github.com/tessro/riffd/internal/spotify/client"
)

// PlaybackSource is the account-side view of what is playing.
type PlaybackSource interface {
	GetPlaybackState(ctx context.Context) (*client.PlaybackState, error)
}

// ZoneSource reports the current speaker topology.
type ZoneSource interface {
	Zones(ctx context.Context) ([]core.Zone, error)
}

// PlaylistWriter appends a track to the target playlist.
type PlaylistWriter interface {
	AddTrack(ctx context.Context, trackID string) error
}

// DeviceController drives account-side playback on a device.
type DeviceController interface {
	GetDevices(ctx context.Context) ([]client.Device, error)
	Play(ctx context.Context, deviceID string, opts *client.PlayOptions) error
	SetShuffle(ctx context.Context, state bool, deviceID string) error
}
