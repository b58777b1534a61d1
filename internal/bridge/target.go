package bridge

import (
	"context"
	"fmt"

	"github.com/tessro/riffd/internal/errors"
	"github.com/tessro/riffd/internal/spotify/client"
)

// PlaylistTarget binds the API client to the configured destination
// playlist. It is both the scan source for the membership cache and the
// writer the add flow commits through.
type PlaylistTarget struct {
	client     *client.Client
	playlistID string
}

// NewPlaylistTarget creates a target for playlistID. An empty ID is
// allowed at construction so the daemon can start half-configured; every
// call then fails with a configuration error.
func NewPlaylistTarget(c *client.Client, playlistID string) *PlaylistTarget {
	return &PlaylistTarget{client: c, playlistID: playlistID}
}

// PlaylistMeta returns the playlist's change marker and item count.
func (t *PlaylistTarget) PlaylistMeta(ctx context.Context) (string, int, error) {
	if t.playlistID == "" {
		return "", 0, fmt.Errorf("playlist id: %w", errors.ErrConfigMissing)
	}
	return t.client.PlaylistMeta(ctx, t.playlistID)
}

// PlaylistTrackIDs returns one page of member track IDs.
func (t *PlaylistTarget) PlaylistTrackIDs(ctx context.Context, offset, limit int) ([]string, int, error) {
	if t.playlistID == "" {
		return nil, 0, fmt.Errorf("playlist id: %w", errors.ErrConfigMissing)
	}
	return t.client.PlaylistTrackIDs(ctx, t.playlistID, offset, limit)
}

// AddTrack appends the track to the playlist.
func (t *PlaylistTarget) AddTrack(ctx context.Context, trackID string) error {
	if t.playlistID == "" {
		return fmt.Errorf("playlist id: %w", errors.ErrConfigMissing)
	}
	return t.client.AddPlaylistTrack(ctx, t.playlistID, trackID)
}
