package client

import (
	"context"
	stderrors "errors"
	"fmt"
	"net/http"

	"github.com/tessro/riffd/internal/errors"
)

// GetDevices returns the user's available playback devices.
func (c *Client) GetDevices(ctx context.Context) ([]Device, error) {
	var resp DevicesResponse
	if err := c.Get(ctx, "/me/player/devices", &resp); err != nil {
		return nil, err
	}
	return resp.Devices, nil
}

// GetPlaybackState returns the current playback state. When no session is
// active the endpoint answers 204 and the returned state is the zero value
// (Item nil, IsPlaying false).
func (c *Client) GetPlaybackState(ctx context.Context) (*PlaybackState, error) {
	var state PlaybackState
	if err := c.Get(ctx, "/me/player", &state); err != nil {
		return nil, err
	}
	return &state, nil
}

// GetTrack returns a single track's metadata. An upstream 404 becomes
// ErrTrackNotFound so callers can tell a bad ID from an outage.
func (c *Client) GetTrack(ctx context.Context, id string) (*Track, error) {
	if id == "" {
		return nil, fmt.Errorf("track id cannot be empty")
	}
	var track Track
	if err := c.Get(ctx, "/tracks/"+id, &track); err != nil {
		var ue *errors.UpstreamError
		if stderrors.As(err, &ue) && ue.Status == http.StatusNotFound {
			return nil, fmt.Errorf("%w: %s", errors.ErrTrackNotFound, id)
		}
		return nil, err
	}
	return &track, nil
}
