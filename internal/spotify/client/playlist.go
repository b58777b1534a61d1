package client

import (
	"context"
	"fmt"
	"strconv"
)

// PageSize is the number of playlist entries fetched per request, the
// maximum the API allows.
const PageSize = 100

// PlaylistMeta fetches only a playlist's change marker and declared size,
// the cheap revalidation probe for the membership cache.
func (c *Client) PlaylistMeta(ctx context.Context, playlistID string) (snapshotID string, total int, err error) {
	if playlistID == "" {
		return "", 0, fmt.Errorf("playlist id cannot be empty")
	}

	var meta PlaylistMeta
	path := BuildURL("/playlists/"+playlistID, map[string]string{
		"fields": "snapshot_id,tracks.total",
	})
	if err := c.Get(ctx, path, &meta); err != nil {
		return "", 0, err
	}
	return meta.SnapshotID, meta.Tracks.Total, nil
}

// PlaylistTrackIDs fetches one page of playlist entries and returns the
// track IDs it contains, skipping removed or local items that carry no ID.
// The second return is the playlist's declared total at the time of the call.
func (c *Client) PlaylistTrackIDs(ctx context.Context, playlistID string, offset, limit int) ([]string, int, error) {
	if playlistID == "" {
		return nil, 0, fmt.Errorf("playlist id cannot be empty")
	}
	if limit <= 0 || limit > PageSize {
		limit = PageSize
	}

	var page PlaylistItemsPage
	path := BuildURL("/playlists/"+playlistID+"/tracks", map[string]string{
		"fields": "items(track(id,uri)),total,limit,offset",
		"offset": strconv.Itoa(offset),
		"limit":  strconv.Itoa(limit),
	})
	if err := c.Get(ctx, path, &page); err != nil {
		return nil, 0, err
	}

	ids := make([]string, 0, len(page.Items))
	for _, item := range page.Items {
		if item.Track != nil && item.Track.ID != "" {
			ids = append(ids, item.Track.ID)
		}
	}
	return ids, page.Total, nil
}

// AddPlaylistTrack appends a single track to the end of a playlist.
func (c *Client) AddPlaylistTrack(ctx context.Context, playlistID, trackID string) error {
	if playlistID == "" {
		return fmt.Errorf("playlist id cannot be empty")
	}
	if trackID == "" {
		return fmt.Errorf("track id cannot be empty")
	}

	body := map[string]interface{}{
		"uris": []string{"spotify:track:" + trackID},
	}
	var resp SnapshotResponse
	return c.Post(ctx, "/playlists/"+playlistID+"/tracks", body, &resp)
}
