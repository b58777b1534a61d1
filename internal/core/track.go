package core

import (
	"fmt"
	"net/url"
	"strings"
	"time"
)

// Source indicates the origin platform of a track.
type Source string

const (
	SourceSpotify Source = "spotify"
	SourceSonos   Source = "sonos"
)

// Track represents a playable audio track.
type Track struct {
	ID          string        `json:"id"`
	URI         string        `json:"uri"`
	Title       string        `json:"title"`
	Artist      string        `json:"artist"`
	Album       string        `json:"album"`
	AlbumArtURI string        `json:"albumArtUri,omitempty"`
	Duration    time.Duration `json:"duration"`
	Source      Source        `json:"source"`
}

// TrackIdentity is the key tracks are compared by when suppressing duplicate
// playlist additions. The value is opaque; only equality is meaningful.
type TrackIdentity string

// Identity derives the de-duplication key for a track: the native Spotify
// track ID when one is known or can be recovered from the playback URI,
// otherwise a composite of the metadata fields. A given source URI always
// maps to the same identity.
func (t *Track) Identity() TrackIdentity {
	if t.ID != "" {
		return TrackIdentity(t.ID)
	}
	if id, ok := NativeTrackID(t.URI); ok {
		return TrackIdentity(id)
	}
	return TrackIdentity(fmt.Sprintf("meta:%s|%s|%s", t.Title, t.Artist, t.AlbumArtURI))
}

// NativeTrackID extracts the Spotify track ID embedded in a playback URI.
// Spotify itself uses the plain form (spotify:track:<id>); the speaker mesh
// reports the same track with the identity percent-encoded inside its own
// scheme (x-sonos-spotify:spotify%3atrack%3a<id>?sid=...), with the escape
// hex in either case.
func NativeTrackID(uri string) (string, bool) {
	if uri == "" {
		return "", false
	}
	decoded, err := url.QueryUnescape(uri)
	if err != nil {
		decoded = uri
	}
	const marker = "spotify:track:"
	i := strings.Index(strings.ToLower(decoded), marker)
	if i < 0 {
		return "", false
	}
	id := decoded[i+len(marker):]
	if j := strings.IndexAny(id, "?&#"); j >= 0 {
		id = id[:j]
	}
	if id == "" || !isBase62(id) {
		return "", false
	}
	return id, true
}

func isBase62(s string) bool {
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z':
		case r >= 'A' && r <= 'Z':
		case r >= '0' && r <= '9':
		default:
			return false
		}
	}
	return true
}

// URI schemes the mesh uses for non-music inputs. Matching is pattern based,
// so an unfamiliar device can slip through.
var (
	tvPrefixes     = []string{"x-sonos-htastream:"}
	tvMarkers      = []string{":spdif", ":hdmi"}
	lineInPrefixes = []string{"x-rincon-stream:", "x-sonos-vli:"}
)

// Streaming schemes that indicate an actual music source even when the mesh
// reports no duration or title metadata.
var musicPrefixes = []string{
	"x-sonos-spotify:",
	"spotify:",
	"x-sonosapi-stream:",
	"x-sonosapi-radio:",
	"x-sonosapi-hls:",
	"x-rincon-mp3radio:",
	"x-rincon-cpcontainer:",
	"x-file-cifs:",
	"http://",
	"https://",
}

// IsTVSource reports whether a playback URI looks like a television input
// (HDMI ARC or SPDIF passthrough).
func IsTVSource(uri string) bool {
	lower := strings.ToLower(uri)
	for _, p := range tvPrefixes {
		if strings.HasPrefix(lower, p) {
			return true
		}
	}
	for _, m := range tvMarkers {
		if strings.Contains(lower, m) {
			return true
		}
	}
	return false
}

// IsLineIn reports whether a playback URI looks like a line-in input or a
// line-in relay from another room.
func IsLineIn(uri string) bool {
	lower := strings.ToLower(uri)
	for _, p := range lineInPrefixes {
		if strings.HasPrefix(lower, p) {
			return true
		}
	}
	return false
}

// IsMusicLike reports whether the track looks like real music rather than an
// idle or passthrough source: it must carry a URI, and either a positive
// duration plus a title, or a URI in a known streaming scheme.
func (t *Track) IsMusicLike() bool {
	if t == nil || t.URI == "" {
		return false
	}
	if t.Duration > 0 && t.Title != "" {
		return true
	}
	lower := strings.ToLower(t.URI)
	for _, p := range musicPrefixes {
		if strings.HasPrefix(lower, p) {
			return true
		}
	}
	return false
}
