package server

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/charmbracelet/log"

	"github.com/tessro/riffd/internal/bridge"
	"github.com/tessro/riffd/internal/config"
	"github.com/tessro/riffd/internal/core"
	"github.com/tessro/riffd/internal/dedupe"
	"github.com/tessro/riffd/internal/errors"
	"github.com/tessro/riffd/internal/grouping"
	"github.com/tessro/riffd/internal/spotify/client"
)

type stubSonos struct {
	mu      sync.Mutex
	zones   []core.Zone
	joins   []string
	volumes map[string]int
}

func (s *stubSonos) Zones(ctx context.Context) ([]core.Zone, error) {
	return s.zones, nil
}

func (s *stubSonos) Join(ctx context.Context, room, coordinator string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.joins = append(s.joins, room+"->"+coordinator)
	return nil
}

func (s *stubSonos) SetVolume(ctx context.Context, room string, volume int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.volumes == nil {
		s.volumes = make(map[string]int)
	}
	s.volumes[room] = volume
	return nil
}

type stubSpotify struct {
	mu      sync.Mutex
	state   *client.PlaybackState
	devices []client.Device
	plays   []string
	track   *client.Track
}

func (s *stubSpotify) GetPlaybackState(ctx context.Context) (*client.PlaybackState, error) {
	if s.state == nil {
		return &client.PlaybackState{}, nil
	}
	return s.state, nil
}

func (s *stubSpotify) GetDevices(ctx context.Context) ([]client.Device, error) {
	return s.devices, nil
}

func (s *stubSpotify) Play(ctx context.Context, deviceID string, opts *client.PlayOptions) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.plays = append(s.plays, deviceID)
	return nil
}

func (s *stubSpotify) SetShuffle(ctx context.Context, state bool, deviceID string) error {
	return nil
}

func (s *stubSpotify) GetTrack(ctx context.Context, id string) (*client.Track, error) {
	if s.track != nil && s.track.ID == id {
		return s.track, nil
	}
	return nil, fmt.Errorf("%s: %w", id, errors.ErrTrackNotFound)
}

type stubPlaylist struct {
	mu       sync.Mutex
	rev      int
	ids      []string
	added    []string
	failWith error
}

func (p *stubPlaylist) PlaylistMeta(ctx context.Context) (string, int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.failWith != nil {
		return "", 0, p.failWith
	}
	return fmt.Sprintf("v%d", p.rev), len(p.ids), nil
}

func (p *stubPlaylist) PlaylistTrackIDs(ctx context.Context, offset, limit int) ([]string, int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.failWith != nil {
		return nil, 0, p.failWith
	}
	if offset >= len(p.ids) {
		return nil, len(p.ids), nil
	}
	end := offset + limit
	if end > len(p.ids) {
		end = len(p.ids)
	}
	return append([]string(nil), p.ids[offset:end]...), len(p.ids), nil
}

func (p *stubPlaylist) AddTrack(ctx context.Context, trackID string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.failWith != nil {
		return p.failWith
	}
	p.ids = append(p.ids, trackID)
	p.added = append(p.added, trackID)
	p.rev++
	return nil
}

func (p *stubPlaylist) addCalls() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.added)
}

func playingZone(room, uri string) core.Zone {
	return core.Zone{Members: []core.Member{{
		Room:        room,
		State:       core.StatePlaying,
		Coordinator: true,
		CurrentTrack: &core.Track{
			URI:    uri,
			Title:  "X",
			Artist: "Y",
		},
	}}}
}

func pausedZone(room string) core.Zone {
	return core.Zone{Members: []core.Member{{
		Room:        room,
		State:       core.StatePaused,
		Coordinator: true,
	}}}
}

func newTestServer(sonos *stubSonos, spotify *stubSpotify, playlist *stubPlaylist, presets map[string]config.PresetConfig) *Server {
	resolver := bridge.NewResolver(spotify, sonos)
	engine := dedupe.NewEngine(
		dedupe.NewRecentAdds(),
		dedupe.NewMembershipCache(playlist, dedupe.Scope{All: true}),
	)
	orchestrator := grouping.NewOrchestrator(sonos, time.Millisecond)
	return New(Config{
		Addr:      "127.0.0.1:0",
		Logger:    log.New(io.Discard),
		Service:   bridge.NewService(resolver, engine, playlist),
		Connector: bridge.NewConnector(spotify, orchestrator, presets),
		Grouping:  orchestrator,
		Resolver:  resolver,
		Tracks:    spotify,
	})
}

func serve(s *Server, method, target, body string) *httptest.ResponseRecorder {
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, reader)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	s.http.Handler.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	if err := json.Unmarshal(rec.Body.Bytes(), v); err != nil {
		t.Fatalf("decoding %q: %v", rec.Body.String(), err)
	}
}

func TestHealthEndpoint(t *testing.T) {
	s := newTestServer(&stubSonos{}, &stubSpotify{}, &stubPlaylist{}, nil)

	rec := serve(s, http.MethodGet, "/health", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var body map[string]string
	decode(t, rec, &body)
	if body["status"] != "ok" {
		t.Fatalf("body = %v", body)
	}
}

func TestAddCurrentEndToEnd(t *testing.T) {
	sonos := &stubSonos{zones: []core.Zone{
		pausedZone("Kitchen"),
		playingZone("Living Room", "x-sonos-spotify:spotify%3atrack%3aABC123?sid=9&flags=8224"),
	}}
	playlist := &stubPlaylist{}
	s := newTestServer(sonos, &stubSpotify{}, playlist, nil)

	rec := serve(s, http.MethodGet, "/add-current-smart", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d body=%s", rec.Code, rec.Body.String())
	}
	var outcome bridge.AddOutcome
	decode(t, rec, &outcome)
	if !outcome.Added || outcome.TrackID != "ABC123" || outcome.Zone != "Living Room" {
		t.Fatalf("outcome = %+v", outcome)
	}

	// The alias route runs the same flow; the track is now a recent add.
	rec = serve(s, http.MethodGet, "/media-actions-smart", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	decode(t, rec, &outcome)
	if outcome.Added {
		t.Fatal("second call must not add again")
	}
	if outcome.Reason != dedupe.ReasonRecentlyAdded {
		t.Fatalf("reason = %q", outcome.Reason)
	}
	if playlist.addCalls() != 1 {
		t.Fatalf("add calls = %d, want 1", playlist.addCalls())
	}
}

func TestAddCurrentNotActionable(t *testing.T) {
	sonos := &stubSonos{zones: []core.Zone{pausedZone("Kitchen")}}
	s := newTestServer(sonos, &stubSpotify{}, &stubPlaylist{}, nil)

	rec := serve(s, http.MethodGet, "/add-current-smart", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var outcome bridge.AddOutcome
	decode(t, rec, &outcome)
	if outcome.Added || outcome.Reason != "nothing playing" {
		t.Fatalf("outcome = %+v", outcome)
	}
}

func TestAddCurrentMissingConfigIs503(t *testing.T) {
	sonos := &stubSonos{zones: []core.Zone{
		playingZone("Living Room", "x-sonos-spotify:spotify%3atrack%3aABC123?sid=9"),
	}}
	playlist := &stubPlaylist{failWith: fmt.Errorf("playlist id: %w", errors.ErrConfigMissing)}
	s := newTestServer(sonos, &stubSpotify{}, playlist, nil)

	rec := serve(s, http.MethodGet, "/add-current-smart", "")
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want 503", rec.Code)
	}
	var body map[string]interface{}
	decode(t, rec, &body)
	if added, _ := body["added"].(bool); added {
		t.Fatalf("body = %v", body)
	}
	if body["error"] == "" {
		t.Fatal("expected an error message")
	}
}

func TestGroupEndpointQueryForm(t *testing.T) {
	sonos := &stubSonos{zones: []core.Zone{pausedZone("Kitchen"), pausedZone("Den")}}
	s := newTestServer(sonos, &stubSpotify{}, &stubPlaylist{}, nil)

	rec := serve(s, http.MethodGet, "/group?rooms=Kitchen,Den&vol=25", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d body=%s", rec.Code, rec.Body.String())
	}
	var body struct {
		OK          bool     `json:"ok"`
		Coordinator string   `json:"coordinator"`
		Joined      []string `json:"joined"`
	}
	decode(t, rec, &body)
	if !body.OK || body.Coordinator != "Kitchen" {
		t.Fatalf("body = %+v", body)
	}
	if len(body.Joined) != 1 || body.Joined[0] != "Den" {
		t.Fatalf("joined = %v", body.Joined)
	}
	if sonos.volumes["Kitchen"] != 25 || sonos.volumes["Den"] != 25 {
		t.Fatalf("volumes = %v", sonos.volumes)
	}
}

func TestGroupEndpointJSONForm(t *testing.T) {
	sonos := &stubSonos{zones: []core.Zone{pausedZone("Kitchen"), pausedZone("Den")}}
	s := newTestServer(sonos, &stubSpotify{}, &stubPlaylist{}, nil)

	rec := serve(s, http.MethodPost, "/group",
		`{"rooms":["Kitchen","Den"],"preferred":"Den","volumes":{"Den":30}}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d body=%s", rec.Code, rec.Body.String())
	}
	var body struct {
		OK          bool     `json:"ok"`
		Coordinator string   `json:"coordinator"`
		Joined      []string `json:"joined"`
	}
	decode(t, rec, &body)
	if body.Coordinator != "Den" {
		t.Fatalf("coordinator = %q", body.Coordinator)
	}
	if len(sonos.joins) != 1 || sonos.joins[0] != "Kitchen->Den" {
		t.Fatalf("joins = %v", sonos.joins)
	}
	if sonos.volumes["Den"] != 30 {
		t.Fatalf("volumes = %v", sonos.volumes)
	}
}

func TestGroupEndpointRejectsEmptyRequest(t *testing.T) {
	s := newTestServer(&stubSonos{}, &stubSpotify{}, &stubPlaylist{}, nil)

	rec := serve(s, http.MethodGet, "/group", "")
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

func TestConnectEndpointPreset(t *testing.T) {
	sonos := &stubSonos{zones: []core.Zone{pausedZone("Kitchen"), pausedZone("Den")}}
	spotify := &stubSpotify{devices: []client.Device{{ID: "d1", Name: "Kitchen"}}}
	presets := map[string]config.PresetConfig{
		"dinner": {
			URI:    "spotify:playlist:dinner123",
			Device: "Kitchen",
			Rooms:  []string{"Kitchen", "Den"},
		},
	}
	s := newTestServer(sonos, spotify, &stubPlaylist{}, presets)

	rec := serve(s, http.MethodGet, "/spotify-connect?preset=dinner", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d body=%s", rec.Code, rec.Body.String())
	}
	var outcome bridge.ConnectOutcome
	decode(t, rec, &outcome)
	if !outcome.OK || outcome.DeviceID != "d1" {
		t.Fatalf("outcome = %+v", outcome)
	}
	if len(spotify.plays) != 1 || spotify.plays[0] != "d1" {
		t.Fatalf("plays = %v", spotify.plays)
	}
	if len(sonos.joins) != 1 || sonos.joins[0] != "Den->Kitchen" {
		t.Fatalf("joins = %v", sonos.joins)
	}
}

func TestConnectEndpointUnknownPreset(t *testing.T) {
	s := newTestServer(&stubSonos{}, &stubSpotify{}, &stubPlaylist{}, nil)

	rec := serve(s, http.MethodGet, "/spotify-connect?preset=brunch", "")
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

func TestConnectEndpointRequiresTarget(t *testing.T) {
	s := newTestServer(&stubSonos{}, &stubSpotify{}, &stubPlaylist{}, nil)

	rec := serve(s, http.MethodGet, "/spotify-connect", "")
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

func TestConnectEndpointBarePlaylistID(t *testing.T) {
	spotify := &stubSpotify{}
	s := newTestServer(&stubSonos{}, spotify, &stubPlaylist{}, nil)

	rec := serve(s, http.MethodGet, "/spotify-connect?playlist=37i9dQZF1DX4jP4eebSWR9", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d body=%s", rec.Code, rec.Body.String())
	}
	var outcome bridge.ConnectOutcome
	decode(t, rec, &outcome)
	if outcome.URI != "spotify:playlist:37i9dQZF1DX4jP4eebSWR9" {
		t.Fatalf("uri = %q", outcome.URI)
	}
}

func TestNowPlayingEndpoint(t *testing.T) {
	sonos := &stubSonos{zones: []core.Zone{
		playingZone("Living Room", "x-sonos-spotify:spotify%3atrack%3aABC123?sid=9"),
	}}
	s := newTestServer(sonos, &stubSpotify{}, &stubPlaylist{}, nil)

	rec := serve(s, http.MethodGet, "/now-playing", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var body nowPlayingResponse
	decode(t, rec, &body)
	if !body.Playing || body.TrackID != "ABC123" || body.Zone != "Living Room" {
		t.Fatalf("body = %+v", body)
	}

	sonos.zones = []core.Zone{pausedZone("Kitchen")}
	rec = serve(s, http.MethodGet, "/now-playing", "")
	decode(t, rec, &body)
	if body.Playing || body.Reason != "nothing playing" {
		t.Fatalf("body = %+v", body)
	}
}

func TestTrackEndpoint(t *testing.T) {
	spotify := &stubSpotify{track: &client.Track{
		ID:   "3n3Ppam7vgaVa1iaRUc9Lp",
		Name: "Mr. Brightside",
		URI:  "spotify:track:3n3Ppam7vgaVa1iaRUc9Lp",
	}}
	s := newTestServer(&stubSonos{}, spotify, &stubPlaylist{}, nil)

	rec := serve(s, http.MethodGet, "/spotify-track/3n3Ppam7vgaVa1iaRUc9Lp", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var track client.Track
	decode(t, rec, &track)
	if track.Name != "Mr. Brightside" {
		t.Fatalf("track = %+v", track)
	}

	rec = serve(s, http.MethodGet, "/spotify-track/unknown123", "")
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rec.Code)
	}
}
