package bridge

import (
	"context"
	stderrors "errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/tessro/riffd/internal/arbiter"
	"github.com/tessro/riffd/internal/core"
	"github.com/tessro/riffd/internal/dedupe"
)

// fakePlaylistAPI plays both roles of the real playlist target: scan
// source for the membership cache and writer for the add flow. Adding a
// track changes the snapshot marker, like the real API does.
type fakePlaylistAPI struct {
	mu     sync.Mutex
	rev    int
	ids    []string
	added  []string
	addErr error

	addArrive  chan struct{}
	addRelease chan struct{}
}

func (f *fakePlaylistAPI) PlaylistMeta(ctx context.Context) (string, int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return fmt.Sprintf("v%d", f.rev), len(f.ids), nil
}

func (f *fakePlaylistAPI) PlaylistTrackIDs(ctx context.Context, offset, limit int) ([]string, int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if offset >= len(f.ids) {
		return nil, len(f.ids), nil
	}
	end := offset + limit
	if end > len(f.ids) {
		end = len(f.ids)
	}
	return append([]string(nil), f.ids[offset:end]...), len(f.ids), nil
}

func (f *fakePlaylistAPI) AddTrack(ctx context.Context, trackID string) error {
	if f.addArrive != nil {
		select {
		case f.addArrive <- struct{}{}:
		default:
		}
		<-f.addRelease
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.addErr != nil {
		return f.addErr
	}
	f.ids = append(f.ids, trackID)
	f.added = append(f.added, trackID)
	f.rev++
	return nil
}

func (f *fakePlaylistAPI) addCalls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.added...)
}

func newTestService(playback *fakePlayback, zones *fakeZones, playlist *fakePlaylistAPI) *Service {
	engine := dedupe.NewEngine(
		dedupe.NewRecentAdds(),
		dedupe.NewMembershipCache(playlist, dedupe.Scope{All: true}),
	)
	return NewService(NewResolver(playback, zones), engine, playlist)
}

func TestAddCurrentAddsNovelTrack(t *testing.T) {
	playlist := &fakePlaylistAPI{}
	zones := &fakeZones{zones: []core.Zone{
		stoppedZone("Kitchen"),
		zoneWithURI("Living Room", "x-sonos-spotify:spotify%3atrack%3a4uLU6hMCjMI75M1A2tKUQC?sid=9"),
	}}
	s := newTestService(&fakePlayback{}, zones, playlist)
	ctx := context.Background()

	outcome, err := s.AddCurrent(ctx, "", arbiter.ModeMusic)
	if err != nil {
		t.Fatalf("AddCurrent: %v", err)
	}
	if !outcome.Added {
		t.Fatalf("outcome = %+v, want an add", outcome)
	}
	if outcome.Source != "sonos" || outcome.Zone != "Living Room" {
		t.Fatalf("outcome = %+v", outcome)
	}
	if outcome.TrackID != "4uLU6hMCjMI75M1A2tKUQC" {
		t.Fatalf("trackID = %q", outcome.TrackID)
	}
	if calls := playlist.addCalls(); len(calls) != 1 || calls[0] != "4uLU6hMCjMI75M1A2tKUQC" {
		t.Fatalf("add calls = %v", calls)
	}

	// The same track again within the TTL window is a no-op.
	outcome, err = s.AddCurrent(ctx, "", arbiter.ModeMusic)
	if err != nil {
		t.Fatalf("AddCurrent: %v", err)
	}
	if outcome.Added {
		t.Fatal("second call must not add again")
	}
	if outcome.Reason != dedupe.ReasonRecentlyAdded {
		t.Fatalf("reason = %q, want %q", outcome.Reason, dedupe.ReasonRecentlyAdded)
	}
	if calls := playlist.addCalls(); len(calls) != 1 {
		t.Fatalf("add calls = %v, want exactly one upstream add", calls)
	}
}

func TestAddCurrentSuppressesExistingMember(t *testing.T) {
	playlist := &fakePlaylistAPI{ids: []string{"4uLU6hMCjMI75M1A2tKUQC"}}
	zones := &fakeZones{zones: []core.Zone{
		zoneWithURI("Living Room", "x-sonos-spotify:spotify%3atrack%3a4uLU6hMCjMI75M1A2tKUQC?sid=9"),
	}}
	s := newTestService(&fakePlayback{}, zones, playlist)

	outcome, err := s.AddCurrent(context.Background(), "", arbiter.ModeMusic)
	if err != nil {
		t.Fatalf("AddCurrent: %v", err)
	}
	if outcome.Added {
		t.Fatal("a playlist member must not be re-added")
	}
	if outcome.Reason != dedupe.ReasonInPlaylist {
		t.Fatalf("reason = %q, want %q", outcome.Reason, dedupe.ReasonInPlaylist)
	}
	if calls := playlist.addCalls(); len(calls) != 0 {
		t.Fatalf("add calls = %v, want none", calls)
	}
}

func TestAddCurrentNothingPlaying(t *testing.T) {
	playlist := &fakePlaylistAPI{}
	s := newTestService(&fakePlayback{}, &fakeZones{zones: []core.Zone{stoppedZone("Kitchen")}}, playlist)

	outcome, err := s.AddCurrent(context.Background(), "", arbiter.ModeMusic)
	if err != nil {
		t.Fatalf("AddCurrent: %v", err)
	}
	if outcome.Added || outcome.Reason != "nothing playing" {
		t.Fatalf("outcome = %+v", outcome)
	}
}

func TestAddCurrentSharesInFlightAdd(t *testing.T) {
	playlist := &fakePlaylistAPI{
		addArrive:  make(chan struct{}, 2),
		addRelease: make(chan struct{}),
	}
	zones := &fakeZones{zones: []core.Zone{
		zoneWithURI("Living Room", "x-sonos-spotify:spotify%3atrack%3a4uLU6hMCjMI75M1A2tKUQC?sid=9"),
	}}
	s := newTestService(&fakePlayback{}, zones, playlist)

	outcomes := make(chan *AddOutcome, 2)
	errs := make(chan error, 2)
	for i := 0; i < 2; i++ {
		go func() {
			outcome, err := s.AddCurrent(context.Background(), "", arbiter.ModeMusic)
			outcomes <- outcome
			errs <- err
		}()
	}

	select {
	case <-playlist.addArrive:
	case <-time.After(5 * time.Second):
		t.Fatal("no add started")
	}
	close(playlist.addRelease)

	added := 0
	for i := 0; i < 2; i++ {
		if err := <-errs; err != nil {
			t.Fatalf("AddCurrent: %v", err)
		}
		outcome := <-outcomes
		if outcome.Added {
			added++
		} else if outcome.Reason != dedupe.ReasonRecentlyAdded {
			t.Fatalf("suppressed outcome has reason %q", outcome.Reason)
		}
	}
	if added == 0 {
		t.Fatal("one of the callers must report the add")
	}
	if calls := playlist.addCalls(); len(calls) != 1 {
		t.Fatalf("add calls = %v, want exactly one upstream add", calls)
	}
}

func TestAddCurrentFailedAddIsRetriable(t *testing.T) {
	playlist := &fakePlaylistAPI{addErr: stderrors.New("playlist rejected the add")}
	zones := &fakeZones{zones: []core.Zone{
		zoneWithURI("Living Room", "x-sonos-spotify:spotify%3atrack%3a4uLU6hMCjMI75M1A2tKUQC?sid=9"),
	}}
	s := newTestService(&fakePlayback{}, zones, playlist)
	ctx := context.Background()

	if _, err := s.AddCurrent(ctx, "", arbiter.ModeMusic); err == nil {
		t.Fatal("expected the add failure to surface")
	}

	// A failed add must not poison either cache tier.
	playlist.mu.Lock()
	playlist.addErr = nil
	playlist.mu.Unlock()

	outcome, err := s.AddCurrent(ctx, "", arbiter.ModeMusic)
	if err != nil {
		t.Fatalf("AddCurrent: %v", err)
	}
	if !outcome.Added {
		t.Fatalf("outcome = %+v, want a successful retry", outcome)
	}
}
