package bridge

import (
	"context"

	"golang.org/x/sync/singleflight"

	"github.com/tessro/riffd/internal/arbiter"
	"github.com/tessro/riffd/internal/dedupe"
	"github.com/tessro/riffd/internal/errors"
)

// AddOutcome is the add flow's response envelope.
type AddOutcome struct {
	Added   bool   `json:"added"`
	Source  string `json:"source,omitempty"`
	TrackID string `json:"trackId,omitempty"`
	Title   string `json:"title,omitempty"`
	Artist  string `json:"artist,omitempty"`
	Zone    string `json:"zone,omitempty"`
	Reason  string `json:"reason,omitempty"`
}

// Service runs the add-current flow: resolve, de-duplicate, commit,
// remember. Concurrent requests for the same identity share one in-flight
// add; the dedupe tiers only see completed adds, so without the guard two
// simultaneous requests for an untracked song could both pass the check.
type Service struct {
	resolver *Resolver
	engine   *dedupe.Engine
	playlist PlaylistWriter
	logFunc  func(format string, args ...interface{})

	flight singleflight.Group
}

// NewService wires the add flow together.
func NewService(resolver *Resolver, engine *dedupe.Engine, playlist PlaylistWriter) *Service {
	return &Service{
		resolver: resolver,
		engine:   engine,
		playlist: playlist,
		logFunc:  func(string, ...interface{}) {},
	}
}

// SetLogFunc installs a debug logging function.
func (s *Service) SetLogFunc(logFunc func(format string, args ...interface{})) {
	if logFunc != nil {
		s.logFunc = logFunc
	}
}

// AddCurrent resolves the current track and adds it to the playlist unless
// either dedupe tier already knows it. A NotActionable resolution is a
// normal outcome, reported with added=false and a reason.
func (s *Service) AddCurrent(ctx context.Context, preferredRoom string, mode arbiter.Mode) (*AddOutcome, error) {
	resolved, err := s.resolver.Resolve(ctx, preferredRoom, mode)
	if err != nil {
		if reason, ok := errors.IsNotActionable(err); ok {
			return &AddOutcome{Reason: reason}, nil
		}
		return nil, err
	}

	v, err, _ := s.flight.Do(string(resolved.Identity), func() (any, error) {
		return s.addResolved(ctx, resolved)
	})
	if err != nil {
		return nil, err
	}
	return v.(*AddOutcome), nil
}

func (s *Service) addResolved(ctx context.Context, resolved *ResolvedTrack) (*AddOutcome, error) {
	outcome := &AddOutcome{
		Source:  string(resolved.Source),
		TrackID: resolved.TrackID,
		Title:   resolved.Title,
		Artist:  resolved.Artist,
		Zone:    resolved.Zone,
	}

	handled, reason, err := s.engine.AlreadyHandled(ctx, resolved.Identity)
	if err != nil {
		return nil, err
	}
	if handled {
		outcome.Reason = reason
		return outcome, nil
	}

	if err := s.playlist.AddTrack(ctx, resolved.TrackID); err != nil {
		return nil, err
	}
	s.engine.Remember(resolved.Identity)
	s.logFunc("added %q by %q (%s)", resolved.Title, resolved.Artist, resolved.TrackID)

	outcome.Added = true
	return outcome, nil
}
