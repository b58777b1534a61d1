// Package grouping joins rooms into a speaker group and applies per-room
// volume. Joins are paced because the speaker mesh drops topology changes
// issued back to back; volume calls are independent and run concurrently.
package grouping

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/tessro/riffd/internal/arbiter"
	"github.com/tessro/riffd/internal/core"
)

// DefaultSettle is the pause between consecutive join calls.
const DefaultSettle = 1000 * time.Millisecond

// RoomControl is the slice of the speaker gateway the orchestrator needs.
type RoomControl interface {
	Zones(ctx context.Context) ([]core.Zone, error)
	Join(ctx context.Context, room, coordinator string) error
	SetVolume(ctx context.Context, room string, volume int) error
}

// Request describes one grouping operation.
type Request struct {
	Rooms         []string
	PreferredRoom string
	Mode          arbiter.Mode
	Volumes       map[string]int
}

// RoomError reports a per-room failure.
type RoomError struct {
	Room  string `json:"room"`
	Error string `json:"error"`
}

// Result reports what the orchestrator actually did. Partial failure is a
// normal outcome; callers inspect the per-room lists.
type Result struct {
	Coordinator   string      `json:"coordinator"`
	Joined        []string    `json:"joined"`
	Failed        []RoomError `json:"failed"`
	VolumesSet    []string    `json:"volumes_set"`
	VolumesFailed []RoomError `json:"volumes_failed"`
	ActiveZone    bool        `json:"active_zone"`
}

// Orchestrator sequences grouping operations against the speaker mesh.
type Orchestrator struct {
	sonos   RoomControl
	settle  time.Duration
	logFunc func(format string, args ...interface{})
}

// NewOrchestrator creates an orchestrator. A non-positive settle falls
// back to the default pacing.
func NewOrchestrator(sonos RoomControl, settle time.Duration) *Orchestrator {
	if settle <= 0 {
		settle = DefaultSettle
	}
	return &Orchestrator{
		sonos:   sonos,
		settle:  settle,
		logFunc: func(string, ...interface{}) {},
	}
}

// SetLogFunc installs a debug logging function.
func (o *Orchestrator) SetLogFunc(logFunc func(format string, args ...interface{})) {
	if logFunc != nil {
		o.logFunc = logFunc
	}
}

// Group resolves a coordinator, joins the requested rooms to it one at a
// time, and applies the requested volumes concurrently. Join failures are
// recorded per room and never abort the remaining rooms.
func (o *Orchestrator) Group(ctx context.Context, req Request) (*Result, error) {
	zones, err := o.sonos.Zones(ctx)
	if err != nil {
		return nil, err
	}

	active := arbiter.SelectActiveZone(zones, req.PreferredRoom, req.Mode)

	// Grouping onto whatever is already playing keeps the music going;
	// otherwise the caller's preference or first room anchors the group.
	var coordinator string
	switch {
	case active != nil:
		coordinator = active.Coordinator().Room
	case req.PreferredRoom != "":
		coordinator = req.PreferredRoom
	case len(req.Rooms) > 0:
		coordinator = req.Rooms[0]
	}

	res := &Result{
		Coordinator:   coordinator,
		Joined:        []string{},
		Failed:        []RoomError{},
		VolumesSet:    []string{},
		VolumesFailed: []RoomError{},
		ActiveZone:    active != nil,
	}

	grouped := make(map[string]bool)
	for _, z := range zones {
		if z.HasRoom(coordinator) {
			for _, room := range z.Rooms() {
				grouped[strings.ToLower(room)] = true
			}
			break
		}
	}

	limiter := rate.NewLimiter(rate.Every(o.settle), 1)
	for _, room := range req.Rooms {
		if strings.EqualFold(room, coordinator) {
			continue
		}
		if grouped[strings.ToLower(room)] {
			o.logFunc("%s already grouped with %s", room, coordinator)
			continue
		}
		if err := limiter.Wait(ctx); err != nil {
			res.Failed = append(res.Failed, RoomError{Room: room, Error: err.Error()})
			continue
		}
		o.logFunc("joining %s to %s", room, coordinator)
		if err := o.sonos.Join(ctx, room, coordinator); err != nil {
			res.Failed = append(res.Failed, RoomError{Room: room, Error: err.Error()})
			continue
		}
		res.Joined = append(res.Joined, room)
	}

	o.setVolumes(ctx, req.Volumes, res)
	return res, nil
}

// setVolumes issues every volume call concurrently and sorts the outcomes
// so responses are stable.
func (o *Orchestrator) setVolumes(ctx context.Context, volumes map[string]int, res *Result) {
	if len(volumes) == 0 {
		return
	}

	type outcome struct {
		room string
		err  error
	}
	outcomes := make(chan outcome, len(volumes))

	var wg sync.WaitGroup
	for room, level := range volumes {
		wg.Add(1)
		go func() {
			defer wg.Done()
			o.logFunc("setting %s volume to %d", room, level)
			outcomes <- outcome{room: room, err: o.sonos.SetVolume(ctx, room, level)}
		}()
	}
	wg.Wait()
	close(outcomes)

	for oc := range outcomes {
		if oc.err != nil {
			res.VolumesFailed = append(res.VolumesFailed, RoomError{Room: oc.room, Error: oc.err.Error()})
			continue
		}
		res.VolumesSet = append(res.VolumesSet, oc.room)
	}

	sort.Strings(res.VolumesSet)
	sort.Slice(res.VolumesFailed, func(i, j int) bool {
		return res.VolumesFailed[i].Room < res.VolumesFailed[j].Room
	})
}
