package bridge

import (
	"context"
	"fmt"
	"strings"

	"github.com/tessro/riffd/internal/arbiter"
	"github.com/tessro/riffd/internal/config"
	"github.com/tessro/riffd/internal/errors"
	"github.com/tessro/riffd/internal/grouping"
	"github.com/tessro/riffd/internal/spotify/client"
)

// ConnectRequest describes a playback start: what to play, where, and
// optionally which rooms to group first. A preset fills in any field the
// request leaves blank.
type ConnectRequest struct {
	URI        string
	Device     string
	Preset     string
	Shuffle    *bool
	PositionMS int
	Rooms      []string
	Volumes    map[string]int
}

// ConnectOutcome reports what a connect actually did.
type ConnectOutcome struct {
	OK       bool             `json:"ok"`
	URI      string           `json:"uri,omitempty"`
	Device   string           `json:"device,omitempty"`
	DeviceID string           `json:"device_id,omitempty"`
	Shuffle  *bool            `json:"shuffle,omitempty"`
	Grouping *grouping.Result `json:"grouping,omitempty"`
}

// Connector starts account-side playback on a resolved device, grouping
// rooms beforehand when asked.
type Connector struct {
	devices  DeviceController
	grouping *grouping.Orchestrator
	presets  map[string]config.PresetConfig
	logFunc  func(format string, args ...interface{})
}

// NewConnector wires the connect flow together.
func NewConnector(devices DeviceController, orchestrator *grouping.Orchestrator, presets map[string]config.PresetConfig) *Connector {
	return &Connector{
		devices:  devices,
		grouping: orchestrator,
		presets:  presets,
		logFunc:  func(string, ...interface{}) {},
	}
}

// SetLogFunc installs a debug logging function.
func (c *Connector) SetLogFunc(logFunc func(format string, args ...interface{})) {
	if logFunc != nil {
		c.logFunc = logFunc
	}
}

// Connect groups any requested rooms, resolves the target device, and
// starts playback. Grouping failures are logged but never block playback;
// the rooms can always be regrouped afterwards.
func (c *Connector) Connect(ctx context.Context, req ConnectRequest) (*ConnectOutcome, error) {
	if req.Preset != "" {
		preset, ok := c.presets[req.Preset]
		if !ok {
			return nil, fmt.Errorf("%q: %w", req.Preset, errors.ErrUnknownPreset)
		}
		req = mergePreset(req, preset)
	}

	outcome := &ConnectOutcome{URI: req.URI}

	if len(req.Rooms) > 0 || len(req.Volumes) > 0 {
		var preferred string
		if len(req.Rooms) > 0 {
			preferred = req.Rooms[0]
		}
		res, err := c.grouping.Group(ctx, grouping.Request{
			Rooms:         req.Rooms,
			PreferredRoom: preferred,
			Mode:          arbiter.ModeMusic,
			Volumes:       req.Volumes,
		})
		if err != nil {
			c.logFunc("grouping before connect failed: %v", err)
		} else {
			outcome.Grouping = res
		}
	}

	var deviceID string
	if req.Device != "" {
		devices, err := c.devices.GetDevices(ctx)
		if err != nil {
			return nil, err
		}
		dev := findDevice(devices, req.Device)
		if dev == nil {
			return nil, fmt.Errorf("%q: %w", req.Device, errors.ErrDeviceNotFound)
		}
		deviceID = dev.ID
		outcome.Device = dev.Name
		outcome.DeviceID = dev.ID
	}

	opts := &client.PlayOptions{PositionMS: req.PositionMS}
	if strings.HasPrefix(req.URI, "spotify:track:") {
		opts.URIs = []string{req.URI}
	} else {
		opts.ContextURI = req.URI
	}
	if err := c.devices.Play(ctx, deviceID, opts); err != nil {
		return nil, err
	}
	c.logFunc("playing %s on %q", req.URI, req.Device)

	// Shuffle needs an active device, so it follows the play call.
	if req.Shuffle != nil {
		if err := c.devices.SetShuffle(ctx, *req.Shuffle, deviceID); err != nil {
			c.logFunc("set shuffle failed: %v", err)
		} else {
			outcome.Shuffle = req.Shuffle
		}
	}

	outcome.OK = true
	return outcome, nil
}

// mergePreset fills blank request fields from the preset.
func mergePreset(req ConnectRequest, preset config.PresetConfig) ConnectRequest {
	if req.URI == "" {
		req.URI = preset.URI
	}
	if req.Device == "" {
		req.Device = preset.Device
	}
	if len(req.Rooms) == 0 {
		req.Rooms = preset.Rooms
	}
	if len(req.Volumes) == 0 {
		req.Volumes = preset.Volumes
	}
	if req.Shuffle == nil {
		shuffle := preset.Shuffle
		req.Shuffle = &shuffle
	}
	return req
}

// findDevice matches by exact ID first, then case-insensitive name.
func findDevice(devices []client.Device, nameOrID string) *client.Device {
	for i := range devices {
		if devices[i].ID == nameOrID {
			return &devices[i]
		}
	}
	for i := range devices {
		if strings.EqualFold(devices[i].Name, nameOrID) {
			return &devices[i]
		}
	}
	return nil
}
