package server

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/tessro/riffd/internal/arbiter"
	"github.com/tessro/riffd/internal/bridge"
	"github.com/tessro/riffd/internal/errors"
	"github.com/tessro/riffd/internal/grouping"
)

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleAddCurrent(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	room := q.Get("room")
	mode := arbiter.ParseMode(q.Get("mode"))

	outcome, err := s.service.AddCurrent(r.Context(), room, mode)
	if err != nil {
		s.logger.Error("add current failed", "error", err)
		writeJSON(w, errors.HTTPStatus(err), map[string]interface{}{
			"added": false,
			"error": err.Error(),
		})
		return
	}
	writeJSON(w, http.StatusOK, outcome)
}

type nowPlayingResponse struct {
	Playing bool   `json:"playing"`
	Source  string `json:"source,omitempty"`
	TrackID string `json:"trackId,omitempty"`
	Title   string `json:"title,omitempty"`
	Artist  string `json:"artist,omitempty"`
	Zone    string `json:"zone,omitempty"`
	Reason  string `json:"reason,omitempty"`
}

func (s *Server) handleNowPlaying(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	room := q.Get("room")
	mode := arbiter.ParseMode(q.Get("mode"))

	resolved, err := s.resolver.Resolve(r.Context(), room, mode)
	if err != nil {
		if reason, ok := errors.IsNotActionable(err); ok {
			writeJSON(w, http.StatusOK, nowPlayingResponse{Reason: reason})
			return
		}
		s.logger.Error("now playing failed", "error", err)
		writeJSON(w, errors.HTTPStatus(err), map[string]interface{}{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, nowPlayingResponse{
		Playing: true,
		Source:  string(resolved.Source),
		TrackID: resolved.TrackID,
		Title:   resolved.Title,
		Artist:  resolved.Artist,
		Zone:    resolved.Zone,
	})
}

type groupResponse struct {
	OK bool `json:"ok"`
	*grouping.Result
}

func (s *Server) handleGroup(w http.ResponseWriter, r *http.Request) {
	req, err := parseGroupRequest(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]interface{}{"ok": false, "error": err.Error()})
		return
	}

	res, err := s.groups.Group(r.Context(), req)
	if err != nil {
		s.logger.Error("grouping failed", "error", err)
		writeJSON(w, errors.HTTPStatus(err), map[string]interface{}{"ok": false, "error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, groupResponse{OK: true, Result: res})
}

func (s *Server) handleConnect(w http.ResponseWriter, r *http.Request) {
	req, err := parseConnectRequest(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]interface{}{"ok": false, "error": err.Error()})
		return
	}

	outcome, err := s.connector.Connect(r.Context(), req)
	if err != nil {
		s.logger.Error("connect failed", "error", err)
		writeJSON(w, errors.HTTPStatus(err), map[string]interface{}{"ok": false, "error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, outcome)
}

func (s *Server) handleTrack(w http.ResponseWriter, r *http.Request) {
	track, err := s.tracks.GetTrack(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, errors.HTTPStatus(err), map[string]interface{}{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, track)
}

// parseGroupRequest accepts both query parameters and a JSON body. Rooms
// may be repeated parameters or comma-separated; volumes either one level
// for every room (vol) or room:level pairs (volumes).
func parseGroupRequest(r *http.Request) (grouping.Request, error) {
	var req grouping.Request

	if hasJSONBody(r) {
		var body struct {
			Rooms     []string       `json:"rooms"`
			Preferred string         `json:"preferred"`
			Mode      string         `json:"mode"`
			Volumes   map[string]int `json:"volumes"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			return req, fmt.Errorf("invalid JSON body: %v", err)
		}
		req.Rooms = body.Rooms
		req.PreferredRoom = body.Preferred
		req.Mode = arbiter.ParseMode(body.Mode)
		req.Volumes = body.Volumes
	}

	q := r.URL.Query()
	if rooms := splitRooms(q["rooms"]); len(rooms) > 0 {
		req.Rooms = rooms
	}
	if preferred := q.Get("preferred"); preferred != "" {
		req.PreferredRoom = preferred
	}
	if mode := q.Get("mode"); mode != "" {
		req.Mode = arbiter.ParseMode(mode)
	}
	if raw := q.Get("volumes"); raw != "" {
		volumes, err := parseVolumePairs(raw)
		if err != nil {
			return req, err
		}
		req.Volumes = volumes
	}
	if raw := q.Get("vol"); raw != "" {
		level, err := strconv.Atoi(raw)
		if err != nil {
			return req, fmt.Errorf("vol: %v", err)
		}
		if req.Volumes == nil {
			req.Volumes = make(map[string]int, len(req.Rooms))
		}
		for _, room := range req.Rooms {
			if _, ok := req.Volumes[room]; !ok {
				req.Volumes[room] = level
			}
		}
	}

	if len(req.Rooms) == 0 && len(req.Volumes) == 0 {
		return req, fmt.Errorf("no rooms or volumes requested")
	}
	return req, nil
}

func parseConnectRequest(r *http.Request) (bridge.ConnectRequest, error) {
	var req bridge.ConnectRequest

	if hasJSONBody(r) {
		var body struct {
			URI        string         `json:"uri"`
			Playlist   string         `json:"playlist"`
			Device     string         `json:"device"`
			DeviceID   string         `json:"device_id"`
			Preset     string         `json:"preset"`
			Shuffle    *bool          `json:"shuffle"`
			PositionMS int            `json:"position_ms"`
			Rooms      []string       `json:"rooms"`
			Volumes    map[string]int `json:"volumes"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			return req, fmt.Errorf("invalid JSON body: %v", err)
		}
		req.URI = normalizeContextURI(body.URI, body.Playlist)
		req.Device = firstNonEmpty(body.Device, body.DeviceID)
		req.Preset = body.Preset
		req.Shuffle = body.Shuffle
		req.PositionMS = body.PositionMS
		req.Rooms = body.Rooms
		req.Volumes = body.Volumes
	}

	q := r.URL.Query()
	if uri := normalizeContextURI(q.Get("uri"), q.Get("playlist")); uri != "" {
		req.URI = uri
	}
	if device := firstNonEmpty(q.Get("device"), q.Get("device_id")); device != "" {
		req.Device = device
	}
	if preset := q.Get("preset"); preset != "" {
		req.Preset = preset
	}
	if raw := q.Get("shuffle"); raw != "" {
		shuffle, err := strconv.ParseBool(raw)
		if err != nil {
			return req, fmt.Errorf("shuffle: %v", err)
		}
		req.Shuffle = &shuffle
	}
	if raw := q.Get("position_ms"); raw != "" {
		position, err := strconv.Atoi(raw)
		if err != nil {
			return req, fmt.Errorf("position_ms: %v", err)
		}
		req.PositionMS = position
	}
	if rooms := splitRooms(q["rooms"]); len(rooms) > 0 {
		req.Rooms = rooms
	}
	if raw := q.Get("volumes"); raw != "" {
		volumes, err := parseVolumePairs(raw)
		if err != nil {
			return req, err
		}
		req.Volumes = volumes
	}

	if req.URI == "" && req.Preset == "" {
		return req, fmt.Errorf("uri, playlist, or preset required")
	}
	return req, nil
}

func hasJSONBody(r *http.Request) bool {
	return r.Method == http.MethodPost &&
		strings.Contains(r.Header.Get("Content-Type"), "application/json")
}

func splitRooms(raw []string) []string {
	var rooms []string
	for _, chunk := range raw {
		for _, room := range strings.Split(chunk, ",") {
			if room = strings.TrimSpace(room); room != "" {
				rooms = append(rooms, room)
			}
		}
	}
	return rooms
}

func parseVolumePairs(raw string) (map[string]int, error) {
	volumes := make(map[string]int)
	for _, pair := range strings.Split(raw, ",") {
		pair = strings.TrimSpace(pair)
		if pair == "" {
			continue
		}
		room, level, found := strings.Cut(pair, ":")
		if !found {
			return nil, fmt.Errorf("volume %q is not room:level", pair)
		}
		n, err := strconv.Atoi(strings.TrimSpace(level))
		if err != nil {
			return nil, fmt.Errorf("volume for %q: %v", room, err)
		}
		volumes[strings.TrimSpace(room)] = n
	}
	return volumes, nil
}

// normalizeContextURI prefers an explicit URI; a bare playlist ID becomes
// a playlist context URI so shortcuts can pass just the ID.
func normalizeContextURI(uri, playlist string) string {
	if uri != "" {
		return uri
	}
	if playlist == "" {
		return ""
	}
	if strings.Contains(playlist, ":") {
		return playlist
	}
	return "spotify:playlist:" + playlist
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
