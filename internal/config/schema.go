package config

// Config is the root configuration structure.
type Config struct {
	Server   ServerConfig            `toml:"server"`
	Spotify  SpotifyConfig           `toml:"spotify"`
	Sonos    SonosConfig             `toml:"sonos"`
	Dedupe   DedupeConfig            `toml:"dedupe"`
	Grouping GroupingConfig          `toml:"grouping"`
	Log      LogConfig               `toml:"log"`
	Presets  map[string]PresetConfig `toml:"presets"`
}

// ServerConfig holds HTTP listener settings.
type ServerConfig struct {
	Addr string `toml:"addr"`
}

// SpotifyConfig holds Spotify API credentials and the destination playlist.
type SpotifyConfig struct {
	ClientID     string `toml:"client_id"`
	ClientSecret string `toml:"client_secret"`
	RefreshToken string `toml:"refresh_token"`
	PlaylistID   string `toml:"playlist_id"`
}

// SonosConfig holds speaker-mesh gateway settings.
type SonosConfig struct {
	GatewayURL  string `toml:"gateway_url"`
	DefaultRoom string `toml:"default_room"`
}

// DedupeConfig controls the duplicate-suppression caches.
type DedupeConfig struct {
	// Scope is how much of the playlist duplicate checks consider:
	// "recent" scans only the newest window of entries, "all" scans the
	// entire playlist.
	Scope         string `toml:"scope"`
	Window        int    `toml:"window"`
	CacheTTLHours int    `toml:"cache_ttl_hours"`
}

// GroupingConfig controls multi-room join behavior.
type GroupingConfig struct {
	// SettleMS is the pause between sequential join calls. The mesh drops
	// topology changes issued back to back.
	SettleMS int `toml:"settle_ms"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level string `toml:"level"`
}

// PresetConfig is a named playback target: a Spotify context to start, the
// Connect device to start it on, and the rooms to group first.
type PresetConfig struct {
	URI     string         `toml:"uri"`
	Device  string         `toml:"device"`
	Rooms   []string       `toml:"rooms"`
	Volumes map[string]int `toml:"volumes"`
	Shuffle bool           `toml:"shuffle"`
}
