package config

import (
	"os"
	"path/filepath"
	"strconv"

	"github.com/BurntSushi/toml"
)

// Load reads configuration from standard locations with environment overrides.
// Search order: ~/.riffdrc, $XDG_CONFIG_HOME/riffd/config.toml, ~/.config/riffd/config.toml
func Load() (*Config, error) {
	cfg := &Config{}

	// Try loading from file
	path := findConfigFile()
	if path != "" {
		if _, err := toml.DecodeFile(path, cfg); err != nil {
			return nil, err
		}
	}

	// Apply defaults, then environment variable overrides
	cfg.ApplyDefaults()
	applyEnvOverrides(cfg)

	return cfg, nil
}

// LoadFrom reads configuration from a specific file path.
func LoadFrom(path string) (*Config, error) {
	cfg := &Config{}
	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return nil, err
	}
	cfg.ApplyDefaults()
	applyEnvOverrides(cfg)
	return cfg, nil
}

// findConfigFile returns the first existing config file path.
func findConfigFile() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}

	paths := []string{
		filepath.Join(home, ".riffdrc"),
	}

	// XDG_CONFIG_HOME or default
	xdgConfig := os.Getenv("XDG_CONFIG_HOME")
	if xdgConfig == "" {
		xdgConfig = filepath.Join(home, ".config")
	}
	paths = append(paths, filepath.Join(xdgConfig, "riffd", "config.toml"))

	for _, p := range paths {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}

	return ""
}

// applyEnvOverrides applies environment variable overrides to the config.
func applyEnvOverrides(cfg *Config) {
	// Server
	if v := os.Getenv("RIFFD_ADDR"); v != "" {
		cfg.Server.Addr = v
	}

	// Spotify
	if v := os.Getenv("RIFFD_SPOTIFY_CLIENT_ID"); v != "" {
		cfg.Spotify.ClientID = v
	}
	if v := os.Getenv("RIFFD_SPOTIFY_CLIENT_SECRET"); v != "" {
		cfg.Spotify.ClientSecret = v
	}
	if v := os.Getenv("RIFFD_SPOTIFY_REFRESH_TOKEN"); v != "" {
		cfg.Spotify.RefreshToken = v
	}
	if v := os.Getenv("RIFFD_SPOTIFY_PLAYLIST_ID"); v != "" {
		cfg.Spotify.PlaylistID = v
	}

	// Sonos
	if v := os.Getenv("RIFFD_SONOS_GATEWAY_URL"); v != "" {
		cfg.Sonos.GatewayURL = v
	}
	if v := os.Getenv("RIFFD_SONOS_DEFAULT_ROOM"); v != "" {
		cfg.Sonos.DefaultRoom = v
	}

	// Dedupe
	if v := os.Getenv("RIFFD_DEDUPE_SCOPE"); v != "" {
		cfg.Dedupe.Scope = v
	}
	if v := os.Getenv("RIFFD_DEDUPE_WINDOW"); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			cfg.Dedupe.Window = i
		}
	}

	// Grouping
	if v := os.Getenv("RIFFD_GROUPING_SETTLE_MS"); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			cfg.Grouping.SettleMS = i
		}
	}

	// Log
	if v := os.Getenv("RIFFD_LOG_LEVEL"); v != "" {
		cfg.Log.Level = v
	}
}
