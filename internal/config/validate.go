package config

import (
	"errors"
	"fmt"
	"net/url"
)

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	var errs []error

	if err := c.Sonos.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("sonos: %w", err))
	}
	if err := c.Dedupe.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("dedupe: %w", err))
	}
	if err := c.Grouping.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("grouping: %w", err))
	}
	if err := c.Log.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("log: %w", err))
	}
	for name, preset := range c.Presets {
		if err := preset.Validate(); err != nil {
			errs = append(errs, fmt.Errorf("presets.%s: %w", name, err))
		}
	}

	return errors.Join(errs...)
}

// Validate checks SonosConfig for errors.
func (c *SonosConfig) Validate() error {
	if c.GatewayURL != "" {
		u, err := url.Parse(c.GatewayURL)
		if err != nil {
			return fmt.Errorf("invalid gateway_url: %w", err)
		}
		if u.Scheme != "http" && u.Scheme != "https" {
			return fmt.Errorf("invalid gateway_url scheme: %s (must be http or https)", u.Scheme)
		}
	}
	return nil
}

// Validate checks DedupeConfig for errors.
func (c *DedupeConfig) Validate() error {
	switch c.Scope {
	case "", "recent", "all":
		// valid
	default:
		return fmt.Errorf("invalid scope: %s (must be recent or all)", c.Scope)
	}
	if c.Window < 0 {
		return errors.New("window must be non-negative")
	}
	if c.Scope == "recent" && c.Window == 0 {
		return errors.New("window must be positive when scope is recent")
	}
	if c.CacheTTLHours < 0 {
		return errors.New("cache_ttl_hours must be non-negative")
	}
	return nil
}

// Validate checks GroupingConfig for errors.
func (c *GroupingConfig) Validate() error {
	if c.SettleMS < 0 {
		return errors.New("settle_ms must be non-negative")
	}
	return nil
}

// Validate checks LogConfig for errors.
func (c *LogConfig) Validate() error {
	switch c.Level {
	case "", "debug", "info", "warn", "error":
		// valid
	default:
		return fmt.Errorf("invalid log level: %s (must be debug, info, warn, or error)", c.Level)
	}
	return nil
}

// Validate checks PresetConfig for errors.
func (c *PresetConfig) Validate() error {
	if c.URI == "" && len(c.Rooms) == 0 && len(c.Volumes) == 0 {
		return errors.New("preset must set a uri, rooms, or volumes")
	}
	for room, vol := range c.Volumes {
		if vol < 0 || vol > 100 {
			return fmt.Errorf("volume for %s must be between 0 and 100", room)
		}
	}
	return nil
}
