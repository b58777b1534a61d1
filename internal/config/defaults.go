package config

// Default returns a Config populated with sensible defaults.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Addr: ":8077",
		},
		Sonos: SonosConfig{
			GatewayURL: "http://localhost:5005",
		},
		Dedupe: DedupeConfig{
			Scope:         "recent",
			Window:        250,
			CacheTTLHours: 168,
		},
		Grouping: GroupingConfig{
			SettleMS: 1000,
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

// ApplyDefaults fills in zero values with sensible defaults.
func (c *Config) ApplyDefaults() {
	d := Default()

	// Server
	if c.Server.Addr == "" {
		c.Server.Addr = d.Server.Addr
	}

	// Sonos
	if c.Sonos.GatewayURL == "" {
		c.Sonos.GatewayURL = d.Sonos.GatewayURL
	}

	// Dedupe
	if c.Dedupe.Scope == "" {
		c.Dedupe.Scope = d.Dedupe.Scope
	}
	if c.Dedupe.Window == 0 {
		c.Dedupe.Window = d.Dedupe.Window
	}
	if c.Dedupe.CacheTTLHours == 0 {
		c.Dedupe.CacheTTLHours = d.Dedupe.CacheTTLHours
	}

	// Grouping
	if c.Grouping.SettleMS == 0 {
		c.Grouping.SettleMS = d.Grouping.SettleMS
	}

	// Log
	if c.Log.Level == "" {
		c.Log.Level = d.Log.Level
	}
}
