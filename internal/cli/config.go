package cli

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
	"github.com/spf13/cobra"

	"github.com/tessro/riffd/internal/config"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Inspect and scaffold configuration",
	Long:  `Commands for viewing, validating, and bootstrapping riffd configuration.`,
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the effective configuration",
	Long:  `Prints the merged configuration (file, defaults, environment) with secrets redacted.`,
	RunE:  runConfigShow,
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a starter configuration file",
	Long:  `Create a new configuration file with default values.`,
	RunE:  runConfigInit,
}

var configCheckCmd = &cobra.Command{
	Use:   "check",
	Short: "Validate the configuration",
	Long:  `Loads and validates the configuration, then reports settings the HTTP surface needs but does not have.`,
	RunE:  runConfigCheck,
}

func init() {
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configCheckCmd)
	rootCmd.AddCommand(configCmd)
}

func runConfigShow(cmd *cobra.Command, args []string) error {
	shown := *cfg
	shown.Spotify.ClientSecret = redact(shown.Spotify.ClientSecret)
	shown.Spotify.RefreshToken = redact(shown.Spotify.RefreshToken)

	if JSONOutput() {
		return json.NewEncoder(os.Stdout).Encode(shown)
	}

	encoder := toml.NewEncoder(os.Stdout)
	encoder.Indent = "  "
	return encoder.Encode(shown)
}

func redact(s string) string {
	if s == "" {
		return ""
	}
	return "<set>"
}

func runConfigInit(cmd *cobra.Command, args []string) error {
	path := configInitPath()

	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config file already exists at %s", path)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create config file: %w", err)
	}
	defer func() { _ = f.Close() }()

	_, _ = fmt.Fprintln(f, "# riffd configuration")
	_, _ = fmt.Fprintln(f, "# https://github.com/tessro/riffd")
	_, _ = fmt.Fprintln(f, "")

	encoder := toml.NewEncoder(f)
	encoder.Indent = "  "
	if err := encoder.Encode(config.Default()); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}

	if JSONOutput() {
		return json.NewEncoder(os.Stdout).Encode(map[string]string{
			"status": "created",
			"path":   path,
		})
	}

	fmt.Printf("Created config file: %s\n", path)
	fmt.Println("\nNext steps:")
	fmt.Println("  1. Set spotify.client_id and spotify.client_secret")
	fmt.Println("  2. Run 'riffd auth' to obtain a refresh token")
	fmt.Println("  3. Set spotify.playlist_id to the playlist additions should target")
	return nil
}

// configInitPath is where config init writes: the --config path when given,
// else the XDG location the loader searches.
func configInitPath() string {
	if cfgFile != "" {
		return cfgFile
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return ".riffdrc"
	}

	xdg := os.Getenv("XDG_CONFIG_HOME")
	if xdg == "" {
		xdg = filepath.Join(home, ".config")
	}
	return filepath.Join(xdg, "riffd", "config.toml")
}

func runConfigCheck(cmd *cobra.Command, args []string) error {
	// Load and Validate already ran in the pre-run hook; reaching this
	// point means the file parses and passes validation.
	var warnings []string
	if cfg.Spotify.ClientID == "" || cfg.Spotify.ClientSecret == "" || cfg.Spotify.RefreshToken == "" {
		warnings = append(warnings, "spotify credentials incomplete; Spotify-backed routes will return 503")
	}
	if cfg.Spotify.PlaylistID == "" {
		warnings = append(warnings, "spotify.playlist_id not set; /add-current-smart will return 503")
	}

	if JSONOutput() {
		return json.NewEncoder(os.Stdout).Encode(map[string]interface{}{
			"valid":    true,
			"warnings": warnings,
		})
	}

	fmt.Println("Configuration OK")
	for _, w := range warnings {
		fmt.Printf("  warning: %s\n", w)
	}
	return nil
}
