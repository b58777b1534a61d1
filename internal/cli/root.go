package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/tessro/riffd/internal/config"
)

var (
	cfgFile  string
	addrFlag string
	jsonOut  bool
	verbose  bool

	cfg *config.Config
)

var rootCmd = &cobra.Command{
	Use:   "riffd",
	Short: "Bridge a Spotify account and a Sonos mesh behind one HTTP surface",
	Long: `Riffd is a headless home-audio bridge. It serves a small LAN HTTP API
for shortcuts and wall-mounted controllers: add the currently playing
track to a playlist without duplicates, group rooms and set volumes,
start playback on a named device, and read the resolved now-playing
state.

Running riffd with no subcommand starts the daemon.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return initConfig()
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServe(cmd.Context())
	},
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file (default: ~/.riffdrc)")
	rootCmd.PersistentFlags().BoolVarP(&jsonOut, "json", "j", false, "output as JSON")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
	rootCmd.Flags().StringVar(&addrFlag, "addr", "", "listen address (overrides server.addr)")
}

func initConfig() error {
	var err error
	if cfgFile != "" {
		cfg, err = config.LoadFrom(cfgFile)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	return nil
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// JSONOutput returns true if JSON output is requested.
func JSONOutput() bool {
	return jsonOut
}

// Verbose returns true if verbose output is requested.
func Verbose() bool {
	return verbose
}
