package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/tessro/riffd/internal/arbiter"
	"github.com/tessro/riffd/internal/bridge"
	"github.com/tessro/riffd/internal/errors"
)

var (
	statusRoom string
	statusMode string
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show what the bridge considers now playing",
	Long: `Resolves the current track the same way /add-current-smart does:
account playback first, then the arbitrated speaker zone.`,
	RunE: runStatus,
}

func init() {
	statusCmd.Flags().StringVar(&statusRoom, "room", "", "preferred room for zone arbitration")
	statusCmd.Flags().StringVar(&statusMode, "mode", "music", "source filter (music or any)")
	rootCmd.AddCommand(statusCmd)
}

func runStatus(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithTimeout(cmd.Context(), 15*time.Second)
	defer cancel()

	logger := newLogger()
	spot, mesh := buildClients(logger)
	resolver := bridge.NewResolver(spot, mesh)
	resolver.SetLogFunc(logger.Debugf)

	room := statusRoom
	if room == "" {
		room = cfg.Sonos.DefaultRoom
	}

	resolved, err := resolver.Resolve(ctx, room, arbiter.ParseMode(statusMode))
	if err != nil {
		if reason, ok := errors.IsNotActionable(err); ok {
			if JSONOutput() {
				return json.NewEncoder(os.Stdout).Encode(map[string]interface{}{
					"playing": false,
					"reason":  reason,
				})
			}
			fmt.Println(reason)
			return nil
		}
		return err
	}

	if JSONOutput() {
		return json.NewEncoder(os.Stdout).Encode(map[string]interface{}{
			"playing": true,
			"source":  string(resolved.Source),
			"trackId": resolved.TrackID,
			"title":   resolved.Title,
			"artist":  resolved.Artist,
			"zone":    resolved.Zone,
		})
	}

	fmt.Printf("%s - %s [%s]\n", resolved.Artist, resolved.Title, resolved.Source)
	if resolved.Zone != "" {
		fmt.Printf("  zone:  %s\n", resolved.Zone)
	}
	fmt.Printf("  track: %s\n", resolved.TrackID)
	return nil
}
