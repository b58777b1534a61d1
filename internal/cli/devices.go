package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
)

var devicesCmd = &cobra.Command{
	Use:   "devices",
	Short: "List Spotify Connect devices",
	Long:  `Lists the playback devices visible to the configured Spotify account.`,
	RunE:  runDevices,
}

var zonesCmd = &cobra.Command{
	Use:   "zones",
	Short: "List speaker mesh zones",
	Long:  `Lists the zone topology reported by the speaker gateway.`,
	RunE:  runZones,
}

func init() {
	rootCmd.AddCommand(devicesCmd)
	rootCmd.AddCommand(zonesCmd)
}

func runDevices(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithTimeout(cmd.Context(), 15*time.Second)
	defer cancel()

	spot, _ := buildClients(newLogger())
	devices, err := spot.GetDevices(ctx)
	if err != nil {
		return err
	}

	if JSONOutput() {
		return json.NewEncoder(os.Stdout).Encode(devices)
	}

	if len(devices) == 0 {
		fmt.Println("No devices found. Open Spotify on at least one device.")
		return nil
	}
	for _, d := range devices {
		active := ""
		if d.IsActive {
			active = " (active)"
		}
		fmt.Printf("%s  %s [%s]%s\n", d.ID, d.Name, d.Type, active)
	}
	return nil
}

func runZones(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithTimeout(cmd.Context(), 15*time.Second)
	defer cancel()

	_, mesh := buildClients(newLogger())
	zones, err := mesh.Zones(ctx)
	if err != nil {
		return err
	}

	if JSONOutput() {
		return json.NewEncoder(os.Stdout).Encode(zones)
	}

	if len(zones) == 0 {
		fmt.Println("No zones reported by the gateway.")
		return nil
	}
	for _, z := range zones {
		co := z.Coordinator()
		fmt.Printf("%s (%s)\n", co.Room, co.State)
		if co.CurrentTrack != nil && co.CurrentTrack.Title != "" {
			fmt.Printf("    %s - %s\n", co.CurrentTrack.Artist, co.CurrentTrack.Title)
		}
		for _, m := range z.Members {
			if m.Room == co.Room {
				continue
			}
			fmt.Printf("  + %s\n", m.Room)
		}
	}
	return nil
}
