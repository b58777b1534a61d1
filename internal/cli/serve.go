package cli

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/charmbracelet/log"

	"github.com/tessro/riffd/internal/bridge"
	"github.com/tessro/riffd/internal/dedupe"
	"github.com/tessro/riffd/internal/grouping"
	"github.com/tessro/riffd/internal/server"
	"github.com/tessro/riffd/internal/sonos"
	"github.com/tessro/riffd/internal/spotify/auth"
	"github.com/tessro/riffd/internal/spotify/client"
)

// runServe assembles the bridge from config and serves until interrupted.
func runServe(ctx context.Context) error {
	logger := newLogger()
	spot, mesh := buildClients(logger)

	target := bridge.NewPlaylistTarget(spot, cfg.Spotify.PlaylistID)

	membership := dedupe.NewMembershipCache(target, dedupeScope())
	membership.SetTTL(time.Duration(cfg.Dedupe.CacheTTLHours) * time.Hour)
	engine := dedupe.NewEngine(dedupe.NewRecentAdds(), membership)
	engine.SetLogFunc(logger.Debugf)

	resolver := bridge.NewResolver(spot, mesh)
	resolver.SetLogFunc(logger.Debugf)

	service := bridge.NewService(resolver, engine, target)
	service.SetLogFunc(logger.Debugf)

	orchestrator := grouping.NewOrchestrator(mesh, time.Duration(cfg.Grouping.SettleMS)*time.Millisecond)
	orchestrator.SetLogFunc(logger.Debugf)

	connector := bridge.NewConnector(spot, orchestrator, cfg.Presets)
	connector.SetLogFunc(logger.Debugf)

	addr := cfg.Server.Addr
	if addrFlag != "" {
		addr = addrFlag
	}

	srv := server.New(server.Config{
		Addr:      addr,
		Logger:    logger,
		Service:   service,
		Connector: connector,
		Grouping:  orchestrator,
		Resolver:  resolver,
		Tracks:    spot,
	})

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()
	return srv.Run(ctx)
}

// buildClients constructs the upstream clients from config with debug
// logging attached.
func buildClients(logger *log.Logger) (*client.Client, *sonos.Client) {
	manager := auth.NewManager(auth.Credentials{
		ClientID:     cfg.Spotify.ClientID,
		ClientSecret: cfg.Spotify.ClientSecret,
		RefreshToken: cfg.Spotify.RefreshToken,
	})

	spot := client.New(manager)
	spot.SetLogFunc(logger.Debugf)

	mesh := sonos.NewClient(cfg.Sonos.GatewayURL)
	mesh.SetLogFunc(logger.Debugf)

	return spot, mesh
}

// newLogger builds the app logger from config; --verbose forces debug.
func newLogger() *log.Logger {
	logger := log.NewWithOptions(os.Stderr, log.Options{ReportTimestamp: true})
	level, err := log.ParseLevel(cfg.Log.Level)
	if err != nil {
		level = log.InfoLevel
	}
	if verbose {
		level = log.DebugLevel
	}
	logger.SetLevel(level)
	return logger
}

func dedupeScope() dedupe.Scope {
	if cfg.Dedupe.Scope == "all" {
		return dedupe.Scope{All: true}
	}
	return dedupe.Scope{Window: cfg.Dedupe.Window}
}
