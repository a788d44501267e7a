// Package main provides the server entry point.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/alecthomas/kingpin/v2"
	"github.com/joho/godotenv"
	zlog "github.com/rs/zerolog/log"

	"aircast/internal/api"
	"aircast/internal/app/broadcast"
	"aircast/internal/app/feeder"
	"aircast/internal/app/playlist"
	"aircast/internal/app/status"
	"aircast/internal/infra/config"
	"aircast/internal/infra/ledger"
	"aircast/internal/infra/liquidsoap"
	"aircast/internal/infra/logger"
	"aircast/internal/infra/shoutcast"
)

var (
	app        = kingpin.New("aircast-server", "aircast broadcast control plane")
	configPath = app.Flag("config", "Path to config file").Default("config/server.yaml").String()
	verbose    = app.Flag("verbose", "Enable verbose (DEBUG) logging").Short('v').Bool()
	logfile    = app.Flag("logfile", "Path to log file (default: stdout)").String()
)

func main() {
	// Load .env file if it exists (errors are ignored)
	_ = godotenv.Load()

	kingpin.MustParse(app.Parse(os.Args[1:]))

	loggerConfig := logger.Config{
		Output: "stdout",
		Level:  "info",
	}
	if *verbose {
		loggerConfig.Level = "debug"
	}
	if *logfile != "" {
		loggerConfig.Output = *logfile
	}
	if err := logger.Init(loggerConfig); err != nil {
		panic(fmt.Sprintf("Failed to initialize logger: %v", err))
	}

	zlog.Info().Msgf("Loading config from %s", *configPath)
	cfg, err := config.Load(*configPath)
	if err != nil {
		zlog.Fatal().Msgf("Failed to load config: %v", err)
	}

	if err := run(cfg); err != nil {
		zlog.Error().Msgf("Server error: %v", err)
		os.Exit(1)
	}
}

// run executes the main server logic. Using a separate function ensures
// defer statements are executed even when returning with an error.
func run(cfg *config.Config) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	store, err := ledger.Open(cfg.Ledger.Path)
	if err != nil {
		return fmt.Errorf("failed to open queue ledger: %w", err)
	}
	defer func() {
		if err := store.Close(); err != nil {
			zlog.Error().Msgf("Failed to close queue ledger: %v", err)
		}
	}()

	engine := liquidsoap.New(liquidsoap.Config{
		Addr:        cfg.Engine.Addr,
		Timeout:     cfg.Engine.CommandTimeout(),
		PlaybackVar: cfg.Engine.PlaybackVar,
	})

	feed := feeder.New(engine, store, feeder.Config{
		Interval: cfg.Feeder.Interval(),
	})

	playlistSvc := playlist.New(store, engine, feed, playlist.Config{
		Libraries:   cfg.Libraries,
		GraceWindow: cfg.Feeder.GraceWindow(),
	})

	statsClient := shoutcast.New(shoutcast.Config{
		URL:     cfg.Stats.URL,
		Timeout: cfg.Stats.FetchTimeout(),
	})
	statusCache := status.New(statsClient, cfg.Stats.CacheTTL())

	bridge := broadcast.NewBridge(broadcast.NewRegistry(), cfg.Ingest)

	apiServer := api.New(playlistSvc, statusCache, bridge.HandleWS)
	server := &http.Server{
		Addr:    cfg.Server.Addr,
		Handler: apiServer.Router(),
	}

	// Start the feeder loop
	go feed.Run(ctx)

	serverErrCh := make(chan error, 1)
	go func() {
		zlog.Info().Msgf("Starting server: addr=%s", cfg.Server.Addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverErrCh <- err
		}
	}()

	// Wait for shutdown signal or server error
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-sigCh:
		zlog.Info().Msg("Received shutdown signal...")
	case err := <-serverErrCh:
		return fmt.Errorf("server error: %w", err)
	}

	// Stop the feeder before the server so no pushes race the shutdown
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		zlog.Error().Msgf("Failed to shutdown server: %v", err)
	}

	zlog.Info().Msg("Server stopped")
	return nil
}
