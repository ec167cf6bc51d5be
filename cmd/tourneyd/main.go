package main

import (
	"context"
	"fmt"
	rand "math/rand/v2"
	"os"
	"os/signal"
	"syscall"

	"github.com/alecthomas/kong"
	"github.com/charmbracelet/log"
	"github.com/coder/quartz"
	"golang.org/x/sync/errgroup"

	"github.com/pokerforge/tourney/internal/broadcast"
	"github.com/pokerforge/tourney/internal/gameid"
	"github.com/pokerforge/tourney/internal/server"
	"github.com/pokerforge/tourney/internal/store"
	"github.com/pokerforge/tourney/internal/timer"
	"github.com/pokerforge/tourney/internal/tournament"
)

var CLI struct {
	Config   string `short:"c" long:"config" default:"tourney.hcl" help:"Path to HCL configuration file"`
	Addr     string `short:"a" long:"addr" help:"Client listen address (overrides config)"`
	LogLevel string `short:"l" long:"log-level" help:"Log level (overrides config)"`
	NoStore  bool   `long:"no-store" help:"Disable persistence"`
}

func main() {
	kctx := kong.Parse(&CLI)

	cfg, err := server.LoadConfig(CLI.Config)
	if err != nil {
		fmt.Printf("Error loading config: %v\n", err)
		kctx.Exit(1)
	}
	if CLI.Addr != "" {
		cfg.Server.Address = CLI.Addr
	}
	if CLI.LogLevel != "" {
		cfg.Server.LogLevel = CLI.LogLevel
	}
	if err := cfg.Validate(); err != nil {
		fmt.Printf("Invalid configuration: %v\n", err)
		kctx.Exit(1)
	}

	logger := log.New(os.Stderr)
	switch cfg.Server.LogLevel {
	case "debug":
		logger.SetLevel(log.DebugLevel)
	case "info":
		logger.SetLevel(log.InfoLevel)
	case "warn":
		logger.SetLevel(log.WarnLevel)
	case "error":
		logger.SetLevel(log.ErrorLevel)
	default:
		logger.SetLevel(log.InfoLevel)
	}

	if err := run(cfg, logger); err != nil {
		logger.Error("server failed", "error", err)
		kctx.Exit(1)
	}
}

func run(cfg *server.Config, logger *log.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var repo store.Repository
	if !CLI.NoStore && cfg.Store != nil {
		backend, err := store.Open(cfg.Store.Driver, cfg.Store.DSN)
		if err != nil {
			return fmt.Errorf("opening store: %w", err)
		}
		defer backend.Close()
		repo = store.WithRetry(backend, logger)
		logger.Info("persistence enabled", "driver", cfg.Store.Driver)
	}

	clock := quartz.NewReal()
	hub := broadcast.NewHub(logger)
	timers := timer.NewService(clock, logger)
	ids := gameid.New()
	rng := rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	gateway := server.NewGateway(logger, hub, timers, ids, repo, rng)

	// Tournaments declared in config exist at boot with registration open,
	// bots already registered.
	for _, tc := range cfg.Tournaments {
		ctrl, err := gateway.CreateTournament(ctx, tournament.Config{
			ID:            tc.ID,
			Name:          tc.Name,
			MaxPlayers:    tc.MaxPlayers,
			SeatsPerTable: tc.SeatsPerTable,
			StartingChips: tc.StartingChips,
			PrizePlaces:   tc.PrizePlaces,
			Schedule:      tc.Schedule(),
		})
		if err != nil {
			return fmt.Errorf("creating tournament %s: %w", tc.ID, err)
		}
		if err := ctrl.OpenRegistration(ctx); err != nil {
			return fmt.Errorf("opening registration for %s: %w", tc.ID, err)
		}
		for i := 0; i < tc.Bots; i++ {
			bot := tournament.Player{
				UserID: fmt.Sprintf("%s-bot-%d", tc.ID, i+1),
				Name:   fmt.Sprintf("Bot %d", i+1),
				IsBot:  true,
			}
			if err := ctrl.Register(ctx, bot); err != nil {
				return fmt.Errorf("registering bot for %s: %w", tc.ID, err)
			}
		}
		logger.Info("tournament ready", "id", tc.ID, "name", tc.Name, "bots", tc.Bots)
	}

	wsServer := server.NewServer(cfg.Address(), logger, gateway)
	admin := server.NewAdmin(cfg.AdminAddress(), logger, gateway, ctx)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(wsServer.Start)
	g.Go(admin.Start)
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down")
		timers.CancelAll()
		if err := admin.Stop(); err != nil {
			logger.Warn("admin shutdown error", "error", err)
		}
		return wsServer.Stop()
	})

	return g.Wait()
}
