package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/claude/repsync/internal/config"
	"github.com/claude/repsync/internal/local"
	"github.com/claude/repsync/internal/mcpsrv"
	"github.com/claude/repsync/internal/remote"
	"github.com/claude/repsync/internal/server"
	"github.com/claude/repsync/internal/syncer"
	mcpserver "github.com/mark3labs/mcp-go/server"
	"tailscale.com/tsnet"
)

// Version is set at build time via -ldflags.
var Version = "dev"

func main() {
	configPath := flag.String("config", "config.yaml", "path to config file")
	migrateOnly := flag.Bool("migrate-only", false, "run remote migrations and exit")
	flag.Parse()

	log := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	log.Info("RepSync starting", "version", Version)

	// Load config
	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	// Open local store
	store, err := local.Open(cfg.Local.DataDir)
	if err != nil {
		log.Error("failed to open local store", "error", err)
		os.Exit(1)
	}
	defer store.Close()
	log.Info("local store opened", "dir", cfg.Local.DataDir)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Connect the remote replica and start the background syncer
	var sync *syncer.Syncer
	if cfg.Sync.Enabled {
		dsn := cfg.Database.DSN()
		if err := remote.RunMigrations(dsn, "migrations"); err != nil {
			log.Error("migration failed", "error", err)
			os.Exit(1)
		}
		log.Info("migrations applied")

		if *migrateOnly {
			log.Info("migrate-only: exiting")
			return
		}

		rdb, err := remote.New(ctx, dsn)
		if err != nil {
			log.Error("failed to connect remote replica", "error", err)
			os.Exit(1)
		}
		defer rdb.Close()
		log.Info("remote replica connected")

		strategy, err := syncer.ParseStrategy(cfg.Sync.Strategy)
		if err != nil {
			log.Error("invalid sync strategy", "error", err)
			os.Exit(1)
		}
		sync = syncer.New(store, rdb, syncer.Options{
			Strategy:    strategy,
			MaxAttempts: cfg.Sync.MaxAttempts,
			RetryDelay:  cfg.Sync.RetryDelay(),
			Interval:    cfg.Sync.Interval(),
		}, log)

		notifications, err := rdb.WatchChanges(ctx, log)
		if err != nil {
			log.Warn("change listener unavailable, polling only", "error", err)
			notifications = nil
		}
		go sync.Run(ctx, notifications)
		sync.Trigger()
		log.Info("sync engine started", "strategy", cfg.Sync.Strategy, "interval", cfg.Sync.Interval().String())
	} else if *migrateOnly {
		log.Error("migrate-only requires sync.enabled")
		os.Exit(1)
	} else {
		log.Info("sync disabled, running local-only")
	}

	// Create server
	srv := server.New(store, sync, cfg.Auth.APIKey, log)

	// Mount the MCP endpoint
	mcps := mcpsrv.New(store, sync, Version, log)
	srv.SetMCP(mcpserver.NewStreamableHTTPServer(mcps))

	// Start server — tsnet or plain HTTP
	var listener net.Listener
	var tsServer *tsnet.Server

	if cfg.Tailscale.Enabled {
		tsServer = &tsnet.Server{
			Hostname: cfg.Tailscale.Hostname,
			Dir:      cfg.Tailscale.StateDir,
		}
		if err := tsServer.Start(); err != nil {
			log.Error("tsnet start failed", "error", err)
			os.Exit(1)
		}
		defer tsServer.Close()

		listener, err = tsServer.Listen("tcp", ":80")
		if err != nil {
			log.Error("tsnet listen failed", "error", err)
			os.Exit(1)
		}
		log.Info("tsnet server starting", "hostname", cfg.Tailscale.Hostname)
	} else {
		addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
		listener, err = net.Listen("tcp", addr)
		if err != nil {
			log.Error("listen failed", "addr", addr, "error", err)
			os.Exit(1)
		}
		log.Info("server starting", "addr", addr, "mode", "dev (no tailscale)")
	}

	httpSrv := &http.Server{Handler: srv}

	go func() {
		if err := httpSrv.Serve(listener); err != nil && err != http.ErrServerClosed {
			log.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit
	log.Info("shutting down", "signal", sig)

	cancel()
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		log.Error("shutdown error", "error", err)
	}
	log.Info("server stopped")
}
