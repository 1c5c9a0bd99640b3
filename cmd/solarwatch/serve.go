package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/HerbHall/solarwatch/internal/config"
	"github.com/HerbHall/solarwatch/internal/detection"
	"github.com/HerbHall/solarwatch/internal/event"
	"github.com/HerbHall/solarwatch/internal/records"
	"github.com/HerbHall/solarwatch/internal/registry"
	"github.com/HerbHall/solarwatch/internal/server"
	"github.com/HerbHall/solarwatch/internal/store"
	"github.com/HerbHall/solarwatch/internal/version"
	"github.com/HerbHall/solarwatch/pkg/plugin"
)

const shutdownTimeout = 10 * time.Second

func newServeCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			v, err := server.LoadConfig(*configPath)
			if err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return runServe(ctx, v)
		},
	}
}

// runServe wires the store, event bus, modules and HTTP server, and blocks
// until ctx is cancelled.
func runServe(ctx context.Context, v *viper.Viper) error {
	logger, err := config.NewLogger(v)
	if err != nil {
		return fmt.Errorf("initialize logger: %w", err)
	}
	defer func() { _ = logger.Sync() }()

	logger.Info("solarwatch server starting", zap.String("version", version.Short()))
	if f := v.ConfigFileUsed(); f != "" {
		logger.Info("configuration loaded", zap.String("component", "config"), zap.String("source", f))
	} else {
		logger.Warn("no configuration file found, using defaults", zap.String("component", "config"))
	}

	srvCfg, err := server.ServerConfig(v)
	if err != nil {
		return err
	}

	db, err := openStore(ctx, v.GetString("database.path"))
	if err != nil {
		return err
	}
	defer db.Close()
	logger.Info("database initialized",
		zap.String("component", "database"),
		zap.String("path", v.GetString("database.path")),
	)

	bus := event.NewBus(logger.Named("event"))
	reg := registry.New(logger.Named("registry"))
	for _, m := range []plugin.Plugin{records.New(), detection.New()} {
		if err := reg.Register(m); err != nil {
			return fmt.Errorf("register plugin: %w", err)
		}
	}
	if err := reg.Validate(); err != nil {
		return fmt.Errorf("plugin validation: %w", err)
	}

	if err := reg.InitAll(ctx, func(name string) plugin.Dependencies {
		return plugin.Dependencies{
			Config:  config.ForPlugin(v, name),
			Logger:  logger.Named(name),
			Store:   db,
			Bus:     bus,
			Plugins: reg,
		}
	}); err != nil {
		return fmt.Errorf("initialize plugins: %w", err)
	}
	if err := reg.StartAll(ctx); err != nil {
		return fmt.Errorf("start plugins: %w", err)
	}

	ready := server.ReadinessChecker(func(ctx context.Context) error {
		return db.DB().PingContext(ctx)
	})
	srv := server.New(srvCfg.Addr(), reg, logger, ready, server.Options{
		ReadOnly:        srvCfg.ReadOnly,
		RateLimit:       srvCfg.Limit,
		DevMode:         srvCfg.DevMode,
		ComputePrefixes: []string{"/api/v1/detection/"},
	})

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Start() }()
	logger.Info("solarwatch server ready", zap.String("addr", srvCfg.Addr()))

	var serveErr error
	select {
	case <-ctx.Done():
		logger.Info("received shutdown signal")
	case serveErr = <-errCh:
		logger.Error("server error", zap.Error(serveErr))
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	reg.StopAll(shutdownCtx)
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown error", zap.Error(err))
	}
	bus.Wait()

	logger.Info("solarwatch server stopped")
	return serveErr
}

// openStore opens the database at path, creating its directory, and refuses
// databases written by a newer release.
func openStore(ctx context.Context, path string) (*store.SQLiteStore, error) {
	if path == "" {
		return nil, errors.New("database.path is empty")
	}
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
			return nil, fmt.Errorf("create database directory: %w", err)
		}
	}
	db, err := store.New(path)
	if err != nil {
		return nil, err
	}
	if err := db.CheckVersion(ctx, version.Version); err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}
