// Package bootstrap wires all dependencies and starts the application:
// logger, schema definitions, the entry store backend, per-schema services,
// and the HTTP server.
package bootstrap

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"

	"github.com/artpar/schemarest/adapters/bolt"
	"github.com/artpar/schemarest/adapters/clock"
	schemahttp "github.com/artpar/schemarest/adapters/http"
	"github.com/artpar/schemarest/adapters/memory"
	"github.com/artpar/schemarest/adapters/metrics"
	"github.com/artpar/schemarest/adapters/sqlite"
	"github.com/artpar/schemarest/app"
	"github.com/artpar/schemarest/config"
	"github.com/artpar/schemarest/core/schema"
	"github.com/artpar/schemarest/ports"
)

// Version is stamped by the build; the /version endpoint reports it.
var Version = "dev"

// App represents the running application.
type App struct {
	Logger     zerolog.Logger
	HTTPServer *http.Server
	Metrics    *metrics.Collector
	Schemas    []*schema.Schema

	holder   *config.Holder
	sqliteDB *sqlite.DB
	boltDB   *bolt.DB
	stores   []ports.EntryStore
}

// New builds the application from a loaded configuration.
func New(cfg *config.Config) (*App, error) {
	return build(cfg, nil)
}

// NewWithHotReload builds the application from a config file and watches it
// for changes. Only the reloadable fields take effect without restart; see
// config.ReloadableFields.
func NewWithHotReload(path string) (*App, error) {
	holder, err := config.NewHolder(path, setupLogger(config.LoggingConfig{Level: "info", Format: "json"}))
	if err != nil {
		return nil, err
	}

	a, err := build(holder.Get(), holder)
	if err != nil {
		holder.Stop()
		return nil, err
	}

	holder.OnChange(func(cfg *config.Config) {
		if level, err := zerolog.ParseLevel(cfg.Logging.Level); err == nil {
			zerolog.SetGlobalLevel(level)
		}
	})
	if err := holder.WatchFile(); err != nil {
		a.Logger.Warn().Err(err).Msg("config file watch unavailable")
	}
	holder.WatchSignals()

	return a, nil
}

func build(cfg *config.Config, holder *config.Holder) (*App, error) {
	logger := setupLogger(cfg.Logging)

	schemas, err := schema.ParseDir(cfg.Schemas.Dir)
	if err != nil {
		return nil, fmt.Errorf("load schemas: %w", err)
	}
	if len(schemas) == 0 {
		return nil, fmt.Errorf("no schema definitions in %s", cfg.Schemas.Dir)
	}

	// Each App carries its own registry so repeated construction (tests,
	// config-driven restarts) never collides on collector registration.
	registry := prometheus.NewRegistry()
	a := &App{
		Logger:  logger,
		Metrics: metrics.NewWith(registry),
		Schemas: schemas,
		holder:  holder,
	}

	handler := schemahttp.NewHandler(logger, clock.Real{}, a.Metrics, Version)
	if cfg.Metrics.Enabled {
		handler.ServeMetrics(cfg.Metrics.Path, registry)
	}

	ctx := context.Background()
	for _, s := range schemas {
		store, err := a.openStore(ctx, cfg, s)
		if err != nil {
			a.closeStores()
			return nil, fmt.Errorf("open store for %s: %w", s.Name(), err)
		}
		a.stores = append(a.stores, store)
		handler.Register(app.NewEntryService(s, store, logger))
		logger.Info().Str("schema", s.Name()).Int("attributes", len(s.Attributes())).Msg("registered schema")
	}

	a.HTTPServer = &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      handler.Router(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	return a, nil
}

func (a *App) openStore(ctx context.Context, cfg *config.Config, s *schema.Schema) (ports.EntryStore, error) {
	switch cfg.Database.Driver {
	case "sqlite":
		if a.sqliteDB == nil {
			db, err := sqlite.Open(cfg.Database.DSN)
			if err != nil {
				return nil, err
			}
			a.sqliteDB = db
		}
		return a.sqliteDB.EntryStore(ctx, s)
	case "bolt":
		if a.boltDB == nil {
			db, err := bolt.Open(cfg.Database.DSN)
			if err != nil {
				return nil, err
			}
			a.boltDB = db
		}
		return a.boltDB.EntryStore(ctx, s)
	case "memory":
		return memory.NewEntryStore(), nil
	default:
		return nil, fmt.Errorf("unknown database driver %q", cfg.Database.Driver)
	}
}

// Run starts the HTTP server and blocks until SIGINT/SIGTERM or a server
// error, then shuts down gracefully.
func (a *App) Run() error {
	errCh := make(chan error, 1)
	go func() {
		a.Logger.Info().
			Str("addr", a.HTTPServer.Addr).
			Msg("starting http server")
		if err := a.HTTPServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return fmt.Errorf("server error: %w", err)
	case sig := <-quit:
		a.Logger.Info().Str("signal", sig.String()).Msg("shutting down")
	}

	return a.Shutdown()
}

// Shutdown stops the HTTP server, the config watcher, and closes all stores.
func (a *App) Shutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := a.HTTPServer.Shutdown(ctx); err != nil {
		a.Logger.Error().Err(err).Msg("http server shutdown")
	}

	if a.holder != nil {
		a.holder.Stop()
	}

	a.closeStores()
	a.Logger.Info().Msg("shutdown complete")
	return nil
}

func (a *App) closeStores() {
	for _, store := range a.stores {
		if err := store.Close(); err != nil {
			a.Logger.Error().Err(err).Msg("close store")
		}
	}
	a.stores = nil
	if a.sqliteDB != nil {
		if err := a.sqliteDB.Close(); err != nil {
			a.Logger.Error().Err(err).Msg("close sqlite")
		}
		a.sqliteDB = nil
	}
	if a.boltDB != nil {
		if err := a.boltDB.Close(); err != nil {
			a.Logger.Error().Err(err).Msg("close bolt")
		}
		a.boltDB = nil
	}
}

func setupLogger(cfg config.LoggingConfig) zerolog.Logger {
	level, err := zerolog.ParseLevel(cfg.Level)
	if err != nil || cfg.Level == "" {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	if cfg.Format == "console" {
		output := zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}
		return zerolog.New(output).With().Timestamp().Logger()
	}

	return zerolog.New(os.Stdout).With().Timestamp().Logger()
}
