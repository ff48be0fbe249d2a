// Command sentryd is the process-supervisor daemon: it discovers apps
// under its apps directory, keeps each one's child process alive per its
// own lifecycle, and exposes the Control API over HTTP.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/loykin/sentryd/internal/auth"
	"github.com/loykin/sentryd/internal/clock"
	"github.com/loykin/sentryd/internal/config"
	"github.com/loykin/sentryd/internal/logger"
	"github.com/loykin/sentryd/internal/logstore"
	"github.com/loykin/sentryd/internal/registry"
	"github.com/loykin/sentryd/internal/server"
	"github.com/loykin/sentryd/internal/shutdown"
)

func main() {
	log := logger.New(os.Stderr, slog.LevelInfo)

	prefDir, err := preferencesDir()
	if err != nil {
		log.Error("resolve preferences directory", "error", err)
		os.Exit(1)
	}

	cfg, err := config.LoadOrInitDaemonConfig(prefDir)
	if err != nil {
		log.Error("load config", "error", err)
		os.Exit(1)
	}

	store := logstore.New(filepath.Join(prefDir, "logs"))

	reg := registry.New(cfg.AppDir, store)
	if err := reg.Discover(); err != nil {
		log.Error("discover apps", "error", err)
		os.Exit(1)
	}

	reg.StartAll(func(app *registry.App, err error) {
		log.Error("autostart failed", "app", app.Name, "error", err)
		store.Appendf(logstore.Error, "autostart %s failed: %v", app.Name, err)
	})

	authority := auth.New(cfg.API.Token, reg)
	srv := server.New(reg, authority, cfg.API.Workers)

	httpSrv := &http.Server{Addr: cfg.API.Address(), Handler: srv.Handler()}
	go func() {
		log.Info("control api listening", "address", cfg.API.Address())
		if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("control api stopped", "error", err)
		}
	}()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	coord := shutdown.New()

	// The poll loop is the only place the process exits from: once a
	// shutdown has been requested and every child is reaped, flush the
	// log store and go.
	go clock.New(cfg.PollInterval()).Run(ctx, func(ctx context.Context) {
		_ = store.Tick(time.Now(), false)
		if coord.Requested() && !reg.AnyRunning() {
			_ = store.Tick(time.Now(), true)
			_ = httpSrv.Close()
			os.Exit(0)
		}
	})

	graceful := func() {
		log.Info("shutting down")
		store.Append(logstore.Info, "Shutting down")
		for _, app := range reg.List() {
			if err := app.Supervisor.Stop("SIGINT"); err != nil {
				log.Error("stop failed", "app", app.Name, "error", err)
			}
		}
	}
	hard := func() {
		log.Warn("repeated shutdown signal, killing all apps")
		store.Append(logstore.Info, "Shutting down (FORCE)")
		for _, app := range reg.List() {
			_ = app.Supervisor.Stop("SIGKILL")
		}
	}

	coord.Watch(ctx, graceful, hard)
}

func preferencesDir() (string, error) {
	if d := os.Getenv("SENTRYD_CONFIG_DIR"); d != "" {
		return d, nil
	}
	base, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("user config dir: %w", err)
	}
	return filepath.Join(base, "sentryd"), nil
}
