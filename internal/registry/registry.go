// Package registry implements the App Registry: discovery of apps under
// the daemon's apps directory, and the live set of Supervisors that back
// them.
package registry

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/loykin/sentryd/internal/apierr"
	"github.com/loykin/sentryd/internal/config"
	"github.com/loykin/sentryd/internal/logstore"
	"github.com/loykin/sentryd/internal/process"
)

// App bundles everything the daemon tracks for one discovered app.
type App struct {
	Name       string
	Dir        string
	Config     config.AppConfig
	Supervisor *process.Supervisor
}

// Registry holds the live set of Apps, keyed by name, plus the shared
// Log Store every component logs to.
type Registry struct {
	appsDir string
	Store   *logstore.Store

	mu   sync.RWMutex
	apps map[string]*App
}

// New returns an empty Registry rooted at appsDir, logging to store.
func New(appsDir string, store *logstore.Store) *Registry {
	return &Registry{appsDir: appsDir, Store: store, apps: make(map[string]*App)}
}

func (r *Registry) newApp(name string) (*App, error) {
	dir := filepath.Join(r.appsDir, name)
	cfgPath := filepath.Join(dir, "config.toml")
	cfg, err := config.LoadAppConfig(cfgPath)
	if err != nil {
		return nil, err
	}
	if cfg.Name == "" {
		cfg.Name = name
	}

	// Children run inside the repo checkout when one exists; binary-mode
	// apps without a checkout run in the app directory itself.
	workDir := filepath.Join(dir, "repo")
	if fi, err := os.Stat(workDir); err != nil || !fi.IsDir() {
		workDir = dir
	}

	exe := cfg.Run.Path
	if !filepath.IsAbs(exe) {
		exe = filepath.Join(workDir, exe)
	}

	spec := process.Spec{
		Name:      cfg.Name,
		Path:      exe,
		Dir:       workDir,
		Arguments: cfg.Run.Arguments,
		Env:       cfg.Run.EnvironmentVars,
	}

	return &App{
		Name:       name,
		Dir:        dir,
		Config:     *cfg,
		Supervisor: process.New(spec),
	}, nil
}

// Discover scans appsDir (creating it if absent) for one subdirectory per
// app, each containing a config.toml, and reconciles the live App set
// against what it finds: new directories become new Apps, removed
// directories are dropped (after stopping their supervisor), and
// directories that already have an App are left untouched so a running
// supervisor is never disturbed by a redundant discovery pass. Invalid
// configs are logged and skipped; they never abort discovery.
func (r *Registry) Discover() error {
	if err := os.MkdirAll(r.appsDir, 0o755); err != nil {
		return fmt.Errorf("registry: create apps dir %s: %w", r.appsDir, err)
	}
	entries, err := os.ReadDir(r.appsDir)
	if err != nil {
		return fmt.Errorf("registry: read apps dir %s: %w", r.appsDir, err)
	}

	found := make(map[string]bool, len(entries))
	for _, ent := range entries {
		if !ent.IsDir() {
			continue
		}
		name := ent.Name()
		found[name] = true

		r.mu.RLock()
		_, exists := r.apps[name]
		r.mu.RUnlock()
		if exists {
			continue
		}

		app, err := r.newApp(name)
		if err != nil {
			if r.Store != nil {
				r.Store.Appendf(logstore.Error, "discover %s: invalid config: %v", name, err)
			}
			continue
		}

		r.mu.Lock()
		r.apps[name] = app
		r.mu.Unlock()
	}

	var toRemove []*App
	r.mu.Lock()
	for name, app := range r.apps {
		if !found[name] {
			toRemove = append(toRemove, app)
			delete(r.apps, name)
		}
	}
	r.mu.Unlock()

	for _, app := range toRemove {
		_ = app.Supervisor.Stop("SIGTERM")
	}
	return nil
}

// Reload replaces the named app's live Supervisor with a fresh one parsed
// from its on-disk config, refusing when the app is currently Running.
// Callers (the Control API's Reload action) must not hold a read
// reference to the registry across this call -- it takes the write lock
// itself.
func (r *Registry) Reload(name string) error {
	r.mu.RLock()
	existing, ok := r.apps[name]
	r.mu.RUnlock()
	if ok && existing.Supervisor.Status().State == process.Running {
		return apierr.ErrStillRunning
	}

	dir := filepath.Join(r.appsDir, name)
	if _, err := os.Stat(dir); err != nil {
		return apierr.ErrNotFound
	}

	app, err := r.newApp(name)
	if err != nil {
		return fmt.Errorf("registry: reload %s: %w", name, err)
	}

	r.mu.Lock()
	r.apps[name] = app
	r.mu.Unlock()
	return nil
}

// Get returns the named App, if known.
func (r *Registry) Get(name string) (*App, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	app, ok := r.apps[name]
	return app, ok
}

// List returns every known App.
func (r *Registry) List() []*App {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*App, 0, len(r.apps))
	for _, app := range r.apps {
		out = append(out, app)
	}
	return out
}

// AnyRunning reports whether at least one app's supervisor is currently
// Running -- the corrected sense of the original daemon's inverted
// any_running predicate.
func (r *Registry) AnyRunning() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, app := range r.apps {
		if app.Supervisor.Status().State == process.Running {
			return true
		}
	}
	return false
}

// CrashedCount returns how many apps are currently in the Crashed state,
// used to classify overall daemon health.
func (r *Registry) CrashedCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	n := 0
	for _, app := range r.apps {
		if app.Supervisor.Status().State == process.Crashed {
			n++
		}
	}
	return n
}

// StartAll starts every known app's supervisor, logging (but not
// aborting on) individual failures -- the daemon autostarts every
// discovered app at boot.
func (r *Registry) StartAll(onErr func(app *App, err error)) {
	for _, app := range r.List() {
		if err := app.Supervisor.Start(); err != nil && onErr != nil {
			onErr(app, err)
		}
	}
}

// AppToken implements auth.AppTokens.
func (r *Registry) AppToken(name string) (string, bool) {
	app, ok := r.Get(name)
	if !ok {
		return "", false
	}
	return app.Config.APIToken, true
}

// AnyAppToken implements auth.AppTokens.
func (r *Registry) AnyAppToken(token string) bool {
	for _, app := range r.List() {
		if app.Config.APIToken != "" && app.Config.APIToken == token {
			return true
		}
	}
	return false
}
