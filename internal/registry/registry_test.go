package registry

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/loykin/sentryd/internal/logstore"
	"github.com/loykin/sentryd/internal/process"
)

func writeApp(t *testing.T, appsDir, name, toml string) {
	t.Helper()
	dir := filepath.Join(appsDir, name)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "config.toml"), []byte(toml), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
}

func newTestRegistry(t *testing.T, appsDir string) *Registry {
	t.Helper()
	return New(appsDir, logstore.New(t.TempDir()))
}

func TestDiscoverFindsApps(t *testing.T) {
	appsDir := t.TempDir()

	writeApp(t, appsDir, "web", `
name = "web"
api_token = "web-secret"

[run]
path = "/bin/true"
`)

	r := newTestRegistry(t, appsDir)
	if err := r.Discover(); err != nil {
		t.Fatalf("discover: %v", err)
	}

	apps := r.List()
	if len(apps) != 1 {
		t.Fatalf("expected 1 app, got %d", len(apps))
	}
	app, ok := r.Get("web")
	if !ok {
		t.Fatalf("expected to find app web")
	}
	if app.Config.APIToken != "web-secret" {
		t.Fatalf("unexpected token: %q", app.Config.APIToken)
	}
}

func TestDiscoverRemovesDeletedApps(t *testing.T) {
	appsDir := t.TempDir()
	writeApp(t, appsDir, "web", "name = \"web\"\n[run]\npath = \"/bin/true\"\n")

	r := newTestRegistry(t, appsDir)
	if err := r.Discover(); err != nil {
		t.Fatalf("discover: %v", err)
	}
	if len(r.List()) != 1 {
		t.Fatalf("expected 1 app before removal")
	}

	if err := os.RemoveAll(filepath.Join(appsDir, "web")); err != nil {
		t.Fatalf("remove: %v", err)
	}
	if err := r.Discover(); err != nil {
		t.Fatalf("second discover: %v", err)
	}
	if len(r.List()) != 0 {
		t.Fatalf("expected app to be removed, got %d apps", len(r.List()))
	}
}

func TestAnyRunningAndCrashedCount(t *testing.T) {
	appsDir := t.TempDir()
	writeApp(t, appsDir, "ok", "name = \"ok\"\n[run]\npath = \"/bin/sleep\"\narguments = [\"2\"]\n")
	writeApp(t, appsDir, "bad", "name = \"bad\"\n[run]\npath = \"/bin/false\"\n")

	r := newTestRegistry(t, appsDir)
	if err := r.Discover(); err != nil {
		t.Fatalf("discover: %v", err)
	}

	if r.AnyRunning() {
		t.Fatalf("expected no apps running before start")
	}

	r.StartAll(nil)
	if !r.AnyRunning() {
		t.Fatalf("expected at least one app running after StartAll")
	}

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) && r.CrashedCount() == 0 {
		time.Sleep(5 * time.Millisecond)
	}
	if got := r.CrashedCount(); got != 1 {
		t.Fatalf("expected 1 crashed app, got %d", got)
	}

	for _, app := range r.List() {
		_ = app.Supervisor.Stop("SIGKILL")
	}
}

func TestReloadRefusesWhileRunning(t *testing.T) {
	appsDir := t.TempDir()
	writeApp(t, appsDir, "web", "name = \"web\"\n[run]\npath = \"/bin/sleep\"\narguments = [\"2\"]\n")

	r := newTestRegistry(t, appsDir)
	if err := r.Discover(); err != nil {
		t.Fatalf("discover: %v", err)
	}
	app, _ := r.Get("web")
	if err := app.Supervisor.Start(); err != nil {
		t.Fatalf("start: %v", err)
	}
	defer func() { _ = app.Supervisor.Stop("SIGKILL") }()

	if err := r.Reload("web"); err == nil {
		t.Fatalf("expected reload to refuse while running")
	}
}

func TestReloadReplacesSupervisorWhenStopped(t *testing.T) {
	appsDir := t.TempDir()
	writeApp(t, appsDir, "web", "name = \"web\"\n[run]\npath = \"/bin/true\"\n")

	r := newTestRegistry(t, appsDir)
	if err := r.Discover(); err != nil {
		t.Fatalf("discover: %v", err)
	}
	before, _ := r.Get("web")

	if err := r.Reload("web"); err != nil {
		t.Fatalf("reload: %v", err)
	}
	after, _ := r.Get("web")
	if after.Supervisor == before.Supervisor {
		t.Fatalf("expected reload to install a fresh supervisor")
	}
	if after.Supervisor.Status().State != process.Stopped {
		t.Fatalf("expected fresh supervisor to start Stopped")
	}
}
