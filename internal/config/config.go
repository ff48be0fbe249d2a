// Package config loads the daemon's and each app's TOML configuration,
// generating a default daemon config on first boot the way the original
// daemon this supervisor is modeled on does.
package config

import (
	"crypto/rand"
	"fmt"
	"os"
	"path/filepath"
	"time"

	toml "github.com/pelletier/go-toml/v2"
	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/viper"
)

// APIConfig is the daemon's [api] block: its control-plane listen
// address, worker pool size, and global token.
type APIConfig struct {
	Token   string `mapstructure:"token" toml:"token"`
	Host    string `mapstructure:"host" toml:"host"`
	Port    int    `mapstructure:"port" toml:"port"`
	Workers int    `mapstructure:"workers" toml:"workers"`
}

// Address returns the host:port the Control API should bind.
func (a APIConfig) Address() string {
	return fmt.Sprintf("%s:%d", a.Host, a.Port)
}

// DaemonConfig is the top-level config.toml schema.
type DaemonConfig struct {
	AppDir     string    `mapstructure:"app_dir" toml:"app_dir"`
	TaskPollMs int       `mapstructure:"task_poll" toml:"task_poll"`
	API        APIConfig `mapstructure:"api" toml:"api"`
}

// PollInterval is the poll loop's tick cadence, derived from the
// millisecond value stored in config.toml.
func (c DaemonConfig) PollInterval() time.Duration {
	return time.Duration(c.TaskPollMs) * time.Millisecond
}

const tokenAlphabet = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

// generateToken returns a random n-character alphanumeric string, used to
// mint the daemon's global API token on first boot.
func generateToken(n int) (string, error) {
	buf := make([]byte, n)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("config: generate token: %w", err)
	}
	out := make([]byte, n)
	for i, b := range buf {
		out[i] = tokenAlphabet[int(b)%len(tokenAlphabet)]
	}
	return string(out), nil
}

// DefaultDaemonConfig returns the config written on first boot when no
// config.toml exists yet, including a freshly generated global token.
func DefaultDaemonConfig(preferencesDir string) (DaemonConfig, error) {
	token, err := generateToken(15)
	if err != nil {
		return DaemonConfig{}, err
	}
	return DaemonConfig{
		AppDir:     filepath.Join(preferencesDir, "apps"),
		TaskPollMs: 1000,
		API: APIConfig{
			Token:   token,
			Host:    "localhost",
			Port:    3401,
			Workers: 10,
		},
	}, nil
}

// LoadOrInitDaemonConfig loads config.toml from preferencesDir, writing a
// generated default file first if one doesn't already exist -- mirroring
// the original daemon's first-boot behavior of writing out its default
// config and printing a notice rather than silently inventing one.
func LoadOrInitDaemonConfig(preferencesDir string) (*DaemonConfig, error) {
	path := filepath.Join(preferencesDir, "config.toml")

	if _, err := os.Stat(path); os.IsNotExist(err) {
		def, err := DefaultDaemonConfig(preferencesDir)
		if err != nil {
			return nil, err
		}
		if err := os.MkdirAll(preferencesDir, 0o755); err != nil {
			return nil, fmt.Errorf("config: create preferences dir: %w", err)
		}
		data, err := toml.Marshal(def)
		if err != nil {
			return nil, fmt.Errorf("config: marshal default: %w", err)
		}
		if err := os.WriteFile(path, data, 0o644); err != nil {
			return nil, fmt.Errorf("config: write default: %w", err)
		}
		return &def, nil
	}

	return LoadDaemonConfig(path)
}

// LoadDaemonConfig reads and decodes config.toml at path.
func LoadDaemonConfig(path string) (*DaemonConfig, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("toml")
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}

	var cfg DaemonConfig
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           &cfg,
		WeaklyTypedInput: true,
	})
	if err != nil {
		return nil, fmt.Errorf("config: build decoder: %w", err)
	}
	if err := dec.Decode(v.AllSettings()); err != nil {
		return nil, fmt.Errorf("config: decode %s: %w", path, err)
	}
	if cfg.TaskPollMs <= 0 {
		cfg.TaskPollMs = 1000
	}
	return &cfg, nil
}

// RunConfig is an app's [run] block: how to launch its process.
type RunConfig struct {
	Path            string            `mapstructure:"path"`
	Command         string            `mapstructure:"command"`
	Arguments       []string          `mapstructure:"arguments"`
	EnvironmentVars map[string]string `mapstructure:"environment_vars"`
}

// AppGitConfig is an app's [git] block: the repo-mode update source and
// the credentials the Update Engine's auth callback chooses between.
type AppGitConfig struct {
	Repo       string `mapstructure:"repo"`
	Username   string `mapstructure:"username"`
	Token      string `mapstructure:"token"`
	SSHKeyFile string `mapstructure:"ssh_key_file"`
}

// AppConfig is a single app's config.toml schema, read from
// <apps_dir>/<name>/config.toml.
type AppConfig struct {
	Name     string        `mapstructure:"name"`
	APIToken string        `mapstructure:"api_token"`
	Run      RunConfig     `mapstructure:"run"`
	Git      *AppGitConfig `mapstructure:"git"`
}

// LoadAppConfig reads and decodes an app's config.toml.
func LoadAppConfig(path string) (*AppConfig, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("toml")
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}

	var cfg AppConfig
	if err := v.Unmarshal(&cfg, func(c *mapstructure.DecoderConfig) {
		c.WeaklyTypedInput = true
	}); err != nil {
		return nil, fmt.Errorf("config: decode %s: %w", path, err)
	}
	// path launches the process; command is its display alias. Each
	// defaults to the other so a config may set either.
	if cfg.Run.Command == "" {
		cfg.Run.Command = cfg.Run.Path
	}
	if cfg.Run.Path == "" {
		cfg.Run.Path = cfg.Run.Command
	}
	return &cfg, nil
}
