package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	DirName  = ".mealplan"
	FileName = "config.yaml"

	defaultTimeout = 10 * time.Second
)

const defaultConfigYAML = `# mealplan configuration
version: 1

# Planner server the board persists drops to. Leave empty to work locally.
server: ""
# csrf_token: ""

sync:
  # local: drops only change the board. synced: drops are sent to the server first.
  mode: local
  # move: /action_move_mpr/ with full orders. assign: /action_update_mpr/{item}/{group}/.
  endpoint: move
  # Reload the payload from the server after every saved drop.
  refresh_after_sync: false
  timeout: 10s

board:
  default_grouping: ""
  theme: auto
`

type SyncConfig struct {
	Mode             string        `yaml:"mode"`
	Endpoint         string        `yaml:"endpoint"`
	RefreshAfterSync bool          `yaml:"refresh_after_sync"`
	Timeout          time.Duration `yaml:"timeout"`
}

type BoardConfig struct {
	DefaultGrouping string `yaml:"default_grouping,omitempty"`
	// Theme is one of auto|light|dark|none.
	Theme string `yaml:"theme,omitempty"`
}

// Config models ~/.mealplan/config.yaml.
type Config struct {
	Version   int         `yaml:"version"`
	Server    string      `yaml:"server"`
	CSRFToken string      `yaml:"csrf_token,omitempty"`
	Sync      SyncConfig  `yaml:"sync"`
	Board     BoardConfig `yaml:"board"`
}

func Default() *Config {
	return &Config{
		Version: 1,
		Sync:    SyncConfig{Mode: "local", Endpoint: "move", Timeout: defaultTimeout},
		Board:   BoardConfig{Theme: "auto"},
	}
}

// Dir returns the per-user state directory. MEALPLAN_HOME overrides it (tests use this to
// stay out of ~).
func Dir() (string, error) {
	if v := strings.TrimSpace(os.Getenv("MEALPLAN_HOME")); v != "" {
		return v, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, DirName), nil
}

// Path returns the config file path. MEALPLAN_CONFIG points at an explicit file.
func Path() (string, error) {
	if v := strings.TrimSpace(os.Getenv("MEALPLAN_CONFIG")); v != "" {
		return v, nil
	}
	dir, err := Dir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, FileName), nil
}

// Load reads the config at path. A missing file yields the defaults.
func Load(path string) (*Config, error) {
	cfg := Default()
	b, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return cfg, nil
		}
		return nil, err
	}
	if err := yaml.Unmarshal(b, cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	cfg.normalize()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

func (c *Config) normalize() {
	c.Server = strings.TrimSpace(c.Server)
	c.CSRFToken = strings.TrimSpace(c.CSRFToken)
	c.Sync.Mode = strings.ToLower(strings.TrimSpace(c.Sync.Mode))
	c.Sync.Endpoint = strings.ToLower(strings.TrimSpace(c.Sync.Endpoint))
	c.Board.Theme = strings.ToLower(strings.TrimSpace(c.Board.Theme))
	if c.Version == 0 {
		c.Version = 1
	}
	if c.Sync.Mode == "" {
		c.Sync.Mode = "local"
	}
	if c.Sync.Endpoint == "" {
		c.Sync.Endpoint = "move"
	}
	if c.Sync.Timeout <= 0 {
		c.Sync.Timeout = defaultTimeout
	}
	if c.Board.Theme == "" {
		c.Board.Theme = "auto"
	}
}

func (c *Config) Validate() error {
	switch c.Sync.Mode {
	case "local", "synced":
	default:
		return fmt.Errorf("sync.mode: unknown value %q (expected local|synced)", c.Sync.Mode)
	}
	switch c.Sync.Endpoint {
	case "move", "assign":
	default:
		return fmt.Errorf("sync.endpoint: unknown value %q (expected move|assign)", c.Sync.Endpoint)
	}
	switch c.Board.Theme {
	case "auto", "light", "dark", "none":
	default:
		return fmt.Errorf("board.theme: unknown value %q", c.Board.Theme)
	}
	if c.Sync.Mode == "synced" && c.Server == "" {
		return errors.New("sync.mode is synced but no server is configured")
	}
	return nil
}

// Save writes cfg atomically.
func Save(path string, cfg *Config) error {
	if cfg == nil {
		return errors.New("nil config")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	b, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, b, 0o600); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}

// Init writes the commented default config when none exists yet. It reports whether a file
// was created.
func Init(path string) (bool, error) {
	if _, err := os.Stat(path); err == nil {
		return false, nil
	} else if !errors.Is(err, os.ErrNotExist) {
		return false, err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return false, err
	}
	if err := os.WriteFile(path, []byte(defaultConfigYAML), 0o600); err != nil {
		return false, err
	}
	return true, nil
}

// Set updates one dotted key (e.g. "sync.mode") from its string form.
func (c *Config) Set(key, value string) error {
	value = strings.TrimSpace(value)
	switch key {
	case "server":
		c.Server = value
	case "csrf_token":
		c.CSRFToken = value
	case "sync.mode":
		c.Sync.Mode = value
	case "sync.endpoint":
		c.Sync.Endpoint = value
	case "sync.refresh_after_sync":
		switch strings.ToLower(value) {
		case "true", "yes", "1", "on":
			c.Sync.RefreshAfterSync = true
		case "false", "no", "0", "off":
			c.Sync.RefreshAfterSync = false
		default:
			return fmt.Errorf("%s: not a boolean: %q", key, value)
		}
	case "sync.timeout":
		d, err := time.ParseDuration(value)
		if err != nil {
			return fmt.Errorf("%s: %w", key, err)
		}
		c.Sync.Timeout = d
	case "board.default_grouping":
		c.Board.DefaultGrouping = value
	case "board.theme":
		c.Board.Theme = value
	default:
		return fmt.Errorf("unknown config key %q", key)
	}
	c.normalize()
	return c.Validate()
}

// Get returns the string form of one dotted key, as Set would accept it.
func (c *Config) Get(key string) (string, error) {
	switch key {
	case "server":
		return c.Server, nil
	case "csrf_token":
		return c.CSRFToken, nil
	case "sync.mode":
		return c.Sync.Mode, nil
	case "sync.endpoint":
		return c.Sync.Endpoint, nil
	case "sync.refresh_after_sync":
		return fmt.Sprint(c.Sync.RefreshAfterSync), nil
	case "sync.timeout":
		return c.Sync.Timeout.String(), nil
	case "board.default_grouping":
		return c.Board.DefaultGrouping, nil
	case "board.theme":
		return c.Board.Theme, nil
	default:
		return "", fmt.Errorf("unknown config key %q", key)
	}
}

// Keys lists the keys Set accepts.
func Keys() []string {
	return []string{
		"server",
		"csrf_token",
		"sync.mode",
		"sync.endpoint",
		"sync.refresh_after_sync",
		"sync.timeout",
		"board.default_grouping",
		"board.theme",
	}
}
