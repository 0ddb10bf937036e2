// Package config loads the daemon's YAML configuration and the small JSON
// runtime state file that survives restarts (the migration guard lives
// there). Config is read once at startup; the watcher signals when the
// files change on disk so the host can reload.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"
)

type Config struct {
	DataDir           string `yaml:"data_dir"`
	CatalogPath       string `yaml:"catalog_path"`
	CatalogSchemaPath string `yaml:"catalog_schema_path,omitempty"`

	Worlds []WorldSpec `yaml:"worlds"`

	// AsyncDirectoryLoad moves the identity-directory bulk load off the
	// startup path. The migration pass still joins it before running.
	AsyncDirectoryLoad bool `yaml:"async_directory_load"`

	AdminAddr    string `yaml:"admin_addr"`
	ObserverAddr string `yaml:"observer_addr"`

	EventLogDir string `yaml:"event_log_dir,omitempty"`

	// EventLogRetainDays bounds how long completed event log files stay on
	// disk. Zero disables the sweep.
	EventLogRetainDays int `yaml:"event_log_retain_days,omitempty"`

	Grants GrantsSpec `yaml:"grants"`
}

type WorldSpec struct {
	ID       string `yaml:"id"`
	Disabled bool   `yaml:"disabled,omitempty"`

	// AllowedBlocks restricts which catalog blocks may anchor wards in this
	// world; empty means the catalog's own allowed_worlds lists decide.
	AllowedBlocks []string `yaml:"allowed_blocks,omitempty"`
}

type GrantsSpec struct {
	DefaultGrants []string            `yaml:"default_grants,omitempty"`
	Players       map[string][]string `yaml:"players,omitempty"`
}

func Load(path string) (Config, error) {
	cfg := defaults()
	if strings.TrimSpace(path) == "" {
		cfg.Normalize()
		return cfg, nil
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return cfg, fmt.Errorf("wardstone.yaml: %w", err)
	}
	cfg.Normalize()
	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("wardstone.yaml: %w", err)
	}
	return cfg, nil
}

func defaults() Config {
	return Config{
		DataDir:            "data",
		CatalogPath:        "configs/blocks.json",
		Worlds:             []WorldSpec{{ID: "overworld"}},
		AdminAddr:          "127.0.0.1:7087",
		ObserverAddr:       "127.0.0.1:7088",
		EventLogRetainDays: 14,
	}
}

func (c *Config) Normalize() {
	if c == nil {
		return
	}
	c.DataDir = strings.TrimSpace(c.DataDir)
	c.CatalogPath = strings.TrimSpace(c.CatalogPath)
	c.CatalogSchemaPath = strings.TrimSpace(c.CatalogSchemaPath)
	for i := range c.Worlds {
		c.Worlds[i].ID = strings.TrimSpace(c.Worlds[i].ID)
	}
	if c.EventLogDir == "" && c.DataDir != "" {
		c.EventLogDir = filepath.Join(c.DataDir, "events")
	}
}

func (c Config) Validate() error {
	c.Normalize()
	if c.DataDir == "" {
		return fmt.Errorf("data_dir must not be empty")
	}
	if c.CatalogPath == "" {
		return fmt.Errorf("catalog_path must not be empty")
	}
	if len(c.Worlds) == 0 {
		return fmt.Errorf("worlds must not be empty")
	}
	seen := map[string]bool{}
	for _, w := range c.Worlds {
		if w.ID == "" {
			return fmt.Errorf("world id must not be empty")
		}
		if seen[w.ID] {
			return fmt.Errorf("duplicate world id: %s", w.ID)
		}
		seen[w.ID] = true
	}
	if c.AdminAddr == "" {
		return fmt.Errorf("admin_addr must not be empty")
	}
	if c.ObserverAddr == "" {
		return fmt.Errorf("observer_addr must not be empty")
	}
	if c.EventLogRetainDays < 0 {
		return fmt.Errorf("event_log_retain_days must not be negative")
	}
	for key := range c.Grants.Players {
		if _, err := uuid.Parse(key); err != nil {
			return fmt.Errorf("grants.players key %q is not a uuid: %w", key, err)
		}
	}
	return nil
}

// EnabledWorlds returns the ids of worlds the subsystem should index, in
// config order.
func (c Config) EnabledWorlds() []string {
	out := make([]string, 0, len(c.Worlds))
	for _, w := range c.Worlds {
		if !w.Disabled {
			out = append(out, w.ID)
		}
	}
	return out
}

func (c Config) WorldSpecByID(id string) (WorldSpec, bool) {
	for _, w := range c.Worlds {
		if w.ID == id {
			return w, true
		}
	}
	return WorldSpec{}, false
}

func (c Config) DBPath() string    { return filepath.Join(c.DataDir, "wardstone.db") }
func (c Config) StatePath() string { return filepath.Join(c.DataDir, "state.json") }

// Grants materializes the grants section into a lookup table that satisfies
// the limits resolver's grant source.
func (c Config) GrantTable() *Grants {
	g := &Grants{
		defaults: append([]string(nil), c.Grants.DefaultGrants...),
		players:  make(map[uuid.UUID][]string, len(c.Grants.Players)),
	}
	for key, grants := range c.Grants.Players {
		id, err := uuid.Parse(key)
		if err != nil {
			continue // Validate rejects these; tolerate here for tools
		}
		g.players[id] = append([]string(nil), grants...)
	}
	return g
}

// Grants is a static grant table. Real deployments would back this with the
// host permission system; the daemon and CLI resolve limits from config.
type Grants struct {
	defaults []string
	players  map[uuid.UUID][]string
}

func (g *Grants) EffectiveGrants(player uuid.UUID) []string {
	if g == nil {
		return nil
	}
	out := append([]string(nil), g.defaults...)
	out = append(out, g.players[player]...)
	return out
}
