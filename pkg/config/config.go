package config

import (
	"fmt"
	"strings"

	"github.com/knadh/koanf/parsers/toml/v2"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/spf13/pflag"
)

// Config holds all configuration for a mapping run
type Config struct {
	Directory    string   `koanf:"dir"`
	PreFile      string   `koanf:"pre"`
	PostFile     string   `koanf:"post"`
	PreSaveName  string   `koanf:"prename"`
	PostSaveName string   `koanf:"postname"`
	MapFileName  string   `koanf:"mapfile"`
	BondingAtoms []int    `koanf:"ba"`  // four ids: pre pair then post pair
	Elements     []string `koanf:"ebt"` // element symbol per type id, 1-based
	DeleteAtoms  []int    `koanf:"da"`  // pre-only ids removed by the reaction
	CreateAtoms  []int    `koanf:"ca"`  // post-only ids
	Radius       int      `koanf:"radius"`
	Paired       bool     `koanf:"paired"` // pre/post ids already denote the same atoms
	Watch        bool     `koanf:"watch"`
	DebounceMs   int      `koanf:"debounce"`
	JSONLogs     bool     `koanf:"json"`
	VerboseCnt   int      `koanf:"verbose"`
}

// Load loads configuration from defaults, config file, environment variables, and flags.
// Priority: Flags > Env > Config File > Defaults
func Load(f *pflag.FlagSet) (*Config, error) {
	k := koanf.New(".")

	// 1. Defaults
	defaults := map[string]interface{}{
		"dir":      ".",
		"prename":  "pre_mol.data",
		"postname": "post_mol.data",
		"mapfile":  "automap.data",
		"radius":   4,
		"paired":   false,
		"watch":    false,
		"debounce": 500,
		"json":     false,
		"verbose":  0,
	}
	if err := k.Load(makeMapProvider(defaults), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	// 2. Config File (optional) - automapper.toml
	// Ignore errors here as the file might not exist
	_ = k.Load(file.Provider("automapper.toml"), toml.Parser())

	// 3. Environment Variables
	// Prefix: AUTOMAPPER_ (e.g., AUTOMAPPER_RADIUS=5)
	if err := k.Load(env.Provider("AUTOMAPPER_", ".", func(s string) string {
		return strings.ReplaceAll(strings.ToLower(
			strings.TrimPrefix(s, "AUTOMAPPER_")), "_", ".")
	}), nil); err != nil {
		return nil, fmt.Errorf("failed to load env vars: %w", err)
	}

	// 4. Flags
	if f != nil {
		if err := k.Load(posflag.Provider(f, ".", k), nil); err != nil {
			return nil, fmt.Errorf("failed to load flags: %w", err)
		}
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return &cfg, nil
}

// Validate checks that the configuration describes a runnable reaction
func (c *Config) Validate() error {
	if c.PreFile == "" || c.PostFile == "" {
		return fmt.Errorf("both --pre and --post input files are required")
	}
	if len(c.BondingAtoms) != 4 {
		return fmt.Errorf("--ba requires exactly 4 atom ids (pre pair then post pair), got %d", len(c.BondingAtoms))
	}
	if len(c.Elements) == 0 {
		return fmt.Errorf("--ebt (elements by type) is required")
	}
	if c.Radius < 1 {
		return fmt.Errorf("retention radius must be >= 1, got %d", c.Radius)
	}
	return nil
}

// PreBondingAtoms returns the pre-reaction bonding atom pair
func (c *Config) PreBondingAtoms() [2]int {
	return [2]int{c.BondingAtoms[0], c.BondingAtoms[1]}
}

// PostBondingAtoms returns the post-reaction bonding atom pair
func (c *Config) PostBondingAtoms() [2]int {
	return [2]int{c.BondingAtoms[2], c.BondingAtoms[3]}
}

// Helper to use map as a provider
type mapProvider struct {
	m map[string]interface{}
}

func makeMapProvider(m map[string]interface{}) *mapProvider {
	return &mapProvider{m: m}
}

func (p *mapProvider) Read() (map[string]interface{}, error) {
	return p.m, nil
}

func (p *mapProvider) ReadBytes() ([]byte, error) {
	return nil, fmt.Errorf("not implemented")
}
