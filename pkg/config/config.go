// Package config loads the project configuration consumed (not produced)
// by the OX core (spec.md §6), using github.com/BurntSushi/toml the way
// the teacher loads its own project configuration.
package config

import (
	"fmt"
	"path/filepath"

	"github.com/BurntSushi/toml"
)

// Resources holds the resource budgets of spec.md §5. MaxAliasLength and
// MaxFreeTextSize are decoded but not applied: the import processor checks
// aliases against DefaultMaxAliasLength, and the parser's lexer uses its
// own DefaultFreeTextLimit.
type Resources struct {
	MaxFileSize        int64 `toml:"max_file_size"`
	MaxCacheSize        int64 `toml:"max_cache_size"`
	MaxImportDepth      int   `toml:"max_import_depth"`
	MaxWhileIterations  int   `toml:"max_while_iterations"`
	MaxPathLength       int   `toml:"max_path_length"`
	MaxAliasLength      int   `toml:"max_alias_length"`
	MaxFreeTextSize     int   `toml:"max_free_text_size"`
}

// Behavior holds toggles for optional/strictness behavior.
type Behavior struct {
	MergeFreeText       bool     `toml:"merge_free_text"`
	EnableCacheEviction bool     `toml:"enable_cache_eviction"`
	ModuleDirectories   []string `toml:"module_directories"`
	Strict              bool     `toml:"strict"`
}

// Config is the resolved project configuration.
type Config struct {
	BaseDir   string    `toml:"base_dir"`
	EntryFile string    `toml:"entry_file"`
	Resources Resources `toml:"resources"`
	Behavior  Behavior  `toml:"behavior"`
}

const (
	DefaultMaxFileSize       = 10 * 1024 * 1024
	DefaultMaxCacheSize      = 100 * 1024 * 1024
	DefaultMaxImportDepth    = 50
	DefaultMaxWhileIterations = 10000
	DefaultMaxPathLength     = 4096
	DefaultMaxAliasLength    = 50
	DefaultMaxFreeTextSize   = 10 * 1024 * 1024
)

// Default returns a Config with every spec.md §5/§6 default applied; the
// caller still must set BaseDir and EntryFile.
func Default() *Config {
	return &Config{
		Resources: Resources{
			MaxFileSize:        DefaultMaxFileSize,
			MaxCacheSize:       DefaultMaxCacheSize,
			MaxImportDepth:     DefaultMaxImportDepth,
			MaxWhileIterations: DefaultMaxWhileIterations,
			MaxPathLength:      DefaultMaxPathLength,
			MaxAliasLength:     DefaultMaxAliasLength,
			MaxFreeTextSize:    DefaultMaxFreeTextSize,
		},
		Behavior: Behavior{
			MergeFreeText:       true,
			EnableCacheEviction: true,
			ModuleDirectories:   []string{"node_modules"},
			Strict:              true,
		},
	}
}

// Load reads a TOML project configuration file, applying defaults for any
// field the file omits.
func Load(path string) (*Config, error) {
	cfg := Default()
	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return nil, fmt.Errorf("loading config %s: %w", path, err)
	}
	if cfg.BaseDir == "" {
		cfg.BaseDir = filepath.Dir(path)
	}
	if len(cfg.Behavior.ModuleDirectories) == 0 {
		cfg.Behavior.ModuleDirectories = []string{"node_modules"}
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the resolved configuration is internally consistent.
func (c *Config) Validate() error {
	if c.BaseDir == "" {
		return fmt.Errorf("config: base_dir is required")
	}
	if c.EntryFile == "" {
		return fmt.Errorf("config: entry_file is required")
	}
	if c.Resources.MaxFileSize <= 0 {
		return fmt.Errorf("config: max_file_size must be positive")
	}
	if c.Resources.MaxCacheSize < c.Resources.MaxFileSize {
		return fmt.Errorf("config: max_cache_size must be >= max_file_size")
	}
	if c.Resources.MaxImportDepth <= 0 {
		return fmt.Errorf("config: max_import_depth must be positive")
	}
	if c.Resources.MaxWhileIterations <= 0 {
		return fmt.Errorf("config: max_while_iterations must be positive")
	}
	return nil
}
