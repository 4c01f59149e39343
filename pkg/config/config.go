// Package config loads patina configuration from TOML, YAML, or JSON files.
package config

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/knadh/koanf/parsers/json"
	"github.com/knadh/koanf/parsers/toml"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// Config holds all configuration options for patina.
type Config struct {
	// Scan controls the matching run.
	Scan ScanConfig `koanf:"scan"`

	// Catalog selects the rule catalog.
	Catalog CatalogConfig `koanf:"catalog"`

	// Exclude filters which unit documents are picked up.
	Exclude ExcludeConfig `koanf:"exclude"`

	// Output controls report rendering.
	Output OutputConfig `koanf:"output"`
}

// ScanConfig controls the scan run.
type ScanConfig struct {
	Workers        int `koanf:"workers"`
	UnitTimeoutMS  int `koanf:"unit_timeout_ms"`
	MinSeverity    int `koanf:"min_severity"`
	FailOnSeverity int `koanf:"fail_on_severity"`

	ShowSuppressed bool `koanf:"show_suppressed"`
}

// CatalogConfig selects the rule catalog. An empty path means the embedded
// seed catalog.
type CatalogConfig struct {
	Path string `koanf:"path"`
}

// ExcludeConfig defines unit-document exclusion patterns.
type ExcludeConfig struct {
	Patterns []string `koanf:"patterns"`
	Dirs     []string `koanf:"dirs"`
}

// OutputConfig controls output formatting.
type OutputConfig struct {
	Format  string `koanf:"format"` // text, json, markdown, toon
	Color   bool   `koanf:"color"`
	Verbose bool   `koanf:"verbose"`
}

// DefaultConfig returns a config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Scan: ScanConfig{
			Workers:        0, // one per CPU
			UnitTimeoutMS:  5000,
			MinSeverity:    1,
			FailOnSeverity: 0, // disabled
		},
		Exclude: ExcludeConfig{
			Dirs: []string{
				".git",
				".patina",
				"vendor",
				"node_modules",
			},
		},
		Output: OutputConfig{
			Format: "text",
			Color:  true,
		},
	}
}

// Load loads configuration from a file, with defaults filling any gaps.
func Load(path string) (*Config, error) {
	k := koanf.New(".")
	cfg := DefaultConfig()

	var parser koanf.Parser
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		parser = yaml.Parser()
	case ".json":
		parser = json.Parser()
	default:
		parser = toml.Parser()
	}

	if err := k.Load(file.Provider(path), parser); err != nil {
		return nil, err
	}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadOrDefault tries standard config locations, falling back to defaults.
func LoadOrDefault() *Config {
	names := []string{
		"patina.toml",
		"patina.yaml",
		"patina.yml",
		"patina.json",
		".patina.toml",
		".patina.yaml",
		".patina.yml",
		".patina.json",
	}
	for _, dir := range []string{".", ".patina"} {
		for _, name := range names {
			path := filepath.Join(dir, name)
			if _, err := os.Stat(path); err == nil {
				if cfg, err := Load(path); err == nil {
					return cfg
				}
			}
		}
	}
	return DefaultConfig()
}
