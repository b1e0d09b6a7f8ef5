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

// Config holds all configuration options for pyshake.
type Config struct {
	// Optimization settings
	Optimize OptimizeConfig `koanf:"optimize"`

	// File exclusion patterns
	Exclude ExcludeConfig `koanf:"exclude"`

	// Output settings
	Output OutputConfig `koanf:"output"`
}

// OptimizeConfig controls the optimization pipeline.
type OptimizeConfig struct {
	// Entrypoint is the root of reachability, in module:function form.
	Entrypoint string `koanf:"entrypoint"`
	// Suffix is appended to surviving module names and the entrypoint.
	Suffix string `koanf:"suffix"`
	// OutDir receives the optimized tree.
	OutDir string `koanf:"out_dir"`
	// Recursive walks subdirectories of the input.
	Recursive bool `koanf:"recursive"`
	// KeepDocstrings preserves docstrings in the output.
	KeepDocstrings bool `koanf:"keep_docstrings"`
	// KeepComments preserves comments in the output.
	KeepComments bool `koanf:"keep_comments"`
	// MaxFileSize skips files above this many bytes. 0 disables the limit.
	MaxFileSize int64 `koanf:"max_file_size"`
	// Workers caps analysis parallelism. 0 derives from CPU count.
	Workers int `koanf:"workers"`
}

// ExcludeConfig defines file exclusion patterns.
type ExcludeConfig struct {
	Patterns  []string `koanf:"patterns"`
	Dirs      []string `koanf:"dirs"`
	Gitignore bool     `koanf:"gitignore"`
}

// OutputConfig controls output formatting.
type OutputConfig struct {
	Format  string `koanf:"format"` // text, json, markdown, toon, yaml
	Color   bool   `koanf:"color"`
	Verbose bool   `koanf:"verbose"`
}

// DefaultSuffix is appended to renamed modules when no suffix is
// configured.
const DefaultSuffix = "__ma"

// DefaultConfig returns a config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Optimize: OptimizeConfig{
			Suffix:    DefaultSuffix,
			OutDir:    "optimized",
			Recursive: true,
		},
		Exclude: ExcludeConfig{
			Patterns: []string{
				"test_*.py",
				"*_test.py",
				"conftest.py",
			},
			Dirs: []string{
				".git",
				".pyshake",
				"__pycache__",
				".venv",
				"venv",
				"node_modules",
				"dist",
				"build",
			},
			Gitignore: true,
		},
		Output: OutputConfig{
			Format:  "text",
			Color:   true,
			Verbose: false,
		},
	}
}

// Load loads configuration from a file.
func Load(path string) (*Config, error) {
	k := koanf.New(".")
	cfg := DefaultConfig()

	// Determine parser based on extension
	var parser koanf.Parser
	ext := strings.ToLower(filepath.Ext(path))
	switch ext {
	case ".toml":
		parser = toml.Parser()
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

	if cfg.Optimize.Suffix == "" {
		cfg.Optimize.Suffix = DefaultSuffix
	}

	return cfg, nil
}

// LoadOrDefault tries to load config from standard locations or returns
// defaults.
func LoadOrDefault() *Config {
	configNames := []string{
		"pyshake.toml",
		"pyshake.yaml",
		"pyshake.yml",
		"pyshake.json",
		".pyshake.toml",
		".pyshake.yaml",
		".pyshake.yml",
		".pyshake.json",
	}

	searchDirs := []string{".", ".pyshake"}

	for _, dir := range searchDirs {
		for _, name := range configNames {
			path := filepath.Join(dir, name)
			if _, err := os.Stat(path); err == nil {
				cfg, err := Load(path)
				if err == nil {
					return cfg
				}
			}
		}
	}

	return DefaultConfig()
}

// ShouldExclude checks if a path should be excluded from analysis.
func (c *Config) ShouldExclude(path string) bool {
	for _, dir := range c.Exclude.Dirs {
		if strings.Contains(path, string(filepath.Separator)+dir+string(filepath.Separator)) ||
			strings.HasPrefix(path, dir+string(filepath.Separator)) {
			return true
		}
	}

	base := filepath.Base(path)
	for _, pattern := range c.Exclude.Patterns {
		if matched, _ := filepath.Match(pattern, base); matched {
			return true
		}
	}

	return false
}
