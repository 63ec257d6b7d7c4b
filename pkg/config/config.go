// Package config handles gobf.toml run configuration. YAML files are
// accepted too and picked by extension.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"
)

// FileName is the configuration file FindAndLoad looks for.
const FileName = "gobf.toml"

// Config represents a gobf.toml file.
type Config struct {
	Tape    Tape    `toml:"tape" yaml:"tape"`
	Bitmap  Bitmap  `toml:"bitmap" yaml:"bitmap"`
	Limits  Limits  `toml:"limits" yaml:"limits"`
	Log     Log     `toml:"log" yaml:"log"`
	Metrics Metrics `toml:"metrics" yaml:"metrics"`

	// Path is the file the configuration was read from (set at load time).
	Path string `toml:"-" yaml:"-"`
}

// Tape configures the memory of the machine.
type Tape struct {
	Size    int `toml:"size" yaml:"size"`
	CellMax int `toml:"cell-max" yaml:"cell-max"`
}

// Bitmap configures the image codec.
type Bitmap struct {
	BlockSide int `toml:"block-side" yaml:"block-side"`
}

// Limits bound expansion and recursion.
type Limits struct {
	MaxExpansionDepth int `toml:"max-expansion-depth" yaml:"max-expansion-depth"`
	MaxCallDepth      int `toml:"max-call-depth" yaml:"max-call-depth"`
}

// Log configures commonlog. File is empty for stderr.
type Log struct {
	Verbosity int    `toml:"verbosity" yaml:"verbosity"`
	File      string `toml:"file" yaml:"file"`
}

// Metrics configures the run history database. An empty Database disables it.
type Metrics struct {
	Database string `toml:"database" yaml:"database"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Tape:   Tape{Size: 30000, CellMax: 255},
		Bitmap: Bitmap{BlockSide: 3},
		Limits: Limits{MaxExpansionDepth: 64, MaxCallDepth: 1024},
	}
}

// Load parses a configuration file. Keys missing from the file keep their
// default values. Relative log and database paths are resolved against the
// directory of the file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("cannot read %s: %w", path, err)
	}

	c := Default()
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yml", ".yaml":
		if err := yaml.Unmarshal(data, c); err != nil {
			return nil, fmt.Errorf("parse error in %s: %w", path, err)
		}
	default:
		if err := toml.Unmarshal(data, c); err != nil {
			return nil, fmt.Errorf("parse error in %s: %w", path, err)
		}
	}

	c.Path, err = filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("cannot resolve path %s: %w", path, err)
	}
	dir := filepath.Dir(c.Path)
	c.Log.File = resolve(dir, c.Log.File)
	c.Metrics.Database = resolve(dir, c.Metrics.Database)

	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return c, nil
}

func resolve(dir, p string) string {
	if p == "" || p == ":memory:" || filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(dir, p)
}

// FindAndLoad walks up from startDir to find a gobf.toml file and loads it.
// Returns the defaults if no file is found.
func FindAndLoad(startDir string) (*Config, error) {
	dir, err := filepath.Abs(startDir)
	if err != nil {
		return nil, err
	}

	for {
		path := filepath.Join(dir, FileName)
		if _, err := os.Stat(path); err == nil {
			return Load(path)
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			return Default(), nil
		}
		dir = parent
	}
}

// ValidationError aggregates configuration problems.
type ValidationError struct {
	Issues []string
}

func (e *ValidationError) Error() string {
	if len(e.Issues) == 0 {
		return "config: invalid configuration"
	}
	return "config validation failed: " + strings.Join(e.Issues, "; ")
}

// Validate reports every value the tools cannot run with.
func (c *Config) Validate() error {
	var issues []string
	if c.Tape.Size <= 0 {
		issues = append(issues, fmt.Sprintf("tape.size must be positive, got %d", c.Tape.Size))
	}
	if c.Tape.CellMax < 1 || c.Tape.CellMax > 255 {
		issues = append(issues, fmt.Sprintf("tape.cell-max must be in 1..255, got %d", c.Tape.CellMax))
	}
	if c.Bitmap.BlockSide <= 0 {
		issues = append(issues, fmt.Sprintf("bitmap.block-side must be positive, got %d", c.Bitmap.BlockSide))
	}
	if c.Limits.MaxExpansionDepth <= 0 {
		issues = append(issues, fmt.Sprintf("limits.max-expansion-depth must be positive, got %d", c.Limits.MaxExpansionDepth))
	}
	if c.Limits.MaxCallDepth <= 0 {
		issues = append(issues, fmt.Sprintf("limits.max-call-depth must be positive, got %d", c.Limits.MaxCallDepth))
	}
	if len(issues) > 0 {
		return &ValidationError{Issues: issues}
	}
	return nil
}
