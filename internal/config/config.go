// Package config loads the office2png YAML configuration file.
package config

import (
	"errors"
	"fmt"
	"image/color"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/alnah/go-office2png/internal/fileutil"
	"github.com/alnah/go-office2png/internal/yamlutil"
)

// Sentinel errors for config operations.
var (
	ErrConfigNotFound  = errors.New("config file not found")
	ErrEmptyConfigName = errors.New("config name cannot be empty")
	ErrConfigParse     = errors.New("failed to parse config")
	ErrFieldTooLong    = errors.New("field exceeds maximum length")
	ErrInvalidValue    = errors.New("invalid config value")
)

// Field length limits.
const (
	MaxPathLength     = 4096 // PATH_MAX on Linux
	MaxDurationLength = 20   // "2m30s", "300s"
	MaxColorLength    = 9    // "#rrggbbaa"
)

// appDir is the directory under the user config dir searched for named configs.
const appDir = "go-office2png"

// Config holds all configuration for the CLI.
// Zero values mean "use the library default".
type Config struct {
	Pool   PoolConfig   `yaml:"pool"`
	Render RenderConfig `yaml:"render"`
	Output OutputConfig `yaml:"output"`
}

// PoolConfig defines converter pool options.
type PoolConfig struct {
	Size               int    `yaml:"size"`               // 0 = one worker per CPU
	ConvertTimeout     string `yaml:"convertTimeout"`     // Go duration, e.g. "2m"
	MaxDocsPerWorker   int    `yaml:"maxDocsPerWorker"`   // recycle threshold
	MaxRespawnFailures int    `yaml:"maxRespawnFailures"` // before the pool degrades
	SofficePath        string `yaml:"sofficePath"`        // empty = auto-detect
}

// RenderConfig defines rasterization options.
type RenderConfig struct {
	DPI            int    `yaml:"dpi"`
	Workers        int    `yaml:"workers"`        // concurrent PNG encoders per document
	PNGCompression *int   `yaml:"pngCompression"` // 0-9, nil = default
	Background     string `yaml:"background"`     // "#rrggbb", default white
}

// OutputConfig defines output destination options.
type OutputConfig struct {
	DefaultDir string `yaml:"defaultDir"` // empty = next to each input
	Overwrite  bool   `yaml:"overwrite"`  // replace pages left by a previous run
}

// Validate checks value ranges and formats.
// Called automatically by LoadConfig, but available for callers who build
// a Config by hand.
func (c *Config) Validate() error {
	if err := validateFieldLength("pool.sofficePath", c.Pool.SofficePath, MaxPathLength); err != nil {
		return err
	}
	if err := validateFieldLength("output.defaultDir", c.Output.DefaultDir, MaxPathLength); err != nil {
		return err
	}
	if err := validateFieldLength("pool.convertTimeout", c.Pool.ConvertTimeout, MaxDurationLength); err != nil {
		return err
	}
	if err := validateFieldLength("render.background", c.Render.Background, MaxColorLength); err != nil {
		return err
	}

	nonNegative := []struct {
		field string
		value int
	}{
		{"pool.size", c.Pool.Size},
		{"pool.maxDocsPerWorker", c.Pool.MaxDocsPerWorker},
		{"pool.maxRespawnFailures", c.Pool.MaxRespawnFailures},
		{"render.dpi", c.Render.DPI},
		{"render.workers", c.Render.Workers},
	}
	for _, f := range nonNegative {
		if f.value < 0 {
			return fmt.Errorf("%w: %s must not be negative, got %d", ErrInvalidValue, f.field, f.value)
		}
	}

	if p := c.Render.PNGCompression; p != nil && (*p < 0 || *p > 9) {
		return fmt.Errorf("%w: render.pngCompression must be between 0 and 9, got %d", ErrInvalidValue, *p)
	}
	if _, err := c.Pool.Timeout(); err != nil {
		return err
	}
	if _, err := c.Render.BackgroundColor(); err != nil {
		return err
	}

	return nil
}

// Timeout parses ConvertTimeout. An empty value yields 0.
func (p PoolConfig) Timeout() (time.Duration, error) {
	if p.ConvertTimeout == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(p.ConvertTimeout)
	if err != nil {
		return 0, fmt.Errorf("%w: pool.convertTimeout: %v", ErrInvalidValue, err)
	}
	if d <= 0 {
		return 0, fmt.Errorf("%w: pool.convertTimeout must be positive, got %s", ErrInvalidValue, d)
	}
	return d, nil
}

// BackgroundColor parses Background. An empty value yields nil.
func (r RenderConfig) BackgroundColor() (color.Color, error) {
	if r.Background == "" {
		return nil, nil
	}
	c, err := ParseHexColor(r.Background)
	if err != nil {
		return nil, fmt.Errorf("%w: render.background: %v", ErrInvalidValue, err)
	}
	return c, nil
}

// ParseHexColor parses "#rgb", "#rrggbb" or "#rrggbbaa".
func ParseHexColor(s string) (color.NRGBA, error) {
	hex, ok := strings.CutPrefix(s, "#")
	if !ok {
		return color.NRGBA{}, fmt.Errorf("color %q must start with #", s)
	}
	if len(hex) == 3 {
		hex = string([]byte{hex[0], hex[0], hex[1], hex[1], hex[2], hex[2]})
	}
	if len(hex) == 6 {
		hex += "ff"
	}
	if len(hex) != 8 {
		return color.NRGBA{}, fmt.Errorf("color %q must have 3, 6 or 8 hex digits", s)
	}
	v, err := strconv.ParseUint(hex, 16, 32)
	if err != nil {
		return color.NRGBA{}, fmt.Errorf("color %q is not hexadecimal", s)
	}
	return color.NRGBA{R: uint8(v >> 24), G: uint8(v >> 16), B: uint8(v >> 8), A: uint8(v)}, nil // #nosec G115 -- masked by the uint8 conversion
}

// validateFieldLength checks if a field exceeds its maximum allowed length.
func validateFieldLength(fieldName, value string, maxLength int) error {
	if len(value) > maxLength {
		return fmt.Errorf("%w: %s (%d chars, max %d)", ErrFieldTooLong, fieldName, len(value), maxLength)
	}
	return nil
}

// DefaultConfig returns a configuration where every field defers to the
// library defaults.
func DefaultConfig() *Config {
	return &Config{}
}

// LoadConfig loads configuration from a file path or config name.
// If nameOrPath contains a path separator, it's treated as a file path.
// Otherwise, it's treated as a config name and searched in standard locations.
// Returns error if the file is not found (no silent fallback).
func LoadConfig(nameOrPath string) (*Config, error) {
	if nameOrPath == "" {
		return nil, ErrEmptyConfigName
	}

	var configPath string
	var err error

	if fileutil.IsFilePath(nameOrPath) {
		configPath = nameOrPath
	} else {
		configPath, err = resolveConfigPath(nameOrPath)
		if err != nil {
			return nil, err
		}
	}

	data, err := os.ReadFile(configPath) // #nosec G304 -- config path is user-provided
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrConfigNotFound, configPath)
		}
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	var cfg Config
	if err := yamlutil.DecodeStrict(data, &cfg); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrConfigParse, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// SearchPaths returns the candidate files for a config name, in lookup order.
func SearchPaths(name string) []string {
	extensions := []string{".yaml", ".yml"}
	paths := make([]string, 0, len(extensions)*2)

	for _, ext := range extensions {
		paths = append(paths, name+ext)
	}
	if userConfigDir, err := os.UserConfigDir(); err == nil {
		for _, ext := range extensions {
			paths = append(paths, filepath.Join(userConfigDir, appDir, name+ext))
		}
	}
	return paths
}

// resolveConfigPath searches for a config file by name in standard locations.
// Tries the current directory, then ~/.config/go-office2png/, each with
// .yaml before .yml.
func resolveConfigPath(name string) (string, error) {
	paths := SearchPaths(name)
	for _, p := range paths {
		if fileutil.FileExists(p) {
			return p, nil
		}
	}
	return "", fmt.Errorf("%w: tried %s", ErrConfigNotFound, strings.Join(paths, ", "))
}
