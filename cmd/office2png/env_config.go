package main

import (
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/alnah/go-office2png/internal/config"
)

// envPrefix namespaces every variable the CLI reads.
const envPrefix = "OFFICE2PNG_"

// envConfig holds configuration from environment variables.
// Provides CI/CD-friendly overrides without requiring YAML files.
type envConfig struct {
	ConfigPath string        // OFFICE2PNG_CONFIG: config file name or path
	Workers    int           // OFFICE2PNG_WORKERS: converter processes
	DPI        int           // OFFICE2PNG_DPI: render resolution
	Timeout    time.Duration // OFFICE2PNG_TIMEOUT: per-document conversion timeout
	OutputDir  string        // OFFICE2PNG_OUTPUT_DIR: default output directory
	Soffice    string        // OFFICE2PNG_SOFFICE: soffice binary
}

// knownEnvVars lists valid OFFICE2PNG_* environment variables.
// Used to detect typos and warn users about unknown variables.
var knownEnvVars = map[string]bool{
	"OFFICE2PNG_CONFIG":     true,
	"OFFICE2PNG_WORKERS":    true,
	"OFFICE2PNG_DPI":        true,
	"OFFICE2PNG_TIMEOUT":    true,
	"OFFICE2PNG_OUTPUT_DIR": true,
	"OFFICE2PNG_SOFFICE":    true,
	// Read by doctor only.
	"OFFICE2PNG_CONTAINER": true,
}

// loadEnvConfig reads configuration from environment variables.
// Malformed numbers and durations are reported to w and ignored.
func loadEnvConfig(w io.Writer) *envConfig {
	cfg := &envConfig{
		ConfigPath: os.Getenv("OFFICE2PNG_CONFIG"),
		OutputDir:  os.Getenv("OFFICE2PNG_OUTPUT_DIR"),
		Soffice:    os.Getenv("OFFICE2PNG_SOFFICE"),
	}

	if timeout := os.Getenv("OFFICE2PNG_TIMEOUT"); timeout != "" {
		if d, err := time.ParseDuration(timeout); err == nil && d > 0 {
			cfg.Timeout = d
		} else {
			fmt.Fprintf(w, "warning: ignoring OFFICE2PNG_TIMEOUT=%q (want a positive duration like 90s)\n", timeout)
		}
	}

	cfg.Workers = positiveIntEnv(w, "OFFICE2PNG_WORKERS")
	cfg.DPI = positiveIntEnv(w, "OFFICE2PNG_DPI")

	return cfg
}

func positiveIntEnv(w io.Writer, name string) int {
	raw := os.Getenv(name)
	if raw == "" {
		return 0
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		fmt.Fprintf(w, "warning: ignoring %s=%q (want a positive integer)\n", name, raw)
		return 0
	}
	return n
}

// warnUnknownEnvVars logs warnings for unrecognized OFFICE2PNG_* variables.
// Helps catch typos like OFFICE2PNG_WORKER instead of OFFICE2PNG_WORKERS.
func warnUnknownEnvVars(w io.Writer) {
	for _, env := range os.Environ() {
		if strings.HasPrefix(env, envPrefix) {
			name, _, _ := strings.Cut(env, "=")
			if !knownEnvVars[name] {
				fmt.Fprintf(w, "warning: unknown environment variable %s (typo?)\n", name)
			}
		}
	}
}

// applyEnvConfig applies environment variable values to config.
// Environment values win over the config file; CLI flags are applied
// afterwards by mergeFlags, giving flags > env > config file > defaults.
func applyEnvConfig(env *envConfig, cfg *config.Config) {
	if env.Workers > 0 {
		cfg.Pool.Size = env.Workers
	}
	if env.DPI > 0 {
		cfg.Render.DPI = env.DPI
	}
	if env.Timeout > 0 {
		cfg.Pool.ConvertTimeout = env.Timeout.String()
	}
	if env.OutputDir != "" {
		cfg.Output.DefaultDir = env.OutputDir
	}
	if env.Soffice != "" {
		cfg.Pool.SofficePath = env.Soffice
	}
}
