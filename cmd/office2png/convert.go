package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/fatih/color"
	"github.com/rs/zerolog"
	flag "github.com/spf13/pflag"

	office2png "github.com/alnah/go-office2png"
	"github.com/alnah/go-office2png/internal/config"
	"github.com/alnah/go-office2png/internal/hints"
)

// Sentinel errors for CLI operations.
var (
	ErrNoInput              = errors.New("no input specified")
	ErrInvalidFlags         = errors.New("invalid flags")
	ErrInvalidWorkerCount   = errors.New("invalid worker count")
	ErrInvalidTimeout       = errors.New("invalid timeout")
	ErrPrefixMultipleInputs = errors.New("--prefix requires exactly one input")
	ErrConversionsFailed    = errors.New("conversion(s) failed")
)

// runConvertCmd parses convert flags and runs the conversion.
func runConvertCmd(ctx context.Context, args []string, env *Environment) error {
	flags, positional, err := parseConvertFlags(args)
	if errors.Is(err, flag.ErrHelp) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidFlags, err)
	}
	return runConvert(ctx, positional, flags, env)
}

// runConvert orchestrates the conversion process.
func runConvert(ctx context.Context, positionalArgs []string, flags *convertFlags, env *Environment) error {
	if flags.common.noColor {
		color.NoColor = true
	}
	logger, err := newLogger(env.Stderr, flags.common)
	if err != nil {
		return err
	}

	// Precedence: flags > env > config file > defaults
	envCfg := loadEnvConfig(env.Stderr)
	warnUnknownEnvVars(env.Stderr)

	cfg, err := loadConfig(flags.common.config, envCfg.ConfigPath)
	if err != nil {
		return err
	}
	applyEnvConfig(envCfg, cfg)
	if err := mergeFlags(flags, cfg); err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	inputs, err := discoverInputs(positionalArgs)
	if err != nil {
		return err
	}
	if len(inputs) == 0 {
		return fmt.Errorf("%w: pass documents or directories containing %v", ErrNoInput, office2png.SupportedExtensions())
	}
	if flags.prefix != "" && len(inputs) > 1 {
		return fmt.Errorf("%w: got %d", ErrPrefixMultipleInputs, len(inputs))
	}

	opts, err := converterOptions(cfg, logger)
	if err != nil {
		return err
	}
	conv, err := env.NewConverter(opts...)
	if err != nil {
		if errors.Is(err, office2png.ErrToolchainNotFound) {
			return fmt.Errorf("%w%s", err, hints.ForToolchain())
		}
		return err
	}
	defer func() {
		if err := conv.Close(); err != nil {
			logger.Warn().Err(err).Msg("shutting down converters")
		}
	}()

	logger.Debug().Int("workers", conv.PoolSize()).Int("inputs", len(inputs)).Msg("starting conversion")

	start := env.Now()
	rep := newReporter(env.Stderr, flags.progress && !flags.common.quiet, len(inputs))
	sum, err := convertAll(ctx, conv, inputs, cfg.Output.DefaultDir, flags.prefix, rep)
	rep.finish()
	if err != nil {
		if errors.Is(err, office2png.ErrIO) {
			return fmt.Errorf("%w%s", err, hints.ForOutputDirectory())
		}
		return err
	}
	sum.wallTime = env.Now().Sub(start)

	printSummary(env, sum, flags.common.quiet, flags.common.verbose)
	if conv.Health().Degraded {
		fmt.Fprintf(env.Stderr, "warning: converter pool degraded%s\n", hints.ForDegradedPool())
	}

	if n := len(sum.failed); n > 0 {
		return fmt.Errorf("%w: %d of %d", ErrConversionsFailed, n, len(inputs))
	}
	return nil
}

// summary accumulates results across batches.
type summary struct {
	succeeded []office2png.FileResult
	failed    []office2png.FailedFile
	cancelled int
	pages     int
	wallTime  time.Duration
}

// convertAll converts inputs one batch per output directory, aborting
// in-flight documents when ctx is cancelled.
func convertAll(ctx context.Context, conv batchConverter, inputs []string, outputDir, prefix string, rep *reporter) (*summary, error) {
	sum := &summary{}

	if prefix != "" {
		plan := planBatches(inputs, outputDir)[0]
		res, err := conv.Convert(ctx, inputs[0], plan.outputDir, office2png.WithPrefix(prefix))
		if err != nil {
			if errors.Is(err, office2png.ErrIO) || errors.Is(err, office2png.ErrPoolShuttingDown) {
				return nil, err
			}
			sum.failed = append(sum.failed, office2png.FailedFile{InputPath: inputs[0], Err: err, Message: err.Error()})
			return sum, nil
		}
		sum.succeeded = append(sum.succeeded, *res)
		sum.pages = res.PageCount
		return sum, nil
	}

	for _, plan := range planBatches(inputs, outputDir) {
		res, err := conv.ConvertBatch(ctx, plan.inputs, plan.outputDir,
			office2png.WithProgress(rep.track),
			office2png.WithCancelMode(office2png.CancelAbort),
		)
		if err != nil {
			return nil, err
		}
		sum.succeeded = append(sum.succeeded, res.Successful...)
		sum.failed = append(sum.failed, res.Failed...)
		sum.cancelled += res.Cancelled
		sum.pages += res.TotalPages
	}
	return sum, nil
}

// loadConfig loads the config named by the flag, falling back to the env var.
// No name means defaults.
func loadConfig(flagValue, envValue string) (*config.Config, error) {
	name := flagValue
	if name == "" {
		name = envValue
	}
	if name == "" {
		return config.DefaultConfig(), nil
	}

	cfg, err := config.LoadConfig(name)
	if err != nil {
		if errors.Is(err, config.ErrConfigNotFound) {
			return nil, fmt.Errorf("loading config: %w%s", err, hints.ForConfigNotFound(config.SearchPaths(name)))
		}
		return nil, fmt.Errorf("loading config: %w", err)
	}
	return cfg, nil
}

// mergeFlags merges CLI flags into config. CLI values override config values.
func mergeFlags(flags *convertFlags, cfg *config.Config) error {
	if flags.workers < 0 {
		return fmt.Errorf("%w: %d (must be >= 0, 0 means auto)", ErrInvalidWorkerCount, flags.workers)
	}
	if flags.workers > 0 {
		cfg.Pool.Size = flags.workers
	}
	if flags.timeout != "" {
		d, err := time.ParseDuration(flags.timeout)
		if err != nil {
			return fmt.Errorf("%w: %q (use format like 90s, 2m)", ErrInvalidTimeout, flags.timeout)
		}
		if d <= 0 {
			return fmt.Errorf("%w: must be positive, got %s", ErrInvalidTimeout, flags.timeout)
		}
		cfg.Pool.ConvertTimeout = d.String()
	}
	if flags.soffice != "" {
		cfg.Pool.SofficePath = flags.soffice
	}
	if flags.output != "" {
		cfg.Output.DefaultDir = flags.output
	}
	if flags.overwrite {
		cfg.Output.Overwrite = true
	}

	if flags.render.dpi != 0 {
		cfg.Render.DPI = flags.render.dpi
	}
	if flags.render.renderWorkers != 0 {
		cfg.Render.Workers = flags.render.renderWorkers
	}
	if flags.render.compression != compressionUnset {
		level := flags.render.compression
		cfg.Render.PNGCompression = &level
	}
	if flags.render.background != "" {
		cfg.Render.Background = flags.render.background
	}
	return nil
}

// converterOptions translates a validated config into library options.
// Zero values are left to the library defaults.
func converterOptions(cfg *config.Config, logger zerolog.Logger) ([]office2png.Option, error) {
	opts := []office2png.Option{office2png.WithLogger(logger)}

	if cfg.Pool.Size > 0 {
		opts = append(opts, office2png.WithPoolSize(cfg.Pool.Size))
	}
	timeout, err := cfg.Pool.Timeout()
	if err != nil {
		return nil, err
	}
	if timeout > 0 {
		opts = append(opts, office2png.WithConvertTimeout(timeout))
	}
	if cfg.Pool.MaxDocsPerWorker > 0 {
		opts = append(opts, office2png.WithMaxDocsPerWorker(cfg.Pool.MaxDocsPerWorker))
	}
	if cfg.Pool.MaxRespawnFailures > 0 {
		opts = append(opts, office2png.WithMaxRespawnFailures(cfg.Pool.MaxRespawnFailures))
	}
	if cfg.Pool.SofficePath != "" {
		opts = append(opts, office2png.WithSofficePath(cfg.Pool.SofficePath))
	}

	if cfg.Output.Overwrite {
		opts = append(opts, office2png.WithOverwrite(true))
	}

	if cfg.Render.DPI > 0 {
		opts = append(opts, office2png.WithDPI(cfg.Render.DPI))
	}
	if cfg.Render.Workers > 0 {
		opts = append(opts, office2png.WithRenderWorkers(cfg.Render.Workers))
	}
	if cfg.Render.PNGCompression != nil {
		opts = append(opts, office2png.WithPNGCompression(*cfg.Render.PNGCompression))
	}
	bg, err := cfg.Render.BackgroundColor()
	if err != nil {
		return nil, err
	}
	if bg != nil {
		opts = append(opts, office2png.WithBackground(bg))
	}

	return opts, nil
}
