package office2png

import (
	"context"
	"fmt"
	"os"

	"github.com/rs/zerolog"
)

// Converter turns office documents into per-page PNG files.
// Create with NewConverter, use Convert or ConvertBatch, and Close when done.
// A Converter is safe for concurrent use.
type Converter struct {
	cfg         converterConfig
	logger      zerolog.Logger
	launcher    Launcher
	rasterizer  Rasterizer
	encoder     pngEncoder
	metrics     *metrics
	pool        *workerPool
	sofficePath string
}

// NewConverter resolves the LibreOffice toolchain and starts the worker pool.
// Returns ErrToolchainNotFound when soffice cannot be located and
// ErrInvalidConfig for out-of-range options.
func NewConverter(opts ...Option) (*Converter, error) {
	c := &Converter{
		cfg:    defaultConfig(),
		logger: zerolog.Nop(),
	}

	for _, opt := range opts {
		opt(c)
	}

	if err := c.cfg.validate(); err != nil {
		return nil, err
	}

	if c.launcher == nil {
		bin, err := LookupSoffice(c.cfg.sofficePath)
		if err != nil {
			return nil, err
		}
		c.sofficePath = bin
		c.launcher = newSofficeLauncher(bin, c.cfg.tempDir, c.logger)
	}
	if c.rasterizer == nil {
		c.rasterizer = fitzRasterizer{}
	}
	c.encoder = newPNGEncoder(c.cfg.background, c.cfg.pngCompression)
	c.metrics = newMetrics(c.cfg.registerer)

	pool, err := newWorkerPool(context.Background(), c.launcher, poolConfig{
		size:               ResolvePoolSize(c.cfg.poolSize),
		maxDocsPerWorker:   c.cfg.maxDocsPerWorker,
		maxRespawnFailures: c.cfg.maxRespawnFailures,
		newBackOff:         c.cfg.respawnBackOff,
		logger:             c.logger,
		metrics:            c.metrics,
	})
	if err != nil {
		return nil, err
	}
	c.pool = pool

	c.logger.Debug().
		Int("workers", pool.Size()).
		Int("dpi", c.cfg.dpi).
		Str("soffice", c.sofficePath).
		Msg("converter ready")

	return c, nil
}

// Convert renders one document into outputDir and returns the written pages.
// Errors are *JobError values wrapping one of the package sentinels.
// Recovers from internal panics to prevent crashes from propagating to callers.
func (c *Converter) Convert(ctx context.Context, inputPath, outputDir string, opts ...ConvertOption) (result *FileResult, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("internal error: %v", r)
		}
	}()

	var o convertOptions
	for _, opt := range opts {
		opt(&o)
	}

	dpi := c.cfg.dpi
	if o.dpi != 0 {
		if err := validateDPI(o.dpi); err != nil {
			return nil, err
		}
		dpi = o.dpi
	}
	if o.prefix != "" {
		if err := validatePrefix(o.prefix); err != nil {
			return nil, err
		}
	}

	if err := os.MkdirAll(outputDir, 0o750); err != nil {
		return nil, fmt.Errorf("%w: creating output directory: %v", ErrIO, err)
	}

	return c.runJob(ctx, newJob(inputPath, outputDir, dpi, o.prefix))
}

// Health returns a snapshot of the worker pool. It never waits on a running
// conversion.
func (c *Converter) Health() PoolHealth {
	return c.pool.Health()
}

// PoolSize returns the number of workers.
func (c *Converter) PoolSize() int {
	return c.pool.Size()
}

// SofficePath returns the LibreOffice binary in use, or "" when a custom
// Launcher was supplied.
func (c *Converter) SofficePath() string {
	return c.sofficePath
}

// Shutdown stops accepting work, waits for busy workers until ctx ends and
// then kills them. Safe to call multiple times and from several goroutines.
func (c *Converter) Shutdown(ctx context.Context) error {
	return c.pool.Shutdown(ctx)
}

// Close shuts down with the configured shutdown timeout.
func (c *Converter) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), c.cfg.shutdownTimeout)
	defer cancel()
	return c.Shutdown(ctx)
}
