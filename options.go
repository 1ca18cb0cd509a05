package office2png

import (
	"fmt"
	"image/color"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"

	"github.com/alnah/go-office2png/internal/fileutil"
)

// DPI bounds and defaults.
const (
	MinDPI     = 1
	MaxDPI     = 1200
	DefaultDPI = 300
)

// Timeout defaults.
const (
	DefaultConvertTimeout  = 120 * time.Second
	DefaultRenderTimeout   = 300 * time.Second
	DefaultShutdownTimeout = 30 * time.Second
)

// Option configures a Converter.
type Option func(*Converter)

// converterConfig holds internal configuration for Converter.
type converterConfig struct {
	poolSize           int
	dpi                int
	convertTimeout     time.Duration
	renderTimeout      time.Duration
	shutdownTimeout    time.Duration
	sofficePath        string
	maxDocsPerWorker   int
	maxRespawnFailures int
	renderWorkers      int
	pngCompression     int
	background         color.Color
	tempDir            string
	overwrite          bool
	registerer         prometheus.Registerer
	respawnBackOff     func() backoff.BackOff
}

func defaultConfig() converterConfig {
	return converterConfig{
		dpi:                DefaultDPI,
		convertTimeout:     DefaultConvertTimeout,
		renderTimeout:      DefaultRenderTimeout,
		shutdownTimeout:    DefaultShutdownTimeout,
		maxDocsPerWorker:   DefaultMaxDocsPerWorker,
		maxRespawnFailures: DefaultMaxRespawnFailures,
		renderWorkers:      1,
		pngCompression:     DefaultPNGCompression,
		background:         color.White,
	}
}

// validate rejects out-of-range settings with ErrInvalidConfig.
func (c converterConfig) validate() error {
	switch {
	case c.poolSize < 0:
		return fmt.Errorf("%w: pool size must be >= 0, got %d", ErrInvalidConfig, c.poolSize)
	case c.dpi < MinDPI || c.dpi > MaxDPI:
		return fmt.Errorf("%w: dpi must be between %d and %d, got %d", ErrInvalidConfig, MinDPI, MaxDPI, c.dpi)
	case c.convertTimeout <= 0:
		return fmt.Errorf("%w: convert timeout must be positive", ErrInvalidConfig)
	case c.renderTimeout <= 0:
		return fmt.Errorf("%w: render timeout must be positive", ErrInvalidConfig)
	case c.shutdownTimeout <= 0:
		return fmt.Errorf("%w: shutdown timeout must be positive", ErrInvalidConfig)
	case c.maxDocsPerWorker < 0:
		return fmt.Errorf("%w: max docs per worker must be >= 0, got %d", ErrInvalidConfig, c.maxDocsPerWorker)
	case c.maxRespawnFailures < 1:
		return fmt.Errorf("%w: max respawn failures must be >= 1, got %d", ErrInvalidConfig, c.maxRespawnFailures)
	case c.renderWorkers < 1:
		return fmt.Errorf("%w: render workers must be >= 1, got %d", ErrInvalidConfig, c.renderWorkers)
	case c.pngCompression < MinPNGCompression || c.pngCompression > MaxPNGCompression:
		return fmt.Errorf("%w: png compression must be between %d and %d, got %d",
			ErrInvalidConfig, MinPNGCompression, MaxPNGCompression, c.pngCompression)
	}
	if c.tempDir != "" {
		if err := fileutil.DirWritable(c.tempDir); err != nil {
			return fmt.Errorf("%w: temp dir: %v", ErrInvalidConfig, err)
		}
	}
	return nil
}

func validateDPI(dpi int) error {
	if dpi < MinDPI || dpi > MaxDPI {
		return fmt.Errorf("%w: dpi must be between %d and %d, got %d", ErrInvalidConfig, MinDPI, MaxDPI, dpi)
	}
	return nil
}

// WithPoolSize sets the number of converter workers. 0 means one per CPU.
func WithPoolSize(n int) Option {
	return func(c *Converter) {
		c.cfg.poolSize = n
	}
}

// WithDPI sets the default rendering resolution.
func WithDPI(dpi int) Option {
	return func(c *Converter) {
		c.cfg.dpi = dpi
	}
}

// WithConvertTimeout bounds the document-to-PDF stage. A worker that
// exceeds it is killed and respawned.
func WithConvertTimeout(d time.Duration) Option {
	return func(c *Converter) {
		c.cfg.convertTimeout = d
	}
}

// WithRenderTimeout bounds the rasterization stage of one document.
func WithRenderTimeout(d time.Duration) Option {
	return func(c *Converter) {
		c.cfg.renderTimeout = d
	}
}

// WithShutdownTimeout sets how long Close waits for busy workers.
func WithShutdownTimeout(d time.Duration) Option {
	return func(c *Converter) {
		c.cfg.shutdownTimeout = d
	}
}

// WithSofficePath sets an explicit LibreOffice binary.
func WithSofficePath(path string) Option {
	return func(c *Converter) {
		c.cfg.sofficePath = path
	}
}

// WithLogger sets the logger. The default discards everything.
func WithLogger(l zerolog.Logger) Option {
	return func(c *Converter) {
		c.logger = l
	}
}

// WithRegisterer registers pool and pipeline metrics on reg.
func WithRegisterer(reg prometheus.Registerer) Option {
	return func(c *Converter) {
		c.cfg.registerer = reg
	}
}

// WithMaxDocsPerWorker recycles a worker after n documents. 0 disables recycling.
func WithMaxDocsPerWorker(n int) Option {
	return func(c *Converter) {
		c.cfg.maxDocsPerWorker = n
	}
}

// WithMaxRespawnFailures sets how many consecutive spawn failures mark the
// pool degraded.
func WithMaxRespawnFailures(n int) Option {
	return func(c *Converter) {
		c.cfg.maxRespawnFailures = n
	}
}

// WithRenderWorkers sets how many pages of one document are encoded and
// written concurrently. 1 renders sequentially.
func WithRenderWorkers(n int) Option {
	return func(c *Converter) {
		c.cfg.renderWorkers = n
	}
}

// WithPNGCompression sets the PNG compression level, 0 (none) to 9 (smallest).
func WithPNGCompression(level int) Option {
	return func(c *Converter) {
		c.cfg.pngCompression = level
	}
}

// WithBackground sets the colour transparent page areas are flattened onto.
func WithBackground(bg color.Color) Option {
	return func(c *Converter) {
		c.cfg.background = bg
	}
}

// WithTempDir sets where worker profiles and intermediate PDFs are created.
func WithTempDir(dir string) Option {
	return func(c *Converter) {
		c.cfg.tempDir = dir
	}
}

// WithOverwrite lets page writes replace files already present in the
// output directory. By default such a page fails the document with ErrIO.
func WithOverwrite(overwrite bool) Option {
	return func(c *Converter) {
		c.cfg.overwrite = overwrite
	}
}

// WithLauncher replaces the LibreOffice launcher. No toolchain lookup is
// done when a launcher is supplied.
func WithLauncher(l Launcher) Option {
	return func(c *Converter) {
		c.launcher = l
	}
}

// WithRasterizer replaces the MuPDF rasterizer.
func WithRasterizer(r Rasterizer) Option {
	return func(c *Converter) {
		c.rasterizer = r
	}
}

// ConvertOption adjusts a single Convert call.
type ConvertOption func(*convertOptions)

type convertOptions struct {
	dpi    int
	prefix string
}

// WithDPIOverride renders this document at dpi instead of the default.
func WithDPIOverride(dpi int) ConvertOption {
	return func(o *convertOptions) {
		o.dpi = dpi
	}
}

// WithPrefix names output files {prefix}_{page}.png instead of using the
// input stem.
func WithPrefix(prefix string) ConvertOption {
	return func(o *convertOptions) {
		o.prefix = prefix
	}
}

// CancelMode selects what happens to in-flight documents when a batch's
// context is cancelled.
type CancelMode int

const (
	// CancelWait lets in-flight documents finish; only undispatched ones
	// are abandoned.
	CancelWait CancelMode = iota
	// CancelAbort kills in-flight conversions and removes their partial pages.
	CancelAbort
)

func (m CancelMode) String() string {
	if m == CancelAbort {
		return "abort"
	}
	return "wait"
}

// BatchOption adjusts a ConvertBatch call.
type BatchOption func(*batchOptions)

type batchOptions struct {
	progress   func(ConversionProgress)
	cancelMode CancelMode
	dpi        int
}

// WithProgress registers a callback for progress events. Calls are never
// concurrent and events for one file arrive in order.
func WithProgress(fn func(ConversionProgress)) BatchOption {
	return func(o *batchOptions) {
		o.progress = fn
	}
}

// WithCancelMode selects the cancellation behaviour. Default CancelWait.
func WithCancelMode(m CancelMode) BatchOption {
	return func(o *batchOptions) {
		o.cancelMode = m
	}
}

// WithBatchDPI renders every document of the batch at dpi.
func WithBatchDPI(dpi int) BatchOption {
	return func(o *batchOptions) {
		o.dpi = dpi
	}
}

func validatePrefix(prefix string) error {
	if err := fileutil.ValidateName(prefix); err != nil {
		return fmt.Errorf("%w: prefix %q: %v", ErrInvalidConfig, prefix, err)
	}
	return nil
}
