package office2png

// Notes:
// - mockLauncher/mockProcess stand in for LibreOffice; behaviour is driven by
//   the content of the input file so tests only need to write small text files
// - mockRasterizer stands in for MuPDF; the "PDF" it opens is the text the
//   mock converter copied from the input
// - Input grammar: "pages=N", "pages=N fail=K" (render of page K fails),
//   "corrupt" (conversion fails, worker healthy), "crash" (worker crashes),
//   "hang" (blocks until the context ends), "badpdf" (rasterizer cannot open),
//   "pages=N slow=MS" (every page render takes MS milliseconds)

import (
	"context"
	"errors"
	"fmt"
	"image"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/rs/zerolog"
)

// ---------------------------------------------------------------------------
// Mock Launcher / Process
// ---------------------------------------------------------------------------

type mockLauncher struct {
	mu          sync.Mutex
	spawned     int
	failAfter   int // spawns beyond this count fail; 0 means never
	spawnErr    error
	procs       []*mockProcess
	order       []string // inputs in the order conversions started
	onConvert   func(input string)
	convertWait time.Duration
	selfPID     bool // processes report the test binary's PID

	active    atomic.Int32
	maxActive atomic.Int32
	converts  atomic.Int32
}

func newMockLauncher() *mockLauncher {
	return &mockLauncher{}
}

func (l *mockLauncher) Spawn(ctx context.Context, slot int) (Process, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.failAfter > 0 && l.spawned >= l.failAfter {
		err := l.spawnErr
		if err == nil {
			err = errors.New("spawn refused")
		}
		return nil, err
	}
	l.spawned++
	p := &mockProcess{pid: 1000 + l.spawned, slot: slot, launcher: l}
	if l.selfPID {
		p.pid = os.Getpid()
	}
	l.procs = append(l.procs, p)
	return p, nil
}

func (l *mockLauncher) spawnCount() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.spawned
}

func (l *mockLauncher) process(i int) *mockProcess {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.procs[i]
}

func (l *mockLauncher) startOrder() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.order...)
}

type mockProcess struct {
	pid      int
	slot     int
	launcher *mockLauncher

	mu      sync.Mutex
	pingErr error
	killed  bool
	closed  bool
}

func (p *mockProcess) PID() int {
	return p.pid
}

func (p *mockProcess) Convert(ctx context.Context, inputPath, outDir string) (string, error) {
	l := p.launcher
	n := l.active.Add(1)
	defer l.active.Add(-1)
	for {
		cur := l.maxActive.Load()
		if n <= cur || l.maxActive.CompareAndSwap(cur, n) {
			break
		}
	}
	l.converts.Add(1)

	l.mu.Lock()
	l.order = append(l.order, filepath.Base(inputPath))
	onConvert, wait := l.onConvert, l.convertWait
	l.mu.Unlock()

	if onConvert != nil {
		onConvert(inputPath)
	}
	if wait > 0 {
		time.Sleep(wait)
	}

	data, err := os.ReadFile(inputPath)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrConversionFailed, err)
	}
	content := strings.TrimSpace(string(data))

	switch {
	case content == "corrupt":
		return "", fmt.Errorf("%w: source file could not be loaded", ErrConversionFailed)
	case content == "crash":
		return "", fmt.Errorf("%w: killed by signal", ErrWorkerCrashed)
	case content == "hang":
		<-ctx.Done()
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return "", fmt.Errorf("%w: killed after deadline", ErrConversionTimeout)
		}
		return "", fmt.Errorf("%w: %w", ErrWorkerCrashed, ctx.Err())
	}

	pdf := filepath.Join(outDir, strings.TrimSuffix(filepath.Base(inputPath), filepath.Ext(inputPath))+".pdf")
	if err := os.WriteFile(pdf, []byte(content), 0o600); err != nil {
		return "", err
	}
	return pdf, nil
}

func (p *mockProcess) Ping(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return ErrWorkerCrashed
	}
	return p.pingErr
}

func (p *mockProcess) Kill() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.killed = true
	return nil
}

func (p *mockProcess) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closed = true
	return nil
}

func (p *mockProcess) isClosed() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.closed
}

func (p *mockProcess) isKilled() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.killed
}

// ---------------------------------------------------------------------------
// Mock Rasterizer
// ---------------------------------------------------------------------------

type mockRasterizer struct {
	panics bool
}

func (r mockRasterizer) Open(data []byte) (Document, error) {
	if r.panics {
		panic("rasterizer exploded")
	}
	doc := &mockDocument{}
	for _, field := range strings.Fields(string(data)) {
		key, value, ok := strings.Cut(field, "=")
		if !ok {
			continue
		}
		n, err := strconv.Atoi(value)
		if err != nil {
			continue
		}
		switch key {
		case "pages":
			doc.pages = n
		case "fail":
			doc.failPage = n
		case "slow":
			doc.delay = time.Duration(n) * time.Millisecond
		}
	}
	if doc.pages == 0 {
		return nil, fmt.Errorf("%w: not a PDF", ErrRender)
	}
	return doc, nil
}

// mockDocument pages are one inch wide and half an inch tall.
type mockDocument struct {
	pages    int
	failPage int // 1-based, 0 means none
	delay    time.Duration
	rendered atomic.Int32
	closed   atomic.Bool
}

func (d *mockDocument) NumPages() int {
	return d.pages
}

func (d *mockDocument) Render(page int, dpi int) (image.Image, error) {
	if d.delay > 0 {
		time.Sleep(d.delay)
	}
	if d.failPage == page+1 {
		return nil, fmt.Errorf("%w: page %d", ErrRender, page+1)
	}
	d.rendered.Add(1)
	return image.NewRGBA(image.Rect(0, 0, dpi, max(dpi/2, 1))), nil
}

func (d *mockDocument) Close() error {
	d.closed.Store(true)
	return nil
}

// ---------------------------------------------------------------------------
// Helpers
// ---------------------------------------------------------------------------

func withRespawnBackOff(newBackOff func() backoff.BackOff) Option {
	return func(c *Converter) {
		c.cfg.respawnBackOff = newBackOff
	}
}

func zeroBackOff() backoff.BackOff {
	return &backoff.ZeroBackOff{}
}

// newTestConverter builds a Converter on mocks and shuts it down at cleanup.
func newTestConverter(t *testing.T, launcher *mockLauncher, opts ...Option) *Converter {
	t.Helper()

	base := []Option{
		WithLauncher(launcher),
		WithRasterizer(mockRasterizer{}),
		WithTempDir(t.TempDir()),
		withRespawnBackOff(zeroBackOff),
		WithPoolSize(2),
		WithShutdownTimeout(2 * time.Second),
	}
	conv, err := NewConverter(append(base, opts...)...)
	if err != nil {
		t.Fatalf("NewConverter() unexpected error: %v", err)
	}
	t.Cleanup(func() { _ = conv.Close() })
	return conv
}

func newTestPool(t *testing.T, launcher *mockLauncher, size int) *workerPool {
	t.Helper()

	pool, err := newWorkerPool(context.Background(), launcher, poolConfig{
		size:               size,
		maxRespawnFailures: DefaultMaxRespawnFailures,
		newBackOff:         zeroBackOff,
		logger:             zerolog.Nop(),
	})
	if err != nil {
		t.Fatalf("newWorkerPool() unexpected error: %v", err)
	}
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_ = pool.Shutdown(ctx)
	})
	return pool
}

// writeInput creates dir/name holding content and returns its path.
func writeInput(t *testing.T, dir, name, content string) string {
	t.Helper()

	path := filepath.Join(dir, name)
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		t.Fatalf("creating input dir: %v", err)
	}
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("writing input: %v", err)
	}
	return path
}

// waitFor polls cond until it holds or the deadline passes.
func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()

	deadline := time.Now().Add(5 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

// listPNGs returns the PNG base names in dir, sorted.
func listPNGs(t *testing.T, dir string) []string {
	t.Helper()

	matches, err := filepath.Glob(filepath.Join(dir, "*.png"))
	if err != nil {
		t.Fatalf("glob: %v", err)
	}
	names := make([]string, 0, len(matches))
	for _, m := range matches {
		names = append(names, filepath.Base(m))
	}
	return names
}
