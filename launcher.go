package office2png

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/kballard/go-shellquote"
	"github.com/rs/zerolog"

	"github.com/alnah/go-office2png/internal/fileutil"
	"github.com/alnah/go-office2png/internal/process"
)

// Launcher spawns converter processes for pool slots.
type Launcher interface {
	Spawn(ctx context.Context, slot int) (Process, error)
}

// Process is a converter instance owned by exactly one Worker.
type Process interface {
	// PID returns the PID of the running OS process, or 0 when idle.
	PID() int
	// Convert turns inputPath into a PDF inside outDir and returns its path.
	Convert(ctx context.Context, inputPath, outDir string) (string, error)
	// Ping checks that the instance is still usable.
	Ping(ctx context.Context) error
	// Kill forcibly terminates any running OS process.
	Kill() error
	// Close kills the process and releases its resources.
	Close() error
}

// Compile-time interface implementation checks.
var (
	_ Launcher = (*sofficeLauncher)(nil)
	_ Process  = (*sofficeProcess)(nil)
)

// waitDelay bounds how long Wait blocks on soffice's inherited pipes after
// the process group was killed.
const waitDelay = 5 * time.Second

// sofficeArgs are passed on every invocation. The per-slot profile
// (-env:UserInstallation) is what lets several instances run in parallel.
var sofficeArgs = []string{
	"--headless",
	"--invisible",
	"--nologo",
	"--nofirststartwizard",
	"--norestore",
}

// sofficeLauncher spawns LibreOffice instances, one user profile per slot.
type sofficeLauncher struct {
	bin     string
	tempDir string
	logger  zerolog.Logger
}

func newSofficeLauncher(bin, tempDir string, logger zerolog.Logger) *sofficeLauncher {
	return &sofficeLauncher{bin: bin, tempDir: tempDir, logger: logger}
}

// Spawn creates a fresh user profile for slot and returns an instance bound to it.
func (l *sofficeLauncher) Spawn(ctx context.Context, slot int) (Process, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if !fileutil.FileExists(l.bin) {
		return nil, fmt.Errorf("%w: %s", ErrToolchainNotFound, l.bin)
	}

	profile, err := os.MkdirTemp(l.tempDir, fmt.Sprintf("office2png-profile-%d-", slot))
	if err != nil {
		return nil, fmt.Errorf("creating profile for slot %d: %w", slot, err)
	}

	l.logger.Debug().Int("slot", slot).Str("profile", profile).Msg("spawned converter instance")

	return &sofficeProcess{
		bin:     l.bin,
		profile: profile,
		logger:  l.logger.With().Int("slot", slot).Logger(),
	}, nil
}

// sofficeProcess runs one soffice process per document against a dedicated
// profile. The OS process exists only while a conversion is in flight.
type sofficeProcess struct {
	bin     string
	profile string
	logger  zerolog.Logger

	mu     sync.Mutex
	cmd    *exec.Cmd
	closed bool
}

func (p *sofficeProcess) PID() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.cmd == nil || p.cmd.Process == nil {
		return 0
	}
	return p.cmd.Process.Pid
}

// Convert runs soffice --convert-to pdf. Exit caused by a signal or by the
// context deadline is reported as a crash or timeout; a regular non-zero exit
// or a missing PDF is a conversion failure that leaves the instance healthy.
func (p *sofficeProcess) Convert(ctx context.Context, inputPath, outDir string) (string, error) {
	absInput, err := filepath.Abs(inputPath)
	if err != nil {
		return "", fmt.Errorf("%w: resolving %s: %v", ErrConversionFailed, inputPath, err)
	}

	args := append(slices.Clone(sofficeArgs),
		"-env:UserInstallation="+fileURL(p.profile),
		"--convert-to", "pdf",
		"--outdir", outDir,
		absInput,
	)

	cmd := exec.CommandContext(ctx, p.bin, args...) // #nosec G204 -- binary resolved by LookupSoffice
	process.SetProcessGroup(cmd)
	cmd.Cancel = func() error {
		process.KillProcessGroup(cmd.Process.Pid)
		return cmd.Process.Kill()
	}
	cmd.WaitDelay = waitDelay
	var output bytes.Buffer
	cmd.Stdout = &output
	cmd.Stderr = &output

	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return "", fmt.Errorf("%w: instance closed", ErrWorkerCrashed)
	}
	if err := cmd.Start(); err != nil {
		p.mu.Unlock()
		return "", fmt.Errorf("%w: starting soffice: %v", ErrWorkerCrashed, err)
	}
	p.cmd = cmd
	p.mu.Unlock()

	p.logger.Debug().
		Int("pid", cmd.Process.Pid).
		Str("cmd", shellquote.Join(append([]string{p.bin}, args...)...)).
		Msg("running converter")

	err = cmd.Wait()

	p.mu.Lock()
	p.cmd = nil
	p.mu.Unlock()

	if err != nil {
		return "", classifyExit(ctx, err, output.String())
	}

	return findPDF(outDir, absInput, output.String())
}

// classifyExit maps a failed soffice run to the pipeline's error kinds.
func classifyExit(ctx context.Context, err error, output string) error {
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return fmt.Errorf("%w: soffice killed after deadline", ErrConversionTimeout)
	}
	if errors.Is(ctx.Err(), context.Canceled) {
		return fmt.Errorf("%w: soffice killed: %w", ErrWorkerCrashed, ctx.Err())
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		if process.KilledBySignal(exitErr) {
			return fmt.Errorf("%w: %v", ErrWorkerCrashed, exitErr)
		}
		return fmt.Errorf("%w: %v: %s", ErrConversionFailed, exitErr, strings.TrimSpace(output))
	}
	return fmt.Errorf("%w: %v", ErrWorkerCrashed, err)
}

// findPDF locates the exported PDF. soffice names it after the input stem but
// exits 0 without output when the source cannot be loaded.
func findPDF(outDir, inputPath, output string) (string, error) {
	expected := filepath.Join(outDir, fileutil.Stem(inputPath)+".pdf")
	if fileutil.FileExists(expected) {
		return expected, nil
	}

	matches, _ := filepath.Glob(filepath.Join(outDir, "*.pdf"))
	if len(matches) > 0 {
		return matches[0], nil
	}

	msg := strings.TrimSpace(output)
	if msg == "" {
		msg = "no PDF produced"
	}
	return "", fmt.Errorf("%w: %s", ErrConversionFailed, msg)
}

// Ping fails once the instance is closed, its profile vanished, or the
// tracked OS process died without being reaped.
func (p *sofficeProcess) Ping(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	p.mu.Lock()
	closed, cmd := p.closed, p.cmd
	p.mu.Unlock()

	if closed {
		return fmt.Errorf("%w: instance closed", ErrWorkerCrashed)
	}
	if _, err := os.Stat(p.profile); err != nil {
		return fmt.Errorf("%w: profile: %v", ErrWorkerCrashed, err)
	}
	if !fileutil.FileExists(p.bin) {
		return fmt.Errorf("%w: %s", ErrToolchainNotFound, p.bin)
	}
	if cmd != nil && cmd.Process != nil && !process.Alive(cmd.Process.Pid) {
		return fmt.Errorf("%w: pid %d not running", ErrWorkerCrashed, cmd.Process.Pid)
	}
	return nil
}

func (p *sofficeProcess) Kill() error {
	p.mu.Lock()
	cmd := p.cmd
	p.mu.Unlock()

	if cmd == nil || cmd.Process == nil {
		return nil
	}
	process.KillProcessGroup(cmd.Process.Pid)
	if err := cmd.Process.Kill(); err != nil && !errors.Is(err, os.ErrProcessDone) {
		return err
	}
	return nil
}

func (p *sofficeProcess) Close() error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	p.mu.Unlock()

	return errors.Join(p.Kill(), os.RemoveAll(p.profile))
}

// fileURL renders path as a file:// URL accepted by -env:UserInstallation.
func fileURL(path string) string {
	abs, err := filepath.Abs(path)
	if err != nil {
		abs = path
	}
	abs = filepath.ToSlash(abs)
	if !strings.HasPrefix(abs, "/") {
		abs = "/" + abs
	}
	return "file://" + abs
}
