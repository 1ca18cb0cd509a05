//go:build !windows

package office2png

// Notes:
// - sofficeProcess is exercised against small /bin/sh scripts standing in for
//   soffice; each script only understands --outdir and the trailing input path
// - Real LibreOffice runs are covered by the integration tests

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

// fakeSofficePrelude parses the arguments the launcher passes.
const fakeSofficePrelude = `#!/bin/sh
while [ $# -gt 0 ]; do
  case "$1" in
    --outdir) outdir="$2" ;;
  esac
  last="$1"
  shift
done
name=$(basename "$last")
stem="${name%.*}"
`

// writeFakeSoffice installs an executable script whose tail runs after the
// argument parsing prelude.
func writeFakeSoffice(t *testing.T, body string) string {
	t.Helper()

	bin := filepath.Join(t.TempDir(), "soffice")
	if err := os.WriteFile(bin, []byte(fakeSofficePrelude+body), 0o700); err != nil { // #nosec G306 -- test script must be executable
		t.Fatalf("writing fake soffice: %v", err)
	}
	return bin
}

func spawnFake(t *testing.T, bin string) *sofficeProcess {
	t.Helper()

	l := newSofficeLauncher(bin, t.TempDir(), zerolog.Nop())
	proc, err := l.Spawn(context.Background(), 0)
	if err != nil {
		t.Fatalf("Spawn() unexpected error: %v", err)
	}
	t.Cleanup(func() { _ = proc.Close() })
	return proc.(*sofficeProcess)
}

// whenRunning calls fn once proc has a live OS process, giving up after 5s.
func whenRunning(proc *sofficeProcess, fn func()) {
	deadline := time.Now().Add(5 * time.Second)
	for proc.PID() == 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	fn()
}

// ---------------------------------------------------------------------------
// TestSofficeProcess_Convert
// ---------------------------------------------------------------------------

func TestSofficeProcess_Convert_Success(t *testing.T) {
	t.Parallel()

	bin := writeFakeSoffice(t, `
echo "$@" > "$outdir/args.txt"
printf '%%PDF-1.4\n' > "$outdir/$stem.pdf"
`)
	proc := spawnFake(t, bin)
	input := writeInput(t, t.TempDir(), "report.docx", "x")
	outDir := t.TempDir()

	pdf, err := proc.Convert(context.Background(), input, outDir)
	if err != nil {
		t.Fatalf("Convert() unexpected error: %v", err)
	}
	if want := filepath.Join(outDir, "report.pdf"); pdf != want {
		t.Errorf("Convert() = %q, want %q", pdf, want)
	}

	args, err := os.ReadFile(filepath.Join(outDir, "args.txt"))
	if err != nil {
		t.Fatalf("reading recorded args: %v", err)
	}
	for _, want := range []string{"--headless", "--convert-to pdf", "-env:UserInstallation=" + fileURL(proc.profile)} {
		if !strings.Contains(string(args), want) {
			t.Errorf("args %q missing %q", args, want)
		}
	}

	if proc.PID() != 0 {
		t.Errorf("PID() = %d after conversion, want 0", proc.PID())
	}
}

func TestSofficeProcess_Convert_Errors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		body    string
		timeout time.Duration
		wantErr error
		wantMsg string
	}{
		{
			name:    "nonzero exit",
			body:    "echo 'Error: source file could not be loaded'\nexit 1\n",
			wantErr: ErrConversionFailed,
			wantMsg: "source file could not be loaded",
		},
		{
			name:    "exit zero without output",
			body:    "exit 0\n",
			wantErr: ErrConversionFailed,
			wantMsg: "no PDF produced",
		},
		{
			name:    "killed by signal",
			body:    "kill -9 $$\n",
			wantErr: ErrWorkerCrashed,
		},
		{
			name:    "deadline exceeded",
			body:    "exec sleep 30\n",
			timeout: 200 * time.Millisecond,
			wantErr: ErrConversionTimeout,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			proc := spawnFake(t, writeFakeSoffice(t, tt.body))
			input := writeInput(t, t.TempDir(), "in.docx", "x")

			ctx := context.Background()
			if tt.timeout > 0 {
				var cancel context.CancelFunc
				ctx, cancel = context.WithTimeout(ctx, tt.timeout)
				defer cancel()
			}

			start := time.Now()
			_, err := proc.Convert(ctx, input, t.TempDir())
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("Convert() error = %v, want %v", err, tt.wantErr)
			}
			if tt.wantMsg != "" && !strings.Contains(err.Error(), tt.wantMsg) {
				t.Errorf("Convert() error = %q, want it to contain %q", err, tt.wantMsg)
			}
			if elapsed := time.Since(start); elapsed > 10*time.Second {
				t.Errorf("Convert() took %v", elapsed)
			}
		})
	}
}

func TestSofficeProcess_Convert_Cancelled(t *testing.T) {
	t.Parallel()

	proc := spawnFake(t, writeFakeSoffice(t, "exec sleep 30\n"))
	input := writeInput(t, t.TempDir(), "in.docx", "x")

	ctx, cancel := context.WithCancel(context.Background())
	go whenRunning(proc, cancel)

	_, err := proc.Convert(ctx, input, t.TempDir())
	if !errors.Is(err, ErrWorkerCrashed) {
		t.Errorf("Convert() error = %v, want ErrWorkerCrashed", err)
	}
}

func TestSofficeProcess_Kill_StopsConversion(t *testing.T) {
	t.Parallel()

	proc := spawnFake(t, writeFakeSoffice(t, "exec sleep 30\n"))
	input := writeInput(t, t.TempDir(), "in.docx", "x")

	go whenRunning(proc, func() { _ = proc.Kill() })

	_, err := proc.Convert(context.Background(), input, t.TempDir())
	if !errors.Is(err, ErrWorkerCrashed) {
		t.Errorf("Convert() error = %v, want ErrWorkerCrashed", err)
	}
}

// ---------------------------------------------------------------------------
// TestSofficeLauncher - Profile Lifecycle
// ---------------------------------------------------------------------------

func TestSofficeLauncher_ProfileLifecycle(t *testing.T) {
	t.Parallel()

	proc := spawnFake(t, writeFakeSoffice(t, "exit 0\n"))

	info, err := os.Stat(proc.profile)
	if err != nil || !info.IsDir() {
		t.Fatalf("profile %q not created: %v", proc.profile, err)
	}
	if !strings.HasPrefix(filepath.Base(proc.profile), "office2png-profile-0-") {
		t.Errorf("profile name = %q", filepath.Base(proc.profile))
	}
	if err := proc.Ping(context.Background()); err != nil {
		t.Errorf("Ping() on fresh instance: %v", err)
	}

	if err := proc.Close(); err != nil {
		t.Fatalf("Close() unexpected error: %v", err)
	}
	if _, err := os.Stat(proc.profile); !os.IsNotExist(err) {
		t.Errorf("profile still present after Close(): %v", err)
	}
	if err := proc.Ping(context.Background()); !errors.Is(err, ErrWorkerCrashed) {
		t.Errorf("Ping() after Close() = %v, want ErrWorkerCrashed", err)
	}
	if _, err := proc.Convert(context.Background(), "in.docx", t.TempDir()); !errors.Is(err, ErrWorkerCrashed) {
		t.Errorf("Convert() after Close() = %v, want ErrWorkerCrashed", err)
	}
	if err := proc.Close(); err != nil {
		t.Errorf("second Close() = %v, want nil", err)
	}
}

func TestSofficeProcess_Ping_ProfileRemoved(t *testing.T) {
	t.Parallel()

	proc := spawnFake(t, writeFakeSoffice(t, "exit 0\n"))
	if err := os.RemoveAll(proc.profile); err != nil {
		t.Fatal(err)
	}
	if err := proc.Ping(context.Background()); !errors.Is(err, ErrWorkerCrashed) {
		t.Errorf("Ping() = %v, want ErrWorkerCrashed", err)
	}
}

func TestSofficeLauncher_Spawn_Errors(t *testing.T) {
	t.Parallel()

	l := newSofficeLauncher(filepath.Join(t.TempDir(), "missing"), t.TempDir(), zerolog.Nop())
	if _, err := l.Spawn(context.Background(), 1); !errors.Is(err, ErrToolchainNotFound) {
		t.Errorf("Spawn(missing binary) = %v, want ErrToolchainNotFound", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	l = newSofficeLauncher(writeFakeSoffice(t, "exit 0\n"), t.TempDir(), zerolog.Nop())
	if _, err := l.Spawn(ctx, 1); !errors.Is(err, context.Canceled) {
		t.Errorf("Spawn(cancelled) = %v, want context.Canceled", err)
	}
}

// ---------------------------------------------------------------------------
// TestFindPDF
// ---------------------------------------------------------------------------

func TestFindPDF(t *testing.T) {
	t.Parallel()

	t.Run("expected name", func(t *testing.T) {
		t.Parallel()

		dir := t.TempDir()
		writeInput(t, dir, "a.pdf", "")
		writeInput(t, dir, "report.pdf", "")
		got, err := findPDF(dir, "/in/report.docx", "")
		if err != nil || got != filepath.Join(dir, "report.pdf") {
			t.Errorf("findPDF() = %q, %v", got, err)
		}
	})

	t.Run("renamed by soffice", func(t *testing.T) {
		t.Parallel()

		dir := t.TempDir()
		writeInput(t, dir, "other.pdf", "")
		got, err := findPDF(dir, "/in/report.docx", "")
		if err != nil || got != filepath.Join(dir, "other.pdf") {
			t.Errorf("findPDF() = %q, %v", got, err)
		}
	})

	t.Run("nothing produced", func(t *testing.T) {
		t.Parallel()

		_, err := findPDF(t.TempDir(), "/in/report.docx", "  general input/output error \n")
		if !errors.Is(err, ErrConversionFailed) {
			t.Fatalf("findPDF() error = %v, want ErrConversionFailed", err)
		}
		if !strings.HasSuffix(err.Error(), "general input/output error") {
			t.Errorf("findPDF() error = %q, want trimmed soffice output", err)
		}
	})
}

func TestFileURL(t *testing.T) {
	t.Parallel()

	tests := []struct {
		path string
		want string
	}{
		{"/tmp/profile", "file:///tmp/profile"},
		{"/var/lib/office2png/p 1", "file:///var/lib/office2png/p 1"},
	}

	for _, tt := range tests {
		if got := fileURL(tt.path); got != tt.want {
			t.Errorf("fileURL(%q) = %q, want %q", tt.path, got, tt.want)
		}
	}

	if got := fileURL("rel"); !strings.HasPrefix(got, "file:///") || !strings.HasSuffix(got, "/rel") {
		t.Errorf("fileURL(rel) = %q, want absolute file URL", got)
	}
}
