//go:build integration

package office2png

// Notes:
// - Runs the real toolchain: LibreOffice must be installed and MuPDF linked.
// - Tests skip when soffice cannot be found so the tag can be set everywhere.
// - Inputs are tiny RTF documents, written per test.

import (
	"context"
	"errors"
	"image/png"
	"os"
	"path/filepath"
	"testing"
	"time"
)

const integrationTimeout = 2 * time.Minute

func requireToolchain(t *testing.T) {
	t.Helper()
	if !ToolchainAvailable() {
		t.Skip("LibreOffice not installed")
	}
}

func writeRTF(t *testing.T, dir, name, text string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	body := `{\rtf1\ansi\deff0 {\fonttbl {\f0 Helvetica;}}\f0\fs48 ` + text + `\par}`
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatal(err)
	}
	return path
}

// ---------------------------------------------------------------------------
// TestIntegration_Convert - One document through LibreOffice and MuPDF
// ---------------------------------------------------------------------------

func TestIntegration_Convert(t *testing.T) {
	requireToolchain(t)

	dir := t.TempDir()
	input := writeRTF(t, dir, "hello.rtf", "Hello")
	out := filepath.Join(dir, "out")

	conv, err := NewConverter(WithPoolSize(1), WithDPI(72))
	if err != nil {
		t.Fatalf("NewConverter() error = %v", err)
	}
	defer conv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), integrationTimeout)
	defer cancel()

	res, err := conv.Convert(ctx, input, out)
	if err != nil {
		t.Fatalf("Convert() error = %v", err)
	}
	if res.PageCount != 1 || len(res.OutputPaths) != 1 {
		t.Fatalf("result = %+v, want one page", res)
	}
	if want := filepath.Join(out, "hello.png"); res.OutputPaths[0] != want {
		t.Errorf("output = %s, want %s", res.OutputPaths[0], want)
	}

	f, err := os.Open(res.OutputPaths[0])
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	cfg, err := png.DecodeConfig(f)
	if err != nil {
		t.Fatalf("output is not a PNG: %v", err)
	}
	// A4 or Letter at 72 DPI.
	if cfg.Width < 590 || cfg.Width > 620 {
		t.Errorf("width = %d, want a page width at 72 DPI", cfg.Width)
	}
}

// ---------------------------------------------------------------------------
// TestIntegration_ConvertBatch - Concurrent workers and isolated failures
// ---------------------------------------------------------------------------

func TestIntegration_ConvertBatch(t *testing.T) {
	requireToolchain(t)

	dir := t.TempDir()
	inputs := []string{
		writeRTF(t, dir, "one.rtf", "One"),
		writeRTF(t, dir, "two.rtf", "Two"),
		filepath.Join(dir, "missing.docx"),
		writeRTF(t, dir, "three.rtf", "Three"),
	}

	conv, err := NewConverter(WithPoolSize(2), WithDPI(36))
	if err != nil {
		t.Fatalf("NewConverter() error = %v", err)
	}
	defer conv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), integrationTimeout)
	defer cancel()

	res, err := conv.ConvertBatch(ctx, inputs, filepath.Join(dir, "out"))
	if err != nil {
		t.Fatalf("ConvertBatch() error = %v", err)
	}
	if res.SuccessCount != 3 || res.FailureCount != 1 {
		t.Fatalf("success/failure = %d/%d, want 3/1", res.SuccessCount, res.FailureCount)
	}
	if !errors.Is(res.Failed[0].Err, ErrInputNotFound) {
		t.Errorf("failure = %v, want ErrInputNotFound", res.Failed[0].Err)
	}

	h := conv.Health()
	if !h.Healthy() {
		t.Errorf("pool unhealthy after batch: %+v", h)
	}
}

// ---------------------------------------------------------------------------
// TestIntegration_CheckRasterizer - Probe page at several resolutions
// ---------------------------------------------------------------------------

func TestIntegration_CheckRasterizer(t *testing.T) {
	t.Parallel()

	for _, dpi := range []int{72, 150, 300} {
		size, err := CheckRasterizer(dpi)
		if err != nil {
			t.Fatalf("CheckRasterizer(%d) error = %v", dpi, err)
		}
		if size.X != dpi || size.Y != dpi {
			t.Errorf("CheckRasterizer(%d) = %v, want %dx%d", dpi, size, dpi, dpi)
		}
	}
}
