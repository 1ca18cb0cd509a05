package main

// Notes:
// - fakeConverter stands in for *office2png.Converter: it writes one small
//   file per input instead of running LibreOffice. Batch options are opaque
//   outside the library, so progress callbacks are not exercised here.
// - Inputs whose base name is in fail are reported as failed documents.

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	office2png "github.com/alnah/go-office2png"
	"github.com/alnah/go-office2png/internal/fileutil"
)

type batchCall struct {
	inputs    []string
	outputDir string
}

type fakeConverter struct {
	mu       sync.Mutex
	fail     map[string]error
	batches  []batchCall
	prefixed []string
	closed   bool
	degraded bool
	poolSize int
}

func newFakeConverter() *fakeConverter {
	return &fakeConverter{fail: make(map[string]error), poolSize: 2}
}

func (f *fakeConverter) write(input, outputDir, prefix string) (*office2png.FileResult, error) {
	if err := f.fail[filepath.Base(input)]; err != nil {
		return nil, &office2png.JobError{Path: input, Stage: office2png.StageConverting, Err: err}
	}
	if err := os.MkdirAll(outputDir, 0o750); err != nil {
		return nil, err
	}
	out := filepath.Join(outputDir, prefix+".png")
	if err := os.WriteFile(out, []byte("fake png"), 0o600); err != nil {
		return nil, err
	}
	return &office2png.FileResult{InputPath: input, OutputPaths: []string{out}, PageCount: 1, Duration: time.Millisecond}, nil
}

func (f *fakeConverter) Convert(_ context.Context, input, outputDir string, _ ...office2png.ConvertOption) (*office2png.FileResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.prefixed = append(f.prefixed, input)
	// Options are opaque here; the CLI only calls Convert with a prefix.
	return f.write(input, outputDir, "prefixed")
}

func (f *fakeConverter) ConvertBatch(_ context.Context, inputs []string, outputDir string, _ ...office2png.BatchOption) (*office2png.BatchResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.batches = append(f.batches, batchCall{inputs: append([]string(nil), inputs...), outputDir: outputDir})

	res := &office2png.BatchResult{}
	for _, in := range inputs {
		fr, err := f.write(in, outputDir, fileutil.Stem(in))
		if err != nil {
			res.Failed = append(res.Failed, office2png.FailedFile{InputPath: in, Err: err, Message: err.Error()})
			res.FailureCount++
			continue
		}
		res.Successful = append(res.Successful, *fr)
		res.SuccessCount++
		res.TotalPages += fr.PageCount
	}
	return res, nil
}

func (f *fakeConverter) Health() office2png.PoolHealth {
	f.mu.Lock()
	defer f.mu.Unlock()
	return office2png.PoolHealth{Size: f.poolSize, Degraded: f.degraded}
}

func (f *fakeConverter) PoolSize() int {
	return f.poolSize
}

func (f *fakeConverter) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

// testEnv returns an Environment writing to buffers and handing out conv.
func testEnv(conv *fakeConverter) (*Environment, *bytes.Buffer, *bytes.Buffer) {
	var stdout, stderr bytes.Buffer
	env := &Environment{
		Now:    time.Now,
		Stdout: &stdout,
		Stderr: &stderr,
		NewConverter: func(...office2png.Option) (batchConverter, error) {
			return conv, nil
		},
	}
	return env, &stdout, &stderr
}

// setupTestDir creates a temp directory with the given file structure.
// Files map paths to content. Returns the temp directory path.
func setupTestDir(t *testing.T, files map[string]string) string {
	t.Helper()
	tempDir := t.TempDir()

	for path, content := range files {
		fullPath := filepath.Join(tempDir, path)
		if err := os.MkdirAll(filepath.Dir(fullPath), 0o750); err != nil {
			t.Fatalf("failed to create dir for %s: %v", path, err)
		}
		if err := os.WriteFile(fullPath, []byte(content), 0o600); err != nil {
			t.Fatalf("failed to write %s: %v", path, err)
		}
	}

	return tempDir
}

// clearOfficeEnv unsets every OFFICE2PNG_* variable for the test.
func clearOfficeEnv(t *testing.T) {
	t.Helper()
	for _, kv := range os.Environ() {
		name, _, _ := strings.Cut(kv, "=")
		if strings.HasPrefix(name, envPrefix) {
			t.Setenv(name, "")
			_ = os.Unsetenv(name)
		}
	}
}
