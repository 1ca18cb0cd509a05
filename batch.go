package office2png

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/alnah/go-office2png/internal/fileutil"
)

// progressBuffer decouples job goroutines from a slow progress callback.
const progressBuffer = 64

// ConvertBatch converts inputs into outputDir with at most one document per
// pool worker in the converter stage. Documents are admitted in input order
// and one failure never affects the others.
//
// The only batch-level errors are an output directory that cannot be created
// and a Converter that is already shut down. Cancelling ctx stops admission;
// undispatched inputs are reported as failed with the context error. Whether
// in-flight documents are aborted depends on WithCancelMode.
func (c *Converter) ConvertBatch(ctx context.Context, inputs []string, outputDir string, opts ...BatchOption) (result *BatchResult, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("internal error: %v", r)
		}
	}()

	var o batchOptions
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

	if c.pool.isShuttingDown() {
		return nil, ErrPoolShuttingDown
	}
	if err := os.MkdirAll(outputDir, 0o750); err != nil {
		return nil, fmt.Errorf("%w: creating output directory: %v", ErrIO, err)
	}

	start := time.Now()
	n := len(inputs)

	emit, stopProgress := startProgress(o.progress)

	jobCtx := ctx
	if o.cancelMode == CancelWait {
		jobCtx = context.WithoutCancel(ctx)
	}

	// Fixed slots indexed by input position; each goroutine writes only its own.
	results := make([]*FileResult, n)
	errs := make([]error, n)
	dispatched := make([]bool, n)
	prefixes := uniquePrefixes(inputs)

	// The semaphore rather than errgroup.SetLimit makes admission
	// interruptible by ctx.
	sem := make(chan struct{}, c.pool.Size())
	var g errgroup.Group

admit:
	for i, input := range inputs {
		select {
		case <-ctx.Done():
			break admit
		case sem <- struct{}{}:
		}
		if ctx.Err() != nil {
			<-sem
			break
		}

		dispatched[i] = true
		j := newJob(input, outputDir, dpi, prefixes[i])
		j.fileIndex = i
		j.totalFiles = n
		j.emit = emit

		g.Go(func() error {
			defer func() { <-sem }()
			results[i], errs[i] = c.runJob(jobCtx, j)
			return nil
		})
	}
	_ = g.Wait()

	cancelErr := context.Cause(ctx)
	for i, input := range inputs {
		if dispatched[i] {
			continue
		}
		errs[i] = &JobError{Path: input, Stage: StageQueued, Err: cancelErr}
		if emit != nil {
			emit(ConversionProgress{FileIndex: i, TotalFiles: n, CurrentFile: input, Stage: StageFailed})
		}
	}
	stopProgress()

	result = &BatchResult{WallTime: time.Since(start)}
	for i, input := range inputs {
		if errs[i] != nil {
			result.Failed = append(result.Failed, FailedFile{
				InputPath: input,
				Err:       errs[i],
				Message:   errs[i].Error(),
			})
			if !dispatched[i] {
				result.Cancelled++
			}
			continue
		}
		r := results[i]
		result.Successful = append(result.Successful, *r)
		result.TotalPages += r.PageCount
		result.TotalDuration += r.Duration
	}
	result.SuccessCount = len(result.Successful)
	result.FailureCount = len(result.Failed)

	c.logger.Info().
		Int("files", n).
		Int("succeeded", result.SuccessCount).
		Int("failed", result.FailureCount).
		Int("pages", result.TotalPages).
		Dur("duration", result.WallTime).
		Msg("batch finished")

	return result, nil
}

// startProgress serializes events through one goroutine so the callback is
// never invoked concurrently. stop drains pending events before returning.
func startProgress(fn func(ConversionProgress)) (emit func(ConversionProgress), stop func()) {
	if fn == nil {
		return nil, func() {}
	}

	events := make(chan ConversionProgress, progressBuffer)
	done := make(chan struct{})
	go func() {
		defer close(done)
		for ev := range events {
			fn(ev)
		}
	}()

	var once sync.Once
	return func(ev ConversionProgress) {
			events <- ev
		}, func() {
			once.Do(func() {
				close(events)
				<-done
			})
		}
}

// uniquePrefixes returns the output prefix for each input. A prefix that
// could produce the same file name as an earlier input's prefix, either
// directly or through the _NNN page suffix, gets -2, -3, ... in input order.
func uniquePrefixes(inputs []string) []string {
	prefixes := make([]string, len(inputs))
	for i, input := range inputs {
		stem := fileutil.Stem(input)
		prefix := stem
		for n := 2; prefixClashes(prefix, prefixes[:i]); n++ {
			prefix = stem + "-" + strconv.Itoa(n)
		}
		prefixes[i] = prefix
	}
	return prefixes
}

// prefixClashes reports whether pages of prefix and of any taken prefix
// can share a file name.
func prefixClashes(prefix string, taken []string) bool {
	for _, other := range taken {
		if prefix == other || isPageName(other, prefix) || isPageName(prefix, other) {
			return true
		}
	}
	return false
}

// isPageName reports whether name has the form prefix_NNN that
// pageFileName gives a page of a multi-page document.
func isPageName(prefix, name string) bool {
	digits, ok := strings.CutPrefix(name, prefix+"_")
	if !ok || len(digits) < 3 {
		return false
	}
	for _, r := range digits {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
