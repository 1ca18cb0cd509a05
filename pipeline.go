package office2png

import (
	"context"
	"errors"
	"fmt"
	"image"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/alnah/go-office2png/internal/fileutil"
)

const (
	// pagePerm is the mode of written PNG files.
	pagePerm = 0o644
	// pingTimeout bounds the health check after a failed conversion.
	pingTimeout = 5 * time.Second
)

// job is one document moving through the conversion state machine.
type job struct {
	id         string
	input      string
	outputDir  string
	dpi        int
	prefix     string
	fileIndex  int
	totalFiles int
	emit       func(ConversionProgress)

	mu         sync.Mutex
	stage      Stage
	pagesDone  int
	totalPages int
	written    []string
}

func newJob(input, outputDir string, dpi int, prefix string) *job {
	if prefix == "" {
		prefix = fileutil.Stem(input)
	}
	return &job{
		id:         ulid.Make().String(),
		input:      input,
		outputDir:  outputDir,
		dpi:        dpi,
		prefix:     prefix,
		totalFiles: 1,
		stage:      StageQueued,
	}
}

// advance moves the job to next and emits a progress event.
func (j *job) advance(next Stage) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	if !j.stage.canTransition(next) {
		return fmt.Errorf("job %s: illegal stage transition %s -> %s", j.id, j.stage, next)
	}
	j.stage = next
	j.emitLocked()
	return nil
}

func (j *job) currentStage() Stage {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.stage
}

func (j *job) setTotalPages(n int) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.totalPages = n
	j.emitLocked()
}

// pageWritten records path for cleanup and emits the new page count.
// Holding the lock while emitting keeps PagesCompleted non-decreasing.
func (j *job) pageWritten(path string) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.written = append(j.written, path)
	j.pagesDone++
	j.emitLocked()
}

func (j *job) emitLocked() {
	if j.emit == nil {
		return
	}
	j.emit(ConversionProgress{
		FileIndex:      j.fileIndex,
		TotalFiles:     j.totalFiles,
		CurrentFile:    j.input,
		Stage:          j.stage,
		PagesCompleted: j.pagesDone,
		TotalPages:     j.totalPages,
	})
}

// removeWritten deletes every page this job wrote. Other files in the
// output directory are never touched.
func (j *job) removeWritten() error {
	j.mu.Lock()
	written := j.written
	j.written = nil
	j.mu.Unlock()

	var errs []error
	for _, path := range written {
		if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// pageFileName returns {prefix}_{page:03d}.png, or {prefix}.png when the
// document has a single page.
func pageFileName(prefix string, index, total int) string {
	if total == 1 {
		return prefix + ".png"
	}
	return fmt.Sprintf("%s_%03d.png", prefix, index+1)
}

// validateInput checks preconditions before a worker is requested.
func validateInput(path string) error {
	info, err := os.Stat(path)
	if err != nil || info.IsDir() {
		return fmt.Errorf("%w: %s", ErrInputNotFound, path)
	}
	if !IsSupportedExtension(fileutil.Extension(path)) {
		return fmt.Errorf("%w: %q", ErrUnsupportedExtension, fileutil.Extension(path))
	}
	return nil
}

// runJob drives j to a terminal stage. On failure every page written for the
// job is removed and the error is a *JobError naming the failing stage.
func (c *Converter) runJob(ctx context.Context, j *job) (*FileResult, error) {
	start := time.Now()
	log := c.logger.With().Str("job", j.id).Str("input", j.input).Logger()

	j.mu.Lock()
	j.emitLocked()
	j.mu.Unlock()

	result, err := c.execute(ctx, j, log)
	if err != nil {
		failedAt := j.currentStage()
		if cleanupErr := j.removeWritten(); cleanupErr != nil {
			log.Warn().Err(cleanupErr).Msg("removing partial output")
		}
		_ = j.advance(StageFailed)
		c.metrics.incDocuments(StageFailed)
		log.Warn().Err(err).Stringer("stage", failedAt).Dur("duration", time.Since(start)).Msg("conversion failed")
		return nil, &JobError{Path: j.input, Stage: failedAt, Err: err}
	}

	result.Duration = time.Since(start)
	_ = j.advance(StageCompleted)
	c.metrics.incDocuments(StageCompleted)
	log.Info().Int("pages", result.PageCount).Int("dpi", j.dpi).Dur("duration", result.Duration).Msg("converted")
	return result, nil
}

func (c *Converter) execute(ctx context.Context, j *job, log zerolog.Logger) (*FileResult, error) {
	if err := validateInput(j.input); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	tmpDir := filepath.Join(c.tempRoot(), "office2png-job-"+uuid.NewString())
	if err := os.MkdirAll(tmpDir, 0o750); err != nil {
		return nil, fmt.Errorf("%w: creating job dir: %v", ErrIO, err)
	}
	defer func() {
		if err := os.RemoveAll(tmpDir); err != nil {
			log.Warn().Err(err).Msg("removing job dir")
		}
	}()

	pdfPath, err := c.convertStage(ctx, j, tmpDir, log)
	if err != nil {
		return nil, err
	}
	return c.renderStage(ctx, j, pdfPath, log)
}

// convertStage holds a Worker only while the external converter runs.
func (c *Converter) convertStage(ctx context.Context, j *job, tmpDir string, log zerolog.Logger) (string, error) {
	w, err := c.pool.Acquire(ctx)
	if err != nil {
		return "", err
	}
	if err := j.advance(StageConverting); err != nil {
		c.pool.Release(w, OutcomeRecoverable)
		return "", err
	}
	log.Debug().Int("slot", w.Slot()).Msg("worker acquired")

	start := time.Now()
	convCtx, cancel := context.WithTimeout(ctx, c.cfg.convertTimeout)
	pdfPath, err := w.Convert(convCtx, j.input, tmpDir)
	timedOut := errors.Is(convCtx.Err(), context.DeadlineExceeded)
	cancel()

	c.pool.Release(w, c.outcomeFor(w, err, ctx.Err() != nil || timedOut))
	c.metrics.observeStage(StageConverting, time.Since(start).Seconds())

	switch {
	case err == nil:
		return pdfPath, nil
	case ctx.Err() != nil:
		return "", ctx.Err()
	case timedOut && !errors.Is(err, ErrConversionTimeout):
		return "", fmt.Errorf("%w: exceeded %s: %v", ErrConversionTimeout, c.cfg.convertTimeout, err)
	}
	return "", err
}

// outcomeFor decides whether a Worker survives the job. A process that was
// killed, timed out, or no longer answers a ping is treated as crashed.
func (c *Converter) outcomeFor(w *Worker, err error, interrupted bool) Outcome {
	if err == nil {
		return OutcomeOK
	}
	if interrupted || errors.Is(err, ErrWorkerCrashed) || errors.Is(err, ErrConversionTimeout) {
		return OutcomeCrashed
	}
	pingCtx, cancel := context.WithTimeout(context.Background(), pingTimeout)
	defer cancel()
	if pingErr := w.Ping(pingCtx); pingErr != nil {
		return OutcomeCrashed
	}
	return OutcomeRecoverable
}

// renderStage rasterizes every page of the intermediate PDF. Pages are
// always rasterized in order; with more than one render worker the encode
// and write steps fan out. The render timeout covers the whole stage,
// including a page that is still rendering when it expires.
func (c *Converter) renderStage(ctx context.Context, j *job, pdfPath string, log zerolog.Logger) (*FileResult, error) {
	if err := j.advance(StageRendering); err != nil {
		return nil, err
	}
	start := time.Now()
	defer func() {
		c.metrics.observeStage(StageRendering, time.Since(start).Seconds())
	}()

	renderCtx, cancel := context.WithTimeout(ctx, c.cfg.renderTimeout)
	defer cancel()

	data, err := os.ReadFile(pdfPath) // #nosec G304 -- path produced by the converter in our job dir
	if err != nil {
		return nil, fmt.Errorf("%w: reading intermediate PDF: %v", ErrRender, err)
	}

	doc, err := c.rasterizer.Open(data)
	if err != nil {
		return nil, err
	}
	pages := &pageRenderer{doc: doc}
	defer pages.close()

	total := doc.NumPages()
	if total < 1 {
		return nil, fmt.Errorf("%w: document has no pages", ErrRender)
	}
	j.setTotalPages(total)

	written := make([]PngPage, total)
	if c.cfg.renderWorkers <= 1 {
		err = c.renderSequential(renderCtx, j, pages, written)
	} else {
		err = c.renderConcurrent(renderCtx, j, pages, written)
	}
	if err == nil {
		err = renderCtx.Err()
	}
	if err != nil {
		return nil, c.renderErr(ctx, renderCtx, err)
	}

	outputs := make([]string, total)
	for i, page := range written {
		outputs[i] = page.Path
		log.Debug().Int("page", page.Index+1).Int("width", page.Width).Int("height", page.Height).
			Int("bytes", page.Size).Str("path", page.Path).Msg("page written")
	}
	return &FileResult{
		InputPath:   j.input,
		OutputPaths: outputs,
		PageCount:   total,
	}, nil
}

func (c *Converter) renderErr(ctx, renderCtx context.Context, err error) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}
	if errors.Is(renderCtx.Err(), context.DeadlineExceeded) {
		return fmt.Errorf("%w: rendering exceeded %s", ErrConversionTimeout, c.cfg.renderTimeout)
	}
	return err
}

func (c *Converter) renderSequential(ctx context.Context, j *job, pages *pageRenderer, written []PngPage) error {
	for i := range written {
		img, err := pages.render(ctx, i, j.dpi)
		if err != nil {
			return err
		}
		page, err := c.writePage(j, i, len(written), img)
		if err != nil {
			return err
		}
		written[i] = page
	}
	return nil
}

func (c *Converter) renderConcurrent(ctx context.Context, j *job, pages *pageRenderer, written []PngPage) error {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.cfg.renderWorkers)

	var renderErr error
	for i := range written {
		img, err := pages.render(gctx, i, j.dpi)
		if err != nil {
			renderErr = err
			break
		}
		g.Go(func() error {
			page, err := c.writePage(j, i, len(written), img)
			if err != nil {
				return err
			}
			written[i] = page
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return err
	}
	return renderErr
}

// writePage encodes img and writes it atomically into the output directory.
// Unless overwriting is enabled, a file already at the page's path fails
// the page with ErrIO and is left as it was.
func (c *Converter) writePage(j *job, index, total int, img image.Image) (PngPage, error) {
	data, err := c.encoder.Encode(img)
	if err != nil {
		return PngPage{}, err
	}
	path := filepath.Join(j.outputDir, pageFileName(j.prefix, index, total))
	write := fileutil.WriteFileExclusive
	if c.cfg.overwrite {
		write = fileutil.WriteFileAtomic
	}
	if err := write(path, data, pagePerm); err != nil {
		return PngPage{}, fmt.Errorf("%w: %w", ErrIO, err)
	}
	j.pageWritten(path)
	c.metrics.incPages()

	b := img.Bounds()
	return PngPage{Index: index, Width: b.Dx(), Height: b.Dy(), Path: path, Size: len(data)}, nil
}

// pageRenderer runs Document.Render off the job goroutine so a page stuck
// in the rasterizer cannot hold the job past its deadline. The document is
// closed once no render call is in flight.
type pageRenderer struct {
	doc Document

	mu      sync.Mutex
	busy    bool
	closing bool
}

type renderedPage struct {
	img image.Image
	err error
}

// render returns page, or ctx's error as soon as ctx ends. An abandoned
// render keeps running until the rasterizer returns.
func (r *pageRenderer) render(ctx context.Context, page, dpi int) (image.Image, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	r.mu.Lock()
	r.busy = true
	r.mu.Unlock()

	done := make(chan renderedPage, 1)
	go func() {
		res := r.renderPage(page, dpi)

		r.mu.Lock()
		r.busy = false
		closing := r.closing
		r.mu.Unlock()
		if closing {
			_ = r.doc.Close()
		}
		done <- res
	}()

	select {
	case res := <-done:
		return res.img, res.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (r *pageRenderer) renderPage(page, dpi int) (res renderedPage) {
	defer func() {
		if v := recover(); v != nil {
			res.err = fmt.Errorf("%w: panic rendering page %d: %v", ErrRender, page+1, v)
		}
	}()
	img, err := r.doc.Render(page, dpi)
	return renderedPage{img: img, err: err}
}

// close closes the document now, or hands that to the in-flight render.
func (r *pageRenderer) close() {
	r.mu.Lock()
	r.closing = true
	busy := r.busy
	r.mu.Unlock()
	if !busy {
		_ = r.doc.Close()
	}
}

func (c *Converter) tempRoot() string {
	if c.cfg.tempDir != "" {
		return c.cfg.tempDir
	}
	return os.TempDir()
}
