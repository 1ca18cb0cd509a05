package main

import (
	"fmt"
	"io"
	"path/filepath"
	"time"

	"github.com/schollz/progressbar/v3"

	office2png "github.com/alnah/go-office2png"
)

// reporter drives the optional progress bar from batch progress events.
// The bar counts finished documents; the description shows the current
// document's stage and page progress.
type reporter struct {
	bar *progressbar.ProgressBar // nil when disabled
}

func newReporter(w io.Writer, enabled bool, total int) *reporter {
	if !enabled {
		return &reporter{}
	}
	bar := progressbar.NewOptions(total,
		progressbar.OptionSetWriter(w),
		progressbar.OptionSetWidth(30),
		progressbar.OptionShowCount(),
		progressbar.OptionSetItsString("docs"),
		progressbar.OptionThrottle(65*time.Millisecond),
		progressbar.OptionSetRenderBlankState(true),
		progressbar.OptionOnCompletion(func() {
			fmt.Fprintln(w)
		}),
	)
	return &reporter{bar: bar}
}

// track is the WithProgress callback. Batch callbacks are never concurrent.
func (r *reporter) track(p office2png.ConversionProgress) {
	if r.bar == nil {
		return
	}
	r.bar.Describe(describe(p))
	if p.Stage.Terminal() {
		_ = r.bar.Add(1)
	}
}

func (r *reporter) finish() {
	if r.bar != nil {
		_ = r.bar.Finish()
	}
}

// describe renders "report.docx rendering 3/10".
func describe(p office2png.ConversionProgress) string {
	desc := fmt.Sprintf("%s %s", filepath.Base(p.CurrentFile), p.Stage)
	if p.TotalPages > 0 {
		desc += fmt.Sprintf(" %d/%d", p.PagesCompleted, p.TotalPages)
	}
	return desc
}
