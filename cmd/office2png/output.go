package main

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/fatih/color"

	office2png "github.com/alnah/go-office2png"
	"github.com/alnah/go-office2png/internal/hints"
)

var (
	okMark   = color.New(color.FgGreen).SprintFunc()
	failMark = color.New(color.FgRed).SprintFunc()
	warnMark = color.New(color.FgYellow).SprintFunc()
)

// printSummary writes one line per document and a closing total.
// Failures always go to stderr, even when quiet.
func printSummary(env *Environment, sum *summary, quiet, verbose bool) {
	if !quiet {
		for _, r := range sum.succeeded {
			fmt.Fprintf(env.Stdout, "%s %s -> %s (%s)", okMark("✓"), r.InputPath,
				pagesLabel(r.PageCount), humanize.Bytes(outputSize(r.OutputPaths)))
			if verbose {
				fmt.Fprintf(env.Stdout, " in %s", r.Duration.Round(time.Millisecond))
			}
			fmt.Fprintln(env.Stdout)
		}
	}

	for _, f := range sum.failed {
		fmt.Fprintf(env.Stderr, "%s %s%s\n", failMark("✗"), f.Message, hintFor(f.Err))
	}

	if quiet {
		return
	}
	total := len(sum.succeeded) + len(sum.failed)
	printTotals(env.Stdout, sum, total)
}

func printTotals(w io.Writer, sum *summary, total int) {
	fmt.Fprintf(w, "Converted %d/%d documents, %s in %s\n",
		len(sum.succeeded), total, pagesLabel(sum.pages), sum.wallTime.Round(time.Millisecond))
	if sum.cancelled > 0 {
		fmt.Fprintf(w, "%s %d document(s) not started: interrupted\n", warnMark("!"), sum.cancelled)
	}
}

// pagesLabel renders "1 page" or "1,024 pages".
func pagesLabel(n int) string {
	if n == 1 {
		return "1 page"
	}
	return humanize.Comma(int64(n)) + " pages"
}

// outputSize sums the sizes of paths, skipping files that vanished.
func outputSize(paths []string) uint64 {
	var total uint64
	for _, p := range paths {
		if info, err := os.Stat(p); err == nil {
			total += uint64(info.Size()) // #nosec G115 -- file sizes are non-negative
		}
	}
	return total
}

// hintFor returns an actionable hint for a per-document failure.
func hintFor(err error) string {
	switch {
	case errors.Is(err, office2png.ErrConversionTimeout):
		return hints.ForTimeout()
	case errors.Is(err, office2png.ErrPoolDegraded):
		return hints.ForDegradedPool()
	case errors.Is(err, office2png.ErrToolchainNotFound):
		return hints.ForToolchain()
	case errors.Is(err, fs.ErrExist):
		return hints.ForExistingOutput()
	default:
		return ""
	}
}
