package main

import (
	"os"

	flag "github.com/spf13/pflag"
)

// commonFlags holds flags shared across commands.
type commonFlags struct {
	config    string
	quiet     bool
	verbose   bool
	logFormat string
	noColor   bool
}

// renderFlags holds rasterization flags.
type renderFlags struct {
	dpi           int
	renderWorkers int
	compression   int
	background    string
}

// convertFlags holds all flags for the convert command.
type convertFlags struct {
	common   commonFlags
	render   renderFlags
	output   string
	workers  int
	prefix   string
	timeout  string
	soffice  string
	progress  bool
	overwrite bool
}

// compressionUnset marks --compression as not given; 0 is a valid level.
const compressionUnset = -1

// addCommonFlags adds common flags to a FlagSet.
func addCommonFlags(fs *flag.FlagSet, f *commonFlags) {
	fs.StringVarP(&f.config, "config", "c", "", "config file name or path")
	fs.BoolVarP(&f.quiet, "quiet", "q", false, "only show errors")
	fs.BoolVarP(&f.verbose, "verbose", "v", false, "show debug logs and timing")
	fs.StringVar(&f.logFormat, "log-format", "console", "log format: console, json")
	fs.BoolVar(&f.noColor, "no-color", false, "disable coloured output")
}

// addRenderFlags adds rasterization flags to a FlagSet.
func addRenderFlags(fs *flag.FlagSet, f *renderFlags) {
	fs.IntVar(&f.dpi, "dpi", 0, "render resolution (1-1200, default 300)")
	fs.IntVar(&f.renderWorkers, "render-workers", 0, "concurrent PNG encoders per document")
	fs.IntVar(&f.compression, "compression", compressionUnset, "PNG compression 0-9")
	fs.StringVar(&f.background, "background", "", "page background as #rrggbb")
}

// parseConvertFlags parses convert command flags and returns positional args.
func parseConvertFlags(args []string) (*convertFlags, []string, error) {
	fs := flag.NewFlagSet("convert", flag.ContinueOnError)
	f := &convertFlags{}

	// I/O flags
	fs.StringVarP(&f.output, "output", "o", "", "output directory")
	fs.IntVarP(&f.workers, "workers", "w", 0, "converter processes (0 = one per CPU)")
	fs.StringVarP(&f.prefix, "prefix", "p", "", "output file prefix (single input only)")
	fs.StringVarP(&f.timeout, "timeout", "t", "", "per-document conversion timeout (e.g., 90s, 2m)")
	fs.StringVar(&f.soffice, "soffice", "", "path to the soffice binary")
	fs.BoolVar(&f.progress, "progress", false, "show a progress bar")
	fs.BoolVar(&f.overwrite, "overwrite", false, "replace existing page files")

	// Flag groups
	addCommonFlags(fs, &f.common)
	addRenderFlags(fs, &f.render)

	fs.Usage = func() { printConvertUsage(os.Stderr) }

	if err := fs.Parse(args); err != nil {
		return nil, nil, err
	}

	return f, fs.Args(), nil
}
