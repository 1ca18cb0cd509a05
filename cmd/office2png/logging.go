package main

import (
	"fmt"
	"io"
	"time"

	"github.com/fatih/color"
	"github.com/rs/zerolog"
)

// newLogger builds the CLI logger on w. Warnings and errors are shown by
// default; --verbose adds debug output and --quiet keeps errors only.
func newLogger(w io.Writer, f commonFlags) (zerolog.Logger, error) {
	level := zerolog.WarnLevel
	switch {
	case f.verbose:
		level = zerolog.DebugLevel
	case f.quiet:
		level = zerolog.ErrorLevel
	}

	var out io.Writer
	switch f.logFormat {
	case "", "console":
		out = zerolog.ConsoleWriter{Out: w, NoColor: color.NoColor, TimeFormat: time.TimeOnly}
	case "json":
		out = w
	default:
		return zerolog.Nop(), fmt.Errorf("%w: --log-format %q (want console or json)", ErrInvalidFlags, f.logFormat)
	}

	return zerolog.New(out).Level(level).With().Timestamp().Logger(), nil
}
