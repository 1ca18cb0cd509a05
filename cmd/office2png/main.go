package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/joho/godotenv"
	"go.uber.org/automaxprocs/maxprocs"

	office2png "github.com/alnah/go-office2png"
)

// Version is set at build time via ldflags.
var Version = "dev"

// ErrUnknownCommand is returned for an unrecognized sub-command.
var ErrUnknownCommand = errors.New("unknown command")

func main() {
	// A .env in the working directory never overrides the real environment.
	_ = godotenv.Load()

	env := DefaultEnv()
	verbose := hasFlag(os.Args[1:], "-v", "--verbose")

	// Error ignored: maxprocs.Set only fails if GOMAXPROCS env is invalid,
	// in which case Go runtime defaults apply and the program continues safely.
	if verbose {
		_, _ = maxprocs.Set(maxprocs.Logger(func(format string, args ...any) {
			fmt.Fprintf(env.Stderr, format+"\n", args...)
		}))
	} else {
		_, _ = maxprocs.Set(maxprocs.Logger(func(string, ...any) {}))
	}

	ctx, stop := notifyContext(context.Background())
	code := runMain(ctx, os.Args, env)
	stop()
	os.Exit(code)
}

// runMain dispatches to a command and returns the process exit code.
// A first argument that is not a command is treated as an input for convert.
func runMain(ctx context.Context, args []string, env *Environment) int {
	if len(args) < 2 {
		printUsage(env.Stderr)
		return ExitUsage
	}

	cmd, rest := args[1], args[2:]
	if !isCommand(cmd) && looksLikeInput(cmd) {
		cmd, rest = "convert", args[1:]
	}

	var err error
	switch cmd {
	case "convert":
		err = runConvertCmd(ctx, rest, env)
	case "doctor":
		return runDoctorCmd(ctx, rest, env)
	case "formats":
		runFormats(env)
	case "version", "--version":
		fmt.Fprintf(env.Stdout, "office2png %s\n", Version)
	case "help", "-h", "--help":
		runHelp(rest, env)
	default:
		err = fmt.Errorf("%w: %s", ErrUnknownCommand, cmd)
		printUsage(env.Stderr)
	}

	if err != nil {
		fmt.Fprintf(env.Stderr, "error: %v\n", err)
	}
	return exitCodeFor(err)
}

var commands = []string{"convert", "doctor", "formats", "version", "help"}

// isCommand reports whether arg names a sub-command.
func isCommand(arg string) bool {
	return slices.Contains(commands, arg)
}

// looksLikeInput reports whether arg is a supported document or a directory.
func looksLikeInput(arg string) bool {
	if strings.HasPrefix(arg, "-") {
		return false
	}
	if office2png.IsSupportedExtension(filepath.Ext(arg)) {
		return true
	}
	info, err := os.Stat(arg)
	return err == nil && info.IsDir()
}

// hasFlag reports whether any of names appears in args before a "--".
func hasFlag(args []string, names ...string) bool {
	for _, a := range args {
		if a == "--" {
			return false
		}
		if slices.Contains(names, a) {
			return true
		}
	}
	return false
}
