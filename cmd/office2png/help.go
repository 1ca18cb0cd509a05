package main

import (
	"fmt"
	"io"
	"strings"

	office2png "github.com/alnah/go-office2png"
)

// printUsage prints the main usage message.
func printUsage(w io.Writer) {
	fmt.Fprintln(w, "Usage: office2png <command> [flags] [args]")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Commands:")
	fmt.Fprintln(w, "  convert    Convert office documents to PNG pages")
	fmt.Fprintln(w, "  doctor     Check LibreOffice, MuPDF and system setup")
	fmt.Fprintln(w, "  formats    List supported input formats")
	fmt.Fprintln(w, "  version    Show version information")
	fmt.Fprintln(w, "  help       Show help for a command")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Run 'office2png help <command>' for details on a specific command.")
}

// printConvertUsage prints usage for the convert command.
func printConvertUsage(w io.Writer) {
	fmt.Fprintln(w, "Usage: office2png convert <input>... [flags]")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Convert office documents to one PNG per page.")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Arguments:")
	fmt.Fprintln(w, "  input    Document or directory (directories are not searched recursively)")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Input/Output:")
	fmt.Fprintln(w, "  -o, --output <dir>        Output directory (default: next to each input)")
	fmt.Fprintln(w, "  -p, --prefix <name>       Output file prefix, single input only")
	fmt.Fprintln(w, "      --overwrite           Replace page files from a previous run")
	fmt.Fprintln(w, "  -c, --config <name>       Config file name or path")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Converters:")
	fmt.Fprintln(w, "  -w, --workers <n>         LibreOffice processes (0 = one per CPU)")
	fmt.Fprintln(w, "  -t, --timeout <d>         Per-document conversion timeout (e.g., 90s, 2m)")
	fmt.Fprintln(w, "      --soffice <path>      soffice binary (default: auto-detect)")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Rendering:")
	fmt.Fprintln(w, "      --dpi <n>             Resolution, 1-1200 (default 300)")
	fmt.Fprintln(w, "      --render-workers <n>  Concurrent PNG encoders per document")
	fmt.Fprintln(w, "      --compression <n>     PNG compression, 0-9 (default 6)")
	fmt.Fprintln(w, "      --background <hex>    Page background (default #ffffff)")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Output Control:")
	fmt.Fprintln(w, "      --progress            Show a progress bar")
	fmt.Fprintln(w, "  -q, --quiet               Only show errors")
	fmt.Fprintln(w, "  -v, --verbose             Show debug logs and timing")
	fmt.Fprintln(w, "      --log-format <s>      Log format: console, json")
	fmt.Fprintln(w, "      --no-color            Disable coloured output")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Environment:")
	fmt.Fprintln(w, "  OFFICE2PNG_CONFIG, OFFICE2PNG_WORKERS, OFFICE2PNG_DPI, OFFICE2PNG_TIMEOUT,")
	fmt.Fprintln(w, "  OFFICE2PNG_OUTPUT_DIR, OFFICE2PNG_SOFFICE (flags take precedence)")
}

// runFormats lists the supported input extensions.
func runFormats(env *Environment) {
	fmt.Fprintln(env.Stdout, strings.Join(office2png.SupportedExtensions(), "\n"))
}

// runHelp prints help for a specific command.
func runHelp(args []string, env *Environment) {
	if len(args) == 0 {
		printUsage(env.Stdout)
		return
	}

	switch args[0] {
	case "convert":
		printConvertUsage(env.Stdout)
	case "doctor":
		fmt.Fprintln(env.Stdout, "Usage: office2png doctor [--json]")
		fmt.Fprintln(env.Stdout)
		fmt.Fprintln(env.Stdout, "Check that LibreOffice and MuPDF work and that the system can run converters.")
	case "formats":
		fmt.Fprintln(env.Stdout, "Usage: office2png formats")
		fmt.Fprintln(env.Stdout)
		fmt.Fprintln(env.Stdout, "List supported input formats, one extension per line.")
	case "version":
		fmt.Fprintln(env.Stdout, "Usage: office2png version")
		fmt.Fprintln(env.Stdout)
		fmt.Fprintln(env.Stdout, "Show version information.")
	case "help":
		fmt.Fprintln(env.Stdout, "Usage: office2png help [command]")
		fmt.Fprintln(env.Stdout)
		fmt.Fprintln(env.Stdout, "Show help for a command.")
	default:
		fmt.Fprintf(env.Stderr, "Unknown command: %s\n", args[0])
		printUsage(env.Stderr)
	}
}
