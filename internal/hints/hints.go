// Package hints provides actionable error hints for common failure scenarios.
// Hints are formatted consistently as "\n  hint: <text>" for appending to error messages.
package hints

import (
	"os"
	"strings"

	"github.com/alnah/go-office2png/internal/fileutil"
)

// IsInContainer detects if running inside a Docker container or similar.
// Checks for /.dockerenv file which Docker creates automatically.
var IsInContainer = func() bool {
	return fileutil.FileExists("/.dockerenv")
}

// ForToolchain returns hints for a missing or unusable LibreOffice install.
func ForToolchain() string {
	var hints []string

	if IsInContainer() {
		hints = append(hints, "install libreoffice-writer and libreoffice-calc in the image")
	} else {
		hints = append(hints, "install LibreOffice from https://www.libreoffice.org/download/")
	}

	if os.Getenv("OFFICE2PNG_SOFFICE") == "" {
		hints = append(hints, "set OFFICE2PNG_SOFFICE or --soffice to point at the soffice binary")
	}

	return formatHints(hints)
}

// ForDegradedPool returns hints when converter instances keep failing to start.
func ForDegradedPool() string {
	return format("check that `soffice --headless --version` runs for this user and that the temp dir is writable")
}

// ForTimeout returns a hint about increasing timeout for slow operations.
func ForTimeout() string {
	return format("for large documents, use --timeout flag")
}

// ForConfigNotFound returns hints for config file not found errors.
// Suggests --config flag and creating a config in ~/.config/go-office2png/.
func ForConfigNotFound(searchedPaths []string) string {
	hint := "use --config /path/to/file.yaml"

	// Find a user config path (contains .config/go-office2png) to suggest
	for _, p := range searchedPaths {
		if strings.Contains(p, ".config/go-office2png") {
			hint += " or create " + p
			break
		}
	}

	return format(hint)
}

// ForOutputDirectory returns hints for output directory creation errors.
func ForOutputDirectory() string {
	return format("check parent directory exists and is writable")
}

// ForExistingOutput returns hints when a page file is already on disk.
func ForExistingOutput() string {
	return format("pass --overwrite to replace pages from a previous run")
}

// ForUnsupportedExtension lists the accepted input formats.
func ForUnsupportedExtension(supported []string) string {
	if len(supported) == 0 {
		return ""
	}
	return format("supported formats: " + strings.Join(supported, ", "))
}

// format creates a single hint string with consistent formatting.
func format(hint string) string {
	if hint == "" {
		return ""
	}
	return "\n  hint: " + hint
}

// formatHints joins multiple hints with consistent formatting.
func formatHints(hints []string) string {
	if len(hints) == 0 {
		return ""
	}
	return format(strings.Join(hints, "; "))
}
