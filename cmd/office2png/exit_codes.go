package main

import (
	"errors"
	"os"

	office2png "github.com/alnah/go-office2png"
	"github.com/alnah/go-office2png/internal/config"
)

// Exit codes for office2png CLI.
// Follows Unix conventions: 0=success, 1=general, 2=usage, and custom codes < 126.
const (
	ExitSuccess   = 0 // Every document converted
	ExitGeneral   = 1 // General error or at least one failed document
	ExitUsage     = 2 // Invalid flags, config, or validation
	ExitIO        = 3 // File not found, permission denied
	ExitToolchain = 4 // LibreOffice missing or converter processes failing
)

// exitCodeFor returns the appropriate exit code for an error.
// It uses errors.Is to check wrapped errors, so callers must use fmt.Errorf("%w", err).
func exitCodeFor(err error) int {
	if err == nil {
		return ExitSuccess
	}

	// Partial batch failures are reported per document
	if errors.Is(err, ErrConversionsFailed) {
		return ExitGeneral
	}

	// Toolchain errors (exit 4)
	if errors.Is(err, office2png.ErrToolchainNotFound) ||
		errors.Is(err, office2png.ErrPoolDegraded) ||
		errors.Is(err, office2png.ErrWorkerCrashed) {
		return ExitToolchain
	}

	// I/O errors (exit 3)
	if errors.Is(err, os.ErrNotExist) ||
		errors.Is(err, os.ErrPermission) ||
		errors.Is(err, office2png.ErrInputNotFound) ||
		errors.Is(err, office2png.ErrIO) ||
		errors.Is(err, ErrNoInput) {
		return ExitIO
	}

	// Usage/config/validation errors (exit 2)
	if errors.Is(err, config.ErrConfigNotFound) ||
		errors.Is(err, config.ErrEmptyConfigName) ||
		errors.Is(err, config.ErrConfigParse) ||
		errors.Is(err, config.ErrFieldTooLong) ||
		errors.Is(err, config.ErrInvalidValue) ||
		errors.Is(err, office2png.ErrInvalidConfig) ||
		errors.Is(err, office2png.ErrUnsupportedExtension) ||
		errors.Is(err, ErrInvalidFlags) ||
		errors.Is(err, ErrInvalidWorkerCount) ||
		errors.Is(err, ErrInvalidTimeout) ||
		errors.Is(err, ErrPrefixMultipleInputs) ||
		errors.Is(err, ErrUnknownCommand) {
		return ExitUsage
	}

	return ExitGeneral
}
