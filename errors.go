package office2png

import (
	"errors"
	"fmt"
)

// Sentinel errors for library operations.
var (
	ErrToolchainNotFound    = errors.New("LibreOffice not found (soffice)")
	ErrUnsupportedExtension = errors.New("unsupported file extension")
	ErrInputNotFound        = errors.New("input file not found")
	ErrInvalidConfig        = errors.New("invalid configuration")

	// Converter stage errors.
	ErrWorkerCrashed     = errors.New("converter worker crashed")
	ErrConversionTimeout = errors.New("conversion timed out")
	ErrConversionFailed  = errors.New("document conversion failed")

	// Rendering stage errors.
	ErrRender = errors.New("page rendering failed")
	ErrIO     = errors.New("output write failed")

	// Pool admission errors.
	ErrPoolShuttingDown = errors.New("worker pool is shutting down")
	ErrPoolDegraded     = errors.New("worker pool degraded: workers cannot be respawned")
)

// JobError describes a failed document conversion.
// It unwraps to the underlying sentinel so callers can use errors.Is.
type JobError struct {
	Path  string
	Stage Stage
	Err   error
}

func (e *JobError) Error() string {
	return fmt.Sprintf("%s (%s): %v", e.Path, e.Stage, e.Err)
}

func (e *JobError) Unwrap() error {
	return e.Err
}
