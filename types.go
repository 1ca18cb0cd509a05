package office2png

import (
	"time"
)

// Stage is a step of the per-document conversion state machine.
type Stage int

// Conversion stages, in pipeline order. StageFailed is reachable from any
// non-terminal stage.
const (
	StageQueued Stage = iota
	StageConverting
	StageRendering
	StageCompleted
	StageFailed
)

var stageNames = [...]string{
	StageQueued:     "queued",
	StageConverting: "converting",
	StageRendering:  "rendering",
	StageCompleted:  "completed",
	StageFailed:     "failed",
}

func (s Stage) String() string {
	if s < 0 || int(s) >= len(stageNames) {
		return "unknown"
	}
	return stageNames[s]
}

// Terminal reports whether no transition leaves s.
func (s Stage) Terminal() bool {
	return s == StageCompleted || s == StageFailed
}

// canTransition reports whether the state machine allows s -> next.
func (s Stage) canTransition(next Stage) bool {
	if s.Terminal() {
		return false
	}
	if next == StageFailed {
		return true
	}
	return next == s+1
}

// ConversionProgress is a progress event for one file of a batch.
// For a fixed FileIndex, PagesCompleted never decreases.
type ConversionProgress struct {
	FileIndex      int
	TotalFiles     int
	CurrentFile    string
	Stage          Stage
	PagesCompleted int
	TotalPages     int // 0 until the intermediate document has been opened
}

// TotalPagesKnown reports whether the page count has been determined.
func (p ConversionProgress) TotalPagesKnown() bool {
	return p.TotalPages > 0 || p.Stage == StageCompleted
}

// FileResult is the outcome of one successfully converted document.
type FileResult struct {
	InputPath   string
	OutputPaths []string // one per page, ordered by page number
	PageCount   int
	Duration    time.Duration
}

// FailedFile records a document that could not be converted.
type FailedFile struct {
	InputPath string
	Err       error
	Message   string
}

// BatchResult aggregates the outcome of ConvertBatch.
// SuccessCount + FailureCount always equals the number of inputs.
type BatchResult struct {
	Successful    []FileResult // input order
	Failed        []FailedFile // input order
	SuccessCount  int
	FailureCount  int
	Cancelled     int // inputs never dispatched because the batch was cancelled
	TotalPages    int
	TotalDuration time.Duration // sum of per-file durations
	WallTime      time.Duration // elapsed time of the whole batch
}

// AllSucceeded reports whether no input failed.
func (r *BatchResult) AllSucceeded() bool {
	return r.FailureCount == 0
}

// PngPage describes a rendered page before it is folded into a FileResult.
type PngPage struct {
	Index  int // 0-based
	Width  int
	Height int
	Path   string
	Size   int
}
