package office2png

import (
	"context"
	"fmt"
	"slices"
)

// WorkerState is the lifecycle state of a pool slot's Worker.
type WorkerState int

// Worker states.
const (
	WorkerIdle WorkerState = iota
	WorkerBusy
	WorkerCrashed
	WorkerTerminating
)

var workerStateNames = [...]string{
	WorkerIdle:        "idle",
	WorkerBusy:        "busy",
	WorkerCrashed:     "crashed",
	WorkerTerminating: "terminating",
}

func (s WorkerState) String() string {
	if s < 0 || int(s) >= len(workerStateNames) {
		return "unknown"
	}
	return workerStateNames[s]
}

// workerTransitions lists the allowed next states for each state.
// A Worker never leaves Terminating; its slot gets a new Worker instead.
var workerTransitions = map[WorkerState][]WorkerState{
	WorkerIdle:        {WorkerBusy, WorkerTerminating},
	WorkerBusy:        {WorkerIdle, WorkerCrashed, WorkerTerminating},
	WorkerCrashed:     {WorkerTerminating},
	WorkerTerminating: nil,
}

// Worker owns one converter process for one pool slot.
// A Worker is driven by at most one Job at a time; state is guarded by the
// owning pool's mutex.
type Worker struct {
	slot  int
	proc  Process
	state WorkerState
	docs  int
}

func newWorker(slot int, proc Process) *Worker {
	return &Worker{slot: slot, proc: proc, state: WorkerIdle}
}

// Slot returns the pool slot index this Worker occupies.
func (w *Worker) Slot() int {
	return w.slot
}

// PID returns the PID of the running converter process, or 0.
func (w *Worker) PID() int {
	return w.proc.PID()
}

// Convert runs the document-to-PDF conversion on this Worker's process.
// Only the Job that acquired the Worker may call it.
func (w *Worker) Convert(ctx context.Context, inputPath, outDir string) (string, error) {
	return w.proc.Convert(ctx, inputPath, outDir)
}

// Ping checks that the Worker's process is still usable.
func (w *Worker) Ping(ctx context.Context) error {
	return w.proc.Ping(ctx)
}

// transition moves the Worker to next, rejecting moves the state machine
// does not allow. Caller holds the pool mutex.
func (w *Worker) transition(next WorkerState) error {
	if !slices.Contains(workerTransitions[w.state], next) {
		return fmt.Errorf("worker %d: illegal transition %s -> %s", w.slot, w.state, next)
	}
	w.state = next
	return nil
}
