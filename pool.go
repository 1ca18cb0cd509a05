package office2png

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/rs/zerolog"

	"github.com/alnah/go-office2png/internal/process"
)

// Pool sizing and recovery defaults.
const (
	// MinPoolSize ensures at least one worker is available.
	MinPoolSize = 1

	// DefaultMaxDocsPerWorker bounds LibreOffice profile growth before a
	// worker is recycled.
	DefaultMaxDocsPerWorker = 100

	// DefaultMaxRespawnFailures is the number of consecutive failed spawns
	// after which the pool is marked degraded.
	DefaultMaxRespawnFailures = 3
)

// Outcome tells the pool how the Job left its Worker.
type Outcome int

const (
	// OutcomeOK returns the Worker to Idle.
	OutcomeOK Outcome = iota
	// OutcomeRecoverable means the document failed but the process is healthy.
	OutcomeRecoverable
	// OutcomeCrashed kills the process and respawns the slot.
	OutcomeCrashed
)

// WorkerHealth is a point-in-time view of one slot.
type WorkerHealth struct {
	Slot          int
	State         WorkerState
	PID           int
	RSS           uint64 // resident memory while Busy, 0 otherwise
	DocsProcessed int
}

// PoolHealth is a point-in-time snapshot of the pool.
type PoolHealth struct {
	Size           int
	Idle           int
	Busy           int
	Crashed        int
	Terminating    int
	ShuttingDown   bool
	Degraded       bool
	TotalProcessed int
	Respawns       int
	Workers        []WorkerHealth
}

// Healthy reports whether the pool accepts work and every slot is usable.
func (h PoolHealth) Healthy() bool {
	return !h.ShuttingDown && !h.Degraded && h.Crashed == 0
}

type poolConfig struct {
	size               int
	maxDocsPerWorker   int
	maxRespawnFailures int
	newBackOff         func() backoff.BackOff
	logger             zerolog.Logger
	metrics            *metrics
}

func defaultRespawnBackOff() backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 200 * time.Millisecond
	b.MaxInterval = 5 * time.Second
	b.MaxElapsedTime = 0
	return b
}

type acquireResult struct {
	worker *Worker
	err    error
}

// workerPool is a fixed-size set of Workers.
// At most size Workers are Busy at once; waiters are served FIFO.
// The mutex is never held across process operations.
type workerPool struct {
	launcher Launcher
	cfg      poolConfig

	// ctx is cancelled once shutdown finishes draining, aborting respawns.
	ctx    context.Context
	cancel context.CancelFunc

	mu             sync.Mutex
	workers        []*Worker // current Worker per slot
	idle           []*Worker
	waiters        []chan acquireResult
	shuttingDown   bool
	degraded       bool
	spawnFailures  int
	totalProcessed int
	respawns       int
	drained        chan struct{}
	drainedClosed  bool

	respawning   sync.WaitGroup
	shutdownOnce sync.Once
	shutdownErr  error
}

// newWorkerPool spawns every slot up front so a broken toolchain fails
// construction rather than the first job.
func newWorkerPool(ctx context.Context, launcher Launcher, cfg poolConfig) (*workerPool, error) {
	if cfg.size < MinPoolSize {
		cfg.size = MinPoolSize
	}
	if cfg.newBackOff == nil {
		cfg.newBackOff = defaultRespawnBackOff
	}
	if cfg.maxRespawnFailures < 1 {
		cfg.maxRespawnFailures = DefaultMaxRespawnFailures
	}

	poolCtx, cancel := context.WithCancel(context.Background())
	p := &workerPool{
		launcher: launcher,
		cfg:      cfg,
		ctx:      poolCtx,
		cancel:   cancel,
		workers:  make([]*Worker, cfg.size),
		idle:     make([]*Worker, 0, cfg.size),
		drained:  make(chan struct{}),
	}

	for slot := range cfg.size {
		proc, err := launcher.Spawn(ctx, slot)
		if err != nil {
			cancel()
			p.closeSpawned()
			return nil, fmt.Errorf("spawning worker %d: %w", slot, err)
		}
		w := newWorker(slot, proc)
		p.workers[slot] = w
		p.idle = append(p.idle, w)
	}

	p.observeLocked()
	cfg.logger.Debug().Int("size", cfg.size).Msg("worker pool started")
	return p, nil
}

func (p *workerPool) closeSpawned() {
	for _, w := range p.workers {
		if w != nil {
			p.closeProcess(w.proc)
		}
	}
}

// Acquire blocks until an Idle Worker is available and marks it Busy.
func (p *workerPool) Acquire(ctx context.Context) (*Worker, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	p.mu.Lock()
	if err := p.admissionErrLocked(); err != nil {
		p.mu.Unlock()
		return nil, err
	}
	if len(p.waiters) == 0 && len(p.idle) > 0 {
		w := p.grantLocked()
		p.observeLocked()
		p.mu.Unlock()
		return w, nil
	}
	ch := make(chan acquireResult, 1)
	p.waiters = append(p.waiters, ch)
	p.mu.Unlock()

	select {
	case r := <-ch:
		return r.worker, r.err
	case <-ctx.Done():
		p.mu.Lock()
		removed := p.removeWaiterLocked(ch)
		p.mu.Unlock()
		if !removed {
			// Granted concurrently with cancellation; hand the worker back.
			if r := <-ch; r.worker != nil {
				p.giveBack(r.worker)
			}
		}
		return nil, ctx.Err()
	}
}

func (p *workerPool) admissionErrLocked() error {
	switch {
	case p.shuttingDown:
		return ErrPoolShuttingDown
	case p.degraded:
		return ErrPoolDegraded
	}
	return nil
}

func (p *workerPool) grantLocked() *Worker {
	w := p.idle[0]
	p.idle = p.idle[1:]
	_ = w.transition(WorkerBusy)
	return w
}

func (p *workerPool) dispatchLocked() {
	for len(p.waiters) > 0 && len(p.idle) > 0 {
		ch := p.waiters[0]
		p.waiters = p.waiters[1:]
		ch <- acquireResult{worker: p.grantLocked()}
	}
}

func (p *workerPool) failWaitersLocked(err error) {
	for _, ch := range p.waiters {
		ch <- acquireResult{err: err}
	}
	p.waiters = nil
}

func (p *workerPool) removeWaiterLocked(ch chan acquireResult) bool {
	for i, waiter := range p.waiters {
		if waiter == ch {
			p.waiters = append(p.waiters[:i], p.waiters[i+1:]...)
			return true
		}
	}
	return false
}

// giveBack returns an unused Worker without counting a document.
func (p *workerPool) giveBack(w *Worker) {
	p.mu.Lock()
	if p.workers[w.slot] != w || w.state != WorkerBusy {
		p.mu.Unlock()
		return
	}
	var retire Process
	if p.shuttingDown {
		_ = w.transition(WorkerTerminating)
		retire = w.proc
	} else {
		_ = w.transition(WorkerIdle)
		p.idle = append(p.idle, w)
		p.dispatchLocked()
	}
	p.checkDrainedLocked()
	p.observeLocked()
	p.mu.Unlock()

	if retire != nil {
		p.closeProcess(retire)
	}
}

// Release hands the Worker back after its converter stage.
// Releasing a Worker the pool already reclaimed (forced shutdown) is a no-op.
func (p *workerPool) Release(w *Worker, outcome Outcome) {
	if w == nil {
		return
	}

	p.mu.Lock()
	if p.workers[w.slot] != w || w.state != WorkerBusy {
		p.mu.Unlock()
		return
	}

	p.totalProcessed++
	w.docs++

	var retire Process
	switch {
	case outcome == OutcomeCrashed:
		_ = w.transition(WorkerCrashed)
		p.cfg.metrics.incCrashes()
		p.cfg.logger.Warn().Int("slot", w.slot).Msg("worker crashed, respawning")
		p.startRespawnLocked(w)
	case p.shuttingDown:
		_ = w.transition(WorkerTerminating)
		retire = w.proc
	case p.cfg.maxDocsPerWorker > 0 && w.docs >= p.cfg.maxDocsPerWorker:
		_ = w.transition(WorkerTerminating)
		p.cfg.logger.Debug().Int("slot", w.slot).Int("docs", w.docs).Msg("recycling worker")
		p.startRespawnLocked(w)
	default:
		_ = w.transition(WorkerIdle)
		p.idle = append(p.idle, w)
		p.dispatchLocked()
	}

	p.checkDrainedLocked()
	p.observeLocked()
	p.mu.Unlock()

	if retire != nil {
		p.closeProcess(retire)
	}
}

func (p *workerPool) startRespawnLocked(old *Worker) {
	p.respawning.Add(1)
	go p.respawn(old)
}

// respawn replaces old in its slot. The slot is not granted until the new
// process answers a ping.
func (p *workerPool) respawn(old *Worker) {
	defer p.respawning.Done()

	if err := old.proc.Kill(); err != nil {
		p.cfg.logger.Warn().Err(err).Int("slot", old.slot).Msg("killing worker process")
	}
	p.closeProcess(old.proc)

	p.mu.Lock()
	if p.shuttingDown || p.degraded {
		retireLocked(old)
		p.observeLocked()
		p.mu.Unlock()
		return
	}
	p.mu.Unlock()

	var fresh *Worker
	spawn := func() error {
		proc, err := p.launcher.Spawn(p.ctx, old.slot)
		if err == nil {
			if err = proc.Ping(p.ctx); err != nil {
				p.closeProcess(proc)
			}
		}
		if err != nil {
			if p.ctx.Err() != nil {
				return backoff.Permanent(err)
			}
			return p.recordSpawnFailure(old.slot, err)
		}
		fresh = newWorker(old.slot, proc)
		return nil
	}

	if err := backoff.Retry(spawn, backoff.WithContext(p.cfg.newBackOff(), p.ctx)); err != nil {
		p.cfg.logger.Error().Err(err).Int("slot", old.slot).Msg("respawn abandoned")
		return
	}

	p.mu.Lock()
	if p.shuttingDown {
		retireLocked(old)
		p.observeLocked()
		p.mu.Unlock()
		p.closeProcess(fresh.proc)
		return
	}
	p.workers[old.slot] = fresh
	p.spawnFailures = 0
	p.respawns++
	p.cfg.metrics.incRespawns()
	p.idle = append(p.idle, fresh)
	p.dispatchLocked()
	p.observeLocked()
	p.mu.Unlock()

	p.cfg.logger.Debug().Int("slot", old.slot).Int("pid", fresh.PID()).Msg("worker respawned")
}

// recordSpawnFailure counts a failed spawn and marks the pool degraded once
// the consecutive-failure budget is spent.
func (p *workerPool) recordSpawnFailure(slot int, err error) error {
	p.mu.Lock()
	p.spawnFailures++
	exhausted := p.spawnFailures >= p.cfg.maxRespawnFailures
	if exhausted && !p.degraded {
		p.degraded = true
		p.failWaitersLocked(ErrPoolDegraded)
	}
	p.mu.Unlock()

	p.cfg.logger.Warn().Err(err).Int("slot", slot).Bool("degraded", exhausted).Msg("worker spawn failed")
	if exhausted {
		return backoff.Permanent(err)
	}
	return err
}

func retireLocked(w *Worker) {
	if w.state != WorkerTerminating {
		_ = w.transition(WorkerTerminating)
	}
}

func (p *workerPool) checkDrainedLocked() {
	if !p.shuttingDown || p.drainedClosed {
		return
	}
	for _, w := range p.workers {
		if w.state == WorkerBusy {
			return
		}
	}
	p.drainedClosed = true
	close(p.drained)
}

// Shutdown stops admission, lets Busy workers finish until ctx ends, then
// kills what is left. Concurrent and repeated calls share one drain and
// return the same result.
func (p *workerPool) Shutdown(ctx context.Context) error {
	p.shutdownOnce.Do(func() {
		p.shutdownErr = p.drain(ctx)
	})
	return p.shutdownErr
}

func (p *workerPool) drain(ctx context.Context) error {
	p.mu.Lock()
	p.shuttingDown = true
	p.failWaitersLocked(ErrPoolShuttingDown)
	var retire []Process
	for _, w := range p.idle {
		_ = w.transition(WorkerTerminating)
		retire = append(retire, w.proc)
	}
	p.idle = nil
	for _, w := range p.workers {
		if w.state == WorkerCrashed {
			retireLocked(w)
		}
	}
	p.checkDrainedLocked()
	p.observeLocked()
	p.mu.Unlock()

	for _, proc := range retire {
		p.closeProcess(proc)
	}

	var err error
	select {
	case <-p.drained:
	case <-ctx.Done():
		p.forceTerminate()
		err = fmt.Errorf("forced termination of busy workers: %w", ctx.Err())
	}

	p.cancel()
	p.respawning.Wait()

	p.cfg.logger.Debug().Err(err).Msg("worker pool shut down")
	return err
}

func (p *workerPool) forceTerminate() {
	p.mu.Lock()
	var busy []Process
	for _, w := range p.workers {
		if w.state == WorkerBusy {
			_ = w.transition(WorkerTerminating)
			busy = append(busy, w.proc)
		}
	}
	p.observeLocked()
	p.mu.Unlock()

	for _, proc := range busy {
		if err := proc.Kill(); err != nil {
			p.cfg.logger.Warn().Err(err).Msg("killing busy worker")
		}
		p.closeProcess(proc)
	}
}

func (p *workerPool) closeProcess(proc Process) {
	if err := proc.Close(); err != nil && !errors.Is(err, context.Canceled) {
		p.cfg.logger.Warn().Err(err).Msg("closing worker process")
	}
}

// Health returns a snapshot. It only takes the pool mutex, which is never
// held while a Job runs.
func (p *workerPool) Health() PoolHealth {
	p.mu.Lock()
	h := p.healthLocked()
	p.mu.Unlock()

	// Sampled outside the lock: reading process memory hits procfs.
	for i := range h.Workers {
		if wh := &h.Workers[i]; wh.State == WorkerBusy && wh.PID > 0 {
			wh.RSS, _ = process.ResidentMemory(wh.PID)
		}
	}
	return h
}

// countsLocked tallies worker states without per-worker detail.
func (p *workerPool) countsLocked() PoolHealth {
	h := PoolHealth{
		Size:           len(p.workers),
		ShuttingDown:   p.shuttingDown,
		Degraded:       p.degraded,
		TotalProcessed: p.totalProcessed,
		Respawns:       p.respawns,
	}
	for _, w := range p.workers {
		switch w.state {
		case WorkerIdle:
			h.Idle++
		case WorkerBusy:
			h.Busy++
		case WorkerCrashed:
			h.Crashed++
		case WorkerTerminating:
			h.Terminating++
		}
	}
	return h
}

func (p *workerPool) healthLocked() PoolHealth {
	h := p.countsLocked()
	h.Workers = make([]WorkerHealth, 0, len(p.workers))
	for _, w := range p.workers {
		h.Workers = append(h.Workers, WorkerHealth{
			Slot:          w.slot,
			State:         w.state,
			PID:           w.proc.PID(),
			DocsProcessed: w.docs,
		})
	}
	return h
}

func (p *workerPool) observeLocked() {
	if p.cfg.metrics != nil {
		p.cfg.metrics.setWorkers(p.countsLocked())
	}
}

func (p *workerPool) isShuttingDown() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.shuttingDown
}

// Size returns the pool capacity.
func (p *workerPool) Size() int {
	return len(p.workers)
}

// ResolvePoolSize determines the pool size.
// Priority: explicit workers > host CPU count.
// GOMAXPROCS reflects container CPU quotas once automaxprocs has run.
func ResolvePoolSize(workers int) int {
	if workers > 0 {
		return workers
	}
	return max(runtime.GOMAXPROCS(0), MinPoolSize)
}
