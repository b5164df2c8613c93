package webcodecs

import (
	"context"
	"errors"
	"io"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"
)

// DispatcherConfig configures a Dispatcher.
type DispatcherConfig struct {
	Workers int // Maximum concurrently executing tasks (0 = GOMAXPROCS)

	Logger  *zap.Logger
	Metrics *Metrics
}

// DispatcherStats is a snapshot of dispatcher activity.
type DispatcherStats struct {
	Workers   int
	Running   int64  // Tasks executing right now
	Peak      int64  // Highest Running observed
	Submitted uint64 // Tasks accepted since creation
}

// Dispatcher runs codec engine work off the caller's goroutine with bounded
// parallelism. One dispatcher is normally shared by every instance.
//
// The dispatcher knows nothing about instances: each instance feeds it one
// task at a time through its own task sequence, so two tasks of the same
// instance never run concurrently.
type Dispatcher struct {
	workers int
	sem     *semaphore.Weighted
	log     *zap.Logger
	metrics *Metrics

	mu     sync.RWMutex
	closed bool
	wg     sync.WaitGroup

	running   atomic.Int64
	peak      atomic.Int64
	submitted atomic.Uint64
}

// NewDispatcher creates a dispatcher.
func NewDispatcher(config DispatcherConfig) *Dispatcher {
	if config.Workers <= 0 {
		config.Workers = runtime.GOMAXPROCS(0)
	}
	if config.Logger == nil {
		config.Logger = zap.NewNop()
	}
	return &Dispatcher{
		workers: config.Workers,
		sem:     semaphore.NewWeighted(int64(config.Workers)),
		log:     config.Logger.Named("dispatcher"),
		metrics: config.Metrics,
	}
}

var (
	defaultDispatcherOnce sync.Once
	defaultDispatcher     *Dispatcher
)

// DefaultDispatcher returns the process-wide dispatcher used when an instance
// is created without one.
func DefaultDispatcher() *Dispatcher {
	defaultDispatcherOnce.Do(func() {
		defaultDispatcher = NewDispatcher(DispatcherConfig{})
	})
	return defaultDispatcher
}

// dispatch schedules fn and returns immediately. After Close, fn runs on the
// calling goroutine so that queued instance work still drains.
func (d *Dispatcher) dispatch(fn func()) {
	d.submitted.Add(1)

	d.mu.RLock()
	if d.closed {
		d.mu.RUnlock()
		d.log.Debug("dispatcher closed, running task inline")
		fn()
		return
	}
	d.wg.Add(1)
	d.mu.RUnlock()

	go d.run(fn)
}

func (d *Dispatcher) run(fn func()) {
	defer d.wg.Done()

	// Acquire only fails on context cancellation.
	_ = d.sem.Acquire(context.Background(), 1)
	defer d.sem.Release(1)

	n := d.running.Add(1)
	for {
		peak := d.peak.Load()
		if n <= peak || d.peak.CompareAndSwap(peak, n) {
			break
		}
	}
	d.metrics.dispatcherRunning(n)
	defer func() {
		d.metrics.dispatcherRunning(d.running.Add(-1))
	}()

	fn()
}

// Close stops new tasks from being scheduled on workers and waits for the
// running ones to finish.
func (d *Dispatcher) Close() error {
	d.mu.Lock()
	d.closed = true
	d.mu.Unlock()

	d.wg.Wait()
	return nil
}

// Stats returns a snapshot of dispatcher activity.
func (d *Dispatcher) Stats() DispatcherStats {
	return DispatcherStats{
		Workers:   d.workers,
		Running:   d.running.Load(),
		Peak:      d.peak.Load(),
		Submitted: d.submitted.Load(),
	}
}

// job is one Process or Flush task of an instance. It closes over the
// instance's resource owner, which stays alive until the task sequence
// drains.
type job[C codecConfig, I any, O comparable] struct {
	kind    Kind
	op      messageKind
	seq     uint64
	gen     uint64
	input   I
	owner   *resourceOwner[C, I, O]
	pool    *BufferPool
	results *resultChannel[O]
	metrics *Metrics
}

func (j *job[C, I, O]) run() {
	// Work queued before a Reset is skipped without touching the engine.
	if j.results.stale(j.gen) {
		return
	}

	start := time.Now()
	switch j.op {
	case messageProcess:
		j.process()
	case messageFlush:
		j.flush()
	}
	j.metrics.task(j.kind, j.op.String(), time.Since(start))
}

func (j *job[C, I, O]) process() {
	size := j.owner.scratchSize(j.input)
	buf := j.pool.Acquire(size)
	defer func() { buf.Release() }()

	grown := false
	for {
		out, err := j.owner.submit(j.input, buf.Bytes())
		if errors.Is(err, ErrWouldBlock) {
			// The engine wants this exact call again.
			j.metrics.retry()
			if j.results.stale(j.gen) {
				return
			}
			runtime.Gosched()
			continue
		}
		if errors.Is(err, ErrBufferTooSmall) && !grown {
			// One more attempt with twice the scratch.
			grown = true
			size *= 2
			buf.Release()
			buf = j.pool.Acquire(size)
			continue
		}
		if err != nil {
			j.results.post(envelope[O]{seq: j.seq, gen: j.gen, kind: resultError, err: err, terminal: true})
			return
		}
		j.results.post(envelope[O]{seq: j.seq, gen: j.gen, kind: resultOutput, payload: out, terminal: true})
		return
	}
}

func (j *job[C, I, O]) flush() {
	var zero O
	var none I
	size := j.owner.scratchSize(none)
	buf := j.pool.Acquire(size)
	defer func() { buf.Release() }()

	grown := false
	for {
		if j.results.stale(j.gen) {
			return
		}
		out, err := j.owner.drain(buf.Bytes())
		if errors.Is(err, io.EOF) {
			break
		}
		if errors.Is(err, ErrWouldBlock) {
			j.metrics.retry()
			runtime.Gosched()
			continue
		}
		if errors.Is(err, ErrBufferTooSmall) && !grown {
			grown = true
			size *= 2
			buf.Release()
			buf = j.pool.Acquire(size)
			continue
		}
		if err != nil {
			err = engineError(j.owner.engine, "drain", err)
			j.results.post(envelope[O]{seq: j.seq, gen: j.gen, kind: resultError, err: err})
			j.results.post(envelope[O]{seq: j.seq, gen: j.gen, kind: resultFlushDone, err: err, terminal: true})
			return
		}
		if out != zero {
			j.results.post(envelope[O]{seq: j.seq, gen: j.gen, kind: resultOutput, payload: out})
		}
	}
	j.results.post(envelope[O]{seq: j.seq, gen: j.gen, kind: resultFlushDone, terminal: true})
}
