package webcodecs

import (
	"sync"
	"sync/atomic"
)

type resultKind uint8

const (
	resultOutput resultKind = iota
	resultError
	resultFlushDone
)

func (k resultKind) String() string {
	switch k {
	case resultOutput:
		return "output"
	case resultError:
		return "error"
	case resultFlushDone:
		return "flush"
	default:
		return "unknown"
	}
}

// envelope carries one result from a worker to the delivery goroutine. Every
// accepted Process or Flush produces exactly one terminal envelope; a Flush
// may precede it with drained outputs.
type envelope[O comparable] struct {
	seq      uint64
	gen      uint64
	kind     resultKind
	payload  O // zero for an Output envelope means "nothing produced yet"
	err      error
	terminal bool
}

type deliveryOp uint8

const (
	deliverEnvelope deliveryOp = iota
	deliverDiscard
	deliverStop
)

type delivery[O comparable] struct {
	op   deliveryOp
	env  envelope[O]
	next uint64 // first sequence of the new generation (discard)
	drop bool   // depth was non-zero when discarded (discard)
}

// resultHandlers are the caller-facing sinks of a result channel.
type resultHandlers[O comparable] struct {
	output    func(O)
	error     func(error)
	dequeue   func()
	flushDone func(seq uint64, err error)
}

// resultChannel restores submission order per instance and invokes the
// caller's callbacks from a single delivery goroutine. Workers post to it
// without blocking.
type resultChannel[O comparable] struct {
	kind     Kind
	handlers resultHandlers[O]
	metrics  *Metrics
	inbox    *mailbox[delivery[O]]
	done     chan struct{}

	mu    sync.Mutex // guards depth and gen transitions
	depth int64
	gen   atomic.Uint64

	// Owned by the delivery goroutine.
	next    uint64
	pending map[uint64][]envelope[O]
	ready   []envelope[O]
}

func newResultChannel[O comparable](kind Kind, firstSeq uint64, h resultHandlers[O], m *Metrics) *resultChannel[O] {
	r := &resultChannel[O]{
		kind:     kind,
		handlers: h,
		metrics:  m,
		inbox:    newMailbox[delivery[O]](),
		done:     make(chan struct{}),
		next:     firstSeq,
		pending:  make(map[uint64][]envelope[O]),
	}
	go r.loop()
	return r
}

// generation returns the current result generation.
func (r *resultChannel[O]) generation() uint64 { return r.gen.Load() }

// stale reports whether results of gen have been discarded.
func (r *resultChannel[O]) stale(gen uint64) bool { return r.gen.Load() != gen }

// accept counts one more outstanding request.
func (r *resultChannel[O]) accept() {
	r.mu.Lock()
	r.depth++
	r.mu.Unlock()
}

// queueDepth returns accepted requests without a delivered terminal result.
func (r *resultChannel[O]) queueDepth() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return int(r.depth)
}

// post hands an envelope to the delivery goroutine. It never blocks.
func (r *resultChannel[O]) post(env envelope[O]) {
	if r.stale(env.gen) {
		return
	}
	r.inbox.push(delivery[O]{op: deliverEnvelope, env: env})
}

// discard starts a new generation. Everything buffered or still in flight for
// the old one is dropped, the depth counter goes to zero and, if it was
// non-zero, one dequeue notification is raised. next is the sequence that
// the first request of the new generation will carry.
func (r *resultChannel[O]) discard(next uint64) uint64 {
	r.mu.Lock()
	gen := r.gen.Add(1)
	prev := r.depth
	r.depth = 0
	r.mu.Unlock()

	r.metrics.dequeue(r.kind, int(prev))
	r.inbox.push(delivery[O]{op: deliverDiscard, next: next, drop: prev > 0})
	return gen
}

// stop ends the delivery goroutine after everything queued so far has been
// handled. It does not wait, so it is safe to reach from a callback.
func (r *resultChannel[O]) stop() {
	r.inbox.push(delivery[O]{op: deliverStop})
}

func (r *resultChannel[O]) loop() {
	defer close(r.done)

	for {
		batch := r.inbox.take()
		dequeue := false
		stopping := false
		for _, d := range batch {
			switch d.op {
			case deliverEnvelope:
				r.reorder(d.env)
			case deliverDiscard:
				clear(r.pending)
				clear(r.ready)
				r.ready = r.ready[:0]
				r.next = d.next
				dequeue = dequeue || d.drop
			case deliverStop:
				stopping = true
			}
		}

		if r.release() > 0 {
			dequeue = true
		}
		if dequeue && r.handlers.dequeue != nil {
			r.handlers.dequeue()
		}
		if stopping {
			return
		}
	}
}

// reorder buffers env and moves every envelope that is now in sequence onto
// the ready list.
func (r *resultChannel[O]) reorder(env envelope[O]) {
	if r.stale(env.gen) {
		return
	}
	r.pending[env.seq] = append(r.pending[env.seq], env)

	for {
		list, ok := r.pending[r.next]
		if !ok {
			return
		}
		complete := false
		for _, e := range list {
			r.ready = append(r.ready, e)
			if e.terminal {
				complete = true
				break
			}
		}
		if !complete {
			// Drained flush outputs are released early; the terminal
			// envelope follows from the same worker.
			r.pending[r.next] = list[:0]
			return
		}
		delete(r.pending, r.next)
		r.next++
	}
}

// release invokes callbacks for the ready list and returns how many terminal
// results were delivered.
func (r *resultChannel[O]) release() int {
	var zero O
	released := 0
	for i, e := range r.ready {
		r.ready[i] = envelope[O]{}

		r.mu.Lock()
		if r.gen.Load() != e.gen {
			r.mu.Unlock()
			continue
		}
		if e.terminal {
			r.depth--
			released++
		}
		r.mu.Unlock()

		switch e.kind {
		case resultOutput:
			if e.payload != zero && r.handlers.output != nil {
				r.handlers.output(e.payload)
			}
		case resultError:
			if r.handlers.error != nil {
				r.handlers.error(e.err)
			}
		case resultFlushDone:
			if r.handlers.flushDone != nil {
				r.handlers.flushDone(e.seq, e.err)
			}
		}
		r.metrics.result(r.kind, e.kind.String())
	}
	r.ready = r.ready[:0]
	r.metrics.dequeue(r.kind, released)
	return released
}
