package webcodecs

import (
	"fmt"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Init wires a codec instance to its callbacks and shared infrastructure.
// Callbacks run on the instance's delivery goroutine, one at a time, in
// submission order. They may call back into the instance.
type Init[O comparable] struct {
	Output  func(O)     // Called once per produced output
	Error   func(error) // Called for engine failures of a single request
	Dequeue func()      // Called when QueueDepth decreases

	Dispatcher *Dispatcher // nil uses DefaultDispatcher
	Pool       *BufferPool // nil uses DefaultBufferPool
	Logger     *zap.Logger // nil disables logging
	Metrics    *Metrics    // nil disables metrics
}

// codec is the execution core shared by every instance kind.
type codec[C codecConfig, I any, O comparable] struct {
	id       string
	kind     Kind
	registry *engineRegistry[C, I, O]
	sizeFor  func(C, I) int

	dispatcher *Dispatcher
	pool       *BufferPool
	metrics    *Metrics
	log        *zap.Logger

	// mu serializes submissions: state transitions, sequence stamping and
	// pushes onto the control queue happen under it, so queue order is
	// submission order.
	mu      sync.Mutex
	state   stateMachine
	nextSeq uint64
	flushes map[uint64]*pendingFlush

	control *mailbox[message[C, I, O]]
	tasks   *taskSequence
	results *resultChannel[O]
	done    chan struct{}

	// owner is touched only by the control loop.
	owner *resourceOwner[C, I, O]
}

func newCodec[C codecConfig, I any, O comparable](
	kind Kind,
	registry *engineRegistry[C, I, O],
	sizeFor func(C, I) int,
	init Init[O],
) *codec[C, I, O] {
	if init.Dispatcher == nil {
		init.Dispatcher = DefaultDispatcher()
	}
	if init.Pool == nil {
		init.Pool = DefaultBufferPool()
	}
	if init.Logger == nil {
		init.Logger = zap.NewNop()
	}

	c := &codec[C, I, O]{
		id:         uuid.NewString(),
		kind:       kind,
		registry:   registry,
		sizeFor:    sizeFor,
		dispatcher: init.Dispatcher,
		pool:       init.Pool,
		metrics:    init.Metrics,
		nextSeq:    1,
		flushes:    make(map[uint64]*pendingFlush),
		control:    newMailbox[message[C, I, O]](),
		tasks:      newTaskSequence(init.Dispatcher),
		done:       make(chan struct{}),
	}
	c.log = init.Logger.With(zap.String("instance", c.id), zap.Stringer("kind", kind))
	c.results = newResultChannel[O](kind, c.nextSeq, resultHandlers[O]{
		output:    init.Output,
		error:     init.Error,
		dequeue:   init.Dequeue,
		flushDone: c.flushDone,
	}, init.Metrics)

	go c.loop()
	return c
}

// ID returns the instance's unique identifier.
func (c *codec[C, I, O]) ID() string { return c.id }

// State returns the current lifecycle state.
func (c *codec[C, I, O]) State() State { return c.state.get() }

// QueueDepth returns the number of accepted requests whose result has not
// been delivered yet.
func (c *codec[C, I, O]) QueueDepth() int { return c.results.queueDepth() }

// Configure validates config, waits for earlier work to finish and opens a
// new engine session, replacing any previous one. Results of earlier work
// are still delivered.
func (c *codec[C, I, O]) Configure(config C) error {
	if s := c.state.get(); s == StateClosed {
		return &StateError{Op: "configure", State: s}
	}
	if err := config.Validate(); err != nil {
		return err
	}
	engine, err := c.registry.resolve(config)
	if err != nil {
		return err
	}

	c.mu.Lock()
	if s := c.state.get(); s == StateClosed {
		c.mu.Unlock()
		return &StateError{Op: "configure", State: s}
	}
	reply := make(chan error, 1)
	c.control.push(message[C, I, O]{
		kind:   messageConfigure,
		config: config,
		engine: engine,
		gen:    c.results.generation(),
		reply:  reply,
	})
	c.mu.Unlock()

	return <-reply
}

// process accepts one input and returns its sequence number.
func (c *codec[C, I, O]) process(op string, input I) (uint64, error) {
	c.mu.Lock()
	if err := c.state.require(op); err != nil {
		c.mu.Unlock()
		return 0, err
	}
	seq := c.nextSeq
	c.nextSeq++
	c.results.accept()
	c.control.push(message[C, I, O]{
		kind:  messageProcess,
		input: input,
		seq:   seq,
		gen:   c.results.generation(),
	})
	c.mu.Unlock()

	c.metrics.submit(c.kind, op)
	return seq, nil
}

// Flush returns a future that completes after every earlier request has
// delivered its result and the engine has emitted everything it buffered.
func (c *codec[C, I, O]) Flush() (*FlushFuture, error) {
	c.mu.Lock()
	if err := c.state.require("flush"); err != nil {
		c.mu.Unlock()
		return nil, err
	}
	seq := c.nextSeq
	c.nextSeq++
	future := newFlushFuture()
	c.flushes[seq] = &pendingFlush{future: future}
	c.results.accept()
	c.control.push(message[C, I, O]{
		kind: messageFlush,
		seq:  seq,
		gen:  c.results.generation(),
	})
	c.mu.Unlock()

	c.metrics.submit(c.kind, "flush")
	return future, nil
}

// Reset drops every outstanding request without delivering its result,
// waits for the engine call in progress, if any, and returns the instance
// to Unconfigured. It is a no-op unless the instance is Configured.
//
// Called from another goroutine, Reset does not wait for the callback that
// is running at that moment: that callback, and at most one result whose
// delivery had already begun, may still run after Reset returns. Called from
// a callback, nothing further is delivered once Reset returns.
func (c *codec[C, I, O]) Reset() {
	c.mu.Lock()
	if !c.state.reset() {
		c.mu.Unlock()
		return
	}
	flushes := c.discardLocked()
	reply := make(chan error, 1)
	c.control.push(message[C, I, O]{kind: messageReset, reply: reply})
	c.mu.Unlock()

	abortFlushes(flushes)
	<-reply
}

// Close releases the engine session and ends the instance. Outstanding
// requests are dropped as with Reset. Close is idempotent and always
// returns nil.
func (c *codec[C, I, O]) Close() error {
	c.mu.Lock()
	if !c.state.close() {
		c.mu.Unlock()
		return nil
	}
	flushes := c.discardLocked()
	reply := make(chan error, 1)
	c.control.push(message[C, I, O]{kind: messageClose, reply: reply})
	c.mu.Unlock()

	abortFlushes(flushes)
	<-reply
	<-c.done
	return nil
}

// discardLocked starts a new result generation and detaches every pending
// flush. Called with c.mu held.
func (c *codec[C, I, O]) discardLocked() []*pendingFlush {
	c.results.discard(c.nextSeq)

	flushes := make([]*pendingFlush, 0, len(c.flushes))
	for seq, p := range c.flushes {
		flushes = append(flushes, p)
		delete(c.flushes, seq)
	}
	return flushes
}

func abortFlushes(flushes []*pendingFlush) {
	for _, p := range flushes {
		p.future.resolve(ErrAborted)
	}
}

// flushDone runs on the delivery goroutine when a FlushDone is released.
func (c *codec[C, I, O]) flushDone(seq uint64, err error) {
	c.mu.Lock()
	p := c.flushes[seq]
	delete(c.flushes, seq)
	c.mu.Unlock()

	if p == nil {
		return
	}
	c.log.Debug("flush done", zap.Uint64("seq", seq), zap.Error(err))
	p.future.resolve(err)
}

// loop is the control queue consumer. It is the only goroutine that creates
// or destroys the resource owner.
func (c *codec[C, I, O]) loop() {
	defer close(c.done)

	for {
		for _, m := range c.control.take() {
			if !c.handle(m) {
				return
			}
		}
	}
}

func (c *codec[C, I, O]) handle(m message[C, I, O]) bool {
	switch m.kind {
	case messageConfigure:
		m.reply <- c.configure(m)

	case messageProcess, messageFlush:
		c.dispatch(m)

	case messageReset:
		c.teardown()
		c.log.Debug("reset")
		m.reply <- nil

	case messageClose:
		c.teardown()
		c.results.stop()
		c.log.Debug("closed")
		m.reply <- nil
		return false
	}
	return true
}

// teardown waits for the task sequence to drain and destroys the owner.
func (c *codec[C, I, O]) teardown() {
	c.tasks.drain()
	c.owner.destroy()
	c.owner = nil
}

func (c *codec[C, I, O]) configure(m message[C, I, O]) error {
	reconfigure := c.owner != nil
	c.teardown()

	owner, err := openResourceOwner(m.engine, m.config, c.sizeFor, c.log)
	if err != nil {
		c.mu.Lock()
		if c.state.get() == StateConfigured {
			c.state.set(StateUnconfigured)
		}
		c.mu.Unlock()
		c.log.Debug("configure failed", zap.Error(err))
		return err
	}

	c.mu.Lock()
	if c.results.stale(m.gen) {
		// A Reset or Close was accepted while the session was opening.
		c.mu.Unlock()
		owner.destroy()
		return fmt.Errorf("configure: %w", ErrAborted)
	}
	if _, err := c.state.configure(); err != nil {
		c.mu.Unlock()
		owner.destroy()
		return err
	}
	c.owner = owner
	c.mu.Unlock()

	c.log.Debug("configured",
		zap.String("engine", m.engine.Name()),
		zap.Bool("reconfigure", reconfigure),
	)
	return nil
}

// dispatch hands a Process or Flush to the task sequence.
func (c *codec[C, I, O]) dispatch(m message[C, I, O]) {
	if c.results.stale(m.gen) {
		return
	}

	if c.owner == nil {
		// Accepted behind a Configure that failed to open a session.
		err := fmt.Errorf("%s: %w: no engine session", m.kind, ErrAborted)
		kind := resultError
		if m.kind == messageFlush {
			kind = resultFlushDone
		}
		c.results.post(envelope[O]{seq: m.seq, gen: m.gen, kind: kind, err: err, terminal: true})
		return
	}

	j := &job[C, I, O]{
		kind:    c.kind,
		op:      m.kind,
		seq:     m.seq,
		gen:     m.gen,
		input:   m.input,
		owner:   c.owner,
		pool:    c.pool,
		results: c.results,
		metrics: c.metrics,
	}
	c.tasks.post(j.run)
}
