package webcodecs

import (
	"errors"
	"sync/atomic"

	"go.uber.org/zap"
)

// noCopy lets go vet's copylocks check flag copies of owning handles.
type noCopy struct{}

func (*noCopy) Lock()   {}
func (*noCopy) Unlock() {}

// resourceOwner owns the single engine session of a configured instance,
// together with everything the engine allocated for it.
//
// It is constructed and destroyed only on the instance's control loop. Tasks
// on the dispatcher borrow it between those two points; the control loop
// never destroys it until the instance's task sequence has drained, so no
// task can be inside the session when destroy runs.
type resourceOwner[C codecConfig, I any, O comparable] struct {
	_ noCopy

	engine  string
	config  C
	session Session[I, O]
	sizeFor func(C, I) int
	log     *zap.Logger

	// busy asserts the single-writer rule; it is never contended when the
	// control loop discipline holds.
	busy atomic.Bool
}

func openResourceOwner[C codecConfig, I any, O comparable](
	engine Engine[C, I, O],
	config C,
	sizeFor func(C, I) int,
	log *zap.Logger,
) (*resourceOwner[C, I, O], error) {
	session, err := engine.Open(config)
	if err != nil {
		return nil, &ConfigError{Field: "engine", Err: engineError(engine.Name(), "open", err)}
	}
	if session == nil {
		return nil, &ConfigError{Field: "engine", Err: &EngineError{Engine: engine.Name(), Op: "open", Message: "no session returned"}}
	}
	return &resourceOwner[C, I, O]{
		engine:  engine.Name(),
		config:  config,
		session: session,
		sizeFor: sizeFor,
		log:     log.With(zap.String("engine", engine.Name())),
	}, nil
}

func (o *resourceOwner[C, I, O]) enter() {
	if !o.busy.CompareAndSwap(false, true) {
		panic("webcodecs: concurrent access to engine session")
	}
}

func (o *resourceOwner[C, I, O]) leave() { o.busy.Store(false) }

// scratchSize returns the scratch buffer length a task needs for input.
func (o *resourceOwner[C, I, O]) scratchSize(input I) int {
	return o.sizeFor(o.config, input)
}

func (o *resourceOwner[C, I, O]) submit(input I, scratch []byte) (O, error) {
	o.enter()
	defer o.leave()

	out, err := o.session.Submit(input, scratch)
	if err != nil && !errors.Is(err, ErrWouldBlock) {
		return out, engineError(o.engine, "submit", err)
	}
	return out, err
}

// drain returns the next buffered output; io.EOF is passed through unwrapped.
func (o *resourceOwner[C, I, O]) drain(scratch []byte) (O, error) {
	o.enter()
	defer o.leave()
	return o.session.Drain(scratch)
}

// destroy closes the session. Engine close failures are logged because no
// caller is waiting on them. Calling destroy again is a no-op.
func (o *resourceOwner[C, I, O]) destroy() {
	if o == nil || o.session == nil {
		return
	}
	o.enter()
	session := o.session
	o.session = nil
	o.leave()

	if err := session.Close(); err != nil {
		o.log.Warn("engine session close failed", zap.Error(err))
		LogEngine(LogLevelWarn, o.engine, "close: "+err.Error())
	}
}
