package webcodecs

import (
	"errors"
	"fmt"
)

// Common errors
var (
	ErrBufferTooSmall    = errors.New("buffer too small")
	ErrCodecNotSupported = errors.New("codec not supported")
	ErrEngineNotFound    = errors.New("engine not registered")
	ErrNativeUnavailable = errors.New("native codec engine not available")
	ErrBufferReleased    = errors.New("buffer already released")

	// ErrWouldBlock is returned by Session.Submit when the engine's internal
	// buffering is full. The same call must be retried; it is never surfaced.
	ErrWouldBlock = errors.New("engine would block")

	// ErrAborted resolves flushes discarded by Reset or Close.
	ErrAborted = errors.New("operation aborted")

	ErrClosed = errors.New("codec is closed")

	// ErrInvalidState matches every *StateError via errors.Is.
	ErrInvalidState = errors.New("invalid state")

	// ErrInvalidConfig matches every *ConfigError via errors.Is.
	ErrInvalidConfig = errors.New("invalid configuration")
)

// StateError reports an operation that is illegal in the instance's current
// state. It is returned before anything is queued.
type StateError struct {
	Op    string
	State State
}

func (e *StateError) Error() string {
	return fmt.Sprintf("%s: not allowed in state %s", e.Op, e.State)
}

func (e *StateError) Is(target error) bool {
	if target == ErrInvalidState {
		return true
	}
	return e.State == StateClosed && target == ErrClosed
}

// ConfigError reports a malformed configuration or an engine that could not
// open a session for it.
type ConfigError struct {
	Field  string
	Reason string
	Err    error
}

func (e *ConfigError) Error() string {
	msg := "invalid configuration"
	if e.Field != "" {
		msg += ": " + e.Field
	}
	if e.Reason != "" {
		msg += ": " + e.Reason
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *ConfigError) Unwrap() error { return e.Err }

func (e *ConfigError) Is(target error) bool { return target == ErrInvalidConfig }

func configErrorf(field, format string, args ...any) *ConfigError {
	return &ConfigError{Field: field, Reason: fmt.Sprintf(format, args...)}
}

// EngineError carries a failure reported by the external codec engine.
type EngineError struct {
	Engine  string
	Op      string // open, submit, drain or close
	Code    int
	Message string
	Err     error
}

func (e *EngineError) Error() string {
	msg := fmt.Sprintf("%s engine %s failed", e.Engine, e.Op)
	if e.Code != 0 {
		msg += fmt.Sprintf(" (code %d)", e.Code)
	}
	if e.Message != "" {
		msg += ": " + e.Message
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *EngineError) Unwrap() error { return e.Err }

// engineError wraps err as an *EngineError unless it already is one.
func engineError(engine, op string, err error) error {
	var ee *EngineError
	if errors.As(err, &ee) {
		return err
	}
	return &EngineError{Engine: engine, Op: op, Err: err}
}
