package webcodecs

import "sync/atomic"

// State is the lifecycle state of a codec instance.
type State int32

const (
	StateUnconfigured State = iota // Initial state, and the state after Reset
	StateConfigured                // A live engine session exists
	StateClosed                    // Terminal
)

func (s State) String() string {
	switch s {
	case StateUnconfigured:
		return "unconfigured"
	case StateConfigured:
		return "configured"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// stateMachine decides which operations are legal. Transitions are made by
// the owning codec while it holds its submission lock; reads are lock-free.
type stateMachine struct {
	state atomic.Int32
}

func (m *stateMachine) get() State { return State(m.state.Load()) }

func (m *stateMachine) set(s State) { m.state.Store(int32(s)) }

// configure moves to Configured from Unconfigured or Configured.
// It reports whether the instance was already configured.
func (m *stateMachine) configure() (reconfigure bool, err error) {
	switch s := m.get(); s {
	case StateUnconfigured:
		m.set(StateConfigured)
		return false, nil
	case StateConfigured:
		return true, nil
	default:
		return false, &StateError{Op: "configure", State: s}
	}
}

// reset moves Configured to Unconfigured. It reports false for the no-op case.
func (m *stateMachine) reset() bool {
	if m.get() != StateConfigured {
		return false
	}
	m.set(StateUnconfigured)
	return true
}

// close moves to Closed. It reports false if the instance was already closed.
func (m *stateMachine) close() bool {
	if m.get() == StateClosed {
		return false
	}
	m.set(StateClosed)
	return true
}

// require returns a StateError unless the instance is Configured.
func (m *stateMachine) require(op string) error {
	if s := m.get(); s != StateConfigured {
		return &StateError{Op: op, State: s}
	}
	return nil
}
