package webcodecs

import "sync"

type messageKind uint8

const (
	messageConfigure messageKind = iota
	messageProcess
	messageFlush
	messageReset
	messageClose
)

func (k messageKind) String() string {
	switch k {
	case messageConfigure:
		return "configure"
	case messageProcess:
		return "process"
	case messageFlush:
		return "flush"
	case messageReset:
		return "reset"
	case messageClose:
		return "close"
	default:
		return "unknown"
	}
}

// message is one entry of an instance's control queue.
type message[C any, I any, O comparable] struct {
	kind   messageKind
	config C
	engine Engine[C, I, O] // Configure only
	input  I
	seq    uint64
	gen    uint64
	reply  chan error // Configure, Reset and Close only
}

// mailbox is an unbounded FIFO with a single consumer. Producers never block,
// which keeps callbacks free to call back into the instance.
type mailbox[T any] struct {
	notify chan struct{}

	mu    sync.Mutex
	items []T
}

func newMailbox[T any]() *mailbox[T] {
	return &mailbox[T]{notify: make(chan struct{}, 1)}
}

func (m *mailbox[T]) push(item T) {
	m.mu.Lock()
	m.items = append(m.items, item)
	m.mu.Unlock()

	select {
	case m.notify <- struct{}{}:
	default:
	}
}

// take blocks until at least one item is queued and returns all of them in
// submission order.
func (m *mailbox[T]) take() []T {
	for {
		m.mu.Lock()
		if len(m.items) > 0 {
			items := m.items
			m.items = nil
			m.mu.Unlock()
			return items
		}
		m.mu.Unlock()
		<-m.notify
	}
}

// taskSequence feeds one instance's Process and Flush tasks to the shared
// dispatcher strictly one at a time, in posting order. Posting never blocks;
// drain blocks until every posted task has returned.
type taskSequence struct {
	dispatcher *Dispatcher

	mu      sync.Mutex
	idle    *sync.Cond
	pending []func()
	running bool
}

func newTaskSequence(d *Dispatcher) *taskSequence {
	s := &taskSequence{dispatcher: d}
	s.idle = sync.NewCond(&s.mu)
	return s
}

func (s *taskSequence) post(task func()) {
	s.mu.Lock()
	s.pending = append(s.pending, task)
	if s.running {
		s.mu.Unlock()
		return
	}
	s.running = true
	s.mu.Unlock()

	s.dispatcher.dispatch(s.runNext)
}

// runNext executes the head task, then hands the sequence back to the
// dispatcher if more work is queued so other instances get a turn.
func (s *taskSequence) runNext() {
	s.mu.Lock()
	task := s.pending[0]
	s.pending[0] = nil
	s.pending = s.pending[1:]
	s.mu.Unlock()

	task()

	s.mu.Lock()
	if len(s.pending) == 0 {
		s.running = false
		s.idle.Broadcast()
		s.mu.Unlock()
		return
	}
	s.mu.Unlock()

	s.dispatcher.dispatch(s.runNext)
}

// drain waits until no task is queued or executing.
func (s *taskSequence) drain() {
	s.mu.Lock()
	for s.running {
		s.idle.Wait()
	}
	s.mu.Unlock()
}
