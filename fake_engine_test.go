package webcodecs

import (
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

// fakeEngine is an instrumented video encoder engine. Sessions assert that
// they are never entered concurrently.
type fakeEngine struct {
	name       string
	delay      time.Duration // per Submit
	buffered   int           // outputs held until Drain
	wouldBlock int           // ErrWouldBlock responses before each success
	tooSmall   int           // ErrBufferTooSmall responses before each success
	openErr    error
	closeErr   error
	fail       func(ts int64) bool

	gate    chan struct{} // when set, Submit waits for it to close
	entered chan struct{} // when set, Submit signals entry

	opened      atomic.Int32
	closed      atomic.Int32
	submits     atomic.Int64
	retries     atomic.Int64
	violations  atomic.Int32
	maxScratch  atomic.Int64
	liveSession atomic.Int32

	mu    sync.Mutex
	sizes []int // scratch length of every Submit call
}

func (e *fakeEngine) scratchSizes() []int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]int(nil), e.sizes...)
}

func (e *fakeEngine) Name() string { return e.name }

func (e *fakeEngine) Open(config VideoEncoderConfig) (Session[*VideoFrame, *EncodedVideoChunk], error) {
	if e.openErr != nil {
		return nil, e.openErr
	}
	e.opened.Add(1)
	if e.liveSession.Add(1) > 1 {
		e.violations.Add(1)
	}
	return &fakeSession{engine: e, out: delayLine[*EncodedVideoChunk]{depth: e.buffered}}, nil
}

type fakeSession struct {
	engine  *fakeEngine
	inside  atomic.Int32
	blocked int
	short   int
	out     delayLine[*EncodedVideoChunk]
}

func (s *fakeSession) enter() func() {
	if s.inside.Add(1) != 1 {
		s.engine.violations.Add(1)
	}
	return func() { s.inside.Add(-1) }
}

func (s *fakeSession) Submit(frame *VideoFrame, scratch []byte) (*EncodedVideoChunk, error) {
	defer s.enter()()
	e := s.engine

	if e.entered != nil {
		e.entered <- struct{}{}
	}
	if e.gate != nil {
		<-e.gate
	}
	if e.delay > 0 {
		time.Sleep(e.delay)
	}
	e.mu.Lock()
	e.sizes = append(e.sizes, len(scratch))
	e.mu.Unlock()
	if s.short < e.tooSmall {
		s.short++
		return nil, ErrBufferTooSmall
	}
	if s.blocked < e.wouldBlock {
		s.blocked++
		e.retries.Add(1)
		return nil, ErrWouldBlock
	}
	s.blocked = 0
	s.short = 0
	e.submits.Add(1)

	for {
		m := e.maxScratch.Load()
		if int64(len(scratch)) <= m || e.maxScratch.CompareAndSwap(m, int64(len(scratch))) {
			break
		}
	}
	if e.fail != nil && e.fail(frame.Timestamp) {
		return nil, errors.New("fake encode failure")
	}
	chunk := &EncodedVideoChunk{Type: ChunkTypeKey, Data: []byte{byte(frame.Timestamp)}, Timestamp: frame.Timestamp}
	return s.out.push(chunk), nil
}

func (s *fakeSession) Drain([]byte) (*EncodedVideoChunk, error) {
	defer s.enter()()
	return s.out.drain()
}

func (s *fakeSession) Close() error {
	defer s.enter()()
	s.engine.closed.Add(1)
	s.engine.liveSession.Add(-1)
	return s.engine.closeErr
}

// register makes e available for VP8 for the duration of the test.
func (e *fakeEngine) register(t *testing.T) {
	t.Helper()
	if e.name == "" {
		e.name = "fake-" + t.Name()
	}
	videoEncoderEngines.register(VideoCodecVP8.String(), e)
	t.Cleanup(func() { videoEncoderEngines.unregister(VideoCodecVP8.String(), e.name) })
}

func (e *fakeEngine) config() VideoEncoderConfig {
	c := DefaultVideoEncoderConfig(VideoCodecVP8, 16, 16)
	c.Engine = e.name
	return c
}

// collector records callbacks of one instance.
type collector struct {
	mu       sync.Mutex
	outputs  []int64
	errs     []error
	dequeues int

	onOutput func(*EncodedVideoChunk)
}

func (c *collector) init(d *Dispatcher, p *BufferPool) Init[*EncodedVideoChunk] {
	return Init[*EncodedVideoChunk]{
		Output: func(chunk *EncodedVideoChunk) {
			c.mu.Lock()
			c.outputs = append(c.outputs, chunk.Timestamp)
			hook := c.onOutput
			c.mu.Unlock()
			if hook != nil {
				hook(chunk)
			}
		},
		Error: func(err error) {
			c.mu.Lock()
			c.errs = append(c.errs, err)
			c.mu.Unlock()
		},
		Dequeue: func() {
			c.mu.Lock()
			c.dequeues++
			c.mu.Unlock()
		},
		Dispatcher: d,
		Pool:       p,
	}
}

func (c *collector) got() []int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]int64(nil), c.outputs...)
}

func (c *collector) errorsSeen() []error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]error(nil), c.errs...)
}

func (c *collector) dequeueCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.dequeues
}

// newTestEncoder creates a configured encoder on its own dispatcher and pool.
func newTestEncoder(t *testing.T, e *fakeEngine) (*VideoEncoder, *collector) {
	t.Helper()
	e.register(t)

	d := NewDispatcher(DispatcherConfig{Workers: 4})
	p := NewBufferPool(BufferPoolConfig{Limit: 8})
	c := &collector{}
	enc := NewVideoEncoder(c.init(d, p))
	t.Cleanup(func() {
		enc.Close()
		d.Close()
	})

	if err := enc.Configure(e.config()); err != nil {
		t.Fatalf("Configure() error = %v", err)
	}
	return enc, c
}

func mustEncode(t *testing.T, enc *VideoEncoder, ts int64) uint64 {
	t.Helper()
	seq, err := enc.Encode(testFrame(16, 16, ts))
	if err != nil {
		t.Fatalf("Encode(%d) error = %v", ts, err)
	}
	return seq
}

func waitFlush(t *testing.T, f *FlushFuture) error {
	t.Helper()
	select {
	case <-f.Done():
		return f.Err()
	case <-time.After(5 * time.Second):
		t.Fatal("flush did not complete")
		return nil
	}
}
