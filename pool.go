package webcodecs

import (
	"math/bits"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"
)

const (
	defaultPoolLimit    = 64
	defaultPoolMinClass = 4 << 10
	defaultPoolMaxClass = 64 << 20
)

// BufferPoolConfig configures a BufferPool.
type BufferPoolConfig struct {
	Limit    int // Maximum number of pooled buffers, resident or checked out (0 = 64)
	MinClass int // Smallest capacity class in bytes (0 = 4 KiB)
	MaxClass int // Requests above this size are never pooled (0 = 64 MiB)

	Logger  *zap.Logger
	Metrics *Metrics
}

// BufferPoolStats is a snapshot of pool accounting.
type BufferPoolStats struct {
	Total      int    // Pooled buffers in existence (resident + checked out)
	Resident   int    // Pooled buffers on a free list
	CheckedOut int    // Pooled buffers held by a task
	Hits       uint64 // Acquires served from a free list
	Allocs     uint64 // Acquires that grew the pool
	OneOff     uint64 // Acquires served by a throwaway allocation
}

// BufferPool hands out reusable scratch buffers grouped by power-of-two
// capacity class. It is safe for concurrent use and is normally shared by
// every codec instance in the process.
//
// When Limit pooled buffers exist and none of the requested class is free,
// Acquire allocates a one-off buffer instead of blocking.
type BufferPool struct {
	limit    int
	minClass int
	maxClass int
	log      *zap.Logger
	metrics  *Metrics

	mu    sync.Mutex
	free  map[int][][]byte
	total int
	out   int

	hits   atomic.Uint64
	allocs atomic.Uint64
	oneOff atomic.Uint64
}

// NewBufferPool creates a buffer pool.
func NewBufferPool(config BufferPoolConfig) *BufferPool {
	if config.Limit <= 0 {
		config.Limit = defaultPoolLimit
	}
	if config.MinClass <= 0 {
		config.MinClass = defaultPoolMinClass
	}
	if config.MaxClass <= 0 {
		config.MaxClass = defaultPoolMaxClass
	}
	if config.MaxClass < config.MinClass {
		config.MaxClass = config.MinClass
	}
	if config.Logger == nil {
		config.Logger = zap.NewNop()
	}
	return &BufferPool{
		limit:    config.Limit,
		minClass: roundClass(config.MinClass),
		maxClass: config.MaxClass,
		log:      config.Logger.Named("pool"),
		metrics:  config.Metrics,
		free:     make(map[int][][]byte),
	}
}

var (
	defaultPoolOnce sync.Once
	defaultPool     *BufferPool
)

// DefaultBufferPool returns the process-wide pool used when an instance is
// created without one.
func DefaultBufferPool() *BufferPool {
	defaultPoolOnce.Do(func() {
		defaultPool = NewBufferPool(BufferPoolConfig{})
	})
	return defaultPool
}

// Buffer is a scratch buffer checked out of a BufferPool. It has exactly one
// owner; Release transfers it back and leaves the handle empty.
type Buffer struct {
	data     []byte
	class    int
	pool     *BufferPool
	released atomic.Bool
}

// Bytes returns the buffer contents, or nil after Release.
func (b *Buffer) Bytes() []byte {
	if b == nil || b.released.Load() {
		return nil
	}
	return b.data
}

// Pooled reports whether the buffer will return to a free list on release.
func (b *Buffer) Pooled() bool { return b.class != 0 }

// Release returns the buffer to its pool.
func (b *Buffer) Release() error {
	if b == nil {
		return nil
	}
	return b.pool.Release(b)
}

func roundClass(n int) int {
	if n <= 1 {
		return 1
	}
	return 1 << bits.Len(uint(n-1))
}

func (p *BufferPool) classFor(n int) int {
	c := roundClass(n)
	if c < p.minClass {
		c = p.minClass
	}
	return c
}

// Acquire returns a buffer of length n. It never blocks.
func (p *BufferPool) Acquire(n int) *Buffer {
	if n < 0 {
		n = 0
	}
	if n > p.maxClass {
		return p.oneOffBuffer(n, "oversized")
	}
	class := p.classFor(n)

	p.mu.Lock()
	if stack := p.free[class]; len(stack) > 0 {
		data := stack[len(stack)-1]
		p.free[class] = stack[:len(stack)-1]
		p.out++
		out := p.out
		p.mu.Unlock()

		p.hits.Add(1)
		p.metrics.poolCheckedOut(out)
		return &Buffer{data: data[:n], class: class, pool: p}
	}
	if p.total >= p.limit {
		p.mu.Unlock()
		return p.oneOffBuffer(n, "exhausted")
	}
	p.total++
	p.out++
	out := p.out
	p.mu.Unlock()

	p.allocs.Add(1)
	p.metrics.poolCheckedOut(out)
	return &Buffer{data: make([]byte, n, class), class: class, pool: p}
}

func (p *BufferPool) oneOffBuffer(n int, reason string) *Buffer {
	p.oneOff.Add(1)
	p.metrics.poolOneOff()
	p.log.Debug("one-off scratch allocation", zap.Int("size", n), zap.String("reason", reason))
	return &Buffer{data: make([]byte, n), pool: p}
}

// Release returns b to the free list of its class. Releasing a buffer twice
// returns ErrBufferReleased and has no other effect.
func (p *BufferPool) Release(b *Buffer) error {
	if b == nil {
		return nil
	}
	if !b.released.CompareAndSwap(false, true) {
		return ErrBufferReleased
	}
	data := b.data
	b.data = nil
	if b.class == 0 {
		return nil
	}

	p.mu.Lock()
	p.free[b.class] = append(p.free[b.class], data[:0])
	p.out--
	out := p.out
	p.mu.Unlock()

	p.metrics.poolCheckedOut(out)
	return nil
}

// Stats returns a snapshot of pool accounting.
func (p *BufferPool) Stats() BufferPoolStats {
	p.mu.Lock()
	resident := 0
	for _, stack := range p.free {
		resident += len(stack)
	}
	s := BufferPoolStats{Total: p.total, Resident: resident, CheckedOut: p.out}
	p.mu.Unlock()

	s.Hits = p.hits.Load()
	s.Allocs = p.allocs.Load()
	s.OneOff = p.oneOff.Load()
	return s
}

// Limit returns the maximum number of pooled buffers.
func (p *BufferPool) Limit() int { return p.limit }
