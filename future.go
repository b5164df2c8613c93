package webcodecs

import (
	"context"
	"sync"
)

// FlushFuture completes once every result submitted before the Flush has
// been delivered, or when a Reset or Close discards the flush.
type FlushFuture struct {
	done chan struct{}
	once sync.Once
	err  error
}

func newFlushFuture() *FlushFuture {
	return &FlushFuture{done: make(chan struct{})}
}

func (f *FlushFuture) resolve(err error) {
	f.once.Do(func() {
		f.err = err
		close(f.done)
	})
}

// Done is closed when the flush completes.
func (f *FlushFuture) Done() <-chan struct{} { return f.done }

// Err returns the flush outcome. It is nil until Done is closed.
func (f *FlushFuture) Err() error {
	select {
	case <-f.done:
		return f.err
	default:
		return nil
	}
}

// Wait blocks until the flush completes or ctx is done.
func (f *FlushFuture) Wait(ctx context.Context) error {
	select {
	case <-f.done:
		return f.err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// pendingFlush tracks one accepted Flush until its FlushDone is delivered.
type pendingFlush struct {
	future *FlushFuture
}
