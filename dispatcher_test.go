package webcodecs

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestDispatcher_BoundsConcurrency(t *testing.T) {
	d := NewDispatcher(DispatcherConfig{Workers: 3})

	var (
		wg      sync.WaitGroup
		running atomic.Int32
		peak    atomic.Int32
	)
	for i := 0; i < 50; i++ {
		wg.Add(1)
		d.dispatch(func() {
			defer wg.Done()
			n := running.Add(1)
			for {
				p := peak.Load()
				if n <= p || peak.CompareAndSwap(p, n) {
					break
				}
			}
			time.Sleep(time.Millisecond)
			running.Add(-1)
		})
	}
	wg.Wait()
	d.Close()

	if p := peak.Load(); p > 3 {
		t.Errorf("peak concurrency = %d, want <= 3", p)
	}
	stats := d.Stats()
	if stats.Peak > 3 || stats.Submitted != 50 || stats.Running != 0 {
		t.Errorf("stats = %+v", stats)
	}
}

func TestDispatcher_InlineAfterClose(t *testing.T) {
	d := NewDispatcher(DispatcherConfig{Workers: 1})
	if err := d.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	ran := false
	d.dispatch(func() { ran = true })
	if !ran {
		t.Error("dispatch after Close should run the task before returning")
	}
}

func TestDispatcher_Defaults(t *testing.T) {
	if DefaultDispatcher() != DefaultDispatcher() {
		t.Error("DefaultDispatcher should return a single instance")
	}
	if w := NewDispatcher(DispatcherConfig{}).Stats().Workers; w <= 0 {
		t.Errorf("default workers = %d, want > 0", w)
	}
}
