package webcodecs

import (
	"errors"
	"sync"
	"testing"
	"time"
)

type recorder struct {
	mu       sync.Mutex
	outputs  []int
	errs     []error
	flushes  []uint64
	dequeues int
}

func (r *recorder) handlers() resultHandlers[*int] {
	return resultHandlers[*int]{
		output: func(v *int) {
			r.mu.Lock()
			r.outputs = append(r.outputs, *v)
			r.mu.Unlock()
		},
		error: func(err error) {
			r.mu.Lock()
			r.errs = append(r.errs, err)
			r.mu.Unlock()
		},
		dequeue: func() {
			r.mu.Lock()
			r.dequeues++
			r.mu.Unlock()
		},
		flushDone: func(seq uint64, err error) {
			r.mu.Lock()
			r.flushes = append(r.flushes, seq)
			r.mu.Unlock()
		},
	}
}

func (r *recorder) snapshot() ([]int, int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]int(nil), r.outputs...), r.dequeues
}

func eventually(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(time.Millisecond)
	}
}

func intp(v int) *int { return &v }

func TestResultChannel_ReordersBySequence(t *testing.T) {
	var rec recorder
	r := newResultChannel[*int](KindVideoEncoder, 1, rec.handlers(), nil)
	defer r.stop()

	for range 5 {
		r.accept()
	}
	gen := r.generation()
	for _, seq := range []uint64{3, 5, 1, 4, 2} {
		r.post(envelope[*int]{seq: seq, gen: gen, kind: resultOutput, payload: intp(int(seq)), terminal: true})
	}

	eventually(t, "five outputs", func() bool {
		out, _ := rec.snapshot()
		return len(out) == 5
	})
	out, _ := rec.snapshot()
	for i, v := range out {
		if v != i+1 {
			t.Fatalf("outputs = %v, want 1..5 in order", out)
		}
	}
	if d := r.queueDepth(); d != 0 {
		t.Errorf("queueDepth() = %d, want 0", d)
	}
}

func TestResultChannel_FlushOutputsPrecedeLaterSequences(t *testing.T) {
	var rec recorder
	r := newResultChannel[*int](KindAudioDecoder, 1, rec.handlers(), nil)
	defer r.stop()

	r.accept()
	r.accept()
	gen := r.generation()
	// seq 2 finishes first; seq 1 is a flush releasing two drained outputs.
	r.post(envelope[*int]{seq: 2, gen: gen, kind: resultOutput, payload: intp(30), terminal: true})
	r.post(envelope[*int]{seq: 1, gen: gen, kind: resultOutput, payload: intp(10)})
	r.post(envelope[*int]{seq: 1, gen: gen, kind: resultOutput, payload: intp(20)})
	r.post(envelope[*int]{seq: 1, gen: gen, kind: resultFlushDone, terminal: true})

	eventually(t, "three outputs", func() bool {
		out, _ := rec.snapshot()
		return len(out) == 3
	})
	out, _ := rec.snapshot()
	if out[0] != 10 || out[1] != 20 || out[2] != 30 {
		t.Errorf("outputs = %v, want [10 20 30]", out)
	}
	rec.mu.Lock()
	defer rec.mu.Unlock()
	if len(rec.flushes) != 1 || rec.flushes[0] != 1 {
		t.Errorf("flushes = %v, want [1]", rec.flushes)
	}
}

func TestResultChannel_ZeroOutputIsTerminal(t *testing.T) {
	var rec recorder
	r := newResultChannel[*int](KindVideoEncoder, 1, rec.handlers(), nil)
	defer r.stop()

	r.accept()
	r.accept()
	gen := r.generation()
	r.post(envelope[*int]{seq: 1, gen: gen, kind: resultOutput, terminal: true})
	r.post(envelope[*int]{seq: 2, gen: gen, kind: resultError, err: errors.New("boom"), terminal: true})

	eventually(t, "depth zero", func() bool { return r.queueDepth() == 0 })
	out, _ := rec.snapshot()
	if len(out) != 0 {
		t.Errorf("outputs = %v, want none for a buffered input", out)
	}
	rec.mu.Lock()
	defer rec.mu.Unlock()
	if len(rec.errs) != 1 {
		t.Errorf("errors = %v, want one", rec.errs)
	}
}

func TestResultChannel_DiscardDropsOldGeneration(t *testing.T) {
	var rec recorder
	r := newResultChannel[*int](KindVideoEncoder, 1, rec.handlers(), nil)
	defer r.stop()

	r.accept()
	r.accept()
	old := r.generation()
	// seq 2 is buffered waiting for seq 1 when the discard happens.
	r.post(envelope[*int]{seq: 2, gen: old, kind: resultOutput, payload: intp(2), terminal: true})
	r.discard(3)
	if d := r.queueDepth(); d != 0 {
		t.Fatalf("queueDepth() after discard = %d, want 0", d)
	}
	r.post(envelope[*int]{seq: 1, gen: old, kind: resultOutput, payload: intp(1), terminal: true})

	r.accept()
	r.post(envelope[*int]{seq: 3, gen: r.generation(), kind: resultOutput, payload: intp(3), terminal: true})

	eventually(t, "new generation output", func() bool {
		out, _ := rec.snapshot()
		return len(out) == 1
	})
	out, dequeues := rec.snapshot()
	if out[0] != 3 {
		t.Errorf("outputs = %v, want only [3]", out)
	}
	// The discard and seq 3 may land in one delivery batch.
	if dequeues < 1 || dequeues > 2 {
		t.Errorf("dequeues = %d, want 1 or 2", dequeues)
	}
	if !r.stale(old) {
		t.Error("old generation should be stale")
	}
}

func TestResultChannel_DiscardWithoutDepthRaisesNoDequeue(t *testing.T) {
	var rec recorder
	r := newResultChannel[*int](KindVideoEncoder, 1, rec.handlers(), nil)

	r.discard(1)
	r.stop()
	<-r.done

	if _, dequeues := rec.snapshot(); dequeues != 0 {
		t.Errorf("dequeues = %d, want 0", dequeues)
	}
}

func TestResultChannel_OneDequeuePerBatch(t *testing.T) {
	var rec recorder
	h := rec.handlers()
	record := h.output
	entered := make(chan struct{})
	proceed := make(chan struct{})
	h.output = func(v *int) {
		record(v)
		if *v == 1 {
			close(entered)
			<-proceed
		}
	}
	r := newResultChannel[*int](KindVideoEncoder, 1, h, nil)

	for range 4 {
		r.accept()
	}
	gen := r.generation()
	r.post(envelope[*int]{seq: 1, gen: gen, kind: resultOutput, payload: intp(1), terminal: true})
	<-entered
	// Posted while the first callback runs, so they arrive as one batch.
	for seq := uint64(2); seq <= 4; seq++ {
		r.post(envelope[*int]{seq: seq, gen: gen, kind: resultOutput, payload: intp(int(seq)), terminal: true})
	}
	close(proceed)

	eventually(t, "depth zero", func() bool { return r.queueDepth() == 0 })
	r.stop()
	<-r.done

	out, dequeues := rec.snapshot()
	if len(out) != 4 {
		t.Errorf("outputs = %v, want 1..4", out)
	}
	if dequeues != 2 {
		t.Errorf("dequeues = %d, want 2 (one per batch)", dequeues)
	}
}

func TestResultChannel_DiscardFromCallbackStopsBatch(t *testing.T) {
	var rec recorder
	var r *resultChannel[*int]
	h := rec.handlers()
	record := h.output
	h.output = func(v *int) {
		record(v)
		if *v == 1 {
			r.discard(4)
		}
	}
	r = newResultChannel[*int](KindVideoEncoder, 1, h, nil)
	defer r.stop()

	for range 3 {
		r.accept()
	}
	gen := r.generation()
	// 3 and 2 wait for 1, then all three become ready together.
	r.post(envelope[*int]{seq: 3, gen: gen, kind: resultOutput, payload: intp(3), terminal: true})
	r.post(envelope[*int]{seq: 2, gen: gen, kind: resultOutput, payload: intp(2), terminal: true})
	r.post(envelope[*int]{seq: 1, gen: gen, kind: resultOutput, payload: intp(1), terminal: true})
	eventually(t, "discard", func() bool { return r.stale(gen) })

	r.accept()
	r.post(envelope[*int]{seq: 4, gen: r.generation(), kind: resultOutput, payload: intp(4), terminal: true})

	eventually(t, "two outputs", func() bool {
		out, _ := rec.snapshot()
		return len(out) == 2
	})
	if out, _ := rec.snapshot(); out[0] != 1 || out[1] != 4 {
		t.Errorf("outputs = %v, want [1 4]", out)
	}
	if d := r.queueDepth(); d != 0 {
		t.Errorf("queueDepth() = %d, want 0", d)
	}
}
