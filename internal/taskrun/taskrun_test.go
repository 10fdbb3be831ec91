package taskrun

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestPoolRunsEnqueuedTasks(t *testing.T) {
	p := NewPool(2, 8)
	defer p.Shutdown()

	var n int64
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		p.Enqueue(context.Background(), TaskFunc(func(ctx context.Context) {
			atomic.AddInt64(&n, 1)
			wg.Done()
		}))
	}
	wg.Wait()
	if atomic.LoadInt64(&n) != 20 {
		t.Fatalf("n = %d, want 20", n)
	}
}

func TestPoolRecoversPanickingTask(t *testing.T) {
	p := NewPool(1, 4)
	defer p.Shutdown()

	var caught atomic.Bool
	p.OnPanic(func(any) { caught.Store(true) })

	done := make(chan struct{})
	p.Enqueue(context.Background(), TaskFunc(func(ctx context.Context) {
		defer close(done)
		panic("boom")
	}))
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("task never ran")
	}

	// enqueue a second task to confirm the worker survived the panic.
	ran := make(chan struct{})
	p.Enqueue(context.Background(), TaskFunc(func(ctx context.Context) {
		close(ran)
	}))
	select {
	case <-ran:
	case <-time.After(time.Second):
		t.Fatal("worker did not survive the panic")
	}
	if !caught.Load() {
		t.Fatal("expected OnPanic hook to fire")
	}
}

func TestEnqueueAfterShutdownFails(t *testing.T) {
	p := NewPool(1, 1)
	p.Shutdown()
	if err := p.Enqueue(context.Background(), TaskFunc(func(context.Context) {})); err == nil {
		t.Fatal("expected an error enqueueing to a shut-down pool")
	}
}

func TestRefCountedFiresOnZeroOnce(t *testing.T) {
	var fired int64
	r := NewRefCounted(func() { atomic.AddInt64(&fired, 1) })
	r.Acquire()
	r.Acquire()
	r.Release()
	if atomic.LoadInt64(&fired) != 0 {
		t.Fatal("onZero fired before count reached zero")
	}
	r.Release()
	if atomic.LoadInt64(&fired) != 1 {
		t.Fatalf("fired = %d, want 1", fired)
	}
}

func TestCancelContextScopesAreIndependent(t *testing.T) {
	c := NewCancelContext(context.Background())
	c.Cancel(ScopeHistogram)

	select {
	case <-c.Context(ScopeHistogram).Done():
	default:
		t.Fatal("expected histogram scope to be cancelled")
	}
	select {
	case <-c.Context(ScopeBase).Done():
		t.Fatal("base scope should be unaffected by cancelling histogram scope")
	default:
	}
}

func TestPoolStatsTracksCompletionAndLatency(t *testing.T) {
	p := NewPool(2, 8)
	defer p.Shutdown()

	if s := p.Stats(); s.NumWorkers != 2 || s.QueueCapacity != 8 {
		t.Fatalf("unexpected initial stats: %+v", s)
	}

	var wg sync.WaitGroup
	wg.Add(5)
	for i := 0; i < 5; i++ {
		p.Enqueue(context.Background(), TaskFunc(func(ctx context.Context) {
			time.Sleep(time.Millisecond)
			wg.Done()
		}))
	}
	wg.Wait()

	deadline := time.Now().Add(time.Second)
	var s Stats
	for time.Now().Before(deadline) {
		s = p.Stats()
		if s.TasksCompleted == 5 {
			break
		}
		time.Sleep(5 * time.Millisecond)
	}
	if s.TasksCompleted != 5 {
		t.Fatalf("TasksCompleted = %d, want 5", s.TasksCompleted)
	}
	if s.MeanTaskLatency <= 0 {
		t.Fatalf("expected a positive mean task latency, got %v", s.MeanTaskLatency)
	}
	if s.ActiveWorkers != 0 {
		t.Fatalf("expected 0 active workers once drained, got %d", s.ActiveWorkers)
	}
}

func TestPoolStatsCountsPanics(t *testing.T) {
	p := NewPool(1, 4)
	defer p.Shutdown()
	p.OnPanic(func(any) {})

	done := make(chan struct{})
	p.Enqueue(context.Background(), TaskFunc(func(ctx context.Context) {
		defer close(done)
		panic("boom")
	}))
	<-done

	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) && p.Stats().TasksPanicked == 0 {
		time.Sleep(5 * time.Millisecond)
	}
	if p.Stats().TasksPanicked != 1 {
		t.Fatalf("TasksPanicked = %d, want 1", p.Stats().TasksPanicked)
	}
}

func TestCancelContextRearmClearsCancellation(t *testing.T) {
	c := NewCancelContext(context.Background())
	c.Cancel(ScopeAnimation)
	c.Rearm(context.Background(), ScopeAnimation)
	select {
	case <-c.Context(ScopeAnimation).Done():
		t.Fatal("expected a rearmed scope to be live again")
	default:
	}
}
