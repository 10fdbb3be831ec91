package main

import (
	"context"
	"testing"
	"time"

	"github.com/CARTAvis/carta-backend-sub003/internal/sessionmanager"
	"github.com/CARTAvis/carta-backend-sub003/internal/taskrun"
	"github.com/CARTAvis/carta-backend-sub003/internal/testutil"
)

func TestMemoryOpenerReturnsAnOpenableLoader(t *testing.T) {
	opener := memoryOpener()
	l, err := opener(context.Background(), "test/file", "0")
	testutil.AssertNoError(t, err)
	if l == nil {
		t.Fatal("expected a non-nil loader")
	}
	shape, _, _, err := l.FindCoordinateAxes()
	testutil.AssertNoError(t, err)
	if len(shape) == 0 {
		t.Fatal("expected a non-empty image shape")
	}
}

func TestWatchExitWhenEmptyDoesNothingWithZeroTimeout(t *testing.T) {
	pool := taskrun.NewPool(1, 4)
	defer pool.Shutdown()
	m := sessionmanager.NewManager(memoryOpener(), pool, time.Second)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	done := make(chan struct{})
	go func() {
		watchExitWhenEmpty(ctx, m, 0, func() {})
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("watchExitWhenEmpty should return promptly when timeout <= 0")
	}
}

func TestWatchExitWhenEmptyDoesNotFireBeforeAnySessionConnects(t *testing.T) {
	pool := taskrun.NewPool(1, 4)
	defer pool.Shutdown()
	m := sessionmanager.NewManager(memoryOpener(), pool, time.Second)

	ctx, cancel := context.WithTimeout(context.Background(), 300*time.Millisecond)
	defer cancel()

	var stopped bool
	done := make(chan struct{})
	go func() {
		watchExitWhenEmpty(ctx, m, 50*time.Millisecond, func() { stopped = true })
		close(done)
	}()

	<-done
	if stopped {
		t.Fatal("a server that never received a connection should not self-exit")
	}
}
