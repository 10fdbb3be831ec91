package animation

import (
	"context"
	"testing"
	"time"
)

func TestForwardAnimationObservesChannelsInOrder(t *testing.T) {
	o := NewObject(0, 0, 1, 10, 1, 200, 10, 1) // high frame rate to keep the test fast
	var observed []int
	err := o.Run(context.Background(), func(ctx context.Context, step Step) error {
		observed = append(observed, step.Channel)
		return nil
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	want := []int{1, 2, 3, 4, 5, 6, 7, 8, 9, 10}
	if len(observed) != len(want) {
		t.Fatalf("observed = %v, want %v", observed, want)
	}
	for i, v := range want {
		if observed[i] != v {
			t.Fatalf("observed[%d] = %d, want %d", i, observed[i], v)
		}
	}
}

func TestReverseAnimationObservesChannelsInOrder(t *testing.T) {
	o := NewObject(0, 10, 19, 10, -1, 200, 10, 1)
	var observed []int
	err := o.Run(context.Background(), func(ctx context.Context, step Step) error {
		observed = append(observed, step.Channel)
		return nil
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	want := []int{19, 18, 17, 16, 15, 14, 13, 12, 11, 10}
	if len(observed) != len(want) {
		t.Fatalf("observed = %v, want %v", observed, want)
	}
	for i, v := range want {
		if observed[i] != v {
			t.Fatalf("observed[%d] = %d, want %d", i, observed[i], v)
		}
	}
}

func TestStopHaltsAnimation(t *testing.T) {
	o := NewObject(0, 0, 1, 1000, 1, 1000, 10, 1)
	count := 0
	done := make(chan struct{})
	go func() {
		o.Run(context.Background(), func(ctx context.Context, step Step) error {
			count++
			if count == 3 {
				o.Stop()
			}
			return nil
		})
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not stop")
	}
	if count != 3 {
		t.Fatalf("count = %d, want 3", count)
	}
}

func TestFlowControlParksAfterWindowExhausted(t *testing.T) {
	o := NewObject(0, 0, 1, 1000, 1, 1000, 100, 1) // window size = (1000/100)*1 = 10
	var sent int
	done := make(chan struct{})
	go func() {
		o.Run(context.Background(), func(ctx context.Context, step Step) error {
			sent++
			return nil
		})
		close(done)
	}()

	time.Sleep(200 * time.Millisecond)
	o.Stop()
	<-done

	window := o.CurrentFlowWindowSize()
	if sent > window {
		t.Fatalf("sent %d frames before any flow-control ack, want <= window size %d", sent, window)
	}
}

func TestMatchedFramesFanOut(t *testing.T) {
	o := NewObject(0, 0, 0, 2, 1, 500, 10, 1)
	o.MatchedFrames = map[int32][]int{
		1: {10, 11, 12},
	}
	var lastStep Step
	err := o.Run(context.Background(), func(ctx context.Context, step Step) error {
		lastStep = step
		return nil
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(lastStep.Frames) != 1 || lastStep.Frames[0].FileID != 1 {
		t.Fatalf("expected one matched frame for file 1, got %+v", lastStep.Frames)
	}
}
