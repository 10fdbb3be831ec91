// Package animation implements the channel/stokes playback schedule
// (C8): forward/reverse/loop stepping, per-file frame fan-out via
// matched_frames, and the client flow-control window that parks the
// task when the client falls behind on acknowledgements.
package animation

import (
	"context"
	"sync"
	"time"

	"github.com/CARTAvis/carta-backend-sub003/internal/timeutil"
)

// Frame is one step's channel index for a single matched file.
type Frame struct {
	FileID  int32
	Channel int
}

// Step is what the animation driver publishes once per tick.
type Step struct {
	Channel int
	Stokes  int
	Frames  []Frame
}

// Publisher is supplied by the session: it performs the actual
// SetImageChannels + raster/contour/histogram fan-out for one step.
type Publisher func(ctx context.Context, step Step) error

// Object is one session's in-flight animation, matching spec.md §3's
// animation state record.
type Object struct {
	FileID int32

	First, Start, Last, Delta int
	Current, Next             int
	StokesIndices             []int
	MatchedFrames             map[int32][]int // fileID -> per-step channel schedule, same length as the driving file's range

	FrameRate      float64
	Looping        bool
	ReverseAtEnd   bool
	GoingForward   bool
	WaitDurationMs int
	AlwaysWait     bool

	WaitsPerSecond float64
	WindowScale    float64

	// Clock drives Run's tick spacing; tests swap in a
	// timeutil.MockClock to advance playback without sleeping.
	Clock timeutil.Clock

	mu                sync.Mutex
	stopCalled        bool
	waitingFlowEvent  bool
	lastFlowFrame     int
	framesSentInFlow  int
}

// NewObject builds an animation object for a forward or reverse run,
// GoingForward derived from the sign of delta.
func NewObject(fileID int32, first, start, last, delta int, frameRate float64, waitsPerSecond, windowScale float64) *Object {
	return &Object{
		FileID: fileID, First: first, Start: start, Last: last, Delta: delta,
		Current: start, GoingForward: delta > 0,
		FrameRate: frameRate, WaitsPerSecond: waitsPerSecond, WindowScale: windowScale,
		Clock: timeutil.RealClock{},
	}
}

// CurrentFlowWindowSize is the maximum number of frames the server may
// send before a client acknowledgement, per spec.md §4.6.
func (o *Object) CurrentFlowWindowSize() int {
	if o.WaitsPerSecond <= 0 {
		return 1
	}
	size := (o.FrameRate / o.WaitsPerSecond) * o.WindowScale
	if size < 1 {
		size = 1
	}
	return int(size)
}

// Stop requests the animation end at the next tick boundary.
func (o *Object) Stop() {
	o.mu.Lock()
	o.stopCalled = true
	o.mu.Unlock()
}

func (o *Object) stopped() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.stopCalled
}

// OnFlowControl records a client AnimationFlowControl ack, sliding the
// window. Once the number of frames sent since the last ack reaches the
// window size, the task parks (waitingFlowEvent) until the next ack.
func (o *Object) OnFlowControl(ackedFrame int) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.lastFlowFrame = ackedFrame
	o.framesSentInFlow = 0
	o.waitingFlowEvent = false
}

func (o *Object) waiting() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.waitingFlowEvent
}

func (o *Object) recordSend() {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.framesSentInFlow++
	if o.framesSentInFlow >= o.CurrentFlowWindowSize() {
		o.waitingFlowEvent = true
	}
}

// next computes the following current index applying looping /
// reverse-at-end rules; ok is false once playback should stop outright
// (non-looping, non-reversing run that walked off the end).
func (o *Object) next() (value int, ok bool) {
	n := o.Current + o.Delta
	if o.Delta > 0 && n > o.Last {
		switch {
		case o.Looping:
			return o.First, true
		case o.ReverseAtEnd:
			o.Delta = -o.Delta
			return o.Current + o.Delta, true
		default:
			return o.Current, false
		}
	}
	if o.Delta < 0 && n < o.First {
		switch {
		case o.Looping:
			return o.Last, true
		case o.ReverseAtEnd:
			o.Delta = -o.Delta
			return o.Current + o.Delta, true
		default:
			return o.Current, false
		}
	}
	return n, true
}

// frameInterval is the wall-clock spacing between ticks.
func (o *Object) frameInterval() time.Duration {
	if o.FrameRate <= 0 {
		return 200 * time.Millisecond
	}
	return time.Duration(float64(time.Second) / o.FrameRate)
}

// Run drives the animation until Stop is called, the range is exhausted
// with no looping/reverse, or ctx is cancelled, publishing one Step per
// tick via publish. It mirrors spec.md §4.6's five-step tick algorithm.
func (o *Object) Run(ctx context.Context, publish Publisher) error {
	if o.Clock == nil {
		o.Clock = timeutil.RealClock{}
	}
	lastTick := o.Clock.Now()
	for {
		if o.stopped() {
			return nil
		}
		if o.waiting() {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-o.Clock.After(10 * time.Millisecond):
				continue
			}
		}

		sleepFor := o.frameInterval() - o.Clock.Since(lastTick)
		if sleepFor > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-o.Clock.After(sleepFor):
			}
		}
		lastTick = o.Clock.Now()

		stokes := 0
		if len(o.StokesIndices) > 0 {
			stokes = o.StokesIndices[0]
		}
		step := Step{Channel: o.Current, Stokes: stokes}
		for fileID, schedule := range o.MatchedFrames {
			idx := o.Current - o.First
			if idx < 0 {
				idx = 0
			}
			if idx >= len(schedule) {
				idx = len(schedule) - 1
			}
			if idx >= 0 {
				step.Frames = append(step.Frames, Frame{FileID: fileID, Channel: schedule[idx]})
			}
		}

		if err := publish(ctx, step); err != nil {
			return err
		}
		o.recordSend()

		next, ok := o.next()
		o.Current = next
		if !ok {
			return nil
		}
	}
}
