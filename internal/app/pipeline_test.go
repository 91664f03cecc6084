package app

import (
	"context"
	"errors"
	"math"
	"sync"
	"testing"
	"time"

	"gocv.io/x/gocv"

	"github.com/SEARO1/Hand-Track/internal/capture"
	"github.com/SEARO1/Hand-Track/internal/detector"
	"github.com/SEARO1/Hand-Track/internal/gesture"
	"github.com/SEARO1/Hand-Track/internal/tracking"
)

func newFrames(t *testing.T, n int) []*gocv.Mat {
	t.Helper()
	frames := make([]*gocv.Mat, n)
	for i := range frames {
		m := gocv.NewMatWithSize(48, 64, gocv.MatTypeCV8UC3)
		frames[i] = &m
	}
	t.Cleanup(func() {
		for _, m := range frames {
			m.Close()
		}
	})
	return frames
}

func newTracker() *tracking.Tracker {
	return tracking.New(gesture.NewClassifier(gesture.SetEight, gesture.DefaultThresholds()), tracking.DefaultConfig())
}

func rightHand(h detector.HandLandmarks) []detector.HandLandmarks {
	h.Handedness = "Right"
	return []detector.HandLandmarks{h}
}

// collector records every published result.
type collector struct {
	mu      sync.Mutex
	results []*FrameResult
}

func (c *collector) Consume(res *FrameResult) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.results = append(c.results, res)
}

func (c *collector) all() []*FrameResult {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]*FrameResult(nil), c.results...)
}

// scriptedDetector fails on chosen calls.
type scriptedDetector struct {
	hands  []detector.HandLandmarks
	failOn map[int]error
	calls  int
}

func (d *scriptedDetector) Detect(*gocv.Mat) ([]detector.HandLandmarks, error) {
	d.calls++
	if err, ok := d.failOn[d.calls]; ok {
		return nil, err
	}
	return d.hands, nil
}

func (d *scriptedDetector) Close() error { return nil }

func TestPipeline_RunFile(t *testing.T) {
	src := capture.NewMockSource(newFrames(t, 10), false)
	det := detector.NewMockDetector()
	det.SetHands(rightHand(detector.FistLandmarks()))

	var c collector
	p := NewPipeline(src, det, newTracker(), WithSinks(&c))

	if err := p.Run(context.Background()); err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	results := c.all()
	if len(results) != 10 {
		t.Fatalf("got %d results, want 10", len(results))
	}
	for i, r := range results {
		if r.Index != i+1 {
			t.Errorf("result %d has index %d", i, r.Index)
		}
		h, ok := r.Primary()
		if !ok {
			t.Fatalf("result %d has no hands", i)
		}
		if h.Stable != gesture.Rock || h.Slot != "Right" {
			t.Errorf("result %d = %s in slot %s, want ROCK in Right", i, h.Stable, h.Slot)
		}
		if h.Changed != (i == 0) {
			t.Errorf("result %d Changed = %v", i, h.Changed)
		}
	}
	if p.Frames() != 10 {
		t.Errorf("Frames() = %d, want 10", p.Frames())
	}
	if p.Latest() != results[9] {
		t.Error("Latest() should return the last result")
	}
}

func TestPipeline_GestureChange(t *testing.T) {
	fist := rightHand(detector.FistLandmarks())
	palm := rightHand(detector.OpenPalmLandmarks())

	var seq [][]detector.HandLandmarks
	for i := 0; i < 7; i++ {
		seq = append(seq, fist)
	}
	for i := 0; i < 7; i++ {
		seq = append(seq, palm)
	}

	det := detector.NewMockDetector()
	det.SetSequence(seq)

	var c collector
	p := NewPipeline(capture.NewMockSource(newFrames(t, len(seq)), false), det, newTracker(), WithSinks(&c))
	if err := p.Run(context.Background()); err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	var changes []int
	for _, r := range c.all() {
		if h, ok := r.Primary(); ok && h.Changed {
			changes = append(changes, r.Index)
		}
	}
	// Window of 7 holding six fists flips once four palms are in it.
	want := []int{1, 11}
	if len(changes) != len(want) || changes[0] != want[0] || changes[1] != want[1] {
		t.Errorf("changes at %v, want %v", changes, want)
	}

	last, _ := c.all()[len(seq)-1].Primary()
	if last.Stable != gesture.Paper {
		t.Errorf("final stable = %s, want PAPER", last.Stable)
	}
}

func TestPipeline_Errors(t *testing.T) {
	tests := []struct {
		name        string
		sourceErrs  []error
		failOn      map[int]error
		wantErr     error
		wantResults int
	}{
		{
			name:        "transient read failure is skipped",
			sourceErrs:  []error{capture.ErrFrameRead, capture.ErrFrameRead},
			wantResults: 5,
		},
		{
			name:        "unavailable source stops the loop",
			sourceErrs:  []error{capture.ErrSourceUnavailable},
			wantErr:     capture.ErrSourceUnavailable,
			wantResults: 0,
		},
		{
			name:        "detector failure skips one frame",
			failOn:      map[int]error{2: errors.New("service crashed")},
			wantResults: 4,
		},
		{
			name:        "exhausted recording ends the stream",
			failOn:      map[int]error{3: detector.ErrExhausted},
			wantResults: 2,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			src := capture.NewMockSource(newFrames(t, 5), false)
			src.QueueErrors(tt.sourceErrs...)
			det := &scriptedDetector{hands: rightHand(detector.PeaceLandmarks()), failOn: tt.failOn}

			var c collector
			err := NewPipeline(src, det, newTracker(), WithSinks(&c)).Run(context.Background())
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("Run() error = %v, want %v", err, tt.wantErr)
			}
			if n := len(c.all()); n != tt.wantResults {
				t.Errorf("got %d results, want %d", n, tt.wantResults)
			}
		})
	}
}

func TestPipeline_Step_DetectError(t *testing.T) {
	src := capture.NewMockSource(newFrames(t, 1), false)
	det := &scriptedDetector{failOn: map[int]error{1: errors.New("boom")}}

	_, err := NewPipeline(src, det, newTracker()).Step(context.Background())
	if !errors.Is(err, ErrDetect) {
		t.Errorf("Step() error = %v, want ErrDetect", err)
	}
}

func TestPipeline_Cancel(t *testing.T) {
	src := capture.NewMockSource(newFrames(t, 3), true)
	src.SetLive(true)
	det := detector.NewMockDetector()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var n int
	stop := SinkFunc(func(*FrameResult) {
		n++
		if n == 20 {
			cancel()
		}
	})

	done := make(chan error, 1)
	go func() { done <- NewPipeline(src, det, newTracker(), WithSinks(stop)).Run(ctx) }()

	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Run() error = %v, want nil on cancel", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Run() did not stop after cancel")
	}
	if n != 20 {
		t.Errorf("processed %d frames after cancel, want 20", n)
	}
}

func TestPipeline_Disabled(t *testing.T) {
	det := detector.NewMockDetector()
	det.SetHands(rightHand(detector.FistLandmarks()))

	var c collector
	p := NewPipeline(capture.NewMockSource(newFrames(t, 4), false), det, newTracker(), WithSinks(&c))
	p.SetEnabled(false)

	if err := p.Run(context.Background()); err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if det.Calls() != 0 {
		t.Errorf("detector called %d times while disabled", det.Calls())
	}
	for _, r := range c.all() {
		if !r.Paused || len(r.Hands) != 0 {
			t.Errorf("result %d = %+v, want paused with no hands", r.Index, r)
		}
	}
}

type quitAfter struct {
	n, seen int
}

func (q *quitAfter) WriteFrame(img *gocv.Mat, _ *FrameResult) error {
	if img.Empty() {
		return errors.New("empty frame")
	}
	q.seen++
	if q.seen == q.n {
		return ErrQuit
	}
	return nil
}

func TestPipeline_FrameSinkQuit(t *testing.T) {
	det := detector.NewMockDetector()
	det.SetHands(rightHand(detector.OpenPalmLandmarks()))

	var c collector
	q := &quitAfter{n: 3}
	p := NewPipeline(capture.NewMockSource(newFrames(t, 10), false), det, newTracker(),
		WithSinks(&c), WithFrameSinks(q))

	if err := p.Run(context.Background()); err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if q.seen != 3 || len(c.all()) != 3 {
		t.Errorf("frame sink saw %d frames, results %d; want 3 and 3", q.seen, len(c.all()))
	}
}

func TestPipeline_FPS(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	clock := func() time.Time {
		now = now.Add(100 * time.Millisecond)
		return now
	}

	var c collector
	p := NewPipeline(capture.NewMockSource(newFrames(t, 5), false), detector.NewMockDetector(), newTracker(),
		WithSinks(&c), WithClock(clock))
	if err := p.Run(context.Background()); err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	results := c.all()
	if results[0].FPS != 0 {
		t.Errorf("first frame FPS = %v, want 0", results[0].FPS)
	}
	if got := results[4].FPS; math.Abs(got-10) > 1e-9 {
		t.Errorf("FPS = %v, want 10", got)
	}
}

func TestPipeline_NoHands(t *testing.T) {
	var c collector
	p := NewPipeline(capture.NewMockSource(newFrames(t, 2), false), detector.NewMockDetector(), newTracker(), WithSinks(&c))
	if err := p.Run(context.Background()); err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	for _, r := range c.all() {
		if _, ok := r.Primary(); ok {
			t.Errorf("result %d has hands", r.Index)
		}
	}
}

func TestPipeline_MotionGate(t *testing.T) {
	det := detector.NewMockDetector()
	det.SetHands(rightHand(detector.FistLandmarks()))
	gate := capture.NewMotionGate(1.0, 100)
	defer gate.Close()

	var c collector
	p := NewPipeline(capture.NewMockSource(newFrames(t, 6), false), det, newTracker(),
		WithSinks(&c), WithMotionGate(gate))
	if err := p.Run(context.Background()); err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	if det.Calls() != 1 {
		t.Errorf("detector ran %d times on still frames, want 1", det.Calls())
	}
	for _, r := range c.all() {
		if h, ok := r.Primary(); !ok || h.Stable != gesture.Rock {
			t.Errorf("frame %d should reuse the previous detection", r.Index)
		}
	}
}
