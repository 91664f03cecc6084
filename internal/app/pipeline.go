// Package app runs the frame loop: pull a frame, detect hands, classify and
// stabilize each hand, then hand the result to the registered sinks.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"gocv.io/x/gocv"

	"github.com/SEARO1/Hand-Track/internal/capture"
	"github.com/SEARO1/Hand-Track/internal/detector"
	"github.com/SEARO1/Hand-Track/internal/gesture"
	"github.com/SEARO1/Hand-Track/internal/render"
	"github.com/SEARO1/Hand-Track/internal/tracking"
)

var (
	// ErrDetect wraps a detector failure. The frame is skipped.
	ErrDetect = errors.New("app: hand detection failed")

	// ErrQuit is returned by a FrameSink to stop the loop cleanly.
	ErrQuit = errors.New("app: quit requested")
)

// FrameResult is the published outcome of one frame. Sinks share the same
// value and must treat it as read-only.
type FrameResult struct {
	Index  int                   `json:"index"`
	Time   time.Time             `json:"time"`
	FPS    float64               `json:"fps"`
	Paused bool                  `json:"paused,omitempty"`
	Hands  []tracking.HandResult `json:"hands"`
}

// Primary returns the first tracked hand, if any.
func (r *FrameResult) Primary() (tracking.HandResult, bool) {
	if r == nil || len(r.Hands) == 0 {
		return tracking.HandResult{}, false
	}
	return r.Hands[0], true
}

// Sink receives every frame result. Consume is called on the loop goroutine
// and must return quickly; slow consumers wrap themselves in an AsyncSink.
type Sink interface {
	Consume(res *FrameResult)
}

// FrameSink receives the annotated frame. The Mat is only valid for the
// duration of the call.
type FrameSink interface {
	WriteFrame(img *gocv.Mat, res *FrameResult) error
}

// Pipeline is the single-goroutine frame loop.
type Pipeline struct {
	source     capture.Source
	detector   detector.Detector
	tracker    *tracking.Tracker
	gate       *capture.MotionGate
	sinks      []Sink
	frameSinks []FrameSink
	overlay    render.Options
	clock      func() time.Time

	fps       gesture.FpsBuffer
	index     int
	last      time.Time
	lastHands []detector.HandLandmarks
	paused    bool

	enabled atomic.Bool
	latest  atomic.Pointer[FrameResult]
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithSinks adds result sinks.
func WithSinks(s ...Sink) Option {
	return func(p *Pipeline) { p.sinks = append(p.sinks, s...) }
}

// WithFrameSinks adds annotated-frame sinks.
func WithFrameSinks(s ...FrameSink) Option {
	return func(p *Pipeline) { p.frameSinks = append(p.frameSinks, s...) }
}

// WithMotionGate skips detection on still frames.
func WithMotionGate(g *capture.MotionGate) Option {
	return func(p *Pipeline) { p.gate = g }
}

// WithOverlay selects the overlay elements drawn for frame sinks.
func WithOverlay(o render.Options) Option {
	return func(p *Pipeline) { p.overlay = o }
}

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(p *Pipeline) { p.clock = now }
}

// NewPipeline wires a source, a detector and a tracker into a frame loop.
func NewPipeline(src capture.Source, det detector.Detector, tracker *tracking.Tracker, opts ...Option) *Pipeline {
	p := &Pipeline{
		source:   src,
		detector: det,
		tracker:  tracker,
		overlay:  render.DefaultOptions(),
		clock:    time.Now,
	}
	p.enabled.Store(true)
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// SetEnabled pauses or resumes detection. Frames are still pulled while paused.
func (p *Pipeline) SetEnabled(on bool) {
	p.enabled.Store(on)
}

// Enabled reports whether detection is running.
func (p *Pipeline) Enabled() bool {
	return p.enabled.Load()
}

// Latest returns the most recent result, or nil before the first frame.
func (p *Pipeline) Latest() *FrameResult {
	return p.latest.Load()
}

// Frames returns the number of frames pulled so far. Only the loop goroutine
// may call it while Run is active.
func (p *Pipeline) Frames() int {
	return p.index
}

// Source returns the frame source.
func (p *Pipeline) Source() capture.Source {
	return p.source
}

// Run pulls frames until ctx is cancelled, the source ends or fails, or a
// frame sink asks to quit. Only ErrSourceUnavailable and unexpected errors
// are returned.
func (p *Pipeline) Run(ctx context.Context) error {
	props := p.source.Props()
	slog.Info("frame loop started",
		"live", p.source.Live(), "width", props.Width, "height", props.Height, "fps", props.FPS)
	defer func() { slog.Info("frame loop stopped", "frames", p.index) }()

	for {
		select {
		case <-ctx.Done():
			return nil
		default:
		}

		_, err := p.Step(ctx)
		switch {
		case err == nil:
		case errors.Is(err, capture.ErrFrameRead):
			slog.Warn("frame read failed", "frame", p.index, "error", err)
		case errors.Is(err, ErrDetect):
			slog.Warn("frame skipped", "frame", p.index, "error", err)
		case errors.Is(err, capture.ErrEndOfStream):
			slog.Info("end of stream", "frames", p.index)
			return nil
		case errors.Is(err, ErrQuit):
			return nil
		case ctx.Err() != nil:
			return nil
		default:
			return err
		}
	}
}

// Step processes exactly one frame.
func (p *Pipeline) Step(ctx context.Context) (*FrameResult, error) {
	frame, err := p.source.Next(ctx)
	if err != nil {
		return nil, err
	}
	defer frame.Close()

	now := p.clock()
	if !p.last.IsZero() {
		p.fps.AddInterval(now.Sub(p.last))
	}
	p.last = now
	p.index++

	res := &FrameResult{Index: p.index, Time: now, FPS: p.fps.Average()}

	if p.enabled.Load() {
		if p.paused {
			p.paused = false
			slog.Info("detection resumed")
		}
		hands, err := p.detect(frame)
		if err != nil {
			return nil, err
		}
		res.Hands = p.tracker.Process(hands)
	} else {
		if !p.paused {
			p.paused = true
			p.tracker.Reset()
			p.lastHands = nil
			if p.gate != nil {
				p.gate.Reset()
			}
			slog.Info("detection paused")
		}
		res.Paused = true
	}

	if len(res.Hands) > 0 {
		slog.Debug("frame", "index", res.Index, "gesture", res.Hands[0].Stable, "hands", len(res.Hands))
	}

	return res, p.publish(frame, res)
}

func (p *Pipeline) detect(frame *gocv.Mat) ([]detector.HandLandmarks, error) {
	if p.gate != nil {
		if open, changed := p.gate.Open(frame); !open {
			slog.Debug("still frame, reusing detection", "changed", changed)
			return p.lastHands, nil
		}
	}

	hands, err := p.detector.Detect(frame)
	if errors.Is(err, detector.ErrExhausted) {
		return nil, capture.ErrEndOfStream
	}
	if err != nil {
		p.lastHands = nil
		return nil, fmt.Errorf("%w: %w", ErrDetect, err)
	}
	p.lastHands = hands
	return hands, nil
}

func (p *Pipeline) publish(frame *gocv.Mat, res *FrameResult) error {
	p.latest.Store(res)

	var quit error
	if len(p.frameSinks) > 0 {
		info := render.Info{FPS: res.FPS}
		if !p.source.Live() {
			info.Frame = res.Index
			info.TotalFrame = p.source.Props().FrameCount
		}
		render.Overlay(frame, res.Hands, info, p.overlay)

		for _, fs := range p.frameSinks {
			err := fs.WriteFrame(frame, res)
			switch {
			case err == nil:
			case errors.Is(err, ErrQuit):
				quit = err
			default:
				slog.Warn("frame sink failed", "sink", fmt.Sprintf("%T", fs), "error", err)
			}
		}
	}

	for _, s := range p.sinks {
		s.Consume(res)
	}
	return quit
}
