package capture

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime"
	"strings"
	"sync"
	"time"

	"gocv.io/x/gocv"
)

// Backends maps backend names to OpenCV VideoCaptureAPI identifiers.
var Backends = map[string]gocv.VideoCaptureAPI{
	"any":          gocv.VideoCaptureAPI(0),
	"v4l2":         gocv.VideoCaptureAPI(200),
	"dshow":        gocv.VideoCaptureAPI(700),
	"avfoundation": gocv.VideoCaptureAPI(1200),
	"msmf":         gocv.VideoCaptureAPI(1400),
	"gstreamer":    gocv.VideoCaptureAPI(1800),
	"ffmpeg":       gocv.VideoCaptureAPI(1900),
}

// DefaultBackends returns the backend order that works best on the host OS.
func DefaultBackends() []string {
	switch runtime.GOOS {
	case "darwin":
		return []string{"avfoundation", "any"}
	case "windows":
		return []string{"dshow", "msmf", "any"}
	default:
		return []string{"v4l2", "any"}
	}
}

// Opener opens a capture device by index on the given backend.
type Opener func(index int, api gocv.VideoCaptureAPI) (VideoDevice, error)

// OpenGoCV is the default Opener.
func OpenGoCV(index int, api gocv.VideoCaptureAPI) (VideoDevice, error) {
	vc, err := gocv.OpenVideoCaptureWithAPI(index, api)
	if err != nil {
		return nil, err
	}
	return gocvDevice{vc}, nil
}

// CameraConfig configures OpenCamera.
type CameraConfig struct {
	// Index is the preferred device index. Indices 0 and 1 are tried after it.
	Index int
	// Backends is the ordered list of backend names to try. Empty uses DefaultBackends.
	Backends []string
	Width    int
	Height   int
	// ReadTimeout bounds each read. A read that times out marks the camera unavailable.
	ReadTimeout time.Duration
	// MaxReadFailures consecutive failed reads escalate to ErrSourceUnavailable.
	MaxReadFailures int
	// Mirror flips frames horizontally for a selfie view.
	Mirror bool
	// Open overrides how devices are opened. Nil uses OpenGoCV.
	Open Opener
}

// DefaultCameraConfig returns a configuration for device 0.
func DefaultCameraConfig() CameraConfig {
	return CameraConfig{
		Backends:        DefaultBackends(),
		Width:           DefaultWidth,
		Height:          DefaultHeight,
		ReadTimeout:     DefaultReadTimeout,
		MaxReadFailures: DefaultMaxReadFailures,
		Mirror:          true,
	}
}

// Candidate is one (backend, index) pair tried by OpenCamera.
type Candidate struct {
	Backend string
	Index   int
}

func (c Candidate) String() string {
	return fmt.Sprintf("%s:%d", c.Backend, c.Index)
}

// Candidates lists the (backend, index) pairs OpenCamera tries, in order.
func (cfg CameraConfig) Candidates() []Candidate {
	backends := cfg.Backends
	if len(backends) == 0 {
		backends = DefaultBackends()
	}

	var indices []int
	for _, i := range []int{cfg.Index, 0, 1} {
		dup := false
		for _, seen := range indices {
			dup = dup || seen == i
		}
		if !dup {
			indices = append(indices, i)
		}
	}

	out := make([]Candidate, 0, len(backends)*len(indices))
	for _, b := range backends {
		for _, i := range indices {
			out = append(out, Candidate{Backend: strings.ToLower(b), Index: i})
		}
	}
	return out
}

// Camera is a live Source backed by a capture device.
type Camera struct {
	cfg       CameraConfig
	dev       VideoDevice
	candidate Candidate
	props     Props

	mu       sync.Mutex
	pending  pendingRead
	failures int
	dead     bool
	closed   bool
}

// OpenCamera opens the first candidate that reports open and delivers a
// trial frame. Rejected devices are closed before the next candidate is
// tried. If every candidate fails the error wraps ErrSourceUnavailable and
// lists the attempts.
func OpenCamera(cfg CameraConfig) (*Camera, error) {
	if cfg.Open == nil {
		cfg.Open = OpenGoCV
	}
	if cfg.ReadTimeout <= 0 {
		cfg.ReadTimeout = DefaultReadTimeout
	}
	if cfg.MaxReadFailures <= 0 {
		cfg.MaxReadFailures = DefaultMaxReadFailures
	}

	var attempts []string
	for _, cand := range cfg.Candidates() {
		api, ok := Backends[cand.Backend]
		if !ok {
			attempts = append(attempts, cand.String()+" (unknown backend)")
			continue
		}

		dev, err := probe(cfg, cand, api)
		if err != nil {
			slog.Debug("camera candidate rejected", "candidate", cand.String(), "error", err)
			attempts = append(attempts, fmt.Sprintf("%s (%v)", cand, err))
			continue
		}

		c := &Camera{cfg: cfg, dev: dev, candidate: cand}
		c.props = propsOf(dev)
		c.props.Backend = cand.Backend
		c.props.Index = cand.Index
		slog.Info("camera opened", "backend", cand.Backend, "index", cand.Index,
			"width", c.props.Width, "height", c.props.Height)
		return c, nil
	}

	return nil, fmt.Errorf("%w: no camera available, tried %s", ErrSourceUnavailable, strings.Join(attempts, ", "))
}

// probe opens one candidate and confirms it delivers a frame.
func probe(cfg CameraConfig, cand Candidate, api gocv.VideoCaptureAPI) (VideoDevice, error) {
	dev, err := cfg.Open(cand.Index, api)
	if err != nil {
		return nil, err
	}
	if dev == nil {
		return nil, errors.New("no device")
	}
	if !dev.IsOpened() {
		dev.Close()
		return nil, errors.New("not opened")
	}

	if cfg.Width > 0 && cfg.Height > 0 {
		dev.SetProp(gocv.VideoCaptureFrameWidth, float64(cfg.Width))
		dev.SetProp(gocv.VideoCaptureFrameHeight, float64(cfg.Height))
	}

	pending := startRead(dev)
	r, done, _ := pending.await(context.Background(), cfg.ReadTimeout)
	if !done {
		// The device is stuck in a read; closing it now could crash OpenCV.
		go func() {
			if pending.drain(time.Minute) {
				dev.Close()
			}
		}()
		return nil, errors.New("trial read timed out")
	}
	defer r.mat.Close()
	if !r.ok || r.mat.Empty() {
		dev.Close()
		return nil, errors.New("trial read returned no frame")
	}
	return dev, nil
}

// Next reads the next frame. Failed or empty reads return ErrFrameRead
// until MaxReadFailures in a row, after which the camera is unavailable.
func (c *Camera) Next(ctx context.Context) (*gocv.Mat, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed || c.dead {
		return nil, ErrSourceUnavailable
	}

	// A previous Next was cancelled mid-read; finish that read first.
	p := c.pending
	if p == nil {
		p = startRead(c.dev)
	}
	r, done, err := p.await(ctx, c.cfg.ReadTimeout)
	if err != nil {
		c.pending = p
		return nil, err
	}
	c.pending = nil
	if !done {
		c.dead = true
		c.pending = p
		return nil, fmt.Errorf("%w: read timed out after %s", ErrSourceUnavailable, c.cfg.ReadTimeout)
	}

	if !r.ok || r.mat.Empty() {
		r.mat.Close()
		c.failures++
		if c.failures >= c.cfg.MaxReadFailures {
			c.dead = true
			return nil, fmt.Errorf("%w: %d consecutive read failures", ErrSourceUnavailable, c.failures)
		}
		return nil, ErrFrameRead
	}
	c.failures = 0

	m := r.mat
	if c.cfg.Mirror {
		gocv.Flip(m, &m, 1)
	}
	return &m, nil
}

// Close releases the device. It is safe to call more than once.
func (c *Camera) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil
	}
	c.closed = true

	if c.pending != nil {
		if !c.pending.drain(c.cfg.ReadTimeout) {
			slog.Warn("camera read still blocked, leaving device open", "candidate", c.candidate.String())
			return nil
		}
		c.pending = nil
	}
	return c.dev.Close()
}

// Live is always true for cameras.
func (c *Camera) Live() bool { return true }

// Props returns the negotiated resolution and rate.
func (c *Camera) Props() Props { return c.props }

// Candidate returns the backend and index that was opened.
func (c *Camera) Candidate() Candidate { return c.candidate }
