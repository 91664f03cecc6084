// Package capture provides a pull-based frame source over live cameras and
// video files using GoCV (OpenCV).
package capture

import (
	"context"
	"errors"
	"time"

	"gocv.io/x/gocv"
)

var (
	// ErrSourceUnavailable is terminal: no camera or file could be opened,
	// or a live source stopped delivering frames.
	ErrSourceUnavailable = errors.New("capture: source unavailable")

	// ErrFrameRead is a transient failure of a single live read. The caller
	// may skip the frame and pull again.
	ErrFrameRead = errors.New("capture: frame read failed")

	// ErrEndOfStream means a finite source has no more frames.
	ErrEndOfStream = errors.New("capture: end of stream")
)

// Default capture settings
const (
	DefaultWidth           = 640
	DefaultHeight          = 480
	DefaultReadTimeout     = 2 * time.Second
	DefaultMaxReadFailures = 10
)

// Props describes an opened source.
type Props struct {
	Width      int     `json:"width"`
	Height     int     `json:"height"`
	FPS        float64 `json:"fps"`
	FrameCount int     `json:"frame_count,omitempty"` // files only
	Backend    string  `json:"backend,omitempty"`     // cameras only
	Index      int     `json:"index"`
	Path       string  `json:"path,omitempty"`
}

// Source yields frames one at a time. The caller owns and must Close every
// returned Mat.
type Source interface {
	// Next blocks until a frame is available. It returns ErrFrameRead,
	// ErrEndOfStream or ErrSourceUnavailable (possibly wrapped) on failure.
	Next(ctx context.Context) (*gocv.Mat, error)

	// Close releases the device.
	Close() error

	// Live reports whether the source is a camera rather than a finite file.
	Live() bool

	// Props returns the source geometry and rate.
	Props() Props
}

// VideoDevice is the subset of gocv.VideoCapture a source needs.
type VideoDevice interface {
	Read(m *gocv.Mat) bool
	IsOpened() bool
	Get(prop gocv.VideoCaptureProperties) float64
	SetProp(prop gocv.VideoCaptureProperties, v float64)
	Close() error
}

// gocvDevice adapts *gocv.VideoCapture to VideoDevice.
type gocvDevice struct {
	*gocv.VideoCapture
}

func (d gocvDevice) SetProp(prop gocv.VideoCaptureProperties, v float64) {
	d.VideoCapture.Set(prop, v)
}

// readResult carries one device read back from the reader goroutine.
type readResult struct {
	mat gocv.Mat
	ok  bool
}

// pendingRead is a device read that has not returned yet.
type pendingRead chan readResult

// startRead reads dev on its own goroutine so callers can bound the wait.
func startRead(dev VideoDevice) pendingRead {
	done := make(pendingRead, 1)
	go func() {
		m := gocv.NewMat()
		ok := dev.Read(&m)
		done <- readResult{mat: m, ok: ok}
	}()
	return done
}

// await waits for p up to timeout. It reports false if the read is still
// running; p must then be drained before the device is touched again.
func (p pendingRead) await(ctx context.Context, timeout time.Duration) (readResult, bool, error) {
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case r := <-p:
		return r, true, nil
	case <-timer.C:
		return readResult{}, false, nil
	case <-ctx.Done():
		return readResult{}, false, ctx.Err()
	}
}

// drain waits up to timeout for an abandoned read and frees its Mat.
func (p pendingRead) drain(timeout time.Duration) bool {
	select {
	case r := <-p:
		r.mat.Close()
		return true
	case <-time.After(timeout):
		return false
	}
}

func propsOf(dev VideoDevice) Props {
	return Props{
		Width:  int(dev.Get(gocv.VideoCaptureFrameWidth)),
		Height: int(dev.Get(gocv.VideoCaptureFrameHeight)),
		FPS:    dev.Get(gocv.VideoCaptureFPS),
	}
}
