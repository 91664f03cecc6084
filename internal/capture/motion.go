package capture

import (
	"image"
	"sync"

	"gocv.io/x/gocv"
)

// Frame differencing parameters
const (
	// blurKernel is the Gaussian blur kernel size used to suppress sensor noise.
	blurKernel = 21
	// pixelDelta is the grey-level change that counts a pixel as moved.
	pixelDelta = 25
	// DefaultMaxSkip is how many still frames may reuse a detection in a row.
	DefaultMaxSkip = 15
)

// MotionGate decides whether a frame differs enough from the last one to be
// worth running the landmark detector on. Still frames reuse the previous
// detection, except that every MaxSkip-th still frame is let through so a
// stale result cannot persist indefinitely.
type MotionGate struct {
	threshold float64 // percent of pixels
	maxSkip   int

	prev    gocv.Mat
	primed  bool
	skipped int
	mu      sync.Mutex
}

// NewMotionGate creates a gate that opens when more than threshold percent
// of the pixels change between frames.
func NewMotionGate(threshold float64, maxSkip int) *MotionGate {
	if maxSkip <= 0 {
		maxSkip = DefaultMaxSkip
	}
	return &MotionGate{
		threshold: threshold,
		maxSkip:   maxSkip,
		prev:      gocv.NewMat(),
	}
}

// Open reports whether frame should go to the detector, along with the
// percentage of pixels that changed. The first frame always passes.
func (g *MotionGate) Open(frame *gocv.Mat) (bool, float64) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if frame == nil || frame.Empty() {
		return false, 0
	}

	changed := g.diff(frame)
	if !g.primed {
		g.primed = true
		g.skipped = 0
		return true, 100
	}

	if changed > g.threshold || g.skipped >= g.maxSkip {
		g.skipped = 0
		return true, changed
	}
	g.skipped++
	return false, changed
}

// diff blurs a grey copy of frame, compares it with the previous one and
// stores it as the new baseline. It returns the changed pixel percentage.
func (g *MotionGate) diff(frame *gocv.Mat) float64 {
	gray := gocv.NewMat()
	defer gray.Close()
	if frame.Channels() > 1 {
		gocv.CvtColor(*frame, &gray, gocv.ColorBGRToGray)
	} else {
		frame.CopyTo(&gray)
	}

	blurred := gocv.NewMat()
	defer blurred.Close()
	gocv.GaussianBlur(gray, &blurred, image.Point{X: blurKernel, Y: blurKernel}, 0, 0, gocv.BorderDefault)

	defer blurred.CopyTo(&g.prev)
	if !g.primed || g.prev.Empty() || g.prev.Rows() != blurred.Rows() || g.prev.Cols() != blurred.Cols() {
		return 100
	}

	delta := gocv.NewMat()
	defer delta.Close()
	gocv.AbsDiff(blurred, g.prev, &delta)

	mask := gocv.NewMat()
	defer mask.Close()
	gocv.Threshold(delta, &mask, pixelDelta, 255, gocv.ThresholdBinary)

	total := mask.Rows() * mask.Cols()
	if total == 0 {
		return 0
	}
	return float64(gocv.CountNonZero(mask)) / float64(total) * 100.0
}

// Reset forgets the baseline so the next frame passes.
func (g *MotionGate) Reset() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.primed = false
	g.skipped = 0
}

// Close releases the baseline frame. The gate may be reused afterwards.
func (g *MotionGate) Close() {
	g.mu.Lock()
	defer g.mu.Unlock()

	if !g.prev.Empty() {
		g.prev.Close()
		g.prev = gocv.NewMat()
	}
	g.primed = false
}
