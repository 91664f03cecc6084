package detector

import (
	"sync"

	"gocv.io/x/gocv"
)

// MockDetector is a test implementation of the Detector interface.
// It allows tests to control the detection results.
type MockDetector struct {
	hands    []HandLandmarks
	sequence [][]HandLandmarks
	err      error
	calls    int
	mu       sync.Mutex
}

// NewMockDetector creates a new MockDetector instance.
func NewMockDetector() *MockDetector {
	return &MockDetector{}
}

// SetHands sets the hands that will be returned by every Detect call.
func (m *MockDetector) SetHands(hands []HandLandmarks) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.hands = hands
}

// SetSequence queues per-frame results. Each Detect pops one entry; once the
// queue is drained Detect falls back to the hands set by SetHands.
func (m *MockDetector) SetSequence(frames [][]HandLandmarks) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sequence = frames
}

// SetError sets the error that will be returned by Detect.
func (m *MockDetector) SetError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
}

// Calls reports how many times Detect ran.
func (m *MockDetector) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

// Detect returns the pre-configured hands or error.
func (m *MockDetector) Detect(frame *gocv.Mat) ([]HandLandmarks, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.calls++
	if m.err != nil {
		return nil, m.err
	}
	if len(m.sequence) > 0 {
		next := m.sequence[0]
		m.sequence = m.sequence[1:]
		return next, nil
	}
	return m.hands, nil
}

// Close is a no-op for the mock detector.
func (m *MockDetector) Close() error {
	return nil
}

// Pose describes a synthetic right hand, palm facing the camera, by which
// fingers are held out. Pinch bends the index finger so its tip meets the
// thumb tip, as in an OK sign; it overrides Thumb and Index.
type Pose struct {
	Thumb  bool
	Index  bool
	Middle bool
	Ring   bool
	Pinky  bool
	Pinch  bool
}

// fingerBase holds the MCP position of each non-thumb finger.
var fingerBase = [4]Point3D{
	{X: 0.56, Y: 0.62}, // index
	{X: 0.50, Y: 0.60}, // middle
	{X: 0.44, Y: 0.62}, // ring
	{X: 0.39, Y: 0.65}, // pinky
}

// Landmarks renders the pose as 21 landmarks in normalized image coordinates.
// The wrist sits at (0.5, 0.8) and the palm size is 0.2.
func (p Pose) Landmarks() HandLandmarks {
	lm := HandLandmarks{
		Handedness: "Right",
		Score:      0.95,
	}

	lm.Points[Wrist] = Point3D{X: 0.5, Y: 0.8}

	switch {
	case p.Pinch:
		lm.Points[ThumbCMC] = Point3D{X: 0.56, Y: 0.76}
		lm.Points[ThumbMCP] = Point3D{X: 0.62, Y: 0.70, Z: 0.01}
		lm.Points[ThumbIP] = Point3D{X: 0.66, Y: 0.62, Z: 0.01}
		lm.Points[ThumbTip] = Point3D{X: 0.64, Y: 0.555, Z: 0.0}
	case p.Thumb:
		lm.Points[ThumbCMC] = Point3D{X: 0.56, Y: 0.76, Z: 0.02}
		lm.Points[ThumbMCP] = Point3D{X: 0.62, Y: 0.70, Z: 0.03}
		lm.Points[ThumbIP] = Point3D{X: 0.68, Y: 0.64, Z: 0.03}
		lm.Points[ThumbTip] = Point3D{X: 0.74, Y: 0.58, Z: 0.03}
	default:
		lm.Points[ThumbCMC] = Point3D{X: 0.56, Y: 0.76}
		lm.Points[ThumbMCP] = Point3D{X: 0.60, Y: 0.71, Z: -0.01}
		lm.Points[ThumbIP] = Point3D{X: 0.60, Y: 0.66, Z: -0.02}
		lm.Points[ThumbTip] = Point3D{X: 0.55, Y: 0.64, Z: -0.03}
	}

	extended := [4]bool{p.Index, p.Middle, p.Ring, p.Pinky}
	for i, base := range fingerBase {
		mcp := IndexMCP + i*4
		lm.Points[mcp] = base

		if i == 0 && p.Pinch {
			lm.Points[IndexPIP] = Point3D{X: 0.58, Y: 0.54, Z: -0.01}
			lm.Points[IndexDIP] = Point3D{X: 0.62, Y: 0.52, Z: -0.01}
			lm.Points[IndexTip] = Point3D{X: 0.645, Y: 0.55, Z: 0.0}
			continue
		}

		if extended[i] {
			lm.Points[mcp+1] = Point3D{X: base.X, Y: base.Y - 0.08}
			lm.Points[mcp+2] = Point3D{X: base.X, Y: base.Y - 0.13}
			lm.Points[mcp+3] = Point3D{X: base.X, Y: base.Y - 0.17}
		} else {
			lm.Points[mcp+1] = Point3D{X: base.X, Y: base.Y - 0.05, Z: -0.03}
			lm.Points[mcp+2] = Point3D{X: base.X, Y: base.Y - 0.01, Z: -0.04}
			lm.Points[mcp+3] = Point3D{X: base.X, Y: base.Y + 0.04, Z: -0.02}
		}
	}

	return lm
}

// FistLandmarks returns a closed fist with the thumb tucked.
func FistLandmarks() HandLandmarks {
	return Pose{}.Landmarks()
}

// ThumbsUpLandmarks returns a fist with only the thumb extended.
func ThumbsUpLandmarks() HandLandmarks {
	return Pose{Thumb: true}.Landmarks()
}

// OpenPalmLandmarks returns an open hand with all five fingers extended.
func OpenPalmLandmarks() HandLandmarks {
	return Pose{Thumb: true, Index: true, Middle: true, Ring: true, Pinky: true}.Landmarks()
}

// PointingLandmarks returns a hand with only the index finger extended.
func PointingLandmarks() HandLandmarks {
	return Pose{Index: true}.Landmarks()
}

// PeaceLandmarks returns a hand with the index and middle fingers extended.
func PeaceLandmarks() HandLandmarks {
	return Pose{Index: true, Middle: true}.Landmarks()
}

// OKLandmarks returns a thumb-index loop with the other three fingers extended.
func OKLandmarks() HandLandmarks {
	return Pose{Pinch: true, Middle: true, Ring: true, Pinky: true}.Landmarks()
}
