// Package detector defines the hand landmark model and the upstream producers
// (MediaPipe subprocess, recorded replays, test mocks) that yield landmarks per frame.
package detector

import "math"

// Hand landmark indices following MediaPipe convention.
// See: https://developers.google.com/mediapipe/solutions/vision/hand_landmarker
const (
	Wrist        = 0
	ThumbCMC     = 1
	ThumbMCP     = 2
	ThumbIP      = 3
	ThumbTip     = 4
	IndexMCP     = 5
	IndexPIP     = 6
	IndexDIP     = 7
	IndexTip     = 8
	MiddleMCP    = 9
	MiddlePIP    = 10
	MiddleDIP    = 11
	MiddleTip    = 12
	RingMCP      = 13
	RingPIP      = 14
	RingDIP      = 15
	RingTip      = 16
	PinkyMCP     = 17
	PinkyPIP     = 18
	PinkyDIP     = 19
	PinkyTip     = 20
	NumLandmarks = 21
)

// Connections lists the landmark pairs that form the hand skeleton.
var Connections = [][2]int{
	{Wrist, ThumbCMC}, {ThumbCMC, ThumbMCP}, {ThumbMCP, ThumbIP}, {ThumbIP, ThumbTip},
	{Wrist, IndexMCP}, {IndexMCP, IndexPIP}, {IndexPIP, IndexDIP}, {IndexDIP, IndexTip},
	{IndexMCP, MiddleMCP}, {MiddleMCP, MiddlePIP}, {MiddlePIP, MiddleDIP}, {MiddleDIP, MiddleTip},
	{MiddleMCP, RingMCP}, {RingMCP, RingPIP}, {RingPIP, RingDIP}, {RingDIP, RingTip},
	{RingMCP, PinkyMCP}, {Wrist, PinkyMCP}, {PinkyMCP, PinkyPIP}, {PinkyPIP, PinkyDIP}, {PinkyDIP, PinkyTip},
}

// Point3D is one landmark in normalized image coordinates. X and Y are
// roughly in [0,1]; Z is depth relative to the wrist.
type Point3D struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

// HandLandmarks represents the 21 hand landmarks of one detected hand in one frame.
type HandLandmarks struct {
	Points     [NumLandmarks]Point3D `json:"points"`
	Handedness string                `json:"handedness"` // "Left" or "Right"
	Score      float64               `json:"score"`
}

// minScale is the smallest palm size treated as a real hand.
const minScale = 1e-10

// PalmSize returns the wrist to middle finger MCP distance in the image plane.
func (h *HandLandmarks) PalmSize() float64 {
	if h == nil {
		return 0
	}
	w, m := h.Points[Wrist], h.Points[MiddleMCP]
	return math.Hypot(m.X-w.X, m.Y-w.Y)
}

// Normalize returns a copy of the hand translated so the wrist sits at the
// origin and scaled so the wrist to middle MCP distance (x/y plane) is 1.0.
// Returns nil for a nil hand or when the palm size is degenerate, since no
// scale-relative measurement is meaningful then.
func (h *HandLandmarks) Normalize() *HandLandmarks {
	if h == nil {
		return nil
	}

	scale := h.PalmSize()
	if scale < minScale || math.IsNaN(scale) || math.IsInf(scale, 0) {
		return nil
	}

	normalized := &HandLandmarks{
		Handedness: h.Handedness,
		Score:      h.Score,
	}

	wrist := h.Points[Wrist]
	for i := 0; i < NumLandmarks; i++ {
		normalized.Points[i] = Point3D{
			X: (h.Points[i].X - wrist.X) / scale,
			Y: (h.Points[i].Y - wrist.Y) / scale,
			Z: (h.Points[i].Z - wrist.Z) / scale,
		}
	}

	return normalized
}

// Scale returns a copy of the hand with every coordinate multiplied by f.
func (h HandLandmarks) Scale(f float64) HandLandmarks {
	for i := range h.Points {
		h.Points[i].X *= f
		h.Points[i].Y *= f
		h.Points[i].Z *= f
	}
	return h
}

// FromSlice builds a HandLandmarks from up to 21 points. Missing points stay
// at the zero value.
func FromSlice(points []Point3D, handedness string, score float64) HandLandmarks {
	lm := HandLandmarks{
		Handedness: handedness,
		Score:      score,
	}
	copy(lm.Points[:], points)
	return lm
}
