package gesture

import (
	"math"

	"gonum.org/v1/gonum/floats"

	"github.com/SEARO1/Hand-Track/internal/detector"
)

// Distance is the Euclidean distance between a and b in the image plane.
// Depth is ignored; MediaPipe z estimates are too noisy for finger geometry.
func Distance(a, b detector.Point3D) float64 {
	return floats.Distance([]float64{a.X, a.Y}, []float64{b.X, b.Y}, 2)
}

// Straightness is the ratio of the direct mcp→tip distance to the length of
// the mcp→pip→dip→tip chain. 1.0 is a straight finger. A zero-length chain
// yields 0.
func Straightness(mcp, pip, dip, tip detector.Point3D) float64 {
	chain := Distance(mcp, pip) + Distance(pip, dip) + Distance(dip, tip)
	if chain <= 0 || math.IsNaN(chain) {
		return 0
	}
	return Distance(mcp, tip) / chain
}

// PalmSize is the wrist to middle MCP distance of hand, the unit every
// threshold is expressed in.
func PalmSize(hand *detector.HandLandmarks) float64 {
	if hand == nil {
		return 0
	}
	return Distance(hand.Points[detector.Wrist], hand.Points[detector.MiddleMCP])
}
