package gesture

import (
	"math"
	"strings"

	"github.com/SEARO1/Hand-Track/internal/detector"
)

// Finger identifies one of the five digits.
type Finger int

const (
	Thumb Finger = iota
	Index
	Middle
	Ring
	Pinky
)

var fingerNames = [...]string{"thumb", "index", "middle", "ring", "pinky"}

func (f Finger) String() string {
	if f < Thumb || f > Pinky {
		return "finger?"
	}
	return fingerNames[f]
}

// FingerState holds the extension flag of each finger, indexed by Finger.
type FingerState [5]bool

// Count returns how many fingers are extended, thumb included.
func (s FingerState) Count() int {
	n := 0
	for _, ext := range s {
		if ext {
			n++
		}
	}
	return n
}

// Extended reports whether f is extended.
func (s FingerState) Extended(f Finger) bool {
	return s[f]
}

// Only reports whether exactly the given fingers are extended among the four
// non-thumb fingers. The thumb is ignored unless listed.
func (s FingerState) Only(fingers ...Finger) bool {
	var want FingerState
	checkThumb := false
	for _, f := range fingers {
		want[f] = true
		if f == Thumb {
			checkThumb = true
		}
	}
	for f := Index; f <= Pinky; f++ {
		if s[f] != want[f] {
			return false
		}
	}
	return !checkThumb || s[Thumb]
}

// String renders the state as e.g. "thumb+index", or "none".
func (s FingerState) String() string {
	var parts []string
	for f, ext := range s {
		if ext {
			parts = append(parts, Finger(f).String())
		}
	}
	if len(parts) == 0 {
		return "none"
	}
	return strings.Join(parts, "+")
}

// Thresholds tune finger and gesture detection. Distances are in palm units
// (wrist to middle MCP = 1.0), ratios are dimensionless.
type Thresholds struct {
	// PIPRatio: a finger tip must be this much farther from the wrist than its PIP joint.
	PIPRatio float64
	// MinTipToMCP rejects bent fingers whose tip stays close to the knuckle.
	MinTipToMCP float64
	// MeanTipFactor, when > 0, also requires tip→wrist above this fraction
	// of the mean tip→wrist distance of the hand.
	MeanTipFactor float64
	// MinStraightness, when > 0, requires the finger chain to be this straight.
	MinStraightness float64
	// ThumbRatio: thumb tip must be this much farther from the index MCP than the thumb IP.
	ThumbRatio float64
	// ThumbMinSpread is the minimum thumb tip to index MCP distance.
	ThumbMinSpread float64
	// OKPinchRatio is the maximum thumb tip to index tip distance of an OK sign.
	OKPinchRatio float64
}

// DefaultThresholds returns thresholds tuned on MediaPipe output at webcam range.
func DefaultThresholds() Thresholds {
	return Thresholds{
		PIPRatio:       1.05,
		MinTipToMCP:    0.35,
		ThumbRatio:     1.1,
		ThumbMinSpread: 0.5,
		OKPinchRatio:   0.25,
	}
}

// Evaluator decides which fingers of a hand are extended.
type Evaluator struct {
	th Thresholds
}

// NewEvaluator creates an Evaluator using th.
func NewEvaluator(th Thresholds) *Evaluator {
	return &Evaluator{th: th}
}

// Thresholds returns the evaluator's configuration.
func (e *Evaluator) Thresholds() Thresholds {
	return e.th
}

// Evaluate returns the extension state of each finger. Degenerate hands
// (nil, zero palm size, NaN coordinates) report no finger extended.
func (e *Evaluator) Evaluate(hand *detector.HandLandmarks) FingerState {
	f, _ := e.Measure(hand)
	return f.Fingers
}

// Features is what the rule table sees of one hand.
type Features struct {
	Fingers FingerState
	// Pinch is the thumb tip to index tip distance in palm units.
	Pinch float64
}

// Measure extracts Features from hand. It reports false for degenerate hands, in
// which case no finger is extended and Pinch is +Inf.
func (e *Evaluator) Measure(hand *detector.HandLandmarks) (Features, bool) {
	n := hand.Normalize()
	if n == nil {
		return Features{Pinch: math.Inf(1)}, false
	}
	p := &n.Points
	wrist := p[detector.Wrist]

	var tipWrist [5]float64
	var meanTip float64
	for f := Thumb; f <= Pinky; f++ {
		tipWrist[f] = Distance(p[tipOf(f)], wrist)
		meanTip += tipWrist[f]
	}
	meanTip /= 5

	var m Features
	for f := Index; f <= Pinky; f++ {
		mcp := detector.IndexMCP + int(f-Index)*4
		pip, dip, tip := mcp+1, mcp+2, mcp+3

		ext := tipWrist[f] > Distance(p[pip], wrist)*e.th.PIPRatio &&
			Distance(p[tip], p[mcp]) > e.th.MinTipToMCP
		if ext && e.th.MeanTipFactor > 0 {
			ext = tipWrist[f] > meanTip*e.th.MeanTipFactor
		}
		if ext && e.th.MinStraightness > 0 {
			ext = Straightness(p[mcp], p[pip], p[dip], p[tip]) >= e.th.MinStraightness
		}
		m.Fingers[f] = ext
	}

	indexMCP := p[detector.IndexMCP]
	thumbSpread := Distance(p[detector.ThumbTip], indexMCP)
	m.Fingers[Thumb] = thumbSpread > Distance(p[detector.ThumbIP], indexMCP)*e.th.ThumbRatio &&
		thumbSpread > e.th.ThumbMinSpread

	m.Pinch = Distance(p[detector.ThumbTip], p[detector.IndexTip])
	return m, true
}

func tipOf(f Finger) int {
	return detector.ThumbTip + int(f)*4
}
