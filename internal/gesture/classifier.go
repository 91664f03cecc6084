package gesture

import (
	"github.com/SEARO1/Hand-Track/internal/detector"
)

// Rule maps a finger pattern to a label. Score gives the display confidence
// of a match in [0,1]; it never decides between rules.
type Rule struct {
	Label Label
	Match func(f Features, th Thresholds) bool
	Score func(f Features, th Thresholds) float64
}

// fixed returns a Score that ignores its input.
func fixed(c float64) func(Features, Thresholds) float64 {
	return func(Features, Thresholds) float64 { return c }
}

// DefaultRules is the rule table, most specific first. The first matching
// rule whose label is in the configured set wins.
var DefaultRules = []Rule{
	{
		Label: MiddleFinger,
		Match: func(f Features, _ Thresholds) bool { return f.Fingers.Only(Middle) },
		Score: fixed(0.9),
	},
	{
		Label: Pointing,
		Match: func(f Features, _ Thresholds) bool { return f.Fingers.Only(Index) },
		Score: func(f Features, _ Thresholds) float64 {
			if f.Fingers[Thumb] {
				return 0.8
			}
			return 0.9
		},
	},
	{
		Label: ThumbsUp,
		Match: func(f Features, _ Thresholds) bool { return f.Fingers.Only(Thumb) },
		Score: fixed(0.9),
	},
	{
		Label: Peace,
		Match: func(f Features, _ Thresholds) bool { return f.Fingers.Only(Index, Middle) },
		Score: func(f Features, _ Thresholds) float64 {
			if f.Fingers[Thumb] {
				return 0.75
			}
			return 0.95
		},
	},
	{
		Label: OK,
		Match: func(f Features, th Thresholds) bool {
			return f.Pinch < th.OKPinchRatio &&
				f.Fingers[Middle] && f.Fingers[Ring] && f.Fingers[Pinky]
		},
		Score: func(f Features, th Thresholds) float64 {
			// Tighter loops read as more certain.
			return clamp(1-0.4*f.Pinch/th.OKPinchRatio, 0, 1)
		},
	},
	{
		Label: Three,
		Match: func(f Features, _ Thresholds) bool { return f.Fingers.Count()-boolInt(f.Fingers[Thumb]) == 3 },
		Score: fixed(0.7),
	},
	{
		Label: Rock,
		Match: func(f Features, _ Thresholds) bool { return f.Fingers.Count() <= 1 },
		Score: func(f Features, _ Thresholds) float64 {
			if f.Fingers.Count() == 0 {
				return 0.95
			}
			return 0.85
		},
	},
	{
		Label: Paper,
		Match: func(f Features, _ Thresholds) bool { return f.Fingers.Count() >= 4 },
		Score: func(f Features, _ Thresholds) float64 {
			if f.Fingers.Count() == 5 {
				return 0.95
			}
			return 0.85
		},
	},
}

// Result is the classification of one hand in one frame.
type Result struct {
	Label      Label       `json:"label"`
	Confidence float64     `json:"confidence"`
	Fingers    FingerState `json:"fingers"`
}

// Classifier maps hand landmarks to a Label through an ordered rule table.
type Classifier struct {
	eval  *Evaluator
	set   GestureSet
	rules []Rule
}

// Option configures a Classifier.
type Option func(*Classifier)

// WithRules replaces the rule table.
func WithRules(rules []Rule) Option {
	return func(c *Classifier) {
		c.rules = rules
	}
}

// NewClassifier creates a Classifier producing labels from set.
func NewClassifier(set GestureSet, th Thresholds, opts ...Option) *Classifier {
	c := &Classifier{
		eval:  NewEvaluator(th),
		set:   set,
		rules: DefaultRules,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Set returns the gesture set the classifier is restricted to.
func (c *Classifier) Set() GestureSet {
	return c.set
}

// Classify returns exactly one label for hand. It never fails: degenerate
// input has no extended fingers and classifies like a fist.
func (c *Classifier) Classify(hand *detector.HandLandmarks) Result {
	f, _ := c.eval.Measure(hand)
	return c.ClassifyFeatures(f)
}

// ClassifyFeatures runs the rule table on already measured features.
func (c *Classifier) ClassifyFeatures(f Features) Result {
	th := c.eval.Thresholds()
	for _, r := range c.rules {
		if !c.set.Contains(r.Label) || !r.Match(f, th) {
			continue
		}
		conf := 1.0
		if r.Score != nil {
			conf = clamp(r.Score(f, th), 0, 1)
		}
		return Result{Label: r.Label, Confidence: conf, Fingers: f.Fingers}
	}
	return Result{Label: Unknown, Confidence: 0.5, Fingers: f.Fingers}
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func clamp(v, lo, hi float64) float64 {
	switch {
	case v < lo:
		return lo
	case v > hi:
		return hi
	}
	return v
}
