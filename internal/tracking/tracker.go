// Package tracking assigns detected hands to per-session slots and keeps one
// stability window per slot, so two hands never share smoothing state.
package tracking

import (
	"fmt"
	"time"

	gocache "github.com/patrickmn/go-cache"

	"github.com/SEARO1/Hand-Track/internal/detector"
	"github.com/SEARO1/Hand-Track/internal/gesture"
)

// DefaultSlotTTL is how long a slot survives without its hand being seen.
const DefaultSlotTTL = 500 * time.Millisecond

// Config controls slot management.
type Config struct {
	// WindowSize is the capacity of each slot's stability window.
	WindowSize int
	// MaxHands caps how many hands are classified per frame.
	MaxHands int
	// SlotTTL keeps a slot's window across tracking gaps shorter than this.
	// Zero resets a slot on the first frame its hand is missing.
	SlotTTL time.Duration
}

// DefaultConfig returns the defaults used by the CLI.
func DefaultConfig() Config {
	return Config{
		WindowSize: gesture.DefaultWindowSize,
		MaxHands:   2,
		SlotTTL:    DefaultSlotTTL,
	}
}

// HandResult is the per-frame output for one tracked hand.
type HandResult struct {
	Slot       string                 `json:"slot"`
	Handedness string                 `json:"handedness"`
	Raw        gesture.Label          `json:"raw"`
	Stable     gesture.Label          `json:"stable"`
	Display    string                 `json:"display"`
	Confidence float64                `json:"confidence"`
	Fingers    gesture.FingerState    `json:"fingers"`
	Changed    bool                   `json:"changed"`
	Landmarks  detector.HandLandmarks `json:"landmarks"`
}

type slot struct {
	window *gesture.StabilityBuffer
	stable gesture.Label
	fresh  bool
}

// Tracker classifies each hand of a frame and smooths the label per slot.
// It is driven from the frame loop and must not be shared between loops.
type Tracker struct {
	classifier *gesture.Classifier
	cfg        Config
	slots      *gocache.Cache
}

// New creates a Tracker.
func New(classifier *gesture.Classifier, cfg Config) *Tracker {
	if cfg.WindowSize < 1 {
		cfg.WindowSize = gesture.DefaultWindowSize
	}

	ttl, cleanup := cfg.SlotTTL, 2*cfg.SlotTTL
	if ttl <= 0 {
		ttl, cleanup = gocache.NoExpiration, 0
	}

	return &Tracker{
		classifier: classifier,
		cfg:        cfg,
		slots:      gocache.New(ttl, cleanup),
	}
}

// Process classifies up to MaxHands hands and returns their smoothed results
// in detection order. Zero hands yields nil.
func (t *Tracker) Process(hands []detector.HandLandmarks) []HandResult {
	hands = detector.Limit(hands, t.cfg.MaxHands)
	ids := SlotIDs(hands)

	if t.cfg.SlotTTL <= 0 {
		t.dropUnseen(ids)
	}
	if len(hands) == 0 {
		return nil
	}

	results := make([]HandResult, len(hands))
	for i := range hands {
		s := t.acquire(ids[i])
		r := t.classifier.Classify(&hands[i])
		stable := s.window.Update(r.Label)

		results[i] = HandResult{
			Slot:       ids[i],
			Handedness: hands[i].Handedness,
			Raw:        r.Label,
			Stable:     stable,
			Display:    t.classifier.Set().Display(stable),
			Confidence: r.Confidence,
			Fingers:    r.Fingers,
			Changed:    s.fresh || stable != s.stable,
			Landmarks:  hands[i],
		}
		s.stable, s.fresh = stable, false

		// Refresh the expiry.
		t.slots.SetDefault(ids[i], s)
	}
	return results
}

// acquire returns the live slot for id, or a new one if it expired.
func (t *Tracker) acquire(id string) *slot {
	if v, ok := t.slots.Get(id); ok {
		return v.(*slot)
	}
	return &slot{
		window: gesture.NewStabilityBuffer(t.cfg.WindowSize),
		fresh:  true,
	}
}

func (t *Tracker) dropUnseen(seen []string) {
	keep := make(map[string]struct{}, len(seen))
	for _, id := range seen {
		keep[id] = struct{}{}
	}
	for id := range t.slots.Items() {
		if _, ok := keep[id]; !ok {
			t.slots.Delete(id)
		}
	}
}

// Slots returns the number of live slots.
func (t *Tracker) Slots() int {
	return len(t.slots.Items())
}

// Reset drops every slot.
func (t *Tracker) Reset() {
	t.slots.Flush()
}

// SlotIDs names each hand of a frame. Handedness is used when it is unique
// within the frame; otherwise hands fall back to detection order.
func SlotIDs(hands []detector.HandLandmarks) []string {
	seen := make(map[string]int, len(hands))
	for _, h := range hands {
		seen[h.Handedness]++
	}

	ids := make([]string, len(hands))
	for i, h := range hands {
		if h.Handedness != "" && seen[h.Handedness] == 1 {
			ids[i] = h.Handedness
		} else {
			ids[i] = fmt.Sprintf("hand-%d", i)
		}
	}
	return ids
}
