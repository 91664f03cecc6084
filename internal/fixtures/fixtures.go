// Package fixtures embeds recorded landmark streams for tests. Each file
// holds one JSON frame per line in the replay format of detector.ReplayDetector.
package fixtures

import (
	"bytes"
	"embed"
	"fmt"

	"github.com/SEARO1/Hand-Track/internal/detector"
)

//go:embed landmarks/*.jsonl
var landmarksFS embed.FS

// Recording names.
const (
	// RockPaper is 8 fist frames followed by 8 open-palm frames.
	RockPaper = "rock_paper"
	// AllGestures holds 8 frames each of fist, palm, peace, pointing,
	// thumbs up and OK.
	AllGestures = "all_gestures"
	// TwoHands is 10 frames of a right fist beside a left peace sign,
	// then 4 frames of the fist alone.
	TwoHands = "two_hands"
	// Gaps is 6 palm frames, 2 frames without hands, then 6 palm frames.
	Gaps = "gaps"
)

// Load returns the raw contents of a recording.
func Load(name string) ([]byte, error) {
	data, err := landmarksFS.ReadFile("landmarks/" + name + ".jsonl")
	if err != nil {
		return nil, fmt.Errorf("load recording %s: %w", name, err)
	}
	return data, nil
}

// Replay returns a detector that plays the recording back.
func Replay(name string) (*detector.ReplayDetector, error) {
	data, err := Load(name)
	if err != nil {
		return nil, err
	}
	return detector.NewReplayDetector(bytes.NewReader(data)), nil
}

// FrameCount returns the number of frames in a recording.
func FrameCount(name string) (int, error) {
	data, err := Load(name)
	if err != nil {
		return 0, err
	}
	return bytes.Count(data, []byte("\n")), nil
}
