package detector

import (
	"errors"

	"gocv.io/x/gocv"
)

// ErrExhausted is returned by detectors backed by a finite recording once
// every recorded frame has been consumed.
var ErrExhausted = errors.New("detector: recording exhausted")

// Detector defines the interface for hand detection implementations.
type Detector interface {
	// Detect analyzes a video frame and returns detected hand landmarks.
	// Returns an empty slice if no hands are detected.
	Detect(frame *gocv.Mat) ([]HandLandmarks, error)

	// Close releases any resources held by the detector.
	Close() error
}

// Config holds configuration options for hand detection.
type Config struct {
	// MaxHands is the maximum number of hands to detect (default: 2).
	MaxHands int

	// MinConfidence is the minimum detection confidence threshold (0.0-1.0).
	MinConfidence float64

	// MinTrackingConf is the minimum tracking confidence threshold (0.0-1.0).
	MinTrackingConf float64

	// ScriptPath overrides the location of mediapipe_service.py.
	ScriptPath string

	// PythonPath overrides the interpreter used to run the service.
	PythonPath string
}

// DefaultConfig returns a Config with sensible default values.
func DefaultConfig() Config {
	return Config{
		MaxHands:        2,
		MinConfidence:   0.7,
		MinTrackingConf: 0.6,
	}
}

// Limit truncates hands to at most n entries. A non-positive n keeps all.
func Limit(hands []HandLandmarks, n int) []HandLandmarks {
	if n > 0 && len(hands) > n {
		return hands[:n]
	}
	return hands
}
