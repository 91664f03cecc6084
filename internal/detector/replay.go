package detector

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"sync"

	"gocv.io/x/gocv"
)

// ReplayDetector replays recorded landmarks, one JSON frame per line, in the
// same format the MediaPipe service emits. The frame argument to Detect is
// ignored so recordings can drive the pipeline without a camera.
type ReplayDetector struct {
	scanner *bufio.Scanner
	closer  io.Closer
	line    int
	mu      sync.Mutex
}

// NewReplayDetector reads frames from r. If r is an io.Closer it is closed by Close.
func NewReplayDetector(r io.Reader) *ReplayDetector {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1<<20)

	d := &ReplayDetector{scanner: scanner}
	if c, ok := r.(io.Closer); ok {
		d.closer = c
	}
	return d
}

// Detect returns the hands of the next recorded frame, or ErrExhausted.
// Blank lines are frames without hands.
func (d *ReplayDetector) Detect(frame *gocv.Mat) ([]HandLandmarks, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if !d.scanner.Scan() {
		if err := d.scanner.Err(); err != nil {
			return nil, fmt.Errorf("replay line %d: %w", d.line+1, err)
		}
		return nil, ErrExhausted
	}
	d.line++

	line := bytes.TrimSpace(d.scanner.Bytes())
	if len(line) == 0 {
		return nil, nil
	}

	hands, err := decodeHands(line)
	if err != nil {
		return nil, fmt.Errorf("replay line %d: %w", d.line, err)
	}
	return hands, nil
}

// Close releases the underlying reader.
func (d *ReplayDetector) Close() error {
	if d.closer != nil {
		return d.closer.Close()
	}
	return nil
}

// Recorder wraps a Detector and appends every detection to w as a replayable JSON line.
type Recorder struct {
	Detector
	w  io.Writer
	mu sync.Mutex
}

// NewRecorder returns a Detector that records everything inner detects.
func NewRecorder(inner Detector, w io.Writer) *Recorder {
	return &Recorder{Detector: inner, w: w}
}

// Detect forwards to the wrapped detector and records successful results.
func (r *Recorder) Detect(frame *gocv.Mat) ([]HandLandmarks, error) {
	hands, err := r.Detector.Detect(frame)
	if err != nil {
		return hands, err
	}

	line, err := encodeHands(hands)
	if err != nil {
		return hands, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, err := r.w.Write(append(line, '\n')); err != nil {
		return hands, fmt.Errorf("record landmarks: %w", err)
	}
	return hands, nil
}
