package gesture

import (
	"time"

	"gonum.org/v1/gonum/stat"
)

// DefaultFPSWindow is the number of samples FpsBuffer averages.
const DefaultFPSWindow = 30

// FpsBuffer averages the most recent instantaneous frame rates for display.
type FpsBuffer struct {
	samples []float64
	next    int
	full    bool
}

// NewFpsBuffer creates a buffer holding n samples. n < 1 uses DefaultFPSWindow.
func NewFpsBuffer(n int) *FpsBuffer {
	if n < 1 {
		n = DefaultFPSWindow
	}
	return &FpsBuffer{samples: make([]float64, 0, n)}
}

// Add records one instantaneous rate.
func (b *FpsBuffer) Add(fps float64) {
	if cap(b.samples) == 0 {
		b.samples = make([]float64, 0, DefaultFPSWindow)
	}
	if !b.full {
		b.samples = append(b.samples, fps)
		b.full = len(b.samples) == cap(b.samples)
		return
	}
	b.samples[b.next] = fps
	b.next = (b.next + 1) % len(b.samples)
}

// AddInterval records the rate implied by one frame interval. Non-positive
// intervals are ignored.
func (b *FpsBuffer) AddInterval(d time.Duration) {
	if d <= 0 {
		return
	}
	b.Add(float64(time.Second) / float64(d))
}

// Average returns the mean of the stored samples, or 0 when empty.
func (b *FpsBuffer) Average() float64 {
	if len(b.samples) == 0 {
		return 0
	}
	return stat.Mean(b.samples, nil)
}

// Len returns the number of stored samples.
func (b *FpsBuffer) Len() int {
	return len(b.samples)
}
