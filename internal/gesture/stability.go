package gesture

// DefaultWindowSize is the number of raw labels a StabilityBuffer votes over.
const DefaultWindowSize = 7

// StabilityBuffer smooths a per-frame label stream by majority vote over
// the last N raw labels. When no label holds a strict majority of N the
// previously returned label is held. One buffer belongs to one hand slot
// and is not safe for concurrent use.
type StabilityBuffer struct {
	ring   []Label
	head   int // next write position
	size   int
	counts [numLabels]int

	held    Label
	hasHeld bool
}

// NewStabilityBuffer creates a buffer of capacity n. n < 1 uses DefaultWindowSize.
func NewStabilityBuffer(n int) *StabilityBuffer {
	if n < 1 {
		n = DefaultWindowSize
	}
	return &StabilityBuffer{ring: make([]Label, n)}
}

// Ingest appends a raw label, evicting the oldest once the window is full.
// Labels outside the enumeration are recorded as Unknown.
func (b *StabilityBuffer) Ingest(l Label) {
	if !l.Valid() {
		l = Unknown
	}
	if b.size == len(b.ring) {
		b.counts[b.ring[b.head]]--
	} else {
		b.size++
	}
	b.ring[b.head] = l
	b.counts[l]++
	b.head = (b.head + 1) % len(b.ring)
}

// Stable returns the smoothed label. The most frequent label wins if its
// count exceeds Cap()/2; otherwise the last returned label is repeated.
// Before any label has been returned the most frequent one is used. Ties
// go to the label earliest in vote order. An empty buffer returns the held
// label, or Unknown.
func (b *StabilityBuffer) Stable() Label {
	if b.size == 0 {
		return b.held
	}

	best, bestCount := Unknown, -1
	for _, l := range voteOrder {
		if b.counts[l] > bestCount {
			best, bestCount = l, b.counts[l]
		}
	}

	if bestCount > len(b.ring)/2 || !b.hasHeld {
		b.held, b.hasHeld = best, true
	}
	return b.held
}

// Update ingests l and returns the resulting stable label.
func (b *StabilityBuffer) Update(l Label) Label {
	b.Ingest(l)
	return b.Stable()
}

// Count returns how many entries of the window equal l.
func (b *StabilityBuffer) Count(l Label) int {
	if !l.Valid() {
		return 0
	}
	return b.counts[l]
}

// Len returns the number of labels currently in the window.
func (b *StabilityBuffer) Len() int {
	return b.size
}

// Cap returns the window capacity N.
func (b *StabilityBuffer) Cap() int {
	return len(b.ring)
}

// Reset empties the window and forgets the held label.
func (b *StabilityBuffer) Reset() {
	b.head, b.size = 0, 0
	b.counts = [numLabels]int{}
	b.held, b.hasHeld = Unknown, false
}
