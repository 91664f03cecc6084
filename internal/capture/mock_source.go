package capture

import (
	"context"
	"sync"

	"gocv.io/x/gocv"
)

// MockSource plays back in-memory frames for testing.
type MockSource struct {
	frames []*gocv.Mat
	index  int
	loop   bool
	live   bool
	errs   []error
	props  Props
	closed bool
	mu     sync.Mutex
}

// NewMockSource returns a source yielding clones of frames. With loop set
// it restarts from the first frame instead of ending the stream.
func NewMockSource(frames []*gocv.Mat, loop bool) *MockSource {
	m := &MockSource{frames: frames, loop: loop, props: Props{FPS: 30}}
	if len(frames) > 0 {
		m.props.Width = frames[0].Cols()
		m.props.Height = frames[0].Rows()
	}
	if !loop {
		m.props.FrameCount = len(frames)
	}
	return m
}

// SetLive makes the source report itself as a camera.
func (m *MockSource) SetLive(live bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.live = live
}

// QueueErrors makes the next len(errs) calls to Next fail with errs in order.
func (m *MockSource) QueueErrors(errs ...error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.errs = append(m.errs, errs...)
}

func (m *MockSource) Next(ctx context.Context) (*gocv.Mat, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return nil, ErrSourceUnavailable
	}
	if len(m.errs) > 0 {
		err := m.errs[0]
		m.errs = m.errs[1:]
		return nil, err
	}
	if len(m.frames) == 0 {
		return nil, ErrEndOfStream
	}

	if m.index >= len(m.frames) {
		if !m.loop {
			return nil, ErrEndOfStream
		}
		m.index = 0
	}

	// Clone the frame so the original isn't modified
	frame := m.frames[m.index].Clone()
	m.index++

	return &frame, nil
}

func (m *MockSource) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

func (m *MockSource) Live() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.live
}

func (m *MockSource) Props() Props { return m.props }

// Reset restarts playback from the beginning
func (m *MockSource) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.index = 0
}
