package server

import (
	"bytes"
	"fmt"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"gocv.io/x/gocv"

	"github.com/SEARO1/Hand-Track/internal/app"
)

// DefaultStreamFPS caps how often frames are JPEG-encoded for viewers.
const DefaultStreamFPS = 15

// snapshotInterval is the encode period while nobody is watching.
const snapshotInterval = time.Second

// Stream is a frame sink that serves the annotated frames as MJPEG and as
// single snapshots.
type Stream struct {
	interval time.Duration
	viewers  atomic.Int32

	mu      sync.Mutex
	jpeg    []byte
	updated chan struct{}
	last    time.Time
}

// NewStream creates a Stream encoding at most maxFPS frames per second.
func NewStream(maxFPS float64) *Stream {
	if maxFPS <= 0 {
		maxFPS = DefaultStreamFPS
	}
	return &Stream{
		interval: time.Duration(float64(time.Second) / maxFPS),
		updated:  make(chan struct{}),
	}
}

// Viewers returns the number of connected stream clients.
func (s *Stream) Viewers() int {
	return int(s.viewers.Load())
}

// WriteFrame encodes img for the connected viewers.
func (s *Stream) WriteFrame(img *gocv.Mat, _ *app.FrameResult) error {
	interval := s.interval
	if s.viewers.Load() == 0 {
		interval = max(interval, snapshotInterval)
	}

	s.mu.Lock()
	due := time.Since(s.last) >= interval
	s.mu.Unlock()
	if !due {
		return nil
	}

	buf, err := gocv.IMEncode(".jpg", *img)
	if err != nil {
		return fmt.Errorf("encode stream frame: %w", err)
	}
	data := bytes.Clone(buf.GetBytes())
	buf.Close()

	s.mu.Lock()
	s.jpeg = data
	s.last = time.Now()
	close(s.updated)
	s.updated = make(chan struct{})
	s.mu.Unlock()
	return nil
}

// next returns the current frame and a channel closed on the next update.
func (s *Stream) next() ([]byte, <-chan struct{}) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.jpeg, s.updated
}

// ServeHTTP streams MJPEG frames until the client disconnects.
func (s *Stream) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.viewers.Add(1)
	defer s.viewers.Add(-1)

	w.Header().Set("Content-Type", "multipart/x-mixed-replace; boundary=frame")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher, _ := w.(http.Flusher)
	if flusher != nil {
		flusher.Flush()
	}

	frame, updated := s.next()
	for {
		if frame != nil {
			fmt.Fprintf(w, "--frame\r\nContent-Type: image/jpeg\r\nContent-Length: %d\r\n\r\n", len(frame))
			if _, err := w.Write(frame); err != nil {
				return
			}
			fmt.Fprint(w, "\r\n")
			if flusher != nil {
				flusher.Flush()
			}
		}

		select {
		case <-r.Context().Done():
			return
		case <-updated:
			frame, updated = s.next()
		}
	}
}

// ServeSnapshot writes the latest frame as a single JPEG.
func (s *Stream) ServeSnapshot(w http.ResponseWriter, r *http.Request) {
	frame, _ := s.next()
	if frame == nil {
		http.Error(w, "no frame yet", http.StatusServiceUnavailable)
		return
	}
	w.Header().Set("Content-Type", "image/jpeg")
	w.Header().Set("Cache-Control", "no-cache")
	w.Write(frame)
}
