package app

import (
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"gocv.io/x/gocv"
)

// DefaultOutputFPS is used when the source does not report a frame rate.
const DefaultOutputFPS = 30.0

// VideoSink writes annotated frames to a video file. The writer is opened on
// the first frame so the output matches the frame geometry.
type VideoSink struct {
	path   string
	fps    float64
	writer *gocv.VideoWriter
	frames int
}

// NewVideoSink creates a sink writing mp4v video to path at fps.
// fps <= 0 uses DefaultOutputFPS.
func NewVideoSink(path string, fps float64) *VideoSink {
	if fps <= 0 {
		fps = DefaultOutputFPS
	}
	return &VideoSink{path: path, fps: fps}
}

// WriteFrame appends img to the video.
func (v *VideoSink) WriteFrame(img *gocv.Mat, _ *FrameResult) error {
	if v.writer == nil {
		w, err := gocv.VideoWriterFile(v.path, "mp4v", v.fps, img.Cols(), img.Rows(), true)
		if err != nil {
			return fmt.Errorf("open video writer %s: %w", v.path, err)
		}
		v.writer = w
		slog.Info("writing video", "path", v.path, "fps", v.fps, "width", img.Cols(), "height", img.Rows())
	}

	if err := v.writer.Write(*img); err != nil {
		return err
	}
	v.frames++
	return nil
}

// Frames returns the number of frames written.
func (v *VideoSink) Frames() int {
	return v.frames
}

// Close finalizes the file.
func (v *VideoSink) Close() error {
	if v.writer == nil {
		return nil
	}
	slog.Info("video saved", "path", v.path, "frames", v.frames)
	err := v.writer.Close()
	v.writer = nil
	return err
}

// Preview shows annotated frames in a window. 'q' or Esc quits, 's' saves a
// screenshot into Dir.
type Preview struct {
	Dir    string
	window *gocv.Window
	now    func() time.Time
}

// NewPreview opens a window titled title.
func NewPreview(title, screenshotDir string) *Preview {
	return &Preview{
		Dir:    screenshotDir,
		window: gocv.NewWindow(title),
		now:    time.Now,
	}
}

// WriteFrame displays img and handles one key press.
func (p *Preview) WriteFrame(img *gocv.Mat, _ *FrameResult) error {
	p.window.IMShow(*img)

	switch key := p.window.WaitKey(1); key {
	case 'q', 'Q', 27:
		return ErrQuit
	case 's', 'S':
		name := filepath.Join(p.Dir, fmt.Sprintf("screenshot_%d.jpg", p.now().Unix()))
		if !gocv.IMWrite(name, *img) {
			return fmt.Errorf("write screenshot %s", name)
		}
		slog.Info("screenshot saved", "path", name)
	}
	return nil
}

// Close destroys the window.
func (p *Preview) Close() error {
	return p.window.Close()
}
