package capture

import (
	"context"
	"fmt"
	"os"
	"sync"

	"gocv.io/x/gocv"
)

// FileOpener opens a video file for decoding.
type FileOpener func(path string) (VideoDevice, error)

// OpenGoCVFile is the default FileOpener.
func OpenGoCVFile(path string) (VideoDevice, error) {
	vc, err := gocv.VideoCaptureFile(path)
	if err != nil {
		return nil, err
	}
	return gocvDevice{vc}, nil
}

// File is a finite Source decoding a video file. Any failed read ends the stream.
type File struct {
	dev   VideoDevice
	props Props

	mu       sync.Mutex
	position int
	pending  pendingRead
	done     bool
}

// OpenFile opens path with the default decoder.
func OpenFile(path string) (*File, error) {
	return OpenFileWith(path, OpenGoCVFile)
}

// OpenFileWith opens path using open.
func OpenFileWith(path string, open FileOpener) (*File, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSourceUnavailable, err)
	}

	dev, err := open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: open %s: %v", ErrSourceUnavailable, path, err)
	}
	if !dev.IsOpened() {
		dev.Close()
		return nil, fmt.Errorf("%w: cannot decode %s", ErrSourceUnavailable, path)
	}

	props := propsOf(dev)
	props.FrameCount = int(dev.Get(gocv.VideoCaptureFrameCount))
	props.Path = path

	return &File{dev: dev, props: props}, nil
}

// Next decodes the next frame, or returns ErrEndOfStream.
func (f *File) Next(ctx context.Context) (*gocv.Mat, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.done {
		return nil, ErrEndOfStream
	}

	p := f.pending
	if p == nil {
		p = startRead(f.dev)
	}
	r, ok, err := p.await(ctx, DefaultReadTimeout)
	if err != nil {
		f.pending = p
		return nil, err
	}
	f.pending = nil
	if !ok {
		// A stalled decoder is treated as the end of the file.
		f.done = true
		f.pending = p
		return nil, ErrEndOfStream
	}

	if !r.ok || r.mat.Empty() {
		r.mat.Close()
		f.done = true
		return nil, ErrEndOfStream
	}

	f.position++
	return &r.mat, nil
}

// Position returns how many frames have been decoded so far.
func (f *File) Position() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.position
}

// Close releases the decoder.
func (f *File) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.dev == nil {
		return nil
	}
	if f.pending != nil && !f.pending.drain(DefaultReadTimeout) {
		return nil
	}
	err := f.dev.Close()
	f.dev = nil
	f.done = true
	return err
}

// Live is false for files.
func (f *File) Live() bool { return false }

// Props returns the file's resolution, rate and frame count.
func (f *File) Props() Props { return f.props }
