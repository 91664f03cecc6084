package app

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/SEARO1/Hand-Track/internal/capture"
)

// ErrRunning is returned by Start when the loop is already running.
var ErrRunning = errors.New("app: already running")

// Status is a snapshot of the running application.
type Status struct {
	Running bool          `json:"running"`
	Enabled bool          `json:"enabled"`
	Uptime  string        `json:"uptime"`
	Live    bool          `json:"live"`
	Source  capture.Props `json:"source"`
	Latest  *FrameResult  `json:"latest,omitempty"`
}

// CloseFunc adapts a function to io.Closer.
type CloseFunc func() error

// Close calls f.
func (f CloseFunc) Close() error { return f() }

// App owns a pipeline and the resources it needs, and runs it in the
// background for the server and the tray.
type App struct {
	pipeline *Pipeline
	closers  []io.Closer

	mu      sync.Mutex
	started time.Time
	cancel  context.CancelFunc
	done    chan struct{}
	err     error
	closed  bool
}

// New creates an App. closers are closed in reverse order by Stop.
func New(p *Pipeline, closers ...io.Closer) *App {
	return &App{pipeline: p, closers: closers}
}

// Pipeline returns the frame loop.
func (a *App) Pipeline() *Pipeline {
	return a.pipeline
}

// SetEnabled enables or disables gesture detection.
func (a *App) SetEnabled(enabled bool) {
	a.pipeline.SetEnabled(enabled)
	slog.Info("detection toggled", "enabled", enabled)
}

// IsEnabled returns whether gesture detection is currently enabled.
func (a *App) IsEnabled() bool {
	return a.pipeline.Enabled()
}

// Start runs the frame loop in a new goroutine.
func (a *App) Start(ctx context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.done != nil {
		return ErrRunning
	}

	ctx, a.cancel = context.WithCancel(ctx)
	a.done = make(chan struct{})
	a.started = time.Now()

	go func() {
		err := a.pipeline.Run(ctx)
		a.mu.Lock()
		a.err = err
		a.mu.Unlock()
		close(a.done)
	}()
	return nil
}

// Done is closed when the loop exits. It is nil before Start.
func (a *App) Done() <-chan struct{} {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.done
}

// Wait blocks until the loop exits and returns its error.
func (a *App) Wait() error {
	done := a.Done()
	if done == nil {
		return nil
	}
	<-done

	a.mu.Lock()
	defer a.mu.Unlock()
	return a.err
}

// Stop cancels the loop, waits for it and releases every resource.
// It returns the loop error joined with any close errors.
func (a *App) Stop() error {
	a.mu.Lock()
	cancel := a.cancel
	a.mu.Unlock()
	if cancel != nil {
		cancel()
	}
	runErr := a.Wait()

	a.mu.Lock()
	defer a.mu.Unlock()
	if a.closed {
		return runErr
	}
	a.closed = true

	errs := []error{runErr}
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i].Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Status returns a snapshot for the status endpoint.
func (a *App) Status() Status {
	a.mu.Lock()
	done, started := a.done, a.started
	a.mu.Unlock()

	running := done != nil
	if running {
		select {
		case <-done:
			running = false
		default:
		}
	}

	st := Status{
		Running: running,
		Enabled: a.pipeline.Enabled(),
		Live:    a.pipeline.Source().Live(),
		Source:  a.pipeline.Source().Props(),
		Latest:  a.pipeline.Latest(),
	}
	if !started.IsZero() {
		st.Uptime = time.Since(started).Round(time.Second).String()
	}
	return st
}
