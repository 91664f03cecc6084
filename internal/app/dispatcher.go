package app

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/SEARO1/Hand-Track/internal/gesture"
	"github.com/SEARO1/Hand-Track/internal/plugin"
	"github.com/SEARO1/Hand-Track/internal/store"
)

// DefaultActionInterval is the minimum time between two runs for one label.
const DefaultActionInterval = time.Second

// BindingSource lists the enabled bindings of a gesture label.
type BindingSource interface {
	ListByGesture(gesture string) ([]*store.Binding, error)
}

// Invoker runs a plugin action.
type Invoker interface {
	Invoke(ctx context.Context, name string, req *plugin.Request) (*plugin.Response, error)
}

// ActionDispatcher runs the plugin actions bound to a gesture when a hand
// slot settles on it. Runs are throttled per label.
type ActionDispatcher struct {
	ctx      context.Context
	bindings BindingSource
	invoker  Invoker
	interval time.Duration

	mu       sync.Mutex
	limiters map[gesture.Label]*rate.Limiter
}

// NewActionDispatcher creates a dispatcher. Plugin runs inherit ctx.
// interval <= 0 uses DefaultActionInterval.
func NewActionDispatcher(ctx context.Context, bindings BindingSource, invoker Invoker, interval time.Duration) *ActionDispatcher {
	if interval <= 0 {
		interval = DefaultActionInterval
	}
	return &ActionDispatcher{
		ctx:      ctx,
		bindings: bindings,
		invoker:  invoker,
		interval: interval,
		limiters: make(map[gesture.Label]*rate.Limiter),
	}
}

// Consume dispatches every hand whose stable label changed to a known gesture.
func (d *ActionDispatcher) Consume(res *FrameResult) {
	for _, h := range res.Hands {
		if !h.Changed || h.Stable == gesture.Unknown {
			continue
		}
		d.Dispatch(h.Stable, h.Slot, h.Confidence)
	}
}

// Dispatch runs the bindings of label and reports how many ran successfully.
func (d *ActionDispatcher) Dispatch(label gesture.Label, slot string, confidence float64) int {
	if !d.limiter(label).Allow() {
		slog.Debug("action throttled", "gesture", label)
		return 0
	}

	bindings, err := d.bindings.ListByGesture(label.String())
	if err != nil {
		slog.Warn("binding lookup failed", "gesture", label, "error", err)
		return 0
	}

	ok := 0
	for _, b := range bindings {
		req := &plugin.Request{
			Action:     b.ActionName,
			Gesture:    label.String(),
			Slot:       slot,
			Confidence: confidence,
			Config:     b.Config,
		}

		resp, err := d.invoker.Invoke(d.ctx, b.PluginName, req)
		switch {
		case err != nil:
			slog.Warn("action failed", "plugin", b.PluginName, "action", b.ActionName, "error", err)
		case !resp.Success:
			slog.Warn("action rejected", "plugin", b.PluginName, "action", b.ActionName, "reason", resp.Error)
		default:
			slog.Info("action ran", "gesture", label, "plugin", b.PluginName, "action", b.ActionName)
			ok++
		}
	}
	return ok
}

func (d *ActionDispatcher) limiter(label gesture.Label) *rate.Limiter {
	d.mu.Lock()
	defer d.mu.Unlock()

	l, found := d.limiters[label]
	if !found {
		l = rate.NewLimiter(rate.Every(d.interval), 1)
		d.limiters[label] = l
	}
	return l
}
