package capture

import (
	"testing"

	"gocv.io/x/gocv"
)

func TestNewMotionGate(t *testing.T) {
	tests := []struct {
		name        string
		threshold   float64
		maxSkip     int
		wantMaxSkip int
	}{
		{name: "default skip", threshold: 1.0, maxSkip: 0, wantMaxSkip: DefaultMaxSkip},
		{name: "custom skip", threshold: 5.0, maxSkip: 3, wantMaxSkip: 3},
		{name: "negative skip", threshold: 0.5, maxSkip: -1, wantMaxSkip: DefaultMaxSkip},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g := NewMotionGate(tt.threshold, tt.maxSkip)
			defer g.Close()

			if g.threshold != tt.threshold {
				t.Errorf("threshold = %f, want %f", g.threshold, tt.threshold)
			}
			if g.maxSkip != tt.wantMaxSkip {
				t.Errorf("maxSkip = %d, want %d", g.maxSkip, tt.wantMaxSkip)
			}
			if g.primed {
				t.Error("gate should not be primed initially")
			}
		})
	}
}

func TestMotionGate_StillFrames(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping test that requires GoCV Mat creation")
	}

	g := NewMotionGate(1.0, 3)
	defer g.Close()

	frame := gocv.NewMatWithSize(120, 160, gocv.MatTypeCV8UC3)
	defer frame.Close()

	if open, _ := g.Open(&frame); !open {
		t.Fatal("first frame should pass the gate")
	}

	// Three still frames are skipped, the fourth is forced through.
	want := []bool{false, false, false, true, false}
	for i, w := range want {
		open, changed := g.Open(&frame)
		if open != w {
			t.Errorf("still frame %d: open = %v, want %v (changed %.2f%%)", i, open, w, changed)
		}
	}
}

func TestMotionGate_Motion(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping test that requires GoCV Mat creation")
	}

	g := NewMotionGate(1.0, 0)
	defer g.Close()

	black := gocv.NewMatWithSize(120, 160, gocv.MatTypeCV8UC3)
	defer black.Close()
	white := gocv.NewMatWithSize(120, 160, gocv.MatTypeCV8UC3)
	defer white.Close()
	white.SetTo(gocv.NewScalar(255, 255, 255, 0))

	g.Open(&black)
	open, changed := g.Open(&white)
	if !open {
		t.Errorf("black to white should pass, changed %.2f%%", changed)
	}
	if changed < 50 {
		t.Errorf("changed = %.2f%%, want most pixels", changed)
	}
}

func TestMotionGate_ResetAndClose(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping test that requires GoCV Mat creation")
	}

	g := NewMotionGate(1.0, 10)
	frame := gocv.NewMatWithSize(120, 160, gocv.MatTypeCV8UC3)
	defer frame.Close()

	g.Open(&frame)
	g.Reset()
	if open, _ := g.Open(&frame); !open {
		t.Error("first frame after Reset should pass")
	}

	g.Close()
	g.Close()
	if open, _ := g.Open(&frame); !open {
		t.Error("first frame after Close should pass")
	}
	g.Close()
}

func TestMotionGate_EmptyFrame(t *testing.T) {
	g := NewMotionGate(1.0, 0)
	defer g.Close()

	if open, _ := g.Open(nil); open {
		t.Error("nil frame should not pass")
	}
}
