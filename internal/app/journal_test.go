package app

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/SEARO1/Hand-Track/internal/gesture"
	"github.com/SEARO1/Hand-Track/internal/store"
	"github.com/SEARO1/Hand-Track/internal/tracking"
)

func newTestStore(t *testing.T) *store.Store {
	t.Helper()
	s, err := store.New(filepath.Join(t.TempDir(), "journal.db"))
	if err != nil {
		t.Fatalf("store.New() error = %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestJournal(t *testing.T) {
	s := newTestStore(t)

	j, err := NewJournal(s, "clip.mp4", gesture.SetFour)
	if err != nil {
		t.Fatalf("NewJournal() error = %v", err)
	}

	at := time.Date(2026, 5, 1, 10, 0, 0, 0, time.UTC)
	frames := []*FrameResult{
		{Index: 1, Time: at, Hands: []tracking.HandResult{
			{Slot: "Right", Stable: gesture.Rock, Confidence: 0.95, Changed: true},
			{Slot: "Left", Stable: gesture.Paper, Confidence: 0.85, Changed: true},
		}},
		{Index: 2, Time: at, Hands: []tracking.HandResult{
			{Slot: "Right", Stable: gesture.Rock, Confidence: 0.95},
		}},
		{Index: 3, Time: at},
		{Index: 4, Time: at, Hands: []tracking.HandResult{
			{Slot: "Right", Stable: gesture.Pointing, Confidence: 0.9, Changed: true},
		}},
	}
	for _, f := range frames {
		j.Consume(f)
	}
	if err := j.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	sess, err := s.Sessions().GetByID(j.SessionID())
	if err != nil {
		t.Fatalf("GetByID() error = %v", err)
	}
	if sess.Source != "clip.mp4" || sess.GestureSet != "FOUR" {
		t.Errorf("session = %+v", sess)
	}
	if sess.Frames != 4 || sess.EndedAt == nil {
		t.Errorf("session not ended with 4 frames: %+v", sess)
	}

	events, err := s.Events().ListBySession(j.SessionID(), 0)
	if err != nil {
		t.Fatalf("ListBySession() error = %v", err)
	}
	want := []struct{ slot, label string }{
		{"Right", "ROCK"}, {"Left", "PAPER"}, {"Right", "POINTING"},
	}
	if len(events) != len(want) {
		t.Fatalf("got %d events, want %d", len(events), len(want))
	}
	for i, e := range events {
		if e.Slot != want[i].slot || e.Label != want[i].label {
			t.Errorf("event %d = %s/%s, want %s/%s", i, e.Slot, e.Label, want[i].slot, want[i].label)
		}
	}
	if events[2].Frame != 4 {
		t.Errorf("event frame = %d, want 4", events[2].Frame)
	}
}
