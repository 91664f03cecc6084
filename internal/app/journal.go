package app

import (
	"log/slog"

	"github.com/SEARO1/Hand-Track/internal/gesture"
	"github.com/SEARO1/Hand-Track/internal/store"
)

// Journal records stable-label changes of every hand slot as gesture events
// of one session.
type Journal struct {
	sessions *store.SessionRepository
	events   *store.EventRepository
	session  *store.Session
	frames   int
}

// NewJournal opens a session for source in s.
func NewJournal(s *store.Store, source string, set gesture.GestureSet) (*Journal, error) {
	sess := &store.Session{Source: source, GestureSet: set.String()}
	if err := s.Sessions().Create(sess); err != nil {
		return nil, err
	}
	slog.Info("journal session started", "session", sess.ID, "source", source)

	return &Journal{
		sessions: s.Sessions(),
		events:   s.Events(),
		session:  sess,
	}, nil
}

// SessionID returns the ID of the open session.
func (j *Journal) SessionID() string {
	return j.session.ID
}

// Consume stores one event per hand whose stable label changed.
func (j *Journal) Consume(res *FrameResult) {
	j.frames = res.Index

	var batch []*store.Event
	for _, h := range res.Hands {
		if !h.Changed {
			continue
		}
		batch = append(batch, &store.Event{
			SessionID:  j.session.ID,
			Slot:       h.Slot,
			Label:      h.Stable.String(),
			Confidence: h.Confidence,
			Frame:      res.Index,
			At:         res.Time,
		})
	}
	if len(batch) == 0 {
		return
	}

	if err := j.events.CreateBatch(batch); err != nil {
		slog.Warn("journal write failed", "session", j.session.ID, "error", err)
	}
}

// Close ends the session with the last seen frame index.
func (j *Journal) Close() error {
	slog.Info("journal session ended", "session", j.session.ID, "frames", j.frames)
	return j.sessions.End(j.session.ID, j.frames)
}
