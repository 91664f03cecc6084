package store

import (
	"database/sql"
	"time"
)

// Event records a hand slot settling on a new stable gesture.
type Event struct {
	ID         int64     `json:"id"`
	SessionID  string    `json:"session_id"`
	Slot       string    `json:"slot"`
	Label      string    `json:"label"`
	Confidence float64   `json:"confidence"`
	Frame      int       `json:"frame"`
	At         time.Time `json:"at"`
}

// EventRepository provides access to gesture events.
type EventRepository struct {
	db *sql.DB
}

// Events returns the event repository for this store.
func (s *Store) Events() *EventRepository {
	return &EventRepository{db: s.db}
}

// Create inserts an event and sets its ID.
func (r *EventRepository) Create(e *Event) error {
	if e.At.IsZero() {
		e.At = time.Now()
	}

	result, err := r.db.Exec(
		`INSERT INTO gesture_events (session_id, slot, label, confidence, frame, at) VALUES (?, ?, ?, ?, ?, ?)`,
		e.SessionID, e.Slot, e.Label, e.Confidence, e.Frame, e.At,
	)
	if err != nil {
		return err
	}

	e.ID, err = result.LastInsertId()
	return err
}

// CreateBatch inserts events in one transaction.
func (r *EventRepository) CreateBatch(events []*Event) error {
	tx, err := r.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(
		`INSERT INTO gesture_events (session_id, slot, label, confidence, frame, at) VALUES (?, ?, ?, ?, ?, ?)`,
	)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, e := range events {
		if e.At.IsZero() {
			e.At = time.Now()
		}
		result, err := stmt.Exec(e.SessionID, e.Slot, e.Label, e.Confidence, e.Frame, e.At)
		if err != nil {
			return err
		}
		if e.ID, err = result.LastInsertId(); err != nil {
			return err
		}
	}

	return tx.Commit()
}

// ListBySession returns a session's events in order. limit <= 0 returns all.
func (r *EventRepository) ListBySession(sessionID string, limit int) ([]*Event, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := r.db.Query(
		`SELECT id, session_id, slot, label, confidence, frame, at
		 FROM gesture_events WHERE session_id = ? ORDER BY id LIMIT ?`,
		sessionID, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	events := []*Event{}
	for rows.Next() {
		e := &Event{}
		if err := rows.Scan(&e.ID, &e.SessionID, &e.Slot, &e.Label, &e.Confidence, &e.Frame, &e.At); err != nil {
			return nil, err
		}
		events = append(events, e)
	}
	return events, rows.Err()
}

// CountByLabel tallies a session's events per label.
func (r *EventRepository) CountByLabel(sessionID string) (map[string]int, error) {
	rows, err := r.db.Query(
		`SELECT label, COUNT(*) FROM gesture_events WHERE session_id = ? GROUP BY label`, sessionID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counts := map[string]int{}
	for rows.Next() {
		var label string
		var n int
		if err := rows.Scan(&label, &n); err != nil {
			return nil, err
		}
		counts[label] = n
	}
	return counts, rows.Err()
}
