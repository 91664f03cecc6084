package store

import (
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
)

// Session is one run of the frame loop over a camera or a file.
type Session struct {
	ID         string     `json:"id"`
	Source     string     `json:"source"`
	GestureSet string     `json:"gesture_set"`
	StartedAt  time.Time  `json:"started_at"`
	EndedAt    *time.Time `json:"ended_at,omitempty"`
	Frames     int        `json:"frames"`
}

// SessionRepository provides access to recording sessions.
type SessionRepository struct {
	db *sql.DB
}

// Sessions returns the session repository for this store.
func (s *Store) Sessions() *SessionRepository {
	return &SessionRepository{db: s.db}
}

// Create inserts a session, assigning an ID and start time if unset.
func (r *SessionRepository) Create(sess *Session) error {
	if sess.ID == "" {
		sess.ID = uuid.NewString()
	}
	if sess.StartedAt.IsZero() {
		sess.StartedAt = time.Now()
	}
	if sess.GestureSet == "" {
		sess.GestureSet = "EIGHT"
	}

	_, err := r.db.Exec(
		`INSERT INTO sessions (id, source, gesture_set, started_at, frames) VALUES (?, ?, ?, ?, ?)`,
		sess.ID, sess.Source, sess.GestureSet, sess.StartedAt, sess.Frames,
	)
	return err
}

// End records the end time and frame count of a session.
func (r *SessionRepository) End(id string, frames int) error {
	result, err := r.db.Exec(
		`UPDATE sessions SET ended_at = ?, frames = ? WHERE id = ?`,
		time.Now(), frames, id,
	)
	if err != nil {
		return err
	}
	return affectedOne(result)
}

// GetByID retrieves a session by its ID.
func (r *SessionRepository) GetByID(id string) (*Session, error) {
	row := r.db.QueryRow(
		`SELECT id, source, gesture_set, started_at, ended_at, frames FROM sessions WHERE id = ?`, id,
	)
	sess, err := scanSession(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return sess, err
}

// List returns the most recent sessions first. limit <= 0 returns all.
func (r *SessionRepository) List(limit int) ([]*Session, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := r.db.Query(
		`SELECT id, source, gesture_set, started_at, ended_at, frames
		 FROM sessions ORDER BY started_at DESC LIMIT ?`, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	sessions := []*Session{}
	for rows.Next() {
		sess, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		sessions = append(sessions, sess)
	}
	return sessions, rows.Err()
}

// Delete removes a session and its events.
func (r *SessionRepository) Delete(id string) error {
	result, err := r.db.Exec(`DELETE FROM sessions WHERE id = ?`, id)
	if err != nil {
		return err
	}
	return affectedOne(result)
}

type scanner interface {
	Scan(dest ...any) error
}

func scanSession(row scanner) (*Session, error) {
	sess := &Session{}
	var ended sql.NullTime
	if err := row.Scan(&sess.ID, &sess.Source, &sess.GestureSet, &sess.StartedAt, &ended, &sess.Frames); err != nil {
		return nil, err
	}
	if ended.Valid {
		sess.EndedAt = &ended.Time
	}
	return sess, nil
}
