package sqlite

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"groundtruth/internal/dto"
	"groundtruth/internal/model"
	"groundtruth/internal/repository"
)

// maxUpdateRetries bounds how often Update re-runs after a version conflict.
const maxUpdateRetries = 3

// SessionRepository implements repository.SessionRepository for SQLite.
// Each session is one JSON document; summary columns exist only for listing.
type SessionRepository struct {
	db    *DB
	locks *keyedMutex
	now   func() time.Time
}

// NewSessionRepository creates a new SQLite session repository.
func NewSessionRepository(db *DB) *SessionRepository {
	return &SessionRepository{
		db:    db,
		locks: newKeyedMutex(),
		now:   func() time.Time { return time.Now().UTC() },
	}
}

// Load retrieves a session by its id.
func (r *SessionRepository) Load(sessionID string) (*model.Session, error) {
	r.db.RLock()
	defer r.db.RUnlock()

	var (
		version  int64
		document string
	)
	err := r.db.Conn().QueryRow(`
		SELECT version, document FROM sessions WHERE session_id = ?
	`, sessionID).Scan(&version, &document)

	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("%w: %s", repository.ErrSessionNotFound, sessionID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load session: %w", err)
	}

	var session model.Session
	if err := json.Unmarshal([]byte(document), &session); err != nil {
		return nil, fmt.Errorf("failed to decode session %s: %w", sessionID, err)
	}
	if session.SessionID != sessionID {
		return nil, fmt.Errorf("session document %s carries id %q", sessionID, session.SessionID)
	}
	session.Normalize()
	session.Version = version

	return &session, nil
}

// Save replaces the stored document. A session with Version 0 must not exist yet.
// On success session.Version is advanced to the stored version.
func (r *SessionRepository) Save(session *model.Session) error {
	document, err := json.Marshal(session)
	if err != nil {
		return fmt.Errorf("failed to encode session: %w", err)
	}

	r.db.Lock()
	defer r.db.Unlock()

	var result sql.Result
	if session.Version == 0 {
		result, err = r.db.Conn().Exec(`
			INSERT INTO sessions (session_id, version, document, image_count, box_count, verified_count, created_at, updated_at)
			VALUES (?, 1, ?, ?, ?, ?, ?, ?)
			ON CONFLICT(session_id) DO NOTHING
		`, session.SessionID, string(document), len(session.Images), session.BoxCount(), session.VerifiedCount(),
			session.CreatedAt.UTC(), session.UpdatedAt.UTC())
	} else {
		result, err = r.db.Conn().Exec(`
			UPDATE sessions
			SET version = version + 1, document = ?, image_count = ?, box_count = ?, verified_count = ?, updated_at = ?
			WHERE session_id = ? AND version = ?
		`, string(document), len(session.Images), session.BoxCount(), session.VerifiedCount(),
			session.UpdatedAt.UTC(), session.SessionID, session.Version)
	}
	if err != nil {
		return fmt.Errorf("failed to save session: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to save session: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("%w: %s at version %d", repository.ErrVersionConflict, session.SessionID, session.Version)
	}

	session.Version++
	return nil
}

// Update performs a locked load-modify-save cycle for one session id.
func (r *SessionRepository) Update(sessionID string, create bool, fn func(*model.Session) error) (*model.Session, error) {
	unlock := r.locks.Lock(sessionID)
	defer unlock()

	for attempt := 0; attempt < maxUpdateRetries; attempt++ {
		session, err := r.Load(sessionID)
		if errors.Is(err, repository.ErrSessionNotFound) && create {
			session = model.NewSession(sessionID, r.now())
		} else if err != nil {
			return nil, err
		}

		if err := fn(session); err != nil {
			return nil, err
		}
		session.UpdatedAt = r.now()

		err = r.Save(session)
		if errors.Is(err, repository.ErrVersionConflict) {
			continue
		}
		if err != nil {
			return nil, err
		}
		return session, nil
	}

	return nil, fmt.Errorf("%w: %s after %d attempts", repository.ErrVersionConflict, sessionID, maxUpdateRetries)
}

// AppendImage loads or creates the session and appends one image record.
func (r *SessionRepository) AppendImage(sessionID string, image model.ImageRecord) (*model.Session, error) {
	return r.Update(sessionID, true, func(s *model.Session) error {
		s.Images = append(s.Images, image.Clone())
		return nil
	})
}

// List returns session summaries, most recently updated first.
func (r *SessionRepository) List(filter *dto.SessionFilter) ([]dto.SessionSummary, error) {
	r.db.RLock()
	defer r.db.RUnlock()

	query := `
		SELECT session_id, image_count, box_count, verified_count, created_at, updated_at
		FROM sessions
		WHERE 1=1
	`
	where, args := filterClause(filter)
	query += where + " ORDER BY updated_at DESC"

	if filter.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, filter.Limit)
		if filter.Offset > 0 {
			query += " OFFSET ?"
			args = append(args, filter.Offset)
		}
	}

	rows, err := r.db.Conn().Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query sessions: %w", err)
	}
	defer rows.Close()

	sessions := []dto.SessionSummary{}
	for rows.Next() {
		var s dto.SessionSummary
		if err := rows.Scan(&s.SessionID, &s.ImageCount, &s.BoxCount, &s.VerifiedCount, &s.CreatedAt, &s.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan session: %w", err)
		}
		sessions = append(sessions, s)
	}

	return sessions, rows.Err()
}

// Count returns the number of sessions matching the filter.
func (r *SessionRepository) Count(filter *dto.SessionFilter) (int, error) {
	r.db.RLock()
	defer r.db.RUnlock()

	where, args := filterClause(filter)

	var count int
	if err := r.db.Conn().QueryRow(`SELECT COUNT(*) FROM sessions WHERE 1=1`+where, args...).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count sessions: %w", err)
	}
	return count, nil
}

// Delete removes a session document.
func (r *SessionRepository) Delete(sessionID string) error {
	unlock := r.locks.Lock(sessionID)
	defer unlock()

	r.db.Lock()
	defer r.db.Unlock()

	result, err := r.db.Conn().Exec(`DELETE FROM sessions WHERE session_id = ?`, sessionID)
	if err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}
	if n, err := result.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("%w: %s", repository.ErrSessionNotFound, sessionID)
	}
	return nil
}

// DeleteOlderThan removes sessions not updated since cutoff.
func (r *SessionRepository) DeleteOlderThan(cutoff time.Time) (int64, error) {
	r.db.Lock()
	defer r.db.Unlock()

	result, err := r.db.Conn().Exec(`DELETE FROM sessions WHERE updated_at < ?`, cutoff.UTC())
	if err != nil {
		return 0, fmt.Errorf("failed to delete expired sessions: %w", err)
	}
	return result.RowsAffected()
}

func filterClause(filter *dto.SessionFilter) (string, []interface{}) {
	query := ""
	args := []interface{}{}

	if !filter.UpdatedAfter.IsZero() {
		query += " AND updated_at >= ?"
		args = append(args, filter.UpdatedAfter.UTC())
	}

	if !filter.UpdatedBefore.IsZero() {
		query += " AND updated_at <= ?"
		args = append(args, filter.UpdatedBefore.UTC())
	}

	return query, args
}
