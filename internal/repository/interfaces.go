package repository

import (
	"errors"
	"time"

	"groundtruth/internal/dto"
	"groundtruth/internal/model"
)

var (
	// ErrSessionNotFound is returned when no document exists for a session id.
	ErrSessionNotFound = errors.New("session not found")
	// ErrVersionConflict is returned by Save when the stored version moved on.
	ErrVersionConflict = errors.New("session was modified concurrently")
)

// SessionRepository stores whole session aggregates keyed by session id.
type SessionRepository interface {
	// Read operations
	Load(sessionID string) (*model.Session, error)
	List(filter *dto.SessionFilter) ([]dto.SessionSummary, error)
	Count(filter *dto.SessionFilter) (int, error)

	// Write operations. Save replaces the stored aggregate wholesale and fails
	// with ErrVersionConflict if session.Version is stale.
	Save(session *model.Session) error
	AppendImage(sessionID string, image model.ImageRecord) (*model.Session, error)

	// Update runs load, fn and save as one step for this session id. With
	// create set, a missing session starts empty instead of failing. Nothing is
	// saved when fn returns an error.
	Update(sessionID string, create bool, fn func(*model.Session) error) (*model.Session, error)

	// Delete operations
	Delete(sessionID string) error
	DeleteOlderThan(cutoff time.Time) (int64, error)
}
