package dto

import (
	"encoding/json"
	"time"
)

// SessionSummary is the list view of a stored session.
type SessionSummary struct {
	SessionID     string    `json:"session_id"`
	ImageCount    int       `json:"image_count"`
	BoxCount      int       `json:"box_count"`
	VerifiedCount int       `json:"verified_count"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// MarshalJSON formats the timestamps the way the review UI displays them.
func (s SessionSummary) MarshalJSON() ([]byte, error) {
	type Alias SessionSummary
	return json.Marshal(&struct {
		CreatedAt string `json:"created_at"`
		UpdatedAt string `json:"updated_at"`
		Alias
	}{
		CreatedAt: s.CreatedAt.Format("02-01-2006 15:04"),
		UpdatedAt: s.UpdatedAt.Format("02-01-2006 15:04"),
		Alias:     (Alias)(s),
	})
}
