package dto

import "groundtruth/internal/model"

// LiveUpdate is pushed to live viewers after every change to a session.
type LiveUpdate struct {
	SessionID string            `json:"session_id"`
	Event     string            `json:"event"`
	Metrics   model.TrueMetrics `json:"metrics"`
}
