package dto

import "groundtruth/internal/model"

// BoxValidation is a reviewer's verdict on one box.
type BoxValidation struct {
	BoxID              string   `json:"box_id"`
	IsCorrect          bool     `json:"is_correct"`
	ConfidenceOverride *float64 `json:"confidence_override,omitempty"`
	Notes              string   `json:"notes,omitempty"`
}

// ValidationRequest is a batch of verdicts applied in order.
type ValidationRequest struct {
	Validations []BoxValidation `json:"validations"`
}

// ValidationResponse reports session-wide metrics after a batch was committed.
type ValidationResponse struct {
	SessionID     string            `json:"session_id"`
	Metrics       model.TrueMetrics `json:"metrics"`
	VerifiedCount int               `json:"verified_count"`
	TotalImages   int               `json:"total_images"`
	TotalBoxes    int               `json:"total_boxes"`
	Skipped       []string          `json:"skipped"`
}
