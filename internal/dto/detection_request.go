package dto

import "groundtruth/internal/model"

// DetectionRequest holds the output of one detector run on one image.
// ImageID may be empty, in which case one is generated.
type DetectionRequest struct {
	ImageID        string            `json:"image_id"`
	Boxes          []DetectionResult `json:"boxes"`
	ElapsedSeconds float64           `json:"elapsed_seconds"`
}

// DetectionResponse is returned after a detector run has been recorded.
type DetectionResponse struct {
	SessionID string                  `json:"session_id"`
	ImageID   string                  `json:"image_id"`
	Boxes     []DetectionResultWithID `json:"boxes"`
	Count     int                     `json:"count"`
	Metrics   model.DetectorMetrics   `json:"metrics"`
}
