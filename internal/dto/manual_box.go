package dto

import "groundtruth/internal/model"

// ManualBoxRequest describes a box the reviewer drew for a missed object.
type ManualBoxRequest struct {
	X1      float64 `json:"x1"`
	Y1      float64 `json:"y1"`
	X2      float64 `json:"x2"`
	Y2      float64 `json:"y2"`
	Label   string  `json:"label"`
	ClassID int     `json:"class_id"`
	Notes   string  `json:"notes,omitempty"`
}

// ManualBoxResponse echoes the stored box with its assigned id.
type ManualBoxResponse struct {
	BoxID   string            `json:"box_id"`
	Box     model.Box         `json:"box"`
	Metrics model.TrueMetrics `json:"metrics"`
	Message string            `json:"message"`
}

// DeleteBoxResponse reports how many boxes remain on the image.
type DeleteBoxResponse struct {
	Message        string            `json:"message"`
	BoxID          string            `json:"box_id"`
	RemainingBoxes int               `json:"remaining_boxes"`
	Metrics        model.TrueMetrics `json:"metrics"`
}
