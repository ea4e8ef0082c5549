package dto

// DetectionResult is one raw box proposed by the detector.
type DetectionResult struct {
	X1         float64 `json:"x1"`
	Y1         float64 `json:"y1"`
	X2         float64 `json:"x2"`
	Y2         float64 `json:"y2"`
	Confidence float64 `json:"confidence"`
	Label      string  `json:"label"`
	ClassID    int     `json:"class_id"`
}

// DetectionResultWithID is a detector box echoed back with its assigned identifier.
type DetectionResultWithID struct {
	DetectionResult
	BoxID string `json:"box_id"`
}
