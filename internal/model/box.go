package model

import "time"

// Box is one detector proposal or manual annotation together with its review state.
type Box struct {
	X1         float64    `json:"x1"`
	Y1         float64    `json:"y1"`
	X2         float64    `json:"x2"`
	Y2         float64    `json:"y2"`
	Confidence float64    `json:"confidence"`
	Label      string     `json:"label"`
	ClassID    int        `json:"class_id"`
	BoxID      string     `json:"box_id"`
	IsVerified bool       `json:"is_verified"`
	IsCorrect  bool       `json:"is_correct"` // only meaningful when IsVerified
	IsManual   bool       `json:"is_manual"`
	VerifiedAt *time.Time `json:"verified_at,omitempty"`
	Notes      string     `json:"notes,omitempty"`
}

// NewDetectorBox returns an unverified detector box, provisionally marked correct.
func NewDetectorBox(x1, y1, x2, y2, confidence float64, label string, classID int) Box {
	return Box{
		X1:         x1,
		Y1:         y1,
		X2:         x2,
		Y2:         y2,
		Confidence: confidence,
		Label:      label,
		ClassID:    classID,
		IsCorrect:  true,
	}
}

func (b Box) clone() Box {
	if b.VerifiedAt != nil {
		t := *b.VerifiedAt
		b.VerifiedAt = &t
	}
	return b
}
