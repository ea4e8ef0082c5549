package model

import "time"

// TrueMetrics are accuracy figures derived from reviewer-confirmed boxes.
type TrueMetrics struct {
	TruePositives  int `json:"true_positives"`
	FalsePositives int `json:"false_positives"`
	FalseNegatives int `json:"false_negatives"`
	TotalVerified  int `json:"total_verified"`

	Precision         float64 `json:"precision"`
	Recall            float64 `json:"recall"`
	F1Score           float64 `json:"f1_score"`
	FalsePositiveRate float64 `json:"false_positive_rate"` // percent

	// Copied from the most recently appended image.
	DetectorAvgConfidence float64 `json:"detector_avg_confidence"`
	DetectorBoxCount      int     `json:"detector_box_count"`
	DetectorFPS           float64 `json:"detector_fps"`
}

// Session groups every image and correction of one review workflow.
type Session struct {
	SessionID   string        `json:"session_id"`
	Images      []ImageRecord `json:"images"`
	TrueMetrics *TrueMetrics  `json:"true_metrics,omitempty"`
	CreatedAt   time.Time     `json:"created_at"`
	UpdatedAt   time.Time     `json:"updated_at"`

	// Version is owned by the store and used for optimistic concurrency.
	Version int64 `json:"-" yaml:"-" msgpack:"-"`
}

// NewSession returns an empty session.
func NewSession(id string, now time.Time) *Session {
	return &Session{
		SessionID: id,
		Images:    []ImageRecord{},
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// Image returns the record with the given id, or nil.
func (s *Session) Image(imageID string) *ImageRecord {
	for i := range s.Images {
		if s.Images[i].ImageID == imageID {
			return &s.Images[i]
		}
	}
	return nil
}

// AllBoxes flattens the boxes of every image in creation order.
func (s *Session) AllBoxes() []Box {
	boxes := make([]Box, 0, s.BoxCount())
	for _, img := range s.Images {
		boxes = append(boxes, img.Boxes...)
	}
	return boxes
}

// BoxCount is the sum of per-image box counts.
func (s *Session) BoxCount() int {
	n := 0
	for _, img := range s.Images {
		n += len(img.Boxes)
	}
	return n
}

// VerifiedCount counts reviewed boxes across the session.
func (s *Session) VerifiedCount() int {
	n := 0
	for _, img := range s.Images {
		for _, b := range img.Boxes {
			if b.IsVerified {
				n++
			}
		}
	}
	return n
}

// Normalize fills defaults for documents read from storage.
func (s *Session) Normalize() {
	if s.Images == nil {
		s.Images = []ImageRecord{}
	}
	for i := range s.Images {
		s.Images[i].Normalize()
	}
}

// Clone returns a deep copy that shares no slices or pointers with s.
func (s *Session) Clone() *Session {
	c := *s
	c.Images = make([]ImageRecord, len(s.Images))
	for i, img := range s.Images {
		c.Images[i] = img.Clone()
	}
	if s.TrueMetrics != nil {
		m := *s.TrueMetrics
		c.TrueMetrics = &m
	}
	return &c
}
