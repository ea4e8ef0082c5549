package model

import (
	"time"

	"groundtruth/internal/boxid"
)

// DetectorMetrics are the raw statistics reported for one detector invocation.
type DetectorMetrics struct {
	FPS           float64 `json:"fps"`
	AvgConfidence float64 `json:"avg_confidence"`
	BoxCount      int     `json:"box_count"`
}

// ImageRecord is the result set of one detector run on one image.
type ImageRecord struct {
	ImageID         string          `json:"image_id"`
	Timestamp       time.Time       `json:"timestamp"`
	Boxes           []Box           `json:"boxes"`
	DetectorMetrics DetectorMetrics `json:"detector_metrics"`
	// NextBoxIndex only grows, so box ids are never handed out twice.
	NextBoxIndex int `json:"next_box_index"`
}

// NewImageRecord assigns box ids 0..n-1 to the detector boxes and wraps them in a record.
func NewImageRecord(imageID string, ts time.Time, boxes []Box, metrics DetectorMetrics) ImageRecord {
	record := ImageRecord{
		ImageID:         imageID,
		Timestamp:       ts,
		Boxes:           make([]Box, 0, len(boxes)),
		DetectorMetrics: metrics,
	}
	for _, b := range boxes {
		record.AppendBox(b)
	}
	return record
}

// AppendBox gives the box the next free id for this image and appends it.
func (r *ImageRecord) AppendBox(b Box) string {
	b.BoxID = boxid.Format(r.ImageID, r.NextBoxIndex)
	r.NextBoxIndex++
	r.Boxes = append(r.Boxes, b)
	return b.BoxID
}

// FindBox returns the position of the box with exactly this id, or -1.
func (r *ImageRecord) FindBox(id string) int {
	for i := range r.Boxes {
		if r.Boxes[i].BoxID == id {
			return i
		}
	}
	return -1
}

// RemoveBox deletes the box with the given id and reports whether it existed.
func (r *ImageRecord) RemoveBox(id string) bool {
	i := r.FindBox(id)
	if i < 0 {
		return false
	}
	r.Boxes = append(r.Boxes[:i], r.Boxes[i+1:]...)
	return true
}

// Normalize repairs NextBoxIndex for records written before the counter existed.
func (r *ImageRecord) Normalize() {
	if r.Boxes == nil {
		r.Boxes = []Box{}
	}
	next := r.NextBoxIndex
	if len(r.Boxes) > next {
		next = len(r.Boxes)
	}
	for _, b := range r.Boxes {
		if img, idx, err := boxid.Parse(b.BoxID); err == nil && img == r.ImageID && idx+1 > next {
			next = idx + 1
		}
	}
	r.NextBoxIndex = next
}

// Clone returns a deep copy of the record.
func (r ImageRecord) Clone() ImageRecord {
	boxes := make([]Box, len(r.Boxes))
	for i, b := range r.Boxes {
		boxes[i] = b.clone()
	}
	r.Boxes = boxes
	return r
}
