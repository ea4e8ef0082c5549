// Package legacy reads session documents written by the file based store,
// where each session lived in <session_id>.json and detector statistics
// were kept under "yolo_metrics".
package legacy

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"groundtruth/internal/model"
	"groundtruth/internal/truemetrics"
)

type document struct {
	SessionID string  `json:"session_id"`
	Images    []image `json:"images"`
}

type image struct {
	ImageID     string                `json:"image_id"`
	Timestamp   string                `json:"timestamp"`
	Boxes       []box                 `json:"boxes"`
	YoloMetrics model.DetectorMetrics `json:"yolo_metrics"`
}

type box struct {
	X1         float64 `json:"x1"`
	Y1         float64 `json:"y1"`
	X2         float64 `json:"x2"`
	Y2         float64 `json:"y2"`
	Confidence float64 `json:"confidence"`
	Label      string  `json:"label"`
	ClassID    int     `json:"class_id"`
	BoxID      *string `json:"box_id"`
	IsVerified bool    `json:"is_verified"`
	IsCorrect  *bool   `json:"is_correct"`
	IsManual   bool    `json:"is_manual"`
	VerifiedAt *string `json:"verified_at"`
	Notes      *string `json:"notes"`
}

// Timestamps were written either as ISO 8601 or with Python's str(), mostly without a zone.
var timeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999",
	"2006-01-02 15:04:05.999999-07:00",
	"2006-01-02 15:04:05.999999",
}

// ParseTime reads a legacy timestamp. Values without a zone are UTC.
func ParseTime(v string) (time.Time, error) {
	v = strings.TrimSpace(v)
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, v); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognised timestamp %q", v)
}

// Decode converts a legacy document into a session. fallbackID is used when
// the document carries no session id; modified becomes the update time.
// Stored metrics are ignored and recomputed.
func Decode(data []byte, fallbackID string, modified time.Time) (*model.Session, error) {
	var doc document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to decode legacy session: %w", err)
	}

	id := doc.SessionID
	if id == "" {
		id = fallbackID
	}
	if id == "" {
		return nil, fmt.Errorf("legacy session has no id")
	}

	sess := model.NewSession(id, modified.UTC())
	for i, img := range doc.Images {
		if img.ImageID == "" {
			return nil, fmt.Errorf("image %d of session %s has no id", i, id)
		}
		if sess.Image(img.ImageID) != nil {
			return nil, fmt.Errorf("session %s lists image %s twice", id, img.ImageID)
		}

		record, err := convertImage(img, modified)
		if err != nil {
			return nil, fmt.Errorf("session %s: %w", id, err)
		}
		if record.Timestamp.Before(sess.CreatedAt) {
			sess.CreatedAt = record.Timestamp
		}
		sess.Images = append(sess.Images, record)
	}

	m := truemetrics.Calculate(sess.Images)
	sess.TrueMetrics = &m
	return sess, nil
}

func convertImage(img image, modified time.Time) (model.ImageRecord, error) {
	ts := modified.UTC()
	if img.Timestamp != "" {
		t, err := ParseTime(img.Timestamp)
		if err != nil {
			return model.ImageRecord{}, fmt.Errorf("image %s: %w", img.ImageID, err)
		}
		ts = t
	}

	record := model.ImageRecord{
		ImageID:         img.ImageID,
		Timestamp:       ts,
		Boxes:           []model.Box{},
		DetectorMetrics: img.YoloMetrics,
	}

	// Ids could be handed out twice after a delete; repeats are renumbered
	// like boxes that never had one.
	seen := make(map[string]bool)
	var unnamed []model.Box
	for _, b := range img.Boxes {
		converted, err := convertBox(b)
		if err != nil {
			return model.ImageRecord{}, fmt.Errorf("image %s: %w", img.ImageID, err)
		}
		if converted.BoxID == "" || seen[converted.BoxID] {
			converted.BoxID = ""
			unnamed = append(unnamed, converted)
			continue
		}
		seen[converted.BoxID] = true
		record.Boxes = append(record.Boxes, converted)
	}

	// Counter first, so renumbered boxes cannot collide with existing ones.
	record.Normalize()
	for _, b := range unnamed {
		record.AppendBox(b)
	}
	return record, nil
}

func convertBox(b box) (model.Box, error) {
	out := model.NewDetectorBox(b.X1, b.Y1, b.X2, b.Y2, b.Confidence, b.Label, b.ClassID)
	out.IsVerified = b.IsVerified
	out.IsManual = b.IsManual
	if b.IsCorrect != nil {
		out.IsCorrect = *b.IsCorrect
	}
	if b.BoxID != nil {
		out.BoxID = *b.BoxID
	}
	if b.Notes != nil {
		out.Notes = *b.Notes
	}
	if b.VerifiedAt != nil && *b.VerifiedAt != "" {
		t, err := ParseTime(*b.VerifiedAt)
		if err != nil {
			return model.Box{}, fmt.Errorf("box %s: %w", out.BoxID, err)
		}
		out.VerifiedAt = &t
	}
	return out, nil
}
