// Package validation merges reviewer corrections into a session's boxes.
package validation

import (
	"errors"
	"fmt"
	"time"

	"groundtruth/internal/boxid"
	"groundtruth/internal/dto"
	"groundtruth/internal/logger"
	"groundtruth/internal/model"
)

var (
	ErrImageNotFound = errors.New("image not found in session")
	ErrBoxNotFound   = errors.New("box not found in image")
)

// ManualBoxPolicy decides the review state of a freshly drawn manual box.
type ManualBoxPolicy string

const (
	// ManualVerifiedOnCreate marks manual boxes verified and correct at creation.
	// They never count as false negatives.
	ManualVerifiedOnCreate ManualBoxPolicy = "verified"
	// ManualPendingReview leaves manual boxes unverified; they count as false
	// negatives until a correction verifies them.
	ManualPendingReview ManualBoxPolicy = "pending"
)

// ParseManualBoxPolicy maps a config value to a policy. Empty means the default.
func ParseManualBoxPolicy(s string) (ManualBoxPolicy, error) {
	switch ManualBoxPolicy(s) {
	case "", ManualVerifiedOnCreate:
		return ManualVerifiedOnCreate, nil
	case ManualPendingReview:
		return ManualPendingReview, nil
	}
	return "", fmt.Errorf("unknown manual box policy %q", s)
}

// BatchResult describes what a committed batch did.
type BatchResult struct {
	Applied int
	Skipped []string
}

// Engine applies corrections to in-memory sessions. It performs no I/O.
type Engine struct {
	policy ManualBoxPolicy
	logger *logger.Logger
	now    func() time.Time
}

// NewEngine creates an engine using the given manual box policy.
func NewEngine(policy ManualBoxPolicy, logger *logger.Logger) *Engine {
	return &Engine{
		policy: policy,
		logger: logger,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// Policy returns the manual box policy in force.
func (e *Engine) Policy() ManualBoxPolicy {
	return e.policy
}

// ApplyBatch applies corrections strictly in order. A malformed box id or an
// unknown image aborts the whole batch and leaves s untouched. An unknown box
// on a known image is skipped and reported in the result.
func (e *Engine) ApplyBatch(s *model.Session, corrections []dto.BoxValidation) (BatchResult, error) {
	work := s.Clone()
	result := BatchResult{Skipped: []string{}}
	now := e.now()

	for i, c := range corrections {
		imageID, _, err := boxid.Parse(c.BoxID)
		if err != nil {
			return BatchResult{}, fmt.Errorf("correction %d: %w", i, err)
		}

		img := work.Image(imageID)
		if img == nil {
			return BatchResult{}, fmt.Errorf("correction %d: %w: %s", i, ErrImageNotFound, imageID)
		}

		pos := img.FindBox(c.BoxID)
		if pos < 0 {
			e.logger.Warning("Session %s: box %s not found in image %s, skipping", s.SessionID, c.BoxID, imageID)
			result.Skipped = append(result.Skipped, c.BoxID)
			continue
		}

		box := &img.Boxes[pos]
		box.IsVerified = true
		box.IsCorrect = c.IsCorrect
		if c.ConfidenceOverride != nil {
			box.Confidence = *c.ConfidenceOverride
		}
		if c.Notes != "" {
			box.Notes = c.Notes
		}
		verifiedAt := now
		box.VerifiedAt = &verifiedAt
		result.Applied++
	}

	*s = *work
	return result, nil
}

// AddManual appends a reviewer-drawn box to an image and returns its new id.
func (e *Engine) AddManual(s *model.Session, imageID string, box model.Box) (string, error) {
	img := s.Image(imageID)
	if img == nil {
		return "", fmt.Errorf("%w: %s", ErrImageNotFound, imageID)
	}

	box.IsManual = true
	box.IsCorrect = true
	box.IsVerified = false
	box.VerifiedAt = nil
	if e.policy == ManualVerifiedOnCreate {
		now := e.now()
		box.IsVerified = true
		box.VerifiedAt = &now
	}

	return img.AppendBox(box), nil
}

// Delete removes a box from an image. Deleting an already removed box
// returns ErrBoxNotFound.
func (e *Engine) Delete(s *model.Session, imageID, boxID string) error {
	img := s.Image(imageID)
	if img == nil {
		return fmt.Errorf("%w: %s", ErrImageNotFound, imageID)
	}
	if !img.RemoveBox(boxID) {
		return fmt.Errorf("%w: %s", ErrBoxNotFound, boxID)
	}
	return nil
}
