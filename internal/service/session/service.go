// Package session orchestrates the review workflow on top of the session store.
package session

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"groundtruth/internal/boxid"
	"groundtruth/internal/dto"
	"groundtruth/internal/logger"
	"groundtruth/internal/metrics"
	"groundtruth/internal/model"
	"groundtruth/internal/repository"
	"groundtruth/internal/service/validation"
	"groundtruth/internal/truemetrics"

	"github.com/google/uuid"
	"github.com/vmihailenco/msgpack/v5"
	"gopkg.in/yaml.v3"
)

var (
	// ErrSessionFull is returned when a session already holds the maximum number of images.
	ErrSessionFull = errors.New("session image limit reached")
	// ErrImageExists is returned when a detector run reuses an image id within a session.
	ErrImageExists = errors.New("image already recorded in session")
	// ErrUnsupportedFormat is returned by Export for unknown formats.
	ErrUnsupportedFormat = errors.New("unsupported export format")
)

// Live update events.
const (
	EventDetection  = "detection"
	EventValidation = "validation"
	EventManualBox  = "manual_box"
	EventBoxDeleted = "box_deleted"
)

// Broadcaster delivers live updates to viewers of a session.
type Broadcaster interface {
	Broadcast(sessionID string, payload []byte)
}

// Service is the entry point for every operation on sessions.
type Service struct {
	repo      repository.SessionRepository
	engine    *validation.Engine
	hub       Broadcaster
	metrics   *metrics.Metrics
	logger    *logger.Logger
	maxImages int
	now       func() time.Time
}

// NewService wires the store, the correction engine and the live hub.
// maxImages <= 0 disables the per-session image cap.
func NewService(repo repository.SessionRepository, engine *validation.Engine, hub Broadcaster,
	m *metrics.Metrics, logger *logger.Logger, maxImages int) *Service {
	return &Service{
		repo:      repo,
		engine:    engine,
		hub:       hub,
		metrics:   m,
		logger:    logger,
		maxImages: maxImages,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// DetectorMetricsFor derives the raw statistics of one detector run.
func DetectorMetricsFor(boxes []dto.DetectionResult, elapsedSeconds float64) model.DetectorMetrics {
	m := model.DetectorMetrics{BoxCount: len(boxes)}
	if elapsedSeconds > 0 {
		m.FPS = 1 / elapsedSeconds
	}
	if len(boxes) > 0 {
		sum := 0.0
		for _, b := range boxes {
			sum += b.Confidence
		}
		m.AvgConfidence = truemetrics.Round(sum/float64(len(boxes)), 3)
	}
	return m
}

// RecordDetection appends one detector run as a new image. Empty session or
// image ids are replaced with generated ones.
func (s *Service) RecordDetection(sessionID string, req dto.DetectionRequest) (*dto.DetectionResponse, error) {
	if sessionID == "" {
		sessionID = uuid.NewString()
	}
	imageID := req.ImageID
	if imageID == "" {
		imageID = uuid.NewString()
	}

	boxes := make([]model.Box, 0, len(req.Boxes))
	for _, d := range req.Boxes {
		boxes = append(boxes, model.NewDetectorBox(d.X1, d.Y1, d.X2, d.Y2, d.Confidence, d.Label, d.ClassID))
	}
	detectorMetrics := DetectorMetricsFor(req.Boxes, req.ElapsedSeconds)
	record := model.NewImageRecord(imageID, s.now(), boxes, detectorMetrics)

	updated, err := s.repo.Update(sessionID, true, func(sess *model.Session) error {
		if s.maxImages > 0 && len(sess.Images) >= s.maxImages {
			return fmt.Errorf("%w: %s holds %d images", ErrSessionFull, sessionID, len(sess.Images))
		}
		if sess.Image(imageID) != nil {
			return fmt.Errorf("%w: %s", ErrImageExists, imageID)
		}
		sess.Images = append(sess.Images, record)
		refreshMetrics(sess)
		return nil
	})
	if err != nil {
		if errors.Is(err, ErrSessionFull) {
			s.metrics.SessionsFull.Add(1)
		}
		s.track(err)
		return nil, err
	}

	s.metrics.ImagesRecorded.Add(1)
	s.metrics.BoxesRecorded.Add(uint64(len(boxes)))
	s.logger.Info("Session %s: recorded image %s with %d boxes", sessionID, imageID, len(boxes))
	s.publish(updated, EventDetection)

	resp := &dto.DetectionResponse{
		SessionID: sessionID,
		ImageID:   imageID,
		Boxes:     make([]dto.DetectionResultWithID, len(record.Boxes)),
		Count:     len(record.Boxes),
		Metrics:   detectorMetrics,
	}
	for i, b := range record.Boxes {
		resp.Boxes[i] = dto.DetectionResultWithID{DetectionResult: req.Boxes[i], BoxID: b.BoxID}
	}
	return resp, nil
}

// Validate applies a batch of reviewer verdicts and returns the new metrics.
func (s *Service) Validate(sessionID string, corrections []dto.BoxValidation) (*dto.ValidationResponse, error) {
	var result validation.BatchResult

	updated, err := s.repo.Update(sessionID, false, func(sess *model.Session) error {
		var err error
		result, err = s.engine.ApplyBatch(sess, corrections)
		if err != nil {
			return err
		}
		refreshMetrics(sess)
		return nil
	})
	if err != nil {
		if errors.Is(err, boxid.ErrMalformed) || errors.Is(err, validation.ErrImageNotFound) {
			s.metrics.BatchesRejected.Add(1)
			s.logger.Warning("Session %s: validation batch rejected: %v", sessionID, err)
		}
		s.track(err)
		return nil, err
	}

	s.metrics.BatchesApplied.Add(1)
	s.metrics.CorrectionsApplied.Add(uint64(result.Applied))
	s.metrics.CorrectionsSkipped.Add(uint64(len(result.Skipped)))
	s.logger.Info("Session %s: applied %d corrections, skipped %d", sessionID, result.Applied, len(result.Skipped))
	s.publish(updated, EventValidation)

	return &dto.ValidationResponse{
		SessionID:     sessionID,
		Metrics:       *updated.TrueMetrics,
		VerifiedCount: updated.VerifiedCount(),
		TotalImages:   len(updated.Images),
		TotalBoxes:    updated.BoxCount(),
		Skipped:       result.Skipped,
	}, nil
}

// GetSession returns the session with freshly computed metrics. Once any box
// has been reviewed, the recomputed metrics are persisted as well.
func (s *Service) GetSession(sessionID string) (*model.Session, error) {
	sess, err := s.repo.Load(sessionID)
	if err != nil {
		s.track(err)
		return nil, err
	}

	if sess.VerifiedCount() == 0 {
		refreshMetrics(sess)
		return sess, nil
	}

	fresh := truemetrics.Calculate(sess.Images)
	if sess.TrueMetrics != nil && *sess.TrueMetrics == fresh {
		return sess, nil
	}

	updated, err := s.repo.Update(sessionID, false, func(sess *model.Session) error {
		refreshMetrics(sess)
		return nil
	})
	if err != nil {
		s.track(err)
		return nil, err
	}
	return updated, nil
}

// Metrics computes the session's metrics without storing anything.
func (s *Service) Metrics(sessionID string) (model.TrueMetrics, error) {
	sess, err := s.repo.Load(sessionID)
	if err != nil {
		s.track(err)
		return model.TrueMetrics{}, err
	}
	return truemetrics.Calculate(sess.Images), nil
}

// AddManualBox stores a box the reviewer drew on an image.
func (s *Service) AddManualBox(sessionID, imageID string, req dto.ManualBoxRequest) (*dto.ManualBoxResponse, error) {
	var (
		boxID  string
		stored model.Box
	)

	updated, err := s.repo.Update(sessionID, false, func(sess *model.Session) error {
		var err error
		boxID, err = s.engine.AddManual(sess, imageID, model.Box{
			X1:         req.X1,
			Y1:         req.Y1,
			X2:         req.X2,
			Y2:         req.Y2,
			Confidence: 1,
			Label:      req.Label,
			ClassID:    req.ClassID,
			Notes:      req.Notes,
		})
		if err != nil {
			return err
		}
		img := sess.Image(imageID)
		stored = img.Boxes[img.FindBox(boxID)]
		refreshMetrics(sess)
		return nil
	})
	if err != nil {
		s.track(err)
		return nil, err
	}

	s.metrics.ManualBoxesAdded.Add(1)
	s.logger.Info("Session %s: manual box %s added to image %s", sessionID, boxID, imageID)
	s.publish(updated, EventManualBox)

	return &dto.ManualBoxResponse{
		BoxID:   boxID,
		Box:     stored,
		Metrics: *updated.TrueMetrics,
		Message: "Manual box added",
	}, nil
}

// DeleteBox removes a box from an image.
func (s *Service) DeleteBox(sessionID, imageID, boxID string) (*dto.DeleteBoxResponse, error) {
	var remaining int

	updated, err := s.repo.Update(sessionID, false, func(sess *model.Session) error {
		if err := s.engine.Delete(sess, imageID, boxID); err != nil {
			return err
		}
		remaining = len(sess.Image(imageID).Boxes)
		refreshMetrics(sess)
		return nil
	})
	if err != nil {
		s.track(err)
		return nil, err
	}

	s.metrics.BoxesDeleted.Add(1)
	s.logger.Info("Session %s: box %s deleted, %d boxes left on image %s", sessionID, boxID, remaining, imageID)
	s.publish(updated, EventBoxDeleted)

	return &dto.DeleteBoxResponse{
		Message:        "Box deleted",
		BoxID:          boxID,
		RemainingBoxes: remaining,
		Metrics:        *updated.TrueMetrics,
	}, nil
}

// List returns one page of session summaries.
func (s *Service) List(filter *dto.SessionFilter, page, limit int) (*dto.SessionsData, error) {
	filter.Limit = limit
	filter.Offset = (page - 1) * limit

	sessions, err := s.repo.List(filter)
	if err != nil {
		s.track(err)
		return nil, err
	}

	total, err := s.repo.Count(filter)
	if err != nil {
		s.logger.Error("Error counting sessions: %v", err)
		total = len(sessions)
	}

	return &dto.SessionsData{
		Sessions:    sessions,
		Length:      total,
		TotalPages:  (total + limit - 1) / limit,
		CurrentPage: page,
		Limit:       limit,
	}, nil
}

// DeleteSession drops a session and all of its images.
func (s *Service) DeleteSession(sessionID string) error {
	if err := s.repo.Delete(sessionID); err != nil {
		s.track(err)
		return err
	}
	s.logger.Info("Session %s deleted", sessionID)
	return nil
}

// Export serializes the session document as json, yaml or msgpack and
// returns the payload with its content type.
func (s *Service) Export(sessionID, format string) ([]byte, string, error) {
	switch format {
	case "", "json", "yaml", "msgpack":
	default:
		return nil, "", fmt.Errorf("%w: %q", ErrUnsupportedFormat, format)
	}

	sess, err := s.GetSession(sessionID)
	if err != nil {
		return nil, "", err
	}

	switch format {
	case "yaml":
		// Go through JSON so keys match the stored document.
		raw, err := json.Marshal(sess)
		if err != nil {
			return nil, "", err
		}
		var doc interface{}
		if err := json.Unmarshal(raw, &doc); err != nil {
			return nil, "", err
		}
		data, err := yaml.Marshal(doc)
		return data, "application/yaml", err

	case "msgpack":
		var buf bytes.Buffer
		enc := msgpack.NewEncoder(&buf)
		enc.SetCustomStructTag("json")
		if err := enc.Encode(sess); err != nil {
			return nil, "", err
		}
		return buf.Bytes(), "application/msgpack", nil
	}

	data, err := json.MarshalIndent(sess, "", "  ")
	return data, "application/json", err
}

func refreshMetrics(sess *model.Session) {
	m := truemetrics.Calculate(sess.Images)
	sess.TrueMetrics = &m
}

func (s *Service) publish(sess *model.Session, event string) {
	if s.hub == nil {
		return
	}
	payload, err := json.Marshal(dto.LiveUpdate{
		SessionID: sess.SessionID,
		Event:     event,
		Metrics:   *sess.TrueMetrics,
	})
	if err != nil {
		s.logger.Error("Error encoding live update for %s: %v", sess.SessionID, err)
		return
	}
	s.hub.Broadcast(sess.SessionID, payload)
}

// track counts failures that are not caused by the request itself.
func (s *Service) track(err error) {
	switch {
	case errors.Is(err, repository.ErrSessionNotFound),
		errors.Is(err, validation.ErrImageNotFound),
		errors.Is(err, validation.ErrBoxNotFound),
		errors.Is(err, boxid.ErrMalformed),
		errors.Is(err, ErrSessionFull),
		errors.Is(err, ErrImageExists):
		return
	}
	s.metrics.StoreErrors.Add(1)
	s.logger.Error("Session store failure: %v", err)
}
