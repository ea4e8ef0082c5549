package retention

import (
	"time"

	"groundtruth/internal/config"
	"groundtruth/internal/logger"
	"groundtruth/internal/metrics"
	"groundtruth/internal/repository"
)

// RetentionService periodically removes sessions nobody touched for too long.
type RetentionService struct {
	repo     repository.SessionRepository
	maxAge   time.Duration
	interval time.Duration
	logger   *logger.Logger
	metrics  *metrics.Metrics
	now      func() time.Time
	stop     chan struct{}
}

// NewRetentionService reads the retention window from config. A zero window
// disables expiry.
func NewRetentionService(config *config.Config, repo repository.SessionRepository, logger *logger.Logger, m *metrics.Metrics) *RetentionService {
	interval := time.Duration(config.RetentionIntervalMinutes) * time.Minute
	if interval <= 0 {
		interval = 10 * time.Minute
	}
	return &RetentionService{
		repo:     repo,
		maxAge:   time.Duration(config.SessionRetentionHours) * time.Hour,
		interval: interval,
		logger:   logger,
		metrics:  m,
		now:      func() time.Time { return time.Now().UTC() },
		stop:     make(chan struct{}),
	}
}

// Enabled reports whether sessions expire at all.
func (s *RetentionService) Enabled() bool {
	return s.maxAge > 0
}

// Run starts a ticker loop that purges expired sessions until Stop is called.
func (s *RetentionService) Run() {
	if !s.Enabled() {
		return
	}

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			s.Purge()
		case <-s.stop:
			return
		}
	}
}

// Stop ends Run.
func (s *RetentionService) Stop() {
	close(s.stop)
}

// Purge deletes every session last updated before the retention window.
func (s *RetentionService) Purge() int64 {
	if !s.Enabled() {
		return 0
	}

	cutoff := s.now().Add(-s.maxAge)
	removed, err := s.repo.DeleteOlderThan(cutoff)
	if err != nil {
		s.metrics.StoreErrors.Add(1)
		s.logger.Error("Error removing sessions idle since %s: %v", cutoff.Format(time.RFC3339), err)
		return 0
	}

	if removed > 0 {
		s.metrics.SessionsExpired.Add(uint64(removed))
		s.logger.Info("Removed %d sessions idle since %s", removed, cutoff.Format(time.RFC3339))
	}
	return removed
}
