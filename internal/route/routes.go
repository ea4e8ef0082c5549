package route

import (
	"net/http"

	"groundtruth/internal/config"
	"groundtruth/internal/handler"
	"groundtruth/internal/logger"
	"groundtruth/internal/metrics"
	"groundtruth/internal/middleware"
	"groundtruth/internal/service/session"
)

// SetupRoutes registers the session API, the live metrics socket, the
// Prometheus endpoint and the log endpoints.
func SetupRoutes(svc *session.Service, hub handler.LiveHub, m *metrics.Metrics,
	cfg *config.Config, logger *logger.Logger) http.Handler {
	mux := http.NewServeMux()

	// Detector ingest
	mux.HandleFunc("POST /api/sessions/detections", handler.RecordDetectionHandler(svc, logger))
	mux.HandleFunc("POST /api/sessions/{session}/detections", handler.RecordDetectionHandler(svc, logger))

	// Review
	mux.HandleFunc("POST /api/sessions/{session}/validate", handler.ValidateHandler(svc, cfg, logger))
	mux.HandleFunc("POST /api/sessions/{session}/images/{image}/boxes", handler.AddManualBoxHandler(svc, logger))
	mux.HandleFunc("DELETE /api/sessions/{session}/images/{image}/boxes/{box}", handler.DeleteBoxHandler(svc, logger))

	// Sessions
	mux.HandleFunc("GET /api/sessions", handler.ListSessionsHandler(svc, logger))
	mux.HandleFunc("GET /api/sessions/{session}", handler.GetSessionHandler(svc, logger))
	mux.HandleFunc("DELETE /api/sessions/{session}", handler.DeleteSessionHandler(svc, logger))
	mux.HandleFunc("GET /api/sessions/{session}/metrics", handler.GetMetricsHandler(svc, logger))
	mux.HandleFunc("GET /api/sessions/{session}/export", handler.ExportSessionHandler(svc, logger))
	mux.HandleFunc("GET /api/sessions/{session}/live", handler.LiveMetricsHandler(svc, hub, logger))

	// Prometheus
	mux.Handle("GET /metrics", m.Handler())

	// Log endpoints
	mux.HandleFunc("GET /logs/{level}", handler.ShowLogsHandler(logger))
	mux.HandleFunc("POST /logs/{level}/clear", handler.ClearLogsHandler(logger))

	// Apply middleware
	return middleware.LoggingMiddleware(logger, mux)
}
