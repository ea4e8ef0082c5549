package handler

import (
	"net/http"
	"strconv"
	"time"

	"groundtruth/internal/config"
	"groundtruth/internal/dto"
	"groundtruth/internal/logger"
	"groundtruth/internal/service/session"
)

const maxBodyBytes = 1 << 20

// RecordDetectionHandler stores one detector run. Without a session path
// value a new session is started.
func RecordDetectionHandler(svc *session.Service, logger *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sessionID := r.PathValue("session")
		if sessionID != "" {
			if err := checkSessionID(sessionID); err != nil {
				writeError(w, logger, err)
				return
			}
		}

		var req dto.DetectionRequest
		if err := decodeJSON(w, r, &req); err != nil {
			writeError(w, logger, err)
			return
		}
		if err := checkDetectionRequest(&req); err != nil {
			writeError(w, logger, err)
			return
		}

		resp, err := svc.RecordDetection(sessionID, req)
		if err != nil {
			writeError(w, logger, err)
			return
		}
		writeJSON(w, logger, http.StatusCreated, resp)
	}
}

// ValidateHandler applies a batch of reviewer verdicts.
func ValidateHandler(svc *session.Service, cfg *config.Config, logger *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sessionID := r.PathValue("session")
		if err := checkSessionID(sessionID); err != nil {
			writeError(w, logger, err)
			return
		}

		var req dto.ValidationRequest
		if err := decodeJSON(w, r, &req); err != nil {
			writeError(w, logger, err)
			return
		}
		if err := checkValidationRequest(&req, cfg.MaxBatchSize); err != nil {
			writeError(w, logger, err)
			return
		}

		resp, err := svc.Validate(sessionID, req.Validations)
		if err != nil {
			writeError(w, logger, err)
			return
		}
		writeJSON(w, logger, http.StatusOK, resp)
	}
}

// GetSessionHandler returns the whole session with current metrics.
func GetSessionHandler(svc *session.Service, logger *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sessionID := r.PathValue("session")
		if err := checkSessionID(sessionID); err != nil {
			writeError(w, logger, err)
			return
		}

		sess, err := svc.GetSession(sessionID)
		if err != nil {
			writeError(w, logger, err)
			return
		}
		writeJSON(w, logger, http.StatusOK, sess)
	}
}

// GetMetricsHandler returns only the session's metrics.
func GetMetricsHandler(svc *session.Service, logger *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sessionID := r.PathValue("session")
		if err := checkSessionID(sessionID); err != nil {
			writeError(w, logger, err)
			return
		}

		metrics, err := svc.Metrics(sessionID)
		if err != nil {
			writeError(w, logger, err)
			return
		}
		writeJSON(w, logger, http.StatusOK, metrics)
	}
}

// ListSessionsHandler returns a page of session summaries, newest first.
func ListSessionsHandler(svc *session.Service, logger *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		page := atoiDefault(q.Get("page"), 1)
		limit := atoiDefault(q.Get("limit"), 24)

		filter := &dto.SessionFilter{
			UpdatedAfter:  parseDate(q.Get("dateAfter")),
			UpdatedBefore: endOfDay(parseDate(q.Get("dateBefore"))),
		}

		data, err := svc.List(filter, page, limit)
		if err != nil {
			writeError(w, logger, err)
			return
		}
		writeJSON(w, logger, http.StatusOK, data)
	}
}

// DeleteSessionHandler drops a session.
func DeleteSessionHandler(svc *session.Service, logger *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sessionID := r.PathValue("session")
		if err := checkSessionID(sessionID); err != nil {
			writeError(w, logger, err)
			return
		}

		if err := svc.DeleteSession(sessionID); err != nil {
			writeError(w, logger, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

// ExportSessionHandler downloads the session document as json, yaml or msgpack.
func ExportSessionHandler(svc *session.Service, logger *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sessionID := r.PathValue("session")
		if err := checkSessionID(sessionID); err != nil {
			writeError(w, logger, err)
			return
		}

		format := r.URL.Query().Get("format")
		data, contentType, err := svc.Export(sessionID, format)
		if err != nil {
			writeError(w, logger, err)
			return
		}

		ext := format
		if ext == "" {
			ext = "json"
		}
		w.Header().Set("Content-Type", contentType)
		w.Header().Set("Content-Disposition", `attachment; filename="`+sessionID+"."+ext+`"`)
		w.Write(data)
	}
}

// atoiDefault converts string to int or returns a default when conversion fails or value <= 0.
func atoiDefault(s string, def int) int {
	if v, err := strconv.Atoi(s); err == nil && v > 0 {
		return v
	}
	return def
}

// parseDate parses a date string in the format "2006-01-02" (HTML input format).
func parseDate(v string) time.Time {
	if v == "" {
		return time.Time{}
	}
	t, err := time.Parse("2006-01-02", v)
	if err != nil {
		return time.Time{}
	}
	return t
}

// endOfDay makes an inclusive upper bound out of a date.
func endOfDay(t time.Time) time.Time {
	if t.IsZero() {
		return t
	}
	return t.Add(24*time.Hour - time.Nanosecond)
}
