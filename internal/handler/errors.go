package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"groundtruth/internal/boxid"
	"groundtruth/internal/logger"
	"groundtruth/internal/repository"
	"groundtruth/internal/service/session"
	"groundtruth/internal/service/validation"
)

// statusFor maps service errors to HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, errInvalidInput),
		errors.Is(err, boxid.ErrMalformed),
		errors.Is(err, session.ErrUnsupportedFormat):
		return http.StatusBadRequest
	case errors.Is(err, repository.ErrSessionNotFound),
		errors.Is(err, validation.ErrImageNotFound),
		errors.Is(err, validation.ErrBoxNotFound):
		return http.StatusNotFound
	case errors.Is(err, session.ErrImageExists):
		return http.StatusConflict
	case errors.Is(err, session.ErrSessionFull):
		return http.StatusTooManyRequests
	}
	return http.StatusInternalServerError
}

// writeError reports err to the client. Internal failures are logged and
// their details are not exposed.
func writeError(w http.ResponseWriter, logger *logger.Logger, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		logger.Error("Request failed: %v", err)
		http.Error(w, "Internal Server Error", status)
		return
	}
	http.Error(w, err.Error(), status)
}

func writeJSON(w http.ResponseWriter, logger *logger.Logger, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Error("Error encoding JSON response: %v", err)
	}
}

// decodeJSON reads a bounded request body into v.
func decodeJSON(w http.ResponseWriter, r *http.Request, v interface{}) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(v); err != nil {
		return invalid("malformed JSON body: %v", err)
	}
	return nil
}
