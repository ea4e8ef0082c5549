package middleware

import (
	"bufio"
	"errors"
	"net"
	"net/http"
	"time"

	"groundtruth/internal/logger"
)

// statusRecorder remembers the status code written by the wrapped handler.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// Hijack lets the live metrics socket take over the connection.
func (r *statusRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	h, ok := r.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, errors.New("response writer does not support hijacking")
	}
	r.status = http.StatusSwitchingProtocols
	return h.Hijack()
}

func (r *statusRecorder) Unwrap() http.ResponseWriter {
	return r.ResponseWriter
}

// LoggingMiddleware writes one log line per request. Server errors go to the
// error log, client errors to the warning log.
func LoggingMiddleware(logger *logger.Logger, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

		next.ServeHTTP(rec, r)

		elapsed := time.Since(start).Round(time.Microsecond)
		switch {
		case rec.status >= 500:
			logger.Error("%s %s -> %d (%s)", r.Method, r.URL.Path, rec.status, elapsed)
		case rec.status >= 400:
			logger.Warning("%s %s -> %d (%s)", r.Method, r.URL.Path, rec.status, elapsed)
		default:
			logger.Info("%s %s -> %d (%s)", r.Method, r.URL.Path, rec.status, elapsed)
		}
	})
}
