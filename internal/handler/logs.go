package handler

import (
	"net/http"
	"os"
	"path/filepath"

	"groundtruth/internal/logger"
)

var logFiles = map[string]string{
	"info":    logger.InfoFile,
	"warning": logger.WarningFile,
	"error":   logger.ErrorFile,
}

// ShowLogsHandler serves the log file of the {level} path value as text/plain.
func ShowLogsHandler(logger *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		filename, ok := logFiles[r.PathValue("level")]
		if !ok {
			http.NotFound(w, r)
			return
		}
		serveLogFile(w, r, logger.Dir(), filename)
	}
}

// serveLogFile is a helper that sets headers and serves a log file if it exists.
func serveLogFile(w http.ResponseWriter, r *http.Request, logDir, filename string) {
	filePath := filepath.Join(logDir, filename)

	if _, err := os.Stat(filePath); os.IsNotExist(err) {
		w.WriteHeader(http.StatusNotFound)
		w.Write([]byte("Log file not found: " + filename))
		return
	}

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Header().Set("Cache-Control", "no-cache")

	http.ServeFile(w, r, filePath)
}

// ClearLogsHandler truncates the log file of the {level} path value.
func ClearLogsHandler(logger *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		filename, ok := logFiles[r.PathValue("level")]
		if !ok {
			http.NotFound(w, r)
			return
		}
		if err := logger.CleanLogs(filename); err != nil {
			logger.Error("Error clearing %s: %v", filename, err)
			http.Error(w, "Unable to clear log", http.StatusInternalServerError)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}
