package logger

import (
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"sync"

	"groundtruth/internal/config"
)

// Log file names, one per level.
const (
	InfoFile    = "info.log"
	WarningFile = "warning.log"
	ErrorFile   = "error.log"
)

// Logger provides leveled logging (info/warning/error) to files and stdout/stderr.
type Logger struct {
	infoLog    *log.Logger
	warningLog *log.Logger
	errorLog   *log.Logger
	files      []*os.File
	logDir     string
	mu         sync.Mutex
}

// NewLogger creates a Logger and ensures the log directory exists.
func NewLogger(config *config.Config) (*Logger, error) {
	if err := os.MkdirAll(config.LogDirectory, 0755); err != nil {
		return nil, fmt.Errorf("failed to create log directory: %w", err)
	}

	logger := &Logger{
		logDir: config.LogDirectory,
	}

	if err := logger.setupLoggers(config.LogToConsole); err != nil {
		logger.Close()
		return nil, err
	}
	return logger, nil
}

// setupLoggers initializes writers and per-level loggers.
func (l *Logger) setupLoggers(console bool) error {
	infoFile, err := l.openLogFile(InfoFile)
	if err != nil {
		return err
	}
	warningFile, err := l.openLogFile(WarningFile)
	if err != nil {
		return err
	}
	errorFile, err := l.openLogFile(ErrorFile)
	if err != nil {
		return err
	}

	var infoWriter, warningWriter, errorWriter io.Writer = infoFile, warningFile, errorFile
	if console {
		infoWriter = io.MultiWriter(os.Stdout, infoFile)
		warningWriter = io.MultiWriter(os.Stdout, warningFile)
		errorWriter = io.MultiWriter(os.Stderr, errorFile)
	}

	l.infoLog = log.New(infoWriter, "INFO    ", log.Ldate|log.Ltime|log.Lshortfile)
	l.warningLog = log.New(warningWriter, "WARNING ", log.Ldate|log.Ltime|log.Lshortfile)
	l.errorLog = log.New(errorWriter, "ERROR   ", log.Ldate|log.Ltime|log.Lshortfile)
	return nil
}

// openLogFile opens or creates a log file for appending.
func (l *Logger) openLogFile(name string) (*os.File, error) {
	path := filepath.Join(l.logDir, name)
	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0666)
	if err != nil {
		return nil, fmt.Errorf("failed to open log file %s: %w", path, err)
	}
	l.files = append(l.files, file)
	return file, nil
}

// Info writes a formatted info-level log entry.
func (l *Logger) Info(format string, v ...interface{}) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.infoLog.Output(2, fmt.Sprintf(format, v...))
}

// Warning writes a formatted warning-level log entry.
func (l *Logger) Warning(format string, v ...interface{}) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.warningLog.Output(2, fmt.Sprintf(format, v...))
}

// Error writes a formatted error-level log entry.
func (l *Logger) Error(format string, v ...interface{}) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.errorLog.Output(2, fmt.Sprintf(format, v...))
}

// Dir returns the directory holding the log files.
func (l *Logger) Dir() string {
	return l.logDir
}

// CleanLogs truncates the specified log file.
func (l *Logger) CleanLogs(fileName string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	filePath := filepath.Join(l.logDir, filepath.Base(fileName))
	if err := os.Truncate(filePath, 0); err != nil {
		return fmt.Errorf("failed to truncate %s: %w", fileName, err)
	}
	return nil
}

// Close closes the underlying log files.
func (l *Logger) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	var firstErr error
	for _, f := range l.files {
		if err := f.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	l.files = nil
	return firstErr
}
