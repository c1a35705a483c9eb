// Package logging initializes the structured JSON run log written under the
// user's shellmate directory. Stdout stays reserved for the live command
// mirror, so log records never go to the terminal.
package logging

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"
)

// Option configures RuntimeLogger creation.
type Option func(*newOptions)

type newOptions struct {
	runID string
	dir   string
}

// WithRunID overrides the generated run_id field used in emitted log records.
func WithRunID(runID string) Option {
	return func(opts *newOptions) {
		opts.runID = strings.TrimSpace(runID)
	}
}

// WithDirectory overrides the log directory, mainly for tests.
func WithDirectory(dir string) Option {
	return func(opts *newOptions) {
		opts.dir = strings.TrimSpace(dir)
	}
}

// RuntimeLogger writes structured JSON logs to disk.
type RuntimeLogger struct {
	Logger *log.Logger
	file   *os.File
	path   string
	runID  string
}

// New initializes logging under ~/.shellmate/logs. Every record carries the
// run_id so one agent run can be traced across session starts and teardowns.
func New(options ...Option) (*RuntimeLogger, error) {
	resolved := resolveOptions(options)

	logDir := resolved.dir
	if logDir == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("resolve home directory: %w", err)
		}
		logDir = filepath.Join(homeDir, ".shellmate", "logs")
	}
	if err := os.MkdirAll(logDir, 0o750); err != nil {
		return nil, fmt.Errorf("create log directory: %w", err)
	}

	runID := resolved.runID
	if runID == "" {
		runID = uuid.NewString()
	}

	timestamp := time.Now().UTC().Format("20060102-150405")
	filePath := filepath.Join(logDir, fmt.Sprintf("shellmate-%s-%s.log", timestamp, runID))
	// #nosec G304 -- filePath is constructed from trusted local paths.
	file, err := os.OpenFile(filePath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o600)
	if err != nil {
		return nil, fmt.Errorf("open log file: %w", err)
	}

	logger := log.NewWithOptions(file, log.Options{
		Level:           log.InfoLevel,
		ReportTimestamp: true,
		TimeFormat:      time.RFC3339,
	})
	logger.SetFormatter(log.JSONFormatter)

	runtimeLogger := &RuntimeLogger{
		Logger: logger.With("run_id", runID),
		file:   file,
		path:   filePath,
		runID:  runID,
	}
	runtimeLogger.Logger.With("log_file", filePath).Info("logger initialized")

	return runtimeLogger, nil
}

// RunID returns the identifier attached to every record of this run.
func (r *RuntimeLogger) RunID() string {
	if r == nil {
		return ""
	}
	return r.runID
}

// Close flushes and closes the log file.
func (r *RuntimeLogger) Close() error {
	if r == nil || r.file == nil {
		return nil
	}
	return r.file.Close()
}

// Path returns the current log file path.
func (r *RuntimeLogger) Path() string {
	if r == nil {
		return ""
	}
	return r.path
}

func resolveOptions(options []Option) newOptions {
	resolved := newOptions{}
	for _, option := range options {
		if option == nil {
			continue
		}
		option(&resolved)
	}
	return resolved
}
