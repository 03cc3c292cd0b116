// Package logger sets up the global logrus logger for the command line.
// Console output goes to stderr so that tables printed on stdout stay clean.
// The optional log file receives every entry as one JSON line.
package logger

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"face-attendance/config"

	log "github.com/sirupsen/logrus"
)

var (
	mu      sync.Mutex
	logFile *os.File
)

// fileHook mirrors entries into a writer with its own formatter.
type fileHook struct {
	w         io.Writer
	formatter log.Formatter
}

func (h *fileHook) Levels() []log.Level {
	return log.AllLevels
}

func (h *fileHook) Fire(entry *log.Entry) error {
	line, err := h.formatter.Format(entry)
	if err != nil {
		return err
	}
	_, err = h.w.Write(line)
	return err
}

// Init configures the global logger. An unusable log file is returned as an
// error; console logging is set up regardless.
func Init(cfg config.LogConfig) error {
	level, err := log.ParseLevel(cfg.Level)
	if err != nil {
		log.Warnf("Invalid log level '%s', defaulting to 'info': %v", cfg.Level, err)
		level = log.InfoLevel
	}
	log.SetLevel(level)
	log.SetOutput(os.Stderr)
	log.SetFormatter(consoleFormatter(cfg.Format))

	log.StandardLogger().ReplaceHooks(make(log.LevelHooks))
	if err := Close(); err != nil {
		log.WithError(err).Warn("Failed to close previous log file")
	}

	if cfg.File == "" {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(cfg.File), 0750); err != nil {
		return fmt.Errorf("failed to create log directory: %w", err)
	}
	file, err := os.OpenFile(cfg.File, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0660)
	if err != nil {
		return fmt.Errorf("failed to open log file: %w", err)
	}

	mu.Lock()
	logFile = file
	mu.Unlock()

	log.AddHook(&fileHook{
		w:         file,
		formatter: &log.JSONFormatter{TimestampFormat: time.RFC3339},
	})
	log.Debugf("Logging additionally to file: %s", cfg.File)
	return nil
}

// Close releases the log file opened by Init, if any.
func Close() error {
	mu.Lock()
	defer mu.Unlock()
	if logFile == nil {
		return nil
	}
	err := logFile.Close()
	logFile = nil
	return err
}

func consoleFormatter(format string) log.Formatter {
	if strings.EqualFold(format, "json") {
		return &log.JSONFormatter{TimestampFormat: time.RFC3339}
	}
	return &log.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: "15:04:05",
		PadLevelText:    true,
	}
}
