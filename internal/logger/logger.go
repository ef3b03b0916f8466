package logger

import (
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"sync"

	"objectvision/internal/config"

	"github.com/sirupsen/logrus"
)

// Log file names, one per level.
const (
	InfoFile    = "info.log"
	WarningFile = "warning.log"
	ErrorFile   = "error.log"
)

// Logger provides leveled logging (info/warning/error) to stdout and per-level files.
type Logger struct {
	log    *logrus.Logger
	logDir string
	hook   *levelFileHook
}

// NewLogger creates a Logger and ensures the log directory exists.
func NewLogger(config *config.Config) *Logger {
	if err := os.MkdirAll(config.LogDirectory, 0755); err != nil {
		log.Fatalf("Failed to create log directory: %v", err)
	}

	l := logrus.New()
	l.SetOutput(os.Stdout)
	l.SetFormatter(&logrus.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: "2006-01-02 15:04:05",
	})
	level, err := logrus.ParseLevel(config.LogLevel)
	if err != nil {
		level = logrus.InfoLevel
	}
	l.SetLevel(level)

	hook := &levelFileHook{
		dir: config.LogDirectory,
		files: map[logrus.Level]string{
			logrus.DebugLevel: InfoFile,
			logrus.InfoLevel:  InfoFile,
			logrus.WarnLevel:  WarningFile,
			logrus.ErrorLevel: ErrorFile,
			logrus.FatalLevel: ErrorFile,
			logrus.PanicLevel: ErrorFile,
		},
		formatter: &logrus.JSONFormatter{TimestampFormat: "2006-01-02 15:04:05"},
		writers:   make(map[string]io.Writer),
	}
	l.AddHook(hook)

	return &Logger{log: l, logDir: config.LogDirectory, hook: hook}
}

// Debug writes a formatted debug-level log entry.
func (l *Logger) Debug(format string, v ...interface{}) {
	l.log.Debugf(format, v...)
}

// Info writes a formatted info-level log entry.
func (l *Logger) Info(format string, v ...interface{}) {
	l.log.Infof(format, v...)
}

// Warning writes a formatted warning-level log entry.
func (l *Logger) Warning(format string, v ...interface{}) {
	l.log.Warnf(format, v...)
}

// Error writes a formatted error-level log entry.
func (l *Logger) Error(format string, v ...interface{}) {
	l.log.Errorf(format, v...)
}

// WithFields returns an entry carrying structured context.
func (l *Logger) WithFields(fields logrus.Fields) *logrus.Entry {
	return l.log.WithFields(fields)
}

// CleanLogs truncates the specified log file.
func (l *Logger) CleanLogs(fileName string) error {
	if err := l.hook.truncate(fileName); err != nil {
		l.Error("Error clearing log file %s: %v", fileName, err)
		return err
	}
	l.Info("Log file %s has been cleared", fileName)
	return nil
}

// levelFileHook mirrors every entry into the log file of its level.
type levelFileHook struct {
	dir       string
	files     map[logrus.Level]string
	formatter logrus.Formatter

	mu      sync.Mutex
	writers map[string]io.Writer
}

func (h *levelFileHook) Levels() []logrus.Level {
	return logrus.AllLevels
}

func (h *levelFileHook) Fire(entry *logrus.Entry) error {
	name, ok := h.files[entry.Level]
	if !ok {
		return nil
	}
	line, err := h.formatter.Format(entry)
	if err != nil {
		return err
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	w, err := h.writer(name)
	if err != nil {
		return err
	}
	_, err = w.Write(line)
	return err
}

// writer opens (or reuses) the append handle of a log file. Caller holds h.mu.
func (h *levelFileHook) writer(name string) (io.Writer, error) {
	if w, ok := h.writers[name]; ok {
		return w, nil
	}
	f, err := os.OpenFile(filepath.Join(h.dir, name), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0666)
	if err != nil {
		return nil, fmt.Errorf("failed to open log file %s: %w", name, err)
	}
	h.writers[name] = f
	return f, nil
}

func (h *levelFileHook) truncate(name string) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	w, err := h.writer(name)
	if err != nil {
		return err
	}
	return w.(*os.File).Truncate(0)
}
