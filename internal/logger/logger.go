package logger

import (
	"fmt"
	"os"

	"github.com/sirupsen/logrus"

	"wizbridge/internal/config"
)

type Log struct {
	*logrus.Entry
}

// NewLogger constructs the process-wide logger.
func NewLogger(cfg config.LogConf) (*Log, error) {
	log := logrus.New()

	log.SetOutput(os.Stdout)

	log.Formatter = &logrus.TextFormatter{
		TimestampFormat:  "2006-01-02 15:04:05.0000",
		DisableColors:    false,
		ForceColors:      true,
		FullTimestamp:    true,
		QuoteEmptyFields: true,
	}

	level, err := logrus.ParseLevel(cfg.Level)
	if err != nil {
		return nil, fmt.Errorf("logger: bad level %q: %w", cfg.Level, err)
	}
	log.SetLevel(level)
	// Single output writer (stdout); logrus's own write mutex is disabled.
	log.SetNoLock()
	log.Debug("set level: ", level)

	return &Log{Entry: log.WithFields(nil)}, nil
}

// With adds fields to the formatted log entry.
func (l *Log) With(fields Fields) *Log {
	return &Log{Entry: l.WithFields(logrus.Fields(fields))}
}

func (l *Log) GetLevel() string {
	return l.Logger.Level.String()
}

// Fields is a formatted log field set.
type Fields map[string]interface{}

// Logger is the logging surface every component depends on.
type Logger interface {
	GetLevel() string
	With(fields Fields) *Log
}
