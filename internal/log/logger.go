package log

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"github.com/sirupsen/logrus"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Options configures the application logger.
type Options struct {
	Level string
	// File enables a rotating log file in addition to stdout.
	File       string
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
}

// NewLogger constructs a logrus logger configured with JSON output and the provided log level.
func NewLogger(opts Options) (*logrus.Logger, io.Closer, error) {
	logger := logrus.New()
	logger.SetFormatter(&logrus.JSONFormatter{TimestampFormat: time.RFC3339Nano})
	logger.SetReportCaller(false)
	logger.SetLevel(logrus.InfoLevel)

	var closer io.Closer = nopCloser{}
	if opts.File != "" {
		fileWriter := &lumberjack.Logger{
			Filename:   opts.File,
			MaxSize:    valueOr(opts.MaxSizeMB, 50),
			MaxBackups: valueOr(opts.MaxBackups, 5),
			MaxAge:     valueOr(opts.MaxAgeDays, 14),
			Compress:   true,
		}
		logger.SetOutput(io.MultiWriter(os.Stdout, fileWriter))
		closer = fileWriter
	}

	if opts.Level == "" {
		return logger, closer, nil
	}

	parsedLevel, err := logrus.ParseLevel(strings.ToLower(opts.Level))
	if err != nil {
		_ = closer.Close()
		return nil, nil, eris.Wrapf(err, "invalid log level: %s", opts.Level)
	}

	logger.SetLevel(parsedLevel)
	return logger, closer, nil
}

// Component returns an entry tagged with the component name.
func Component(logger *logrus.Logger, name string) *logrus.Entry {
	if logger == nil {
		logger = Discard()
	}
	return logger.WithField("component", name)
}

// Discard returns a logger that drops every entry.
func Discard() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

func valueOr(value, fallback int) int {
	if value > 0 {
		return value
	}
	return fallback
}
