package log

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/sirupsen/logrus"
)

func TestNewLoggerDefaultsToInfo(t *testing.T) {
	t.Parallel()

	logger, closer, err := NewLogger(Options{})
	if err != nil {
		t.Fatalf("NewLogger returned error: %v", err)
	}
	defer closer.Close()

	if logger.GetLevel() != logrus.InfoLevel {
		t.Fatalf("expected info level, got %s", logger.GetLevel())
	}

	if _, ok := logger.Formatter.(*logrus.JSONFormatter); !ok {
		t.Fatalf("expected JSON formatter, got %T", logger.Formatter)
	}
}

func TestNewLoggerRejectsUnknownLevel(t *testing.T) {
	t.Parallel()

	if _, _, err := NewLogger(Options{Level: "chatty"}); err == nil {
		t.Fatalf("expected error for invalid level")
	}
}

func TestNewLoggerWritesToRotatingFile(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "pagegen.log")
	logger, closer, err := NewLogger(Options{Level: "DEBUG", File: path})
	if err != nil {
		t.Fatalf("NewLogger returned error: %v", err)
	}

	logger.WithField("page_id", "abc").Debug("page generated")
	if err := closer.Close(); err != nil {
		t.Fatalf("closing log file failed: %v", err)
	}

	contents, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("reading log file failed: %v", err)
	}

	if !strings.Contains(string(contents), `"page_id":"abc"`) {
		t.Fatalf("expected structured entry in log file, got %q", string(contents))
	}
}
