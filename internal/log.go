package internal

import (
	"fmt"
	"io"
	"os"

	"github.com/sirupsen/logrus"
)

// Logger writes the run log. It is safe for concurrent use.
type Logger struct {
	*logrus.Logger
	f *os.File
}

// NewLogger creates (truncates) the log file at path and logs at level.
func NewLogger(path, level string) (*Logger, error) {
	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", level, err)
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, err
	}
	l := logrus.New()
	l.SetOutput(f)
	l.SetLevel(lvl)
	l.SetFormatter(&logrus.TextFormatter{DisableColors: true, FullTimestamp: true})
	return &Logger{Logger: l, f: f}, nil
}

// NopLogger discards everything.
func NopLogger() *Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return &Logger{Logger: l}
}

func (l *Logger) Close() error {
	if l.f == nil {
		return nil
	}
	return l.f.Close()
}
