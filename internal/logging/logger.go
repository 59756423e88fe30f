package logging

import (
	"io"
	"os"
	"sync"

	"github.com/charmbracelet/log"
)

// Logger wraps log.Logger from charmbracelet/log so callers only depend on
// this package.
type Logger struct {
	*log.Logger
}

var (
	defaultLogger *Logger
	once          sync.Once
)

// New builds a logger writing to w. DEBUG=1 enables debug level together with
// caller and timestamp reporting.
func New(w io.Writer) *Logger {
	base := log.New(w)
	if os.Getenv("DEBUG") == "1" {
		base = log.NewWithOptions(w, log.Options{
			ReportCaller:    true,
			ReportTimestamp: true,
			Prefix:          "naos",
		})
		base.SetLevel(log.DebugLevel)
	} else {
		base.SetLevel(log.InfoLevel)
	}
	return &Logger{Logger: base}
}

// GetLogger returns the shared process logger, creating it on first use.
func GetLogger() *Logger {
	once.Do(func() {
		defaultLogger = New(os.Stderr)
	})
	return defaultLogger
}

// NewTestLogger returns a silent logger for tests.
func NewTestLogger() *Logger {
	return New(io.Discard)
}

// BaseLogger exposes the underlying *log.Logger.
func (l *Logger) BaseLogger() *log.Logger {
	return l.Logger
}
