// internal/logging/logging.go
// logrus-backed implementation of the session Logger.

package logging

import (
	"io"
	"os"

	"github.com/rs/xid"
	"github.com/sirupsen/logrus"
)

// SessionLogger writes user-facing lines at Info and wire-level detail at
// Debug, tagged with a per-session id.
type SessionLogger struct {
	entry *logrus.Entry
}

// New builds a logger writing to w. Debug output is opt-in; the wire dump
// is loud.
func New(w io.Writer, verbose bool) *SessionLogger {
	l := logrus.New()
	l.SetOutput(w)
	l.SetLevel(logrus.InfoLevel)
	if verbose {
		l.SetLevel(logrus.DebugLevel)
	}
	l.SetFormatter(&logrus.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: "15:04:05.000",
	})
	return &SessionLogger{
		entry: l.WithField("session", xid.New().String()),
	}
}

// NewStderr is the default CLI logger.
func NewStderr(verbose bool) *SessionLogger {
	return New(os.Stderr, verbose)
}

// Entry exposes the underlying entry for packages that want fields.
func (s *SessionLogger) Entry() *logrus.Entry {
	return s.entry
}

func (s *SessionLogger) User(msg string) {
	s.entry.Info(msg)
}

func (s *SessionLogger) Debug(msg string) {
	s.entry.Debug(msg)
}
