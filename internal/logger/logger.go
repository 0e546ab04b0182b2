// Package logger wraps logrus with the field conventions used throughout
// the encryption client: every call site names its operation and the
// object key it's acting on, never the key material itself.
package logger

import (
	"os"

	"github.com/sirupsen/logrus"
)

// Logger is a thin wrapper around *logrus.Entry, giving every component a
// consistently-prefixed, structured logger instead of passing around a
// bare *logrus.Logger.
type Logger struct {
	entry *logrus.Entry
}

// New builds a root Logger writing JSON lines to stdout at Info level.
func New() *Logger {
	l := logrus.New()
	l.SetOutput(os.Stdout)
	l.SetFormatter(&logrus.JSONFormatter{})
	l.SetLevel(logrus.InfoLevel)
	return &Logger{entry: logrus.NewEntry(l)}
}

// NewLogger builds a root Logger tagged with a component name.
func NewLogger(component string) *Logger {
	return New().With(logrus.Fields{"component": component})
}

// With returns a derived Logger carrying the given structured fields on
// every subsequent call.
func (l *Logger) With(fields logrus.Fields) *Logger {
	return &Logger{entry: l.entry.WithFields(fields)}
}

// SetLevel adjusts the verbosity of the underlying logrus logger.
func (l *Logger) SetLevel(level logrus.Level) {
	l.entry.Logger.SetLevel(level)
}

func (l *Logger) Info(msg string, fields logrus.Fields) {
	l.entry.WithFields(fields).Info(msg)
}

func (l *Logger) Debug(msg string, fields logrus.Fields) {
	l.entry.WithFields(fields).Debug(msg)
}

func (l *Logger) Warn(msg string, fields logrus.Fields) {
	l.entry.WithFields(fields).Warn(msg)
}

func (l *Logger) Error(msg string, err error) {
	l.entry.WithError(err).Error(msg)
}
