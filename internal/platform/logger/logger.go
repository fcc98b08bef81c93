// Package logger wraps logrus with the request-scoped fields the control
// plane attaches to every log line (tenant, user, request id).
package logger

import (
	"context"
	"os"
	"strings"

	"github.com/sirupsen/logrus"
)

// Logger wraps a logrus.Logger so callers get WithField/WithError chaining
// without importing logrus directly throughout the codebase.
type Logger struct {
	*logrus.Logger
}

// Config controls level and output formatting.
type Config struct {
	Level  string
	Format string
}

// New builds a Logger from Config, defaulting to info/text on bad input.
func New(cfg Config) *Logger {
	l := logrus.New()
	level, err := logrus.ParseLevel(strings.TrimSpace(cfg.Level))
	if err != nil {
		level = logrus.InfoLevel
	}
	l.SetLevel(level)

	switch strings.ToLower(strings.TrimSpace(cfg.Format)) {
	case "json":
		l.SetFormatter(&logrus.JSONFormatter{})
	default:
		l.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}
	l.SetOutput(os.Stdout)
	return &Logger{Logger: l}
}

// NewDefault returns an info-level text logger tagged with a component name.
func NewDefault(component string) *Logger {
	l := New(Config{Level: "info", Format: "text"})
	return &Logger{Logger: l.Logger.WithField("component", component).Logger}
}

type ctxKey string

const fieldsKey ctxKey = "logger.fields"

// WithRequestFields returns a context carrying tenant/user/request identifiers
// that WithContext will attach to subsequent log entries.
func WithRequestFields(ctx context.Context, tenantID, userID, requestID string) context.Context {
	return context.WithValue(ctx, fieldsKey, logrus.Fields{
		"tenantId":  tenantID,
		"userId":    userID,
		"requestId": requestID,
	})
}

// WithContext returns an Entry pre-populated with any request-scoped fields
// stashed on ctx by WithRequestFields. Safe to call with a bare context.
func (l *Logger) WithContext(ctx context.Context) *logrus.Entry {
	if fields, ok := ctx.Value(fieldsKey).(logrus.Fields); ok {
		return l.Logger.WithFields(fields)
	}
	return logrus.NewEntry(l.Logger)
}
