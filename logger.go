package colibri

import "log/slog"

// Logger defines the interface for application logging.
// Every component logs through key-value pairs:
//
//	logger.Info("Module initialized", "module", "httpserver")
//
// The events and routing packages accept the same method set, so one
// Logger serves the whole application.
type Logger interface {
	// Info logs normal lifecycle events such as module startup.
	Info(msg string, args ...any)

	// Error logs failures that should be investigated.
	Error(msg string, args ...any)

	// Warn logs unusual conditions that do not stop the application.
	Warn(msg string, args ...any)

	// Debug logs diagnostic detail, typically disabled in production.
	Debug(msg string, args ...any)
}

// SlogLogger adapts a *slog.Logger to Logger.
type SlogLogger struct {
	logger *slog.Logger
}

// NewSlogLogger returns a Logger writing to logger, or to slog.Default()
// when logger is nil.
func NewSlogLogger(logger *slog.Logger) *SlogLogger {
	if logger == nil {
		logger = slog.Default()
	}
	return &SlogLogger{logger: logger}
}

func (l *SlogLogger) Info(msg string, args ...any)  { l.logger.Info(msg, args...) }
func (l *SlogLogger) Error(msg string, args ...any) { l.logger.Error(msg, args...) }
func (l *SlogLogger) Warn(msg string, args ...any)  { l.logger.Warn(msg, args...) }
func (l *SlogLogger) Debug(msg string, args ...any) { l.logger.Debug(msg, args...) }

// With returns a logger that adds args to every record.
func (l *SlogLogger) With(args ...any) *SlogLogger {
	return &SlogLogger{logger: l.logger.With(args...)}
}
