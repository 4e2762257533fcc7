package logger

import "log/slog"

// SlogAdapter adapts a *slog.Logger to the metrics.Logger interface
// (Debug/Info/Warn/Error with variadic key-value args), so a single logger
// instance can back both application logging and the metrics Registry's
// diagnostics.
type SlogAdapter struct {
	Logger *slog.Logger
}

func (a SlogAdapter) Debug(msg string, args ...any) { a.Logger.Debug(msg, args...) }
func (a SlogAdapter) Info(msg string, args ...any)  { a.Logger.Info(msg, args...) }
func (a SlogAdapter) Warn(msg string, args ...any)  { a.Logger.Warn(msg, args...) }
func (a SlogAdapter) Error(msg string, args ...any) { a.Logger.Error(msg, args...) }
