package txscope

import (
	"context"
	"log/slog"
)

// ILogger interface for logging.
type ILogger interface {
	Debug(ctx context.Context, msg string, attrs ...any)
	Info(ctx context.Context, msg string, attrs ...any)
	Warn(ctx context.Context, msg string, attrs ...any)
	Error(ctx context.Context, msg string, attrs ...any)
}

// SlogLogger implements ILogger interface using slog.Logger.
type SlogLogger struct {
	l *slog.Logger
}

// NewSlogLogger returns new SlogLogger. If l is nil, slog.Default is used.
func NewSlogLogger(l *slog.Logger) *SlogLogger {
	if l == nil {
		l = slog.Default()
	}

	return &SlogLogger{l: l}
}

func (s *SlogLogger) Debug(ctx context.Context, msg string, attrs ...any) {
	s.l.DebugContext(ctx, msg, attrs...)
}

func (s *SlogLogger) Info(ctx context.Context, msg string, attrs ...any) {
	s.l.InfoContext(ctx, msg, attrs...)
}

func (s *SlogLogger) Warn(ctx context.Context, msg string, attrs ...any) {
	s.l.WarnContext(ctx, msg, attrs...)
}

func (s *SlogLogger) Error(ctx context.Context, msg string, attrs ...any) {
	s.l.ErrorContext(ctx, msg, attrs...)
}
