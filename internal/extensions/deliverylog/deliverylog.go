package deliverylog

import (
	"context"
	"log/slog"

	"github.com/kdhira/loginzap/internal/loginevent"
	"github.com/kdhira/loginzap/internal/webhook"
)

// Extension logs the outcome of every delivery attempt.
type Extension struct {
	logger *slog.Logger
}

// New returns an extension writing to logger, or slog.Default when nil.
func New(logger *slog.Logger) *Extension {
	if logger == nil {
		logger = slog.Default()
	}
	return &Extension{logger: logger}
}

func (e *Extension) Name() string { return "log-delivery" }

func (e *Extension) AfterSend(ctx context.Context, result webhook.Result, url string) {
	attrs := []any{
		"event_id", loginevent.EventID(ctx),
		"url", redactURL(url),
		"status", result.StatusCode,
		"duration_ms", result.Duration.Milliseconds(),
	}
	if result.Err != nil {
		e.logger.Warn("webhook attempt failed", append(attrs, "error", result.Err)...)
		return
	}
	e.logger.Info("webhook attempt completed", attrs...)
}
