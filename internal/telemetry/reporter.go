package telemetry

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/getsentry/sentry-go"

	"steadymic/internal/config"
	"steadymic/internal/domain"
)

// InitSentry configures the global Sentry client when a DSN is set. The returned
// function flushes pending events.
func InitSentry(cfg config.TelemetryConfig, logger *slog.Logger) (flush func(), err error) {
	if cfg.SentryDSN == "" {
		return func() {}, nil
	}
	if err := sentry.Init(sentry.ClientOptions{
		Dsn:         cfg.SentryDSN,
		Environment: cfg.Environment,
	}); err != nil {
		return func() {}, fmt.Errorf("sentry init: %w", err)
	}
	logger.Info("sentry initialized", "environment", cfg.Environment)
	return func() { sentry.Flush(2 * time.Second) }, nil
}

// Reporter sends every transition into the error state to Sentry.
type Reporter struct {
	hub    *sentry.Hub
	logger *slog.Logger
}

// NewReporter reports through hub, or the current hub when nil.
func NewReporter(hub *sentry.Hub, logger *slog.Logger) *Reporter {
	if hub == nil {
		hub = sentry.CurrentHub()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Reporter{hub: hub, logger: logger}
}

func (r *Reporter) Observe(snap domain.Snapshot) {
	if snap.State != domain.StateError {
		return
	}

	r.hub.WithScope(func(scope *sentry.Scope) {
		scope.SetLevel(sentry.LevelError)
		scope.SetTag("reason", string(snap.Reason))
		if snap.Stats.LastErrorKind != "" {
			scope.SetTag("error_kind", string(snap.Stats.LastErrorKind))
		}
		scope.SetExtra("session_id", snap.SessionID)
		scope.SetExtra("error_code", snap.Stats.LastErrorCode)
		scope.SetExtra("error_count", snap.Stats.ErrorCount)
		scope.SetExtra("start_count", snap.Stats.StartCount)

		if id := r.hub.CaptureMessage(reportMessage(snap)); id != nil {
			r.logger.Debug("listening failure reported", "event", string(*id))
		}
	})
}

func reportMessage(snap domain.Snapshot) string {
	if snap.Message == "" {
		return fmt.Sprintf("listening failed: %s", snap.Reason)
	}
	return fmt.Sprintf("listening failed: %s: %s", snap.Reason, snap.Message)
}
