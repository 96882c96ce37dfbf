package sentryutil

import (
	"context"
	"time"

	"github.com/Veetaha/snowpity/service/logger"
	"github.com/getsentry/sentry-go"
	"github.com/google/uuid"
)

const errorContextName = "error context"

type errorContext struct {
	ReportID string
}

// Init configures the global sentry client. A missing DSN disables reporting
// without failing startup.
func Init(dsn, environment string) error {
	if dsn == "" {
		logger.For(nil).Info("no sentry DSN configured; error reporting disabled")
		return nil
	}

	return sentry.Init(sentry.ClientOptions{
		Dsn:              dsn,
		Environment:      environment,
		AttachStacktrace: true,
	})
}

// Flush drains buffered events on shutdown.
func Flush() {
	sentry.Flush(2 * time.Second)
}

// ReportError captures the error and returns a short report id that can be
// surfaced to users and quoted back in bug reports.
func ReportError(ctx context.Context, err error) string {
	reportID := NewReportID()

	hub := sentry.GetHubFromContext(ctx)
	if hub == nil {
		hub = sentry.CurrentHub()
	}
	if hub == nil {
		logger.For(ctx).Warnln("could not report error to Sentry because hub is nil")
		return reportID
	}

	// Use a new scope so our error context and tag don't persist beyond this error
	hub.WithScope(func(scope *sentry.Scope) {
		scope.SetContext(errorContextName, map[string]any{"report_id": reportID})
		scope.SetTag("reportID", reportID)
		hub.CaptureException(err)
	})

	logger.For(ctx).WithError(err).Errorf("reported error %s", reportID)
	return reportID
}

// NewReportID returns a short opaque id suitable for log cross-reference.
func NewReportID() string {
	return uuid.New().String()[:8]
}
