package shared

import (
	"time"

	"github.com/getsentry/sentry-go"
)

// Reporter receives errors that are handled locally but still worth tracking.
type Reporter interface {
	Report(err error, tags map[string]string)
	Flush(timeout time.Duration)
}

// NopReporter drops every report.
type NopReporter struct{}

func (NopReporter) Report(error, map[string]string) {}
func (NopReporter) Flush(time.Duration)             {}

// SentryReporter forwards errors to Sentry through a dedicated hub.
type SentryReporter struct {
	hub *sentry.Hub
}

// NewReporter returns a [SentryReporter] when a DSN is configured and a [NopReporter] otherwise.
func NewReporter(cfg SentryConfig) (Reporter, error) {
	if cfg.DSN == "" {
		return NopReporter{}, nil
	}

	client, err := sentry.NewClient(sentry.ClientOptions{
		Dsn:         cfg.DSN,
		Environment: cfg.Environment,
	})
	if err != nil {
		return nil, err
	}
	return &SentryReporter{hub: sentry.NewHub(client, sentry.NewScope())}, nil
}

// Report captures err with the given tags attached to a cloned scope.
func (r *SentryReporter) Report(err error, tags map[string]string) {
	if err == nil {
		return
	}
	r.hub.WithScope(func(scope *sentry.Scope) {
		scope.SetTags(tags)
		r.hub.CaptureException(err)
	})
}

// Flush waits for buffered events to be delivered.
func (r *SentryReporter) Flush(timeout time.Duration) {
	r.hub.Flush(timeout)
}
