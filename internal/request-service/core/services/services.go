package services

import (
	"context"
	"errors"
	"time"

	"blood-link/internal/mylogger"
	"blood-link/internal/observability"
	"blood-link/internal/request-service/core/myerrors"
	"blood-link/internal/request-service/core/ports"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const (
	DefaultMaxActivePerRequester = 2
	DefaultMaxDistanceKm         = 15.0
	DefaultMaxEligibleDonors     = 50

	GlobalDonationsStat = "donations"

	opTimeout = 15 * time.Second
)

// Options tunes the services. Zero values fall back to the defaults above.
type Options struct {
	MaxActivePerRequester int
	MaxDistanceKm         float64
	MaxEligibleDonors     int
	// DeleteExpired removes expired requests from the store after they are archived.
	DeleteExpired bool
	Now           func() time.Time
}

func (o Options) withDefaults() Options {
	if o.MaxActivePerRequester <= 0 {
		o.MaxActivePerRequester = DefaultMaxActivePerRequester
	}
	if o.MaxDistanceKm <= 0 {
		o.MaxDistanceKm = DefaultMaxDistanceKm
	}
	if o.MaxEligibleDonors <= 0 {
		o.MaxEligibleDonors = DefaultMaxEligibleDonors
	}
	if o.Now == nil {
		o.Now = time.Now
	}
	return o
}

// errSkip aborts a store update without surfacing an error to the caller.
var errSkip = errors.New("skip")

// withConflictRetry runs fn again once when it fails with a conflict.
func withConflictRetry(fn func() error) error {
	err := fn()
	if myerrors.KindOf(err) == myerrors.KindConflict {
		err = fn()
	}
	return err
}

func startSpan(ctx context.Context, name string) (context.Context, trace.Span) {
	return observability.Tracer().Start(ctx, name)
}

func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}

func generateCorrelationID() string {
	return "req_" + uuid.NewString()[:8]
}

// notifier wraps the notify collaborator: delivery failures are logged and counted, never returned.
type notifier struct {
	log     mylogger.Logger
	target  ports.INotifier
	metrics *observability.Collector
}

func (n notifier) send(ctx context.Context, userID, title, body string, data map[string]string) {
	if n.target == nil || userID == "" {
		return
	}
	if err := n.target.Notify(ctx, userID, title, body, data); err != nil {
		n.metrics.CollaboratorFailed("notify")
		n.log.Error("notification not delivered", err, "user-id", userID, "title", title)
	}
}
