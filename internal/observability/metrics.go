package observability

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collector bundles the request-service Prometheus metrics. Every method is
// safe on a nil receiver so services can run without metrics in tests.
type Collector struct {
	gatherer prometheus.Gatherer

	HTTPRequests  *prometheus.CounterVec
	HTTPDurations *prometheus.HistogramVec

	RequestsCreated    *prometheus.CounterVec
	AcceptOutcomes     *prometheus.CounterVec
	RequestTransitions *prometheus.CounterVec
	LocationUpdates    prometheus.Counter
	ArrivalPrompts     *prometheus.CounterVec
	NotificationErrors *prometheus.CounterVec
	SweepDurations     *prometheus.HistogramVec
	SweepProcessed     *prometheus.CounterVec
}

// NewCollector registers metrics against reg, defaulting to the global registry when nil.
func NewCollector(reg prometheus.Registerer) (*Collector, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	gatherer := prometheus.DefaultGatherer
	if g, ok := reg.(prometheus.Gatherer); ok {
		gatherer = g
	}

	httpRequests, err := registerCounterVec(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "bloodlink_http_requests_total",
		Help: "Handled HTTP requests by route and status code.",
	}, []string{"route", "code"}), "bloodlink_http_requests_total")
	if err != nil {
		return nil, err
	}
	httpDurations, err := registerHistogramVec(reg, prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "bloodlink_http_request_duration_seconds",
		Help:    "HTTP request latency in seconds.",
		Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2, 5},
	}, []string{"route"}), "bloodlink_http_request_duration_seconds")
	if err != nil {
		return nil, err
	}
	created, err := registerCounterVec(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "bloodlink_requests_created_total",
		Help: "Blood requests created, by blood group, urgency and flag.",
	}, []string{"blood_group", "urgency", "flagged"}), "bloodlink_requests_created_total")
	if err != nil {
		return nil, err
	}
	accepts, err := registerCounterVec(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "bloodlink_accept_outcomes_total",
		Help: "Donor acceptance attempts by outcome (ok or error kind).",
	}, []string{"outcome"}), "bloodlink_accept_outcomes_total")
	if err != nil {
		return nil, err
	}
	transitions, err := registerCounterVec(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "bloodlink_request_transitions_total",
		Help: "Request status transitions by target status.",
	}, []string{"status"}), "bloodlink_request_transitions_total")
	if err != nil {
		return nil, err
	}
	locations, err := registerCounter(reg, prometheus.NewCounter(prometheus.CounterOpts{
		Name: "bloodlink_location_updates_total",
		Help: "Donor location reports applied.",
	}), "bloodlink_location_updates_total")
	if err != nil {
		return nil, err
	}
	prompts, err := registerCounterVec(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "bloodlink_arrival_prompts_total",
		Help: "Arrival confirmation prompts by trigger (proximity or deadline).",
	}, []string{"trigger"}), "bloodlink_arrival_prompts_total")
	if err != nil {
		return nil, err
	}
	notifyErrs, err := registerCounterVec(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "bloodlink_notification_failures_total",
		Help: "Suppressed collaborator failures by channel.",
	}, []string{"channel"}), "bloodlink_notification_failures_total")
	if err != nil {
		return nil, err
	}
	sweepDur, err := registerHistogramVec(reg, prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "bloodlink_sweep_duration_seconds",
		Help:    "Duration of periodic sweeps.",
		Buckets: prometheus.DefBuckets,
	}, []string{"sweep"}), "bloodlink_sweep_duration_seconds")
	if err != nil {
		return nil, err
	}
	sweepProcessed, err := registerCounterVec(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "bloodlink_sweep_processed_total",
		Help: "Records transitioned by periodic sweeps.",
	}, []string{"sweep"}), "bloodlink_sweep_processed_total")
	if err != nil {
		return nil, err
	}

	return &Collector{
		gatherer:           gatherer,
		HTTPRequests:       httpRequests,
		HTTPDurations:      httpDurations,
		RequestsCreated:    created,
		AcceptOutcomes:     accepts,
		RequestTransitions: transitions,
		LocationUpdates:    locations,
		ArrivalPrompts:     prompts,
		NotificationErrors: notifyErrs,
		SweepDurations:     sweepDur,
		SweepProcessed:     sweepProcessed,
	}, nil
}

// Handler exposes a ready-to-use /metrics handler.
func (c *Collector) Handler() http.Handler {
	if c == nil || c.gatherer == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(c.gatherer, promhttp.HandlerOpts{})
}

// Instrument records count and latency for one route.
func (c *Collector) Instrument(route string, next http.Handler) http.Handler {
	if c == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		c.HTTPRequests.WithLabelValues(route, strconv.Itoa(rec.status)).Inc()
		c.HTTPDurations.WithLabelValues(route).Observe(time.Since(start).Seconds())
	})
}

func (c *Collector) RequestCreated(group, urgency string, flagged bool) {
	if c == nil {
		return
	}
	c.RequestsCreated.WithLabelValues(group, urgency, strconv.FormatBool(flagged)).Inc()
}

func (c *Collector) AcceptOutcome(outcome string) {
	if c == nil {
		return
	}
	c.AcceptOutcomes.WithLabelValues(outcome).Inc()
}

func (c *Collector) Transition(status string) {
	if c == nil {
		return
	}
	c.RequestTransitions.WithLabelValues(status).Inc()
}

func (c *Collector) LocationReported() {
	if c == nil {
		return
	}
	c.LocationUpdates.Inc()
}

func (c *Collector) ArrivalPrompt(trigger string) {
	if c == nil {
		return
	}
	c.ArrivalPrompts.WithLabelValues(trigger).Inc()
}

func (c *Collector) CollaboratorFailed(channel string) {
	if c == nil {
		return
	}
	c.NotificationErrors.WithLabelValues(channel).Inc()
}

func (c *Collector) ObserveSweep(name string, d time.Duration, processed int) {
	if c == nil {
		return
	}
	c.SweepDurations.WithLabelValues(name).Observe(d.Seconds())
	c.SweepProcessed.WithLabelValues(name).Add(float64(processed))
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func registerCounterVec(reg prometheus.Registerer, vec *prometheus.CounterVec, name string) (*prometheus.CounterVec, error) {
	if err := reg.Register(vec); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(*prometheus.CounterVec); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return vec, nil
}

func registerHistogramVec(reg prometheus.Registerer, vec *prometheus.HistogramVec, name string) (*prometheus.HistogramVec, error) {
	if err := reg.Register(vec); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(*prometheus.HistogramVec); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return vec, nil
}

func registerCounter(reg prometheus.Registerer, counter prometheus.Counter, name string) (prometheus.Counter, error) {
	if err := reg.Register(counter); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(prometheus.Counter); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return counter, nil
}
