// Package metrics exposes the control plane's Prometheus collectors:
// HTTP traffic, risk decisions, reconciliation drift, and orchestrator queue
// depth.
package metrics

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Registry holds every collector this package registers.
	Registry = prometheus.NewRegistry()

	httpInFlight = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "controlplane",
		Subsystem: "http",
		Name:      "inflight_requests",
		Help:      "Current number of in-flight HTTP requests.",
	})

	httpRequests = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "controlplane",
		Subsystem: "http",
		Name:      "requests_total",
		Help:      "Total HTTP requests handled, labeled by method/route/status.",
	}, []string{"method", "route", "status"})

	httpDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "controlplane",
		Subsystem: "http",
		Name:      "request_duration_seconds",
		Help:      "HTTP request duration.",
		Buckets:   prometheus.ExponentialBuckets(0.005, 2, 10),
	}, []string{"method", "route"})

	riskDecisions = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "controlplane",
		Subsystem: "risk",
		Name:      "pretrade_decisions_total",
		Help:      "Pre-trade risk gate decisions, labeled by outcome.",
	}, []string{"outcome"})

	killSwitchActive = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "controlplane",
		Subsystem: "risk",
		Name:      "kill_switch_active",
		Help:      "1 if a tenant's kill switch is currently active.",
	}, []string{"tenant_id"})

	reconcileDrift = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "controlplane",
		Subsystem: "reconcile",
		Name:      "drift_events_total",
		Help:      "Drift events recorded by the reconciliation service.",
	}, []string{"resource_type"})

	queueDepth = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "controlplane",
		Subsystem: "orchestrator",
		Name:      "queue_depth",
		Help:      "Current number of queued orchestrator runs.",
	})

	researchBudgetEvents = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "controlplane",
		Subsystem: "research",
		Name:      "budget_events_total",
		Help:      "Research provider budget guard decisions, labeled by decision.",
	}, []string{"decision"})
)

func init() {
	Registry.MustRegister(
		httpInFlight,
		httpRequests,
		httpDuration,
		riskDecisions,
		killSwitchActive,
		reconcileDrift,
		queueDepth,
		researchBudgetEvents,
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		collectors.NewGoCollector(),
	)
}

// Handler exposes the registry for scraping.
func Handler() http.Handler {
	return promhttp.HandlerFor(Registry, promhttp.HandlerOpts{})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func (r *statusRecorder) Write(b []byte) (int, error) {
	if r.status == 0 {
		r.status = http.StatusOK
	}
	return r.ResponseWriter.Write(b)
}

// InstrumentHandler wraps next with HTTP request counters/duration. routePattern
// should be the chi route pattern (e.g. "/v1/deployments/{id}"), not the raw path,
// to keep label cardinality bounded.
func InstrumentHandler(routePattern string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/metrics" {
			next.ServeHTTP(w, r)
			return
		}
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		start := time.Now()

		httpInFlight.Inc()
		defer httpInFlight.Dec()

		next.ServeHTTP(rec, r)

		method := strings.ToUpper(r.Method)
		httpRequests.WithLabelValues(method, routePattern, strconv.Itoa(rec.status)).Inc()
		httpDuration.WithLabelValues(method, routePattern).Observe(time.Since(start).Seconds())
	})
}

// RecordRiskDecision records a pre-trade gate outcome: "allow", or for a block
// the audit outcome code (e.g. "kill_switch_active"), falling back to "blocked".
func RecordRiskDecision(outcome string) {
	riskDecisions.WithLabelValues(outcome).Inc()
}

// SetKillSwitchActive records the current kill-switch state for a tenant.
func SetKillSwitchActive(tenantID string, active bool) {
	v := 0.0
	if active {
		v = 1.0
	}
	killSwitchActive.WithLabelValues(tenantID).Set(v)
}

// RecordDrift records one reconciliation drift event for a resource type.
func RecordDrift(resourceType string) {
	reconcileDrift.WithLabelValues(resourceType).Inc()
}

// SetQueueDepth sets the orchestrator queue-depth gauge to depth. Nothing in
// this repository calls it, so the gauge stays at 0.
func SetQueueDepth(depth int) {
	queueDepth.Set(float64(depth))
}

// RecordResearchBudgetEvent records a budget guard decision ("reserved" or "blocked").
func RecordResearchBudgetEvent(decision string) {
	researchBudgetEvents.WithLabelValues(decision).Inc()
}
