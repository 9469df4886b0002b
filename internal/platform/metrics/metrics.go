// Package metrics defines the Prometheus collectors exported by the reconciler binaries.
// Collectors are registered on an injected registerer so tests and multiple binaries
// never share process-wide state.
package metrics

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "exchange_reconciler"

// Notification delivery outcomes
const (
	ResultSent   = "sent"
	ResultFailed = "failed"
)

// Reconciler holds the collectors of the reconciliation loop
type Reconciler struct {
	passes        prometheus.Counter
	passErrors    prometheus.Counter
	passDuration  prometheus.Histogram
	claimed       prometheus.Counter
	contended     prometheus.Counter
	transitions   *prometheus.CounterVec
	notifications *prometheus.CounterVec
}

// NewReconciler registers the loop collectors on reg
func NewReconciler(reg prometheus.Registerer) *Reconciler {
	factory := promauto.With(reg)
	return &Reconciler{
		passes: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "poller",
			Name:      "passes_total",
			Help:      "Total batches processed by the reconciliation loop.",
		}),
		passErrors: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "poller",
			Name:      "pass_errors_total",
			Help:      "Total batches that ended with an error.",
		}),
		passDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "poller",
			Name:      "pass_duration_seconds",
			Help:      "Time spent processing one claimed batch.",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		}),
		claimed: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "locks",
			Name:      "claimed_total",
			Help:      "Total transactions claimed by this instance.",
		}),
		contended: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "locks",
			Name:      "contended_total",
			Help:      "Total claim attempts lost to another instance.",
		}),
		transitions: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "exchange",
			Name:      "transitions_total",
			Help:      "Total status transitions applied to transactions.",
		}, []string{"from", "to"}),
		notifications: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "exchange",
			Name:      "notifications_total",
			Help:      "Total user notifications by delivery result.",
		}, []string{"result"}),
	}
}

func (r *Reconciler) PassCompleted(d time.Duration, err error) {
	r.passes.Inc()
	r.passDuration.Observe(d.Seconds())
	if err != nil {
		r.passErrors.Inc()
	}
}

func (r *Reconciler) Claimed(claimed, attempted int) {
	r.claimed.Add(float64(claimed))
	if attempted > claimed {
		r.contended.Add(float64(attempted - claimed))
	}
}

func (r *Reconciler) Transition(from, to string) {
	r.transitions.WithLabelValues(from, to).Inc()
}

func (r *Reconciler) Notification(result string) {
	r.notifications.WithLabelValues(result).Inc()
}

// HTTP holds the request collectors of the API gateway
type HTTP struct {
	requests *prometheus.CounterVec
	latency  *prometheus.HistogramVec
}

// NewHTTP registers the request collectors on reg
func NewHTTP(reg prometheus.Registerer) *HTTP {
	factory := promauto.With(reg)
	return &HTTP{
		requests: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total HTTP requests by route and status code.",
		}, []string{"method", "route", "code"}),
		latency: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request latency by route.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route"}),
	}
}

func (h *HTTP) Observe(method, route string, code int, d time.Duration) {
	h.requests.WithLabelValues(method, route, strconv.Itoa(code)).Inc()
	h.latency.WithLabelValues(method, route).Observe(d.Seconds())
}

// Dispatcher holds the collectors of the SMS dispatcher
type Dispatcher struct {
	delivered    prometheus.Counter
	deadLettered *prometheus.CounterVec
}

// NewDispatcher registers the SMS dispatcher collectors on reg
func NewDispatcher(reg prometheus.Registerer) *Dispatcher {
	factory := promauto.With(reg)
	return &Dispatcher{
		delivered: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "sms",
			Name:      "delivered_total",
			Help:      "Total notifications accepted by the SMS gateway.",
		}),
		deadLettered: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "sms",
			Name:      "dead_lettered_total",
			Help:      "Total notifications routed to the dead-letter topic.",
		}, []string{"reason"}),
	}
}

func (d *Dispatcher) Delivered() {
	d.delivered.Inc()
}

func (d *Dispatcher) DeadLettered(reason string) {
	d.deadLettered.WithLabelValues(reason).Inc()
}

// Handler serves the collectors registered on g
func Handler(g prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}

// NewServer exposes g on /metrics for binaries that have no HTTP API of their own
func NewServer(port int, g prometheus.Gatherer) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", Handler(g))
	return &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
}
