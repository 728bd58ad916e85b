// Package observability holds the Prometheus collectors shared by the server and the tracker.
package observability

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"namaz/internal/domain"
)

var (
	httpRequests = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "namaz",
		Subsystem: "http",
		Name:      "requests_total",
		Help:      "HTTP requests served, by route, method and status code.",
	}, []string{"route", "method", "status"})
	httpDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "namaz",
		Subsystem: "http",
		Name:      "request_duration_seconds",
		Help:      "HTTP request latency by route.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"route"})
	kazaPrayers = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "namaz",
		Subsystem: "kaza",
		Name:      "prayers_total",
		Help:      "Makeup prayers recorded, by slot.",
	}, []string{"slot"})
	trackerDegraded = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "namaz",
		Subsystem: "tracker",
		Name:      "degraded_total",
		Help:      "Remote calls that failed and were absorbed locally, by operation.",
	}, []string{"op"})
	trackerDiscarded = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "namaz",
		Subsystem: "tracker",
		Name:      "discarded_responses_total",
		Help:      "Remote responses dropped because local state moved on, by operation.",
	}, []string{"op"})
)

func init() {
	prometheus.MustRegister(httpRequests, httpDuration, kazaPrayers, trackerDegraded, trackerDiscarded)
}

// Handler exposes the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}

// RecordHTTP records one served request.
func RecordHTTP(route, method string, status int, elapsed time.Duration) {
	httpRequests.WithLabelValues(route, method, strconv.Itoa(status)).Inc()
	httpDuration.WithLabelValues(route).Observe(elapsed.Seconds())
}

// RecordKaza adds a stored kaza submission to the per-slot counters.
func RecordKaza(deltas domain.Counts) {
	for _, s := range domain.FarzSlots {
		if n := deltas.Get(s); n > 0 {
			kazaPrayers.WithLabelValues(s.String()).Add(float64(n))
		}
	}
}

// RecordDegraded counts a remote failure absorbed by the tracker.
func RecordDegraded(op string) {
	trackerDegraded.WithLabelValues(op).Inc()
}

// RecordDiscarded counts a stale remote response the tracker ignored.
func RecordDiscarded(op string) {
	trackerDiscarded.WithLabelValues(op).Inc()
}
