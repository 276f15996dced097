package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics groups the collectors shared by the API client and the stores.
type Metrics struct {
	APIRequests  *prometheus.CounterVec
	APIDuration  *prometheus.HistogramVec
	StoreFetches *prometheus.CounterVec
	StoreLoading *prometheus.GaugeVec
}

// New registers the collectors on reg. A nil reg builds unregistered
// collectors, which is what tests want.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		APIRequests: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "hrportal",
			Subsystem: "api",
			Name:      "requests_total",
			Help:      "Backend requests by method, route and status code.",
		}, []string{"method", "route", "code"}),
		APIDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "hrportal",
			Subsystem: "api",
			Name:      "request_duration_seconds",
			Help:      "Backend request latency.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route"}),
		StoreFetches: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "hrportal",
			Subsystem: "store",
			Name:      "fetches_total",
			Help:      "List store fetches by store and outcome.",
		}, []string{"store", "outcome"}),
		StoreLoading: f.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "hrportal",
			Subsystem: "store",
			Name:      "inflight_fetches",
			Help:      "Fetches currently in flight per store.",
		}, []string{"store"}),
	}
}

// Nop returns unregistered collectors.
func Nop() *Metrics {
	return New(nil)
}
