package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// HTTP metrics
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "convtree_http_requests_total",
			Help: "Total HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "convtree_http_request_duration_seconds",
			Help:    "HTTP request duration",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1},
		},
		[]string{"method", "path"},
	)

	// Sidebar metrics
	ActionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "convtree_actions_total",
			Help: "Dispatched sidebar actions by outcome",
		},
		[]string{"action", "outcome"}, // outcome: success, error, declined
	)

	ActionDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "convtree_action_duration_seconds",
			Help:    "Sidebar action latency, storage round trips included",
			Buckets: []float64{.0005, .001, .005, .01, .05, .1, .5, 1, 5},
		},
		[]string{"action"},
	)

	TreeRendersTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "convtree_tree_renders_total",
			Help: "Tree renders by result",
		},
		[]string{"result"}, // ok, error
	)
)

// SidebarObserver feeds dispatcher and renderer outcomes into the collectors
type SidebarObserver struct{}

// ObserveAction records one dispatched action
func (SidebarObserver) ObserveAction(action, outcome string, elapsed time.Duration) {
	ActionsTotal.WithLabelValues(action, outcome).Inc()
	ActionDuration.WithLabelValues(action).Observe(elapsed.Seconds())
}

// ObserveRender records one tree render
func (SidebarObserver) ObserveRender(err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	TreeRendersTotal.WithLabelValues(result).Inc()
}
