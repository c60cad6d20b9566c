package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	GatewayRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "classboard_gateway_requests_total",
		Help: "Requests sent to the remote content gateway, by action and outcome.",
	}, []string{"action", "outcome"})

	CacheFetches = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "classboard_cache_fetches_total",
		Help: "Board cache fetches, by category and outcome.",
	}, []string{"category", "outcome"})

	Workspaces = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "classboard_workspaces",
		Help: "Device workspaces currently held in memory.",
	})
)

// Outcome labels a request result for the counters above.
func Outcome(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}
