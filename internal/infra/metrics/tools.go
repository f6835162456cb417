package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

func init() {
	register(
		toolDispatchTotal,
		toolTruncationsTotal,
	)
}

var (
	toolDispatchTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tool_dispatch_total",
			Help: "Count of tool dispatches per tool/status.",
		},
		[]string{"tool", "status"}, // status: 'ok' | 'error' | 'unknown'
	)

	toolTruncationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tool_result_truncations_total",
			Help: "Count of tool results shrunk by the truncation policy.",
		},
		[]string{"tool"},
	)
)

func ObserveToolDispatch(tool, status string) {
	toolDispatchTotal.WithLabelValues(norm(tool), norm(status)).Inc()
}

func ObserveToolTruncation(tool string) {
	toolTruncationsTotal.WithLabelValues(norm(tool)).Inc()
}
