package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

func init() {
	register(
		agentTurnsTotal,
		agentAdmissionBlocks,
		agentToolLoopIterations,
	)
}

var (
	agentTurnsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "agent_turns_total",
			Help: "Count of accepted conversation turns.",
		},
	)

	agentAdmissionBlocks = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "agent_admission_blocks_total",
			Help: "Count of turns rejected up front, by ceiling.",
		},
		[]string{"reason"}, // 'turns' | 'cost'
	)

	agentToolLoopIterations = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "agent_tool_loop_iterations",
			Help:    "Tool-resolution iterations needed per turn.",
			Buckets: []float64{0, 1, 2, 3, 4, 5},
		},
	)
)

func ObserveTurn(toolIterations int) {
	agentTurnsTotal.Inc()
	agentToolLoopIterations.Observe(float64(toolIterations))
}

func AdmissionBlocked(reason string) {
	agentAdmissionBlocks.WithLabelValues(norm(reason)).Inc()
}
