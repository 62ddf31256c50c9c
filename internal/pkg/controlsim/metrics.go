package controlsim

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	cyclesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "contxt",
		Subsystem: "controlsim",
		Name:      "cycles_total",
		Help:      "Poll cycles run by the simulator",
	})

	cycleErrorsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "contxt",
		Subsystem: "controlsim",
		Name:      "cycle_errors_total",
		Help:      "Poll cycles that ended with an error",
	})

	transitionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "contxt",
		Subsystem: "controlsim",
		Name:      "transitions_total",
		Help:      "Transitions sent to the Control API",
	}, []string{"definition", "event", "result"})

	trackedComponents = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "contxt",
		Subsystem: "controlsim",
		Name:      "tracked_components",
		Help:      "Components with a simulated control event",
	})
)
