package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const ServiceName = "stimulus-next"

var (
	// TicksTotal counts tick driver invocations, running or not.
	TicksTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "stim",
		Name:      "ticks_total",
		Help:      "Number of tick driver invocations.",
	})

	// EpochsTotal counts emitted epoch events.
	EpochsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "stim",
		Name:      "epochs_total",
		Help:      "Number of epoch events emitted.",
	})

	// LateTicksTotal counts ticks whose inter-tick gap exceeded 1.5 frame
	// periods. Purely diagnostic; the engine never skips frames on its own.
	LateTicksTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "stim",
		Name:      "late_ticks_total",
		Help:      "Number of ticks arriving later than 1.5 frame periods.",
	})

	// SignalsTotal counts raised signals by name.
	SignalsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "stim",
		Name:      "signals_total",
		Help:      "Number of signals raised, by signal name.",
	}, []string{"signal"})

	// PredictionsTotal counts inbound classifier decisions.
	PredictionsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "stim",
		Name:      "predictions_total",
		Help:      "Number of inbound predict events.",
	})
)
