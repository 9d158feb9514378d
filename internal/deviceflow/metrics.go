package deviceflow

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Outcome labels beyond oauth.OutcomeKind
const (
	outcomeNoSession   = "no_session"
	outcomeUnreachable = "unreachable"
)

// Metrics counts flow transitions
type Metrics struct {
	started       prometheus.Counter
	startFailures prometheus.Counter
	outcomes      *prometheus.CounterVec
}

// NewMetrics creates flow metrics registered with reg; a nil reg leaves them unregistered
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		started: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "devicebot",
			Name:      "sessions_started_total",
			Help:      "Device authorization sessions started.",
		}),
		startFailures: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "devicebot",
			Name:      "start_failures_total",
			Help:      "Device authorization requests that failed.",
		}),
		outcomes: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "devicebot",
			Name:      "check_outcomes_total",
			Help:      "Check requests by outcome.",
		}, []string{"outcome"}),
	}
}
