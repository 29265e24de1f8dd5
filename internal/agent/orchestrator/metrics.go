package orchestrator

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/mf-advisor-core/server/internal/agent/model"
)

// Turn outcomes as reported in mf_advisor_turns_total.
const (
	OutcomeOK        = "ok"
	OutcomeConsent   = "consent"
	OutcomeClarify   = "clarify"
	OutcomeRetry     = "retry"
	OutcomeCorrupted = "corrupted"
	OutcomeCompleted = "completed"
)

// Metrics exposes Prometheus collectors for conversation turns and session lifecycle.
// A nil *Metrics records nothing.
type Metrics struct {
	turns        *prometheus.CounterVec
	turnDuration *prometheus.HistogramVec
	sessions     *prometheus.CounterVec
}

// NewMetrics creates the collectors and registers them with reg when it is non-nil.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		turns: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "mf_advisor",
				Name:      "turns_total",
				Help:      "Conversation turns handled, by active agent and outcome.",
			},
			[]string{"agent", "outcome"},
		),
		turnDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "mf_advisor",
				Name:      "agent_turn_duration_seconds",
				Help:      "Time spent inside a sub-agent, including LLM and portal calls.",
				Buckets:   []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
			},
			[]string{"agent"},
		),
		sessions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "mf_advisor",
				Name:      "sessions_total",
				Help:      "Session lifecycle events.",
			},
			[]string{"event"},
		),
	}
	if reg != nil {
		reg.MustRegister(m.turns, m.turnDuration, m.sessions)
	}
	return m
}

func (m *Metrics) observeTurn(agent model.AgentID, outcome string) {
	if m == nil {
		return
	}
	m.turns.WithLabelValues(agent.String(), outcome).Inc()
}

func (m *Metrics) observeAgent(agent model.AgentID, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.turnDuration.WithLabelValues(agent.String()).Observe(elapsed.Seconds())
}

func (m *Metrics) observeSession(event string) {
	if m == nil {
		return
	}
	m.sessions.WithLabelValues(event).Inc()
}
