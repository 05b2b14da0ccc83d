package observability

import (
	"context"

	"github.com/aretw0/waypoint/pkg/domain"
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the engine's Prometheus collectors.
type Metrics struct {
	Transitions        *prometheus.CounterVec
	TransitionDuration *prometheus.HistogramVec
	GuardFailures      *prometheus.CounterVec
	Actions            *prometheus.CounterVec
	ActionDuration     *prometheus.HistogramVec
	Conflicts          prometheus.Counter
}

// NewMetrics creates the collectors and registers them with reg.
// A nil reg leaves them unregistered.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		Transitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "waypoint",
			Name:      "transitions_total",
			Help:      "Committed transitions.",
		}, []string{"tenant_id", "config_id", "transition_id"}),
		TransitionDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "waypoint",
			Name:      "transition_duration_seconds",
			Help:      "Time from request to commit, exit actions included.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"config_id"}),
		GuardFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "waypoint",
			Name:      "guard_failures_total",
			Help:      "Transitions rejected because a condition was not met.",
		}, []string{"tenant_id", "config_id", "transition_id"}),
		Actions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "waypoint",
			Name:      "actions_total",
			Help:      "Dispatched state actions by outcome.",
		}, []string{"action_type", "phase", "result"}),
		ActionDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "waypoint",
			Name:      "action_duration_seconds",
			Help:      "Duration of state action dispatches.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"action_type"}),
		Conflicts: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "waypoint",
			Name:      "concurrent_modifications_total",
			Help:      "Transitions that lost the compare-and-swap race.",
		}),
	}
	if reg != nil {
		reg.MustRegister(m.Transitions, m.TransitionDuration, m.GuardFailures, m.Actions, m.ActionDuration, m.Conflicts)
	}
	return m
}

// Hooks returns lifecycle hooks feeding the collectors.
func (m *Metrics) Hooks() domain.LifecycleHooks {
	return domain.LifecycleHooks{
		OnTransition: func(ctx context.Context, e *domain.TransitionEvent) {
			m.Transitions.WithLabelValues(e.TenantID, e.ConfigID, e.Entry.TransitionID).Inc()
			m.TransitionDuration.WithLabelValues(e.ConfigID).Observe(e.Duration.Seconds())
		},
		OnGuardFailed: func(ctx context.Context, e *domain.GuardEvent) {
			m.GuardFailures.WithLabelValues(e.TenantID, e.ConfigID, e.TransitionID).Inc()
		},
		OnActionDispatched: func(ctx context.Context, e *domain.ActionEvent) {
			m.Actions.WithLabelValues(string(e.Outcome.Type), string(e.Outcome.Phase), result(e.Outcome)).Inc()
			m.ActionDuration.WithLabelValues(string(e.Outcome.Type)).Observe(e.Outcome.Duration.Seconds())
		},
		OnConflict: func(ctx context.Context, objectID string) {
			m.Conflicts.Inc()
		},
	}
}

func result(o domain.ActionOutcome) string {
	switch {
	case o.Success:
		return "success"
	case o.Aborted:
		return "aborted"
	default:
		return "failure"
	}
}
