package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	ordersCreated = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pickup_orders_created_total",
			Help: "Orders created, by caller kind (user|guest).",
		},
		[]string{"caller"},
	)

	orderTransitions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pickup_order_transitions_total",
			Help: "Committed order status transitions.",
		},
		[]string{"from", "to"},
	)

	rateLimitDecisions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pickup_rate_limit_decisions_total",
			Help: "Sliding-window rate limiter decisions by function and outcome (allowed|limited|fail_open).",
		},
		[]string{"function", "outcome"},
	)

	idempotencyOutcomes = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pickup_idempotency_outcomes_total",
			Help: "Idempotency cache check outcomes (new|replay|in_progress|reclaimed|fail_open).",
		},
		[]string{"function", "outcome"},
	)

	effectTasks = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pickup_effect_tasks_total",
			Help: "Post-commit effect tasks by name and outcome (ok|error|panic|dropped).",
		},
		[]string{"effect", "outcome"},
	)
)

func init() {
	prometheus.MustRegister(ordersCreated, orderTransitions, rateLimitDecisions, idempotencyOutcomes, effectTasks)
}

// OrderCreated counts a new order.
func OrderCreated(guest bool) {
	caller := "user"
	if guest {
		caller = "guest"
	}
	ordersCreated.WithLabelValues(caller).Inc()
}

// OrderTransition counts a committed status change.
func OrderTransition(from, to string) { orderTransitions.WithLabelValues(from, to).Inc() }

// RateLimitDecision counts one limiter decision.
func RateLimitDecision(function, outcome string) {
	rateLimitDecisions.WithLabelValues(function, outcome).Inc()
}

// IdempotencyOutcome counts one cache check.
func IdempotencyOutcome(function, outcome string) {
	idempotencyOutcomes.WithLabelValues(function, outcome).Inc()
}

// EffectOutcome matches notify.Observer and counts effect task outcomes.
func EffectOutcome(effect, outcome string) { effectTasks.WithLabelValues(effect, outcome).Inc() }
