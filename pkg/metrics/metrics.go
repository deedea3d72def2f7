package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	Logins = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: "agendasync", Name: "logins_total", Help: "Number of login attempts by method and outcome."},
		[]string{"method", "outcome"},
	)
	Reconciliations = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: "agendasync", Name: "reconciliations_total", Help: "Number of OAuth reconciliations by outcome (created, linked, refreshed, conflict, error)."},
		[]string{"outcome"},
	)
	CalendarRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: "agendasync", Name: "calendar_requests_total", Help: "Number of downstream calendar calls by outcome."},
		[]string{"outcome"},
	)
	RateLimitAllowed = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: "agendasync", Name: "rate_limit_allowed_total", Help: "Number of allowed requests by limiter type."},
		[]string{"limiter"},
	)
	RateLimitRejected = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: "agendasync", Name: "rate_limit_rejected_total", Help: "Number of rejected requests by limiter type."},
		[]string{"limiter"},
	)
)

func RegisterCollectors(reg prometheus.Registerer) {
	reg.MustRegister(Logins)
	reg.MustRegister(Reconciliations)
	reg.MustRegister(CalendarRequests)
	reg.MustRegister(RateLimitAllowed)
	reg.MustRegister(RateLimitRejected)
}
