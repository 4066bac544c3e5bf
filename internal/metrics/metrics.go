package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	RateLimitDecisionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "clawplay_ratelimit_decisions_total",
			Help: "Rate limiter decisions by scope and outcome",
		},
		[]string{"scope", "outcome"}, // agent|user|ip|grant , allowed|limited
	)

	CreditsGrantedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "clawplay_credits_granted_total",
			Help: "Credits granted by transaction type and source app",
		},
		[]string{"type", "source"}, // earn|bonus , app slug
	)

	ProxyRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "clawplay_proxy_requests_total",
			Help: "Requests forwarded to the trading upstream by status class",
		},
		[]string{"status"}, // 2xx|4xx|5xx|error
	)
)

func MustRegister(r prometheus.Registerer) {
	r.MustRegister(
		RateLimitDecisionsTotal,
		CreditsGrantedTotal,
		ProxyRequestsTotal,
	)
}
