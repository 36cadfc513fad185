package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	ClaimsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "qrmedia_session_claims_total",
		Help: "View session claims by outcome.",
	}, []string{"outcome"})

	EventsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "qrmedia_statistic_events_total",
		Help: "Statistic event submissions by result.",
	}, []string{"status"})
)
