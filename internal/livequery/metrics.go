package livequery

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	changesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "livequery_changes_total",
			Help: "Store changes dispatched to live subscriptions",
		},
		[]string{"collection", "op"},
	)

	refetchesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "livequery_refetches_total",
			Help: "Limited views re-evaluated against the store",
		},
		[]string{"collection"},
	)

	activeSubscriptions = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "livequery_active_subscriptions",
			Help: "Subscriptions currently registered on the feed",
		},
	)
)
