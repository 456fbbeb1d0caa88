// Package metrics holds the domain collectors exported on /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "storefront"

var (
	// FlashSaleFetchFailures counts eligibility lookups that failed open.
	FlashSaleFetchFailures = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "flashsale",
		Name:      "fetch_failures_total",
		Help:      "Active flash sale fetches that failed and defaulted eligibility to allowed.",
	})

	DiscountRejections = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "checkout",
		Name:      "discount_rejections_total",
		Help:      "Checkout quotes rejected by the discount calculator, by error kind.",
	}, []string{"kind"})

	OrdersPlaced = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "checkout",
		Name:      "orders_placed_total",
		Help:      "Orders placed through checkout.",
	})

	StatusUpdates = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "orders",
		Name:      "status_updates_total",
		Help:      "Order status writes by canonical status and source.",
	}, []string{"status", "source"})

	// UnknownStatuses counts raw statuses that matched no normalizer rule.
	UnknownStatuses = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "orders",
		Name:      "unknown_statuses_total",
		Help:      "Raw order statuses that did not map to a canonical status.",
	})

	JobRuns = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "jobs",
		Name:      "runs_total",
		Help:      "Scheduled job runs by job and result.",
	}, []string{"job", "result"})

	EventsProjected = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "projector",
		Name:      "events_total",
		Help:      "Events applied to read models by aggregate type and result.",
	}, []string{"aggregate", "result"})
)
