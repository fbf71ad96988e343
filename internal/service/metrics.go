package service

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// purchasesTotal counts purchase sagas by final outcome.
	purchasesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "booking_purchases_total",
			Help: "Total number of ticket purchase sagas by outcome",
		},
		[]string{"outcome"},
	)

	// cancellationsTotal counts cancellation sagas by final outcome.
	cancellationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "booking_cancellations_total",
			Help: "Total number of ticket cancellation sagas by outcome",
		},
		[]string{"outcome"},
	)

	// compensationsTotal counts compensating actions. A "failed" compensation
	// is a real, lasting inconsistency that needs manual reconciliation.
	compensationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "booking_compensations_total",
			Help: "Total number of saga compensating actions by saga and outcome",
		},
		[]string{"saga", "outcome"},
	)
)

// Metric label values.
const (
	outcomeSuccess            = "success"
	outcomeFailed             = "failed"
	outcomeCompensated        = "compensated"
	outcomeCompensationFailed = "compensation_failed"

	sagaPurchase = "purchase"
	sagaCancel   = "cancel"
)
