// internal/metrics/metrics.go
// Package metrics holds the Prometheus collectors of the commitment service.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/shopspring/decimal"

	"finflow-commitments/internal/util"
)

const namespace = "finflow"

// OutcomeOK labels successful operations; failures are labelled with their error kind.
const OutcomeOK = "OK"

var CommitmentsCreated = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: namespace,
	Name:      "commitments_created_total",
	Help:      "Commitments created, by kind.",
}, []string{"kind"})

var CommitmentCreateFailures = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: namespace,
	Name:      "commitment_create_failures_total",
	Help:      "Rejected commitment creations, by kind and error kind.",
}, []string{"kind", "error"})

var ObligationsDeleted = promauto.NewCounter(prometheus.CounterOpts{
	Namespace: namespace,
	Name:      "zakat_obligations_deleted_total",
	Help:      "Zakat obligations deleted by their owner.",
})

var Settlements = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: namespace,
	Name:      "settlements_total",
	Help:      "Settlement attempts, by commitment kind and outcome.",
}, []string{"kind", "outcome"})

var SettledAmount = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: namespace,
	Name:      "settled_amount_total",
	Help:      "Sum of successfully settled amounts, by commitment kind.",
}, []string{"kind"})

var SettlementDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
	Namespace: namespace,
	Name:      "settlement_duration_seconds",
	Help:      "Latency of settle requests including the wallet debit.",
	Buckets:   prometheus.DefBuckets,
}, []string{"kind"})

// UnrecordedDebits counts debits that succeeded at the gateway but whose settlement
// could not be stored. Every increment needs manual reconciliation.
var UnrecordedDebits = promauto.NewCounter(prometheus.CounterOpts{
	Namespace: namespace,
	Name:      "unrecorded_debits_total",
	Help:      "Wallet debits without a recorded settlement.",
})

// Outcome returns the outcome label for err.
func Outcome(err error) string {
	if err == nil {
		return OutcomeOK
	}
	return util.KindOf(err).String()
}

// ObserveCreate records the result of a commitment creation.
func ObserveCreate(kind string, err error) {
	if err != nil {
		CommitmentCreateFailures.WithLabelValues(kind, Outcome(err)).Inc()
		return
	}
	CommitmentsCreated.WithLabelValues(kind).Inc()
}

// ObserveSettlement records the result of a settlement that started at start.
func ObserveSettlement(kind string, amount decimal.Decimal, start time.Time, err error) {
	SettlementDuration.WithLabelValues(kind).Observe(time.Since(start).Seconds())
	Settlements.WithLabelValues(kind, Outcome(err)).Inc()
	if err == nil {
		SettledAmount.WithLabelValues(kind).Add(amount.InexactFloat64())
	}
}
