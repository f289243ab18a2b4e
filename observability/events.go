package observability

import (
	"math/big"
	"sync"

	"github.com/prometheus/client_golang/prometheus"

	"flakeledger/core/events"
)

type ledgerMetrics struct {
	events    *prometheus.CounterVec
	staked    prometheus.Counter
	paidOut   *prometheus.CounterVec
	rejected  *prometheus.CounterVec
	escrowed  prometheus.Gauge
	eventSeqs prometheus.Gauge
}

var (
	ledgerMetricsOnce sync.Once
	ledgerRegistry    *ledgerMetrics
)

// Ledger returns the metrics registry tracking Flake ledger activity.
func Ledger() *ledgerMetrics {
	ledgerMetricsOnce.Do(func() {
		ledgerRegistry = &ledgerMetrics{
			events: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "flake",
				Subsystem: "ledger",
				Name:      "events_total",
				Help:      "Count of committed ledger events segmented by type.",
			}, []string{"type"}),
			staked: prometheus.NewCounter(prometheus.CounterOpts{
				Namespace: "flake",
				Subsystem: "ledger",
				Name:      "staked_wei_total",
				Help:      "Cumulative value staked into Flakes, in base units.",
			}),
			paidOut: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "flake",
				Subsystem: "ledger",
				Name:      "paid_out_wei_total",
				Help:      "Cumulative value leaving the vault segmented by kind (payout, fee, refund).",
			}, []string{"kind"}),
			rejected: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "flake",
				Subsystem: "ledger",
				Name:      "rejected_calls_total",
				Help:      "Mutating calls rejected by the ledger segmented by operation and error category.",
			}, []string{"op", "category"}),
			escrowed: prometheus.NewGauge(prometheus.GaugeOpts{
				Namespace: "flake",
				Subsystem: "ledger",
				Name:      "escrowed_wei",
				Help:      "Value currently held by the vault, in base units.",
			}),
			eventSeqs: prometheus.NewGauge(prometheus.GaugeOpts{
				Namespace: "flake",
				Subsystem: "ledger",
				Name:      "event_sequence",
				Help:      "Sequence number of the most recently committed event.",
			}),
		}
		prometheus.MustRegister(
			ledgerRegistry.events,
			ledgerRegistry.staked,
			ledgerRegistry.paidOut,
			ledgerRegistry.rejected,
			ledgerRegistry.escrowed,
			ledgerRegistry.eventSeqs,
		)
	})
	return ledgerRegistry
}

// RecordEvent accounts for a committed ledger event.
func (m *ledgerMetrics) RecordEvent(evt events.Event, sequence uint64) {
	if m == nil || evt == nil {
		return
	}
	m.events.WithLabelValues(evt.EventType()).Inc()
	m.eventSeqs.Set(float64(sequence))
	switch e := evt.(type) {
	case events.StakeAdded:
		m.staked.Add(bigToFloat(e.Amount))
	case events.FlakeResolved:
		m.paidOut.WithLabelValues("payout").Add(bigToFloat(e.Payout))
		m.paidOut.WithLabelValues("fee").Add(bigToFloat(e.Fee))
	case events.RefundClaimed:
		m.paidOut.WithLabelValues("refund").Add(bigToFloat(e.Amount))
	}
}

// RecordRejected counts a failed mutating call.
func (m *ledgerMetrics) RecordRejected(op, category string) {
	if m == nil {
		return
	}
	if category == "" {
		category = "internal"
	}
	m.rejected.WithLabelValues(op, category).Inc()
}

// SetEscrowed publishes the vault balance.
func (m *ledgerMetrics) SetEscrowed(value *big.Int) {
	if m == nil {
		return
	}
	m.escrowed.Set(bigToFloat(value))
}
