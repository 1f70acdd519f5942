// Package metrics holds the Prometheus collectors for billing and ledger activity.
// A nil *Metrics is valid and records nothing.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type Metrics struct {
	billsGenerated  *prometheus.CounterVec
	billTransitions *prometheus.CounterVec
	fundTransitions *prometheus.CounterVec
	ledgerEntries   *prometheus.CounterVec
	cacheLookups    *prometheus.CounterVec
}

func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		billsGenerated: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "kaskelas",
			Name:      "bills_generated_total",
			Help:      "Bill generator outcomes per eligible student.",
		}, []string{"outcome"}),
		billTransitions: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "kaskelas",
			Name:      "bill_transitions_total",
			Help:      "Successful cash bill state transitions.",
		}, []string{"action"}),
		fundTransitions: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "kaskelas",
			Name:      "fund_application_transitions_total",
			Help:      "Fund application reviews.",
		}, []string{"action"}),
		ledgerEntries: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "kaskelas",
			Name:      "ledger_entries_total",
			Help:      "Ledger entries appended.",
		}, []string{"type", "source"}),
		cacheLookups: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "kaskelas",
			Name:      "cache_lookups_total",
			Help:      "Aggregate cache lookups.",
		}, []string{"result"}),
	}
}

func (m *Metrics) BillsGenerated(outcome string, n int) {
	if m == nil || n == 0 {
		return
	}
	m.billsGenerated.WithLabelValues(outcome).Add(float64(n))
}

func (m *Metrics) BillTransition(action string) {
	if m == nil {
		return
	}
	m.billTransitions.WithLabelValues(action).Inc()
}

func (m *Metrics) FundTransition(action string) {
	if m == nil {
		return
	}
	m.fundTransitions.WithLabelValues(action).Inc()
}

func (m *Metrics) LedgerEntry(txType, source string) {
	if m == nil {
		return
	}
	m.ledgerEntries.WithLabelValues(txType, source).Inc()
}

func (m *Metrics) CacheLookup(result string) {
	if m == nil {
		return
	}
	m.cacheLookups.WithLabelValues(result).Inc()
}
