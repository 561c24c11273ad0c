package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "fairplay_wallet"

// Metrics holds the service counters. A nil *Metrics is valid and records nothing.
type Metrics struct {
	ledgerEntriesTotal  *prometheus.CounterVec
	ledgerConflicts     prometheus.Counter
	depositsInitiated   *prometheus.CounterVec
	callbacksTotal      *prometheus.CounterVec
	betsSettledTotal    *prometheus.CounterVec
	houseInsolventTotal prometheus.Counter
	renewalsTotal       *prometheus.CounterVec
	renewalLastRunUnix  prometheus.Gauge
	httpRequestsTotal   *prometheus.CounterVec
}

// New registers the collectors with reg. Pass prometheus.DefaultRegisterer
// to expose them on the default /metrics handler.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		ledgerEntriesTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "ledger",
				Name:      "entries_total",
				Help:      "Ledger mutations partitioned by entry type and result.",
			},
			[]string{"type", "result"},
		),
		ledgerConflicts: f.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "ledger",
				Name:      "tx_conflicts_total",
				Help:      "Transactions retried after a deadlock, serialization failure or lock timeout.",
			},
		),
		depositsInitiated: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "deposits",
				Name:      "initiated_total",
				Help:      "Deposit initiations partitioned by method and result.",
			},
			[]string{"method", "result"},
		),
		callbacksTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "deposits",
				Name:      "callbacks_total",
				Help:      "Gateway callbacks partitioned by provider, source and outcome.",
			},
			[]string{"provider", "source", "outcome"},
		),
		betsSettledTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "games",
				Name:      "rounds_total",
				Help:      "Settled rounds partitioned by game and result.",
			},
			[]string{"game", "result"},
		),
		houseInsolventTotal: f.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "games",
				Name:      "house_insolvent_total",
				Help:      "Rounds rejected because the house could not cover the maximum payout.",
			},
		),
		renewalsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "subscriptions",
				Name:      "renewals_total",
				Help:      "Subscription renewal attempts partitioned by result.",
			},
			[]string{"result"},
		),
		renewalLastRunUnix: f.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: "subscriptions",
				Name:      "renewal_last_run_unix",
				Help:      "Unix time of the most recent renewal pass.",
			},
		),
		httpRequestsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "http",
				Name:      "requests_total",
				Help:      "HTTP requests partitioned by route, method and status code.",
			},
			[]string{"route", "method", "status"},
		),
	}
}

func (m *Metrics) LedgerEntry(entryType, result string) {
	if m == nil {
		return
	}
	m.ledgerEntriesTotal.WithLabelValues(entryType, result).Inc()
}

func (m *Metrics) LedgerConflict() {
	if m == nil {
		return
	}
	m.ledgerConflicts.Inc()
}

func (m *Metrics) DepositInitiated(method, result string) {
	if m == nil {
		return
	}
	m.depositsInitiated.WithLabelValues(method, result).Inc()
}

func (m *Metrics) Callback(provider, source, outcome string) {
	if m == nil {
		return
	}
	m.callbacksTotal.WithLabelValues(provider, source, outcome).Inc()
}

func (m *Metrics) RoundSettled(game, result string) {
	if m == nil {
		return
	}
	m.betsSettledTotal.WithLabelValues(game, result).Inc()
}

func (m *Metrics) HouseInsolvent() {
	if m == nil {
		return
	}
	m.houseInsolventTotal.Inc()
}

func (m *Metrics) Renewal(result string, unixTime int64) {
	if m == nil {
		return
	}
	m.renewalsTotal.WithLabelValues(result).Inc()
	m.renewalLastRunUnix.Set(float64(unixTime))
}

func (m *Metrics) HTTPRequest(route, method, status string) {
	if m == nil {
		return
	}
	m.httpRequestsTotal.WithLabelValues(route, method, status).Inc()
}
