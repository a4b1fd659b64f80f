// Package metrics holds the Prometheus collectors shared by the resolver,
// aggregator and transport. A nil *Metrics is valid and records nothing.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics groups every collector exported by the service
type Metrics struct {
	resolutions       *prometheus.CounterVec
	cycles            *prometheus.CounterVec
	stageDuration     *prometheus.HistogramVec
	unavailable       *prometheus.CounterVec
	rendered          prometheus.Gauge
	bidOrderViolation prometheus.Counter
	rpcCalls          *prometheus.CounterVec
	breakerState      *prometheus.GaugeVec
}

// New creates the collectors and registers them with reg
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		resolutions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "auctionview_resolutions_total",
				Help: "Address resolutions by role and outcome",
			},
			[]string{"role", "outcome"},
		),
		cycles: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "auctionview_aggregation_cycles_total",
				Help: "Aggregation cycles by final state (ready, error, stale)",
			},
			[]string{"state"},
		),
		stageDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "auctionview_stage_duration_seconds",
				Help:    "Duration of each aggregation stage",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"stage"},
		),
		unavailable: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "auctionview_auctions_unavailable_total",
				Help: "Auctions excluded from the view by failing dependency",
			},
			[]string{"reason"},
		),
		rendered: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "auctionview_auctions_rendered",
				Help: "Auctions in the last published view",
			},
		),
		bidOrderViolation: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "auctionview_bid_order_violations_total",
				Help: "Bid histories whose amounts are not non-decreasing",
			},
		),
		rpcCalls: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "auctionview_rpc_calls_total",
				Help: "Read-only contract calls by chain, method and status",
			},
			[]string{"chain_id", "method", "status"},
		),
		breakerState: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "auctionview_rpc_breaker_state",
				Help: "Transport circuit breaker state (0=closed, 1=open, 2=half-open)",
			},
			[]string{"chain_id"},
		),
	}

	reg.MustRegister(
		m.resolutions,
		m.cycles,
		m.stageDuration,
		m.unavailable,
		m.rendered,
		m.bidOrderViolation,
		m.rpcCalls,
		m.breakerState,
	)
	return m
}

// Resolution counts one address resolution by role and outcome (matched, fallback, invalid_role)
func (m *Metrics) Resolution(role, outcome string) {
	if m == nil {
		return
	}
	m.resolutions.WithLabelValues(role, outcome).Inc()
}

// Cycle counts a finished aggregation cycle by its outcome state
func (m *Metrics) Cycle(state string) {
	if m == nil {
		return
	}
	m.cycles.WithLabelValues(state).Inc()
}

// ObserveStage records how long a named aggregation stage took
func (m *Metrics) ObserveStage(stage string, started time.Time) {
	if m == nil {
		return
	}
	m.stageDuration.WithLabelValues(stage).Observe(time.Since(started).Seconds())
}

// Unavailable counts n auctions excluded from a snapshot for reason
func (m *Metrics) Unavailable(reason string, n int) {
	if m == nil || n == 0 {
		return
	}
	m.unavailable.WithLabelValues(reason).Add(float64(n))
}

// Rendered sets the number of auction cards in the last published snapshot
func (m *Metrics) Rendered(n int) {
	if m == nil {
		return
	}
	m.rendered.Set(float64(n))
}

// BidOrderViolation counts a bid history whose amounts decrease
func (m *Metrics) BidOrderViolation() {
	if m == nil {
		return
	}
	m.bidOrderViolation.Inc()
}

// RPCCall counts one contract call by network, method and status
func (m *Metrics) RPCCall(chainID, method, status string) {
	if m == nil {
		return
	}
	m.rpcCalls.WithLabelValues(chainID, method, status).Inc()
}

// BreakerState records a network's circuit breaker state (0 closed, 1 open, 2 half-open)
func (m *Metrics) BreakerState(chainID string, state int) {
	if m == nil {
		return
	}
	m.breakerState.WithLabelValues(chainID).Set(float64(state))
}
