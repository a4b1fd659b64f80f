package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.Resolution("auction", "matched")
		m.Cycle("ready")
		m.ObserveStage("bids", time.Now())
		m.Unavailable("bids", 2)
		m.Rendered(3)
		m.BidOrderViolation()
		m.RPCCall("31337", "decimals", "ok")
		m.BreakerState("31337", 1)
	})
}

func TestMetrics_Record(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)

	m.Cycle("ready")
	m.Cycle("ready")
	m.Cycle("error")
	m.Unavailable("metadata", 0)
	m.Unavailable("bids", 2)
	m.Rendered(4)
	m.BreakerState("84532", 1)

	assert.Equal(t, float64(2), testutil.ToFloat64(m.cycles.WithLabelValues("ready")))
	assert.Equal(t, float64(2), testutil.ToFloat64(m.unavailable.WithLabelValues("bids")))
	assert.Equal(t, float64(4), testutil.ToFloat64(m.rendered))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.breakerState.WithLabelValues("84532")))

	count, err := testutil.GatherAndCount(reg, "auctionview_auctions_unavailable_total")
	require.NoError(t, err)
	assert.Equal(t, 1, count, "zero additions create no series")
}
