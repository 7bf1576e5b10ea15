package orderbook

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/uhyunpark/tickbook/pkg/app/core/account"
)

func TestBookMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	m, err := NewMetrics(reg)
	require.NoError(t, err)

	b, l := newTestBook(t, WithMetrics(m))
	restOrders(t, b, l, maker, Ask, 10, 2, 100)
	restOrders(t, b, l, maker, Ask, 11, 1, 100)
	l.Deposit(taker, account.USD, 10_000)

	_, err = b.HandleOrder(NewOrder(1, 0, 0, taker, Market, Bid, 250))
	require.NoError(t, err)
	_, err = b.HandleOrder(NewOrder(2, 5, 0, taker, Limit, Bid, 100_000))
	require.Error(t, err)

	assert.Equal(t, 3.0, testutil.ToFloat64(m.ordersHandled.WithLabelValues("limit", "ask", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ordersHandled.WithLabelValues("market", "bid", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ordersHandled.WithLabelValues("limit", "bid", "rejected")))
	assert.Equal(t, 3.0, testutil.ToFloat64(m.fills))
	assert.Equal(t, 250.0, testutil.ToFloat64(m.filledQuantity))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.priceLevels))
	assert.Equal(t, 1, testutil.CollectAndCount(m.sweepLevels))

	// a second registration on the same registry is refused
	_, err = NewMetrics(reg)
	require.Error(t, err)
}

func TestNilMetrics(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.observeOrder(NewOrder(1, 1, 0, 1, Limit, Bid, 1), nil)
		m.observeFill(1)
		m.observeSweep(1)
		m.setPriceLevels(1)
	})
}
