package metrics

import (
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCollector_Counters(t *testing.T) {
	c := New()

	c.ObserveAdmission("proceed", "available", 0.9, true)
	c.ObserveAdmission("deny", "no_path", 0, false)
	c.ObserveAdmission("deny", "no_path", 0, false)
	c.ObserveSettlement("BTC/USDT")
	c.OrderBookFetchFailed("ETH/USDT")
	c.ObserveEstimate("BTC/USDT", "fallback", 0.3, 0.44)
	c.ObserveTickerRefresh(nil)
	c.ObserveTickerRefresh(errors.New("partial"))

	assert.Equal(t, 1.0, testutil.ToFloat64(c.admissions.WithLabelValues("proceed", "available")))
	assert.Equal(t, 2.0, testutil.ToFloat64(c.admissions.WithLabelValues("deny", "no_path")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.settlements.WithLabelValues("BTC/USDT")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.bookFailures.WithLabelValues("ETH/USDT")))
	assert.Equal(t, 0.3, testutil.ToFloat64(c.confidence.WithLabelValues("BTC/USDT", "fallback")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.tickerRefresh.WithLabelValues("partial_failure")))
	assert.Equal(t, 1, testutil.CollectAndCount(c.pwin))
}

func TestCollector_NilIsNoop(t *testing.T) {
	var c *Collector
	c.ObserveAdmission("proceed", "available", 1, true)
	c.ObserveSettlement("BTC/USDT")
	c.OrderBookFetchFailed("ETH/USDT")
	c.ObserveEstimate("BTC/USDT", "fallback", 0.3, 0.44)
	c.ObserveTickerRefresh(nil)
	assert.Nil(t, c.Registry())
}

func TestHandler_ServesMetricsAndHealth(t *testing.T) {
	c := New()
	c.ObserveSettlement("BTC/USDT")

	srv := httptest.NewServer(Handler(c.Registry()))
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/healthz")
	require.NoError(t, err)
	_ = resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, err = http.Get(srv.URL + "/metrics")
	require.NoError(t, err)
	body, err := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	require.NoError(t, err)
	assert.Contains(t, string(body), "trades_gate_settlements_total")
}
