package exchange

import (
	"context"
	"errors"
	"testing"
	"time"

	ccxt "github.com/ccxt/ccxt/go/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"trades-gate/internal/config"
)

type fakeMarket struct {
	books     map[string]ccxt.OrderBook
	tickers   map[string]ccxt.Ticker
	failures  []error
	panicWith interface{}
	calls     int
	lastOpts  int
}

func (f *fakeMarket) next() error {
	f.calls++
	if f.panicWith != nil {
		panic(f.panicWith)
	}
	if len(f.failures) > 0 {
		err := f.failures[0]
		f.failures = f.failures[1:]
		return err
	}
	return nil
}

func (f *fakeMarket) FetchOrderBook(symbol string, options ...ccxt.FetchOrderBookOptions) (ccxt.OrderBook, error) {
	f.lastOpts = len(options)
	if err := f.next(); err != nil {
		return ccxt.OrderBook{}, err
	}
	return f.books[symbol], nil
}

func (f *fakeMarket) FetchTicker(symbol string, _ ...ccxt.FetchTickerOptions) (ccxt.Ticker, error) {
	if err := f.next(); err != nil {
		return ccxt.Ticker{}, err
	}
	return f.tickers[symbol], nil
}

func testExchangeConfig() config.ExchangeConfig {
	return config.ExchangeConfig{
		Name:           "binance",
		OrderBookDepth: 20,
		Retry: config.RetryConfig{
			MaxAttempts: 3,
			MinDelay:    time.Millisecond,
			MaxDelay:    2 * time.Millisecond,
		},
	}
}

func ptr[T any](v T) *T { return &v }

func TestNewClient_UnsupportedVenue(t *testing.T) {
	cfg := testExchangeConfig()
	cfg.Name = "mtgox"

	_, err := NewClient(cfg, nil)
	assert.ErrorIs(t, err, ErrUnsupportedVenue)
}

func TestClient_FetchOrderBook(t *testing.T) {
	market := &fakeMarket{books: map[string]ccxt.OrderBook{
		"ETH/USDT": {
			Bids:      [][]float64{{2000, 1.5}, {1999}},
			Asks:      [][]float64{{2001, 2}},
			Timestamp: ptr(int64(1700000000000)),
			Nonce:     ptr(int64(42)),
		},
	}}
	client := newClient(testExchangeConfig(), market, nil)

	book, err := client.FetchOrderBook(context.Background(), "ETH/USDT", 0)
	require.NoError(t, err)

	assert.Equal(t, 1, market.lastOpts)
	assert.Equal(t, []OrderBookLevel{{Price: 2000, Amount: 1.5}}, book.Bids)
	assert.Equal(t, []OrderBookLevel{{Price: 2001, Amount: 2}}, book.Asks)
	assert.Equal(t, time.UnixMilli(1700000000000).UTC(), book.Timestamp)
	assert.Equal(t, int64(42), book.Nonce)
	assert.Equal(t, "binance", client.Venue())
}

func TestClient_RetriesTransientErrors(t *testing.T) {
	market := &fakeMarket{
		books:    map[string]ccxt.OrderBook{"ETH/USDT": {}},
		failures: []error{&ccxt.Error{Type: ccxt.NetworkErrorErrType, Message: "reset"}, &ccxt.Error{Type: ccxt.RequestTimeoutErrType}},
	}
	client := newClient(testExchangeConfig(), market, nil)

	_, err := client.FetchOrderBook(context.Background(), "ETH/USDT", 5)
	require.NoError(t, err)
	assert.Equal(t, 3, market.calls)
}

func TestClient_GivesUpAfterMaxAttempts(t *testing.T) {
	netErr := &ccxt.Error{Type: ccxt.ExchangeNotAvailableErrType, Message: "down"}
	market := &fakeMarket{failures: []error{netErr, netErr, netErr, netErr}}
	client := newClient(testExchangeConfig(), market, nil)

	_, err := client.FetchTicker(context.Background(), "ETH/USDT")
	require.Error(t, err)
	assert.Equal(t, 3, market.calls)
	assert.True(t, IsRetryable(err))
}

func TestClient_MaintenanceIsNotRetried(t *testing.T) {
	market := &fakeMarket{failures: []error{&ccxt.Error{Type: ccxt.OnMaintenanceErrType}}}
	client := newClient(testExchangeConfig(), market, nil)

	_, err := client.FetchTicker(context.Background(), "ETH/USDT")
	assert.ErrorIs(t, err, ErrMaintenance)
	assert.Equal(t, 1, market.calls)
}

func TestClient_NonRetryableError(t *testing.T) {
	market := &fakeMarket{failures: []error{errors.New("no such symbol")}}
	client := newClient(testExchangeConfig(), market, nil)

	_, err := client.FetchTicker(context.Background(), "XXX/USDT")
	require.Error(t, err)
	assert.False(t, IsRetryable(err))
	assert.Equal(t, 1, market.calls)
}

func TestClient_PanicBecomesError(t *testing.T) {
	market := &fakeMarket{panicWith: "index out of range"}
	client := newClient(testExchangeConfig(), market, nil)

	_, err := client.FetchOrderBook(context.Background(), "ETH/USDT", 10)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "index out of range")
}

func TestClient_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	market := &fakeMarket{}
	client := newClient(testExchangeConfig(), market, nil)

	_, err := client.FetchTicker(ctx, "ETH/USDT")
	assert.True(t, errors.Is(err, context.Canceled))
	assert.Equal(t, 0, market.calls)
}

func TestClient_FetchTicker(t *testing.T) {
	market := &fakeMarket{tickers: map[string]ccxt.Ticker{
		"ETH/USDT": {
			Last:        ptr(2000.0),
			Bid:         ptr(1999.5),
			Ask:         ptr(2000.5),
			BaseVolume:  ptr(1234.0),
			QuoteVolume: ptr(2468000.0),
			Timestamp:   ptr(int64(1700000000000)),
		},
	}}
	client := newClient(testExchangeConfig(), market, nil)

	tk, err := client.FetchTicker(context.Background(), "ETH/USDT")
	require.NoError(t, err)
	assert.Equal(t, 2000.0, tk.Last)
	assert.Equal(t, 1234.0, tk.BaseVolume)
	assert.Equal(t, time.UnixMilli(1700000000000).UTC(), tk.Timestamp)
}
