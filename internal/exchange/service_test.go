package exchange

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"trades-gate/internal/liquidity"
)

type stubMarketData struct {
	book      OrderBookSnapshot
	ticker    TickerSnapshot
	err       error
	lastDepth int
}

func (s *stubMarketData) FetchOrderBook(_ context.Context, _ string, depth int) (OrderBookSnapshot, error) {
	s.lastDepth = depth
	return s.book, s.err
}

func (s *stubMarketData) FetchTicker(context.Context, string) (TickerSnapshot, error) {
	return s.ticker, s.err
}

var (
	_ liquidity.OrderBookSource = (*MarketDataService)(nil)
)

func TestMarketDataService_OrderBook(t *testing.T) {
	stub := &stubMarketData{book: OrderBookSnapshot{
		Bids: []OrderBookLevel{{Price: 100, Amount: 2}},
		Asks: []OrderBookLevel{{Price: 101, Amount: 3}},
	}}
	svc := NewMarketDataService(stub, 25, nil)

	depth, err := svc.OrderBook(context.Background(), "ETH/USDT")
	require.NoError(t, err)

	assert.Equal(t, 25, stub.lastDepth)
	assert.Equal(t, []liquidity.Level{{Price: 100, Size: 2}}, depth.Bids)
	total, _ := depth.NotionalUSD().Float64()
	assert.InDelta(t, 503, total, 1e-9)
}

func TestMarketDataService_FetchTicker(t *testing.T) {
	ts := time.Date(2026, 3, 2, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name       string
		ticker     TickerSnapshot
		wantPrice  float64
		wantVolume float64
	}{
		{name: "last and base volume", ticker: TickerSnapshot{Last: 10, BaseVolume: 5, Timestamp: ts}, wantPrice: 10, wantVolume: 5},
		{name: "mid price fallback", ticker: TickerSnapshot{Bid: 9, Ask: 11, BaseVolume: 5, Timestamp: ts}, wantPrice: 10, wantVolume: 5},
		{name: "quote volume fallback", ticker: TickerSnapshot{Last: 10, QuoteVolume: 500, Timestamp: ts}, wantPrice: 10, wantVolume: 50},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := NewMarketDataService(&stubMarketData{ticker: tt.ticker}, 0, nil)
			q, err := svc.FetchTicker(context.Background(), "ETH/USDT")
			require.NoError(t, err)
			assert.Equal(t, tt.wantPrice, q.Price)
			assert.Equal(t, tt.wantVolume, q.Volume)
			assert.Equal(t, ts, q.UpdatedAt)
		})
	}
}

func TestMarketDataService_GetSnapshot(t *testing.T) {
	stub := &stubMarketData{
		book:   OrderBookSnapshot{Bids: []OrderBookLevel{{Price: 1, Amount: 1}}},
		ticker: TickerSnapshot{Last: 1},
	}
	svc := NewMarketDataService(stub, 10, nil)

	snap, err := svc.GetSnapshot(context.Background(), "ETH/USDT")
	require.NoError(t, err)
	assert.Equal(t, "ETH/USDT", snap.Pair)
	assert.Len(t, snap.OrderBook.Bids, 1)
	assert.Equal(t, 1.0, snap.Ticker.Last)

	stub.err = errors.New("offline")
	_, err = svc.GetSnapshot(context.Background(), "ETH/USDT")
	assert.Error(t, err)
	_, err = svc.OrderBook(context.Background(), "ETH/USDT")
	assert.Error(t, err)
}
