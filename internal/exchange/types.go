package exchange

import (
	"time"

	"trades-gate/internal/liquidity"
)

// DefaultOrderBookDepth 为未配置时拉取的订单簿档数。
const DefaultOrderBookDepth = 50

// OrderBookLevel 表示盘口档位。
type OrderBookLevel struct {
	Price  float64
	Amount float64
}

// OrderBookSnapshot 为订单簿快照。
type OrderBookSnapshot struct {
	Symbol    string
	Bids      []OrderBookLevel
	Asks      []OrderBookLevel
	Timestamp time.Time
	Nonce     int64
}

// Depth 转换为流动性校验使用的订单簿视图。
func (s OrderBookSnapshot) Depth() liquidity.OrderBookDepth {
	return liquidity.OrderBookDepth{
		Bids: toLevels(s.Bids),
		Asks: toLevels(s.Asks),
	}
}

func toLevels(in []OrderBookLevel) []liquidity.Level {
	out := make([]liquidity.Level, len(in))
	for i, lvl := range in {
		out[i] = liquidity.Level{Price: lvl.Price, Size: lvl.Amount}
	}
	return out
}

// TickerSnapshot 为 24 小时行情摘要。
type TickerSnapshot struct {
	Symbol      string
	Last        float64
	Bid         float64
	Ask         float64
	BaseVolume  float64
	QuoteVolume float64
	Timestamp   time.Time
}

// Quote 转换为报价缓存条目。价格缺失时退回买卖中间价，基础成交量缺失时由计价成交量折算。
func (t TickerSnapshot) Quote() liquidity.Quote {
	price := t.Last
	if price <= 0 && t.Bid > 0 && t.Ask > 0 {
		price = (t.Bid + t.Ask) / 2
	}
	volume := t.BaseVolume
	if volume <= 0 && t.QuoteVolume > 0 && price > 0 {
		volume = t.QuoteVolume / price
	}
	return liquidity.Quote{
		Price:     price,
		Volume:    volume,
		UpdatedAt: t.Timestamp,
	}
}
