package liquidity

import (
	"context"
	"math"
	"time"

	"github.com/shopspring/decimal"
)

// Leg 为兑换路径中的一段，只读取交易对与交易所。
type Leg struct {
	Pair  string `json:"pair"`
	Venue string `json:"venue,omitempty"`
}

// Path 为按顺序排列的兑换路径。
type Path struct {
	Legs []Leg `json:"legs"`
}

// Quote 为交易对最近一次报价。
type Quote struct {
	Price     float64   `json:"price"`
	Volume    float64   `json:"volume"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Level 为订单簿单档。
type Level struct {
	Price float64 `json:"price"`
	Size  float64 `json:"size"`
}

// OrderBookDepth 为订单簿快照。
type OrderBookDepth struct {
	Bids []Level `json:"bids"`
	Asks []Level `json:"asks"`
}

// NotionalUSD 汇总买卖两侧全部档位的 price×size，忽略非法档位。
func (d OrderBookDepth) NotionalUSD() decimal.Decimal {
	total := decimal.Zero
	for _, side := range [][]Level{d.Bids, d.Asks} {
		for _, lvl := range side {
			if v, ok := notional(lvl.Price, lvl.Size); ok {
				total = total.Add(v)
			}
		}
	}
	return total
}

func notional(price, size float64) (decimal.Decimal, bool) {
	if !finite(price) || !finite(size) || price < 0 || size < 0 {
		return decimal.Zero, false
	}
	return decimal.NewFromFloat(price).Mul(decimal.NewFromFloat(size)), true
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

// PathOracle 提供兑换路径，无路径时返回 nil。
type PathOracle interface {
	FindPath(ctx context.Context, from, to string) (*Path, error)
}

// TickerCache 提供最近报价，第二个返回值表示是否命中。
type TickerCache interface {
	Quote(ctx context.Context, pair string) (Quote, bool, error)
}

// OrderBookSource 在实时深度模式下拉取订单簿。
type OrderBookSource interface {
	OrderBook(ctx context.Context, pair string) (OrderBookDepth, error)
}

// Code 为机器可匹配的判定原因代码。
type Code string

const (
	CodePathAssumed Code = "path_assumed"
	CodeNoPath      Code = "no_path"
	CodeVenuePolicy Code = "venue_policy"
	CodeMissingPair Code = "missing_pair"
	CodeNoTicker    Code = "no_ticker"
	CodeLowVolume   Code = "low_volume"
	CodeLegTooSmall Code = "leg_too_small"
	CodeShallowBook Code = "shallow_book"
	CodeAvailable   Code = "available"
)

// Verdict 为往返流动性校验结果。
type Verdict struct {
	OK     bool   `json:"ok"`
	Code   Code   `json:"code"`
	Reason string `json:"reason"`
}

func pass(code Code, reason string) Verdict {
	return Verdict{OK: true, Code: code, Reason: reason}
}

func fail(code Code, reason string) Verdict {
	return Verdict{OK: false, Code: code, Reason: reason}
}
