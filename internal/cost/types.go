package cost

import (
	"strings"
	"time"
)

// Source 标识成本估计的数据来源。
type Source string

const (
	SourceSymbol   Source = "symbol_specific"
	SourceGlobal   Source = "global_average"
	SourceFallback Source = "fallback"
)

// CostSample 为一次已结算交易的实际成本观测，创建后不可修改。
type CostSample struct {
	Timestamp    time.Time `json:"timestamp"`
	Symbol       string    `json:"symbol"`
	Side         string    `json:"side"`
	NotionalUSD  float64   `json:"notional_usd"`
	FeePct       float64   `json:"fee_pct"`
	SpreadPct    float64   `json:"spread_pct"`
	SlippagePct  float64   `json:"slippage_pct"`
	TotalCostPct float64   `json:"total_cost_pct"`
}

// NewCostSample 构造样本，TotalCostPct 固定为三项之和。
func NewCostSample(ts time.Time, symbol, side string, notional, fee, spread, slippage float64) CostSample {
	return CostSample{
		Timestamp:    ts,
		Symbol:       normalizeSymbol(symbol),
		Side:         normalizeSide(side),
		NotionalUSD:  notional,
		FeePct:       fee,
		SpreadPct:    spread,
		SlippagePct:  slippage,
		TotalCostPct: fee + spread + slippage,
	}
}

// CostEstimate 为按需计算的成本点估计，不做持久化。
type CostEstimate struct {
	Symbol      string  `json:"symbol"`
	Side        string  `json:"side"`
	NotionalUSD float64 `json:"notional_usd"`
	FeePct      float64 `json:"fee_pct"`
	SpreadPct   float64 `json:"spread_pct"`
	SlippagePct float64 `json:"slippage_pct"`
	TotalPct    float64 `json:"total_pct"`
	Confidence  float64 `json:"confidence"`
	SampleCount int     `json:"sample_count"`
	Source      Source  `json:"source"`
}

// Distribution 汇总一组成本抽样的分位数。
type Distribution struct {
	P5      float64 `json:"p5"`
	P50     float64 `json:"p50"`
	P90     float64 `json:"p90"`
	P95     float64 `json:"p95"`
	Mean    float64 `json:"mean"`
	Samples int     `json:"samples"`
}

func normalizeSymbol(symbol string) string {
	return strings.ToUpper(strings.TrimSpace(symbol))
}

func normalizeSide(side string) string {
	return strings.ToLower(strings.TrimSpace(side))
}
