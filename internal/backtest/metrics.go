package backtest

import (
	"math"

	"gonum.org/v1/gonum/stat"
)

// Metrics 记录胜率闸门的校准指标。
type Metrics struct {
	Settlements     int     // 回放的结算样本数
	Trades          int     // 含预期毛利、参与校准的交易数
	Admitted        int     // 达到阈值被放行的交易数
	BrierScore      float64 // mean((pwin - outcome)^2)
	HitRate         float64 // 放行判断与实际盈亏一致的比例
	MeanPWin        float64
	RealizedWinRate float64
	AdmittedWinRate float64
	NetPnLUSD       float64 // 放行交易的实际净收益合计
	MeanReturnPct   float64 // 放行交易对账户权益的平均收益率(%)
	MaxDrawdown     float64
}

func calculateMetrics(outcomes []Outcome, sim *Simulator) Metrics {
	m := Metrics{Trades: len(outcomes)}
	if len(outcomes) == 0 {
		return m
	}

	pwins := make([]float64, len(outcomes))
	realized := make([]float64, len(outcomes))
	sqErr := make([]float64, len(outcomes))
	hits := make([]float64, len(outcomes))
	admittedWins := 0

	for i, o := range outcomes {
		pwins[i] = o.PWin
		if o.Won {
			realized[i] = 1
		}
		diff := o.PWin - realized[i]
		sqErr[i] = diff * diff
		if o.Admitted == o.Won {
			hits[i] = 1
		}
		if o.Admitted {
			m.NetPnLUSD += o.NetUSD
			if o.Won {
				admittedWins++
			}
		}
	}

	m.BrierScore = stat.Mean(sqErr, nil)
	m.HitRate = stat.Mean(hits, nil)
	m.MeanPWin = stat.Mean(pwins, nil)
	m.RealizedWinRate = stat.Mean(realized, nil)
	m.Admitted = sim.TradeCount()
	if m.Admitted > 0 {
		m.AdmittedWinRate = float64(admittedWins) / float64(m.Admitted)
	}
	if returns := sim.ReturnHistory(); len(returns) > 0 {
		m.MeanReturnPct = stat.Mean(returns, nil) * 100
	}
	m.MaxDrawdown = computeDrawdown(sim.EquityHistory())
	return m
}

func computeDrawdown(equity []float64) float64 {
	var peak float64
	maxDD := 0.0
	for _, v := range equity {
		if v > peak {
			peak = v
		}
		if peak <= 0 {
			continue
		}
		dd := (v - peak) / peak
		if dd < maxDD {
			maxDD = dd
		}
	}
	return math.Abs(maxDD)
}
