package cost

import (
	"math"
	"sort"
)

// SampleTotalCostDraws 以带噪声的自助法抽取 n 个总成本百分比。
//
// 每次从历史样本中均匀抽取一个(优先交易对窗口，其次全局窗口)，叠加标准差为
// 该样本总成本 NoiseFraction 倍的高斯噪声，再限制在全部类别的绝对区间内。
// 没有任何历史样本时退化为重复回退常数，调用方应把近零方差视为低置信度。
func (e *Estimator) SampleTotalCostDraws(symbol, side string, notionalUSD float64, n int) []float64 {
	if n <= 0 {
		return []float64{}
	}

	pool := e.drawPool(normalizeSymbol(symbol))
	bounds := e.totalBounds()
	draws := make([]float64, n)

	if len(pool) == 0 {
		fallback := clamp(e.fallbackEstimate(symbol, side, notionalUSD).TotalPct, bounds)
		for i := range draws {
			draws[i] = fallback
		}
		return draws
	}

	e.rngMu.Lock()
	defer e.rngMu.Unlock()

	for i := range draws {
		picked := pool[e.rng.IntN(len(pool))]
		value := picked.TotalCostPct
		if sigma := math.Abs(value) * e.cfg.NoiseFraction; sigma > 0 && !math.IsInf(sigma, 0) {
			value += e.rng.NormFloat64() * sigma
		}
		draws[i] = clamp(value, bounds)
	}

	return draws
}

// SampleTotalCostDistribution 返回抽样结果的 p5/p50/p90/p95。
func (e *Estimator) SampleTotalCostDistribution(symbol, side string, notionalUSD float64, n int) Distribution {
	return Summarize(e.SampleTotalCostDraws(symbol, side, notionalUSD, n))
}

func (e *Estimator) drawPool(symbol string) []CostSample {
	symbolAll, globalAll := e.snapshot(symbol)
	now := e.now().UTC()

	if recent := e.withinHorizon(symbolAll, now); len(recent) > 0 {
		return recent
	}
	return e.withinHorizon(globalAll, now)
}

// Summarize 计算一组抽样的分位数与均值。
func Summarize(draws []float64) Distribution {
	if len(draws) == 0 {
		return Distribution{}
	}

	sorted := append([]float64(nil), draws...)
	sort.Float64s(sorted)

	var sum float64
	for _, v := range sorted {
		sum += v
	}

	return Distribution{
		P5:      Percentile(sorted, 5),
		P50:     Percentile(sorted, 50),
		P90:     Percentile(sorted, 90),
		P95:     Percentile(sorted, 95),
		Mean:    sum / float64(len(sorted)),
		Samples: len(sorted),
	}
}

// Percentile 对已排序序列做线性插值分位数，p 取值 [0,100]。
func Percentile(sorted []float64, p float64) float64 {
	if len(sorted) == 0 {
		return 0
	}
	if p <= 0 {
		return sorted[0]
	}
	if p >= 100 {
		return sorted[len(sorted)-1]
	}

	rank := p / 100 * float64(len(sorted)-1)
	lo := int(math.Floor(rank))
	hi := int(math.Ceil(rank))
	if lo == hi {
		return sorted[lo]
	}
	frac := rank - float64(lo)
	return sorted[lo] + (sorted[hi]-sorted[lo])*frac
}
