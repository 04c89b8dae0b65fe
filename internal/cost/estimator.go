package cost

import (
	"math"
	"math/rand/v2"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"
	"gonum.org/v1/gonum/stat"

	"trades-gate/internal/config"
)

// Option 调整 Estimator 的可选行为。
type Option func(*Estimator)

// WithClock 替换时间源，便于测试固定样本年龄。
func WithClock(now func() time.Time) Option {
	return func(e *Estimator) {
		if now != nil {
			e.now = now
		}
	}
}

// WithSeed 固定随机源，使抽样结果可复现。
func WithSeed(seed uint64) Option {
	return func(e *Estimator) {
		e.rng = newRand(seed)
	}
}

// Estimator 基于已实现交易学习手续费、价差与滑点分布。
//
// 滚动窗口是唯一的共享可变状态：写入持有写锁，读取在读锁下复制快照后再计算，
// 因此每次读取都看到一致(可能略旧)的视图。
type Estimator struct {
	cfg    config.EstimatorConfig
	logger *zap.Logger
	now    func() time.Time

	mu      sync.RWMutex
	symbols map[string]*window
	global  *window

	rngMu sync.Mutex
	rng   *rand.Rand
}

// NewEstimator 创建成本估计器。
func NewEstimator(cfg config.EstimatorConfig, logger *zap.Logger, opts ...Option) *Estimator {
	if logger == nil {
		logger = zap.NewNop()
	}

	e := &Estimator{
		cfg:     cfg,
		logger:  logger,
		now:     time.Now,
		symbols: make(map[string]*window),
		global:  newWindow(cfg.GlobalWindow),
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.rng == nil {
		e.rng = newRand(cfg.Seed)
	}

	return e
}

// AddSample 记录一次结算后的实际成本，永不失败，非法数值按原样接收。
func (e *Estimator) AddSample(symbol, side string, notionalUSD, feePct, spreadPct, slippagePct float64) CostSample {
	sample := NewCostSample(e.now().UTC(), symbol, side, notionalUSD, feePct, spreadPct, slippagePct)
	e.Record(sample)
	return sample
}

// Record 以样本自带的时间戳写入两个窗口，用于日志回放。
func (e *Estimator) Record(sample CostSample) {
	sample.Symbol = normalizeSymbol(sample.Symbol)
	sample.Side = normalizeSide(sample.Side)
	sample.TotalCostPct = sample.FeePct + sample.SpreadPct + sample.SlippagePct

	e.mu.Lock()
	w, ok := e.symbols[sample.Symbol]
	if !ok {
		w = newWindow(e.cfg.SymbolWindow)
		e.symbols[sample.Symbol] = w
	}
	w.push(sample)
	e.global.push(sample)
	e.mu.Unlock()

	e.logger.Debug("记录成本样本",
		zap.String("symbol", sample.Symbol),
		zap.String("side", sample.Side),
		zap.Float64("total_cost_pct", sample.TotalCostPct),
	)
}

// Reset 清空全部窗口。
func (e *Estimator) Reset() {
	e.mu.Lock()
	e.symbols = make(map[string]*window)
	e.global = newWindow(e.cfg.GlobalWindow)
	e.mu.Unlock()
}

// Samples 返回某个交易对窗口的副本，按时间从旧到新。
func (e *Estimator) Samples(symbol string) []CostSample {
	e.mu.RLock()
	defer e.mu.RUnlock()

	w, ok := e.symbols[normalizeSymbol(symbol)]
	if !ok {
		return nil
	}
	return w.snapshot()
}

// GlobalSamples 返回全局窗口的副本。
func (e *Estimator) GlobalSamples() []CostSample {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.global.snapshot()
}

// Symbols 返回已有样本的交易对，按字母排序。
func (e *Estimator) Symbols() []string {
	e.mu.RLock()
	out := make([]string, 0, len(e.symbols))
	for symbol := range e.symbols {
		out = append(out, symbol)
	}
	e.mu.RUnlock()

	sort.Strings(out)
	return out
}

// EstimateCost 按优先级选择数据源并返回有界的保守成本估计。
func (e *Estimator) EstimateCost(symbol, side string, notionalUSD float64) CostEstimate {
	symbol = normalizeSymbol(symbol)
	side = normalizeSide(side)

	symbolAll, globalAll := e.snapshot(symbol)
	now := e.now().UTC()

	if recent := e.withinHorizon(symbolAll, now); len(symbolAll) >= e.cfg.MinSymbolSamples && len(recent) >= e.cfg.MinSymbolRecent && len(recent) > 0 {
		return e.aggregate(symbol, side, notionalUSD, recent, now, SourceSymbol)
	}
	if recent := e.withinHorizon(globalAll, now); len(globalAll) >= e.cfg.MinGlobalSamples && len(recent) >= e.cfg.MinGlobalRecent && len(recent) > 0 {
		return e.aggregate(symbol, side, notionalUSD, recent, now, SourceGlobal)
	}

	return e.fallbackEstimate(symbol, side, notionalUSD)
}

func (e *Estimator) snapshot(symbol string) ([]CostSample, []CostSample) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	var symbolSamples []CostSample
	if w, ok := e.symbols[symbol]; ok {
		symbolSamples = w.snapshot()
	}
	return symbolSamples, e.global.snapshot()
}

func (e *Estimator) withinHorizon(samples []CostSample, now time.Time) []CostSample {
	out := make([]CostSample, 0, len(samples))
	for _, s := range samples {
		if now.Sub(s.Timestamp) <= e.cfg.Horizon {
			out = append(out, s)
		}
	}
	return out
}

func (e *Estimator) aggregate(symbol, side string, notionalUSD float64, samples []CostSample, now time.Time, source Source) CostEstimate {
	weights := e.decayWeights(samples, now)

	fees := make([]float64, len(samples))
	spreads := make([]float64, len(samples))
	slips := make([]float64, len(samples))
	for i, s := range samples {
		fees[i] = s.FeePct
		spreads[i] = s.SpreadPct
		slips[i] = s.SlippagePct
	}

	fee := clamp(stat.Mean(fees, weights), e.cfg.FeeBounds)
	spread := clamp(stat.Mean(spreads, weights), e.cfg.SpreadBounds)
	slip := clamp(stat.Mean(slips, weights), e.cfg.SlippageBounds)

	return CostEstimate{
		Symbol:      symbol,
		Side:        side,
		NotionalUSD: notionalUSD,
		FeePct:      fee,
		SpreadPct:   spread,
		SlippagePct: slip,
		TotalPct:    (fee + spread + slip) * e.cfg.SafetyBuffer,
		Confidence:  e.confidence(len(samples)),
		SampleCount: len(samples),
		Source:      source,
	}
}

// decayWeights 按半衰期计算权重 2^(-age/halfLife)。年龄以最新样本为基准，
// 归一化后与绝对年龄等价，且时钟前进时结果不变。
func (e *Estimator) decayWeights(samples []CostSample, now time.Time) []float64 {
	minAge := math.Inf(1)
	ages := make([]float64, len(samples))
	for i, s := range samples {
		age := now.Sub(s.Timestamp).Hours()
		if age < 0 {
			age = 0
		}
		ages[i] = age
		if age < minAge {
			minAge = age
		}
	}

	halfLife := e.cfg.HalfLife.Hours()
	weights := make([]float64, len(samples))
	for i, age := range ages {
		weights[i] = math.Exp2(-(age - minAge) / halfLife)
	}
	return weights
}

func (e *Estimator) confidence(count int) float64 {
	if e.cfg.FullConfidenceAt <= 0 {
		return 1
	}
	return math.Min(1, float64(count)/float64(e.cfg.FullConfidenceAt))
}

func (e *Estimator) fallbackEstimate(symbol, side string, notionalUSD float64) CostEstimate {
	fee := clamp(e.cfg.Fallback.FeePct, e.cfg.FeeBounds)
	spread := clamp(e.cfg.Fallback.SpreadPct, e.cfg.SpreadBounds)
	slip := clamp(e.cfg.Fallback.SlippagePct, e.cfg.SlippageBounds)

	return CostEstimate{
		Symbol:      symbol,
		Side:        side,
		NotionalUSD: notionalUSD,
		FeePct:      fee,
		SpreadPct:   spread,
		SlippagePct: slip,
		TotalPct:    (fee + spread + slip) * e.cfg.SafetyBuffer,
		Confidence:  e.cfg.FallbackConfidence,
		SampleCount: 0,
		Source:      SourceFallback,
	}
}

// totalBounds 为所有类别合计的绝对上下限，用于约束总成本抽样。
func (e *Estimator) totalBounds() config.Bounds {
	return config.Bounds{
		Min: e.cfg.FeeBounds.Min + e.cfg.SpreadBounds.Min + e.cfg.SlippageBounds.Min,
		Max: (e.cfg.FeeBounds.Max + e.cfg.SpreadBounds.Max + e.cfg.SlippageBounds.Max) * e.cfg.SafetyBuffer,
	}
}

// clamp 将数值限制在区间内；NaN 取上限，保证坏数据只会让估计更保守。
func clamp(v float64, b config.Bounds) float64 {
	switch {
	case math.IsNaN(v):
		return b.Max
	case v < b.Min:
		return b.Min
	case v > b.Max:
		return b.Max
	default:
		return v
	}
}

func newRand(seed uint64) *rand.Rand {
	if seed == 0 {
		seed = uint64(time.Now().UnixNano())
	}
	return rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
}
