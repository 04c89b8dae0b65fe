package gate

import (
	"math"

	"go.uber.org/zap"

	"trades-gate/internal/config"
)

// DefaultSamples 为未指定抽样次数时的默认值。
const DefaultSamples = 1000

// CostSampler 提供总成本百分比抽样，由成本估计器实现。
type CostSampler interface {
	SampleTotalCostDraws(symbol, side string, notionalUSD float64, n int) []float64
}

// Gate 基于历史成本分布估算交易净盈利的概率。
type Gate struct {
	cfg     config.GateConfig
	sampler CostSampler
	logger  *zap.Logger
}

// New 创建胜率闸门。
func New(cfg config.GateConfig, sampler CostSampler, logger *zap.Logger) *Gate {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Samples <= 0 {
		cfg.Samples = DefaultSamples
	}
	if cfg.DefaultSide == "" {
		cfg.DefaultSide = "buy"
	}
	return &Gate{cfg: cfg, sampler: sampler, logger: logger}
}

// ComputePWin 返回 P(gross - notional×pct/100 > 0)，nSamples<=0 时使用配置的次数。
func (g *Gate) ComputePWin(symbol string, grossProfitUSD, notionalUSD float64, nSamples int) float64 {
	return g.ComputePWinForSide(symbol, g.cfg.DefaultSide, grossProfitUSD, notionalUSD, nSamples)
}

// ComputePWinForSide 与 ComputePWin 相同，但指定抽样方向。
func (g *Gate) ComputePWinForSide(symbol, side string, grossProfitUSD, notionalUSD float64, nSamples int) float64 {
	if nSamples <= 0 {
		nSamples = g.cfg.Samples
	}
	if g.sampler == nil {
		return 0
	}

	draws := g.sampler.SampleTotalCostDraws(symbol, side, notionalUSD, nSamples)
	pwin := WinFraction(draws, grossProfitUSD, notionalUSD)

	g.logger.Debug("蒙特卡洛胜率",
		zap.String("symbol", symbol),
		zap.Float64("gross_profit_usd", grossProfitUSD),
		zap.Float64("notional_usd", notionalUSD),
		zap.Int("samples", len(draws)),
		zap.Float64("pwin", pwin),
	)
	return pwin
}

// Admit 判断概率是否达到阈值。
func (g *Gate) Admit(pwin float64) bool {
	return pwin >= g.cfg.WinThreshold
}

// Threshold 返回准入阈值。
func (g *Gate) Threshold() float64 {
	return g.cfg.WinThreshold
}

// WinFraction 计算抽样中净利润为正的比例，空抽样返回 0。
func WinFraction(draws []float64, grossProfitUSD, notionalUSD float64) float64 {
	if len(draws) == 0 {
		return 0
	}

	wins := 0
	for _, pct := range draws {
		net := grossProfitUSD - notionalUSD*pct/100
		if net > 0 && !math.IsNaN(net) {
			wins++
		}
	}
	return float64(wins) / float64(len(draws))
}
