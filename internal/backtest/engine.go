package backtest

import (
	"context"
	"fmt"
	"math"
	"time"

	"go.uber.org/zap"

	"trades-gate/internal/cost"
	"trades-gate/internal/gate"
)

// Outcome 为单笔交易的事前胜率与事后结果。
type Outcome struct {
	Symbol    string
	Timestamp time.Time
	PWin      float64
	Admitted  bool
	Won       bool
	NetUSD    float64
}

// Result 汇总校准回测结果。
type Result struct {
	Metrics     Metrics
	Outcomes    []Outcome
	EquityCurve []float64
	FinalEquity float64
}

// Engine 按时间顺序回放结算样本，检验胜率闸门的预测是否与实际盈亏一致。
type Engine struct {
	cfg      Config
	provider SettlementProvider
	logger   *zap.Logger
}

// NewEngine 构建校准回测引擎。
func NewEngine(cfg Config, provider SettlementProvider, logger *zap.Logger) (*Engine, error) {
	if provider == nil {
		return nil, fmt.Errorf("backtest: provider 不能为空")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Engine{
		cfg:      cfg.normalize(),
		provider: provider,
		logger:   logger,
	}, nil
}

// Run 执行完整回放。每笔样本先以此前的历史预测胜率，再计入估计器，
// 因此预测从不看到自身的成本。
func (e *Engine) Run(ctx context.Context) (Result, error) {
	var now time.Time
	estimator := cost.NewEstimator(e.cfg.Estimator, e.logger, cost.WithClock(func() time.Time { return now }))
	g := gate.New(e.cfg.Gate, estimator, e.logger)
	simulator := NewSimulator(e.cfg.InitialEquity)

	var (
		outcomes    []Outcome
		settlements int
	)
	for {
		entry, ok, err := e.provider.Next(ctx)
		if err != nil {
			return Result{}, err
		}
		if !ok {
			break
		}

		sample := entry.Sample
		if !e.cfg.Since.IsZero() && sample.Timestamp.Before(e.cfg.Since) {
			continue
		}
		now = sample.Timestamp
		settlements++

		if outcome, ok := e.evaluate(g, entry); ok {
			if outcome.Admitted {
				simulator.Apply(outcome.NetUSD)
			}
			outcomes = append(outcomes, outcome)
		}

		estimator.Record(sample)
	}

	metrics := calculateMetrics(outcomes, simulator)
	metrics.Settlements = settlements

	e.logger.Info("校准回测完成",
		zap.Int("settlements", settlements),
		zap.Int("trades", metrics.Trades),
		zap.Float64("brier", metrics.BrierScore),
		zap.Float64("hit_rate", metrics.HitRate),
	)

	return Result{
		Metrics:     metrics,
		Outcomes:    outcomes,
		EquityCurve: simulator.EquityHistory(),
		FinalEquity: simulator.Equity(),
	}, nil
}

func (e *Engine) evaluate(g *gate.Gate, entry cost.JournalEntry) (Outcome, bool) {
	sample := entry.Sample
	if entry.GrossProfitUSD == nil {
		return Outcome{}, false
	}
	if !(sample.NotionalUSD > 0) || math.IsNaN(sample.TotalCostPct) || math.IsInf(sample.TotalCostPct, 0) {
		e.logger.Debug("跳过无法校准的样本", zap.String("symbol", sample.Symbol), zap.Time("ts", sample.Timestamp))
		return Outcome{}, false
	}

	gross := *entry.GrossProfitUSD
	pwin := g.ComputePWinForSide(sample.Symbol, sample.Side, gross, sample.NotionalUSD, e.cfg.Gate.Samples)
	net := gross - sample.NotionalUSD*sample.TotalCostPct/100

	return Outcome{
		Symbol:    sample.Symbol,
		Timestamp: sample.Timestamp,
		PWin:      pwin,
		Admitted:  g.Admit(pwin),
		Won:       net > 0,
		NetUSD:    net,
	}, true
}
