package risk

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"trades-gate/internal/config"
	"trades-gate/internal/cost"
	"trades-gate/internal/liquidity"
)

// RouteValidator 为往返流动性硬闸门。
type RouteValidator interface {
	EnsureRoundTripAvailable(ctx context.Context, from, to string, notionalUSD float64, liveDepthCheck bool) liquidity.Verdict
}

// CostModel 提供成本估计并接收结算样本。
type CostModel interface {
	EstimateCost(symbol, side string, notionalUSD float64) cost.CostEstimate
	Record(sample cost.CostSample)
}

// WinGate 为蒙特卡洛胜率闸门。
type WinGate interface {
	ComputePWinForSide(symbol, side string, grossProfitUSD, notionalUSD float64, nSamples int) float64
	Admit(pwin float64) bool
	Threshold() float64
}

// SettlementJournal 持久化结算样本，可为空。
type SettlementJournal interface {
	Append(ctx context.Context, entry cost.JournalEntry) error
}

// Manager 串联路径校验、成本估计与胜率闸门，给出交易准入结论。
type Manager struct {
	cfg       config.GateConfig
	validator RouteValidator
	costs     CostModel
	gate      WinGate
	journal   SettlementJournal
	logger    *zap.Logger
	now       func() time.Time
}

// NewManager 创建准入管理器。journal 可为空，此时结算只进入内存窗口。
func NewManager(cfg config.GateConfig, validator RouteValidator, costs CostModel, gate WinGate, journal SettlementJournal, logger *zap.Logger) (*Manager, error) {
	if validator == nil {
		return nil, errors.New("risk: validator 不能为空")
	}
	if costs == nil {
		return nil, errors.New("risk: 成本模型不能为空")
	}
	if gate == nil {
		return nil, errors.New("risk: 胜率闸门不能为空")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Manager{
		cfg:       cfg,
		validator: validator,
		costs:     costs,
		gate:      gate,
		journal:   journal,
		logger:    logger,
		now:       time.Now,
	}, nil
}

// Evaluate 评估一笔候选交易。硬闸门先于概率闸门，
// 只有路径可用且 P(win) 达到阈值才允许执行。
func (m *Manager) Evaluate(ctx context.Context, p Proposal) EvaluationResult {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	symbol := proposalSymbol(p)
	side := p.Side
	if side == "" {
		side = m.cfg.DefaultSide
	}

	result := EvaluationResult{
		ProposalID:  p.ID,
		Symbol:      symbol,
		Status:      StatusDeny,
		Threshold:   m.gate.Threshold(),
		Notes:       make([]string, 0, 4),
		EvaluatedAt: m.now().UTC(),
	}

	if symbol == "" {
		result.Notes = append(result.Notes, "缺少交易对，无法评估。")
		return m.finish(result)
	}
	if !(p.NotionalUSD > 0) || math.IsInf(p.NotionalUSD, 0) {
		result.Notes = append(result.Notes, "名义金额无效，无法评估。")
		return m.finish(result)
	}

	result.Verdict = m.validator.EnsureRoundTripAvailable(ctx, p.FromAsset, p.ToAsset, p.NotionalUSD, p.LiveDepthCheck)
	if !result.Verdict.OK {
		result.Notes = append(result.Notes, fmt.Sprintf("路径校验未通过: %s", result.Verdict.Reason))
		return m.finish(result)
	}

	estimate := m.costs.EstimateCost(symbol, side, p.NotionalUSD)
	result.Estimate = &estimate
	if estimate.Source == cost.SourceFallback {
		result.Notes = append(result.Notes, "成本样本不足，使用回退常数，置信度较低。")
	}

	result.PWin = m.gate.ComputePWinForSide(symbol, side, p.ExpectedGrossProfitUSD, p.NotionalUSD, m.cfg.Samples)
	result.Gated = true

	if !m.gate.Admit(result.PWin) {
		result.Notes = append(result.Notes,
			fmt.Sprintf("净盈利概率 %.1f%% 低于阈值 %.1f%%。", result.PWin*100, result.Threshold*100),
		)
		return m.finish(result)
	}

	result.Status = StatusProceed
	result.Notes = append(result.Notes,
		fmt.Sprintf("路径可用，净盈利概率 %.1f%%，预计成本 %.3f%%。", result.PWin*100, estimate.TotalPct),
	)
	return m.finish(result)
}

func (m *Manager) finish(result EvaluationResult) EvaluationResult {
	fields := []zap.Field{
		zap.String("proposal_id", result.ProposalID),
		zap.String("symbol", result.Symbol),
		zap.String("status", string(result.Status)),
		zap.String("code", string(result.Verdict.Code)),
	}
	if result.Gated {
		fields = append(fields, zap.Float64("pwin", result.PWin))
	}
	if result.Status == StatusDeny {
		fields = append(fields, zap.Strings("notes", result.Notes))
	}
	m.logger.Info("准入评估完成", fields...)
	return result
}

// Settle 将结算后的实际成本回灌估计器并写入日志，返回记录的样本。
// 日志写入失败时样本仍会进入内存窗口。
func (m *Manager) Settle(ctx context.Context, s Settlement) (cost.CostSample, error) {
	if strings.TrimSpace(s.Symbol) == "" {
		return cost.CostSample{}, errors.New("risk: 结算缺少交易对")
	}
	settledAt := s.SettledAt
	if settledAt.IsZero() {
		settledAt = m.now()
	}
	side := s.Side
	if side == "" {
		side = m.cfg.DefaultSide
	}

	sample := cost.NewCostSample(settledAt.UTC(), s.Symbol, side, s.NotionalUSD, s.FeePct, s.SpreadPct, s.SlippagePct)
	m.costs.Record(sample)

	m.logger.Info("记录结算成本",
		zap.String("proposal_id", s.ProposalID),
		zap.String("symbol", sample.Symbol),
		zap.Float64("total_cost_pct", sample.TotalCostPct),
	)

	if m.journal == nil {
		return sample, nil
	}
	if err := m.journal.Append(ctx, cost.JournalEntry{Sample: sample, GrossProfitUSD: s.GrossProfitUSD}); err != nil {
		return sample, fmt.Errorf("risk: 写入结算日志失败: %w", err)
	}
	return sample, nil
}

func proposalSymbol(p Proposal) string {
	if s := strings.TrimSpace(p.Symbol); s != "" {
		return strings.ToUpper(s)
	}
	from := strings.TrimSpace(p.FromAsset)
	to := strings.TrimSpace(p.ToAsset)
	if from == "" || to == "" {
		return ""
	}
	return strings.ToUpper(to + "/" + from)
}
