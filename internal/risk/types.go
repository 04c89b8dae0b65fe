package risk

import (
	"time"

	"trades-gate/internal/cost"
	"trades-gate/internal/liquidity"
)

// StatusType 描述准入评估结果状态。
type StatusType string

const (
	StatusProceed StatusType = "proceed"
	StatusDeny    StatusType = "deny"
)

// Proposal 为执行引擎提交的候选交易或兑换。
type Proposal struct {
	ID                     string    `json:"id"`
	FromAsset              string    `json:"from_asset"`
	ToAsset                string    `json:"to_asset"`
	Symbol                 string    `json:"symbol"`
	Side                   string    `json:"side"`
	NotionalUSD            float64   `json:"notional_usd"`
	ExpectedGrossProfitUSD float64   `json:"expected_gross_profit_usd"`
	LiveDepthCheck         bool      `json:"live_depth_check"`
	CreatedAt              time.Time `json:"created_at"`
}

// EvaluationResult 为准入评估输出。路径校验未通过时不会计算胜率。
type EvaluationResult struct {
	ProposalID  string             `json:"proposal_id"`
	Symbol      string             `json:"symbol"`
	Status      StatusType         `json:"status"`
	Verdict     liquidity.Verdict  `json:"verdict"`
	Estimate    *cost.CostEstimate `json:"estimate,omitempty"`
	PWin        float64            `json:"pwin"`
	Gated       bool               `json:"gated"`
	Threshold   float64            `json:"threshold"`
	Notes       []string           `json:"notes"`
	EvaluatedAt time.Time          `json:"evaluated_at"`
}

// Proceed 表示是否允许执行。
func (r EvaluationResult) Proceed() bool {
	return r.Status == StatusProceed
}

// Settlement 为成交结算后的实际成本回报。
type Settlement struct {
	ProposalID     string    `json:"proposal_id,omitempty"`
	Symbol         string    `json:"symbol"`
	Side           string    `json:"side"`
	NotionalUSD    float64   `json:"notional_usd"`
	FeePct         float64   `json:"fee_pct"`
	SpreadPct      float64   `json:"spread_pct"`
	SlippagePct    float64   `json:"slippage_pct"`
	GrossProfitUSD *float64  `json:"gross_profit_usd,omitempty"`
	SettledAt      time.Time `json:"settled_at"`
}
