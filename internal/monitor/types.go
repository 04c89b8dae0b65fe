package monitor

import (
	"time"

	"trades-gate/internal/cost"
	"trades-gate/internal/risk"
)

// EventType 表示监控事件类型。
type EventType string

const (
	EventAdmission  EventType = "admission"
	EventSettlement EventType = "settlement"
	EventError      EventType = "error"
)

// Event 封装通用监控事件。
type Event struct {
	Type      EventType   `json:"type"`
	Timestamp time.Time   `json:"timestamp"`
	Payload   interface{} `json:"payload"`
}

// AdmissionPayload 记录一次准入评估。
type AdmissionPayload struct {
	Proposal risk.Proposal         `json:"proposal"`
	Result   risk.EvaluationResult `json:"result"`
}

// SettlementPayload 记录结算回灌的成本样本。
type SettlementPayload struct {
	Settlement risk.Settlement `json:"settlement"`
	Sample     cost.CostSample `json:"sample"`
}

// ErrorPayload 记录异常。
type ErrorPayload struct {
	Message string                 `json:"message"`
	Error   string                 `json:"error"`
	Context map[string]interface{} `json:"context,omitempty"`
}
