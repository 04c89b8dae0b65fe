package backtest

import (
	"context"

	"trades-gate/internal/cost"
)

// SettlementProvider 按时间顺序提供已结算样本。
type SettlementProvider interface {
	Next(ctx context.Context) (cost.JournalEntry, bool, error)
}
