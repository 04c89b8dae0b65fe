package backtest

import (
	"context"
	"fmt"
	"sort"
	"time"

	"trades-gate/internal/cost"
)

// SliceProvider 以固定序列提供结算样本。
type SliceProvider struct {
	entries []cost.JournalEntry
	index   int
}

// NewSliceProvider 按样本时间稳定排序后逐条提供。
func NewSliceProvider(entries []cost.JournalEntry) *SliceProvider {
	sorted := append([]cost.JournalEntry(nil), entries...)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Sample.Timestamp.Before(sorted[j].Sample.Timestamp)
	})
	return &SliceProvider{entries: sorted}
}

// NewJournalProvider 从成本日志加载 since 之后的全部结算。
func NewJournalProvider(ctx context.Context, journal *cost.Journal, since time.Time) (*SliceProvider, error) {
	if journal == nil {
		return nil, fmt.Errorf("backtest: journal 不能为空")
	}
	var entries []cost.JournalEntry
	if _, err := journal.Replay(ctx, since, func(e cost.JournalEntry) error {
		entries = append(entries, e)
		return nil
	}); err != nil {
		return nil, fmt.Errorf("backtest: 读取成本日志失败: %w", err)
	}
	return NewSliceProvider(entries), nil
}

func (p *SliceProvider) Next(ctx context.Context) (cost.JournalEntry, bool, error) {
	if err := ctx.Err(); err != nil {
		return cost.JournalEntry{}, false, err
	}
	if p.index >= len(p.entries) {
		return cost.JournalEntry{}, false, nil
	}
	entry := p.entries[p.index]
	p.index++
	return entry, true, nil
}

// Len 返回样本总数。
func (p *SliceProvider) Len() int {
	return len(p.entries)
}
