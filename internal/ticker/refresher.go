package ticker

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"go.uber.org/multierr"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"trades-gate/internal/liquidity"
)

const maxParallelFetches = 4

// Source 拉取交易对的最新报价，由交易所客户端实现。
type Source interface {
	FetchTicker(ctx context.Context, pair string) (liquidity.Quote, error)
}

// Refresher 定期从交易所拉取报价写入缓存。
type Refresher struct {
	source   Source
	writer   Writer
	markets  []string
	interval time.Duration
	logger   *zap.Logger

	observe func(updated int, err error)
}

// NewRefresher 创建报价刷新器。
func NewRefresher(source Source, writer Writer, markets []string, interval time.Duration, logger *zap.Logger) (*Refresher, error) {
	if source == nil {
		return nil, errors.New("ticker: 报价来源不能为空")
	}
	if writer == nil {
		return nil, errors.New("ticker: 缓存不能为空")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if interval <= 0 {
		interval = 15 * time.Second
	}

	return &Refresher{
		source:   source,
		writer:   writer,
		markets:  append([]string(nil), markets...),
		interval: interval,
		logger:   logger,
	}, nil
}

// OnRefresh 注册每轮刷新结束后的回调。
func (r *Refresher) OnRefresh(fn func(updated int, err error)) {
	r.observe = fn
}

// Refresh 并行刷新全部交易对，返回成功条数与合并后的错误。
// 单个交易对失败不会中断其他交易对。
func (r *Refresher) Refresh(ctx context.Context) (int, error) {
	var (
		updated atomic.Int64
		errs    = make([]error, len(r.markets))
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxParallelFetches)
	for i, pair := range r.markets {
		g.Go(func() error {
			quote, err := r.source.FetchTicker(gctx, pair)
			if err != nil {
				errs[i] = fmt.Errorf("拉取报价 %s: %w", pair, err)
				return nil
			}
			if err := r.writer.Store(gctx, pair, quote); err != nil {
				errs[i] = fmt.Errorf("写入报价 %s: %w", pair, err)
				return nil
			}
			updated.Add(1)
			return nil
		})
	}
	_ = g.Wait()

	err := multierr.Combine(errs...)
	if err != nil {
		r.logger.Warn("部分报价刷新失败", zap.Error(err))
	}
	r.logger.Debug("报价刷新完成", zap.Int64("updated", updated.Load()), zap.Int("markets", len(r.markets)))
	if r.observe != nil {
		r.observe(int(updated.Load()), err)
	}
	return int(updated.Load()), err
}

// Run 立即刷新一次，之后按间隔循环直到 ctx 结束。
func (r *Refresher) Run(ctx context.Context) error {
	_, _ = r.Refresh(ctx)

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			if err := ctx.Err(); err != nil && !errors.Is(err, context.Canceled) {
				return fmt.Errorf("ticker: 刷新循环异常退出: %w", err)
			}
			return nil
		case <-ticker.C:
			_, _ = r.Refresh(ctx)
		}
	}
}
