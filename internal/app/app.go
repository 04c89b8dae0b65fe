package app

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"trades-gate/internal/config"
	"trades-gate/internal/metrics"
	"trades-gate/internal/store"
)

// App 聚合核心依赖并驱动服务生命周期。
type App struct {
	cfg    *config.Config
	logger *zap.Logger
	store  *store.Store
}

// New 创建 App 实例。
func New(cfg *config.Config, logger *zap.Logger, store *store.Store) *App {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &App{
		cfg:    cfg,
		logger: logger,
		store:  store,
	}
}

// Run 组装闸门，启动指标与监控接口，并持续刷新报价直到 ctx 结束。
func (a *App) Run(ctx context.Context) error {
	a.logger.Info("准入闸门服务启动",
		zap.String("environment", a.cfg.App.Environment),
		zap.String("exchange", a.cfg.Exchange.Name),
		zap.Strings("markets", a.cfg.Exchange.Markets),
	)

	orch, err := NewOrchestrator(ctx, a.cfg, a.store, a.logger, Options{})
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := orch.Close(); closeErr != nil {
			a.logger.Warn("释放连接失败", zap.Error(closeErr))
		}
	}()

	metrics.Serve(ctx, a.cfg.Metrics.Addr, orch.Metrics().Registry(), a.logger)

	if a.cfg.Monitor.Enabled {
		if err := startMonitorServer(ctx, orch, a.cfg.Monitor.Port, a.logger); err != nil {
			return err
		}
	}

	g, gctx := errgroup.WithContext(ctx)
	if orch.refresher != nil {
		g.Go(func() error {
			return orch.refresher.Run(gctx)
		})
	}

	g.Go(func() error {
		<-gctx.Done()
		if err := gctx.Err(); err != nil && !errors.Is(err, context.Canceled) {
			return fmt.Errorf("服务异常退出: %w", err)
		}
		a.logger.Info("服务收到退出信号，正在停止")
		return nil
	})

	return g.Wait()
}
