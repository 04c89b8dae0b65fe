package app

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	"trades-gate/internal/config"
	"trades-gate/internal/cost"
	"trades-gate/internal/exchange"
	"trades-gate/internal/gate"
	"trades-gate/internal/liquidity"
	"trades-gate/internal/metrics"
	"trades-gate/internal/monitor"
	"trades-gate/internal/risk"
	"trades-gate/internal/store"
	"trades-gate/internal/ticker"
)

// ErrOffline 表示未连接交易所时请求了实时行情。
var ErrOffline = errors.New("app: 离线模式不支持实时行情")

// Options 控制组装方式。
type Options struct {
	// Offline 为 true 时不连接交易所，只使用缓存报价，实时深度校验退化为报价校验。
	Offline bool
	// Metrics 为空时自动创建独立注册表。
	Metrics *metrics.Collector
}

// Orchestrator 串联成本估计、流动性校验、胜率闸门与监控记录。
type Orchestrator struct {
	cfg       *config.Config
	estimator *cost.Estimator
	validator *liquidity.Validator
	gate      *gate.Gate
	risk      *risk.Manager
	monitor   *monitor.Service
	metrics   *metrics.Collector
	tickers   ticker.Cache
	market    *exchange.MarketDataService
	refresher *ticker.Refresher
	closers   []func() error
	logger    *zap.Logger
}

// NewOrchestrator 按配置组装全部组件，并从成本日志恢复滚动窗口。
func NewOrchestrator(ctx context.Context, cfg *config.Config, st *store.Store, logger *zap.Logger, opts Options) (*Orchestrator, error) {
	if cfg == nil {
		return nil, errors.New("app: 配置不能为空")
	}
	if st == nil {
		return nil, errors.New("app: store 不能为空")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	collector := opts.Metrics
	if collector == nil {
		collector = metrics.New()
	}

	o := &Orchestrator{cfg: cfg, metrics: collector, logger: logger}

	journal, err := cost.NewJournal(st.DB(), logger)
	if err != nil {
		return nil, fmt.Errorf("初始化成本日志失败: %w", err)
	}

	o.estimator = cost.NewEstimator(cfg.Estimator, logger)
	since := time.Time{}
	if cfg.Estimator.Horizon > 0 {
		since = time.Now().Add(-cfg.Estimator.Horizon)
	}
	if _, err := cost.Rebuild(ctx, journal, o.estimator, since); err != nil {
		return nil, fmt.Errorf("恢复成本窗口失败: %w", err)
	}

	tickers, closer, err := newTickerCache(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}
	o.tickers = tickers
	if closer != nil {
		o.closers = append(o.closers, closer)
	}

	var (
		books         liquidity.OrderBookSource
		validatorOpts = []liquidity.ValidatorOption{liquidity.WithFetchFailureHook(collector.OrderBookFetchFailed)}
	)
	if !opts.Offline {
		client, err := exchange.NewClient(cfg.Exchange, logger)
		if err != nil {
			_ = o.Close()
			return nil, fmt.Errorf("初始化行情客户端失败: %w", err)
		}
		o.market = exchange.NewMarketDataService(client, cfg.Exchange.OrderBookDepth, logger)
		books = o.market
		validatorOpts = append(validatorOpts, liquidity.WithBookVenue(client.Venue()))

		refresher, err := ticker.NewRefresher(o.market, tickers, cfg.Exchange.Markets, cfg.Ticker.RefreshInterval, logger)
		if err != nil {
			_ = o.Close()
			return nil, fmt.Errorf("初始化报价刷新失败: %w", err)
		}
		refresher.OnRefresh(o.observeRefresh)
		o.refresher = refresher
	}

	var oracle liquidity.PathOracle
	if len(cfg.Validator.Routes) > 0 {
		oracle = liquidity.NewStaticOracle(cfg.Validator.Routes)
	}
	o.validator = liquidity.NewValidator(cfg.Validator, oracle, tickers, books, logger, validatorOpts...)

	o.gate = gate.New(cfg.Gate, o.estimator, logger)

	o.risk, err = risk.NewManager(cfg.Gate, o.validator, o.estimator, o.gate, journal, logger)
	if err != nil {
		_ = o.Close()
		return nil, fmt.Errorf("初始化准入管理失败: %w", err)
	}

	o.monitor, err = monitor.NewService(st, logger)
	if err != nil {
		_ = o.Close()
		return nil, fmt.Errorf("初始化监控服务失败: %w", err)
	}

	logger.Info("准入闸门已组装",
		zap.Bool("offline", opts.Offline),
		zap.String("ticker_backend", cfg.Ticker.Backend),
		zap.Int("routes", len(cfg.Validator.Routes)),
		zap.String("venue_policy", o.validator.Policy().Label()),
		zap.Strings("symbols", o.estimator.Symbols()),
	)
	return o, nil
}

func newTickerCache(ctx context.Context, cfg *config.Config, logger *zap.Logger) (ticker.Cache, func() error, error) {
	switch strings.ToLower(cfg.Ticker.Backend) {
	case "", "memory":
		return ticker.NewMemoryCache(cfg.Ticker.MaxAge), nil, nil
	case "redis":
		rdb := ticker.NewRedisClient(cfg.Redis)
		cache := ticker.NewRedisCache(rdb, cfg.Ticker.KeyPrefix, cfg.Ticker.MaxAge)
		if err := cache.Ping(ctx); err != nil {
			_ = rdb.Close()
			return nil, nil, fmt.Errorf("连接 Redis 失败: %w", err)
		}
		logger.Info("报价缓存使用 Redis", zap.String("addr", cfg.Redis.Addr))
		return cache, rdb.Close, nil
	default:
		return nil, nil, fmt.Errorf("app: 不支持的报价缓存类型 %q", cfg.Ticker.Backend)
	}
}

// Evaluate 评估候选交易并记录监控事件与指标。
func (o *Orchestrator) Evaluate(ctx context.Context, p risk.Proposal) risk.EvaluationResult {
	result := o.risk.Evaluate(ctx, p)
	if p.ID == "" {
		p.ID = result.ProposalID
	}

	o.monitor.RecordAdmission(ctx, p, result)
	o.metrics.ObserveAdmission(string(result.Status), string(result.Verdict.Code), result.PWin, result.Gated)
	if est := result.Estimate; est != nil {
		o.metrics.ObserveEstimate(est.Symbol, string(est.Source), est.Confidence, est.TotalPct)
	}
	return result
}

// Settle 回灌结算成本。日志写入失败时样本仍进入内存窗口，错误会被记录并返回。
func (o *Orchestrator) Settle(ctx context.Context, s risk.Settlement) (cost.CostSample, error) {
	sample, err := o.risk.Settle(ctx, s)
	if sample.Symbol == "" {
		o.monitor.RecordError(ctx, "结算无效", err, map[string]interface{}{"proposal_id": s.ProposalID})
		return sample, err
	}

	o.monitor.RecordSettlement(ctx, s, sample)
	o.metrics.ObserveSettlement(sample.Symbol)
	if err != nil {
		o.monitor.RecordError(ctx, "结算日志写入失败", err, map[string]interface{}{"symbol": sample.Symbol})
	}
	return sample, err
}

// Estimate 返回成本点估计与蒙特卡洛分布，n<=0 时使用闸门的抽样次数。
func (o *Orchestrator) Estimate(symbol, side string, notionalUSD float64, n int) (cost.CostEstimate, cost.Distribution) {
	if side == "" {
		side = o.cfg.Gate.DefaultSide
	}
	if n <= 0 {
		n = o.cfg.Gate.Samples
	}
	est := o.estimator.EstimateCost(symbol, side, notionalUSD)
	o.metrics.ObserveEstimate(est.Symbol, string(est.Source), est.Confidence, est.TotalPct)
	return est, o.estimator.SampleTotalCostDistribution(symbol, side, notionalUSD, n)
}

// Symbols 返回有样本的交易对。
func (o *Orchestrator) Symbols() []string {
	return o.estimator.Symbols()
}

// RefreshTickers 立即刷新一次报价，离线模式下不做任何事。
func (o *Orchestrator) RefreshTickers(ctx context.Context) (int, error) {
	if o.refresher == nil {
		return 0, nil
	}
	return o.refresher.Refresh(ctx)
}

// Snapshot 拉取交易对的实时盘口与行情。
func (o *Orchestrator) Snapshot(ctx context.Context, pair string) (exchange.MarketSnapshot, error) {
	if o.market == nil {
		return exchange.MarketSnapshot{}, ErrOffline
	}
	return o.market.GetSnapshot(ctx, pair)
}

// Monitor 返回监控服务。
func (o *Orchestrator) Monitor() *monitor.Service {
	return o.monitor
}

// Metrics 返回指标收集器。
func (o *Orchestrator) Metrics() *metrics.Collector {
	return o.metrics
}

// Tickers 返回报价缓存。
func (o *Orchestrator) Tickers() ticker.Cache {
	return o.tickers
}

// Close 释放外部连接。
func (o *Orchestrator) Close() error {
	var err error
	for _, closeFn := range o.closers {
		err = multierr.Append(err, closeFn())
	}
	o.closers = nil
	return err
}

func (o *Orchestrator) observeRefresh(_ int, err error) {
	o.metrics.ObserveTickerRefresh(err)
	if err != nil {
		o.monitor.RecordError(context.Background(), "报价刷新失败", err, nil)
	}
}
