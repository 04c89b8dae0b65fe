package exchange

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
	"time"

	ccxt "github.com/ccxt/ccxt/go/v4"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"trades-gate/internal/config"
)

// marketClient 为行情查询所需的 ccxt 方法子集。
type marketClient interface {
	FetchOrderBook(symbol string, options ...ccxt.FetchOrderBookOptions) (ccxt.OrderBook, error)
	FetchTicker(symbol string, options ...ccxt.FetchTickerOptions) (ccxt.Ticker, error)
}

// Client 负责与交易所交互，统一限流与重试。
type Client struct {
	cfg     config.ExchangeConfig
	logger  *zap.Logger
	venue   string
	market  marketClient
	limiter *rate.Limiter
	now     func() time.Time
}

// NewClient 根据配置构造交易所行情客户端。
func NewClient(cfg config.ExchangeConfig, logger *zap.Logger) (*Client, error) {
	market, err := newMarketClient(cfg)
	if err != nil {
		return nil, err
	}
	return newClient(cfg, market, logger), nil
}

func newClient(cfg config.ExchangeConfig, market marketClient, logger *zap.Logger) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}

	limit := rate.Inf
	if cfg.RateLimit > 0 {
		limit = rate.Limit(cfg.RateLimit)
	}
	burst := cfg.RateBurst
	if burst <= 0 {
		burst = 1
	}

	return &Client{
		cfg:     cfg,
		logger:  logger.With(zap.String("venue", strings.ToLower(cfg.Name))),
		venue:   strings.ToLower(cfg.Name),
		market:  market,
		limiter: rate.NewLimiter(limit, burst),
		now:     time.Now,
	}
}

func newMarketClient(cfg config.ExchangeConfig) (marketClient, error) {
	userConfig := map[string]interface{}{
		"enableRateLimit": true,
	}
	if cfg.APIKey != "" {
		userConfig["apiKey"] = cfg.APIKey
	}
	if cfg.APISecret != "" {
		userConfig["secret"] = cfg.APISecret
	}
	if cfg.APIPass != "" {
		userConfig["password"] = cfg.APIPass
	}

	switch strings.ToLower(strings.TrimSpace(cfg.Name)) {
	case "binance":
		ex := ccxt.NewBinance(userConfig)
		if cfg.UseSandbox {
			ex.SetSandboxMode(true)
		}
		return ex, nil
	case "binanceusdm":
		userConfig["options"] = map[string]interface{}{
			"adjustForTimeDifference": true,
			"defaultType":             "future",
		}
		ex := ccxt.NewBinanceusdm(userConfig)
		if cfg.UseSandbox {
			ex.SetSandboxMode(true)
		}
		return ex, nil
	case "kraken":
		ex := ccxt.NewKraken(userConfig)
		if cfg.UseSandbox {
			ex.SetSandboxMode(true)
		}
		return ex, nil
	case "hyperliquid":
		ex := ccxt.NewHyperliquid(userConfig)
		if cfg.UseSandbox {
			ex.SetSandboxMode(true)
		}
		return ex, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedVenue, cfg.Name)
	}
}

// Venue 返回交易所名称(小写)。
func (c *Client) Venue() string {
	return c.venue
}

// FetchOrderBook 获取订单簿快照，depth<=0 时使用配置或默认档数。
func (c *Client) FetchOrderBook(ctx context.Context, pair string, depth int) (OrderBookSnapshot, error) {
	if depth <= 0 {
		depth = c.cfg.OrderBookDepth
	}
	if depth <= 0 {
		depth = DefaultOrderBookDepth
	}

	var raw ccxt.OrderBook
	err := c.callWithRetry(ctx, "fetch_order_book", func() error {
		orderBook, err := c.market.FetchOrderBook(pair, ccxt.WithFetchOrderBookLimit(int64(depth)))
		if err != nil {
			return err
		}
		raw = orderBook
		return nil
	})
	if err != nil {
		return OrderBookSnapshot{}, err
	}

	return convertOrderBook(pair, raw, c.now), nil
}

// FetchTicker 获取 24 小时行情摘要。
func (c *Client) FetchTicker(ctx context.Context, pair string) (TickerSnapshot, error) {
	var raw ccxt.Ticker
	err := c.callWithRetry(ctx, "fetch_ticker", func() error {
		ticker, err := c.market.FetchTicker(pair)
		if err != nil {
			return err
		}
		raw = ticker
		return nil
	})
	if err != nil {
		return TickerSnapshot{}, err
	}

	return convertTicker(pair, raw, c.now), nil
}

func (c *Client) callWithRetry(ctx context.Context, operation string, fn func() error) error {
	attempt := 0
	delay := c.cfg.Retry.MinDelay
	if delay <= 0 {
		delay = 500 * time.Millisecond
	}
	maxDelay := c.cfg.Retry.MaxDelay
	if maxDelay <= 0 {
		maxDelay = 5 * time.Second
	}
	maxAttempts := c.cfg.Retry.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = 1
	}

	for {
		if err := c.limiter.Wait(ctx); err != nil {
			return fmt.Errorf("exchange: 等待限流令牌失败: %w", err)
		}

		attempt++
		start := time.Now()
		err := c.invoke(fn)
		duration := time.Since(start)
		if err == nil {
			if attempt > 1 {
				c.logger.Info("交易所调用重试后成功",
					zap.String("operation", operation),
					zap.Int("attempts", attempt),
					zap.Duration("latency", duration),
				)
			}
			return nil
		}

		normalizedErr, retry := c.classifyError(err)

		if errors.Is(normalizedErr, ErrMaintenance) {
			c.logger.Warn("交易所维护中",
				zap.String("operation", operation),
				zap.Error(normalizedErr),
			)
			return normalizedErr
		}

		if !retry || attempt >= maxAttempts {
			c.logger.Warn("交易所调用失败",
				zap.String("operation", operation),
				zap.Int("attempts", attempt),
				zap.Duration("latency", duration),
				zap.Error(normalizedErr),
			)
			return normalizedErr
		}

		wait := delay
		if wait > maxDelay {
			wait = maxDelay
		}

		c.logger.Debug("交易所调用失败，等待重试",
			zap.String("operation", operation),
			zap.Int("attempt", attempt),
			zap.Duration("wait", wait),
			zap.Error(normalizedErr),
		)

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}

		delay *= 2
		if delay > maxDelay {
			delay = maxDelay
		}
	}
}

// invoke 把 ccxt 内部的 panic 转成错误，ccxt go 在部分异常路径上直接 panic。
func (c *Client) invoke(fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			if e, ok := r.(error); ok {
				err = e
				return
			}
			err = fmt.Errorf("exchange: %v", r)
		}
	}()
	return fn()
}

func (c *Client) classifyError(err error) (error, bool) {
	if err == nil {
		return nil, false
	}

	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err, false
	}

	var ccxtErr *ccxt.Error
	if errors.As(err, &ccxtErr) {
		if ccxtErr.Type == ccxt.OnMaintenanceErrType {
			message := strings.TrimSpace(ccxtErr.Message)
			if message == "" {
				message = "exchange under maintenance"
			}
			return fmt.Errorf("%w: %s", ErrMaintenance, message), false
		}
		return err, retryableType(ccxtErr)
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return err, true
	}

	return err, false
}

func convertOrderBook(symbol string, ob ccxt.OrderBook, now func() time.Time) OrderBookSnapshot {
	var ts time.Time
	if ob.Timestamp != nil {
		ts = time.UnixMilli(*ob.Timestamp).UTC()
	} else {
		ts = now().UTC()
	}

	var nonce int64
	if ob.Nonce != nil {
		nonce = *ob.Nonce
	}

	return OrderBookSnapshot{
		Symbol:    symbol,
		Bids:      convertLevels(ob.Bids),
		Asks:      convertLevels(ob.Asks),
		Timestamp: ts,
		Nonce:     nonce,
	}
}

func convertLevels(raw [][]float64) []OrderBookLevel {
	levels := make([]OrderBookLevel, 0, len(raw))
	for _, level := range raw {
		if len(level) < 2 {
			continue
		}
		levels = append(levels, OrderBookLevel{Price: level[0], Amount: level[1]})
	}
	return levels
}

func convertTicker(symbol string, t ccxt.Ticker, now func() time.Time) TickerSnapshot {
	ts := now().UTC()
	if t.Timestamp != nil && *t.Timestamp > 0 {
		ts = time.UnixMilli(*t.Timestamp).UTC()
	}

	return TickerSnapshot{
		Symbol:      symbol,
		Last:        deref(t.Last),
		Bid:         deref(t.Bid),
		Ask:         deref(t.Ask),
		BaseVolume:  deref(t.BaseVolume),
		QuoteVolume: deref(t.QuoteVolume),
		Timestamp:   ts,
	}
}

func deref(v *float64) float64 {
	if v == nil {
		return 0
	}
	return *v
}
