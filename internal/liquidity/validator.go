package liquidity

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"trades-gate/internal/config"
)

const defaultLiveDepthTimeout = 3 * time.Second

// ValidatorOption 调整 Validator 的可选行为。
type ValidatorOption func(*Validator)

// WithFetchFailureHook 在实时订单簿拉取失败时回调，用于指标统计。
func WithFetchFailureHook(fn func(pair string)) ValidatorOption {
	return func(v *Validator) {
		v.onFetchFailure = fn
	}
}

// WithBookVenue 声明订单簿来源所属的交易所，实时深度模式只校验该交易所的路径段。
func WithBookVenue(venue string) ValidatorOption {
	return func(v *Validator) {
		v.bookVenue = strings.ToLower(strings.TrimSpace(venue))
	}
}

// Validator 在任何成本推理之前校验兑换路径是否存在且流动性充足。
type Validator struct {
	cfg     config.ValidatorConfig
	policy  VenuePolicy
	oracle  PathOracle
	tickers TickerCache
	books   OrderBookSource
	logger  *zap.Logger

	onFetchFailure func(pair string)
	bookVenue      string
}

// NewValidator 创建往返流动性校验器，任一依赖可为空。
func NewValidator(cfg config.ValidatorConfig, oracle PathOracle, tickers TickerCache, books OrderBookSource, logger *zap.Logger, opts ...ValidatorOption) *Validator {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.LiveDepthTimeout <= 0 {
		cfg.LiveDepthTimeout = defaultLiveDepthTimeout
	}

	v := &Validator{
		cfg:     cfg,
		policy:  PolicyFromConfig(cfg.Policy),
		oracle:  oracle,
		tickers: tickers,
		books:   books,
		logger:  logger,
	}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

// Policy 返回当前生效的独占策略。
func (v *Validator) Policy() VenuePolicy {
	return v.policy
}

// EnsureRoundTripAvailable 校验 from→to 的兑换路径。不会修改任何状态，
// 只有实时深度模式会发起网络请求，超时或出错一律按深度不足处理。
func (v *Validator) EnsureRoundTripAvailable(ctx context.Context, from, to string, notionalUSD float64, liveDepthCheck bool) Verdict {
	if v.oracle == nil {
		return pass(CodePathAssumed, "No path oracle configured: assume path exists")
	}

	path, err := v.oracle.FindPath(ctx, from, to)
	if err != nil {
		v.logger.Warn("路径查询失败", zap.String("from", from), zap.String("to", to), zap.Error(err))
		path = nil
	}
	if path == nil || len(path.Legs) == 0 {
		return fail(CodeNoPath, fmt.Sprintf("No conversion path found for %s->%s", from, to))
	}
	legs := path.Legs

	if v.policy.Active() {
		for i, leg := range legs {
			if !v.policy.Allows(leg.Venue) {
				venue := leg.Venue
				if strings.TrimSpace(venue) == "" {
					venue = "<unknown>"
				}
				return fail(CodeVenuePolicy, fmt.Sprintf("%s active: leg %d venue %s not allowed", v.policy.Label(), i+1, venue))
			}
		}
	}

	for i, leg := range legs {
		if strings.TrimSpace(leg.Pair) == "" {
			return fail(CodeMissingPair, fmt.Sprintf("Missing pair info in path step %d", i+1))
		}
	}

	var verdict Verdict
	if liveDepthCheck && v.books != nil {
		verdict = v.checkOrderBooks(ctx, legs)
	} else {
		if liveDepthCheck {
			v.logger.Warn("未配置订单簿来源，退回报价模式")
		}
		verdict = v.checkQuotes(ctx, legs, notionalUSD)
	}
	if !verdict.OK {
		return verdict
	}

	return pass(CodeAvailable, fmt.Sprintf("Round-trip available via %d leg(s): %s", len(legs), describe(legs)))
}

func (v *Validator) checkQuotes(ctx context.Context, legs []Leg, notionalUSD float64) Verdict {
	floor := decimal.NewFromFloat(v.cfg.LiquidityFloorUSD)

	for _, leg := range legs {
		pair := strings.TrimSpace(leg.Pair)
		quote, ok, err := v.lookupQuote(ctx, pair)
		if err != nil {
			v.logger.Warn("读取报价失败", zap.String("pair", pair), zap.Error(err))
		}
		if !ok || err != nil {
			return fail(CodeNoTicker, fmt.Sprintf("No price/ticker for pair %s", pair))
		}

		value, valid := notional(quote.Price, quote.Volume)
		if !valid || value.LessThan(floor) {
			return fail(CodeLowVolume, fmt.Sprintf("Insufficient volume on %s: $%s < $%s",
				pair, value.StringFixed(2), floor.StringFixed(2)))
		}
	}

	if n := len(legs); n > 1 {
		perLeg := notionalUSD / float64(n)
		if !finite(perLeg) || perLeg < v.cfg.MinLegNotionalUSD {
			return fail(CodeLegTooSmall, fmt.Sprintf("Notional $%.2f too small for %d-leg path (min $%.2f per leg)",
				notionalUSD, n, v.cfg.MinLegNotionalUSD))
		}
	}

	return Verdict{OK: true}
}

func (v *Validator) lookupQuote(ctx context.Context, pair string) (Quote, bool, error) {
	if v.tickers == nil {
		return Quote{}, false, nil
	}
	return v.tickers.Quote(ctx, pair)
}

type bookResult struct {
	depth decimal.Decimal
	err   error
}

// checkOrderBooks 并行拉取各段订单簿，结果按路径顺序判定。
func (v *Validator) checkOrderBooks(ctx context.Context, legs []Leg) Verdict {
	if v.bookVenue != "" {
		for _, leg := range legs {
			venue := strings.ToLower(strings.TrimSpace(leg.Venue))
			if venue == v.bookVenue {
				continue
			}
			if venue == "" {
				venue = "<unknown>"
			}
			return fail(CodeShallowBook, fmt.Sprintf("Insufficient orderbook depth on %s: no orderbook source for venue %s",
				strings.TrimSpace(leg.Pair), venue))
		}
	}

	fetchCtx, cancel := context.WithTimeout(ctx, v.cfg.LiveDepthTimeout)
	defer cancel()

	results := make([]bookResult, len(legs))
	var g errgroup.Group
	for i, leg := range legs {
		pair := strings.TrimSpace(leg.Pair)
		g.Go(func() error {
			results[i] = v.fetchDepth(fetchCtx, pair)
			return nil
		})
	}
	_ = g.Wait()

	floor := decimal.NewFromFloat(v.cfg.LiquidityFloorUSD)
	for i, leg := range legs {
		pair := strings.TrimSpace(leg.Pair)
		res := results[i]
		if res.err != nil {
			v.logger.Warn("订单簿拉取失败", zap.String("pair", pair), zap.Error(res.err))
			if v.onFetchFailure != nil {
				v.onFetchFailure(pair)
			}
			return fail(CodeShallowBook, fmt.Sprintf("Insufficient orderbook depth on %s: fetch failed", pair))
		}
		if res.depth.LessThan(floor) {
			return fail(CodeShallowBook, fmt.Sprintf("Insufficient orderbook depth on %s: $%s < $%s",
				pair, res.depth.StringFixed(2), floor.StringFixed(2)))
		}
	}

	return Verdict{OK: true}
}

// fetchDepth 在边界处兜住 panic 与超时，保证失败只会落到深度不足。
func (v *Validator) fetchDepth(ctx context.Context, pair string) bookResult {
	type outcome struct {
		book OrderBookDepth
		err  error
	}
	done := make(chan outcome, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- outcome{err: fmt.Errorf("liquidity: 订单簿拉取异常: %v", r)}
			}
		}()
		book, err := v.books.OrderBook(ctx, pair)
		done <- outcome{book: book, err: err}
	}()

	select {
	case <-ctx.Done():
		return bookResult{err: fmt.Errorf("liquidity: 订单簿拉取超时: %w", ctx.Err())}
	case out := <-done:
		if out.err != nil {
			return bookResult{err: out.err}
		}
		return bookResult{depth: out.book.NotionalUSD()}
	}
}

func describe(legs []Leg) string {
	parts := make([]string, len(legs))
	for i, leg := range legs {
		if leg.Venue != "" {
			parts[i] = fmt.Sprintf("%s@%s", strings.TrimSpace(leg.Pair), leg.Venue)
		} else {
			parts[i] = strings.TrimSpace(leg.Pair)
		}
	}
	return strings.Join(parts, " -> ")
}
