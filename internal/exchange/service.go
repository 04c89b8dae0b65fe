package exchange

import (
	"context"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"trades-gate/internal/liquidity"
)

// marketData 为 MarketDataService 依赖的客户端能力。
type marketData interface {
	FetchOrderBook(ctx context.Context, pair string, depth int) (OrderBookSnapshot, error)
	FetchTicker(ctx context.Context, pair string) (TickerSnapshot, error)
}

// MarketDataService 将交易所行情转换为流动性校验与报价缓存使用的视图。
type MarketDataService struct {
	client marketData
	depth  int
	logger *zap.Logger
}

// NewMarketDataService 创建市场数据服务。
func NewMarketDataService(client marketData, depth int, logger *zap.Logger) *MarketDataService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &MarketDataService{
		client: client,
		depth:  depth,
		logger: logger,
	}
}

// OrderBook 实现 liquidity.OrderBookSource。
func (s *MarketDataService) OrderBook(ctx context.Context, pair string) (liquidity.OrderBookDepth, error) {
	book, err := s.client.FetchOrderBook(ctx, pair, s.depth)
	if err != nil {
		return liquidity.OrderBookDepth{}, err
	}
	return book.Depth(), nil
}

// FetchTicker 实现 ticker.Source。
func (s *MarketDataService) FetchTicker(ctx context.Context, pair string) (liquidity.Quote, error) {
	t, err := s.client.FetchTicker(ctx, pair)
	if err != nil {
		return liquidity.Quote{}, err
	}
	return t.Quote(), nil
}

// MarketSnapshot 为单个交易对的盘口与行情。
type MarketSnapshot struct {
	Pair        string
	OrderBook   OrderBookSnapshot
	Ticker      TickerSnapshot
	RetrievedAt time.Time
}

// GetSnapshot 并行拉取订单簿与行情摘要。
func (s *MarketDataService) GetSnapshot(ctx context.Context, pair string) (MarketSnapshot, error) {
	var (
		orderBook OrderBookSnapshot
		ticker    TickerSnapshot
	)

	group, groupCtx := errgroup.WithContext(ctx)

	group.Go(func() error {
		book, err := s.client.FetchOrderBook(groupCtx, pair, s.depth)
		if err != nil {
			return err
		}
		orderBook = book
		return nil
	})

	group.Go(func() error {
		t, err := s.client.FetchTicker(groupCtx, pair)
		if err != nil {
			return err
		}
		ticker = t
		return nil
	})

	if err := group.Wait(); err != nil {
		return MarketSnapshot{}, err
	}

	snapshot := MarketSnapshot{
		Pair:        pair,
		OrderBook:   orderBook,
		Ticker:      ticker,
		RetrievedAt: time.Now().UTC(),
	}

	s.logger.Debug("市场数据快照获取完成",
		zap.String("pair", pair),
		zap.Int("order_book_bids", len(orderBook.Bids)),
		zap.Int("order_book_asks", len(orderBook.Asks)),
		zap.Float64("last", ticker.Last),
	)

	return snapshot, nil
}
