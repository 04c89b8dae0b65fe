package ticker

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"
	"time"

	"trades-gate/internal/liquidity"
)

// Writer 写入最新报价，由刷新器调用。
type Writer interface {
	Store(ctx context.Context, pair string, quote liquidity.Quote) error
}

// Cache 同时满足校验器读取与刷新器写入。
type Cache interface {
	liquidity.TickerCache
	Writer
	Get(ctx context.Context, pair string) (liquidity.Quote, error)
}

// MemoryCache 为进程内报价缓存。
type MemoryCache struct {
	mu     sync.RWMutex
	quotes map[string]liquidity.Quote
	maxAge time.Duration
	now    func() time.Time
}

// NewMemoryCache 创建内存缓存，maxAge<=0 表示报价永不过期。
func NewMemoryCache(maxAge time.Duration) *MemoryCache {
	return &MemoryCache{
		quotes: make(map[string]liquidity.Quote),
		maxAge: maxAge,
		now:    time.Now,
	}
}

// Store 写入报价，未带时间戳时使用当前时间。
func (c *MemoryCache) Store(_ context.Context, pair string, quote liquidity.Quote) error {
	if quote.UpdatedAt.IsZero() {
		quote.UpdatedAt = c.now()
	}
	c.mu.Lock()
	c.quotes[normalizePair(pair)] = quote
	c.mu.Unlock()
	return nil
}

// Get 读取报价，缺失或过期返回 ErrNotFound。
func (c *MemoryCache) Get(_ context.Context, pair string) (liquidity.Quote, error) {
	c.mu.RLock()
	quote, ok := c.quotes[normalizePair(pair)]
	c.mu.RUnlock()

	if !ok || stale(quote, c.maxAge, c.now()) {
		return liquidity.Quote{}, ErrNotFound
	}
	return quote, nil
}

// Quote 实现 liquidity.TickerCache。
func (c *MemoryCache) Quote(ctx context.Context, pair string) (liquidity.Quote, bool, error) {
	return lookup(ctx, c, pair)
}

// Pairs 返回缓存中的全部交易对，按字母排序。
func (c *MemoryCache) Pairs() []string {
	c.mu.RLock()
	out := make([]string, 0, len(c.quotes))
	for pair := range c.quotes {
		out = append(out, pair)
	}
	c.mu.RUnlock()

	sort.Strings(out)
	return out
}

func lookup(ctx context.Context, c interface {
	Get(context.Context, string) (liquidity.Quote, error)
}, pair string) (liquidity.Quote, bool, error) {
	quote, err := c.Get(ctx, pair)
	switch {
	case errors.Is(err, ErrNotFound):
		return liquidity.Quote{}, false, nil
	case err != nil:
		return liquidity.Quote{}, false, err
	default:
		return quote, true, nil
	}
}

func stale(q liquidity.Quote, maxAge time.Duration, now time.Time) bool {
	return maxAge > 0 && now.Sub(q.UpdatedAt) > maxAge
}

func normalizePair(pair string) string {
	return strings.ToUpper(strings.TrimSpace(pair))
}
