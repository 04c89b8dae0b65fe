package ticker

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"trades-gate/internal/config"
	"trades-gate/internal/liquidity"
)

const defaultKeyPrefix = "ticker:"

// NewRedisClient 根据配置创建 Redis 客户端。
func NewRedisClient(cfg config.RedisConfig) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		DB:       cfg.DB,
		Username: cfg.Username,
		Password: cfg.Password,
	})
}

// RedisCache 以 hash 形式在 Redis 中保存报价，便于多个进程共享同一份行情。
type RedisCache struct {
	rdb    *redis.Client
	prefix string
	maxAge time.Duration
	now    func() time.Time
}

// NewRedisCache 创建 Redis 报价缓存。
func NewRedisCache(rdb *redis.Client, prefix string, maxAge time.Duration) *RedisCache {
	if prefix == "" {
		prefix = defaultKeyPrefix
	}
	return &RedisCache{rdb: rdb, prefix: prefix, maxAge: maxAge, now: time.Now}
}

// Ping 检查连接是否可用。
func (c *RedisCache) Ping(ctx context.Context) error {
	if err := c.rdb.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("ticker: redis 不可用: %w", err)
	}
	return nil
}

// Store 写入报价，配置了 maxAge 时同时设置过期时间。
func (c *RedisCache) Store(ctx context.Context, pair string, quote liquidity.Quote) error {
	if quote.UpdatedAt.IsZero() {
		quote.UpdatedAt = c.now()
	}

	key := c.key(pair)
	pipe := c.rdb.TxPipeline()
	pipe.HSet(ctx, key, map[string]interface{}{
		"pair":   normalizePair(pair),
		"price":  strconv.FormatFloat(quote.Price, 'f', -1, 64),
		"volume": strconv.FormatFloat(quote.Volume, 'f', -1, 64),
		"ts_ms":  quote.UpdatedAt.UnixMilli(),
	})
	if c.maxAge > 0 {
		pipe.Expire(ctx, key, c.maxAge)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("ticker: 写入 redis 失败 (%s): %w", pair, err)
	}
	return nil
}

// Get 读取报价，缺失或过期返回 ErrNotFound。
func (c *RedisCache) Get(ctx context.Context, pair string) (liquidity.Quote, error) {
	fields, err := c.rdb.HGetAll(ctx, c.key(pair)).Result()
	if err != nil {
		return liquidity.Quote{}, fmt.Errorf("ticker: 读取 redis 失败 (%s): %w", pair, err)
	}
	if len(fields) == 0 {
		return liquidity.Quote{}, ErrNotFound
	}

	price, err := strconv.ParseFloat(fields["price"], 64)
	if err != nil {
		return liquidity.Quote{}, fmt.Errorf("ticker: 解析价格失败 (%s): %w", pair, err)
	}
	volume, err := strconv.ParseFloat(fields["volume"], 64)
	if err != nil {
		return liquidity.Quote{}, fmt.Errorf("ticker: 解析成交量失败 (%s): %w", pair, err)
	}
	tsMs, err := strconv.ParseInt(fields["ts_ms"], 10, 64)
	if err != nil {
		return liquidity.Quote{}, fmt.Errorf("ticker: 解析时间戳失败 (%s): %w", pair, err)
	}

	quote := liquidity.Quote{Price: price, Volume: volume, UpdatedAt: time.UnixMilli(tsMs)}
	if stale(quote, c.maxAge, c.now()) {
		return liquidity.Quote{}, ErrNotFound
	}
	return quote, nil
}

// Quote 实现 liquidity.TickerCache。
func (c *RedisCache) Quote(ctx context.Context, pair string) (liquidity.Quote, bool, error) {
	return lookup(ctx, c, pair)
}

func (c *RedisCache) key(pair string) string {
	return c.prefix + normalizePair(pair)
}
