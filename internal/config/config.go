package config

import (
	"errors"
	"fmt"
	"strings"

	mapstructure "github.com/go-viper/mapstructure/v2"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	defaultConfigPath = "configs/config.yaml"
	envPrefix         = "gate"
)

// Load 读取配置文件并结合环境变量返回 Config。
func Load(path string) (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()

	if path == "" {
		path = defaultConfigPath
	}

	v.SetConfigFile(path)
	v.SetConfigType("yaml")

	v.SetEnvPrefix(envPrefix)
	replacer := strings.NewReplacer(".", "_")
	v.SetEnvKeyReplacer(replacer)
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) {
			return nil, fmt.Errorf("未找到配置文件 %q: %w", path, err)
		}
		return nil, fmt.Errorf("读取配置文件失败: %w", err)
	}

	return decode(v)
}

// Default 返回仅由默认值构成的配置，用于测试与无配置文件的命令。
func Default() (*Config, error) {
	v := viper.New()
	setDefaults(v)
	return decode(v)
}

func decode(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg, decodeHook()); err != nil {
		return nil, fmt.Errorf("解析配置失败: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.environment", "development")

	v.SetDefault("exchange.name", "binance")
	v.SetDefault("exchange.markets", []string{"BTC/USDT", "ETH/USDT", "ETH/BTC"})
	v.SetDefault("exchange.use_sandbox", false)
	v.SetDefault("exchange.rate_limit", 10.0)
	v.SetDefault("exchange.rate_burst", 5)
	v.SetDefault("exchange.order_book_depth", 50)
	v.SetDefault("exchange.retry.max_attempts", 3)
	v.SetDefault("exchange.retry.min_delay", "250ms")
	v.SetDefault("exchange.retry.max_delay", "2s")

	v.SetDefault("estimator.symbol_window", 20)
	v.SetDefault("estimator.global_window", 100)
	v.SetDefault("estimator.horizon", "24h")
	v.SetDefault("estimator.half_life", "6h")
	v.SetDefault("estimator.safety_buffer", 1.10)
	v.SetDefault("estimator.min_symbol_samples", 5)
	v.SetDefault("estimator.min_symbol_recent", 3)
	v.SetDefault("estimator.min_global_samples", 10)
	v.SetDefault("estimator.min_global_recent", 5)
	v.SetDefault("estimator.full_confidence_at", 20)
	v.SetDefault("estimator.fallback_confidence", 0.3)
	v.SetDefault("estimator.noise_fraction", 0.05)
	v.SetDefault("estimator.seed", 0)
	v.SetDefault("estimator.fallback.fee_pct", 0.20)
	v.SetDefault("estimator.fallback.spread_pct", 0.10)
	v.SetDefault("estimator.fallback.slippage_pct", 0.10)
	v.SetDefault("estimator.fee_bounds.min", 0.05)
	v.SetDefault("estimator.fee_bounds.max", 1.00)
	v.SetDefault("estimator.spread_bounds.min", 0.01)
	v.SetDefault("estimator.spread_bounds.max", 1.00)
	v.SetDefault("estimator.slippage_bounds.min", 0.00)
	v.SetDefault("estimator.slippage_bounds.max", 2.00)

	v.SetDefault("validator.liquidity_floor_usd", 10000.0)
	v.SetDefault("validator.min_leg_notional_usd", 10.0)
	v.SetDefault("validator.live_depth_timeout", "3s")
	v.SetDefault("validator.policy.enabled", false)
	v.SetDefault("validator.policy.name", "ALPACA_ONLY")
	v.SetDefault("validator.policy.allowed_venue", "alpaca")

	v.SetDefault("gate.samples", 1000)
	v.SetDefault("gate.win_threshold", 0.80)
	v.SetDefault("gate.default_side", "buy")

	v.SetDefault("ticker.backend", "memory")
	v.SetDefault("ticker.max_age", "2m")
	v.SetDefault("ticker.refresh_interval", "15s")
	v.SetDefault("ticker.key_prefix", "ticker:")

	v.SetDefault("redis.addr", "127.0.0.1:6379")
	v.SetDefault("redis.db", 0)

	v.SetDefault("database.path", "data/trades_gate.db")
	v.SetDefault("database.max_open_conns", 4)
	v.SetDefault("database.max_idle_conns", 4)
	v.SetDefault("database.conn_max_lifetime", "1h")
	v.SetDefault("database.in_memory", false)

	v.SetDefault("metrics.addr", ":9108")

	v.SetDefault("monitor.enabled", true)
	v.SetDefault("monitor.port", 8088)

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.encoding", "console")
	v.SetDefault("logging.development", true)
	v.SetDefault("logging.output_paths", []string{"stdout"})
	v.SetDefault("logging.error_output_paths", []string{"stderr"})
	v.SetDefault("logging.file.max_size_mb", 100)
	v.SetDefault("logging.file.max_backups", 5)
	v.SetDefault("logging.file.max_age_days", 14)
}

func decodeHook() viper.DecoderConfigOption {
	return func(dc *mapstructure.DecoderConfig) {
		dc.TagName = "mapstructure"
		dc.DecodeHook = mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToSliceHookFunc(","),
		)
	}
}
