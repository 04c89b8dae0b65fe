package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/multierr"
)

// Config 聚合了系统运行所需的全部配置项。
type Config struct {
	App       AppConfig       `mapstructure:"app"`
	Exchange  ExchangeConfig  `mapstructure:"exchange"`
	Estimator EstimatorConfig `mapstructure:"estimator"`
	Validator ValidatorConfig `mapstructure:"validator"`
	Gate      GateConfig      `mapstructure:"gate"`
	Ticker    TickerConfig    `mapstructure:"ticker"`
	Redis     RedisConfig     `mapstructure:"redis"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Metrics   MetricsConfig   `mapstructure:"metrics"`
	Monitor   MonitorConfig   `mapstructure:"monitor"`
	Logging   LoggingConfig   `mapstructure:"logging"`
}

// AppConfig 控制应用级参数。
type AppConfig struct {
	Environment string `mapstructure:"environment"`
}

// ExchangeConfig 描述行情交易所连接信息。
type ExchangeConfig struct {
	Name           string      `mapstructure:"name"`
	Markets        []string    `mapstructure:"markets"`
	APIKey         string      `mapstructure:"api_key"`
	APISecret      string      `mapstructure:"api_secret"`
	APIPass        string      `mapstructure:"api_password"`
	UseSandbox     bool        `mapstructure:"use_sandbox"`
	RateLimit      float64     `mapstructure:"rate_limit"`
	RateBurst      int         `mapstructure:"rate_burst"`
	OrderBookDepth int         `mapstructure:"order_book_depth"`
	Retry          RetryConfig `mapstructure:"retry"`
}

// RetryConfig 统一控制重试机制。
type RetryConfig struct {
	MaxAttempts int           `mapstructure:"max_attempts"`
	MinDelay    time.Duration `mapstructure:"min_delay"`
	MaxDelay    time.Duration `mapstructure:"max_delay"`
}

// Bounds 为单一成本类别的百分比上下限。
type Bounds struct {
	Min float64 `mapstructure:"min"`
	Max float64 `mapstructure:"max"`
}

// CostComponents 为三类成本百分比的组合。
type CostComponents struct {
	FeePct      float64 `mapstructure:"fee_pct"`
	SpreadPct   float64 `mapstructure:"spread_pct"`
	SlippagePct float64 `mapstructure:"slippage_pct"`
}

// EstimatorConfig 控制动态成本估计器。
type EstimatorConfig struct {
	SymbolWindow       int            `mapstructure:"symbol_window"`
	GlobalWindow       int            `mapstructure:"global_window"`
	Horizon            time.Duration  `mapstructure:"horizon"`
	HalfLife           time.Duration  `mapstructure:"half_life"`
	SafetyBuffer       float64        `mapstructure:"safety_buffer"`
	MinSymbolSamples   int            `mapstructure:"min_symbol_samples"`
	MinSymbolRecent    int            `mapstructure:"min_symbol_recent"`
	MinGlobalSamples   int            `mapstructure:"min_global_samples"`
	MinGlobalRecent    int            `mapstructure:"min_global_recent"`
	FullConfidenceAt   int            `mapstructure:"full_confidence_at"`
	FallbackConfidence float64        `mapstructure:"fallback_confidence"`
	NoiseFraction      float64        `mapstructure:"noise_fraction"`
	Seed               uint64         `mapstructure:"seed"`
	Fallback           CostComponents `mapstructure:"fallback"`
	FeeBounds          Bounds         `mapstructure:"fee_bounds"`
	SpreadBounds       Bounds         `mapstructure:"spread_bounds"`
	SlippageBounds     Bounds         `mapstructure:"slippage_bounds"`
}

// RouteLeg 为静态路由中的一段。
type RouteLeg struct {
	Pair  string `mapstructure:"pair"`
	Venue string `mapstructure:"venue"`
}

// RouteConfig 描述一条静态配置的兑换路径。
type RouteConfig struct {
	From string     `mapstructure:"from"`
	To   string     `mapstructure:"to"`
	Legs []RouteLeg `mapstructure:"legs"`
}

// VenuePolicyConfig 为交易所独占策略。
type VenuePolicyConfig struct {
	Enabled      bool   `mapstructure:"enabled"`
	Name         string `mapstructure:"name"`
	AllowedVenue string `mapstructure:"allowed_venue"`
}

// ValidatorConfig 控制往返流动性校验。
type ValidatorConfig struct {
	LiquidityFloorUSD float64           `mapstructure:"liquidity_floor_usd"`
	MinLegNotionalUSD float64           `mapstructure:"min_leg_notional_usd"`
	LiveDepthTimeout  time.Duration     `mapstructure:"live_depth_timeout"`
	Policy            VenuePolicyConfig `mapstructure:"policy"`
	Routes            []RouteConfig     `mapstructure:"routes"`
}

// GateConfig 控制蒙特卡洛胜率闸门。
type GateConfig struct {
	Samples      int     `mapstructure:"samples"`
	WinThreshold float64 `mapstructure:"win_threshold"`
	DefaultSide  string  `mapstructure:"default_side"`
}

// TickerConfig 控制行情缓存。
type TickerConfig struct {
	Backend         string        `mapstructure:"backend"`
	MaxAge          time.Duration `mapstructure:"max_age"`
	RefreshInterval time.Duration `mapstructure:"refresh_interval"`
	KeyPrefix       string        `mapstructure:"key_prefix"`
}

// RedisConfig 描述 Redis 连接。
type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	DB       int    `mapstructure:"db"`
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
}

// DatabaseConfig 管理数据库连接。
type DatabaseConfig struct {
	Path            string        `mapstructure:"path"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	InMemory        bool          `mapstructure:"in_memory"`
}

// MetricsConfig 控制 Prometheus 指标服务。
type MetricsConfig struct {
	Addr string `mapstructure:"addr"`
}

// MonitorConfig 控制监控事件查询接口。
type MonitorConfig struct {
	Enabled bool `mapstructure:"enabled"`
	Port    int  `mapstructure:"port"`
}

// LogFileConfig 控制滚动日志文件。
type LogFileConfig struct {
	Path       string `mapstructure:"path"`
	MaxSizeMB  int    `mapstructure:"max_size_mb"`
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAgeDays int    `mapstructure:"max_age_days"`
	Compress   bool   `mapstructure:"compress"`
}

// LoggingConfig 控制日志输出。
type LoggingConfig struct {
	Level            string        `mapstructure:"level"`
	Encoding         string        `mapstructure:"encoding"`
	Development      bool          `mapstructure:"development"`
	OutputPaths      []string      `mapstructure:"output_paths"`
	ErrorOutputPaths []string      `mapstructure:"error_output_paths"`
	File             LogFileConfig `mapstructure:"file"`
}

// Validate 对配置进行基本校验。
func (c *Config) Validate() error {
	var err error

	if c.App.Environment == "" {
		err = multierr.Append(err, errors.New("app.environment 不能为空"))
	}
	if c.Exchange.Name == "" {
		err = multierr.Append(err, errors.New("exchange.name 不能为空"))
	}
	if c.Exchange.Retry.MaxAttempts <= 0 {
		err = multierr.Append(err, errors.New("exchange.retry.max_attempts 必须大于0"))
	}
	if c.Exchange.Retry.MinDelay <= 0 || c.Exchange.Retry.MaxDelay <= 0 {
		err = multierr.Append(err, errors.New("exchange.retry.delay 必须为正"))
	}
	if c.Exchange.Retry.MinDelay > c.Exchange.Retry.MaxDelay {
		err = multierr.Append(err, errors.New("exchange.retry.min_delay 不能大于 max_delay"))
	}
	if c.Exchange.RateLimit < 0 {
		err = multierr.Append(err, errors.New("exchange.rate_limit 不能为负"))
	}

	err = multierr.Append(err, c.Estimator.validate())

	if c.Validator.LiquidityFloorUSD < 0 {
		err = multierr.Append(err, errors.New("validator.liquidity_floor_usd 不能为负"))
	}
	if c.Validator.MinLegNotionalUSD < 0 {
		err = multierr.Append(err, errors.New("validator.min_leg_notional_usd 不能为负"))
	}
	if c.Validator.LiveDepthTimeout <= 0 {
		err = multierr.Append(err, errors.New("validator.live_depth_timeout 必须大于0"))
	}
	if c.Validator.Policy.Enabled && (c.Validator.Policy.Name == "" || c.Validator.Policy.AllowedVenue == "") {
		err = multierr.Append(err, errors.New("validator.policy 启用时需要 name 与 allowed_venue"))
	}
	for i, route := range c.Validator.Routes {
		if route.From == "" || route.To == "" {
			err = multierr.Append(err, fmt.Errorf("validator.routes[%d] 缺少 from/to", i))
		}
	}

	if c.Gate.Samples <= 0 {
		err = multierr.Append(err, errors.New("gate.samples 必须大于0"))
	}
	if c.Gate.WinThreshold < 0 || c.Gate.WinThreshold > 1 {
		err = multierr.Append(err, errors.New("gate.win_threshold 必须位于[0,1]"))
	}

	switch strings.ToLower(c.Ticker.Backend) {
	case "memory":
	case "redis":
		if c.Redis.Addr == "" {
			err = multierr.Append(err, errors.New("ticker.backend=redis 需要配置 redis.addr"))
		}
	default:
		err = multierr.Append(err, fmt.Errorf("ticker.backend 不支持: %q", c.Ticker.Backend))
	}
	if c.Ticker.MaxAge < 0 {
		err = multierr.Append(err, errors.New("ticker.max_age 不能为负"))
	}
	if c.Ticker.RefreshInterval <= 0 {
		err = multierr.Append(err, errors.New("ticker.refresh_interval 必须大于0"))
	}

	if c.Database.Path == "" && !c.Database.InMemory {
		err = multierr.Append(err, errors.New("database.path 不能为空"))
	}
	if c.Database.MaxOpenConns <= 0 {
		err = multierr.Append(err, errors.New("database.max_open_conns 必须大于0"))
	}
	if c.Database.MaxIdleConns < 0 {
		err = multierr.Append(err, errors.New("database.max_idle_conns 不能为负"))
	}
	if c.Database.ConnMaxLifetime < 0 {
		err = multierr.Append(err, errors.New("database.conn_max_lifetime 不能为负"))
	}
	if c.Monitor.Enabled && (c.Monitor.Port <= 0 || c.Monitor.Port > 65535) {
		err = multierr.Append(err, errors.New("monitor.port 无效"))
	}
	if c.Logging.Level == "" {
		err = multierr.Append(err, errors.New("logging.level 不能为空"))
	}
	if c.Logging.Encoding == "" {
		err = multierr.Append(err, errors.New("logging.encoding 不能为空"))
	}
	if len(c.Logging.OutputPaths) == 0 {
		err = multierr.Append(err, errors.New("logging.output_paths 至少包含一个输出目标"))
	}
	if len(c.Logging.ErrorOutputPaths) == 0 {
		err = multierr.Append(err, errors.New("logging.error_output_paths 至少包含一个输出目标"))
	}

	if err != nil {
		return fmt.Errorf("配置校验失败: %w", err)
	}

	return nil
}

func (e EstimatorConfig) validate() error {
	var err error

	if e.SymbolWindow <= 0 || e.GlobalWindow <= 0 {
		err = multierr.Append(err, errors.New("estimator 窗口容量必须大于0"))
	}
	if e.Horizon <= 0 {
		err = multierr.Append(err, errors.New("estimator.horizon 必须大于0"))
	}
	if e.HalfLife <= 0 {
		err = multierr.Append(err, errors.New("estimator.half_life 必须大于0"))
	}
	if e.SafetyBuffer < 1 {
		err = multierr.Append(err, errors.New("estimator.safety_buffer 不应小于1"))
	}
	if e.MinSymbolRecent > e.MinSymbolSamples || e.MinGlobalRecent > e.MinGlobalSamples {
		err = multierr.Append(err, errors.New("estimator 近期样本门槛不能大于总样本门槛"))
	}
	if e.FullConfidenceAt <= 0 {
		err = multierr.Append(err, errors.New("estimator.full_confidence_at 必须大于0"))
	}
	if e.FallbackConfidence < 0 || e.FallbackConfidence > 1 {
		err = multierr.Append(err, errors.New("estimator.fallback_confidence 必须位于[0,1]"))
	}
	if e.NoiseFraction < 0 {
		err = multierr.Append(err, errors.New("estimator.noise_fraction 不能为负"))
	}
	for name, b := range map[string]Bounds{
		"fee_bounds":      e.FeeBounds,
		"spread_bounds":   e.SpreadBounds,
		"slippage_bounds": e.SlippageBounds,
	} {
		if b.Min < 0 || b.Min > b.Max {
			err = multierr.Append(err, fmt.Errorf("estimator.%s 需满足 0 <= min <= max", name))
		}
	}

	return err
}
