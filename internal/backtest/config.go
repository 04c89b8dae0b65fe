package backtest

import (
	"time"

	"trades-gate/internal/config"
	"trades-gate/internal/gate"
)

// Config 定义校准回测参数。
type Config struct {
	Estimator     config.EstimatorConfig // 回放使用的估计器参数
	Gate          config.GateConfig      // 胜率闸门参数
	Since         time.Time              // 仅回放该时间之后的结算
	InitialEquity float64                // 模拟账户初始净值
}

func (c *Config) normalize() Config {
	cfg := *c
	if cfg.InitialEquity <= 0 {
		cfg.InitialEquity = 10000
	}
	if cfg.Gate.Samples <= 0 {
		cfg.Gate.Samples = gate.DefaultSamples
	}
	return cfg
}
