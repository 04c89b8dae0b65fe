package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"trades-gate/internal/config"
	"trades-gate/internal/log"
	"trades-gate/internal/store"
)

var (
	cfgFile  string
	logLevel string
)

var rootCmd = &cobra.Command{
	Use:           "gate",
	Short:         "交易准入闸门：动态成本估计、往返流动性校验与蒙特卡洛胜率门控",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "配置文件路径，默认使用 configs/config.yaml")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "覆盖配置中的日志级别")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(checkCmd)
	rootCmd.AddCommand(settleCmd)
	rootCmd.AddCommand(estimateCmd)
	rootCmd.AddCommand(calibrateCmd)
	rootCmd.AddCommand(marketCmd)
	rootCmd.AddCommand(versionCmd)
}

// runtime 为各子命令共享的配置、日志与数据库。
type runtime struct {
	cfg    *config.Config
	logger *zap.Logger
	store  *store.Store
}

func bootstrap() (*runtime, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, fmt.Errorf("加载配置失败: %w", err)
	}
	if logLevel != "" {
		cfg.Logging.Level = logLevel
	}

	logger, err := log.NewLogger(cfg.Logging)
	if err != nil {
		return nil, fmt.Errorf("初始化日志失败: %w", err)
	}

	sqliteStore, err := store.NewSQLite(cfg.Database)
	if err != nil {
		_ = logger.Sync()
		return nil, fmt.Errorf("初始化数据库失败: %w", err)
	}

	return &runtime{cfg: cfg, logger: logger, store: sqliteStore}, nil
}

func (r *runtime) Close() {
	if err := r.store.Close(); err != nil {
		r.logger.Warn("关闭数据库失败", zap.Error(err))
	}
	_ = r.logger.Sync()
}
