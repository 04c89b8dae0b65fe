package main

import (
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"trades-gate/internal/app"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "启动准入服务：刷新报价并提供指标与监控接口",
	RunE: func(cmd *cobra.Command, args []string) error {
		rt, err := bootstrap()
		if err != nil {
			return err
		}
		defer rt.Close()

		if err := app.New(rt.cfg, rt.logger, rt.store).Run(cmd.Context()); err != nil {
			rt.logger.Error("服务运行异常", zap.Error(err))
			return err
		}

		rt.logger.Info("服务已安全退出")
		return nil
	},
}
