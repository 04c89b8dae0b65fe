package main

import (
	"time"

	"github.com/spf13/cobra"

	"trades-gate/internal/backtest"
	"trades-gate/internal/cost"
)

var (
	calibrateWindow time.Duration
	calibrateEquity float64
	calibrateJSON   bool
)

var calibrateCmd = &cobra.Command{
	Use:   "calibrate",
	Short: "回放成本日志，检验胜率闸门的校准程度",
	RunE: func(cmd *cobra.Command, args []string) error {
		rt, err := bootstrap()
		if err != nil {
			return err
		}
		defer rt.Close()

		ctx := cmd.Context()
		journal, err := cost.NewJournal(rt.store.DB(), rt.logger)
		if err != nil {
			return err
		}

		var since time.Time
		if calibrateWindow > 0 {
			since = time.Now().Add(-calibrateWindow)
		}
		provider, err := backtest.NewJournalProvider(ctx, journal, since)
		if err != nil {
			return err
		}

		engine, err := backtest.NewEngine(backtest.Config{
			Estimator:     rt.cfg.Estimator,
			Gate:          rt.cfg.Gate,
			Since:         since,
			InitialEquity: calibrateEquity,
		}, provider, rt.logger)
		if err != nil {
			return err
		}

		res, err := engine.Run(ctx)
		if err != nil {
			return err
		}

		if calibrateJSON {
			return printJSON(cmd.OutOrStdout(), res.Metrics)
		}
		printCalibration(cmd.OutOrStdout(), res.Metrics, res.FinalEquity)
		return nil
	},
}

func init() {
	calibrateCmd.Flags().DurationVar(&calibrateWindow, "window", 0, "只回放最近这段时间的结算，0 表示全部")
	calibrateCmd.Flags().Float64Var(&calibrateEquity, "equity", 10000, "模拟账户初始净值(USD)")
	calibrateCmd.Flags().BoolVar(&calibrateJSON, "json", false, "以 JSON 输出结果")
}
