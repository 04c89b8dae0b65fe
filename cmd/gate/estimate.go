package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"trades-gate/internal/app"
)

var (
	estimateSymbols  []string
	estimateSide     string
	estimateNotional float64
	estimateSamples  int
	estimateJSON     bool
)

var estimateCmd = &cobra.Command{
	Use:   "estimate",
	Short: "打印各交易对的成本估计与抽样分布",
	RunE: func(cmd *cobra.Command, args []string) error {
		rt, err := bootstrap()
		if err != nil {
			return err
		}
		defer rt.Close()

		orch, err := app.NewOrchestrator(cmd.Context(), rt.cfg, rt.store, rt.logger, app.Options{Offline: true})
		if err != nil {
			return err
		}
		defer orch.Close()

		symbols := estimateSymbols
		if len(symbols) == 0 {
			symbols = orch.Symbols()
		}
		if len(symbols) == 0 {
			symbols = rt.cfg.Exchange.Markets
		}
		if len(symbols) == 0 {
			return fmt.Errorf("没有可估计的交易对，请使用 --symbol 指定")
		}

		rows := make([]estimateRow, 0, len(symbols))
		for _, symbol := range symbols {
			est, dist := orch.Estimate(symbol, estimateSide, estimateNotional, estimateSamples)
			rows = append(rows, estimateRow{estimate: est, dist: dist})
		}

		if estimateJSON {
			out := make([]map[string]interface{}, 0, len(rows))
			for _, r := range rows {
				out = append(out, map[string]interface{}{"estimate": r.estimate, "distribution": r.dist})
			}
			return printJSON(cmd.OutOrStdout(), out)
		}

		printEstimates(cmd.OutOrStdout(), rows)
		return nil
	},
}

func init() {
	estimateCmd.Flags().StringSliceVar(&estimateSymbols, "symbol", nil, "交易对，可重复；默认全部有样本的交易对")
	estimateCmd.Flags().StringVar(&estimateSide, "side", "", "交易方向")
	estimateCmd.Flags().Float64Var(&estimateNotional, "notional", 1000, "名义金额(USD)")
	estimateCmd.Flags().IntVar(&estimateSamples, "samples", 0, "蒙特卡洛抽样次数，默认取 gate.samples")
	estimateCmd.Flags().BoolVar(&estimateJSON, "json", false, "以 JSON 输出结果")
}
