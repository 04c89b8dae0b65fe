package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"trades-gate/internal/app"
	"trades-gate/internal/risk"
)

var errDenied = errors.New("准入未通过")

var (
	checkFrom     string
	checkTo       string
	checkSymbol   string
	checkSide     string
	checkNotional float64
	checkGross    float64
	checkLive     bool
	checkOffline  bool
	checkJSON     bool
)

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "评估一笔候选交易是否允许执行",
	RunE: func(cmd *cobra.Command, args []string) error {
		if checkNotional <= 0 {
			return fmt.Errorf("--notional 必须大于0")
		}

		rt, err := bootstrap()
		if err != nil {
			return err
		}
		defer rt.Close()

		ctx := cmd.Context()
		orch, err := app.NewOrchestrator(ctx, rt.cfg, rt.store, rt.logger, app.Options{Offline: checkOffline})
		if err != nil {
			return err
		}
		defer orch.Close()

		if _, err := orch.RefreshTickers(ctx); err != nil {
			rt.logger.Warn("报价刷新不完整", zap.Error(err))
		}

		res := orch.Evaluate(ctx, risk.Proposal{
			FromAsset:              checkFrom,
			ToAsset:                checkTo,
			Symbol:                 checkSymbol,
			Side:                   checkSide,
			NotionalUSD:            checkNotional,
			ExpectedGrossProfitUSD: checkGross,
			LiveDepthCheck:         checkLive,
		})

		if checkJSON {
			if err := printJSON(cmd.OutOrStdout(), res); err != nil {
				return err
			}
		} else {
			printEvaluation(cmd.OutOrStdout(), res)
		}

		if !res.Proceed() {
			return errDenied
		}
		return nil
	},
}

func init() {
	checkCmd.Flags().StringVar(&checkFrom, "from", "USDT", "卖出资产")
	checkCmd.Flags().StringVar(&checkTo, "to", "", "买入资产")
	checkCmd.Flags().StringVar(&checkSymbol, "symbol", "", "成本统计使用的交易对，默认 TO/FROM")
	checkCmd.Flags().StringVar(&checkSide, "side", "", "交易方向，默认取 gate.default_side")
	checkCmd.Flags().Float64Var(&checkNotional, "notional", 0, "名义金额(USD)")
	checkCmd.Flags().Float64Var(&checkGross, "gross", 0, "预期毛利(USD)")
	checkCmd.Flags().BoolVar(&checkLive, "live", false, "使用实时订单簿深度校验")
	checkCmd.Flags().BoolVar(&checkOffline, "offline", false, "不连接交易所，仅使用缓存报价")
	checkCmd.Flags().BoolVar(&checkJSON, "json", false, "以 JSON 输出结果")
	_ = checkCmd.MarkFlagRequired("to")
}
