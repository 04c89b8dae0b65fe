package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"trades-gate/internal/app"
	"trades-gate/internal/risk"
)

var (
	settleProposal string
	settleSymbol   string
	settleSide     string
	settleNotional float64
	settleFee      float64
	settleSpread   float64
	settleSlippage float64
	settleGross    float64
)

var settleCmd = &cobra.Command{
	Use:   "settle",
	Short: "回灌一笔已结算交易的实际成本",
	RunE: func(cmd *cobra.Command, args []string) error {
		rt, err := bootstrap()
		if err != nil {
			return err
		}
		defer rt.Close()

		ctx := cmd.Context()
		orch, err := app.NewOrchestrator(ctx, rt.cfg, rt.store, rt.logger, app.Options{Offline: true})
		if err != nil {
			return err
		}
		defer orch.Close()

		s := risk.Settlement{
			ProposalID:  settleProposal,
			Symbol:      settleSymbol,
			Side:        settleSide,
			NotionalUSD: settleNotional,
			FeePct:      settleFee,
			SpreadPct:   settleSpread,
			SlippagePct: settleSlippage,
		}
		if cmd.Flags().Changed("gross") {
			gross := settleGross
			s.GrossProfitUSD = &gross
		}

		sample, err := orch.Settle(ctx, s)
		if err != nil {
			return err
		}

		fmt.Fprintf(cmd.OutOrStdout(), "recorded %s %s total=%.4f%% at %s\n",
			sample.Symbol, sample.Side, sample.TotalCostPct, sample.Timestamp.Format("2006-01-02 15:04:05"))
		return nil
	},
}

func init() {
	settleCmd.Flags().StringVar(&settleProposal, "proposal", "", "对应的候选交易 ID")
	settleCmd.Flags().StringVar(&settleSymbol, "symbol", "", "交易对")
	settleCmd.Flags().StringVar(&settleSide, "side", "", "交易方向")
	settleCmd.Flags().Float64Var(&settleNotional, "notional", 0, "名义金额(USD)")
	settleCmd.Flags().Float64Var(&settleFee, "fee", 0, "手续费百分比")
	settleCmd.Flags().Float64Var(&settleSpread, "spread", 0, "价差百分比")
	settleCmd.Flags().Float64Var(&settleSlippage, "slippage", 0, "滑点百分比")
	settleCmd.Flags().Float64Var(&settleGross, "gross", 0, "交易的预期毛利(USD)，用于校准回测")
	_ = settleCmd.MarkFlagRequired("symbol")
}
