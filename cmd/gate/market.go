package main

import (
	"fmt"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"trades-gate/internal/app"
)

var marketCmd = &cobra.Command{
	Use:   "market <pair>",
	Short: "拉取交易对的实时盘口与行情摘要",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		rt, err := bootstrap()
		if err != nil {
			return err
		}
		defer rt.Close()

		orch, err := app.NewOrchestrator(cmd.Context(), rt.cfg, rt.store, rt.logger, app.Options{})
		if err != nil {
			return err
		}
		defer orch.Close()

		snap, err := orch.Snapshot(cmd.Context(), args[0])
		if err != nil {
			return err
		}

		depth := snap.OrderBook.Depth()
		quote := snap.Ticker.Quote()

		table := tablewriter.NewWriter(cmd.OutOrStdout())
		table.Header("Field", "Value")
		table.Append("pair", snap.Pair)
		table.Append("last", fmt.Sprintf("%.8g", snap.Ticker.Last))
		table.Append("bid / ask", fmt.Sprintf("%.8g / %.8g", snap.Ticker.Bid, snap.Ticker.Ask))
		table.Append("24h volume (USD)", fmt.Sprintf("%.2f", quote.Price*quote.Volume))
		table.Append("book levels", fmt.Sprintf("%d bids, %d asks", len(depth.Bids), len(depth.Asks)))
		table.Append("book notional (USD)", depth.NotionalUSD().StringFixed(2))
		table.Append("retrieved", snap.RetrievedAt.Format("2006-01-02 15:04:05"))
		table.Render()
		return nil
	},
}
