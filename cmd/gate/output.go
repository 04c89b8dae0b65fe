package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/olekukonko/tablewriter"

	"trades-gate/internal/backtest"
	"trades-gate/internal/cost"
	"trades-gate/internal/risk"
)

func printJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func printEvaluation(w io.Writer, res risk.EvaluationResult) {
	table := tablewriter.NewWriter(w)
	table.Header("Field", "Value")

	table.Append("proposal", res.ProposalID)
	table.Append("symbol", res.Symbol)
	table.Append("status", strings.ToUpper(string(res.Status)))
	table.Append("verdict", fmt.Sprintf("%s (%s)", res.Verdict.Code, res.Verdict.Reason))
	if res.Estimate != nil {
		table.Append("cost", fmt.Sprintf("%.4f%% via %s, confidence %.2f", res.Estimate.TotalPct, res.Estimate.Source, res.Estimate.Confidence))
	}
	if res.Gated {
		table.Append("p(win)", fmt.Sprintf("%.1f%% (threshold %.1f%%)", res.PWin*100, res.Threshold*100))
	}
	for _, note := range res.Notes {
		table.Append("note", note)
	}

	table.Render()
}

type estimateRow struct {
	estimate cost.CostEstimate
	dist     cost.Distribution
}

func printEstimates(w io.Writer, rows []estimateRow) {
	table := tablewriter.NewWriter(w)
	table.Header("Symbol", "Source", "N", "Conf", "Fee%", "Spread%", "Slip%", "Total%", "P50%", "P90%", "P95%")

	for _, r := range rows {
		e := r.estimate
		table.Append(
			e.Symbol,
			string(e.Source),
			fmt.Sprintf("%d", e.SampleCount),
			fmt.Sprintf("%.2f", e.Confidence),
			fmt.Sprintf("%.4f", e.FeePct),
			fmt.Sprintf("%.4f", e.SpreadPct),
			fmt.Sprintf("%.4f", e.SlippagePct),
			fmt.Sprintf("%.4f", e.TotalPct),
			fmt.Sprintf("%.4f", r.dist.P50),
			fmt.Sprintf("%.4f", r.dist.P90),
			fmt.Sprintf("%.4f", r.dist.P95),
		)
	}

	table.Render()
}

func printCalibration(w io.Writer, m backtest.Metrics, finalEquity float64) {
	table := tablewriter.NewWriter(w)
	table.Header("Metric", "Value")

	table.Append("settlements", fmt.Sprintf("%d", m.Settlements))
	table.Append("trades", fmt.Sprintf("%d", m.Trades))
	table.Append("admitted", fmt.Sprintf("%d", m.Admitted))
	table.Append("brier", fmt.Sprintf("%.4f", m.BrierScore))
	table.Append("hit rate", fmt.Sprintf("%.1f%%", m.HitRate*100))
	table.Append("mean p(win)", fmt.Sprintf("%.1f%%", m.MeanPWin*100))
	table.Append("realized win rate", fmt.Sprintf("%.1f%%", m.RealizedWinRate*100))
	table.Append("admitted win rate", fmt.Sprintf("%.1f%%", m.AdmittedWinRate*100))
	table.Append("net pnl", fmt.Sprintf("$%.2f", m.NetPnLUSD))
	table.Append("mean return", fmt.Sprintf("%.4f%%", m.MeanReturnPct))
	table.Append("max drawdown", fmt.Sprintf("%.2f%%", m.MaxDrawdown*100))
	table.Append("final equity", fmt.Sprintf("$%.2f", finalEquity))

	table.Render()
}
