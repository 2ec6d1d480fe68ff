package reporting

import (
	"fmt"
	"strings"
	"time"
)

// RenderMarkdown renders a report as a Markdown string.
func RenderMarkdown(r *Report) string {
	var sb strings.Builder

	// Header
	sb.WriteString(fmt.Sprintf("# Sale Report: %s\n\n", r.Sale.SaleID))
	sb.WriteString(fmt.Sprintf("Generated: %s\n\n", r.GeneratedAt.Format(time.RFC3339)))

	// Configuration
	sb.WriteString("## Configuration\n\n")
	sb.WriteString("| Parameter | Value |\n")
	sb.WriteString("|-----------|-------|\n")
	sb.WriteString(fmt.Sprintf("| Asset Mint | %s |\n", r.Sale.AssetMint))
	sb.WriteString(fmt.Sprintf("| Quote Mint | %s |\n", r.Sale.QuoteMint))
	sb.WriteString(fmt.Sprintf("| Tokens For Sale | %s |\n", r.Sale.NumTokensToSell))
	sb.WriteString(fmt.Sprintf("| Window (unix) | %d - %d |\n", r.Sale.StartingTime, r.Sale.EndingTime))
	sb.WriteString(fmt.Sprintf("| Epochs | %d x %ds |\n", r.Sale.TotalEpochs, r.Sale.EpochLength))
	sb.WriteString(fmt.Sprintf("| Tick Range | %d to %d |\n", r.Sale.StartingTick, r.Sale.EndingTick))
	sb.WriteString(fmt.Sprintf("| Gamma | %d |\n", r.Sale.Gamma))
	sb.WriteString(fmt.Sprintf("| Proceeds Band | %s - %s |\n", r.Sale.MinimumProceeds, r.Sale.MaximumProceeds))
	sb.WriteString("\n")

	// Outcome
	sb.WriteString("## Outcome\n\n")
	sb.WriteString("| Metric | Value |\n")
	sb.WriteString("|--------|-------|\n")
	sb.WriteString(fmt.Sprintf("| Status | %s |\n", r.Outcome.Status))
	sb.WriteString(fmt.Sprintf("| Failed | %v |\n", r.Outcome.Failed))
	sb.WriteString(fmt.Sprintf("| Tokens Sold | %s (%s%%) |\n",
		r.Outcome.TotalTokensSold, r.Outcome.SelloutPercent.StringFixed(2)))
	sb.WriteString(fmt.Sprintf("| Proceeds | %s |\n", r.Outcome.TotalProceeds))
	sb.WriteString(fmt.Sprintf("| Last Epoch | %d |\n", r.Outcome.CurrentEpoch))
	sb.WriteString(fmt.Sprintf("| Swaps Settled | %d |\n", r.Outcome.SwapCount))
	sb.WriteString(fmt.Sprintf("| Rollovers Processed | %d |\n", r.Outcome.EpochsProcessed))
	sb.WriteString("\n")

	// Epoch trace
	sb.WriteString("## Epoch Trace\n\n")
	if len(r.Epochs) > 0 {
		sb.WriteString("| Epoch | Ceiling Tick | Floor Tick | Pool Tick | Ceiling Price | Sold | Proceeds | Slugs |\n")
		sb.WriteString("|-------|--------------|------------|-----------|---------------|------|----------|-------|\n")
		for _, e := range r.Epochs {
			sb.WriteString(fmt.Sprintf("| %d | %d | %d | %d | %s | %s | %s | %d |\n",
				e.Epoch, e.TickUpper, e.TickLower, e.PoolTick,
				e.CeilingPrice.StringFixed(12),
				e.TotalTokensSold, e.TotalProceeds, e.SlugCount))
		}
	} else {
		sb.WriteString("No rollovers recorded.\n")
	}
	sb.WriteString("\n")

	return sb.String()
}
