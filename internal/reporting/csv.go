package reporting

import (
	"fmt"
	"strings"
)

// RenderCSV renders the epoch trace as a CSV string for plotting.
func RenderCSV(r *Report) string {
	var sb strings.Builder

	// Header
	sb.WriteString("epoch,timestamp,tick_upper,tick_lower,pool_tick,ceiling_price,total_tokens_sold,total_proceeds,slug_count\n")

	// Rows
	for _, e := range r.Epochs {
		sb.WriteString(fmt.Sprintf("%d,%d,%d,%d,%d,%s,%s,%s,%d\n",
			e.Epoch,
			e.Timestamp,
			e.TickUpper,
			e.TickLower,
			e.PoolTick,
			e.CeilingPrice.String(),
			e.TotalTokensSold,
			e.TotalProceeds,
			e.SlugCount,
		))
	}

	return sb.String()
}
