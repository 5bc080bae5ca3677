package app

import (
	"context"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/shopspring/decimal"

	"skinport-sniper/internal/market"
)

// History performs one rate-limited lookup and prints the window statistics.
func (a *App) History(ctx context.Context, marketHashName string, out io.Writer) error {
	stats, err := a.newHistory(a.newLimiter()).FetchHistory(ctx, marketHashName)
	if err != nil {
		return err
	}
	writeHistory(out, stats)
	return nil
}

func writeHistory(out io.Writer, stats market.HistoricalStats) {
	fmt.Fprintf(out, "%s (%s)\n", stats.MarketHashName, stats.Currency)

	writer := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(writer, "Window\tMin\tMax\tAvg\tMedian\tVolume")
	for _, w := range market.Windows {
		ws := stats.Window(w)
		fmt.Fprintf(
			writer,
			"%s\t%s\t%s\t%s\t%s\t%d\n",
			w,
			formatNullDecimal(ws.Min, 2),
			formatNullDecimal(ws.Max, 2),
			formatNullDecimal(ws.Avg, 2),
			formatNullDecimal(ws.Median, 2),
			ws.Volume,
		)
	}
	writer.Flush()
}

func formatNullDecimal(d decimal.NullDecimal, places int32) string {
	if !d.Valid {
		return "-"
	}
	return d.Decimal.StringFixed(places)
}
