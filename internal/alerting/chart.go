package alerting

import (
	"bytes"
	"fmt"

	chart "github.com/wcharczuk/go-chart/v2"

	"skinport-sniper/internal/market"
)

const chartFileName = "history.png"

// renderHistoryChart draws the sale price next to each window average that is present.
func renderHistoryChart(note Notification) ([]byte, error) {
	bars := []chart.Value{{
		Label: "Sale",
		Value: note.Sale.SalePriceMajor().InexactFloat64(),
	}}
	for _, w := range market.Windows {
		stats := note.Stats.Window(w)
		if !stats.Avg.Valid {
			continue
		}
		bars = append(bars, chart.Value{Label: "Avg " + string(w), Value: stats.Avg.Decimal.InexactFloat64()})
	}

	top := 0.0
	for _, b := range bars {
		if b.Value > top {
			top = b.Value
		}
	}
	if top <= 0 {
		top = 1
	}

	currency := currencyOf(note)
	graph := chart.BarChart{
		Title:    note.Sale.MarketHashName,
		Width:    1024,
		Height:   480,
		BarWidth: 80,
		Background: chart.Style{
			Padding: chart.Box{Top: 48},
		},
		YAxis: chart.YAxis{
			Name:  currency,
			Range: &chart.ContinuousRange{Min: 0, Max: top * 1.1},
			ValueFormatter: func(v interface{}) string {
				return chart.FloatValueFormatterWithFormat(v, "%.2f")
			},
		},
		Bars: bars,
	}

	var buf bytes.Buffer
	if err := graph.Render(chart.PNG, &buf); err != nil {
		return nil, fmt.Errorf("render history chart: %w", err)
	}
	return buf.Bytes(), nil
}
