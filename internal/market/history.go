package market

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

// Window names a fixed lookback period.
type Window string

const (
	Window24h Window = "24h"
	Window7d  Window = "7d"
	Window30d Window = "30d"
	Window90d Window = "90d"
)

// Windows lists the lookback periods shortest first.
var Windows = []Window{Window24h, Window7d, Window30d, Window90d}

// WindowStats aggregates sales over one lookback period. Prices are major units;
// every price is absent when nothing sold in the window.
type WindowStats struct {
	Min    decimal.NullDecimal `json:"min"`
	Max    decimal.NullDecimal `json:"max"`
	Avg    decimal.NullDecimal `json:"avg"`
	Median decimal.NullDecimal `json:"median"`
	Volume int64               `json:"volume"`
}

// HistoricalStats holds the per-window statistics for one item.
type HistoricalStats struct {
	MarketHashName string
	Currency       string
	Last24h        WindowStats
	Last7d         WindowStats
	Last30d        WindowStats
	Last90d        WindowStats
}

// Avg7d returns the 7-day average and whether it is present.
func (h HistoricalStats) Avg7d() (decimal.Decimal, bool) {
	return h.Last7d.Avg.Decimal, h.Last7d.Avg.Valid
}

// Window returns the statistics for w.
func (h HistoricalStats) Window(w Window) WindowStats {
	switch w {
	case Window24h:
		return h.Last24h
	case Window7d:
		return h.Last7d
	case Window30d:
		return h.Last30d
	case Window90d:
		return h.Last90d
	default:
		return WindowStats{}
	}
}

// ErrNoHistoryEntry is returned when the history payload lists no items.
var ErrNoHistoryEntry = errors.New("history response contains no entries")

type historyEntry struct {
	MarketHashName string       `json:"market_hash_name"`
	Currency       string       `json:"currency"`
	Last24h        *WindowStats `json:"last_24_hours"`
	Last7d         *WindowStats `json:"last_7_days"`
	Last30d        *WindowStats `json:"last_30_days"`
	Last90d        *WindowStats `json:"last_90_days"`
}

// ParseHistory decodes a sales-history payload. The entry matching marketHashName
// wins, otherwise the first one. Any decode error fails the whole parse.
func ParseHistory(payload []byte, marketHashName string) (HistoricalStats, error) {
	var entries []historyEntry
	if err := json.Unmarshal(payload, &entries); err != nil {
		return HistoricalStats{}, fmt.Errorf("decode history: %w", err)
	}
	if len(entries) == 0 {
		return HistoricalStats{}, ErrNoHistoryEntry
	}

	entry := entries[0]
	for _, candidate := range entries {
		if candidate.MarketHashName == marketHashName {
			entry = candidate
			break
		}
	}

	return HistoricalStats{
		MarketHashName: entry.MarketHashName,
		Currency:       entry.Currency,
		Last24h:        derefWindow(entry.Last24h),
		Last7d:         derefWindow(entry.Last7d),
		Last30d:        derefWindow(entry.Last30d),
		Last90d:        derefWindow(entry.Last90d),
	}, nil
}

func derefWindow(w *WindowStats) WindowStats {
	if w == nil {
		return WindowStats{}
	}
	return *w
}
