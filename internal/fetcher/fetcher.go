package fetcher

import (
	"context"
	"time"

	"skinport-sniper/internal/market"
)

// HistoryFetcher retrieves aggregated sale statistics for one item.
// Errors are *FetchError values matching ErrRetryable or ErrFailed.
type HistoryFetcher interface {
	FetchHistory(ctx context.Context, marketHashName string) (market.HistoricalStats, error)
}

// Admitter gates outbound requests; see ratelimit.Limiter.
type Admitter interface {
	Admit() time.Duration
	Refund()
}
