package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	"skinport-sniper/internal/alerting"
	"skinport-sniper/internal/fetcher"
	"skinport-sniper/internal/market"
	"skinport-sniper/internal/service"
)

// SimulateOptions describe a synthetic sale, prices in major units.
type SimulateOptions struct {
	MarketHashName string
	SalePrice      decimal.Decimal
	SuggestedPrice decimal.Decimal
	Avg7d          decimal.Decimal
	Wear           float64
	URL            string
}

// SimulateDeal 用合成数据走一遍完整的成交评估和告警流程。
func (a *App) SimulateDeal(ctx context.Context, opts SimulateOptions) error {
	if !a.Config.Alerting.Enabled {
		return errors.New("alerting 未启用")
	}

	notifier := a.newNotifier()
	if notifier == nil {
		return errors.New("未配置任何告警通道")
	}
	return a.simulate(ctx, opts, notifier)
}

func (a *App) simulate(ctx context.Context, opts SimulateOptions, notifier alerting.Notifier) error {
	raw, err := syntheticSale(opts)
	if err != nil {
		return err
	}

	history := &staticHistoryFetcher{stats: market.HistoricalStats{
		MarketHashName: opts.MarketHashName,
		Currency:       a.Config.Skinport.Currency,
		Last7d: market.WindowStats{
			Avg:    decimal.NewNullDecimal(opts.Avg7d),
			Volume: 1,
		},
	}}

	svc := service.New(a.Config, nil, nil, history, notifier, a.Logger)
	svc.OnBatch(ctx, market.Batch{EventType: "simulated", Sales: []json.RawMessage{raw}})

	tally := svc.Tally()
	if tally.Count(service.OutcomeNotified) == 1 {
		return nil
	}
	if tally.Count(service.OutcomeNotifyFailed) > 0 {
		return errors.New("notification delivery failed; see logs")
	}
	return fmt.Errorf("synthetic sale did not qualify: %v", tally.Snapshot())
}

func syntheticSale(opts SimulateOptions) (json.RawMessage, error) {
	record := map[string]any{
		"marketHashName": opts.MarketHashName,
		"salePrice":      toMinor(opts.SalePrice),
		"suggestedPrice": toMinor(opts.SuggestedPrice),
		"wear":           opts.Wear,
		"url":            opts.URL,
	}
	return json.Marshal(record)
}

func toMinor(major decimal.Decimal) int64 {
	return major.Shift(2).Round(0).IntPart()
}

type staticHistoryFetcher struct {
	stats market.HistoricalStats
}

func (s *staticHistoryFetcher) FetchHistory(ctx context.Context, marketHashName string) (market.HistoricalStats, error) {
	return s.stats, nil
}

var _ fetcher.HistoryFetcher = (*staticHistoryFetcher)(nil)
