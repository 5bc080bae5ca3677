package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"skinport-sniper/internal/alerting"
	"skinport-sniper/internal/config"
	"skinport-sniper/internal/deal"
	"skinport-sniper/internal/feed"
	"skinport-sniper/internal/fetcher"
	"skinport-sniper/internal/market"
	"skinport-sniper/internal/scheduler"
)

// Service consumes sale feed pushes and turns qualifying sales into notifications.
type Service struct {
	scheduler *scheduler.Scheduler
	feed      feed.Subscriber
	history   fetcher.HistoryFetcher
	notifier  alerting.Notifier
	policy    deal.Policy
	currency  string
	tally     *Tally
	now       func() time.Time
	logger    zerolog.Logger
}

// New constructs the deal service. sched may be nil to disable the periodic report.
func New(cfg *config.Config, sched *scheduler.Scheduler, sub feed.Subscriber, history fetcher.HistoryFetcher, notifier alerting.Notifier, logger zerolog.Logger) *Service {
	return &Service{
		scheduler: sched,
		feed:      sub,
		history:   history,
		notifier:  notifier,
		policy:    PolicyFromConfig(cfg.Deals),
		currency:  cfg.Skinport.Currency,
		tally:     NewTally(),
		now:       func() time.Time { return time.Now().UTC() },
		logger:    logger.With().Str("component", "service").Logger(),
	}
}

// PolicyFromConfig converts configured thresholds into a deal policy.
func PolicyFromConfig(cfg config.DealsConfig) deal.Policy {
	return deal.Policy{
		MinSalePrice:   decimal.NewFromFloat(cfg.MinSalePrice),
		MinDiscountPct: decimal.NewFromFloat(cfg.MinDiscountPct),
	}
}

// Tally exposes the outcome counters.
func (s *Service) Tally() *Tally {
	return s.tally
}

// Run subscribes to the sale feed and blocks until ctx is cancelled or the feed fails.
func (s *Service) Run(ctx context.Context) error {
	if s.feed == nil {
		return fmt.Errorf("feed not configured")
	}

	g, gctx := errgroup.WithContext(ctx)
	if s.scheduler != nil {
		g.Go(func() error {
			return s.scheduler.Run(gctx, s.Report)
		})
	}
	g.Go(func() error {
		return s.feed.Subscribe(gctx, s.OnBatch)
	})
	return g.Wait()
}

// Report logs the outcome tally.
func (s *Service) Report(_ context.Context, at time.Time) error {
	s.logger.Info().Time("at", at).Object("tally", s.tally).Msg("deal outcome summary")
	return nil
}

// OnBatch processes one feed push. Records are handled in order, one at a time;
// a failing record never stops the rest of the batch.
func (s *Service) OnBatch(ctx context.Context, batch market.Batch) {
	s.tally.addBatch()
	logger := s.logger.With().
		Str("batch_id", uuid.NewString()).
		Str("event_type", batch.EventType).
		Logger()
	logger.Debug().Int("sales", len(batch.Sales)).Msg("processing batch")

	for i, raw := range batch.Sales {
		if ctx.Err() != nil {
			logger.Debug().Int("remaining", len(batch.Sales)-i).Msg("batch abandoned on shutdown")
			return
		}
		s.processSale(ctx, logger, raw)
	}
}

func (s *Service) processSale(ctx context.Context, logger zerolog.Logger, raw []byte) {
	sale, err := market.ParseSale(raw)
	if err != nil {
		s.tally.add(OutcomeMalformed)
		logger.Warn().Err(err).Msg("skipping malformed sale record")
		return
	}
	logger = logger.With().Str("item", sale.MarketHashName).Str("price", sale.SalePriceMajor().StringFixed(2)).Logger()

	// 低于价格下限的成交不查历史
	if s.policy.BelowFloor(sale) {
		s.tally.add(skipOutcome(deal.ReasonPriceFloor))
		logger.Info().Str("reason", string(deal.ReasonPriceFloor)).Msg("sale skipped before history lookup")
		return
	}

	stats, err := s.history.FetchHistory(ctx, sale.MarketHashName)
	if err != nil {
		switch {
		case errors.Is(err, fetcher.ErrRetryable):
			s.tally.add(OutcomeFetchRetryable)
			logger.Warn().Err(err).Msg("history throttled, sale dropped")
		default:
			s.tally.add(OutcomeFetchFailed)
			logger.Error().Err(err).Msg("history lookup failed, sale dropped")
		}
		return
	}

	decision := s.policy.Evaluate(sale, stats)
	if !decision.Notify {
		s.tally.add(skipOutcome(decision.Reason))
		logger.Info().Str("reason", string(decision.Reason)).Msg("sale skipped")
		return
	}

	logger.Info().
		Str("discount_pct", decision.Discount.StringFixed(2)).
		Str("avg_7d", decision.Avg7d.StringFixed(2)).
		Msg("deal detected")

	if s.notifier == nil {
		s.tally.add(OutcomeNotified)
		return
	}
	note := alerting.Notification{
		Sale:       decision.Sale,
		Discount:   decision.Discount,
		Stats:      decision.Stats,
		Currency:   s.currency,
		DetectedAt: s.now(),
	}
	if err := s.notifier.Notify(ctx, note); err != nil {
		s.tally.add(OutcomeNotifyFailed)
		logger.Error().Err(err).Msg("failed to dispatch deal notification")
		return
	}
	s.tally.add(OutcomeNotified)
}
