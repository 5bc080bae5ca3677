package app

import (
	"context"
	"errors"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"

	"skinport-sniper/internal/alerting"
	"skinport-sniper/internal/config"
	"skinport-sniper/internal/feed"
	"skinport-sniper/internal/fetcher"
	"skinport-sniper/internal/ratelimit"
	"skinport-sniper/internal/scheduler"
	"skinport-sniper/internal/service"
)

// App aggregates configuration and shared dependencies for the CLI commands.
type App struct {
	Config *config.Config
	Logger zerolog.Logger
}

// NewApp constructs a new application handle.
func NewApp(cfg *config.Config, logger zerolog.Logger) *App {
	return &App{Config: cfg, Logger: logger.With().Str("component", "app").Logger()}
}

func (a *App) newLimiter() *ratelimit.Limiter {
	return ratelimit.New(ratelimit.Options{
		MaxRequests: a.Config.RateLimit.MaxRequests,
		Window:      a.Config.RateLimit.Window,
	})
}

func (a *App) newHistory(limiter fetcher.Admitter) *fetcher.History {
	sp := a.Config.Skinport
	return fetcher.NewHistory(fetcher.HistoryOptions{
		BaseURL:    sp.APIBase,
		AppID:      sp.AppID,
		Currency:   sp.Currency,
		Timeout:    sp.RequestTimeout,
		UserAgent:  sp.UserAgent,
		RetryAfter: a.Config.RateLimit.DefaultRetryAfter,
	}, limiter, a.Logger)
}

func (a *App) newFeed() (*feed.Skinport, error) {
	sp := a.Config.Skinport
	return feed.NewSkinport(feed.SkinportOptions{
		URL:               sp.FeedURL,
		AppID:             sp.AppID,
		Currency:          sp.Currency,
		Locale:            sp.Locale,
		Parser:            sp.FeedParser,
		QueueSize:         sp.QueueSize,
		ReconnectDelay:    sp.ReconnectDelay,
		MaxReconnectDelay: sp.MaxReconnectDelay,
	}, a.Logger)
}

// newNotifier returns nil when alerting is disabled or no channel is enabled.
func (a *App) newNotifier() alerting.Notifier {
	cfg := a.Config.Alerting
	if !cfg.Enabled {
		return nil
	}

	var notifiers []alerting.Notifier
	if cfg.Discord.Enabled {
		notifiers = append(notifiers, alerting.NewDiscordNotifier(alerting.DiscordOptions{
			BotToken:    cfg.Discord.BotToken,
			APIBase:     cfg.Discord.APIBase,
			Recipients:  cfg.Discord.Recipients,
			ChannelID:   cfg.Discord.ChannelID,
			ItemBaseURL: a.Config.Skinport.ItemBaseURL,
			AttachChart: cfg.Discord.AttachChart,
			Timeout:     cfg.Timeout,
		}, a.Logger))
	}
	if cfg.Telegram.Enabled {
		notifiers = append(notifiers, alerting.NewTelegramNotifier(
			cfg.Telegram.BotToken,
			cfg.Telegram.ChatID,
			cfg.Telegram.APIBase,
			a.Config.Skinport.ItemBaseURL,
			cfg.Timeout,
			a.Logger,
		))
	}
	if len(notifiers) == 0 {
		return nil
	}
	return alerting.NewMulti(a.Logger, notifiers...)
}

func (a *App) newReportScheduler() (*scheduler.Scheduler, error) {
	if a.Config.Report.Interval <= 0 {
		return nil, nil
	}
	return scheduler.New(scheduler.Options{
		Name:         "tally_report",
		Interval:     a.Config.Report.Interval,
		AlignToStart: a.Config.Report.AlignToStart,
	}, a.Logger)
}

// Run executes the long-running deal detection service.
func (a *App) Run(ctx context.Context) error {
	ctx, cancel := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	sub, err := a.newFeed()
	if err != nil {
		return err
	}
	sched, err := a.newReportScheduler()
	if err != nil {
		return err
	}

	notifier := a.newNotifier()
	if notifier == nil {
		a.Logger.Warn().Msg("no notification channel enabled; deals will only be logged")
	}

	history := a.newHistory(a.newLimiter())
	svc := service.New(a.Config, sched, sub, history, notifier, a.Logger)

	a.Logger.Info().
		Int("max_requests", a.Config.RateLimit.MaxRequests).
		Dur("window", a.Config.RateLimit.Window).
		Float64("min_discount_pct", a.Config.Deals.MinDiscountPct).
		Float64("min_sale_price", a.Config.Deals.MinSalePrice).
		Msg("starting deal service")
	err = svc.Run(ctx)
	if err != nil && !errors.Is(err, context.Canceled) {
		a.Logger.Error().Err(err).Msg("service terminated with error")
		return err
	}

	a.Logger.Info().Object("tally", svc.Tally()).Msg("deal service stopped")
	return nil
}
