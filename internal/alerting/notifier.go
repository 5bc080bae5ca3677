package alerting

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"skinport-sniper/internal/market"
)

// Notification carries one qualifying sale to the delivery channels.
type Notification struct {
	Sale       market.SaleEvent
	Discount   decimal.Decimal
	Stats      market.HistoricalStats
	Currency   string
	DetectedAt time.Time
}

// Notifier delivers deal notifications.
type Notifier interface {
	Notify(ctx context.Context, notification Notification) error
}

// Multi fans a notification out to every wrapped notifier. A failing notifier
// does not stop the others; their errors are joined.
type Multi struct {
	notifiers []Notifier
	logger    zerolog.Logger
}

// NewMulti builds a fan-out notifier, ignoring nil entries.
func NewMulti(logger zerolog.Logger, notifiers ...Notifier) *Multi {
	m := &Multi{logger: logger.With().Str("component", "alert_multi").Logger()}
	for _, n := range notifiers {
		if n != nil {
			m.notifiers = append(m.notifiers, n)
		}
	}
	return m
}

// Len reports how many notifiers are wired.
func (m *Multi) Len() int {
	return len(m.notifiers)
}

// Notify delivers to all notifiers in order.
func (m *Multi) Notify(ctx context.Context, note Notification) error {
	var errs []error
	for _, n := range m.notifiers {
		if err := n.Notify(ctx, note); err != nil {
			m.logger.Error().Err(err).Str("item", note.Sale.MarketHashName).Msg("notifier failed")
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

var _ Notifier = (*Multi)(nil)
