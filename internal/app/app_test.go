package app

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"skinport-sniper/internal/alerting"
	"skinport-sniper/internal/config"
)

func testConfig(apiBase string) *config.Config {
	return &config.Config{
		Skinport: config.SkinportConfig{
			APIBase:        apiBase,
			AppID:          730,
			Currency:       "CAD",
			RequestTimeout: time.Second,
			FeedParser:     "json",
		},
		RateLimit: config.RateLimitConfig{MaxRequests: 8, Window: 300 * time.Second},
		Deals:     config.DealsConfig{MinDiscountPct: 20, MinSalePrice: 100},
		Alerting:  config.AlertingConfig{Enabled: true},
	}
}

func TestHistoryPrintsWindows(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "AWP | Asiimov (Field-Tested)", r.URL.Query().Get("market_hash_name"))
		_, _ = w.Write([]byte(`[{"market_hash_name":"AWP | Asiimov (Field-Tested)","currency":"CAD",
			"last_24_hours":{"min":null,"max":null,"avg":null,"median":null,"volume":0},
			"last_7_days":{"min":120.5,"max":140,"avg":130.25,"median":131,"volume":9}}]`))
	}))
	defer srv.Close()

	a := NewApp(testConfig(srv.URL), zerolog.Nop())
	var out bytes.Buffer
	require.NoError(t, a.History(context.Background(), "AWP | Asiimov (Field-Tested)", &out))

	text := out.String()
	assert.Contains(t, text, "AWP | Asiimov (Field-Tested) (CAD)")
	assert.Contains(t, text, "130.25")
	assert.Contains(t, text, "120.50")
	assert.Regexp(t, `24h\s+-\s+-\s+-\s+-\s+0`, text)
}

func TestHistoryPropagatesFetchError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer srv.Close()

	a := NewApp(testConfig(srv.URL), zerolog.Nop())
	assert.Error(t, a.History(context.Background(), "x", &bytes.Buffer{}))
}

type captureNotifier struct {
	notes []alerting.Notification
}

func (c *captureNotifier) Notify(_ context.Context, note alerting.Notification) error {
	c.notes = append(c.notes, note)
	return nil
}

func TestSimulateDealNotifies(t *testing.T) {
	a := NewApp(testConfig(""), zerolog.Nop())
	notifier := &captureNotifier{}

	err := a.simulate(context.Background(), SimulateOptions{
		MarketHashName: "AK-47 | Redline (Field-Tested)",
		SalePrice:      decimal.RequireFromString("150.00"),
		SuggestedPrice: decimal.RequireFromString("200.00"),
		Avg7d:          decimal.RequireFromString("180.00"),
		Wear:           0.25,
	}, notifier)
	require.NoError(t, err)
	require.Len(t, notifier.notes, 1)
	assert.Equal(t, int64(15000), notifier.notes[0].Sale.SalePrice)
	assert.True(t, notifier.notes[0].Discount.Equal(decimal.NewFromInt(25)))
}

func TestSimulateDealReportsSkip(t *testing.T) {
	a := NewApp(testConfig(""), zerolog.Nop())
	notifier := &captureNotifier{}

	err := a.simulate(context.Background(), SimulateOptions{
		MarketHashName: "AK-47 | Redline (Field-Tested)",
		SalePrice:      decimal.RequireFromString("190.00"),
		SuggestedPrice: decimal.RequireFromString("200.00"),
		Avg7d:          decimal.RequireFromString("180.00"),
	}, notifier)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "below_discount_threshold")
	assert.Empty(t, notifier.notes)
}

func TestSimulateDealRequiresChannel(t *testing.T) {
	cfg := testConfig("")
	a := NewApp(cfg, zerolog.Nop())
	assert.Error(t, a.SimulateDeal(context.Background(), SimulateOptions{}))

	cfg.Alerting.Enabled = false
	assert.Error(t, a.SimulateDeal(context.Background(), SimulateOptions{}))
}

func TestNewNotifierFansOut(t *testing.T) {
	cfg := testConfig("")
	cfg.Alerting.Discord = config.DiscordConfig{Enabled: true, BotToken: "t", ChannelID: "1"}
	cfg.Alerting.Telegram = config.TelegramConfig{Enabled: true, BotToken: "t", ChatID: "2"}

	n := NewApp(cfg, zerolog.Nop()).newNotifier()
	multi, ok := n.(*alerting.Multi)
	require.True(t, ok)
	assert.Equal(t, 2, multi.Len())
}
