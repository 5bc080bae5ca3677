package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, name, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load(writeFile(t, "config.yaml", "app:\n  name: sniper\n"), "")
	require.NoError(t, err)

	assert.Equal(t, "sniper", cfg.App.Name)
	assert.Equal(t, 8, cfg.RateLimit.MaxRequests)
	assert.Equal(t, 300*time.Second, cfg.RateLimit.Window)
	assert.Equal(t, 60*time.Second, cfg.RateLimit.DefaultRetryAfter)
	assert.Equal(t, 20.0, cfg.Deals.MinDiscountPct)
	assert.Equal(t, 100.0, cfg.Deals.MinSalePrice)
	assert.Equal(t, 730, cfg.Skinport.AppID)
	assert.Equal(t, "CAD", cfg.Skinport.Currency)
	assert.Equal(t, "msgpack", cfg.Skinport.FeedParser)
	assert.Equal(t, 15*time.Second, cfg.Skinport.RequestTimeout)
	assert.Equal(t, "https://discord.com/api/v10", cfg.Alerting.Discord.APIBase)
}

func TestLoadFileAndEnvOverrides(t *testing.T) {
	path := writeFile(t, "config.yaml", `
ratelimit:
  max_requests: 4
  window: 60s
deals:
  min_discount_pct: 25
alerting:
  discord:
    enabled: true
    bot_token: token
    channel_id: "42"
`)
	t.Setenv("DEALSNIPER_DEALS_MIN_SALE_PRICE", "250")
	t.Setenv("DEALSNIPER_ALERTING_DISCORD_RECIPIENTS", "111,222")

	cfg, err := Load(path, "")
	require.NoError(t, err)

	assert.Equal(t, 4, cfg.RateLimit.MaxRequests)
	assert.Equal(t, time.Minute, cfg.RateLimit.Window)
	assert.Equal(t, 25.0, cfg.Deals.MinDiscountPct)
	assert.Equal(t, 250.0, cfg.Deals.MinSalePrice)
	assert.True(t, cfg.Alerting.Discord.Enabled)
	assert.Equal(t, []string{"111", "222"}, cfg.Alerting.Discord.Recipients)
}

func TestLoadEnvFile(t *testing.T) {
	const key = "DEALSNIPER_SKINPORT_CURRENCY"
	t.Cleanup(func() { _ = os.Unsetenv(key) })

	env := writeFile(t, ".env", key+"=EUR\n")
	cfg, err := Load(writeFile(t, "config.yaml", "{}\n"), env)
	require.NoError(t, err)
	assert.Equal(t, "EUR", cfg.Skinport.Currency)
}

func TestLoadMissingEnvFileIsIgnored(t *testing.T) {
	_, err := Load(writeFile(t, "config.yaml", "{}\n"), filepath.Join(t.TempDir(), "absent.env"))
	assert.NoError(t, err)
}

func TestValidate(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Config)
	}{
		{"zero max requests", func(c *Config) { c.RateLimit.MaxRequests = 0 }},
		{"zero window", func(c *Config) { c.RateLimit.Window = 0 }},
		{"unknown parser", func(c *Config) { c.Skinport.FeedParser = "xml" }},
		{"discount over 100", func(c *Config) { c.Deals.MinDiscountPct = 120 }},
		{"discord without token", func(c *Config) {
			c.Alerting.Discord.Enabled = true
			c.Alerting.Discord.ChannelID = "1"
		}},
		{"discord without destination", func(c *Config) {
			c.Alerting.Discord.Enabled = true
			c.Alerting.Discord.BotToken = "t"
		}},
		{"telegram without chat", func(c *Config) {
			c.Alerting.Telegram.Enabled = true
			c.Alerting.Telegram.BotToken = "t"
		}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg, err := Load(writeFile(t, "config.yaml", "{}\n"), "")
			require.NoError(t, err)
			tc.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}
