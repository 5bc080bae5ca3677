package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/go-viper/mapstructure/v2"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"skinport-sniper/internal/feed"
	"skinport-sniper/internal/logging"
)

// EnvPrefix prefixes every environment override, e.g. DEALSNIPER_RATELIMIT_MAX_REQUESTS.
const EnvPrefix = "DEALSNIPER"

// Config materialises application configuration.
type Config struct {
	App       AppConfig       `mapstructure:"app"`
	Logging   logging.Config  `mapstructure:"logging"`
	Skinport  SkinportConfig  `mapstructure:"skinport"`
	RateLimit RateLimitConfig `mapstructure:"ratelimit"`
	Deals     DealsConfig     `mapstructure:"deals"`
	Alerting  AlertingConfig  `mapstructure:"alerting"`
	Report    ReportConfig    `mapstructure:"report"`
}

// AppConfig general metadata.
type AppConfig struct {
	Name        string `mapstructure:"name"`
	Environment string `mapstructure:"environment"`
}

// SkinportConfig covers the marketplace REST API and the sale feed.
type SkinportConfig struct {
	APIBase           string        `mapstructure:"api_base"`
	AppID             int           `mapstructure:"app_id"`
	Currency          string        `mapstructure:"currency"`
	Locale            string        `mapstructure:"locale"`
	RequestTimeout    time.Duration `mapstructure:"request_timeout"`
	UserAgent         string        `mapstructure:"user_agent"`
	FeedURL           string        `mapstructure:"feed_url"`
	FeedParser        string        `mapstructure:"feed_parser"`
	ItemBaseURL       string        `mapstructure:"item_base_url"`
	QueueSize         int           `mapstructure:"queue_size"`
	ReconnectDelay    time.Duration `mapstructure:"reconnect_delay"`
	MaxReconnectDelay time.Duration `mapstructure:"max_reconnect_delay"`
}

// RateLimitConfig bounds calls to the sales history endpoint.
type RateLimitConfig struct {
	MaxRequests       int           `mapstructure:"max_requests"`
	Window            time.Duration `mapstructure:"window"`
	DefaultRetryAfter time.Duration `mapstructure:"default_retry_after"`
}

// DealsConfig holds the qualification thresholds, prices in major units.
type DealsConfig struct {
	MinDiscountPct float64 `mapstructure:"min_discount_pct"`
	MinSalePrice   float64 `mapstructure:"min_sale_price"`
}

// AlertingConfig defines notification routing.
type AlertingConfig struct {
	Enabled  bool           `mapstructure:"enabled"`
	Timeout  time.Duration  `mapstructure:"timeout"`
	Discord  DiscordConfig  `mapstructure:"discord"`
	Telegram TelegramConfig `mapstructure:"telegram"`
}

// DiscordConfig 描述 Discord 通知参数。
type DiscordConfig struct {
	Enabled     bool     `mapstructure:"enabled"`
	BotToken    string   `mapstructure:"bot_token"`
	APIBase     string   `mapstructure:"api_base"`
	Recipients  []string `mapstructure:"recipients"`
	ChannelID   string   `mapstructure:"channel_id"`
	AttachChart bool     `mapstructure:"attach_chart"`
}

// TelegramConfig 描述 Telegram 告警参数。
type TelegramConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	BotToken string `mapstructure:"bot_token"`
	ChatID   string `mapstructure:"chat_id"`
	APIBase  string `mapstructure:"api_base"`
}

// ReportConfig controls the periodic outcome summary. Zero interval disables it.
type ReportConfig struct {
	Interval     time.Duration `mapstructure:"interval"`
	AlignToStart bool          `mapstructure:"align_to_start"`
}

// Load builds configuration from an optional .env file, a config file,
// environment, and defaults.
func Load(path, envFile string) (*Config, error) {
	if err := loadEnvFile(envFile); err != nil {
		return nil, err
	}

	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}

	if err := readConfig(v); err != nil {
		return nil, err
	}

	var cfg Config
	if err := v.Unmarshal(&cfg, decodeHook()); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// loadEnvFile exports variables from envFile without overriding the real environment.
// A missing file is not an error.
func loadEnvFile(envFile string) error {
	if envFile == "" {
		return nil
	}
	if err := godotenv.Load(envFile); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("load env file %s: %w", envFile, err)
	}
	return nil
}

func readConfig(v *viper.Viper) error {
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			return nil
		}
		return fmt.Errorf("read config: %w", err)
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.name", "dealsniper")
	v.SetDefault("app.environment", "development")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")

	v.SetDefault("skinport.api_base", "https://api.skinport.com")
	v.SetDefault("skinport.app_id", 730)
	v.SetDefault("skinport.currency", "CAD")
	v.SetDefault("skinport.locale", "en")
	v.SetDefault("skinport.request_timeout", "15s")
	v.SetDefault("skinport.user_agent", "dealsniper/1.0")
	v.SetDefault("skinport.feed_url", "wss://skinport.com/socket.io/?EIO=4&transport=websocket")
	v.SetDefault("skinport.feed_parser", feed.ParserMsgpack)
	v.SetDefault("skinport.item_base_url", "https://skinport.com/item")
	v.SetDefault("skinport.queue_size", 256)
	v.SetDefault("skinport.reconnect_delay", "5s")
	v.SetDefault("skinport.max_reconnect_delay", "2m")

	v.SetDefault("ratelimit.max_requests", 8)
	v.SetDefault("ratelimit.window", "300s")
	v.SetDefault("ratelimit.default_retry_after", "60s")

	v.SetDefault("deals.min_discount_pct", 20.0)
	v.SetDefault("deals.min_sale_price", 100.0)

	v.SetDefault("alerting.enabled", true)
	v.SetDefault("alerting.timeout", "10s")
	v.SetDefault("alerting.discord.enabled", false)
	v.SetDefault("alerting.discord.bot_token", "")
	v.SetDefault("alerting.discord.api_base", "https://discord.com/api/v10")
	v.SetDefault("alerting.discord.channel_id", "")
	v.SetDefault("alerting.discord.recipients", []string{})
	v.SetDefault("alerting.discord.attach_chart", false)
	v.SetDefault("alerting.telegram.enabled", false)
	v.SetDefault("alerting.telegram.bot_token", "")
	v.SetDefault("alerting.telegram.chat_id", "")
	v.SetDefault("alerting.telegram.api_base", "https://api.telegram.org")

	v.SetDefault("report.interval", "15m")
	v.SetDefault("report.align_to_start", true)
}

func decodeHook() viper.DecoderConfigOption {
	return func(dc *mapstructure.DecoderConfig) {
		dc.TagName = "mapstructure"
		dc.DecodeHook = mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToSliceHookFunc(","),
		)
	}
}

// Validate performs basic sanity checks on the configuration values.
func (c *Config) Validate() error {
	if c.RateLimit.MaxRequests <= 0 {
		return fmt.Errorf("ratelimit.max_requests must be greater than zero")
	}
	if c.RateLimit.Window <= 0 {
		return fmt.Errorf("ratelimit.window must be greater than zero")
	}
	if c.Skinport.RequestTimeout <= 0 {
		return fmt.Errorf("skinport.request_timeout must be greater than zero")
	}
	if c.Skinport.Currency == "" {
		return fmt.Errorf("skinport.currency must be set")
	}
	switch strings.ToLower(c.Skinport.FeedParser) {
	case feed.ParserMsgpack, feed.ParserJSON:
	default:
		return fmt.Errorf("skinport.feed_parser must be %q or %q", feed.ParserMsgpack, feed.ParserJSON)
	}
	if c.Deals.MinDiscountPct < 0 || c.Deals.MinDiscountPct > 100 {
		return fmt.Errorf("deals.min_discount_pct must be within [0, 100]")
	}
	if c.Deals.MinSalePrice < 0 {
		return fmt.Errorf("deals.min_sale_price cannot be negative")
	}
	if c.Report.Interval < 0 {
		return fmt.Errorf("report.interval cannot be negative")
	}
	if c.Alerting.Discord.Enabled {
		if c.Alerting.Discord.BotToken == "" {
			return fmt.Errorf("alerting.discord.bot_token 必须配置")
		}
		if c.Alerting.Discord.ChannelID == "" && len(c.Alerting.Discord.Recipients) == 0 {
			return fmt.Errorf("alerting.discord 需要 channel_id 或 recipients")
		}
	}
	if c.Alerting.Telegram.Enabled {
		if c.Alerting.Telegram.BotToken == "" {
			return fmt.Errorf("alerting.telegram.bot_token 必须配置")
		}
		if c.Alerting.Telegram.ChatID == "" {
			return fmt.Errorf("alerting.telegram.chat_id 必须配置")
		}
	}
	return nil
}
