package alerting

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/rs/zerolog"
)

// DiscordOptions configure the Discord REST notifier.
type DiscordOptions struct {
	BotToken    string
	APIBase     string
	Recipients  []string
	ChannelID   string
	ItemBaseURL string
	AttachChart bool
	Timeout     time.Duration
}

// DiscordNotifier sends the deal embed as a DM to every recipient and posts it,
// followed by the item link, to a channel.
type DiscordNotifier struct {
	opts   DiscordOptions
	client *resty.Client
	logger zerolog.Logger
}

// NewDiscordNotifier 构造 Discord 告警器。
func NewDiscordNotifier(opts DiscordOptions, logger zerolog.Logger) *DiscordNotifier {
	if opts.Timeout <= 0 {
		opts.Timeout = 10 * time.Second
	}
	if opts.APIBase == "" {
		opts.APIBase = "https://discord.com/api/v10"
	}

	client := resty.New().
		SetBaseURL(strings.TrimRight(opts.APIBase, "/")).
		SetTimeout(opts.Timeout).
		SetHeader("Authorization", "Bot "+opts.BotToken).
		SetHeader("User-Agent", "DiscordBot (dealsniper, 1.0)")

	return &DiscordNotifier{
		opts:   opts,
		client: client,
		logger: logger.With().Str("component", "alert_discord").Logger(),
	}
}

type discordEmbed struct {
	Title       string         `json:"title"`
	Description string         `json:"description"`
	URL         string         `json:"url,omitempty"`
	Color       int            `json:"color"`
	Fields      []discordField `json:"fields,omitempty"`
	Footer      *discordFooter `json:"footer,omitempty"`
	Image       *discordImage  `json:"image,omitempty"`
	Timestamp   string         `json:"timestamp,omitempty"`
}

type discordField struct {
	Name   string `json:"name"`
	Value  string `json:"value"`
	Inline bool   `json:"inline"`
}

type discordFooter struct {
	Text    string `json:"text"`
	IconURL string `json:"icon_url,omitempty"`
}

type discordImage struct {
	URL string `json:"url"`
}

type discordAttachment struct {
	ID       int    `json:"id"`
	Filename string `json:"filename"`
}

type discordMessage struct {
	Content     string              `json:"content,omitempty"`
	Embeds      []discordEmbed      `json:"embeds,omitempty"`
	Attachments []discordAttachment `json:"attachments,omitempty"`
}

type discordChannel struct {
	ID string `json:"id"`
}

// Notify delivers to every recipient and the channel. A failed delivery is logged
// and does not stop the rest; all failures are returned joined.
func (n *DiscordNotifier) Notify(ctx context.Context, note Notification) error {
	var chartPNG []byte
	if n.opts.AttachChart {
		png, err := renderHistoryChart(note)
		if err != nil {
			n.logger.Warn().Err(err).Msg("chart rendering failed, sending without attachment")
		} else {
			chartPNG = png
		}
	}

	itemURL := note.Sale.ItemURL(n.opts.ItemBaseURL)
	msg := discordMessage{Embeds: []discordEmbed{buildEmbed(note, itemURL, chartPNG != nil)}}
	if chartPNG != nil {
		msg.Attachments = []discordAttachment{{ID: 0, Filename: chartFileName}}
	}

	var errs []error
	delivered := 0
	for _, userID := range n.opts.Recipients {
		if err := n.sendDirect(ctx, userID, msg, chartPNG); err != nil {
			n.logger.Error().Err(err).Str("user_id", userID).Msg("failed to send DM")
			errs = append(errs, fmt.Errorf("dm %s: %w", userID, err))
			continue
		}
		delivered++
	}

	if n.opts.ChannelID != "" {
		if err := n.postMessage(ctx, n.opts.ChannelID, msg, chartPNG); err != nil {
			n.logger.Error().Err(err).Str("channel_id", n.opts.ChannelID).Msg("failed to post to channel")
			errs = append(errs, fmt.Errorf("channel %s: %w", n.opts.ChannelID, err))
		} else {
			delivered++
			if itemURL != "" {
				if err := n.postMessage(ctx, n.opts.ChannelID, discordMessage{Content: itemURL}, nil); err != nil {
					n.logger.Warn().Err(err).Str("channel_id", n.opts.ChannelID).Msg("failed to post item link")
					errs = append(errs, fmt.Errorf("channel %s link: %w", n.opts.ChannelID, err))
				}
			}
		}
	}

	n.logger.Info().Str("item", note.Sale.MarketHashName).
		Int("delivered", delivered).
		Int("failed", len(errs)).
		Msg("deal sent (discord)")
	return errors.Join(errs...)
}

func (n *DiscordNotifier) sendDirect(ctx context.Context, userID string, msg discordMessage, chartPNG []byte) error {
	var channel discordChannel
	resp, err := n.client.R().
		SetContext(ctx).
		SetBody(map[string]string{"recipient_id": userID}).
		SetResult(&channel).
		Post("/users/@me/channels")
	if err != nil {
		return fmt.Errorf("open dm channel: %w", err)
	}
	if resp.IsError() {
		return fmt.Errorf("open dm channel: %s", describeResponse(resp))
	}
	if channel.ID == "" {
		return errors.New("open dm channel: empty channel id")
	}
	return n.postMessage(ctx, channel.ID, msg, chartPNG)
}

func (n *DiscordNotifier) postMessage(ctx context.Context, channelID string, msg discordMessage, chartPNG []byte) error {
	req := n.client.R().
		SetContext(ctx).
		SetPathParam("channel", channelID)

	if chartPNG != nil {
		payload, err := json.Marshal(msg)
		if err != nil {
			return fmt.Errorf("marshal discord payload: %w", err)
		}
		req.SetMultipartField("payload_json", "", "application/json", bytes.NewReader(payload)).
			SetFileReader("files[0]", chartFileName, bytes.NewReader(chartPNG))
	} else {
		req.SetBody(msg)
	}

	resp, err := req.Post("/channels/{channel}/messages")
	if err != nil {
		return fmt.Errorf("send discord message: %w", err)
	}
	if resp.IsError() {
		return fmt.Errorf("send discord message: %s", describeResponse(resp))
	}
	return nil
}

func describeResponse(resp *resty.Response) string {
	body := strings.TrimSpace(resp.String())
	if body == "" {
		return fmt.Sprintf("discord 响应码异常: %d", resp.StatusCode())
	}
	return fmt.Sprintf("discord 响应码异常: %d: %s", resp.StatusCode(), body)
}

func buildEmbed(note Notification, itemURL string, withChart bool) discordEmbed {
	embed := discordEmbed{
		Title:       dealTitle,
		Description: describeSale(note),
		URL:         itemURL,
		Color:       embedColor,
		Fields: []discordField{
			{Name: "🔍 Inspect Link", Value: inspectValue(note.Sale), Inline: true},
			{Name: "📊 Avg Prices", Value: describeAverages(note), Inline: false},
		},
		Footer: &discordFooter{Text: dealFooter, IconURL: footerIcon},
	}
	if !note.DetectedAt.IsZero() {
		embed.Timestamp = note.DetectedAt.UTC().Format(time.RFC3339)
	}
	if withChart {
		embed.Image = &discordImage{URL: "attachment://" + chartFileName}
	}
	return embed
}

var _ Notifier = (*DiscordNotifier)(nil)
