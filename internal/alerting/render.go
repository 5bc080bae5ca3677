package alerting

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"skinport-sniper/internal/market"
)

const (
	dealTitle  = "🔥🚀 New Deal Detected 🔥🚀"
	dealFooter = "🚨 Powered by SkinPort Sniper"
	footerIcon = "https://skinport.com/favicon.ico"
	embedColor = 0xFF5733
)

func currencyOf(note Notification) string {
	if note.Currency != "" {
		return note.Currency
	}
	if note.Stats.Currency != "" {
		return note.Stats.Currency
	}
	return "CAD"
}

func formatMoney(d decimal.Decimal, currency string) string {
	return fmt.Sprintf("%s %s", d.StringFixed(2), currency)
}

func formatAvg(w market.WindowStats, currency string) string {
	if !w.Avg.Valid {
		return "N/A"
	}
	return formatMoney(w.Avg.Decimal, currency)
}

func describeSale(note Notification) string {
	currency := currencyOf(note)
	sale := note.Sale

	var b strings.Builder
	fmt.Fprintf(&b, "**💎 __Skin:__ %s**\n\n", sale.MarketHashName)
	fmt.Fprintf(&b, "**👀 Pattern:** %s\n", sale.PatternString())
	fmt.Fprintf(&b, "**💰 Price:** %s\n", formatMoney(sale.SalePriceMajor(), currency))
	fmt.Fprintf(&b, "**⚠️ Suggested Price:** %s\n", formatMoney(sale.SuggestedPriceMajor(), currency))
	fmt.Fprintf(&b, "**🤑 Discount:** %s%%\n", note.Discount.StringFixed(2))
	fmt.Fprintf(&b, "**☢️ Wear:** %s", sale.Wear.String())
	return b.String()
}

func describeAverages(note Notification) string {
	currency := currencyOf(note)
	var b strings.Builder
	for _, w := range market.Windows {
		fmt.Fprintf(&b, "**%s:** %s\n", w, formatAvg(note.Stats.Window(w), currency))
	}
	return b.String()
}

func inspectValue(sale market.SaleEvent) string {
	link := sale.Link
	if link == "" {
		link = "N/A"
	}
	return fmt.Sprintf("[Inspect in Game](%s)", link)
}

// renderMessage is the plain-text form used by chat transports without embeds.
func renderMessage(note Notification, itemURL string) string {
	currency := currencyOf(note)
	sale := note.Sale

	builder := strings.Builder{}
	builder.WriteString("[Deal Detected]\n")
	builder.WriteString(fmt.Sprintf("Skin: %s\n", sale.MarketHashName))
	builder.WriteString(fmt.Sprintf("Pattern: %s\n", sale.PatternString()))
	builder.WriteString(fmt.Sprintf("Price: %s\n", formatMoney(sale.SalePriceMajor(), currency)))
	builder.WriteString(fmt.Sprintf("Suggested: %s\n", formatMoney(sale.SuggestedPriceMajor(), currency)))
	builder.WriteString(fmt.Sprintf("Discount: %s%%\n", note.Discount.StringFixed(2)))
	builder.WriteString(fmt.Sprintf("Wear: %s\n", sale.Wear.String()))
	for _, w := range market.Windows {
		builder.WriteString(fmt.Sprintf("Avg %s: %s\n", w, formatAvg(note.Stats.Window(w), currency)))
	}
	if !note.DetectedAt.IsZero() {
		builder.WriteString(fmt.Sprintf("Detected: %s UTC\n", note.DetectedAt.UTC().Format(time.RFC3339)))
	}
	if itemURL != "" {
		builder.WriteString(itemURL)
	}
	return builder.String()
}
