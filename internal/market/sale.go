package market

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
)

var validate = validator.New()

// Batch is one push from the sale feed.
type Batch struct {
	EventType string            `json:"eventType"`
	Sales     []json.RawMessage `json:"sales"`
}

// SaleEvent is a single observed marketplace transaction. Prices are minor units (cents).
type SaleEvent struct {
	MarketHashName string `json:"marketHashName" validate:"required"`
	SalePrice      int64  `json:"salePrice" validate:"gte=0"`
	SuggestedPrice int64  `json:"suggestedPrice" validate:"gte=0"`
	Wear           Wear   `json:"wear"`
	Pattern        *int64 `json:"pattern,omitempty"`
	Link           string `json:"link,omitempty"`
	URL            string `json:"url,omitempty"`
}

// ParseSale decodes and validates one raw feed record.
func ParseSale(raw json.RawMessage) (SaleEvent, error) {
	var sale SaleEvent
	if err := json.Unmarshal(raw, &sale); err != nil {
		return SaleEvent{}, fmt.Errorf("decode sale: %w", err)
	}
	sale.MarketHashName = strings.TrimSpace(sale.MarketHashName)
	if err := validate.Struct(sale); err != nil {
		return SaleEvent{}, fmt.Errorf("validate sale: %w", err)
	}
	return sale, nil
}

// SalePriceMajor returns the sale price in major currency units.
func (s SaleEvent) SalePriceMajor() decimal.Decimal {
	return MinorToMajor(s.SalePrice)
}

// SuggestedPriceMajor returns the suggested price in major currency units.
func (s SaleEvent) SuggestedPriceMajor() decimal.Decimal {
	return MinorToMajor(s.SuggestedPrice)
}

// PatternString renders the pattern identifier or "Unknown".
func (s SaleEvent) PatternString() string {
	if s.Pattern == nil {
		return "Unknown"
	}
	return fmt.Sprintf("%d", *s.Pattern)
}

// ItemURL joins the canonical item slug onto base. Empty when the sale carries no slug.
func (s SaleEvent) ItemURL(base string) string {
	if s.URL == "" {
		return ""
	}
	return strings.TrimRight(base, "/") + "/" + strings.TrimLeft(s.URL, "/")
}

// MinorToMajor converts cents to major units.
func MinorToMajor(minor int64) decimal.Decimal {
	return decimal.New(minor, -2)
}

// Wear is either a float value (0.0-1.0) or a categorical label.
type Wear struct {
	Value float64
	Label string
	Valid bool
}

// UnmarshalJSON accepts a number, a string, or null.
func (w *Wear) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*w = Wear{}
		return nil
	}
	if data[0] == '"' {
		var label string
		if err := json.Unmarshal(data, &label); err != nil {
			return err
		}
		*w = Wear{Label: label, Valid: label != ""}
		return nil
	}
	var value float64
	if err := json.Unmarshal(data, &value); err != nil {
		return fmt.Errorf("wear must be a number or string: %w", err)
	}
	*w = Wear{Value: value, Valid: true}
	return nil
}

// MarshalJSON mirrors UnmarshalJSON.
func (w Wear) MarshalJSON() ([]byte, error) {
	switch {
	case !w.Valid:
		return []byte("null"), nil
	case w.Label != "":
		return json.Marshal(w.Label)
	default:
		return json.Marshal(w.Value)
	}
}

func (w Wear) String() string {
	switch {
	case !w.Valid:
		return "Unknown"
	case w.Label != "":
		return w.Label
	default:
		return fmt.Sprintf("%.6f", w.Value)
	}
}
