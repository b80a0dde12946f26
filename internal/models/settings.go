package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

// Supported settlement currencies. The list is closed for the UI but the
// conversion layer tolerates any code it finds on a holding.
const (
	CurrencyCNY = "CNY"
	CurrencyHKD = "HKD"
	CurrencyUSD = "USD"
)

// SupportedCurrencies returns the currency codes the rate table tracks.
func SupportedCurrencies() []string {
	return []string{CurrencyCNY, CurrencyHKD, CurrencyUSD}
}

// RateTable maps a currency code to the multiplier that converts one unit
// of that currency into one unit of the base currency. The base currency's
// own entry is always 1. Stored as a JSON text column.
type RateTable map[string]float64

func (r RateTable) Value() (driver.Value, error) {
	if r == nil {
		r = RateTable{}
	}
	data, err := json.Marshal(r)
	if err != nil {
		return nil, err
	}
	return string(data), nil
}

func (r *RateTable) Scan(value interface{}) error {
	if value == nil {
		*r = RateTable{}
		return nil
	}
	var data []byte
	switch v := value.(type) {
	case []byte:
		data = v
	case string:
		data = []byte(v)
	default:
		return fmt.Errorf("cannot scan %T into RateTable", value)
	}
	if len(data) == 0 {
		*r = RateTable{}
		return nil
	}
	return json.Unmarshal(data, r)
}

// Settings is the singleton configuration row. The freshness flags are
// observability only and have no effect on valuation.
type Settings struct {
	ID           uint      `json:"-" gorm:"primaryKey"`
	BaseCurrency string    `json:"base_currency" gorm:"not null"`
	FxRates      RateTable `json:"fx_rates" gorm:"type:text"`

	LastRateFetch  *time.Time `json:"last_rate_fetch"`
	LastRateOk     bool       `json:"last_rate_ok" gorm:"default:true"`
	LastRateSource string     `json:"last_rate_source"`
	LastQuoteFetch *time.Time `json:"last_quote_fetch"`
	LastQuoteOk    bool       `json:"last_quote_ok" gorm:"default:true"`

	UpdatedAt time.Time `json:"updated_at"`
}

// DefaultSettings returns a fresh configuration: CNY base with an identity
// rate table, used on first start and as the fallback for corrupt data.
func DefaultSettings() Settings {
	rates := RateTable{}
	for _, code := range SupportedCurrencies() {
		rates[code] = 1
	}
	return Settings{
		ID:           1,
		BaseCurrency: CurrencyCNY,
		FxRates:      rates,
		LastRateOk:   true,
		LastQuoteOk:  true,
	}
}

// ToBase converts an amount in the given currency into the base currency.
// Unknown currencies convert at 1: treat them as already settled rather
// than failing the whole aggregation.
func (s *Settings) ToBase(amount float64, currency string) float64 {
	rate, ok := s.FxRates[currency]
	if !ok || rate == 0 {
		return amount
	}
	return amount * rate
}
