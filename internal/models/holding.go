package models

import (
	"math"
	"strings"
	"time"
)

// FundMarker is the category token that identifies fund-style holdings.
// Holdings sourced from the fund endpoint carry it, but users can also
// type it into a free-text category.
const FundMarker = "基金"

// SourceFund marks holdings whose quotes come from the fund endpoint.
// Such holdings are valued by total amount and total profit, not by
// share quantity and per-share price.
const SourceFund = "fund"

// CategoryUncategorized is the default category label for holdings whose
// category is empty.
const CategoryUncategorized = "未分类"

// Holding is one position inside an account. Monetary pointer fields are
// nullable on purpose: a missing value is distinct from zero, and the
// valuation methods fall back across fields so that records entered via
// either the fund form or the stock form always produce usable numbers.
type Holding struct {
	ID        string `json:"id" gorm:"primaryKey"`
	AccountID string `json:"account_id" gorm:"not null;index"`

	Code     string `json:"code" gorm:"not null;index"`
	Symbol   string `json:"symbol"`
	Name     string `json:"name"`
	Category string `json:"category"`
	Source   string `json:"source"` // "fund", "yahoo", "tencent", "proxy"
	Currency string `json:"currency"`

	// Native-currency monetary fields. Amount/Profit are authoritative for
	// fund-kind holdings; Quantity/CostPrice for stock-kind ones. The rest
	// are derived and kept in sync on every edit.
	Amount    *float64 `json:"amount"`
	Profit    *float64 `json:"profit"`
	Quantity  *float64 `json:"quantity"`
	CostPrice *float64 `json:"cost_price"`
	Cost      *float64 `json:"cost"`
	LastPrice *float64 `json:"last_price"`

	LastUpdate *time.Time `json:"last_update"`

	// Intraday baseline, captured once per calendar day before the first
	// price update of that day.
	TodayStartPrice  *float64 `json:"today_start_price"`
	TodayStartAmount *float64 `json:"today_start_amount"`
	TodayStartDate   string   `json:"today_start_date"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// validNumber reports whether a nullable field holds a usable number.
// Zero is valid; nil and NaN are not.
func validNumber(v *float64) bool {
	return v != nil && !math.IsNaN(*v)
}

// positiveFinite reports whether a nullable field holds a positive finite number.
func positiveFinite(v *float64) bool {
	return v != nil && !math.IsNaN(*v) && !math.IsInf(*v, 0) && *v > 0
}

// IsFund reports whether the holding is fund-kind: sourced from the fund
// endpoint, or categorized with the fund marker token.
func (h *Holding) IsFund() bool {
	if h.Source == SourceFund {
		return true
	}
	return strings.Contains(strings.ToLower(h.Category), strings.ToLower(FundMarker))
}

// Value returns the holding's current market value in its native currency.
// Fund-kind holdings report the provider's amount directly; stock-kind
// holdings are priced per share, with the stored amount as a last resort.
func (h *Holding) Value() float64 {
	if h.IsFund() && validNumber(h.Amount) {
		return *h.Amount
	}
	if validNumber(h.Quantity) && validNumber(h.LastPrice) {
		return *h.Quantity * *h.LastPrice
	}
	if validNumber(h.Amount) {
		return *h.Amount
	}
	return 0
}

// CostBasis returns the holding's total cost in its native currency.
func (h *Holding) CostBasis() float64 {
	if h.IsFund() && validNumber(h.Amount) && validNumber(h.Profit) {
		return *h.Amount - *h.Profit
	}
	if validNumber(h.Quantity) && validNumber(h.CostPrice) {
		return *h.Quantity * *h.CostPrice
	}
	if validNumber(h.Cost) {
		return *h.Cost
	}
	return 0
}

// ProfitValue returns the holding's lifetime profit in its native currency.
// Fund providers report profit directly; otherwise it is value minus cost.
func (h *Holding) ProfitValue() float64 {
	if h.IsFund() && validNumber(h.Profit) {
		return *h.Profit
	}
	value := h.Value()
	cost := h.CostBasis()
	if !math.IsNaN(value) && !math.IsNaN(cost) {
		return value - cost
	}
	if validNumber(h.Profit) {
		return *h.Profit
	}
	return 0
}

// DisplayQuantity returns the share count to show: the stored quantity when
// positive, otherwise derived from value and last price.
func (h *Holding) DisplayQuantity() float64 {
	if positiveFinite(h.Quantity) {
		return *h.Quantity
	}
	if positiveFinite(h.LastPrice) {
		if value := h.Value(); value != 0 {
			return value / *h.LastPrice
		}
	}
	return 0
}

// EnsureTodayStart captures the intraday baseline for the given calendar day.
// It must run BEFORE a new price is applied so the baseline reflects the
// previous close, and it is a no-op once the baseline exists for that day.
func (h *Holding) EnsureTodayStart(latestPrice float64, today string) {
	if h.TodayStartDate == today && validNumber(h.TodayStartAmount) {
		return
	}
	startPrice := latestPrice
	if positiveFinite(h.LastPrice) {
		startPrice = *h.LastPrice
	}
	startAmount := h.Value()
	h.TodayStartPrice = &startPrice
	h.TodayStartAmount = &startAmount
	h.TodayStartDate = today
}

// TodayProfit returns the holding's profit since the start of the given
// calendar day, or nil when no update has arrived today. Nil means
// "waiting for data" and is distinct from a zero gain.
func (h *Holding) TodayProfit(today string) *float64 {
	if h.LastUpdate == nil || h.LastUpdate.Format("2006-01-02") != today {
		return nil
	}
	if validNumber(h.TodayStartAmount) {
		delta := h.Value() - *h.TodayStartAmount
		return &delta
	}
	if validNumber(h.TodayStartPrice) && validNumber(h.LastPrice) && validNumber(h.Quantity) {
		delta := (*h.LastPrice - *h.TodayStartPrice) * *h.Quantity
		return &delta
	}
	return nil
}
