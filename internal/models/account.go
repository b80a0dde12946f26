package models

import (
	"time"
)

// Account is a named grouping of holdings. Holdings are owned, not shared:
// deleting an account cascades to them.
type Account struct {
	ID        string    `json:"id" gorm:"primaryKey"`
	Name      string    `json:"name" gorm:"not null"`
	Holdings  []Holding `json:"holdings" gorm:"foreignKey:AccountID;constraint:OnDelete:CASCADE"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

type AccountRequest struct {
	Name string `json:"name" binding:"required"`
}

// HoldingRequest carries the holding form fields. Which numeric fields are
// required depends on the mode: fund entries need amount and profit, stock
// entries need quantity and cost price. The handler derives the rest.
type HoldingRequest struct {
	Code      string   `json:"code" binding:"required"`
	Symbol    string   `json:"symbol"`
	Name      string   `json:"name"`
	Category  string   `json:"category"`
	Source    string   `json:"source"`
	Currency  string   `json:"currency"`
	Amount    *float64 `json:"amount"`
	Profit    *float64 `json:"profit"`
	Quantity  *float64 `json:"quantity"`
	CostPrice *float64 `json:"cost_price"`
	LastPrice *float64 `json:"last_price"`
}

// AccountView is an account with valuation figures attached, all expressed
// in the base currency.
type AccountView struct {
	Account
	TotalValueBase float64       `json:"total_value_base"`
	TotalCostBase  float64       `json:"total_cost_base"`
	TotalPnlBase   float64       `json:"total_pnl_base"`
	HoldingDetails []HoldingView `json:"holding_details"`
}

// HoldingView is a holding with derived valuation figures attached.
type HoldingView struct {
	Holding
	ValueBase  float64  `json:"value_base"`
	CostBase   float64  `json:"cost_base"`
	PnlBase    float64  `json:"pnl_base"`
	ReturnRate float64  `json:"return_rate"`
	Shares     float64  `json:"shares"`
	TodayPnl   *float64 `json:"today_pnl"` // nil until a quote lands today
}
