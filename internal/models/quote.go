package models

// Quote is the normalized shape every quote vendor is reduced to. The core
// never sees vendor wire formats, only this.
type Quote struct {
	Code     string  `json:"code"`
	Symbol   string  `json:"symbol"`
	Name     string  `json:"name"`
	Price    float64 `json:"price"`
	Currency string  `json:"currency"`
	Category string  `json:"category"`
	Source   string  `json:"source"`
}

// RateResult is the normalized FX lookup response: rates[code] means
// "1 unit of Base = rates[code] units of code". The settings layer inverts
// this into its own convention.
type RateResult struct {
	Base   string             `json:"base"`
	Rates  map[string]float64 `json:"rates"`
	Source string             `json:"source"`
}

// PortfolioTotals are the portfolio-wide aggregation figures in the base
// currency.
type PortfolioTotals struct {
	Assets float64 `json:"assets"`
	Cost   float64 `json:"cost"`
	Pnl    float64 `json:"pnl"`
}

// ReturnRate is pnl over cost, or 0 when there is no cost basis.
func (t PortfolioTotals) ReturnRate() float64 {
	if t.Cost > 0 {
		return t.Pnl / t.Cost
	}
	return 0
}

// DistributionItem is one slice of a value distribution (per account or per
// category), in the base currency.
type DistributionItem struct {
	Label   string  `json:"label"`
	Value   float64 `json:"value"`
	Percent float64 `json:"percent"`
}

// BackupDocument is the full persisted state as one JSON document, the
// export/restore interchange format.
type BackupDocument struct {
	Settings Settings   `json:"settings"`
	Accounts []Account  `json:"accounts"`
	History  []Snapshot `json:"history"`
}
