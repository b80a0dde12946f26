package models

import (
	"fmt"
	"time"
)

// BuildHolding applies the holding-form semantics: which fields are
// authoritative depends on the mode, and the rest are derived here so the
// stored record is always internally consistent.
//
// Fund mode: amount and profit come from the form; cost = amount - profit
// and quantity = amount / lastPrice. Stock mode: quantity and cost price
// come from the form; cost = quantity * costPrice, amount = quantity *
// lastPrice, profit = amount - cost.
func BuildHolding(id, accountID string, req HoldingRequest, defaultSource, baseCurrency string, now time.Time) (Holding, error) {
	source := req.Source
	if source == "" {
		source = defaultSource
	}
	category := req.Category
	if category == "" {
		category = CategoryUncategorized
	}
	currency := req.Currency
	if currency == "" {
		currency = baseCurrency
	}
	name := req.Name
	if name == "" {
		name = req.Code
	}

	lastPrice := 0.0
	if validNumber(req.LastPrice) {
		lastPrice = *req.LastPrice
	}

	h := Holding{
		ID:         id,
		AccountID:  accountID,
		Code:       req.Code,
		Symbol:     req.Symbol,
		Name:       name,
		Category:   category,
		Source:     source,
		Currency:   currency,
		LastPrice:  &lastPrice,
		LastUpdate: &now,
	}

	if h.IsFund() {
		if !validNumber(req.Amount) || !validNumber(req.Profit) {
			return Holding{}, fmt.Errorf("amount and profit are required for fund holdings")
		}
		amount := *req.Amount
		profit := *req.Profit
		cost := amount - profit
		quantity := 0.0
		if lastPrice > 0 {
			quantity = amount / lastPrice
		}
		h.Amount = &amount
		h.Profit = &profit
		h.Cost = &cost
		h.Quantity = &quantity
		return h, nil
	}

	if !validNumber(req.Quantity) || !validNumber(req.CostPrice) {
		return Holding{}, fmt.Errorf("quantity and cost price are required for stock holdings")
	}
	quantity := *req.Quantity
	costPrice := *req.CostPrice
	cost := quantity * costPrice
	amount := quantity * lastPrice
	profit := amount - cost
	h.Quantity = &quantity
	h.CostPrice = &costPrice
	h.Cost = &cost
	h.Amount = &amount
	h.Profit = &profit
	return h, nil
}
