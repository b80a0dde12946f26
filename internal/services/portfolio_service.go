package services

import (
	"time"

	"gorm.io/gorm"

	"github.com/codyseavey/portfolio-tracker/internal/metrics"
	"github.com/codyseavey/portfolio-tracker/internal/models"
)

// PortfolioService computes valuation aggregates over the stored accounts.
// Nothing here is persisted; totals are derived on demand so there is no
// stale derived state to keep in sync (snapshots are the one exception and
// live in SnapshotService).
type PortfolioService struct {
	db  *gorm.DB
	now func() time.Time
}

func NewPortfolioService(db *gorm.DB) *PortfolioService {
	return &PortfolioService{
		db:  db,
		now: time.Now,
	}
}

// Today returns the current calendar date as an ISO string. The clock is a
// field so tests can pin the day boundary.
func (s *PortfolioService) Today() string {
	return s.now().Format("2006-01-02")
}

// Settings loads the singleton settings row, falling back to defaults when
// it is missing so valuation never fails to produce numbers.
func (s *PortfolioService) Settings() (models.Settings, error) {
	var settings models.Settings
	if err := s.db.First(&settings, "id = ?", 1).Error; err != nil {
		return models.DefaultSettings(), err
	}
	if settings.FxRates == nil {
		settings.FxRates = models.DefaultSettings().FxRates
	}
	return settings, nil
}

// Accounts loads every account with its holdings.
func (s *PortfolioService) Accounts() ([]models.Account, error) {
	var accounts []models.Account
	if err := s.db.Preload("Holdings").Order("created_at ASC").Find(&accounts).Error; err != nil {
		return nil, err
	}
	return accounts, nil
}

// ComputeTotals sums value and cost across every holding of every account,
// converted into the base currency. Pure: no database access.
func ComputeTotals(accounts []models.Account, settings *models.Settings) models.PortfolioTotals {
	var totals models.PortfolioTotals
	for i := range accounts {
		for j := range accounts[i].Holdings {
			h := &accounts[i].Holdings[j]
			currency := holdingCurrency(h, settings)
			totals.Assets += settings.ToBase(h.Value(), currency)
			totals.Cost += settings.ToBase(h.CostBasis(), currency)
		}
	}
	totals.Pnl = totals.Assets - totals.Cost
	return totals
}

// ComputeAccountTotals returns each account's value in the base currency.
func ComputeAccountTotals(accounts []models.Account, settings *models.Settings) models.AccountTotals {
	result := models.AccountTotals{}
	for i := range accounts {
		total := 0.0
		for j := range accounts[i].Holdings {
			h := &accounts[i].Holdings[j]
			total += settings.ToBase(h.Value(), holdingCurrency(h, settings))
		}
		result[accounts[i].ID] = total
	}
	return result
}

func holdingCurrency(h *models.Holding, settings *models.Settings) string {
	if h.Currency != "" {
		return h.Currency
	}
	return settings.BaseCurrency
}

// Totals computes the portfolio-wide aggregation from current state.
func (s *PortfolioService) Totals() (models.PortfolioTotals, error) {
	accounts, err := s.Accounts()
	if err != nil {
		return models.PortfolioTotals{}, err
	}
	settings, _ := s.Settings()
	return ComputeTotals(accounts, &settings), nil
}

// AccountTotals computes each account's value in the base currency.
func (s *PortfolioService) AccountTotals() (models.AccountTotals, error) {
	accounts, err := s.Accounts()
	if err != nil {
		return nil, err
	}
	settings, _ := s.Settings()
	return ComputeAccountTotals(accounts, &settings), nil
}

// DistributionByAccount returns per-account value slices sorted by the
// caller (handler sorts for display).
func (s *PortfolioService) DistributionByAccount() ([]models.DistributionItem, error) {
	accounts, err := s.Accounts()
	if err != nil {
		return nil, err
	}
	settings, _ := s.Settings()

	items := make([]models.DistributionItem, 0, len(accounts))
	total := 0.0
	for i := range accounts {
		value := 0.0
		for j := range accounts[i].Holdings {
			h := &accounts[i].Holdings[j]
			value += settings.ToBase(h.Value(), holdingCurrency(h, &settings))
		}
		items = append(items, models.DistributionItem{Label: accounts[i].Name, Value: value})
		total += value
	}
	applyPercents(items, total)
	return items, nil
}

// DistributionByCategory groups holding values by category label, with
// empty categories reported under the uncategorized label.
func (s *PortfolioService) DistributionByCategory() ([]models.DistributionItem, error) {
	accounts, err := s.Accounts()
	if err != nil {
		return nil, err
	}
	settings, _ := s.Settings()

	grouped := map[string]float64{}
	total := 0.0
	for i := range accounts {
		for j := range accounts[i].Holdings {
			h := &accounts[i].Holdings[j]
			category := h.Category
			if category == "" {
				category = models.CategoryUncategorized
			}
			value := settings.ToBase(h.Value(), holdingCurrency(h, &settings))
			grouped[category] += value
			total += value
		}
	}

	items := make([]models.DistributionItem, 0, len(grouped))
	for label, value := range grouped {
		items = append(items, models.DistributionItem{Label: label, Value: value})
	}
	applyPercents(items, total)
	return items, nil
}

func applyPercents(items []models.DistributionItem, total float64) {
	if total == 0 {
		total = 1
	}
	for i := range items {
		items[i].Percent = items[i].Value / total
	}
}

// AccountViews returns accounts decorated with valuation figures for the
// API, including per-holding today's P&L.
func (s *PortfolioService) AccountViews() ([]models.AccountView, error) {
	accounts, err := s.Accounts()
	if err != nil {
		return nil, err
	}
	settings, _ := s.Settings()
	today := s.Today()

	views := make([]models.AccountView, 0, len(accounts))
	for i := range accounts {
		view := models.AccountView{Account: accounts[i]}
		for j := range accounts[i].Holdings {
			h := accounts[i].Holdings[j]
			currency := holdingCurrency(&h, &settings)
			valueBase := settings.ToBase(h.Value(), currency)
			costBase := settings.ToBase(h.CostBasis(), currency)
			pnlBase := settings.ToBase(h.ProfitValue(), currency)
			returnRate := 0.0
			if costBase > 0 {
				returnRate = pnlBase / costBase
			}
			var todayPnl *float64
			if delta := h.TodayProfit(today); delta != nil {
				converted := settings.ToBase(*delta, currency)
				todayPnl = &converted
			}
			view.HoldingDetails = append(view.HoldingDetails, models.HoldingView{
				Holding:    h,
				ValueBase:  valueBase,
				CostBase:   costBase,
				PnlBase:    pnlBase,
				ReturnRate: returnRate,
				Shares:     h.DisplayQuantity(),
				TodayPnl:   todayPnl,
			})
			view.TotalValueBase += valueBase
			view.TotalCostBase += costBase
			view.TotalPnlBase += pnlBase
		}
		views = append(views, view)
	}
	return views, nil
}

// PublishMetrics pushes the current aggregates to the Prometheus gauges.
func (s *PortfolioService) PublishMetrics() {
	accounts, err := s.Accounts()
	if err != nil {
		return
	}
	settings, _ := s.Settings()

	totals := ComputeTotals(accounts, &settings)
	metrics.PortfolioAssetsBase.Set(totals.Assets)
	metrics.PortfolioPnlBase.Set(totals.Pnl)

	holdings := 0
	for i := range accounts {
		holdings += len(accounts[i].Holdings)
	}
	metrics.PortfolioHoldingsTotal.Set(float64(holdings))

	accountTotals := ComputeAccountTotals(accounts, &settings)
	for i := range accounts {
		metrics.PortfolioValueByAccount.WithLabelValues(accounts[i].Name).Set(accountTotals[accounts[i].ID])
	}
}
