package services

import (
	"context"
	"fmt"
	"log"
	"time"

	"gorm.io/gorm"

	"github.com/codyseavey/portfolio-tracker/internal/models"
)

// RateFreshness is how long a fetched rate table stays fresh; refreshes
// inside the window are skipped unless forced.
const RateFreshness = 6 * time.Hour

// SettingsService owns the configuration row: the base currency, the rate
// table and the refresh status flags, plus the base-currency rebase.
type SettingsService struct {
	db        *gorm.DB
	rates     *RateService
	snapshots *SnapshotService
	now       func() time.Time
}

func NewSettingsService(db *gorm.DB, rates *RateService, snapshots *SnapshotService) *SettingsService {
	return &SettingsService{
		db:        db,
		rates:     rates,
		snapshots: snapshots,
		now:       time.Now,
	}
}

func (s *SettingsService) Get() (models.Settings, error) {
	var settings models.Settings
	if err := s.db.First(&settings, "id = ?", 1).Error; err != nil {
		return models.DefaultSettings(), err
	}
	if settings.FxRates == nil {
		settings.FxRates = models.DefaultSettings().FxRates
	}
	return settings, nil
}

// RefreshRates fetches a live rate table for the current base currency and
// stores it in the internal convention (fxRates[code] = units of base per
// one unit of code, so each provider rate is inverted). A provider failure
// keeps the previous table and only flips the status flag.
func (s *SettingsService) RefreshRates(ctx context.Context, force bool) (models.Settings, bool, error) {
	settings, err := s.Get()
	if err != nil {
		return settings, false, err
	}

	if !force && settings.LastRateFetch != nil && s.now().Sub(*settings.LastRateFetch) < RateFreshness {
		return settings, false, nil
	}

	result, err := s.rates.FetchRates(ctx, settings.BaseCurrency)
	if err != nil {
		settings.LastRateOk = false
		if saveErr := s.db.Save(&settings).Error; saveErr != nil {
			return settings, false, saveErr
		}
		return settings, false, err
	}

	settings.FxRates = InvertRates(result, settings.BaseCurrency)
	now := s.now()
	settings.LastRateFetch = &now
	settings.LastRateOk = true
	if result.Source != "" {
		settings.LastRateSource = result.Source
	}
	if err := s.db.Save(&settings).Error; err != nil {
		return settings, false, err
	}

	if err := s.snapshots.EnsureTodaySnapshot(); err != nil {
		log.Printf("Settings service: snapshot after rate refresh failed: %v", err)
	}
	return settings, true, nil
}

// InvertRates converts a provider result ("1 base = rates[code] code
// units") into the internal table ("1 code unit = fxRates[code] base
// units") for the supported currencies. Codes the provider omits keep no
// entry and fall back to identity at conversion time.
func InvertRates(result *models.RateResult, base string) models.RateTable {
	table := models.RateTable{base: 1}
	for _, code := range models.SupportedCurrencies() {
		if code == base {
			continue
		}
		if rate := result.Rates[code]; rate != 0 {
			table[code] = 1 / rate
		}
	}
	return table
}

// RebaseResult reports what a base-currency change did.
type RebaseResult struct {
	BaseCurrency     string `json:"base_currency"`
	HistoryRewritten bool   `json:"history_rewritten"`
	Warning          string `json:"warning,omitempty"`
}

// ChangeBaseCurrency switches the settlement currency and re-expresses all
// historical snapshots in the new one, in a single transaction. Without a
// conversion rate the history rewrite is skipped (degraded, surfaced as a
// warning) but the currency still switches and the rate table is still
// rescaled from the old entries. Today's snapshot is then recomputed from
// live holdings so it is never rebase-divided twice.
func (s *SettingsService) ChangeBaseCurrency(ctx context.Context, newBase string) (*RebaseResult, error) {
	supported := false
	for _, code := range models.SupportedCurrencies() {
		if code == newBase {
			supported = true
			break
		}
	}
	if !supported {
		return nil, fmt.Errorf("unsupported currency %q", newBase)
	}

	result := &RebaseResult{BaseCurrency: newBase}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var settings models.Settings
		if err := tx.First(&settings, "id = ?", 1).Error; err != nil {
			return err
		}
		if settings.BaseCurrency == newBase {
			result.HistoryRewritten = false
			return nil
		}

		oldRates := settings.FxRates
		if oldRates == nil {
			oldRates = models.RateTable{}
		}

		// oldRates[newBase] is how many old-base units one new-base unit
		// is worth, so dividing re-expresses history in the new base.
		conversionRate := oldRates[newBase]
		if conversionRate != 0 {
			var snapshots []models.Snapshot
			if err := tx.Find(&snapshots).Error; err != nil {
				return err
			}
			for i := range snapshots {
				snapshots[i].TotalAssetsBase /= conversionRate
				snapshots[i].TotalPnlBase /= conversionRate
				rebased := models.AccountTotals{}
				for accountID, value := range snapshots[i].AccountAssets {
					rebased[accountID] = value / conversionRate
				}
				snapshots[i].AccountAssets = rebased
				if err := tx.Save(&snapshots[i]).Error; err != nil {
					return err
				}
			}
			result.HistoryRewritten = true
		} else {
			result.Warning = fmt.Sprintf(
				"no conversion rate for %s: history kept in %s units until the next rate refresh",
				newBase, settings.BaseCurrency)
			log.Printf("Settings service: %s", result.Warning)
		}

		settings.BaseCurrency = newBase
		baseRate := oldRates[newBase]
		if baseRate == 0 {
			baseRate = 1
		}
		rebased := models.RateTable{}
		for _, code := range models.SupportedCurrencies() {
			oldRate := oldRates[code]
			if oldRate == 0 {
				oldRate = 1
			}
			rebased[code] = oldRate / baseRate
		}
		rebased[newBase] = 1
		settings.FxRates = rebased

		return tx.Save(&settings).Error
	})
	if err != nil {
		return nil, err
	}

	// Today's entry is rebuilt from live holdings in the new base, and a
	// live rate fetch replaces the derived table with an authoritative one.
	if err := s.snapshots.EnsureTodaySnapshot(); err != nil {
		log.Printf("Settings service: snapshot after rebase failed: %v", err)
	}
	go func() {
		refreshCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if _, _, err := s.RefreshRates(refreshCtx, true); err != nil {
			log.Printf("Settings service: rate refresh after rebase failed: %v", err)
		}
	}()

	return result, nil
}
