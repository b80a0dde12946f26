package services

import (
	"path/filepath"
	"testing"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/codyseavey/portfolio-tracker/internal/models"
)

// newTestDB opens a throwaway sqlite database with the full schema and the
// default settings row.
func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(filepath.Join(t.TempDir(), "test.db")), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}

	if err := db.AutoMigrate(
		&models.Account{},
		&models.Holding{},
		&models.Settings{},
		&models.Snapshot{},
	); err != nil {
		t.Fatalf("failed to migrate test database: %v", err)
	}

	defaults := models.DefaultSettings()
	if err := db.Create(&defaults).Error; err != nil {
		t.Fatalf("failed to seed settings: %v", err)
	}
	return db
}

func fp(v float64) *float64 { return &v }

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

// seedTwoAccounts stores one USD stock and one CNY fund across two accounts
// with the rate table {CNY:1, USD:7, HKD:0.9}. Expected base figures:
// stock 8400/7000/1400, fund 5000/4800/200, totals 13400/11800/1600.
func seedTwoAccounts(t *testing.T, db *gorm.DB) (stockAccount, fundAccount models.Account) {
	t.Helper()

	var settings models.Settings
	if err := db.First(&settings, "id = ?", 1).Error; err != nil {
		t.Fatalf("failed to load settings: %v", err)
	}
	settings.FxRates = models.RateTable{
		models.CurrencyCNY: 1,
		models.CurrencyUSD: 7,
		models.CurrencyHKD: 0.9,
	}
	if err := db.Save(&settings).Error; err != nil {
		t.Fatalf("failed to save settings: %v", err)
	}

	stockAccount = models.Account{ID: "acc-stocks", Name: "Brokerage"}
	fundAccount = models.Account{ID: "acc-funds", Name: "Funds"}
	if err := db.Create(&stockAccount).Error; err != nil {
		t.Fatalf("failed to create account: %v", err)
	}
	if err := db.Create(&fundAccount).Error; err != nil {
		t.Fatalf("failed to create account: %v", err)
	}

	stock := models.Holding{
		ID: "h-stock", AccountID: stockAccount.ID,
		Code: "AAPL", Source: "yahoo", Currency: models.CurrencyUSD,
		Quantity: fp(100), CostPrice: fp(10), LastPrice: fp(12),
	}
	fund := models.Holding{
		ID: "h-fund", AccountID: fundAccount.ID,
		Code: "110011", Source: models.SourceFund, Currency: models.CurrencyCNY,
		Amount: fp(5000), Profit: fp(200),
	}
	if err := db.Create(&stock).Error; err != nil {
		t.Fatalf("failed to create holding: %v", err)
	}
	if err := db.Create(&fund).Error; err != nil {
		t.Fatalf("failed to create holding: %v", err)
	}
	return stockAccount, fundAccount
}
