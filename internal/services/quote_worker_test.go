package services

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/codyseavey/portfolio-tracker/internal/models"
)

// newWorkerFixture wires a quote worker against a Yahoo stub that quotes
// AAPL and fails everything else.
func newWorkerFixture(t *testing.T, clock time.Time) (*QuoteWorker, *SnapshotService, func()) {
	t.Helper()
	db := newTestDB(t)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.Contains(r.URL.RawQuery, "AAPL") {
			w.Write([]byte(`{"quoteResponse":{"result":[]}}`))
			return
		}
		w.Write([]byte(`{"quoteResponse":{"result":[{"symbol":"AAPL","shortName":"Apple Inc.","regularMarketPrice":200,"currency":"USD","quoteType":"EQUITY"}]}}`))
	}))

	quotes := NewQuoteService()
	quotes.yahooURL = server.URL
	quotes.tencentURL = "http://127.0.0.1:0/q="
	quotes.fundURL = "http://127.0.0.1:0/js/"

	portfolio := NewPortfolioService(db)
	portfolio.now = fixedClock(clock)
	snapshots := NewSnapshotService(db, portfolio)
	snapshots.now = fixedClock(clock)
	worker := NewQuoteWorker(db, quotes, snapshots)
	worker.now = fixedClock(clock)

	return worker, snapshots, server.Close
}

func TestRefreshAllAppliesQuotes(t *testing.T) {
	clock := time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)
	worker, _, cleanup := newWorkerFixture(t, clock)
	defer cleanup()
	db := worker.db

	db.Create(&models.Account{ID: "a1", Name: "Main"})
	db.Create(&models.Holding{
		ID: "h1", AccountID: "a1", Code: "AAPL", Currency: models.CurrencyUSD,
		Quantity: fp(10), CostPrice: fp(150), LastPrice: fp(180),
	})

	result, err := worker.RefreshAll(context.Background(), true)
	if err != nil {
		t.Fatalf("RefreshAll() error: %v", err)
	}
	if result.Skipped {
		t.Fatal("forced refresh should not be skipped")
	}
	if result.Attempted != 1 || result.Succeeded != 1 {
		t.Errorf("attempted/succeeded = %d/%d, want 1/1", result.Attempted, result.Succeeded)
	}

	var h models.Holding
	db.First(&h, "id = ?", "h1")
	if h.LastPrice == nil || *h.LastPrice != 200 {
		t.Errorf("LastPrice = %v, want 200", h.LastPrice)
	}
	if h.Name != "Apple Inc." {
		t.Errorf("Name = %q, want the vendor name", h.Name)
	}
	if h.LastUpdate == nil || h.LastUpdate.Format("2006-01-02") != "2026-08-30" {
		t.Errorf("LastUpdate = %v, want today", h.LastUpdate)
	}

	// The baseline was captured from the pre-refresh price
	if h.TodayStartPrice == nil || *h.TodayStartPrice != 180 {
		t.Errorf("TodayStartPrice = %v, want the previous 180", h.TodayStartPrice)
	}
	if h.TodayStartAmount == nil || *h.TodayStartAmount != 1800 {
		t.Errorf("TodayStartAmount = %v, want 1800", h.TodayStartAmount)
	}

	delta := h.TodayProfit("2026-08-30")
	if delta == nil || *delta != 200 {
		t.Errorf("TodayProfit = %v, want 200", delta)
	}

	var settings models.Settings
	db.First(&settings, "id = ?", 1)
	if !settings.LastQuoteOk || settings.LastQuoteFetch == nil {
		t.Error("a successful batch should stamp the quote fetch flags")
	}

	// Refresh side effect: today has a snapshot
	var count int64
	db.Model(&models.Snapshot{}).Where("date = ?", "2026-08-30").Count(&count)
	if count != 1 {
		t.Errorf("got %d snapshots for today, want 1", count)
	}
}

func TestRefreshAllPartialFailure(t *testing.T) {
	clock := time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)
	worker, _, cleanup := newWorkerFixture(t, clock)
	defer cleanup()
	db := worker.db

	db.Create(&models.Account{ID: "a1", Name: "Main"})
	db.Create(&models.Holding{
		ID: "h1", AccountID: "a1", Code: "AAPL", Currency: models.CurrencyUSD,
		Quantity: fp(10), CostPrice: fp(150), LastPrice: fp(180),
	})
	db.Create(&models.Holding{
		ID: "h2", AccountID: "a1", Code: "NOPE", Currency: models.CurrencyUSD,
		Quantity: fp(5), CostPrice: fp(10), LastPrice: fp(11),
	})

	result, err := worker.RefreshAll(context.Background(), true)
	if err != nil {
		t.Fatalf("RefreshAll() error: %v", err)
	}
	if result.Attempted != 2 || result.Succeeded != 1 {
		t.Errorf("attempted/succeeded = %d/%d, want 2/1", result.Attempted, result.Succeeded)
	}

	// Failed code keeps its stale price
	var h models.Holding
	db.First(&h, "id = ?", "h2")
	if h.LastPrice == nil || *h.LastPrice != 11 {
		t.Errorf("stale LastPrice = %v, want the untouched 11", h.LastPrice)
	}

	// One success is still a successful batch
	var settings models.Settings
	db.First(&settings, "id = ?", 1)
	if !settings.LastQuoteOk {
		t.Error("LastQuoteOk should stay true when at least one code resolved")
	}
}

func TestRefreshAllTotalFailureFlipsFlag(t *testing.T) {
	clock := time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)
	worker, _, cleanup := newWorkerFixture(t, clock)
	defer cleanup()
	db := worker.db

	db.Create(&models.Account{ID: "a1", Name: "Main"})
	db.Create(&models.Holding{
		ID: "h1", AccountID: "a1", Code: "NOPE", Currency: models.CurrencyUSD,
		Quantity: fp(5), CostPrice: fp(10), LastPrice: fp(11),
	})

	result, err := worker.RefreshAll(context.Background(), true)
	if err != nil {
		t.Fatalf("RefreshAll() error: %v", err)
	}
	if result.Succeeded != 0 {
		t.Errorf("Succeeded = %d, want 0", result.Succeeded)
	}

	var settings models.Settings
	db.First(&settings, "id = ?", 1)
	if settings.LastQuoteOk {
		t.Error("LastQuoteOk should flip to false when no code resolved")
	}
	if settings.LastQuoteFetch != nil {
		t.Error("a failed batch should not stamp the fetch time")
	}
}

func TestRefreshAllFreshnessGate(t *testing.T) {
	clock := time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)
	worker, _, cleanup := newWorkerFixture(t, clock)
	defer cleanup()
	db := worker.db

	var settings models.Settings
	db.First(&settings, "id = ?", 1)
	recent := clock.Add(-5 * time.Minute)
	settings.LastQuoteFetch = &recent
	db.Save(&settings)

	result, err := worker.RefreshAll(context.Background(), false)
	if err != nil {
		t.Fatalf("RefreshAll() error: %v", err)
	}
	if !result.Skipped {
		t.Error("a fresh batch should be skipped without force")
	}

	result, err = worker.RefreshAll(context.Background(), true)
	if err != nil {
		t.Fatalf("forced RefreshAll() error: %v", err)
	}
	if result.Skipped {
		t.Error("force should bypass the freshness gate")
	}
}

func TestRefreshAllTodayDeltaStableAcrossSameDayBatches(t *testing.T) {
	clock := time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)
	worker, _, cleanup := newWorkerFixture(t, clock)
	defer cleanup()
	db := worker.db

	db.Create(&models.Account{ID: "a1", Name: "Main"})
	db.Create(&models.Holding{
		ID: "h1", AccountID: "a1", Code: "AAPL", Currency: models.CurrencyUSD,
		Quantity: fp(10), CostPrice: fp(150), LastPrice: fp(180),
	})

	if _, err := worker.RefreshAll(context.Background(), true); err != nil {
		t.Fatalf("first RefreshAll() error: %v", err)
	}
	if _, err := worker.RefreshAll(context.Background(), true); err != nil {
		t.Fatalf("second RefreshAll() error: %v", err)
	}

	var h models.Holding
	db.First(&h, "id = ?", "h1")
	if h.TodayStartPrice == nil || *h.TodayStartPrice != 180 {
		t.Errorf("TodayStartPrice = %v, want the day-open 180 after a second batch", h.TodayStartPrice)
	}
}

func TestRefreshAllGroupsHoldingsByCode(t *testing.T) {
	clock := time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)
	worker, _, cleanup := newWorkerFixture(t, clock)
	defer cleanup()
	db := worker.db

	db.Create(&models.Account{ID: "a1", Name: "One"})
	db.Create(&models.Account{ID: "a2", Name: "Two"})
	db.Create(&models.Holding{
		ID: "h1", AccountID: "a1", Code: "AAPL", Currency: models.CurrencyUSD,
		Quantity: fp(10), CostPrice: fp(150), LastPrice: fp(180),
	})
	db.Create(&models.Holding{
		ID: "h2", AccountID: "a2", Code: "AAPL", Currency: models.CurrencyUSD,
		Quantity: fp(3), CostPrice: fp(120), LastPrice: fp(180),
	})

	result, err := worker.RefreshAll(context.Background(), true)
	if err != nil {
		t.Fatalf("RefreshAll() error: %v", err)
	}
	if result.Attempted != 1 {
		t.Errorf("Attempted = %d, want 1 (one code, two holdings)", result.Attempted)
	}
	for _, outcome := range result.Outcomes {
		if outcome.Code == "AAPL" && outcome.Updated != 2 {
			t.Errorf("Updated = %d, want both holdings", outcome.Updated)
		}
	}
}
