package services

import (
	"context"
	"log"
	"sync"
	"time"

	"gorm.io/gorm"

	"github.com/codyseavey/portfolio-tracker/internal/metrics"
	"github.com/codyseavey/portfolio-tracker/internal/models"
)

// QuoteFreshness is how long a quote batch stays fresh; refreshes inside
// the window are skipped unless forced.
const QuoteFreshness = 30 * time.Minute

// CodeOutcome is the per-code result of a refresh batch. Partial failure
// is a first-class return value, not an exception: failed codes keep their
// stale holdings silently and only the aggregate status flips.
type CodeOutcome struct {
	Code    string `json:"code"`
	Updated int    `json:"updated"` // holdings that received the quote
	Error   string `json:"error,omitempty"`
}

// RefreshResult summarizes one refresh batch.
type RefreshResult struct {
	Skipped   bool          `json:"skipped"`
	Attempted int           `json:"attempted"`
	Succeeded int           `json:"succeeded"`
	Outcomes  []CodeOutcome `json:"outcomes,omitempty"`
}

// QuoteWorker refreshes holding prices in the background and on demand.
// Lookups fan out concurrently, one per distinct code; results are joined
// and applied serially so no two writers touch a holding at once.
type QuoteWorker struct {
	db        *gorm.DB
	quotes    *QuoteService
	snapshots *SnapshotService

	updateInterval time.Duration
	mu             sync.Mutex
	lastBatch      time.Time
	now            func() time.Time
}

func NewQuoteWorker(db *gorm.DB, quotes *QuoteService, snapshots *SnapshotService) *QuoteWorker {
	return &QuoteWorker{
		db:             db,
		quotes:         quotes,
		snapshots:      snapshots,
		updateInterval: 30 * time.Minute,
		now:            time.Now,
	}
}

// Start begins the background refresh loop.
func (w *QuoteWorker) Start(ctx context.Context) {
	log.Printf("Quote worker started: will refresh holdings every %v", w.updateInterval)

	if result, err := w.RefreshAll(ctx, false); err != nil {
		log.Printf("Quote worker: initial refresh failed: %v", err)
	} else if !result.Skipped {
		log.Printf("Quote worker: initial refresh updated %d/%d codes", result.Succeeded, result.Attempted)
	}

	ticker := time.NewTicker(w.updateInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Println("Quote worker stopping...")
			return
		case <-ticker.C:
			if result, err := w.RefreshAll(ctx, false); err != nil {
				log.Printf("Quote worker: refresh failed: %v", err)
			} else if !result.Skipped {
				log.Printf("Quote worker: refreshed %d/%d codes", result.Succeeded, result.Attempted)
			}
		}
	}
}

type lookupResult struct {
	code  string
	quote *models.Quote
	err   error
}

// RefreshAll refreshes every distinct holding code. Success means at least
// one code resolved; only then are the status flags flipped and today's
// snapshot recorded. The batch is serialized: concurrent calls queue.
func (w *QuoteWorker) RefreshAll(ctx context.Context, force bool) (*RefreshResult, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	var settings models.Settings
	if err := w.db.First(&settings, "id = ?", 1).Error; err != nil {
		return nil, err
	}
	if !force && settings.LastQuoteFetch != nil && w.now().Sub(*settings.LastQuoteFetch) < QuoteFreshness {
		return &RefreshResult{Skipped: true}, nil
	}

	var holdings []models.Holding
	if err := w.db.Find(&holdings).Error; err != nil {
		return nil, err
	}

	// Group holdings by lookup key so each code is fetched once
	byCode := map[string][]models.Holding{}
	for _, h := range holdings {
		key := h.Code
		if key == "" {
			key = h.Symbol
		}
		if key == "" {
			continue
		}
		byCode[key] = append(byCode[key], h)
	}
	if len(byCode) == 0 {
		return &RefreshResult{}, nil
	}

	start := w.now()

	// Fan out one lookup per code, join all results before touching state
	results := make(chan lookupResult, len(byCode))
	var wg sync.WaitGroup
	for code := range byCode {
		wg.Add(1)
		go func(code string) {
			defer wg.Done()
			quote, err := w.quotes.Lookup(ctx, code)
			results <- lookupResult{code: code, quote: quote, err: err}
		}(code)
	}
	wg.Wait()
	close(results)

	result := &RefreshResult{Attempted: len(byCode)}
	today := w.now().Format("2006-01-02")
	updatedAt := w.now()

	for lookup := range results {
		outcome := CodeOutcome{Code: lookup.code}
		if lookup.err != nil {
			outcome.Error = lookup.err.Error()
			result.Outcomes = append(result.Outcomes, outcome)
			continue
		}
		for _, h := range byCode[lookup.code] {
			if err := w.applyQuote(&h, lookup.quote, today, updatedAt); err != nil {
				log.Printf("Quote worker: failed to update holding %s: %v", h.ID, err)
				continue
			}
			outcome.Updated++
		}
		metrics.HoldingsRefreshed.Add(float64(outcome.Updated))
		result.Succeeded++
		result.Outcomes = append(result.Outcomes, outcome)
	}

	metrics.QuoteBatchDuration.Observe(w.now().Sub(start).Seconds())

	if result.Succeeded > 0 {
		now := w.now()
		settings.LastQuoteFetch = &now
		settings.LastQuoteOk = true
		if err := w.db.Save(&settings).Error; err != nil {
			return result, err
		}
		if err := w.snapshots.EnsureTodaySnapshot(); err != nil {
			log.Printf("Quote worker: snapshot after refresh failed: %v", err)
		}
	} else {
		settings.LastQuoteOk = false
		if err := w.db.Save(&settings).Error; err != nil {
			return result, err
		}
	}

	w.lastBatch = w.now()
	return result, nil
}

// applyQuote writes a fresh quote onto one holding. The intraday baseline
// is captured first so today's delta measures from the previous close.
func (w *QuoteWorker) applyQuote(h *models.Holding, quote *models.Quote, today string, updatedAt time.Time) error {
	h.EnsureTodayStart(quote.Price, today)

	if quote.Symbol != "" {
		h.Symbol = quote.Symbol
	}
	if quote.Name != "" {
		h.Name = quote.Name
	}
	if quote.Currency != "" {
		h.Currency = quote.Currency
	}
	if quote.Source != "" {
		h.Source = quote.Source
	}
	// Vendor category fills the default only; a user-chosen category stays
	// (overwriting it could flip the holding's fund/stock kind)
	if quote.Category != "" && (h.Category == "" || h.Category == models.CategoryUncategorized) {
		h.Category = quote.Category
	}
	price := quote.Price
	h.LastPrice = &price
	h.LastUpdate = &updatedAt

	return w.db.Save(h).Error
}

// Status reports the worker's refresh timing for the API.
func (w *QuoteWorker) Status() map[string]interface{} {
	w.mu.Lock()
	defer w.mu.Unlock()
	status := map[string]interface{}{
		"update_interval": w.updateInterval.String(),
	}
	if !w.lastBatch.IsZero() {
		status["last_batch"] = w.lastBatch
		status["next_batch"] = w.lastBatch.Add(w.updateInterval)
	}
	return status
}
