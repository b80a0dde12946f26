package services

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"time"

	"github.com/codyseavey/portfolio-tracker/internal/metrics"
	"github.com/codyseavey/portfolio-tracker/internal/models"
)

const (
	defaultOpenErAPIURL        = "https://open.er-api.com/v6/latest/"
	defaultExchangerateHostURL = "https://api.exchangerate.host/latest"
)

// RateService fetches FX rates for a base currency from a chain of public
// providers, first success wins. The response convention is
// rates[code] = units of code per one unit of base; the settings layer
// inverts this into the internal table.
type RateService struct {
	client *http.Client

	// Endpoint bases, overridable in tests
	openErAPIURL        string
	exchangerateHostURL string
}

func NewRateService() *RateService {
	return &RateService{
		client: &http.Client{
			Timeout: 10 * time.Second,
		},
		openErAPIURL:        defaultOpenErAPIURL,
		exchangerateHostURL: defaultExchangerateHostURL,
	}
}

// FetchRates tries each provider in order and returns the first usable
// result. Every provider failing returns the last error.
func (s *RateService) FetchRates(ctx context.Context, base string) (*models.RateResult, error) {
	type fetcher struct {
		name string
		fn   func(context.Context, string) (*models.RateResult, error)
	}
	sources := []fetcher{
		{"open.er-api", s.fetchFromOpenErAPI},
		{"exchangerate.host", s.fetchFromExchangerateHost},
	}

	var lastErr error
	for _, source := range sources {
		result, err := source.fn(ctx, base)
		if err == nil {
			metrics.RateFetchesTotal.WithLabelValues(source.name, "success").Inc()
			return result, nil
		}
		metrics.RateFetchesTotal.WithLabelValues(source.name, "failed").Inc()
		log.Printf("Rate service: source %s failed: %v", source.name, err)
		lastErr = err
	}
	if lastErr == nil {
		lastErr = fmt.Errorf("no rate data")
	}
	return nil, lastErr
}

type openErAPIResponse struct {
	BaseCode string             `json:"base_code"`
	Rates    map[string]float64 `json:"rates"`
}

func (s *RateService) fetchFromOpenErAPI(ctx context.Context, base string) (*models.RateResult, error) {
	var parsed openErAPIResponse
	if err := s.fetchJSON(ctx, s.openErAPIURL+url.PathEscape(base), &parsed); err != nil {
		return nil, err
	}
	if len(parsed.Rates) == 0 {
		return nil, fmt.Errorf("no rate data")
	}
	resolvedBase := parsed.BaseCode
	if resolvedBase == "" {
		resolvedBase = base
	}
	return &models.RateResult{Base: resolvedBase, Rates: parsed.Rates, Source: "open.er-api"}, nil
}

type exchangerateHostResponse struct {
	Base  string             `json:"base"`
	Rates map[string]float64 `json:"rates"`
}

func (s *RateService) fetchFromExchangerateHost(ctx context.Context, base string) (*models.RateResult, error) {
	var parsed exchangerateHostResponse
	if err := s.fetchJSON(ctx, s.exchangerateHostURL+"?base="+url.QueryEscape(base), &parsed); err != nil {
		return nil, err
	}
	if len(parsed.Rates) == 0 {
		return nil, fmt.Errorf("no rate data")
	}
	resolvedBase := parsed.Base
	if resolvedBase == "" {
		resolvedBase = base
	}
	return &models.RateResult{Base: resolvedBase, Rates: parsed.Rates, Source: "exchangerate.host"}, nil
}

func (s *RateService) fetchJSON(ctx context.Context, reqURL string, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, "GET", reqURL, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", "Mozilla/5.0")

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("rate fetch failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("rate endpoint returned status %d", resp.StatusCode)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode rate response: %w", err)
	}
	return nil
}
