package services

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/text/encoding/simplifiedchinese"
	"golang.org/x/time/rate"

	"github.com/codyseavey/portfolio-tracker/internal/metrics"
	"github.com/codyseavey/portfolio-tracker/internal/models"
)

const (
	defaultYahooQuoteURL = "https://query1.finance.yahoo.com/v7/finance/quote"
	defaultTencentURL    = "https://qt.gtimg.cn/q="
	defaultFundURL       = "https://fundgz.1234567.com.cn/js/"

	// quoteCacheTTL bounds how long a cached quote is served before the
	// vendors are asked again
	quoteCacheTTL  = 5 * time.Minute
	quoteCacheSize = 256
)

var (
	cnSymbolPattern     = regexp.MustCompile(`^(SH|SZ)[0-9]{6}$`)
	hkSymbolPattern     = regexp.MustCompile(`^HK[0-9]{1,5}$`)
	sixDigitPattern     = regexp.MustCompile(`^[0-9]{6}$`)
	shortDigitPattern   = regexp.MustCompile(`^[0-9]{1,5}$`)
	lettersOnlyPattern  = regexp.MustCompile(`^[a-zA-Z]+$`)
	tencentQuotePattern = regexp.MustCompile(`"([^"]+)"`)
	fundPayloadPattern  = regexp.MustCompile(`jsonpgz\((.*)\);?`)
)

// IsFundCode reports whether a raw code looks like a mainland fund code
// (six digits). Fund codes are first tried against the fund endpoint.
func IsFundCode(code string) bool {
	return sixDigitPattern.MatchString(strings.TrimSpace(code))
}

// NormalizeYahooSymbol converts a user-entered code into Yahoo's symbol
// format: SH/SZ prefixes become .SS/.SZ suffixes, HK codes are zero-padded
// .HK, bare six-digit codes pick an exchange by leading digit, and short
// numeric codes default to Hong Kong.
func NormalizeYahooSymbol(rawCode string) string {
	trimmed := strings.ToUpper(strings.TrimSpace(rawCode))
	if trimmed == "" {
		return ""
	}
	if strings.Contains(trimmed, ".") || strings.HasPrefix(trimmed, "^") {
		return trimmed
	}
	if cnSymbolPattern.MatchString(trimmed) {
		suffix := "SZ"
		if strings.HasPrefix(trimmed, "SH") {
			suffix = "SS"
		}
		return trimmed[2:] + "." + suffix
	}
	if hkSymbolPattern.MatchString(trimmed) {
		return padHKCode(trimmed[2:]) + ".HK"
	}
	if sixDigitPattern.MatchString(trimmed) {
		if strings.HasPrefix(trimmed, "6") {
			return trimmed + ".SS"
		}
		return trimmed + ".SZ"
	}
	if shortDigitPattern.MatchString(trimmed) {
		return padHKCode(trimmed) + ".HK"
	}
	return trimmed
}

// normalizeTencentSymbol converts a user-entered code into Tencent's
// lowercase prefixed format. Unmappable codes return "".
func normalizeTencentSymbol(rawCode string) string {
	trimmed := strings.ToLower(strings.TrimSpace(rawCode))
	if trimmed == "" {
		return ""
	}
	if len(trimmed) == 8 && (strings.HasPrefix(trimmed, "sh") || strings.HasPrefix(trimmed, "sz")) && sixDigitPattern.MatchString(trimmed[2:]) {
		return trimmed
	}
	if strings.HasPrefix(trimmed, "hk") && shortDigitPattern.MatchString(trimmed[2:]) {
		return "hk" + padHKCode(trimmed[2:])
	}
	if sixDigitPattern.MatchString(trimmed) {
		if strings.HasPrefix(trimmed, "6") {
			return "sh" + trimmed
		}
		return "sz" + trimmed
	}
	if shortDigitPattern.MatchString(trimmed) {
		return "hk" + padHKCode(trimmed)
	}
	if lettersOnlyPattern.MatchString(trimmed) {
		return "us" + trimmed
	}
	return ""
}

func padHKCode(digits string) string {
	for len(digits) < 4 {
		digits = "0" + digits
	}
	return digits
}

type cachedQuote struct {
	quote     models.Quote
	fetchedAt time.Time
}

// QuoteService resolves a security code to a normalized quote through a
// chain of vendors: the fund endpoint for fund codes, then Yahoo, then
// Tencent. Recent quotes are served from a bounded cache and outbound
// requests are throttled so a large refresh batch cannot hammer vendors.
type QuoteService struct {
	client  *http.Client
	limiter *rate.Limiter
	cache   *lru.Cache[string, cachedQuote]

	// Endpoint bases, overridable in tests
	yahooURL   string
	tencentURL string
	fundURL    string
}

func NewQuoteService() *QuoteService {
	cache, _ := lru.New[string, cachedQuote](quoteCacheSize)
	return &QuoteService{
		client: &http.Client{
			Timeout: 10 * time.Second,
		},
		limiter:    rate.NewLimiter(rate.Limit(5), 10),
		cache:      cache,
		yahooURL:   defaultYahooQuoteURL,
		tencentURL: defaultTencentURL,
		fundURL:    defaultFundURL,
	}
}

// Lookup resolves a code to a quote. Vendor failures fall through the
// chain; the last error wins when every vendor fails.
func (s *QuoteService) Lookup(ctx context.Context, code string) (*models.Quote, error) {
	trimmed := strings.TrimSpace(code)
	if trimmed == "" {
		return nil, fmt.Errorf("empty code")
	}

	if cached, ok := s.cache.Get(trimmed); ok && time.Since(cached.fetchedAt) < quoteCacheTTL {
		quote := cached.quote
		return &quote, nil
	}

	if err := s.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	var lastErr error

	if IsFundCode(trimmed) {
		quote, err := s.fetchFundQuote(ctx, trimmed)
		if err == nil {
			metrics.QuoteLookupsTotal.WithLabelValues("fund", "success").Inc()
			s.cache.Add(trimmed, cachedQuote{quote: *quote, fetchedAt: time.Now()})
			return quote, nil
		}
		metrics.QuoteLookupsTotal.WithLabelValues("fund", "failed").Inc()
		lastErr = err
	}

	quote, err := s.fetchYahooQuote(ctx, trimmed)
	if err == nil {
		metrics.QuoteLookupsTotal.WithLabelValues("yahoo", "success").Inc()
		s.cache.Add(trimmed, cachedQuote{quote: *quote, fetchedAt: time.Now()})
		return quote, nil
	}
	metrics.QuoteLookupsTotal.WithLabelValues("yahoo", "failed").Inc()
	lastErr = err

	quote, err = s.fetchTencentQuote(ctx, trimmed)
	if err == nil {
		metrics.QuoteLookupsTotal.WithLabelValues("tencent", "success").Inc()
		s.cache.Add(trimmed, cachedQuote{quote: *quote, fetchedAt: time.Now()})
		return quote, nil
	}
	metrics.QuoteLookupsTotal.WithLabelValues("tencent", "failed").Inc()
	if err != nil {
		lastErr = err
	}

	return nil, lastErr
}

type yahooQuoteResponse struct {
	QuoteResponse struct {
		Result []yahooQuoteResult `json:"result"`
	} `json:"quoteResponse"`
}

type yahooQuoteResult struct {
	Symbol             string  `json:"symbol"`
	ShortName          string  `json:"shortName"`
	LongName           string  `json:"longName"`
	RegularMarketPrice float64 `json:"regularMarketPrice"`
	Currency           string  `json:"currency"`
	QuoteType          string  `json:"quoteType"`
}

func (s *QuoteService) fetchYahooQuote(ctx context.Context, rawCode string) (*models.Quote, error) {
	symbol := NormalizeYahooSymbol(rawCode)
	reqURL := fmt.Sprintf("%s?symbols=%s", s.yahooURL, url.QueryEscape(symbol))

	body, err := s.fetchBody(ctx, reqURL)
	if err != nil {
		return nil, err
	}

	var parsed yahooQuoteResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, fmt.Errorf("failed to decode yahoo response: %w", err)
	}
	if len(parsed.QuoteResponse.Result) == 0 {
		return nil, fmt.Errorf("no quote data for %s", symbol)
	}

	result := parsed.QuoteResponse.Result[0]
	name := result.ShortName
	if name == "" {
		name = result.LongName
	}
	if name == "" {
		name = symbol
	}
	resolvedSymbol := result.Symbol
	if resolvedSymbol == "" {
		resolvedSymbol = symbol
	}

	return &models.Quote{
		Code:     rawCode,
		Symbol:   resolvedSymbol,
		Name:     name,
		Price:    result.RegularMarketPrice,
		Currency: result.Currency,
		Category: mapYahooCategory(result.QuoteType, resolvedSymbol),
		Source:   "yahoo",
	}, nil
}

// mapYahooCategory translates Yahoo's quoteType into the app's category
// labels, guessing from the symbol shape when the type is absent.
func mapYahooCategory(quoteType, fallbackSymbol string) string {
	switch strings.ToUpper(quoteType) {
	case "ETF":
		return "指数基金"
	case "MUTUALFUND":
		return models.FundMarker
	case "BOND":
		return "债券"
	case "CRYPTOCURRENCY":
		return "加密"
	case "COMMODITY":
		return "商品"
	case "CURRENCY":
		return "外汇"
	}
	if quoteType != "" {
		return "股票"
	}
	trimmed := strings.ToUpper(fallbackSymbol)
	if strings.HasSuffix(trimmed, ".SS") || strings.HasSuffix(trimmed, ".SZ") ||
		strings.HasSuffix(trimmed, ".HK") || lettersOnlyPattern.MatchString(trimmed) {
		return "股票"
	}
	return "其他"
}

func (s *QuoteService) fetchTencentQuote(ctx context.Context, rawCode string) (*models.Quote, error) {
	symbol := normalizeTencentSymbol(rawCode)
	if symbol == "" {
		return nil, fmt.Errorf("invalid symbol %q", rawCode)
	}

	body, err := s.fetchBody(ctx, s.tencentURL+url.QueryEscape(symbol))
	if err != nil {
		return nil, err
	}

	// The feed is GBK-encoded key="v1~v2~..." lines
	decoded, err := simplifiedchinese.GBK.NewDecoder().Bytes(body)
	if err != nil {
		return nil, fmt.Errorf("failed to decode tencent response: %w", err)
	}

	match := tencentQuotePattern.FindStringSubmatch(string(decoded))
	if match == nil {
		return nil, fmt.Errorf("no quote data for %s", symbol)
	}

	fields := strings.Split(match[1], "~")
	name := rawCode
	if len(fields) > 1 && fields[1] != "" {
		name = fields[1]
	}
	price := 0.0
	if len(fields) > 3 {
		if parsed, err := strconv.ParseFloat(fields[3], 64); err == nil {
			price = parsed
		}
	}

	currency := models.CurrencyCNY
	if strings.HasPrefix(symbol, "hk") {
		currency = models.CurrencyHKD
	} else if strings.HasPrefix(symbol, "us") {
		currency = models.CurrencyUSD
	}

	return &models.Quote{
		Code:     rawCode,
		Symbol:   symbol,
		Name:     name,
		Price:    price,
		Currency: currency,
		Category: "股票",
		Source:   "tencent",
	}, nil
}

type fundPayload struct {
	FundCode string `json:"fundcode"`
	Name     string `json:"name"`
	Gsz      string `json:"gsz"`  // estimated intraday NAV
	Dwjz     string `json:"dwjz"` // last confirmed NAV
}

func (s *QuoteService) fetchFundQuote(ctx context.Context, code string) (*models.Quote, error) {
	body, err := s.fetchBody(ctx, s.fundURL+url.PathEscape(code)+".js")
	if err != nil {
		return nil, err
	}

	match := fundPayloadPattern.FindStringSubmatch(string(body))
	if match == nil {
		return nil, fmt.Errorf("no fund data for %s", code)
	}

	var payload fundPayload
	if err := json.Unmarshal([]byte(match[1]), &payload); err != nil {
		return nil, fmt.Errorf("failed to decode fund payload: %w", err)
	}
	if payload.FundCode == "" {
		return nil, fmt.Errorf("no fund data for %s", code)
	}

	price := 0.0
	if parsed, err := strconv.ParseFloat(payload.Gsz, 64); err == nil && parsed > 0 {
		price = parsed
	} else if parsed, err := strconv.ParseFloat(payload.Dwjz, 64); err == nil {
		price = parsed
	}

	name := payload.Name
	if name == "" {
		name = code
	}

	return &models.Quote{
		Code:     code,
		Symbol:   payload.FundCode,
		Name:     name,
		Price:    price,
		Currency: models.CurrencyCNY,
		Category: models.FundMarker,
		Source:   models.SourceFund,
	}, nil
}

func (s *QuoteService) fetchBody(ctx context.Context, reqURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, "GET", reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", "Mozilla/5.0")

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("quote fetch failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("quote endpoint returned status %d", resp.StatusCode)
	}

	return io.ReadAll(resp.Body)
}
