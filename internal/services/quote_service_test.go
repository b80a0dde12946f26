package services

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"golang.org/x/text/encoding/simplifiedchinese"

	"github.com/codyseavey/portfolio-tracker/internal/models"
)

func TestIsFundCode(t *testing.T) {
	tests := []struct {
		code string
		want bool
	}{
		{"110011", true},
		{" 110011 ", true},
		{"600036", true}, // six digits look like a fund until the endpoint says otherwise
		{"AAPL", false},
		{"00700", false},
		{"1100112", false},
		{"", false},
	}
	for _, tt := range tests {
		if got := IsFundCode(tt.code); got != tt.want {
			t.Errorf("IsFundCode(%q) = %v, want %v", tt.code, got, tt.want)
		}
	}
}

func TestNormalizeYahooSymbol(t *testing.T) {
	tests := []struct {
		code string
		want string
	}{
		{"SH600036", "600036.SS"},
		{"sz000001", "000001.SZ"},
		{"HK700", "0700.HK"},
		{"600036", "600036.SS"},
		{"000001", "000001.SZ"},
		{"700", "0700.HK"},
		{"aapl", "AAPL"},
		{"0700.HK", "0700.HK"},
		{"^GSPC", "^GSPC"},
		{" BRK.B ", "BRK.B"},
		{"", ""},
	}
	for _, tt := range tests {
		if got := NormalizeYahooSymbol(tt.code); got != tt.want {
			t.Errorf("NormalizeYahooSymbol(%q) = %q, want %q", tt.code, got, tt.want)
		}
	}
}

func TestNormalizeTencentSymbol(t *testing.T) {
	tests := []struct {
		code string
		want string
	}{
		{"SH600036", "sh600036"},
		{"sz000001", "sz000001"},
		{"HK700", "hk0700"},
		{"600036", "sh600036"},
		{"000001", "sz000001"},
		{"700", "hk0700"},
		{"AAPL", "usaapl"},
		{"0700.HK", ""},
		{"hk", ""},
		{"", ""},
	}
	for _, tt := range tests {
		if got := normalizeTencentSymbol(tt.code); got != tt.want {
			t.Errorf("normalizeTencentSymbol(%q) = %q, want %q", tt.code, got, tt.want)
		}
	}
}

func TestMapYahooCategory(t *testing.T) {
	tests := []struct {
		name      string
		quoteType string
		symbol    string
		want      string
	}{
		{"etf", "ETF", "510300.SS", "指数基金"},
		{"mutual fund", "MUTUALFUND", "110011", models.FundMarker},
		{"bond", "BOND", "X", "债券"},
		{"crypto", "CRYPTOCURRENCY", "BTC-USD", "加密"},
		{"equity", "EQUITY", "AAPL", "股票"},
		{"no type, exchange suffix", "", "600036.SS", "股票"},
		{"no type, letters only", "", "AAPL", "股票"},
		{"no type, unrecognized", "", "BTC-USD", "其他"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := mapYahooCategory(tt.quoteType, tt.symbol); got != tt.want {
				t.Errorf("mapYahooCategory(%q, %q) = %q, want %q", tt.quoteType, tt.symbol, got, tt.want)
			}
		})
	}
}

func TestLookupYahoo(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("symbols") != "AAPL" {
			http.Error(w, "unexpected symbol", http.StatusBadRequest)
			return
		}
		w.Write([]byte(`{"quoteResponse":{"result":[{"symbol":"AAPL","shortName":"Apple Inc.","regularMarketPrice":195.5,"currency":"USD","quoteType":"EQUITY"}]}}`))
	}))
	defer server.Close()

	svc := NewQuoteService()
	svc.yahooURL = server.URL
	svc.tencentURL = "http://127.0.0.1:0/q="
	svc.fundURL = "http://127.0.0.1:0/js/"

	quote, err := svc.Lookup(context.Background(), "AAPL")
	if err != nil {
		t.Fatalf("Lookup() error: %v", err)
	}
	if quote.Name != "Apple Inc." {
		t.Errorf("Name = %q, want Apple Inc.", quote.Name)
	}
	if quote.Price != 195.5 {
		t.Errorf("Price = %v, want 195.5", quote.Price)
	}
	if quote.Currency != models.CurrencyUSD {
		t.Errorf("Currency = %q, want USD", quote.Currency)
	}
	if quote.Source != "yahoo" {
		t.Errorf("Source = %q, want yahoo", quote.Source)
	}
	if quote.Category != "股票" {
		t.Errorf("Category = %q, want 股票", quote.Category)
	}
}

func TestLookupFallsBackToTencent(t *testing.T) {
	tencent := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		payload := `v_hk00700="100~腾讯控股~00700~625.00~620.00";`
		encoded, err := simplifiedchinese.GBK.NewEncoder().Bytes([]byte(payload))
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		w.Write(encoded)
	}))
	defer tencent.Close()

	svc := NewQuoteService()
	svc.yahooURL = "http://127.0.0.1:0/quote"
	svc.tencentURL = tencent.URL + "/q="
	svc.fundURL = "http://127.0.0.1:0/js/"

	quote, err := svc.Lookup(context.Background(), "HK700")
	if err != nil {
		t.Fatalf("Lookup() error: %v", err)
	}
	if quote.Name != "腾讯控股" {
		t.Errorf("Name = %q, want 腾讯控股", quote.Name)
	}
	if quote.Price != 625 {
		t.Errorf("Price = %v, want 625", quote.Price)
	}
	if quote.Currency != models.CurrencyHKD {
		t.Errorf("Currency = %q, want HKD", quote.Currency)
	}
	if quote.Source != "tencent" {
		t.Errorf("Source = %q, want tencent", quote.Source)
	}
}

func TestLookupFundCode(t *testing.T) {
	fund := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`jsonpgz({"fundcode":"110011","name":"易方达中小盘","gsz":"2.5100","dwjz":"2.4800"});`))
	}))
	defer fund.Close()

	svc := NewQuoteService()
	svc.yahooURL = "http://127.0.0.1:0/quote"
	svc.tencentURL = "http://127.0.0.1:0/q="
	svc.fundURL = fund.URL + "/js/"

	quote, err := svc.Lookup(context.Background(), "110011")
	if err != nil {
		t.Fatalf("Lookup() error: %v", err)
	}
	if quote.Price != 2.51 {
		t.Errorf("Price = %v, want the intraday estimate 2.51", quote.Price)
	}
	if quote.Source != models.SourceFund {
		t.Errorf("Source = %q, want fund", quote.Source)
	}
	if quote.Category != models.FundMarker {
		t.Errorf("Category = %q, want the fund marker", quote.Category)
	}
	if quote.Currency != models.CurrencyCNY {
		t.Errorf("Currency = %q, want CNY", quote.Currency)
	}
}

func TestLookupFundFallsBackToConfirmedNAV(t *testing.T) {
	fund := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`jsonpgz({"fundcode":"110011","name":"易方达中小盘","gsz":"","dwjz":"2.4800"});`))
	}))
	defer fund.Close()

	svc := NewQuoteService()
	svc.yahooURL = "http://127.0.0.1:0/quote"
	svc.tencentURL = "http://127.0.0.1:0/q="
	svc.fundURL = fund.URL + "/js/"

	quote, err := svc.Lookup(context.Background(), "110011")
	if err != nil {
		t.Fatalf("Lookup() error: %v", err)
	}
	if quote.Price != 2.48 {
		t.Errorf("Price = %v, want the confirmed NAV 2.48", quote.Price)
	}
}

func TestLookupAllVendorsFail(t *testing.T) {
	svc := NewQuoteService()
	svc.yahooURL = "http://127.0.0.1:0/quote"
	svc.tencentURL = "http://127.0.0.1:0/q="
	svc.fundURL = "http://127.0.0.1:0/js/"

	if _, err := svc.Lookup(context.Background(), "AAPL"); err == nil {
		t.Error("Lookup() with every vendor down should error")
	}
}

func TestLookupEmptyCode(t *testing.T) {
	svc := NewQuoteService()
	if _, err := svc.Lookup(context.Background(), "  "); err == nil {
		t.Error("Lookup() with a blank code should error")
	}
}

func TestLookupServesCachedQuote(t *testing.T) {
	calls := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.Write([]byte(`{"quoteResponse":{"result":[{"symbol":"AAPL","shortName":"Apple Inc.","regularMarketPrice":195.5,"currency":"USD","quoteType":"EQUITY"}]}}`))
	}))
	defer server.Close()

	svc := NewQuoteService()
	svc.yahooURL = server.URL
	svc.tencentURL = "http://127.0.0.1:0/q="
	svc.fundURL = "http://127.0.0.1:0/js/"

	if _, err := svc.Lookup(context.Background(), "AAPL"); err != nil {
		t.Fatalf("first Lookup() error: %v", err)
	}
	if _, err := svc.Lookup(context.Background(), "AAPL"); err != nil {
		t.Fatalf("second Lookup() error: %v", err)
	}
	if calls != 1 {
		t.Errorf("vendor hit %d times, want 1 (second lookup from cache)", calls)
	}
}
