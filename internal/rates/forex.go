// Package rates converts amounts between currencies using exchange rates
// from the Yahoo Finance chart API.
package rates

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"
)

const (
	// DefaultBaseURL is the Yahoo Finance chart endpoint.
	DefaultBaseURL = "https://query1.finance.yahoo.com/v8/finance/chart"
	userAgent      = "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7)"
)

// Converter provides exchange rates between ISO 4217 currencies.
type Converter interface {
	Rate(ctx context.Context, from, to string) (float64, error)
}

type cachedRate struct {
	rate      float64
	fetchedAt time.Time
}

// ForexConverter fetches exchange rates for arbitrary currency pairs and keeps
// them in memory for ttl. A zero ttl caches rates for the lifetime of the
// converter.
type ForexConverter struct {
	httpClient *http.Client
	baseURL    string
	ttl        time.Duration
	now        func() time.Time

	mu    sync.RWMutex
	rates map[string]cachedRate // "USDRUB" -> rate
}

// NewForexConverter creates a ForexConverter. An empty baseURL selects
// DefaultBaseURL.
func NewForexConverter(httpClient *http.Client, baseURL string, ttl time.Duration) *ForexConverter {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 10 * time.Second}
	}
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &ForexConverter{
		httpClient: httpClient,
		baseURL:    strings.TrimRight(baseURL, "/"),
		ttl:        ttl,
		now:        time.Now,
		rates:      make(map[string]cachedRate),
	}
}

// Rate returns how many units of to one unit of from is worth.
func (f *ForexConverter) Rate(ctx context.Context, from, to string) (float64, error) {
	from, to = strings.ToUpper(from), strings.ToUpper(to)
	if from == to {
		return 1.0, nil
	}

	pair := from + to
	f.mu.RLock()
	cached, ok := f.rates[pair]
	f.mu.RUnlock()
	if ok && (f.ttl <= 0 || f.now().Sub(cached.fetchedAt) < f.ttl) {
		return cached.rate, nil
	}

	rate, err := f.fetchRate(ctx, pair)
	if err != nil {
		return 0, err
	}

	f.mu.Lock()
	f.rates[pair] = cachedRate{rate: rate, fetchedAt: f.now()}
	f.mu.Unlock()

	return rate, nil
}

type chartResponse struct {
	Chart struct {
		Result []struct {
			Meta struct {
				Currency           string  `json:"currency"`
				Symbol             string  `json:"symbol"`
				RegularMarketPrice float64 `json:"regularMarketPrice"`
			} `json:"meta"`
		} `json:"result"`
		Error *struct {
			Code        string `json:"code"`
			Description string `json:"description"`
		} `json:"error"`
	} `json:"chart"`
}

// fetchRate asks Yahoo for the "FROMTO=X" ticker, e.g. "USDRUB=X".
func (f *ForexConverter) fetchRate(ctx context.Context, pair string) (float64, error) {
	ticker := pair + "=X"
	url := f.baseURL + "/" + ticker + "?interval=1d&range=1d"

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return 0, fmt.Errorf("building forex request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := f.httpClient.Do(req)
	if err != nil {
		return 0, fmt.Errorf("forex http request for %s: %w", ticker, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return 0, fmt.Errorf("forex request for %s: unexpected status %d", ticker, resp.StatusCode)
	}

	var chart chartResponse
	if err := json.NewDecoder(resp.Body).Decode(&chart); err != nil {
		return 0, fmt.Errorf("decoding forex response for %s: %w", ticker, err)
	}

	if chart.Chart.Error != nil {
		return 0, fmt.Errorf("forex chart error for %s: %s: %s", ticker, chart.Chart.Error.Code, chart.Chart.Error.Description)
	}
	if len(chart.Chart.Result) == 0 {
		return 0, fmt.Errorf("no forex results for %s", ticker)
	}

	rate := chart.Chart.Result[0].Meta.RegularMarketPrice
	if rate <= 0 {
		return 0, fmt.Errorf("invalid forex rate for %s: %f", ticker, rate)
	}
	return rate, nil
}
