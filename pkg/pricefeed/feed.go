// Package pricefeed provides reference prices for the engine's oracle from
// HTTP ticker endpoints.
package pricefeed

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/patrickmn/go-cache"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/erain9/runebook/pkg/core"
)

// Config configures an HTTPFeed
type Config struct {
	BaseURL     string
	CacheTTL    time.Duration
	HTTPTimeout time.Duration
	MaxRetries  int
	RetryDelay  time.Duration
}

type priceResponse struct {
	RuneID string `json:"runeId"`
	Price  string `json:"price"`
}

// HTTPFeed reads prices from GET <base>/api/v1/runes/<runeId>/price and
// caches good answers for CacheTTL.
type HTTPFeed struct {
	client  *http.Client
	cfg     Config
	prices  *cache.Cache
	logger  zerolog.Logger
	baseURL string
}

// NewHTTPFeed creates a feed
func NewHTTPFeed(cfg Config, logger zerolog.Logger) (*HTTPFeed, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("price feed base url is required")
	}
	if _, err := url.Parse(cfg.BaseURL); err != nil {
		return nil, fmt.Errorf("invalid price feed url: %w", err)
	}
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = 10 * time.Second
	}
	if cfg.HTTPTimeout <= 0 {
		cfg.HTTPTimeout = 5 * time.Second
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = 3
	}
	if cfg.RetryDelay <= 0 {
		cfg.RetryDelay = 100 * time.Millisecond
	}

	client := &http.Client{
		Timeout: cfg.HTTPTimeout,
		Transport: &http.Transport{
			MaxIdleConns:    10,
			IdleConnTimeout: 30 * time.Second,
		},
	}

	return &HTTPFeed{
		client:  client,
		cfg:     cfg,
		prices:  cache.New(cfg.CacheTTL, 2*cfg.CacheTTL),
		logger:  logger.With().Str("component", "pricefeed").Logger(),
		baseURL: cfg.BaseURL,
	}, nil
}

// GetPrice implements core.PriceFeed
func (f *HTTPFeed) GetPrice(ctx context.Context, runeID string) (decimal.Decimal, bool) {
	if cached, ok := f.prices.Get(runeID); ok {
		return cached.(decimal.Decimal), true
	}

	price, err := f.FetchPrice(ctx, runeID)
	if err != nil {
		f.logger.Debug().Err(err).Str("rune_id", runeID).Msg("Price feed unavailable")
		return decimal.Zero, false
	}
	f.prices.SetDefault(runeID, price)
	return price, true
}

// FetchPrice asks the endpoint directly, bypassing the cache
func (f *HTTPFeed) FetchPrice(ctx context.Context, runeID string) (decimal.Decimal, error) {
	endpoint := fmt.Sprintf("%s/api/v1/runes/%s/price", f.baseURL, url.PathEscape(runeID))

	var lastErr error
	for attempt := 1; attempt <= f.cfg.MaxRetries; attempt++ {
		price, err := f.fetchOnce(ctx, endpoint)
		if err == nil {
			return price, nil
		}
		lastErr = err
		f.logger.Warn().
			Err(err).
			Str("rune_id", runeID).
			Int("attempt", attempt).
			Int("max_retries", f.cfg.MaxRetries).
			Msg("Price fetch failed")

		if attempt == f.cfg.MaxRetries {
			break
		}
		select {
		case <-ctx.Done():
			return decimal.Zero, ctx.Err()
		case <-time.After(time.Duration(attempt) * f.cfg.RetryDelay):
		}
	}
	return decimal.Zero, fmt.Errorf("failed to fetch price after %d attempts: %w", f.cfg.MaxRetries, lastErr)
}

func (f *HTTPFeed) fetchOnce(ctx context.Context, endpoint string) (decimal.Decimal, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return decimal.Zero, fmt.Errorf("failed to create request: %w", err)
	}
	resp, err := f.client.Do(req)
	if err != nil {
		return decimal.Zero, fmt.Errorf("HTTP request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return decimal.Zero, fmt.Errorf("HTTP request returned status %d", resp.StatusCode)
	}

	var body priceResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return decimal.Zero, fmt.Errorf("failed to decode response: %w", err)
	}
	price, err := decimal.NewFromString(body.Price)
	if err != nil {
		return decimal.Zero, fmt.Errorf("failed to parse price %q: %w", body.Price, err)
	}
	if !price.IsPositive() {
		return decimal.Zero, fmt.Errorf("non-positive price %s", price)
	}
	return price, nil
}

// Close releases idle connections
func (f *HTTPFeed) Close() error {
	f.client.CloseIdleConnections()
	return nil
}

// Chain asks each feed in turn and returns the first positive answer
type Chain []core.PriceFeed

// GetPrice implements core.PriceFeed
func (c Chain) GetPrice(ctx context.Context, runeID string) (decimal.Decimal, bool) {
	for _, feed := range c {
		if feed == nil {
			continue
		}
		if price, ok := feed.GetPrice(ctx, runeID); ok && price.IsPositive() {
			return price, true
		}
	}
	return decimal.Zero, false
}

var (
	_ core.PriceFeed = (*HTTPFeed)(nil)
	_ core.PriceFeed = Chain(nil)
)
