package marketmaker

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/erain9/runebook/pkg/pricefeed"
)

// feedPriceFetcher implements PriceFetcher on top of the rune price service
type feedPriceFetcher struct {
	feed   *pricefeed.HTTPFeed
	runeID string
	logger zerolog.Logger
}

// NewPriceFetcher creates a PriceFetcher for cfg.RuneID. Every call goes to
// the price service; quotes should never be built from a stale cache.
func NewPriceFetcher(cfg *Config, logger zerolog.Logger) (PriceFetcher, error) {
	feed, err := pricefeed.NewHTTPFeed(pricefeed.Config{
		BaseURL:     cfg.PriceSourceURL,
		HTTPTimeout: cfg.HTTPTimeout,
		MaxRetries:  cfg.MaxRetries,
	}, logger)
	if err != nil {
		return nil, err
	}
	return &feedPriceFetcher{
		feed:   feed,
		runeID: cfg.RuneID,
		logger: logger.With().Str("component", "priceFetcher").Logger(),
	}, nil
}

// FetchPrice implements PriceFetcher
func (f *feedPriceFetcher) FetchPrice(ctx context.Context) (decimal.Decimal, error) {
	price, err := f.feed.FetchPrice(ctx, f.runeID)
	if err != nil {
		return decimal.Zero, fmt.Errorf("failed to fetch price for %s: %w", f.runeID, err)
	}

	f.logger.Debug().
		Str("rune_id", f.runeID).
		Str("price", price.String()).
		Msg("Successfully fetched price")
	return price, nil
}

// Close implements PriceFetcher
func (f *feedPriceFetcher) Close() error {
	return f.feed.Close()
}
