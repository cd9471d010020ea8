package core

import (
	"context"
	"sync"

	"github.com/shopspring/decimal"
)

// PriceFeed is an external source of reference prices
type PriceFeed interface {
	GetPrice(ctx context.Context, runeID string) (decimal.Decimal, bool)
}

// PriceFeedFunc adapts a function to PriceFeed
type PriceFeedFunc func(ctx context.Context, runeID string) (decimal.Decimal, bool)

// GetPrice calls f
func (f PriceFeedFunc) GetPrice(ctx context.Context, runeID string) (decimal.Decimal, bool) {
	return f(ctx, runeID)
}

// Oracle resolves the reference price of a rune: the external feed when it
// answers, else the last traded price, else a fixed default.
type Oracle struct {
	feed         PriceFeed
	defaultPrice decimal.Decimal

	mu        sync.RWMutex
	lastTrade map[string]decimal.Decimal
}

// NewOracle creates an oracle. feed may be nil.
func NewOracle(feed PriceFeed, defaultPrice decimal.Decimal) *Oracle {
	if !defaultPrice.IsPositive() {
		defaultPrice = DefaultReferencePrice
	}
	return &Oracle{
		feed:         feed,
		defaultPrice: defaultPrice,
		lastTrade:    make(map[string]decimal.Decimal),
	}
}

// Get never fails and always returns a positive price
func (o *Oracle) Get(ctx context.Context, runeID string) decimal.Decimal {
	if o.feed != nil {
		if price, ok := o.feed.GetPrice(ctx, runeID); ok && price.IsPositive() {
			return price
		}
	}
	if price, ok := o.LastTradePrice(runeID); ok {
		return price
	}
	return o.defaultPrice
}

// LastTradePrice returns the price of the most recent settled trade of runeID
func (o *Oracle) LastTradePrice(runeID string) (decimal.Decimal, bool) {
	o.mu.RLock()
	defer o.mu.RUnlock()
	price, ok := o.lastTrade[runeID]
	return price, ok
}

// RecordTrade remembers price as the latest traded price of runeID
func (o *Oracle) RecordTrade(runeID string, price decimal.Decimal) {
	if !price.IsPositive() {
		return
	}
	o.mu.Lock()
	o.lastTrade[runeID] = price
	o.mu.Unlock()
}
