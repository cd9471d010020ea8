package marketmaker

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/erain9/runebook/pkg/api"
)

// PriceFetcher defines the interface for fetching current market prices
type PriceFetcher interface {
	// FetchPrice returns the current reference price for the configured rune
	FetchPrice(ctx context.Context) (decimal.Decimal, error)
	// Close releases any resources held by the price fetcher
	Close() error
}

// OrderPlacer defines the interface for placing and canceling orders
type OrderPlacer interface {
	PlaceOrder(ctx context.Context, req *api.PlaceOrderRequest) (*api.PlaceOrderResponse, error)
	CancelOrder(ctx context.Context, orderID string) error
	Close() error
}

// MarketMakerStrategy defines the interface for market making strategies
type MarketMakerStrategy interface {
	// CalculateOrders calculates the orders to be placed based on the current price
	CalculateOrders(ctx context.Context, currentPrice decimal.Decimal, address string) ([]*api.PlaceOrderRequest, error)
}
