// Package marketmaker runs a liquidity bot that keeps a symmetric ladder of
// quotes around a rune's reference price.
package marketmaker

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// MarketMaker represents the market making service
type MarketMaker struct {
	cfg          *Config
	logger       zerolog.Logger
	orderPlacer  OrderPlacer
	priceFetcher PriceFetcher
	strategy     MarketMakerStrategy
	activeOrders sync.Map // order id -> struct{}
	stopCh       chan struct{}
	stopOnce     sync.Once
	wg           sync.WaitGroup
}

// NewMarketMaker creates a new market maker service
func NewMarketMaker(cfg *Config, logger zerolog.Logger, orderPlacer OrderPlacer, priceFetcher PriceFetcher, strategy MarketMakerStrategy) *MarketMaker {
	return &MarketMaker{
		cfg:          cfg,
		logger:       logger.With().Str("component", "MarketMaker").Str("address", cfg.MakerAddress).Logger(),
		orderPlacer:  orderPlacer,
		priceFetcher: priceFetcher,
		strategy:     strategy,
		stopCh:       make(chan struct{}),
	}
}

// Start begins the market making process
func (m *MarketMaker) Start(ctx context.Context) error {
	m.logger.Info().
		Str("rune_id", m.cfg.RuneID).
		Dur("update_interval", m.cfg.UpdateInterval).
		Msg("Starting market maker service")

	m.wg.Add(1)
	go m.run(ctx)
	return nil
}

// Stop gracefully shuts down the market maker and withdraws its quotes
func (m *MarketMaker) Stop(ctx context.Context) error {
	m.logger.Info().Msg("Stopping market maker service")
	m.stopOnce.Do(func() { close(m.stopCh) })

	done := make(chan struct{})
	go func() {
		m.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		m.logger.Info().Msg("Market maker stopped successfully")
	case <-ctx.Done():
		return fmt.Errorf("timeout waiting for market maker to stop: %w", ctx.Err())
	}

	if err := m.cancelAllOrders(ctx); err != nil {
		m.logger.Error().Err(err).Msg("Failed to cancel all orders during shutdown")
		return fmt.Errorf("failed to cancel orders during shutdown: %w", err)
	}
	return nil
}

// ActiveOrders returns the ids of the quotes currently tracked
func (m *MarketMaker) ActiveOrders() []string {
	var ids []string
	m.activeOrders.Range(func(key, _ any) bool {
		ids = append(ids, key.(string))
		return true
	})
	return ids
}

// run is the main market making loop
func (m *MarketMaker) run(ctx context.Context) {
	defer m.wg.Done()

	// quote immediately rather than waiting a full interval
	if err := m.UpdateOrders(ctx); err != nil {
		m.logger.Error().Err(err).Msg("Failed to update orders")
	}

	ticker := time.NewTicker(m.cfg.UpdateInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			m.logger.Info().Msg("Context cancelled, stopping market maker loop")
			return
		case <-m.stopCh:
			m.logger.Info().Msg("Stop signal received, stopping market maker loop")
			return
		case <-ticker.C:
			if err := m.UpdateOrders(ctx); err != nil {
				m.logger.Error().Err(err).Msg("Failed to update orders")
			}
		}
	}
}

// UpdateOrders performs a single requote: fetch the price, withdraw the old
// ladder and place the new one.
func (m *MarketMaker) UpdateOrders(ctx context.Context) error {
	price, err := m.priceFetcher.FetchPrice(ctx)
	if err != nil {
		return fmt.Errorf("failed to fetch price: %w", err)
	}

	orders, err := m.strategy.CalculateOrders(ctx, price, m.cfg.MakerAddress)
	if err != nil {
		return fmt.Errorf("failed to calculate orders: %w", err)
	}

	if err := m.cancelAllOrders(ctx); err != nil {
		return fmt.Errorf("failed to cancel existing orders: %w", err)
	}

	placed := 0
	for _, order := range orders {
		resp, err := m.orderPlacer.PlaceOrder(ctx, order)
		if err != nil {
			m.logger.Error().Err(err).
				Str("side", order.Side).
				Str("price", order.Price).
				Msg("Failed to place order")
			continue
		}
		placed++

		if resp.Order != nil && resp.Order.Status == "pending" {
			m.activeOrders.Store(resp.OrderID, struct{}{})
		}
		m.logger.Debug().
			Str("order_id", resp.OrderID).
			Str("side", order.Side).
			Str("price", order.Price).
			Int("trades", len(resp.Trades)).
			Msg("Successfully placed order")
	}

	m.logger.Info().
		Str("price", price.String()).
		Int("placed", placed).
		Int("requested", len(orders)).
		Msg("Quotes refreshed")
	return nil
}

// cancelAllOrders cancels all tracked active orders
func (m *MarketMaker) cancelAllOrders(ctx context.Context) error {
	var lastErr error
	m.activeOrders.Range(func(key, _ any) bool {
		orderID := key.(string)
		if err := m.orderPlacer.CancelOrder(ctx, orderID); err != nil {
			m.logger.Error().Err(err).Str("order_id", orderID).Msg("Failed to cancel order")
			lastErr = err
			return true
		}
		m.activeOrders.Delete(orderID)
		return true
	})
	return lastErr
}
