package marketmaker

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/erain9/runebook/pkg/api"
)

var (
	one     = decimal.NewFromInt(1)
	hundred = decimal.NewFromInt(100)
)

// LayeredSymmetricQuoting implements a symmetric market making strategy with
// multiple whole-number price levels. Levels further from the reference
// price than MaxDeviationPercent are not quoted, since the engine would
// reject them.
type LayeredSymmetricQuoting struct {
	cfg    *Config
	logger zerolog.Logger
}

// NewLayeredSymmetricQuoting creates a new LayeredSymmetricQuoting strategy
func NewLayeredSymmetricQuoting(cfg *Config, logger zerolog.Logger) MarketMakerStrategy {
	return &LayeredSymmetricQuoting{
		cfg:    cfg,
		logger: logger.With().Str("component", "LayeredSymmetricQuoting").Logger(),
	}
}

func percentOf(v decimal.Decimal, pct float64) decimal.Decimal {
	return v.Mul(decimal.NewFromFloat(pct)).Div(hundred).Floor()
}

// CalculateOrders implements MarketMakerStrategy
func (s *LayeredSymmetricQuoting) CalculateOrders(ctx context.Context, currentPrice decimal.Decimal, address string) ([]*api.PlaceOrderRequest, error) {
	center := currentPrice.Floor()
	if !center.IsPositive() {
		return nil, fmt.Errorf("cannot quote around price %s", currentPrice)
	}

	halfSpread := decimal.Max(one, percentOf(center, s.cfg.BaseSpreadPercent/2))
	step := decimal.Max(one, percentOf(center, s.cfg.PriceStepPercent))
	band := percentOf(center, s.cfg.MaxDeviationPercent)

	orders := make([]*api.PlaceOrderRequest, 0, s.cfg.NumLevels*2)
	for i := 1; i <= s.cfg.NumLevels; i++ {
		offset := halfSpread.Add(step.Mul(decimal.NewFromInt(int64(i - 1))))
		if offset.GreaterThan(band) {
			break
		}
		bid := center.Sub(offset)
		if !bid.IsPositive() {
			break
		}
		ask := center.Add(offset)

		orders = append(orders,
			&api.PlaceOrderRequest{
				RuneID:  s.cfg.RuneID,
				Side:    "buy",
				Amount:  s.cfg.OrderSize,
				Price:   bid.String(),
				Address: address,
			},
			&api.PlaceOrderRequest{
				RuneID:  s.cfg.RuneID,
				Side:    "sell",
				Amount:  s.cfg.OrderSize,
				Price:   ask.String(),
				Address: address,
			},
		)

		s.logger.Debug().
			Int("level", i).
			Str("bid_price", bid.String()).
			Str("ask_price", ask.String()).
			Str("amount", s.cfg.OrderSize).
			Msg("Calculated order pair")
	}

	if len(orders) == 0 {
		return nil, fmt.Errorf("price %s leaves no room to quote inside a %.2f%% band", center, s.cfg.MaxDeviationPercent)
	}
	return orders, nil
}
