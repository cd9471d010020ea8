package server

import (
	"github.com/erain9/runebook/pkg/api"
	"github.com/erain9/runebook/pkg/core"
)

// ToAPIOrder converts a core order to its wire form
func ToAPIOrder(o *core.Order) *api.Order {
	if o == nil {
		return nil
	}
	return &api.Order{
		ID:             o.ID(),
		RuneID:         o.RuneID(),
		Side:           o.Side().String(),
		Amount:         o.Amount().String(),
		OriginalAmount: o.OriginalAmount().String(),
		FilledAmount:   o.FilledAmount().String(),
		Price:          o.Price().String(),
		Address:        o.Address(),
		Status:         string(o.Status()),
		MatchedWith:    o.MatchedWith(),
		CreatedAt:      o.CreatedAt(),
		UpdatedAt:      o.UpdatedAt(),
	}
}

// ToAPIOrders converts a slice, never returning nil
func ToAPIOrders(orders []*core.Order) []*api.Order {
	out := make([]*api.Order, 0, len(orders))
	for _, o := range orders {
		out = append(out, ToAPIOrder(o))
	}
	return out
}

// ToAPITrade converts a core trade to its wire form
func ToAPITrade(t *core.Trade) *api.Trade {
	return &api.Trade{
		ID:          t.ID,
		RuneID:      t.RuneID,
		BuyOrderID:  t.BuyOrderID,
		SellOrderID: t.SellOrderID,
		Amount:      t.Amount.String(),
		Price:       t.Price.String(),
		TxRef:       t.TxRef,
		ExecutedAt:  t.ExecutedAt,
	}
}

// ToPlaceOrderResponse converts an engine result
func ToPlaceOrderResponse(done *core.Done) *api.PlaceOrderResponse {
	resp := &api.PlaceOrderResponse{
		OrderID: done.OrderID(),
		Order:   ToAPIOrder(done.Order),
		Trades:  make([]*api.Trade, 0, len(done.Trades)),
	}
	for _, t := range done.Trades {
		resp.Trades = append(resp.Trades, ToAPITrade(t))
	}
	return resp
}

// ToOrderBookResponse converts a snapshot, keeping at most depth orders per
// side when depth is positive.
func ToOrderBookResponse(snapshot *core.BookSnapshot, depth int) *api.OrderBookResponse {
	bids, asks := snapshot.Bids, snapshot.Asks
	if depth > 0 {
		if len(bids) > depth {
			bids = bids[:depth]
		}
		if len(asks) > depth {
			asks = asks[:depth]
		}
	}
	return &api.OrderBookResponse{
		RuneID:      snapshot.RuneID,
		Bids:        ToAPIOrders(bids),
		Asks:        ToAPIOrders(asks),
		LastUpdated: snapshot.LastUpdated,
	}
}

// ToStatsResponse converts engine statistics
func ToStatsResponse(s core.Stats) *api.StatsResponse {
	resp := &api.StatsResponse{
		Operations:              make([]api.OperationStats, 0, len(s.Operations)),
		TotalBatches:            s.Batches.Total,
		SuccessfulBatches:       s.Batches.Successful,
		FailedBatches:           s.Batches.Failed,
		AverageBatchSize:        s.Batches.AverageSize,
		AverageProcessingMillis: float64(s.Batches.AverageProcessingTime.Microseconds()) / 1000,
		Orders:                  int64(s.Orders),
		Runes:                   int64(s.Runes),
	}
	for _, op := range s.Operations {
		resp.Operations = append(resp.Operations, api.OperationStats{
			Operation: op.Operation,
			Count:     op.Count,
			Failures:  op.Failures,
			P50Micros: op.P50,
			P90Micros: op.P90,
			P99Micros: op.P99,
			MaxMicros: op.Max,
		})
	}
	return resp
}
