package core

import (
	"time"

	"github.com/erain9/runebook/pkg/messaging"
)

// eventBookDepth caps how many orders per side an event carries
const eventBookDepth = 50

func placedEvent(done *Done, snapshot *BookSnapshot) *messaging.Event {
	orders := make([]messaging.Order, 0, 1+len(done.Updated))
	orders = append(orders, toMessageOrder(done.Order))
	for _, o := range done.Updated {
		orders = append(orders, toMessageOrder(o))
	}

	trades := make([]messaging.Trade, 0, len(done.Trades))
	for _, t := range done.Trades {
		trades = append(trades, messaging.Trade{
			ID:          t.ID,
			BuyOrderID:  t.BuyOrderID,
			SellOrderID: t.SellOrderID,
			Amount:      t.Amount.String(),
			Price:       t.Price.String(),
			TxRef:       t.TxRef,
			ExecutedAt:  t.ExecutedAt,
		})
	}

	return &messaging.Event{
		Type:      messaging.EventOrderPlaced,
		RuneID:    done.Order.RuneID(),
		OrderID:   done.OrderID(),
		Orders:    orders,
		Trades:    trades,
		Book:      toMessageBook(snapshot),
		Timestamp: time.Now(),
	}
}

func cancelledEvent(order *Order, snapshot *BookSnapshot) *messaging.Event {
	return &messaging.Event{
		Type:      messaging.EventOrderCancelled,
		RuneID:    order.RuneID(),
		OrderID:   order.ID(),
		Orders:    []messaging.Order{toMessageOrder(order)},
		Trades:    []messaging.Trade{},
		Book:      toMessageBook(snapshot),
		Timestamp: time.Now(),
	}
}

func toMessageOrder(o *Order) messaging.Order {
	return messaging.Order{
		ID:             o.ID(),
		RuneID:         o.RuneID(),
		Side:           o.Side().String(),
		Amount:         o.Amount().String(),
		OriginalAmount: o.OriginalAmount().String(),
		Price:          o.Price().String(),
		Address:        o.Address(),
		Status:         string(o.Status()),
		MatchedWith:    o.MatchedWith(),
		CreatedAt:      o.CreatedAt(),
	}
}

func toMessageBook(s *BookSnapshot) *messaging.Book {
	if s == nil {
		return nil
	}
	entries := func(orders []*Order) []messaging.BookEntry {
		n := len(orders)
		if n > eventBookDepth {
			n = eventBookDepth
		}
		out := make([]messaging.BookEntry, 0, n)
		for _, o := range orders[:n] {
			out = append(out, messaging.BookEntry{
				OrderID: o.ID(),
				Price:   o.Price().String(),
				Amount:  o.Amount().String(),
			})
		}
		return out
	}
	return &messaging.Book{
		Bids: entries(s.Bids),
		Asks: entries(s.Asks),
	}
}
