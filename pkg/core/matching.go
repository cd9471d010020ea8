package core

import (
	"time"
)

// orderLoader returns a private, mutable copy of a resting order
type orderLoader func(orderID string) (*Order, bool)

// matchResult is the outcome of one matching pass over working copies
type matchResult struct {
	trades  []*Trade
	touched map[string]*Order
}

// match walks the best bid and best ask of book while they cross. It never
// mutates the book or the registry: fills are applied to copies obtained from
// load, which are returned in touched.
func match(book *OrderBook, load orderLoader, now time.Time, newID func() string) *matchResult {
	res := &matchResult{touched: make(map[string]*Order)}

	get := func(id string) *Order {
		if o, ok := res.touched[id]; ok {
			return o
		}
		o, ok := load(id)
		if !ok {
			return nil
		}
		res.touched[id] = o
		return o
	}

	bi, ai := 0, 0
	for bi < len(book.bids) && ai < len(book.asks) {
		bid := get(book.bids[bi].id)
		if bid == nil || !bid.IsResting() {
			bi++
			continue
		}
		ask := get(book.asks[ai].id)
		if ask == nil || !ask.IsResting() {
			ai++
			continue
		}
		if bid.Price().LessThan(ask.Price()) {
			break
		}

		trade := &Trade{
			ID:          newID(),
			RuneID:      book.runeID,
			BuyOrderID:  bid.ID(),
			SellOrderID: ask.ID(),
			BuyAddress:  bid.Address(),
			SellAddress: ask.Address(),
			Amount:      minAmount(bid.Amount(), ask.Amount()),
			Price:       midPrice(bid.Price(), ask.Price()),
			ExecutedAt:  now,
		}
		applyTrade(bid, ask, trade)
		res.trades = append(res.trades, trade)

		if !bid.IsResting() {
			bi++
		}
		if !ask.IsResting() {
			ai++
		}
	}

	return res
}

// applyTrade decrements both sides by the trade amount and links them
func applyTrade(buy, sell *Order, trade *Trade) {
	buy.fill(trade.Amount, sell.ID(), trade.ExecutedAt)
	sell.fill(trade.Amount, buy.ID(), trade.ExecutedAt)
}

// replay rebuilds the state a list of settled trades leaves behind, starting
// from fresh copies of the committed orders.
func replay(trades []*Trade, load orderLoader) map[string]*Order {
	touched := make(map[string]*Order)
	get := func(id string) *Order {
		if o, ok := touched[id]; ok {
			return o
		}
		o, ok := load(id)
		if !ok {
			return nil
		}
		touched[id] = o
		return o
	}

	for _, t := range trades {
		buy, sell := get(t.BuyOrderID), get(t.SellOrderID)
		if buy == nil || sell == nil {
			continue
		}
		applyTrade(buy, sell, t)
	}
	return touched
}
