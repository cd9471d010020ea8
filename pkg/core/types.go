package core

import (
	"time"

	"github.com/shopspring/decimal"
)

// Trade is one pairing of a crossing bid and ask produced by a matching pass
type Trade struct {
	ID          string          `json:"id"`
	RuneID      string          `json:"runeId"`
	BuyOrderID  string          `json:"buyOrderId"`
	SellOrderID string          `json:"sellOrderId"`
	BuyAddress  string          `json:"buyAddress"`
	SellAddress string          `json:"sellAddress"`
	Amount      decimal.Decimal `json:"amount"`
	Price       decimal.Decimal `json:"price"`
	ExecutedAt  time.Time       `json:"executedAt"`
	// TxRef is the ledger's reference, set once settlement succeeded
	TxRef string `json:"txRef,omitempty"`
}

// BookSnapshot is a read-only view of one rune's book
type BookSnapshot struct {
	RuneID      string    `json:"runeId"`
	Bids        []*Order  `json:"bids"`
	Asks        []*Order  `json:"asks"`
	LastUpdated time.Time `json:"lastUpdated"`
}

// BestBid returns the highest resting bid or nil
func (s *BookSnapshot) BestBid() *Order {
	if len(s.Bids) == 0 {
		return nil
	}
	return s.Bids[0]
}

// BestAsk returns the lowest resting ask or nil
func (s *BookSnapshot) BestAsk() *Order {
	if len(s.Asks) == 0 {
		return nil
	}
	return s.Asks[0]
}

func emptySnapshot(runeID string) *BookSnapshot {
	return &BookSnapshot{
		RuneID: runeID,
		Bids:   []*Order{},
		Asks:   []*Order{},
	}
}

// PlaceOrderRequest carries the caller-supplied fields of a new order
type PlaceOrderRequest struct {
	RuneID  string          `json:"runeId"`
	Side    Side            `json:"side"`
	Amount  decimal.Decimal `json:"amount"`
	Price   decimal.Decimal `json:"price"`
	Address string          `json:"address"`
}

// Done contains information about the order execution result
type Done struct {
	// Order is a copy of the placed order after matching and settlement
	Order *Order
	// Trades settled during this placement, in emission order
	Trades []*Trade
	// Updated holds copies of every resting order the pass touched, the placed one excluded
	Updated []*Order
}

// OrderID is a shorthand for d.Order.ID()
func (d *Done) OrderID() string {
	if d == nil || d.Order == nil {
		return ""
	}
	return d.Order.ID()
}
