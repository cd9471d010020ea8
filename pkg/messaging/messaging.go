package messaging

import (
	"context"
	"errors"
	"time"
)

// MessageSender defines an interface for publishing engine events.
// This keeps the core package independent of Kafka and websocket transports.
type MessageSender interface {
	SendEvent(ctx context.Context, event *Event) error
}

// EventType names what happened to a rune's book
type EventType string

// Event types
const (
	EventOrderPlaced     EventType = "order.placed"
	EventOrderCancelled  EventType = "order.cancelled"
	EventSettlementError EventType = "settlement.failed"
)

// Event is published once per state-changing engine operation, after the
// rune's lock has been released.
type Event struct {
	Type      EventType `json:"type"`
	RuneID    string    `json:"runeId"`
	OrderID   string    `json:"orderId"`
	Orders    []Order   `json:"orders"`
	Trades    []Trade   `json:"trades"`
	Book      *Book     `json:"book,omitempty"`
	Error     string    `json:"error,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// Order is the wire form of an order whose state changed
type Order struct {
	ID             string    `json:"id"`
	RuneID         string    `json:"runeId"`
	Side           string    `json:"side"`
	Amount         string    `json:"amount"`
	OriginalAmount string    `json:"originalAmount"`
	Price          string    `json:"price"`
	Address        string    `json:"address"`
	Status         string    `json:"status"`
	MatchedWith    string    `json:"matchedWith,omitempty"`
	CreatedAt      time.Time `json:"createdAt"`
}

// Trade represents a single settled trade
type Trade struct {
	ID          string    `json:"id"`
	BuyOrderID  string    `json:"buyOrderId"`
	SellOrderID string    `json:"sellOrderId"`
	Amount      string    `json:"amount"`
	Price       string    `json:"price"`
	TxRef       string    `json:"txRef,omitempty"`
	ExecutedAt  time.Time `json:"executedAt"`
}

// Book is the top of a rune's book after the operation
type Book struct {
	Bids []BookEntry `json:"bids"`
	Asks []BookEntry `json:"asks"`
}

// BookEntry is one resting order in a Book
type BookEntry struct {
	OrderID string `json:"orderId"`
	Price   string `json:"price"`
	Amount  string `json:"amount"`
}

// MultiSender fans an event out to several senders. Every sender is tried;
// the returned error joins all failures.
type MultiSender []MessageSender

// SendEvent implements MessageSender
func (m MultiSender) SendEvent(ctx context.Context, event *Event) error {
	var errs []error
	for _, s := range m {
		if s == nil {
			continue
		}
		if err := s.SendEvent(ctx, event); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

var _ MessageSender = MultiSender(nil)
