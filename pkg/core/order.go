package core

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Side represents buy or sell side of the order
type Side int

// Order sides
const (
	Sell Side = iota
	Buy
)

// String returns side as string
func (s Side) String() string {
	switch s {
	case Buy:
		return "buy"
	case Sell:
		return "sell"
	default:
		return "unknown"
	}
}

// Valid reports whether s is Buy or Sell.
func (s Side) Valid() bool {
	return s == Buy || s == Sell
}

// ParseSide converts "buy"/"sell" (any case) into a Side.
func ParseSide(s string) (Side, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "buy":
		return Buy, nil
	case "sell":
		return Sell, nil
	default:
		return Sell, fmt.Errorf("unknown side %q", s)
	}
}

// MarshalJSON encodes the side as its string form
func (s Side) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.String())
}

// UnmarshalJSON decodes "buy" or "sell"
func (s *Side) UnmarshalJSON(data []byte) error {
	var str string
	if err := json.Unmarshal(data, &str); err != nil {
		return err
	}
	side, err := ParseSide(str)
	if err != nil {
		return err
	}
	*s = side
	return nil
}

// Status is the lifecycle state of an order
type Status string

// Order statuses
const (
	StatusPending         Status = "pending"
	StatusPartiallyFilled Status = "partiallyFilled"
	StatusCompleted       Status = "completed"
	StatusCancelled       Status = "cancelled"
)

// Resting reports whether an order in this status belongs in the book.
func (s Status) Resting() bool {
	return s == StatusPending || s == StatusPartiallyFilled
}

// Order stores information about order
type Order struct {
	id             string
	runeID         string
	side           Side
	amount         decimal.Decimal
	originalAmount decimal.Decimal
	price          decimal.Decimal
	address        string
	createdAt      time.Time
	updatedAt      time.Time
	seq            uint64
	status         Status
	matchedWith    string
}

// NewOrder creates a pending order. Amount and price must be non-negative integers.
func NewOrder(orderID, runeID string, side Side, amount, price decimal.Decimal, address string, createdAt time.Time, seq uint64) (*Order, error) {
	if !IsWholeAmount(amount) || amount.IsZero() {
		return nil, ErrInvalidAmount
	}
	if !IsWholeAmount(price) {
		return nil, ErrInvalidPrice
	}

	return &Order{
		id:             orderID,
		runeID:         runeID,
		side:           side,
		amount:         amount,
		originalAmount: amount,
		price:          price,
		address:        address,
		createdAt:      createdAt,
		updatedAt:      createdAt,
		seq:            seq,
		status:         StatusPending,
	}, nil
}

// ID returns OrderID field copy
func (o *Order) ID() string {
	return o.id
}

// RuneID returns the rune the order trades
func (o *Order) RuneID() string {
	return o.runeID
}

// Side returns side of the Order
func (o *Order) Side() Side {
	return o.side
}

// Amount returns the remaining quantity
func (o *Order) Amount() decimal.Decimal {
	return o.amount
}

// OriginalAmount returns the quantity the order was placed with
func (o *Order) OriginalAmount() decimal.Decimal {
	return o.originalAmount
}

// FilledAmount returns how much of the order has been matched
func (o *Order) FilledAmount() decimal.Decimal {
	return o.originalAmount.Sub(o.amount)
}

// Price returns Price field copy
func (o *Order) Price() decimal.Decimal {
	return o.price
}

// Address returns the settlement address
func (o *Order) Address() string {
	return o.address
}

// CreatedAt returns the placement time
func (o *Order) CreatedAt() time.Time {
	return o.createdAt
}

// UpdatedAt returns the time of the last mutation
func (o *Order) UpdatedAt() time.Time {
	return o.updatedAt
}

// Seq returns the engine-wide placement sequence number
func (o *Order) Seq() uint64 {
	return o.seq
}

// Status returns the lifecycle status
func (o *Order) Status() Status {
	return o.status
}

// MatchedWith returns the counterparty order id of the most recent trade
func (o *Order) MatchedWith() string {
	return o.matchedWith
}

// IsResting reports whether the order belongs in the book
func (o *Order) IsResting() bool {
	return o.status.Resting()
}

// fill removes qty from the remaining amount and moves the status forward.
// The caller guarantees qty <= amount.
func (o *Order) fill(qty decimal.Decimal, counterparty string, at time.Time) {
	o.amount = o.amount.Sub(qty)
	if o.amount.IsZero() {
		o.status = StatusCompleted
	} else {
		o.status = StatusPartiallyFilled
	}
	o.matchedWith = counterparty
	o.updatedAt = at
}

func (o *Order) cancel(at time.Time) {
	o.status = StatusCancelled
	o.updatedAt = at
}

// Clone returns a deep copy of the order
func (o *Order) Clone() *Order {
	if o == nil {
		return nil
	}
	c := *o
	return &c
}

type orderJSON struct {
	ID             string          `json:"id"`
	RuneID         string          `json:"runeId"`
	Side           Side            `json:"side"`
	Amount         decimal.Decimal `json:"amount"`
	OriginalAmount decimal.Decimal `json:"originalAmount"`
	Price          decimal.Decimal `json:"price"`
	Address        string          `json:"address"`
	CreatedAt      time.Time       `json:"createdAt"`
	UpdatedAt      time.Time       `json:"updatedAt"`
	Seq            uint64          `json:"seq"`
	Status         Status          `json:"status"`
	MatchedWith    string          `json:"matchedWith,omitempty"`
}

// MarshalJSON implements custom JSON marshaling for Order
func (o *Order) MarshalJSON() ([]byte, error) {
	return json.Marshal(orderJSON{
		ID:             o.id,
		RuneID:         o.runeID,
		Side:           o.side,
		Amount:         o.amount,
		OriginalAmount: o.originalAmount,
		Price:          o.price,
		Address:        o.address,
		CreatedAt:      o.createdAt,
		UpdatedAt:      o.updatedAt,
		Seq:            o.seq,
		Status:         o.status,
		MatchedWith:    o.matchedWith,
	})
}

// UnmarshalJSON implements custom JSON unmarshaling for Order
func (o *Order) UnmarshalJSON(data []byte) error {
	var v orderJSON
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}

	o.id = v.ID
	o.runeID = v.RuneID
	o.side = v.Side
	o.amount = v.Amount
	o.originalAmount = v.OriginalAmount
	o.price = v.Price
	o.address = v.Address
	o.createdAt = v.CreatedAt
	o.updatedAt = v.UpdatedAt
	o.seq = v.Seq
	o.status = v.Status
	o.matchedWith = v.MatchedWith
	return nil
}

// String implements Stringer interface
func (o *Order) String() string {
	return fmt.Sprintf("%s %s %s %s@%s [%s]", o.id, o.runeID, o.side, o.amount, o.price, o.status)
}
