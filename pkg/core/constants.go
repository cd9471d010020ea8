package core

import (
	"errors"
	"fmt"
	"strings"

	"github.com/nikolaydubina/fpdecimal"
	"github.com/shopspring/decimal"
)

// Errors
var (
	ErrInvalidAmount    = errors.New("invalid amount")
	ErrInvalidPrice     = errors.New("invalid price")
	ErrOrderExists      = errors.New("order exists")
	ErrNotFound         = errors.New("order not found")
	ErrInvalidState     = errors.New("invalid order state")
	ErrValidation       = errors.New("order validation failed")
	ErrSettlementFailed = errors.New("settlement failed")
	ErrCommitFailed     = errors.New("order store write failed")
)

// Engine-wide policy defaults
var (
	DefaultMinOrderAmount    = decimal.NewFromInt(1000)
	DefaultMaxOrderAmount    = decimal.NewFromInt(1000000)
	DefaultMaxPriceDeviation = fpdecimal.FromFloat(0.1)
	DefaultReferencePrice    = decimal.NewFromInt(1000)
)

// ValidationError lists every policy check a proposed order failed
type ValidationError struct {
	Reasons []string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid order: %s", strings.Join(e.Reasons, ", "))
}

// Unwrap lets errors.Is(err, ErrValidation) match
func (e *ValidationError) Unwrap() error {
	return ErrValidation
}

// SettlementError reports a trade the ledger refused. The trade and every later
// trade of the same matching pass were rolled back.
type SettlementError struct {
	Trade *Trade
	Err   error
}

func (e *SettlementError) Error() string {
	return fmt.Sprintf("settlement failed for trade %s (buy %s, sell %s): %v",
		e.Trade.ID, e.Trade.BuyOrderID, e.Trade.SellOrderID, e.Err)
}

// Unwrap exposes both ErrSettlementFailed and the ledger's error
func (e *SettlementError) Unwrap() []error {
	return []error{ErrSettlementFailed, e.Err}
}
