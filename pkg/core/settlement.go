package core

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"
)

// SettlementDispatcher moves the traded quantity between the two parties.
// A nil error means the transfer was accepted; the engine commits the trade
// only after that.
type SettlementDispatcher interface {
	Settle(ctx context.Context, trade *Trade) error
}

// SettlementLedger is the external service that actually transfers runes
type SettlementLedger interface {
	Transfer(ctx context.Context, fromAddress, toAddress, runeID string, amount decimal.Decimal) (string, error)
}

// SettlementLedgerFunc adapts a function to SettlementLedger
type SettlementLedgerFunc func(ctx context.Context, fromAddress, toAddress, runeID string, amount decimal.Decimal) (string, error)

// Transfer calls f
func (f SettlementLedgerFunc) Transfer(ctx context.Context, fromAddress, toAddress, runeID string, amount decimal.Decimal) (string, error) {
	return f(ctx, fromAddress, toAddress, runeID, amount)
}

// LedgerDispatcher settles a trade as one ledger transfer from the seller's
// address to the buyer's address.
type LedgerDispatcher struct {
	ledger SettlementLedger
}

// NewLedgerDispatcher creates a dispatcher over ledger
func NewLedgerDispatcher(ledger SettlementLedger) *LedgerDispatcher {
	return &LedgerDispatcher{ledger: ledger}
}

// Settle implements SettlementDispatcher. On success trade.TxRef holds the
// ledger's reference.
func (d *LedgerDispatcher) Settle(ctx context.Context, trade *Trade) error {
	txRef, err := d.ledger.Transfer(ctx, trade.SellAddress, trade.BuyAddress, trade.RuneID, trade.Amount)
	if err != nil {
		return fmt.Errorf("transfer %s %s from %s to %s: %w",
			trade.Amount, trade.RuneID, trade.SellAddress, trade.BuyAddress, err)
	}
	trade.TxRef = txRef
	return nil
}

var _ SettlementDispatcher = (*LedgerDispatcher)(nil)
