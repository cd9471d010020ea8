package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/erain9/runebook/pkg/backend/memory"
	"github.com/erain9/runebook/pkg/core"
)

const runeID = "840000:1"

func main() {
	ctx := context.Background()

	// Trades settle against an in-memory ledger that only hands out references
	ledger := core.SettlementLedgerFunc(func(context.Context, string, string, string, decimal.Decimal) (string, error) {
		return uuid.NewString(), nil
	})
	engine, err := core.NewEngine(core.EngineConfig{
		Policy:     core.DefaultPolicy(),
		Store:      memory.NewMemoryBackend(),
		Settlement: core.NewLedgerDispatcher(ledger),
	})
	if err != nil {
		panic(err)
	}

	fmt.Println("== Full match ==")
	place(ctx, engine, core.Buy, 1000, 1000, "bc1qbuyer")
	place(ctx, engine, core.Sell, 1000, 1000, "bc1qseller")
	printBook(engine)

	fmt.Println("\n== Partial fill ==")
	residual := place(ctx, engine, core.Buy, 1500, 1000, "bc1qbuyer")
	place(ctx, engine, core.Sell, 1000, 900, "bc1qseller")
	printBook(engine)

	fmt.Println("\n== Price deviation ==")
	_, err = engine.PlaceOrder(ctx, request(core.Buy, 1000, 2000, "bc1qbuyer"))
	var verr *core.ValidationError
	if errors.As(err, &verr) {
		fmt.Printf("Rejected: %s\n", verr)
	}

	fmt.Println("\n== Cancel after partial fill ==")
	if _, err := engine.CancelOrder(ctx, residual); errors.Is(err, core.ErrInvalidState) {
		fmt.Printf("Cancel refused: %v\n", err)
	}

	stats := engine.Stats()
	fmt.Printf("\nSummary: %d orders across %d runes\n", stats.Orders, stats.Runes)
}

func request(side core.Side, amount, price int64, address string) core.PlaceOrderRequest {
	return core.PlaceOrderRequest{
		RuneID:  runeID,
		Side:    side,
		Amount:  decimal.NewFromInt(amount),
		Price:   decimal.NewFromInt(price),
		Address: address,
	}
}

func place(ctx context.Context, engine *core.Engine, side core.Side, amount, price int64, address string) string {
	done, err := engine.PlaceOrder(ctx, request(side, amount, price, address))
	if err != nil {
		panic(err)
	}
	o := done.Order
	fmt.Printf("Placed %s %s %s @ %s -> %s\n", o.Side(), o.ID(), o.OriginalAmount(), o.Price(), o.Status())
	for _, t := range done.Trades {
		fmt.Printf("  Trade %s @ %s (buy=%s sell=%s tx=%s)\n", t.Amount, t.Price, t.BuyOrderID, t.SellOrderID, t.TxRef)
	}
	return o.ID()
}

func printBook(engine *core.Engine) {
	book := engine.GetOrderBook(runeID)
	fmt.Printf("Book %s: %d bids, %d asks\n", runeID, len(book.Bids), len(book.Asks))
	for _, o := range book.Bids {
		fmt.Printf("  bid %s @ %s (%s)\n", o.Amount(), o.Price(), o.Status())
	}
	for _, o := range book.Asks {
		fmt.Printf("  ask %s @ %s (%s)\n", o.Amount(), o.Price(), o.Status())
	}
}
