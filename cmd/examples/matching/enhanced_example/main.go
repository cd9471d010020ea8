package main

import (
	"context"
	"fmt"

	"github.com/fatih/color"
	"github.com/shopspring/decimal"

	"github.com/erain9/runebook/pkg/backend/memory"
	"github.com/erain9/runebook/pkg/core"
	"github.com/erain9/runebook/pkg/messaging"
)

const runeID = "840000:1"

// A walk through one aggressive order sweeping several price levels
func main() {
	ctx := context.Background()
	events := messaging.NewMockMessageSender()
	txs := 0

	engine, err := core.NewEngine(core.EngineConfig{
		Policy: core.DefaultPolicy(),
		Store:  memory.NewMemoryBackend(),
		Settlement: core.NewLedgerDispatcher(core.SettlementLedgerFunc(
			func(context.Context, string, string, string, decimal.Decimal) (string, error) {
				txs++
				return fmt.Sprintf("tx-%d", txs), nil
			},
		)),
		Sender: events,
	})
	if err != nil {
		panic(err)
	}

	header := color.New(color.FgCyan, color.Bold).PrintlnFunc()

	header("STEP 1: Resting asks at three price levels")
	for _, ask := range []struct {
		amount, price int64
		address       string
	}{
		{5000, 1000, "bc1qalice"},
		{3000, 1020, "bc1qbob"},
		{7000, 1050, "bc1qcarol"},
	} {
		done := place(ctx, engine, core.Sell, ask.amount, ask.price, ask.address)
		fmt.Printf("  ask %s: %s @ %s\n", done.OrderID(), done.Order.Amount(), done.Order.Price())
	}
	printBook(engine)

	header("\nSTEP 2: A bid at 1030 for 9000 crosses the two cheapest levels")
	done := place(ctx, engine, core.Buy, 9000, 1030, "bc1qdave")
	for _, t := range done.Trades {
		fmt.Printf("  trade %s @ %s (ask %s) %s\n", t.Amount, t.Price, t.SellOrderID, t.TxRef)
	}
	fmt.Printf("  bid left with %s of %s, status %s\n",
		done.Order.Amount(), done.Order.OriginalAmount(), done.Order.Status())
	printBook(engine)

	header("\nSTEP 3: Events published")
	for _, e := range events.Events() {
		fmt.Printf("  %s order=%s trades=%d\n", e.Type, e.OrderID, len(e.Trades))
	}

	stats := engine.Stats()
	fmt.Printf("\n%d orders, %d settlements\n", stats.Orders, txs)
}

func place(ctx context.Context, engine *core.Engine, side core.Side, amount, price int64, address string) *core.Done {
	done, err := engine.PlaceOrder(ctx, core.PlaceOrderRequest{
		RuneID:  runeID,
		Side:    side,
		Amount:  decimal.NewFromInt(amount),
		Price:   decimal.NewFromInt(price),
		Address: address,
	})
	if err != nil {
		panic(err)
	}
	return done
}

func printBook(engine *core.Engine) {
	book := engine.GetOrderBook(runeID)
	for i := len(book.Asks) - 1; i >= 0; i-- {
		o := book.Asks[i]
		fmt.Printf("    %s  %8s  %s\n", color.RedString("ASK"), o.Amount(), o.Price())
	}
	fmt.Println("    ----------------------")
	for _, o := range book.Bids {
		fmt.Printf("    %s  %8s  %s\n", color.GreenString("BID"), o.Amount(), o.Price())
	}
}
