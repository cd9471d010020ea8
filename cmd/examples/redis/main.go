package main

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	redisbackend "github.com/erain9/runebook/pkg/backend/redis"
	"github.com/erain9/runebook/pkg/core"
)

const (
	redisAddr = "localhost:6379"
	redisDB   = 0
	prefix    = "runebook-example"
	runeID    = "840000:1"
)

func main() {
	ctx := context.Background()

	client := redisbackend.NewClient(&redisbackend.RedisOptions{
		Addr: redisAddr,
		DB:   redisDB,
	})
	defer client.Close()

	logger, _ := zap.NewDevelopment()
	defer logger.Sync()

	backend := redisbackend.NewRedisBackend(client, prefix, logger)
	if err := backend.Ping(ctx); err != nil {
		panic(fmt.Sprintf("Failed to connect to Redis: %v", err))
	}
	fmt.Printf("Redis connection established: %s\n", redisAddr)

	engine, err := core.NewEngine(core.EngineConfig{
		Policy: core.DefaultPolicy(),
		Store:  backend,
		Settlement: core.NewLedgerDispatcher(core.SettlementLedgerFunc(
			func(context.Context, string, string, string, decimal.Decimal) (string, error) {
				return uuid.NewString(), nil
			},
		)),
	})
	if err != nil {
		panic(err)
	}

	buyer := "bc1qbuyer-" + uuid.NewString()[:8]
	seller := "bc1qseller-" + uuid.NewString()[:8]

	sell, err := engine.PlaceOrder(ctx, core.PlaceOrderRequest{
		RuneID: runeID, Side: core.Sell, Amount: decimal.NewFromInt(2000), Price: decimal.NewFromInt(1000), Address: seller,
	})
	if err != nil {
		panic(err)
	}
	fmt.Printf("Created sell order: %s\n", sell.OrderID())

	buy, err := engine.PlaceOrder(ctx, core.PlaceOrderRequest{
		RuneID: runeID, Side: core.Buy, Amount: decimal.NewFromInt(1000), Price: decimal.NewFromInt(1000), Address: buyer,
	})
	if err != nil {
		panic(err)
	}
	for _, t := range buy.Trades {
		fmt.Printf("Trade executed: %s @ %s sell=%s buy=%s\n", t.Amount, t.Price, t.SellOrderID, t.BuyOrderID)
	}

	// read the orders back from Redis rather than from the engine
	stored, err := backend.GetOrder(sell.OrderID())
	if err != nil {
		panic(err)
	}
	fmt.Println("\nOrders stored in Redis:")
	fmt.Printf("- %s\n", stored)

	orders, err := backend.OrdersByAddress(buyer)
	if err != nil {
		panic(err)
	}
	for _, o := range orders {
		fmt.Printf("- %s\n", o)
	}
	fmt.Printf("\nRedis holds %d orders under %q\n", backend.Count(), prefix)
}
