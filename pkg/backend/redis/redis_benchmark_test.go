package redis

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/erain9/runebook/pkg/core"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
)

func skipIfNoRedis(b *testing.B) *redis.Client {
	client := redis.NewClient(&redis.Options{Addr: testRedisAddr})
	if err := client.Ping(context.Background()).Err(); err != nil {
		b.Skipf("Skipping Redis benchmark: %v", err)
	}
	if err := client.FlushDB(context.Background()).Err(); err != nil {
		b.Fatalf("Failed to flush Redis DB: %v", err)
	}
	return client
}

func benchOrder(id string) *core.Order {
	order, _ := core.NewOrder(id, "DOG", core.Buy, decimal.NewFromInt(1000), decimal.NewFromInt(1000), "bc1qbench", time.Now(), 1)
	return order
}

func BenchmarkRedisBackend_StoreOrder(b *testing.B) {
	backend := NewRedisBackend(skipIfNoRedis(b), "bench:store", nil)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = backend.StoreOrder(benchOrder(fmt.Sprintf("order-%d", i)))
	}
}

func BenchmarkRedisBackend_GetOrder(b *testing.B) {
	backend := NewRedisBackend(skipIfNoRedis(b), "bench:get", nil)

	const numOrders = 1000
	for i := 0; i < numOrders; i++ {
		_ = backend.StoreOrder(benchOrder(fmt.Sprintf("order-%d", i)))
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, _ = backend.GetOrder(fmt.Sprintf("order-%d", i%numOrders))
	}
}

func BenchmarkRedisBackend_UpdateOrder(b *testing.B) {
	backend := NewRedisBackend(skipIfNoRedis(b), "bench:update", nil)
	order := benchOrder("order-0")
	_ = backend.StoreOrder(order)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = backend.UpdateOrder(order)
	}
}
