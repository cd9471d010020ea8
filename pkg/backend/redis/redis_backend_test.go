package redis

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/erain9/runebook/pkg/core"
	"github.com/erain9/runebook/pkg/testutil"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

const testRedisAddr = "localhost:6379"

// setupTestRedis initializes a Redis client for testing.
// Flushes the DB before returning the client.
func setupTestRedis(t *testing.T) *redis.Client {
	testutil.SkipIfRedisUnavailable(t, testRedisAddr)

	client := redis.NewClient(&redis.Options{Addr: testRedisAddr})
	require.NoError(t, client.FlushDB(context.Background()).Err())
	t.Cleanup(func() { _ = client.Close() })
	return client
}

func testOrder(t *testing.T, id, address string) *core.Order {
	t.Helper()
	order, err := core.NewOrder(id, "DOG", core.Sell, decimal.NewFromInt(2000), decimal.NewFromInt(1000), address, time.Now().UTC(), 1)
	require.NoError(t, err)
	return order
}

func TestNewRedisBackend(t *testing.T) {
	backend := NewRedisBackend(redis.NewClient(&redis.Options{Addr: testRedisAddr}), "test:new", nil)

	assert.NotNil(t, backend.logger)
	assert.Equal(t, "test:new:order:o-1", backend.orderKey("o-1"))
	assert.Equal(t, "test:new:addr:bc1q", backend.addressKey("bc1q"))
	assert.Equal(t, "test:new:count", backend.countKey)
}

func TestRedisBackend_StoreGetUpdate(t *testing.T) {
	client := setupTestRedis(t)
	backend := NewRedisBackend(client, "test:orders", zaptest.NewLogger(t))

	order := testOrder(t, "o-1", "bc1qa")
	require.NoError(t, backend.StoreOrder(order))
	assert.ErrorIs(t, backend.StoreOrder(order), core.ErrOrderExists)

	stored, err := backend.GetOrder("o-1")
	require.NoError(t, err)
	assert.Equal(t, "o-1", stored.ID())
	assert.Equal(t, "2000", stored.Amount().String())
	assert.Equal(t, core.StatusPending, stored.Status())

	registry := core.NewRegistry(backend)
	_, err = registry.Cancel("o-1")
	require.NoError(t, err)

	cancelled, err := backend.GetOrder("o-1")
	require.NoError(t, err)
	assert.Equal(t, core.StatusCancelled, cancelled.Status())

	_, err = backend.GetOrder("missing")
	assert.ErrorIs(t, err, core.ErrNotFound)
	assert.ErrorIs(t, backend.UpdateOrder(testOrder(t, "missing", "bc1qa")), core.ErrNotFound)
	assert.Equal(t, 1, backend.Count())
}

func TestRedisBackend_OrdersByAddress(t *testing.T) {
	client := setupTestRedis(t)
	backend := NewRedisBackend(client, "test:addr", zaptest.NewLogger(t))

	for i := 0; i < 3; i++ {
		require.NoError(t, backend.StoreOrder(testOrder(t, fmt.Sprintf("a-%d", i), "bc1qa")))
	}
	require.NoError(t, backend.StoreOrder(testOrder(t, "b-0", "bc1qb")))

	orders, err := backend.OrdersByAddress("bc1qa")
	require.NoError(t, err)
	require.Len(t, orders, 3)
	for i, o := range orders {
		assert.Equal(t, fmt.Sprintf("a-%d", i), o.ID())
	}

	none, err := backend.OrdersByAddress("bc1qnone")
	require.NoError(t, err)
	assert.Empty(t, none)
	assert.Equal(t, 4, backend.Count())
}

func TestRedisBackend_BacksEngine(t *testing.T) {
	client := setupTestRedis(t)
	backend := NewRedisBackend(client, "test:engine", zaptest.NewLogger(t))

	ledger := core.SettlementLedgerFunc(func(context.Context, string, string, string, decimal.Decimal) (string, error) {
		return "tx", nil
	})
	engine, err := core.NewEngine(core.EngineConfig{
		Policy:     core.DefaultPolicy(),
		Store:      backend,
		Settlement: core.NewLedgerDispatcher(ledger),
	})
	require.NoError(t, err)

	ctx := context.Background()
	buy, err := engine.PlaceOrder(ctx, core.PlaceOrderRequest{
		RuneID: "DOG", Side: core.Buy, Amount: decimal.NewFromInt(1000), Price: decimal.NewFromInt(1000), Address: "bc1qbuyer",
	})
	require.NoError(t, err)
	sell, err := engine.PlaceOrder(ctx, core.PlaceOrderRequest{
		RuneID: "DOG", Side: core.Sell, Amount: decimal.NewFromInt(1000), Price: decimal.NewFromInt(1000), Address: "bc1qseller",
	})
	require.NoError(t, err)
	require.Len(t, sell.Trades, 1)

	stored, err := backend.GetOrder(buy.OrderID())
	require.NoError(t, err)
	assert.Equal(t, core.StatusCompleted, stored.Status())
	assert.Equal(t, sell.OrderID(), stored.MatchedWith())
}
