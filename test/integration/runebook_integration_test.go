package integration

import (
	"context"
	"fmt"
	"net"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/test/bufconn"

	"github.com/erain9/runebook/pkg/api"
	"github.com/erain9/runebook/pkg/core"
	"github.com/erain9/runebook/pkg/messaging"
	"github.com/erain9/runebook/pkg/messaging/kafka"
	"github.com/erain9/runebook/pkg/server"
	"github.com/erain9/runebook/pkg/testutil"
)

const testRune = "840000:1"

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

type stack struct {
	client api.RuneBookClient
	store  *server.OrderStore
	events *kafka.EventConsumer
}

// setupStack runs the engine over Redis with events going to a fresh Kafka
// topic, served over an in-process gRPC listener
func setupStack(t *testing.T) *stack {
	t.Helper()
	redisAddr := envOr("REDIS_ADDR", "localhost:6379")
	kafkaAddr := envOr("KAFKA_ADDR", "localhost:9092")
	testutil.SkipIfDependenciesUnavailable(t, redisAddr, kafkaAddr)

	ctx := zerolog.Nop().WithContext(context.Background())
	suffix := uuid.NewString()[:8]

	store, err := server.OpenOrderStore(ctx, server.StoreOptions{
		Backend:     server.BackendRedis,
		RedisAddr:   redisAddr,
		RedisPrefix: "it-" + suffix,
	}, zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	topic := "runebook-it-" + suffix
	sender, err := kafka.NewKafkaMessageSender([]string{kafkaAddr}, topic)
	require.NoError(t, err)
	t.Cleanup(func() { _ = sender.Close() })

	// the first write creates the topic
	require.Eventually(t, func() bool {
		return sender.SendEvent(ctx, &messaging.Event{Type: messaging.EventOrderPlaced, RuneID: "warmup", Timestamp: time.Now()}) == nil
	}, 30*time.Second, 500*time.Millisecond)

	consumer, err := kafka.NewEventConsumer([]string{kafkaAddr}, topic, "it-"+suffix)
	require.NoError(t, err)
	t.Cleanup(func() { _ = consumer.Close() })

	engine, err := core.NewEngine(core.EngineConfig{
		Policy: core.DefaultPolicy(),
		Store:  store,
		Settlement: core.NewLedgerDispatcher(core.SettlementLedgerFunc(
			func(context.Context, string, string, string, decimal.Decimal) (string, error) {
				return "tx-" + uuid.NewString(), nil
			},
		)),
		Sender: sender,
	})
	require.NoError(t, err)

	lis := bufconn.Listen(1 << 20)
	grpcServer := server.NewGRPCServer(engine)
	go func() { _ = grpcServer.Serve(lis) }()
	t.Cleanup(grpcServer.Stop)

	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
			return lis.DialContext(ctx)
		}),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })

	return &stack{client: api.NewRuneBookClient(conn), store: store, events: consumer}
}

func TestPartialFillPersistsAndPublishes(t *testing.T) {
	s := setupStack(t)
	ctx := context.Background()

	buy, err := s.client.PlaceOrder(ctx, &api.PlaceOrderRequest{
		RuneID: testRune, Side: "buy", Amount: "1500", Price: "1000", Address: "bc1qbuyer",
	})
	require.NoError(t, err)
	sell, err := s.client.PlaceOrder(ctx, &api.PlaceOrderRequest{
		RuneID: testRune, Side: "sell", Amount: "1000", Price: "900", Address: "bc1qseller",
	})
	require.NoError(t, err)
	require.Len(t, sell.Trades, 1)
	assert.Equal(t, "950", sell.Trades[0].Price)

	// Redis holds the post-trade state
	storedBuy, err := s.store.GetOrder(buy.OrderID)
	require.NoError(t, err)
	assert.Equal(t, core.StatusPartiallyFilled, storedBuy.Status())
	assert.Equal(t, "500", storedBuy.Amount().String())

	storedSell, err := s.store.GetOrder(sell.OrderID)
	require.NoError(t, err)
	assert.Equal(t, core.StatusCompleted, storedSell.Status())

	// and so does a read through the service
	book, err := s.client.GetOrderBook(ctx, &api.GetOrderBookRequest{RuneID: testRune})
	require.NoError(t, err)
	require.Len(t, book.Bids, 1)
	assert.Equal(t, buy.OrderID, book.Bids[0].ID)
	assert.Empty(t, book.Asks)

	// the matching event reaches Kafka
	readCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	var matched *messaging.Event
	err = s.events.Consume(readCtx, func(event *messaging.Event) error {
		if event.OrderID == sell.OrderID {
			matched = event
			cancel()
		}
		return nil
	})
	require.NoError(t, err)
	require.NotNil(t, matched, "no event for order %s", sell.OrderID)
	assert.Equal(t, messaging.EventOrderPlaced, matched.Type)
	assert.Equal(t, testRune, matched.RuneID)
	require.Len(t, matched.Trades, 1)
}

func TestCancelPersists(t *testing.T) {
	s := setupStack(t)
	ctx := context.Background()

	placed, err := s.client.PlaceOrder(ctx, &api.PlaceOrderRequest{
		RuneID: testRune, Side: "sell", Amount: "1000", Price: "1050", Address: "bc1qseller",
	})
	require.NoError(t, err)

	_, err = s.client.CancelOrder(ctx, &api.CancelOrderRequest{OrderID: placed.OrderID})
	require.NoError(t, err)

	stored, err := s.store.GetOrder(placed.OrderID)
	require.NoError(t, err)
	assert.Equal(t, core.StatusCancelled, stored.Status())

	orders, err := s.client.GetOrdersByAddress(ctx, &api.GetOrdersByAddressRequest{Address: "bc1qseller"})
	require.NoError(t, err)
	ids := make([]string, 0, len(orders.Orders))
	for _, o := range orders.Orders {
		ids = append(ids, o.ID)
	}
	assert.Contains(t, ids, placed.OrderID, fmt.Sprintf("orders for bc1qseller: %v", ids))
}
