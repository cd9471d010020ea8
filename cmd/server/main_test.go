package main

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/erain9/runebook/config"
	"github.com/erain9/runebook/pkg/api"
	"github.com/erain9/runebook/pkg/pricefeed"
	"github.com/erain9/runebook/pkg/rpc"
)

func testConfig() *config.Config {
	cfg := config.Default()
	cfg.Server.GRPCAddr = "127.0.0.1:0"
	cfg.Server.HTTPAddr = "127.0.0.1:0"
	cfg.HTTP.RateLimit = 0
	return cfg
}

func startApp(t *testing.T, cfg *config.Config) *app {
	t.Helper()
	gin.SetMode(gin.TestMode)
	ctx, cancel := context.WithCancel(zerolog.Nop().WithContext(context.Background()))
	t.Cleanup(cancel)

	a, err := newApp(ctx, cfg)
	require.NoError(t, err)
	require.NoError(t, a.start())
	t.Cleanup(func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		a.shutdown(shutdownCtx)
	})
	return a
}

func TestServerStartup(t *testing.T) {
	a := startApp(t, testConfig())
	ctx := context.Background()

	conn, err := grpc.NewClient(a.grpcLis.Addr().String(), grpc.WithTransportCredentials(insecure.NewCredentials()))
	require.NoError(t, err)
	defer conn.Close()
	client := api.NewRuneBookClient(conn)

	buy, err := client.PlaceOrder(ctx, &api.PlaceOrderRequest{
		RuneID: "840000:1", Side: "buy", Amount: "1000", Price: "1000", Address: "bc1qbuyer",
	})
	require.NoError(t, err)
	sell, err := client.PlaceOrder(ctx, &api.PlaceOrderRequest{
		RuneID: "840000:1", Side: "sell", Amount: "1000", Price: "1000", Address: "bc1qseller",
	})
	require.NoError(t, err)
	require.Len(t, sell.Trades, 1)
	assert.True(t, strings.HasPrefix(sell.Trades[0].TxRef, "dev-"), sell.Trades[0].TxRef)

	// the same engine answers over HTTP
	resp, err := http.Get("http://" + a.httpLis.Addr().String() + "/api/v1/orders/" + buy.OrderID)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var got api.OrderResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&got))
	assert.Equal(t, "completed", got.Order.Status)
}

func TestServerShutdown(t *testing.T) {
	gin.SetMode(gin.TestMode)
	ctx := zerolog.Nop().WithContext(context.Background())
	a, err := newApp(ctx, testConfig())
	require.NoError(t, err)
	require.NoError(t, a.start())
	addr := a.grpcLis.Addr().String()

	shutdownCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	a.shutdown(shutdownCtx)

	conn, err := grpc.NewClient(addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	require.NoError(t, err)
	defer conn.Close()

	callCtx, callCancel := context.WithTimeout(ctx, time.Second)
	defer callCancel()
	_, err = api.NewRuneBookClient(conn).GetStats(callCtx, &api.GetStatsRequest{})
	assert.Error(t, err, "expected error after server shutdown")
}

func TestNewAppRejectsUnknownBackend(t *testing.T) {
	cfg := testConfig()
	cfg.Store.Backend = "pebble"
	_, err := newApp(zerolog.Nop().WithContext(context.Background()), cfg)
	assert.ErrorContains(t, err, "unknown store backend")
}

func TestLedgerSelection(t *testing.T) {
	a := &app{cfg: testConfig(), logger: zerolog.Nop()}
	defer a.close()
	ctx := context.Background()

	ledger, err := a.ledger(ctx, nil)
	require.NoError(t, err)
	ref, err := ledger.Transfer(ctx, "a", "b", "840000:1", decimal.NewFromInt(1000))
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(ref, "dev-"))

	node, err := rpc.NewClient(rpc.Config{URL: "http://127.0.0.1:8332"}, zerolog.Nop())
	require.NoError(t, err)
	ledger, err = a.ledger(ctx, node)
	require.NoError(t, err)
	assert.Same(t, node, ledger)
}

func TestPriceFeedSelection(t *testing.T) {
	a := &app{cfg: testConfig(), logger: zerolog.Nop()}
	defer a.close()

	feed, err := a.priceFeed(nil)
	require.NoError(t, err)
	assert.Nil(t, feed)

	a.cfg.PriceFeed.URL = "http://127.0.0.1:8090"
	node, err := rpc.NewClient(rpc.Config{URL: "http://127.0.0.1:8332"}, zerolog.Nop())
	require.NoError(t, err)
	feed, err = a.priceFeed(node)
	require.NoError(t, err)
	chain, ok := feed.(pricefeed.Chain)
	require.True(t, ok)
	assert.Len(t, chain, 2)
}
