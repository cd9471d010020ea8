package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/erain9/runebook/pkg/api"
	"github.com/erain9/runebook/pkg/backend/memory"
	"github.com/erain9/runebook/pkg/core"
	"github.com/erain9/runebook/pkg/messaging"
)

const testRune = "840000:1"

func TestMain(m *testing.M) {
	gin.SetMode(gin.TestMode)
	os.Exit(m.Run())
}

type flakyLedger struct {
	mu   sync.Mutex
	fail error
}

func (l *flakyLedger) Transfer(_ context.Context, _, _, _ string, _ decimal.Decimal) (string, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.fail != nil {
		return "", l.fail
	}
	return "tx", nil
}

func (l *flakyLedger) failWith(err error) {
	l.mu.Lock()
	l.fail = err
	l.mu.Unlock()
}

type gateway struct {
	router *gin.Engine
	engine *core.Engine
	ledger *flakyLedger
}

func newGateway(t *testing.T, cfg Config, hub *Hub) *gateway {
	t.Helper()
	ledger := &flakyLedger{}
	ecfg := core.EngineConfig{
		Policy:     core.DefaultPolicy(),
		Store:      memory.NewMemoryBackend(),
		Settlement: core.NewLedgerDispatcher(ledger),
	}
	if hub != nil {
		ecfg.Sender = hub
	}
	engine, err := core.NewEngine(ecfg)
	require.NoError(t, err)
	return &gateway{router: NewRouter(engine, hub, cfg), engine: engine, ledger: ledger}
}

func (g *gateway) do(t *testing.T, method, path string, body any, headers ...string) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	w := httptest.NewRecorder()
	g.router.ServeHTTP(w, req)
	return w
}

func (g *gateway) place(t *testing.T, side, amount, price, address string) *httptest.ResponseRecorder {
	return g.do(t, http.MethodPost, "/api/v1/orders", api.PlaceOrderRequest{
		RuneID:  testRune,
		Side:    side,
		Amount:  amount,
		Price:   price,
		Address: address,
	})
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &v), w.Body.String())
	return v
}

func TestHealth(t *testing.T) {
	g := newGateway(t, Config{}, nil)
	w := g.do(t, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"ok"}`, w.Body.String())
	assert.NotEmpty(t, w.Header().Get("x-request-id"))
}

func TestPlaceOrderAndMatch(t *testing.T) {
	g := newGateway(t, Config{}, nil)

	w := g.place(t, "buy", "1000", "1000", "bc1qbuyer")
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	buy := decode[api.PlaceOrderResponse](t, w)
	assert.Equal(t, "pending", buy.Order.Status)

	w = g.place(t, "sell", "1000", "1000", "bc1qseller")
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	sell := decode[api.PlaceOrderResponse](t, w)
	require.Len(t, sell.Trades, 1)
	assert.Equal(t, buy.OrderID, sell.Trades[0].BuyOrderID)
	assert.Equal(t, "completed", sell.Order.Status)

	w = g.do(t, http.MethodGet, "/api/v1/orders/"+buy.OrderID, nil)
	require.Equal(t, http.StatusOK, w.Code)
	got := decode[api.OrderResponse](t, w)
	assert.Equal(t, "completed", got.Order.Status)

	w = g.do(t, http.MethodGet, "/api/v1/addresses/bc1qseller/orders", nil)
	require.Equal(t, http.StatusOK, w.Code)
	orders := decode[api.OrdersResponse](t, w)
	require.Len(t, orders.Orders, 1)
	assert.Equal(t, sell.OrderID, orders.Orders[0].ID)
}

func TestPlaceOrderRejected(t *testing.T) {
	g := newGateway(t, Config{}, nil)

	w := g.place(t, "buy", "500", "2000", "bc1qbuyer")
	require.Equal(t, http.StatusBadRequest, w.Code)
	body := decode[map[string]any](t, w)
	reasons, _ := body["reasons"].([]any)
	require.Len(t, reasons, 2)
	assert.Contains(t, reasons[0], "order amount below minimum")
	assert.Contains(t, reasons[1], "price deviation too high")

	w = g.place(t, "hold", "1000", "1000", "bc1qbuyer")
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = g.place(t, "buy", "1e999999999", "1000", "bc1qbuyer")
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "exponent notation")

	w = g.place(t, "sell", "1000", strings.Repeat("9", 100), "bc1qseller")
	assert.Equal(t, http.StatusBadRequest, w.Code)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/orders", bytes.NewBufferString("{"))
	rec := httptest.NewRecorder()
	g.router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestPlaceOrderSettlementFailure(t *testing.T) {
	g := newGateway(t, Config{}, nil)

	require.Equal(t, http.StatusCreated, g.place(t, "buy", "1000", "1000", "bc1qbuyer").Code)
	g.ledger.failWith(errors.New("node offline"))

	w := g.place(t, "sell", "1000", "1000", "bc1qseller")
	require.Equal(t, http.StatusBadGateway, w.Code)
	body := decode[map[string]any](t, w)
	orderID, _ := body["orderId"].(string)
	require.NotEmpty(t, orderID)
	assert.Contains(t, body["message"], "node offline")

	w = g.do(t, http.MethodGet, "/api/v1/orders/"+orderID, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "pending", decode[api.OrderResponse](t, w).Order.Status)
}

func TestCancelOrder(t *testing.T) {
	g := newGateway(t, Config{}, nil)
	placed := decode[api.PlaceOrderResponse](t, g.place(t, "buy", "2000", "1000", "bc1qbuyer"))

	w := g.do(t, http.MethodDelete, "/api/v1/orders/"+placed.OrderID, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "cancelled", decode[api.OrderResponse](t, w).Order.Status)

	w = g.do(t, http.MethodDelete, "/api/v1/orders/"+placed.OrderID, nil)
	assert.Equal(t, http.StatusConflict, w.Code)

	w = g.do(t, http.MethodDelete, "/api/v1/orders/missing", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestOrderBookDepth(t *testing.T) {
	g := newGateway(t, Config{}, nil)
	for i := 0; i < 3; i++ {
		require.Equal(t, http.StatusCreated, g.place(t, "buy", "1000", fmt.Sprint(950+i), "bc1qbuyer").Code)
	}
	require.Equal(t, http.StatusCreated, g.place(t, "sell", "1000", "1050", "bc1qseller").Code)

	w := g.do(t, http.MethodGet, "/api/v1/runes/"+testRune+"/book?depth=2", nil)
	require.Equal(t, http.StatusOK, w.Code)
	book := decode[api.OrderBookResponse](t, w)
	require.Len(t, book.Bids, 2)
	assert.Equal(t, "952", book.Bids[0].Price)
	assert.Equal(t, "951", book.Bids[1].Price)
	require.Len(t, book.Asks, 1)

	w = g.do(t, http.MethodGet, "/api/v1/runes/unknown/book", nil)
	require.Equal(t, http.StatusOK, w.Code)
	empty := decode[api.OrderBookResponse](t, w)
	assert.Equal(t, "unknown", empty.RuneID)
	assert.Empty(t, empty.Bids)
	assert.Empty(t, empty.Asks)

	w = g.do(t, http.MethodGet, "/api/v1/runes/"+testRune+"/book?depth=-1", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestStats(t *testing.T) {
	g := newGateway(t, Config{}, nil)
	require.Equal(t, http.StatusCreated, g.place(t, "buy", "1000", "1000", "bc1qbuyer").Code)

	w := g.do(t, http.MethodGet, "/api/v1/stats", nil)
	require.Equal(t, http.StatusOK, w.Code)
	stats := decode[api.StatsResponse](t, w)
	assert.Equal(t, int64(1), stats.Orders)
	assert.Equal(t, int64(1), stats.Runes)

	var found bool
	for _, op := range stats.Operations {
		if op.Operation == core.OpPlaceOrder {
			found = true
			assert.Equal(t, int64(1), op.Count)
		}
	}
	assert.True(t, found, "placeOrder stats missing")
}

func signToken(t *testing.T, method jwt.SigningMethod, key any) string {
	t.Helper()
	token := jwt.NewWithClaims(method, jwt.MapClaims{
		"sub": "bc1qbuyer",
		"exp": time.Now().Add(time.Hour).Unix(),
	})
	s, err := token.SignedString(key)
	require.NoError(t, err)
	return s
}

func TestAuthOnMutatingRoutes(t *testing.T) {
	const secret = "s3cret"
	g := newGateway(t, Config{JWTSecret: secret}, nil)
	body := api.PlaceOrderRequest{RuneID: testRune, Side: "buy", Amount: "1000", Price: "1000", Address: "bc1qbuyer"}

	w := g.do(t, http.MethodPost, "/api/v1/orders", body)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = g.do(t, http.MethodPost, "/api/v1/orders", body, "Authorization", "Token abc")
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = g.do(t, http.MethodPost, "/api/v1/orders", body,
		"Authorization", "Bearer "+signToken(t, jwt.SigningMethodHS256, []byte("wrong")))
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = g.do(t, http.MethodPost, "/api/v1/orders", body,
		"Authorization", "Bearer "+signToken(t, jwt.SigningMethodHS256, []byte(secret)))
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	placed := decode[api.PlaceOrderResponse](t, w)

	// reads stay public
	w = g.do(t, http.MethodGet, "/api/v1/orders/"+placed.OrderID, nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w = g.do(t, http.MethodDelete, "/api/v1/orders/"+placed.OrderID, nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestParseToken(t *testing.T) {
	claims, err := ParseToken(signToken(t, jwt.SigningMethodHS256, []byte("k")), "k")
	require.NoError(t, err)
	assert.Equal(t, "bc1qbuyer", claims["sub"])

	none := signToken(t, jwt.SigningMethodNone, jwt.UnsafeAllowNoneSignatureType)
	_, err = ParseToken(none, "k")
	assert.Error(t, err)

	_, err = ParseToken("not.a.token", "k")
	assert.Error(t, err)
}

func TestRateLimit(t *testing.T) {
	g := newGateway(t, Config{RateLimit: 1, RateBurst: 2}, nil)

	assert.Equal(t, http.StatusOK, g.do(t, http.MethodGet, "/health", nil).Code)
	assert.Equal(t, http.StatusOK, g.do(t, http.MethodGet, "/health", nil).Code)
	w := g.do(t, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, "1", w.Header().Get("Retry-After"))
}

func TestRateLimiterPerClient(t *testing.T) {
	l := NewRateLimiter(1, 1)
	assert.True(t, l.Allow("10.0.0.1"))
	assert.False(t, l.Allow("10.0.0.1"))
	assert.True(t, l.Allow("10.0.0.2"))
}

func TestCORSPreflight(t *testing.T) {
	g := newGateway(t, Config{CORSOrigins: []string{"https://app.example"}}, nil)

	req := httptest.NewRequest(http.MethodOptions, "/api/v1/orders", nil)
	req.Header.Set("Origin", "https://app.example")
	req.Header.Set("Access-Control-Request-Method", "POST")
	w := httptest.NewRecorder()
	g.router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "https://app.example", w.Header().Get("Access-Control-Allow-Origin"))
}

func TestStatusFromError(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{&core.ValidationError{Reasons: []string{"x"}}, http.StatusBadRequest},
		{core.ErrNotFound, http.StatusNotFound},
		{fmt.Errorf("cancel: %w", core.ErrInvalidState), http.StatusConflict},
		{core.ErrSettlementFailed, http.StatusBadGateway},
		{context.DeadlineExceeded, http.StatusGatewayTimeout},
		{errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.err.Error(), func(t *testing.T) {
			assert.Equal(t, tt.want, statusFromError(tt.err))
		})
	}
}

var _ messaging.MessageSender = NewHub()
