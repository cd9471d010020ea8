package core

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/erain9/runebook/pkg/messaging"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

var errStoreDown = errors.New("store: i/o timeout")

// mapStore is an in-package OrderStore used by the core tests
type mapStore struct {
	mu     sync.RWMutex
	orders map[string]*Order
	byAddr map[string][]string

	// failUpdates is how many upcoming UpdateOrder calls fail
	failUpdates int
}

func newMapStore() *mapStore {
	return &mapStore{
		orders: make(map[string]*Order),
		byAddr: make(map[string][]string),
	}
}

func (m *mapStore) GetOrder(orderID string) (*Order, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	o, ok := m.orders[orderID]
	if !ok {
		return nil, ErrNotFound
	}
	return o.Clone(), nil
}

func (m *mapStore) StoreOrder(order *Order) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.orders[order.ID()]; ok {
		return ErrOrderExists
	}
	m.orders[order.ID()] = order.Clone()
	m.byAddr[order.Address()] = append(m.byAddr[order.Address()], order.ID())
	return nil
}

func (m *mapStore) failNextUpdates(n int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failUpdates = n
}

func (m *mapStore) UpdateOrder(order *Order) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failUpdates > 0 {
		m.failUpdates--
		return errStoreDown
	}
	if _, ok := m.orders[order.ID()]; !ok {
		return ErrNotFound
	}
	m.orders[order.ID()] = order.Clone()
	return nil
}

func (m *mapStore) OrdersByAddress(address string) ([]*Order, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*Order, 0, len(m.byAddr[address]))
	for _, id := range m.byAddr[address] {
		out = append(out, m.orders[id].Clone())
	}
	return out, nil
}

func (m *mapStore) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.orders)
}

type transferCall struct {
	from, to, runeID string
	amount           decimal.Decimal
}

// recordingLedger accepts every transfer except the call numbers in failOn
type recordingLedger struct {
	mu     sync.Mutex
	calls  []transferCall
	failOn map[int]error
}

func (l *recordingLedger) Transfer(_ context.Context, from, to, runeID string, amount decimal.Decimal) (string, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.calls = append(l.calls, transferCall{from: from, to: to, runeID: runeID, amount: amount})
	n := len(l.calls)
	if err, ok := l.failOn[n]; ok {
		return "", err
	}
	return fmt.Sprintf("tx-%d", n), nil
}

func (l *recordingLedger) Calls() []transferCall {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]transferCall, len(l.calls))
	copy(out, l.calls)
	return out
}

type testEngine struct {
	*Engine
	store  *mapStore
	ledger *recordingLedger
	sender *messaging.MockMessageSender
}

func newTestEngine(t *testing.T) *testEngine {
	t.Helper()
	store := newMapStore()
	ledger := &recordingLedger{failOn: map[int]error{}}
	sender := messaging.NewMockMessageSender()

	engine, err := NewEngine(EngineConfig{
		Policy:     DefaultPolicy(),
		Store:      store,
		Settlement: NewLedgerDispatcher(ledger),
		Sender:     sender,
	})
	require.NoError(t, err)

	return &testEngine{Engine: engine, store: store, ledger: ledger, sender: sender}
}

func buyReq(runeID string, amount, price int64) PlaceOrderRequest {
	return PlaceOrderRequest{
		RuneID:  runeID,
		Side:    Buy,
		Amount:  decimal.NewFromInt(amount),
		Price:   decimal.NewFromInt(price),
		Address: "bc1qbuyer",
	}
}

func sellReq(runeID string, amount, price int64) PlaceOrderRequest {
	return PlaceOrderRequest{
		RuneID:  runeID,
		Side:    Sell,
		Amount:  decimal.NewFromInt(amount),
		Price:   decimal.NewFromInt(price),
		Address: "bc1qseller",
	}
}

func dec(v int64) decimal.Decimal {
	return decimal.NewFromInt(v)
}

func bookIDs(orders []*Order) []string {
	out := make([]string, len(orders))
	for i, o := range orders {
		out[i] = o.ID()
	}
	return out
}
