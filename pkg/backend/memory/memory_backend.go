package memory

import (
	"sync"

	"github.com/erain9/runebook/pkg/core"
)

// MemoryBackend implements core.OrderStore with in-memory storage. It keeps
// its own copies: callers never share an *core.Order with the backend.
type MemoryBackend struct {
	sync.RWMutex
	orders    map[string]*core.Order
	byAddress map[string][]string
}

// NewMemoryBackend creates new instance of MemoryBackend
func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{
		orders:    make(map[string]*core.Order),
		byAddress: make(map[string][]string),
	}
}

// GetOrder retrieves a copy of an order by ID
func (b *MemoryBackend) GetOrder(orderID string) (*core.Order, error) {
	b.RLock()
	defer b.RUnlock()

	order, ok := b.orders[orderID]
	if !ok {
		return nil, core.ErrNotFound
	}
	return order.Clone(), nil
}

// StoreOrder stores a new order and indexes it by address
func (b *MemoryBackend) StoreOrder(order *core.Order) error {
	b.Lock()
	defer b.Unlock()

	if _, exists := b.orders[order.ID()]; exists {
		return core.ErrOrderExists
	}

	b.orders[order.ID()] = order.Clone()
	b.byAddress[order.Address()] = append(b.byAddress[order.Address()], order.ID())
	return nil
}

// UpdateOrder replaces an existing order
func (b *MemoryBackend) UpdateOrder(order *core.Order) error {
	b.Lock()
	defer b.Unlock()

	if _, exists := b.orders[order.ID()]; !exists {
		return core.ErrNotFound
	}

	b.orders[order.ID()] = order.Clone()
	return nil
}

// OrdersByAddress returns copies of the address's orders in insertion order
func (b *MemoryBackend) OrdersByAddress(address string) ([]*core.Order, error) {
	b.RLock()
	defer b.RUnlock()

	ids := b.byAddress[address]
	orders := make([]*core.Order, 0, len(ids))
	for _, id := range ids {
		if order, ok := b.orders[id]; ok {
			orders = append(orders, order.Clone())
		}
	}
	return orders, nil
}

// Count returns the number of stored orders
func (b *MemoryBackend) Count() int {
	b.RLock()
	defer b.RUnlock()
	return len(b.orders)
}

var _ core.OrderStore = (*MemoryBackend)(nil)
