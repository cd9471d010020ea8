package core

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

// Registry is the authoritative record of every accepted order. It assigns
// ids and applies status transitions; storage is delegated to an OrderStore.
// Matched orders the store failed to take are kept in unsaved, which shadows
// the store until a later commit of the same rune writes them through.
type Registry struct {
	store OrderStore
	seq   atomic.Uint64
	now   func() time.Time
	newID func() string

	mu      sync.RWMutex
	unsaved map[string]*Order
}

// NewRegistry creates a registry on top of the given store
func NewRegistry(store OrderStore) *Registry {
	return &Registry{
		store:   store,
		now:     time.Now,
		newID:   uuid.NewString,
		unsaved: make(map[string]*Order),
	}
}

// Create assigns a fresh id and placement time to the request and stores the order.
func (r *Registry) Create(req PlaceOrderRequest) (*Order, error) {
	order, err := NewOrder(r.newID(), req.RuneID, req.Side, req.Amount, req.Price, req.Address, r.now(), r.seq.Add(1))
	if err != nil {
		return nil, err
	}
	if err := r.store.StoreOrder(order.Clone()); err != nil {
		return nil, fmt.Errorf("store order %s: %w", order.ID(), err)
	}
	return order, nil
}

// Get returns a copy of the order with the given id
func (r *Registry) Get(orderID string) (*Order, bool) {
	r.mu.RLock()
	order, ok := r.unsaved[orderID]
	r.mu.RUnlock()
	if ok {
		return order.Clone(), true
	}

	order, err := r.store.GetOrder(orderID)
	if err != nil || order == nil {
		return nil, false
	}
	return order, true
}

// ByAddress returns copies of every order placed from address, oldest first
func (r *Registry) ByAddress(address string) ([]*Order, error) {
	orders, err := r.store.OrdersByAddress(address)
	if err != nil {
		return nil, err
	}

	r.mu.RLock()
	defer r.mu.RUnlock()
	for i, o := range orders {
		if u, ok := r.unsaved[o.ID()]; ok {
			orders[i] = u.Clone()
		}
	}
	return orders, nil
}

// Cancel moves a pending order to cancelled. Orders that already started
// filling, or reached a terminal status, are rejected with ErrInvalidState.
func (r *Registry) Cancel(orderID string) (*Order, error) {
	order, err := r.lookup(orderID)
	if err != nil {
		return nil, err
	}
	if order.Status() != StatusPending {
		return nil, fmt.Errorf("cannot cancel order in %s status: %w", order.Status(), ErrInvalidState)
	}

	order.cancel(r.now())
	if err := r.store.UpdateOrder(order.Clone()); err != nil {
		return nil, fmt.Errorf("update order %s: %w", orderID, err)
	}
	r.mu.Lock()
	delete(r.unsaved, orderID)
	r.mu.Unlock()
	return order, nil
}

func (r *Registry) lookup(orderID string) (*Order, error) {
	if order, ok := r.Get(orderID); ok {
		return order, nil
	}
	// Get hides store errors; ask again to report them
	order, err := r.store.GetOrder(orderID)
	switch {
	case errors.Is(err, ErrNotFound), err == nil && order == nil:
		return nil, ErrNotFound
	case err != nil:
		return nil, err
	}
	return order, nil
}

// commit records the orders of runeID mutated by a settled matching pass.
// The in-memory view always takes them, so a settled trade can never match
// again. Store writes that fail stay unsaved and are retried, together with
// any earlier leftovers of the same rune, on the rune's next commit. Callers
// hold the rune's lock, which orders every write of a given order.
func (r *Registry) commit(runeID string, orders []*Order) error {
	r.mu.Lock()
	for _, o := range orders {
		r.unsaved[o.ID()] = o.Clone()
	}
	pending := make(map[string]*Order)
	for id, o := range r.unsaved {
		if o.RuneID() == runeID {
			pending[id] = o
		}
	}
	r.mu.Unlock()

	var errs []error
	for id, o := range pending {
		if err := r.store.UpdateOrder(o.Clone()); err != nil {
			errs = append(errs, fmt.Errorf("update order %s: %w", id, err))
			continue
		}
		r.mu.Lock()
		if r.unsaved[id] == o {
			delete(r.unsaved, id)
		}
		r.mu.Unlock()
	}
	return errors.Join(errs...)
}

// unsavedCount reports how many orders are waiting for a store write
func (r *Registry) unsavedCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.unsaved)
}

// Count returns the number of orders ever accepted
func (r *Registry) Count() int {
	return r.store.Count()
}
