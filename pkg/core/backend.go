package core

// OrderStore defines the storage seam behind the Registry. Implementations
// persist order values; they never hand out pointers the caller can mutate.
type OrderStore interface {
	// Order operations
	GetOrder(orderID string) (*Order, error)
	StoreOrder(order *Order) error
	UpdateOrder(order *Order) error

	// Address index, insertion order
	OrdersByAddress(address string) ([]*Order, error)

	// Count returns how many orders the store holds
	Count() int
}
