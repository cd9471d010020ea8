// Package api declares the RuneBook gRPC service: its messages, service
// descriptor and typed client. Messages travel as JSON; amounts and prices
// are decimal strings.
package api

import "time"

// Order is the wire form of an order
type Order struct {
	ID             string    `json:"id"`
	RuneID         string    `json:"runeId"`
	Side           string    `json:"side"`
	Amount         string    `json:"amount"`
	OriginalAmount string    `json:"originalAmount"`
	FilledAmount   string    `json:"filledAmount"`
	Price          string    `json:"price"`
	Address        string    `json:"address"`
	Status         string    `json:"status"`
	MatchedWith    string    `json:"matchedWith,omitempty"`
	CreatedAt      time.Time `json:"createdAt"`
	UpdatedAt      time.Time `json:"updatedAt"`
}

// Trade is the wire form of a settled trade
type Trade struct {
	ID          string    `json:"id"`
	RuneID      string    `json:"runeId"`
	BuyOrderID  string    `json:"buyOrderId"`
	SellOrderID string    `json:"sellOrderId"`
	Amount      string    `json:"amount"`
	Price       string    `json:"price"`
	TxRef       string    `json:"txRef,omitempty"`
	ExecutedAt  time.Time `json:"executedAt"`
}

// PlaceOrderRequest submits a limit order
type PlaceOrderRequest struct {
	RuneID  string `json:"runeId"`
	Side    string `json:"side"`
	Amount  string `json:"amount"`
	Price   string `json:"price"`
	Address string `json:"address"`
}

// PlaceOrderResponse carries the placed order after matching
type PlaceOrderResponse struct {
	OrderID string   `json:"orderId"`
	Order   *Order   `json:"order"`
	Trades  []*Trade `json:"trades"`
}

// CancelOrderRequest cancels a pending order
type CancelOrderRequest struct {
	OrderID string `json:"orderId"`
}

// GetOrderRequest looks up one order
type GetOrderRequest struct {
	OrderID string `json:"orderId"`
}

// OrderResponse wraps a single order
type OrderResponse struct {
	Order *Order `json:"order"`
}

// GetOrdersByAddressRequest lists an address's orders
type GetOrdersByAddressRequest struct {
	Address string `json:"address"`
}

// OrdersResponse wraps a list of orders, oldest first
type OrdersResponse struct {
	Orders []*Order `json:"orders"`
}

// GetOrderBookRequest reads a rune's book. Depth <= 0 returns every level.
type GetOrderBookRequest struct {
	RuneID string `json:"runeId"`
	Depth  int32  `json:"depth"`
}

// OrderBookResponse lists resting orders in priority order
type OrderBookResponse struct {
	RuneID      string    `json:"runeId"`
	Bids        []*Order  `json:"bids"`
	Asks        []*Order  `json:"asks"`
	LastUpdated time.Time `json:"lastUpdated"`
}

// GetStatsRequest has no fields
type GetStatsRequest struct{}

// OperationStats mirrors the engine's per-operation latency summary
type OperationStats struct {
	Operation string `json:"operation"`
	Count     int64  `json:"count"`
	Failures  int64  `json:"failures"`
	P50Micros int64  `json:"p50Micros"`
	P90Micros int64  `json:"p90Micros"`
	P99Micros int64  `json:"p99Micros"`
	MaxMicros int64  `json:"maxMicros"`
}

// StatsResponse reports engine bookkeeping
type StatsResponse struct {
	Operations              []OperationStats `json:"operations"`
	TotalBatches            int64            `json:"totalBatches"`
	SuccessfulBatches       int64            `json:"successfulBatches"`
	FailedBatches           int64            `json:"failedBatches"`
	AverageBatchSize        float64          `json:"averageBatchSize"`
	AverageProcessingMillis float64          `json:"averageProcessingMillis"`
	Orders                  int64            `json:"orders"`
	Runes                   int64            `json:"runes"`
}
