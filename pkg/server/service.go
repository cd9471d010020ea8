// Package server exposes the matching engine over gRPC.
package server

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"

	"github.com/erain9/runebook/pkg/api"
	"github.com/erain9/runebook/pkg/core"
	"github.com/erain9/runebook/pkg/logging"
)

// OrderIDTrailer names the trailer that carries the placed order's id when
// PlaceOrder fails during settlement.
const OrderIDTrailer = "x-order-id"

// MaxBookDepth caps GetOrderBook responses
const MaxBookDepth = 500

// Engine is the subset of *core.Engine the service needs
type Engine interface {
	PlaceOrder(ctx context.Context, req core.PlaceOrderRequest) (*core.Done, error)
	CancelOrder(ctx context.Context, orderID string) (*core.Order, error)
	GetOrder(orderID string) (*core.Order, error)
	GetOrdersByAddress(address string) ([]*core.Order, error)
	GetOrderBook(runeID string) *core.BookSnapshot
	Stats() core.Stats
}

// GRPCRuneBookService implements the RuneBook gRPC interface
type GRPCRuneBookService struct {
	api.UnimplementedRuneBookServer
	engine Engine
}

// NewGRPCRuneBookService creates a new GRPCRuneBookService
func NewGRPCRuneBookService(engine Engine) *GRPCRuneBookService {
	return &GRPCRuneBookService{engine: engine}
}

// ParsePlaceOrderRequest converts wire fields into an engine request. Only
// syntax is checked here: amount and price must be plain non-negative
// integers of bounded length. Policy checks belong to the engine.
func ParsePlaceOrderRequest(req *api.PlaceOrderRequest) (core.PlaceOrderRequest, error) {
	side, err := core.ParseSide(req.Side)
	if err != nil {
		return core.PlaceOrderRequest{}, err
	}
	amount, err := core.ParseAmount(req.Amount)
	if err != nil {
		return core.PlaceOrderRequest{}, fmt.Errorf("amount: %w", err)
	}
	price, err := core.ParseAmount(req.Price)
	if err != nil {
		return core.PlaceOrderRequest{}, fmt.Errorf("price: %w", err)
	}
	return core.PlaceOrderRequest{
		RuneID:  strings.TrimSpace(req.RuneID),
		Side:    side,
		Amount:  amount,
		Price:   price,
		Address: strings.TrimSpace(req.Address),
	}, nil
}

// PlaceOrder implements the PlaceOrder RPC method
func (s *GRPCRuneBookService) PlaceOrder(ctx context.Context, req *api.PlaceOrderRequest) (*api.PlaceOrderResponse, error) {
	logger := logging.FromContext(ctx).With().
		Str("method", "PlaceOrder").
		Str("rune_id", req.RuneID).
		Logger()
	logger.Debug().
		Str("side", req.Side).
		Str("amount", req.Amount).
		Str("price", req.Price).
		Msg("Request received")

	placeReq, err := ParsePlaceOrderRequest(req)
	if err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}

	done, err := s.engine.PlaceOrder(ctx, placeReq)
	if err != nil {
		if done != nil {
			_ = grpc.SetTrailer(ctx, metadata.Pairs(OrderIDTrailer, done.OrderID()))
		}
		return nil, StatusFromError(err)
	}
	return ToPlaceOrderResponse(done), nil
}

// CancelOrder implements the CancelOrder RPC method
func (s *GRPCRuneBookService) CancelOrder(ctx context.Context, req *api.CancelOrderRequest) (*api.OrderResponse, error) {
	logger := logging.FromContext(ctx)
	logger.Debug().
		Str("method", "CancelOrder").
		Str("order_id", req.OrderID).
		Msg("Request received")

	if req.OrderID == "" {
		return nil, status.Error(codes.InvalidArgument, "order id is required")
	}
	order, err := s.engine.CancelOrder(ctx, req.OrderID)
	if err != nil {
		return nil, StatusFromError(err)
	}
	return &api.OrderResponse{Order: ToAPIOrder(order)}, nil
}

// GetOrder implements the GetOrder RPC method
func (s *GRPCRuneBookService) GetOrder(ctx context.Context, req *api.GetOrderRequest) (*api.OrderResponse, error) {
	order, err := s.engine.GetOrder(req.OrderID)
	if err != nil {
		return nil, StatusFromError(err)
	}
	return &api.OrderResponse{Order: ToAPIOrder(order)}, nil
}

// GetOrdersByAddress implements the GetOrdersByAddress RPC method
func (s *GRPCRuneBookService) GetOrdersByAddress(ctx context.Context, req *api.GetOrdersByAddressRequest) (*api.OrdersResponse, error) {
	if req.Address == "" {
		return nil, status.Error(codes.InvalidArgument, "address is required")
	}
	orders, err := s.engine.GetOrdersByAddress(req.Address)
	if err != nil {
		logger := logging.FromContext(ctx)
		logger.Error().Err(err).Str("address", req.Address).Msg("Failed to list orders")
		return nil, StatusFromError(err)
	}
	return &api.OrdersResponse{Orders: ToAPIOrders(orders)}, nil
}

// GetOrderBook implements the GetOrderBook RPC method
func (s *GRPCRuneBookService) GetOrderBook(ctx context.Context, req *api.GetOrderBookRequest) (*api.OrderBookResponse, error) {
	if req.RuneID == "" {
		return nil, status.Error(codes.InvalidArgument, "rune id is required")
	}
	depth := int(req.Depth)
	if depth <= 0 || depth > MaxBookDepth {
		depth = MaxBookDepth
	}
	return ToOrderBookResponse(s.engine.GetOrderBook(req.RuneID), depth), nil
}

// GetStats implements the GetStats RPC method
func (s *GRPCRuneBookService) GetStats(ctx context.Context, _ *api.GetStatsRequest) (*api.StatsResponse, error) {
	return ToStatsResponse(s.engine.Stats()), nil
}

// StatusFromError maps engine errors onto gRPC status codes
func StatusFromError(err error) error {
	var validation *core.ValidationError
	switch {
	case err == nil:
		return nil
	case errors.As(err, &validation):
		return status.Error(codes.InvalidArgument, validation.Error())
	case errors.Is(err, core.ErrNotFound):
		return status.Error(codes.NotFound, err.Error())
	case errors.Is(err, core.ErrInvalidState):
		return status.Error(codes.FailedPrecondition, err.Error())
	case errors.Is(err, core.ErrSettlementFailed):
		return status.Error(codes.Aborted, err.Error())
	case errors.Is(err, context.Canceled):
		return status.Error(codes.Canceled, err.Error())
	case errors.Is(err, context.DeadlineExceeded):
		return status.Error(codes.DeadlineExceeded, err.Error())
	default:
		return status.Error(codes.Internal, err.Error())
	}
}

var _ api.RuneBookServer = (*GRPCRuneBookService)(nil)
