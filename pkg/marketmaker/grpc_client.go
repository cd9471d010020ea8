package marketmaker

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/status"

	"github.com/erain9/runebook/pkg/api"
	"github.com/erain9/runebook/pkg/otel"
)

// Ensure grpcOrderPlacer implements OrderPlacer interface
var _ OrderPlacer = (*grpcOrderPlacer)(nil)

// grpcOrderPlacer implements the OrderPlacer interface using a gRPC client.
type grpcOrderPlacer struct {
	client api.RuneBookClient
	conn   *grpc.ClientConn
	cfg    *Config
	logger zerolog.Logger
}

// NewGRPCOrderPlacer creates a new gRPC client connection and returns an OrderPlacer.
func NewGRPCOrderPlacer(cfg *Config, logger zerolog.Logger, opts ...grpc.DialOption) (OrderPlacer, error) {
	logger.Info().Str("address", cfg.RuneBookGRPCAddr).Msg("Connecting to RuneBook gRPC server")

	// Using insecure credentials for now. Add proper TLS in production.
	opts = append([]grpc.DialOption{
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithStatsHandler(otel.NewGRPCClientStatsHandler()),
		grpc.WithUserAgent("RuneBookMarketMaker/0.1"),
	}, opts...)

	conn, err := grpc.NewClient(cfg.RuneBookGRPCAddr, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create gRPC client for %s: %w", cfg.RuneBookGRPCAddr, err)
	}

	return newGRPCOrderPlacer(api.NewRuneBookClient(conn), conn, cfg, logger), nil
}

func newGRPCOrderPlacer(client api.RuneBookClient, conn *grpc.ClientConn, cfg *Config, logger zerolog.Logger) *grpcOrderPlacer {
	return &grpcOrderPlacer{
		client: client,
		conn:   conn,
		cfg:    cfg,
		logger: logger.With().Str("component", "grpcOrderPlacer").Logger(),
	}
}

// PlaceOrder sends a PlaceOrder request to the RuneBook service.
func (p *grpcOrderPlacer) PlaceOrder(ctx context.Context, req *api.PlaceOrderRequest) (*api.PlaceOrderResponse, error) {
	callCtx, cancel := context.WithTimeout(ctx, p.cfg.RequestTimeout)
	defer cancel()

	p.logger.Debug().
		Str("rune_id", req.RuneID).
		Str("side", req.Side).
		Str("amount", req.Amount).
		Str("price", req.Price).
		Msg("Sending PlaceOrder request")

	resp, err := p.client.PlaceOrder(callCtx, req)
	if err != nil {
		p.logger.Error().Err(err).
			Str("rune_id", req.RuneID).
			Str("side", req.Side).
			Msg("PlaceOrder RPC failed")
		return nil, fmt.Errorf("PlaceOrder failed: %w", err)
	}

	p.logger.Info().
		Str("order_id", resp.OrderID).
		Str("status", resp.Order.Status).
		Int("trades", len(resp.Trades)).
		Msg("Successfully placed order")
	return resp, nil
}

// CancelOrder sends a CancelOrder request to the RuneBook service. An order
// that is gone or no longer pending counts as cancelled.
func (p *grpcOrderPlacer) CancelOrder(ctx context.Context, orderID string) error {
	callCtx, cancel := context.WithTimeout(ctx, p.cfg.RequestTimeout)
	defer cancel()

	p.logger.Debug().Str("order_id", orderID).Msg("Sending CancelOrder request")

	_, err := p.client.CancelOrder(callCtx, &api.CancelOrderRequest{OrderID: orderID})
	if err != nil {
		switch status.Code(err) {
		case codes.NotFound, codes.FailedPrecondition:
			// already filled or cancelled; the goal is achieved
			p.logger.Info().Str("order_id", orderID).
				Str("code", status.Code(err).String()).
				Msg("CancelOrder skipped as order is no longer open")
			return nil
		}
		p.logger.Error().Err(err).Str("order_id", orderID).Msg("CancelOrder RPC failed")
		return fmt.Errorf("CancelOrder failed: %w", err)
	}

	p.logger.Info().Str("order_id", orderID).Msg("Successfully cancelled order")
	return nil
}

// Close closes the underlying gRPC connection.
func (p *grpcOrderPlacer) Close() error {
	if p.conn != nil {
		p.logger.Info().Msg("Closing gRPC connection")
		return p.conn.Close()
	}
	return nil
}
