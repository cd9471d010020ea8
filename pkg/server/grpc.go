package server

import (
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"

	"github.com/erain9/runebook/pkg/api"
	"github.com/erain9/runebook/pkg/logging"
	"github.com/erain9/runebook/pkg/otel"
)

// NewGRPCServer builds a gRPC server serving the RuneBook service, the
// standard health service and reflection. Calls are traced with otelgrpc and
// logged with the logging interceptors.
func NewGRPCServer(engine Engine, opts ...grpc.ServerOption) *grpc.Server {
	opts = append([]grpc.ServerOption{
		grpc.StatsHandler(otel.NewGRPCStatsHandler()),
		grpc.ChainUnaryInterceptor(logging.UnaryServerInterceptor()),
		grpc.ChainStreamInterceptor(logging.StreamServerInterceptor()),
	}, opts...)
	grpcServer := grpc.NewServer(opts...)

	api.RegisterRuneBookServer(grpcServer, NewGRPCRuneBookService(engine))

	healthServer := health.NewServer()
	healthServer.SetServingStatus(api.ServiceName, healthpb.HealthCheckResponse_SERVING)
	healthpb.RegisterHealthServer(grpcServer, healthServer)

	// Enable reflection for tools like grpcurl
	reflection.Register(grpcServer)
	return grpcServer
}
