package api

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// ServiceName is the fully qualified gRPC service name
const ServiceName = "runebook.v1.RuneBook"

// Full method names
const (
	RuneBook_PlaceOrder_FullMethodName         = "/runebook.v1.RuneBook/PlaceOrder"
	RuneBook_CancelOrder_FullMethodName        = "/runebook.v1.RuneBook/CancelOrder"
	RuneBook_GetOrder_FullMethodName           = "/runebook.v1.RuneBook/GetOrder"
	RuneBook_GetOrdersByAddress_FullMethodName = "/runebook.v1.RuneBook/GetOrdersByAddress"
	RuneBook_GetOrderBook_FullMethodName       = "/runebook.v1.RuneBook/GetOrderBook"
	RuneBook_GetStats_FullMethodName           = "/runebook.v1.RuneBook/GetStats"
)

// RuneBookServer is the server API for the RuneBook service
type RuneBookServer interface {
	PlaceOrder(context.Context, *PlaceOrderRequest) (*PlaceOrderResponse, error)
	CancelOrder(context.Context, *CancelOrderRequest) (*OrderResponse, error)
	GetOrder(context.Context, *GetOrderRequest) (*OrderResponse, error)
	GetOrdersByAddress(context.Context, *GetOrdersByAddressRequest) (*OrdersResponse, error)
	GetOrderBook(context.Context, *GetOrderBookRequest) (*OrderBookResponse, error)
	GetStats(context.Context, *GetStatsRequest) (*StatsResponse, error)
}

// UnimplementedRuneBookServer can be embedded to have forward compatible implementations
type UnimplementedRuneBookServer struct{}

func (UnimplementedRuneBookServer) PlaceOrder(context.Context, *PlaceOrderRequest) (*PlaceOrderResponse, error) {
	return nil, status.Error(codes.Unimplemented, "method PlaceOrder not implemented")
}
func (UnimplementedRuneBookServer) CancelOrder(context.Context, *CancelOrderRequest) (*OrderResponse, error) {
	return nil, status.Error(codes.Unimplemented, "method CancelOrder not implemented")
}
func (UnimplementedRuneBookServer) GetOrder(context.Context, *GetOrderRequest) (*OrderResponse, error) {
	return nil, status.Error(codes.Unimplemented, "method GetOrder not implemented")
}
func (UnimplementedRuneBookServer) GetOrdersByAddress(context.Context, *GetOrdersByAddressRequest) (*OrdersResponse, error) {
	return nil, status.Error(codes.Unimplemented, "method GetOrdersByAddress not implemented")
}
func (UnimplementedRuneBookServer) GetOrderBook(context.Context, *GetOrderBookRequest) (*OrderBookResponse, error) {
	return nil, status.Error(codes.Unimplemented, "method GetOrderBook not implemented")
}
func (UnimplementedRuneBookServer) GetStats(context.Context, *GetStatsRequest) (*StatsResponse, error) {
	return nil, status.Error(codes.Unimplemented, "method GetStats not implemented")
}

// RegisterRuneBookServer registers srv with s
func RegisterRuneBookServer(s grpc.ServiceRegistrar, srv RuneBookServer) {
	s.RegisterService(&RuneBook_ServiceDesc, srv)
}

// unaryHandler builds a grpc.MethodHandler for one RPC
func unaryHandler[Req any, Resp any](fullMethod string, call func(RuneBookServer, context.Context, *Req) (*Resp, error)) func(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	return func(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
		in := new(Req)
		if err := dec(in); err != nil {
			return nil, err
		}
		if interceptor == nil {
			return call(srv.(RuneBookServer), ctx, in)
		}
		info := &grpc.UnaryServerInfo{
			Server:     srv,
			FullMethod: fullMethod,
		}
		handler := func(ctx context.Context, req interface{}) (interface{}, error) {
			return call(srv.(RuneBookServer), ctx, req.(*Req))
		}
		return interceptor(ctx, in, info, handler)
	}
}

// RuneBook_ServiceDesc is the grpc.ServiceDesc for the RuneBook service
var RuneBook_ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*RuneBookServer)(nil),
	Methods: []grpc.MethodDesc{
		{
			MethodName: "PlaceOrder",
			Handler:    unaryHandler(RuneBook_PlaceOrder_FullMethodName, RuneBookServer.PlaceOrder),
		},
		{
			MethodName: "CancelOrder",
			Handler:    unaryHandler(RuneBook_CancelOrder_FullMethodName, RuneBookServer.CancelOrder),
		},
		{
			MethodName: "GetOrder",
			Handler:    unaryHandler(RuneBook_GetOrder_FullMethodName, RuneBookServer.GetOrder),
		},
		{
			MethodName: "GetOrdersByAddress",
			Handler:    unaryHandler(RuneBook_GetOrdersByAddress_FullMethodName, RuneBookServer.GetOrdersByAddress),
		},
		{
			MethodName: "GetOrderBook",
			Handler:    unaryHandler(RuneBook_GetOrderBook_FullMethodName, RuneBookServer.GetOrderBook),
		},
		{
			MethodName: "GetStats",
			Handler:    unaryHandler(RuneBook_GetStats_FullMethodName, RuneBookServer.GetStats),
		},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "runebook/v1/runebook.json",
}

// RuneBookClient is the client API for the RuneBook service
type RuneBookClient interface {
	PlaceOrder(ctx context.Context, in *PlaceOrderRequest, opts ...grpc.CallOption) (*PlaceOrderResponse, error)
	CancelOrder(ctx context.Context, in *CancelOrderRequest, opts ...grpc.CallOption) (*OrderResponse, error)
	GetOrder(ctx context.Context, in *GetOrderRequest, opts ...grpc.CallOption) (*OrderResponse, error)
	GetOrdersByAddress(ctx context.Context, in *GetOrdersByAddressRequest, opts ...grpc.CallOption) (*OrdersResponse, error)
	GetOrderBook(ctx context.Context, in *GetOrderBookRequest, opts ...grpc.CallOption) (*OrderBookResponse, error)
	GetStats(ctx context.Context, in *GetStatsRequest, opts ...grpc.CallOption) (*StatsResponse, error)
}

type runeBookClient struct {
	cc grpc.ClientConnInterface
}

// NewRuneBookClient creates a client on cc. Every call is sent with the JSON
// content-subtype.
func NewRuneBookClient(cc grpc.ClientConnInterface) RuneBookClient {
	return &runeBookClient{cc}
}

func (c *runeBookClient) invoke(ctx context.Context, method string, in, out interface{}, opts []grpc.CallOption) error {
	opts = append([]grpc.CallOption{grpc.CallContentSubtype(CodecName)}, opts...)
	return c.cc.Invoke(ctx, method, in, out, opts...)
}

func (c *runeBookClient) PlaceOrder(ctx context.Context, in *PlaceOrderRequest, opts ...grpc.CallOption) (*PlaceOrderResponse, error) {
	out := new(PlaceOrderResponse)
	if err := c.invoke(ctx, RuneBook_PlaceOrder_FullMethodName, in, out, opts); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *runeBookClient) CancelOrder(ctx context.Context, in *CancelOrderRequest, opts ...grpc.CallOption) (*OrderResponse, error) {
	out := new(OrderResponse)
	if err := c.invoke(ctx, RuneBook_CancelOrder_FullMethodName, in, out, opts); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *runeBookClient) GetOrder(ctx context.Context, in *GetOrderRequest, opts ...grpc.CallOption) (*OrderResponse, error) {
	out := new(OrderResponse)
	if err := c.invoke(ctx, RuneBook_GetOrder_FullMethodName, in, out, opts); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *runeBookClient) GetOrdersByAddress(ctx context.Context, in *GetOrdersByAddressRequest, opts ...grpc.CallOption) (*OrdersResponse, error) {
	out := new(OrdersResponse)
	if err := c.invoke(ctx, RuneBook_GetOrdersByAddress_FullMethodName, in, out, opts); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *runeBookClient) GetOrderBook(ctx context.Context, in *GetOrderBookRequest, opts ...grpc.CallOption) (*OrderBookResponse, error) {
	out := new(OrderBookResponse)
	if err := c.invoke(ctx, RuneBook_GetOrderBook_FullMethodName, in, out, opts); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *runeBookClient) GetStats(ctx context.Context, in *GetStatsRequest, opts ...grpc.CallOption) (*StatsResponse, error) {
	out := new(StatsResponse)
	if err := c.invoke(ctx, RuneBook_GetStats_FullMethodName, in, out, opts); err != nil {
		return nil, err
	}
	return out, nil
}
