package grpcsvc

import (
	"context"

	"google.golang.org/grpc"
)

const (
	ServiceName = "storefront.v1.CheckoutService"

	MethodPlaceOrder  = "/" + ServiceName + "/PlaceOrder"
	MethodGetOrder    = "/" + ServiceName + "/GetOrder"
	MethodListOrders  = "/" + ServiceName + "/ListOrders"
	MethodCancelOrder = "/" + ServiceName + "/CancelOrder"
	MethodGetProduct  = "/" + ServiceName + "/GetProduct"
)

// CheckoutServiceServer: серверная сторона storefront.v1.CheckoutService.
type CheckoutServiceServer interface {
	PlaceOrder(ctx context.Context, req *PlaceOrderRequest) (*PlaceOrderResponse, error)
	GetOrder(ctx context.Context, req *GetOrderRequest) (*GetOrderResponse, error)
	ListOrders(ctx context.Context, req *ListOrdersRequest) (*ListOrdersResponse, error)
	CancelOrder(ctx context.Context, req *CancelOrderRequest) (*CancelOrderResponse, error)
	GetProduct(ctx context.Context, req *GetProductRequest) (*GetProductResponse, error)
}

// ServiceDesc описывает сервис вручную, в том же виде, что и protoc-gen-go-grpc.
var ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*CheckoutServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		{
			MethodName: "PlaceOrder",
			Handler: unaryHandler(MethodPlaceOrder, func(srv CheckoutServiceServer, ctx context.Context, req *PlaceOrderRequest) (*PlaceOrderResponse, error) {
				return srv.PlaceOrder(ctx, req)
			}),
		},
		{
			MethodName: "GetOrder",
			Handler: unaryHandler(MethodGetOrder, func(srv CheckoutServiceServer, ctx context.Context, req *GetOrderRequest) (*GetOrderResponse, error) {
				return srv.GetOrder(ctx, req)
			}),
		},
		{
			MethodName: "ListOrders",
			Handler: unaryHandler(MethodListOrders, func(srv CheckoutServiceServer, ctx context.Context, req *ListOrdersRequest) (*ListOrdersResponse, error) {
				return srv.ListOrders(ctx, req)
			}),
		},
		{
			MethodName: "CancelOrder",
			Handler: unaryHandler(MethodCancelOrder, func(srv CheckoutServiceServer, ctx context.Context, req *CancelOrderRequest) (*CancelOrderResponse, error) {
				return srv.CancelOrder(ctx, req)
			}),
		},
		{
			MethodName: "GetProduct",
			Handler: unaryHandler(MethodGetProduct, func(srv CheckoutServiceServer, ctx context.Context, req *GetProductRequest) (*GetProductResponse, error) {
				return srv.GetProduct(ctx, req)
			}),
		},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: SchemaFile,
}

// RegisterCheckoutServiceServer регистрирует реализацию на gRPC-сервере.
func RegisterCheckoutServiceServer(registrar grpc.ServiceRegistrar, srv CheckoutServiceServer) {
	registrar.RegisterService(&ServiceDesc, srv)
}

func unaryHandler[Req, Resp any](fullMethod string, call func(CheckoutServiceServer, context.Context, *Req) (*Resp, error)) grpc.MethodHandler {
	return func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
		in := new(Req)
		if err := dec(in); err != nil {
			return nil, err
		}
		if interceptor == nil {
			return call(srv.(CheckoutServiceServer), ctx, in)
		}
		info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod}
		handler := func(ctx context.Context, req any) (any, error) {
			return call(srv.(CheckoutServiceServer), ctx, req.(*Req))
		}
		return interceptor(ctx, in, info, handler)
	}
}
