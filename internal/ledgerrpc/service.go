// Package ledgerrpc exposes the incident ledger over gRPC, with a
// grpc-gateway JSON front end. Messages are protobuf well-known types, so
// no generated code is needed on either side.
package ledgerrpc

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

// ServiceName is the fully-qualified gRPC service name.
const ServiceName = "rtcmas.ledger.v1.LedgerService"

const (
	headMethod     = "/" + ServiceName + "/Head"
	verifyMethod   = "/" + ServiceName + "/Verify"
	snapshotMethod = "/" + ServiceName + "/Snapshot"
	getBlockMethod = "/" + ServiceName + "/GetBlock"
)

// LedgerServiceServer is the server API for the ledger service.
type LedgerServiceServer interface {
	// Head returns {length, root, head}.
	Head(context.Context, *emptypb.Empty) (*structpb.Struct, error)
	// Verify returns {valid} plus {error, index} when the chain is broken.
	Verify(context.Context, *emptypb.Empty) (*structpb.Struct, error)
	// Snapshot returns every block in chain order.
	Snapshot(context.Context, *emptypb.Empty) (*structpb.ListValue, error)
	// GetBlock returns the block at the requested index.
	GetBlock(context.Context, *wrapperspb.Int64Value) (*structpb.Struct, error)
}

// ServiceDesc describes LedgerService for grpc.ServiceRegistrar.
var ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*LedgerServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "Head", Handler: headHandler},
		{MethodName: "Verify", Handler: verifyHandler},
		{MethodName: "Snapshot", Handler: snapshotHandler},
		{MethodName: "GetBlock", Handler: getBlockHandler},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "rtcmas/ledger/v1/ledger.proto",
}

// RegisterLedgerServiceServer registers srv on s.
func RegisterLedgerServiceServer(s grpc.ServiceRegistrar, srv LedgerServiceServer) {
	s.RegisterService(&ServiceDesc, srv)
}

func headHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(emptypb.Empty)
	if err := dec(in); err != nil {
		return nil, err
	}
	call := func(ctx context.Context, req any) (any, error) {
		return srv.(LedgerServiceServer).Head(ctx, req.(*emptypb.Empty))
	}
	return intercept(ctx, srv, in, headMethod, call, interceptor)
}

func verifyHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(emptypb.Empty)
	if err := dec(in); err != nil {
		return nil, err
	}
	call := func(ctx context.Context, req any) (any, error) {
		return srv.(LedgerServiceServer).Verify(ctx, req.(*emptypb.Empty))
	}
	return intercept(ctx, srv, in, verifyMethod, call, interceptor)
}

func snapshotHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(emptypb.Empty)
	if err := dec(in); err != nil {
		return nil, err
	}
	call := func(ctx context.Context, req any) (any, error) {
		return srv.(LedgerServiceServer).Snapshot(ctx, req.(*emptypb.Empty))
	}
	return intercept(ctx, srv, in, snapshotMethod, call, interceptor)
}

func getBlockHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(wrapperspb.Int64Value)
	if err := dec(in); err != nil {
		return nil, err
	}
	call := func(ctx context.Context, req any) (any, error) {
		return srv.(LedgerServiceServer).GetBlock(ctx, req.(*wrapperspb.Int64Value))
	}
	return intercept(ctx, srv, in, getBlockMethod, call, interceptor)
}

func intercept(ctx context.Context, srv, in any, method string, call grpc.UnaryHandler, interceptor grpc.UnaryServerInterceptor) (any, error) {
	if interceptor == nil {
		return call(ctx, in)
	}
	return interceptor(ctx, in, &grpc.UnaryServerInfo{Server: srv, FullMethod: method}, call)
}
