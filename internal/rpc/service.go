package rpc

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/structpb"
)

// ServiceName is the fully qualified gRPC service name.
const ServiceName = "adpc.v1.Core"

// #region service-interface
// CoreService is the server side of adpc.v1.Core. Every method takes and
// returns a google.protobuf.Struct; field names are documented on Server.
type CoreService interface {
	Encode(context.Context, *structpb.Struct) (*structpb.Struct, error)
	EncodePhrase(context.Context, *structpb.Struct) (*structpb.Struct, error)
	Region(context.Context, *structpb.Struct) (*structpb.Struct, error)
	Nearby(context.Context, *structpb.Struct) (*structpb.Struct, error)
	Similarity(context.Context, *structpb.Struct) (*structpb.Struct, error)
	Novelty(context.Context, *structpb.Struct) (*structpb.Struct, error)
	Record(context.Context, *structpb.Struct) (*structpb.Struct, error)
	Allocate(context.Context, *structpb.Struct) (*structpb.Struct, error)
	Observe(context.Context, *structpb.Struct) (*structpb.Struct, error)
}
// #endregion service-interface

// #region service-desc
type method func(CoreService, context.Context, *structpb.Struct) (*structpb.Struct, error)

func unary(name string, call method) grpc.MethodDesc {
	return grpc.MethodDesc{
		MethodName: name,
		Handler: func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
			in := new(structpb.Struct)
			if err := dec(in); err != nil {
				return nil, err
			}
			svc := srv.(CoreService)
			if interceptor == nil {
				return call(svc, ctx, in)
			}
			info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/" + ServiceName + "/" + name}
			return interceptor(ctx, in, info, func(ctx context.Context, req any) (any, error) {
				return call(svc, ctx, req.(*structpb.Struct))
			})
		},
	}
}

// ServiceDesc describes adpc.v1.Core for grpc.Server.RegisterService.
var ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*CoreService)(nil),
	Methods: []grpc.MethodDesc{
		unary("Encode", CoreService.Encode),
		unary("EncodePhrase", CoreService.EncodePhrase),
		unary("Region", CoreService.Region),
		unary("Nearby", CoreService.Nearby),
		unary("Similarity", CoreService.Similarity),
		unary("Novelty", CoreService.Novelty),
		unary("Record", CoreService.Record),
		unary("Allocate", CoreService.Allocate),
		unary("Observe", CoreService.Observe),
	},
	Streams:     []grpc.StreamDesc{},
}
// #endregion service-desc
