package grpc

import (
	"context"

	"github.com/dmitrijs2005/sealbox/internal/api"
	"google.golang.org/grpc"
)

// fileServiceServer is what RegisterService checks the implementation against.
type fileServiceServer interface {
	upload(stream grpc.ServerStream) error
	download(req *api.FileRequest, stream grpc.ServerStream) error
}

func unary[Req any](name string, call func(s *GRPCServer, ctx context.Context, in *Req) (any, error)) grpc.MethodDesc {
	fullMethod := "/" + api.ServiceName + "/" + name
	return grpc.MethodDesc{
		MethodName: name,
		Handler: func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
			in := new(Req)
			if err := dec(in); err != nil {
				return nil, err
			}
			s := srv.(*GRPCServer)
			if interceptor == nil {
				return call(s, ctx, in)
			}
			info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod}
			return interceptor(ctx, in, info, func(ctx context.Context, req any) (any, error) {
				return call(s, ctx, req.(*Req))
			})
		},
	}
}

var fileServiceDesc = grpc.ServiceDesc{
	ServiceName: api.ServiceName,
	HandlerType: (*fileServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		unary("Metadata", (*GRPCServer).metadata),
		unary("Delete", (*GRPCServer).delete),
		unary("Dashboard", (*GRPCServer).dashboard),
		unary("MyLogs", (*GRPCServer).myLogs),
		unary("AllLogs", (*GRPCServer).allLogs),
		unary("Ping", (*GRPCServer).ping),
	},
	Streams: []grpc.StreamDesc{
		{
			StreamName:    "Upload",
			ClientStreams: true,
			Handler: func(srv any, stream grpc.ServerStream) error {
				return srv.(*GRPCServer).upload(stream)
			},
		},
		{
			StreamName:    "Download",
			ServerStreams: true,
			Handler: func(srv any, stream grpc.ServerStream) error {
				in := new(api.FileRequest)
				if err := stream.RecvMsg(in); err != nil {
					return err
				}
				return srv.(*GRPCServer).download(in, stream)
			},
		},
	},
	Metadata: "sealbox/v1/files",
}
