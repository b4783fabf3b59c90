package rtdb

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
)

// gRPC contract between duochatd and Remote. Messages are well-known protobuf
// types; request and response fields are documented per method.
const (
	DatabaseServiceName = "duochat.rtdb.v1.Database"
	StatusServiceName   = "duochat.rtdb.v1.Status"
)

// Full method names.
const (
	MethodSet            = "/" + DatabaseServiceName + "/Set"
	MethodUpdate         = "/" + DatabaseServiceName + "/Update"
	MethodPush           = "/" + DatabaseServiceName + "/Push"
	MethodGet            = "/" + DatabaseServiceName + "/Get"
	MethodCompareAndSwap = "/" + DatabaseServiceName + "/CompareAndSwap"
	MethodSubscribe      = "/" + DatabaseServiceName + "/Subscribe"
	MethodGetStatus      = "/" + StatusServiceName + "/GetStatus"
)

// DatabaseServer is the server side of the Database service.
type DatabaseServer interface {
	// Set takes {path, value}.
	Set(context.Context, *structpb.Struct) (*emptypb.Empty, error)
	// Update takes {path, fields}.
	Update(context.Context, *structpb.Struct) (*emptypb.Empty, error)
	// Push takes {path, value} and returns {key}.
	Push(context.Context, *structpb.Struct) (*structpb.Struct, error)
	// Get takes {path} and returns {path, value}.
	Get(context.Context, *structpb.Struct) (*structpb.Struct, error)
	// CompareAndSwap takes {path, expected, value} and returns {swapped}.
	CompareAndSwap(context.Context, *structpb.Struct) (*structpb.Struct, error)
	// Subscribe takes {path} and streams {path, value} snapshots.
	Subscribe(*structpb.Struct, grpc.ServerStreamingServer[structpb.Struct]) error
}

// StatusServer is the server side of the Status service.
type StatusServer interface {
	GetStatus(context.Context, *emptypb.Empty) (*structpb.Struct, error)
}

// RegisterDatabaseServer registers srv on s.
func RegisterDatabaseServer(s grpc.ServiceRegistrar, srv DatabaseServer) {
	s.RegisterService(&databaseServiceDesc, srv)
}

// RegisterStatusServer registers srv on s.
func RegisterStatusServer(s grpc.ServiceRegistrar, srv StatusServer) {
	s.RegisterService(&statusServiceDesc, srv)
}

var databaseServiceDesc = grpc.ServiceDesc{
	ServiceName: DatabaseServiceName,
	HandlerType: (*DatabaseServer)(nil),
	Methods: []grpc.MethodDesc{
		databaseMethod("Set", DatabaseServer.Set),
		databaseMethod("Update", DatabaseServer.Update),
		databaseMethod("Push", DatabaseServer.Push),
		databaseMethod("Get", DatabaseServer.Get),
		databaseMethod("CompareAndSwap", DatabaseServer.CompareAndSwap),
	},
	Streams: []grpc.StreamDesc{
		{
			StreamName:    "Subscribe",
			Handler:       subscribeHandler,
			ServerStreams: true,
		},
	},
	Metadata: "duochat/rtdb/v1/database.proto",
}

var statusServiceDesc = grpc.ServiceDesc{
	ServiceName: StatusServiceName,
	HandlerType: (*StatusServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "GetStatus", Handler: getStatusHandler},
	},
	Metadata: "duochat/rtdb/v1/database.proto",
}

func databaseMethod[R any](name string, call func(DatabaseServer, context.Context, *structpb.Struct) (R, error)) grpc.MethodDesc {
	fullMethod := "/" + DatabaseServiceName + "/" + name
	return grpc.MethodDesc{
		MethodName: name,
		Handler: func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
			in := new(structpb.Struct)
			if err := dec(in); err != nil {
				return nil, err
			}
			if interceptor == nil {
				return call(srv.(DatabaseServer), ctx, in)
			}
			info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod}
			handler := func(ctx context.Context, req any) (any, error) {
				return call(srv.(DatabaseServer), ctx, req.(*structpb.Struct))
			}
			return interceptor(ctx, in, info, handler)
		},
	}
}

func subscribeHandler(srv any, stream grpc.ServerStream) error {
	in := new(structpb.Struct)
	if err := stream.RecvMsg(in); err != nil {
		return err
	}
	return srv.(DatabaseServer).Subscribe(in, &grpc.GenericServerStream[structpb.Struct, structpb.Struct]{ServerStream: stream})
}

func getStatusHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(emptypb.Empty)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(StatusServer).GetStatus(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: MethodGetStatus}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(StatusServer).GetStatus(ctx, req.(*emptypb.Empty))
	}
	return interceptor(ctx, in, info, handler)
}

// NewMessage builds a wire message from generic fields.
func NewMessage(fields map[string]any) (*structpb.Struct, error) {
	return structpb.NewStruct(fields)
}

// Field returns the generic value of a message field, nil if absent.
func Field(m *structpb.Struct, name string) any {
	v, ok := m.GetFields()[name]
	if !ok {
		return nil
	}
	return v.AsInterface()
}

// PathField returns the "path" field of a request.
func PathField(m *structpb.Struct) string {
	s, _ := Field(m, "path").(string)
	return s
}

// FetchStatus calls Status.GetStatus.
func FetchStatus(ctx context.Context, cc grpc.ClientConnInterface) (map[string]any, error) {
	out := new(structpb.Struct)
	if err := cc.Invoke(ctx, MethodGetStatus, &emptypb.Empty{}, out); err != nil {
		return nil, err
	}
	return out.AsMap(), nil
}
