package api

import (
	"context"
	"errors"

	"github.com/matheus3301/duochat/internal/rtdb"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	grpcstatus "google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
)

// DatabaseService implements the Database gRPC service on top of the
// daemon's tree.
type DatabaseService struct {
	tree   *rtdb.Local
	logger *zap.Logger
}

// NewDatabaseService creates a new database service.
func NewDatabaseService(tree *rtdb.Local, logger *zap.Logger) *DatabaseService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DatabaseService{tree: tree, logger: logger}
}

func (s *DatabaseService) Set(ctx context.Context, req *structpb.Struct) (*emptypb.Empty, error) {
	if err := s.tree.Set(ctx, rtdb.PathField(req), rtdb.Field(req, "value")); err != nil {
		return nil, toStatus("set", err)
	}
	return &emptypb.Empty{}, nil
}

func (s *DatabaseService) Update(ctx context.Context, req *structpb.Struct) (*emptypb.Empty, error) {
	fields, _ := rtdb.Field(req, "fields").(map[string]any)
	if err := s.tree.Update(ctx, rtdb.PathField(req), fields); err != nil {
		return nil, toStatus("update", err)
	}
	return &emptypb.Empty{}, nil
}

func (s *DatabaseService) Push(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	key, err := s.tree.Push(ctx, rtdb.PathField(req), rtdb.Field(req, "value"))
	if err != nil {
		return nil, toStatus("push", err)
	}
	return response(map[string]any{"key": key})
}

func (s *DatabaseService) Get(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	snap, err := s.tree.Get(ctx, rtdb.PathField(req))
	if err != nil {
		return nil, toStatus("get", err)
	}
	return snapshotMessage(snap)
}

func (s *DatabaseService) CompareAndSwap(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	swapped, err := s.tree.CompareAndSwap(ctx, rtdb.PathField(req), rtdb.Field(req, "expected"), rtdb.Field(req, "value"))
	if err != nil {
		return nil, toStatus("compare-and-swap", err)
	}
	return response(map[string]any{"swapped": swapped})
}

func (s *DatabaseService) Subscribe(req *structpb.Struct, stream grpc.ServerStreamingServer[structpb.Struct]) error {
	path := rtdb.PathField(req)
	snaps, err := s.tree.Subscribe(stream.Context(), path)
	if err != nil {
		return toStatus("subscribe", err)
	}
	s.logger.Debug("subscriber attached", zap.String("path", path))
	defer s.logger.Debug("subscriber detached", zap.String("path", path))

	for snap := range snaps {
		msg, err := snapshotMessage(snap)
		if err != nil {
			return err
		}
		if err := stream.Send(msg); err != nil {
			return err
		}
	}
	return nil
}

func snapshotMessage(snap rtdb.Snapshot) (*structpb.Struct, error) {
	return response(map[string]any{"path": snap.Path, "value": snap.Value})
}

func response(fields map[string]any) (*structpb.Struct, error) {
	msg, err := rtdb.NewMessage(fields)
	if err != nil {
		return nil, grpcstatus.Errorf(codes.Internal, "encode response: %v", err)
	}
	return msg, nil
}

func toStatus(op string, err error) error {
	if errors.Is(err, rtdb.ErrInvalidPath) {
		return grpcstatus.Errorf(codes.InvalidArgument, "%s: %v", op, err)
	}
	return grpcstatus.Errorf(codes.Internal, "%s: %v", op, err)
}
