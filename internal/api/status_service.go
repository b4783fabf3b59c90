package api

import (
	"context"
	"time"

	"github.com/matheus3301/duochat/internal/bus"
	"github.com/matheus3301/duochat/internal/rtdb"
	"github.com/matheus3301/duochat/internal/store"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
)

// StatusService implements the Status gRPC service.
type StatusService struct {
	startedAt time.Time
	tree      *rtdb.Local
	db        *store.DB
	bus       *bus.Bus
}

// NewStatusService creates a new status service. db may be nil for an
// in-memory daemon.
func NewStatusService(tree *rtdb.Local, db *store.DB, b *bus.Bus) *StatusService {
	return &StatusService{
		startedAt: time.Now(),
		tree:      tree,
		db:        db,
		bus:       b,
	}
}

func (s *StatusService) GetStatus(_ context.Context, _ *emptypb.Empty) (*structpb.Struct, error) {
	collections := make(map[string]any)
	total := 0
	for c, n := range s.tree.Stats() {
		collections[c] = n
		total += n
	}

	resp := map[string]any{
		"uptime_ms":   time.Since(s.startedAt).Milliseconds(),
		"records":     total,
		"collections": collections,
		"subscribers": s.tree.Subscribers(),
		"listeners":   s.bus.Subscribers(),
		"persistent":  s.db != nil,
	}

	if s.db != nil {
		if n, err := s.db.RecordCount(); err == nil {
			resp["stored_records"] = n
		}
		if ts, err := s.db.LastWrite(); err == nil && !ts.IsZero() {
			resp["last_write_ms"] = ts.UnixMilli()
		}
	}

	return response(resp)
}
