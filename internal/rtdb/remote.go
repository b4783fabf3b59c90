package rtdb

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
)

const (
	maxTransactionAttempts = 25
	resubscribeDelay       = 500 * time.Millisecond
)

// Dial opens a client connection to duochatd. An absolute path or a
// "unix://" target selects the daemon's socket; anything else is host:port.
func Dial(target string) (*grpc.ClientConn, error) {
	if strings.HasPrefix(target, "/") {
		target = "unix://" + target
	}
	conn, err := grpc.NewClient(target, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, fmt.Errorf("dial store: %w", err)
	}
	return conn, nil
}

// Remote is a Store served by duochatd.
type Remote struct {
	cc     grpc.ClientConnInterface
	logger *zap.Logger
	retry  time.Duration
}

// NewRemote returns a Store speaking to the daemon over cc.
func NewRemote(cc grpc.ClientConnInterface, logger *zap.Logger) *Remote {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Remote{cc: cc, logger: logger, retry: resubscribeDelay}
}

// Set implements Store.
func (r *Remote) Set(ctx context.Context, path string, value any) error {
	req, err := r.request(path, map[string]any{"value": value})
	if err != nil {
		return err
	}
	return wireErr(r.cc.Invoke(ctx, MethodSet, req, new(emptypb.Empty)))
}

// Update implements Store.
func (r *Remote) Update(ctx context.Context, path string, fields map[string]any) error {
	if len(fields) == 0 {
		return nil
	}
	req, err := r.request(path, map[string]any{"fields": fields})
	if err != nil {
		return err
	}
	return wireErr(r.cc.Invoke(ctx, MethodUpdate, req, new(emptypb.Empty)))
}

// Push implements Store.
func (r *Remote) Push(ctx context.Context, path string, value any) (string, error) {
	req, err := r.request(path, map[string]any{"value": value})
	if err != nil {
		return "", err
	}
	out := new(structpb.Struct)
	if err := r.cc.Invoke(ctx, MethodPush, req, out); err != nil {
		return "", wireErr(err)
	}
	key, _ := Field(out, "key").(string)
	return key, nil
}

// Get implements Store.
func (r *Remote) Get(ctx context.Context, path string) (Snapshot, error) {
	req, err := r.request(path, nil)
	if err != nil {
		return Snapshot{}, err
	}
	out := new(structpb.Struct)
	if err := r.cc.Invoke(ctx, MethodGet, req, out); err != nil {
		return Snapshot{}, wireErr(err)
	}
	return snapshotOf(out), nil
}

// Transaction implements Store with optimistic compare-and-swap retries.
func (r *Remote) Transaction(ctx context.Context, path string, fn func(current any) (any, error)) (bool, error) {
	for attempt := 0; attempt < maxTransactionAttempts; attempt++ {
		snap, err := r.Get(ctx, path)
		if err != nil {
			return false, err
		}
		next, err := fn(copyValue(snap.Value))
		if errors.Is(err, ErrAbort) {
			return false, nil
		}
		if err != nil {
			return false, err
		}
		swapped, err := r.compareAndSwap(ctx, path, snap.Value, next)
		if err != nil {
			return false, err
		}
		if swapped {
			return true, nil
		}
	}
	return false, fmt.Errorf("%w: %s", ErrConflict, path)
}

func (r *Remote) compareAndSwap(ctx context.Context, path string, expected, value any) (bool, error) {
	req, err := r.request(path, map[string]any{"expected": expected, "value": value})
	if err != nil {
		return false, err
	}
	out := new(structpb.Struct)
	if err := r.cc.Invoke(ctx, MethodCompareAndSwap, req, out); err != nil {
		return false, wireErr(err)
	}
	swapped, _ := Field(out, "swapped").(bool)
	return swapped, nil
}

// Subscribe implements Store. Broken streams are reopened until ctx is done;
// each new stream starts with a full snapshot.
func (r *Remote) Subscribe(ctx context.Context, path string) (<-chan Snapshot, error) {
	req, err := r.request(path, nil)
	if err != nil {
		return nil, err
	}
	out := make(chan Snapshot, 1)
	go func() {
		defer close(out)
		for {
			err := r.stream(ctx, req, out)
			if ctx.Err() != nil {
				return
			}
			if status.Code(err) == codes.InvalidArgument {
				r.logger.Error("subscription rejected", zap.String("path", path), zap.Error(err))
				return
			}
			r.logger.Warn("subscription interrupted, retrying",
				zap.String("path", path), zap.Error(err))
			select {
			case <-ctx.Done():
				return
			case <-time.After(r.retry):
			}
		}
	}()
	return out, nil
}

func (r *Remote) stream(ctx context.Context, req *structpb.Struct, out chan<- Snapshot) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	cs, err := r.cc.NewStream(ctx, &databaseServiceDesc.Streams[0], MethodSubscribe)
	if err != nil {
		return err
	}
	stream := &grpc.GenericClientStream[structpb.Struct, structpb.Struct]{ClientStream: cs}
	if err := stream.ClientStream.SendMsg(req); err != nil {
		return err
	}
	if err := stream.CloseSend(); err != nil {
		return err
	}
	for {
		msg, err := stream.Recv()
		if err == io.EOF {
			return errors.New("stream closed by server")
		}
		if err != nil {
			return err
		}
		select {
		case out <- snapshotOf(msg):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// request validates path locally and builds a wire request carrying extra.
func (r *Remote) request(path string, extra map[string]any) (*structpb.Struct, error) {
	segs, err := split(path)
	if err != nil {
		return nil, err
	}
	fields := map[string]any{"path": join(segs)}
	for k, v := range extra {
		nv, err := normalizeFields(k, v)
		if err != nil {
			return nil, err
		}
		fields[k] = nv
	}
	req, err := NewMessage(fields)
	if err != nil {
		return nil, fmt.Errorf("encode request: %w", err)
	}
	return req, nil
}

// normalizeFields keeps nil field values of an update map so they still
// delete on the server.
func normalizeFields(name string, v any) (any, error) {
	if name != "fields" {
		return normalize(v)
	}
	fields, ok := v.(map[string]any)
	if !ok {
		return normalize(v)
	}
	out := make(map[string]any, len(fields))
	for k, fv := range fields {
		nv, err := normalize(fv)
		if err != nil {
			return nil, err
		}
		out[k] = nv
	}
	return out, nil
}

func snapshotOf(m *structpb.Struct) Snapshot {
	return Snapshot{Path: PathField(m), Value: prune(Field(m, "value"))}
}

func wireErr(err error) error {
	if err == nil {
		return nil
	}
	if st, ok := status.FromError(err); ok && st.Code() == codes.InvalidArgument {
		return fmt.Errorf("%w: %s", ErrInvalidPath, st.Message())
	}
	return err
}
