// Package rtdb is duochat's realtime key-path database: a JSON-like tree
// addressed by "/"-separated paths, with atomic writes, merge updates,
// generated-key appends, server timestamps and push subscriptions.
//
// Local is the in-process tree served by duochatd. Remote speaks the same
// Store contract to a daemon over gRPC.
package rtdb

import (
	"context"
	"errors"
)

var (
	// ErrAbort is returned by a Transaction function to leave the value untouched.
	ErrAbort = errors.New("rtdb: transaction aborted")
	// ErrInvalidPath reports a path with forbidden characters or a non-object root value.
	ErrInvalidPath = errors.New("rtdb: invalid path")
	// ErrConflict is returned when a remote transaction keeps losing races.
	ErrConflict = errors.New("rtdb: transaction conflict")
)

// Store is the contract shared by Local and Remote. Values are anything that
// encodes to JSON; they are normalized to map[string]any, []any, string,
// float64, bool and nil. Writing nil or an empty object deletes the path.
type Store interface {
	// Set replaces the value at path.
	Set(ctx context.Context, path string, value any) error
	// Update writes every field under path in a single atomic step. Field
	// keys may be relative multi-segment paths ("readBy/Saman").
	Update(ctx context.Context, path string, fields map[string]any) error
	// Push stores value under a new chronologically ordered child key of path.
	Push(ctx context.Context, path string, value any) (string, error)
	// Get returns the current value at path.
	Get(ctx context.Context, path string) (Snapshot, error)
	// Subscribe delivers the snapshot at path now and after every write that
	// touches it. The channel is closed when ctx is done.
	Subscribe(ctx context.Context, path string) (<-chan Snapshot, error)
	// Transaction atomically replaces the value at path with fn(current).
	// fn receives a private copy. It returns committed=false when fn
	// returns ErrAbort.
	Transaction(ctx context.Context, path string, fn func(current any) (any, error)) (bool, error)
}

// ChangeOp is the kind of record-level mutation handed to a Persister.
type ChangeOp int

const (
	// OpPut stores Value at (Collection, Key).
	OpPut ChangeOp = iota
	// OpDelete removes (Collection, Key).
	OpDelete
	// OpDropCollection removes every record of Collection.
	OpDropCollection
	// OpDropAll removes every record.
	OpDropAll
)

// Change is a record-level mutation. A record is the subtree at the first two
// path segments (messages/<id>, users/<name>). A collection holding a scalar
// is stored as a record with an empty Key.
type Change struct {
	Op         ChangeOp
	Collection string
	Key        string
	Value      []byte // JSON, OpPut only
}

// Persister durably stores the tree Local keeps in memory.
type Persister interface {
	// Apply executes changes in order, atomically.
	Apply(changes []Change) error
	// Load calls fn with an OpPut change for every stored record.
	Load(fn func(Change) error) error
}
