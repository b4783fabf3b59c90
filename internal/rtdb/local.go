package rtdb

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"sort"
	"sync"

	"github.com/benbjohnson/clock"
	"github.com/matheus3301/duochat/internal/bus"
	"go.uber.org/zap"
)

// Local is an in-memory tree with optional write-through persistence.
// Writes are serialized. After commit each overlapping subscription is
// marked dirty and a change hint goes out on the bus.
type Local struct {
	mu      sync.RWMutex
	root    map[string]any
	clock   clock.Clock
	bus     *bus.Bus
	persist Persister
	logger  *zap.Logger

	watchMu  sync.Mutex
	watchers map[int]*watcher
	nextID   int
}

// watcher is one subscription. dirty holds at most one pending signal, so
// any number of overlapping writes collapse into a single re-read.
type watcher struct {
	segs  []string
	dirty chan struct{}
}

func (w *watcher) mark() {
	select {
	case w.dirty <- struct{}{}:
	default:
	}
}

// LocalOption configures a Local.
type LocalOption func(*Local)

// WithClock sets the clock used for server timestamps.
func WithClock(c clock.Clock) LocalOption {
	return func(l *Local) { l.clock = c }
}

// WithPersister writes every change through p before it becomes visible.
func WithPersister(p Persister) LocalOption {
	return func(l *Local) { l.persist = p }
}

// WithLogger sets the logger.
func WithLogger(logger *zap.Logger) LocalOption {
	return func(l *Local) {
		if logger != nil {
			l.logger = logger
		}
	}
}

// NewLocal creates an empty tree publishing change hints on b. A nil bus
// gets a private one.
func NewLocal(b *bus.Bus, opts ...LocalOption) *Local {
	if b == nil {
		b = bus.New()
	}
	l := &Local{
		root:     make(map[string]any),
		clock:    clock.New(),
		bus:      b,
		logger:   zap.NewNop(),
		watchers: make(map[int]*watcher),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Load replaces the tree with the persister's records.
func (l *Local) Load() (int, error) {
	if l.persist == nil {
		return 0, nil
	}
	root := make(map[string]any)
	n := 0
	err := l.persist.Load(func(c Change) error {
		var v any
		if err := json.Unmarshal(c.Value, &v); err != nil {
			return fmt.Errorf("decode record %s/%s: %w", c.Collection, c.Key, err)
		}
		segs := []string{c.Collection}
		if c.Key != "" {
			segs = append(segs, c.Key)
		}
		if r, ok := setAt(root, segs, v).(map[string]any); ok {
			root = r
		}
		n++
		return nil
	})
	if err != nil {
		return 0, err
	}
	l.mu.Lock()
	l.root = root
	l.mu.Unlock()
	return n, nil
}

// Set implements Store.
func (l *Local) Set(_ context.Context, path string, value any) error {
	segs, err := split(path)
	if err != nil {
		return err
	}
	v, err := normalize(value)
	if err != nil {
		return err
	}
	if err := checkRoot(segs, v); err != nil {
		return err
	}

	l.mu.Lock()
	err = l.writeLocked(segs, [][]string{segs}, func() {
		l.placeLocked(segs, resolve(v, l.nowMs()))
	})
	l.mu.Unlock()
	if err != nil {
		return err
	}
	l.notify(segs)
	return nil
}

// Update implements Store.
func (l *Local) Update(_ context.Context, path string, fields map[string]any) error {
	base, err := split(path)
	if err != nil {
		return err
	}
	type field struct {
		segs  []string
		value any
	}
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var writes []field
	var touched [][]string
	for _, k := range keys {
		rel, err := split(k)
		if err != nil {
			return err
		}
		if len(rel) == 0 {
			return fmt.Errorf("%w: empty field key under %q", ErrInvalidPath, path)
		}
		v, err := normalize(fields[k])
		if err != nil {
			return err
		}
		segs := append(append([]string{}, base...), rel...)
		writes = append(writes, field{segs: segs, value: v})
		touched = append(touched, segs)
	}
	if len(writes) == 0 {
		return nil
	}

	l.mu.Lock()
	err = l.writeLocked(base, touched, func() {
		now := l.nowMs()
		for _, w := range writes {
			l.placeLocked(w.segs, resolve(w.value, now))
		}
	})
	l.mu.Unlock()
	if err != nil {
		return err
	}
	l.notify(base)
	return nil
}

// Push implements Store.
func (l *Local) Push(ctx context.Context, path string, value any) (string, error) {
	key := newKey()
	if err := l.Set(ctx, Join(path, key), value); err != nil {
		return "", err
	}
	return key, nil
}

// Get implements Store.
func (l *Local) Get(_ context.Context, path string) (Snapshot, error) {
	segs, err := split(path)
	if err != nil {
		return Snapshot{}, err
	}
	return l.snapshot(segs), nil
}

// Transaction implements Store. fn runs under the write lock and must not
// call back into l.
func (l *Local) Transaction(_ context.Context, path string, fn func(current any) (any, error)) (bool, error) {
	segs, err := split(path)
	if err != nil {
		return false, err
	}

	l.mu.Lock()
	next, err := fn(copyValue(getAt(l.root, segs)))
	if err != nil {
		l.mu.Unlock()
		if errors.Is(err, ErrAbort) {
			return false, nil
		}
		return false, err
	}
	v, err := normalize(next)
	if err == nil {
		err = checkRoot(segs, v)
	}
	if err == nil {
		err = l.writeLocked(segs, [][]string{segs}, func() {
			l.placeLocked(segs, resolve(v, l.nowMs()))
		})
	}
	l.mu.Unlock()
	if err != nil {
		return false, err
	}
	l.notify(segs)
	return true, nil
}

// CompareAndSwap sets path to value only if its current value equals
// expected. It backs Remote transactions.
func (l *Local) CompareAndSwap(_ context.Context, path string, expected, value any) (bool, error) {
	segs, err := split(path)
	if err != nil {
		return false, err
	}
	want, err := normalize(expected)
	if err != nil {
		return false, err
	}
	v, err := normalize(value)
	if err != nil {
		return false, err
	}
	if err := checkRoot(segs, v); err != nil {
		return false, err
	}

	l.mu.Lock()
	if !reflect.DeepEqual(getAt(l.root, segs), want) {
		l.mu.Unlock()
		return false, nil
	}
	err = l.writeLocked(segs, [][]string{segs}, func() {
		l.placeLocked(segs, resolve(v, l.nowMs()))
	})
	l.mu.Unlock()
	if err != nil {
		return false, err
	}
	l.notify(segs)
	return true, nil
}

// Subscribe implements Store. The snapshot is read after the previous one
// was taken by the reader, and a write landing while a send is blocked marks
// the subscription dirty, so the last snapshot delivered always reflects the
// last overlapping write.
func (l *Local) Subscribe(ctx context.Context, path string) (<-chan Snapshot, error) {
	segs, err := split(path)
	if err != nil {
		return nil, err
	}
	// Register before the first read so no write falls in between.
	w := &watcher{segs: segs, dirty: make(chan struct{}, 1)}
	w.mark()
	l.watchMu.Lock()
	id := l.nextID
	l.nextID++
	l.watchers[id] = w
	l.watchMu.Unlock()

	out := make(chan Snapshot)
	go func() {
		defer close(out)
		defer func() {
			l.watchMu.Lock()
			delete(l.watchers, id)
			l.watchMu.Unlock()
		}()
		for {
			select {
			case <-ctx.Done():
				return
			case <-w.dirty:
			}
			snap := l.snapshot(segs)
			select {
			case out <- snap:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out, nil
}

// Subscribers returns the number of open subscriptions.
func (l *Local) Subscribers() int {
	l.watchMu.Lock()
	defer l.watchMu.Unlock()
	return len(l.watchers)
}

// Stats reports the number of records per collection.
func (l *Local) Stats() map[string]int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make(map[string]int, len(l.root))
	for c, v := range l.root {
		if m, ok := v.(map[string]any); ok {
			out[c] = len(m)
		} else {
			out[c] = 1
		}
	}
	return out
}

func checkRoot(segs []string, v any) error {
	if len(segs) > 0 || v == nil {
		return nil
	}
	if _, ok := v.(map[string]any); !ok {
		return fmt.Errorf("%w: root value must be an object", ErrInvalidPath)
	}
	return nil
}

func (l *Local) snapshot(segs []string) Snapshot {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return Snapshot{Path: join(segs), Value: copyValue(getAt(l.root, segs))}
}

func (l *Local) nowMs() int64 {
	return l.clock.Now().UnixMilli()
}

func (l *Local) notify(segs []string) {
	l.watchMu.Lock()
	for _, w := range l.watchers {
		if overlaps(segs, w.segs) {
			w.mark()
		}
	}
	l.watchMu.Unlock()
	l.bus.Emit(bus.StoreChanged, join(segs))
}

// placeLocked writes v at segs. The root always stays an object.
func (l *Local) placeLocked(segs []string, v any) {
	root, _ := setAt(l.root, segs, v).(map[string]any)
	if root == nil {
		root = make(map[string]any)
	}
	l.root = root
}

// writeLocked runs mutate, then persists the records below the touched
// paths. If persistence fails the subtree at base is restored.
func (l *Local) writeLocked(base []string, touched [][]string, mutate func()) error {
	backup := copyValue(getAt(l.root, base))
	mutate()
	if l.persist == nil {
		return nil
	}
	changes, err := l.changesLocked(touched)
	if err == nil {
		err = l.persist.Apply(changes)
	}
	if err != nil {
		l.placeLocked(base, backup)
		l.logger.Error("persist failed, write rolled back", zap.String("path", join(base)), zap.Error(err))
		return fmt.Errorf("persist %q: %w", join(base), err)
	}
	return nil
}

// changesLocked derives record-level changes for the touched paths from the
// tree as it is now.
func (l *Local) changesLocked(touched [][]string) ([]Change, error) {
	all := false
	collections := make(map[string]bool)
	type recordKey struct{ c, k string }
	records := make(map[recordKey]bool)
	for _, segs := range touched {
		switch len(segs) {
		case 0:
			all = true
		case 1:
			collections[segs[0]] = true
		default:
			records[recordKey{segs[0], segs[1]}] = true
		}
	}

	var changes []Change
	if all {
		changes = append(changes, Change{Op: OpDropAll})
		names := make([]string, 0, len(l.root))
		for c := range l.root {
			names = append(names, c)
		}
		sort.Strings(names)
		for _, c := range names {
			cs, err := collectionChanges(c, l.root[c])
			if err != nil {
				return nil, err
			}
			changes = append(changes, cs...)
		}
		return changes, nil
	}

	names := make([]string, 0, len(collections))
	for c := range collections {
		names = append(names, c)
	}
	sort.Strings(names)
	for _, c := range names {
		changes = append(changes, Change{Op: OpDropCollection, Collection: c})
		cs, err := collectionChanges(c, l.root[c])
		if err != nil {
			return nil, err
		}
		changes = append(changes, cs...)
	}

	keys := make([]recordKey, 0, len(records))
	for rk := range records {
		if !collections[rk.c] {
			keys = append(keys, rk)
		}
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].c != keys[j].c {
			return keys[i].c < keys[j].c
		}
		return keys[i].k < keys[j].k
	})
	for _, rk := range keys {
		// A scalar collection turned into an object by this write.
		changes = append(changes, Change{Op: OpDelete, Collection: rk.c})
		v := getAt(l.root, []string{rk.c, rk.k})
		if v == nil {
			changes = append(changes, Change{Op: OpDelete, Collection: rk.c, Key: rk.k})
			continue
		}
		data, err := json.Marshal(v)
		if err != nil {
			return nil, err
		}
		changes = append(changes, Change{Op: OpPut, Collection: rk.c, Key: rk.k, Value: data})
	}
	return changes, nil
}

func collectionChanges(c string, v any) ([]Change, error) {
	if v == nil {
		return nil, nil
	}
	m, ok := v.(map[string]any)
	if !ok {
		data, err := json.Marshal(v)
		if err != nil {
			return nil, err
		}
		return []Change{{Op: OpPut, Collection: c, Value: data}}, nil
	}
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	changes := make([]Change, 0, len(keys))
	for _, k := range keys {
		data, err := json.Marshal(m[k])
		if err != nil {
			return nil, err
		}
		changes = append(changes, Change{Op: OpPut, Collection: c, Key: k, Value: data})
	}
	return changes, nil
}
