package presence

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/matheus3301/duochat/internal/bus"
	"github.com/matheus3301/duochat/internal/outbox"
	"github.com/matheus3301/duochat/internal/rtdb"
	"github.com/matheus3301/duochat/internal/session"
)

// recordingStore counts presence writes on top of a real tree.
type recordingStore struct {
	rtdb.Store
	mu     sync.Mutex
	writes []map[string]any
}

func (r *recordingStore) Set(ctx context.Context, path string, value any) error {
	r.mu.Lock()
	if m, ok := value.(map[string]any); ok {
		r.writes = append(r.writes, m)
	}
	r.mu.Unlock()
	return r.Store.Set(ctx, path, value)
}

func (r *recordingStore) count(online bool) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, w := range r.writes {
		if w["isOnline"] == online {
			n++
		}
	}
	return n
}

type openGate struct{ online atomic.Bool }

func (g *openGate) Online() bool { return g.online.Load() }

func newTestSync(t *testing.T) (*Synchronizer, *recordingStore, *clock.Mock, *openGate) {
	t.Helper()
	mock := clock.NewMock()
	mock.Set(time.UnixMilli(1_700_000_000_000))
	store := &recordingStore{Store: rtdb.NewLocal(bus.New(), rtdb.WithClock(mock))}
	gate := &openGate{}
	gate.online.Store(true)
	s := New(store, outbox.Inline{Gate: gate}, Options{Interval: 30 * time.Second, Clock: mock})
	return s, store, mock, gate
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func readRecord(t *testing.T, store rtdb.Store, name string) Record {
	t.Helper()
	snap, err := store.Get(context.Background(), rtdb.Join(Collection, name))
	if err != nil {
		t.Fatal(err)
	}
	var r Record
	if err := snap.Decode(&r); err != nil {
		t.Fatal(err)
	}
	return r
}

func TestAttachWritesOnline(t *testing.T) {
	s, store, mock, _ := newTestSync(t)

	s.Attach(session.NewIdentity("Rishabh"))
	defer s.Detach()

	r := readRecord(t, store, "Rishabh")
	if !r.IsOnline || r.Name != "Rishabh" {
		t.Errorf("record = %+v, want online Rishabh", r)
	}
	if r.LastSeen != mock.Now().UnixMilli() {
		t.Errorf("lastSeen = %d, want %d", r.LastSeen, mock.Now().UnixMilli())
	}
}

func TestHeartbeatRefreshesLastSeen(t *testing.T) {
	s, store, mock, _ := newTestSync(t)
	s.Attach(session.NewIdentity("Rishabh"))
	defer s.Detach()

	start := mock.Now()
	for i := 1; i <= 3; i++ {
		mock.Add(30 * time.Second)
		want := start.Add(time.Duration(i) * 30 * time.Second).UnixMilli()
		waitFor(t, "heartbeat", func() bool {
			return readRecord(t, store, "Rishabh").LastSeen == want
		})
	}
	if n := store.count(true); n != 4 {
		t.Errorf("online writes = %d, want 4 (attach + 3 heartbeats)", n)
	}
}

func TestHeartbeatSkippedWhileOffline(t *testing.T) {
	s, store, mock, gate := newTestSync(t)
	s.Attach(session.NewIdentity("Saman"))
	defer s.Detach()

	gate.online.Store(false)
	mock.Add(30 * time.Second)
	time.Sleep(20 * time.Millisecond)
	if n := store.count(true); n != 1 {
		t.Errorf("online writes = %d, want 1 while offline", n)
	}
}

func TestDetachWritesExactlyOneOffline(t *testing.T) {
	s, store, mock, _ := newTestSync(t)
	s.Attach(session.NewIdentity("Rishabh"))
	s.Detach()
	s.Detach()

	if n := store.count(false); n != 1 {
		t.Errorf("offline writes = %d, want 1", n)
	}
	if r := readRecord(t, store, "Rishabh"); r.IsOnline {
		t.Error("record still online after detach")
	}

	// No heartbeat leaks after detach.
	before := store.count(true)
	mock.Add(90 * time.Second)
	time.Sleep(20 * time.Millisecond)
	if n := store.count(true); n != before {
		t.Errorf("heartbeat wrote %d times after detach", n-before)
	}
}

func TestDetachAttemptsOfflineWhenGateClosed(t *testing.T) {
	s, store, _, gate := newTestSync(t)
	s.Attach(session.NewIdentity("Rishabh"))
	gate.online.Store(false)
	s.Detach()
	if n := store.count(false); n != 1 {
		t.Errorf("offline writes = %d, want 1 attempted", n)
	}
}

func TestMirrorsCollection(t *testing.T) {
	s, store, _, _ := newTestSync(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := s.Start(ctx); err != nil {
		t.Fatal(err)
	}

	s.Attach(session.NewIdentity("Rishabh"))
	defer s.Detach()
	if err := store.Set(ctx, "users/Saman", map[string]any{"name": "Saman", "isOnline": false, "lastSeen": 1}); err != nil {
		t.Fatal(err)
	}

	waitFor(t, "two users", func() bool { return len(s.Users()) == 2 })

	other, ok := s.Other("Rishabh")
	if !ok || other.Name != "Saman" {
		t.Errorf("Other(Rishabh) = %+v, %v", other, ok)
	}
	if r, ok := s.Get("Rishabh"); !ok || !r.IsOnline {
		t.Errorf("Get(Rishabh) = %+v, %v", r, ok)
	}
	if _, ok := s.Other("nobody-else"); !ok {
		t.Error("Other() should return someone when self is unknown")
	}
}

func TestRecordLive(t *testing.T) {
	now := time.UnixMilli(1_700_000_100_000)
	interval := 30 * time.Second
	tests := []struct {
		name string
		rec  Record
		want bool
	}{
		{"fresh", Record{IsOnline: true, LastSeen: now.Add(-10 * time.Second).UnixMilli()}, true},
		{"two intervals", Record{IsOnline: true, LastSeen: now.Add(-60 * time.Second).UnixMilli()}, true},
		{"stale", Record{IsOnline: true, LastSeen: now.Add(-61 * time.Second).UnixMilli()}, false},
		{"offline", Record{IsOnline: false, LastSeen: now.UnixMilli()}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.rec.Live(now, interval); got != tt.want {
				t.Errorf("Live() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestRefresh(t *testing.T) {
	s, store, _, gate := newTestSync(t)
	s.Refresh()
	if n := store.count(true); n != 0 {
		t.Fatalf("refresh without identity wrote %d records", n)
	}

	s.Attach(session.NewIdentity("Saman"))
	defer s.Detach()
	gate.online.Store(false)
	s.Refresh()
	gate.online.Store(true)
	s.Refresh()
	if n := store.count(true); n != 2 {
		t.Errorf("online writes = %d, want attach + one refresh", n)
	}
}
