package typing

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/matheus3301/duochat/internal/bus"
	"github.com/matheus3301/duochat/internal/outbox"
	"github.com/matheus3301/duochat/internal/rtdb"
	"github.com/matheus3301/duochat/internal/session"
)

// recordingStore keeps the sequence of isTyping values written.
type recordingStore struct {
	rtdb.Store
	mu     sync.Mutex
	values []bool
}

func (r *recordingStore) Set(ctx context.Context, path string, value any) error {
	if m, ok := value.(map[string]any); ok {
		if v, ok := m["isTyping"].(bool); ok {
			r.mu.Lock()
			r.values = append(r.values, v)
			r.mu.Unlock()
		}
	}
	return r.Store.Set(ctx, path, value)
}

func (r *recordingStore) written() []bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]bool(nil), r.values...)
}

func newTestSync(t *testing.T) (*Synchronizer, *recordingStore, *clock.Mock) {
	t.Helper()
	mock := clock.NewMock()
	mock.Set(time.UnixMilli(1_700_000_000_000))
	store := &recordingStore{Store: rtdb.NewLocal(bus.New(), rtdb.WithClock(mock))}
	s := New(store, outbox.Inline{}, Options{Clock: mock})
	s.Attach(session.NewIdentity("Rishabh"))
	return s, store, mock
}

func equalWrites(t *testing.T, got []bool, want ...bool) {
	t.Helper()
	if len(got) != len(want) {
		t.Fatalf("writes = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("writes = %v, want %v", got, want)
		}
	}
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

// settle gives a mock timer callback time to run if it was going to.
func settle() { time.Sleep(20 * time.Millisecond) }

func TestStopTimerClearsFlag(t *testing.T) {
	s, store, mock := newTestSync(t)

	s.TextChanged("h")
	equalWrites(t, store.written(), true)

	mock.Add(DefaultStopAfter)
	waitFor(t, "stop write", func() bool { return len(store.written()) == 2 })
	equalWrites(t, store.written(), true, false)

	snap, err := store.Get(context.Background(), "typing/Rishabh")
	if err != nil {
		t.Fatal(err)
	}
	var r Record
	if err := snap.Decode(&r); err != nil {
		t.Fatal(err)
	}
	if r.IsTyping || r.Timestamp != mock.Now().UnixMilli() {
		t.Errorf("record = %+v, want cleared at %d", r, mock.Now().UnixMilli())
	}
}

func TestKeystrokeRearmsTimer(t *testing.T) {
	s, store, mock := newTestSync(t)

	s.TextChanged("h")
	mock.Add(1500 * time.Millisecond)
	s.TextChanged("he")
	mock.Add(time.Second) // 2.5s after the first keystroke
	settle()
	equalWrites(t, store.written(), true, true)

	mock.Add(time.Second) // 2s after the second keystroke
	waitFor(t, "stop write", func() bool { return len(store.written()) == 3 })
	equalWrites(t, store.written(), true, true, false)
}

// Typing then clearing the box before the timer fires writes true, then
// false once, and the old timer stays silent.
func TestClearBeforeTimeoutWritesOnce(t *testing.T) {
	s, store, mock := newTestSync(t)

	s.TextChanged("hello")
	mock.Add(500 * time.Millisecond)
	s.TextChanged("   ")
	equalWrites(t, store.written(), true, false)

	mock.Add(5 * time.Second)
	settle()
	equalWrites(t, store.written(), true, false)

	// Clearing an already clear box writes nothing.
	s.TextChanged("")
	s.Sent()
	equalWrites(t, store.written(), true, false)
}

// A record left by another session is not overwritten by an empty box.
func TestEmptyTextLeavesOtherSessionRecord(t *testing.T) {
	s, store, mock := newTestSync(t)
	ctx := context.Background()
	stale := map[string]any{"isTyping": true, "timestamp": mock.Now().UnixMilli()}
	if err := store.Store.Set(ctx, "typing/Rishabh", stale); err != nil {
		t.Fatal(err)
	}

	s.TextChanged("")
	equalWrites(t, store.written())

	snap, err := store.Get(ctx, "typing/Rishabh")
	if err != nil {
		t.Fatal(err)
	}
	var r Record
	if err := snap.Decode(&r); err != nil {
		t.Fatal(err)
	}
	if !r.IsTyping {
		t.Errorf("record = %+v, want the other session's flag kept", r)
	}
}

func TestSentClears(t *testing.T) {
	s, store, mock := newTestSync(t)

	s.TextChanged("hello")
	s.Sent()
	equalWrites(t, store.written(), true, false)

	mock.Add(DefaultStopAfter)
	settle()
	equalWrites(t, store.written(), true, false)
}

func TestDetachClears(t *testing.T) {
	s, store, mock := newTestSync(t)

	s.TextChanged("hello")
	s.Detach()
	equalWrites(t, store.written(), true, false)

	// Detached: keystrokes are ignored and the timer is gone.
	s.TextChanged("again")
	mock.Add(DefaultStopAfter)
	settle()
	equalWrites(t, store.written(), true, false)
}

func TestOthersTypingAgesOut(t *testing.T) {
	s, _, mock := newTestSync(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := s.Start(ctx); err != nil {
		t.Fatal(err)
	}

	// Saman typed, then crashed without clearing.
	err := s.store.Set(ctx, "typing/Saman", map[string]any{
		"isTyping":  true,
		"timestamp": mock.Now().UnixMilli(),
	})
	if err != nil {
		t.Fatal(err)
	}
	waitFor(t, "Saman typing", s.OthersTyping)

	if got := s.TypingUsers(); len(got) != 1 || got[0] != "Saman" {
		t.Errorf("TypingUsers() = %v, want [Saman]", got)
	}

	mock.Add(4900 * time.Millisecond)
	if !s.OthersTyping() {
		t.Error("flag expired before the staleness window")
	}
	mock.Add(200 * time.Millisecond)
	if s.OthersTyping() {
		t.Error("flag still fresh after the staleness window")
	}
}

func TestOwnFlagIsNotOthers(t *testing.T) {
	s, _, _ := newTestSync(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := s.Start(ctx); err != nil {
		t.Fatal(err)
	}

	s.TextChanged("hi")
	waitFor(t, "own record mirrored", func() bool {
		s.mu.Lock()
		defer s.mu.Unlock()
		_, ok := s.others["Rishabh"]
		return ok
	})
	if s.OthersTyping() {
		t.Error("own typing flag counted as someone else")
	}
}

func TestRecordFresh(t *testing.T) {
	now := time.UnixMilli(1_700_000_010_000)
	tests := []struct {
		name string
		rec  Record
		want bool
	}{
		{"fresh", Record{IsTyping: true, Timestamp: now.Add(-time.Second).UnixMilli()}, true},
		{"at window", Record{IsTyping: true, Timestamp: now.Add(-5 * time.Second).UnixMilli()}, true},
		{"stale", Record{IsTyping: true, Timestamp: now.Add(-5001 * time.Millisecond).UnixMilli()}, false},
		{"not typing", Record{IsTyping: false, Timestamp: now.UnixMilli()}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.rec.Fresh(now, DefaultStale); got != tt.want {
				t.Errorf("Fresh() = %v, want %v", got, tt.want)
			}
		})
	}
}
