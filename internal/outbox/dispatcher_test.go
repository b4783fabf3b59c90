package outbox

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/matheus3301/duochat/internal/bus"
)

type fakeGate struct{ online atomic.Bool }

func (g *fakeGate) Online() bool { return g.online.Load() }

func openGate() *fakeGate {
	g := &fakeGate{}
	g.online.Store(true)
	return g
}

type recorder struct {
	mu  sync.Mutex
	ops []string
}

func (r *recorder) write(op string) WriteFunc {
	return func(context.Context) error {
		r.mu.Lock()
		r.ops = append(r.ops, op)
		r.mu.Unlock()
		return nil
	}
}

func (r *recorder) snapshot() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.ops...)
}

func TestDispatcherPreservesOrder(t *testing.T) {
	d := NewDispatcher(openGate(), nil, nil)
	d.Start(context.Background())

	rec := &recorder{}
	want := []string{"a", "b", "c", "d", "e"}
	for _, op := range want {
		d.Submit(op, rec.write(op))
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	d.Stop(ctx)

	got := rec.snapshot()
	if len(got) != len(want) {
		t.Fatalf("ran %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("op[%d] = %s, want %s", i, got[i], want[i])
		}
	}
}

func TestDispatcherSkipsWhileOffline(t *testing.T) {
	b := bus.New()
	ch, unsub := b.Subscribe(bus.WriteSkipped, 4)
	defer unsub()

	gate := &fakeGate{}
	d := NewDispatcher(gate, b, nil)
	d.Start(context.Background())

	rec := &recorder{}
	d.Submit("heartbeat", rec.write("heartbeat"))
	d.Attempt("presence.offline", rec.write("presence.offline"))

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	d.Stop(ctx)

	got := rec.snapshot()
	if len(got) != 1 || got[0] != "presence.offline" {
		t.Errorf("ran %v, want only presence.offline", got)
	}

	select {
	case evt := <-ch:
		skip, ok := evt.Payload.(Skip)
		if !ok || skip.Op != "heartbeat" || skip.Reason != "offline" {
			t.Errorf("skip payload = %#v", evt.Payload)
		}
	case <-time.After(time.Second):
		t.Fatal("no outbox.skipped event")
	}
}

func TestDispatcherPublishesFailures(t *testing.T) {
	b := bus.New()
	ch, unsub := b.Subscribe(bus.WriteFailed, 4)
	defer unsub()

	d := NewDispatcher(nil, b, nil)
	d.Start(context.Background())
	defer d.Stop(context.Background())

	boom := errors.New("boom")
	d.Submit("message.send", func(context.Context) error { return boom })

	select {
	case evt := <-ch:
		f, ok := evt.Payload.(Failure)
		if !ok || f.Op != "message.send" || !errors.Is(f.Err, boom) {
			t.Errorf("failure payload = %#v", evt.Payload)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("no outbox.failed event")
	}
}

func TestDispatcherDoesNotBlockCaller(t *testing.T) {
	d := NewDispatcher(nil, nil, nil)
	d.Start(context.Background())

	release := make(chan struct{})
	d.Submit("slow", func(ctx context.Context) error {
		<-release
		return nil
	})

	returned := make(chan struct{})
	go func() {
		d.Submit("next", func(context.Context) error { return nil })
		close(returned)
	}()
	select {
	case <-returned:
	case <-time.After(time.Second):
		t.Fatal("Submit blocked behind a running write")
	}
	close(release)
	d.Stop(context.Background())
}

func TestDispatcherStopDeadline(t *testing.T) {
	d := NewDispatcher(nil, nil, nil)
	d.timeout = time.Minute
	d.Start(context.Background())

	d.Submit("stuck", func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	})

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	start := time.Now()
	d.Stop(ctx)
	if time.Since(start) > time.Second {
		t.Error("Stop did not honor its deadline")
	}

	// Writes after Stop are dropped.
	rec := &recorder{}
	d.Submit("late", rec.write("late"))
	if len(rec.snapshot()) != 0 {
		t.Error("write ran after Stop")
	}
}

func TestInline(t *testing.T) {
	gate := &fakeGate{}
	rec := &recorder{}
	w := Inline{Gate: gate}

	w.Submit("a", rec.write("a"))
	w.Attempt("b", rec.write("b"))
	gate.online.Store(true)
	w.Submit("c", rec.write("c"))

	got := rec.snapshot()
	if len(got) != 2 || got[0] != "b" || got[1] != "c" {
		t.Errorf("ran %v, want [b c]", got)
	}
}
