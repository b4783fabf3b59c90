// Package typing publishes whether the local user is typing and tracks who
// else is.
package typing

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/matheus3301/duochat/internal/bus"
	"github.com/matheus3301/duochat/internal/outbox"
	"github.com/matheus3301/duochat/internal/rtdb"
	"github.com/matheus3301/duochat/internal/session"
	"go.uber.org/zap"
)

// Collection is the store path holding typing records.
const Collection = "typing"

const (
	DefaultStopAfter = 2 * time.Second
	DefaultStale     = 5 * time.Second
)

// Record is a user's typing flag. Timestamp is the writer's Unix milliseconds.
type Record struct {
	IsTyping  bool  `json:"isTyping"`
	Timestamp int64 `json:"timestamp"`
}

// Fresh reports whether r says typing and was written within window of now.
// A client that dies mid-debounce leaves isTyping=true behind; readers age it
// out here.
func (r Record) Fresh(now time.Time, window time.Duration) bool {
	return r.IsTyping && now.Sub(time.UnixMilli(r.Timestamp)) <= window
}

// Options tunes a Synchronizer.
type Options struct {
	StopAfter time.Duration
	Stale     time.Duration
	Clock     clock.Clock
	Bus       *bus.Bus
	Logger    *zap.Logger
}

// Synchronizer debounces the local typing flag and mirrors everyone's.
type Synchronizer struct {
	store     rtdb.Store
	writer    outbox.Writer
	stopAfter time.Duration
	stale     time.Duration
	clock     clock.Clock
	bus       *bus.Bus
	logger    *zap.Logger

	mu     sync.Mutex
	self   string
	typing bool // last write for self was true
	timer  *clock.Timer
	gen    uint64
	others map[string]Record
}

// New creates a typing synchronizer.
func New(store rtdb.Store, w outbox.Writer, opts Options) *Synchronizer {
	s := &Synchronizer{
		store:     store,
		writer:    w,
		stopAfter: opts.StopAfter,
		stale:     opts.Stale,
		clock:     opts.Clock,
		bus:       opts.Bus,
		logger:    opts.Logger,
		others:    make(map[string]Record),
	}
	if s.stopAfter <= 0 {
		s.stopAfter = DefaultStopAfter
	}
	if s.stale <= 0 {
		s.stale = DefaultStale
	}
	if s.clock == nil {
		s.clock = clock.New()
	}
	if s.logger == nil {
		s.logger = zap.NewNop()
	}
	return s
}

// Start mirrors the typing collection until ctx is done.
func (s *Synchronizer) Start(ctx context.Context) error {
	snaps, err := s.store.Subscribe(ctx, Collection)
	if err != nil {
		return err
	}
	go func() {
		for snap := range snaps {
			s.apply(snap)
		}
	}()
	return nil
}

func (s *Synchronizer) apply(snap rtdb.Snapshot) {
	records := make(map[string]Record)
	for _, name := range snap.Children() {
		var r Record
		if err := snap.Child(name).Decode(&r); err != nil {
			s.logger.Warn("skipping malformed typing record", zap.String("user", name), zap.Error(err))
			continue
		}
		records[name] = r
	}
	s.mu.Lock()
	s.others = records
	s.mu.Unlock()
	s.bus.Emit(bus.TypingUpdated, len(records))
}

// Attach starts publishing for id.
func (s *Synchronizer) Attach(id session.Identity) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.self != "" && s.self != id.Name {
		s.clearLocked(true)
	}
	s.self = id.Name
	s.typing = false
}

// Detach clears the flag and stops publishing.
func (s *Synchronizer) Detach() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.self == "" {
		return
	}
	s.clearLocked(true)
	s.self = ""
}

// TextChanged reports the composer's current text. Non-blank text marks the
// user typing and re-arms the stop timer; blank text clears at once.
func (s *Synchronizer) TextChanged(text string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.self == "" {
		return
	}
	if strings.TrimSpace(text) == "" {
		// Writes nothing unless this client last wrote true, so a stale
		// record from another session is never contradicted.
		s.clearLocked(false)
		return
	}

	s.cancelTimerLocked()
	s.typing = true
	s.writer.Submit("typing.start", s.write(s.self, true))

	gen := s.gen
	s.timer = s.clock.AfterFunc(s.stopAfter, func() { s.expire(gen) })
}

// Sent clears the flag after a message goes out.
func (s *Synchronizer) Sent() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.self != "" {
		s.clearLocked(false)
	}
}

func (s *Synchronizer) expire(gen uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if gen != s.gen || s.self == "" {
		return
	}
	s.timer = nil
	s.clearLocked(false)
}

// clearLocked cancels the stop timer and writes false if the last write was
// true. attempt bypasses the connectivity gate for best-effort teardown.
func (s *Synchronizer) clearLocked(attempt bool) {
	s.cancelTimerLocked()
	if !s.typing {
		return
	}
	s.typing = false
	if attempt {
		s.writer.Attempt("typing.stop", s.write(s.self, false))
		return
	}
	s.writer.Submit("typing.stop", s.write(s.self, false))
}

// cancelTimerLocked invalidates any pending stop timer, including one whose
// callback is already waiting for the lock.
func (s *Synchronizer) cancelTimerLocked() {
	s.gen++
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
}

func (s *Synchronizer) write(name string, typing bool) outbox.WriteFunc {
	rec := map[string]any{
		"isTyping":  typing,
		"timestamp": s.clock.Now().UnixMilli(),
	}
	return func(ctx context.Context) error {
		return s.store.Set(ctx, rtdb.Join(Collection, name), rec)
	}
}

// TypingUsers returns the other users with a fresh typing flag, by name.
func (s *Synchronizer) TypingUsers() []string {
	now := s.clock.Now()
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []string
	for name, r := range s.others {
		if name != s.self && r.Fresh(now, s.stale) {
			out = append(out, name)
		}
	}
	sort.Strings(out)
	return out
}

// OthersTyping reports whether anyone other than the attached user is typing.
func (s *Synchronizer) OthersTyping() bool {
	return len(s.TypingUsers()) > 0
}
