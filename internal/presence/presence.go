// Package presence keeps this client's users/<name> record fresh with a
// heartbeat and mirrors every user's record for the UI.
package presence

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/matheus3301/duochat/internal/bus"
	"github.com/matheus3301/duochat/internal/outbox"
	"github.com/matheus3301/duochat/internal/rtdb"
	"github.com/matheus3301/duochat/internal/session"
	"go.uber.org/zap"
)

// Collection is the store path holding presence records.
const Collection = "users"

// DefaultInterval is the heartbeat period.
const DefaultInterval = 30 * time.Second

// Record is a user's presence. LastSeen is Unix milliseconds.
type Record struct {
	Name     string `json:"name"`
	IsOnline bool   `json:"isOnline"`
	LastSeen int64  `json:"lastSeen"`
}

// LastSeenTime returns LastSeen as a time.
func (r Record) LastSeenTime() time.Time {
	return time.UnixMilli(r.LastSeen)
}

// Live reports whether the record claims online and its heartbeat is no
// older than two intervals. Readers use it to discount clients that died
// without writing offline.
func (r Record) Live(now time.Time, interval time.Duration) bool {
	return r.IsOnline && now.Sub(r.LastSeenTime()) <= 2*interval
}

// Options tunes a Synchronizer.
type Options struct {
	Interval time.Duration
	Clock    clock.Clock
	Bus      *bus.Bus
	Logger   *zap.Logger
}

// Synchronizer writes the attached identity's presence and mirrors the
// presence collection.
type Synchronizer struct {
	store    rtdb.Store
	writer   outbox.Writer
	interval time.Duration
	clock    clock.Clock
	bus      *bus.Bus
	logger   *zap.Logger

	mu    sync.RWMutex
	users map[string]Record

	hbMu   sync.Mutex
	self   string
	stop   chan struct{}
	exited chan struct{}
}

// New creates a presence synchronizer.
func New(store rtdb.Store, w outbox.Writer, opts Options) *Synchronizer {
	s := &Synchronizer{
		store:    store,
		writer:   w,
		interval: opts.Interval,
		clock:    opts.Clock,
		bus:      opts.Bus,
		logger:   opts.Logger,
		users:    make(map[string]Record),
	}
	if s.interval <= 0 {
		s.interval = DefaultInterval
	}
	if s.clock == nil {
		s.clock = clock.New()
	}
	if s.logger == nil {
		s.logger = zap.NewNop()
	}
	return s
}

// Interval returns the heartbeat period.
func (s *Synchronizer) Interval() time.Duration {
	return s.interval
}

// Start mirrors the presence collection until ctx is done. It does not
// depend on an identity being attached.
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
	users := make(map[string]Record)
	for _, name := range snap.Children() {
		var r Record
		if err := snap.Child(name).Decode(&r); err != nil {
			s.logger.Warn("skipping malformed presence record", zap.String("user", name), zap.Error(err))
			continue
		}
		if r.Name == "" {
			r.Name = name
		}
		users[name] = r
	}
	s.mu.Lock()
	s.users = users
	s.mu.Unlock()
	s.bus.Emit(bus.PresenceUpdated, len(users))
}

// Users returns every known record sorted by name.
func (s *Synchronizer) Users() []Record {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Record, 0, len(s.users))
	for _, r := range s.users {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Get returns the record for name.
func (s *Synchronizer) Get(name string) (Record, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.users[name]
	return r, ok
}

// Other returns the conversation partner: the first user by name that is
// not self.
func (s *Synchronizer) Other(self string) (Record, bool) {
	for _, r := range s.Users() {
		if r.Name != self {
			return r, true
		}
	}
	return Record{}, false
}

// Attach marks id online and starts the heartbeat.
func (s *Synchronizer) Attach(id session.Identity) {
	s.hbMu.Lock()
	defer s.hbMu.Unlock()
	if s.self != "" {
		s.detachLocked()
	}
	s.self = id.Name
	s.stop = make(chan struct{})
	s.exited = make(chan struct{})

	s.writer.Submit("presence.online", s.write(id.Name, true))
	go s.heartbeat(id.Name, s.clock.Ticker(s.interval), s.stop, s.exited)
}

// Detach stops the heartbeat and writes the final offline record.
func (s *Synchronizer) Detach() {
	s.hbMu.Lock()
	defer s.hbMu.Unlock()
	if s.self != "" {
		s.detachLocked()
	}
}

// Refresh rewrites the online record now, for when connectivity returns and
// the last write may have been skipped.
func (s *Synchronizer) Refresh() {
	s.hbMu.Lock()
	defer s.hbMu.Unlock()
	if s.self != "" {
		s.writer.Submit("presence.refresh", s.write(s.self, true))
	}
}

func (s *Synchronizer) detachLocked() {
	close(s.stop)
	<-s.exited
	s.writer.Attempt("presence.offline", s.write(s.self, false))
	s.self = ""
}

func (s *Synchronizer) heartbeat(name string, ticker *clock.Ticker, stop <-chan struct{}, exited chan<- struct{}) {
	defer close(exited)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			s.writer.Submit("presence.heartbeat", s.write(name, true))
		case <-stop:
			return
		}
	}
}

func (s *Synchronizer) write(name string, online bool) outbox.WriteFunc {
	return func(ctx context.Context) error {
		return s.store.Set(ctx, rtdb.Join(Collection, name), map[string]any{
			"name":     name,
			"isOnline": online,
			"lastSeen": rtdb.ServerTimestamp(),
		})
	}
}
