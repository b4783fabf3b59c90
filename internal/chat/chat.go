// Package chat mirrors the message collection as an ordered thread and
// advances delivery status: sent, then delivered, then read.
package chat

import (
	"context"
	"errors"
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

// Collection is the store path holding messages.
const Collection = "messages"

// DefaultDeliveredAfter is how old an own message must be before it is
// marked delivered.
const DefaultDeliveredAfter = time.Second

// inflightTTL bounds how long a submitted advancement suppresses resubmits.
const inflightTTL = 30 * time.Second

var (
	ErrEmptyMessage   = errors.New("empty message")
	ErrOffline        = errors.New("offline")
	ErrUnknownMessage = errors.New("unknown message")
	ErrMessageDeleted = errors.New("message deleted")
)

// Options tunes a Synchronizer.
type Options struct {
	DeliveredAfter time.Duration
	Gate           outbox.Gate
	Clock          clock.Clock
	Bus            *bus.Bus
	Logger         *zap.Logger
}

type advancement struct {
	target Status
	since  time.Time
}

type pending struct {
	op string
	fn outbox.WriteFunc
}

// Synchronizer keeps the local thread and drives status advancement for the
// attached identity.
type Synchronizer struct {
	store          rtdb.Store
	writer         outbox.Writer
	gate           outbox.Gate
	deliveredAfter time.Duration
	clock          clock.Clock
	bus            *bus.Bus
	logger         *zap.Logger

	mu       sync.Mutex
	self     string
	messages []Message
	inflight map[string]advancement
	timer    *clock.Timer
	timerDue time.Time
	gen      uint64
}

// New creates a message synchronizer.
func New(store rtdb.Store, w outbox.Writer, opts Options) *Synchronizer {
	s := &Synchronizer{
		store:          store,
		writer:         w,
		gate:           opts.Gate,
		deliveredAfter: opts.DeliveredAfter,
		clock:          opts.Clock,
		bus:            opts.Bus,
		logger:         opts.Logger,
		inflight:       make(map[string]advancement),
	}
	if s.deliveredAfter <= 0 {
		s.deliveredAfter = DefaultDeliveredAfter
	}
	if s.clock == nil {
		s.clock = clock.New()
	}
	if s.logger == nil {
		s.logger = zap.NewNop()
	}
	return s
}

// Start mirrors the message collection until ctx is done.
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

// apply rebuilds the thread from a full snapshot and runs both scans.
func (s *Synchronizer) apply(snap rtdb.Snapshot) {
	messages := decodeMessages(snap, s.logger)

	s.mu.Lock()
	s.messages = messages
	for _, m := range messages {
		if a, ok := s.inflight[m.ID]; ok && m.Status.rank() >= a.target.rank() {
			delete(s.inflight, m.ID)
		}
	}
	writes := s.scanLocked()
	s.mu.Unlock()

	s.submit(writes)
	s.bus.Emit(bus.ChatUpdated, len(messages))
}

// Thread decodes a snapshot of the message collection into display order,
// skipping malformed entries.
func Thread(snap rtdb.Snapshot) []Message {
	return decodeMessages(snap, zap.NewNop())
}

func decodeMessages(snap rtdb.Snapshot, logger *zap.Logger) []Message {
	ids := snap.Children()
	messages := make([]Message, 0, len(ids))
	for _, id := range ids {
		var m Message
		if err := snap.Child(id).Decode(&m); err != nil {
			logger.Warn("skipping malformed message", zap.String("id", id), zap.Error(err))
			continue
		}
		m.ID = id
		messages = append(messages, m)
	}
	sortMessages(messages)
	return messages
}

// sortMessages orders by CreatedAt, falling back to key order on ties.
func sortMessages(messages []Message) {
	sort.SliceStable(messages, func(i, j int) bool {
		ci, cj := messages[i].Created(), messages[j].Created()
		if !ci.Equal(cj) {
			return ci.Before(cj)
		}
		return messages[i].ID < messages[j].ID
	})
}

// Attach starts advancing status on behalf of id.
func (s *Synchronizer) Attach(id session.Identity) {
	s.mu.Lock()
	s.self = id.Name
	s.inflight = make(map[string]advancement)
	writes := s.scanLocked()
	s.mu.Unlock()
	s.submit(writes)
}

// Detach stops advancing status and cancels the delivery check.
func (s *Synchronizer) Detach() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.self = ""
	s.stopTimerLocked()
}

// Rescan re-runs the read and delivered scans over the current thread, for
// when connectivity returns without a new snapshot. Pending advancements are
// forgotten since writes queued before a disconnect may never land.
func (s *Synchronizer) Rescan() {
	s.mu.Lock()
	s.inflight = make(map[string]advancement)
	writes := s.scanLocked()
	s.mu.Unlock()
	s.submit(writes)
}

// Messages returns a copy of the ordered thread.
func (s *Synchronizer) Messages() []Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Message, len(s.messages))
	for i, m := range s.messages {
		out[i] = copyMessage(m)
	}
	return out
}

// Get returns the message with id.
func (s *Synchronizer) Get(id string) (Message, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.findLocked(id)
	return copyMessage(m), ok
}

// Send appends a new message from the attached identity. The write itself is
// fire-and-forget.
func (s *Synchronizer) Send(text string) error {
	text = strings.TrimSpace(text)
	if text == "" {
		return ErrEmptyMessage
	}
	if !s.online() {
		return ErrOffline
	}

	s.mu.Lock()
	self := s.self
	if self == "" {
		s.mu.Unlock()
		return session.ErrNoIdentity
	}
	now := s.clock.Now()
	s.armLocked(now.Add(s.deliveredAfter), now)
	s.mu.Unlock()

	msg := map[string]any{
		"text":      text,
		"sender":    self,
		"createdAt": formatCreated(now),
		"timestamp": rtdb.ServerTimestamp(),
		"status":    string(StatusSent),
	}
	s.writer.Submit("message.send", func(ctx context.Context) error {
		_, err := s.store.Push(ctx, Collection, msg)
		return err
	})
	return nil
}

// Unsend redacts a message in place. Repeating it changes nothing.
func (s *Synchronizer) Unsend(id string) error {
	if _, err := s.lookup(id); err != nil {
		return err
	}
	if !s.online() {
		return ErrOffline
	}
	s.writer.Submit("message.unsend", s.update(id, map[string]any{
		"text":    DeletedText,
		"deleted": true,
	}))
	return nil
}

// Edit replaces a message's text and flags it edited. Status is untouched.
func (s *Synchronizer) Edit(id, text string) error {
	text = strings.TrimSpace(text)
	if text == "" {
		return ErrEmptyMessage
	}
	m, err := s.lookup(id)
	if err != nil {
		return err
	}
	if m.Deleted {
		return ErrMessageDeleted
	}
	if !s.online() {
		return ErrOffline
	}
	s.writer.Submit("message.edit", s.update(id, map[string]any{
		"text":   text,
		"edited": true,
	}))
	return nil
}

func (s *Synchronizer) lookup(id string) (Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.findLocked(id)
	if !ok {
		return Message{}, ErrUnknownMessage
	}
	return m, nil
}

func (s *Synchronizer) update(id string, fields map[string]any) outbox.WriteFunc {
	return func(ctx context.Context) error {
		return s.store.Update(ctx, rtdb.Join(Collection, id), fields)
	}
}

func (s *Synchronizer) online() bool {
	return s.gate == nil || s.gate.Online()
}

func (s *Synchronizer) findLocked(id string) (Message, bool) {
	for _, m := range s.messages {
		if m.ID == id {
			return m, true
		}
	}
	return Message{}, false
}

// scanLocked collects the status advancements due now and arms the delivery
// check for own messages that are not old enough yet.
func (s *Synchronizer) scanLocked() []pending {
	if s.self == "" || !s.online() {
		return nil
	}
	now := s.clock.Now()
	var writes []pending
	var next time.Time
	for _, m := range s.messages {
		switch {
		case !m.Mine(s.self) && m.Status != StatusRead:
			// Observing the message is what counts as reading it.
			if w, ok := s.advanceLocked(m.ID, StatusRead, now); ok {
				writes = append(writes, w)
			}
		case m.Mine(s.self) && m.Status == StatusSent:
			due := m.Created().Add(s.deliveredAfter)
			if now.After(due) {
				if w, ok := s.advanceLocked(m.ID, StatusDelivered, now); ok {
					writes = append(writes, w)
				}
			} else if next.IsZero() || due.Before(next) {
				next = due
			}
		}
	}
	if !next.IsZero() {
		s.armLocked(next, now)
	}
	return writes
}

func (s *Synchronizer) advanceLocked(id string, target Status, now time.Time) (pending, bool) {
	if a, ok := s.inflight[id]; ok && a.target.rank() >= target.rank() && now.Sub(a.since) < inflightTTL {
		return pending{}, false
	}
	s.inflight[id] = advancement{target: target, since: now}
	self := s.self
	path := rtdb.Join(Collection, id)
	return pending{
		op: "message." + string(target),
		fn: func(ctx context.Context) error {
			_, err := s.store.Transaction(ctx, path, advance(target, self))
			if err != nil {
				s.release(id, now)
			}
			return err
		},
	}, true
}

// release forgets a failed advancement so the next scan retries it. A newer
// submission for id is left alone.
func (s *Synchronizer) release(id string, since time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if a, ok := s.inflight[id]; ok && a.since.Equal(since) {
		delete(s.inflight, id)
	}
}

// advance moves a stored message to target, refusing to go backwards. Read
// may skip delivered when the recipient sees the message first.
func advance(target Status, reader string) func(any) (any, error) {
	return func(cur any) (any, error) {
		m, ok := cur.(map[string]any)
		if !ok {
			return nil, rtdb.ErrAbort
		}
		status, _ := m["status"].(string)
		if Status(status).rank() >= target.rank() {
			return nil, rtdb.ErrAbort
		}
		m["status"] = string(target)
		switch target {
		case StatusDelivered:
			m["deliveredAt"] = rtdb.ServerTimestamp()
		case StatusRead:
			m["readAt"] = rtdb.ServerTimestamp()
			readBy, _ := m["readBy"].(map[string]any)
			if readBy == nil {
				readBy = make(map[string]any)
			}
			readBy[reader] = true
			m["readBy"] = readBy
		}
		return m, nil
	}
}

// armLocked schedules a delivery check at due unless an earlier one is set.
func (s *Synchronizer) armLocked(due, now time.Time) {
	if s.timer != nil && !s.timerDue.After(due) {
		return
	}
	s.stopTimerLocked()
	gen := s.gen
	s.timerDue = due
	// Fire just past due: delivery needs strictly more than deliveredAfter.
	s.timer = s.clock.AfterFunc(due.Sub(now)+time.Millisecond, func() { s.deliveryCheck(gen) })
}

func (s *Synchronizer) stopTimerLocked() {
	s.gen++
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
	s.timerDue = time.Time{}
}

func (s *Synchronizer) deliveryCheck(gen uint64) {
	s.mu.Lock()
	if gen != s.gen {
		s.mu.Unlock()
		return
	}
	s.timer = nil
	s.timerDue = time.Time{}
	writes := s.scanLocked()
	s.mu.Unlock()
	s.submit(writes)
}

func (s *Synchronizer) submit(writes []pending) {
	for _, w := range writes {
		s.writer.Submit(w.op, w.fn)
	}
}

func copyMessage(m Message) Message {
	if m.ReadBy != nil {
		rb := make(map[string]bool, len(m.ReadBy))
		for k, v := range m.ReadBy {
			rb[k] = v
		}
		m.ReadBy = rb
	}
	return m
}
