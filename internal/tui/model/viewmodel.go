// Package model captures client state for rendering and turns bus events
// into redraw signals.
package model

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/matheus3301/duochat/internal/bus"
	"github.com/matheus3301/duochat/internal/chat"
	"github.com/matheus3301/duochat/internal/client"
	"github.com/matheus3301/duochat/internal/presence"
	"github.com/matheus3301/duochat/internal/status"
	"github.com/matheus3301/duochat/internal/tui/ui"
)

// View is everything a frame needs, captured at one instant.
type View struct {
	Profile  string
	Self     string // empty while logged out
	Conn     status.State
	Other    presence.Record
	HasOther bool
	Typing   []string
	Messages []chat.Message
	Now      time.Time
	Interval time.Duration
}

// LoggedIn reports whether an identity is attached.
func (v View) LoggedIn() bool { return v.Self != "" }

// OtherLive reports whether the other user counts as online.
func (v View) OtherLive() bool {
	return v.HasOther && v.Other.Live(v.Now, v.Interval)
}

// ViewModel watches a client and signals when the UI should redraw.
type ViewModel struct {
	client  *client.Client
	profile string
	Flash   *ui.Flash

	mu   sync.RWMutex
	view View

	refreshCh chan struct{}
}

// NewViewModel creates a view model over c.
func NewViewModel(c *client.Client, profile string) *ViewModel {
	vm := &ViewModel{
		client:    c,
		profile:   profile,
		Flash:     ui.NewFlash(nil),
		refreshCh: make(chan struct{}, 1),
	}
	vm.Capture()
	return vm
}

// RefreshCh receives a value whenever the captured view may be stale.
func (vm *ViewModel) RefreshCh() <-chan struct{} {
	return vm.refreshCh
}

func (vm *ViewModel) signalRefresh() {
	select {
	case vm.refreshCh <- struct{}{}:
	default:
	}
}

// Start follows the client bus until ctx is done. A one second tick ages
// out presence and typing flags that no event will retract.
func (vm *ViewModel) Start(ctx context.Context) {
	events, unsubscribe := vm.client.Bus.Subscribe("", 64)
	go func() {
		defer unsubscribe()
		ticker := time.NewTicker(time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case evt := <-events:
				vm.observe(evt)
			case <-ticker.C:
			}
			vm.Capture()
			vm.signalRefresh()
		}
	}()
}

// observe flashes connectivity transitions. Failed background writes are
// logged by the outbox and never surface here.
func (vm *ViewModel) observe(evt bus.Event) {
	switch p := evt.Payload.(type) {
	case status.StatusChange:
		if p.To == status.Offline {
			vm.Flash.Err(errors.New("connection lost, changes are paused"))
		} else if p.To == status.Online && p.From == status.Offline {
			vm.Flash.Info("back online")
		}
	}
}

// Capture re-reads the client state.
func (vm *ViewModel) Capture() View {
	c := vm.client
	v := View{
		Profile:  vm.profile,
		Conn:     c.Conn.Current(),
		Typing:   c.Typing.TypingUsers(),
		Messages: c.Chat.Messages(),
		Now:      time.Now(),
		Interval: c.Presence.Interval(),
	}
	if id, ok := c.Session.Current(); ok {
		v.Self = id.Name
	}
	v.Other, v.HasOther = c.Presence.Other(v.Self)

	vm.mu.Lock()
	vm.view = v
	vm.mu.Unlock()
	return v
}

// View returns the last captured view.
func (vm *ViewModel) View() View {
	vm.mu.RLock()
	defer vm.mu.RUnlock()
	return vm.view
}

// PresenceText describes the other user for the header.
func PresenceText(v View) string {
	switch {
	case !v.HasOther:
		return "no one else here yet"
	case v.OtherLive():
		return "online"
	case v.Other.LastSeen == 0:
		return "offline"
	default:
		return "last seen " + LastSeen(v.Other.LastSeenTime(), v.Now)
	}
}

// LastSeen formats t relative to now's calendar day.
func LastSeen(t, now time.Time) string {
	t, now = t.Local(), now.Local()
	y1, m1, d1 := t.Date()
	y2, m2, d2 := now.Date()
	switch {
	case y1 == y2 && m1 == m2 && d1 == d2:
		return "today at " + t.Format("15:04")
	case now.AddDate(0, 0, -1).Format(time.DateOnly) == t.Format(time.DateOnly):
		return "yesterday at " + t.Format("15:04")
	default:
		return t.Format("Jan 2 15:04")
	}
}

// TypingText names who is typing, or returns "" when nobody is.
func TypingText(names []string) string {
	switch len(names) {
	case 0:
		return ""
	case 1:
		return names[0] + " is typing…"
	default:
		return strings.Join(names, " and ") + " are typing…"
	}
}

// StatusMark renders a delivery status as ticks.
func StatusMark(s chat.Status) string {
	switch s {
	case chat.StatusDelivered, chat.StatusRead:
		return "✓✓"
	default:
		return "✓"
	}
}

var (
	ErrNoSuchMessage = errors.New("no such message")
	ErrNotYours      = errors.New("only your own messages can be changed")
)

// OwnMessage returns the n-th message of the thread, counting from 1, if
// self sent it.
func OwnMessage(msgs []chat.Message, self string, n int) (chat.Message, error) {
	if n < 1 || n > len(msgs) {
		return chat.Message{}, fmt.Errorf("%w: #%d", ErrNoSuchMessage, n)
	}
	m := msgs[n-1]
	if !m.Mine(self) {
		return chat.Message{}, ErrNotYours
	}
	return m, nil
}

// LastOwn returns the 1-based position of self's latest message that is
// not deleted.
func LastOwn(msgs []chat.Message, self string) (int, bool) {
	for i := len(msgs) - 1; i >= 0; i-- {
		if msgs[i].Mine(self) && !msgs[i].Deleted {
			return i + 1, true
		}
	}
	return 0, false
}
