package ui

import (
	"sync"
	"time"
)

// FlashLevel is the severity of a flash message.
type FlashLevel int

const (
	FlashInfo FlashLevel = iota
	FlashErr
)

// FlashMessage is a transient notification.
type FlashMessage struct {
	Text    string
	Level   FlashLevel
	Expires time.Time
}

// Flash holds the current notification. It is safe for concurrent use.
type Flash struct {
	mu      sync.Mutex
	current FlashMessage
	now     func() time.Time
}

// NewFlash creates an empty flash. A nil now uses time.Now.
func NewFlash(now func() time.Time) *Flash {
	if now == nil {
		now = time.Now
	}
	return &Flash{now: now}
}

// Info shows msg for five seconds.
func (f *Flash) Info(msg string) {
	f.set(msg, FlashInfo, 5*time.Second)
}

// Err shows err for ten seconds.
func (f *Flash) Err(err error) {
	f.set(err.Error(), FlashErr, 10*time.Second)
}

func (f *Flash) set(msg string, level FlashLevel, d time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.current = FlashMessage{Text: msg, Level: level, Expires: f.now().Add(d)}
}

// Clear drops the current message.
func (f *Flash) Clear() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.current = FlashMessage{}
}

// Current returns the message unless it has expired.
func (f *Flash) Current() (FlashMessage, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.current.Text == "" || f.now().After(f.current.Expires) {
		return FlashMessage{}, false
	}
	return f.current, true
}
