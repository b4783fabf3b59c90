package session

import (
	"crypto/subtle"
	"errors"
	"os"
	"sync"

	"github.com/matheus3301/duochat/internal/bus"
	"go.uber.org/zap"
)

var (
	// ErrInvalidCredentials is the only login failure callers see, whatever
	// part of the pair was wrong.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrNoIdentity means there is no usable persisted or active identity.
	ErrNoIdentity = errors.New("no identity")
)

// Verifier checks a login pair.
type Verifier interface {
	Verify(name, passcode string) bool
}

// StaticVerifier checks against a fixed name → passcode table.
type StaticVerifier map[string]string

// Verify implements Verifier.
func (v StaticVerifier) Verify(name, passcode string) bool {
	want, ok := v[name]
	if !ok {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(want), []byte(passcode)) == 1
}

// Hook follows the session lifecycle. Attach runs when an identity becomes
// active, Detach when it stops being active.
type Hook interface {
	Attach(id Identity)
	Detach()
}

// Manager owns the active identity and its on-disk copy.
type Manager struct {
	opMu sync.Mutex // serializes Restore/Login/Logout/Shutdown

	mu      sync.Mutex
	current *Identity

	path     string
	verifier Verifier
	hooks    []Hook
	bus      *bus.Bus
	logger   *zap.Logger
}

// NewManager creates a manager persisting the identity at path.
func NewManager(path string, v Verifier, b *bus.Bus, logger *zap.Logger) *Manager {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Manager{path: path, verifier: v, bus: b, logger: logger}
}

// AddHook registers h. Hooks run in registration order on attach and in
// reverse order on detach.
func (m *Manager) AddHook(h Hook) {
	m.opMu.Lock()
	defer m.opMu.Unlock()
	m.hooks = append(m.hooks, h)
}

// Current returns the active identity.
func (m *Manager) Current() (Identity, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.current == nil {
		return Identity{}, false
	}
	return *m.current, true
}

// Restore activates the persisted identity. It returns ErrNoIdentity when
// nothing usable is stored.
func (m *Manager) Restore() (Identity, error) {
	m.opMu.Lock()
	defer m.opMu.Unlock()

	if id, ok := m.Current(); ok {
		return id, nil
	}
	id, err := readIdentity(m.path)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			m.logger.Warn("ignoring stored identity", zap.String("path", m.path), zap.Error(err))
		}
		return Identity{}, ErrNoIdentity
	}
	m.activate(id)
	m.logger.Info("session restored", zap.String("user", id.Name))
	return id, nil
}

// Login verifies the pair, persists the identity and activates it.
func (m *Manager) Login(name, passcode string) (Identity, error) {
	m.opMu.Lock()
	defer m.opMu.Unlock()

	if ValidateName(name) != nil || m.verifier == nil || !m.verifier.Verify(name, passcode) {
		m.logger.Info("login rejected")
		return Identity{}, ErrInvalidCredentials
	}

	if cur, ok := m.Current(); ok {
		if cur.Name == name {
			return cur, nil
		}
		m.deactivate()
	}

	id := NewIdentity(name)
	if err := writeIdentity(m.path, id); err != nil {
		m.logger.Warn("persist identity failed", zap.String("path", m.path), zap.Error(err))
	}
	m.activate(id)
	m.logger.Info("logged in", zap.String("user", id.Name))
	return id, nil
}

// Logout detaches the active identity and forgets the persisted copy.
func (m *Manager) Logout() error {
	m.opMu.Lock()
	defer m.opMu.Unlock()

	id, ok := m.Current()
	if !ok {
		return ErrNoIdentity
	}
	m.deactivate()
	if err := os.Remove(m.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		m.logger.Warn("remove identity failed", zap.String("path", m.path), zap.Error(err))
	}
	m.logger.Info("logged out", zap.String("user", id.Name))
	return nil
}

// Shutdown detaches without forgetting the identity, so the next Restore
// picks it up again.
func (m *Manager) Shutdown() {
	m.opMu.Lock()
	defer m.opMu.Unlock()
	if _, ok := m.Current(); ok {
		m.deactivate()
	}
}

func (m *Manager) activate(id Identity) {
	m.mu.Lock()
	m.current = &id
	m.mu.Unlock()
	for _, h := range m.hooks {
		h.Attach(id)
	}
	m.bus.Emit(bus.SessionLogin, id.Name)
}

func (m *Manager) deactivate() {
	m.mu.Lock()
	name := ""
	if m.current != nil {
		name = m.current.Name
	}
	m.current = nil
	m.mu.Unlock()
	for i := len(m.hooks) - 1; i >= 0; i-- {
		m.hooks[i].Detach()
	}
	m.bus.Emit(bus.SessionLogout, name)
}
