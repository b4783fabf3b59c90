package session

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/matheus3301/duochat/internal/bus"
)

type recordingHook struct {
	name   string
	events *[]string
}

func (h recordingHook) Attach(id Identity) { *h.events = append(*h.events, h.name+".attach:"+id.Name) }
func (h recordingHook) Detach() { *h.events = append(*h.events, h.name+".detach") }

var testCredentials = StaticVerifier{"Rishabh": "1234", "Saman": "chudail"}

func newTestManager(t *testing.T) (*Manager, string, *[]string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "profiles", "main", "identity.json")
	events := &[]string{}
	m := NewManager(path, testCredentials, bus.New(), nil)
	m.AddHook(recordingHook{"presence", events})
	m.AddHook(recordingHook{"typing", events})
	return m, path, events
}

func equalEvents(t *testing.T, got []string, want ...string) {
	t.Helper()
	if len(got) != len(want) {
		t.Fatalf("events = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("event[%d] = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestStaticVerifier(t *testing.T) {
	tests := []struct {
		name, pass string
		want       bool
	}{
		{"Rishabh", "1234", true},
		{"Saman", "chudail", true},
		{"Rishabh", "wrong", false},
		{"Nobody", "1234", false},
		{"Rishabh", "", false},
	}
	for _, tt := range tests {
		if got := testCredentials.Verify(tt.name, tt.pass); got != tt.want {
			t.Errorf("Verify(%q, %q) = %v, want %v", tt.name, tt.pass, got, tt.want)
		}
	}
}

func TestLoginPersistsAndAttaches(t *testing.T) {
	m, path, events := newTestManager(t)

	id, err := m.Login("Rishabh", "1234")
	if err != nil {
		t.Fatal(err)
	}
	if id.Name != "Rishabh" || id.ID != "Rishabh" {
		t.Errorf("identity = %+v", id)
	}
	equalEvents(t, *events, "presence.attach:Rishabh", "typing.attach:Rishabh")

	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("identity not persisted: %v", err)
	}
	if perm := info.Mode().Perm(); perm != 0600 {
		t.Errorf("identity perm = %o, want 600", perm)
	}

	cur, ok := m.Current()
	if !ok || cur.Name != "Rishabh" {
		t.Errorf("Current() = %+v, %v", cur, ok)
	}
}

func TestLoginRejectsBadCredentials(t *testing.T) {
	m, path, events := newTestManager(t)

	for _, pair := range [][2]string{{"Rishabh", "wrong"}, {"Mallory", "1234"}, {"", ""}} {
		_, err := m.Login(pair[0], pair[1])
		if !errors.Is(err, ErrInvalidCredentials) {
			t.Errorf("Login(%q) error = %v, want ErrInvalidCredentials", pair[0], err)
		}
	}
	if len(*events) != 0 {
		t.Errorf("hooks ran on failed login: %v", *events)
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Error("identity persisted on failed login")
	}
	if _, ok := m.Current(); ok {
		t.Error("Current() reports an identity after failed login")
	}
}

func TestLogoutDetachesAndForgets(t *testing.T) {
	m, path, events := newTestManager(t)
	if _, err := m.Login("Saman", "chudail"); err != nil {
		t.Fatal(err)
	}
	if err := m.Logout(); err != nil {
		t.Fatal(err)
	}
	equalEvents(t, *events,
		"presence.attach:Saman", "typing.attach:Saman",
		"typing.detach", "presence.detach")

	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Error("identity file still present after logout")
	}
	if err := m.Logout(); !errors.Is(err, ErrNoIdentity) {
		t.Errorf("second Logout() = %v, want ErrNoIdentity", err)
	}
}

func TestRestore(t *testing.T) {
	m, path, events := newTestManager(t)

	if _, err := m.Restore(); !errors.Is(err, ErrNoIdentity) {
		t.Fatalf("Restore() without file = %v, want ErrNoIdentity", err)
	}

	if _, err := m.Login("Rishabh", "1234"); err != nil {
		t.Fatal(err)
	}
	m.Shutdown()
	if _, ok := m.Current(); ok {
		t.Fatal("Current() set after Shutdown")
	}

	// A fresh process restores the same identity.
	restarted := NewManager(path, testCredentials, nil, nil)
	restarted.AddHook(recordingHook{"presence", events})
	id, err := restarted.Restore()
	if err != nil {
		t.Fatal(err)
	}
	if id.Name != "Rishabh" {
		t.Errorf("restored %+v", id)
	}
	last := (*events)[len(*events)-1]
	if last != "presence.attach:Rishabh" {
		t.Errorf("last event = %q, want presence.attach:Rishabh", last)
	}
}

func TestRestoreIgnoresMalformed(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"not json", "{{{"},
		{"empty name", `{"name":"","id":""}`},
		{"bad name", `{"name":"a/b","id":"a/b"}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "identity.json")
			if err := os.WriteFile(path, []byte(tt.content), 0600); err != nil {
				t.Fatal(err)
			}
			m := NewManager(path, testCredentials, nil, nil)
			if _, err := m.Restore(); !errors.Is(err, ErrNoIdentity) {
				t.Errorf("Restore() = %v, want ErrNoIdentity", err)
			}
		})
	}
}

func TestLoginSwitchesUser(t *testing.T) {
	m, _, events := newTestManager(t)
	if _, err := m.Login("Rishabh", "1234"); err != nil {
		t.Fatal(err)
	}
	if _, err := m.Login("Saman", "chudail"); err != nil {
		t.Fatal(err)
	}
	equalEvents(t, *events,
		"presence.attach:Rishabh", "typing.attach:Rishabh",
		"typing.detach", "presence.detach",
		"presence.attach:Saman", "typing.attach:Saman")
}

func TestSessionEvents(t *testing.T) {
	b := bus.New()
	ch, unsub := b.Subscribe("session.", 4)
	defer unsub()

	m := NewManager(filepath.Join(t.TempDir(), "identity.json"), testCredentials, b, nil)
	if _, err := m.Login("Saman", "chudail"); err != nil {
		t.Fatal(err)
	}
	if err := m.Logout(); err != nil {
		t.Fatal(err)
	}

	for _, want := range []string{bus.SessionLogin, bus.SessionLogout} {
		evt := <-ch
		if evt.Kind != want {
			t.Errorf("event = %q, want %q", evt.Kind, want)
		}
		if evt.Payload != "Saman" {
			t.Errorf("payload = %v, want Saman", evt.Payload)
		}
	}
}
