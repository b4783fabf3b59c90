package keys

import (
	"testing"

	"github.com/gdamore/tcell/v2"
)

func TestPageBindingsShadowGlobal(t *testing.T) {
	r := NewRegistry()
	var got []string
	r.AddGlobal(&Action{Key: tcell.KeyRune, Rune: 'q', Label: "q", Description: "Quit", Handler: func() { got = append(got, "quit") }})
	r.AddPage("help", &Action{Key: tcell.KeyRune, Rune: 'q', Label: "q", Description: "Back", Handler: func() { got = append(got, "back") }})
	r.AddPage("chat", &Action{Key: tcell.KeyEscape, Label: "Esc", Description: "Leave composer", Handler: func() { got = append(got, "blur") }})

	if !r.HandleEvent("help", tcell.NewEventKey(tcell.KeyRune, 'q', tcell.ModNone)) {
		t.Fatal("q on help not handled")
	}
	if !r.HandleEvent("chat", tcell.NewEventKey(tcell.KeyRune, 'q', tcell.ModNone)) {
		t.Fatal("q on chat not handled")
	}
	if !r.HandleEvent("chat", tcell.NewEventKey(tcell.KeyEscape, 0, tcell.ModNone)) {
		t.Fatal("Esc on chat not handled")
	}
	if r.HandleEvent("help", tcell.NewEventKey(tcell.KeyRune, 'x', tcell.ModNone)) {
		t.Fatal("x handled")
	}

	want := []string{"back", "quit", "blur"}
	if len(got) != len(want) {
		t.Fatalf("handlers = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("handlers[%d] = %s, want %s", i, got[i], want[i])
		}
	}
}

func TestHintsSkipHidden(t *testing.T) {
	r := NewRegistry()
	r.AddGlobal(&Action{Key: tcell.KeyRune, Rune: '?', Label: "?", Description: "Help"})
	r.AddPage("chat", &Action{Key: tcell.KeyRune, Rune: 'i', Label: "i", Description: "Compose"})
	r.AddPage("chat", &Action{Key: tcell.KeyRune, Rune: 'G', Label: "G", Description: "Bottom", Hidden: true})

	hints := r.Hints("chat")
	if len(hints) != 2 {
		t.Fatalf("hints = %v, want 2", hints)
	}
	if hints[0].Key != "i" || hints[1].Key != "?" {
		t.Errorf("hints = %v, want page first then global", hints)
	}
}
