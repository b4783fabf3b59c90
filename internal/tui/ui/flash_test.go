package ui

import (
	"errors"
	"testing"
	"time"
)

func TestFlashExpires(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	f := NewFlash(func() time.Time { return now })

	if _, ok := f.Current(); ok {
		t.Fatal("new flash is not empty")
	}

	f.Info("saved")
	msg, ok := f.Current()
	if !ok || msg.Text != "saved" || msg.Level != FlashInfo {
		t.Fatalf("Current = %+v, %v", msg, ok)
	}

	now = now.Add(6 * time.Second)
	if _, ok := f.Current(); ok {
		t.Error("info still shown after five seconds")
	}

	f.Err(errors.New("offline"))
	now = now.Add(6 * time.Second)
	if msg, ok := f.Current(); !ok || msg.Level != FlashErr {
		t.Errorf("error flash gone early: %+v, %v", msg, ok)
	}

	f.Clear()
	if _, ok := f.Current(); ok {
		t.Error("Clear left a message")
	}
}
