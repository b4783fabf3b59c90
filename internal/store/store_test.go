package store

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/matheus3301/duochat/internal/rtdb"
)

func testDB(t *testing.T) *DB {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	db, err := Open(path)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := db.Migrate(); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func TestMigrateIsIdempotent(t *testing.T) {
	db := testDB(t)

	// testDB already migrated, so a second run changes nothing.
	result, err := db.Migrate()
	if err != nil {
		t.Fatal(err)
	}
	if result.Changed {
		t.Error("second Migrate() should report Changed=false")
	}
	if result.Version != 2 {
		t.Errorf("version = %d, want 2 (init + updated index)", result.Version)
	}
}

func TestApplyAndLoad(t *testing.T) {
	db := testDB(t)

	err := db.Apply([]rtdb.Change{
		{Op: rtdb.OpPut, Collection: "users", Key: "Saman", Value: []byte(`{"isOnline":true}`)},
		{Op: rtdb.OpPut, Collection: "users", Key: "Rishabh", Value: []byte(`{"isOnline":false}`)},
		{Op: rtdb.OpPut, Collection: "typing", Key: "Saman", Value: []byte(`{"isTyping":true}`)},
		{Op: rtdb.OpPut, Collection: "users", Key: "Saman", Value: []byte(`{"isOnline":false}`)},
	})
	if err != nil {
		t.Fatal(err)
	}

	var got []string
	err = db.Load(func(c rtdb.Change) error {
		if c.Op != rtdb.OpPut {
			t.Errorf("op = %d, want OpPut", c.Op)
		}
		got = append(got, c.Collection+"/"+c.Key+"="+string(c.Value))
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}

	want := []string{
		`typing/Saman={"isTyping":true}`,
		`users/Rishabh={"isOnline":false}`,
		`users/Saman={"isOnline":false}`,
	}
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("record[%d] = %s, want %s", i, got[i], want[i])
		}
	}
}

func TestApplyDeletes(t *testing.T) {
	db := testDB(t)

	seed := []rtdb.Change{
		{Op: rtdb.OpPut, Collection: "users", Key: "a", Value: []byte(`1`)},
		{Op: rtdb.OpPut, Collection: "users", Key: "b", Value: []byte(`2`)},
		{Op: rtdb.OpPut, Collection: "typing", Key: "a", Value: []byte(`3`)},
	}

	tests := []struct {
		name   string
		change rtdb.Change
		want   int
	}{
		{"delete record", rtdb.Change{Op: rtdb.OpDelete, Collection: "users", Key: "a"}, 2},
		{"drop collection", rtdb.Change{Op: rtdb.OpDropCollection, Collection: "users"}, 1},
		{"drop all", rtdb.Change{Op: rtdb.OpDropAll}, 0},
		{"delete missing", rtdb.Change{Op: rtdb.OpDelete, Collection: "nope", Key: "x"}, 3},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := db.Apply([]rtdb.Change{{Op: rtdb.OpDropAll}}); err != nil {
				t.Fatal(err)
			}
			if err := db.Apply(seed); err != nil {
				t.Fatal(err)
			}
			if err := db.Apply([]rtdb.Change{tt.change}); err != nil {
				t.Fatal(err)
			}
			n, err := db.RecordCount()
			if err != nil {
				t.Fatal(err)
			}
			if n != tt.want {
				t.Errorf("RecordCount() = %d, want %d", n, tt.want)
			}
		})
	}
}

func TestApplyIsAtomic(t *testing.T) {
	db := testDB(t)

	err := db.Apply([]rtdb.Change{
		{Op: rtdb.OpPut, Collection: "users", Key: "a", Value: []byte(`1`)},
		{Op: rtdb.ChangeOp(99)},
	})
	if err == nil {
		t.Fatal("expected error for unknown op")
	}
	n, err := db.RecordCount()
	if err != nil {
		t.Fatal(err)
	}
	if n != 0 {
		t.Errorf("RecordCount() = %d after failed batch, want 0", n)
	}
}

func TestLastWrite(t *testing.T) {
	db := testDB(t)

	ts, err := db.LastWrite()
	if err != nil {
		t.Fatal(err)
	}
	if !ts.IsZero() {
		t.Errorf("LastWrite() = %v on empty db, want zero", ts)
	}

	if err := db.Apply([]rtdb.Change{{Op: rtdb.OpPut, Collection: "c", Key: "k", Value: []byte(`true`)}}); err != nil {
		t.Fatal(err)
	}
	ts, err = db.LastWrite()
	if err != nil {
		t.Fatal(err)
	}
	if ts.IsZero() {
		t.Error("LastWrite() is zero after a write")
	}
}

// TestLocalSurvivesRestart runs the daemon's tree on top of SQLite and
// reopens it from disk.
func TestLocalSurvivesRestart(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "tree.db")

	db, err := Open(path)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := db.Migrate(); err != nil {
		t.Fatal(err)
	}
	tree := rtdb.NewLocal(nil, rtdb.WithPersister(db))
	key, err := tree.Push(ctx, "messages", map[string]any{"text": "hello", "status": "sent"})
	if err != nil {
		t.Fatal(err)
	}
	if err := tree.Update(ctx, "messages/"+key, map[string]any{"status": "delivered"}); err != nil {
		t.Fatal(err)
	}
	if err := tree.Set(ctx, "users/Saman", map[string]any{"isOnline": true}); err != nil {
		t.Fatal(err)
	}
	_ = db.Close()

	db, err = Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer func() { _ = db.Close() }()
	reopened := rtdb.NewLocal(nil, rtdb.WithPersister(db))
	n, err := reopened.Load()
	if err != nil {
		t.Fatal(err)
	}
	if n != 2 {
		t.Errorf("Load() = %d records, want 2", n)
	}

	snap, err := reopened.Get(ctx, "messages/"+key+"/status")
	if err != nil {
		t.Fatal(err)
	}
	if snap.Value != "delivered" {
		t.Errorf("status = %v, want delivered", snap.Value)
	}
}
