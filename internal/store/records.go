package store

import (
	"fmt"
	"time"

	"github.com/matheus3301/duochat/internal/rtdb"
)

// Apply executes record changes in a single transaction.
func (db *DB) Apply(changes []rtdb.Change) error {
	if len(changes) == 0 {
		return nil
	}
	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	now := time.Now().UnixMilli()
	for _, c := range changes {
		switch c.Op {
		case rtdb.OpPut:
			_, err = tx.Exec(`
				INSERT INTO records (collection, key, value, updated_at)
				VALUES (?, ?, ?, ?)
				ON CONFLICT(collection, key) DO UPDATE SET
					value = excluded.value,
					updated_at = excluded.updated_at`,
				c.Collection, c.Key, string(c.Value), now)
		case rtdb.OpDelete:
			_, err = tx.Exec(`DELETE FROM records WHERE collection = ? AND key = ?`, c.Collection, c.Key)
		case rtdb.OpDropCollection:
			_, err = tx.Exec(`DELETE FROM records WHERE collection = ?`, c.Collection)
		case rtdb.OpDropAll:
			_, err = tx.Exec(`DELETE FROM records`)
		default:
			err = fmt.Errorf("unknown change op %d", c.Op)
		}
		if err != nil {
			return fmt.Errorf("apply %s/%s: %w", c.Collection, c.Key, err)
		}
	}
	return tx.Commit()
}

// Load streams every stored record to fn in (collection, key) order.
func (db *DB) Load(fn func(rtdb.Change) error) error {
	rows, err := db.Query(`SELECT collection, key, value FROM records ORDER BY collection, key`)
	if err != nil {
		return err
	}
	defer func() { _ = rows.Close() }()

	for rows.Next() {
		var c rtdb.Change
		var value string
		if err := rows.Scan(&c.Collection, &c.Key, &value); err != nil {
			return err
		}
		c.Op = rtdb.OpPut
		c.Value = []byte(value)
		if err := fn(c); err != nil {
			return err
		}
	}
	return rows.Err()
}

// RecordCount returns the number of stored records.
func (db *DB) RecordCount() (int, error) {
	var n int
	err := db.QueryRow(`SELECT COUNT(*) FROM records`).Scan(&n)
	return n, err
}

// LastWrite returns the time of the most recent record write, zero if none.
func (db *DB) LastWrite() (time.Time, error) {
	var ms int64
	err := db.QueryRow(`SELECT COALESCE(MAX(updated_at), 0) FROM records`).Scan(&ms)
	if err != nil || ms == 0 {
		return time.Time{}, err
	}
	return time.UnixMilli(ms), nil
}
