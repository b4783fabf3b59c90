package session

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// Identity is the logged-in user. ID mirrors Name; names are the user keys
// in the store.
type Identity struct {
	Name string `json:"name"`
	ID   string `json:"id"`
}

// NewIdentity returns the identity for name.
func NewIdentity(name string) Identity {
	return Identity{Name: name, ID: name}
}

func readIdentity(path string) (Identity, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Identity{}, err
	}
	var id Identity
	if err := json.Unmarshal(data, &id); err != nil {
		return Identity{}, fmt.Errorf("decode identity: %w", err)
	}
	if err := ValidateName(id.Name); err != nil {
		return Identity{}, err
	}
	if id.ID == "" {
		id.ID = id.Name
	}
	return id, nil
}

func writeIdentity(path string, id Identity) error {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return err
	}
	data, err := json.Marshal(id)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0600)
}
