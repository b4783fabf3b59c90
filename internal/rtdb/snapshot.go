package rtdb

import (
	"encoding/json"
	"sort"
)

// Snapshot is an immutable copy of the value at Path.
type Snapshot struct {
	Path  string
	Value any
}

// Exists reports whether anything is stored at the path.
func (s Snapshot) Exists() bool {
	return s.Value != nil
}

// Decode unmarshals the value into v the way encoding/json would.
func (s Snapshot) Decode(v any) error {
	data, err := json.Marshal(s.Value)
	if err != nil {
		return err
	}
	return json.Unmarshal(data, v)
}

// Children returns the child keys in ascending key order. Push keys sort
// chronologically, so this is also creation order for appended children.
func (s Snapshot) Children() []string {
	m, ok := s.Value.(map[string]any)
	if !ok {
		return nil
	}
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Child returns the snapshot of a direct child.
func (s Snapshot) Child(key string) Snapshot {
	var v any
	if m, ok := s.Value.(map[string]any); ok {
		v = m[key]
	}
	return Snapshot{Path: Join(s.Path, key), Value: v}
}
