package rtdb

import (
	"encoding/json"
	"fmt"
)

const serverValueKey = ".sv"

// ServerTimestamp returns a placeholder the store replaces with its own clock
// in Unix milliseconds when the value is written.
func ServerTimestamp() map[string]any {
	return map[string]any{serverValueKey: "timestamp"}
}

func isServerTimestamp(m map[string]any) bool {
	if len(m) != 1 {
		return false
	}
	v, ok := m[serverValueKey].(string)
	return ok && v == "timestamp"
}

// normalize converts an arbitrary value to the generic JSON shape stored in
// the tree and prunes empty objects.
func normalize(v any) (any, error) {
	if v == nil {
		return nil, nil
	}
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encode value: %w", err)
	}
	var out any
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("decode value: %w", err)
	}
	return prune(out), nil
}

// prune drops nil children and empty objects. An object that ends up empty
// is itself reported as nil.
func prune(v any) any {
	switch t := v.(type) {
	case map[string]any:
		for k, child := range t {
			if c := prune(child); c == nil {
				delete(t, k)
			} else {
				t[k] = c
			}
		}
		if len(t) == 0 {
			return nil
		}
		return t
	case []any:
		for i, child := range t {
			t[i] = prune(child)
		}
		return t
	default:
		return v
	}
}

// resolve replaces server timestamp placeholders with nowMs.
func resolve(v any, nowMs int64) any {
	switch t := v.(type) {
	case map[string]any:
		if isServerTimestamp(t) {
			return float64(nowMs)
		}
		for k, child := range t {
			t[k] = resolve(child, nowMs)
		}
		return t
	case []any:
		for i, child := range t {
			t[i] = resolve(child, nowMs)
		}
		return t
	default:
		return v
	}
}

func copyValue(v any) any {
	switch t := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, child := range t {
			out[k] = copyValue(child)
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, child := range t {
			out[i] = copyValue(child)
		}
		return out
	default:
		return v
	}
}

func getAt(node any, segs []string) any {
	for _, s := range segs {
		m, ok := node.(map[string]any)
		if !ok {
			return nil
		}
		node = m[s]
	}
	return node
}

// setAt places value at segs below node, mutating maps in place, and
// returns the new node. Emptied objects collapse to nil.
func setAt(node any, segs []string, value any) any {
	if len(segs) == 0 {
		return value
	}
	m, ok := node.(map[string]any)
	if !ok {
		m = make(map[string]any)
	}
	if child := setAt(m[segs[0]], segs[1:], value); child == nil {
		delete(m, segs[0])
	} else {
		m[segs[0]] = child
	}
	if len(m) == 0 {
		return nil
	}
	return m
}
