package rtdb

import "github.com/google/uuid"

// newKey returns a push key. UUIDv7 strings start with a big-endian
// millisecond timestamp, so lexical order follows creation order.
func newKey() string {
	return uuid.Must(uuid.NewV7()).String()
}
