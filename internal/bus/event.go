package bus

import "time"

// Event kinds published by duochat components. Subscribers filter by prefix,
// so "rtdb." receives every store change and "" receives everything.
const (
	StoreChanged    = "rtdb.changed"
	ConnChanged     = "conn.status_changed"
	SessionLogin    = "session.login"
	SessionLogout   = "session.logout"
	PresenceUpdated = "presence.updated"
	TypingUpdated   = "typing.updated"
	ChatUpdated     = "chat.updated"
	WriteFailed     = "outbox.failed"
	WriteSkipped    = "outbox.skipped"
)

// Event represents a change notification published on the bus.
type Event struct {
	Kind      string
	Timestamp time.Time
	Payload   any
}
