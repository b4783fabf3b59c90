package chat

import "time"

// Status is a message's delivery state. It only moves forward.
type Status string

const (
	StatusSent      Status = "sent"
	StatusDelivered Status = "delivered"
	StatusRead      Status = "read"
)

func (s Status) rank() int {
	switch s {
	case StatusSent:
		return 1
	case StatusDelivered:
		return 2
	case StatusRead:
		return 3
	default:
		return 0
	}
}

// DeletedText replaces the text of an unsent message.
const DeletedText = "🚫 Message deleted"

// createdLayout matches the ISO form browsers produce: millisecond
// precision in UTC.
const createdLayout = "2006-01-02T15:04:05.000Z07:00"

// Message is one entry of messages/<id>. Timestamp, DeliveredAt and ReadAt
// are server Unix milliseconds; CreatedAt is the sender's clock.
type Message struct {
	ID          string          `json:"-"`
	Text        string          `json:"text"`
	Sender      string          `json:"sender"`
	CreatedAt   string          `json:"createdAt"`
	Timestamp   int64           `json:"timestamp,omitempty"`
	Status      Status          `json:"status"`
	Deleted     bool            `json:"deleted,omitempty"`
	Edited      bool            `json:"edited,omitempty"`
	DeliveredAt int64           `json:"deliveredAt,omitempty"`
	ReadAt      int64           `json:"readAt,omitempty"`
	ReadBy      map[string]bool `json:"readBy,omitempty"`
}

// Created parses CreatedAt. Unparseable values yield the zero time.
func (m Message) Created() time.Time {
	t, err := time.Parse(time.RFC3339Nano, m.CreatedAt)
	if err != nil {
		return time.Time{}
	}
	return t
}

// Mine reports whether self sent m.
func (m Message) Mine(self string) bool {
	return self != "" && m.Sender == self
}

func formatCreated(t time.Time) string {
	return t.UTC().Format(createdLayout)
}
