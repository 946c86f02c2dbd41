package models

import "time"

// Message is one entry in a room's stream. IDs are server-assigned KSUIDs,
// so lexicographic order follows creation order.
type Message struct {
	ID        string    `json:"id" validate:"required"`
	RoomID    string    `json:"room_id" validate:"required"`
	ThreadID  *string   `json:"thread_id"` // nil means the room's general stream
	SenderID  string    `json:"sender_id"`
	Body      string    `json:"body"`
	Edited    bool      `json:"edited"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Before reports whether m sorts before other in a room view:
// created_at ascending, id as tiebreak.
func (m Message) Before(other Message) bool {
	if !m.CreatedAt.Equal(other.CreatedAt) {
		return m.CreatedAt.Before(other.CreatedAt)
	}
	return m.ID < other.ID
}
