package models

import "time"

// Thread is a lightweight summary derived incrementally from the event
// stream: message count and last activity are maintained per event, not
// recomputed from scratch.
type Thread struct {
	ID             string    `json:"id"`
	RoomID         string    `json:"room_id"`
	CreatedBy      string    `json:"created_by"`
	Subject        string    `json:"subject,omitempty"`
	MessageCount   int       `json:"message_count"`
	LastActivityAt time.Time `json:"last_activity_at"`
}
