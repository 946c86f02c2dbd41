package models

// EventOp tags the kind of change a MessageEvent carries.
type EventOp string

const (
	EventInsert EventOp = "insert"
	EventUpdate EventOp = "update"
	EventDelete EventOp = "delete"
)

// MessageEvent is the canonical shape every inbound notification is
// normalized into before it reaches the message store or the thread
// aggregator. Insert and Update carry the full message; Delete carries at
// least the identifier (plus the last known row when the transport included
// it).
type MessageEvent struct {
	Op        EventOp  `json:"op"`
	RoomID    string   `json:"room_id"`
	MessageID string   `json:"message_id"`
	Message   *Message `json:"message,omitempty"`
}
