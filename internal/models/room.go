package models

import "time"

// RoomRole is the member's role within a room.
type RoomRole string

const (
	RoleMember RoomRole = "member"
	RoleAdmin  RoomRole = "admin"
)

// RoomMember existence is the authorization predicate for reading and
// sending in a room; the backend enforces it, this service only observes
// accept/reject outcomes.
type RoomMember struct {
	RoomID   string    `json:"room_id"`
	UserID   string    `json:"user_id"`
	Role     RoomRole  `json:"role"`
	JoinedAt time.Time `json:"joined_at"`
}
