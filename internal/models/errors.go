package models

import (
	"fmt"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// Terminal per-call outcomes from the send procedure. These surface to the
// caller verbatim and are never retried.
var (
	ErrUnauthenticated    = status.Error(codes.Unauthenticated, "caller is not authenticated")
	ErrNotAMember         = status.Error(codes.PermissionDenied, "caller is not a member of the room")
	ErrThreadRoomMismatch = status.Error(codes.FailedPrecondition, "thread does not belong to the room")
	ErrEmptyBody          = status.Error(codes.InvalidArgument, "message body is empty")
	ErrRoomNotFound       = status.Error(codes.NotFound, "room not found")
)

// ChannelError is a transport-level failure on a room's channel. It is
// recoverable: the reconnection supervisor owns retry, callers only see it
// as a non-fatal status notification.
type ChannelError struct {
	Room  string
	Cause error
}

func (e *ChannelError) Error() string {
	return fmt.Sprintf("channel error on room %s: %v", e.Room, e.Cause)
}

func (e *ChannelError) Unwrap() error { return e.Cause }
