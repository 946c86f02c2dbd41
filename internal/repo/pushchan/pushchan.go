// Package pushchan defines the push channel primitive the sync engine
// consumes: a named channel delivering row-change notifications, broadcast
// payloads and status transitions. The engine never touches the transport
// directly, only this interface.
package pushchan

import (
	"context"
	"encoding/json"
)

// Status of a channel as reported by the transport.
type Status string

const (
	StatusSubscribed   Status = "SUBSCRIBED"
	StatusChannelError Status = "CHANNEL_ERROR"
	StatusTimedOut     Status = "TIMED_OUT"
	StatusClosed       Status = "CLOSED"
)

// ChangeEvent is a raw row-change notification. Op is INSERT, UPDATE or
// DELETE; New holds the row after the change, Old the row before it. The
// payload shape is deliberately loose here: the event normalizer is the one
// boundary that interprets it.
type ChangeEvent struct {
	Op  string          `json:"op"`
	Old json.RawMessage `json:"old,omitempty"`
	New json.RawMessage `json:"new,omitempty"`
}

// Broadcast is an application-level payload relayed verbatim by the channel.
type Broadcast struct {
	Event   string          `json:"event"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// Handlers are registered when opening a channel. Nil handlers are skipped.
// The provider delivers callbacks one at a time, in receipt order, and
// guarantees that no handler fires after Close returns.
type Handlers struct {
	OnChange    func(ChangeEvent)
	OnBroadcast func(Broadcast)
	OnStatus    func(Status, error)
}

// Channel is one live subscription.
type Channel interface {
	Send(ctx context.Context, b Broadcast) error
	Close() error
}

// Provider opens named channels. The server scopes change notifications to
// the room encoded in the channel name, so a channel only ever carries one
// room's traffic.
type Provider interface {
	Open(ctx context.Context, name string, h Handlers) (Channel, error)
}
