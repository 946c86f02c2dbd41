package realtime

import (
	"context"
	"strings"

	"github.com/executehouse/limpopo-connect/internal/models"
	"github.com/executehouse/limpopo-connect/internal/repo/portalapi"
)

// Sender validates and forwards outgoing messages to the server-side send
// procedure. It never mutates the message store: the confirmed insert event
// arriving through the channel is what appends, which keeps the channel the
// single source of truth and rules out local/remote reconciliation drift.
type Sender struct {
	api portalapi.Client
}

func NewSender(api portalapi.Client) *Sender {
	return &Sender{api: api}
}

// Send rejects empty bodies locally without a round trip, otherwise forwards
// to the backend. Unauthenticated, NotAMember and ThreadRoomMismatch come
// back verbatim; they are terminal and never retried.
func (s *Sender) Send(ctx context.Context, roomID, body string, threadID *string) error {
	if strings.TrimSpace(body) == "" {
		return models.ErrEmptyBody
	}
	return s.api.PostMessage(ctx, portalapi.PostMessageParams{
		RoomID:   roomID,
		ThreadID: threadID,
		Body:     body,
	})
}
