package realtime

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/carousell/ct-go/pkg/logger"
	"github.com/executehouse/limpopo-connect/internal/models"
	"github.com/executehouse/limpopo-connect/internal/repo/pushchan"
)

// messageRow mirrors the backend's message row payload as it appears inside
// change notifications and broadcast frames.
type messageRow struct {
	ID        string    `json:"id"`
	RoomID    string    `json:"room_id"`
	ThreadID  *string   `json:"thread_id"`
	SenderID  string    `json:"sender_id"`
	Body      string    `json:"body"`
	Edited    bool      `json:"edited"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (r messageRow) toMessage() models.Message {
	return models.Message{
		ID:        r.ID,
		RoomID:    r.RoomID,
		ThreadID:  r.ThreadID,
		SenderID:  r.SenderID,
		Body:      r.Body,
		Edited:    r.Edited,
		CreatedAt: r.CreatedAt,
		UpdatedAt: r.UpdatedAt,
	}
}

// Normalizer converts heterogeneous inbound payloads into canonical
// MessageEvents. It is total: malformed or misrouted payloads are logged and
// reported as "no event", never as an error. Payload-shape uncertainty stops
// here.
type Normalizer struct {
	log     *logger.Logger
	metrics *Metrics
}

func NewNormalizer(metrics *Metrics) *Normalizer {
	return &Normalizer{
		log:     logger.MustNamed("normalizer"),
		metrics: metrics,
	}
}

// NormalizeChange converts a raw row-change notification scoped to roomID.
func (n *Normalizer) NormalizeChange(roomID string, ev pushchan.ChangeEvent) (models.MessageEvent, bool) {
	switch strings.ToUpper(ev.Op) {
	case "INSERT":
		return n.rowEvent(roomID, models.EventInsert, ev.New)
	case "UPDATE":
		return n.rowEvent(roomID, models.EventUpdate, ev.New)
	case "DELETE":
		return n.deleteEvent(roomID, ev.Old)
	default:
		n.drop("unknown", roomID, "op", ev.Op)
		return models.MessageEvent{}, false
	}
}

// NormalizeBroadcast converts an application-level broadcast frame.
func (n *Normalizer) NormalizeBroadcast(roomID string, b pushchan.Broadcast) (models.MessageEvent, bool) {
	switch b.Event {
	case "new_message":
		return n.rowEvent(roomID, models.EventInsert, b.Payload)
	case "message_edited":
		return n.rowEvent(roomID, models.EventUpdate, b.Payload)
	case "message_deleted":
		return n.deleteEvent(roomID, b.Payload)
	default:
		n.drop("unknown", roomID, "event", b.Event)
		return models.MessageEvent{}, false
	}
}

func (n *Normalizer) rowEvent(roomID string, op models.EventOp, raw json.RawMessage) (models.MessageEvent, bool) {
	var row messageRow
	if err := json.Unmarshal(raw, &row); err != nil {
		n.drop("malformed", roomID, "op", string(op), "error", err)
		return models.MessageEvent{}, false
	}
	if row.ID == "" {
		n.drop("malformed", roomID, "op", string(op), "reason", "missing id")
		return models.MessageEvent{}, false
	}
	// defense against a misrouted or stale server-side filter
	if row.RoomID != "" && row.RoomID != roomID {
		n.drop("misrouted", roomID, "op", string(op), "payload_room", row.RoomID)
		return models.MessageEvent{}, false
	}

	msg := row.toMessage()
	msg.RoomID = roomID
	return models.MessageEvent{
		Op:        op,
		RoomID:    roomID,
		MessageID: msg.ID,
		Message:   &msg,
	}, true
}

// deleteEvent needs only the identifier, but keeps the old row when the
// payload carried one so the thread aggregator can attribute the removal.
func (n *Normalizer) deleteEvent(roomID string, raw json.RawMessage) (models.MessageEvent, bool) {
	var row messageRow
	if err := json.Unmarshal(raw, &row); err != nil {
		n.drop("malformed", roomID, "op", string(models.EventDelete), "error", err)
		return models.MessageEvent{}, false
	}
	if row.ID == "" {
		n.drop("malformed", roomID, "op", string(models.EventDelete), "reason", "missing id")
		return models.MessageEvent{}, false
	}
	if row.RoomID != "" && row.RoomID != roomID {
		n.drop("misrouted", roomID, "op", string(models.EventDelete), "payload_room", row.RoomID)
		return models.MessageEvent{}, false
	}

	ev := models.MessageEvent{
		Op:        models.EventDelete,
		RoomID:    roomID,
		MessageID: row.ID,
	}
	// a bare {"id": ...} tombstone carries no row worth keeping
	if !row.CreatedAt.IsZero() || row.ThreadID != nil {
		msg := row.toMessage()
		msg.RoomID = roomID
		ev.Message = &msg
	}
	return ev, true
}

func (n *Normalizer) drop(reason, roomID string, kv ...any) {
	n.metrics.dropped(reason)
	args := append([]any{"reason", reason, "room_id", roomID}, kv...)
	n.log.Warnw("discarding event", args...)
}
