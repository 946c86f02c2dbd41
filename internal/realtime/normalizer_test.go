package realtime_test

import (
	"encoding/json"
	"testing"

	"github.com/executehouse/limpopo-connect/internal/models"
	"github.com/executehouse/limpopo-connect/internal/realtime"
	"github.com/executehouse/limpopo-connect/internal/repo/pushchan"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func rawRow(t *testing.T, m models.Message) json.RawMessage {
	t.Helper()
	b, err := json.Marshal(m)
	require.NoError(t, err)
	return b
}

func TestNormalizeChange(t *testing.T) {
	t.Parallel()
	n := realtime.NewNormalizer(nil)

	t.Run("insert", func(t *testing.T) {
		m := mkMsg("m1", "r1", 0)
		ev, ok := n.NormalizeChange("r1", pushchan.ChangeEvent{Op: "INSERT", New: rawRow(t, m)})
		require.True(t, ok)
		assert.Equal(t, models.EventInsert, ev.Op)
		assert.Equal(t, "m1", ev.MessageID)
		require.NotNil(t, ev.Message)
		assert.Equal(t, m.Body, ev.Message.Body)
	})

	t.Run("op casing is tolerated", func(t *testing.T) {
		ev, ok := n.NormalizeChange("r1", pushchan.ChangeEvent{Op: "update", New: rawRow(t, mkMsg("m1", "r1", 0))})
		require.True(t, ok)
		assert.Equal(t, models.EventUpdate, ev.Op)
	})

	t.Run("delete reads the old row", func(t *testing.T) {
		m := mkMsg("m1", "r1", 0)
		ev, ok := n.NormalizeChange("r1", pushchan.ChangeEvent{Op: "DELETE", Old: rawRow(t, m)})
		require.True(t, ok)
		assert.Equal(t, models.EventDelete, ev.Op)
		assert.Equal(t, "m1", ev.MessageID)
		require.NotNil(t, ev.Message)
	})

	t.Run("bare tombstone keeps only the id", func(t *testing.T) {
		ev, ok := n.NormalizeChange("r1", pushchan.ChangeEvent{Op: "DELETE", Old: json.RawMessage(`{"id":"m1"}`)})
		require.True(t, ok)
		assert.Equal(t, "m1", ev.MessageID)
		assert.Nil(t, ev.Message)
	})

	t.Run("unknown op is dropped", func(t *testing.T) {
		_, ok := n.NormalizeChange("r1", pushchan.ChangeEvent{Op: "TRUNCATE", New: rawRow(t, mkMsg("m1", "r1", 0))})
		assert.False(t, ok)
	})

	t.Run("malformed payload is dropped", func(t *testing.T) {
		_, ok := n.NormalizeChange("r1", pushchan.ChangeEvent{Op: "INSERT", New: json.RawMessage(`{not json`)})
		assert.False(t, ok)
	})

	t.Run("missing id is dropped", func(t *testing.T) {
		_, ok := n.NormalizeChange("r1", pushchan.ChangeEvent{Op: "INSERT", New: json.RawMessage(`{"body":"hi"}`)})
		assert.False(t, ok)
	})

	t.Run("row for another room is dropped", func(t *testing.T) {
		_, ok := n.NormalizeChange("r1", pushchan.ChangeEvent{Op: "INSERT", New: rawRow(t, mkMsg("m1", "r2", 0))})
		assert.False(t, ok)
	})

	t.Run("row without room id inherits the channel room", func(t *testing.T) {
		ev, ok := n.NormalizeChange("r1", pushchan.ChangeEvent{Op: "INSERT", New: json.RawMessage(`{"id":"m1","body":"hi"}`)})
		require.True(t, ok)
		assert.Equal(t, "r1", ev.Message.RoomID)
	})
}

func TestNormalizeBroadcast(t *testing.T) {
	t.Parallel()
	n := realtime.NewNormalizer(nil)

	cases := []struct {
		event string
		op    models.EventOp
	}{
		{"new_message", models.EventInsert},
		{"message_edited", models.EventUpdate},
		{"message_deleted", models.EventDelete},
	}
	for _, tc := range cases {
		t.Run(tc.event, func(t *testing.T) {
			ev, ok := n.NormalizeBroadcast("r1", pushchan.Broadcast{
				Event:   tc.event,
				Payload: rawRow(t, mkMsg("m1", "r1", 0)),
			})
			require.True(t, ok)
			assert.Equal(t, tc.op, ev.Op)
			assert.Equal(t, "m1", ev.MessageID)
		})
	}

	t.Run("unrelated broadcast is dropped", func(t *testing.T) {
		_, ok := n.NormalizeBroadcast("r1", pushchan.Broadcast{Event: "typing", Payload: json.RawMessage(`{}`)})
		assert.False(t, ok)
	})
}
