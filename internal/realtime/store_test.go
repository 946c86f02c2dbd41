package realtime_test

import (
	"testing"
	"time"

	"github.com/executehouse/limpopo-connect/internal/models"
	"github.com/executehouse/limpopo-connect/internal/realtime"
	"github.com/executehouse/limpopo-connect/pkg/util"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var baseTime = time.Date(2025, 3, 14, 10, 0, 0, 0, time.UTC)

func mkMsg(id, roomID string, offset time.Duration) models.Message {
	return models.Message{
		ID:        id,
		RoomID:    roomID,
		SenderID:  "u1",
		Body:      "body " + id,
		CreatedAt: baseTime.Add(offset),
		UpdatedAt: baseTime.Add(offset),
	}
}

func insertEvent(m models.Message) models.MessageEvent {
	return models.MessageEvent{Op: models.EventInsert, RoomID: m.RoomID, MessageID: m.ID, Message: &m}
}

func updateEvent(m models.Message) models.MessageEvent {
	return models.MessageEvent{Op: models.EventUpdate, RoomID: m.RoomID, MessageID: m.ID, Message: &m}
}

func deleteEvent(roomID, id string) models.MessageEvent {
	return models.MessageEvent{Op: models.EventDelete, RoomID: roomID, MessageID: id}
}

func viewIDs(msgs []models.Message) []string {
	return util.ConvertList(msgs, func(m models.Message) string { return m.ID })
}

func TestStoreInsert(t *testing.T) {
	t.Parallel()

	t.Run("out of order arrival yields sorted view", func(t *testing.T) {
		s := realtime.NewStore(nil)
		s.Apply(insertEvent(mkMsg("m3", "r1", 3*time.Second)))
		s.Apply(insertEvent(mkMsg("m1", "r1", 1*time.Second)))
		s.Apply(insertEvent(mkMsg("m2", "r1", 2*time.Second)))

		assert.Equal(t, []string{"m1", "m2", "m3"}, viewIDs(s.View("r1")))
	})

	t.Run("created_at tie broken by id", func(t *testing.T) {
		s := realtime.NewStore(nil)
		s.Apply(insertEvent(mkMsg("mB", "r1", time.Second)))
		s.Apply(insertEvent(mkMsg("mA", "r1", time.Second)))

		assert.Equal(t, []string{"mA", "mB"}, viewIDs(s.View("r1")))
	})

	t.Run("redelivered insert is ignored", func(t *testing.T) {
		s := realtime.NewStore(nil)
		first := mkMsg("m1", "r1", time.Second)
		redelivered := first
		redelivered.Body = "different payload, same id"

		require.Equal(t, realtime.ApplyApplied, s.Apply(insertEvent(first)))
		assert.Equal(t, realtime.ApplyDuplicate, s.Apply(insertEvent(redelivered)))

		view := s.View("r1")
		require.Len(t, view, 1)
		assert.Equal(t, "body m1", view[0].Body)
	})

	t.Run("rooms are independent", func(t *testing.T) {
		s := realtime.NewStore(nil)
		s.Apply(insertEvent(mkMsg("m1", "r1", time.Second)))
		s.Apply(insertEvent(mkMsg("m1", "r2", time.Second)))

		assert.Len(t, s.View("r1"), 1)
		assert.Len(t, s.View("r2"), 1)
	})
}

func TestStoreUpdate(t *testing.T) {
	t.Parallel()

	t.Run("replaces in place and preserves position", func(t *testing.T) {
		s := realtime.NewStore(nil)
		s.Apply(insertEvent(mkMsg("m1", "r1", 1*time.Second)))
		s.Apply(insertEvent(mkMsg("m2", "r1", 2*time.Second)))
		s.Apply(insertEvent(mkMsg("m3", "r1", 3*time.Second)))

		edited := mkMsg("m2", "r1", 2*time.Second)
		edited.Body = "edited"
		edited.Edited = true
		// a skewed created_at on the update payload must not move the message
		edited.CreatedAt = baseTime.Add(10 * time.Second)

		require.Equal(t, realtime.ApplyApplied, s.Apply(updateEvent(edited)))

		view := s.View("r1")
		assert.Equal(t, []string{"m1", "m2", "m3"}, viewIDs(view))
		assert.Equal(t, "edited", view[1].Body)
		assert.True(t, view[1].Edited)
		assert.Equal(t, baseTime.Add(2*time.Second), view[1].CreatedAt)
	})

	t.Run("update of absent id is a no-op", func(t *testing.T) {
		s := realtime.NewStore(nil)
		assert.Equal(t, realtime.ApplyNoop, s.Apply(updateEvent(mkMsg("ghost", "r1", time.Second))))
		assert.Empty(t, s.View("r1"))
	})
}

func TestStoreDelete(t *testing.T) {
	t.Parallel()

	t.Run("redelivery then delete twice", func(t *testing.T) {
		// subscribe to R1; insert m1 twice, delete m1 twice
		s := realtime.NewStore(nil)
		m1 := mkMsg("m1", "R1", time.Second)

		require.Equal(t, realtime.ApplyApplied, s.Apply(insertEvent(m1)))
		require.Equal(t, realtime.ApplyDuplicate, s.Apply(insertEvent(m1)))
		require.Len(t, s.View("R1"), 1)

		require.Equal(t, realtime.ApplyApplied, s.Apply(deleteEvent("R1", "m1")))
		assert.Empty(t, s.View("R1"))

		assert.Equal(t, realtime.ApplyNoop, s.Apply(deleteEvent("R1", "m1")))
		assert.Empty(t, s.View("R1"))
	})
}

func TestStoreReplace(t *testing.T) {
	t.Parallel()

	t.Run("resync superset restores order without duplicates", func(t *testing.T) {
		s := realtime.NewStore(nil)
		a := mkMsg("mA", "r1", 1*time.Second)
		b := mkMsg("mB", "r1", 3*time.Second)
		s.Apply(insertEvent(a))
		s.Apply(insertEvent(b))

		// missed event C arrives only through the bulk fetch, unsorted
		c := mkMsg("mC", "r1", 2*time.Second)
		s.Replace("r1", []models.Message{b, c, a})

		assert.Equal(t, []string{"mA", "mC", "mB"}, viewIDs(s.View("r1")))
	})

	t.Run("replace drops duplicate ids in fetch payload", func(t *testing.T) {
		s := realtime.NewStore(nil)
		a := mkMsg("mA", "r1", time.Second)
		s.Replace("r1", []models.Message{a, a})
		assert.Len(t, s.View("r1"), 1)
	})
}

func TestStoreView(t *testing.T) {
	t.Parallel()

	t.Run("snapshot is isolated from the store", func(t *testing.T) {
		s := realtime.NewStore(nil)
		s.Apply(insertEvent(mkMsg("m1", "r1", time.Second)))

		view := s.View("r1")
		view[0].Body = "mutated"

		assert.Equal(t, "body m1", s.View("r1")[0].Body)
	})

	t.Run("drop discards the room", func(t *testing.T) {
		s := realtime.NewStore(nil)
		s.Apply(insertEvent(mkMsg("m1", "r1", time.Second)))
		s.Drop("r1")
		assert.Empty(t, s.View("r1"))
	})
}
