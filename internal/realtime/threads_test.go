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

func threadMsg(id, roomID, threadID string, offset time.Duration) models.Message {
	m := mkMsg(id, roomID, offset)
	m.ThreadID = util.Ptr(threadID)
	return m
}

func TestThreadAggregatorApply(t *testing.T) {
	t.Parallel()

	t.Run("insert increments count and bumps last activity", func(t *testing.T) {
		a := realtime.NewThreadAggregator()
		a.Apply(insertEvent(threadMsg("m1", "r1", "t1", 1*time.Second)))
		a.Apply(insertEvent(threadMsg("m2", "r1", "t1", 5*time.Second)))

		threads := a.Snapshot("r1")
		require.Len(t, threads, 1)
		assert.Equal(t, 2, threads[0].MessageCount)
		assert.Equal(t, baseTime.Add(5*time.Second), threads[0].LastActivityAt)
	})

	t.Run("last activity never moves backwards", func(t *testing.T) {
		a := realtime.NewThreadAggregator()
		a.Apply(insertEvent(threadMsg("m2", "r1", "t1", 5*time.Second)))
		// an older insert arriving late must not rewind the clock
		a.Apply(insertEvent(threadMsg("m1", "r1", "t1", 1*time.Second)))

		threads := a.Snapshot("r1")
		require.Len(t, threads, 1)
		assert.Equal(t, baseTime.Add(5*time.Second), threads[0].LastActivityAt)
	})

	t.Run("general stream messages do not touch threads", func(t *testing.T) {
		a := realtime.NewThreadAggregator()
		a.Apply(insertEvent(mkMsg("m1", "r1", time.Second)))
		assert.Empty(t, a.Snapshot("r1"))
	})

	t.Run("delete decrements but never below zero", func(t *testing.T) {
		a := realtime.NewThreadAggregator()
		m := threadMsg("m1", "r1", "t1", time.Second)
		a.Apply(insertEvent(m))

		del := models.MessageEvent{Op: models.EventDelete, RoomID: "r1", MessageID: m.ID, Message: &m}
		a.Apply(del)
		a.Apply(del)
		a.Apply(del)

		threads := a.Snapshot("r1")
		require.Len(t, threads, 1)
		assert.Equal(t, 0, threads[0].MessageCount)
	})

	t.Run("body edits leave aggregates alone", func(t *testing.T) {
		a := realtime.NewThreadAggregator()
		m := threadMsg("m1", "r1", "t1", time.Second)
		a.Apply(insertEvent(m))

		edited := m
		edited.Body = "edited"
		a.Apply(updateEvent(edited))

		threads := a.Snapshot("r1")
		require.Len(t, threads, 1)
		assert.Equal(t, 1, threads[0].MessageCount)
		assert.Equal(t, baseTime.Add(time.Second), threads[0].LastActivityAt)
	})
}

func TestThreadAggregatorSnapshot(t *testing.T) {
	t.Parallel()

	t.Run("ordered by last activity descending", func(t *testing.T) {
		a := realtime.NewThreadAggregator()
		a.Apply(insertEvent(threadMsg("m1", "r1", "older", 1*time.Second)))
		a.Apply(insertEvent(threadMsg("m2", "r1", "newer", 9*time.Second)))
		a.Apply(insertEvent(threadMsg("m3", "r1", "middle", 5*time.Second)))

		ids := util.ConvertList(a.Snapshot("r1"), func(t models.Thread) string { return t.ID })
		assert.Equal(t, []string{"newer", "middle", "older"}, ids)
	})

	t.Run("refresh replaces summaries wholesale", func(t *testing.T) {
		a := realtime.NewThreadAggregator()
		a.Apply(insertEvent(threadMsg("m1", "r1", "t1", time.Second)))

		a.Replace("r1", []models.Thread{{
			ID:             "t1",
			RoomID:         "r1",
			Subject:        "from backend",
			MessageCount:   7,
			LastActivityAt: baseTime.Add(time.Minute),
		}})

		threads := a.Snapshot("r1")
		require.Len(t, threads, 1)
		assert.Equal(t, 7, threads[0].MessageCount)
		assert.Equal(t, "from backend", threads[0].Subject)
	})
}
