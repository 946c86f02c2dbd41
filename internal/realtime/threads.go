package realtime

import (
	"sort"
	"sync"

	"github.com/executehouse/limpopo-connect/internal/models"
)

// ThreadAggregator maintains lightweight per-thread summaries from the same
// event stream the message store consumes: inserts bump the count and
// last-activity, deletes decrement the count (never below zero), body edits
// leave the aggregates alone.
type ThreadAggregator struct {
	mu    sync.RWMutex
	rooms map[string]map[string]*models.Thread
}

func NewThreadAggregator() *ThreadAggregator {
	return &ThreadAggregator{
		rooms: make(map[string]map[string]*models.Thread),
	}
}

// Replace swaps a room's summaries for a bulk fetch result; the refresh
// counterpart of Store.Replace.
func (a *ThreadAggregator) Replace(roomID string, threads []models.Thread) {
	byID := make(map[string]*models.Thread, len(threads))
	for _, t := range threads {
		t := t
		byID[t.ID] = &t
	}

	a.mu.Lock()
	a.rooms[roomID] = byID
	a.mu.Unlock()
}

func (a *ThreadAggregator) Apply(ev models.MessageEvent) {
	if ev.Message == nil || ev.Message.ThreadID == nil {
		return
	}
	threadID := *ev.Message.ThreadID

	a.mu.Lock()
	defer a.mu.Unlock()

	byID, ok := a.rooms[ev.RoomID]
	if !ok {
		byID = make(map[string]*models.Thread)
		a.rooms[ev.RoomID] = byID
	}

	switch ev.Op {
	case models.EventInsert:
		t, ok := byID[threadID]
		if !ok {
			t = &models.Thread{ID: threadID, RoomID: ev.RoomID}
			byID[threadID] = t
		}
		t.MessageCount++
		if ev.Message.CreatedAt.After(t.LastActivityAt) {
			t.LastActivityAt = ev.Message.CreatedAt
		}
	case models.EventDelete:
		if t, ok := byID[threadID]; ok && t.MessageCount > 0 {
			t.MessageCount--
		}
	case models.EventUpdate:
		// body edits do not touch the aggregates
	}
}

// Snapshot returns the room's summaries sorted by last activity descending.
func (a *ThreadAggregator) Snapshot(roomID string) []models.Thread {
	a.mu.RLock()
	defer a.mu.RUnlock()

	byID := a.rooms[roomID]
	out := make([]models.Thread, 0, len(byID))
	for _, t := range byID {
		out = append(out, *t)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].LastActivityAt.Equal(out[j].LastActivityAt) {
			return out[i].LastActivityAt.After(out[j].LastActivityAt)
		}
		return out[i].ID < out[j].ID
	})
	return out
}

func (a *ThreadAggregator) Drop(roomID string) {
	a.mu.Lock()
	delete(a.rooms, roomID)
	a.mu.Unlock()
}
