package realtime

import (
	"sort"
	"sync"

	"github.com/carousell/ct-go/pkg/logger"
	"github.com/executehouse/limpopo-connect/internal/models"
)

// ApplyOutcome reports what an event did to the store.
type ApplyOutcome string

const (
	ApplyApplied   ApplyOutcome = "applied"
	ApplyDuplicate ApplyOutcome = "duplicate" // redelivered insert, ignored
	ApplyNoop      ApplyOutcome = "noop"      // update/delete of an absent id
)

// Store keeps one ordered, deduplicated message collection per room. It is
// rebuilt wholesale by Replace (bulk fetch) and mutated incrementally by
// Apply. Position is computed at insert time, so the visible order matches
// created_at ascending regardless of event arrival order.
type Store struct {
	log     *logger.Logger
	metrics *Metrics

	mu    sync.RWMutex
	rooms map[string]*roomMessages
}

func NewStore(metrics *Metrics) *Store {
	return &Store{
		log:     logger.MustNamed("store"),
		metrics: metrics,
		rooms:   make(map[string]*roomMessages),
	}
}

type roomMessages struct {
	mu      sync.Mutex
	ordered []models.Message
	byID    map[string]models.Message
}

func (s *Store) room(roomID string) *roomMessages {
	s.mu.RLock()
	r, ok := s.rooms[roomID]
	s.mu.RUnlock()
	if ok {
		return r
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if r, ok := s.rooms[roomID]; ok {
		return r
	}
	r = &roomMessages{byID: make(map[string]models.Message)}
	s.rooms[roomID] = r
	return r
}

// Replace swaps the room's collection for the given bulk fetch result. This
// is the synchronization point used on first observe and after reconnect.
func (s *Store) Replace(roomID string, msgs []models.Message) {
	ordered := make([]models.Message, 0, len(msgs))
	byID := make(map[string]models.Message, len(msgs))
	for _, m := range msgs {
		if _, ok := byID[m.ID]; ok {
			continue
		}
		byID[m.ID] = m
		ordered = append(ordered, m)
	}
	sort.SliceStable(ordered, func(i, j int) bool { return ordered[i].Before(ordered[j]) })

	r := s.room(roomID)
	r.mu.Lock()
	r.ordered = ordered
	r.byID = byID
	r.mu.Unlock()
}

// Apply mutates the room collection with one normalized event. Duplicate
// inserts are ignored; updates preserve the message's position (created_at
// is the ordering key and does not change); deleting an absent id is not an
// error.
func (s *Store) Apply(ev models.MessageEvent) ApplyOutcome {
	r := s.room(ev.RoomID)
	r.mu.Lock()
	defer r.mu.Unlock()

	switch ev.Op {
	case models.EventInsert:
		if ev.Message == nil {
			return ApplyNoop
		}
		if _, ok := r.byID[ev.Message.ID]; ok {
			s.metrics.dropped("duplicate")
			s.log.Debugw("duplicate insert ignored", "room_id", ev.RoomID, "message_id", ev.Message.ID)
			return ApplyDuplicate
		}
		r.insert(*ev.Message)
		return ApplyApplied

	case models.EventUpdate:
		if ev.Message == nil {
			return ApplyNoop
		}
		if !r.update(*ev.Message) {
			return ApplyNoop
		}
		return ApplyApplied

	case models.EventDelete:
		if !r.remove(ev.MessageID) {
			return ApplyNoop
		}
		return ApplyApplied
	}
	return ApplyNoop
}

// Get returns the stored message with the given id, if present.
func (s *Store) Get(roomID, messageID string) (models.Message, bool) {
	r := s.room(roomID)
	r.mu.Lock()
	defer r.mu.Unlock()
	m, ok := r.byID[messageID]
	return m, ok
}

// View returns a read-only snapshot of the room's ordered collection.
func (s *Store) View(roomID string) []models.Message {
	r := s.room(roomID)
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]models.Message, len(r.ordered))
	copy(out, r.ordered)
	return out
}

// Drop discards a room's collection when its last observer leaves.
func (s *Store) Drop(roomID string) {
	s.mu.Lock()
	delete(s.rooms, roomID)
	s.mu.Unlock()
}

func (r *roomMessages) insert(m models.Message) {
	i := sort.Search(len(r.ordered), func(i int) bool { return m.Before(r.ordered[i]) })
	r.ordered = append(r.ordered, models.Message{})
	copy(r.ordered[i+1:], r.ordered[i:])
	r.ordered[i] = m
	r.byID[m.ID] = m
}

func (r *roomMessages) update(m models.Message) bool {
	prev, ok := r.byID[m.ID]
	if !ok {
		return false
	}
	// created_at is the ordering key; keep the original so the message
	// stays in place
	m.CreatedAt = prev.CreatedAt
	i := r.indexOf(prev)
	if i < 0 {
		return false
	}
	r.ordered[i] = m
	r.byID[m.ID] = m
	return true
}

func (r *roomMessages) remove(id string) bool {
	prev, ok := r.byID[id]
	if !ok {
		return false
	}
	i := r.indexOf(prev)
	if i < 0 {
		return false
	}
	r.ordered = append(r.ordered[:i], r.ordered[i+1:]...)
	delete(r.byID, id)
	return true
}

// indexOf locates m by its sort key, then walks the run of equal keys to
// match on id.
func (r *roomMessages) indexOf(m models.Message) int {
	i := sort.Search(len(r.ordered), func(i int) bool { return !r.ordered[i].Before(m) })
	for ; i < len(r.ordered) && !m.Before(r.ordered[i]); i++ {
		if r.ordered[i].ID == m.ID {
			return i
		}
	}
	return -1
}
