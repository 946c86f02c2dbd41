package realtime

import (
	"context"
	"sync"

	"github.com/carousell/ct-go/pkg/logger"
	"github.com/executehouse/limpopo-connect/internal/config"
	"github.com/executehouse/limpopo-connect/internal/models"
	"github.com/executehouse/limpopo-connect/internal/repo/portalapi"
)

// RoomStatus is the externally visible state of one observed room.
type RoomStatus struct {
	RoomID       string                    `json:"room_id"`
	Observers    int                       `json:"observers"`
	Subscription models.SubscriptionStatus `json:"subscription"`
	Sync         models.SyncState          `json:"sync"`
	Retries      int                       `json:"retries"`
}

// Engine ties the pieces together: one subscription per observed room via
// the registry, inbound events applied to the store and thread aggregator
// under a per-room lock, sends through the pipeline, recovery through the
// supervisor. Rooms are independent; nothing locks across rooms.
type Engine struct {
	api      portalapi.Client
	registry *Registry
	store    *Store
	threads  *ThreadAggregator
	sender   *Sender
	sup      *Supervisor
	metrics  *Metrics
	log      *logger.Logger

	mu    sync.Mutex
	rooms map[string]*roomEntry
}

// roomEntry tracks one observed room. mu serializes observe/unobserve
// transitions, so concurrent first observers wait for the start outcome
// instead of counting themselves against a start that may still fail; apply
// serializes all store and aggregator mutation for the room.
type roomEntry struct {
	mu        sync.Mutex
	observers int
	apply     sync.Mutex
}

func NewEngine(
	conf *config.Config,
	api portalapi.Client,
	registry *Registry,
	store *Store,
	threads *ThreadAggregator,
	sender *Sender,
	metrics *Metrics,
) *Engine {
	e := &Engine{
		api:      api,
		registry: registry,
		store:    store,
		threads:  threads,
		sender:   sender,
		metrics:  metrics,
		log:      logger.MustNamed("engine"),
		rooms:    make(map[string]*roomEntry),
	}
	e.sup = NewSupervisor(conf.Sync, e, metrics)
	return e
}

// ObserveRoom registers an observer for the room. The first observer
// triggers the membership gate, the subscription and the initial bulk sync;
// later observers share the live state.
func (e *Engine) ObserveRoom(ctx context.Context, roomID string) error {
	entry := e.room(roomID)
	entry.mu.Lock()
	defer entry.mu.Unlock()

	if entry.observers > 0 {
		entry.observers++
		return nil
	}
	if err := e.startRoom(ctx, roomID); err != nil {
		return err
	}
	entry.observers = 1
	return nil
}

func (e *Engine) startRoom(ctx context.Context, roomID string) error {
	// membership gates whether the room should be observed at all; the
	// backend answers with the typed taxonomy
	if _, err := e.api.ListMembers(ctx, roomID); err != nil {
		return err
	}
	if err := e.Resubscribe(ctx, roomID); err != nil {
		return err
	}
	if err := e.Resync(ctx, roomID); err != nil {
		e.registry.Unsubscribe(roomID)
		return err
	}
	e.sup.RoomLive(roomID)
	e.log.Infow("observing room", "room_id", roomID)
	return nil
}

// Unobserve drops one observer. When the last observer leaves, the
// subscription is torn down and the room's state discarded. Returns whether
// anything was actually removed; a second call on an absent room is a no-op
// returning false.
func (e *Engine) Unobserve(roomID string) bool {
	e.mu.Lock()
	entry, ok := e.rooms[roomID]
	e.mu.Unlock()
	if !ok {
		return false
	}

	entry.mu.Lock()
	defer entry.mu.Unlock()
	if entry.observers == 0 {
		return false
	}
	if entry.observers > 1 {
		entry.observers--
		return true
	}
	entry.observers = 0

	// no event handler fires once Unsubscribe returns, so the room state
	// below is safe to discard
	e.registry.Unsubscribe(roomID)
	e.sup.RoomClosed(roomID)
	e.store.Drop(roomID)
	e.threads.Drop(roomID)
	e.log.Infow("stopped observing room", "room_id", roomID)
	return true
}

// Resubscribe implements Resyncer: it re-opens the room's channel, tearing
// down the previous one. Handlers route events into applyEvent and channel
// failures into the supervisor.
func (e *Engine) Resubscribe(ctx context.Context, roomID string) error {
	h := RoomHandlers{
		OnEvent: e.applyEvent,
		OnError: func(ce *models.ChannelError) {
			e.sup.RoomDegraded(ce.Room, ce)
		},
	}
	return e.registry.Subscribe(ctx, roomID, h)
}

// Resync implements Resyncer: full bulk re-fetch of messages and threads.
// Anything missed while disconnected is restored here, never from the
// channel.
func (e *Engine) Resync(ctx context.Context, roomID string) error {
	msgs, err := e.api.ListMessages(ctx, roomID)
	if err != nil {
		return err
	}
	threads, err := e.api.ListThreads(ctx, roomID)
	if err != nil {
		return err
	}

	entry := e.room(roomID)
	entry.apply.Lock()
	defer entry.apply.Unlock()
	e.store.Replace(roomID, msgs)
	e.threads.Replace(roomID, threads)
	return nil
}

// applyEvent serializes all mutations for one room: store first, then the
// thread aggregator, last-applied-wins. A delete that arrives bare is
// enriched with the stored row so the aggregator can attribute it.
func (e *Engine) applyEvent(ev models.MessageEvent) {
	entry := e.room(ev.RoomID)
	entry.apply.Lock()
	defer entry.apply.Unlock()

	if ev.Op == models.EventDelete && ev.Message == nil {
		if m, ok := e.store.Get(ev.RoomID, ev.MessageID); ok {
			ev.Message = &m
		}
	}

	outcome := e.store.Apply(ev)
	if outcome != ApplyApplied {
		return
	}
	e.threads.Apply(ev)
	e.metrics.applied(string(ev.Op))
}

func (e *Engine) room(roomID string) *roomEntry {
	e.mu.Lock()
	defer e.mu.Unlock()
	entry, ok := e.rooms[roomID]
	if !ok {
		entry = &roomEntry{}
		e.rooms[roomID] = entry
	}
	return entry
}

// Messages returns the room's current ordered view.
func (e *Engine) Messages(roomID string) []models.Message {
	return e.store.View(roomID)
}

// Threads returns the room's thread summaries, last activity first.
func (e *Engine) Threads(roomID string) []models.Thread {
	return e.threads.Snapshot(roomID)
}

// Send forwards through the send pipeline. The store is untouched until the
// confirmed insert event arrives.
func (e *Engine) Send(ctx context.Context, roomID, body string, threadID *string) error {
	return e.sender.Send(ctx, roomID, body, threadID)
}

func (e *Engine) Join(ctx context.Context, roomID string) error {
	return e.api.JoinRoom(ctx, roomID)
}

func (e *Engine) Leave(ctx context.Context, roomID string) error {
	return e.api.LeaveRoom(ctx, roomID)
}

// Status reports the room's observer count, subscription status and sync
// state.
func (e *Engine) Status(roomID string) RoomStatus {
	e.mu.Lock()
	entry := e.rooms[roomID]
	e.mu.Unlock()

	observers := 0
	if entry != nil {
		entry.mu.Lock()
		observers = entry.observers
		entry.mu.Unlock()
	}

	st := RoomStatus{
		RoomID:       roomID,
		Observers:    observers,
		Subscription: models.SubscriptionClosed,
		Sync:         models.SyncClosed,
	}
	if sub, ok := e.registry.Status(roomID); ok {
		st.Subscription = sub
	}
	if state, retries, ok := e.sup.Status(roomID); ok {
		st.Sync = state
		st.Retries = retries
	}
	return st
}

// Close tears down every subscription and stops recovery. Used at shutdown.
func (e *Engine) Close() {
	e.sup.Close()
	e.registry.UnsubscribeAll()
}
