package realtime

import (
	"context"
	"fmt"
	"sync"

	"github.com/carousell/ct-go/pkg/logger"
	"github.com/executehouse/limpopo-connect/internal/models"
	"github.com/executehouse/limpopo-connect/internal/repo/pushchan"
)

// ChannelName derives the deterministic channel name for a room, so the
// server can scope change notifications to that room only.
func ChannelName(roomID string) string {
	return "room:" + roomID + ":messages"
}

// RoomHandlers receive a room's normalized traffic. OnEvent fires for every
// event the normalizer accepts, OnError for transport failures. Retry is not
// the registry's job; OnError is where the reconnection supervisor plugs in.
type RoomHandlers struct {
	OnEvent func(models.MessageEvent)
	OnError func(*models.ChannelError)
}

// Registry owns at most one live subscription per room. It is the only
// place network channels are acquired and released.
type Registry struct {
	provider   pushchan.Provider
	normalizer *Normalizer
	log        *logger.Logger

	mu   sync.Mutex
	subs map[string]*subscription
}

type subscription struct {
	roomID  string
	channel pushchan.Channel

	mu     sync.Mutex
	status models.SubscriptionStatus
}

func (s *subscription) setStatus(st models.SubscriptionStatus) {
	s.mu.Lock()
	s.status = st
	s.mu.Unlock()
}

func (s *subscription) getStatus() models.SubscriptionStatus {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status
}

func NewRegistry(provider pushchan.Provider, normalizer *Normalizer) *Registry {
	return &Registry{
		provider:   provider,
		normalizer: normalizer,
		log:        logger.MustNamed("registry"),
		subs:       make(map[string]*subscription),
	}
}

// Subscribe opens a channel for the room, tearing down any prior
// subscription with the same key first. Change and broadcast handlers both
// delegate to the normalizer; only events it accepts reach h.OnEvent.
func (r *Registry) Subscribe(ctx context.Context, roomID string, h RoomHandlers) error {
	r.Unsubscribe(roomID)

	sub := &subscription{roomID: roomID, status: models.SubscriptionConnecting}
	handlers := pushchan.Handlers{
		OnChange: func(ev pushchan.ChangeEvent) {
			if mev, ok := r.normalizer.NormalizeChange(roomID, ev); ok && h.OnEvent != nil {
				h.OnEvent(mev)
			}
		},
		OnBroadcast: func(b pushchan.Broadcast) {
			if mev, ok := r.normalizer.NormalizeBroadcast(roomID, b); ok && h.OnEvent != nil {
				h.OnEvent(mev)
			}
		},
		OnStatus: func(st pushchan.Status, cause error) {
			r.onStatus(sub, st, cause, h)
		},
	}

	ch, err := r.provider.Open(ctx, ChannelName(roomID), handlers)
	if err != nil {
		return fmt.Errorf("open channel for room %s: %w", roomID, err)
	}
	sub.channel = ch

	r.mu.Lock()
	prev := r.subs[roomID] // a racing Subscribe may have won while we dialed
	r.subs[roomID] = sub
	r.mu.Unlock()
	if prev != nil {
		_ = prev.channel.Close()
	}

	r.log.Infow("subscribed", "room_id", roomID, "channel", ChannelName(roomID))
	return nil
}

func (r *Registry) onStatus(sub *subscription, st pushchan.Status, cause error, h RoomHandlers) {
	switch st {
	case pushchan.StatusSubscribed:
		sub.setStatus(models.SubscriptionSubscribed)
	case pushchan.StatusChannelError, pushchan.StatusTimedOut:
		sub.setStatus(models.SubscriptionError)
		if cause == nil {
			cause = fmt.Errorf("channel status %s", st)
		}
		if h.OnError != nil {
			h.OnError(&models.ChannelError{Room: sub.roomID, Cause: cause})
		}
	case pushchan.StatusClosed:
		sub.setStatus(models.SubscriptionClosed)
	}
}

// Unsubscribe closes the room's channel and removes the registry entry. It
// is idempotent: a second call returns false with no further side effects.
// No event handler fires after it returns.
func (r *Registry) Unsubscribe(roomID string) bool {
	r.mu.Lock()
	sub, ok := r.subs[roomID]
	if ok {
		delete(r.subs, roomID)
	}
	r.mu.Unlock()
	if !ok {
		return false
	}

	if err := sub.channel.Close(); err != nil {
		r.log.Warnw("closing channel", "room_id", roomID, "error", err)
	}
	sub.setStatus(models.SubscriptionClosed)
	r.log.Infow("unsubscribed", "room_id", roomID)
	return true
}

// UnsubscribeAll closes every tracked channel. Used at shutdown.
func (r *Registry) UnsubscribeAll() {
	r.mu.Lock()
	roomIDs := make([]string, 0, len(r.subs))
	for roomID := range r.subs {
		roomIDs = append(roomIDs, roomID)
	}
	r.mu.Unlock()

	for _, roomID := range roomIDs {
		r.Unsubscribe(roomID)
	}
}

// Status reports the subscription status for a room, or false when no
// subscription exists.
func (r *Registry) Status(roomID string) (models.SubscriptionStatus, bool) {
	r.mu.Lock()
	sub, ok := r.subs[roomID]
	r.mu.Unlock()
	if !ok {
		return "", false
	}
	return sub.getStatus(), true
}
