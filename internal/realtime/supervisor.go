package realtime

import (
	"context"
	"sync"
	"time"

	"github.com/carousell/ct-go/pkg/logger"
	"github.com/cenkalti/backoff/v4"
	"github.com/executehouse/limpopo-connect/internal/config"
	"github.com/executehouse/limpopo-connect/internal/models"
	"github.com/gammazero/workerpool"
)

// Resyncer re-establishes a room's subscription and reloads its bulk state.
// The engine implements it.
type Resyncer interface {
	Resubscribe(ctx context.Context, roomID string) error
	Resync(ctx context.Context, roomID string) error
}

// Supervisor runs the per-room recovery state machine:
// Live -> Degraded -> Resyncing -> Live, or Live -> Closed on explicit
// unsubscribe. Events missed while disconnected are gone (the channel is not
// store-and-forward), so a full bulk resync always precedes the return to
// Live. Retries back off exponentially with a cap and no attempt limit while
// the room is observed.
type Supervisor struct {
	cfg      config.SyncConfig
	resyncer Resyncer
	metrics  *Metrics
	log      *logger.Logger
	pool     *workerpool.WorkerPool

	mu     sync.Mutex
	rooms  map[string]*roomSync
	closed bool
}

type roomSync struct {
	state   models.SyncState
	retries int
	timer   *time.Timer
	backoff *backoff.ExponentialBackOff

	// timerFired flips once the retry timer has been consumed; from that
	// point until the attempt settles, a new degrade signal must be recorded
	// in pending rather than dropped, or the attempt would finish on Live
	// with a dead channel and no timer left to fire.
	timerFired bool
	pending    bool
}

func NewSupervisor(cfg config.SyncConfig, resyncer Resyncer, metrics *Metrics) *Supervisor {
	workers := cfg.ResyncWorkers
	if workers <= 0 {
		workers = 1
	}
	return &Supervisor{
		cfg:      cfg,
		resyncer: resyncer,
		metrics:  metrics,
		log:      logger.MustNamed("supervisor"),
		pool:     workerpool.New(workers),
		rooms:    make(map[string]*roomSync),
	}
}

func (s *Supervisor) newBackoff() *backoff.ExponentialBackOff {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = s.cfg.BackoffInitial
	bo.MaxInterval = s.cfg.BackoffMax
	bo.MaxElapsedTime = 0 // connectivity loss is recoverable, not fatal
	bo.Reset()
	return bo
}

// RoomLive marks a room healthy and resets its retry budget.
func (s *Supervisor) RoomLive(roomID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	rs, ok := s.rooms[roomID]
	if !ok {
		rs = &roomSync{}
		s.rooms[roomID] = rs
	}
	rs.state = models.SyncLive
	rs.retries = 0
	rs.backoff = nil
	rs.timerFired = false
	rs.pending = false
	if rs.timer != nil {
		rs.timer.Stop()
		rs.timer = nil
	}
}

// RoomDegraded transitions a room out of Live and schedules a resubscribe.
// Repeat notifications while a retry is already owned are ignored.
func (s *Supervisor) RoomDegraded(roomID string, cause error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	rs, ok := s.rooms[roomID]
	if !ok || rs.state == models.SyncClosed {
		return
	}
	if rs.state == models.SyncDegraded || rs.state == models.SyncResyncing {
		// a retry already owns the room. If its timer is still pending the
		// signal is redundant; past the timer the in-flight attempt must not
		// settle on Live, so remember the degrade for it to act on.
		if rs.state == models.SyncResyncing || rs.timerFired {
			rs.pending = true
		}
		return
	}

	rs.state = models.SyncDegraded
	if rs.backoff == nil {
		rs.backoff = s.newBackoff()
	}
	s.log.Warnw("room degraded, scheduling resubscribe", "room_id", roomID, "error", cause)
	s.scheduleLocked(roomID, rs)
}

func (s *Supervisor) scheduleLocked(roomID string, rs *roomSync) {
	rs.timerFired = false
	delay := rs.backoff.NextBackOff()
	rs.timer = time.AfterFunc(delay, func() {
		s.mu.Lock()
		if cur, ok := s.rooms[roomID]; ok {
			cur.timerFired = true
		}
		s.mu.Unlock()
		s.pool.Submit(func() { s.attempt(roomID) })
	})
}

func (s *Supervisor) attempt(roomID string) {
	s.mu.Lock()
	rs, ok := s.rooms[roomID]
	if !ok || s.closed || rs.state == models.SyncClosed {
		s.mu.Unlock()
		return
	}
	rs.retries++
	retries := rs.retries
	s.mu.Unlock()

	ctx := context.Background()

	if err := s.resyncer.Resubscribe(ctx, roomID); err != nil {
		s.metrics.reconnect("error")
		s.log.Warnw("resubscribe failed", "room_id", roomID, "attempt", retries, "error", err)
		s.reschedule(roomID)
		return
	}
	s.metrics.reconnect("success")

	s.mu.Lock()
	rs, ok = s.rooms[roomID]
	if !ok || rs.state == models.SyncClosed {
		s.mu.Unlock()
		return
	}
	rs.state = models.SyncResyncing
	s.mu.Unlock()

	start := time.Now()
	if err := s.resyncer.Resync(ctx, roomID); err != nil {
		s.metrics.resync("error", time.Since(start).Seconds())
		s.log.Warnw("resync failed", "room_id", roomID, "attempt", retries, "error", err)
		s.reschedule(roomID)
		return
	}
	s.metrics.resync("success", time.Since(start).Seconds())

	s.mu.Lock()
	rs, ok = s.rooms[roomID]
	if !ok || rs.state == models.SyncClosed {
		s.mu.Unlock()
		return
	}
	if rs.pending {
		// the channel degraded again somewhere inside this attempt; its one
		// error notification is spent, so going Live here would strand the
		// room on a dead channel
		rs.pending = false
		rs.state = models.SyncDegraded
		if rs.backoff == nil {
			rs.backoff = s.newBackoff()
		}
		s.scheduleLocked(roomID, rs)
		s.mu.Unlock()
		s.log.Warnw("channel degraded during recovery, rescheduling", "room_id", roomID, "attempt", retries)
		return
	}
	rs.state = models.SyncLive
	rs.retries = 0
	rs.backoff = nil
	s.mu.Unlock()
	s.log.Infow("room resynchronized", "room_id", roomID, "attempts", retries)
}

func (s *Supervisor) reschedule(roomID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rs, ok := s.rooms[roomID]
	if !ok || s.closed || rs.state == models.SyncClosed {
		return
	}
	rs.state = models.SyncDegraded
	rs.pending = false // the fresh attempt subsumes any recorded signal
	if rs.backoff == nil {
		rs.backoff = s.newBackoff()
	}
	s.scheduleLocked(roomID, rs)
}

// RoomClosed stops recovery for a room; called on explicit unsubscribe.
func (s *Supervisor) RoomClosed(roomID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rs, ok := s.rooms[roomID]
	if !ok {
		return
	}
	if rs.timer != nil {
		rs.timer.Stop()
	}
	rs.state = models.SyncClosed
	delete(s.rooms, roomID)
}

// Status reports the room's sync state and retry count.
func (s *Supervisor) Status(roomID string) (models.SyncState, int, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rs, ok := s.rooms[roomID]
	if !ok {
		return models.SyncClosed, 0, false
	}
	return rs.state, rs.retries, true
}

// Close stops all timers and drains the resync pool.
func (s *Supervisor) Close() {
	s.mu.Lock()
	s.closed = true
	for roomID, rs := range s.rooms {
		if rs.timer != nil {
			rs.timer.Stop()
		}
		delete(s.rooms, roomID)
	}
	s.mu.Unlock()
	s.pool.StopWait()
}
