package pushchan

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/carousell/ct-go/pkg/logger"
	"github.com/executehouse/limpopo-connect/internal/config"
	"github.com/gorilla/websocket"
)

// envelope is the wire frame the realtime endpoint speaks. One frame carries
// exactly one of change, broadcast or status.
type envelope struct {
	Type      string       `json:"type"` // "change" | "broadcast" | "status"
	Status    Status       `json:"status,omitempty"`
	Change    *ChangeEvent `json:"change,omitempty"`
	Broadcast *Broadcast   `json:"broadcast,omitempty"`
}

type wsProvider struct {
	cfg config.RealtimeConfig
	log *logger.Logger
}

// NewWebsocketProvider returns the production Provider, backed by the
// portal's realtime websocket endpoint.
func NewWebsocketProvider(conf *config.Config) Provider {
	return &wsProvider{
		cfg: conf.Realtime,
		log: logger.MustNamed("pushchan"),
	}
}

func (p *wsProvider) Open(ctx context.Context, name string, h Handlers) (Channel, error) {
	u, err := url.Parse(p.cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("parse realtime url: %w", err)
	}
	q := u.Query()
	q.Set("channel", name)
	u.RawQuery = q.Encode()

	header := http.Header{}
	if p.cfg.Token != "" {
		header.Set("Authorization", "Bearer "+p.cfg.Token)
	}

	dialer := websocket.Dialer{HandshakeTimeout: p.cfg.HandshakeTimeout}
	conn, resp, err := dialer.DialContext(ctx, u.String(), header)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("dial channel %q: %w (status %d)", name, err, resp.StatusCode)
		}
		return nil, fmt.Errorf("dial channel %q: %w", name, err)
	}

	ch := &wsChannel{
		name:         name,
		conn:         conn,
		handlers:     h,
		writeTimeout: p.cfg.WriteTimeout,
		log:          p.log,
		done:         make(chan struct{}),
	}
	go ch.readLoop()
	return ch, nil
}

type wsChannel struct {
	name         string
	conn         *websocket.Conn
	handlers     Handlers
	writeTimeout time.Duration
	log          *logger.Logger

	writeMu sync.Mutex

	// mu is read-held across every handler dispatch so Close can wait out an
	// in-flight callback. Close must not be called from inside a handler.
	mu     sync.RWMutex
	closed bool
	done   chan struct{}
}

// readLoop is the only dispatcher: callbacks fire one at a time, in the
// order frames arrive.
func (c *wsChannel) readLoop() {
	defer close(c.done)
	for {
		var env envelope
		if err := c.conn.ReadJSON(&env); err != nil {
			c.dispatch(func() {
				if c.handlers.OnStatus != nil {
					c.handlers.OnStatus(StatusChannelError, err)
				}
			})
			return
		}

		switch env.Type {
		case "change":
			if env.Change == nil || c.handlers.OnChange == nil {
				continue
			}
			ev := *env.Change
			c.dispatch(func() { c.handlers.OnChange(ev) })
		case "broadcast":
			if env.Broadcast == nil || c.handlers.OnBroadcast == nil {
				continue
			}
			b := *env.Broadcast
			c.dispatch(func() { c.handlers.OnBroadcast(b) })
		case "status":
			if c.handlers.OnStatus == nil {
				continue
			}
			st := env.Status
			c.dispatch(func() { c.handlers.OnStatus(st, nil) })
		default:
			c.log.Warnw("unknown frame type on channel", "channel", c.name, "type", env.Type)
		}
	}
}

func (c *wsChannel) dispatch(fn func()) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed {
		return
	}
	fn()
}

func (c *wsChannel) Send(ctx context.Context, b Broadcast) error {
	c.mu.RLock()
	closed := c.closed
	c.mu.RUnlock()
	if closed {
		return fmt.Errorf("channel %q is closed", c.name)
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	deadline := time.Now().Add(c.writeTimeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	if err := c.conn.SetWriteDeadline(deadline); err != nil {
		return fmt.Errorf("set write deadline: %w", err)
	}
	env := envelope{Type: "broadcast", Broadcast: &b}
	if err := c.conn.WriteJSON(env); err != nil {
		return fmt.Errorf("write broadcast on channel %q: %w", c.name, err)
	}
	return nil
}

// Close tears the connection down and waits for the read loop to exit, so
// no handler fires after it returns.
func (c *wsChannel) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	c.mu.Unlock()

	err := c.conn.Close()
	<-c.done
	return err
}
