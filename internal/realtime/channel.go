// Package realtime is the websocket push channel. Pushed events are only
// hints: a new_message event makes the client poll sooner, it never renders
// the pushed payload itself.
package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/glasschat/glasschat-client/internal/api"
	"github.com/glasschat/glasschat-client/internal/schedule"
)

// Event names.
const (
	EventJoin         = "join"
	EventLeave        = "leave"
	EventSendMessage  = "send_message"
	EventNewMessage   = "new_message"
	EventUnreadUpdate = "unread_update"
	EventStatus       = "status"
)

const (
	writeWait  = 10 * time.Second
	pingPeriod = 30 * time.Second
	minBackoff = time.Second
	maxBackoff = 30 * time.Second
	eventQueue = 64
)

// ErrNotConnected is returned by emits while the socket is down.
var ErrNotConnected = errors.New("realtime channel not connected")

// Event is one frame on the socket.
type Event struct {
	Name string          `json:"event"`
	Data json.RawMessage `json:"data,omitempty"`
}

// NewMessage is the payload of a new_message event.
type NewMessage struct {
	Sender    string        `json:"sender"`
	Recipient string        `json:"recipient"`
	Content   string        `json:"content"`
	Timestamp api.Timestamp `json:"timestamp"`
}

// Room is a joined conversation. A room without a friend is the user's own
// room, which carries pushes such as unread updates.
type Room struct {
	Username string `json:"username"`
	Friend   string `json:"friend,omitempty"`
}

// Channel maintains the socket. It reconnects on its own and re-joins the
// rooms it was in.
type Channel struct {
	url    string
	dialer *websocket.Dialer
	logger *slog.Logger
	events chan Event

	mu        sync.Mutex
	conn      *websocket.Conn
	rooms     map[Room]bool
	failures  int
	connected bool
}

// New returns a channel for the websocket endpoint at rawURL. http(s) URLs
// are mapped to ws(s).
func New(rawURL string, logger *slog.Logger) (*Channel, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("parse realtime url: %w", err)
	}
	switch u.Scheme {
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	case "ws", "wss":
	default:
		return nil, fmt.Errorf("realtime url %q: unsupported scheme", rawURL)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Channel{
		url:    u.String(),
		dialer: websocket.DefaultDialer,
		logger: logger,
		events: make(chan Event, eventQueue),
		rooms:  make(map[Room]bool),
	}, nil
}

// Events delivers server events. Events are dropped when nobody keeps up.
func (c *Channel) Events() <-chan Event {
	return c.events
}

// Connected reports whether the socket is up.
func (c *Channel) Connected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.connected
}

// Join enters a conversation room. The room is remembered and re-joined
// after a reconnect, so an error here only means the emit is deferred.
func (c *Channel) Join(room Room) error {
	c.mu.Lock()
	c.rooms[room] = true
	c.mu.Unlock()
	return c.emit(EventJoin, room)
}

// Leave exits a conversation room.
func (c *Channel) Leave(room Room) error {
	c.mu.Lock()
	delete(c.rooms, room)
	c.mu.Unlock()
	return c.emit(EventLeave, room)
}

// SendMessage announces a sent message to the room.
func (c *Channel) SendMessage(sender, recipient, body string) error {
	return c.emit(EventSendMessage, map[string]string{
		"sender":    sender,
		"recipient": recipient,
		"content":   body,
	})
}

func (c *Channel) emit(name string, data any) error {
	raw, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("encode %s: %w", name, err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn == nil {
		return ErrNotConnected
	}
	return c.writeLocked(Event{Name: name, Data: raw})
}

func (c *Channel) writeLocked(ev Event) error {
	_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err := c.conn.WriteJSON(ev); err != nil {
		return fmt.Errorf("write %s: %w", ev.Name, err)
	}
	return nil
}

// Run keeps the socket connected until ctx is done. Losing the connection
// is never fatal; it is retried with capped exponential backoff.
func (c *Channel) Run(ctx context.Context) {
	for {
		err := c.session(ctx)
		if ctx.Err() != nil {
			return
		}

		c.mu.Lock()
		c.failures++
		wait := schedule.Backoff(minBackoff, maxBackoff, c.failures-1)
		c.mu.Unlock()
		c.logger.Debug("Realtime channel down", "err", err, "retry", wait)

		select {
		case <-ctx.Done():
			return
		case <-time.After(wait):
		}
	}
}

// session dials once and reads until the connection fails.
func (c *Channel) session(ctx context.Context) error {
	conn, _, err := c.dialer.DialContext(ctx, c.url, nil)
	if err != nil {
		return err
	}

	c.mu.Lock()
	c.conn = conn
	c.connected = true
	c.failures = 0
	for room := range c.rooms {
		raw, _ := json.Marshal(room)
		if err := c.writeLocked(Event{Name: EventJoin, Data: raw}); err != nil {
			c.logger.Debug("Re-joining room failed", "room", room.Friend, "err", err)
		}
	}
	c.mu.Unlock()
	c.logger.Info("Realtime channel connected", "url", c.url)

	done := make(chan struct{})
	defer close(done)
	go c.keepalive(ctx, conn, done)

	defer func() {
		c.mu.Lock()
		c.conn = nil
		c.connected = false
		c.mu.Unlock()
		_ = conn.Close()
	}()

	for {
		var ev Event
		if err := conn.ReadJSON(&ev); err != nil {
			return err
		}
		if ev.Name == "" {
			continue
		}
		select {
		case c.events <- ev:
		default:
			c.logger.Debug("Dropping realtime event", "event", ev.Name)
		}
	}
}

// keepalive pings the server and closes the connection when ctx ends so the
// blocked reader returns.
func (c *Channel) keepalive(ctx context.Context, conn *websocket.Conn, done <-chan struct{}) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()
	for {
		select {
		case <-done:
			return
		case <-ctx.Done():
			_ = conn.Close()
			return
		case <-ticker.C:
			c.mu.Lock()
			err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait))
			c.mu.Unlock()
			if err != nil {
				_ = conn.Close()
				return
			}
		}
	}
}
