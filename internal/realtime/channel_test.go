package realtime

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

type pushServer struct {
	srv    *httptest.Server
	frames chan Event
	conns  chan *websocket.Conn
}

func newPushServer(t *testing.T) *pushServer {
	t.Helper()
	p := &pushServer{
		frames: make(chan Event, 16),
		conns:  make(chan *websocket.Conn, 4),
	}
	upgrader := websocket.Upgrader{}
	p.srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Errorf("upgrade: %v", err)
			return
		}
		p.conns <- conn
		for {
			var ev Event
			if err := conn.ReadJSON(&ev); err != nil {
				return
			}
			p.frames <- ev
		}
	}))
	t.Cleanup(p.srv.Close)
	return p
}

func (p *pushServer) nextFrame(t *testing.T) Event {
	t.Helper()
	select {
	case ev := <-p.frames:
		return ev
	case <-time.After(3 * time.Second):
		t.Fatalf("no frame received")
	}
	return Event{}
}

func (p *pushServer) nextConn(t *testing.T) *websocket.Conn {
	t.Helper()
	select {
	case c := <-p.conns:
		return c
	case <-time.After(3 * time.Second):
		t.Fatalf("client never connected")
	}
	return nil
}

func TestChannelJoinsAndReceives(t *testing.T) {
	p := newPushServer(t)
	ch, err := New(p.srv.URL, nil)
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	if err := ch.Join(Room{Username: "alice", Friend: "bob"}); err != ErrNotConnected {
		t.Fatalf("expected deferred join, got %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go ch.Run(ctx)

	server := p.nextConn(t)
	ev := p.nextFrame(t)
	if ev.Name != EventJoin || !strings.Contains(string(ev.Data), `"friend":"bob"`) {
		t.Fatalf("expected join on connect, got %s %s", ev.Name, ev.Data)
	}

	data, _ := json.Marshal(NewMessage{Sender: "bob", Recipient: "alice", Content: "hi"})
	if err := server.WriteJSON(Event{Name: EventNewMessage, Data: data}); err != nil {
		t.Fatalf("server write: %v", err)
	}
	select {
	case got := <-ch.Events():
		if got.Name != EventNewMessage {
			t.Fatalf("unexpected event %q", got.Name)
		}
		if Route(got, "alice", "bob") != ActionPollHistory {
			t.Fatalf("expected history poll")
		}
	case <-time.After(3 * time.Second):
		t.Fatalf("event not delivered")
	}

	if err := ch.SendMessage("alice", "bob", "yo"); err != nil {
		t.Fatalf("send: %v", err)
	}
	if ev := p.nextFrame(t); ev.Name != EventSendMessage {
		t.Fatalf("expected send_message, got %q", ev.Name)
	}
}

func TestChannelRejoinsAfterReconnect(t *testing.T) {
	p := newPushServer(t)
	ch, err := New(p.srv.URL, nil)
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	_ = ch.Join(Room{Username: "alice", Friend: "bob"})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go ch.Run(ctx)

	first := p.nextConn(t)
	if ev := p.nextFrame(t); ev.Name != EventJoin {
		t.Fatalf("expected join, got %q", ev.Name)
	}
	_ = first.Close()

	p.nextConn(t)
	if ev := p.nextFrame(t); ev.Name != EventJoin {
		t.Fatalf("expected join after reconnect, got %q", ev.Name)
	}
}

func TestNewRejectsUnknownScheme(t *testing.T) {
	if _, err := New("ftp://x", nil); err == nil {
		t.Fatalf("expected error")
	}
	ch, err := New("https://chat.example.com/socket", nil)
	if err != nil || !strings.HasPrefix(ch.url, "wss://") {
		t.Fatalf("expected wss mapping, got %v %v", ch, err)
	}
}

func TestRoute(t *testing.T) {
	msg := func(sender, recipient string) Event {
		data, _ := json.Marshal(NewMessage{Sender: sender, Recipient: recipient})
		return Event{Name: EventNewMessage, Data: data}
	}
	tests := []struct {
		name string
		ev   Event
		peer string
		want Action
	}{
		{"from open peer", msg("bob", "alice"), "bob", ActionPollHistory},
		{"own echo", msg("alice", "bob"), "bob", ActionPollHistory},
		{"from someone else", msg("carol", "alice"), "bob", ActionRefreshFriends},
		{"no conversation open", msg("bob", "alice"), "", ActionRefreshFriends},
		{"unread update", Event{Name: EventUnreadUpdate}, "bob", ActionRefreshFriends},
		{"status", Event{Name: EventStatus}, "bob", ActionNone},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Route(tt.ev, "alice", tt.peer); got != tt.want {
				t.Fatalf("got %v want %v", got, tt.want)
			}
		})
	}
}
