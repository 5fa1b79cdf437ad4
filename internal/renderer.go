package internal

import (
	"context"
	"sync"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/glasschat/glasschat-client/internal/chatsync"
)

// chatRenderer turns engine render calls into tea messages. The engine
// renders while holding its own lock, so calls only queue; forward delivers
// the queue to the program in order.
type chatRenderer struct {
	peer string

	mu      sync.Mutex
	pending []tea.Msg
	wake    chan struct{}
}

func newChatRenderer(peer string) *chatRenderer {
	return &chatRenderer{peer: peer, wake: make(chan struct{}, 1)}
}

func (r *chatRenderer) Reset(items []chatsync.Item) {
	r.push(chatResetMsg{peer: r.peer, items: items})
}

func (r *chatRenderer) Append(items []chatsync.Item) {
	r.push(chatAppendMsg{peer: r.peer, items: items})
}

func (r *chatRenderer) push(msg tea.Msg) {
	r.mu.Lock()
	r.pending = append(r.pending, msg)
	r.mu.Unlock()

	select {
	case r.wake <- struct{}{}:
	default:
	}
}

// forward hands queued messages to send until ctx is done.
func (r *chatRenderer) forward(ctx context.Context, send func(tea.Msg)) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-r.wake:
		}

		r.mu.Lock()
		batch := r.pending
		r.pending = nil
		r.mu.Unlock()

		for _, msg := range batch {
			send(msg)
		}
	}
}
