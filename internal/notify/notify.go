// Package notify raises the "new message" indicator: an unseen counter in
// the terminal title and an optional desktop notification while the
// terminal does not have focus.
package notify

import (
	"fmt"
	"log/slog"
	"sync"

	"github.com/gen2brain/beeep"
)

// AppName is appended to every window title.
const AppName = "glasschat"

// Notifier shows a desktop notification.
type Notifier func(title, body string) error

// Desktop returns a Notifier backed by the platform notification service.
func Desktop() Notifier {
	beeep.AppName = AppName
	return func(title, body string) error {
		return beeep.Notify(title, body, "")
	}
}

// Indicator tracks focus and unseen messages for the open conversation.
type Indicator struct {
	notify Notifier
	logger *slog.Logger

	mu      sync.Mutex
	focused bool
	allowed bool
	unseen  int
	peer    string
}

// NewIndicator returns an indicator that starts focused. Desktop
// notifications are sent only when allowed is true and notify is non-nil.
func NewIndicator(allowed bool, notify Notifier, logger *slog.Logger) *Indicator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Indicator{notify: notify, allowed: allowed, focused: true, logger: logger}
}

// SetAllowed changes the notification permission.
func (i *Indicator) SetAllowed(allowed bool) {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.allowed = allowed
}

// SetPeer names the open conversation; empty means none. Switching
// conversation clears the counter.
func (i *Indicator) SetPeer(peer string) string {
	i.mu.Lock()
	defer i.mu.Unlock()
	if peer != i.peer {
		i.unseen = 0
	}
	i.peer = peer
	return i.titleLocked()
}

// Focus records that the terminal gained focus, clears the counter and
// returns the title to show.
func (i *Indicator) Focus() string {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.focused = true
	i.unseen = 0
	return i.titleLocked()
}

// Blur records that the terminal lost focus.
func (i *Indicator) Blur() {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.focused = false
}

// Focused reports whether the terminal has focus.
func (i *Indicator) Focused() bool {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.focused
}

// Unseen returns the number of messages received while blurred.
func (i *Indicator) Unseen() int {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.unseen
}

// Title returns the current window title.
func (i *Indicator) Title() string {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.titleLocked()
}

// Incoming records n new messages from the peer, the last of which is
// summarised by preview. It returns the title to show and whether it
// changed. While focused nothing happens.
func (i *Indicator) Incoming(n int, preview string) (string, bool) {
	if n <= 0 {
		return i.Title(), false
	}

	i.mu.Lock()
	if i.focused {
		title := i.titleLocked()
		i.mu.Unlock()
		return title, false
	}
	i.unseen += n
	title := i.titleLocked()
	peer := i.peer
	send := i.allowed && i.notify != nil
	i.mu.Unlock()

	if send {
		if err := i.notify(peer, preview); err != nil {
			i.logger.Debug("Desktop notification failed", "err", err)
		}
	}
	return title, true
}

func (i *Indicator) titleLocked() string {
	base := AppName
	if i.peer != "" {
		base = i.peer + " - " + AppName
	}
	if i.unseen > 0 {
		return fmt.Sprintf("(%d) %s", i.unseen, base)
	}
	return base
}
