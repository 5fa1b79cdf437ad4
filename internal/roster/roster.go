// Package roster loads the friend list with unread badges and applies
// friend list mutations.
package roster

import (
	"context"
	"log/slog"
	"strings"
	"sync"

	"github.com/glasschat/glasschat-client/internal/api"
)

// Backend is the part of the API the roster needs.
type Backend interface {
	Friends(ctx context.Context, user string) ([]string, error)
	UnreadCounts(ctx context.Context, user string) (map[string]int, error)
	AddFriend(ctx context.Context, user, name string) error
	RemoveFriend(ctx context.Context, user, name string) error
	ClearHistory(ctx context.Context, user, friend string) error
}

// Entry is one friend card.
type Entry struct {
	Handle string
	Unread int
}

// Roster holds the last loaded friend list of one user.
type Roster struct {
	backend Backend
	logger  *slog.Logger

	mu      sync.Mutex
	entries []Entry
}

func New(backend Backend, logger *slog.Logger) *Roster {
	if logger == nil {
		logger = slog.Default()
	}
	return &Roster{backend: backend, logger: logger}
}

// Entries returns the list from the last successful refresh.
func (r *Roster) Entries() []Entry {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Entry(nil), r.entries...)
}

// TotalUnread sums the unread badges.
func (r *Roster) TotalUnread() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, e := range r.entries {
		n += e.Unread
	}
	return n
}

// Refresh reloads the whole list in server order. The friend list and the
// unread counts are fetched independently; if only the counts fail every
// badge reads zero.
func (r *Roster) Refresh(ctx context.Context, me string) ([]Entry, error) {
	var (
		wg        sync.WaitGroup
		friends   []string
		counts    map[string]int
		friendErr error
		countErr  error
	)
	wg.Add(2)
	go func() {
		defer wg.Done()
		friends, friendErr = r.backend.Friends(ctx, me)
	}()
	go func() {
		defer wg.Done()
		counts, countErr = r.backend.UnreadCounts(ctx, me)
	}()
	wg.Wait()

	if friendErr != nil {
		r.logger.Warn("Loading friends failed", "err", friendErr)
		return nil, friendErr
	}
	if countErr != nil {
		r.logger.Warn("Loading unread counts failed", "err", countErr)
		counts = nil
	}

	entries := make([]Entry, 0, len(friends))
	for _, f := range friends {
		entries = append(entries, Entry{Handle: f, Unread: counts[f]})
	}

	r.mu.Lock()
	r.entries = entries
	r.mu.Unlock()
	return append([]Entry(nil), entries...), nil
}

// AddFriend adds name to me's roster.
func (r *Roster) AddFriend(ctx context.Context, me, name string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return api.InputError("add friend", "enter a username")
	}
	if name == me {
		return api.ConflictError("add friend", "you cannot add yourself")
	}
	for _, e := range r.Entries() {
		if e.Handle == name {
			return api.ConflictError("add friend", name+" is already your friend")
		}
	}
	if err := r.backend.AddFriend(ctx, me, name); err != nil {
		return err
	}
	r.logger.Info("Friend added", "friend", name)
	return nil
}

// RemoveFriend drops name from me's roster.
func (r *Roster) RemoveFriend(ctx context.Context, me, name string) error {
	if err := r.backend.RemoveFriend(ctx, me, name); err != nil {
		return err
	}

	r.mu.Lock()
	for i, e := range r.entries {
		if e.Handle == name {
			r.entries = append(r.entries[:i:i], r.entries[i+1:]...)
			break
		}
	}
	r.mu.Unlock()
	r.logger.Info("Friend removed", "friend", name)
	return nil
}

// ClearHistory deletes the conversation between me and friend.
func (r *Roster) ClearHistory(ctx context.Context, me, friend string) error {
	return r.backend.ClearHistory(ctx, me, friend)
}
