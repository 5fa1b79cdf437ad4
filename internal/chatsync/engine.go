// Package chatsync keeps a rendered conversation in step with the backend.
//
// The backend only offers the full ordered history of a conversation, so
// the engine uses the number of messages already rendered as its cursor:
// whatever lies past that count in a fresh fetch is new and is appended,
// never re-rendered. A history that shrinks or is rewritten in place is not
// detected; that needs a sequence number or message id from the backend.
package chatsync

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/glasschat/glasschat-client/internal/api"
	"github.com/glasschat/glasschat-client/internal/content"
	"github.com/glasschat/glasschat-client/internal/storage"
)

// DividerGap is the silence after which a time divider separates two
// messages.
const DividerGap = 5 * time.Minute

// State is the sync state of a conversation.
type State int

const (
	StateLoading State = iota
	StateSynced
	StatePolling
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateLoading:
		return "loading"
	case StateSynced:
		return "synced"
	case StatePolling:
		return "polling"
	case StateClosed:
		return "closed"
	}
	return "unknown"
}

// HistoryClient is the part of the backend the engine uses.
type HistoryClient interface {
	ChatHistory(ctx context.Context, user, friend string) ([]api.Message, error)
	SendMessage(ctx context.Context, user, recipient, content string) error
	MarkRead(ctx context.Context, user, friend string) error
}

// Item is one rendered message.
type Item struct {
	Index   int
	Message api.Message
	Content content.Content
	Own     bool
	// Divider asks for a time divider above the message.
	Divider bool
}

// Renderer receives render instructions. Calls arrive in order and never
// concurrently.
type Renderer interface {
	// Reset replaces everything rendered for the conversation.
	Reset(items []Item)
	// Append adds items after those already rendered.
	Append(items []Item)
}

// Delta is the outcome of a poll.
type Delta struct {
	Items []Item
	// Incoming counts appended messages sent by the peer.
	Incoming int
}

// Empty reports whether the poll rendered nothing.
func (d Delta) Empty() bool {
	return len(d.Items) == 0
}

// Last returns the last appended item.
func (d Delta) Last() (Item, bool) {
	if len(d.Items) == 0 {
		return Item{}, false
	}
	return d.Items[len(d.Items)-1], true
}

// LastFromPeer reports whether the newest appended message came from the
// other side of the conversation.
func (d Delta) LastFromPeer() bool {
	last, ok := d.Last()
	return ok && !last.Own
}

// Config wires an Engine.
type Config struct {
	Client   HistoryClient
	Me       string
	Peer     string
	Renderer Renderer
	// Shared receives the "unread changed" signal after a read receipt.
	Shared storage.Store
	Logger *slog.Logger
}

// Engine synchronises one open conversation.
type Engine struct {
	client   HistoryClient
	me, peer string
	renderer Renderer
	shared   storage.Store
	logger   *slog.Logger
	now      func() time.Time

	// fetchMu serialises history fetches so one response is applied at a
	// time, in request order.
	fetchMu sync.Mutex

	mu            sync.Mutex
	state         State
	loaded        bool
	sending       bool
	renderedCount int
	lastTimestamp time.Time

	ctx    context.Context
	cancel context.CancelFunc
}

func New(cfg Config) *Engine {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Engine{
		client:   cfg.Client,
		me:       cfg.Me,
		peer:     cfg.Peer,
		renderer: cfg.Renderer,
		shared:   cfg.Shared,
		logger:   logger.With("peer", cfg.Peer),
		now:      time.Now,
		state:    StateLoading,
		ctx:      ctx,
		cancel:   cancel,
	}
}

func (e *Engine) Me() string   { return e.me }
func (e *Engine) Peer() string { return e.peer }

// State returns the current sync state.
func (e *Engine) State() State {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state
}

// Sending reports whether a send is in flight.
func (e *Engine) Sending() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.sending
}

// RenderedCount returns how many messages have been rendered.
func (e *Engine) RenderedCount() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.renderedCount
}

// LastTimestamp returns the time of the newest rendered message.
func (e *Engine) LastTimestamp() time.Time {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.lastTimestamp
}

// LoadHistory fetches the whole conversation and replaces what is
// rendered.
func (e *Engine) LoadHistory(ctx context.Context) error {
	e.fetchMu.Lock()
	defer e.fetchMu.Unlock()
	return e.load(ctx)
}

func (e *Engine) load(ctx context.Context) error {
	if !e.setState(StateLoading) {
		return context.Canceled
	}

	history, err := e.fetch(ctx)
	if err != nil {
		e.logger.Warn("Loading chat history failed", "err", err)
		return err
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.state == StateClosed {
		return context.Canceled
	}

	items := e.buildItems(history, 0, time.Time{})
	e.renderer.Reset(items)
	e.renderedCount = len(history)
	if len(history) > 0 {
		e.lastTimestamp = history[len(history)-1].Timestamp.Time
	}
	e.loaded = true
	e.state = StateSynced
	e.logger.Debug("Chat history loaded", "count", e.renderedCount)
	return nil
}

// CheckForNewMessages fetches the history and appends whatever lies past
// the rendered count. A failed fetch renders nothing; the caller retries on
// its next tick. If the initial load never succeeded it is retried instead.
func (e *Engine) CheckForNewMessages(ctx context.Context) (Delta, error) {
	e.fetchMu.Lock()
	defer e.fetchMu.Unlock()

	e.mu.Lock()
	loaded := e.loaded
	e.mu.Unlock()
	if !loaded {
		if err := e.load(ctx); err != nil {
			return Delta{}, err
		}
		return Delta{}, nil
	}

	if !e.setState(StatePolling) {
		return Delta{}, context.Canceled
	}

	history, err := e.fetch(ctx)
	if err != nil {
		e.setState(StateSynced)
		e.logger.Debug("Checking for new messages failed", "err", err)
		return Delta{}, err
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.state == StateClosed {
		return Delta{}, context.Canceled
	}
	e.state = StateSynced

	if len(history) <= e.renderedCount {
		return Delta{}, nil
	}

	items := e.buildItems(history, e.renderedCount, e.lastTimestamp)
	e.renderer.Append(items)
	e.renderedCount = len(history)
	e.lastTimestamp = history[len(history)-1].Timestamp.Time

	d := Delta{Items: items}
	for _, it := range items {
		if !it.Own {
			d.Incoming++
		}
	}
	e.logger.Debug("New messages", "count", len(items), "incoming", d.Incoming)
	return d, nil
}

// Send posts text to the peer. Nothing is rendered optimistically: the
// message shows up on the next poll, which the caller should trigger on
// success. That costs up to one poll of latency but keeps the rendered
// count authoritative.
func (e *Engine) Send(ctx context.Context, text string) error {
	text = strings.TrimSpace(text)
	if text == "" {
		return api.InputError("send message", "message is empty")
	}
	return e.SendContent(ctx, text)
}

// SendContent posts an already encoded body (text or tagged attachment).
func (e *Engine) SendContent(ctx context.Context, body string) error {
	if body == "" {
		return api.InputError("send message", "message is empty")
	}

	e.mu.Lock()
	if e.state == StateClosed {
		e.mu.Unlock()
		return fmt.Errorf("send message: conversation closed")
	}
	e.sending = true
	e.mu.Unlock()

	defer func() {
		e.mu.Lock()
		e.sending = false
		e.mu.Unlock()
	}()

	ctx, cancel := e.scope(ctx)
	defer cancel()
	if err := e.client.SendMessage(ctx, e.me, e.peer, body); err != nil {
		e.logger.Warn("Sending message failed", "err", err)
		return err
	}
	return nil
}

// MarkRead sends a read receipt for the conversation and raises the shared
// unread-changed signal so other views refresh their badges.
func (e *Engine) MarkRead(ctx context.Context) error {
	if err := e.client.MarkRead(ctx, e.me, e.peer); err != nil {
		e.logger.Debug("Mark read failed", "err", err)
		return err
	}
	if e.shared != nil {
		_ = e.shared.Set(storage.KeyUnreadChanged, strconv.FormatInt(e.now().UnixNano(), 10))
	}
	return nil
}

// Close stops the engine. An in-flight fetch is cancelled and its result
// dropped.
func (e *Engine) Close() {
	e.mu.Lock()
	e.state = StateClosed
	e.mu.Unlock()
	e.cancel()
}

func (e *Engine) setState(s State) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.state == StateClosed {
		return false
	}
	e.state = s
	return true
}

// scope derives a context that is also cancelled when the engine closes.
func (e *Engine) scope(ctx context.Context) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(ctx)
	stop := context.AfterFunc(e.ctx, cancel)
	return ctx, func() {
		stop()
		cancel()
	}
}

func (e *Engine) fetch(ctx context.Context) ([]api.Message, error) {
	ctx, cancel := e.scope(ctx)
	defer cancel()
	return e.client.ChatHistory(ctx, e.me, e.peer)
}

// buildItems converts history[from:] into render items. prev is the time of
// the message rendered just before history[from].
func (e *Engine) buildItems(history []api.Message, from int, prev time.Time) []Item {
	items := make([]Item, 0, len(history)-from)
	for i := from; i < len(history); i++ {
		msg := history[i]
		items = append(items, Item{
			Index:   i,
			Message: msg,
			Content: content.Parse(msg.Content),
			Own:     msg.Sender == e.me,
			Divider: NeedsDivider(i, prev, msg.Timestamp.Time),
		})
		prev = msg.Timestamp.Time
	}
	return items
}

// NeedsDivider reports whether a time divider goes above the message at
// index with time ts, given the time of the message before it. The first
// message of a conversation always gets one.
func NeedsDivider(index int, prev, ts time.Time) bool {
	if index == 0 {
		return true
	}
	if prev.IsZero() || ts.IsZero() {
		return false
	}
	return ts.Sub(prev) > DividerGap
}
