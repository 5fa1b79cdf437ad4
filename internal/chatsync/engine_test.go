package chatsync

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/glasschat/glasschat-client/internal/api"
	"github.com/glasschat/glasschat-client/internal/content"
	"github.com/glasschat/glasschat-client/internal/storage"
)

type fakeBackend struct {
	mu       sync.Mutex
	history  []api.Message
	fetchErr error
	sendErr  error
	fetches  int
	sent     []string
	marked   int
	// block, when set, is waited on inside ChatHistory.
	block chan struct{}
}

func (f *fakeBackend) ChatHistory(ctx context.Context, user, friend string) ([]api.Message, error) {
	f.mu.Lock()
	f.fetches++
	block := f.block
	f.mu.Unlock()
	if block != nil {
		select {
		case <-block:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fetchErr != nil {
		return nil, f.fetchErr
	}
	return append([]api.Message(nil), f.history...), nil
}

func (f *fakeBackend) SendMessage(ctx context.Context, user, recipient, body string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.sendErr != nil {
		return f.sendErr
	}
	f.sent = append(f.sent, body)
	return nil
}

func (f *fakeBackend) MarkRead(ctx context.Context, user, friend string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.marked++
	return nil
}

func (f *fakeBackend) add(sender, body string, ts time.Time) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.history = append(f.history, api.Message{Sender: sender, Content: body, Timestamp: api.Timestamp{Time: ts}})
}

type recorder struct {
	resets  int
	rows    []Item
	appends [][]Item
}

func (r *recorder) Reset(items []Item) {
	r.resets++
	r.rows = append([]Item(nil), items...)
}

func (r *recorder) Append(items []Item) {
	r.appends = append(r.appends, items)
	r.rows = append(r.rows, items...)
}

var t0 = time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)

func newEngine(b *fakeBackend, r *recorder) *Engine {
	return New(Config{Client: b, Me: "alice", Peer: "bob", Renderer: r, Shared: storage.NewMemory()})
}

func TestLoadHistoryRendersEverything(t *testing.T) {
	b := &fakeBackend{}
	b.add("alice", "hi", t0)
	b.add("bob", "hey", t0.Add(time.Minute))
	b.add("bob", "Pic_9", t0.Add(10*time.Minute))
	r := &recorder{}
	e := newEngine(b, r)

	if err := e.LoadHistory(context.Background()); err != nil {
		t.Fatalf("load: %v", err)
	}
	if e.State() != StateSynced || e.RenderedCount() != 3 {
		t.Fatalf("unexpected state %v count %d", e.State(), e.RenderedCount())
	}
	if r.resets != 1 || len(r.rows) != 3 {
		t.Fatalf("expected one reset with 3 rows, got %d/%d", r.resets, len(r.rows))
	}
	if !r.rows[0].Divider || r.rows[1].Divider || !r.rows[2].Divider {
		t.Fatalf("unexpected dividers %v %v %v", r.rows[0].Divider, r.rows[1].Divider, r.rows[2].Divider)
	}
	if !r.rows[0].Own || r.rows[1].Own {
		t.Fatalf("ownership wrong")
	}
	if r.rows[2].Content.Kind != content.KindImage || r.rows[2].Content.ImageID != "9" {
		t.Fatalf("expected image content, got %+v", r.rows[2].Content)
	}
}

func TestPollingIsIdempotent(t *testing.T) {
	b := &fakeBackend{}
	b.add("bob", "one", t0)
	r := &recorder{}
	e := newEngine(b, r)
	if err := e.LoadHistory(context.Background()); err != nil {
		t.Fatalf("load: %v", err)
	}

	for i := 0; i < 3; i++ {
		d, err := e.CheckForNewMessages(context.Background())
		if err != nil {
			t.Fatalf("poll: %v", err)
		}
		if !d.Empty() {
			t.Fatalf("poll %d rendered %d items on unchanged history", i, len(d.Items))
		}
	}
	if len(r.rows) != 1 || len(r.appends) != 0 {
		t.Fatalf("expected nothing appended, got %d rows", len(r.rows))
	}
}

func TestPollingAppendsOnlyTheTail(t *testing.T) {
	b := &fakeBackend{}
	b.add("alice", "a", t0)
	b.add("bob", "b", t0.Add(time.Minute))
	b.add("alice", "c", t0.Add(2*time.Minute))
	r := &recorder{}
	e := newEngine(b, r)
	if err := e.LoadHistory(context.Background()); err != nil {
		t.Fatalf("load: %v", err)
	}

	b.add("bob", "d", t0.Add(3*time.Minute))
	d, err := e.CheckForNewMessages(context.Background())
	if err != nil {
		t.Fatalf("poll: %v", err)
	}
	if len(d.Items) != 1 || d.Items[0].Index != 3 || d.Items[0].Message.Content != "d" {
		t.Fatalf("unexpected delta %+v", d.Items)
	}
	if d.Incoming != 1 || !d.LastFromPeer() {
		t.Fatalf("expected one incoming message from peer")
	}
	if d.Items[0].Divider {
		t.Fatalf("one minute gap must not get a divider")
	}
	if e.RenderedCount() != 4 || r.resets != 1 || len(r.rows) != 4 {
		t.Fatalf("expected 4 rows without re-render, got count=%d resets=%d rows=%d", e.RenderedCount(), r.resets, len(r.rows))
	}
	for i, row := range r.rows {
		if row.Index != i {
			t.Fatalf("row %d has index %d", i, row.Index)
		}
	}
}

func TestShorterHistoryRendersNothing(t *testing.T) {
	b := &fakeBackend{}
	b.add("bob", "a", t0)
	b.add("bob", "b", t0)
	r := &recorder{}
	e := newEngine(b, r)
	if err := e.LoadHistory(context.Background()); err != nil {
		t.Fatalf("load: %v", err)
	}

	b.mu.Lock()
	b.history = b.history[:1]
	b.mu.Unlock()
	d, err := e.CheckForNewMessages(context.Background())
	if err != nil || !d.Empty() {
		t.Fatalf("expected empty delta, got %+v %v", d, err)
	}
	if e.RenderedCount() != 2 {
		t.Fatalf("rendered count moved to %d", e.RenderedCount())
	}
}

func TestDividerThreshold(t *testing.T) {
	tests := []struct {
		name string
		gap  time.Duration
		want bool
	}{
		{"just under", 299999 * time.Millisecond, false},
		{"exactly five minutes", 300000 * time.Millisecond, false},
		{"just over", 300001 * time.Millisecond, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := NeedsDivider(1, t0, t0.Add(tt.gap)); got != tt.want {
				t.Fatalf("gap %v: got %v want %v", tt.gap, got, tt.want)
			}
		})
	}
	if !NeedsDivider(0, time.Time{}, t0) {
		t.Fatalf("first message always gets a divider")
	}
}

func TestDividerAnchoredOnPreviousRenderedMessage(t *testing.T) {
	b := &fakeBackend{}
	b.add("bob", "a", t0)
	r := &recorder{}
	e := newEngine(b, r)
	if err := e.LoadHistory(context.Background()); err != nil {
		t.Fatalf("load: %v", err)
	}
	b.add("bob", "b", t0.Add(6*time.Minute))
	b.add("bob", "c", t0.Add(7*time.Minute))

	d, err := e.CheckForNewMessages(context.Background())
	if err != nil {
		t.Fatalf("poll: %v", err)
	}
	if len(d.Items) != 2 || !d.Items[0].Divider || d.Items[1].Divider {
		t.Fatalf("unexpected dividers in %+v", d.Items)
	}
}

func TestFailedPollRendersNothingAndRecovers(t *testing.T) {
	b := &fakeBackend{}
	b.add("bob", "a", t0)
	r := &recorder{}
	e := newEngine(b, r)
	if err := e.LoadHistory(context.Background()); err != nil {
		t.Fatalf("load: %v", err)
	}

	b.add("bob", "b", t0)
	b.fetchErr = &api.Error{Op: "chat history", Kind: api.ErrTransient}
	d, err := e.CheckForNewMessages(context.Background())
	if !errors.Is(err, api.ErrTransient) || !d.Empty() {
		t.Fatalf("expected transient error and empty delta, got %v %+v", err, d)
	}
	if e.State() != StateSynced {
		t.Fatalf("expected synced after failure, got %v", e.State())
	}

	b.fetchErr = nil
	d, err = e.CheckForNewMessages(context.Background())
	if err != nil || len(d.Items) != 1 {
		t.Fatalf("expected recovery, got %v %+v", err, d)
	}
}

func TestPollRetriesFailedInitialLoad(t *testing.T) {
	b := &fakeBackend{fetchErr: errors.New("down")}
	b.add("bob", "a", t0)
	r := &recorder{}
	e := newEngine(b, r)
	if err := e.LoadHistory(context.Background()); err == nil {
		t.Fatalf("expected load failure")
	}
	if e.State() != StateLoading {
		t.Fatalf("expected loading, got %v", e.State())
	}

	b.fetchErr = nil
	if _, err := e.CheckForNewMessages(context.Background()); err != nil {
		t.Fatalf("poll: %v", err)
	}
	if r.resets != 1 || e.RenderedCount() != 1 {
		t.Fatalf("expected the poll to perform the initial load")
	}
}

func TestSendWhileBackendDown(t *testing.T) {
	b := &fakeBackend{}
	b.add("bob", "a", t0)
	r := &recorder{}
	e := newEngine(b, r)
	if err := e.LoadHistory(context.Background()); err != nil {
		t.Fatalf("load: %v", err)
	}

	b.sendErr = &api.Error{Op: "send message", Kind: api.ErrTransient}
	err := e.Send(context.Background(), "hello")
	if !errors.Is(err, api.ErrTransient) {
		t.Fatalf("expected transient error, got %v", err)
	}
	if e.RenderedCount() != 1 || len(r.rows) != 1 || e.Sending() {
		t.Fatalf("failed send must not change rendering")
	}
}

func TestSendAppearsOnNextPoll(t *testing.T) {
	b := &fakeBackend{}
	r := &recorder{}
	e := newEngine(b, r)
	if err := e.LoadHistory(context.Background()); err != nil {
		t.Fatalf("load: %v", err)
	}

	if err := e.Send(context.Background(), "  hello "); err != nil {
		t.Fatalf("send: %v", err)
	}
	if len(b.sent) != 1 || b.sent[0] != "hello" {
		t.Fatalf("unexpected sent %v", b.sent)
	}
	if len(r.rows) != 0 {
		t.Fatalf("send must not render before the poll")
	}

	b.add("alice", "hello", t0)
	d, err := e.CheckForNewMessages(context.Background())
	if err != nil || len(d.Items) != 1 || !d.Items[0].Own || d.LastFromPeer() {
		t.Fatalf("unexpected delta %+v %v", d, err)
	}
	if d.Incoming != 0 {
		t.Fatalf("own message counted as incoming")
	}
}

func TestSendRejectsEmptyText(t *testing.T) {
	b := &fakeBackend{}
	e := newEngine(b, &recorder{})
	if err := e.Send(context.Background(), "   "); !errors.Is(err, api.ErrUserInput) {
		t.Fatalf("expected input error, got %v", err)
	}
	if len(b.sent) != 0 {
		t.Fatalf("empty message reached the backend")
	}
}

func TestMarkReadRaisesSharedSignal(t *testing.T) {
	b := &fakeBackend{}
	shared := storage.NewMemory()
	e := New(Config{Client: b, Me: "alice", Peer: "bob", Renderer: &recorder{}, Shared: shared})
	if err := e.MarkRead(context.Background()); err != nil {
		t.Fatalf("mark read: %v", err)
	}
	if b.marked != 1 {
		t.Fatalf("expected one read receipt")
	}
	if v, ok := shared.Get(storage.KeyUnreadChanged); !ok || v == "" {
		t.Fatalf("expected unread-changed signal")
	}
}

func TestCloseCancelsInFlightFetch(t *testing.T) {
	b := &fakeBackend{block: make(chan struct{})}
	b.add("bob", "a", t0)
	r := &recorder{}
	e := newEngine(b, r)

	done := make(chan error, 1)
	go func() { done <- e.LoadHistory(context.Background()) }()

	deadline := time.After(2 * time.Second)
	for {
		b.mu.Lock()
		n := b.fetches
		b.mu.Unlock()
		if n > 0 {
			break
		}
		select {
		case <-deadline:
			t.Fatalf("fetch never started")
		case <-time.After(5 * time.Millisecond):
		}
	}

	e.Close()
	select {
	case err := <-done:
		if err == nil {
			t.Fatalf("expected cancelled load")
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("close did not cancel the fetch")
	}
	if r.resets != 0 {
		t.Fatalf("closed engine rendered a stale response")
	}
	if e.State() != StateClosed {
		t.Fatalf("expected closed, got %v", e.State())
	}
}
