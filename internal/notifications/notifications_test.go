package notifications

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"credledger/internal/models"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNotifier_NilClientIsNoop(t *testing.T) {
	n := NewNotifier(nil, "")
	assert.NoError(t, n.Publish(context.Background(), models.LedgerEvent{Type: models.EventPostCreated}))
	assert.NoError(t, n.StartSubscriber(context.Background(), func(models.LedgerEvent) {}))
}

func TestEventChannel(t *testing.T) {
	t.Parallel()
	assert.Equal(t, "ledger.events:post.voted", EventChannel(DefaultChannel, models.EventPostVoted))
}

func TestNotifier_PublishSubscribe(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer func() { _ = rdb.Close() }()

	n := NewNotifier(rdb, "test.events")
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var mu sync.Mutex
	var got []models.LedgerEvent
	require.NoError(t, n.StartSubscriber(ctx, func(evt models.LedgerEvent) {
		mu.Lock()
		defer mu.Unlock()
		got = append(got, evt)
	}))

	require.NoError(t, n.Publish(ctx, models.LedgerEvent{ID: "e1", Type: models.EventPostCreated, Seq: 1, PostID: 1, Account: "alice"}))
	require.NoError(t, n.Publish(ctx, models.LedgerEvent{ID: "e2", Type: models.EventPostVoted, Seq: 2, PostID: 1, Score: 3}))
	// Garbage on a matching channel is dropped, not fatal.
	require.NoError(t, rdb.Publish(ctx, "test.events:junk", "{not json").Err())

	assert.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(got) == 2
	}, time.Second, 10*time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, "e1", got[0].ID)
	assert.Equal(t, int64(3), got[1].Score)
}

func TestNotifier_SubscriberPanicDoesNotStopDelivery(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer func() { _ = rdb.Close() }()

	n := NewNotifier(rdb, "")
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var mu sync.Mutex
	seen := 0
	require.NoError(t, n.StartSubscriber(ctx, func(evt models.LedgerEvent) {
		mu.Lock()
		seen++
		mu.Unlock()
		if evt.Seq == 1 {
			panic("boom")
		}
	}))

	require.NoError(t, n.Publish(ctx, models.LedgerEvent{Type: models.EventPostCreated, Seq: 1}))
	require.NoError(t, n.Publish(ctx, models.LedgerEvent{Type: models.EventPostCreated, Seq: 2}))

	assert.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return seen == 2
	}, time.Second, 10*time.Millisecond)
}

func TestNATSPublisher_NilConn(t *testing.T) {
	p := NewNATSPublisher(nil, "")
	assert.Equal(t, "ledger.events.post.created", p.Subject(models.EventPostCreated))
	assert.NoError(t, p.Publish(context.Background(), models.LedgerEvent{Type: models.EventPostCreated}))
	assert.NoError(t, p.Close())
}

type recordingPublisher struct {
	events []models.LedgerEvent
	err    error
}

func (r *recordingPublisher) Publish(_ context.Context, evt models.LedgerEvent) error {
	r.events = append(r.events, evt)
	return r.err
}

func TestFanout(t *testing.T) {
	ok := &recordingPublisher{}
	failing := &recordingPublisher{err: errors.New("bus down")}

	err := Fanout{failing, ok}.Publish(context.Background(), models.LedgerEvent{Type: models.EventPostVoted})
	assert.ErrorContains(t, err, "bus down")
	assert.Len(t, ok.events, 1, "a failing publisher does not starve the others")
	assert.NoError(t, Fanout{}.Publish(context.Background(), models.LedgerEvent{}))
}

// fakeConn satisfies Conn for hub tests.
type fakeConn struct {
	mu     sync.Mutex
	writes [][]byte
	closed bool
	reads  chan struct{}
}

func newFakeConn() *fakeConn { return &fakeConn{reads: make(chan struct{})} }

func (f *fakeConn) SetReadLimit(int64)                {}
func (f *fakeConn) SetReadDeadline(time.Time) error   { return nil }
func (f *fakeConn) SetWriteDeadline(time.Time) error  { return nil }
func (f *fakeConn) SetPongHandler(func(string) error) {}

func (f *fakeConn) ReadMessage() (int, []byte, error) {
	<-f.reads
	return 0, nil, errors.New("closed")
}

func (f *fakeConn) WriteMessage(_ int, data []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.writes = append(f.writes, append([]byte(nil), data...))
	return nil
}

func (f *fakeConn) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.closed {
		f.closed = true
		close(f.reads)
	}
	return nil
}

func TestHub_PublishRespectsFilters(t *testing.T) {
	h := NewHub()
	all, err := h.Register(newFakeConn(), "", nil)
	require.NoError(t, err)
	votesOnly, err := h.Register(newFakeConn(), "bob", func(eventType, _ string) bool {
		return eventType == models.EventPostVoted
	})
	require.NoError(t, err)
	assert.Equal(t, 2, h.ClientCount())

	require.NoError(t, h.Publish(context.Background(), models.LedgerEvent{Type: models.EventPostCreated, PostID: 1}))
	h.Deliver(models.LedgerEvent{Type: models.EventPostVoted, PostID: 1, Score: 2})

	require.Len(t, all.Send, 2)
	require.Len(t, votesOnly.Send, 1)

	var env Envelope
	require.NoError(t, json.Unmarshal(<-votesOnly.Send, &env))
	assert.Equal(t, models.EventPostVoted, env.Type)
	assert.Equal(t, int64(2), env.Payload.Score)
}

func TestHub_BackpressureDropsWithNotice(t *testing.T) {
	h := NewHub()
	c, err := h.Register(newFakeConn(), "", nil)
	require.NoError(t, err)

	for i := 0; i < sendBuffer+5; i++ {
		h.Deliver(models.LedgerEvent{Type: models.EventPostCreated, Seq: uint64(i)})
	}
	assert.Len(t, c.Send, sendBuffer)
}

func TestHub_AccountConnectionLimit(t *testing.T) {
	h := NewHub()
	for i := 0; i < maxConnsPerAccount; i++ {
		_, err := h.Register(newFakeConn(), "carol", nil)
		require.NoError(t, err)
	}
	_, err := h.Register(newFakeConn(), "carol", nil)
	assert.ErrorIs(t, err, ErrAccountConnLimit)

	_, err = h.Register(newFakeConn(), "", nil)
	assert.NoError(t, err, "anonymous viewers are not capped per account")
}

func TestHub_PumpsAndUnregister(t *testing.T) {
	h := NewHub()
	conn := newFakeConn()
	c, err := h.Register(conn, "dave", nil)
	require.NoError(t, err)

	go c.WritePump()
	done := make(chan struct{})
	go func() {
		c.ReadPump()
		close(done)
	}()

	h.Deliver(models.LedgerEvent{Type: models.EventAccountFollowed, Account: "dave", Target: "erin"})
	assert.Eventually(t, func() bool {
		conn.mu.Lock()
		defer conn.mu.Unlock()
		return len(conn.writes) >= 1
	}, time.Second, 10*time.Millisecond)

	_ = conn.Close()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("read pump did not exit")
	}
	assert.Equal(t, 0, h.ClientCount())

	// Sending to a detached client is swallowed.
	c.TrySend([]byte("late"))
}

func TestHub_Shutdown(t *testing.T) {
	h := NewHub()
	c, err := h.Register(newFakeConn(), "", nil)
	require.NoError(t, err)

	h.Shutdown()
	_, open := <-c.Send
	assert.False(t, open)
	_, err = h.Register(newFakeConn(), "", nil)
	assert.ErrorIs(t, err, ErrHubClosed)
	h.UnregisterClient(c)
}
