package notify_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/ariefcatur/go-marketplace-orders/internal/ledger/ledgertest"
	"github.com/ariefcatur/go-marketplace-orders/internal/notify"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newFanout() (*notify.Fanout, *ledgertest.Store) {
	store := ledgertest.New()
	return &notify.Fanout{Store: store, Broker: notify.NewLocalBroker()}, store
}

func TestNotify_PersistsBeforeReturning(t *testing.T) {
	f, store := newFanout()

	require.NoError(t, f.Notify(context.Background(), "u1", "hello"))

	got := store.Notifications()
	require.Len(t, got, 1)
	assert.Equal(t, "u1", got[0].UserID)
	assert.Equal(t, "hello", got[0].Message)
	assert.False(t, got[0].Read)
}

func TestNotify_EmptyMessage(t *testing.T) {
	f, store := newFanout()

	err := f.Notify(context.Background(), "u1", "   ")
	require.ErrorIs(t, err, notify.ErrEmptyMessage)
	assert.Empty(t, store.Notifications())
}

type failingBroker struct{ notify.Broker }

func (failingBroker) Publish(context.Context, string, []byte) error {
	return errors.New("redis down")
}

func TestNotify_PublishFailureDoesNotFailCall(t *testing.T) {
	store := ledgertest.New()
	f := &notify.Fanout{Store: store, Broker: failingBroker{}}

	require.NoError(t, f.Notify(context.Background(), "u1", "hello"))
	f.Wait()
	assert.Len(t, store.Notifications(), 1)
}

type collector struct {
	mu  sync.Mutex
	got []notify.Notification
}

func (c *collector) send(n notify.Notification) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.got = append(c.got, n)
	return nil
}

func (c *collector) messages() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]string, 0, len(c.got))
	for _, n := range c.got {
		out = append(out, n.Message)
	}
	return out
}

func startStream(t *testing.T, f *notify.Fanout, userID string) (*collector, context.CancelFunc) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	c := &collector{}
	done := make(chan error, 1)
	go func() { done <- f.Stream(ctx, userID, c.send) }()
	t.Cleanup(func() {
		cancel()
		select {
		case err := <-done:
			assert.NoError(t, err)
		case <-time.After(2 * time.Second):
			t.Error("stream did not stop")
		}
	})
	return c, cancel
}

func TestStream_BacklogOldestFirstThenLive(t *testing.T) {
	f, _ := newFanout()
	ctx := context.Background()

	require.NoError(t, f.Notify(ctx, "u1", "first"))
	time.Sleep(5 * time.Millisecond)
	require.NoError(t, f.Notify(ctx, "u1", "second"))
	require.NoError(t, f.Notify(ctx, "u2", "not yours"))
	f.Wait()

	c, _ := startStream(t, f, "u1")
	require.Eventually(t, func() bool { return len(c.messages()) == 2 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, []string{"first", "second"}, c.messages())

	require.NoError(t, f.Notify(ctx, "u1", "live"))
	f.Wait()
	require.Eventually(t, func() bool { return len(c.messages()) == 3 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, "live", c.messages()[2])
}

func TestStream_ReadNotificationsAreNotReplayed(t *testing.T) {
	f, store := newFanout()
	ctx := context.Background()

	require.NoError(t, f.Notify(ctx, "u1", "old"))
	require.NoError(t, f.Notify(ctx, "u1", "fresh"))
	f.Wait()
	require.NoError(t, f.MarkRead(ctx, "u1", store.Notifications()[0].ID))

	c, _ := startStream(t, f, "u1")
	require.Eventually(t, func() bool { return len(c.messages()) == 1 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, []string{"fresh"}, c.messages())
}

func TestStream_EveryConnectionReceives(t *testing.T) {
	f, _ := newFanout()

	a, _ := startStream(t, f, "u1")
	b, _ := startStream(t, f, "u1")
	// both subscriptions are registered once their (empty) backlog is done
	time.Sleep(20 * time.Millisecond)

	require.NoError(t, f.Notify(context.Background(), "u1", "ping"))
	f.Wait()

	for _, c := range []*collector{a, b} {
		require.Eventually(t, func() bool { return len(c.messages()) == 1 }, time.Second, 5*time.Millisecond)
		assert.Equal(t, "ping", c.messages()[0])
	}
}

func TestMarkRead_OtherUsersNotification(t *testing.T) {
	f, store := newFanout()
	ctx := context.Background()

	require.NoError(t, f.Notify(ctx, "u1", "mine"))
	id := store.Notifications()[0].ID

	require.Error(t, f.MarkRead(ctx, "u2", id))

	n, err := f.MarkAllRead(ctx, "u1")
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)

	unread, err := f.Unread(ctx, "u1")
	require.NoError(t, err)
	assert.Empty(t, unread)

	all, err := f.List(ctx, "u1")
	require.NoError(t, err)
	assert.Len(t, all, 1)
}
