package stream

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func receive(t *testing.T, sub *Subscription) Change {
	t.Helper()
	select {
	case c, ok := <-sub.Changes():
		require.True(t, ok, "subscription closed")
		return c
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for change")
	}
	return Change{}
}

func assertNoChange(t *testing.T, sub *Subscription) {
	t.Helper()
	select {
	case c, ok := <-sub.Changes():
		if ok {
			t.Fatalf("unexpected change at revision %d", c.Revision)
		}
	case <-time.After(50 * time.Millisecond):
	}
}

func TestHubDeliversInRevisionOrder(t *testing.T) {
	hub := NewHub(nil)
	ctx := context.Background()
	sub, err := hub.Subscribe("acc", 0)
	require.NoError(t, err)
	defer sub.Close()

	hub.Publish(ctx, Change{AccountID: "acc", Revision: 2})
	hub.Publish(ctx, Change{AccountID: "acc", Revision: 3})
	assertNoChange(t, sub)

	hub.Publish(ctx, Change{AccountID: "acc", Revision: 1})

	for want := int64(1); want <= 3; want++ {
		assert.Equal(t, want, receive(t, sub).Revision)
	}
}

func TestHubDropsDuplicates(t *testing.T) {
	hub := NewHub(nil)
	ctx := context.Background()
	sub, err := hub.Subscribe("acc", 4)
	require.NoError(t, err)
	defer sub.Close()

	hub.Publish(ctx, Change{AccountID: "acc", Revision: 5})
	hub.Publish(ctx, Change{AccountID: "acc", Revision: 5})
	hub.Publish(ctx, Change{AccountID: "acc", Revision: 3})

	assert.Equal(t, int64(5), receive(t, sub).Revision)
	assertNoChange(t, sub)
}

func TestHubFlushesAfterGapTimeout(t *testing.T) {
	hub := NewHub(nil)
	hub.gapTimeout = 20 * time.Millisecond
	sub, err := hub.Subscribe("acc", 0)
	require.NoError(t, err)
	defer sub.Close()

	hub.Publish(context.Background(), Change{AccountID: "acc", Revision: 3})
	hub.Publish(context.Background(), Change{AccountID: "acc", Revision: 2})

	assert.Equal(t, int64(2), receive(t, sub).Revision)
	assert.Equal(t, int64(3), receive(t, sub).Revision)
}

func TestHubIsolatesAccounts(t *testing.T) {
	hub := NewHub(nil)
	a, err := hub.Subscribe("a", 0)
	require.NoError(t, err)
	defer a.Close()
	b, err := hub.Subscribe("b", 0)
	require.NoError(t, err)
	defer b.Close()

	hub.Publish(context.Background(), Change{AccountID: "b", Revision: 1})

	assert.Equal(t, "b", receive(t, b).AccountID)
	assertNoChange(t, a)
}

func TestSubscriptionCloseReleasesStream(t *testing.T) {
	hub := NewHub(nil)
	first, err := hub.Subscribe("acc", 0)
	require.NoError(t, err)
	second, err := hub.Subscribe("acc", 0)
	require.NoError(t, err)
	assert.Equal(t, 2, hub.Subscribers("acc"))

	first.Close()
	first.Close()
	assert.Equal(t, 1, hub.Subscribers("acc"))
	_, open := <-first.Changes()
	assert.False(t, open)

	second.Close()
	assert.Equal(t, 0, hub.Subscribers("acc"))
	_, ok := hub.streams.Load("acc")
	assert.False(t, ok, "stream must be removed with its last subscriber")
}

func TestLateSubscriberSkipsOlderRevisions(t *testing.T) {
	hub := NewHub(nil)
	ctx := context.Background()
	early, err := hub.Subscribe("acc", 0)
	require.NoError(t, err)
	defer early.Close()
	late, err := hub.Subscribe("acc", 1)
	require.NoError(t, err)
	defer late.Close()

	hub.Publish(ctx, Change{AccountID: "acc", Revision: 1})
	hub.Publish(ctx, Change{AccountID: "acc", Revision: 2})

	assert.Equal(t, int64(1), receive(t, early).Revision)
	assert.Equal(t, int64(2), receive(t, early).Revision)
	assert.Equal(t, int64(2), receive(t, late).Revision)
}

func TestDeletedChangeEndsSubscriptions(t *testing.T) {
	hub := NewHub(nil)
	sub, err := hub.Subscribe("acc", 0)
	require.NoError(t, err)

	hub.Publish(context.Background(), Change{AccountID: "acc", Revision: 1, Deleted: true})

	assert.True(t, receive(t, sub).Deleted)
	_, open := <-sub.Changes()
	assert.False(t, open)
	assert.Equal(t, 0, hub.Subscribers("acc"))
	sub.Close()
}

func TestSlowSubscriberIsCutOff(t *testing.T) {
	hub := NewHub(nil)
	hub.subscriberBuffer = 1
	sub, err := hub.Subscribe("acc", 0)
	require.NoError(t, err)
	defer sub.Close()

	hub.Publish(context.Background(), Change{AccountID: "acc", Revision: 1})
	hub.Publish(context.Background(), Change{AccountID: "acc", Revision: 2})

	assert.Equal(t, int64(1), receive(t, sub).Revision)
	_, open := <-sub.Changes()
	assert.False(t, open)
}

func TestSubscribeRejectsEmptyAccount(t *testing.T) {
	_, err := NewHub(nil).Subscribe("  ", 0)
	assert.ErrorIs(t, err, ErrInvalidAccount)
}

func TestDecodeChange(t *testing.T) {
	change, err := DecodeChange(Channel("acc"), `{"account_id":"acc","revision":7}`)
	require.NoError(t, err)
	assert.Equal(t, int64(7), change.Revision)

	_, err = DecodeChange(Channel("other"), `{"account_id":"acc","revision":7}`)
	assert.ErrorIs(t, err, ErrInvalidAccount)

	_, err = DecodeChange(Channel("acc"), `not json`)
	assert.Error(t, err)
}
