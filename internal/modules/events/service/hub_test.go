package events

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func receive(t *testing.T, ch <-chan Event) Event {
	t.Helper()
	select {
	case ev, ok := <-ch:
		require.True(t, ok, "channel closed")
		return ev
	case <-time.After(2 * time.Second):
		t.Fatal("no event received")
	}
	return Event{}
}

func testHub(t *testing.T, hub Hub) {
	ctx := context.Background()

	ch, cancel, err := hub.Subscribe(ctx, "dev-1")
	require.NoError(t, err)
	defer cancel()

	require.NoError(t, hub.Publish(ctx, "dev-2", Event{Type: TypeSessionChanged}))
	require.NoError(t, hub.Publish(ctx, "dev-1", Event{Type: TypeBoardReloaded, Category: "notice"}))

	ev := receive(t, ch)
	assert.Equal(t, TypeBoardReloaded, ev.Type)
	assert.Equal(t, "notice", ev.Category)
	assert.False(t, ev.At.IsZero())

	cancel()
	cancel()
}

func TestMemoryHub(t *testing.T) {
	testHub(t, NewMemoryHub())
}

func TestMemoryHubCancelClosesChannel(t *testing.T) {
	hub := NewMemoryHub()
	ch, cancel, err := hub.Subscribe(context.Background(), "dev")
	require.NoError(t, err)

	cancel()
	_, ok := <-ch
	assert.False(t, ok)
	assert.NoError(t, hub.Publish(context.Background(), "dev", Event{Type: TypeSubmitFailed}))
}

func TestRedisHub(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	testHub(t, NewRedisHub(rdb))
}
