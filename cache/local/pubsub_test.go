package local

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPubSubBasic(t *testing.T) {
	ps := NewPubSub(8)
	ctx := context.Background()

	ch, cancel, err := ps.Subscribe(ctx, "battle:1:outcomes")
	require.NoError(t, err)
	defer cancel()

	require.NoError(t, ps.Publish(ctx, "battle:1:outcomes", "hit"))
	require.NoError(t, ps.Publish(ctx, "battle:2:outcomes", "ignored"))

	select {
	case msg := <-ch:
		assert.Equal(t, "battle:1:outcomes", msg.Channel)
		assert.Equal(t, "hit", msg.Payload)
	case <-time.After(time.Second):
		t.Fatal("timeout")
	}
	select {
	case msg := <-ch:
		t.Fatalf("unexpected message %+v", msg)
	default:
	}
}

func TestPubSubCancelClosesChannel(t *testing.T) {
	ps := NewPubSub(8)
	ctx := context.Background()

	ch, cancel, err := ps.Subscribe(ctx, "a", "b")
	require.NoError(t, err)
	cancel()
	cancel()

	_, open := <-ch
	assert.False(t, open)
	assert.NoError(t, ps.Publish(ctx, "a", "after cancel"))
}

func TestPubSubDropsWhenFull(t *testing.T) {
	ps := NewPubSub(1)
	ctx := context.Background()

	_, cancel, err := ps.Subscribe(ctx, "c")
	require.NoError(t, err)
	defer cancel()

	_ = ps.Publish(ctx, "c", "1")
	_ = ps.Publish(ctx, "c", "2")
	assert.Equal(t, int64(1), ps.Dropped())
}
