package realtime

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"jointvibe/internal/backend"
)

func TestMemoryHub_PublishSubscribe(t *testing.T) {
	ctx := context.Background()
	hub := NewMemoryHub(nil)

	orders, cancel, err := hub.Subscribe(ctx, "orders")
	require.NoError(t, err)
	defer cancel()

	wallets, cancelWallets, err := hub.Subscribe(ctx, "wallets")
	require.NoError(t, err)
	defer cancelWallets()

	require.NoError(t, hub.Publish(ctx, backend.Change{
		Table:  "orders",
		Type:   backend.ChangeUpdate,
		Record: backend.Record{"id": "o1", "status": "preparing"},
	}))

	select {
	case c := <-orders:
		assert.Equal(t, "o1", c.Record.String("id"))
	case <-time.After(time.Second):
		t.Fatal("expected an order change")
	}

	select {
	case c := <-wallets:
		t.Fatalf("wallet subscriber got %v", c)
	default:
	}
}

func TestMemoryHub_CancelClosesChannel(t *testing.T) {
	hub := NewMemoryHub(nil)

	ch, cancel, err := hub.Subscribe(context.Background(), "orders")
	require.NoError(t, err)
	cancel()
	cancel()

	_, ok := <-ch
	assert.False(t, ok)

	require.NoError(t, hub.Publish(context.Background(), backend.Change{Table: "orders"}))
}

func TestMemoryHub_ContextEndsSubscription(t *testing.T) {
	ctx, cancelCtx := context.WithCancel(context.Background())
	hub := NewMemoryHub(nil)

	ch, _, err := hub.Subscribe(ctx, "orders")
	require.NoError(t, err)
	cancelCtx()

	select {
	case _, ok := <-ch:
		assert.False(t, ok)
	case <-time.After(time.Second):
		t.Fatal("subscription did not end with its context")
	}
}

func TestMemoryHub_DropsForSlowSubscriber(t *testing.T) {
	ctx := context.Background()
	hub := NewMemoryHub(nil)

	ch, cancel, err := hub.Subscribe(ctx, "orders")
	require.NoError(t, err)
	defer cancel()

	for i := 0; i < subscriberBuffer+10; i++ {
		require.NoError(t, hub.Publish(ctx, backend.Change{Table: "orders"}))
	}
	assert.Len(t, ch, subscriberBuffer)
}
