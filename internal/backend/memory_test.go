package backend

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/govalues/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// chanBus is a minimal in-package Bus.
type chanBus struct {
	mu   sync.Mutex
	subs map[string][]chan Change
}

func newChanBus() *chanBus {
	return &chanBus{subs: make(map[string][]chan Change)}
}

func (b *chanBus) Publish(ctx context.Context, change Change) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, ch := range b.subs[change.Table] {
		ch <- change
	}
	return nil
}

func (b *chanBus) Subscribe(ctx context.Context, table string) (<-chan Change, func(), error) {
	ch := make(chan Change, 16)
	b.mu.Lock()
	b.subs[table] = append(b.subs[table], ch)
	b.mu.Unlock()
	return ch, func() {}, nil
}

func TestMemory_InsertQueryUpdate(t *testing.T) {
	ctx := context.Background()
	m := NewMemory(nil, nil)

	rec, err := m.Insert(ctx, "venues", Record{"name": "Green Room", "approved": false})
	require.NoError(t, err)
	id := rec.String("id")
	require.NotEmpty(t, id)

	rows, err := m.Query(ctx, "venues", Filter{"id": id})
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "Green Room", rows[0].String("name"))
	assert.False(t, rows[0].Bool("approved"))

	updated, err := m.Update(ctx, "venues", Filter{"id": id}, Record{"approved": true})
	require.NoError(t, err)
	require.Len(t, updated, 1)
	assert.True(t, updated[0].Bool("approved"))

	_, err = m.Update(ctx, "venues", Filter{"id": "missing"}, Record{"approved": true})
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = m.Insert(ctx, "venues", Record{"id": id, "name": "dup"})
	assert.ErrorIs(t, err, ErrConflict)
}

func TestMemory_CompareAndSetUpdate(t *testing.T) {
	ctx := context.Background()
	m := NewMemory(nil, nil)

	_, err := m.Insert(ctx, "orders", Record{"id": "o1", "status": "pending"})
	require.NoError(t, err)

	_, err = m.Update(ctx, "orders", Filter{"id": "o1", "status": "pending"}, Record{"status": "venue_confirmed"})
	require.NoError(t, err)

	// A second writer still expecting pending loses.
	_, err = m.Update(ctx, "orders", Filter{"id": "o1", "status": "pending"}, Record{"status": "cancelled"})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMemory_QueryOrderAndLimit(t *testing.T) {
	ctx := context.Background()
	m := NewMemory(nil, nil)
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	for i, name := range []string{"a", "b", "c"} {
		_, err := m.Insert(ctx, "orders", Record{"name": name, "venue_id": "v1", "created_at": base.Add(time.Duration(i) * time.Hour)})
		require.NoError(t, err)
	}

	rows, err := m.Query(ctx, "orders", Filter{"venue_id": "v1"}, OrderBy("created_at", true), Limit(2))
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "c", rows[0].String("name"))
	assert.Equal(t, "b", rows[1].String("name"))

	rows, err = m.Query(ctx, "orders", Filter{"name": []string{"a", "c"}})
	require.NoError(t, err)
	assert.Len(t, rows, 2)
}

func TestMemory_WithinTxRollsBack(t *testing.T) {
	ctx := context.Background()
	bus := newChanBus()
	m := NewMemory(bus, nil)

	var got []Change
	var mu sync.Mutex
	unsubscribe, err := m.Subscribe(ctx, "orders", nil, func(c Change) {
		mu.Lock()
		got = append(got, c)
		mu.Unlock()
	})
	require.NoError(t, err)
	defer unsubscribe()

	boom := errors.New("boom")
	err = m.WithinTx(ctx, func(tx Backend) error {
		if _, err := tx.Insert(ctx, "orders", Record{"id": "o1"}); err != nil {
			return err
		}
		return boom
	})
	assert.ErrorIs(t, err, boom)

	rows, err := m.Query(ctx, "orders", nil)
	require.NoError(t, err)
	assert.Empty(t, rows)

	// Nothing is published for a rolled back transaction.
	time.Sleep(20 * time.Millisecond)
	mu.Lock()
	assert.Empty(t, got)
	mu.Unlock()
}

func TestMemory_WithinTxPublishesAfterCommit(t *testing.T) {
	ctx := context.Background()
	bus := newChanBus()
	m := NewMemory(bus, nil)

	changes := make(chan Change, 4)
	unsubscribe, err := m.Subscribe(ctx, "orders", Filter{"venue_id": "v1"}, func(c Change) {
		changes <- c
	})
	require.NoError(t, err)
	defer unsubscribe()

	err = m.WithinTx(ctx, func(tx Backend) error {
		if _, err := tx.Insert(ctx, "orders", Record{"id": "o1", "venue_id": "v1"}); err != nil {
			return err
		}
		_, err := tx.Insert(ctx, "orders", Record{"id": "o2", "venue_id": "v2"})
		return err
	})
	require.NoError(t, err)

	select {
	case c := <-changes:
		assert.Equal(t, ChangeInsert, c.Type)
		assert.Equal(t, "o1", c.Record.String("id"))
	case <-time.After(time.Second):
		t.Fatal("expected a change event")
	}

	select {
	case c := <-changes:
		t.Fatalf("unexpected change for filtered record %v", c.Record)
	case <-time.After(20 * time.Millisecond):
	}
}

func TestMemory_InvokeFunction(t *testing.T) {
	ctx := context.Background()
	m := NewMemory(nil, nil)

	m.Registry().Register("credit", func(ctx context.Context, tx Backend, payload Record) (Record, error) {
		rows, err := tx.Query(ctx, "wallets", Filter{"id": payload.String("wallet_id")}, ForUpdate())
		if err != nil {
			return nil, err
		}
		if len(rows) == 0 {
			return nil, ErrNotFound
		}
		bal, err := rows[0].Decimal("usd_balance")
		if err != nil {
			return nil, err
		}
		amount, err := payload.Decimal("amount")
		if err != nil {
			return nil, err
		}
		bal, err = bal.Add(amount)
		if err != nil {
			return nil, err
		}
		updated, err := tx.Update(ctx, "wallets", Filter{"id": rows[0].String("id")}, Record{"usd_balance": bal})
		if err != nil {
			return nil, err
		}
		return updated[0], nil
	})

	_, err := m.Insert(ctx, "wallets", Record{"id": "w1", "usd_balance": decimal.MustParse("1.50")})
	require.NoError(t, err)

	out, err := m.InvokeFunction(ctx, "credit", Record{"wallet_id": "w1", "amount": "2.25"})
	require.NoError(t, err)
	assert.Equal(t, "3.75", out.String("usd_balance"))

	_, err = m.InvokeFunction(ctx, "credit", Record{"wallet_id": "nope", "amount": "1"})
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = m.InvokeFunction(ctx, "debit", nil)
	assert.ErrorIs(t, err, ErrUnknownFunction)
}

func TestRecord_Accessors(t *testing.T) {
	rec := Record{
		"amount":  "12.30",
		"when":    "2024-05-01T10:00:00Z",
		"count":   float64(3),
		"flag":    true,
		"nothing": nil,
	}

	d, err := rec.Decimal("amount")
	require.NoError(t, err)
	assert.Equal(t, "12.30", d.String())

	nd, err := rec.NullDecimal("nothing")
	require.NoError(t, err)
	assert.Nil(t, nd)

	assert.Equal(t, 2024, rec.Time("when").Year())
	assert.Equal(t, int64(3), rec.Int("count"))
	assert.True(t, rec.Bool("flag"))
	assert.True(t, rec.IsNull("nothing"))
	assert.True(t, rec.IsNull("absent"))
}
