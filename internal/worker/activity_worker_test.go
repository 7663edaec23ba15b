package worker

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"spendy/internal/amqp"
	"spendy/internal/core"
)

type memoryStore struct {
	mu      sync.Mutex
	entries map[string]core.ActivityEntry
	fail    error
}

func (m *memoryStore) InsertActivity(_ context.Context, e core.ActivityEntry) (core.ActivityEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.fail != nil {
		return core.ActivityEntry{}, m.fail
	}
	if m.entries == nil {
		m.entries = map[string]core.ActivityEntry{}
	}
	if _, ok := m.entries[e.ID]; !ok {
		m.entries[e.ID] = e
	}
	return e, nil
}

func message(id string) *amqp.ActivityMessage {
	return amqp.NewActivityMessage(core.ActivityEntry{
		ID:              id,
		UserID:          "alice",
		RelatedTable:    "savings",
		RelatedRecordID: "sav001",
		ActionType:      "deposit",
		Description:     "Deposited ₱100.00 to savings plan sav001",
		CreatedAt:       time.Date(2025, 6, 1, 8, 0, 0, 0, time.UTC),
	})
}

func TestHandleActivityMessageIsIdempotent(t *testing.T) {
	store := &memoryStore{}
	w := NewActivityWorker(store)

	require.NoError(t, w.HandleActivityMessage(context.Background(), message("a1")))
	require.NoError(t, w.HandleActivityMessage(context.Background(), message("a1")))
	require.NoError(t, w.HandleActivityMessage(context.Background(), message("a2")))

	assert.Len(t, store.entries, 2)
	got := store.entries["a1"]
	assert.Equal(t, "sav001", got.RelatedRecordID)
	assert.Equal(t, time.Date(2025, 6, 1, 8, 0, 0, 0, time.UTC), got.CreatedAt)
	assert.Equal(t, Stats{Processed: 3}, w.Stats())
}

func TestHandleActivityMessageReportsStoreErrors(t *testing.T) {
	store := &memoryStore{fail: errors.New("database is locked")}
	w := NewActivityWorker(store)

	err := w.HandleActivityMessage(context.Background(), message("a1"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "a1")
	assert.Equal(t, int64(1), w.Stats().Failed)
}

type scriptedConsumer struct {
	calls    int
	messages []*amqp.ActivityMessage
	cancel   context.CancelFunc
}

func (c *scriptedConsumer) ConsumeActivity(ctx context.Context, handler func(context.Context, *amqp.ActivityMessage) error) error {
	c.calls++
	if c.calls == 1 {
		return errors.New("message channel closed")
	}
	for _, m := range c.messages {
		if err := handler(ctx, m); err != nil {
			return err
		}
	}
	c.cancel()
	<-ctx.Done()
	return ctx.Err()
}

func TestRunResubscribesAfterFailure(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	store := &memoryStore{}
	w := NewActivityWorker(store)
	w.retryDelay = time.Millisecond

	consumer := &scriptedConsumer{messages: []*amqp.ActivityMessage{message("a1"), message("a2")}, cancel: cancel}
	require.NoError(t, w.Run(ctx, consumer))

	assert.Equal(t, 2, consumer.calls)
	assert.Len(t, store.entries, 2)
}
