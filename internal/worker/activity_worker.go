package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"spendy/internal/amqp"
	"spendy/internal/core"
)

// ActivityStore persists audit entries. Inserting an id twice must be a no-op.
type ActivityStore interface {
	InsertActivity(ctx context.Context, e core.ActivityEntry) (core.ActivityEntry, error)
}

// Consumer delivers activity messages until ctx ends or the feed breaks.
type Consumer interface {
	ConsumeActivity(ctx context.Context, handler func(context.Context, *amqp.ActivityMessage) error) error
}

// ActivityWorker drains the activity queue into the audit table.
type ActivityWorker struct {
	store ActivityStore

	retryDelay time.Duration
	processed  atomic.Int64
	failed     atomic.Int64
}

func NewActivityWorker(store ActivityStore) *ActivityWorker {
	return &ActivityWorker{store: store, retryDelay: 5 * time.Second}
}

// Stats is a point-in-time view of the worker counters.
type Stats struct {
	Processed int64
	Failed    int64
}

func (w *ActivityWorker) Stats() Stats {
	return Stats{Processed: w.processed.Load(), Failed: w.failed.Load()}
}

// HandleActivityMessage stores one audit entry. An error requeues the message,
// and the idempotent insert makes the redelivery safe.
func (w *ActivityWorker) HandleActivityMessage(ctx context.Context, msg *amqp.ActivityMessage) error {
	entry := msg.Entry()
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}

	if _, err := w.store.InsertActivity(ctx, entry); err != nil {
		w.failed.Add(1)
		return fmt.Errorf("store activity %s: %w", msg.ID, err)
	}
	w.processed.Add(1)

	slog.DebugContext(ctx, "Stored activity entry",
		"activity_id", msg.ID,
		"user_id", msg.UserID,
		"action_type", msg.ActionType)
	return nil
}

// Run consumes until ctx is cancelled, resubscribing after the feed breaks.
func (w *ActivityWorker) Run(ctx context.Context, consumer Consumer) error {
	for {
		err := consumer.ConsumeActivity(ctx, w.HandleActivityMessage)
		if ctx.Err() != nil || errors.Is(err, context.Canceled) {
			return nil
		}
		slog.ErrorContext(ctx, "Activity consumption stopped, retrying",
			"error", err,
			"retry_in", w.retryDelay)

		select {
		case <-ctx.Done():
			return nil
		case <-time.After(w.retryDelay):
		}
	}
}
