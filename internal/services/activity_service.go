package services

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"spendy/internal/amqp"
	"spendy/internal/core"
	"spendy/internal/storage"
)

// Activity action types recorded by the services.
const (
	ActionPlanCreate    = "savingscreate"
	ActionPlanUpdate    = "savingsupdate"
	ActionPlanLock      = "savingslock"
	ActionDeposit       = "deposit"
	ActionWithdraw      = "withdraw"
	ActionExpenseCreate = "expensecreate"
	ActionIncomeCreate  = "incomecreate"
)

type ActivityStore interface {
	InsertActivity(ctx context.Context, e core.ActivityEntry) (core.ActivityEntry, error)
	QueryActivity(ctx context.Context, f storage.ActivityFilter) ([]core.ActivityEntry, int, error)
}

type ActivityPublisher interface {
	PublishActivity(ctx context.Context, msg *amqp.ActivityMessage) error
}

// ActivityService is the audit sink. Entries go to the message queue when a
// publisher is configured and straight to the store otherwise, or when
// publishing fails.
type ActivityService struct {
	store     ActivityStore
	publisher ActivityPublisher
	clock     Clock
}

func NewActivityService(store ActivityStore, publisher ActivityPublisher, clock Clock) *ActivityService {
	return &ActivityService{store: store, publisher: publisher, clock: clock}
}

// Record stores one audit entry. Callers treat failures as non-fatal.
func (s *ActivityService) Record(ctx context.Context, actor core.Actor, e core.ActivityEntry) error {
	if e.ID == "" {
		id, err := uuid.NewV7()
		if err != nil {
			return fmt.Errorf("generate activity id: %w", err)
		}
		e.ID = id.String()
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = s.clock.now().UTC()
	}
	e.UserID = actor.UserID
	e.IPAddress = actor.IPAddress
	e.UserAgent = actor.UserAgent

	if s.publisher != nil {
		err := s.publisher.PublishActivity(ctx, amqp.NewActivityMessage(e))
		if err == nil {
			return nil
		}
		slog.WarnContext(ctx, "Publishing activity failed, writing directly",
			"activity_id", e.ID,
			"action_type", e.ActionType,
			"error", err)
	}

	if _, err := s.store.InsertActivity(ctx, e); err != nil {
		return fmt.Errorf("record activity %s: %w", e.ActionType, err)
	}
	return nil
}

// record logs instead of returning the error; the triggering operation has
// already succeeded.
func (s *ActivityService) record(ctx context.Context, actor core.Actor, e core.ActivityEntry) {
	if s == nil {
		return
	}
	if err := s.Record(ctx, actor, e); err != nil {
		slog.ErrorContext(ctx, "Failed to record activity",
			"user_id", actor.UserID,
			"action_type", e.ActionType,
			"error", err)
	}
}

// Query returns a page of the user's audit trail and the total match count.
func (s *ActivityService) Query(ctx context.Context, f storage.ActivityFilter) ([]core.ActivityEntry, int, error) {
	if f.UserID == "" {
		return nil, 0, core.ErrUnauthenticated
	}
	if !f.StartDate.IsZero() && !f.EndDate.IsZero() && f.EndDate.Before(f.StartDate.Time) {
		return nil, 0, core.ErrInvalidDateRange
	}
	entries, total, err := s.store.QueryActivity(ctx, f)
	if err != nil {
		return nil, 0, fmt.Errorf("query activity: %w", err)
	}
	return entries, total, nil
}
