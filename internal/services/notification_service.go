package services

import (
	"context"
	"fmt"
	"log/slog"
	"sort"

	"spendy/internal/core"
)

type NotificationStore interface {
	SumLedger(ctx context.Context, kind core.LedgerKind, userID string, month core.Month) (core.Money, error)
	ListPlanActivity(ctx context.Context, userID string) ([]core.PlanActivity, error)
}

// NotificationService recomputes a user's notifications on every call.
// Nothing is persisted.
type NotificationService struct {
	store NotificationStore
	rules []NotificationRule
	clock Clock
	limit int
}

// NewNotificationService uses the registered rules when rules is empty.
func NewNotificationService(store NotificationStore, clock Clock, rules ...NotificationRule) *NotificationService {
	if len(rules) == 0 {
		rules = DefaultNotificationRules()
	}
	return &NotificationService{store: store, rules: rules, clock: clock, limit: core.MaxNotifications}
}

func (s *NotificationService) Generate(ctx context.Context, userID string) ([]core.Notification, error) {
	if userID == "" {
		return nil, core.ErrUnauthenticated
	}

	in, err := s.snapshot(ctx, userID)
	if err != nil {
		return nil, err
	}

	var all []core.Notification
	for _, rule := range s.rules {
		all = append(all, rule.Evaluate(in)...)
	}
	return Prioritize(all, s.limit), nil
}

func (s *NotificationService) snapshot(ctx context.Context, userID string) (NotificationInput, error) {
	today := s.clock.Today()
	month := today.Month()

	in := NotificationInput{Today: today, Location: s.clock.Location}

	var err error
	if in.Income, err = s.store.SumLedger(ctx, core.LedgerIncome, userID, month); err != nil {
		slog.WarnContext(ctx, "Income total unavailable for notifications", "user_id", userID, "error", err)
	}
	if in.Expenses, err = s.store.SumLedger(ctx, core.LedgerExpenses, userID, month); err != nil {
		slog.WarnContext(ctx, "Expense total unavailable for notifications", "user_id", userID, "error", err)
	}

	if in.Plans, err = s.store.ListPlanActivity(ctx, userID); err != nil {
		return NotificationInput{}, fmt.Errorf("load plans: %w", err)
	}
	return in, nil
}

// Prioritize orders notifications by ascending priority, keeping emission
// order among equals, and keeps at most limit of them.
func Prioritize(ns []core.Notification, limit int) []core.Notification {
	sort.SliceStable(ns, func(i, j int) bool { return ns[i].Priority < ns[j].Priority })
	if limit >= 0 && len(ns) > limit {
		ns = ns[:limit]
	}
	if ns == nil {
		ns = []core.Notification{}
	}
	return ns
}
