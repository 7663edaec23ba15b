package services

import (
	"context"
	"log/slog"
	"sync/atomic"

	"golang.org/x/sync/errgroup"

	"spendy/internal/cache"
	"spendy/internal/core"
)

type BudgetStore interface {
	SumLedger(ctx context.Context, kind core.LedgerKind, userID string, month core.Month) (core.Money, error)
	SumTransfers(ctx context.Context, userID string, month core.Month, source core.TransferSource) (core.Money, error)
	SumSavingsDeposits(ctx context.Context, userID string, month core.Month) (core.Money, error)
	LegacyTransferDescriptions(ctx context.Context, userID string, month core.Month, actionType string) ([]string, error)
}

// BudgetService derives the monthly snapshot. Every underlying sum is
// independent; a failing one counts as zero so the snapshot is always served.
type BudgetService struct {
	store BudgetStore
	cache cache.Cache[core.MonthlyStats]
	clock Clock
}

// NewBudgetService builds the aggregator. A nil cache disables caching.
func NewBudgetService(store BudgetStore, c cache.Cache[core.MonthlyStats], clock Clock) *BudgetService {
	return &BudgetService{store: store, cache: c, clock: clock}
}

func cacheKey(userID string, month core.Month) string {
	return userID + "|" + month.String()
}

// Invalidate forgets every cached month of the user.
func (s *BudgetService) Invalidate(userID string) {
	if s.cache != nil {
		s.cache.DeletePrefix(userID + "|")
	}
}

func (s *BudgetService) CurrentMonth() core.Month {
	return s.clock.CurrentMonth()
}

func (s *BudgetService) MonthlyStats(ctx context.Context, userID string, month core.Month) (core.MonthlyStats, error) {
	if userID == "" {
		return core.MonthlyStats{}, core.ErrUnauthenticated
	}
	if month.Month < 1 || month.Month > 12 {
		return core.MonthlyStats{}, core.ErrInvalidMonth
	}

	key := cacheKey(userID, month)
	if s.cache != nil {
		if stats, ok := s.cache.Get(key); ok {
			return stats, nil
		}
	}

	totals, degraded := s.collect(ctx, userID, month)
	stats := core.ComputeMonthlyStats(month, totals)

	if s.cache != nil && !degraded {
		s.cache.Set(key, stats)
	}
	return stats, nil
}

// collect runs the sums concurrently. degraded reports whether any of them
// fell back to zero.
func (s *BudgetService) collect(ctx context.Context, userID string, month core.Month) (core.MonthlyTotals, bool) {
	var (
		t                         core.MonthlyTotals
		typedSaved, typedWithdraw core.Money
		legacySaved, legacyBack   core.Money
		degraded                  atomic.Bool
	)

	g, gctx := errgroup.WithContext(ctx)
	sum := func(name string, dst *core.Money, fn func(context.Context) (core.Money, error)) {
		g.Go(func() error {
			m, err := fn(gctx)
			if err != nil {
				slog.WarnContext(ctx, "Monthly sum unavailable, using zero",
					"query", name, "user_id", userID, "month", month.String(), "error", err)
				degraded.Store(true)
				return nil
			}
			*dst = m
			return nil
		})
	}

	sum("income", &t.Income, func(ctx context.Context) (core.Money, error) {
		return s.store.SumLedger(ctx, core.LedgerIncome, userID, month)
	})
	sum("previous_income", &t.PreviousIncome, func(ctx context.Context) (core.Money, error) {
		return s.store.SumLedger(ctx, core.LedgerIncome, userID, month.Previous())
	})
	sum("expenses", &t.Expenses, func(ctx context.Context) (core.Money, error) {
		return s.store.SumLedger(ctx, core.LedgerExpenses, userID, month)
	})
	sum("remaining_budget_transfers", &typedSaved, func(ctx context.Context) (core.Money, error) {
		return s.store.SumTransfers(ctx, userID, month, core.TransferRemainingBudget)
	})
	sum("main_wallet_transfers", &typedWithdraw, func(ctx context.Context) (core.Money, error) {
		return s.store.SumTransfers(ctx, userID, month, core.TransferMainWallet)
	})
	sum("savings_deposits", &t.SavingsDeposits, func(ctx context.Context) (core.Money, error) {
		return s.store.SumSavingsDeposits(ctx, userID, month)
	})
	sum("legacy_remaining_budget", &legacySaved, func(ctx context.Context) (core.Money, error) {
		return s.legacySum(ctx, userID, month, core.ActionRemainingBudgetSavings)
	})
	sum("legacy_main_wallet", &legacyBack, func(ctx context.Context) (core.Money, error) {
		return s.legacySum(ctx, userID, month, core.ActionMainWalletWithdrawal)
	})

	_ = g.Wait()

	t.SavedFromBudget = typedSaved.Add(legacySaved)
	t.MainWalletWithdrawals = typedWithdraw.Add(legacyBack)
	return t, degraded.Load()
}

// legacySum parses amounts out of transfer activity rows written before the
// typed transfer table existed.
func (s *BudgetService) legacySum(ctx context.Context, userID string, month core.Month, actionType string) (core.Money, error) {
	descs, err := s.store.LegacyTransferDescriptions(ctx, userID, month, actionType)
	if err != nil {
		return core.Money{}, err
	}
	var total core.Money
	for _, d := range descs {
		amount, ok := core.ExtractTransferAmount(d)
		if !ok {
			slog.DebugContext(ctx, "Transfer description without amount", "action_type", actionType)
			continue
		}
		total = total.Add(amount)
	}
	return total, nil
}
