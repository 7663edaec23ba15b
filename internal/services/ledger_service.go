package services

import (
	"context"
	"fmt"
	"strings"

	"golang.org/x/sync/errgroup"

	"spendy/internal/core"
)

// Income at or above this amount comes back with an auto-save suggestion.
var (
	AutoSaveThreshold = core.Money{Cents: 2_000_000}
	AutoSavePercent   = int64(5)
)

type LedgerStore interface {
	AddLedgerEntry(ctx context.Context, kind core.LedgerKind, e core.LedgerEntry) (core.LedgerEntry, error)
	ListLedgerEntries(ctx context.Context, kind core.LedgerKind, userID string, month core.Month) ([]core.LedgerEntry, error)
	ExpenseCategoryTotals(ctx context.Context, userID string, month core.Month) ([]core.CategoryTotal, error)
	DailyExpenseTotals(ctx context.Context, userID string, month core.Month) (map[int]core.Money, error)
}

// LedgerService records expenses and income.
type LedgerService struct {
	store    LedgerStore
	activity *ActivityService
	stats    StatsInvalidator
	clock    Clock
}

func NewLedgerService(store LedgerStore, activity *ActivityService, stats StatsInvalidator, clock Clock) *LedgerService {
	return &LedgerService{store: store, activity: activity, stats: stats, clock: clock}
}

type LedgerParams struct {
	Category string
	Amount   core.Money
	Note     string
	// Date defaults to today.
	Date core.Date
}

// AutoSaveSuggestion proposes moving part of a large income into savings.
type AutoSaveSuggestion struct {
	Amount  core.Money `json:"amount"`
	Percent int64      `json:"percent"`
	Message string     `json:"message"`
}

func (s *LedgerService) AddExpense(ctx context.Context, actor core.Actor, p LedgerParams) (core.LedgerEntry, error) {
	return s.add(ctx, actor, core.LedgerExpenses, p)
}

// AddIncome records income and, for large amounts, suggests an auto-save.
func (s *LedgerService) AddIncome(ctx context.Context, actor core.Actor, p LedgerParams) (core.LedgerEntry, *AutoSaveSuggestion, error) {
	e, err := s.add(ctx, actor, core.LedgerIncome, p)
	if err != nil {
		return core.LedgerEntry{}, nil, err
	}
	if e.Amount.Cents < AutoSaveThreshold.Cents {
		return e, nil, nil
	}
	amount := e.Amount.Percent(AutoSavePercent)
	return e, &AutoSaveSuggestion{
		Amount:  amount,
		Percent: AutoSavePercent,
		Message: fmt.Sprintf("Consider saving %d%% (%s) of this income.", AutoSavePercent, amount.Display()),
	}, nil
}

func (s *LedgerService) List(ctx context.Context, userID string, kind core.LedgerKind, month core.Month) ([]core.LedgerEntry, error) {
	if userID == "" {
		return nil, core.ErrUnauthenticated
	}
	entries, err := s.store.ListLedgerEntries(ctx, kind, userID, month)
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", kind, err)
	}
	return entries, nil
}

// ExpenseSummary breaks a month of expenses down by category and by day.
func (s *LedgerService) ExpenseSummary(ctx context.Context, userID string, month core.Month) (core.ExpenseSummary, error) {
	if userID == "" {
		return core.ExpenseSummary{}, core.ErrUnauthenticated
	}
	if month.Month < 1 || month.Month > 12 {
		return core.ExpenseSummary{}, core.ErrInvalidMonth
	}

	var (
		categories []core.CategoryTotal
		daily      map[int]core.Money
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		categories, err = s.store.ExpenseCategoryTotals(gctx, userID, month)
		return err
	})
	g.Go(func() error {
		var err error
		daily, err = s.store.DailyExpenseTotals(gctx, userID, month)
		return err
	})
	if err := g.Wait(); err != nil {
		return core.ExpenseSummary{}, fmt.Errorf("summarize expenses: %w", err)
	}
	return core.ComputeExpenseSummary(month, categories, daily), nil
}

func (s *LedgerService) add(ctx context.Context, actor core.Actor, kind core.LedgerKind, p LedgerParams) (core.LedgerEntry, error) {
	if actor.UserID == "" {
		return core.LedgerEntry{}, core.ErrUnauthenticated
	}

	e := core.LedgerEntry{
		UserID:   actor.UserID,
		Category: strings.TrimSpace(p.Category),
		Amount:   p.Amount,
		Note:     strings.TrimSpace(p.Note),
		Date:     p.Date,
	}
	if e.Date.IsZero() {
		e.Date = s.clock.Today()
	}
	if err := e.Validate(); err != nil {
		return core.LedgerEntry{}, err
	}

	e, err := s.store.AddLedgerEntry(ctx, kind, e)
	if err != nil {
		return core.LedgerEntry{}, fmt.Errorf("add %s entry: %w", kind, err)
	}
	if s.stats != nil {
		s.stats.Invalidate(actor.UserID)
	}

	action, noun := ActionExpenseCreate, "expense"
	if kind == core.LedgerIncome {
		action, noun = ActionIncomeCreate, "income"
	}
	s.activity.record(ctx, actor, core.ActivityEntry{
		RelatedTable:    string(kind),
		RelatedRecordID: fmt.Sprintf("%d", e.ID),
		ActionType:      action,
		Description:     fmt.Sprintf("Added %s of %s (%s)", noun, e.Amount.Display(), e.Category),
	})
	return e, nil
}
