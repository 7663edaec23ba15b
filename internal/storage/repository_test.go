package storage

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"
	_ "time/tzdata"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"spendy/internal/core"
)

var testNow = time.Date(2025, 6, 15, 10, 0, 0, 0, time.UTC)

func newTestRepo(t *testing.T) *SQLiteRepository {
	t.Helper()
	repo, err := NewSQLiteRepository(filepath.Join(t.TempDir(), "spendy.db"),
		WithClock(func() time.Time { return testNow }),
		WithQueryTimeout(10*time.Second))
	require.NoError(t, err)
	t.Cleanup(func() { _ = repo.Close() })
	return repo
}

func createPlan(t *testing.T, repo *SQLiteRepository, userID string, saved int64, locked bool) core.SavingsPlan {
	t.Helper()
	p, err := repo.CreatePlan(context.Background(), core.SavingsPlan{
		UserID:    userID,
		Name:      "Vacation",
		Goal:      core.Money{Cents: 1_000_000},
		StartDate: core.NewDate(2025, 1, 1),
		EndDate:   core.NewDate(2025, 12, 31),
		Status:    core.StatusActive,
		Locked:    locked,
	})
	require.NoError(t, err)
	if saved > 0 {
		_, err := repo.ApplyTransaction(context.Background(), TransactionParams{
			UserID: userID, PlanID: p.ID, Type: core.Deposit,
			Amount: core.Money{Cents: saved}, FundSource: core.FundSourceDirectDeposit,
			Date: core.NewDate(2025, 6, 1),
		})
		require.NoError(t, err)
		p.Saved = core.Money{Cents: saved}
	}
	return p
}

func TestMigrationStatus(t *testing.T) {
	repo := newTestRepo(t)

	status, err := GetMigrationStatus(repo.path)
	require.NoError(t, err)
	assert.Equal(t, uint(1), status.Version)
	assert.False(t, status.Dirty)

	// Running again is a no-op.
	require.NoError(t, RunMigrations(repo.path))
}

func TestPlanCRUD(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)

	p := createPlan(t, repo, "u1", 0, false)
	assert.Equal(t, "sav001", p.DisplayID())
	assert.Equal(t, testNow, p.CreatedAt)

	got, err := repo.GetPlan(ctx, "u1", p.ID)
	require.NoError(t, err)
	assert.Equal(t, "Vacation", got.Name)
	assert.Equal(t, core.NewDate(2025, 12, 31), got.EndDate)

	_, err = repo.GetPlan(ctx, "someone-else", p.ID)
	assert.ErrorIs(t, err, core.ErrPlanNotFound)

	got.Status = core.StatusCompleted
	got.Locked = true
	require.NoError(t, repo.UpdatePlan(ctx, got))

	active, err := repo.ListPlans(ctx, "u1", false)
	require.NoError(t, err)
	assert.Empty(t, active)

	ended, err := repo.ListPlans(ctx, "u1", true)
	require.NoError(t, err)
	require.Len(t, ended, 1)
	assert.True(t, ended[0].Locked)

	got.ID = 999
	assert.ErrorIs(t, repo.UpdatePlan(ctx, got), core.ErrPlanNotFound)
}

func TestApplyTransactionDeposit(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)
	p := createPlan(t, repo, "u1", 100_000, false)

	res, err := repo.ApplyTransaction(ctx, TransactionParams{
		UserID: "u1", PlanID: p.ID, Type: core.Deposit,
		Amount: core.Money{Cents: 500_000}, FundSource: core.FundSourceDirectDeposit,
		Date: core.NewDate(2025, 6, 15),
	})
	require.NoError(t, err)
	assert.Equal(t, int64(600_000), res.Plan.Saved.Cents)
	assert.Equal(t, "log002", res.Transaction.DisplayID())
	assert.Empty(t, res.TransferActivityID)

	txns, err := repo.ListTransactions(ctx, "u1", p.ID)
	require.NoError(t, err)
	require.Len(t, txns, 2)
	assert.Equal(t, core.Deposit, txns[0].Type)
	assert.Equal(t, int64(500_000), txns[0].Amount.Cents)
	assert.Equal(t, core.NewDate(2025, 6, 15), txns[0].Date)
}

func TestApplyTransactionWithdrawRules(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)
	open := createPlan(t, repo, "u1", 100_000, false)
	locked := createPlan(t, repo, "u1", 100_000, true)

	withdraw := func(id, cents int64) (TransactionResult, error) {
		return repo.ApplyTransaction(ctx, TransactionParams{
			UserID: "u1", PlanID: id, Type: core.Withdraw,
			Amount: core.Money{Cents: cents}, FundSource: core.FundSourceSavingsWithdrawal,
			Date: core.NewDate(2025, 6, 15),
		})
	}

	t.Run("insufficient funds leaves balance unchanged", func(t *testing.T) {
		_, err := withdraw(open.ID, 100_001)
		require.ErrorIs(t, err, core.ErrInsufficientFunds)
		var insufficient *core.InsufficientFundsError
		require.True(t, errors.As(err, &insufficient))
		assert.Equal(t, "Insufficient funds. Available: ₱1,000.00", err.Error())

		p, err := repo.GetPlan(ctx, "u1", open.ID)
		require.NoError(t, err)
		assert.Equal(t, int64(100_000), p.Saved.Cents)

		txns, err := repo.ListTransactions(ctx, "u1", open.ID)
		require.NoError(t, err)
		assert.Len(t, txns, 1)
	})

	t.Run("locked plan rejects any amount", func(t *testing.T) {
		for _, cents := range []int64{1, 100_000, 5_000_000} {
			_, err := withdraw(locked.ID, cents)
			assert.ErrorIs(t, err, core.ErrPlanLocked)
		}
	})

	t.Run("withdraw whole balance", func(t *testing.T) {
		res, err := withdraw(open.ID, 100_000)
		require.NoError(t, err)
		assert.Equal(t, int64(0), res.Plan.Saved.Cents)
	})

	t.Run("unknown plan", func(t *testing.T) {
		_, err := withdraw(12345, 1)
		assert.ErrorIs(t, err, core.ErrPlanNotFound)
	})

	t.Run("reactivate only on deposit", func(t *testing.T) {
		_, err := repo.ApplyTransaction(ctx, TransactionParams{
			UserID: "u1", PlanID: open.ID, Type: core.Withdraw, Amount: core.Money{Cents: 1},
			Reactivate: true, Date: core.NewDate(2025, 6, 15),
		})
		assert.ErrorIs(t, err, core.ErrValidation)
	})
}

func TestApplyTransactionReactivate(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)
	p := createPlan(t, repo, "u1", 0, false)
	p.Status = core.StatusExpired
	require.NoError(t, repo.UpdatePlan(ctx, p))

	res, err := repo.ApplyTransaction(ctx, TransactionParams{
		UserID: "u1", PlanID: p.ID, Type: core.Deposit, Amount: core.Money{Cents: 1000},
		FundSource: core.FundSourceAutoSave, Reactivate: true, Date: core.NewDate(2025, 6, 15),
	})
	require.NoError(t, err)
	assert.True(t, res.Reactivated)
	assert.Equal(t, core.StatusActive, res.Plan.Status)

	got, err := repo.GetPlan(ctx, "u1", p.ID)
	require.NoError(t, err)
	assert.Equal(t, core.StatusActive, got.Status)
}

func TestApplyTransactionWritesBudgetTransfer(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)
	p := createPlan(t, repo, "u1", 0, false)
	month := core.Month{Year: 2025, Month: time.June}

	res, err := repo.ApplyTransaction(ctx, TransactionParams{
		UserID: "u1", PlanID: p.ID, Type: core.Deposit, Amount: core.Money{Cents: 123456},
		FundSource: core.FundSourceRemainingBudget, Date: core.NewDate(2025, 6, 15),
	})
	require.NoError(t, err)
	require.NotEmpty(t, res.TransferActivityID)

	_, err = repo.ApplyTransaction(ctx, TransactionParams{
		UserID: "u1", PlanID: p.ID, Type: core.Withdraw, Amount: core.Money{Cents: 23456},
		FundSource: core.FundSourceMainWallet, Date: core.NewDate(2025, 6, 16),
	})
	require.NoError(t, err)

	saved, err := repo.SumTransfers(ctx, "u1", month, core.TransferRemainingBudget)
	require.NoError(t, err)
	assert.Equal(t, int64(123456), saved.Cents)

	back, err := repo.SumTransfers(ctx, "u1", month, core.TransferMainWallet)
	require.NoError(t, err)
	assert.Equal(t, int64(23456), back.Cents)

	entries, total, err := repo.QueryActivity(ctx, ActivityFilter{UserID: "u1", ActionType: core.ActionRemainingBudgetSavings})
	require.NoError(t, err)
	require.Equal(t, 1, total)
	assert.Equal(t,
		"AMOUNT:1234.56|Saved ₱1,234.56 from Remaining Budget to savings plan sav001 (Transaction: log001)",
		entries[0].Description)

	// Typed rows exist, so nothing is left for text parsing.
	legacy, err := repo.LegacyTransferDescriptions(ctx, "u1", month, core.ActionRemainingBudgetSavings)
	require.NoError(t, err)
	assert.Empty(t, legacy)
}

func TestLegacyTransferDescriptions(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)

	_, err := repo.InsertActivity(ctx, core.ActivityEntry{
		UserID:      "u1",
		ActionType:  core.ActionRemainingBudgetSavings,
		Description: "Saved ₱2,500.00 from Remaining Budget to savings plan sav009",
	})
	require.NoError(t, err)

	got, err := repo.LegacyTransferDescriptions(ctx, "u1", core.Month{Year: 2025, Month: time.June}, core.ActionRemainingBudgetSavings)
	require.NoError(t, err)
	assert.Equal(t, []string{"Saved ₱2,500.00 from Remaining Budget to savings plan sav009"}, got)

	got, err = repo.LegacyTransferDescriptions(ctx, "u1", core.Month{Year: 2025, Month: time.May}, core.ActionRemainingBudgetSavings)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestConcurrentDepositsGetDistinctIDs(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)
	p := createPlan(t, repo, "u1", 0, false)

	const workers = 20
	ids := make(chan int64, workers)
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			res, err := repo.ApplyTransaction(ctx, TransactionParams{
				UserID: "u1", PlanID: p.ID, Type: core.Deposit, Amount: core.Money{Cents: 100},
				FundSource: core.FundSourceDirectDeposit, Date: core.NewDate(2025, 6, 15),
			})
			if assert.NoError(t, err) {
				ids <- res.Transaction.ID
			}
		}()
	}
	wg.Wait()
	close(ids)

	seen := map[int64]bool{}
	for id := range ids {
		assert.False(t, seen[id], "duplicate transaction id %d", id)
		seen[id] = true
	}
	assert.Len(t, seen, workers)

	got, err := repo.GetPlan(ctx, "u1", p.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(workers*100), got.Saved.Cents)
}

func TestLedgerAndSums(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)
	june := core.Month{Year: 2025, Month: time.June}

	add := func(kind core.LedgerKind, cents int64, date core.Date) {
		_, err := repo.AddLedgerEntry(ctx, kind, core.LedgerEntry{
			UserID: "u1", Category: "General", Amount: core.Money{Cents: cents}, Date: date,
		})
		require.NoError(t, err)
	}
	add(core.LedgerIncome, 5_000_000, core.NewDate(2025, 6, 1))
	add(core.LedgerExpenses, 2_000_000, core.NewDate(2025, 6, 2))
	add(core.LedgerExpenses, 1_000_000, core.NewDate(2025, 6, 30))
	add(core.LedgerExpenses, 9_999_999, core.NewDate(2025, 7, 1))

	income, err := repo.SumLedger(ctx, core.LedgerIncome, "u1", june)
	require.NoError(t, err)
	assert.Equal(t, int64(5_000_000), income.Cents)

	expenses, err := repo.SumLedger(ctx, core.LedgerExpenses, "u1", june)
	require.NoError(t, err)
	assert.Equal(t, int64(3_000_000), expenses.Cents)

	list, err := repo.ListLedgerEntries(ctx, core.LedgerExpenses, "u1", june)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, core.NewDate(2025, 6, 30), list[0].Date)

	empty, err := repo.SumLedger(ctx, core.LedgerIncome, "nobody", june)
	require.NoError(t, err)
	assert.Equal(t, int64(0), empty.Cents)

	_, err = repo.SumLedger(ctx, core.LedgerKind("bogus"), "u1", june)
	assert.Error(t, err)
}

func TestExpenseBreakdown(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)
	june := core.Month{Year: 2025, Month: time.June}

	add := func(user, category string, cents int64, date core.Date) {
		_, err := repo.AddLedgerEntry(ctx, core.LedgerExpenses, core.LedgerEntry{
			UserID: user, Category: category, Amount: core.Money{Cents: cents}, Date: date,
		})
		require.NoError(t, err)
	}
	add("u1", "Food", 25_000, core.NewDate(2025, 6, 3))
	add("u1", "Food", 15_000, core.NewDate(2025, 6, 3))
	add("u1", "Rent", 1_500_000, core.NewDate(2025, 6, 1))
	add("u1", "Transport", 5_000, core.NewDate(2025, 6, 21))
	add("u1", "Food", 99_000, core.NewDate(2025, 7, 1))
	add("u2", "Food", 77_000, core.NewDate(2025, 6, 3))

	cats, err := repo.ExpenseCategoryTotals(ctx, "u1", june)
	require.NoError(t, err)
	assert.Equal(t, []core.CategoryTotal{
		{Category: "Rent", Amount: core.Money{Cents: 1_500_000}, Count: 1},
		{Category: "Food", Amount: core.Money{Cents: 40_000}, Count: 2},
		{Category: "Transport", Amount: core.Money{Cents: 5_000}, Count: 1},
	}, cats)

	daily, err := repo.DailyExpenseTotals(ctx, "u1", june)
	require.NoError(t, err)
	assert.Equal(t, map[int]core.Money{
		1:  {Cents: 1_500_000},
		3:  {Cents: 40_000},
		21: {Cents: 5_000},
	}, daily)

	none, err := repo.ExpenseCategoryTotals(ctx, "u1", core.Month{Year: 2025, Month: time.May})
	require.NoError(t, err)
	assert.Empty(t, none)
	noDays, err := repo.DailyExpenseTotals(ctx, "u1", core.Month{Year: 2025, Month: time.May})
	require.NoError(t, err)
	assert.Empty(t, noDays)
}

func TestQueryActivityFilters(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)

	for i := 0; i < 5; i++ {
		_, err := repo.InsertActivity(ctx, core.ActivityEntry{
			UserID: "u1", RelatedTable: "savings", RelatedRecordID: "sav001",
			ActionType: "deposit", Description: "Deposited",
			CreatedAt: testNow.Add(time.Duration(i) * time.Hour),
		})
		require.NoError(t, err)
	}
	_, err := repo.InsertActivity(ctx, core.ActivityEntry{
		UserID: "u1", RelatedTable: "expenses", ActionType: "expensecreate",
		CreatedAt: testNow.AddDate(0, 0, -10),
	})
	require.NoError(t, err)

	page, total, err := repo.QueryActivity(ctx, ActivityFilter{UserID: "u1", ActionType: "deposit", Limit: 2})
	require.NoError(t, err)
	assert.Equal(t, 5, total)
	require.Len(t, page, 2)
	assert.True(t, page[0].CreatedAt.After(page[1].CreatedAt))

	_, total, err = repo.QueryActivity(ctx, ActivityFilter{UserID: "u1", StartDate: core.NewDate(2025, 6, 15)})
	require.NoError(t, err)
	assert.Equal(t, 5, total)

	_, total, err = repo.QueryActivity(ctx, ActivityFilter{UserID: "u1", EndDate: core.NewDate(2025, 6, 10)})
	require.NoError(t, err)
	assert.Equal(t, 1, total)

	assert.Equal(t, MaxActivityLimit, ActivityFilter{Limit: 5000}.Normalize().Limit)
	assert.Equal(t, DefaultActivityLimit, ActivityFilter{}.Normalize().Limit)
}

func TestLocalMonthBoundary(t *testing.T) {
	ctx := context.Background()
	manila, err := time.LoadLocation("Asia/Manila")
	require.NoError(t, err)

	// 20:00 UTC on June 30 is already July 1 in Manila.
	now := time.Date(2025, 6, 30, 20, 0, 0, 0, time.UTC)
	repo, err := NewSQLiteRepository(filepath.Join(t.TempDir(), "spendy.db"),
		WithClock(func() time.Time { return now }),
		WithLocation(manila))
	require.NoError(t, err)
	t.Cleanup(func() { _ = repo.Close() })

	p := createPlan(t, repo, "u1", 0, false)
	today := core.DateOf(now, manila)
	require.Equal(t, core.NewDate(2025, 7, 1), today)

	_, err = repo.ApplyTransaction(ctx, TransactionParams{
		UserID: "u1", PlanID: p.ID, Type: core.Deposit, Amount: core.Money{Cents: 5_000},
		FundSource: core.FundSourceRemainingBudget, Date: today,
	})
	require.NoError(t, err)
	_, err = repo.InsertActivity(ctx, core.ActivityEntry{
		UserID:      "u1",
		ActionType:  core.ActionRemainingBudgetSavings,
		Description: "Saved ₱25.00 from Remaining Budget to savings plan sav001",
	})
	require.NoError(t, err)

	june := core.Month{Year: 2025, Month: time.June}
	july := core.Month{Year: 2025, Month: time.July}

	typed, err := repo.SumTransfers(ctx, "u1", july, core.TransferRemainingBudget)
	require.NoError(t, err)
	assert.Equal(t, int64(5_000), typed.Cents)

	legacy, err := repo.LegacyTransferDescriptions(ctx, "u1", july, core.ActionRemainingBudgetSavings)
	require.NoError(t, err)
	assert.Len(t, legacy, 1)

	legacy, err = repo.LegacyTransferDescriptions(ctx, "u1", june, core.ActionRemainingBudgetSavings)
	require.NoError(t, err)
	assert.Empty(t, legacy)

	_, total, err := repo.QueryActivity(ctx, ActivityFilter{UserID: "u1", StartDate: today, EndDate: today})
	require.NoError(t, err)
	assert.Equal(t, 2, total, "typed transfer activity and legacy row fall on the local day")

	_, total, err = repo.QueryActivity(ctx, ActivityFilter{UserID: "u1", EndDate: core.NewDate(2025, 6, 30)})
	require.NoError(t, err)
	assert.Zero(t, total)
}
