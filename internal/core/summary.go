package core

import "github.com/shopspring/decimal"

// SavingsHeuristicPercent is the share of a positive monthly balance that the
// dashboard suggests putting aside.
const SavingsHeuristicPercent = 15

// MonthlyStats is the per-user snapshot of one calendar month. It is derived on
// every request and never stored.
type MonthlyStats struct {
	Month                      Month `json:"month"`
	Income                     Money `json:"income"`
	Expenses                   Money `json:"expenses"`
	TotalBalance               Money `json:"total_balance"`
	Savings                    Money `json:"savings"`
	SavingsFromRemainingBudget Money `json:"savings_from_remaining_budget"`
	MainWalletWithdrawals      Money `json:"main_wallet_withdrawals"`
	RemainingBudget            Money `json:"remaining_budget"`
	SavingsDeposits            Money `json:"savings_deposits"`
	// IncomeChange is the percent change against the previous month's
	// income, 0 when that month had none.
	IncomeChange float64 `json:"income_change"`
}

// MonthlyTotals are the raw sums a MonthlyStats is derived from.
type MonthlyTotals struct {
	Income                Money
	Expenses              Money
	SavedFromBudget       Money
	MainWalletWithdrawals Money
	SavingsDeposits       Money
	PreviousIncome        Money
}

func ComputeMonthlyStats(month Month, t MonthlyTotals) MonthlyStats {
	balance := t.Income.Sub(t.Expenses)

	fromBudget := t.SavedFromBudget.Sub(t.MainWalletWithdrawals)
	if fromBudget.Cents < 0 {
		fromBudget = Money{}
	}

	savings := Money{}
	if balance.Cents > 0 {
		savings = MoneyFromDecimal(balance.Decimal().Mul(decimal.NewFromInt(SavingsHeuristicPercent)).Div(decimal.NewFromInt(100)))
	}

	return MonthlyStats{
		Month:                      month,
		Income:                     t.Income,
		Expenses:                   t.Expenses,
		TotalBalance:               balance,
		Savings:                    savings,
		SavingsFromRemainingBudget: fromBudget,
		MainWalletWithdrawals:      t.MainWalletWithdrawals,
		RemainingBudget:            balance.Sub(fromBudget),
		SavingsDeposits:            t.SavingsDeposits,
		IncomeChange:               PercentOf(t.Income.Sub(t.PreviousIncome), t.PreviousIncome),
	}
}

// PercentOf returns part as a percentage of whole, rounded to two places.
// A non-positive whole yields 0.
func PercentOf(part, whole Money) float64 {
	if whole.Cents <= 0 {
		return 0
	}
	pct, _ := part.Decimal().Mul(decimal.NewFromInt(100)).Div(whole.Decimal()).Round(2).Float64()
	return pct
}

// CategoryTotal is one category of a month's expenses.
type CategoryTotal struct {
	Category   string  `json:"category"`
	Amount     Money   `json:"amount"`
	Count      int     `json:"count"`
	Percentage float64 `json:"percentage"`
}

// ExpenseSummary breaks one month of expenses down by category and by day of
// the month.
type ExpenseSummary struct {
	Month         Month           `json:"month"`
	Categories    []CategoryTotal `json:"categories"`
	TotalExpenses Money           `json:"total_expenses"`
	DailyExpenses map[int]Money   `json:"daily_expenses"`
	MaxDaily      Money           `json:"max_daily"`
}

// ComputeExpenseSummary fills in the totals and category percentages.
// Categories keep the order they are given in.
func ComputeExpenseSummary(month Month, categories []CategoryTotal, daily map[int]Money) ExpenseSummary {
	out := ExpenseSummary{
		Month:         month,
		Categories:    make([]CategoryTotal, 0, len(categories)),
		DailyExpenses: make(map[int]Money, len(daily)),
	}
	for _, c := range categories {
		out.TotalExpenses = out.TotalExpenses.Add(c.Amount)
	}
	for _, c := range categories {
		c.Percentage = PercentOf(c.Amount, out.TotalExpenses)
		out.Categories = append(out.Categories, c)
	}
	for day, amount := range daily {
		out.DailyExpenses[day] = amount
		if amount.Cents > out.MaxDaily.Cents {
			out.MaxDaily = amount
		}
	}
	return out
}

// MaxNotifications caps the list returned to clients.
const MaxNotifications = 10

const (
	NotifyPlanExpiration NotificationType = "plan_expiration"
	NotifyExpenseAlert   NotificationType = "expense_alert"
	NotifyRegularDeposit NotificationType = "regular_deposit"
	NotifyLowProgress    NotificationType = "low_progress"
	NotifySavingSuggest  NotificationType = "saving_suggestion"
	NotifyInactivePlan   NotificationType = "inactive_plan"
)

type NotificationType string

// Notification is an advisory message. Lower priority values sort first.
type Notification struct {
	ID        string           `json:"id"`
	Icon      string           `json:"icon"`
	Message   string           `json:"message"`
	Type      NotificationType `json:"type"`
	Priority  float64          `json:"priority"`
	SavingsID string           `json:"savings_id,omitempty"`
	Amount    *Money           `json:"amount,omitempty"`
	Percent   int              `json:"percent,omitempty"`
}
