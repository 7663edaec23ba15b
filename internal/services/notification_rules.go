// Package services provides business logic and orchestration services.
//
// This file implements the notification rules as strategies. Each rule looks
// at the same snapshot of a user's month and plans and emits zero or more
// notifications; the NotificationService merges and ranks the results.
package services

import (
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"spendy/internal/core"
)

// NotificationInput is everything the rules may look at.
type NotificationInput struct {
	Today    core.Date
	Location *time.Location
	Income   core.Money
	Expenses core.Money
	Plans    []core.PlanActivity
}

// NotificationRule is the strategy interface for one kind of advisory message.
type NotificationRule interface {
	Evaluate(in NotificationInput) []core.Notification
}

// RuleFunc adapts a plain function to NotificationRule.
type RuleFunc func(in NotificationInput) []core.Notification

func (f RuleFunc) Evaluate(in NotificationInput) []core.Notification { return f(in) }

type namedRule struct {
	name string
	rule NotificationRule
}

var (
	rulesMu sync.RWMutex
	// Emission order matters only among equal priorities.
	notificationRules = []namedRule{
		{"expense_alert", ExpenseAlertRule{}},
		{"plan_expiration", ExpiringPlanRule{}},
		{"regular_deposit", RegularDepositRule{}},
		{"low_progress", BehindScheduleRule{}},
		{"saving_suggestion", SavingSuggestionRule{}},
		{"inactive_plan", InactivePlanRule{}},
	}
)

// GetNotificationRule returns the registered rule with the given name.
func GetNotificationRule(name string) (NotificationRule, bool) {
	rulesMu.RLock()
	defer rulesMu.RUnlock()
	for _, r := range notificationRules {
		if r.name == name {
			return r.rule, true
		}
	}
	return nil, false
}

// RegisterNotificationRule adds a rule, or replaces the one with the same name
// in place.
func RegisterNotificationRule(name string, rule NotificationRule) {
	rulesMu.Lock()
	defer rulesMu.Unlock()
	for i, r := range notificationRules {
		if r.name == name {
			notificationRules[i].rule = rule
			return
		}
	}
	notificationRules = append(notificationRules, namedRule{name, rule})
}

// DefaultNotificationRules returns the registered rules in emission order.
func DefaultNotificationRules() []NotificationRule {
	rulesMu.RLock()
	defer rulesMu.RUnlock()
	out := make([]NotificationRule, len(notificationRules))
	for i, r := range notificationRules {
		out[i] = r.rule
	}
	return out
}

func moneyPtr(m core.Money) *core.Money { return &m }

// ExpenseAlertRule fires when this month's expenses exceed income.
type ExpenseAlertRule struct{}

func (ExpenseAlertRule) Evaluate(in NotificationInput) []core.Notification {
	if in.Expenses.Cents <= 0 || in.Income.Cents <= 0 || in.Expenses.Cents <= in.Income.Cents {
		return nil
	}
	excess := in.Expenses.Sub(in.Income)
	over := int(excess.Decimal().Div(in.Income.Decimal()).Mul(decimal.NewFromInt(100)).Round(0).IntPart())

	msg := fmt.Sprintf("🚨 Your expenses (%s) exceed your income (%s) by %s. Please reduce your spending!",
		in.Expenses.Display(), in.Income.Display(), excess.Display())
	switch {
	case over > 50:
		msg = fmt.Sprintf("🚨 CRITICAL: Your expenses are %d%% higher than your income! You're spending %s more than you earn. Reduce expenses immediately!",
			over, excess.Display())
	case over > 25:
		msg = fmt.Sprintf("⚠️ WARNING: Your expenses exceed income by %d%% (%s over). Please cut back on spending!",
			over, excess.Display())
	}

	return []core.Notification{{
		ID:       "expenses_exceed_income",
		Icon:     "🚨",
		Message:  msg,
		Type:     core.NotifyExpenseAlert,
		Priority: 0.5,
		Amount:   moneyPtr(excess),
		Percent:  over,
	}}
}

// ExpiringPlanRule fires for active plans ending within the next 7 days.
type ExpiringPlanRule struct{}

func (ExpiringPlanRule) Evaluate(in NotificationInput) []core.Notification {
	var out []core.Notification
	for _, pa := range in.Plans {
		p := pa.Plan
		if !p.IsActive() || p.EndDate.IsZero() {
			continue
		}
		days := in.Today.DaysUntil(p.EndDate)
		if days < 0 || days > 7 {
			continue
		}

		when := fmt.Sprintf("expires in %d days", days)
		switch days {
		case 0:
			when = "expires today"
		case 1:
			when = "expires tomorrow"
		}
		out = append(out, core.Notification{
			ID:        "plan_exp_" + p.DisplayID(),
			Icon:      "⏰",
			Message:   fmt.Sprintf("Plan '%s' %s", p.Name, when),
			Type:      core.NotifyPlanExpiration,
			Priority:  0,
			SavingsID: p.DisplayID(),
		})
	}
	return out
}

// RegularDepositRule reminds about plans with a monthly budget that have not
// received a deposit in 30 days, counting from creation when there is none.
type RegularDepositRule struct{}

func (RegularDepositRule) Evaluate(in NotificationInput) []core.Notification {
	var out []core.Notification
	for _, pa := range in.Plans {
		p := pa.Plan
		if !p.IsActive() || p.MonthlyBudget.Cents <= 0 {
			continue
		}
		since := pa.LastDeposit
		if since.IsZero() {
			since = core.DateOf(p.CreatedAt, in.Location)
		}
		days := since.DaysUntil(in.Today)
		if days < 30 {
			continue
		}

		msg := fmt.Sprintf("Time to save! '%s' needs your monthly deposit of %s", p.Name, p.MonthlyBudget.Display())
		if days >= 60 {
			msg = fmt.Sprintf("⚠️ You haven't saved to '%s' in %d months. Deposit %s now!", p.Name, days/30, p.MonthlyBudget.Display())
		}
		out = append(out, core.Notification{
			ID:        "regular_deposit_" + p.DisplayID(),
			Icon:      "💰",
			Message:   msg,
			Type:      core.NotifyRegularDeposit,
			Priority:  1,
			SavingsID: p.DisplayID(),
			Amount:    moneyPtr(p.MonthlyBudget),
		})
	}
	return out
}

// BehindScheduleRule compares saved progress with elapsed time. Elapsed time is
// capped at the plan duration, so an overdue plan counts as 100% elapsed.
type BehindScheduleRule struct{}

func (BehindScheduleRule) Evaluate(in NotificationInput) []core.Notification {
	var out []core.Notification
	hundred := decimal.NewFromInt(100)
	for _, pa := range in.Plans {
		p := pa.Plan
		if !p.IsActive() || p.IsFinished() || p.StartDate.IsZero() || p.EndDate.IsZero() {
			continue
		}
		total := p.StartDate.DaysUntil(p.EndDate)
		elapsed := p.StartDate.DaysUntil(in.Today)
		if total <= 0 || elapsed <= 0 {
			continue
		}
		if elapsed > total {
			elapsed = total
		}

		fraction := decimal.NewFromInt(int64(elapsed)).Div(decimal.NewFromInt(int64(total)))
		expected := core.MoneyFromDecimal(p.Goal.Decimal().Mul(fraction))
		behindAmount := expected.Sub(p.Saved)
		behindPct := fraction.Mul(hundred).Sub(p.Saved.Decimal().Div(p.Goal.Decimal()).Mul(hundred))

		threshold := p.Goal.Percent(20)
		if !behindPct.GreaterThan(decimal.NewFromInt(30)) && behindAmount.Cents <= threshold.Cents {
			continue
		}

		pct := int(behindPct.Round(0).IntPart())
		msg := fmt.Sprintf("⚠️ '%s' is behind schedule. You need to save %s more to catch up!", p.Name, behindAmount.Display())
		if behindPct.GreaterThan(decimal.NewFromInt(50)) {
			msg = fmt.Sprintf("🚨 '%s' is way behind! You're %d%% behind schedule. Save %s to catch up!", p.Name, pct, behindAmount.Display())
		}
		out = append(out, core.Notification{
			ID:        "low_progress_" + p.DisplayID(),
			Icon:      "📉",
			Message:   msg,
			Type:      core.NotifyLowProgress,
			Priority:  2,
			SavingsID: p.DisplayID(),
			Amount:    moneyPtr(behindAmount),
			Percent:   pct,
		})
	}
	return out
}

// SavingSuggestionRule proposes a per-week or per-month contribution for
// plans ending within 90 days.
type SavingSuggestionRule struct{}

func (SavingSuggestionRule) Evaluate(in NotificationInput) []core.Notification {
	var out []core.Notification
	for _, pa := range in.Plans {
		p := pa.Plan
		if !p.IsActive() || p.IsFinished() || p.EndDate.IsZero() {
			continue
		}
		days := in.Today.DaysUntil(p.EndDate)
		if days <= 0 || days > 90 {
			continue
		}

		remaining := p.Remaining()
		var (
			per    string
			amount core.Money
		)
		if days <= 30 {
			weeks := int64(math.Max(1, math.Ceil(float64(days)/7)))
			amount = core.MoneyFromDecimal(remaining.Decimal().Div(decimal.NewFromInt(weeks)))
			per = "week"
		} else {
			months := int64(math.Max(1, math.Ceil(float64(days)/30)))
			amount = core.MoneyFromDecimal(remaining.Decimal().Div(decimal.NewFromInt(months)))
			per = "month"
		}

		out = append(out, core.Notification{
			ID:   "suggestion_" + p.DisplayID(),
			Icon: "💡",
			Message: fmt.Sprintf("💡 To reach your goal for '%s', save %s per %s (%s remaining)",
				p.Name, amount.Display(), per, remaining.Display()),
			Type:      core.NotifySavingSuggest,
			Priority:  3,
			SavingsID: p.DisplayID(),
			Amount:    moneyPtr(amount),
		})
	}
	return out
}

// InactivePlanRule flags unfinished plans untouched for 60 days or more.
type InactivePlanRule struct{}

func (InactivePlanRule) Evaluate(in NotificationInput) []core.Notification {
	var out []core.Notification
	for _, pa := range in.Plans {
		p := pa.Plan
		if !p.IsActive() || p.IsFinished() {
			continue
		}
		last := core.DateOf(p.CreatedAt, in.Location)
		if pa.LastTransaction.After(last.Time) {
			last = pa.LastTransaction
		}
		days := last.DaysUntil(in.Today)
		if days < 60 {
			continue
		}

		out = append(out, core.Notification{
			ID:   "inactive_" + p.DisplayID(),
			Icon: "💤",
			Message: fmt.Sprintf("💤 '%s' hasn't been updated in %d months. Still need %s to reach your goal!",
				p.Name, days/30, p.Remaining().Display()),
			Type:      core.NotifyInactivePlan,
			Priority:  4,
			SavingsID: p.DisplayID(),
			Amount:    moneyPtr(p.Remaining()),
		})
	}
	return out
}
