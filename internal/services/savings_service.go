package services

import (
	"context"
	"fmt"
	"strings"

	"spendy/internal/core"
	"spendy/internal/storage"
)

type SavingsStore interface {
	CreatePlan(ctx context.Context, p core.SavingsPlan) (core.SavingsPlan, error)
	GetPlan(ctx context.Context, userID string, id int64) (core.SavingsPlan, error)
	ListPlans(ctx context.Context, userID string, ended bool) ([]core.SavingsPlan, error)
	UpdatePlan(ctx context.Context, p core.SavingsPlan) error
	ApplyTransaction(ctx context.Context, p storage.TransactionParams) (storage.TransactionResult, error)
	ListTransactions(ctx context.Context, userID string, planID int64) ([]core.Transaction, error)
}

// StatsInvalidator drops cached monthly figures of a user after a write.
type StatsInvalidator interface {
	Invalidate(userID string)
}

// SavingsService runs plan management and the deposit/withdraw engine.
type SavingsService struct {
	store    SavingsStore
	activity *ActivityService
	stats    StatsInvalidator
	clock    Clock
}

func NewSavingsService(store SavingsStore, activity *ActivityService, stats StatsInvalidator, clock Clock) *SavingsService {
	return &SavingsService{store: store, activity: activity, stats: stats, clock: clock}
}

type CreatePlanParams struct {
	Name          string
	Goal          core.Money
	StartDate     core.Date
	EndDate       core.Date
	Locked        bool
	MonthlyBudget core.Money
}

// UpdatePlanParams holds optional changes; nil fields are left alone.
type UpdatePlanParams struct {
	Name          *string
	Goal          *core.Money
	StartDate     *core.Date
	EndDate       *core.Date
	Locked        *bool
	MonthlyBudget *core.Money
	Status        *core.PlanStatus
}

type TransactionParams struct {
	PlanID     int64
	Amount     core.Money
	FundSource string
	Reactivate bool
}

func (s *SavingsService) CreatePlan(ctx context.Context, actor core.Actor, p CreatePlanParams) (core.SavingsPlan, error) {
	if actor.UserID == "" {
		return core.SavingsPlan{}, core.ErrUnauthenticated
	}

	plan := core.SavingsPlan{
		UserID:        actor.UserID,
		Name:          strings.TrimSpace(p.Name),
		Goal:          p.Goal,
		StartDate:     p.StartDate,
		EndDate:       p.EndDate,
		Status:        core.StatusActive,
		Locked:        p.Locked,
		MonthlyBudget: p.MonthlyBudget,
	}
	if err := plan.Validate(); err != nil {
		return core.SavingsPlan{}, err
	}

	plan, err := s.store.CreatePlan(ctx, plan)
	if err != nil {
		return core.SavingsPlan{}, fmt.Errorf("create plan: %w", err)
	}

	s.activity.record(ctx, actor, core.ActivityEntry{
		RelatedTable:    "savings",
		RelatedRecordID: plan.DisplayID(),
		ActionType:      ActionPlanCreate,
		Description:     "Created new savings plan: " + plan.Name,
	})
	return plan, nil
}

func (s *SavingsService) UpdatePlan(ctx context.Context, actor core.Actor, id int64, p UpdatePlanParams) (core.SavingsPlan, error) {
	if actor.UserID == "" {
		return core.SavingsPlan{}, core.ErrUnauthenticated
	}

	plan, err := s.store.GetPlan(ctx, actor.UserID, id)
	if err != nil {
		return core.SavingsPlan{}, err
	}
	wasLocked := plan.Locked

	if p.Name != nil {
		plan.Name = strings.TrimSpace(*p.Name)
	}
	if p.Goal != nil {
		plan.Goal = *p.Goal
	}
	if p.StartDate != nil {
		plan.StartDate = *p.StartDate
	}
	if p.EndDate != nil {
		plan.EndDate = *p.EndDate
	}
	if p.Locked != nil {
		plan.Locked = *p.Locked
	}
	if p.MonthlyBudget != nil {
		plan.MonthlyBudget = *p.MonthlyBudget
	}
	if p.Status != nil {
		if err := p.Status.Validate(); err != nil {
			return core.SavingsPlan{}, err
		}
		plan.Status = *p.Status
	}
	if err := plan.Validate(); err != nil {
		return core.SavingsPlan{}, err
	}

	if err := s.store.UpdatePlan(ctx, plan); err != nil {
		return core.SavingsPlan{}, err
	}

	s.activity.record(ctx, actor, core.ActivityEntry{
		RelatedTable:    "savings",
		RelatedRecordID: plan.DisplayID(),
		ActionType:      ActionPlanUpdate,
		Description:     "Updated savings plan: " + plan.Name,
	})
	if plan.Locked != wasLocked {
		state := "unlocked"
		if plan.Locked {
			state = "locked"
		}
		s.activity.record(ctx, actor, core.ActivityEntry{
			RelatedTable:    "savings",
			RelatedRecordID: plan.DisplayID(),
			ActionType:      ActionPlanLock,
			Description:     fmt.Sprintf("Savings plan %s: %s", state, plan.Name),
		})
	}
	return plan, nil
}

func (s *SavingsService) GetPlan(ctx context.Context, userID string, id int64) (core.SavingsPlan, error) {
	if userID == "" {
		return core.SavingsPlan{}, core.ErrUnauthenticated
	}
	return s.store.GetPlan(ctx, userID, id)
}

// ListPlans returns active plans, or ended ones when ended is set.
func (s *SavingsService) ListPlans(ctx context.Context, userID string, ended bool) ([]core.SavingsPlan, error) {
	if userID == "" {
		return nil, core.ErrUnauthenticated
	}
	plans, err := s.store.ListPlans(ctx, userID, ended)
	if err != nil {
		return nil, fmt.Errorf("list plans: %w", err)
	}
	return plans, nil
}

func (s *SavingsService) ListTransactions(ctx context.Context, userID string, planID int64) ([]core.Transaction, error) {
	if _, err := s.GetPlan(ctx, userID, planID); err != nil {
		return nil, err
	}
	txns, err := s.store.ListTransactions(ctx, userID, planID)
	if err != nil {
		return nil, fmt.Errorf("list transactions: %w", err)
	}
	return txns, nil
}

func (s *SavingsService) Deposit(ctx context.Context, actor core.Actor, p TransactionParams) (storage.TransactionResult, error) {
	if p.FundSource == "" {
		p.FundSource = core.FundSourceDirectDeposit
	}
	return s.apply(ctx, actor, core.Deposit, p)
}

// AutoSave deposits part of an income into a plan. It is a deposit whose fund
// source defaults to the income auto-save.
func (s *SavingsService) AutoSave(ctx context.Context, actor core.Actor, p TransactionParams) (storage.TransactionResult, error) {
	if p.FundSource == "" {
		p.FundSource = core.FundSourceAutoSave
	}
	return s.Deposit(ctx, actor, p)
}

func (s *SavingsService) Withdraw(ctx context.Context, actor core.Actor, p TransactionParams) (storage.TransactionResult, error) {
	if p.FundSource == "" {
		p.FundSource = core.FundSourceSavingsWithdrawal
	}
	return s.apply(ctx, actor, core.Withdraw, p)
}

func (s *SavingsService) apply(ctx context.Context, actor core.Actor, txType core.TransactionType, p TransactionParams) (storage.TransactionResult, error) {
	if actor.UserID == "" {
		return storage.TransactionResult{}, core.ErrUnauthenticated
	}

	res, err := s.store.ApplyTransaction(ctx, storage.TransactionParams{
		UserID:     actor.UserID,
		PlanID:     p.PlanID,
		Type:       txType,
		Amount:     p.Amount,
		FundSource: strings.TrimSpace(p.FundSource),
		Date:       s.clock.Today(),
		Reactivate: p.Reactivate,
	})
	if err != nil {
		return storage.TransactionResult{}, err
	}

	if s.stats != nil {
		s.stats.Invalidate(actor.UserID)
	}

	desc := fmt.Sprintf("Deposited %s to savings plan %s", p.Amount.Display(), res.Plan.DisplayID())
	action := ActionDeposit
	if txType == core.Withdraw {
		desc = fmt.Sprintf("Withdrew %s from savings plan %s", p.Amount.Display(), res.Plan.DisplayID())
		action = ActionWithdraw
	}
	s.activity.record(ctx, actor, core.ActivityEntry{
		RelatedTable:    "savings",
		RelatedRecordID: res.Plan.DisplayID(),
		ActionType:      action,
		Description:     desc,
	})
	return res, nil
}
