package core

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

const (
	Deposit  TransactionType = "deposit"
	Withdraw TransactionType = "withdraw"
)

const (
	StatusActive    PlanStatus = "Active"
	StatusCompleted PlanStatus = "Completed"
	StatusExpired   PlanStatus = "Expired"
	StatusCancelled PlanStatus = "Cancelled"
)

const (
	// Default fund sources used when the caller does not name one.
	FundSourceDirectDeposit     = "Direct Deposit"
	FundSourceSavingsWithdrawal = "Savings Withdrawal"
	FundSourceAutoSave          = "Auto-Save from Income"
)

type (
	TransactionType string

	PlanStatus string

	SavingsPlan struct {
		ID            int64      `json:"-"`
		UserID        string     `json:"user_id"`
		Name          string     `json:"plan_name"`
		Goal          Money      `json:"goal_amount"`
		Saved         Money      `json:"saved_amount"`
		StartDate     Date       `json:"start_date"`
		EndDate       Date       `json:"end_date"`
		Status        PlanStatus `json:"status"`
		Locked        bool       `json:"is_locked"`
		MonthlyBudget Money      `json:"monthly_budget"`
		CreatedAt     time.Time  `json:"created_at"`
	}

	// Transaction is one row of the append-only balance log.
	Transaction struct {
		ID         int64           `json:"-"`
		PlanID     int64           `json:"-"`
		Type       TransactionType `json:"transaction_type"`
		Amount     Money           `json:"amount"`
		Date       Date            `json:"date"`
		FundSource string          `json:"fund_source"`
		CreatedAt  time.Time       `json:"created_at"`
	}

	ActivityEntry struct {
		ID              string    `json:"activity_id"`
		UserID          string    `json:"user_id"`
		RelatedTable    string    `json:"related_table"`
		RelatedRecordID string    `json:"related_record_id"`
		ActionType      string    `json:"action_type"`
		Description     string    `json:"action_description"`
		IPAddress       string    `json:"ip_address"`
		UserAgent       string    `json:"user_agent"`
		CreatedAt       time.Time `json:"created_at"`
	}

	// LedgerEntry is an expense or an income row.
	LedgerEntry struct {
		ID        int64     `json:"id"`
		UserID    string    `json:"user_id"`
		Category  string    `json:"category"`
		Amount    Money     `json:"amount"`
		Note      string    `json:"note"`
		Date      Date      `json:"date"`
		CreatedAt time.Time `json:"created_at"`
	}
)

func (t TransactionType) Validate() error {
	switch t {
	case Deposit, Withdraw:
		return nil
	default:
		return ErrInvalidTransactionType
	}
}

func (s PlanStatus) Validate() error {
	switch s {
	case StatusActive, StatusCompleted, StatusExpired, StatusCancelled:
		return nil
	default:
		return ErrInvalidStatus
	}
}

// DisplayID returns the human readable plan id (sav001).
func (p SavingsPlan) DisplayID() string {
	return FormatDisplayID(PlanIDPrefix, p.ID)
}

// DurationDays is the inclusive-exclusive day span between start and end date.
func (p SavingsPlan) DurationDays() int {
	if p.StartDate.IsZero() || p.EndDate.IsZero() {
		return 0
	}
	return p.StartDate.DaysUntil(p.EndDate)
}

func (p SavingsPlan) Remaining() Money {
	if p.Saved.Cents >= p.Goal.Cents {
		return Money{}
	}
	return Money{Cents: p.Goal.Cents - p.Saved.Cents}
}

func (p SavingsPlan) IsActive() bool {
	return p.Status == StatusActive
}

func (p SavingsPlan) IsFinished() bool {
	return p.Saved.Cents >= p.Goal.Cents
}

func (p SavingsPlan) Validate() error {
	if strings.TrimSpace(p.Name) == "" {
		return ErrEmptyPlanName
	}
	if len(p.Name) > 100 {
		return ErrPlanNameTooLong
	}
	if err := p.Goal.Validate(); err != nil {
		return err
	}
	if p.MonthlyBudget.Cents < 0 {
		return ErrInvalidAmount
	}
	if p.StartDate.IsZero() || p.EndDate.IsZero() {
		return ErrMissingDates
	}
	if p.EndDate.Before(p.StartDate.Time) {
		return ErrInvalidDateRange
	}
	return nil
}

func (p SavingsPlan) MarshalJSON() ([]byte, error) {
	type plan SavingsPlan
	return json.Marshal(struct {
		SavingsID string `json:"savings_id"`
		Duration  string `json:"duration"`
		plan
	}{
		SavingsID: p.DisplayID(),
		Duration:  fmt.Sprintf("%d Days", p.DurationDays()),
		plan:      plan(p),
	})
}

func (t Transaction) DisplayID() string {
	return FormatDisplayID(TransactionIDPrefix, t.ID)
}

func (t Transaction) MarshalJSON() ([]byte, error) {
	type txn Transaction
	return json.Marshal(struct {
		TransactionID string `json:"transaction_id"`
		SavingsID     string `json:"savings_id"`
		txn
	}{
		TransactionID: t.DisplayID(),
		SavingsID:     FormatDisplayID(PlanIDPrefix, t.PlanID),
		txn:           txn(t),
	})
}

func (e LedgerEntry) Validate() error {
	if e.Date.IsZero() {
		return ErrInvalidDate
	}
	if err := e.Amount.Validate(); err != nil {
		return err
	}
	if strings.TrimSpace(e.Category) == "" {
		return ErrEmptyCategory
	}
	if len(e.Note) > 200 {
		return ErrNoteTooLong
	}
	return nil
}

var (
	// ErrValidation matches every input validation failure via errors.Is.
	ErrValidation = errors.New("validation failed")

	ErrInvalidAmount          = newValidationError("invalid amount")
	ErrInvalidTransactionType = newValidationError("invalid transaction type")
	ErrInvalidStatus          = newValidationError("invalid plan status")
	ErrInvalidDate            = newValidationError("invalid date")
	ErrInvalidMonth           = newValidationError("invalid month")
	ErrInvalidDateRange       = newValidationError("end date must not be before start date")
	ErrMissingDates           = newValidationError("start and end date are required")
	ErrEmptyPlanName          = newValidationError("empty plan name")
	ErrPlanNameTooLong        = newValidationError("plan name too long (max 100 characters)")
	ErrEmptyCategory          = newValidationError("empty category")
	ErrNoteTooLong            = newValidationError("note too long (max 200 characters)")
	ErrInvalidID              = newValidationError("invalid id")
	ErrReactivateWithdraw     = newValidationError("reactivate is only allowed on deposits")

	ErrUnauthenticated   = errors.New("user not authenticated")
	ErrPlanNotFound      = errors.New("savings plan not found")
	ErrPlanLocked        = errors.New("locked")
	ErrInsufficientFunds = errors.New("insufficient funds")
)

type validationError string

func newValidationError(msg string) error { return validationError(msg) }

func (e validationError) Error() string { return string(e) }

func (e validationError) Is(target error) bool { return target == ErrValidation }

// InsufficientFundsError reports a withdrawal larger than the plan balance.
// It matches ErrInsufficientFunds via errors.Is.
type InsufficientFundsError struct {
	Available Money
}

func (e *InsufficientFundsError) Error() string {
	return "Insufficient funds. Available: " + e.Available.Display()
}

func (e *InsufficientFundsError) Is(target error) bool { return target == ErrInsufficientFunds }

// LedgerKind selects the expenses or the income ledger.
type LedgerKind string

const (
	LedgerExpenses LedgerKind = "expenses"
	LedgerIncome   LedgerKind = "income"
)

// PlanActivity is an active plan together with the dates of its latest
// transactions, as needed by the notification rules.
type PlanActivity struct {
	Plan            SavingsPlan
	LastDeposit     Date
	LastTransaction Date
}

// Actor identifies who performs an operation and from where.
type Actor struct {
	UserID    string
	IPAddress string
	UserAgent string
}
