package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"spendy/internal/core"
)

// TransactionParams describes one balance change on a savings plan.
type TransactionParams struct {
	UserID     string
	PlanID     int64
	Type       core.TransactionType
	Amount     core.Money
	FundSource string
	Date       core.Date
	// Reactivate flips the plan back to Active on a deposit.
	Reactivate bool
}

type TransactionResult struct {
	Plan        core.SavingsPlan
	Transaction core.Transaction
	Reactivated bool
	// TransferActivityID is set when the change moved money to or from a
	// pseudo-account.
	TransferActivityID string
}

// ApplyTransaction changes a plan balance and appends the log row in a single
// database transaction. A deposit from the remaining budget or a withdrawal to
// the main wallet also writes the typed budget transfer and its activity
// entry inside the same transaction.
func (r *SQLiteRepository) ApplyTransaction(ctx context.Context, p TransactionParams) (TransactionResult, error) {
	if err := p.Type.Validate(); err != nil {
		return TransactionResult{}, err
	}
	if err := p.Amount.Validate(); err != nil {
		return TransactionResult{}, err
	}
	if p.Reactivate && p.Type != core.Deposit {
		return TransactionResult{}, core.ErrReactivateWithdraw
	}

	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return TransactionResult{}, fmt.Errorf("begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	plan, err := scanPlan(tx.QueryRowContext(ctx,
		`SELECT `+planColumns+` FROM savings s WHERE s.id = ? AND s.user_id = ?`, p.PlanID, p.UserID))
	if errors.Is(err, sql.ErrNoRows) {
		return TransactionResult{}, core.ErrPlanNotFound
	}
	if err != nil {
		return TransactionResult{}, fmt.Errorf("load savings plan %d: %w", p.PlanID, err)
	}

	delta := p.Amount.Cents
	if p.Type == core.Withdraw {
		if plan.Locked {
			return TransactionResult{}, core.ErrPlanLocked
		}
		if p.Amount.Cents > plan.Saved.Cents {
			return TransactionResult{}, &core.InsufficientFundsError{Available: plan.Saved}
		}
		delta = -delta
	}

	// The guard on saved_cents keeps the balance non-negative even if the row
	// changed after it was read.
	var newSaved int64
	err = tx.QueryRowContext(ctx, `
		UPDATE savings
		SET saved_cents = saved_cents + ?,
			status = CASE WHEN ? THEN ? ELSE status END
		WHERE id = ? AND saved_cents + ? >= 0
		RETURNING saved_cents`,
		delta, p.Reactivate, string(core.StatusActive), plan.ID, delta).Scan(&newSaved)
	if errors.Is(err, sql.ErrNoRows) {
		return TransactionResult{}, &core.InsufficientFundsError{Available: plan.Saved}
	}
	if err != nil {
		return TransactionResult{}, fmt.Errorf("update savings balance: %w", err)
	}

	createdAt := r.timestamp()
	res, err := tx.ExecContext(ctx, `
		INSERT INTO transaction_log (savings_id, transaction_type, amount_cents, date, fund_source, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		plan.ID, string(p.Type), p.Amount.Cents, p.Date.String(), p.FundSource, createdAt)
	if err != nil {
		return TransactionResult{}, fmt.Errorf("insert transaction log: %w", err)
	}
	txID, err := res.LastInsertId()
	if err != nil {
		return TransactionResult{}, fmt.Errorf("read transaction id: %w", err)
	}

	txn := core.Transaction{
		ID:         txID,
		PlanID:     plan.ID,
		Type:       p.Type,
		Amount:     p.Amount,
		Date:       p.Date,
		FundSource: p.FundSource,
		CreatedAt:  parseTimestamp(createdAt),
	}

	result := TransactionResult{Transaction: txn}
	if source, ok := core.TransferSourceFor(p.Type, p.FundSource); ok {
		activityID, err := insertTransfer(ctx, tx, plan, txn, source, createdAt)
		if err != nil {
			return TransactionResult{}, err
		}
		result.TransferActivityID = activityID
	}

	if err := tx.Commit(); err != nil {
		return TransactionResult{}, fmt.Errorf("commit transaction: %w", err)
	}

	result.Reactivated = p.Reactivate && plan.Status != core.StatusActive
	plan.Saved = core.Money{Cents: newSaved}
	if p.Reactivate {
		plan.Status = core.StatusActive
	}
	result.Plan = plan

	slog.InfoContext(ctx, "Savings transaction applied",
		"savings_id", plan.DisplayID(),
		"transaction_id", txn.DisplayID(),
		"type", p.Type,
		"amount_cents", p.Amount.Cents,
		"new_saved_cents", newSaved,
		"fund_source", p.FundSource)

	return result, nil
}

func insertTransfer(ctx context.Context, tx *sql.Tx, plan core.SavingsPlan, txn core.Transaction, source core.TransferSource, createdAt string) (string, error) {
	activityID := newActivityID()
	desc := core.DescribeTransfer(source, txn.Amount, plan.DisplayID(), txn.DisplayID())

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO activity_log (activity_id, user_id, related_table, related_record_id, action_type,
			action_description, created_at)
		VALUES (?, ?, 'savings', ?, ?, ?, ?)`,
		activityID, plan.UserID, plan.DisplayID(), source.ActionType(), desc, createdAt); err != nil {
		return "", fmt.Errorf("insert transfer activity: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO budget_transfers (user_id, savings_id, transaction_id, activity_id, source,
			amount_cents, date, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		plan.UserID, plan.ID, txn.ID, activityID, string(source), txn.Amount.Cents,
		txn.Date.String(), createdAt); err != nil {
		return "", fmt.Errorf("insert budget transfer: %w", err)
	}
	return activityID, nil
}

// ListTransactions returns the plan's log newest first.
func (r *SQLiteRepository) ListTransactions(ctx context.Context, userID string, planID int64) ([]core.Transaction, error) {
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	rows, err := r.db.QueryContext(ctx, `
		SELECT t.id, t.savings_id, t.transaction_type, t.amount_cents, t.date, t.fund_source, t.created_at
		FROM transaction_log t
		JOIN savings s ON s.id = t.savings_id
		WHERE t.savings_id = ? AND s.user_id = ?
		ORDER BY t.date DESC, t.id DESC`, planID, userID)
	if err != nil {
		return nil, fmt.Errorf("list transactions: %w", err)
	}
	defer rows.Close()

	var out []core.Transaction
	for rows.Next() {
		var (
			t         core.Transaction
			txType    string
			date      sql.NullString
			createdAt string
		)
		if err := rows.Scan(&t.ID, &t.PlanID, &txType, &t.Amount.Cents, &date, &t.FundSource, &createdAt); err != nil {
			return nil, fmt.Errorf("scan transaction: %w", err)
		}
		t.Type = core.TransactionType(txType)
		t.Date = parseDate(date)
		t.CreatedAt = parseTimestamp(createdAt)
		out = append(out, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate transactions: %w", err)
	}
	return out, nil
}
