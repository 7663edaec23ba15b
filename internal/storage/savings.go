package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"spendy/internal/core"
)

const planColumns = `s.id, s.user_id, s.plan_name, s.goal_cents, s.saved_cents, s.start_date, s.end_date,
	s.status, s.is_locked, s.monthly_budget_cents, s.created_at`

func scanPlan(row rowScanner, extra ...any) (core.SavingsPlan, error) {
	var (
		p          core.SavingsPlan
		start, end sql.NullString
		status     string
		createdAt  string
	)
	dest := []any{&p.ID, &p.UserID, &p.Name, &p.Goal.Cents, &p.Saved.Cents, &start, &end,
		&status, &p.Locked, &p.MonthlyBudget.Cents, &createdAt}
	dest = append(dest, extra...)
	if err := row.Scan(dest...); err != nil {
		return core.SavingsPlan{}, err
	}
	p.StartDate = parseDate(start)
	p.EndDate = parseDate(end)
	p.Status = core.PlanStatus(status)
	p.CreatedAt = parseTimestamp(createdAt)
	return p, nil
}

// CreatePlan inserts a new plan and returns it with its assigned id.
func (r *SQLiteRepository) CreatePlan(ctx context.Context, p core.SavingsPlan) (core.SavingsPlan, error) {
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	createdAt := r.timestamp()
	res, err := r.db.ExecContext(ctx, `
		INSERT INTO savings (user_id, plan_name, goal_cents, saved_cents, start_date, end_date,
			status, is_locked, monthly_budget_cents, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		p.UserID, p.Name, p.Goal.Cents, p.Saved.Cents, dateArg(p.StartDate), dateArg(p.EndDate),
		string(p.Status), p.Locked, p.MonthlyBudget.Cents, createdAt)
	if err != nil {
		return core.SavingsPlan{}, fmt.Errorf("insert savings plan: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return core.SavingsPlan{}, fmt.Errorf("read savings plan id: %w", err)
	}

	p.ID = id
	p.CreatedAt = parseTimestamp(createdAt)

	slog.InfoContext(ctx, "Savings plan created",
		"savings_id", p.DisplayID(),
		"user_id", p.UserID,
		"goal_cents", p.Goal.Cents)
	return p, nil
}

// GetPlan loads a plan owned by userID. Plans of other users are reported as
// not found.
func (r *SQLiteRepository) GetPlan(ctx context.Context, userID string, id int64) (core.SavingsPlan, error) {
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	p, err := scanPlan(r.db.QueryRowContext(ctx,
		`SELECT `+planColumns+` FROM savings s WHERE s.id = ? AND s.user_id = ?`, id, userID))
	if errors.Is(err, sql.ErrNoRows) {
		return core.SavingsPlan{}, core.ErrPlanNotFound
	}
	if err != nil {
		return core.SavingsPlan{}, fmt.Errorf("get savings plan %d: %w", id, err)
	}
	return p, nil
}

// ListPlans returns the user's active plans, or the ended ones when ended is set.
func (r *SQLiteRepository) ListPlans(ctx context.Context, userID string, ended bool) ([]core.SavingsPlan, error) {
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	cmp := "="
	if ended {
		cmp = "<>"
	}
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+planColumns+` FROM savings s WHERE s.user_id = ? AND s.status `+cmp+` ? ORDER BY s.id DESC`,
		userID, string(core.StatusActive))
	if err != nil {
		return nil, fmt.Errorf("list savings plans: %w", err)
	}
	defer rows.Close()

	var plans []core.SavingsPlan
	for rows.Next() {
		p, err := scanPlan(rows)
		if err != nil {
			return nil, fmt.Errorf("scan savings plan: %w", err)
		}
		plans = append(plans, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate savings plans: %w", err)
	}
	return plans, nil
}

// UpdatePlan overwrites the editable fields of a plan. The balance is only
// changed through ApplyTransaction.
func (r *SQLiteRepository) UpdatePlan(ctx context.Context, p core.SavingsPlan) error {
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	res, err := r.db.ExecContext(ctx, `
		UPDATE savings
		SET plan_name = ?, goal_cents = ?, start_date = ?, end_date = ?, status = ?,
			is_locked = ?, monthly_budget_cents = ?
		WHERE id = ? AND user_id = ?`,
		p.Name, p.Goal.Cents, dateArg(p.StartDate), dateArg(p.EndDate), string(p.Status),
		p.Locked, p.MonthlyBudget.Cents, p.ID, p.UserID)
	if err != nil {
		return fmt.Errorf("update savings plan %d: %w", p.ID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update savings plan %d: %w", p.ID, err)
	}
	if n == 0 {
		return core.ErrPlanNotFound
	}

	slog.InfoContext(ctx, "Savings plan updated", "savings_id", p.DisplayID(), "status", p.Status)
	return nil
}

// ListPlanActivity returns the user's active plans with their latest deposit
// and latest transaction dates.
func (r *SQLiteRepository) ListPlanActivity(ctx context.Context, userID string) ([]core.PlanActivity, error) {
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	rows, err := r.db.QueryContext(ctx, `
		SELECT `+planColumns+`,
			(SELECT MAX(t.date) FROM transaction_log t
				WHERE t.savings_id = s.id AND t.transaction_type = 'deposit'),
			(SELECT MAX(t.date) FROM transaction_log t WHERE t.savings_id = s.id)
		FROM savings s
		WHERE s.user_id = ? AND s.status = ?
		ORDER BY s.id`, userID, string(core.StatusActive))
	if err != nil {
		return nil, fmt.Errorf("list plan activity: %w", err)
	}
	defer rows.Close()

	var out []core.PlanActivity
	for rows.Next() {
		var lastDeposit, lastTx sql.NullString
		p, err := scanPlan(rows, &lastDeposit, &lastTx)
		if err != nil {
			return nil, fmt.Errorf("scan plan activity: %w", err)
		}
		out = append(out, core.PlanActivity{
			Plan:            p,
			LastDeposit:     parseDate(lastDeposit),
			LastTransaction: parseDate(lastTx),
		})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate plan activity: %w", err)
	}
	return out, nil
}
