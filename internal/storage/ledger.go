package storage

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"spendy/internal/core"
)

func ledgerTable(kind core.LedgerKind) (string, error) {
	switch kind {
	case core.LedgerExpenses:
		return "expenses", nil
	case core.LedgerIncome:
		return "income", nil
	default:
		return "", fmt.Errorf("unknown ledger %q", kind)
	}
}

func (r *SQLiteRepository) AddLedgerEntry(ctx context.Context, kind core.LedgerKind, e core.LedgerEntry) (core.LedgerEntry, error) {
	table, err := ledgerTable(kind)
	if err != nil {
		return core.LedgerEntry{}, err
	}

	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	createdAt := r.timestamp()
	res, err := r.db.ExecContext(ctx, `
		INSERT INTO `+table+` (user_id, category, amount_cents, note, date, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		e.UserID, e.Category, e.Amount.Cents, e.Note, e.Date.String(), createdAt)
	if err != nil {
		return core.LedgerEntry{}, fmt.Errorf("insert %s entry: %w", table, err)
	}
	if e.ID, err = res.LastInsertId(); err != nil {
		return core.LedgerEntry{}, fmt.Errorf("read %s id: %w", table, err)
	}
	e.CreatedAt = parseTimestamp(createdAt)

	slog.InfoContext(ctx, "Ledger entry saved",
		"ledger", table,
		"id", e.ID,
		"user_id", e.UserID,
		"amount_cents", e.Amount.Cents,
		"date", e.Date.String())
	return e, nil
}

// ListLedgerEntries returns one month of entries, newest first.
func (r *SQLiteRepository) ListLedgerEntries(ctx context.Context, kind core.LedgerKind, userID string, month core.Month) ([]core.LedgerEntry, error) {
	table, err := ledgerTable(kind)
	if err != nil {
		return nil, err
	}

	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	rows, err := r.db.QueryContext(ctx, `
		SELECT id, user_id, category, amount_cents, note, date, created_at
		FROM `+table+`
		WHERE user_id = ? AND substr(date, 1, 7) = ?
		ORDER BY date DESC, id DESC`, userID, month.String())
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", table, err)
	}
	defer rows.Close()

	var out []core.LedgerEntry
	for rows.Next() {
		var (
			e         core.LedgerEntry
			date      sql.NullString
			createdAt string
		)
		if err := rows.Scan(&e.ID, &e.UserID, &e.Category, &e.Amount.Cents, &e.Note, &date, &createdAt); err != nil {
			return nil, fmt.Errorf("scan %s entry: %w", table, err)
		}
		e.Date = parseDate(date)
		e.CreatedAt = parseTimestamp(createdAt)
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate %s: %w", table, err)
	}
	return out, nil
}

// SumLedger totals one month of a ledger.
func (r *SQLiteRepository) SumLedger(ctx context.Context, kind core.LedgerKind, userID string, month core.Month) (core.Money, error) {
	table, err := ledgerTable(kind)
	if err != nil {
		return core.Money{}, err
	}
	return r.sum(ctx, "sum "+table, `
		SELECT COALESCE(SUM(amount_cents), 0) FROM `+table+`
		WHERE user_id = ? AND substr(date, 1, 7) = ?`, userID, month.String())
}

// ExpenseCategoryTotals groups one month of expenses by category, largest
// total first.
func (r *SQLiteRepository) ExpenseCategoryTotals(ctx context.Context, userID string, month core.Month) ([]core.CategoryTotal, error) {
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	rows, err := r.db.QueryContext(ctx, `
		SELECT category, SUM(amount_cents) AS total, COUNT(*)
		FROM expenses
		WHERE user_id = ? AND substr(date, 1, 7) = ?
		GROUP BY category
		ORDER BY total DESC, category`, userID, month.String())
	if err != nil {
		return nil, fmt.Errorf("group expenses by category: %w", err)
	}
	defer rows.Close()

	var out []core.CategoryTotal
	for rows.Next() {
		var c core.CategoryTotal
		if err := rows.Scan(&c.Category, &c.Amount.Cents, &c.Count); err != nil {
			return nil, fmt.Errorf("scan category total: %w", err)
		}
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate category totals: %w", err)
	}
	return out, nil
}

// DailyExpenseTotals sums one month of expenses per day of the month.
func (r *SQLiteRepository) DailyExpenseTotals(ctx context.Context, userID string, month core.Month) (map[int]core.Money, error) {
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	rows, err := r.db.QueryContext(ctx, `
		SELECT CAST(substr(date, 9, 2) AS INTEGER) AS day, SUM(amount_cents)
		FROM expenses
		WHERE user_id = ? AND substr(date, 1, 7) = ?
		GROUP BY day`, userID, month.String())
	if err != nil {
		return nil, fmt.Errorf("group expenses by day: %w", err)
	}
	defer rows.Close()

	out := make(map[int]core.Money)
	for rows.Next() {
		var (
			day   int
			cents int64
		)
		if err := rows.Scan(&day, &cents); err != nil {
			return nil, fmt.Errorf("scan daily total: %w", err)
		}
		out[day] = core.Money{Cents: cents}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate daily totals: %w", err)
	}
	return out, nil
}

// SumTransfers totals the typed budget transfers of one source in a month.
func (r *SQLiteRepository) SumTransfers(ctx context.Context, userID string, month core.Month, source core.TransferSource) (core.Money, error) {
	return r.sum(ctx, "sum budget transfers", `
		SELECT COALESCE(SUM(amount_cents), 0) FROM budget_transfers
		WHERE user_id = ? AND source = ? AND substr(date, 1, 7) = ?`, userID, string(source), month.String())
}

// SumSavingsDeposits totals deposits made this month into the user's plans.
func (r *SQLiteRepository) SumSavingsDeposits(ctx context.Context, userID string, month core.Month) (core.Money, error) {
	return r.sum(ctx, "sum savings deposits", `
		SELECT COALESCE(SUM(t.amount_cents), 0)
		FROM transaction_log t
		JOIN savings s ON s.id = t.savings_id
		WHERE s.user_id = ? AND t.transaction_type = 'deposit' AND substr(t.date, 1, 7) = ?`,
		userID, month.String())
}

// LegacyTransferDescriptions returns descriptions of transfer activity rows
// that have no typed budget_transfers counterpart. The month is the local
// calendar month of the repository zone.
func (r *SQLiteRepository) LegacyTransferDescriptions(ctx context.Context, userID string, month core.Month, actionType string) ([]string, error) {
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	start, end := r.monthBounds(month)
	rows, err := r.db.QueryContext(ctx, `
		SELECT a.action_description FROM activity_log a
		WHERE a.user_id = ? AND a.action_type = ? AND a.created_at >= ? AND a.created_at < ?
			AND NOT EXISTS (SELECT 1 FROM budget_transfers b WHERE b.activity_id = a.activity_id)`,
		userID, actionType, start, end)
	if err != nil {
		return nil, fmt.Errorf("query legacy transfers: %w", err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var desc string
		if err := rows.Scan(&desc); err != nil {
			return nil, fmt.Errorf("scan legacy transfer: %w", err)
		}
		out = append(out, desc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate legacy transfers: %w", err)
	}
	return out, nil
}

func (r *SQLiteRepository) sum(ctx context.Context, name, query string, args ...any) (core.Money, error) {
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	var cents int64
	if err := r.db.QueryRowContext(ctx, query, args...).Scan(&cents); err != nil {
		return core.Money{}, fmt.Errorf("%s: %w", name, err)
	}
	return core.Money{Cents: cents}, nil
}
