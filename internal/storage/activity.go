package storage

import (
	"context"
	"fmt"
	"strings"

	"spendy/internal/core"
)

const (
	DefaultActivityLimit = 100
	MaxActivityLimit     = 1000
)

// ActivityFilter narrows an activity log query. Zero fields are ignored.
type ActivityFilter struct {
	UserID          string
	RelatedTable    string
	RelatedRecordID string
	ActionType      string
	StartDate       core.Date
	EndDate         core.Date
	Limit           int
	Offset          int
}

// Normalize clamps the paging values into their allowed ranges.
func (f ActivityFilter) Normalize() ActivityFilter {
	if f.Limit <= 0 {
		f.Limit = DefaultActivityLimit
	}
	if f.Limit > MaxActivityLimit {
		f.Limit = MaxActivityLimit
	}
	if f.Offset < 0 {
		f.Offset = 0
	}
	return f
}

// InsertActivity appends an audit entry, assigning an id and timestamp when
// the caller left them empty.
func (r *SQLiteRepository) InsertActivity(ctx context.Context, e core.ActivityEntry) (core.ActivityEntry, error) {
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	if e.ID == "" {
		e.ID = newActivityID()
	}
	createdAt := r.timestamp()
	if !e.CreatedAt.IsZero() {
		createdAt = e.CreatedAt.UTC().Format(timestampLayout)
	}

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO activity_log (activity_id, user_id, related_table, related_record_id, action_type,
			action_description, ip_address, user_agent, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (activity_id) DO NOTHING`,
		e.ID, e.UserID, e.RelatedTable, e.RelatedRecordID, e.ActionType, e.Description,
		e.IPAddress, e.UserAgent, createdAt)
	if err != nil {
		return core.ActivityEntry{}, fmt.Errorf("insert activity: %w", err)
	}
	e.CreatedAt = parseTimestamp(createdAt)
	return e, nil
}

// QueryActivity returns one page of matching entries, newest first, and the
// total number of matches.
func (r *SQLiteRepository) QueryActivity(ctx context.Context, f ActivityFilter) ([]core.ActivityEntry, int, error) {
	f = f.Normalize()

	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	where := []string{"user_id = ?"}
	args := []any{f.UserID}
	if f.RelatedTable != "" {
		where = append(where, "related_table = ?")
		args = append(args, f.RelatedTable)
	}
	if f.RelatedRecordID != "" {
		where = append(where, "related_record_id = ?")
		args = append(args, f.RelatedRecordID)
	}
	if f.ActionType != "" {
		where = append(where, "action_type = ?")
		args = append(args, f.ActionType)
	}
	if !f.StartDate.IsZero() {
		where = append(where, "created_at >= ?")
		args = append(args, r.dayStart(f.StartDate))
	}
	if !f.EndDate.IsZero() {
		where = append(where, "created_at < ?")
		args = append(args, r.dayStart(f.EndDate.AddDays(1)))
	}
	clause := strings.Join(where, " AND ")

	var total int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM activity_log WHERE `+clause, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count activity: %w", err)
	}

	rows, err := r.db.QueryContext(ctx, `
		SELECT activity_id, user_id, related_table, related_record_id, action_type, action_description,
			ip_address, user_agent, created_at
		FROM activity_log WHERE `+clause+`
		ORDER BY created_at DESC, activity_id DESC
		LIMIT ? OFFSET ?`, append(args, f.Limit, f.Offset)...)
	if err != nil {
		return nil, 0, fmt.Errorf("query activity: %w", err)
	}
	defer rows.Close()

	var out []core.ActivityEntry
	for rows.Next() {
		var (
			e         core.ActivityEntry
			createdAt string
		)
		if err := rows.Scan(&e.ID, &e.UserID, &e.RelatedTable, &e.RelatedRecordID, &e.ActionType,
			&e.Description, &e.IPAddress, &e.UserAgent, &createdAt); err != nil {
			return nil, 0, fmt.Errorf("scan activity: %w", err)
		}
		e.CreatedAt = parseTimestamp(createdAt)
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterate activity: %w", err)
	}
	return out, total, nil
}
