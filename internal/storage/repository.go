package storage

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"spendy/internal/core"

	_ "modernc.org/sqlite"
)

const (
	// DefaultQueryTimeout bounds every repository call when no option overrides it.
	DefaultQueryTimeout = 5 * time.Second

	timestampLayout = time.RFC3339
)

type SQLiteRepository struct {
	db      *sql.DB
	path    string
	timeout time.Duration
	now     func() time.Time
	loc     *time.Location
}

type Option func(*SQLiteRepository)

// WithLocation sets the zone calendar days are counted in when a query
// filters on the UTC created_at column.
func WithLocation(loc *time.Location) Option {
	return func(r *SQLiteRepository) {
		if loc != nil {
			r.loc = loc
		}
	}
}

// WithQueryTimeout sets the per-call database deadline.
func WithQueryTimeout(d time.Duration) Option {
	return func(r *SQLiteRepository) {
		if d > 0 {
			r.timeout = d
		}
	}
}

// WithClock overrides the source of created_at timestamps.
func WithClock(now func() time.Time) Option {
	return func(r *SQLiteRepository) {
		if now != nil {
			r.now = now
		}
	}
}

func NewSQLiteRepository(dbPath string, opts ...Option) (*SQLiteRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	if err := RunMigrations(dbPath); err != nil {
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	dsn := dbPath + "?_pragma=journal_mode(wal)&_pragma=synchronous(normal)&_pragma=foreign_keys(on)&_pragma=busy_timeout(5000)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}
	// SQLite allows one writer; a single pooled connection turns concurrent
	// transactions into a queue instead of SQLITE_BUSY failures.
	db.SetMaxOpenConns(1)

	repo := &SQLiteRepository{
		db:      db,
		path:    dbPath,
		timeout: DefaultQueryTimeout,
		now:     time.Now,
		loc:     time.UTC,
	}
	for _, opt := range opts {
		opt(repo)
	}

	ctx, cancel := repo.withTimeout(context.Background())
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	slog.Info("SQLite repository ready", "path", dbPath, "query_timeout", repo.timeout)
	return repo, nil
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// Ping reports whether the database answers within the query timeout.
func (r *SQLiteRepository) Ping(ctx context.Context) error {
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()
	return r.db.PingContext(ctx)
}

func (r *SQLiteRepository) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, r.timeout)
}

func (r *SQLiteRepository) timestamp() string {
	return r.now().UTC().Format(timestampLayout)
}

// dayStart is the created_at value at which day d begins in the repository
// zone.
func (r *SQLiteRepository) dayStart(d core.Date) string {
	y, m, day := d.Time.Date()
	return time.Date(y, m, day, 0, 0, 0, 0, r.loc).UTC().Format(timestampLayout)
}

// monthBounds returns the [start, end) created_at range of a local month.
func (r *SQLiteRepository) monthBounds(month core.Month) (string, string) {
	first := core.NewDate(month.Year, int(month.Month), 1)
	return r.dayStart(first), r.dayStart(core.NewDate(month.Year, int(month.Month)+1, 1))
}

func newActivityID() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.NewString()
	}
	return id.String()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func parseTimestamp(s string) time.Time {
	t, err := time.Parse(timestampLayout, s)
	if err != nil {
		return time.Time{}
	}
	return t
}

func parseDate(s sql.NullString) core.Date {
	if !s.Valid {
		return core.Date{}
	}
	d, err := core.ParseDate(s.String)
	if err != nil {
		return core.Date{}
	}
	return d
}

func dateArg(d core.Date) any {
	if d.IsZero() {
		return nil
	}
	return d.String()
}
