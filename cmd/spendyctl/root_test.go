package main

import (
	"bytes"
	"context"
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"spendy/internal/config"
	"spendy/internal/core"
	"spendy/internal/storage"
)

// runSpendyctl executes the command tree in-process against a fresh flag
// state and returns what it printed to stdout.
func runSpendyctl(t *testing.T, args ...string) (string, error) {
	t.Helper()
	flagUser, flagDBPath, flagJSON, flagMonth, flagEnded = "", "", false, "", false
	migrateSteps = 1

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(args)
	t.Cleanup(func() {
		rootCmd.SetOut(nil)
		rootCmd.SetErr(nil)
		rootCmd.SetArgs(nil)
	})
	_, err := rootCmd.ExecuteC()
	return out.String(), err
}

func testDB(t *testing.T) string {
	t.Helper()
	t.Setenv(config.FileEnv, "")
	t.Setenv("TIMEZONE", "UTC")
	return filepath.Join(t.TempDir(), "spendy.db")
}

func TestMigrate_Status(t *testing.T) {
	db := testDB(t)

	out, err := runSpendyctl(t, "migrate", "up", "--db", db)
	require.NoError(t, err)
	assert.Equal(t, "schema version 1 (clean)\n", out)

	out, err = runSpendyctl(t, "migrate", "status", "--db", db)
	require.NoError(t, err)
	assert.Equal(t, "schema version 1 (clean)\n", out)

	out, err = runSpendyctl(t, "migrate", "status", "--db", db, "--json")
	require.NoError(t, err)
	var st storage.MigrationStatus
	require.NoError(t, json.Unmarshal([]byte(out), &st))
	assert.Equal(t, uint(1), st.Version)
	assert.False(t, st.Dirty)
}

func TestMigrate_DownRejectsZeroSteps(t *testing.T) {
	db := testDB(t)
	_, err := runSpendyctl(t, "migrate", "down", "--db", db, "--steps", "0")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "--steps must be at least 1")
}

func TestStats_JSON(t *testing.T) {
	db := testDB(t)

	repo, err := storage.NewSQLiteRepository(db)
	require.NoError(t, err)
	ctx := context.Background()
	for _, e := range []struct {
		kind  core.LedgerKind
		cents int64
		date  core.Date
	}{
		{core.LedgerIncome, 4_000_000, core.NewDate(2025, 5, 30)},
		{core.LedgerIncome, 5_000_000, core.NewDate(2025, 6, 1)},
		{core.LedgerExpenses, 2_000_000, core.NewDate(2025, 6, 3)},
	} {
		_, err := repo.AddLedgerEntry(ctx, e.kind, core.LedgerEntry{
			UserID: "u1", Category: "General", Amount: core.Money{Cents: e.cents}, Date: e.date,
		})
		require.NoError(t, err)
	}
	require.NoError(t, repo.Close())

	out, err := runSpendyctl(t, "stats", "--json", "--user", "u1", "--month", "2025-06", "--db", db)
	require.NoError(t, err)

	var stats map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &stats), out)
	assert.Equal(t, "2025-06", stats["month"])
	assert.Equal(t, 50000.0, stats["income"])
	assert.Equal(t, 20000.0, stats["expenses"])
	assert.Equal(t, 30000.0, stats["total_balance"])
	assert.Equal(t, 25.0, stats["income_change"])

	out, err = runSpendyctl(t, "stats", "--user", "u1", "--month", "2025-06", "--db", db)
	require.NoError(t, err)
	assert.Contains(t, out, "₱50,000.00 (+25.00%)")
	assert.Contains(t, out, "Balance")
}

func TestStats_Errors(t *testing.T) {
	db := testDB(t)

	_, err := runSpendyctl(t, "stats", "--user", "u1", "--month", "June", "--db", db)
	assert.ErrorIs(t, err, core.ErrInvalidMonth)

	t.Setenv("LOG_FORMAT", "xml")
	_, err = runSpendyctl(t, "stats", "--user", "u1", "--db", db)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid log format")
}
