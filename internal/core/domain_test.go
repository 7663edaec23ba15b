package core

import (
	"errors"
	"testing"
	"time"
)

func validPlan() SavingsPlan {
	return SavingsPlan{
		Name:      "Emergency fund",
		Goal:      Money{Cents: 1_000_000},
		StartDate: NewDate(2025, 1, 1),
		EndDate:   NewDate(2025, 12, 31),
		Status:    StatusActive,
	}
}

func TestSavingsPlanValidate(t *testing.T) {
	if err := validPlan().Validate(); err != nil {
		t.Fatalf("expected ok, got %v", err)
	}

	cases := []struct {
		name   string
		mutate func(p *SavingsPlan)
		want   error
	}{
		{"empty name", func(p *SavingsPlan) { p.Name = "  " }, ErrEmptyPlanName},
		{"zero goal", func(p *SavingsPlan) { p.Goal = Money{} }, ErrInvalidAmount},
		{"negative budget", func(p *SavingsPlan) { p.MonthlyBudget = Money{Cents: -1} }, ErrInvalidAmount},
		{"missing end", func(p *SavingsPlan) { p.EndDate = Date{} }, ErrMissingDates},
		{"end before start", func(p *SavingsPlan) { p.EndDate = NewDate(2024, 12, 31) }, ErrInvalidDateRange},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			p := validPlan()
			tc.mutate(&p)
			err := p.Validate()
			if !errors.Is(err, tc.want) {
				t.Fatalf("expected %v, got %v", tc.want, err)
			}
			if !errors.Is(err, ErrValidation) {
				t.Fatalf("expected validation error, got %v", err)
			}
		})
	}
}

func TestSavingsPlanDerived(t *testing.T) {
	p := validPlan()
	p.ID = 7
	p.Saved = Money{Cents: 250_000}

	if got := p.DisplayID(); got != "sav007" {
		t.Fatalf("DisplayID = %q", got)
	}
	if got := p.DurationDays(); got != 364 {
		t.Fatalf("DurationDays = %d", got)
	}
	if got := p.Remaining(); got.Cents != 750_000 {
		t.Fatalf("Remaining = %d", got.Cents)
	}
	p.Saved = Money{Cents: 2_000_000}
	if !p.IsFinished() || p.Remaining().Cents != 0 {
		t.Fatalf("expected finished plan with nothing remaining")
	}
}

func TestTransactionTypeValidate(t *testing.T) {
	for _, tt := range []TransactionType{Deposit, Withdraw} {
		if err := tt.Validate(); err != nil {
			t.Fatalf("%s: unexpected %v", tt, err)
		}
	}
	if err := TransactionType("transfer").Validate(); !errors.Is(err, ErrInvalidTransactionType) {
		t.Fatalf("expected ErrInvalidTransactionType, got %v", err)
	}
}

func TestLedgerEntryValidate(t *testing.T) {
	good := LedgerEntry{Category: "Food", Amount: Money{Cents: 100}, Date: NewDate(2025, 1, 1)}
	if err := good.Validate(); err != nil {
		t.Fatalf("expected ok, got %v", err)
	}

	bads := []LedgerEntry{
		{Category: "Food", Amount: Money{Cents: 100}, Date: Date{Time: time.Time{}}},
		{Category: "", Amount: Money{Cents: 100}, Date: NewDate(2025, 1, 1)},
		{Category: "Food", Amount: Money{Cents: 0}, Date: NewDate(2025, 1, 1)},
	}
	for i, e := range bads {
		if err := e.Validate(); err == nil {
			t.Fatalf("case %d expected error", i)
		}
	}
}

func TestDisplayIDRoundTrip(t *testing.T) {
	cases := []struct {
		n    int64
		want string
	}{
		{1, "log001"},
		{42, "log042"},
		{1234, "log1234"},
	}
	for _, tc := range cases {
		got := FormatDisplayID(TransactionIDPrefix, tc.n)
		if got != tc.want {
			t.Fatalf("FormatDisplayID(%d) = %q, want %q", tc.n, got, tc.want)
		}
		back, err := ParseDisplayID(TransactionIDPrefix, got)
		if err != nil || back != tc.n {
			t.Fatalf("ParseDisplayID(%q) = %d, %v", got, back, err)
		}
	}

	for _, bad := range []string{"", "log", "logabc", "log-1", "log000"} {
		if _, err := ParseDisplayID(TransactionIDPrefix, bad); !errors.Is(err, ErrInvalidID) {
			t.Fatalf("%q: expected ErrInvalidID, got %v", bad, err)
		}
	}
}

func TestDates(t *testing.T) {
	d, err := ParseDate("2025-03-01")
	if err != nil {
		t.Fatalf("ParseDate: %v", err)
	}
	if got := d.AddDays(-1).String(); got != "2025-02-28" {
		t.Fatalf("AddDays = %s", got)
	}
	if got := NewDate(2025, 1, 1).DaysUntil(d); got != 59 {
		t.Fatalf("DaysUntil = %d", got)
	}
	if got := d.Month().String(); got != "2025-03" {
		t.Fatalf("Month = %s", got)
	}

	manila := time.FixedZone("PHT", 8*3600)
	late := time.Date(2025, 3, 1, 20, 0, 0, 0, time.UTC)
	if got := DateOf(late, manila).String(); got != "2025-03-02" {
		t.Fatalf("DateOf = %s", got)
	}

	if _, err := ParseMonth("2025-13"); !errors.Is(err, ErrInvalidMonth) {
		t.Fatalf("expected ErrInvalidMonth, got %v", err)
	}
}
