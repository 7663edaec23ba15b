package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"spendy/internal/cli"
	"spendy/internal/core"
	apphttp "spendy/internal/http"
)

var (
	flagMonth string
	flagEnded bool
)

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Print the monthly budget snapshot of a user",
	RunE: func(cmd *cobra.Command, _ []string) error {
		return withServices(cmd, func(ctx context.Context, svc apphttp.Services) error {
			month := svc.Budget.CurrentMonth()
			if flagMonth != "" {
				m, err := core.ParseMonth(flagMonth)
				if err != nil {
					return err
				}
				month = m
			}
			stats, err := svc.Budget.MonthlyStats(ctx, flagUser, month)
			if err != nil {
				return err
			}
			if flagJSON {
				return writeJSON(cmd.OutOrStdout(), stats)
			}

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintf(tw, "Month\t%s\n", stats.Month)
			fmt.Fprintf(tw, "Income\t%s (%+.2f%%)\n", stats.Income.Display(), stats.IncomeChange)
			fmt.Fprintf(tw, "Expenses\t%s\n", stats.Expenses.Display())
			fmt.Fprintf(tw, "Balance\t%s\n", stats.TotalBalance.Display())
			fmt.Fprintf(tw, "Saved from budget\t%s\n", stats.SavingsFromRemainingBudget.Display())
			fmt.Fprintf(tw, "Main wallet withdrawals\t%s\n", stats.MainWalletWithdrawals.Display())
			fmt.Fprintf(tw, "Remaining budget\t%s\n", stats.RemainingBudget.Display())
			fmt.Fprintf(tw, "Savings deposits\t%s\n", stats.SavingsDeposits.Display())
			return tw.Flush()
		})
	},
}

var notificationsCmd = &cobra.Command{
	Use:   "notifications",
	Short: "Print the current notifications of a user",
	RunE: func(cmd *cobra.Command, _ []string) error {
		return withServices(cmd, func(ctx context.Context, svc apphttp.Services) error {
			list, err := svc.Notifications.Generate(ctx, flagUser)
			if err != nil {
				return err
			}
			if flagJSON {
				return writeJSON(cmd.OutOrStdout(), list)
			}
			if len(list) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No notifications.")
				return nil
			}
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintln(tw, "PRIORITY\tTYPE\tMESSAGE")
			for _, n := range list {
				fmt.Fprintf(tw, "%g\t%s\t%s\n", n.Priority, n.Type, n.Message)
			}
			return tw.Flush()
		})
	},
}

var plansCmd = &cobra.Command{
	Use:   "plans",
	Short: "List the savings plans of a user",
	RunE: func(cmd *cobra.Command, _ []string) error {
		return withServices(cmd, func(ctx context.Context, svc apphttp.Services) error {
			plans, err := svc.Savings.ListPlans(ctx, flagUser, flagEnded)
			if err != nil {
				return err
			}
			if flagJSON {
				return writeJSON(cmd.OutOrStdout(), plans)
			}
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tNAME\tSAVED\tGOAL\tEND\tSTATUS\tLOCKED")
			for _, p := range plans {
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\t%t\n",
					p.DisplayID(), p.Name, p.Saved.Display(), p.Goal.Display(), p.EndDate, p.Status, p.Locked)
			}
			return tw.Flush()
		})
	},
}

// withServices opens the database and runs fn against in-process services.
// Activity is written directly; the CLI never publishes to the queue.
func withServices(cmd *cobra.Command, fn func(context.Context, apphttp.Services) error) error {
	cfg, _, err := loadConfig()
	if err != nil {
		return err
	}
	repo, err := cli.OpenSQLite(cfg)
	if err != nil {
		return err
	}
	defer repo.Close()

	svc, caches := cli.BuildServices(cfg, repo, nil)
	defer caches.Stop()

	ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
	defer cancel()
	return fn(ctx, svc)
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func init() {
	statsCmd.Flags().StringVar(&flagMonth, "month", "", "Month as YYYY-MM (default: current month)")
	plansCmd.Flags().BoolVar(&flagEnded, "ended", false, "List ended plans instead of active ones")
	for _, c := range []*cobra.Command{statsCmd, notificationsCmd, plansCmd} {
		requireUser(c)
		rootCmd.AddCommand(c)
	}
}
