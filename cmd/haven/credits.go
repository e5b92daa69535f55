package main

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/bleue740/huggy-code-haven-sub000/internal/credit"
)

// historian is implemented by ledgers that keep an entry log.
type historian interface {
	History(ctx context.Context, userID string, limit int) ([]credit.Entry, error)
}

func newCreditsCmd(rf *rootFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "credits",
		Short: "Inspect and grant user credit",
		Long: `Inspect and grant user credit.

Each turn costs pipeline.cost credits. Configured users start with
credit.initial_grant credits (default 20). Without credit.db balances live in
memory and reset on every run; set credit.db to keep them in SQLite.`,
	}
	cmd.AddCommand(
		&cobra.Command{
			Use:   "balance [user]",
			Short: "Show a user's balance",
			Args:  cobra.MaximumNArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				return withLedger(cmd, rf, func(l credit.Ledger, user string) error {
					bal, err := l.Balance(cmd.Context(), userArg(args, 0, user))
					if err != nil {
						return err
					}
					fmt.Fprintln(cmd.OutOrStdout(), bal)
					return nil
				})
			},
		},
		&cobra.Command{
			Use:   "grant <amount> [user]",
			Short: "Add credit to a user",
			Args:  cobra.RangeArgs(1, 2),
			RunE: func(cmd *cobra.Command, args []string) error {
				amount, err := strconv.Atoi(args[0])
				if err != nil {
					return exitError(exitInput, "invalid amount %q", args[0])
				}
				return withLedger(cmd, rf, func(l credit.Ledger, user string) error {
					g, ok := l.(credit.Granter)
					if !ok {
						return exitError(exitInput, "the configured ledger cannot grant credit")
					}
					u := userArg(args, 1, user)
					if err := g.Grant(cmd.Context(), u, amount); err != nil {
						return err
					}
					bal, err := l.Balance(cmd.Context(), u)
					if err != nil {
						return err
					}
					fmt.Fprintf(cmd.OutOrStdout(), "%s: %d\n", u, bal)
					return nil
				})
			},
		},
		newCreditsHistoryCmd(rf),
	)
	return cmd
}

func newCreditsHistoryCmd(rf *rootFlags) *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "history [user]",
		Short: "Show recent ledger entries as JSON",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withLedger(cmd, rf, func(l credit.Ledger, user string) error {
				h, ok := l.(historian)
				if !ok {
					return exitError(exitInput, "the configured ledger keeps no history")
				}
				entries, err := h.History(cmd.Context(), userArg(args, 0, user), limit)
				if err != nil {
					return err
				}
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(entries)
			})
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 20, "Maximum entries to show")
	return cmd
}

func withLedger(cmd *cobra.Command, rf *rootFlags, fn func(l credit.Ledger, user string) error) error {
	cfg, err := loadConfig(rf)
	if err != nil {
		return err
	}
	if cfg.Credit.DB == "" {
		return exitError(exitInput, "credit.db is not set; in-memory balances do not outlive the process")
	}
	l, closeFn, err := openLedger(cmd.Context(), cfg)
	if err != nil {
		return exitError(exitInput, "failed to open credit ledger: %v", err)
	}
	defer closeFn()
	return fn(l, cfg.User)
}

func userArg(args []string, i int, def string) string {
	if len(args) > i && args[i] != "" {
		return args[i]
	}
	return def
}
