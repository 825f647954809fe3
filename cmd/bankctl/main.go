package main

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	cl "bankgame/internal/cli"
	"bankgame/internal/config"

	"github.com/spf13/cobra"
)

func main() {
	cfg := config.LoadCLIFromEnv()
	apiBase := cfg.APIBaseURL

	root := &cobra.Command{
		Use:          "bankctl",
		Short:        "Bank game CLI client",
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVar(&apiBase, "api", apiBase, "game server base URL")

	root.AddCommand(
		newLoginCmd(&apiBase),
		newLogoutCmd(),
		newDashCmd(&apiBase),
		newHistoryCmd(&apiBase),
		newStocksCmd(&apiBase),
		newBankCmd(&apiBase),
		newExpensesCmd(&apiBase),
		newTickCmd(&apiBase),
		newLeaderboardCmd(&apiBase),
		newCasinoCmd(&apiBase),
		newSubmitCmd(&apiBase),
		newWatchCmd(&apiBase),
	)

	if err := root.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func newClient(apiBase *string) *cl.Client {
	return cl.NewClient(strings.TrimRight(strings.TrimSpace(*apiBase), "/"))
}

// loggedIn loads the saved session and, unless --api was given, points the
// client at the server the session was issued by.
func loggedIn(cmd *cobra.Command, apiBase *string) (cl.Session, *cl.Client, error) {
	sess, err := cl.LoadSession()
	if err != nil {
		return cl.Session{}, nil, fmt.Errorf("login required: %w", err)
	}
	if !cmd.Flags().Changed("api") && sess.APIBase != "" {
		*apiBase = sess.APIBase
	}
	return sess, newClient(apiBase), nil
}

func newLoginCmd(apiBase *string) *cobra.Command {
	return &cobra.Command{
		Use:   "login [username]",
		Short: "Login or create an account",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var username string
			if len(args) == 1 {
				username = strings.TrimSpace(args[0])
			} else {
				var err error
				username, err = promptRequired("Username")
				if err != nil {
					return err
				}
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
			defer cancel()
			client := newClient(apiBase)
			out, err := client.Login(ctx, username)
			if err != nil {
				return err
			}
			if err := cl.SaveSession(cl.Session{
				Token:     out.Token,
				Username:  out.Username,
				APIBase:   client.BaseURL,
				ExpiresAt: out.ExpiresAt,
			}); err != nil {
				return err
			}
			if out.Created {
				printSuccess(fmt.Sprintf("Welcome %s. New account opened.", out.Username))
			} else {
				printSuccess(fmt.Sprintf("Welcome back %s.", out.Username))
			}
			return nil
		},
	}
}

func newLogoutCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Clear local session token",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := cl.ClearSession(); err != nil {
				return err
			}
			printSuccess("Logged out.")
			return nil
		},
	}
}

func newDashCmd(apiBase *string) *cobra.Command {
	return &cobra.Command{
		Use:   "dash",
		Short: "Show your dashboard",
		RunE: func(cmd *cobra.Command, args []string) error {
			sess, client, err := loggedIn(cmd, apiBase)
			if err != nil {
				return err
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
			defer cancel()
			st, err := client.State(ctx, sess.Token)
			if err != nil {
				return err
			}
			renderDashboard(st)
			return nil
		},
	}
}

func newHistoryCmd(apiBase *string) *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show recent ledger entries",
		RunE: func(cmd *cobra.Command, args []string) error {
			sess, client, err := loggedIn(cmd, apiBase)
			if err != nil {
				return err
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
			defer cancel()
			entries, err := client.History(ctx, sess.Token, limit)
			if err != nil {
				return err
			}
			renderHistory(entries)
			return nil
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "number of entries")
	return cmd
}

func newStocksCmd(apiBase *string) *cobra.Command {
	stocks := &cobra.Command{
		Use:     "stocks",
		Short:   "Stock market commands",
		Aliases: []string{"stock"},
	}
	stocks.AddCommand(newStocksListCmd(apiBase))
	stocks.AddCommand(newStocksOrderCmd(apiBase, "buy"))
	stocks.AddCommand(newStocksOrderCmd(apiBase, "sell"))
	stocks.AddCommand(newStocksDRIPCmd(apiBase))
	return stocks
}

func newStocksListCmd(apiBase *string) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List instruments and prices",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
			defer cancel()
			out, err := newClient(apiBase).ListStocks(ctx)
			if err != nil {
				return err
			}
			renderStocksList(out)
			return nil
		},
	}
}

func newStocksOrderCmd(apiBase *string, side string) *cobra.Command {
	return &cobra.Command{
		Use:   side + " [symbol] [qty]",
		Short: strings.ToUpper(side[:1]) + side[1:] + " shares at the current price",
		Args:  cobra.MaximumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			symbol, err := symbolFromArgsOrPrompt(args)
			if err != nil {
				return err
			}
			qty, err := amountFromArgsOrPrompt(args, 1, "Shares to "+side)
			if err != nil {
				return err
			}
			sess, client, err := loggedIn(cmd, apiBase)
			if err != nil {
				return err
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
			defer cancel()
			out, err := client.PlaceOrder(ctx, sess.Token, side, symbol, qty.String())
			if err != nil {
				return err
			}
			renderOrderResult(out)
			return nil
		},
	}
}

func newStocksDRIPCmd(apiBase *string) *cobra.Command {
	return &cobra.Command{
		Use:   "drip [symbol] [on|off]",
		Short: "Toggle dividend reinvestment for a holding",
		Args:  cobra.MaximumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			symbol, err := symbolFromArgsOrPrompt(args)
			if err != nil {
				return err
			}
			var choice string
			if len(args) == 2 {
				choice = strings.ToLower(strings.TrimSpace(args[1]))
			} else {
				choice, err = promptChoice("DRIP", []string{"on", "off"}, "on")
				if err != nil {
					return err
				}
			}
			if choice != "on" && choice != "off" {
				return fmt.Errorf("drip must be on or off")
			}
			sess, client, err := loggedIn(cmd, apiBase)
			if err != nil {
				return err
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
			defer cancel()
			if err := client.SetDRIP(ctx, sess.Token, symbol, choice == "on"); err != nil {
				return err
			}
			printSuccess(fmt.Sprintf("DRIP for %s is %s.", symbol, choice))
			return nil
		},
	}
}

func newBankCmd(apiBase *string) *cobra.Command {
	bank := &cobra.Command{
		Use:   "bank",
		Short: "Deposits and loans",
	}
	for _, op := range []struct{ name, short string }{
		{"deposit", "Move cash into the savings deposit"},
		{"withdraw", "Move savings back to cash"},
		{"loan", "Borrow against your net worth"},
		{"repay", "Repay outstanding loan from cash"},
	} {
		bank.AddCommand(newBankOpCmd(apiBase, op.name, op.short))
	}
	return bank
}

func newBankOpCmd(apiBase *string, op, short string) *cobra.Command {
	return &cobra.Command{
		Use:   op + " [amount]",
		Short: short,
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			amount, err := amountFromArgsOrPrompt(args, 0, "Amount to "+op)
			if err != nil {
				return err
			}
			sess, client, err := loggedIn(cmd, apiBase)
			if err != nil {
				return err
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
			defer cancel()
			bal, err := client.Bank(ctx, sess.Token, op, amount.String())
			if err != nil {
				return err
			}
			renderBalances(op, bal)
			return nil
		},
	}
}

func newExpensesCmd(apiBase *string) *cobra.Command {
	expenses := &cobra.Command{
		Use:     "expenses",
		Short:   "Recurring expenses",
		Aliases: []string{"expense"},
	}

	var frequency string
	add := &cobra.Command{
		Use:   "add [name] [amount]",
		Short: "Add a recurring expense",
		Args:  cobra.MaximumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			var name string
			if len(args) > 0 {
				name = strings.TrimSpace(args[0])
			} else {
				var err error
				name, err = promptRequired("Name")
				if err != nil {
					return err
				}
			}
			amount, err := amountFromArgsOrPrompt(args, 1, "Amount")
			if err != nil {
				return err
			}
			sess, client, err := loggedIn(cmd, apiBase)
			if err != nil {
				return err
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
			defer cancel()
			exp, err := client.AddExpense(ctx, sess.Token, name, amount.String(), frequency)
			if err != nil {
				return err
			}
			printSuccess(fmt.Sprintf("Added %s: %s %s, first due on day %d.", exp.Name, formatMoney(exp.Amount), exp.Frequency, exp.NextDueDay))
			return nil
		},
	}
	add.Flags().StringVarP(&frequency, "frequency", "f", "daily", "daily, weekly or monthly")

	remove := &cobra.Command{
		Use:   "remove [name]",
		Short: "Remove a recurring expense",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			sess, client, err := loggedIn(cmd, apiBase)
			if err != nil {
				return err
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
			defer cancel()
			if err := client.RemoveExpense(ctx, sess.Token, args[0]); err != nil {
				return err
			}
			printSuccess(fmt.Sprintf("Removed %s.", args[0]))
			return nil
		},
	}

	expenses.AddCommand(add, remove)
	return expenses
}

func newTickCmd(apiBase *string) *cobra.Command {
	return &cobra.Command{
		Use:   "tick",
		Short: "Advance your account by one day",
		RunE: func(cmd *cobra.Command, args []string) error {
			sess, client, err := loggedIn(cmd, apiBase)
			if err != nil {
				return err
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
			defer cancel()
			st, err := client.AdvanceDay(ctx, sess.Token)
			if err != nil {
				return err
			}
			printInfo(fmt.Sprintf("Day %d settled.", st.Days))
			renderDashboard(st)
			return nil
		},
	}
}

func newLeaderboardCmd(apiBase *string) *cobra.Command {
	var username string
	cmd := &cobra.Command{
		Use:     "leaderboard",
		Short:   "Top players by net worth",
		Aliases: []string{"lb"},
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
			defer cancel()
			recs, err := newClient(apiBase).Leaderboard(ctx, username)
			if err != nil {
				return err
			}
			renderLeaderboard(recs)
			return nil
		},
	}
	cmd.Flags().StringVarP(&username, "user", "u", "", "filter by username")
	return cmd
}

func newCasinoCmd(apiBase *string) *cobra.Command {
	var username string
	casino := &cobra.Command{
		Use:   "casino",
		Short: "Casino winnings board",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
			defer cancel()
			recs, err := newClient(apiBase).CasinoBoard(ctx, username)
			if err != nil {
				return err
			}
			renderCasinoBoard(recs)
			return nil
		},
	}
	casino.Flags().StringVarP(&username, "user", "u", "", "filter by username")

	casino.AddCommand(&cobra.Command{
		Use:   "win [amount]",
		Short: "Record a casino win",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			amount, err := amountFromArgsOrPrompt(args, 0, "Winnings")
			if err != nil {
				return err
			}
			sess, client, err := loggedIn(cmd, apiBase)
			if err != nil {
				return err
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
			defer cancel()
			total, err := client.SubmitCasinoWin(ctx, sess.Token, amount.String())
			if err != nil {
				return err
			}
			printSuccess(fmt.Sprintf("Recorded. Lifetime winnings: %s", formatMoney(total)))
			return nil
		},
	})
	return casino
}

func newSubmitCmd(apiBase *string) *cobra.Command {
	return &cobra.Command{
		Use:   "submit",
		Short: "Submit your net worth to the leaderboard",
		RunE: func(cmd *cobra.Command, args []string) error {
			sess, client, err := loggedIn(cmd, apiBase)
			if err != nil {
				return err
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
			defer cancel()
			rec, err := client.SubmitLeaderboard(ctx, sess.Token)
			if err != nil {
				return err
			}
			printSuccess(fmt.Sprintf("Submitted %s after %d days.", formatMoney(rec.Asset), rec.Days))
			return nil
		},
	}
}

func newWatchCmd(apiBase *string) *cobra.Command {
	var every time.Duration
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Live dashboard",
		RunE: func(cmd *cobra.Command, args []string) error {
			sess, client, err := loggedIn(cmd, apiBase)
			if err != nil {
				return err
			}
			if every < 500*time.Millisecond {
				every = 500 * time.Millisecond
			}
			return runWatch(cmd.Context(), client, sess, every)
		},
	}
	cmd.Flags().DurationVar(&every, "every", 2*time.Second, "refresh interval")
	return cmd
}
