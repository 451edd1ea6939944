// Command fintrack is a terminal client for the FinTrack API.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"fintrack/internal/client"
	"fintrack/internal/export"
)

const dateLayout = "2006-01-02"

type globalFlags struct {
	baseURL string
	token   string
	from    string
	to      string
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		var apiErr *client.APIError
		if errors.As(err, &apiErr) {
			fmt.Fprintf(os.Stderr, "error: %s (%s)\n", apiErr.Message, apiErr.Code)
		} else {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
		}
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	g := &globalFlags{}
	root := &cobra.Command{
		Use:           "fintrack",
		Short:         "Query and record FinTrack transactions",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&g.baseURL, "url", envOr("FINTRACK_URL", "http://localhost:8080/api/v1"), "API base URL")
	root.PersistentFlags().StringVar(&g.token, "token", os.Getenv("FINTRACK_TOKEN"), "access token")
	root.PersistentFlags().StringVar(&g.from, "from", "", "range start (YYYY-MM-DD)")
	root.PersistentFlags().StringVar(&g.to, "to", "", "range end (YYYY-MM-DD)")

	root.AddCommand(
		loginCmd(g),
		transactionsCmd(g),
		summaryCmd(g),
		categoriesCmd(g),
		trendsCmd(g),
		goalsCmd(g),
		dashboardCmd(g),
		exportCmd(g),
	)
	return root
}

func (g *globalFlags) client() *client.Client {
	return client.New(g.baseURL, client.WithToken(g.token))
}

func (g *globalFlags) dateRange() (from, to *time.Time, err error) {
	if from, err = parseDate(g.from); err != nil {
		return nil, nil, err
	}
	if to, err = parseDate(g.to); err != nil {
		return nil, nil, err
	}
	return from, to, nil
}

func parseDate(s string) (*time.Time, error) {
	if s == "" {
		return nil, nil
	}
	t, err := time.Parse(dateLayout, s)
	if err != nil {
		return nil, fmt.Errorf("invalid date %q, expected YYYY-MM-DD", s)
	}
	return &t, nil
}

func loginCmd(g *globalFlags) *cobra.Command {
	var email, password string
	cmd := &cobra.Command{
		Use:   "login",
		Short: "Log in and print an access token",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			tokens, err := g.client().Login(cmd.Context(), email, password)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "export FINTRACK_TOKEN=%s\n", tokens.AccessToken)
			return nil
		},
	}
	cmd.Flags().StringVar(&email, "email", "", "account email")
	cmd.Flags().StringVar(&password, "password", os.Getenv("FINTRACK_PASSWORD"), "account password")
	_ = cmd.MarkFlagRequired("email")
	return cmd
}

func transactionsCmd(g *globalFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "transactions",
		Aliases: []string{"tx"},
		Short:   "List or add transactions",
	}

	var q client.TransactionQuery
	list := &cobra.Command{
		Use:   "list",
		Short: "List transactions",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			from, to, err := g.dateRange()
			if err != nil {
				return err
			}
			q.From, q.To = from, to
			page, err := g.client().ListTransactions(cmd.Context(), q)
			if err != nil {
				return err
			}
			w := newTable(cmd)
			fmt.Fprintln(w, "DATE\tTYPE\tCATEGORY\tAMOUNT\tDESCRIPTION")
			for _, tx := range page.Data {
				category := ""
				if tx.Category != nil {
					category = tx.Category.Name
				}
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n", tx.Date.Format(dateLayout), tx.Type, category, export.FormatAmount(tx.Amount), tx.Description)
			}
			fmt.Fprintf(w, "\npage %d/%d, %d total\n", page.Page, page.TotalPages, page.TotalItems)
			return w.Flush()
		},
	}
	list.Flags().IntVar(&q.Page, "page", 0, "page number")
	list.Flags().IntVar(&q.PageSize, "page-size", 0, "page size")
	list.Flags().StringVar(&q.Type, "type", "", "expense or income")
	list.Flags().StringVar(&q.CategoryID, "category", "", "category id")
	list.Flags().StringVar(&q.Search, "search", "", "description search")
	list.Flags().StringVar(&q.Sort, "sort", "", "date|amount with optional _asc/_desc")

	var in client.NewTransaction
	var amount, date, categoryID string
	add := &cobra.Command{
		Use:   "add",
		Short: "Record a transaction",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cents, err := parseAmount(amount)
			if err != nil {
				return err
			}
			in.Amount = cents
			in.Date = time.Now().UTC()
			if date != "" {
				d, err := parseDate(date)
				if err != nil {
					return err
				}
				in.Date = *d
			}
			if categoryID != "" {
				in.CategoryID = &categoryID
			}
			tx, err := g.client().CreateTransaction(cmd.Context(), in)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "created %s %s %s\n", tx.ID, tx.Type, export.FormatAmount(tx.Amount))
			return nil
		},
	}
	add.Flags().StringVar(&in.Type, "type", "expense", "expense or income")
	add.Flags().StringVar(&amount, "amount", "", "amount, e.g. 12.50")
	add.Flags().StringVar(&in.Description, "description", "", "description")
	add.Flags().StringVar(&in.Notes, "notes", "", "notes")
	add.Flags().StringVar(&date, "date", "", "date (YYYY-MM-DD), default today")
	add.Flags().StringVar(&categoryID, "category", "", "category id")
	_ = add.MarkFlagRequired("amount")

	cmd.AddCommand(list, add)
	return cmd
}

func summaryCmd(g *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "summary",
		Short: "Show income, expense and savings rate",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			from, to, err := g.dateRange()
			if err != nil {
				return err
			}
			s, err := g.client().Summary(cmd.Context(), from, to)
			if err != nil {
				return err
			}
			printSummary(cmd, s)
			return nil
		},
	}
}

func printSummary(cmd *cobra.Command, s *client.Summary) {
	w := newTable(cmd)
	fmt.Fprintf(w, "Period\t%s .. %s\n", s.From.Format(dateLayout), s.To.Format(dateLayout))
	fmt.Fprintf(w, "Income\t%s\n", export.FormatAmount(s.TotalIncome))
	fmt.Fprintf(w, "Expense\t%s\n", export.FormatAmount(s.TotalExpense))
	fmt.Fprintf(w, "Net\t%s\n", export.FormatAmount(s.Net))
	fmt.Fprintf(w, "Savings rate\t%.1f%%\n", s.SavingsRate)
	fmt.Fprintf(w, "Transactions\t%d\n", s.TransactionCount)
	if s.TopCategory != nil {
		fmt.Fprintf(w, "Top category\t%s (%s)\n", s.TopCategory.CategoryName, export.FormatAmount(s.TopCategory.Total))
	}
	_ = w.Flush()
}

func categoriesCmd(g *globalFlags) *cobra.Command {
	var txType string
	cmd := &cobra.Command{
		Use:   "categories",
		Short: "Show totals per category",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			from, to, err := g.dateRange()
			if err != nil {
				return err
			}
			rows, err := g.client().CategoryBreakdown(cmd.Context(), txType, from, to)
			if err != nil {
				return err
			}
			printCategories(cmd, rows)
			return nil
		},
	}
	cmd.Flags().StringVar(&txType, "type", "expense", "expense or income")
	return cmd
}

func printCategories(cmd *cobra.Command, rows []client.CategoryTotal) {
	w := newTable(cmd)
	fmt.Fprintln(w, "CATEGORY\tTOTAL\tCOUNT\tSHARE")
	for _, r := range rows {
		fmt.Fprintf(w, "%s\t%s\t%d\t%.1f%%\n", r.CategoryName, export.FormatAmount(r.Total), r.Count, r.Percentage)
	}
	_ = w.Flush()
}

func trendsCmd(g *globalFlags) *cobra.Command {
	var interval string
	cmd := &cobra.Command{
		Use:   "trends",
		Short: "Show income and expense per period",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			from, to, err := g.dateRange()
			if err != nil {
				return err
			}
			points, err := g.client().Trends(cmd.Context(), interval, from, to)
			if err != nil {
				return err
			}
			w := newTable(cmd)
			fmt.Fprintln(w, "PERIOD\tINCOME\tEXPENSE\tNET")
			for _, p := range points {
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", p.Period, export.FormatAmount(p.Income), export.FormatAmount(p.Expense), export.FormatAmount(p.Net))
			}
			return w.Flush()
		},
	}
	cmd.Flags().StringVar(&interval, "interval", "month", "month or week")
	return cmd
}

func goalsCmd(g *globalFlags) *cobra.Command {
	var status string
	cmd := &cobra.Command{
		Use:   "goals",
		Short: "List savings goals",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			page, err := g.client().ListGoals(cmd.Context(), status, 0)
			if err != nil {
				return err
			}
			printGoals(cmd, page.Data)
			return nil
		},
	}
	cmd.Flags().StringVar(&status, "status", "", "active, completed, paused or cancelled")
	return cmd
}

func printGoals(cmd *cobra.Command, goals []client.Goal) {
	w := newTable(cmd)
	fmt.Fprintln(w, "NAME\tSTATUS\tSAVED\tTARGET")
	for _, goal := range goals {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", goal.Name, goal.Status, export.FormatAmount(goal.CurrentAmount), export.FormatAmount(goal.TargetAmount))
	}
	_ = w.Flush()
}

// dashboardCmd fetches summary, breakdown and goals in one batch.
func dashboardCmd(g *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "dashboard",
		Short: "Show summary, top categories and goals",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			c := g.client()
			ctx := cmd.Context()
			results := c.Batch(ctx, []client.Request{
				{Path: "/analytics/summary"},
				{Path: "/analytics/categories"},
				{Path: "/goals"},
			})
			for _, r := range results {
				if r.Err != nil {
					return r.Err
				}
			}

			var summary struct {
				Summary client.Summary `json:"summary"`
			}
			var breakdown struct {
				Categories []client.CategoryTotal `json:"categories"`
			}
			var goals client.Page[client.Goal]
			if err := decodeAll(results, &summary, &breakdown, &goals); err != nil {
				return err
			}

			printSummary(cmd, &summary.Summary)
			fmt.Fprintln(cmd.OutOrStdout())
			printCategories(cmd, breakdown.Categories)
			fmt.Fprintln(cmd.OutOrStdout())
			printGoals(cmd, goals.Data)
			return nil
		},
	}
}

func decodeAll(results []client.Result, dests ...interface{}) error {
	for i, dest := range dests {
		if err := results[i].Response.Decode(dest); err != nil {
			return err
		}
	}
	return nil
}

func exportCmd(g *globalFlags) *cobra.Command {
	var format, out string
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Download transactions as csv, xlsx or pdf",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := export.ParseFormat(format); err != nil {
				return err
			}
			from, to, err := g.dateRange()
			if err != nil {
				return err
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), time.Minute)
			defer cancel()
			data, filename, err := g.client().Export(ctx, format, from, to)
			if err != nil {
				return err
			}
			if out == "" {
				out = filename
			}
			if err := os.WriteFile(out, data, 0o644); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "wrote %s (%d bytes)\n", out, len(data))
			return nil
		},
	}
	cmd.Flags().StringVar(&format, "format", "csv", "csv, xlsx or pdf")
	cmd.Flags().StringVarP(&out, "output", "o", "", "output file (default: server suggested name)")
	return cmd
}

func newTable(cmd *cobra.Command) *tabwriter.Writer {
	return tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// parseAmount converts a decimal amount into minor units.
func parseAmount(s string) (int64, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return 0, fmt.Errorf("invalid amount %q", s)
	}
	if !d.IsPositive() {
		return 0, fmt.Errorf("amount must be positive")
	}
	if !d.Equal(d.Round(2)) {
		return 0, fmt.Errorf("amount %q has more than two decimals", s)
	}
	return d.Shift(2).IntPart(), nil
}
