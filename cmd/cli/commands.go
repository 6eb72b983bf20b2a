package main

import (
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"
	"github.com/travelagency/backoffice/infra/initializer"
	"github.com/travelagency/backoffice/pkg/app"
	"github.com/travelagency/backoffice/pkg/config"
	"github.com/travelagency/backoffice/pkg/domain/ledger"
	"github.com/travelagency/backoffice/pkg/middleware"
	"github.com/travelagency/backoffice/pkg/service/report"
	"github.com/travelagency/backoffice/pkg/service/settlement"
)

// appLoader builds the application. Opening the database also migrates it.
type appLoader func() (*app.App, error)

func loadApp() (*app.App, error) {
	cfg, err := config.Load(".env")
	if err != nil {
		return nil, fmt.Errorf("failed to load application configuration: %w", err)
	}
	deps, err := initializer.InitializeDependencies(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize dependencies: %w", err)
	}
	return app.New(deps, cfg), nil
}

func newRootCommand(load appLoader) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "backoffice",
		Short: "Travel agency back-office accounting",
		CompletionOptions: cobra.CompletionOptions{
			DisableDefaultCmd: true,
		},
		SilenceUsage: true,
	}

	rootCmd.AddCommand(
		newMigrateCommand(load),
		newSettleCommand(load),
		newBalanceCommand(load),
		newPositionCommand(load),
		newRatesCommand(load),
		newTokenCommand(load),
	)
	return rootCmd
}

func newMigrateCommand(load appLoader) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create the schema and seed the default chart of accounts",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if _, err := load(); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Schema up to date")
			return nil
		},
	}
}

func newSettleCommand(load appLoader) *cobra.Command {
	var datePaid, reference, actingUser string

	cmd := &cobra.Command{
		Use:   "settle <payment_id>",
		Short: "Settle a pending payment",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			paymentID, err := uuid.Parse(args[0])
			if err != nil {
				return fmt.Errorf("invalid payment id: %w", err)
			}
			date := time.Now().UTC()
			if datePaid != "" {
				if date, err = time.Parse(time.DateOnly, datePaid); err != nil {
					return fmt.Errorf("invalid --date: %w", err)
				}
			}
			var actor uuid.UUID
			if actingUser != "" {
				if actor, err = uuid.Parse(actingUser); err != nil {
					return fmt.Errorf("invalid --user: %w", err)
				}
			}
			a, err := load()
			if err != nil {
				return err
			}
			res, outcomes, err := a.Settle(cmd.Context(), settlement.Command{
				PaymentID:  paymentID,
				DatePaid:   date,
				Reference:  reference,
				ActingUser: actor,
			})
			if err != nil {
				return err
			}
			printSettlement(cmd.OutOrStdout(), res, outcomes)
			return nil
		},
	}

	cmd.Flags().StringVar(&datePaid, "date", "", "date paid (YYYY-MM-DD), defaults to today")
	cmd.Flags().StringVar(&reference, "reference", "", "receipt or transfer reference")
	cmd.Flags().StringVar(&actingUser, "user", "", "acting user id")
	return cmd
}

func printSettlement(w io.Writer, res *settlement.Result, outcomes []settlement.FollowUpOutcome) {
	fmt.Fprintf(w, "Payment %s: %s\n", res.PaymentID, res.Outcome)
	fmt.Fprintf(w, "  result movement:     %s\n", res.MovementID)
	fmt.Fprintf(w, "  settlement movement: %s\n", res.SettlementMovementID)
	if res.CounterpartMovementID != nil {
		fmt.Fprintf(w, "  counterpart movement: %s\n", *res.CounterpartMovementID)
	}
	if res.FXMovementID != nil {
		fmt.Fprintf(w, "  fx movement:         %s\n", *res.FXMovementID)
	}
	for _, warning := range res.Warnings {
		fmt.Fprintf(w, "  warning: %s\n", warning)
	}
	for _, o := range outcomes {
		status := "ok"
		if o.Err != nil {
			status = o.Err.Error()
		}
		fmt.Fprintf(w, "  follow-up %s: %s\n", o.Name, status)
	}
}

func newBalanceCommand(load appLoader) *cobra.Command {
	var at string

	cmd := &cobra.Command{
		Use:   "balance <account_id>",
		Short: "Show a financial account's balance",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			accountID, err := uuid.Parse(args[0])
			if err != nil {
				return fmt.Errorf("invalid account id: %w", err)
			}
			var cutoff *time.Time
			if at != "" {
				t, err := time.Parse(time.RFC3339, at)
				if err != nil {
					return fmt.Errorf("invalid --at: %w", err)
				}
				cutoff = &t
			}
			a, err := load()
			if err != nil {
				return err
			}
			b, err := a.BalanceService.Balance(cmd.Context(), accountID, cutoff)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s %s %s as of %s\n",
				b.AccountID, ledger.Round2(b.Amount).StringFixed(2), b.Currency, b.Cutoff.Format(time.RFC3339))
			return nil
		},
	}

	cmd.Flags().StringVar(&at, "at", "", "cutoff (RFC 3339), defaults to now")
	return cmd
}

func newPositionCommand(load appLoader) *cobra.Command {
	var year, month int
	var agency string

	cmd := &cobra.Command{
		Use:   "position",
		Short: "Print the monthly position report",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			q := report.Query{Year: year, Month: month}
			if agency != "" {
				id, err := uuid.Parse(agency)
				if err != nil {
					return fmt.Errorf("invalid --agency: %w", err)
				}
				q.AgencyID = &id
			}
			a, err := load()
			if err != nil {
				return err
			}
			p, err := a.ReportService.MonthlyPosition(cmd.Context(), q)
			if err != nil {
				return err
			}
			printPosition(cmd.OutOrStdout(), p.Rounded())
			return nil
		},
	}

	now := time.Now().UTC()
	cmd.Flags().IntVar(&year, "year", now.Year(), "report year")
	cmd.Flags().IntVar(&month, "month", int(now.Month()), "report month (1-12)")
	cmd.Flags().StringVar(&agency, "agency", "", "agency id filter")
	return cmd
}

func printPosition(w io.Writer, p *report.Position) {
	fmt.Fprintf(w, "Position %04d-%02d (cutoff %s)\n", p.Year, int(p.Month), p.Cutoff.Format(time.RFC3339))
	for _, cur := range []ledger.Currency{ledger.ARS, ledger.USD} {
		fmt.Fprintf(w, "\n[%s]\n", cur)
		rows := []struct {
			label  string
			amount decimal.Decimal
		}{
			{"Current assets", p.Sheet.Assets.Current[cur]},
			{"Non-current assets", p.Sheet.Assets.NonCurrent[cur]},
			{"Current liabilities", p.Sheet.Liabilities.Current[cur]},
			{"  posted", p.Sheet.Liabilities.CurrentPosted[cur]},
			{"  projected", p.Projected.Totals[cur]},
			{"Non-current liabilities", p.Sheet.Liabilities.NonCurrent[cur]},
			{"Equity", p.Sheet.Equity[cur]},
			{"Revenue", p.PnL.Revenue[cur]},
			{"Cost", p.PnL.Cost[cur]},
			{"Expense", p.PnL.Expense[cur]},
			{"FX gain", p.PnL.FXGain[cur]},
			{"FX loss", p.PnL.FXLoss[cur]},
			{"Operating result", p.PnL.Operating[cur]},
			{"Net result", p.PnL.Net[cur]},
		}
		for _, r := range rows {
			fmt.Fprintf(w, "  %-24s %16s\n", r.label, r.amount.StringFixed(2))
		}
	}
	if b := p.PnL.Blended; b != nil {
		fmt.Fprintf(w, "\nBlended USD at %s: operating %s, net %s\n", b.Rate.String(), b.Operating.StringFixed(2), b.Net.StringFixed(2))
	} else {
		fmt.Fprintln(w, "\nBlended USD: no month-end rate")
	}
}

func newRatesCommand(load appLoader) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "rates",
		Short: "Manage the ARS per USD rate series",
	}

	var source string
	add := &cobra.Command{
		Use:   "add <effective_date> <rate>",
		Short: "Append a rate effective from a date",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			date, err := time.Parse(time.DateOnly, args[0])
			if err != nil {
				return fmt.Errorf("invalid effective date: %w", err)
			}
			rate, err := decimal.NewFromString(args[1])
			if err != nil {
				return fmt.Errorf("invalid rate: %w", err)
			}
			a, err := load()
			if err != nil {
				return err
			}
			r, err := a.ExchangeService.Record(cmd.Context(), date, rate, source)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Recorded %s ARS/USD effective %s\n", r.Rate.String(), r.EffectiveDate.Format(time.DateOnly))
			return nil
		},
	}
	add.Flags().StringVar(&source, "source", "cli", "where the rate came from")

	list := &cobra.Command{
		Use:   "list",
		Short: "List the rate series",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := load()
			if err != nil {
				return err
			}
			rates, err := a.ExchangeService.List(cmd.Context())
			if err != nil {
				return err
			}
			for _, r := range rates {
				fmt.Fprintf(cmd.OutOrStdout(), "%s  %s  %s\n", r.EffectiveDate.Format(time.DateOnly), r.Rate.String(), r.Source)
			}
			return nil
		},
	}

	importCmd := &cobra.Command{
		Use:   "import",
		Short: "Fetch the current rate from the configured provider and record it",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := load()
			if err != nil {
				return err
			}
			r, err := a.ImportRate(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Imported %s ARS/USD effective %s from %s\n", r.Rate.String(), r.EffectiveDate.Format(time.DateOnly), r.Source)
			return nil
		},
	}

	cmd.AddCommand(add, list, importCmd)
	return cmd
}

func newTokenCommand(load appLoader) *cobra.Command {
	return &cobra.Command{
		Use:   "token <user_id>",
		Short: "Issue an API token for a user",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			userID, err := uuid.Parse(args[0])
			if err != nil {
				return fmt.Errorf("invalid user id: %w", err)
			}
			a, err := load()
			if err != nil {
				return err
			}
			if a.Config == nil || a.Config.Auth == nil || a.Config.Auth.Jwt == nil || a.Config.Auth.Jwt.Secret == "" {
				return fmt.Errorf("AUTH_JWT_SECRET is not set")
			}
			token, err := middleware.SignToken(a.Config.Auth.Jwt, userID)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}
}
