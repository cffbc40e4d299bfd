package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sort"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/fx"

	"github.com/Additional-Code/dialtone/internal/app"
	"github.com/Additional-Code/dialtone/internal/clock"
	"github.com/Additional-Code/dialtone/internal/migration"
	"github.com/Additional-Code/dialtone/internal/seeder"
	"github.com/Additional-Code/dialtone/internal/service/invoice"
)

const stopTimeout = 10 * time.Second

// NewRootCommand builds the root dialtone CLI command.
func NewRootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:           "dialtone",
		Short:         "Number provisioning and billing back office",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.AddCommand(newStartCmd())
	root.AddCommand(newMigrateCmd())
	root.AddCommand(newSeedCmd())
	root.AddCommand(newWorkerCmd())
	root.AddCommand(newBillingCmd())

	return root
}

// Execute runs the dialtone CLI until it finishes or receives SIGINT/SIGTERM.
func Execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := NewRootCommand().ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		return err
	}
	return nil
}

func newStartCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "start",
		Aliases: []string{"run"},
		Short:   "Run the HTTP service",
		RunE: func(cmd *cobra.Command, args []string) error {
			withGRPC, _ := cmd.Flags().GetBool("grpc")
			opts := []fx.Option{app.Module}
			if withGRPC {
				opts = append(opts, app.GRPC)
			}
			return runUntilDone(cmd.Context(), fx.New(opts...))
		},
	}
	cmd.Flags().Bool("grpc", false, "Also serve gRPC (health and reflection)")
	return cmd
}

func newMigrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Run database migrations",
	}

	upCmd := &cobra.Command{
		Use:   "up",
		Short: "Apply migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			var mig *migration.Migrator
			opts := fx.Options(app.Infra, migration.Module, fx.Populate(&mig))
			return runWithApp(cmd.Context(), opts, func(ctx context.Context) error {
				if err := mig.Up(ctx); err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), "migrations applied")
				return nil
			})
		},
	}

	downCmd := &cobra.Command{
		Use:   "down",
		Short: "Rollback migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			steps, _ := cmd.Flags().GetInt("steps")
			all, _ := cmd.Flags().GetBool("all")
			var mig *migration.Migrator
			opts := fx.Options(app.Infra, migration.Module, fx.Populate(&mig))
			return runWithApp(cmd.Context(), opts, func(ctx context.Context) error {
				if err := mig.Down(ctx, steps, all); err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), "migrations rolled back")
				return nil
			})
		},
	}
	downCmd.Flags().Int("steps", 1, "Number of migration steps to rollback")
	downCmd.Flags().Bool("all", false, "Rollback all applied migrations")

	cmd.AddCommand(upCmd, downCmd)
	return cmd
}

func newSeedCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "seed",
		Short: "Seed products and catalog price plans",
		RunE: func(cmd *cobra.Command, args []string) error {
			var seed *seeder.Seeder
			opts := fx.Options(app.Infra, seeder.Module, fx.Populate(&seed))
			return runWithApp(cmd.Context(), opts, func(ctx context.Context) error {
				if err := seed.Catalog(ctx); err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), "seed data applied")
				return nil
			})
		},
	}
}

func newWorkerCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "worker",
		Short: "Manage background workers",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "run",
		Short: "Consume lifecycle events (auto invoicing, wallet alerts)",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runUntilDone(cmd.Context(), fx.New(app.Worker))
		},
	})
	return cmd
}

func newBillingCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "billing",
		Short: "Billing operations",
	}
	runCmd := &cobra.Command{
		Use:   "run",
		Short: "Generate invoices for every delivered order in a period",
		RunE: func(cmd *cobra.Command, args []string) error {
			period, _ := cmd.Flags().GetString("period")

			var (
				svc *invoice.Service
				clk clock.Clock
			)
			opts := fx.Options(app.Core, fx.Populate(&svc, &clk))
			return runWithApp(cmd.Context(), opts, func(ctx context.Context) error {
				if period == "" {
					period = clk.Now().Format(invoice.PeriodLayout)
				}
				summary, err := svc.GenerateForPeriod(ctx, period)
				if err != nil {
					return err
				}
				printSummary(cmd, summary)
				if len(summary.Failed) > 0 {
					return fmt.Errorf("%d orders failed to invoice", len(summary.Failed))
				}
				return nil
			})
		},
	}
	runCmd.Flags().String("period", "", "Billing period as YYYY-MM (defaults to the current month)")
	cmd.AddCommand(runCmd)
	return cmd
}

func printSummary(cmd *cobra.Command, summary *invoice.RunSummary) {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "period %s: %d generated, %d skipped, %d failed\n",
		summary.Period, len(summary.Generated), summary.Skipped, len(summary.Failed))
	for _, inv := range summary.Generated {
		fmt.Fprintf(out, "  %s order=%d amount=%s due=%s\n",
			inv.InvoiceNumber, inv.OrderID, inv.Amount.StringFixed(2), inv.DueDate.Format("2006-01-02"))
	}
	failed := make([]int64, 0, len(summary.Failed))
	for id := range summary.Failed {
		failed = append(failed, id)
	}
	sort.Slice(failed, func(i, j int) bool { return failed[i] < failed[j] })
	for _, id := range failed {
		fmt.Fprintf(out, "  order=%d failed: %s\n", id, summary.Failed[id])
	}
}

func runUntilDone(ctx context.Context, application *fx.App) error {
	if err := application.Start(ctx); err != nil {
		return err
	}
	<-ctx.Done()
	stopCtx, cancel := context.WithTimeout(context.Background(), stopTimeout)
	defer cancel()
	return application.Stop(stopCtx)
}

func runWithApp(ctx context.Context, opts fx.Option, fn func(context.Context) error) error {
	application := fx.New(opts, fx.NopLogger)
	if err := application.Start(ctx); err != nil {
		return err
	}
	defer func() {
		stopCtx, cancel := context.WithTimeout(context.Background(), stopTimeout)
		defer cancel()
		_ = application.Stop(stopCtx)
	}()
	return fn(ctx)
}
