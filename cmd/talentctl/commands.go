package main

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"text/tabwriter"

	"github.com/DukeRupert/talentgate/internal/domain"
	"github.com/DukeRupert/talentgate/internal/service"
	"github.com/spf13/cobra"
)

// backend is what the commands operate on.
type backend struct {
	users        service.UserService
	expiry       service.ExpiryService
	entitlements service.EntitlementService
	payments     service.PaymentService
	migrate      func(ctx context.Context) (int64, error)
	closer       io.Closer
}

func (b *backend) Close() error {
	if b.closer == nil {
		return nil
	}
	return b.closer.Close()
}

type openFunc func(ctx context.Context) (*backend, error)

// withBackend opens the backend for one command run.
func withBackend(open openFunc, run func(cmd *cobra.Command, args []string, b *backend) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		b, err := open(cmd.Context())
		if err != nil {
			return err
		}
		defer b.Close()
		return run(cmd, args, b)
	}
}

func newRootCmd(open openFunc) *cobra.Command {
	root := &cobra.Command{
		Use:           "talentctl",
		Short:         "talentgate operator commands",
		Long:          `Operate talentgate subscriptions: expire lapsed plans, inspect usage and grant plans manually.`,
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.AddCommand(
		newSweepCmd(open),
		newUsageCmd(open),
		newGrantCmd(open),
		newMigrateCmd(open),
	)
	return root
}

func newSweepCmd(open openFunc) *cobra.Command {
	var batch int

	cmd := &cobra.Command{
		Use:   "sweep",
		Short: "Expire every account whose paid plan has ended",
		Example: `  # Expire lapsed plans 500 rows at a time
  talentctl sweep --batch 500`,
		Args: cobra.NoArgs,
		RunE: withBackend(open, func(cmd *cobra.Command, _ []string, b *backend) error {
			if batch < 1 {
				return fmt.Errorf("--batch must be at least 1")
			}
			n, err := b.expiry.SweepLapsed(cmd.Context(), batch)
			if err != nil {
				return fmt.Errorf("sweep failed: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Expired %d lapsed plan(s)\n", n)
			return nil
		}),
	}
	cmd.Flags().IntVar(&batch, "batch", 200, "rows expired per database round trip")
	return cmd
}

func newUsageCmd(open openFunc) *cobra.Command {
	return &cobra.Command{
		Use:   "usage EMAIL",
		Short: "Show an account's plan and usage of every metered feature",
		Args:  cobra.ExactArgs(1),
		RunE: withBackend(open, func(cmd *cobra.Command, args []string, b *backend) error {
			ctx := cmd.Context()
			user, err := b.users.GetByEmail(ctx, args[0])
			if err != nil {
				return fmt.Errorf("lookup %s: %w", args[0], err)
			}
			summary, err := b.entitlements.Summary(ctx, user)
			if err != nil {
				return fmt.Errorf("usage summary: %w", err)
			}
			printSummary(cmd.OutOrStdout(), user, summary)
			return nil
		}),
	}
}

func printSummary(out io.Writer, user *domain.User, s *domain.UsageSummary) {
	fmt.Fprintf(out, "%s <%s>\n", user.Name, user.Email)
	fmt.Fprintf(out, "Plan: %s (%s), effective %s", s.Plan.DisplayName(), s.PlanStatus, s.EffectivePlan.DisplayName())
	if s.PlanEnd != nil {
		fmt.Fprintf(out, ", ends %s", s.PlanEnd.UTC().Format("2006-01-02 15:04 MST"))
	}
	fmt.Fprintln(out)
	fmt.Fprintln(out)

	tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "FEATURE\tUSED\tLIMIT\tREMAINING\tALLOWED")
	for _, d := range s.Decisions {
		limit, remaining := "unlimited", "unlimited"
		if !d.Unlimited {
			limit = strconv.Itoa(d.Limit)
			remaining = strconv.Itoa(d.Remaining())
		}
		fmt.Fprintf(tw, "%s\t%d\t%s\t%s\t%t\n", d.Kind.Label(), d.Used, limit, remaining, d.Allowed)
	}
	tw.Flush()
}

func newGrantCmd(open openFunc) *cobra.Command {
	var plan, reference string

	cmd := &cobra.Command{
		Use:   "grant EMAIL",
		Short: "Activate a paid plan without a gateway payment",
		Long: `Activate a paid plan for an account, keyed on a support reference.
Running the same grant twice does not extend the plan again.`,
		Example: `  talentctl grant ravi@example.com --plan pro_plus --reference TKT-1042`,
		Args:    cobra.ExactArgs(1),
		RunE: withBackend(open, func(cmd *cobra.Command, args []string, b *backend) error {
			p, ok := domain.ParsePlan(plan)
			if !ok || !p.IsPaid() {
				return fmt.Errorf("--plan must be pro or pro_plus, got %q", plan)
			}

			ctx := cmd.Context()
			user, err := b.users.GetByEmail(ctx, args[0])
			if err != nil {
				return fmt.Errorf("lookup %s: %w", args[0], err)
			}

			res, err := b.payments.Grant(ctx, user, p, reference)
			if err != nil {
				return fmt.Errorf("grant failed: %w", err)
			}

			out := cmd.OutOrStdout()
			if !res.Activated {
				fmt.Fprintf(out, "Reference %s was already applied; nothing changed\n", reference)
				return nil
			}
			fmt.Fprintf(out, "Activated %s for %s", p.DisplayName(), user.Email)
			if res.User != nil && res.User.PlanEnd != nil {
				fmt.Fprintf(out, " until %s", res.User.PlanEnd.UTC().Format("2006-01-02"))
			}
			fmt.Fprintln(out)
			return nil
		}),
	}
	cmd.Flags().StringVar(&plan, "plan", "", "plan to activate (pro or pro_plus)")
	cmd.Flags().StringVar(&reference, "reference", "", "support ticket or invoice reference")
	_ = cmd.MarkFlagRequired("plan")
	_ = cmd.MarkFlagRequired("reference")
	return cmd
}

func newMigrateCmd(open openFunc) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending database migrations",
		Args:  cobra.NoArgs,
		RunE: withBackend(open, func(cmd *cobra.Command, _ []string, b *backend) error {
			version, err := b.migrate(cmd.Context())
			if err != nil {
				return fmt.Errorf("migration failed: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Schema at version %d\n", version)
			return nil
		}),
	}
}
