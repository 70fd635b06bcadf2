package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/bytedance/sonic"
	"github.com/spf13/cobra"

	"github.com/riskibarqy/team-reconciler/internal/app"
	"github.com/riskibarqy/team-reconciler/internal/config"
	"github.com/riskibarqy/team-reconciler/internal/platform/logging"
	"github.com/riskibarqy/team-reconciler/internal/usecase"
)

// Exit codes: 0 every entity resolved, 1 unresolved or flagged entities
// remain, 2 fatal error before or during the run.
const (
	exitOK         = 0
	exitUnresolved = 1
	exitFatal      = 2
)

func main() {
	os.Exit(run())
}

func run() int {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	code := exitOK
	root := newRootCmd(&code)
	if err := root.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		return exitFatal
	}

	return code
}

func newRootCmd(code *int) *cobra.Command {
	root := &cobra.Command{
		Use:           "reconciler",
		Short:         "Reconcile football team identities across providers",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.AddCommand(newRunCmd(code))
	root.AddCommand(newVerifyCmd(code))
	root.AddCommand(newResolveCmd(code))

	return root
}

func buildApp() (*app.App, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	logger := logging.NewJSON(cfg.LogLevel, logging.WithService(cfg.ServiceName, cfg.ServiceVersion))
	logging.SetDefault(logger)

	return app.New(cfg, logger)
}

func newRunCmd(code *int) *cobra.Command {
	var (
		scope         string
		dryRun        bool
		reverify      bool
		strategies    []string
		workers       int
		maxRangeProbe int
		asJSON        bool
	)

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run one batch reconciliation over a competition scope",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := buildApp()
			if err != nil {
				return err
			}
			defer a.Close()

			writer := usecase.NewStoreWriter(a.Mappings, a.AuditLog, dryRun)
			report, err := a.Reconcile.Run(cmd.Context(), usecase.ReconcileInput{
				CompetitionScope: scope,
				StrategyOrder:    strategies,
				DryRun:           dryRun,
				MaxRangeProbe:    maxRangeProbe,
				MaxWorkers:       workers,
				Reverify:         reverify,
			}, writer)
			if err != nil {
				return fmt.Errorf("reconcile %s: %w", scope, err)
			}

			if err := printRunReport(cmd, report, asJSON); err != nil {
				return err
			}
			if !report.Resolved() {
				*code = exitUnresolved
			}

			return nil
		},
	}

	cmd.Flags().StringVar(&scope, "scope", "", "competition scope to reconcile (required)")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "report decisions without persisting them")
	cmd.Flags().BoolVar(&reverify, "reverify", false, "re-match sources that already hold a mapping")
	cmd.Flags().StringSliceVar(&strategies, "strategies", nil, "override the strategy chain, cheapest first")
	cmd.Flags().IntVar(&workers, "workers", 0, "worker pool size override")
	cmd.Flags().IntVar(&maxRangeProbe, "max-range-probe", 0, "cap on id-range probe requests for this run")
	cmd.Flags().BoolVar(&asJSON, "json", false, "emit the full run report as JSON")
	_ = cmd.MarkFlagRequired("scope")

	return cmd
}

func newVerifyCmd(code *int) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "verify",
		Short: "Re-check every stored mapping against fresh provider data",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := buildApp()
			if err != nil {
				return err
			}
			defer a.Close()

			writer := usecase.NewStoreWriter(a.Mappings, a.AuditLog, false)
			report, err := a.Audit.VerifyAll(cmd.Context(), writer)
			if err != nil {
				return fmt.Errorf("verify mappings: %w", err)
			}

			if asJSON {
				if err := printJSON(cmd, report); err != nil {
					return err
				}
			} else {
				cmd.Printf("verified %d mappings: %d agreed, %d disagreed, %d flagged, %d cleared, %d failed\n",
					report.Total, report.Agreed, report.Disagreed, report.Flagged, report.Cleared, report.Failed)
			}
			if report.Disagreed > 0 || report.Failed > 0 {
				*code = exitUnresolved
			}

			return nil
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "emit the audit report as JSON")

	return cmd
}

func newResolveCmd(code *int) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "resolve <source-id>",
		Short: "Resolve one source team id to its mapped target id",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := buildApp()
			if err != nil {
				return err
			}
			defer a.Close()

			targetID, ok, err := a.Resolve.Resolve(cmd.Context(), args[0])
			if err != nil {
				return fmt.Errorf("resolve %s: %w", args[0], err)
			}
			if !ok {
				cmd.PrintErrf("no mapping for source %s\n", args[0])
				*code = exitUnresolved
				return nil
			}

			cmd.Println(targetID)
			return nil
		},
	}

	return cmd
}

func printRunReport(cmd *cobra.Command, report usecase.RunReport, asJSON bool) error {
	if asJSON {
		return printJSON(cmd, report)
	}

	cmd.Printf("run %s scope=%s dry_run=%t: %d tasks over %d workers\n",
		report.RunID, report.Scope, report.DryRun, report.TaskCount, report.WorkerCount)
	cmd.Printf("  exact=%d partial=%d suspicious=%d skipped=%d unresolved=%d failed=%d (%dms)\n",
		report.Exact, report.Partial, report.Suspicious, report.Skipped, report.Unresolved, report.Failed, report.DurationMs)

	for _, entity := range report.Entities {
		if entity.Status == usecase.OutcomeMapped || entity.Status == usecase.OutcomeSkipped {
			continue
		}
		detail := entity.Reason
		if detail == "" {
			detail = entity.Status
		}
		cmd.Printf("  %s %q: %s\n", entity.SourceID, entity.SourceName, strings.TrimSpace(detail))
	}

	return nil
}

func printJSON(cmd *cobra.Command, v any) error {
	raw, err := sonic.ConfigStd.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("encode report: %w", err)
	}
	cmd.Println(string(raw))

	return nil
}
