package main

import (
	"context"
	"fmt"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/auditecx/auditecx-cli/internal/apperr"
	"github.com/auditecx/auditecx-cli/internal/model"
	"github.com/auditecx/auditecx-cli/internal/orchestrator"
)

var runEmail string

var runCmd = &cobra.Command{
	Use:   "run <request...>",
	Short: "Execute a natural-language audit request",
	Long:  `Parses the request for vendor, invoice, and PO identifiers, runs the full evidence pipeline, and prints progress until the run finishes. Example: auditecx run "reconcile invoices for VEND-ACME in Q3 2025"`,
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		e, err := initEnv(ctx, cfg)
		if err != nil {
			return err
		}
		defer e.Close()

		query := strings.Join(args, " ")
		run, steps, err := e.orch.StartRun(ctx, query, runEmail)
		if err != nil {
			return err
		}

		fmt.Printf("Run %s started (%d steps)\n", run.RunID, len(steps))
		return followRun(ctx, e.orch, run.RunID)
	},
}

// followRun streams a run's events to stdout until it reaches a
// terminal event, then prints the manifest summary.
func followRun(ctx context.Context, orch *orchestrator.Orchestrator, runID string) error {
	ch, err := orch.Bus().Subscribe(ctx, runID)
	if err != nil {
		return err
	}

	var failed bool
	for event := range ch {
		fmt.Println(describeEvent(event))
		if event.Type == model.EventError {
			failed = true
		}
	}

	summary, err := orch.GetSummary(ctx, runID)
	if err != nil {
		return err
	}
	if failed {
		return apperr.Newf(apperr.KindState, "run %s failed: %s", runID, summary.Error)
	}

	fmt.Println()
	fmt.Println(summary.SummaryText)
	if summary.PackagePath != "" {
		fmt.Printf("\nPackage: %s\n", summary.PackagePath)
	}
	return nil
}

func describeEvent(event model.ProgressEvent) string {
	prefix := fmt.Sprintf("[%3d] %-18s", event.SequenceNo, event.Type)
	switch p := event.Payload.(type) {
	case model.StatusPayload:
		return prefix + " " + p.Message
	case model.CountPayload:
		return fmt.Sprintf("%s count=%d", prefix, p.Count)
	case model.ChatSeededPayload:
		return fmt.Sprintf("%s messages=%d", prefix, p.Messages)
	case model.SummaryChunkPayload:
		return prefix + " " + strings.TrimSpace(p.Text)
	case model.PackageReadyPayload:
		return prefix + " " + p.Path
	case model.CompletePayload:
		return prefix + " " + p.PackagePath
	case model.ErrorPayload:
		return prefix + " " + p.Message
	default:
		return prefix
	}
}

func init() {
	runCmd.Flags().StringVar(&runEmail, "email", "", "email to associate with the run")
	rootCmd.AddCommand(runCmd)
}
