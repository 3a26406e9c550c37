package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/auditecx/auditecx-cli/internal/model"
	"github.com/auditecx/auditecx-cli/internal/store"
)

var (
	runsStatus string
	runsKind   string
	runsLimit  int
)

var runsCmd = &cobra.Command{
	Use:   "runs",
	Short: "List recorded runs",
	RunE: func(cmd *cobra.Command, args []string) error {
		e, err := initEnv(cmd.Context(), cfg)
		if err != nil {
			return err
		}
		defer e.Close()

		runs, err := e.orch.ListRuns(cmd.Context(), store.RunFilter{
			Status: model.RunStatus(runsStatus),
			Kind:   model.RunKind(runsKind),
			Limit:  runsLimit,
		})
		if err != nil {
			return err
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "RUN ID\tKIND\tSTATUS\tVENDOR\tCREATED")
		for _, run := range runs {
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
				run.RunID, run.Kind, run.Status, run.VendorID,
				run.CreatedAt.Format("2006-01-02 15:04:05"))
		}
		return w.Flush()
	},
}

func init() {
	runsCmd.Flags().StringVar(&runsStatus, "status", "", "filter by status (pending, running, complete, error)")
	runsCmd.Flags().StringVar(&runsKind, "kind", "", "filter by kind (real, simulation)")
	runsCmd.Flags().IntVar(&runsLimit, "limit", 0, "maximum runs to list")
	rootCmd.AddCommand(runsCmd)
}
