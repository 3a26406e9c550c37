package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/auditecx/auditecx-cli/internal/config"
)

var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:   "auditecx",
	Short: "Audit evidence orchestration and reconciliation engine",
	Long:  "Turns natural-language audit requests into evidence packages: locates documents, queries the ledger, reconciles amounts, flags anomalies, and streams an auditor summary.",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		c, err := config.Load()
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		cfg = c

		if err := config.InitLogger(cfg.Log); err != nil {
			return fmt.Errorf("init logger: %w", err)
		}

		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = zap.L().Sync()
	},
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
