package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/tax-engine/internal/config"
)

var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:   "tax-engine",
	Short: "Federal tax calculation and optimization engine",
	Long:  "Computes federal tax liability with QBI and SSTB handling, evaluates what-if scenarios and entity structures, and records results in a tamper-evident snapshot ledger.",
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
