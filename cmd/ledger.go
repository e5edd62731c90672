package main

import (
	"encoding/json"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/tax-engine/internal/ledger"
)

var (
	ledgerTenant     string
	ledgerLimit      int
	ledgerImportFile string
)

var ledgerCmd = &cobra.Command{
	Use:   "ledger",
	Short: "Inspect and verify the snapshot ledger",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		// Run the root's config load first, then check store settings.
		if err := rootCmd.PersistentPreRunE(cmd, args); err != nil {
			return err
		}
		return cfg.Validate("ledger")
	},
}

var ledgerVerifyCmd = &cobra.Command{
	Use:   "verify",
	Short: "Verify a tenant's snapshot chain from genesis",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		if ledgerTenant == "" {
			return eris.New("--tenant is required")
		}

		l, st, err := initLedger(ctx)
		if err != nil {
			return err
		}
		defer st.Close()

		n, err := l.VerifyChain(ctx, ledgerTenant)
		if err != nil {
			zap.L().Error("chain verification failed",
				zap.String("tenant", ledgerTenant),
				zap.Int("verified_before_break", n),
				zap.Error(err),
			)
			return eris.Wrapf(err, "tenant %s", ledgerTenant)
		}

		zap.L().Info("chain verified",
			zap.String("tenant", ledgerTenant),
			zap.Int("snapshots", n),
		)

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(map[string]any{"tenant": ledgerTenant, "verified": n})
	},
}

var ledgerHistoryCmd = &cobra.Command{
	Use:   "history",
	Short: "Show a tenant's snapshot history in chain order",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		if ledgerTenant == "" {
			return eris.New("--tenant is required")
		}

		l, st, err := initLedger(ctx)
		if err != nil {
			return err
		}
		defer st.Close()

		history, err := l.History(ctx, ledgerTenant, ledgerLimit)
		if err != nil {
			return eris.Wrapf(err, "tenant %s", ledgerTenant)
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(history)
	},
}

var ledgerImportCmd = &cobra.Command{
	Use:   "import",
	Short: "Import exported snapshot history into the configured store",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		data, err := os.ReadFile(ledgerImportFile)
		if err != nil {
			return eris.Wrapf(err, "read %s", ledgerImportFile)
		}
		var snaps []ledger.Snapshot
		if err := json.Unmarshal(data, &snaps); err != nil {
			return eris.Wrapf(err, "parse %s", ledgerImportFile)
		}
		if len(snaps) == 0 {
			return eris.New("no snapshots to import")
		}

		l, st, err := initLedger(ctx)
		if err != nil {
			return err
		}
		defer st.Close()

		n, err := l.Import(ctx, snaps)
		if err != nil {
			return eris.Wrapf(err, "import %s", ledgerImportFile)
		}

		zap.L().Info("snapshots imported",
			zap.Int64("count", n),
			zap.String("file", ledgerImportFile),
		)
		return nil
	},
}

var ledgerTenantsCmd = &cobra.Command{
	Use:   "tenants",
	Short: "List tenants with recorded snapshots",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		l, st, err := initLedger(ctx)
		if err != nil {
			return err
		}
		defer st.Close()

		tenants, err := l.Tenants(ctx)
		if err != nil {
			return err
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(tenants)
	},
}

func init() {
	ledgerCmd.PersistentFlags().StringVar(&ledgerTenant, "tenant", "", "tenant ID")
	ledgerHistoryCmd.Flags().IntVar(&ledgerLimit, "limit", 0, "most recent snapshots to show (0 = all)")
	ledgerImportCmd.Flags().StringVar(&ledgerImportFile, "file", "", "exported history JSON (required)")
	_ = ledgerImportCmd.MarkFlagRequired("file")

	ledgerCmd.AddCommand(ledgerVerifyCmd, ledgerHistoryCmd, ledgerImportCmd, ledgerTenantsCmd)
	rootCmd.AddCommand(ledgerCmd)
}
