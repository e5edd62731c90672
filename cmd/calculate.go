package main

import (
	"encoding/json"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	calculateInput  string
	calculateTenant string
)

var calculateCmd = &cobra.Command{
	Use:   "calculate",
	Short: "Compute federal tax liability for a taxpayer input file",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		eng, err := initEngine()
		if err != nil {
			return err
		}

		profile, sources, err := loadInput(calculateInput)
		if err != nil {
			return err
		}

		result, err := eng.Calculate(profile, sources)
		if err != nil {
			return eris.Wrap(err, "calculate")
		}

		zap.L().Info("calculation complete",
			zap.Int("tax_year", profile.TaxYear),
			zap.String("filing_status", string(profile.FilingStatus)),
			zap.String("total_tax", result.TotalTax.String()),
			zap.Bool("requires_manual_review", result.RequiresManualReview),
		)

		// Record a snapshot when a tenant is named.
		if calculateTenant != "" {
			if err := cfg.Validate("ledger"); err != nil {
				return err
			}
			l, st, err := initLedger(ctx)
			if err != nil {
				return err
			}
			defer st.Close()

			snap, err := l.Record(ctx, calculateTenant,
				recordInputs{Profile: profile, Sources: sources}, result)
			if err != nil {
				return eris.Wrap(err, "record snapshot")
			}
			zap.L().Info("snapshot recorded",
				zap.String("tenant", calculateTenant),
				zap.String("snapshot_id", snap.ID),
				zap.Int64("sequence", snap.Sequence),
			)
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(result)
	},
}

func init() {
	calculateCmd.Flags().StringVar(&calculateInput, "input", "", "taxpayer input file (required)")
	calculateCmd.Flags().StringVar(&calculateTenant, "tenant", "", "record a ledger snapshot for this tenant")
	_ = calculateCmd.MarkFlagRequired("input")
	rootCmd.AddCommand(calculateCmd)
}
