package main

import (
	"encoding/json"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"github.com/tealeg/xlsx/v2"
	"go.uber.org/zap"

	"github.com/sells-group/tax-engine/internal/scenario"
)

var (
	scenariosInput string
	scenariosFile  string
	scenariosXLSX  string
)

var scenariosCmd = &cobra.Command{
	Use:   "scenarios",
	Short: "Compare what-if scenarios against the baseline",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		eng, err := initEngine()
		if err != nil {
			return err
		}

		profile, sources, err := loadInput(scenariosInput)
		if err != nil {
			return err
		}
		defs, err := loadScenarios(scenariosFile)
		if err != nil {
			return err
		}

		runner := scenario.NewRunner(eng)
		set, err := runner.Compare(ctx, profile, sources, defs)
		if err != nil {
			return eris.Wrap(err, "compare scenarios")
		}

		zap.L().Info("scenarios evaluated",
			zap.Int("count", len(set.Scenarios)),
			zap.String("baseline_total_tax", set.Baseline.TotalTax.String()),
		)

		if scenariosXLSX != "" {
			if err := writeScenarioXLSX(scenariosXLSX, set); err != nil {
				return err
			}
			zap.L().Info("scenario workbook written", zap.String("path", scenariosXLSX))
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(set)
	},
}

// writeScenarioXLSX exports the comparison as a one-sheet workbook with a
// baseline row followed by one row per scenario.
func writeScenarioXLSX(path string, set *scenario.ComparisonSet) error {
	f := xlsx.NewFile()
	sheet, err := f.AddSheet("Scenarios")
	if err != nil {
		return eris.Wrap(err, "xlsx: add sheet")
	}

	header := sheet.AddRow()
	for _, h := range []string{"Scenario", "Total Tax", "Delta vs Baseline", "Effective Rate", "Error"} {
		header.AddCell().Value = h
	}

	baseline := sheet.AddRow()
	baseline.AddCell().Value = "baseline"
	baseline.AddCell().Value = set.Baseline.TotalTax.String()
	baseline.AddCell().Value = "0"
	baseline.AddCell().Value = set.Baseline.EffectiveRate.String()
	baseline.AddCell()

	for _, s := range set.Scenarios {
		row := sheet.AddRow()
		row.AddCell().Value = s.Name
		if s.Error != "" {
			row.AddCell()
			row.AddCell()
			row.AddCell()
			row.AddCell().Value = s.Error
			continue
		}
		row.AddCell().Value = s.TotalTax.String()
		row.AddCell().Value = s.Delta.String()
		row.AddCell().Value = s.EffectiveRate.String()
		row.AddCell()
	}

	return eris.Wrapf(f.Save(path), "xlsx: save %s", path)
}

func init() {
	scenariosCmd.Flags().StringVar(&scenariosInput, "input", "", "taxpayer input file (required)")
	scenariosCmd.Flags().StringVar(&scenariosFile, "scenarios", "", "scenario definitions file (required)")
	scenariosCmd.Flags().StringVar(&scenariosXLSX, "xlsx", "", "also write results to an XLSX workbook")
	_ = scenariosCmd.MarkFlagRequired("input")
	_ = scenariosCmd.MarkFlagRequired("scenarios")
	rootCmd.AddCommand(scenariosCmd)
}
