package main

import (
	"encoding/json"
	"os"

	"github.com/rotisserie/eris"
	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/tax-engine/internal/scenario"
)

var (
	projectInput      string
	projectYears      int
	projectWageGrowth string
	projectInflation  string
)

var projectCmd = &cobra.Command{
	Use:   "project",
	Short: "Project tax liability over future years",
	RunE: func(cmd *cobra.Command, args []string) error {
		eng, err := initEngine()
		if err != nil {
			return err
		}

		profile, sources, err := loadInput(projectInput)
		if err != nil {
			return err
		}

		growth := projectWageGrowth
		if growth == "" {
			growth = cfg.Scenario.WageGrowth
		}
		inflation := projectInflation
		if inflation == "" {
			inflation = cfg.Scenario.Inflation
		}

		assumptions := scenario.Assumptions{}
		if assumptions.WageGrowth, err = decimal.NewFromString(growth); err != nil {
			return eris.Wrapf(err, "wage growth %q", growth)
		}
		if assumptions.Inflation, err = decimal.NewFromString(inflation); err != nil {
			return eris.Wrapf(err, "inflation %q", inflation)
		}

		runner := scenario.NewRunner(eng)
		years, err := runner.Project(profile, sources, projectYears, assumptions)
		if err != nil {
			return eris.Wrap(err, "project")
		}

		zap.L().Info("projection complete",
			zap.Int("years", projectYears),
			zap.String("wage_growth", growth),
			zap.String("inflation", inflation),
		)

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(years)
	},
}

func init() {
	projectCmd.Flags().StringVar(&projectInput, "input", "", "taxpayer input file (required)")
	projectCmd.Flags().IntVar(&projectYears, "years", 5, "number of future years to project")
	projectCmd.Flags().StringVar(&projectWageGrowth, "wage-growth", "", "annual wage growth rate (default from config)")
	projectCmd.Flags().StringVar(&projectInflation, "inflation", "", "annual inflation rate (default from config)")
	_ = projectCmd.MarkFlagRequired("input")
	rootCmd.AddCommand(projectCmd)
}
