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
	entitiesInput    string
	entitiesBusiness string
	entitiesSalary   string
)

var entitiesCmd = &cobra.Command{
	Use:   "entities",
	Short: "Compare business entity structures for a Schedule C business",
	RunE: func(cmd *cobra.Command, args []string) error {
		eng, err := initEngine()
		if err != nil {
			return err
		}

		profile, sources, err := loadInput(entitiesInput)
		if err != nil {
			return err
		}

		salary, err := decimal.NewFromString(entitiesSalary)
		if err != nil {
			return eris.Wrapf(err, "salary %q", entitiesSalary)
		}

		runner := scenario.NewRunner(eng)
		cmp, err := runner.CompareEntities(profile, sources, entitiesBusiness, salary)
		if err != nil {
			return eris.Wrap(err, "compare entities")
		}

		zap.L().Info("entity comparison complete",
			zap.String("business", entitiesBusiness),
			zap.String("reasonable_salary", salary.String()),
		)

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(cmp)
	},
}

func init() {
	entitiesCmd.Flags().StringVar(&entitiesInput, "input", "", "taxpayer input file (required)")
	entitiesCmd.Flags().StringVar(&entitiesBusiness, "business", "", "Schedule C business name (required)")
	entitiesCmd.Flags().StringVar(&entitiesSalary, "salary", "", "reasonable S-corp salary (required)")
	_ = entitiesCmd.MarkFlagRequired("input")
	_ = entitiesCmd.MarkFlagRequired("business")
	_ = entitiesCmd.MarkFlagRequired("salary")
	rootCmd.AddCommand(entitiesCmd)
}
