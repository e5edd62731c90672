package main

import (
	"encoding/json"
	"os"

	"github.com/rotisserie/eris"
	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"github.com/sells-group/tax-engine/internal/classifier"
	"github.com/sells-group/tax-engine/internal/model"
)

var (
	classifyName        string
	classifyNAICS       string
	classifyDescription string
	classifyYear        int
)

var classifyCmd = &cobra.Command{
	Use:   "classify",
	Short: "Classify a business as SSTB or non-SSTB",
	RunE: func(cmd *cobra.Command, args []string) error {
		eng, err := initEngine()
		if err != nil {
			return err
		}
		table, err := eng.Registry().ForYear(classifyYear)
		if err != nil {
			return eris.Wrapf(err, "tax year %d", classifyYear)
		}

		business := &model.ScheduleCBusiness{
			Name:        classifyName,
			NAICSCode:   classifyNAICS,
			Description: classifyDescription,
		}

		c := classifier.New(table)
		// De-minimis needs a receipts split and taxable income; a bare
		// classify call reports the categorical verdict only.
		result, err := c.Classify(business, decimal.Zero)
		if err != nil {
			return eris.Wrap(err, "classify")
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(result)
	},
}

func init() {
	classifyCmd.Flags().StringVar(&classifyName, "name", "", "business name (required)")
	classifyCmd.Flags().StringVar(&classifyNAICS, "naics", "", "NAICS industry code")
	classifyCmd.Flags().StringVar(&classifyDescription, "description", "", "business description")
	classifyCmd.Flags().IntVar(&classifyYear, "year", 2025, "tax year tables to classify against")
	_ = classifyCmd.MarkFlagRequired("name")
	rootCmd.AddCommand(classifyCmd)
}
