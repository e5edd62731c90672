package main

import (
	"encoding/json"
	"os"

	"github.com/spf13/cobra"
)

var taxyearsCmd = &cobra.Command{
	Use:   "taxyears",
	Short: "List the tax years with loaded parameter tables",
	RunE: func(cmd *cobra.Command, args []string) error {
		eng, err := initEngine()
		if err != nil {
			return err
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(eng.Registry().Years())
	},
}

func init() {
	rootCmd.AddCommand(taxyearsCmd)
}
