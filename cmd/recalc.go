package main

import (
	"encoding/json"
	"os"

	"github.com/spf13/cobra"

	"github.com/sells-group/verifact/internal/facts"
)

var recalcCmd = &cobra.Command{
	Use:   "recalc",
	Short: "Recalculate every evaluation's trust score",
	Long:  "Rescores the full evaluation set against current source trust, current time, and real cross-source consensus, replacing the provisional consensus assigned at ingestion.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		env, err := initEnv(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		result, err := facts.NewRecalculator(env.facts, env.sources).Run(ctx)
		if err != nil {
			return err
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(result)
	},
}

func init() {
	rootCmd.AddCommand(recalcCmd)
}
