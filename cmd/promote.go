package main

import (
	"encoding/json"
	"os"

	"github.com/spf13/cobra"

	"github.com/sells-group/verifact/internal/facts"
)

var promoteCmd = &cobra.Command{
	Use:   "promote",
	Short: "Promote high-trust evaluations into the verified fact set",
	Long:  "Moves evaluations at or above the promotion threshold into the facts table. Re-running refreshes existing rows; it never duplicates.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		env, err := initEnv(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		result, err := facts.NewPromoter(env.facts).Run(ctx)
		if err != nil {
			return err
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(result)
	},
}

func init() {
	rootCmd.AddCommand(promoteCmd)
}
