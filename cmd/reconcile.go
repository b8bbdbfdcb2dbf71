package main

import (
	"encoding/json"
	"os"

	"github.com/spf13/cobra"

	"github.com/sells-group/verifact/internal/facts"
)

var reconcileCmd = &cobra.Command{
	Use:   "reconcile",
	Short: "Fill cross-source coverage gaps in the evaluation set",
	Long:  "For every known (entity, attribute) pair, fetches claims from each registered provider not yet represented, scores them, and inserts them as evaluations.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		env, err := initEnv(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		result, err := facts.NewReconciler(env.facts, env.sources, env.registry, env.limiter).Run(ctx)
		if err != nil {
			return err
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(result)
	},
}

func init() {
	rootCmd.AddCommand(reconcileCmd)
}
