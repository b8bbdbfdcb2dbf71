package main

import (
	"encoding/json"
	"os"

	"github.com/spf13/cobra"

	"github.com/sells-group/verifact/internal/facts"
)

var backfillCmd = &cobra.Command{
	Use:   "backfill",
	Short: "Work the requested-facts backlog",
	Long:  "Asks the registered providers, in order, for each requested fact. Fulfilled and provably absent entries leave the backlog; entries blocked by provider failures remain.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		env, err := initEnv(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		result, err := facts.NewBackfiller(env.facts, env.sources, env.registry, env.limiter).Run(ctx)
		if err != nil {
			return err
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(result)
	},
}

func init() {
	rootCmd.AddCommand(backfillCmd)
}
