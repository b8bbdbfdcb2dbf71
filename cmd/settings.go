package main

import (
	"encoding/json"
	"os"

	"github.com/spf13/cobra"

	"github.com/sells-group/verifact/internal/facts"
)

var settingsCmd = &cobra.Command{
	Use:   "settings",
	Short: "Inspect and adjust scoring settings",
}

var settingsShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show effective scoring settings",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		env, err := initEnv(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		settings, err := facts.LoadSettings(ctx, env.facts)
		if err != nil {
			return err
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(settings)
	},
}

var settingsSetCmd = &cobra.Command{
	Use:   "set",
	Short: "Update scoring settings",
	Long:  "Updates only the settings named by flags; everything else keeps its current value.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		env, err := initEnv(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		var patch facts.SettingsPatch
		intFlag := func(name string, dst **int) {
			if cmd.Flags().Changed(name) {
				v, _ := cmd.Flags().GetInt(name)
				*dst = &v
			}
		}
		intFlag("source-trust-weight", &patch.SourceTrustWeight)
		intFlag("recency-weight", &patch.RecencyWeight)
		intFlag("consensus-weight", &patch.ConsensusWeight)
		intFlag("recency-tier1-days", &patch.RecencyTier1Days)
		intFlag("recency-tier1-score", &patch.RecencyTier1Score)
		intFlag("recency-tier2-days", &patch.RecencyTier2Days)
		intFlag("recency-tier2-score", &patch.RecencyTier2Score)
		intFlag("recency-tier3-score", &patch.RecencyTier3Score)
		intFlag("credible-threshold", &patch.CredibleThreshold)
		intFlag("promotion-threshold", &patch.PromotionThreshold)

		updated, err := env.facts.UpdateSettings(ctx, patch)
		if err != nil {
			return err
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(updated)
	},
}

func init() {
	settingsSetCmd.Flags().Int("source-trust-weight", 0, "weight of the source trust component")
	settingsSetCmd.Flags().Int("recency-weight", 0, "weight of the recency component")
	settingsSetCmd.Flags().Int("consensus-weight", 0, "weight of the consensus component")
	settingsSetCmd.Flags().Int("recency-tier1-days", 0, "max age in days for the freshest tier")
	settingsSetCmd.Flags().Int("recency-tier1-score", 0, "score for the freshest tier")
	settingsSetCmd.Flags().Int("recency-tier2-days", 0, "max age in days for the middle tier")
	settingsSetCmd.Flags().Int("recency-tier2-score", 0, "score for the middle tier")
	settingsSetCmd.Flags().Int("recency-tier3-score", 0, "score for everything older")
	settingsSetCmd.Flags().Int("credible-threshold", 0, "trust score at which a claim counts as credible")
	settingsSetCmd.Flags().Int("promotion-threshold", 0, "trust score required for promotion")
	settingsCmd.AddCommand(settingsShowCmd, settingsSetCmd)
	rootCmd.AddCommand(settingsCmd)
}
