package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/verifact/internal/config"
)

var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:   "verifact",
	Short: "Fact evaluation and trust-scoring pipeline",
	Long:  "Ingests numeric claims about countries from multiple statistics providers, scores them for trust, and promotes high-confidence claims into a verified fact set.",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		c, err := config.Load()
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		cfg = c

		if err := config.InitLogger(cfg.Log); err != nil {
			return fmt.Errorf("init logger: %w", err)
		}

		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = zap.L().Sync()
	},
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
