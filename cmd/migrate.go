package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/sells-group/verifact/internal/db"
	"github.com/sells-group/verifact/internal/facts"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply pending database migrations",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		pool, err := db.Connect(ctx, cfg.Store.DatabaseURL)
		if err != nil {
			return err
		}
		defer pool.Close()

		if err := facts.Migrate(ctx, pool); err != nil {
			return err
		}

		fmt.Println("migrations up to date")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(migrateCmd)
}
