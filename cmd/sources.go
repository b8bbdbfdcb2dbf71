package main

import (
	"encoding/json"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/verifact/internal/source"
)

var sourcesCmd = &cobra.Command{
	Use:   "sources",
	Short: "Manage registered sources",
	Long:  "Commands for listing, inspecting, and transitioning the lifecycle of data sources.",
}

var sourcesListCmd = &cobra.Command{
	Use:   "list",
	Short: "List registered sources",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		env, err := initEnv(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		sources, err := env.sources.List(ctx)
		if err != nil {
			return err
		}
		if len(sources) == 0 {
			fmt.Fprintln(os.Stderr, "No sources registered.")
			return nil
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "DOMAIN\tNAME\tTRUST\tIDENTITY\tSTATUS\tFACTS")
		for _, s := range sources {
			fmt.Fprintf(w, "%s\t%s\t%d\t%d\t%s\t%d\n",
				s.Domain, s.Name, s.TrustScore(), s.IdentityScore, s.Status, s.FactsContributed)
		}
		return w.Flush()
	},
}

var sourcesShowCmd = &cobra.Command{
	Use:   "show <domain>",
	Short: "Show a source with its identity metrics",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		env, err := initEnv(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		src, err := env.sources.GetByDomain(ctx, args[0])
		if err != nil {
			return err
		}
		if src == nil {
			return eris.Errorf("no source registered for domain %s", args[0])
		}

		metrics, err := env.sources.GetIdentityMetrics(ctx, src.ID)
		if err != nil {
			return err
		}

		out := struct {
			Source  *source.Source          `json:"source"`
			Metrics *source.IdentityMetrics `json:"identity_metrics,omitempty"`
		}{src, metrics}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(out)
	},
}

var sourcesStatusCmd = &cobra.Command{
	Use:   "status <domain> <pending_review|trusted|rejected>",
	Short: "Transition a source's lifecycle status",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		env, err := initEnv(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		src, err := env.sources.GetByDomain(ctx, args[0])
		if err != nil {
			return err
		}
		if src == nil {
			return eris.Errorf("no source registered for domain %s", args[0])
		}

		status := args[1]
		var promotedAt *time.Time
		if status == source.StatusTrusted {
			now := time.Now()
			promotedAt = &now
		}

		if err := env.sources.UpdateStatus(ctx, src.ID, status, promotedAt); err != nil {
			return err
		}

		if err := env.sources.AppendActivity(ctx, source.ActivityEntry{
			SourceID: src.ID,
			Action:   "status_changed",
			Detail:   fmt.Sprintf("%s -> %s", src.Status, status),
		}); err != nil {
			return err
		}

		fmt.Printf("%s: %s -> %s\n", src.Domain, src.Status, status)
		return nil
	},
}

var sourcesDeleteCmd = &cobra.Command{
	Use:   "delete <domain>",
	Short: "Remove a source",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		env, err := initEnv(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		src, err := env.sources.GetByDomain(ctx, args[0])
		if err != nil {
			return err
		}
		if src == nil {
			return eris.Errorf("no source registered for domain %s", args[0])
		}

		if err := env.sources.Delete(ctx, src.ID); err != nil {
			return err
		}
		fmt.Printf("deleted %s\n", src.Domain)
		return nil
	},
}

var sourcesActivityCmd = &cobra.Command{
	Use:   "activity",
	Short: "Show recent source activity",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		env, err := initEnv(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		limit, _ := cmd.Flags().GetInt("limit")
		entries, err := env.sources.RecentActivity(ctx, limit)
		if err != nil {
			return err
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "WHEN\tSOURCE\tACTION\tDETAIL")
		for _, e := range entries {
			fmt.Fprintf(w, "%s\t%d\t%s\t%s\n",
				e.CreatedAt.Format(time.RFC3339), e.SourceID, e.Action, e.Detail)
		}
		return w.Flush()
	},
}

func init() {
	sourcesActivityCmd.Flags().Int("limit", 50, "max entries to show")
	sourcesCmd.AddCommand(sourcesListCmd, sourcesShowCmd, sourcesStatusCmd, sourcesDeleteCmd, sourcesActivityCmd)
	rootCmd.AddCommand(sourcesCmd)
}
