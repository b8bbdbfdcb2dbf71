package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/sells-group/verifact/internal/facts"
)

var factsCmd = &cobra.Command{
	Use:   "facts",
	Short: "Inspect evaluations and verified facts",
	Long:  "Commands for listing evaluations and verified facts, inspecting consensus, and managing the requested-facts backlog.",
}

// numFmt renders large numeric values with thousands separators for display.
var numFmt = message.NewPrinter(language.English)

func displayValue(raw string) string {
	v, err := strconv.ParseFloat(strings.ReplaceAll(raw, ",", ""), 64)
	if err != nil {
		return raw
	}
	if v == float64(int64(v)) {
		return numFmt.Sprintf("%d", int64(v))
	}
	return numFmt.Sprintf("%.2f", v)
}

func fmtDate(t *time.Time) string {
	if t == nil {
		return "-"
	}
	return t.Format("2006-01-02")
}

var factsListCmd = &cobra.Command{
	Use:   "list <entity> <attribute>",
	Short: "List verified facts for a pair",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		env, err := initEnv(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		rows, err := env.facts.ListFacts(ctx, args[0], args[1])
		if err != nil {
			return err
		}
		if len(rows) == 0 {
			fmt.Fprintln(os.Stderr, "No verified facts found.")
			return nil
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "AS OF\tVALUE\tSOURCE\tTRUST\tVERIFIED")
		for _, f := range rows {
			fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%s\n",
				fmtDate(f.AsOfDate), displayValue(f.Value), f.SourceName,
				f.TrustScore, f.VerifiedAt.Format("2006-01-02"))
		}
		return w.Flush()
	},
}

var factsEvalsCmd = &cobra.Command{
	Use:   "evaluations <entity> <attribute>",
	Short: "List evaluations for a pair",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		env, err := initEnv(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		rows, err := env.facts.ListEvaluations(ctx, args[0], args[1])
		if err != nil {
			return err
		}
		if len(rows) == 0 {
			fmt.Fprintln(os.Stderr, "No evaluations found.")
			return nil
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tAS OF\tVALUE\tSOURCE\tST\tREC\tCON\tTRUST")
		for _, e := range rows {
			fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%d\t%d\t%d\t%d\n",
				e.ID, fmtDate(e.AsOfDate), displayValue(e.Value), e.SourceName,
				e.SourceTrustScore, e.RecencyScore, e.ConsensusScore, e.TrustScore)
		}
		return w.Flush()
	},
}

var factsConsensusCmd = &cobra.Command{
	Use:   "consensus <entity> <attribute>",
	Short: "Show cross-source consensus for a pair",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		env, err := initEnv(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		rows, err := env.facts.ListEvaluations(ctx, args[0], args[1])
		if err != nil {
			return err
		}

		settings, err := facts.LoadSettings(ctx, env.facts)
		if err != nil {
			return err
		}

		consensus := facts.ComputeConsensus(rows, settings.CredibleThreshold)
		if consensus == nil {
			fmt.Fprintln(os.Stderr, "No numeric evaluations to aggregate.")
			return nil
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(consensus)
	},
}

var factsRequestCmd = &cobra.Command{
	Use:   "request <entity> <attribute>",
	Short: "Record demand for a missing fact",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		env, err := initEnv(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		var claimedValue *string
		if v, _ := cmd.Flags().GetString("value"); v != "" {
			claimedValue = &v
		}
		var claimedYear *int
		if y, _ := cmd.Flags().GetInt("year"); y != 0 {
			claimedYear = &y
		}

		if err := env.facts.RequestFact(ctx, args[0], args[1], claimedValue, claimedYear); err != nil {
			return err
		}
		fmt.Printf("requested %s/%s\n", args[0], args[1])
		return nil
	},
}

var factsRequestedCmd = &cobra.Command{
	Use:   "requested",
	Short: "List the requested-facts backlog",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		env, err := initEnv(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		rows, err := env.facts.ListRequested(ctx)
		if err != nil {
			return err
		}
		if len(rows) == 0 {
			fmt.Fprintln(os.Stderr, "Backlog is empty.")
			return nil
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tENTITY\tATTRIBUTE\tREQUESTS\tSINCE")
		for _, r := range rows {
			fmt.Fprintf(w, "%d\t%s\t%s\t%d\t%s\n",
				r.ID, r.Entity, r.Attribute, r.RequestCount, r.CreatedAt.Format("2006-01-02"))
		}
		return w.Flush()
	},
}

var factsActivityCmd = &cobra.Command{
	Use:   "activity",
	Short: "Show recent pipeline activity",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		env, err := initEnv(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		limit, _ := cmd.Flags().GetInt("limit")
		entries, err := env.facts.RecentActivity(ctx, limit)
		if err != nil {
			return err
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "WHEN\tACTION\tENTITY\tATTRIBUTE\tSOURCE\tDETAIL")
		for _, e := range entries {
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n",
				e.CreatedAt.Format(time.RFC3339), e.Action, e.Entity, e.Attribute,
				e.SourceName, e.Detail)
		}
		return w.Flush()
	},
}

func init() {
	factsRequestCmd.Flags().String("value", "", "value the requester believes is correct")
	factsRequestCmd.Flags().Int("year", 0, "year the requester is asking about")
	factsActivityCmd.Flags().Int("limit", 50, "max entries to show")
	factsCmd.AddCommand(factsListCmd, factsEvalsCmd, factsConsensusCmd,
		factsRequestCmd, factsRequestedCmd, factsActivityCmd)
	rootCmd.AddCommand(factsCmd)
}
