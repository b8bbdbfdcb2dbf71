package main

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"github.com/tealeg/xlsx/v2"

	"github.com/sells-group/verifact/internal/source"
)

var tldCmd = &cobra.Command{
	Use:   "tld",
	Short: "Manage the TLD reputation table",
}

var tldListCmd = &cobra.Command{
	Use:   "list",
	Short: "List TLD reputation scores",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		env, err := initEnv(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		entries, err := env.sources.ListTldScores(ctx)
		if err != nil {
			return err
		}
		if len(entries) == 0 {
			fmt.Fprintln(os.Stderr, "TLD table is empty.")
			return nil
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "TLD\tSCORE")
		for _, e := range entries {
			fmt.Fprintf(w, "%s\t%d\n", e.TLD, e.Score)
		}
		return w.Flush()
	},
}

var tldSetCmd = &cobra.Command{
	Use:   "set <tld> <score>",
	Short: "Set one TLD reputation score",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		env, err := initEnv(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		score, err := strconv.Atoi(args[1])
		if err != nil {
			return eris.Wrapf(err, "parse score %q", args[1])
		}

		if err := env.sources.SetTldScore(ctx, args[0], score); err != nil {
			return err
		}
		fmt.Printf("%s = %d\n", args[0], score)
		return nil
	},
}

var tldImportCmd = &cobra.Command{
	Use:   "import <file.xlsx>",
	Short: "Bulk-import TLD scores from a spreadsheet",
	Long:  "Imports a curated spreadsheet whose first sheet holds TLD and score columns. Existing entries are overwritten.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		entries, err := parseTldSheet(args[0])
		if err != nil {
			return err
		}
		if len(entries) == 0 {
			return eris.Errorf("no TLD rows found in %s", args[0])
		}

		env, err := initEnv(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		n, err := env.sources.ImportTldScores(ctx, entries)
		if err != nil {
			return err
		}
		fmt.Printf("imported %d TLD scores\n", n)
		return nil
	},
}

// parseTldSheet reads (tld, score) rows from the first sheet. A header row
// is detected by its non-numeric score cell and skipped.
func parseTldSheet(path string) ([]source.TldScore, error) {
	file, err := xlsx.OpenFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "open spreadsheet %s", path)
	}
	if len(file.Sheets) == 0 {
		return nil, eris.Errorf("spreadsheet %s has no sheets", path)
	}

	var entries []source.TldScore
	for _, row := range file.Sheets[0].Rows {
		if len(row.Cells) < 2 {
			continue
		}
		tld := strings.TrimSpace(row.Cells[0].String())
		if tld == "" {
			continue
		}
		score, err := strconv.Atoi(strings.TrimSpace(row.Cells[1].String()))
		if err != nil {
			continue
		}
		if score < 0 || score > 100 {
			return nil, eris.Errorf("tld %s: score %d out of range", tld, score)
		}
		entries = append(entries, source.TldScore{TLD: tld, Score: score})
	}
	return entries, nil
}

func init() {
	tldCmd.AddCommand(tldListCmd, tldSetCmd, tldImportCmd)
	rootCmd.AddCommand(tldCmd)
}
