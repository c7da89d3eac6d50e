package main

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/pdiddy/rapid-minutes/internal/store"
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "List past sessions and archived errors",
	Long: `History lists recent sessions from the local store, newest first. With
--json or --yaml the sessions (and, with --errors, the archived error
reports) are exported in that format.`,
	RunE: runHistory,
}

func init() {
	historyCmd.Flags().Int("limit", 20, "maximum number of records per section")
	historyCmd.Flags().Bool("errors", false, "include archived error reports")
	historyCmd.Flags().Bool("json", false, "export as JSON")
	historyCmd.Flags().Bool("yaml", false, "export as YAML")

	rootCmd.AddCommand(historyCmd)
}

func runHistory(cmd *cobra.Command, args []string) error {
	limit, _ := cmd.Flags().GetInt("limit")
	withErrors, _ := cmd.Flags().GetBool("errors")
	asJSON, _ := cmd.Flags().GetBool("json")
	asYAML, _ := cmd.Flags().GetBool("yaml")
	if asJSON && asYAML {
		return fmt.Errorf("--json and --yaml are mutually exclusive")
	}

	st, err := store.NewStore(cfg.Store)
	if err != nil {
		return err
	}
	defer st.Close()

	ctx := cmd.Context()
	out := cmd.OutOrStdout()
	switch {
	case asJSON:
		return st.Export(ctx, out, store.ExportOptions{Format: store.FormatJSON, Limit: limit, IncludeErrors: withErrors})
	case asYAML:
		return st.Export(ctx, out, store.ExportOptions{Format: store.FormatYAML, Limit: limit, IncludeErrors: withErrors})
	}

	sessions, err := st.Sessions(ctx, limit)
	if err != nil {
		return err
	}
	if len(sessions) == 0 {
		fmt.Fprintln(out, "No sessions recorded.")
	} else {
		tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
		fmt.Fprintln(tw, "UPDATED\tFILE\tID\tSTATUS\tPROGRESS")
		for _, s := range sessions {
			fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%d%%\n",
				s.UpdatedAt.Local().Format(time.DateTime), s.FileName, s.FileID, s.Status, s.Progress)
		}
		tw.Flush()
	}

	if !withErrors {
		return nil
	}
	reports, err := st.Reports(ctx, store.ReportFilter{Limit: limit})
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "\n%d archived error(s)\n", len(reports))
	for _, r := range reports {
		fmt.Fprintf(out, "  %s  %-10s %s\n", r.Timestamp.Local().Format(time.DateTime), r.Kind, r.Message)
	}
	return nil
}
