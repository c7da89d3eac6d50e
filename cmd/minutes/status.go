package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/pdiddy/rapid-minutes/internal/errclass"
)

var statusCmd = &cobra.Command{
	Use:   "status <file-id>",
	Short: "Show the processing status of an uploaded transcript",
	Args:  cobra.ExactArgs(1),
	RunE:  runStatus,
}

func init() {
	statusCmd.Flags().Bool("json", false, "print the raw status record as JSON")

	rootCmd.AddCommand(statusCmd)
}

func runStatus(cmd *cobra.Command, args []string) error {
	st, err := newClient().Status(cmd.Context(), args[0])
	if err != nil {
		return explain(cmd, err, errclass.ContextProcessing)
	}

	out := cmd.OutOrStdout()
	if asJSON, _ := cmd.Flags().GetBool("json"); asJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(st)
	}

	fmt.Fprintf(out, "%s: %s %d%%\n", st.FileID, st.Status, st.Progress)
	if st.Message != "" {
		fmt.Fprintf(out, "  %s\n", st.Message)
	}
	if st.Error != "" {
		fmt.Fprintf(out, "  error: %s\n", st.Error)
	}
	return nil
}
