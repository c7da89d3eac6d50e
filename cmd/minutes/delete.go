package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/pdiddy/rapid-minutes/internal/errclass"
)

var deleteCmd = &cobra.Command{
	Use:   "delete <file-id>",
	Short: "Remove an uploaded transcript and its minutes from the backend",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := newClient().Delete(cmd.Context(), args[0]); err != nil {
			return explain(cmd, err, errclass.ContextUnknown)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Deleted %s\n", args[0])
		return nil
	},
}

func init() {
	rootCmd.AddCommand(deleteCmd)
}
