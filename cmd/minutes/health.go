package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/pdiddy/rapid-minutes/internal/errclass"
)

var healthCmd = &cobra.Command{
	Use:   "health",
	Short: "Check that the backend is reachable",
	RunE:  runHealth,
}

func init() {
	rootCmd.AddCommand(healthCmd)
}

func runHealth(cmd *cobra.Command, args []string) error {
	h, err := newClient().Health(cmd.Context())
	if err != nil {
		return explain(cmd, err, errclass.ContextUnknown)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "%s: %s\n", cfg.Backend.BaseURL, h.Status)
	if h.Ollama != "" {
		fmt.Fprintf(out, "  ollama: %s\n", h.Ollama)
	}
	if h.Error != "" {
		return fmt.Errorf("backend unhealthy: %s", h.Error)
	}
	return nil
}
