package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/pdiddy/rapid-minutes/internal/download"
	"github.com/pdiddy/rapid-minutes/internal/errclass"
)

var downloadCmd = &cobra.Command{
	Use:   "download <file-id> [word|pdf...]",
	Short: "Save the minutes of a completed job",
	Long: `Download saves the generated minutes of a job that has already completed.
With no types, every artifact the backend reports as available is saved.
File names come from the server's Content-Disposition header, falling back
to meeting_minutes_<date>.<ext>.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runDownload,
}

func init() {
	downloadCmd.Flags().String("out", "", "output directory for the minutes")

	rootCmd.AddCommand(downloadCmd)
}

func runDownload(cmd *cobra.Command, args []string) error {
	id := args[0]
	dcfg := cfg.Download
	if len(args) > 1 {
		dcfg.Artifacts = args[1:]
	}
	if out, _ := cmd.Flags().GetString("out"); out != "" {
		dcfg.OutputDir = out
	}

	client := newClient()
	coord := download.New(client, dcfg, download.WithLogger(logger.Named("download")))

	var available map[string]bool
	if st, err := client.Availability(cmd.Context(), id); err != nil {
		logger.Warn("availability check failed, trying every artifact", zap.String("id", id), zap.Error(err))
	} else {
		available = st.Artifacts
	}
	coord.Init(id, available)

	results, err := coord.DownloadAll(cmd.Context())
	out := cmd.OutOrStdout()
	for _, r := range results {
		if r.Err != nil {
			explain(cmd, fmt.Errorf("%s: %w", r.Artifact, r.Err), errclass.ContextDownload)
			continue
		}
		fmt.Fprintf(out, "  %-5s %s\n", r.Artifact, r.Path)
	}
	if err != nil {
		return err
	}
	if len(results) == 0 {
		return fmt.Errorf("no artifacts available for %s", id)
	}
	return nil
}
