package main

import (
	"fmt"
	"io"
	"os"
	"os/signal"
	"sync"

	"github.com/spf13/cobra"

	"github.com/pdiddy/rapid-minutes/internal/notify"
	"github.com/pdiddy/rapid-minutes/internal/session"
	"github.com/pdiddy/rapid-minutes/pkg/types"
)

var processCmd = &cobra.Command{
	Use:   "process <transcript.txt>",
	Short: "Upload a transcript, wait for the minutes, and save them",
	Long: `Process runs one session end to end: the transcript is checked, uploaded,
and processed by the backend while progress is printed. When the job
completes, every available artifact is saved to the output directory.`,
	Args: cobra.ExactArgs(1),
	RunE: runProcess,
}

func init() {
	processCmd.Flags().StringSlice("types", nil, "artifact types to save (default word,pdf)")
	processCmd.Flags().String("out", "", "output directory for the minutes")
	processCmd.Flags().Bool("no-download", false, "stop once processing completes")

	rootCmd.AddCommand(processCmd)
}

func runProcess(cmd *cobra.Command, args []string) error {
	if kinds, _ := cmd.Flags().GetStringSlice("types"); len(kinds) > 0 {
		cfg.Download.Artifacts = kinds
	}
	if out, _ := cmd.Flags().GetString("out"); out != "" {
		cfg.Download.OutputDir = out
	}
	noDownload, _ := cmd.Flags().GetBool("no-download")

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
	defer stop()

	out := cmd.OutOrStdout()
	printer := &progressPrinter{w: out}
	a, err := newApp(
		[]notify.Option{notify.WithRenderer(notify.NewTextRenderer(cmd.ErrOrStderr()))},
		session.WithOnChange(printer.update),
	)
	if err != nil {
		return err
	}
	defer a.Close()
	printer.orch = a.orch

	file, err := session.FileFromPath(args[0])
	if err != nil {
		return err
	}
	if err := a.orch.SelectFile(file); err != nil {
		return err
	}
	if err := a.orch.Generate(ctx); err != nil {
		return err
	}

	s, err := a.orch.Wait(ctx)
	if err != nil {
		return err
	}
	if s.Status != types.StatusCompleted {
		return fmt.Errorf("processing %s: %s", file.Name, s.Message)
	}
	fmt.Fprintf(out, "Minutes ready for %s (id %s)\n", file.Name, s.ID)
	if noDownload {
		return nil
	}

	results, err := a.orch.DownloadAll(ctx)
	for _, r := range results {
		if r.Err == nil {
			fmt.Fprintf(out, "  %-5s %s\n", r.Artifact, r.Path)
		}
	}
	if len(results) == 0 && err == nil {
		return fmt.Errorf("no artifacts available for %s", s.ID)
	}
	return err
}

// progressPrinter prints a line whenever the session's status, progress,
// or message changes.
type progressPrinter struct {
	mu   sync.Mutex
	w    io.Writer
	orch *session.Orchestrator
	last types.Session
}

func (p *progressPrinter) update() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.orch == nil {
		return
	}
	s := p.orch.Snapshot()
	if s.Status == p.last.Status && s.Progress == p.last.Progress && s.Message == p.last.Message {
		return
	}
	p.last = s
	if s.Status == types.StatusIdle {
		return
	}
	fmt.Fprintf(p.w, "[%-13s] %3d%% %s\n", s.Status, s.Progress, s.Message)
}
