package main

import (
	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/pdiddy/rapid-minutes/internal/notify"
	"github.com/pdiddy/rapid-minutes/internal/session"
	"github.com/pdiddy/rapid-minutes/internal/store"
	"github.com/pdiddy/rapid-minutes/internal/tui"
)

var uiCmd = &cobra.Command{
	Use:   "ui [transcript.txt]",
	Short: "Open the interactive terminal interface",
	Long: `UI opens a full-screen terminal interface for one session at a time.
Logs go to the store directory (or --log-file) so they do not disturb the
screen. A first-run guide is shown once.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runUI,
}

func init() {
	rootCmd.AddCommand(uiCmd)
}

func runUI(cmd *cobra.Command, args []string) error {
	sig := tui.NewSignal()
	a, err := newApp(
		[]notify.Option{notify.WithOnChange(sig.Notify)},
		session.WithOnChange(sig.Notify),
	)
	if err != nil {
		return err
	}
	defer a.Close()

	var path string
	if len(args) == 1 {
		path = args[0]
	}
	m := tui.NewModel(tui.Config{
		Orchestrator: a.orch,
		Center:       a.center,
		Signal:       sig,
		Flags:        a.store,
		FlagKey:      store.WelcomeFlag,
		Path:         path,
	})

	_, err = tea.NewProgram(m, tea.WithAltScreen(), tea.WithContext(cmd.Context())).Run()
	return err
}
