package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"shadowdeck/internal/tui"
)

var tuiCmd = &cobra.Command{
	Use:   "tui",
	Short: "Open the interactive terminal UI",
	Long: `Launch the full-screen terminal UI for editing profiles, starting and
stopping the backend and following its output. Logs go to a file so they do
not draw over the screen.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if appInstance.StoreErr != nil {
			fmt.Fprintf(cmd.ErrOrStderr(), "Warning: %v; starting with an empty profile list\n", appInstance.StoreErr)
		}

		p, stop := tui.NewProgram(tui.Deps{
			Session:           appInstance.Session,
			Backend:           appInstance.Controller,
			Bus:               appInstance.Bus,
			Tester:            appInstance.Tester,
			Importer:          appInstance.Importer,
			History:           appInstance.History,
			NewProbeScheduler: appInstance.NewProbeScheduler,
			StopTimeout:       appInstance.Settings.StopTimeout,
			Logger:            appInstance.Logger,
		})
		defer stop()

		if _, err := p.Run(); err != nil {
			return fmt.Errorf("TUI error: %w", err)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(tuiCmd)
}
