package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"shadowdeck/internal/events"
	pkgerrors "shadowdeck/pkg/errors"
)

var runCmd = &cobra.Command{
	Use:   "run [name]",
	Short: "Run the backend in the foreground",
	Long: `Start the backend for a profile and stream its output until it exits.
Ctrl+C stops the backend. Without a name the current profile is used.`,
	Args:              cobra.MaximumNArgs(1),
	ValidArgsFunction: completeProfileNames,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		s := appInstance.Session
		if len(args) == 1 {
			i, _, err := resolveProfile(args[0])
			if err != nil {
				return err
			}
			if err := s.Select(i, nil); err != nil {
				return err
			}
		}
		if !s.EnsureProfile() {
			return pkgerrors.ErrNoProfiles
		}

		exited := make(chan events.Stopped, 1)
		unsubscribe := appInstance.Bus.Subscribe(func(e events.Event) {
			switch ev := e.(type) {
			case events.Started:
				fmt.Fprintf(os.Stderr, "Started %s (pid %d) %s -> %s\n",
					ev.ProfileName, ev.PID, ev.Local, ev.Server)
			case events.Output:
				os.Stdout.Write(ev.Data)
			case events.Stopped:
				select {
				case exited <- ev:
				default:
				}
			}
		})
		defer unsubscribe()

		p := s.Working()
		fmt.Fprintf(os.Stderr, "Starting %s with %s backend...\n", p.Name, appInstance.Store.BackendType())
		if err := s.Start(nil); err != nil {
			return err
		}

		select {
		case <-ctx.Done():
			fmt.Fprintln(os.Stderr, "\nStopping...")
			s.Stop()
			waitCtx, cancel := context.WithTimeout(context.Background(), appInstance.Settings.StopTimeout+2*time.Second)
			defer cancel()
			if err := appInstance.Controller.Wait(waitCtx); err != nil {
				return fmt.Errorf("backend did not stop: %w", err)
			}
			fmt.Fprintln(os.Stderr, "Stopped.")
			return nil
		case ev := <-exited:
			if ev.Err != nil {
				return fmt.Errorf("backend exited unexpectedly (code %d): %w", ev.ExitCode, ev.Err)
			}
			if ev.ExitCode != 0 {
				return fmt.Errorf("backend exited with code %d", ev.ExitCode)
			}
			fmt.Fprintln(os.Stderr, "Backend exited.")
			return nil
		}
	},
}

func init() {
	rootCmd.AddCommand(runCmd)
}
