package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"shadowdeck/internal/storage"
)

const historyTimeFormat = "2006-01-02 15:04:05"

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Show backend run and latency history",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return historyRunsCmd.RunE(cmd, args)
	},
}

func requireHistory() error {
	if appInstance.History == nil {
		return errors.New("history database is not available")
	}
	return nil
}

var historyRunsCmd = &cobra.Command{
	Use:   "runs",
	Short: "List backend runs, newest first",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := requireHistory(); err != nil {
			return err
		}
		ctx := context.Background()
		limit, _ := cmd.Flags().GetInt("limit")
		profile, _ := cmd.Flags().GetString("profile")

		runs, err := appInstance.History.ListRuns(ctx, storage.RunFilter{ProfileName: profile, Limit: limit})
		if err != nil {
			return err
		}
		if len(runs) == 0 {
			fmt.Println("No runs recorded.")
			return nil
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "STARTED\tPROFILE\tBACKEND\tPID\tDURATION\tEXIT")
		fmt.Fprintln(w, "-------\t-------\t-------\t---\t--------\t----")
		for _, r := range runs {
			duration := "running"
			exit := "-"
			if r.StoppedAt != nil {
				duration = r.StoppedAt.Sub(r.StartedAt).Truncate(time.Second).String()
				switch {
				case r.Requested:
					exit = "stopped"
				case r.ExitCode != nil:
					exit = fmt.Sprintf("code %d", *r.ExitCode)
				default:
					exit = "lost"
				}
			}
			fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%s\t%s\n",
				r.StartedAt.Local().Format(historyTimeFormat), truncateName(r.ProfileName, 30),
				r.BackendType, r.PID, duration, exit)
		}
		w.Flush()
		return nil
	},
}

var historyLatencyCmd = &cobra.Command{
	Use:               "latency <name>",
	Short:             "Show latency test history of a profile",
	Args:              cobra.ExactArgs(1),
	ValidArgsFunction: completeProfileNames,
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := requireHistory(); err != nil {
			return err
		}
		ctx := context.Background()
		limit, _ := cmd.Flags().GetInt("limit")
		name := args[0]

		history, err := appInstance.History.GetLatencyHistory(ctx, name, limit)
		if err != nil {
			return err
		}
		if len(history) == 0 {
			fmt.Printf("No latency history for %s\n", name)
			return nil
		}

		fmt.Printf("Latency History: %s (%s)\n", name, history[0].Server)
		fmt.Println(strings.Repeat("═", 50))
		fmt.Println()

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "TIME\tSTRATEGY\tLATENCY\tSTATUS")
		fmt.Fprintln(w, "----\t--------\t-------\t------")
		for _, entry := range history {
			latStr := "N/A"
			statusStr := "FAIL"
			if entry.Success && entry.LatencyMS != nil {
				latStr = fmt.Sprintf("%d ms", *entry.LatencyMS)
				statusStr = "OK"
			}
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\n",
				entry.TestedAt.Local().Format(historyTimeFormat), entry.TestStrategy, latStr, statusStr)
		}
		w.Flush()
		return nil
	},
}

var historyPruneCmd = &cobra.Command{
	Use:   "prune",
	Short: "Delete latency results older than --older-than",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := requireHistory(); err != nil {
			return err
		}
		age, _ := cmd.Flags().GetDuration("older-than")
		n, err := appInstance.History.PruneLatency(context.Background(), time.Now().Add(-age))
		if err != nil {
			return err
		}
		fmt.Printf("Deleted %d latency results\n", n)
		return nil
	},
}

func init() {
	historyCmd.Flags().IntP("limit", "n", 20, "number of entries")
	historyCmd.Flags().StringP("profile", "p", "", "only runs of this profile")
	historyRunsCmd.Flags().IntP("limit", "n", 20, "number of entries")
	historyRunsCmd.Flags().StringP("profile", "p", "", "only runs of this profile")
	historyLatencyCmd.Flags().IntP("limit", "n", 20, "number of entries")
	historyPruneCmd.Flags().Duration("older-than", 30*24*time.Hour, "age of results to delete")

	historyRunsCmd.RegisterFlagCompletionFunc("profile", completeProfileNames)

	historyCmd.AddCommand(historyRunsCmd)
	historyCmd.AddCommand(historyLatencyCmd)
	historyCmd.AddCommand(historyPruneCmd)
	rootCmd.AddCommand(historyCmd)
}
