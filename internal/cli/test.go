package cli

import (
	"context"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"shadowdeck/internal/latency"
)

var testCmd = &cobra.Command{
	Use:   "test [name]",
	Short: "Test profile latency",
	Long: `Test latency of profiles.

Test a single profile by name, or every profile with --all. Without either the
current profile is tested. The tcp strategy times a handshake with the server;
the socks strategy fetches the probe URL through the running local backend.`,
	Args:              cobra.MaximumNArgs(1),
	ValidArgsFunction: completeProfileNames,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := context.Background()
		probe := appInstance.Settings.Probe

		tester := appInstance.Tester
		if cmd.Flags().Changed("strategy") || cmd.Flags().Changed("workers") || cmd.Flags().Changed("timeout") {
			strategyName := probe.Strategy
			if cmd.Flags().Changed("strategy") {
				strategyName, _ = cmd.Flags().GetString("strategy")
			}
			workers := int64(probe.Workers)
			if cmd.Flags().Changed("workers") {
				workers, _ = cmd.Flags().GetInt64("workers")
			}
			timeout := probe.Timeout
			if cmd.Flags().Changed("timeout") {
				timeout, _ = cmd.Flags().GetDuration("timeout")
			}

			strategy, err := latency.NewStrategy(strategyName, probe.URL)
			if err != nil {
				return err
			}
			tester = latency.NewTester(appInstance.History, latency.TesterConfig{
				Workers:  workers,
				Timeout:  timeout,
				Strategy: strategy,
			})
		}

		if all, _ := cmd.Flags().GetBool("all"); all {
			return runBatchTest(ctx, tester)
		}

		identifier := ""
		if len(args) == 1 {
			identifier = args[0]
		}
		return runSingleTest(ctx, tester, identifier)
	},
}

func runSingleTest(ctx context.Context, tester *latency.Tester, identifier string) error {
	p, err := appInstance.Store.Current()
	if identifier != "" {
		_, p, err = resolveProfile(identifier)
	}
	if err != nil {
		return err
	}

	fmt.Printf("Testing %s (%s:%s, %s)... ", p.Name, p.Server, p.ServerPort, tester.Strategy().Name())

	result := tester.TestSingle(ctx, p)
	if result.Latency.Success {
		fmt.Printf("%d ms\n", *result.Latency.LatencyMS)
	} else {
		fmt.Printf("FAILED (%s)\n", result.Latency.ErrorMessage)
	}
	return nil
}

func runBatchTest(ctx context.Context, tester *latency.Tester) error {
	profiles := appInstance.Store.Profiles()
	if len(profiles) == 0 {
		fmt.Println("No profiles found.")
		return nil
	}

	fmt.Printf("Testing %d profiles...\n\n", len(profiles))

	progress := func(result *latency.TestResult, current, total int) {
		if result.Latency.Success {
			fmt.Printf("  [%d/%d] %-40s %d ms\n", current, total,
				truncateName(result.Profile.Name, 40), *result.Latency.LatencyMS)
		} else {
			fmt.Printf("  [%d/%d] %-40s FAILED\n", current, total,
				truncateName(result.Profile.Name, 40))
		}
	}

	batch := tester.TestBatch(ctx, profiles, progress)

	fmt.Printf("\n\nResults (sorted by latency):\n")
	fmt.Println(strings.Repeat("─", 75))

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "#\tNAME\tSERVER\tLATENCY\tSTATUS")
	fmt.Fprintln(w, "-\t----\t------\t-------\t------")

	for i, result := range batch.Results {
		latStr := "N/A"
		statusStr := "FAIL"
		if result.Latency.Success {
			latStr = fmt.Sprintf("%d ms", *result.Latency.LatencyMS)
			statusStr = "OK"
		}
		fmt.Fprintf(w, "%d\t%s\t%s:%s\t%s\t%s\n",
			i+1, truncateName(result.Profile.Name, 35),
			result.Profile.Server, result.Profile.ServerPort,
			latStr, statusStr)
	}
	w.Flush()

	fmt.Printf("\nSummary: %d tested, %d succeeded, %d failed (%.1fs)\n",
		batch.Tested, batch.Succeeded, batch.Failed, batch.Duration.Seconds())
	return nil
}

func init() {
	testCmd.Flags().StringP("strategy", "s", "tcp", "test strategy (tcp, socks)")
	testCmd.Flags().Int64P("workers", "w", 10, "number of concurrent workers")
	testCmd.Flags().DurationP("timeout", "t", 5*time.Second, "per-test timeout")
	testCmd.Flags().Bool("all", false, "test all profiles")

	testCmd.RegisterFlagCompletionFunc("strategy", func(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
		return []string{"tcp", "socks"}, cobra.ShellCompDirectiveNoFileComp
	})

	rootCmd.AddCommand(testCmd)
}
