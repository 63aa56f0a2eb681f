package cli

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"shadowdeck/internal/app"
	"shadowdeck/internal/logging"
)

// tuiLogName is the log file used while the terminal belongs to the TUI.
const tuiLogName = "shadowdeck.log"

var (
	appInstance *app.App
	logCloser   io.Closer
	version     = "dev"
)

var (
	storePath    string
	settingsPath string
	logLevel     string
)

// skipApp marks commands that run without loading the store.
const skipApp = "skip-app"

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "shadowdeck",
	Short: "Shadowsocks profile manager and backend launcher",
	Long: `shadowdeck - manage shadowsocks profiles and run a local client backend

  Quick start:
    shadowdeck profile add home --uri "ss://..."
    shadowdeck test home
    shadowdeck run home

  Features:
    • Profiles stored in a JSON file shared with the GUI
    • libev, go, nodejs and python backends, found automatically
    • Foreground runs with streamed backend output
    • TCP and SOCKS latency probes with history
    • Full-screen terminal UI`,
	Version:       version,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if cmd.Annotations[skipApp] == "true" {
			return nil
		}
		logger, err := setupLogging(cmd)
		if err != nil {
			return err
		}
		appInstance, err = app.New(app.Options{
			StorePath:    storePath,
			SettingsPath: settingsPath,
			LogLevel:     logLevel,
			Logger:       logger,
		})
		if err != nil {
			return fmt.Errorf("failed to initialize application: %w", err)
		}
		return nil
	},
	PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		if appInstance != nil {
			err = appInstance.Close()
			appInstance = nil
		}
		if logCloser != nil {
			logCloser.Close()
			logCloser = nil
		}
		return err
	},
}

// setupLogging sends logs to stderr, or to a file in the cache directory
// for the TUI.
func setupLogging(cmd *cobra.Command) (*slog.Logger, error) {
	level, err := logging.ParseLevel(logLevel)
	if err != nil {
		return nil, err
	}
	if cmd.Name() == "tui" {
		logger, closer, err := logging.SetupFile(tuiLogName, level)
		if err == nil {
			logCloser = closer
			return logger, nil
		}
		return logging.Discard(), nil
	}
	return logging.Setup(os.Stderr, level), nil
}

// Execute executes the root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		if appInstance != nil {
			appInstance.Close()
		}
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&storePath, "store", "", "profile store path")
	rootCmd.PersistentFlags().StringVar(&settingsPath, "settings", "", "settings file path")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level (debug, info, warn, error)")

	rootCmd.RegisterFlagCompletionFunc("log-level", func(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
		return []string{"debug", "info", "warn", "error"}, cobra.ShellCompDirectiveNoFileComp
	})

	rootCmd.AddCommand(versionCmd)
}

var versionCmd = &cobra.Command{
	Use:         "version",
	Short:       "Print version information",
	Annotations: map[string]string{skipApp: "true"},
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("shadowdeck %s\n", version)
	},
}
