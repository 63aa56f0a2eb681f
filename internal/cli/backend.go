package cli

import (
	"fmt"
	"runtime"

	"github.com/spf13/cobra"

	"shadowdeck/internal/core/backend"
	"shadowdeck/internal/core/types"
)

var backendCmd = &cobra.Command{
	Use:   "backend",
	Short: "Inspect and choose the shadowsocks backend",
}

var backendDetectCmd = &cobra.Command{
	Use:         "detect <path>",
	Short:       "Guess the backend kind from an executable name",
	Args:        cobra.ExactArgs(1),
	Annotations: map[string]string{skipApp: "true"},
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println(backend.Detect(args[0]))
	},
}

var backendResolveCmd = &cobra.Command{
	Use:   "resolve",
	Short: "Show which executable would be launched",
	Long: `Resolve the backend executable for the configured kind. An explicit path
of the same kind wins; otherwise the application bin directories and PATH
are searched.`,
	Args:              cobra.MaximumNArgs(1),
	ValidArgsFunction: completeBackendTypes,
	RunE: func(cmd *cobra.Command, args []string) error {
		store := appInstance.Store
		t := store.BackendType()
		if len(args) == 1 {
			parsed, err := types.ParseBackendType(args[0])
			if err != nil {
				return err
			}
			t = parsed
		}

		path := appInstance.Locator.Resolve(t, store.BackendPath())
		fmt.Printf("Type:        %s\n", t)
		fmt.Printf("Executable:  %s\n", backend.ExecName(t, runtime.GOOS))
		if path == "" {
			fmt.Printf("Path:        not found\n")
			return nil
		}
		fmt.Printf("Path:        %s\n", path)
		return nil
	},
}

var backendSetCmd = &cobra.Command{
	Use:   "set <type|path>",
	Short: "Choose the backend by kind or by executable path",
	Long: `Choose the backend. A kind name (libev, nodejs, go, python) re-resolves the
executable; anything else is taken as a path and its kind is detected from
the file name.`,
	Args:              cobra.ExactArgs(1),
	ValidArgsFunction: completeBackendTypes,
	RunE: func(cmd *cobra.Command, args []string) error {
		s := appInstance.Session
		if t, err := types.ParseBackendType(args[0]); err == nil {
			path := s.SetBackendType(t)
			fmt.Printf("Backend: %s (%s)\n", t, orNotFound(path))
		} else {
			t := s.SetBackendPath(args[0])
			fmt.Printf("Backend: %s (%s)\n", t, args[0])
		}
		return appInstance.Store.Save()
	},
}

func orNotFound(path string) string {
	if path == "" {
		return "not found"
	}
	return path
}

func init() {
	backendCmd.AddCommand(backendDetectCmd)
	backendCmd.AddCommand(backendResolveCmd)
	backendCmd.AddCommand(backendSetCmd)
	rootCmd.AddCommand(backendCmd)
}
