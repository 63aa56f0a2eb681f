package cli

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"shadowdeck/internal/config"
)

var settingsCmd = &cobra.Command{
	Use:   "settings",
	Short: "Show or change application settings",
}

var settingsShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show all settings",
	RunE: func(cmd *cobra.Command, args []string) error {
		fmt.Printf("Settings file: %s\n\n", appInstance.SettingsPath)

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "KEY\tVALUE")
		fmt.Fprintln(w, "---\t-----")
		for _, key := range config.Keys() {
			value, _ := appInstance.Settings.Get(key)
			fmt.Fprintf(w, "%s\t%s\n", key, value)
		}
		w.Flush()

		store := appInstance.Store
		fmt.Printf("\nStore (%s)\n", store.Path())
		w = tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintf(w, "auto_hide\t%v\n", store.AutoHide())
		fmt.Fprintf(w, "auto_start\t%v\n", store.AutoStart())
		fmt.Fprintf(w, "debug\t%v\n", store.Debug())
		fmt.Fprintf(w, "backend_type\t%s\n", store.BackendType())
		fmt.Fprintf(w, "backend_path\t%s\n", orNotFound(store.BackendPath()))
		w.Flush()
		return nil
	},
}

var settingsGetCmd = &cobra.Command{
	Use:               "get <key>",
	Short:             "Print one setting",
	Args:              cobra.ExactArgs(1),
	ValidArgsFunction: completeSettingKeys,
	RunE: func(cmd *cobra.Command, args []string) error {
		value, err := appInstance.Settings.Get(args[0])
		if err != nil {
			return err
		}
		fmt.Println(value)
		return nil
	},
}

var settingsSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Change one setting",
	Long: `Change one setting and save the settings file.

The store flags auto_hide, auto_start and debug are saved in the profile
store instead, shared with the GUI.`,
	Args:              cobra.ExactArgs(2),
	ValidArgsFunction: completeSettingKeys,
	RunE: func(cmd *cobra.Command, args []string) error {
		key, value := args[0], args[1]

		if set, ok := storeFlags[key]; ok {
			v, err := parseBool(value)
			if err != nil {
				return fmt.Errorf("invalid value for %s: %w", key, err)
			}
			set(v)
			if err := appInstance.Session.SaveMisc(); err != nil {
				return err
			}
			fmt.Printf("%s = %v\n", key, v)
			return nil
		}

		if err := appInstance.Settings.Set(key, value); err != nil {
			return err
		}
		if err := appInstance.SaveSettings(); err != nil {
			return err
		}
		got, _ := appInstance.Settings.Get(key)
		fmt.Printf("%s = %s\n", key, got)
		return nil
	},
}

// storeFlags maps the misc store flags to their session setters.
var storeFlags = map[string]func(bool){
	"auto_hide":  func(v bool) { appInstance.Session.SetAutoHide(v) },
	"auto_start": func(v bool) { appInstance.Session.SetAutoStart(v) },
	"debug":      func(v bool) { appInstance.Session.SetDebug(v) },
}

func parseBool(s string) (bool, error) {
	switch s {
	case "1", "true", "yes", "on":
		return true, nil
	case "0", "false", "no", "off":
		return false, nil
	}
	return false, fmt.Errorf("expected true or false, got %q", s)
}

func init() {
	settingsCmd.AddCommand(settingsShowCmd)
	settingsCmd.AddCommand(settingsGetCmd)
	settingsCmd.AddCommand(settingsSetCmd)
	rootCmd.AddCommand(settingsCmd)
}
