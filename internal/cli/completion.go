package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"shadowdeck/internal/app"
	"shadowdeck/internal/config"
	"shadowdeck/internal/core/types"
	"shadowdeck/internal/logging"
	"shadowdeck/internal/storage/models"
)

// ensureApp lazily initializes appInstance for shell completion.
// Cobra may invoke ValidArgsFunction without running PersistentPreRunE.
func ensureApp() error {
	if appInstance != nil {
		return nil
	}
	var err error
	appInstance, err = app.New(app.Options{
		StorePath:    storePath,
		SettingsPath: settingsPath,
		Logger:       logging.Discard(),
		NoHistory:    true,
	})
	return err
}

func filterPrefix(candidates []string, toComplete string) []string {
	var out []string
	for _, c := range candidates {
		if strings.HasPrefix(strings.ToLower(c), strings.ToLower(toComplete)) {
			out = append(out, c)
		}
	}
	return out
}

// completeProfileNames provides shell completion for the first argument.
func completeProfileNames(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
	if len(args) > 0 {
		return nil, cobra.ShellCompDirectiveNoFileComp
	}
	if err := ensureApp(); err != nil {
		return nil, cobra.ShellCompDirectiveError
	}
	return filterPrefix(appInstance.Store.Names(), toComplete), cobra.ShellCompDirectiveNoFileComp
}

// completeProfileSet completes "profile set NAME FIELD".
func completeProfileSet(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
	switch len(args) {
	case 0:
		return completeProfileNames(cmd, args, toComplete)
	case 1:
		names := make([]string, len(models.Fields))
		for i, f := range models.Fields {
			names[i] = string(f)
		}
		return filterPrefix(names, toComplete), cobra.ShellCompDirectiveNoFileComp
	case 2:
		if f, ok := models.ParseField(args[1]); ok && f == models.FieldMethod {
			return filterPrefix(models.Methods, toComplete), cobra.ShellCompDirectiveNoFileComp
		}
	}
	return nil, cobra.ShellCompDirectiveNoFileComp
}

// completeSettingKeys completes "settings set KEY".
func completeSettingKeys(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
	if len(args) > 0 {
		return nil, cobra.ShellCompDirectiveNoFileComp
	}
	keys := append(config.Keys(), "auto_hide", "auto_start", "debug")
	return filterPrefix(keys, toComplete), cobra.ShellCompDirectiveNoFileComp
}

// completeBackendTypes completes backend kind names.
func completeBackendTypes(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
	if len(args) > 0 {
		return nil, cobra.ShellCompDirectiveNoFileComp
	}
	names := make([]string, len(types.BackendTypes))
	for i, t := range types.BackendTypes {
		names[i] = t.String()
	}
	return filterPrefix(names, toComplete), cobra.ShellCompDirectiveNoFileComp
}

var completionCmd = &cobra.Command{
	Use:   "completion bash|zsh|fish|powershell",
	Short: "Print a shell completion script",
	Long: `Print the completion script for the given shell. For example:

  source <(shadowdeck completion bash)
  shadowdeck completion fish > ~/.config/fish/completions/shadowdeck.fish`,
	DisableFlagsInUseLine: true,
	Annotations:           map[string]string{skipApp: "true"},
	ValidArgs:             []string{"bash", "zsh", "fish", "powershell"},
	Args:                  cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
	RunE: func(cmd *cobra.Command, args []string) error {
		out := cmd.OutOrStdout()
		switch args[0] {
		case "bash":
			return rootCmd.GenBashCompletionV2(out, true)
		case "zsh":
			return rootCmd.GenZshCompletion(out)
		case "fish":
			return rootCmd.GenFishCompletion(out, true)
		case "powershell":
			return rootCmd.GenPowerShellCompletionWithDesc(out)
		}
		return fmt.Errorf("unsupported shell %q", args[0])
	},
}

func init() {
	rootCmd.AddCommand(completionCmd)
}
