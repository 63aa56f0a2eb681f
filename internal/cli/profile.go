package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"shadowdeck/internal/config/parser"
	"shadowdeck/internal/storage/models"
	"shadowdeck/internal/subscription"
	pkgerrors "shadowdeck/pkg/errors"
)

var profileCmd = &cobra.Command{
	Use:     "profile",
	Aliases: []string{"profiles", "p"},
	Short:   "Manage shadowsocks profiles",
}

// resolveProfile finds a profile by name, falling back to its list index.
func resolveProfile(identifier string) (int, models.Profile, error) {
	store := appInstance.Store
	i := store.Find(identifier)
	if i < 0 {
		if n, err := strconv.Atoi(identifier); err == nil {
			i = n
		}
	}
	p, err := store.Profile(i)
	if err != nil {
		return -1, models.Profile{}, fmt.Errorf("%w: %s", pkgerrors.ErrProfileNotFound, identifier)
	}
	return i, p, nil
}

func maskPassword(pw string) string {
	if pw == "" {
		return ""
	}
	return strings.Repeat("*", 8)
}

var profileListCmd = &cobra.Command{
	Use:     "list",
	Aliases: []string{"ls"},
	Short:   "List profiles",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := context.Background()
		store := appInstance.Store

		if store.Len() == 0 {
			fmt.Println("No profiles. Add one with: shadowdeck profile add NAME --uri ss://...")
			return nil
		}

		current := store.CurrentIndex()
		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, " \t#\tNAME\tSERVER\tMETHOD\tLOCAL\tLATENCY")
		fmt.Fprintln(w, " \t-\t----\t------\t------\t-----\t-------")

		for i, p := range store.Profiles() {
			marker := " "
			if i == current {
				marker = "*"
			}
			fmt.Fprintf(w, "%s\t%d\t%s\t%s:%s\t%s\t%s:%s\t%s\n",
				marker, i, truncateName(p.Name, 30), p.Server, p.ServerPort,
				p.Method, p.LocalAddr, p.LocalPort, latestLatency(ctx, p.Name))
		}
		w.Flush()

		fmt.Printf("\nTotal: %d profiles\n", store.Len())
		return nil
	},
}

// latestLatency formats the most recent probe result for name.
func latestLatency(ctx context.Context, name string) string {
	if appInstance.History == nil {
		return "-"
	}
	lat, err := appInstance.History.GetLatestLatency(ctx, name)
	if err != nil || lat == nil {
		return "-"
	}
	if lat.Success && lat.LatencyMS != nil {
		return fmt.Sprintf("%d ms", *lat.LatencyMS)
	}
	return "fail"
}

var profileAddCmd = &cobra.Command{
	Use:   "add <name>",
	Short: "Add a profile",
	Long: `Add a profile and select it.

Without --uri the profile is blank apart from local defaults; fill it in
with "shadowdeck profile set". With --uri the ss:// link is decoded and the
given name replaces the link's tag.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		uri, _ := cmd.Flags().GetString("uri")
		name := args[0]

		if appInstance.Store.Find(name) >= 0 {
			return fmt.Errorf("profile %q already exists", name)
		}

		var err error
		if uri != "" {
			_, err = appInstance.Session.AddProfileFromURI(name, uri, nil)
		} else {
			_, err = appInstance.Session.AddProfile(name, nil)
		}
		if err != nil {
			return err
		}

		p := appInstance.Session.Working()
		fmt.Printf("Profile added: %s\n", p.Name)
		if err := appInstance.Session.Validate(); err != nil {
			fmt.Printf("  Not ready to start yet: %v\n", err)
		}
		return nil
	},
}

var profileDupCmd = &cobra.Command{
	Use:               "dup <name>",
	Short:             "Duplicate a profile",
	Args:              cobra.ExactArgs(1),
	ValidArgsFunction: completeProfileNames,
	RunE: func(cmd *cobra.Command, args []string) error {
		i, _, err := resolveProfile(args[0])
		if err != nil {
			return err
		}
		if _, err := appInstance.Session.DuplicateProfile(i, nil); err != nil {
			return err
		}
		fmt.Printf("Profile added: %s\n", appInstance.Session.Working().Name)
		return nil
	},
}

var profileShowCmd = &cobra.Command{
	Use:               "show <name>",
	Short:             "Show profile details",
	Args:              cobra.ExactArgs(1),
	ValidArgsFunction: completeProfileNames,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := context.Background()
		i, p, err := resolveProfile(args[0])
		if err != nil {
			return err
		}
		reveal, _ := cmd.Flags().GetBool("reveal")

		password := maskPassword(p.Password)
		if reveal {
			password = p.Password
		}

		fmt.Printf("Profile Details\n")
		fmt.Printf("═══════════════\n\n")
		fmt.Printf("Index:        %d\n", i)
		fmt.Printf("Name:         %s\n", p.Name)
		fmt.Printf("Server:       %s\n", p.Server)
		fmt.Printf("Server Port:  %s\n", p.ServerPort)
		fmt.Printf("Password:     %s\n", password)
		fmt.Printf("Method:       %s\n", p.Method)
		fmt.Printf("Local:        %s:%s\n", p.LocalAddr, p.LocalPort)
		fmt.Printf("Timeout:      %s\n", p.Timeout)
		fmt.Printf("Current:      %v\n", i == appInstance.Store.CurrentIndex())

		if err := appInstance.Store.Validate(p); err != nil {
			fmt.Printf("Ready:        no (%v)\n", err)
		} else {
			fmt.Printf("Ready:        yes\n")
		}

		if appInstance.History != nil {
			if lat, err := appInstance.History.GetLatestLatency(ctx, p.Name); err == nil && lat != nil {
				fmt.Printf("\nLatest Latency Test:\n")
				if lat.Success && lat.LatencyMS != nil {
					fmt.Printf("  Latency:    %d ms\n", *lat.LatencyMS)
				} else {
					fmt.Printf("  Status:     Failed\n")
					if lat.ErrorMessage != "" {
						fmt.Printf("  Error:      %s\n", lat.ErrorMessage)
					}
				}
				fmt.Printf("  Tested:     %s\n", lat.TestedAt.Format("2006-01-02 15:04:05"))
			}
		}

		if reveal {
			fmt.Printf("\nURI:\n%s\n", parser.Encode(p))
		}
		return nil
	},
}

var profileDeleteCmd = &cobra.Command{
	Use:               "delete <name>",
	Aliases:           []string{"rm"},
	Short:             "Delete a profile",
	Args:              cobra.ExactArgs(1),
	ValidArgsFunction: completeProfileNames,
	RunE: func(cmd *cobra.Command, args []string) error {
		i, p, err := resolveProfile(args[0])
		if err != nil {
			return err
		}

		force, _ := cmd.Flags().GetBool("force")
		if !force && !confirm(fmt.Sprintf("Delete profile '%s'?", p.Name)) {
			fmt.Println("Cancelled.")
			return nil
		}

		if err := appInstance.Session.DeleteProfile(i); err != nil {
			return err
		}
		fmt.Printf("Profile deleted: %s\n", p.Name)
		if appInstance.Store.Len() == 0 {
			fmt.Println("No profiles left.")
		}
		return nil
	},
}

var profileSetCmd = &cobra.Command{
	Use:   "set <name> <field> <value>",
	Short: "Change one profile field",
	Long: `Change one profile field and save the store.

Fields: name, server, server_port, password, local_addr, local_port, method, timeout`,
	Args:              cobra.ExactArgs(3),
	ValidArgsFunction: completeProfileSet,
	RunE: func(cmd *cobra.Command, args []string) error {
		i, p, err := resolveProfile(args[0])
		if err != nil {
			return err
		}
		field, ok := models.ParseField(args[1])
		if !ok {
			return fmt.Errorf("unknown field %q", args[1])
		}
		if field == models.FieldMethod && !models.IsSupportedMethod(args[2]) {
			return fmt.Errorf("unsupported method %q", args[2])
		}

		if i == appInstance.Store.CurrentIndex() {
			s := appInstance.Session
			if err := s.SetField(field, args[2]); err != nil {
				return err
			}
			if err := s.Save(); err != nil {
				return err
			}
			p = s.Working()
		} else {
			p.Set(field, args[2])
			if err := appInstance.Store.SetProfile(i, p); err != nil {
				return err
			}
			if err := appInstance.Store.Save(); err != nil {
				return err
			}
		}

		fmt.Printf("%s.%s updated\n", p.Name, field)
		if err := appInstance.Store.Validate(p); err != nil {
			fmt.Printf("  Not ready to start yet: %v\n", err)
		}
		return nil
	},
}

var profileSelectCmd = &cobra.Command{
	Use:               "select <name>",
	Aliases:           []string{"use"},
	Short:             "Make a profile the current one",
	Args:              cobra.ExactArgs(1),
	ValidArgsFunction: completeProfileNames,
	RunE: func(cmd *cobra.Command, args []string) error {
		i, p, err := resolveProfile(args[0])
		if err != nil {
			return err
		}
		if err := appInstance.Session.Select(i, nil); err != nil {
			return err
		}
		if err := appInstance.Store.Save(); err != nil {
			return err
		}
		fmt.Printf("Current profile: %s\n", p.Name)
		return nil
	},
}

var profileExportCmd = &cobra.Command{
	Use:   "export [name]",
	Short: "Print ss:// links",
	Long: `Print the ss:// link of a profile, or of every profile when no name is
given. Links use the SIP002 form unless --legacy is set.`,
	Args:              cobra.MaximumNArgs(1),
	ValidArgsFunction: completeProfileNames,
	RunE: func(cmd *cobra.Command, args []string) error {
		legacy, _ := cmd.Flags().GetBool("legacy")
		encode := parser.Encode
		if legacy {
			encode = parser.EncodeLegacy
		}

		if len(args) == 1 {
			_, p, err := resolveProfile(args[0])
			if err != nil {
				return err
			}
			fmt.Println(encode(p))
			return nil
		}

		for _, p := range appInstance.Store.Profiles() {
			fmt.Println(encode(p))
		}
		return nil
	},
}

var profileImportCmd = &cobra.Command{
	Use:   "import [file|url|-]",
	Short: "Import ss:// links",
	Long: `Import ss:// links from a file, an http(s) URL or standard input ("-").
One link per line; base64 encoded lists are accepted. Profiles already in the
store are skipped.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		source := "-"
		if len(args) == 1 {
			source = args[0]
		}

		importer := appInstance.Importer
		if socks, _ := cmd.Flags().GetString("socks"); socks != "" {
			cfg := subscription.DefaultFetcherConfig()
			cfg.SOCKSAddr = socks
			importer = subscription.NewImporter(subscription.NewFetcher(cfg), appInstance.Logger)
		}

		result, err := importer.Import(cmd.Context(), source, appInstance.Store)
		if err != nil && result == nil {
			return err
		}

		fmt.Printf("Imported from %s: %d added, %d skipped, %d failed\n",
			result.Source, result.Added, result.Skipped, result.Failed)
		for _, e := range result.Errors {
			fmt.Printf("  %v\n", e)
		}
		if err != nil {
			return err
		}
		if result.Added == 0 && result.Failed > 0 {
			return errors.New("no links could be imported")
		}
		return nil
	},
}

// confirm asks a yes/no question on the terminal. Anything but y/yes is no.
func confirm(question string) bool {
	fmt.Printf("%s [y/N]: ", question)
	line, _ := bufio.NewReader(os.Stdin).ReadString('\n')
	switch strings.ToLower(strings.TrimSpace(line)) {
	case "y", "yes":
		return true
	}
	return false
}

func truncateName(name string, maxLen int) string {
	if len(name) <= maxLen {
		return name
	}
	return name[:maxLen-3] + "..."
}

func init() {
	profileAddCmd.Flags().StringP("uri", "u", "", "ss:// link to decode")
	profileShowCmd.Flags().Bool("reveal", false, "show the password and ss:// link")
	profileDeleteCmd.Flags().BoolP("force", "f", false, "skip confirmation")
	profileExportCmd.Flags().Bool("legacy", false, "use the legacy base64 link form")
	profileImportCmd.Flags().String("socks", "", "download URLs through this SOCKS5 address (host:port)")

	profileCmd.AddCommand(profileListCmd)
	profileCmd.AddCommand(profileAddCmd)
	profileCmd.AddCommand(profileDupCmd)
	profileCmd.AddCommand(profileShowCmd)
	profileCmd.AddCommand(profileDeleteCmd)
	profileCmd.AddCommand(profileSetCmd)
	profileCmd.AddCommand(profileSelectCmd)
	profileCmd.AddCommand(profileExportCmd)
	profileCmd.AddCommand(profileImportCmd)
	rootCmd.AddCommand(profileCmd)
}
