package cli

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/huh"
	"github.com/rileyhilliard/ns/internal/config"
	"github.com/rileyhilliard/ns/internal/errors"
	"github.com/rileyhilliard/ns/pkg/sshutil"
	"github.com/spf13/cobra"
)

var (
	initHostFlag string
	initSSHFlag  string
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Create a .ns.yaml configuration",
	Long: `Create a commented .ns.yaml in the current directory.

Hosts from ~/.ssh/config are offered as a starting point. With both
--name and --ssh the file is written without prompting.

Examples:
  ns init
  ns init --name gpu-box --ssh deploy@10.0.0.12`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return initCommand(initHostFlag, initSSHFlag)
	},
}

func init() {
	initCmd.Flags().StringVar(&initHostFlag, "name", "", "host name used in the config")
	initCmd.Flags().StringVar(&initSSHFlag, "ssh", "", "SSH connection string (host, user@host, or alias)")

	rootCmd.AddCommand(initCmd)
}

func initCommand(name, ssh string) error {
	configPath := filepath.Join(".", config.ConfigFileName)

	if name == "" || ssh == "" {
		var err error
		name, ssh, err = promptHostDetails(name, ssh)
		if err != nil {
			return err
		}
	}

	if err := config.WriteStarter(configPath, name, ssh); err != nil {
		return err
	}

	fmt.Printf("✓ Created %s\n\n", configPath)
	fmt.Println("Next steps:")
	fmt.Println("  ns monitor     - Watch the host")
	fmt.Println("  ns iface " + name + "  - Pick the sampled interface")
	return nil
}

// promptHostDetails asks for the SSH target and a friendly name,
// suggesting aliases from ~/.ssh/config.
func promptHostDetails(name, ssh string) (string, string, error) {
	var suggestions []string
	if entries, err := sshutil.KnownHosts(); err == nil {
		for _, entry := range entries {
			suggestions = append(suggestions, entry.Alias)
		}
	}

	groups := []*huh.Group{}

	if ssh == "" {
		groups = append(groups, huh.NewGroup(
			huh.NewInput().
				Title("SSH host").
				Description("Hostname, user@host, or an alias from ~/.ssh/config").
				Placeholder("deploy@10.0.0.12").
				Suggestions(suggestions).
				Value(&ssh).
				Validate(func(s string) error {
					if strings.TrimSpace(s) == "" {
						return fmt.Errorf("SSH host is required")
					}
					return nil
				}),
		))
	}

	if name == "" {
		groups = append(groups, huh.NewGroup(
			huh.NewInput().
				Title("Host name").
				Description("A friendly name for this host in your config").
				Placeholder("gpu-box").
				Value(&name).
				Validate(func(s string) error {
					if strings.TrimSpace(s) == "" {
						return fmt.Errorf("host name is required")
					}
					if strings.ContainsAny(s, " \t\n") {
						return fmt.Errorf("host name cannot contain whitespace")
					}
					return nil
				}),
		))
	}

	if err := huh.NewForm(groups...).Run(); err != nil {
		return "", "", errors.WrapWithCode(err, errors.ErrConfig,
			"Failed to get user input",
			"Pass --name and --ssh to skip the prompts")
	}

	return name, ssh, nil
}
