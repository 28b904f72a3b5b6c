package cli

import (
	"fmt"
	"slices"
	"time"

	"github.com/charmbracelet/huh"
	"github.com/rileyhilliard/ns/internal/config"
	"github.com/rileyhilliard/ns/internal/errors"
	"github.com/rileyhilliard/ns/internal/monitor"
	"github.com/rileyhilliard/ns/internal/probe"
	"github.com/rileyhilliard/ns/pkg/sshutil"
	"github.com/spf13/cobra"
)

var (
	ifaceSetFlag  string
	ifaceListFlag bool
)

var ifaceCmd = &cobra.Command{
	Use:   "iface [host]",
	Short: "Pick the sampled network interface",
	Long: `List the remote host's network interfaces and persist which one
the monitor samples for throughput.

Without flags an interactive picker is shown. The choice is stored per
host in ~/.config/ns/state.yaml and survives restarts.

Examples:
  ns iface gpu-box
  ns iface gpu-box --list
  ns iface gpu-box --set eth0`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		host := ""
		if len(args) > 0 {
			host = args[0]
		}
		return ifaceCommand(host)
	},
}

func init() {
	ifaceCmd.Flags().StringVar(&ifaceSetFlag, "set", "", "persist this interface without prompting")
	ifaceCmd.Flags().BoolVar(&ifaceListFlag, "list", false, "print interfaces and exit")

	rootCmd.AddCommand(ifaceCmd)
}

func ifaceCommand(hostArg string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	name, hostCfg, err := config.Resolve(cfg, hostArg)
	if err != nil {
		return err
	}

	// Unsafe names never reach the remote shell.
	if ifaceSetFlag != "" && !probe.ValidInterfaceName(ifaceSetFlag) {
		return errors.New(errors.ErrConfig,
			"Invalid interface name: "+ifaceSetFlag,
			"Interface names may contain letters, digits, and . : _ -")
	}

	source := sshutil.NewSource(hostCfg.SSH, 10*time.Second)
	defer source.Disconnect()

	runner, err := source.Connect()
	if err != nil {
		return err
	}

	ifaces, err := monitor.ListInterfaces(runner, cfg.Monitor.ExecTimeout)
	if err != nil {
		return err
	}

	if ifaceListFlag {
		for _, iface := range ifaces {
			fmt.Println(iface)
		}
		return nil
	}

	choice := ifaceSetFlag
	if choice == "" {
		options := make([]huh.Option[string], 0, len(ifaces))
		for _, iface := range ifaces {
			options = append(options, huh.NewOption(iface, iface))
		}

		form := huh.NewForm(
			huh.NewGroup(
				huh.NewSelect[string]().
					Title(fmt.Sprintf("Network interface for %s", name)).
					Options(options...).
					Value(&choice),
			),
		)
		if err := form.Run(); err != nil {
			return errors.WrapWithCode(err, errors.ErrConfig,
				"Failed to get user input",
				"Pass --set <interface> to skip the prompt")
		}
	} else if !slices.Contains(ifaces, choice) {
		return errors.New(errors.ErrConfig,
			fmt.Sprintf("Interface '%s' does not exist on %s", choice, name),
			"Run 'ns iface "+name+" --list' to see available interfaces")
	}

	statePath, err := config.DefaultStatePath()
	if err != nil {
		return err
	}
	store := config.NewStateFile(statePath, name)
	if err := store.WriteSelection(monitor.Selection{
		Interface: choice,
		Options:   ifaces,
		ChosenAt:  time.Now(),
	}); err != nil {
		return err
	}

	fmt.Printf("✓ %s now samples %s\n", name, choice)
	return nil
}
