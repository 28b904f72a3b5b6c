// Package cli wires the cobra command tree for the ns binary.
package cli

import (
	"fmt"
	"os"

	"github.com/rileyhilliard/ns/internal/config"
	"github.com/spf13/cobra"
)

// configFlag is the --config persistent flag value.
var configFlag string

// rootCmd is the base command for ns.
var rootCmd = &cobra.Command{
	Use:   "ns",
	Short: "Live system metrics for remote hosts over SSH",
	Long: `ns polls remote machines over SSH for CPU, memory, disk, and
network throughput, and renders them in a live terminal dashboard.

No agent is installed on the remote: each poll runs a single compound
shell command and parses the output locally.

Examples:
  ns monitor              Watch the default host
  ns monitor gpu-box      Watch a specific host
  ns ps gpu-box           Stream the remote process table
  ns iface gpu-box        Pick the sampled network interface
  ns init                 Create a .ns.yaml config`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configFlag, "config", "",
		"config file (default: search for .ns.yaml)")
}

// Execute runs the root command and exits non-zero on error. Structured
// errors render their own suggestion text.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// loadConfig loads the effective config, honoring --config.
func loadConfig() (*config.Config, error) {
	if configFlag != "" {
		return config.Load(configFlag)
	}

	path, err := config.Find("")
	if err != nil {
		return nil, err
	}
	if path == "" {
		return config.DefaultConfig(), nil
	}
	return config.Load(path)
}
