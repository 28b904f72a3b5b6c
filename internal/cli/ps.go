package cli

import (
	"context"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/rileyhilliard/ns/internal/config"
	"github.com/rileyhilliard/ns/internal/errors"
	"github.com/rileyhilliard/ns/internal/logger"
	"github.com/rileyhilliard/ns/internal/monitor"
	"github.com/rileyhilliard/ns/internal/ui"
	"github.com/rileyhilliard/ns/pkg/sshutil"
	"github.com/spf13/cobra"
)

var (
	psRowsFlag     string
	psIntervalFlag string
	psOnceFlag     bool
)

var psCmd = &cobra.Command{
	Use:   "ps [host]",
	Short: "Stream the remote process table",
	Long: `Poll the remote host's top processes by CPU, sorted descending.

The remote must be Linux; other platforms are refused before any
polling starts.

Examples:
  ns ps
  ns ps gpu-box
  ns ps gpu-box --rows 30
  ns ps gpu-box --once`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		host := ""
		if len(args) > 0 {
			host = args[0]
		}
		return psCommand(host)
	},
}

func init() {
	psCmd.Flags().StringVar(&psRowsFlag, "rows", "", "process rows to fetch (1-100)")
	psCmd.Flags().StringVar(&psIntervalFlag, "interval", "", "poll interval (e.g. 5s)")
	psCmd.Flags().BoolVar(&psOnceFlag, "once", false, "print one table and exit")

	rootCmd.AddCommand(psCmd)
}

func psCommand(hostArg string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	name, hostCfg, err := config.Resolve(cfg, hostArg)
	if err != nil {
		return err
	}

	opts := monitor.ProcessOptions{
		Interval:         cfg.Process.Interval,
		StartDelay:       cfg.Process.StartDelay,
		ExecTimeout:      cfg.Process.ExecTimeout,
		FailureThreshold: cfg.Process.FailureThreshold,
		Rows:             cfg.Process.Rows,
		Logger:           logger.Default(),
	}

	if psRowsFlag != "" {
		rows, err := strconv.Atoi(psRowsFlag)
		if err != nil || rows < 1 || rows > 100 {
			return errors.New(errors.ErrConfig,
				"Invalid --rows value: "+psRowsFlag,
				"Use a number between 1 and 100")
		}
		opts.Rows = rows
	}

	if psIntervalFlag != "" {
		interval, err := parseInterval(psIntervalFlag)
		if err != nil {
			return err
		}
		opts.Interval = interval
	}

	source := sshutil.NewSource(hostCfg.SSH, 10*time.Second)
	defer source.Disconnect()

	printer := ui.NewPrinter(os.Stdout)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	done := make(chan struct{})
	emit := monitor.ProcessEmitterFunc(func(s monitor.ProcessSnapshot) {
		printer.EmitProcesses(s)
		if psOnceFlag {
			select {
			case <-done:
			default:
				close(done)
			}
		}
	})

	ctl := monitor.NewProcess(name, source,
		liveness{session: source.SessionAlive}, emit, opts)
	if err := ctl.Start(); err != nil {
		return err
	}
	defer ctl.Stop()

	select {
	case <-ctx.Done():
	case <-done:
	}
	return nil
}
