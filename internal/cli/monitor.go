package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rileyhilliard/ns/internal/config"
	"github.com/rileyhilliard/ns/internal/errors"
	"github.com/rileyhilliard/ns/internal/exec"
	"github.com/rileyhilliard/ns/internal/logger"
	"github.com/rileyhilliard/ns/internal/monitor"
	"github.com/rileyhilliard/ns/internal/stream"
	"github.com/rileyhilliard/ns/internal/ui"
	"github.com/rileyhilliard/ns/pkg/sshutil"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

var (
	monitorIntervalFlag  string
	monitorInterfaceFlag string
	monitorLocalFlag     bool
	monitorPlainFlag     bool
	monitorServeFlag     bool
	monitorTraceFlag     bool
)

var monitorCmd = &cobra.Command{
	Use:   "monitor [host]",
	Short: "Live metrics dashboard for a remote host",
	Long: `Poll a remote host over SSH and render CPU, memory, disk, and
network throughput in a live dashboard.

Network byte counters are sampled on every tick; CPU/memory, disk, and
interface metadata refresh on slower cadences to keep the remote cost
of each poll low.

Keyboard shortcuts:
  q / Ctrl+C  Quit

Examples:
  ns monitor
  ns monitor gpu-box
  ns monitor gpu-box --interval 2s
  ns monitor --local
  ns monitor gpu-box --serve`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		host := ""
		if len(args) > 0 {
			host = args[0]
		}
		return monitorCommand(host)
	},
}

func init() {
	monitorCmd.Flags().StringVar(&monitorIntervalFlag, "interval", "", "poll interval (e.g. 1s, 500ms)")
	monitorCmd.Flags().StringVar(&monitorInterfaceFlag, "interface", "", "pin the sampled network interface")
	monitorCmd.Flags().BoolVar(&monitorLocalFlag, "local", false, "monitor the local machine instead of a remote")
	monitorCmd.Flags().BoolVar(&monitorPlainFlag, "plain", false, "line output instead of the dashboard")
	monitorCmd.Flags().BoolVar(&monitorServeFlag, "serve", false, "also stream snapshots over websocket")
	monitorCmd.Flags().BoolVar(&monitorTraceFlag, "trace", false, "log every probe command and result (needs NS_DEBUG=1)")

	rootCmd.AddCommand(monitorCmd)
}

// parseInterval parses the --interval flag, enforcing a floor so a typo
// cannot hammer the remote.
func parseInterval(flag string) (time.Duration, error) {
	if flag == "" {
		return 0, nil
	}
	parsed, err := time.ParseDuration(flag)
	if err != nil {
		return 0, errors.WrapWithCode(err, errors.ErrConfig,
			fmt.Sprintf("Invalid interval: %s", flag),
			"Use a valid duration like 1s, 500ms, or 2s")
	}
	if parsed < 500*time.Millisecond {
		return 0, errors.New(errors.ErrConfig,
			"Interval too short",
			"Minimum interval is 500ms to avoid overwhelming the host")
	}
	return parsed, nil
}

func monitorCommand(hostArg string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	interval, err := parseInterval(monitorIntervalFlag)
	if err != nil {
		return err
	}

	log := logger.Default()

	name := "local"
	var hostCfg config.Host
	if !monitorLocalFlag {
		name, hostCfg, err = config.Resolve(cfg, hostArg)
		if err != nil {
			return err
		}
	}

	pinned := monitorInterfaceFlag
	if pinned == "" {
		pinned = hostCfg.Interface
	}

	opts := monitor.Options{
		Interval:         cfg.Monitor.Interval,
		StartDelay:       cfg.Monitor.StartDelay,
		ExecTimeout:      cfg.Monitor.ExecTimeout,
		FailureThreshold: cfg.Monitor.FailureThreshold,
		DetailEvery:      cfg.Monitor.DetailEvery,
		DiskEvery:        cfg.Monitor.DiskEvery,
		IfaceEvery:       cfg.Monitor.IfaceEvery,
		Interface:        pinned,
		Logger:           log,
	}
	if interval > 0 {
		opts.Interval = interval
	}
	if monitorTraceFlag {
		opts.OnProbe = probeTracer(log)
	}

	if statePath, err := config.DefaultStatePath(); err == nil {
		opts.Store = config.NewStateFile(statePath, name)
	} else {
		log.Warn("interface selections will not persist: %v", err)
	}

	procOpts := monitor.ProcessOptions{
		Interval:         cfg.Process.Interval,
		StartDelay:       cfg.Process.StartDelay,
		ExecTimeout:      cfg.Process.ExecTimeout,
		FailureThreshold: cfg.Process.FailureThreshold,
		Rows:             cfg.Process.Rows,
		Logger:           log,
	}
	if monitorTraceFlag {
		procOpts.OnProbe = probeTracer(log)
	}

	// The metrics and process loops each own an exec channel, so a
	// remote run dials two SSH connections.
	var sysSource, procSource monitor.ChannelSource
	var sessionAlive func() bool
	if monitorLocalFlag {
		local := monitor.StaticSource{Runner: &exec.Local{}}
		sysSource, procSource = local, local
		sessionAlive = func() bool { return true }
	} else {
		sys := sshutil.NewSource(hostCfg.SSH, 10*time.Second)
		proc := sshutil.NewSource(hostCfg.SSH, 10*time.Second)
		defer sys.Disconnect()
		defer proc.Disconnect()
		sysSource, procSource = sys, proc
		sessionAlive = sys.SessionAlive
	}

	plain := monitorPlainFlag || cfg.Output.Plain || !term.IsTerminal(int(os.Stdout.Fd()))

	var hub *stream.Hub
	if monitorServeFlag {
		hub = stream.NewHub(log)
		go func() {
			if err := hub.ListenAndServe(cfg.Serve.Addr); err != nil {
				log.Error("websocket server: %v", err)
			}
		}()
		log.Info("streaming snapshots on ws://%s/ws", cfg.Serve.Addr)
	}

	if plain {
		return runPlainMonitor(name, sysSource, procSource, sessionAlive, hub, opts, procOpts, log)
	}
	return runDashboardMonitor(name, sysSource, procSource, sessionAlive, hub, opts, procOpts, log)
}

func runDashboardMonitor(name string, sysSource, procSource monitor.ChannelSource,
	sessionAlive func() bool, hub *stream.Hub,
	opts monitor.Options, procOpts monitor.ProcessOptions, log logger.Logger) error {

	dash := ui.NewDashboard(name)

	live := liveness{session: sessionAlive, receiver: dash.Alive}
	sys := monitor.New(name, sysSource, live, snapshotFanout(dash, hub), opts)
	proc := monitor.NewProcess(name, procSource, live, processFanout(dash, hub), procOpts)

	if err := sys.Start(); err != nil {
		return err
	}
	// Linux-only; on other remotes the dashboard just has no table.
	go func() {
		if err := proc.Start(); err != nil {
			log.Debug("process table unavailable: %v", err)
		}
	}()

	err := dash.Run()

	sys.Stop()
	proc.Stop()
	return err
}

func runPlainMonitor(name string, sysSource, procSource monitor.ChannelSource,
	sessionAlive func() bool, hub *stream.Hub,
	opts monitor.Options, procOpts monitor.ProcessOptions, log logger.Logger) error {

	printer := ui.NewPrinter(os.Stdout)

	live := liveness{session: sessionAlive}
	sys := monitor.New(name, sysSource, live, snapshotFanout(printer, hub), opts)
	proc := monitor.NewProcess(name, procSource, live, processFanout(printer, hub), procOpts)

	if err := sys.Start(); err != nil {
		return err
	}
	go func() {
		if err := proc.Start(); err != nil {
			log.Debug("process table unavailable: %v", err)
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	<-ctx.Done()

	sys.Stop()
	proc.Stop()
	return nil
}

// probeTracer logs each probe attempt with a truncated stdout preview.
func probeTracer(log logger.Logger) monitor.ProbeRecord {
	return func(command string, result exec.Result, err error) {
		preview := result.Stdout
		if len(preview) > 200 {
			preview = preview[:200] + "..."
		}
		if err != nil {
			log.Debug("probe failed in %s: %v (cmd %q)", result.Duration, err, command)
			return
		}
		log.Debug("probe exit=%d in %s (cmd %q) stdout %q",
			result.ExitCode, result.Duration, command, preview)
	}
}

// liveness adapts the SSH session check and the dashboard's alive flag
// to the monitor's Liveness interface. Nil checks pass.
type liveness struct {
	session  func() bool
	receiver func() bool
}

func (l liveness) SessionAlive() bool {
	return l.session == nil || l.session()
}

func (l liveness) ReceiverAlive() bool {
	return l.receiver == nil || l.receiver()
}

// snapshotFanout joins the terminal emitter with the optional websocket
// hub. A nil hub is skipped.
func snapshotFanout(primary monitor.Emitter, hub *stream.Hub) monitor.Emitter {
	return monitor.EmitterFunc(func(s monitor.Snapshot) {
		primary.EmitSnapshot(s)
		if hub != nil {
			hub.EmitSnapshot(s)
		}
	})
}

func processFanout(primary monitor.ProcessEmitter, hub *stream.Hub) monitor.ProcessEmitter {
	return monitor.ProcessEmitterFunc(func(s monitor.ProcessSnapshot) {
		primary.EmitProcesses(s)
		if hub != nil {
			hub.EmitProcesses(s)
		}
	})
}
