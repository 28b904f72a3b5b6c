package monitor

import (
	stderrors "errors"
	"strings"
	"sync"
	"time"

	"github.com/rileyhilliard/ns/internal/errors"
	"github.com/rileyhilliard/ns/internal/exec"
	"github.com/rileyhilliard/ns/internal/probe"
)

// ProcessController polls the remote process table. It shares the
// metrics controller's lifecycle and failure policy but runs its own
// channel on a slower cadence, so a stalled process fetch never blocks
// the metrics loop.
type ProcessController struct {
	host   string
	source ChannelSource
	live   Liveness
	emit   ProcessEmitter
	opts   ProcessOptions

	mu       sync.Mutex
	state    State
	gen      uint64
	inFlight bool
	failures int
	conn     exec.Runner
	done     chan struct{}
}

// NewProcess builds a process table controller.
func NewProcess(host string, source ChannelSource, live Liveness, emit ProcessEmitter, opts ProcessOptions) *ProcessController {
	if live == nil {
		live = AlwaysAlive{}
	}
	return &ProcessController{
		host:   host,
		source: source,
		live:   live,
		emit:   emit,
		opts:   opts.withDefaults(),
	}
}

// State returns the current lifecycle state.
func (c *ProcessController) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Start verifies the remote is Linux, then begins polling. The `ps`
// flags and /proc reads the fetch depends on only behave on Linux, so
// anything else is refused up front rather than producing garbage rows.
// Starting an already starting or running controller is a no-op, and a
// start without a live session is refused, matching the metrics
// controller.
func (c *ProcessController) Start() error {
	c.mu.Lock()
	if c.state == StateStarting || c.state == StateRunning {
		c.mu.Unlock()
		return nil
	}
	if c.state == StateStopping {
		c.mu.Unlock()
		return errors.New(errors.ErrGuard,
			"Process monitor is still stopping",
			"Wait for the previous session to finish tearing down")
	}
	if !c.live.SessionAlive() {
		c.mu.Unlock()
		return errors.New(errors.ErrGuard,
			"No live session to monitor for "+c.host,
			"The foreground session is gone; reconnect before starting the monitor")
	}
	c.state = StateStarting
	c.gen++
	gen := c.gen
	c.inFlight = false
	c.failures = 0
	c.done = make(chan struct{})
	done := c.done
	c.mu.Unlock()

	if err := c.checkPlatform(gen); err != nil {
		c.mu.Lock()
		if c.gen == gen {
			c.state = StateStopped
			if c.done != nil {
				close(c.done)
				c.done = nil
			}
			c.conn = nil
		}
		c.mu.Unlock()
		if derr := c.source.Disconnect(); derr != nil {
			c.opts.Logger.Debug("channel teardown: %v", derr)
		}
		return err
	}

	go c.run(gen, done)
	return nil
}

// Stop tears the session down, mirroring the metrics controller.
func (c *ProcessController) Stop() {
	c.mu.Lock()
	if c.state == StateIdle || c.state == StateStopped || c.state == StateStopping {
		c.mu.Unlock()
		return
	}
	c.state = StateStopping
	c.gen++
	if c.done != nil {
		close(c.done)
		c.done = nil
	}
	c.conn = nil
	c.mu.Unlock()

	if err := c.source.Disconnect(); err != nil {
		c.opts.Logger.Warn("disconnect failed: %v", err)
	}

	c.mu.Lock()
	c.state = StateStopped
	c.mu.Unlock()
}

// checkPlatform gates the process monitor on a Linux remote.
func (c *ProcessController) checkPlatform(gen uint64) error {
	conn, err := c.ensureChannel(gen)
	if err != nil {
		return err
	}

	res, err := exec.RunTimed(conn, probe.PlatformCommand(), c.opts.ExecTimeout)
	if err != nil {
		return err
	}
	platform := strings.TrimSpace(res.Stdout)
	if res.ExitCode != 0 || platform != "Linux" {
		if platform == "" {
			platform = "an unknown platform"
		}
		return errors.New(errors.ErrGuard,
			"Process monitoring requires a Linux remote, got "+platform,
			"The process table is read through procps `ps`, which this remote lacks")
	}
	return nil
}

func (c *ProcessController) run(gen uint64, done chan struct{}) {
	if c.opts.StartDelay > 0 {
		timer := time.NewTimer(c.opts.StartDelay)
		select {
		case <-timer.C:
		case <-done:
			timer.Stop()
			return
		}
	}

	c.fetch(gen)

	c.mu.Lock()
	if c.gen != gen {
		c.mu.Unlock()
		return
	}
	c.state = StateRunning
	c.mu.Unlock()

	ticker := time.NewTicker(c.opts.Interval)
	defer ticker.Stop()
	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			c.onTick(gen)
		}
	}
}

func (c *ProcessController) onTick(gen uint64) {
	c.mu.Lock()
	if c.gen != gen {
		c.mu.Unlock()
		return
	}
	if !c.live.SessionAlive() || !c.live.ReceiverAlive() {
		c.mu.Unlock()
		c.opts.Logger.Debug("liveness check failed, stopping process monitor for %s", c.host)
		c.Stop()
		return
	}
	if c.inFlight {
		c.mu.Unlock()
		c.opts.Logger.Debug("process fetch still in flight, dropping tick")
		return
	}
	c.inFlight = true
	c.mu.Unlock()

	go func() {
		c.fetch(gen)
		c.mu.Lock()
		if c.gen == gen {
			c.inFlight = false
		}
		c.mu.Unlock()
	}()
}

// fetch runs one process table read and emits the parsed snapshot.
func (c *ProcessController) fetch(gen uint64) {
	conn, err := c.ensureChannel(gen)
	if err != nil {
		c.handleError(gen, err)
		return
	}

	cmd := probe.ProcessListCommand(c.opts.Rows)
	res, err := exec.RunTimed(conn, cmd, c.opts.ExecTimeout)
	if c.opts.OnProbe != nil {
		c.opts.OnProbe(cmd, res, err)
	}
	if err != nil {
		c.handleError(gen, err)
		return
	}
	if res.ExitCode != 0 {
		c.handleError(gen, errors.New(errors.ErrExec,
			"Process listing exited non-zero",
			"Check that `ps` works on the remote"))
		return
	}

	procs := probe.ParseProcesses(probe.Sanitize(res.Stdout), c.opts.Rows)

	now := time.Now()
	c.mu.Lock()
	if c.gen != gen {
		c.mu.Unlock()
		return
	}
	c.failures = 0
	c.mu.Unlock()

	if c.emit != nil {
		c.emit.EmitProcesses(ProcessSnapshot{Host: c.host, CapturedAt: now, Processes: procs})
	}
}

func (c *ProcessController) ensureChannel(gen uint64) (exec.Runner, error) {
	c.mu.Lock()
	if c.gen != gen {
		c.mu.Unlock()
		return nil, errStale
	}
	if c.conn != nil {
		conn := c.conn
		c.mu.Unlock()
		return conn, nil
	}
	c.mu.Unlock()

	conn, err := c.source.Connect()
	if err != nil {
		return nil, errors.WrapWithCode(err, errors.ErrSSH,
			"Cannot open a channel to "+c.host,
			"Check the host is reachable and SSH auth works")
	}

	c.mu.Lock()
	if c.gen != gen {
		c.mu.Unlock()
		return nil, errStale
	}
	c.conn = conn
	c.mu.Unlock()
	return conn, nil
}

func (c *ProcessController) handleError(gen uint64, err error) {
	if stderrors.Is(err, errStale) {
		return
	}

	if exec.IsTimeout(err) {
		c.opts.Logger.Warn("process fetch timed out, recycling channel: %v", err)
		c.recycleChannel(gen)
		return
	}

	c.mu.Lock()
	if c.gen != gen {
		c.mu.Unlock()
		return
	}
	c.failures++
	failures := c.failures
	c.mu.Unlock()

	c.opts.Logger.Warn("process fetch failed (%d/%d): %v", failures, c.opts.FailureThreshold, err)
	if failures >= c.opts.FailureThreshold {
		c.recycleChannel(gen)
	}
}

func (c *ProcessController) recycleChannel(gen uint64) {
	c.mu.Lock()
	if c.gen != gen {
		c.mu.Unlock()
		return
	}
	c.conn = nil
	c.failures = 0
	c.mu.Unlock()

	if err := c.source.Disconnect(); err != nil {
		c.opts.Logger.Debug("channel teardown: %v", err)
	}
}
