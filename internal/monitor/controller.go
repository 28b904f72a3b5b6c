package monitor

import (
	stderrors "errors"
	"slices"
	"sync"
	"time"

	"github.com/rileyhilliard/ns/internal/errors"
	"github.com/rileyhilliard/ns/internal/exec"
	"github.com/rileyhilliard/ns/internal/probe"
)

// errStale marks work belonging to a superseded session generation.
// Stale work is discarded silently; it is not a failure.
var errStale = stderrors.New("stale generation")

// Controller runs the system metrics poll loop against one host. All
// mutable state is guarded by mu; the generation counter invalidates
// in-flight work across Stop/Start cycles so a slow probe from an old
// session can never touch the new one.
type Controller struct {
	host   string
	source ChannelSource
	live   Liveness
	emit   Emitter
	opts   Options

	mu       sync.Mutex
	state    State
	gen      uint64
	tick     uint64
	inFlight bool
	failures int
	conn     exec.Runner
	done     chan struct{}
	cache    sessionCache

	// persisted mirrors what the selection store last saw: the interface
	// preference loaded at Start plus the candidate list, updated as
	// accepted frames re-resolve them.
	persisted        string
	persistedOptions []string
}

// New builds a controller. live may be nil (never trips) and emit may
// be nil (snapshots are dropped).
func New(host string, source ChannelSource, live Liveness, emit Emitter, opts Options) *Controller {
	if live == nil {
		live = AlwaysAlive{}
	}
	return &Controller{
		host:   host,
		source: source,
		live:   live,
		emit:   emit,
		opts:   opts.withDefaults(),
	}
}

// State returns the current lifecycle state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Start begins polling. Starting a controller that is already starting
// or running is a no-op; a start without a live session is refused up
// front. The call blocks through the start delay and the seed probe so
// a dead channel surfaces to the caller instead of to the loop: any
// seed failure tears the session down and leaves the controller
// stopped. The seed collects every section so the first snapshot is
// complete.
func (c *Controller) Start() error {
	c.mu.Lock()
	if c.state == StateStarting || c.state == StateRunning {
		c.mu.Unlock()
		return nil
	}
	if c.state == StateStopping {
		c.mu.Unlock()
		return errors.New(errors.ErrGuard,
			"Monitor is still stopping",
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
	c.tick = 0
	c.inFlight = false
	c.failures = 0
	c.cache = sessionCache{}
	c.persisted = c.opts.Interface
	c.persistedOptions = nil
	if c.persisted == "" && c.opts.Store != nil {
		stored := c.opts.Store.ReadSelection()
		c.persisted = stored.Interface
		c.persistedOptions = stored.Options
	}
	c.cache.iface = c.persisted
	c.done = make(chan struct{})
	done := c.done
	c.mu.Unlock()

	if err := c.seed(gen, done); err != nil {
		if stderrors.Is(err, errStale) {
			// A concurrent Stop superseded this session and already
			// tore it down.
			return nil
		}
		c.Stop()
		return err
	}

	c.mu.Lock()
	if c.gen != gen {
		c.mu.Unlock()
		return nil
	}
	c.state = StateRunning
	c.mu.Unlock()

	go c.run(gen, done)
	return nil
}

// seed waits out the start delay, then runs one probe with every
// section enabled.
func (c *Controller) seed(gen uint64, done chan struct{}) error {
	if c.opts.StartDelay > 0 {
		timer := time.NewTimer(c.opts.StartDelay)
		select {
		case <-timer.C:
		case <-done:
			timer.Stop()
			return errStale
		}
	}
	return c.executeProbe(gen, probe.Flags{CPUMemSwap: true, Disk: true, IfaceMeta: true})
}

// Stop tears the session down: bumps the generation so in-flight work
// becomes stale, stops the loop, disconnects the channel, and only
// then reports stopped. Stopping an already stopped or idle controller
// is a no-op.
func (c *Controller) Stop() {
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

// run is the session goroutine: the ticker loop, running until the
// session is torn down. The start delay and seed probe already
// happened inside Start.
func (c *Controller) run(gen uint64, done chan struct{}) {
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

// onTick advances the tick counter and dispatches one probe. A tick
// arriving while the previous probe is still in flight is dropped
// whole, but it still counts: the cadence keeps moving so detail
// sections are not starved by a slow probe.
func (c *Controller) onTick(gen uint64) {
	c.mu.Lock()
	if c.gen != gen {
		c.mu.Unlock()
		return
	}

	if !c.live.SessionAlive() || !c.live.ReceiverAlive() {
		c.mu.Unlock()
		c.opts.Logger.Debug("liveness check failed, stopping monitor for %s", c.host)
		c.Stop()
		return
	}

	c.tick++
	if c.inFlight {
		c.mu.Unlock()
		c.opts.Logger.Debug("probe still in flight, dropping tick")
		return
	}

	flags := probe.Flags{
		CPUMemSwap: c.tick%uint64(c.opts.DetailEvery) == 0,
		Disk:       c.tick%uint64(c.opts.DiskEvery) == 0,
		IfaceMeta:  c.tick%uint64(c.opts.IfaceEvery) == 0,
	}
	if c.cache.iface == "" {
		// No usable interface yet; force metadata so the remote side
		// picks one for us.
		flags.IfaceMeta = true
	}
	c.inFlight = true
	c.mu.Unlock()

	go func() {
		c.runProbe(gen, flags)
		c.mu.Lock()
		if c.gen == gen {
			c.inFlight = false
		}
		c.mu.Unlock()
	}()
}

// runProbe executes one probe under the per-tick failure policy.
func (c *Controller) runProbe(gen uint64, flags probe.Flags) {
	if err := c.executeProbe(gen, flags); err != nil {
		c.handleProbeError(gen, err)
	}
}

// executeProbe runs one probe and folds the result into the cache.
// Every checkpoint re-validates the generation so a Stop that happened
// mid-probe discards the result as errStale. Accepted frames that
// re-resolve the interface or its candidate list also write the
// selection back to the store.
func (c *Controller) executeProbe(gen uint64, flags probe.Flags) error {
	conn, iface, err := c.ensureChannel(gen)
	if err != nil {
		return err
	}

	cmd, err := probe.BuildCommand(iface, flags)
	if err != nil {
		return err
	}

	res, err := exec.RunTimed(conn, cmd, c.opts.ExecTimeout)
	if c.opts.OnProbe != nil {
		c.opts.OnProbe(cmd, res, err)
	}
	if err != nil {
		return err
	}
	if res.ExitCode != 0 {
		return errors.New(errors.ErrExec,
			"Probe command exited non-zero",
			"Check that the remote provides /proc and standard coreutils")
	}

	frame, err := probe.Parse(res.Stdout, flags)
	if err != nil {
		return err
	}

	now := time.Now()
	c.mu.Lock()
	if c.gen != gen {
		c.mu.Unlock()
		return errStale
	}
	c.failures = 0
	c.cache.apply(frame, c.persisted, now)
	var sel *Selection
	if frame.HasInterfaces && c.cache.iface != "" &&
		(c.cache.iface != c.persisted || !slices.Equal(c.cache.options, c.persistedOptions)) {
		c.persisted = c.cache.iface
		c.persistedOptions = slices.Clone(c.cache.options)
		sel = &Selection{Interface: c.cache.iface, Options: c.persistedOptions, ChosenAt: now}
	}
	store := c.opts.Store
	snap := c.cache.snapshot(c.host, now)
	c.mu.Unlock()

	if sel != nil && store != nil {
		if err := store.WriteSelection(*sel); err != nil {
			c.opts.Logger.Warn("could not persist interface selection: %v", err)
		}
	}
	if c.emit != nil {
		c.emit.EmitSnapshot(snap)
	}
	return nil
}

// ensureChannel returns the session's exec channel, connecting one if
// needed, plus the interface to sample this probe.
func (c *Controller) ensureChannel(gen uint64) (exec.Runner, string, error) {
	c.mu.Lock()
	if c.gen != gen {
		c.mu.Unlock()
		return nil, "", errStale
	}
	if c.conn != nil {
		conn, iface := c.conn, c.cache.iface
		c.mu.Unlock()
		return conn, iface, nil
	}
	c.mu.Unlock()

	conn, err := c.source.Connect()
	if err != nil {
		return nil, "", errors.WrapWithCode(err, errors.ErrSSH,
			"Cannot open a channel to "+c.host,
			"Check the host is reachable and SSH auth works")
	}

	c.mu.Lock()
	if c.gen != gen {
		c.mu.Unlock()
		return nil, "", errStale
	}
	c.conn = conn
	iface := c.cache.iface
	c.mu.Unlock()
	return conn, iface, nil
}

// handleProbeError applies the failure policy:
//   - stale work is dropped silently
//   - a timeout recycles the channel immediately and resets the streak,
//     since the channel itself is the suspect
//   - a malformed payload is logged but not counted; the channel
//     delivered output fine. Rejected counters additionally clear the
//     interface and its cached candidate list so the next tick
//     re-resolves both.
//   - anything else counts toward the consecutive failure threshold,
//     which recycles the channel when reached
func (c *Controller) handleProbeError(gen uint64, err error) {
	if stderrors.Is(err, errStale) {
		return
	}

	var rej *probe.RejectError
	if stderrors.As(err, &rej) {
		c.opts.Logger.Warn("probe payload rejected: %v", err)
		if rej.Reason == probe.ReasonInvalidCounters {
			c.mu.Lock()
			if c.gen == gen {
				c.cache.iface = ""
				c.cache.options = nil
				c.cache.resetRateBaseline()
			}
			c.mu.Unlock()
		}
		return
	}

	if exec.IsTimeout(err) {
		c.opts.Logger.Warn("probe timed out, recycling channel: %v", err)
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

	c.opts.Logger.Warn("probe failed (%d/%d): %v", failures, c.opts.FailureThreshold, err)
	if failures >= c.opts.FailureThreshold {
		c.recycleChannel(gen)
	}
}

// recycleChannel drops the session's channel and resets the failure
// streak. The next probe reconnects through the source.
func (c *Controller) recycleChannel(gen uint64) {
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
