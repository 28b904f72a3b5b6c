package monitor

import (
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rileyhilliard/ns/internal/exec"
	"github.com/rileyhilliard/ns/internal/logger"
	"github.com/rileyhilliard/ns/internal/probe"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// probeRunner fakes a remote shell. It answers probe commands with
// plausible section output, advancing its counters on every call so
// rate math has deltas to work with.
type probeRunner struct {
	mu       sync.Mutex
	calls    []string
	delay    time.Duration
	err      error
	platform string

	rx, tx             int64
	cpuTotal, cpuIdle  int64
	interfaces         []string
	counterIface       string
	omitCounterSection bool
}

func newProbeRunner() *probeRunner {
	return &probeRunner{
		platform:     "Linux",
		interfaces:   []string{"lo", "eth0", "ens5"},
		counterIface: "eth0",
	}
}

func (r *probeRunner) Run(cmd string) (exec.Result, error) {
	r.mu.Lock()
	r.calls = append(r.calls, cmd)
	delay := r.delay
	err := r.err
	r.mu.Unlock()

	if delay > 0 {
		time.Sleep(delay)
	}
	if err != nil {
		return exec.Result{}, err
	}
	if cmd == "uname -s" {
		return exec.Result{Stdout: r.platform + "\n"}, nil
	}
	if strings.HasPrefix(cmd, "ps aux") {
		return exec.Result{Stdout: "USER PID %CPU %MEM VSZ RSS TTY STAT START TIME COMMAND\n" +
			"root 1 0.1 0.2 1 1 ? Ss 0:00 0:00 /sbin/init\n"}, nil
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.rx += 1_000_000
	r.tx += 500_000
	r.cpuTotal += 400
	r.cpuIdle += 100

	var b strings.Builder
	section := func(name, body string) {
		b.WriteString("---NS_" + name + "---\n")
		b.WriteString(body + "\n")
	}

	if strings.Contains(cmd, "NS_CPUSTAT") {
		section(probe.SectionLoadAvg, "0.10 0.20 0.30 1/100 200")
		busy := r.cpuTotal - r.cpuIdle
		section(probe.SectionCPUStat, fmt.Sprintf("cpu  %d 0 0 %d 0 0 0 0 0 0", busy, r.cpuIdle))
		section(probe.SectionMemInfo,
			"MemTotal: 16000000 kB\nMemAvailable: 8000000 kB\nSwapTotal: 4000000 kB\nSwapFree: 3000000 kB")
		section(probe.SectionFree, "Mem: 16000000 6000000 2000000 0 8000000 8000000")
		section(probe.SectionProcesses, "USER PID %CPU\nroot 1 0.1")
	}
	if strings.Contains(cmd, "NS_DISK") {
		section(probe.SectionDisk, "/dev/sda1 102400000 40960000 61440000 40% /")
	}
	if strings.Contains(cmd, "NS_NETIFACES") {
		section(probe.SectionNetIfaces, strings.Join(r.interfaces, "\n"))
		section(probe.SectionNetDefault, "eth0")
		section(probe.SectionCounterIface, r.counterIface)
	}
	if !r.omitCounterSection {
		section(probe.SectionNetCounters, fmt.Sprintf("%d\n%d", r.rx, r.tx))
	}
	b.WriteString("---NS_PROBE_END---\n")
	return exec.Result{Stdout: b.String()}, nil
}

func (r *probeRunner) callCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.calls)
}

func (r *probeRunner) countWith(marker string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, c := range r.calls {
		if strings.Contains(c, marker) {
			n++
		}
	}
	return n
}

// fakeSource counts channel churn.
type fakeSource struct {
	mu          sync.Mutex
	runner      exec.Runner
	connectErr  error
	connects    int
	disconnects int
}

func (s *fakeSource) Connect() (exec.Runner, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.connectErr != nil {
		return nil, s.connectErr
	}
	s.connects++
	return s.runner, nil
}

func (s *fakeSource) Disconnect() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.disconnects++
	return nil
}

func (s *fakeSource) counts() (connects, disconnects int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.connects, s.disconnects
}

// flipLiveness trips on demand.
type flipLiveness struct {
	mu    sync.Mutex
	alive bool
}

func (l *flipLiveness) SessionAlive() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.alive
}

func (l *flipLiveness) ReceiverAlive() bool { return true }

func (l *flipLiveness) set(alive bool) {
	l.mu.Lock()
	l.alive = alive
	l.mu.Unlock()
}

// chanEmitter delivers snapshots to the test goroutine.
type chanEmitter struct {
	ch chan Snapshot
}

func newChanEmitter() *chanEmitter {
	return &chanEmitter{ch: make(chan Snapshot, 128)}
}

func (e *chanEmitter) EmitSnapshot(s Snapshot) { e.ch <- s }

func (e *chanEmitter) next(t *testing.T) Snapshot {
	t.Helper()
	select {
	case s := <-e.ch:
		return s
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for a snapshot")
		return Snapshot{}
	}
}

func quickOptions() Options {
	return Options{
		Interval:    5 * time.Millisecond,
		StartDelay:  time.Millisecond,
		ExecTimeout: time.Second,
		Logger:      logger.Noop(),
	}
}

// newTestController wires a controller with gen 1 and a preselected
// interface so cadence tests can drive onTick directly.
func newTestController(runner exec.Runner, emit Emitter) (*Controller, *fakeSource) {
	src := &fakeSource{runner: runner}
	c := New("web", src, nil, emit, quickOptions())
	c.gen = 1
	c.cache.iface = "eth0"
	return c, src
}

func waitIdleProbes(t *testing.T, c *Controller) {
	t.Helper()
	require.Eventually(t, func() bool {
		c.mu.Lock()
		defer c.mu.Unlock()
		return !c.inFlight
	}, 2*time.Second, time.Millisecond)
}

func TestController_StartSeedsCompleteSnapshot(t *testing.T) {
	runner := newProbeRunner()
	emit := newChanEmitter()
	src := &fakeSource{runner: runner}
	opts := quickOptions()
	opts.Interval = time.Minute // only the seed probe runs during this test
	c := New("web", src, nil, emit, opts)

	require.NoError(t, c.Start())
	defer c.Stop()

	snap := emit.next(t)
	assert.Equal(t, "web", snap.Host)
	assert.Greater(t, snap.MemTotalMB, 0.0)
	assert.Greater(t, snap.DiskTotalGB, 0.0)
	assert.Equal(t, "eth0", snap.Interface)
	assert.Equal(t, []string{"ens5", "eth0"}, snap.InterfaceOptions)

	// The seed probe collected every section at once
	assert.Equal(t, 1, runner.countWith("NS_CPUSTAT"))
	assert.Equal(t, 1, runner.countWith("NS_DISK"))
	assert.Equal(t, 1, runner.countWith("NS_NETIFACES"))

	require.Eventually(t, func() bool { return c.State() == StateRunning },
		2*time.Second, time.Millisecond)
}

func TestController_StartWhileRunningIsNoOp(t *testing.T) {
	runner := newProbeRunner()
	c := New("web", &fakeSource{runner: runner}, nil, nil, quickOptions())

	require.NoError(t, c.Start())
	defer c.Stop()
	require.Equal(t, StateRunning, c.State())

	seeds := runner.countWith("NS_NETIFACES")
	require.NoError(t, c.Start(), "starting a running monitor succeeds without side effects")
	assert.Equal(t, StateRunning, c.State())
	assert.Equal(t, seeds, runner.countWith("NS_NETIFACES"), "no second seed probe")
}

func TestController_StartRefusedWithoutLiveSession(t *testing.T) {
	runner := newProbeRunner()
	live := &flipLiveness{alive: false}
	src := &fakeSource{runner: runner}
	c := New("web", src, live, nil, quickOptions())

	err := c.Start()
	require.Error(t, err)
	assert.Equal(t, StateIdle, c.State())
	connects, _ := src.counts()
	assert.Zero(t, connects, "a refused start never touches the remote")
	assert.Zero(t, runner.callCount())
}

func TestController_SeedFailureStopsController(t *testing.T) {
	src := &fakeSource{connectErr: fmt.Errorf("connection refused")}
	c := New("web", src, nil, nil, quickOptions())

	err := c.Start()
	require.Error(t, err)
	assert.Equal(t, StateStopped, c.State())
	_, disconnects := src.counts()
	assert.Equal(t, 1, disconnects, "failed start tears the channel down")

	// No loop was armed
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, StateStopped, c.State())

	// Once the source recovers, the stopped controller starts cleanly
	src.mu.Lock()
	src.connectErr = nil
	src.runner = newProbeRunner()
	src.mu.Unlock()
	require.NoError(t, c.Start())
	c.Stop()
}

func TestController_PersistsResolvedSelection(t *testing.T) {
	runner := newProbeRunner()
	store := &memStore{}
	emit := newChanEmitter()
	src := &fakeSource{runner: runner}
	opts := quickOptions()
	opts.Interval = time.Minute
	opts.Store = store
	c := New("web", src, nil, emit, opts)

	require.NoError(t, c.Start())
	defer c.Stop()
	emit.next(t)

	sel := store.ReadSelection()
	assert.Equal(t, "eth0", sel.Interface, "seed resolution lands in the store")
	assert.Equal(t, []string{"ens5", "eth0"}, sel.Options)
	assert.False(t, sel.ChosenAt.IsZero())
	assert.Equal(t, 1, store.writeCount())

	// An identical re-resolution is not rewritten
	c.mu.Lock()
	gen := c.gen
	c.mu.Unlock()
	c.runProbe(gen, probe.Flags{IfaceMeta: true})
	emit.next(t)
	assert.Equal(t, 1, store.writeCount(), "unchanged selection skips the store")
}

func TestController_StopThenRestart(t *testing.T) {
	runner := newProbeRunner()
	emit := newChanEmitter()
	c := New("web", &fakeSource{runner: runner}, nil, emit, quickOptions())

	require.NoError(t, c.Start())
	emit.next(t)
	c.Stop()
	assert.Equal(t, StateStopped, c.State())

	// Stop is idempotent
	c.Stop()
	assert.Equal(t, StateStopped, c.State())

	// No further probes after stop
	calls := runner.callCount()
	time.Sleep(30 * time.Millisecond)
	assert.Equal(t, calls, runner.callCount())

	// A stopped controller can start a fresh session
	require.NoError(t, c.Start())
	emit.next(t)
	c.Stop()
}

func TestController_CadenceFlags(t *testing.T) {
	runner := newProbeRunner()
	c, _ := newTestController(runner, nil)

	for i := 0; i < 11; i++ {
		c.onTick(1)
		waitIdleProbes(t, c)
	}

	assert.Equal(t, 11, runner.callCount())
	// CPU/memory on ticks 3, 6, 9; disk on tick 10
	assert.Equal(t, 3, runner.countWith("NS_CPUSTAT"))
	assert.Equal(t, 1, runner.countWith("NS_DISK"))
	assert.Equal(t, 0, runner.countWith("NS_NETIFACES"))
}

func TestController_BackpressureDropsTick(t *testing.T) {
	runner := newProbeRunner()
	runner.delay = 50 * time.Millisecond
	c, _ := newTestController(runner, nil)

	c.onTick(1)
	c.onTick(1) // lands while the first probe is in flight

	waitIdleProbes(t, c)
	assert.Equal(t, 1, runner.callCount())

	c.mu.Lock()
	assert.Equal(t, uint64(2), c.tick, "a dropped tick still advances the cadence")
	c.mu.Unlock()
}

func TestController_LivenessStopsLoop(t *testing.T) {
	runner := newProbeRunner()
	live := &flipLiveness{alive: true}
	src := &fakeSource{runner: runner}
	c := New("web", src, live, nil, quickOptions())

	require.NoError(t, c.Start())
	require.Eventually(t, func() bool { return c.State() == StateRunning },
		2*time.Second, time.Millisecond)

	live.set(false)
	require.Eventually(t, func() bool { return c.State() == StateStopped },
		2*time.Second, time.Millisecond)

	_, disconnects := src.counts()
	assert.Equal(t, 1, disconnects)
}

func TestController_FailureThresholdRecyclesChannel(t *testing.T) {
	runner := newProbeRunner()
	runner.err = fmt.Errorf("broken pipe")
	c, src := newTestController(runner, nil)

	for i := 0; i < 3; i++ {
		c.runProbe(1, probe.Flags{})
	}

	connects, disconnects := src.counts()
	assert.Equal(t, 1, connects)
	assert.Equal(t, 1, disconnects, "threshold reached exactly once")

	c.mu.Lock()
	assert.Zero(t, c.failures, "streak resets with the recycled channel")
	assert.Nil(t, c.conn)
	c.mu.Unlock()

	// The next probe reconnects through the source
	runner.mu.Lock()
	runner.err = nil
	runner.mu.Unlock()
	c.runProbe(1, probe.Flags{})
	connects, disconnects = src.counts()
	assert.Equal(t, 2, connects)
	assert.Equal(t, 1, disconnects)
}

func TestController_TimeoutRecyclesImmediately(t *testing.T) {
	runner := newProbeRunner()
	runner.delay = 200 * time.Millisecond
	src := &fakeSource{runner: runner}
	opts := quickOptions()
	opts.ExecTimeout = 10 * time.Millisecond
	c := New("web", src, nil, nil, opts)
	c.gen = 1
	c.cache.iface = "eth0"

	c.runProbe(1, probe.Flags{})

	_, disconnects := src.counts()
	assert.Equal(t, 1, disconnects)
	c.mu.Lock()
	assert.Zero(t, c.failures)
	assert.Nil(t, c.conn)
	c.mu.Unlock()
}

func TestController_StaleResultDiscarded(t *testing.T) {
	runner := newProbeRunner()
	runner.delay = 30 * time.Millisecond
	emit := newChanEmitter()
	c, _ := newTestController(runner, emit)

	done := make(chan struct{})
	go func() {
		c.runProbe(1, probe.Flags{})
		close(done)
	}()

	// Supersede the session while the probe is mid-flight
	time.Sleep(5 * time.Millisecond)
	c.mu.Lock()
	c.gen = 2
	c.mu.Unlock()

	<-done
	select {
	case <-emit.ch:
		t.Fatal("stale probe result must not emit a snapshot")
	default:
	}
}

func TestController_RejectedPayloadNotCounted(t *testing.T) {
	runner := newProbeRunner()
	runner.omitCounterSection = true
	c, src := newTestController(runner, nil)

	for i := 0; i < 5; i++ {
		c.runProbe(1, probe.Flags{})
	}

	c.mu.Lock()
	assert.Zero(t, c.failures, "payload rejections are not channel failures")
	c.mu.Unlock()
	_, disconnects := src.counts()
	assert.Zero(t, disconnects)
}

func TestController_InvalidCountersClearInterface(t *testing.T) {
	runner := newProbeRunner()
	c, _ := newTestController(runner, nil)
	c.cache.options = []string{"ens5", "eth0"}

	// Counters present but garbage
	bad := &probe.RejectError{Reason: probe.ReasonInvalidCounters}
	c.handleProbeError(1, bad)

	c.mu.Lock()
	assert.Empty(t, c.cache.iface, "interface is re-resolved after counter garbage")
	assert.Empty(t, c.cache.options, "stale candidate list goes with it")
	c.mu.Unlock()

	// With no interface the next tick forces a metadata probe
	c.onTick(1)
	waitIdleProbes(t, c)
	assert.Equal(t, 1, runner.countWith("NS_NETIFACES"))
}

func TestController_RatesAcrossTicks(t *testing.T) {
	runner := newProbeRunner()
	emit := newChanEmitter()
	c, _ := newTestController(runner, emit)

	c.runProbe(1, probe.Flags{})
	first := emit.next(t)
	assert.Zero(t, first.RxMbps, "first sample only seeds the baseline")

	c.runProbe(1, probe.Flags{})
	second := emit.next(t)
	assert.Greater(t, second.RxMbps, 0.0)
	assert.Greater(t, second.TxMbps, 0.0)
}

func TestController_ConnectFailureCountsTowardThreshold(t *testing.T) {
	src := &fakeSource{connectErr: fmt.Errorf("connection refused")}
	c := New("web", src, nil, nil, quickOptions())
	c.gen = 1
	c.cache.iface = "eth0"

	c.runProbe(1, probe.Flags{})
	c.mu.Lock()
	assert.Equal(t, 1, c.failures)
	c.mu.Unlock()
}

func TestStateString(t *testing.T) {
	assert.Equal(t, "idle", StateIdle.String())
	assert.Equal(t, "starting", StateStarting.String())
	assert.Equal(t, "running", StateRunning.String())
	assert.Equal(t, "stopping", StateStopping.String())
	assert.Equal(t, "stopped", StateStopped.String())
}

func TestOptionsDefaults(t *testing.T) {
	o := Options{}.withDefaults()

	assert.Equal(t, time.Second, o.Interval)
	assert.Equal(t, 300*time.Millisecond, o.StartDelay)
	assert.Equal(t, 20*time.Second, o.ExecTimeout)
	assert.Equal(t, 3, o.FailureThreshold)
	assert.Equal(t, 3, o.DetailEvery)
	assert.Equal(t, 10, o.DiskEvery)
	assert.Equal(t, 30, o.IfaceEvery)
	assert.NotNil(t, o.Logger)
}
