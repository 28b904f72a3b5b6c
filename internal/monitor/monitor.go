// Package monitor implements the remote metrics poll loops: a timed
// system-stats controller and a process-table controller. Each
// controller owns one exec channel, ticks on a fixed interval, and
// folds probe frames into a cached snapshot that is pushed to an
// emitter.
package monitor

import (
	"time"

	"github.com/rileyhilliard/ns/internal/exec"
	"github.com/rileyhilliard/ns/internal/logger"
)

// State is the lifecycle state of a controller.
type State int

const (
	StateIdle State = iota
	StateStarting
	StateRunning
	StateStopping
	StateStopped
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateStarting:
		return "starting"
	case StateRunning:
		return "running"
	case StateStopping:
		return "stopping"
	case StateStopped:
		return "stopped"
	default:
		return "unknown"
	}
}

// ChannelSource produces and tears down exec channels to the monitored
// host. A controller holds at most one channel at a time and asks for a
// fresh one after a recycle.
type ChannelSource interface {
	Connect() (exec.Runner, error)
	Disconnect() error
}

// StaticSource is a ChannelSource over a fixed runner. Used for local
// monitoring and in tests.
type StaticSource struct {
	Runner exec.Runner
}

func (s StaticSource) Connect() (exec.Runner, error) { return s.Runner, nil }
func (s StaticSource) Disconnect() error             { return nil }

// Liveness gates each tick on external conditions. When either check
// fails the controller stops itself instead of polling a dead session.
type Liveness interface {
	SessionAlive() bool
	ReceiverAlive() bool
}

// AlwaysAlive is a Liveness that never trips.
type AlwaysAlive struct{}

func (AlwaysAlive) SessionAlive() bool  { return true }
func (AlwaysAlive) ReceiverAlive() bool { return true }

// Emitter receives each accepted snapshot. Emit runs outside the
// controller mutex but on the probe goroutine, so implementations
// should hand off quickly.
type Emitter interface {
	EmitSnapshot(Snapshot)
}

// EmitterFunc adapts a function to the Emitter interface.
type EmitterFunc func(Snapshot)

func (f EmitterFunc) EmitSnapshot(s Snapshot) { f(s) }

// ProcessEmitter receives process table snapshots.
type ProcessEmitter interface {
	EmitProcesses(ProcessSnapshot)
}

// ProcessEmitterFunc adapts a function to the ProcessEmitter interface.
type ProcessEmitterFunc func(ProcessSnapshot)

func (f ProcessEmitterFunc) EmitProcesses(s ProcessSnapshot) { f(s) }

// Selection is a persisted network interface choice.
type Selection struct {
	Interface string    `yaml:"interface" json:"interface"`
	Options   []string  `yaml:"options,omitempty" json:"options,omitempty"`
	ChosenAt  time.Time `yaml:"chosen_at" json:"chosenAt"`
}

// SelectionStore persists the interface choice across sessions. A nil
// store means nothing is persisted.
type SelectionStore interface {
	// ReadSelection returns the stored selection; zero value when none.
	ReadSelection() Selection
	WriteSelection(Selection) error
}

// ProbeRecord is a diagnostic hook invoked after every probe attempt,
// successful or not. It runs on the probe goroutine.
type ProbeRecord func(command string, result exec.Result, err error)

// Options tunes the system metrics controller. Zero values take the
// defaults noted per field.
type Options struct {
	// Interval between poll ticks. Default 1s.
	Interval time.Duration

	// StartDelay before the seed probe after Start. Default 300ms.
	StartDelay time.Duration

	// ExecTimeout bounds a single probe execution. Default 20s.
	ExecTimeout time.Duration

	// FailureThreshold is how many consecutive failures trigger a
	// channel recycle. Default 3.
	FailureThreshold int

	// Cadence multipliers. CPU/memory/swap sections are collected every
	// DetailEvery ticks (default 3), disk every DiskEvery (default 10),
	// interface metadata every IfaceEvery (default 30). Byte counters
	// are sampled on every tick.
	DetailEvery int
	DiskEvery   int
	IfaceEvery  int

	// Interface pins the sampled interface. Empty means auto-select
	// starting from the persisted choice.
	Interface string

	// Store persists interface selections. Optional.
	Store SelectionStore

	// Logger for diagnostics. Defaults to the package default logger.
	Logger logger.Logger

	// OnProbe is the diagnostic probe hook. Optional.
	OnProbe ProbeRecord
}

func (o Options) withDefaults() Options {
	if o.Interval <= 0 {
		o.Interval = time.Second
	}
	if o.StartDelay < 0 {
		o.StartDelay = 0
	} else if o.StartDelay == 0 {
		o.StartDelay = 300 * time.Millisecond
	}
	if o.ExecTimeout <= 0 {
		o.ExecTimeout = exec.DefaultTimeout
	}
	if o.FailureThreshold < 1 {
		o.FailureThreshold = 3
	}
	if o.DetailEvery < 1 {
		o.DetailEvery = 3
	}
	if o.DiskEvery < 1 {
		o.DiskEvery = 10
	}
	if o.IfaceEvery < 1 {
		o.IfaceEvery = 30
	}
	if o.Logger == nil {
		o.Logger = logger.Default()
	}
	return o
}

// ProcessOptions tunes the process table controller.
type ProcessOptions struct {
	// Interval between poll ticks. Default 5s.
	Interval time.Duration

	// StartDelay before the first fetch after Start. Default 200ms.
	StartDelay time.Duration

	// ExecTimeout bounds a single fetch. Default 20s.
	ExecTimeout time.Duration

	// FailureThreshold is how many consecutive failures trigger a
	// channel recycle. Default 3.
	FailureThreshold int

	// Rows is the number of process table rows to fetch. Default 20.
	Rows int

	// Logger for diagnostics. Defaults to the package default logger.
	Logger logger.Logger

	// OnProbe is the diagnostic probe hook. Optional.
	OnProbe ProbeRecord
}

func (o ProcessOptions) withDefaults() ProcessOptions {
	if o.Interval <= 0 {
		o.Interval = 5 * time.Second
	}
	if o.StartDelay < 0 {
		o.StartDelay = 0
	} else if o.StartDelay == 0 {
		o.StartDelay = 200 * time.Millisecond
	}
	if o.ExecTimeout <= 0 {
		o.ExecTimeout = exec.DefaultTimeout
	}
	if o.FailureThreshold < 1 {
		o.FailureThreshold = 3
	}
	if o.Rows < 1 {
		o.Rows = 20
	}
	if o.Logger == nil {
		o.Logger = logger.Default()
	}
	return o
}
