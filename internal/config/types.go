package config

import "time"

// CurrentConfigVersion is the schema version for the config file.
// Increment when making breaking changes to the config structure.
const CurrentConfigVersion = 1

// Config represents the complete .ns.yaml configuration file.
type Config struct {
	Version int             `yaml:"version" mapstructure:"version"`
	Hosts   map[string]Host `yaml:"hosts" mapstructure:"hosts"`
	Default string          `yaml:"default" mapstructure:"default"`
	Monitor MonitorConfig   `yaml:"monitor" mapstructure:"monitor"`
	Process ProcessConfig   `yaml:"process" mapstructure:"process"`
	Output  OutputConfig    `yaml:"output" mapstructure:"output"`
	Serve   ServeConfig     `yaml:"serve" mapstructure:"serve"`
}

// Host defines a remote machine and its connection settings.
type Host struct {
	// SSH connection strings, tried in order until one succeeds.
	// Can be: hostname, user@hostname, or SSH config alias.
	SSH []string `yaml:"ssh" mapstructure:"ssh"`

	// Interface pins the network interface sampled for byte counters.
	// Empty means auto-select, starting from the persisted choice.
	Interface string `yaml:"interface" mapstructure:"interface"`

	// Tags for filtering hosts with --tag flag.
	Tags []string `yaml:"tags" mapstructure:"tags"`
}

// MonitorConfig controls the system metrics poll loop.
type MonitorConfig struct {
	// Interval between poll ticks.
	Interval time.Duration `yaml:"interval" mapstructure:"interval"`

	// StartDelay before the first probe after Start.
	StartDelay time.Duration `yaml:"start_delay" mapstructure:"start_delay"`

	// ExecTimeout bounds a single probe execution.
	ExecTimeout time.Duration `yaml:"exec_timeout" mapstructure:"exec_timeout"`

	// FailureThreshold is how many consecutive probe failures trigger a
	// channel recycle.
	FailureThreshold int `yaml:"failure_threshold" mapstructure:"failure_threshold"`

	// Cadence multipliers: expensive sections are collected every Nth
	// tick rather than on every poll.
	DetailEvery int `yaml:"detail_every" mapstructure:"detail_every"`
	DiskEvery   int `yaml:"disk_every" mapstructure:"disk_every"`
	IfaceEvery  int `yaml:"iface_every" mapstructure:"iface_every"`
}

// ProcessConfig controls the process table poll loop.
type ProcessConfig struct {
	Interval         time.Duration `yaml:"interval" mapstructure:"interval"`
	StartDelay       time.Duration `yaml:"start_delay" mapstructure:"start_delay"`
	ExecTimeout      time.Duration `yaml:"exec_timeout" mapstructure:"exec_timeout"`
	FailureThreshold int           `yaml:"failure_threshold" mapstructure:"failure_threshold"`

	// Rows is the number of process table rows to fetch.
	Rows int `yaml:"rows" mapstructure:"rows"`
}

// OutputConfig controls terminal output formatting.
type OutputConfig struct {
	// Color mode: "auto", "always", or "never".
	// "auto" disables color when output is piped.
	Color string `yaml:"color" mapstructure:"color"`

	// Plain forces line-based output instead of the dashboard.
	Plain bool `yaml:"plain" mapstructure:"plain"`
}

// ServeConfig controls the websocket snapshot stream.
type ServeConfig struct {
	// Addr is the listen address for `ns monitor --serve`.
	Addr string `yaml:"addr" mapstructure:"addr"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Version: CurrentConfigVersion,
		Hosts:   make(map[string]Host),
		Monitor: MonitorConfig{
			Interval:         time.Second,
			StartDelay:       300 * time.Millisecond,
			ExecTimeout:      20 * time.Second,
			FailureThreshold: 3,
			DetailEvery:      3,
			DiskEvery:        10,
			IfaceEvery:       30,
		},
		Process: ProcessConfig{
			Interval:         5 * time.Second,
			StartDelay:       200 * time.Millisecond,
			ExecTimeout:      20 * time.Second,
			FailureThreshold: 3,
			Rows:             20,
		},
		Output: OutputConfig{
			Color: "auto",
		},
		Serve: ServeConfig{
			Addr: "127.0.0.1:8722",
		},
	}
}
