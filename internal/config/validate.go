package config

import (
	"fmt"

	"github.com/rileyhilliard/ns/internal/errors"
	"github.com/rileyhilliard/ns/internal/probe"
)

// Validate checks the config for problems that would only surface later
// as confusing runtime behavior.
func Validate(cfg *Config) error {
	if cfg.Version > CurrentConfigVersion {
		return errors.New(errors.ErrConfig,
			fmt.Sprintf("Config version %d is newer than this build supports (%d)", cfg.Version, CurrentConfigVersion),
			"Upgrade ns, or set 'version' back to a supported value")
	}

	for name, host := range cfg.Hosts {
		if len(host.SSH) == 0 {
			return errors.New(errors.ErrConfig,
				fmt.Sprintf("Host '%s' has no ssh connection strings", name),
				"Add at least one entry under hosts."+name+".ssh")
		}
		for _, conn := range host.SSH {
			if conn == "" {
				return errors.New(errors.ErrConfig,
					fmt.Sprintf("Host '%s' has an empty ssh connection string", name),
					"Remove the empty entry from hosts."+name+".ssh")
			}
		}
		if host.Interface != "" && !probe.ValidInterfaceName(host.Interface) {
			return errors.New(errors.ErrConfig,
				fmt.Sprintf("Host '%s' pins invalid interface name '%s'", name, host.Interface),
				"Interface names may only contain letters, digits, and _.:- characters")
		}
	}

	if cfg.Default != "" {
		if _, ok := cfg.Hosts[cfg.Default]; !ok {
			return errors.New(errors.ErrConfig,
				fmt.Sprintf("Default host '%s' is not defined under hosts", cfg.Default),
				"Set 'default' to one of the configured host names")
		}
	}

	if err := validateMonitor(cfg.Monitor); err != nil {
		return err
	}
	return validateProcess(cfg.Process)
}

func validateMonitor(m MonitorConfig) error {
	if m.Interval <= 0 {
		return errors.New(errors.ErrConfig,
			"monitor.interval must be positive",
			"Use a duration like '1s' or '500ms'")
	}
	if m.StartDelay < 0 {
		return errors.New(errors.ErrConfig,
			"monitor.start_delay cannot be negative",
			"Use '0s' to disable the start delay")
	}
	if m.ExecTimeout <= 0 {
		return errors.New(errors.ErrConfig,
			"monitor.exec_timeout must be positive",
			"Use a duration like '20s'")
	}
	if m.FailureThreshold < 1 {
		return errors.New(errors.ErrConfig,
			"monitor.failure_threshold must be at least 1",
			"The default is 3")
	}
	for field, every := range map[string]int{
		"monitor.detail_every": m.DetailEvery,
		"monitor.disk_every":   m.DiskEvery,
		"monitor.iface_every":  m.IfaceEvery,
	} {
		if every < 1 {
			return errors.New(errors.ErrConfig,
				field+" must be at least 1",
				"Cadence multipliers count poll ticks between collections")
		}
	}
	return nil
}

func validateProcess(p ProcessConfig) error {
	if p.Interval <= 0 {
		return errors.New(errors.ErrConfig,
			"process.interval must be positive",
			"Use a duration like '5s'")
	}
	if p.StartDelay < 0 {
		return errors.New(errors.ErrConfig,
			"process.start_delay cannot be negative",
			"Use '0s' to disable the start delay")
	}
	if p.ExecTimeout <= 0 {
		return errors.New(errors.ErrConfig,
			"process.exec_timeout must be positive",
			"Use a duration like '20s'")
	}
	if p.FailureThreshold < 1 {
		return errors.New(errors.ErrConfig,
			"process.failure_threshold must be at least 1",
			"The default is 3")
	}
	if p.Rows < 1 || p.Rows > 100 {
		return errors.New(errors.ErrConfig,
			fmt.Sprintf("process.rows must be between 1 and 100, got %d", p.Rows),
			"The default is 20")
	}
	return nil
}
