package config

import (
	"fmt"
	"os"

	"github.com/rileyhilliard/ns/internal/errors"
)

// Starter renders the commented starter config written by `ns init`.
func Starter(host, ssh string) []byte {
	if host == "" {
		host = "myserver"
	}
	if ssh == "" {
		ssh = host
	}
	return []byte(fmt.Sprintf(`# ns configuration
# Full reference: https://github.com/rileyhilliard/ns
version: %d

hosts:
  %s:
    ssh:
      - %s
    # interface: eth0     # pin the sampled network interface

default: %s

monitor:
  interval: 1s            # poll cadence for network counters
  detail_every: 3         # CPU/memory/swap every Nth tick
  disk_every: 10          # disk usage every Nth tick
  iface_every: 30         # interface metadata every Nth tick

process:
  interval: 5s
  rows: 20

output:
  color: auto             # auto, always, never
`, CurrentConfigVersion, host, ssh, host))
}

// WriteStarter writes the starter config to path, refusing to clobber
// an existing file.
func WriteStarter(path, host, ssh string) error {
	if _, err := os.Stat(path); err == nil {
		return errors.New(errors.ErrConfig,
			path+" already exists",
			"Edit the existing file, or remove it and rerun 'ns init'")
	}
	if err := os.WriteFile(path, Starter(host, ssh), 0o644); err != nil {
		return errors.WrapWithCode(err, errors.ErrConfig,
			"Cannot write "+path,
			"Check directory permissions")
	}
	return nil
}
