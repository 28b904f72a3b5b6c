package monitor

import (
	"slices"
	"time"

	"github.com/rileyhilliard/ns/internal/errors"
	"github.com/rileyhilliard/ns/internal/exec"
	"github.com/rileyhilliard/ns/internal/probe"
)

// ListInterfaces fetches a fresh interface list from the host. The
// list is always re-fetched rather than read from a cached snapshot,
// since interfaces come and go with VPNs and container networks.
func ListInterfaces(r exec.Runner, timeout time.Duration) ([]string, error) {
	res, err := exec.RunTimed(r, probe.InterfaceListCommand(), timeout)
	if err != nil {
		return nil, err
	}
	if res.ExitCode != 0 {
		return nil, errors.New(errors.ErrExec,
			"Interface listing exited non-zero",
			"Check that /sys/class/net exists on the remote")
	}

	sections := probe.SplitSections(probe.Sanitize(res.Stdout))
	names := probe.ParseInterfaceList(sections[probe.SectionNetIfaces])
	if len(names) == 0 {
		return nil, errors.New(errors.ErrParse,
			"No usable network interfaces reported",
			"The remote listed nothing besides the loopback")
	}
	return names, nil
}

// SelectInterface switches the sampled interface mid-session. The name
// is checked against a freshly fetched list, the rate baseline resets
// so no cross-interface spike is derived, and the choice is persisted.
func (c *Controller) SelectInterface(name string) error {
	if !probe.ValidInterfaceName(name) {
		return errors.New(errors.ErrConfig,
			"'"+name+"' isn't a valid network interface name",
			"Interface names may only contain letters, digits, and _.:- characters")
	}

	c.mu.Lock()
	gen := c.gen
	conn := c.conn
	c.mu.Unlock()

	if conn == nil {
		return errors.New(errors.ErrGuard,
			"Monitor has no open channel",
			"Start the monitor before selecting an interface")
	}

	names, err := ListInterfaces(conn, c.opts.ExecTimeout)
	if err != nil {
		return err
	}

	found := false
	for _, n := range names {
		if n == name {
			found = true
			break
		}
	}
	if !found {
		return errors.New(errors.ErrConfig,
			"Interface '"+name+"' does not exist on "+c.host,
			"Pick one of the interfaces the host actually has")
	}

	c.mu.Lock()
	if c.gen != gen {
		c.mu.Unlock()
		return errors.New(errors.ErrGuard,
			"Monitor session changed during selection",
			"Retry the selection")
	}
	c.cache.iface = name
	c.cache.options = names
	c.cache.resetRateBaseline()
	c.persisted = name
	c.persistedOptions = slices.Clone(names)
	store := c.opts.Store
	c.mu.Unlock()

	if store != nil {
		if err := store.WriteSelection(Selection{Interface: name, Options: names, ChosenAt: time.Now()}); err != nil {
			c.opts.Logger.Warn("could not persist interface selection: %v", err)
		}
	}
	return nil
}
