package probe

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/rileyhilliard/ns/internal/errors"
)

// ifaceNamePattern matches safe network interface names. Anything else
// is rejected before interpolation into the shell command, so a stored
// or forged interface name can never smuggle shell syntax.
var ifaceNamePattern = regexp.MustCompile(`^[A-Za-z0-9_.:-]+$`)

// ValidInterfaceName reports whether name is safe to interpolate into
// the probe command.
func ValidInterfaceName(name string) bool {
	return ifaceNamePattern.MatchString(name)
}

// marker returns the section marker line for a section name.
func marker(section string) string {
	return "---NS_" + section + "---"
}

// counterReads returns the commands reading the byte counters for the
// shell variable or literal interface reference given.
func counterReads(ifaceRef string) []string {
	return []string{
		fmt.Sprintf(`cat /sys/class/net/%s/statistics/rx_bytes 2>/dev/null`, ifaceRef),
		fmt.Sprintf(`cat /sys/class/net/%s/statistics/tx_bytes 2>/dev/null`, ifaceRef),
	}
}

// BuildCommand composes the single shell command for one probe. Section
// inclusion is purely flag-driven; iface is the interface whose byte
// counters are sampled. When flags.IfaceMeta is false, iface must be a
// valid non-empty name (the cheap path used on most ticks). When it is
// true, the remote shell falls back from iface through the default-route
// interface to the first available one, and reports which interface it
// actually used.
func BuildCommand(iface string, flags Flags) (string, error) {
	if iface != "" && !ValidInterfaceName(iface) {
		return "", errors.New(errors.ErrConfig,
			fmt.Sprintf("'%s' isn't a valid network interface name", iface),
			"Interface names may only contain letters, digits, and _.:- characters.")
	}

	var parts []string
	section := func(name string, cmds ...string) {
		parts = append(parts, fmt.Sprintf("echo '%s'", marker(name)))
		parts = append(parts, cmds...)
	}

	if flags.CPUMemSwap {
		section(SectionLoadAvg, "cat /proc/loadavg 2>/dev/null")
		section(SectionCPUStat, "grep '^cpu ' /proc/stat 2>/dev/null")
		section(SectionMemInfo, "cat /proc/meminfo 2>/dev/null")
		section(SectionFree, "free -k 2>/dev/null")
		section(SectionProcesses,
			"ps aux --sort=-%cpu 2>/dev/null | head -6 || ps aux 2>/dev/null | head -6")
	}

	if flags.Disk {
		section(SectionDisk, "df -Pk / 2>/dev/null | tail -1")
	}

	if flags.IfaceMeta {
		section(SectionNetIfaces, "ls /sys/class/net 2>/dev/null")
		section(SectionNetDefault, "ip route show default 2>/dev/null | awk '{print $5; exit}'")

		// Safe counter sampling: requested interface, then the default
		// route interface, then the first available one.
		parts = append(parts,
			fmt.Sprintf(`IF='%s'`, iface),
			`if [ -z "$IF" ] || [ ! -d "/sys/class/net/$IF" ]; then IF=$(ip route show default 2>/dev/null | awk '{print $5; exit}'); fi`,
			`if [ -z "$IF" ] || [ ! -d "/sys/class/net/$IF" ]; then IF=$(ls /sys/class/net 2>/dev/null | head -1); fi`,
		)
		section(SectionCounterIface, `echo "$IF"`)
		section(SectionNetCounters, counterReads(`"$IF"`)...)
	} else {
		if iface == "" {
			return "", errors.New(errors.ErrConfig,
				"no network interface selected for counter sampling",
				"Run an interface-metadata probe first, or pick one with 'ns iface'.")
		}
		section(SectionNetCounters, counterReads(iface)...)
	}

	parts = append(parts, fmt.Sprintf("echo '%s'", marker(SectionProbeEnd)))
	return strings.Join(parts, "; "), nil
}

// InterfaceListCommand returns a minimal probe that only lists the
// remote network interfaces. Used for out-of-band interface selection,
// which must see a fresh list rather than cached options.
func InterfaceListCommand() string {
	return strings.Join([]string{
		fmt.Sprintf("echo '%s'", marker(SectionNetIfaces)),
		"ls /sys/class/net 2>/dev/null",
		fmt.Sprintf("echo '%s'", marker(SectionProbeEnd)),
	}, "; ")
}

// PlatformCommand returns the command used to identify the remote
// kernel before starting the process monitor.
func PlatformCommand() string {
	return "uname -s"
}

// ProcessListCommand returns the standalone process-table command used
// by the process monitor. rows bounds the number of table rows
// (excluding the header).
func ProcessListCommand(rows int) string {
	if rows <= 0 {
		rows = 20
	}
	n := rows + 1 // keep the header line
	return fmt.Sprintf(
		"ps aux --sort=-%%cpu 2>/dev/null | head -%d || ps aux 2>/dev/null | head -%d", n, n)
}
