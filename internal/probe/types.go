// Package probe builds the batched metrics command sent to a remote
// shell and parses its section-delimited output into typed frames.
package probe

// Section names emitted by the probe command. Each section in the
// combined output is introduced by a marker line `---NS_<NAME>---` and
// the whole output is terminated by the PROBE_END marker.
const (
	SectionLoadAvg      = "LOADAVG"
	SectionCPUStat      = "CPUSTAT"
	SectionMemInfo      = "MEMINFO"
	SectionFree         = "FREE"
	SectionProcesses    = "PROCESSES"
	SectionDisk         = "DISK"
	SectionNetIfaces    = "NETIFACES"
	SectionNetDefault   = "NETDEFAULT"
	SectionCounterIface = "NETCOUNTER_IFACE"
	SectionNetCounters  = "NETCOUNTERS"
	SectionProbeEnd     = "PROBE_END"
)

// Flags selects which metric sections a probe collects. Network byte
// counters are always collected; the rest is cadence-driven.
type Flags struct {
	// CPUMemSwap requests LOADAVG, CPUSTAT, MEMINFO, FREE and PROCESSES.
	CPUMemSwap bool
	// Disk requests the DISK usage section.
	Disk bool
	// IfaceMeta requests NETIFACES, NETDEFAULT and the safe counter
	// section that falls back through default-route and first-available
	// interfaces on the remote side.
	IfaceMeta bool
}

// Memory holds the parsed memory and swap figures in kilobytes.
type Memory struct {
	TotalKB     int64
	AvailableKB int64
	SwapTotalKB int64
	SwapFreeKB  int64
}

// Process is one row of the remote process table.
type Process struct {
	PID     int     `json:"pid"`
	User    string  `json:"user"`
	CPU     float64 `json:"cpu"`
	Mem     float64 `json:"mem"`
	Command string  `json:"command"`
}

// Frame is the parsed result of one probe execution. It is transient:
// the monitor controller consumes it once to update its cached state
// and then discards it.
type Frame struct {
	// Network byte counters, present in every accepted frame.
	RxBytes int64
	TxBytes int64

	// CPU accounting totals from the `cpu ` line, set when HasCPU.
	CPUTotal int64
	CPUIdle  int64
	HasCPU   bool

	// Memory/swap figures; nil when the frame didn't collect them.
	Memory *Memory

	// Load averages; zeros when the section was absent.
	LoadAvg [3]float64

	// Disk usage in kilobytes, set when HasDisk.
	DiskTotalKB int64
	DiskUsedKB  int64
	HasDisk     bool

	// Top processes, capped at five rows.
	Processes []Process

	// Interface metadata, populated only on IfaceMeta probes.
	Interfaces       []string
	HasInterfaces    bool
	DefaultInterface string
	CounterInterface string
}
