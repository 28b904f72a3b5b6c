package monitor

import (
	"time"

	"github.com/rileyhilliard/ns/internal/probe"
)

// sessionCache accumulates state across the frames of one monitoring
// session. It is guarded by the controller mutex and discarded whole
// when a new session starts.
type sessionCache struct {
	iface   string
	options []string

	// Byte counter baseline for rate derivation.
	lastRx, lastTx int64
	lastSampleAt   time.Time
	haveSample     bool
	rxMbps, txMbps float64

	// CPU accounting baseline for percentage derivation.
	lastCPUTotal, lastCPUIdle int64
	haveCPU                   bool
	cpuPercent                float64

	loadAvg [3]float64
	mem     *probe.Memory

	diskTotalKB, diskUsedKB int64
	haveDisk                bool

	procs []probe.Process
}

// apply folds one accepted frame into the cache. persisted is the
// stored interface preference, consulted only when the frame carries
// interface metadata.
func (c *sessionCache) apply(frame *probe.Frame, persisted string, now time.Time) {
	if frame.HasInterfaces {
		c.options = frame.Interfaces
		chosen := chooseInterface(c.iface, persisted, frame)
		if chosen != c.iface {
			c.iface = chosen
			c.resetRateBaseline()
		}
	}

	c.updateRates(frame, now)

	if frame.HasCPU {
		c.updateCPU(frame)
		c.loadAvg = frame.LoadAvg
		if frame.Memory != nil {
			c.mem = frame.Memory
		}
		if len(frame.Processes) > 0 {
			c.procs = frame.Processes
		}
	}

	if frame.HasDisk {
		c.diskTotalKB = frame.DiskTotalKB
		c.diskUsedKB = frame.DiskUsedKB
		c.haveDisk = true
	}
}

// chooseInterface resolves which interface to sample, in priority
// order: the persisted preference, the interface the probe actually
// read counters from, the default-route interface, then any reported
// counter interface. The current choice is kept unless it vanished
// from the candidate list.
func chooseInterface(current, persisted string, frame *probe.Frame) string {
	listed := make(map[string]bool, len(frame.Interfaces))
	for _, name := range frame.Interfaces {
		listed[name] = true
	}

	if persisted != "" && listed[persisted] {
		return persisted
	}
	if current != "" && listed[current] {
		return current
	}
	if frame.CounterInterface != "" && listed[frame.CounterInterface] {
		return frame.CounterInterface
	}
	if frame.DefaultInterface != "" && listed[frame.DefaultInterface] {
		return frame.DefaultInterface
	}
	if frame.CounterInterface != "" {
		return frame.CounterInterface
	}
	if len(frame.Interfaces) > 0 {
		return frame.Interfaces[0]
	}
	return current
}

// updateRates derives Mbps from the byte counter deltas. Rates are
// computed only against an existing baseline; a counter that went
// backwards (interface reset or change) re-seeds the baseline without
// producing a spike.
func (c *sessionCache) updateRates(frame *probe.Frame, now time.Time) {
	if c.haveSample {
		dRx := frame.RxBytes - c.lastRx
		dTx := frame.TxBytes - c.lastTx
		dSec := now.Sub(c.lastSampleAt).Seconds()
		if dRx >= 0 && dTx >= 0 && dSec > 0 {
			c.rxMbps = float64(dRx) * 8 / (dSec * 1e6)
			c.txMbps = float64(dTx) * 8 / (dSec * 1e6)
		}
	}
	c.lastRx = frame.RxBytes
	c.lastTx = frame.TxBytes
	c.lastSampleAt = now
	c.haveSample = true
}

// updateCPU derives the busy percentage from jiffy deltas.
func (c *sessionCache) updateCPU(frame *probe.Frame) {
	if c.haveCPU {
		dTotal := frame.CPUTotal - c.lastCPUTotal
		dIdle := frame.CPUIdle - c.lastCPUIdle
		if dTotal > 0 {
			pct := 100 * float64(dTotal-dIdle) / float64(dTotal)
			if pct < 0 {
				pct = 0
			}
			if pct > 100 {
				pct = 100
			}
			c.cpuPercent = pct
		}
	}
	c.lastCPUTotal = frame.CPUTotal
	c.lastCPUIdle = frame.CPUIdle
	c.haveCPU = true
}

// resetRateBaseline forgets the byte counter baseline. Called when the
// sampled interface changes so the next frame re-seeds instead of
// deriving a rate across two different interfaces.
func (c *sessionCache) resetRateBaseline() {
	c.haveSample = false
	c.rxMbps = 0
	c.txMbps = 0
}

// snapshot renders the cache into consumer units.
func (c *sessionCache) snapshot(host string, now time.Time) Snapshot {
	s := Snapshot{
		Host:             host,
		CapturedAt:       now,
		LoadAvg:          c.loadAvg,
		CPUPercent:       c.cpuPercent,
		RxMbps:           c.rxMbps,
		TxMbps:           c.txMbps,
		Interface:        c.iface,
		InterfaceOptions: c.options,
		Processes:        c.procs,
	}

	if c.mem != nil {
		s.MemTotalMB = float64(c.mem.TotalKB) / 1024
		s.MemUsedMB = float64(c.mem.TotalKB-c.mem.AvailableKB) / 1024
		if c.mem.TotalKB > 0 {
			s.MemPercent = 100 * float64(c.mem.TotalKB-c.mem.AvailableKB) / float64(c.mem.TotalKB)
		}
		s.SwapTotalMB = float64(c.mem.SwapTotalKB) / 1024
		s.SwapUsedMB = float64(c.mem.SwapTotalKB-c.mem.SwapFreeKB) / 1024
		if c.mem.SwapTotalKB > 0 {
			s.SwapPercent = 100 * float64(c.mem.SwapTotalKB-c.mem.SwapFreeKB) / float64(c.mem.SwapTotalKB)
		}
	}

	if c.haveDisk {
		s.DiskTotalGB = float64(c.diskTotalKB) / (1024 * 1024)
		s.DiskUsedGB = float64(c.diskUsedKB) / (1024 * 1024)
		if c.diskTotalKB > 0 {
			s.DiskPercent = 100 * float64(c.diskUsedKB) / float64(c.diskTotalKB)
		}
	}

	return s
}
