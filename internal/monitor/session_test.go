package monitor

import (
	"testing"
	"time"

	"github.com/rileyhilliard/ns/internal/probe"
	"github.com/stretchr/testify/assert"
)

var t0 = time.Date(2026, 8, 23, 12, 0, 0, 0, time.UTC)

func TestUpdateRates(t *testing.T) {
	var c sessionCache

	// First sample only seeds the baseline
	c.updateRates(&probe.Frame{RxBytes: 1_000_000, TxBytes: 500_000}, t0)
	assert.Zero(t, c.rxMbps)
	assert.Zero(t, c.txMbps)

	// 1 MB received over 1s is 8 Mbps
	c.updateRates(&probe.Frame{RxBytes: 2_000_000, TxBytes: 1_000_000}, t0.Add(time.Second))
	assert.InDelta(t, 8.0, c.rxMbps, 0.001)
	assert.InDelta(t, 4.0, c.txMbps, 0.001)
}

func TestUpdateRates_CounterWentBackwards(t *testing.T) {
	var c sessionCache
	c.updateRates(&probe.Frame{RxBytes: 5_000_000, TxBytes: 5_000_000}, t0)
	c.updateRates(&probe.Frame{RxBytes: 6_000_000, TxBytes: 6_000_000}, t0.Add(time.Second))
	assert.InDelta(t, 8.0, c.rxMbps, 0.001)

	// Counter reset: no rate derived, baseline re-seeded
	c.updateRates(&probe.Frame{RxBytes: 100, TxBytes: 100}, t0.Add(2*time.Second))
	assert.InDelta(t, 8.0, c.rxMbps, 0.001)

	c.updateRates(&probe.Frame{RxBytes: 1_000_100, TxBytes: 500_100}, t0.Add(3*time.Second))
	assert.InDelta(t, 8.0, c.rxMbps, 0.001)
	assert.InDelta(t, 4.0, c.txMbps, 0.001)
}

func TestUpdateCPU(t *testing.T) {
	var c sessionCache

	c.updateCPU(&probe.Frame{HasCPU: true, CPUTotal: 1000, CPUIdle: 800})
	assert.Zero(t, c.cpuPercent)

	// 400 jiffies elapsed, 100 idle: 75% busy
	c.updateCPU(&probe.Frame{HasCPU: true, CPUTotal: 1400, CPUIdle: 900})
	assert.InDelta(t, 75.0, c.cpuPercent, 0.001)

	// No elapsed jiffies keeps the previous reading
	c.updateCPU(&probe.Frame{HasCPU: true, CPUTotal: 1400, CPUIdle: 900})
	assert.InDelta(t, 75.0, c.cpuPercent, 0.001)
}

func TestChooseInterface(t *testing.T) {
	frame := &probe.Frame{
		Interfaces:       []string{"ens5", "eth0", "wlan0"},
		HasInterfaces:    true,
		DefaultInterface: "eth0",
		CounterInterface: "wlan0",
	}

	tests := []struct {
		name               string
		current, persisted string
		want               string
	}{
		{"persisted wins when listed", "eth0", "ens5", "ens5"},
		{"current kept when listed", "eth0", "", "eth0"},
		{"counter interface when current vanished", "tun0", "", "wlan0"},
		{"persisted ignored when unlisted", "eth0", "tun9", "eth0"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, chooseInterface(tt.current, tt.persisted, frame))
		})
	}
}

func TestChooseInterface_FallbackOrder(t *testing.T) {
	// Counter interface vanished from the list: default route wins
	frame := &probe.Frame{
		Interfaces:       []string{"ens5", "eth0"},
		HasInterfaces:    true,
		DefaultInterface: "eth0",
		CounterInterface: "tun0",
	}
	assert.Equal(t, "eth0", chooseInterface("", "", frame))

	// No default either: counter interface is still what was sampled
	frame.DefaultInterface = ""
	assert.Equal(t, "tun0", chooseInterface("", "", frame))

	// Nothing reported sampled: first candidate
	frame.CounterInterface = ""
	assert.Equal(t, "ens5", chooseInterface("", "", frame))
}

func TestApply_InterfaceChangeResetsRateBaseline(t *testing.T) {
	var c sessionCache
	c.iface = "eth0"

	c.apply(&probe.Frame{RxBytes: 1_000_000, TxBytes: 1_000_000}, "", t0)
	c.apply(&probe.Frame{RxBytes: 2_000_000, TxBytes: 2_000_000}, "", t0.Add(time.Second))
	assert.InDelta(t, 8.0, c.rxMbps, 0.001)

	// Metadata frame switches interfaces; its counters belong to the new
	// interface, so no cross-interface rate may be derived.
	c.apply(&probe.Frame{
		RxBytes:       900_000_000,
		TxBytes:       900_000_000,
		Interfaces:    []string{"ens5"},
		HasInterfaces: true,
	}, "ens5", t0.Add(2*time.Second))

	assert.Equal(t, "ens5", c.iface)
	assert.Zero(t, c.rxMbps)
	assert.Zero(t, c.txMbps)

	// The very next frame derives rates against the new baseline
	c.apply(&probe.Frame{RxBytes: 901_000_000, TxBytes: 900_500_000}, "ens5", t0.Add(3*time.Second))
	assert.InDelta(t, 8.0, c.rxMbps, 0.001)
	assert.InDelta(t, 4.0, c.txMbps, 0.001)
}

func TestSnapshot_DerivedUnits(t *testing.T) {
	c := sessionCache{
		iface:   "eth0",
		options: []string{"ens5", "eth0"},
		loadAvg: [3]float64{1, 2, 3},
		mem: &probe.Memory{
			TotalKB:     16 * 1024 * 1024,
			AvailableKB: 4 * 1024 * 1024,
			SwapTotalKB: 2 * 1024 * 1024,
			SwapFreeKB:  1 * 1024 * 1024,
		},
		diskTotalKB: 100 * 1024 * 1024,
		diskUsedKB:  25 * 1024 * 1024,
		haveDisk:    true,
		cpuPercent:  42,
		rxMbps:      1.5,
		txMbps:      0.5,
	}

	s := c.snapshot("web", t0)

	assert.Equal(t, "web", s.Host)
	assert.Equal(t, t0, s.CapturedAt)
	assert.InDelta(t, 16*1024, s.MemTotalMB, 0.001)
	assert.InDelta(t, 12*1024, s.MemUsedMB, 0.001)
	assert.InDelta(t, 75.0, s.MemPercent, 0.001)
	assert.InDelta(t, 50.0, s.SwapPercent, 0.001)
	assert.InDelta(t, 100.0, s.DiskTotalGB, 0.001)
	assert.InDelta(t, 25.0, s.DiskUsedGB, 0.001)
	assert.InDelta(t, 25.0, s.DiskPercent, 0.001)
	assert.Equal(t, 42.0, s.CPUPercent)
	assert.Equal(t, "eth0", s.Interface)
	assert.Equal(t, []string{"ens5", "eth0"}, s.InterfaceOptions)
}

func TestSnapshot_NoMemoryOrDiskYet(t *testing.T) {
	var c sessionCache
	s := c.snapshot("web", t0)

	assert.Zero(t, s.MemTotalMB)
	assert.Zero(t, s.MemPercent)
	assert.Zero(t, s.DiskTotalGB)
	assert.Zero(t, s.DiskPercent)
}
