package ui

import (
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/rileyhilliard/ns/internal/monitor"
	"github.com/rileyhilliard/ns/internal/probe"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testSnapshot() monitor.Snapshot {
	return monitor.Snapshot{
		Host:        "web",
		CapturedAt:  time.Date(2026, 8, 23, 12, 0, 0, 0, time.UTC),
		LoadAvg:     [3]float64{0.42, 0.35, 0.30},
		CPUPercent:  33.3,
		MemTotalMB:  16000,
		MemUsedMB:   8000,
		MemPercent:  50,
		SwapPercent: 5,
		DiskTotalGB: 100,
		DiskUsedGB:  25,
		DiskPercent: 25,
		RxMbps:      1.5,
		TxMbps:      0.25,
		Interface:   "eth0",
	}
}

func TestModel_ShowsSpinnerUntilFirstSnapshot(t *testing.T) {
	m := NewModel("web")

	view := m.View()
	assert.Contains(t, view, "connecting to web")

	updated, _ := m.Update(snapshotMsg(testSnapshot()))
	m = updated.(Model)

	view = m.View()
	assert.NotContains(t, view, "connecting")
	assert.Contains(t, view, "eth0")
}

func TestModel_SnapshotFeedsHistory(t *testing.T) {
	m := NewModel("web")

	for i := 0; i < 3; i++ {
		updated, _ := m.Update(snapshotMsg(testSnapshot()))
		m = updated.(Model)
	}

	assert.Len(t, m.history.CPU(10), 3)
}

func TestModel_ProcessesRendered(t *testing.T) {
	m := NewModel("web")

	updated, _ := m.Update(snapshotMsg(testSnapshot()))
	m = updated.(Model)
	updated, _ = m.Update(processMsg(monitor.ProcessSnapshot{
		Host: "web",
		Processes: []probe.Process{
			{User: "root", PID: 1, CPU: 0.1, Mem: 0.2, Command: "/sbin/init"},
		},
	}))
	m = updated.(Model)

	view := m.View()
	assert.Contains(t, view, "/sbin/init")
	assert.Contains(t, view, "COMMAND")
}

func TestModel_QuitKeys(t *testing.T) {
	for _, key := range []string{"q", "ctrl+c", "esc"} {
		t.Run(key, func(t *testing.T) {
			m := NewModel("web")

			msg := tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(key)}
			switch key {
			case "ctrl+c":
				msg = tea.KeyMsg{Type: tea.KeyCtrlC}
			case "esc":
				msg = tea.KeyMsg{Type: tea.KeyEsc}
			}

			updated, cmd := m.Update(msg)
			m = updated.(Model)

			require.NotNil(t, cmd)
			assert.True(t, m.quitting)
			assert.Empty(t, m.View())
		})
	}
}

func TestModel_WindowSizeStored(t *testing.T) {
	m := NewModel("web")

	updated, _ := m.Update(tea.WindowSizeMsg{Width: 120, Height: 40})
	m = updated.(Model)

	assert.Equal(t, 120, m.width)
	assert.Equal(t, 40, m.height)
}

func TestPrinter_SnapshotLine(t *testing.T) {
	var out strings.Builder
	p := NewPrinter(&out)

	p.EmitSnapshot(testSnapshot())

	line := out.String()
	assert.Contains(t, line, "host=web")
	assert.Contains(t, line, "cpu=33.3%")
	assert.Contains(t, line, "iface=eth0")
	assert.Contains(t, line, "rx=1.50Mbps")
	assert.Contains(t, line, "load=0.42,0.35,0.30")
}

func TestPrinter_ProcessTable(t *testing.T) {
	var out strings.Builder
	p := NewPrinter(&out)

	p.EmitProcesses(monitor.ProcessSnapshot{
		Host:       "web",
		CapturedAt: time.Now(),
		Processes: []probe.Process{
			{User: "root", PID: 1, CPU: 0.1, Mem: 0.2, Command: "/sbin/init"},
			{User: "deploy", PID: 4242, CPU: 12.5, Mem: 3.1, Command: "node server.js"},
		},
	})

	text := out.String()
	assert.Contains(t, text, "host=web processes:")
	assert.Contains(t, text, "/sbin/init")
	assert.Contains(t, text, "node server.js")
	assert.Contains(t, text, "4242")
}
