// Package ui renders monitor snapshots: a live bubbletea dashboard for
// interactive terminals and a line printer for everything else.
package ui

import (
	"fmt"
	"strings"
	"sync/atomic"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/rileyhilliard/ns/internal/monitor"
	"github.com/rileyhilliard/ns/internal/probe"
)

type snapshotMsg monitor.Snapshot

type processMsg monitor.ProcessSnapshot

// Model is the dashboard's bubbletea model. Before the first snapshot
// arrives it shows a connecting spinner.
type Model struct {
	host string

	spin    spinner.Model
	width   int
	height  int
	history *History

	snap     *monitor.Snapshot
	procs    []probe.Process
	quitting bool
}

// NewModel builds the dashboard model for one host.
func NewModel(host string) Model {
	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = lipgloss.NewStyle().Foreground(ColorAccent)
	return Model{
		host:    host,
		spin:    sp,
		history: NewHistory(DefaultHistorySize),
	}
}

func (m Model) Init() tea.Cmd {
	return m.spin.Tick
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c", "esc":
			m.quitting = true
			return m, tea.Quit
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height

	case snapshotMsg:
		snap := monitor.Snapshot(msg)
		m.snap = &snap
		m.history.Push(snap)

	case processMsg:
		m.procs = msg.Processes

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spin, cmd = m.spin.Update(msg)
		return m, cmd
	}

	return m, nil
}

func (m Model) View() string {
	if m.quitting {
		return ""
	}

	header := HeaderStyle.Render("ns · " + m.host)
	footer := FooterStyle.Render("q quit")

	if m.snap == nil {
		return fmt.Sprintf("%s\n\n %s %s\n\n%s",
			header, m.spin.View(), LabelStyle.Render("connecting to "+m.host+"..."), footer)
	}

	body := lipgloss.JoinVertical(lipgloss.Left,
		lipgloss.JoinHorizontal(lipgloss.Top, m.cpuCard(), m.memCard(), m.diskCard()),
		lipgloss.JoinHorizontal(lipgloss.Top, m.netCard(), m.loadCard()),
		m.processCard(),
	)

	return lipgloss.JoinVertical(lipgloss.Left, header, body, footer)
}

const cardGraphWidth = 24

func (m Model) cpuCard() string {
	s := m.snap
	lines := []string{
		LabelStyle.Render("CPU ") + ValueStyle.Render(fmt.Sprintf("%5.1f%%", s.CPUPercent)),
		GradientBar(cardGraphWidth, s.CPUPercent),
		PercentSparkline(m.history.CPU(cardGraphWidth), cardGraphWidth),
	}
	return CardStyle.Render(strings.Join(lines, "\n"))
}

func (m Model) memCard() string {
	s := m.snap
	lines := []string{
		LabelStyle.Render("Mem ") + ValueStyle.Render(fmt.Sprintf("%5.1f%%", s.MemPercent)) +
			MutedStyle.Render(fmt.Sprintf("  %.0f/%.0f MB", s.MemUsedMB, s.MemTotalMB)),
		GradientBar(cardGraphWidth, s.MemPercent),
		LabelStyle.Render("Swap ") + ValueStyle.Render(fmt.Sprintf("%4.1f%%", s.SwapPercent)),
	}
	return CardStyle.Render(strings.Join(lines, "\n"))
}

func (m Model) diskCard() string {
	s := m.snap
	lines := []string{
		LabelStyle.Render("Disk ") + ValueStyle.Render(fmt.Sprintf("%5.1f%%", s.DiskPercent)) +
			MutedStyle.Render(fmt.Sprintf("  %.1f/%.1f GB", s.DiskUsedGB, s.DiskTotalGB)),
		GradientBar(cardGraphWidth, s.DiskPercent),
	}
	return CardStyle.Render(strings.Join(lines, "\n"))
}

func (m Model) netCard() string {
	s := m.snap
	rx, tx := m.history.Net(cardGraphWidth)
	lines := []string{
		LabelStyle.Render("Net ") + ValueStyle.Render(s.Interface) +
			MutedStyle.Render(fmt.Sprintf("  ↓%.2f ↑%.2f Mbps", s.RxMbps, s.TxMbps)),
		RateSparkline(rx, cardGraphWidth),
		RateSparkline(tx, cardGraphWidth),
	}
	return CardStyle.Render(strings.Join(lines, "\n"))
}

func (m Model) loadCard() string {
	s := m.snap
	lines := []string{
		LabelStyle.Render("Load"),
		ValueStyle.Render(fmt.Sprintf("%.2f %.2f %.2f", s.LoadAvg[0], s.LoadAvg[1], s.LoadAvg[2])),
	}
	return CardStyle.Render(strings.Join(lines, "\n"))
}

func (m Model) processCard() string {
	procs := m.procs
	if len(procs) == 0 {
		procs = m.snap.Processes
	}
	if len(procs) == 0 {
		return ""
	}

	lines := []string{
		MutedStyle.Render(fmt.Sprintf("%-7s %-10s %6s %6s  %s", "PID", "USER", "CPU%", "MEM%", "COMMAND")),
	}
	for _, p := range procs {
		lines = append(lines, ValueStyle.Render(
			fmt.Sprintf("%-7d %-10s %6.1f %6.1f  %s", p.PID, p.User, p.CPU, p.Mem, p.Command)))
	}
	return CardStyle.Render(strings.Join(lines, "\n"))
}

// Dashboard owns the running bubbletea program and adapts it to the
// monitor's emitter interfaces. Emissions after the program exits are
// dropped, and Alive feeds the monitor's receiver liveness check.
type Dashboard struct {
	program *tea.Program
	alive   atomic.Bool
}

// NewDashboard builds the dashboard program for one host.
func NewDashboard(host string) *Dashboard {
	d := &Dashboard{
		program: tea.NewProgram(NewModel(host), tea.WithAltScreen()),
	}
	d.alive.Store(true)
	return d
}

// Run blocks until the user quits the dashboard.
func (d *Dashboard) Run() error {
	defer d.alive.Store(false)
	_, err := d.program.Run()
	return err
}

// EmitSnapshot implements monitor.Emitter.
func (d *Dashboard) EmitSnapshot(s monitor.Snapshot) {
	if d.alive.Load() {
		d.program.Send(snapshotMsg(s))
	}
}

// EmitProcesses implements monitor.ProcessEmitter.
func (d *Dashboard) EmitProcesses(s monitor.ProcessSnapshot) {
	if d.alive.Load() {
		d.program.Send(processMsg(s))
	}
}

// Alive reports whether the dashboard is still on screen.
func (d *Dashboard) Alive() bool {
	return d.alive.Load()
}
