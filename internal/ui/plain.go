package ui

import (
	"fmt"
	"io"
	"sync"

	"github.com/rileyhilliard/ns/internal/monitor"
)

// Printer writes snapshots as single log-style lines. It serves
// non-interactive runs: piped output, --plain, and dumb terminals.
type Printer struct {
	mu  sync.Mutex
	out io.Writer
}

// NewPrinter creates a line printer writing to out.
func NewPrinter(out io.Writer) *Printer {
	return &Printer{out: out}
}

// EmitSnapshot implements monitor.Emitter.
func (p *Printer) EmitSnapshot(s monitor.Snapshot) {
	p.mu.Lock()
	defer p.mu.Unlock()
	fmt.Fprintf(p.out,
		"%s host=%s cpu=%.1f%% mem=%.1f%% swap=%.1f%% disk=%.1f%% load=%.2f,%.2f,%.2f iface=%s rx=%.2fMbps tx=%.2fMbps\n",
		s.CapturedAt.Format("15:04:05"), s.Host,
		s.CPUPercent, s.MemPercent, s.SwapPercent, s.DiskPercent,
		s.LoadAvg[0], s.LoadAvg[1], s.LoadAvg[2],
		s.Interface, s.RxMbps, s.TxMbps)
}

// EmitProcesses implements monitor.ProcessEmitter.
func (p *Printer) EmitProcesses(s monitor.ProcessSnapshot) {
	p.mu.Lock()
	defer p.mu.Unlock()
	fmt.Fprintf(p.out, "%s host=%s processes:\n",
		s.CapturedAt.Format("15:04:05"), s.Host)
	fmt.Fprintf(p.out, "  %-7s %-10s %6s %6s  %s\n", "PID", "USER", "CPU%", "MEM%", "COMMAND")
	for _, proc := range s.Processes {
		fmt.Fprintf(p.out, "  %-7d %-10s %6.1f %6.1f  %s\n",
			proc.PID, proc.User, proc.CPU, proc.Mem, proc.Command)
	}
}
