package ui

import (
	"sync"

	"github.com/rileyhilliard/ns/internal/monitor"
)

// DefaultHistorySize is the number of samples retained per metric.
const DefaultHistorySize = 120

// History keeps ring buffers of the dashboard's metrics for sparkline
// rendering. One History tracks one host session.
type History struct {
	mu sync.Mutex

	cpu *ring
	mem *ring
	rx  *ring
	tx  *ring
}

// NewHistory creates a history with the given buffer size.
func NewHistory(size int) *History {
	if size <= 0 {
		size = DefaultHistorySize
	}
	return &History{
		cpu: newRing(size),
		mem: newRing(size),
		rx:  newRing(size),
		tx:  newRing(size),
	}
}

// Push folds one snapshot into the buffers.
func (h *History) Push(s monitor.Snapshot) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.cpu.push(s.CPUPercent)
	h.mem.push(s.MemPercent)
	h.rx.push(s.RxMbps)
	h.tx.push(s.TxMbps)
}

// CPU returns the last n CPU percentages, oldest first.
func (h *History) CPU(n int) []float64 {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.cpu.last(n)
}

// Mem returns the last n memory percentages, oldest first.
func (h *History) Mem(n int) []float64 {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.mem.last(n)
}

// Net returns the last n rx and tx Mbps samples, oldest first.
func (h *History) Net(n int) (rx, tx []float64) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.rx.last(n), h.tx.last(n)
}

// Reset drops all samples, e.g. when the monitored session restarts.
func (h *History) Reset() {
	h.mu.Lock()
	defer h.mu.Unlock()
	size := h.cpu.size
	h.cpu = newRing(size)
	h.mem = newRing(size)
	h.rx = newRing(size)
	h.tx = newRing(size)
}

// ring is a fixed-size circular buffer of float64 values.
type ring struct {
	data  []float64
	head  int
	count int
	size  int
}

func newRing(size int) *ring {
	return &ring{data: make([]float64, size), size: size}
}

func (r *ring) push(v float64) {
	r.data[r.head] = v
	r.head = (r.head + 1) % r.size
	if r.count < r.size {
		r.count++
	}
}

// last returns the most recent n values in chronological order.
func (r *ring) last(n int) []float64 {
	if n <= 0 || r.count == 0 {
		return nil
	}
	if n > r.count {
		n = r.count
	}
	out := make([]float64, n)
	start := (r.head - n + r.size) % r.size
	for i := 0; i < n; i++ {
		out[i] = r.data[(start+i)%r.size]
	}
	return out
}
