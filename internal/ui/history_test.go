package ui

import (
	"testing"

	"github.com/rileyhilliard/ns/internal/monitor"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHistory_PushAndRead(t *testing.T) {
	h := NewHistory(4)

	h.Push(monitor.Snapshot{CPUPercent: 10, MemPercent: 20, RxMbps: 1, TxMbps: 2})
	h.Push(monitor.Snapshot{CPUPercent: 30, MemPercent: 40, RxMbps: 3, TxMbps: 4})

	assert.Equal(t, []float64{10, 30}, h.CPU(10))
	assert.Equal(t, []float64{20, 40}, h.Mem(10))

	rx, tx := h.Net(10)
	assert.Equal(t, []float64{1, 3}, rx)
	assert.Equal(t, []float64{2, 4}, tx)
}

func TestHistory_RingWrapsOldestOut(t *testing.T) {
	h := NewHistory(3)

	for _, v := range []float64{1, 2, 3, 4, 5} {
		h.Push(monitor.Snapshot{CPUPercent: v})
	}

	assert.Equal(t, []float64{3, 4, 5}, h.CPU(10))
	assert.Equal(t, []float64{4, 5}, h.CPU(2))
}

func TestHistory_Reset(t *testing.T) {
	h := NewHistory(4)
	h.Push(monitor.Snapshot{CPUPercent: 50})

	h.Reset()

	assert.Nil(t, h.CPU(10))
}

func TestHistory_ZeroSizeUsesDefault(t *testing.T) {
	h := NewHistory(0)

	for i := 0; i < DefaultHistorySize+10; i++ {
		h.Push(monitor.Snapshot{CPUPercent: float64(i)})
	}

	got := h.CPU(DefaultHistorySize * 2)
	require.Len(t, got, DefaultHistorySize)
	assert.Equal(t, float64(10), got[0])
	assert.Equal(t, float64(DefaultHistorySize+9), got[len(got)-1])
}

func TestRing_LastEmpty(t *testing.T) {
	r := newRing(4)
	assert.Nil(t, r.last(3))
	assert.Nil(t, r.last(0))
}
