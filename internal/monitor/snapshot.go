package monitor

import (
	"time"

	"github.com/rileyhilliard/ns/internal/probe"
)

// Snapshot is the controller's cached view of the remote host after
// folding in one accepted frame. Rates and percentages are derived
// here so consumers never see raw counters.
type Snapshot struct {
	Host       string    `json:"host,omitempty"`
	CapturedAt time.Time `json:"capturedAt"`

	LoadAvg    [3]float64 `json:"loadAvg"`
	CPUPercent float64    `json:"cpuPercent"`

	MemUsedMB   float64 `json:"memUsedMB"`
	MemTotalMB  float64 `json:"memTotalMB"`
	MemPercent  float64 `json:"memPercent"`
	SwapUsedMB  float64 `json:"swapUsedMB"`
	SwapTotalMB float64 `json:"swapTotalMB"`
	SwapPercent float64 `json:"swapPercent"`

	DiskUsedGB  float64 `json:"diskUsedGB"`
	DiskTotalGB float64 `json:"diskTotalGB"`
	DiskPercent float64 `json:"diskPercent"`

	RxMbps float64 `json:"rxMbps"`
	TxMbps float64 `json:"txMbps"`

	// Interface actually sampled and the known alternatives.
	Interface        string   `json:"interface"`
	InterfaceOptions []string `json:"interfaceOptions,omitempty"`

	// Top processes by CPU, at most five rows.
	Processes []probe.Process `json:"processes,omitempty"`
}

// ProcessSnapshot is one fetch of the remote process table.
type ProcessSnapshot struct {
	Host       string          `json:"host,omitempty"`
	CapturedAt time.Time       `json:"capturedAt"`
	Processes  []probe.Process `json:"processes"`
}
