package ui

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// sparklineBlocks are block characters for 8-level vertical resolution.
var sparklineBlocks = []rune{'▁', '▂', '▃', '▄', '▅', '▆', '▇', '█'}

// Sparkline renders data as a single row of block characters. With
// fewer points than width the graph fills from the left.
func Sparkline(data []float64, width int) string {
	if len(data) == 0 || width <= 0 {
		return ""
	}

	minVal, maxVal := bounds(data)
	resampled := resample(data, min(width, len(data)))

	var b strings.Builder
	for _, v := range resampled {
		idx := clampInt(int(normalize(v, minVal, maxVal)*float64(len(sparklineBlocks)-1)), len(sparklineBlocks)-1)
		b.WriteRune(sparklineBlocks[idx])
	}
	return b.String()
}

// PercentSparkline renders percentage data on a fixed 0-100 scale,
// colored by the most recent value's severity.
func PercentSparkline(data []float64, width int) string {
	if len(data) == 0 || width <= 0 {
		return ""
	}

	resampled := resample(data, min(width, len(data)))
	var b strings.Builder
	for _, v := range resampled {
		idx := clampInt(int(normalize(v, 0, 100)*float64(len(sparklineBlocks)-1)), len(sparklineBlocks)-1)
		b.WriteRune(sparklineBlocks[idx])
	}

	color := MetricColor(data[len(data)-1])
	return lipgloss.NewStyle().Foreground(color).Render(b.String())
}

// RateSparkline renders throughput data scaled to its own peak, in the
// accent graph color.
func RateSparkline(data []float64, width int) string {
	s := Sparkline(data, width)
	if s == "" {
		return ""
	}
	return lipgloss.NewStyle().Foreground(ColorGraph).Render(s)
}

// GradientBar renders a horizontal usage bar; the filled portion
// shades green through red as it approaches the right edge.
func GradientBar(width int, percent float64) string {
	if width < 1 {
		width = 1
	}
	if percent < 0 {
		percent = 0
	}
	if percent > 100 {
		percent = 100
	}

	filled := int(percent / 100 * float64(width))
	if filled > width {
		filled = width
	}

	var b strings.Builder
	for i := 0; i < width; i++ {
		if i < filled {
			pos := float64(i+1) / float64(width) * 100
			b.WriteString(lipgloss.NewStyle().Foreground(MetricColor(pos)).Render("█"))
		} else {
			b.WriteString(MutedStyle.Render("░"))
		}
	}
	return b.String()
}

func bounds(data []float64) (minVal, maxVal float64) {
	minVal, maxVal = data[0], data[0]
	for _, v := range data {
		if v < minVal {
			minVal = v
		}
		if v > maxVal {
			maxVal = v
		}
	}
	return minVal, maxVal
}

func normalize(v, minVal, maxVal float64) float64 {
	if maxVal > minVal {
		return (v - minVal) / (maxVal - minVal)
	}
	return 0.5
}

func clampInt(v, maxVal int) int {
	if v < 0 {
		return 0
	}
	if v > maxVal {
		return maxVal
	}
	return v
}

// resample compresses data to the target size using max-per-bucket so
// short spikes stay visible.
func resample(data []float64, target int) []float64 {
	if len(data) <= target {
		return data
	}

	out := make([]float64, target)
	bucket := float64(len(data)) / float64(target)
	for i := 0; i < target; i++ {
		start := int(float64(i) * bucket)
		end := int(float64(i+1) * bucket)
		if end > len(data) {
			end = len(data)
		}
		if start >= end {
			start = end - 1
		}
		maxVal := data[start]
		for j := start + 1; j < end; j++ {
			if data[j] > maxVal {
				maxVal = data[j]
			}
		}
		out[i] = maxVal
	}
	return out
}
