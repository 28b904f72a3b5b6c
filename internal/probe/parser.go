package probe

import (
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"
)

// Rejection reasons reported when a frame cannot be accepted.
const (
	ReasonMissingSections = "missing required sections"
	ReasonInvalidCounters = "invalid NETCOUNTERS"
	ReasonInvalidCPUStat  = "invalid CPUSTAT"
	ReasonInvalidMemory   = "invalid memory sections"
	ReasonInvalidDisk     = "invalid DISK"
)

// RejectError reports why a probe frame was rejected. A rejected frame
// must never partially update controller state.
type RejectError struct {
	Reason  string
	Missing []string
}

func (e *RejectError) Error() string {
	if len(e.Missing) > 0 {
		return fmt.Sprintf("%s: %s", e.Reason, strings.Join(e.Missing, ", "))
	}
	return e.Reason
}

// numberPattern extracts integer or decimal numbers from free text.
var numberPattern = regexp.MustCompile(`\d+(?:\.\d+)?`)

// Parse sanitizes and splits raw probe output, then extracts typed
// metrics section by section. NETCOUNTERS is always required; CPUSTAT
// and DISK are required when the corresponding flag requested them. A
// missing required section or an unparseable required section rejects
// the whole frame.
func Parse(raw string, flags Flags) (*Frame, error) {
	sections := SplitSections(Sanitize(raw))

	var missing []string
	if _, ok := sections[SectionNetCounters]; !ok {
		missing = append(missing, SectionNetCounters)
	}
	if flags.CPUMemSwap {
		if _, ok := sections[SectionCPUStat]; !ok {
			missing = append(missing, SectionCPUStat)
		}
	}
	if flags.Disk {
		if _, ok := sections[SectionDisk]; !ok {
			missing = append(missing, SectionDisk)
		}
	}
	if len(missing) > 0 {
		return nil, &RejectError{Reason: ReasonMissingSections, Missing: missing}
	}

	frame := &Frame{}

	rx, tx, err := parseNetCounters(sections[SectionNetCounters])
	if err != nil {
		return nil, &RejectError{Reason: ReasonInvalidCounters}
	}
	frame.RxBytes, frame.TxBytes = rx, tx

	if flags.CPUMemSwap {
		total, idle, err := parseCPUStat(sections[SectionCPUStat])
		if err != nil {
			return nil, &RejectError{Reason: ReasonInvalidCPUStat}
		}
		frame.CPUTotal, frame.CPUIdle, frame.HasCPU = total, idle, true

		mem, err := parseMemory(sections[SectionMemInfo], sections[SectionFree])
		if err != nil {
			return nil, &RejectError{Reason: ReasonInvalidMemory}
		}
		frame.Memory = mem

		frame.LoadAvg = parseLoadAvg(sections[SectionLoadAvg])
		frame.Processes = ParseProcesses(sections[SectionProcesses], 5)
	}

	if flags.Disk {
		total, used, err := parseDisk(sections[SectionDisk])
		if err != nil {
			return nil, &RejectError{Reason: ReasonInvalidDisk}
		}
		frame.DiskTotalKB, frame.DiskUsedKB, frame.HasDisk = total, used, true
	}

	if flags.IfaceMeta {
		if text, ok := sections[SectionNetIfaces]; ok {
			frame.Interfaces = ParseInterfaceList(text)
			frame.HasInterfaces = true
		}
		frame.DefaultInterface = firstInterfaceName(sections[SectionNetDefault])
		frame.CounterInterface = firstInterfaceName(sections[SectionCounterIface])
	}

	return frame, nil
}

// parseNetCounters reads the first two numeric lines as cumulative
// rx/tx byte counters. Missing or negative counters invalidate the
// section.
func parseNetCounters(text string) (rx, tx int64, err error) {
	var values []int64
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		v, perr := strconv.ParseInt(line, 10, 64)
		if perr != nil {
			continue
		}
		values = append(values, v)
		if len(values) == 2 {
			break
		}
	}
	if len(values) < 2 {
		return 0, 0, fmt.Errorf("expected two counter lines, got %d", len(values))
	}
	if values[0] < 0 || values[1] < 0 {
		return 0, 0, fmt.Errorf("negative byte counter")
	}
	return values[0], values[1], nil
}

// parseCPUStat parses the aggregate `cpu ` accounting line from
// /proc/stat. Total is the sum of all fields; idle is idle+iowait.
func parseCPUStat(text string) (total, idle int64, err error) {
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if !strings.HasPrefix(line, "cpu ") {
			continue
		}
		fields := strings.Fields(line)
		if len(fields) < 5 {
			return 0, 0, fmt.Errorf("cpu line has %d fields", len(fields))
		}
		for i := 1; i < len(fields); i++ {
			v, perr := strconv.ParseInt(fields[i], 10, 64)
			if perr != nil {
				return 0, 0, fmt.Errorf("cpu field %d: %w", i, perr)
			}
			total += v
			// idle is field 4, iowait field 5
			if i == 4 || i == 5 {
				idle += v
			}
		}
		if total <= 0 {
			return 0, 0, fmt.Errorf("cpu total is zero")
		}
		return total, idle, nil
	}
	return 0, 0, fmt.Errorf("no cpu accounting line")
}

// parseMemory extracts memory and swap figures, preferring MEMINFO and
// falling back to FREE output. A missing or zero memory total means the
// section is absent, never "a machine with no memory".
func parseMemory(meminfo, free string) (*Memory, error) {
	if m := parseMemInfo(meminfo); m != nil {
		return m, nil
	}
	if m := parseFree(free); m != nil {
		return m, nil
	}
	return nil, fmt.Errorf("no usable memory section")
}

// parseMemInfo reads /proc/meminfo style `Key: value kB` lines.
// MemAvailable falls back to MemFree+Buffers+Cached on older kernels.
func parseMemInfo(text string) *Memory {
	var memTotal, memFree, memAvailable, buffers, cached, swapTotal, swapFree int64

	for _, line := range strings.Split(text, "\n") {
		fields := strings.Fields(line)
		if len(fields) < 2 {
			continue
		}
		v, err := strconv.ParseInt(fields[1], 10, 64)
		if err != nil {
			continue
		}
		switch strings.TrimSuffix(fields[0], ":") {
		case "MemTotal":
			memTotal = v
		case "MemFree":
			memFree = v
		case "MemAvailable":
			memAvailable = v
		case "Buffers":
			buffers = v
		case "Cached":
			cached = v
		case "SwapTotal":
			swapTotal = v
		case "SwapFree":
			swapFree = v
		}
	}

	if memTotal <= 0 {
		return nil
	}
	if memAvailable == 0 {
		memAvailable = memFree + buffers + cached
	}
	return &Memory{
		TotalKB:     memTotal,
		AvailableKB: memAvailable,
		SwapTotalKB: swapTotal,
		SwapFreeKB:  swapFree,
	}
}

// parseFree reads `free -k` output: a Mem: row with total first and
// available last, and a Swap: row with total and free.
func parseFree(text string) *Memory {
	var m Memory

	for _, line := range strings.Split(text, "\n") {
		fields := strings.Fields(line)
		if len(fields) < 3 {
			continue
		}
		switch {
		case strings.HasPrefix(fields[0], "Mem"):
			total, err := strconv.ParseInt(fields[1], 10, 64)
			if err != nil {
				continue
			}
			m.TotalKB = total
			// available is the last column on modern free; fall back to
			// the free column otherwise
			if v, err := strconv.ParseInt(fields[len(fields)-1], 10, 64); err == nil && len(fields) >= 7 {
				m.AvailableKB = v
			} else if v, err := strconv.ParseInt(fields[3], 10, 64); err == nil {
				m.AvailableKB = v
			}
		case strings.HasPrefix(fields[0], "Swap"):
			if v, err := strconv.ParseInt(fields[1], 10, 64); err == nil {
				m.SwapTotalKB = v
			}
			if v, err := strconv.ParseInt(fields[len(fields)-1], 10, 64); err == nil {
				m.SwapFreeKB = v
			}
		}
	}

	if m.TotalKB <= 0 {
		return nil
	}
	return &m
}

// parseLoadAvg extracts the three load averages. It prefers the numbers
// following a "load average" label, else takes the first three numbers
// in the text, else zeros.
func parseLoadAvg(text string) [3]float64 {
	var out [3]float64

	search := text
	if idx := strings.Index(strings.ToLower(text), "load average"); idx >= 0 {
		search = text[idx:]
	}

	matches := numberPattern.FindAllString(search, 3)
	for i, m := range matches {
		if v, err := strconv.ParseFloat(m, 64); err == nil {
			out[i] = v
		}
	}
	return out
}

// parseDisk reads the last non-empty line of `df -Pk` output; columns
// 1 and 2 are total and used kilobytes.
func parseDisk(text string) (total, used int64, err error) {
	var last string
	for _, line := range strings.Split(text, "\n") {
		if strings.TrimSpace(line) != "" {
			last = line
		}
	}
	fields := strings.Fields(last)
	if len(fields) < 3 {
		return 0, 0, fmt.Errorf("disk line has %d fields", len(fields))
	}
	total, err = strconv.ParseInt(fields[1], 10, 64)
	if err != nil {
		return 0, 0, err
	}
	used, err = strconv.ParseInt(fields[2], 10, 64)
	if err != nil {
		return 0, 0, err
	}
	if total <= 0 {
		return 0, 0, fmt.Errorf("disk total is zero")
	}
	return total, used, nil
}

// ParseInterfaceList parses one interface name per line, dropping the
// loopback and duplicates, sorted lexicographically.
func ParseInterfaceList(text string) []string {
	seen := make(map[string]bool)
	var names []string

	for _, line := range strings.Split(text, "\n") {
		name := strings.TrimSpace(line)
		if name == "" || name == "lo" || seen[name] {
			continue
		}
		if !ValidInterfaceName(name) {
			continue
		}
		seen[name] = true
		names = append(names, name)
	}

	sort.Strings(names)
	return names
}

// firstInterfaceName returns the first non-empty line if it is a valid
// interface name, else "".
func firstInterfaceName(text string) string {
	for _, line := range strings.Split(text, "\n") {
		name := strings.TrimSpace(line)
		if name == "" {
			continue
		}
		if ValidInterfaceName(name) {
			return name
		}
		return ""
	}
	return ""
}

// ParseProcesses tokenizes ps-style rows, keeping only rows whose
// second column is a numeric PID, capped at limit rows. Short rows from
// stripped-down ps implementations are tolerated.
func ParseProcesses(text string, limit int) []Process {
	var procs []Process

	for _, line := range strings.Split(text, "\n") {
		fields := strings.Fields(line)
		if len(fields) < 2 {
			continue
		}
		pid, err := strconv.Atoi(fields[1])
		if err != nil {
			continue
		}

		p := Process{PID: pid, User: fields[0]}
		if len(fields) > 2 {
			p.CPU, _ = strconv.ParseFloat(fields[2], 64)
		}
		if len(fields) > 3 {
			p.Mem, _ = strconv.ParseFloat(fields[3], 64)
		}
		if len(fields) > 10 {
			p.Command = strings.Join(fields[10:], " ")
		} else {
			p.Command = fields[len(fields)-1]
		}
		if len(p.Command) > 50 {
			p.Command = p.Command[:47] + "..."
		}

		procs = append(procs, p)
		if limit > 0 && len(procs) == limit {
			break
		}
	}

	return procs
}
