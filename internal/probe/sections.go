package probe

import (
	"regexp"
	"strings"
)

var (
	// sectionMarker matches a marker line introducing a named section.
	sectionMarker = regexp.MustCompile(`^---NS_(\w+)---$`)

	// ansiEscape matches CSI and other common terminal escape sequences
	// that chatty shells sometimes inject into command output.
	ansiEscape = regexp.MustCompile(`\x1b\[[0-9;?]*[ -/]*[@-~]`)
)

// Sanitize normalizes raw probe output before section splitting:
// CRLF/CR line endings become LF, ANSI escape sequences and NUL bytes
// are stripped.
func Sanitize(raw string) string {
	s := strings.ReplaceAll(raw, "\r\n", "\n")
	s = strings.ReplaceAll(s, "\r", "\n")
	s = ansiEscape.ReplaceAllString(s, "")
	s = strings.ReplaceAll(s, "\x00", "")
	return s
}

// SplitSections scans output line by line and groups lines under the
// most recent section marker. Lines before the first marker are
// dropped. If a section name repeats, the last occurrence wins.
func SplitSections(raw string) map[string]string {
	sections := make(map[string]string)

	var name string
	var lines []string
	flush := func() {
		if name == "" {
			return
		}
		sections[name] = strings.Join(lines, "\n")
	}

	for _, line := range strings.Split(raw, "\n") {
		trimmed := strings.TrimSpace(line)
		if m := sectionMarker.FindStringSubmatch(trimmed); m != nil {
			flush()
			name = m[1]
			lines = lines[:0]
			continue
		}
		if name != "" {
			lines = append(lines, line)
		}
	}
	flush()

	// Trim the trailing blank line most sections carry before the next
	// marker's newline.
	for k, v := range sections {
		sections[k] = strings.TrimRight(v, "\n")
	}

	return sections
}
