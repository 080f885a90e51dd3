// Package util provides text helpers shared by the command-line output.
package util

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/x/ansi"
)

// Truncate shortens s to at most width visual columns, ending it with "..."
// when anything was cut. Escape sequences are kept and not counted, so
// styled cells can be truncated after rendering. Widths of 3 or less cut
// without an ellipsis.
func Truncate(s string, width int) string {
	if width <= 0 {
		return ""
	}
	if lipgloss.Width(s) <= width {
		return s
	}
	if width <= 3 {
		return ansi.Truncate(s, width, "")
	}
	return ansi.Truncate(s, width, "...")
}

// PadRight pads s with spaces to width visual columns.
func PadRight(s string, width int) string {
	if gap := width - lipgloss.Width(s); gap > 0 {
		return s + strings.Repeat(" ", gap)
	}
	return s
}

// Percent renders a utilization fraction as a percentage, e.g. 0.425 as "42.5%".
func Percent(v float64) string {
	return fmt.Sprintf("%.1f%%", v*100)
}

// FormatMB renders a byte count in whole megabytes.
func FormatMB(bytes uint64) string {
	return fmt.Sprintf("%dMB", bytes>>20)
}
