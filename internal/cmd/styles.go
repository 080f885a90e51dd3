package cmd

import (
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"golang.org/x/term"

	"github.com/Iron-Ham/foresight/internal/resource"
	"github.com/Iron-Ham/foresight/internal/util"
)

// Color palette for CLI output.
var (
	colorPrimary = lipgloss.Color("#A78BFA")
	colorMuted   = lipgloss.Color("#6B7280")
	colorSuccess = lipgloss.Color("#10B981")
	colorWarning = lipgloss.Color("#F59E0B")
	colorError   = lipgloss.Color("#EF4444")
)

var (
	titleStyle  = lipgloss.NewStyle().Bold(true).Foreground(colorPrimary)
	headerStyle = lipgloss.NewStyle().Bold(true)
	mutedStyle  = lipgloss.NewStyle().Foreground(colorMuted)
	okStyle     = lipgloss.NewStyle().Foreground(colorSuccess)
	errorStyle  = lipgloss.NewStyle().Foreground(colorError)

	riskStyles = map[resource.RiskLevel]lipgloss.Style{
		resource.RiskLow:      lipgloss.NewStyle().Foreground(colorSuccess),
		resource.RiskMedium:   lipgloss.NewStyle().Foreground(colorWarning),
		resource.RiskHigh:     lipgloss.NewStyle().Foreground(colorError),
		resource.RiskCritical: lipgloss.NewStyle().Bold(true).Foreground(colorError),
	}
)

// defaultTableWidth is used when the output is not a terminal.
const defaultTableWidth = 120

// printer writes CLI output, styling it only when w is a terminal.
type printer struct {
	w      io.Writer
	styled bool
	width  int
}

func newPrinter(w io.Writer) *printer {
	p := &printer{w: w, width: defaultTableWidth}
	if f, ok := w.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		p.styled = true
		if width, _, err := term.GetSize(int(f.Fd())); err == nil && width > 0 {
			p.width = width
		}
	}
	return p
}

func (p *printer) render(style lipgloss.Style, s string) string {
	if !p.styled {
		return s
	}
	return style.Render(s)
}

func (p *printer) println(s string) {
	_, _ = io.WriteString(p.w, s+"\n")
}

func (p *printer) title(s string) {
	p.println(p.render(titleStyle, s))
}

// table prints rows in aligned columns. style, when non-nil, picks the
// style of a body cell; headers always use headerStyle.
func (p *printer) table(headers []string, rows [][]string, style func(row, col int) (lipgloss.Style, bool)) {
	widths := make([]int, len(headers))
	for i, h := range headers {
		widths[i] = lipgloss.Width(h)
	}
	for _, row := range rows {
		for i, cell := range row {
			if i < len(widths) {
				widths[i] = max(widths[i], lipgloss.Width(cell))
			}
		}
	}
	p.shrinkLastColumn(widths)

	line := func(cells []string, cellStyle func(col int) (lipgloss.Style, bool)) string {
		var sb strings.Builder
		for i, w := range widths {
			cell := ""
			if i < len(cells) {
				cell = util.Truncate(cells[i], w)
			}
			padded := util.PadRight(cell, w)
			if s, ok := cellStyle(i); ok {
				padded = p.render(s, padded)
			}
			sb.WriteString(padded)
			if i < len(widths)-1 {
				sb.WriteString("  ")
			}
		}
		return strings.TrimRight(sb.String(), " ")
	}

	p.println(line(headers, func(int) (lipgloss.Style, bool) { return headerStyle, true }))
	for r, row := range rows {
		p.println(line(row, func(col int) (lipgloss.Style, bool) {
			if style == nil {
				return lipgloss.Style{}, false
			}
			return style(r, col)
		}))
	}
}

// shrinkLastColumn narrows the final column so a row fits the output width.
func (p *printer) shrinkLastColumn(widths []int) {
	if len(widths) == 0 {
		return
	}
	total := 2 * (len(widths) - 1)
	for _, w := range widths {
		total += w
	}
	if over := total - p.width; over > 0 {
		last := len(widths) - 1
		widths[last] = max(10, widths[last]-over)
	}
}
