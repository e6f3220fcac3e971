package ui

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// Table renders rows as aligned columns. Cells wider than MaxCellWidth are
// truncated with an ellipsis.
type Table struct {
	Headers      []string
	Rows         [][]string
	MaxCellWidth int
}

// NewTable creates a table with the given column headers
func NewTable(headers ...string) *Table {
	return &Table{Headers: headers, MaxCellWidth: 48}
}

// AddRow appends a row. Missing cells render empty; extra cells are ignored.
func (t *Table) AddRow(cells ...string) *Table {
	row := make([]string, len(t.Headers))
	copy(row, cells)
	t.Rows = append(t.Rows, row)
	return t
}

// Len returns the number of rows
func (t *Table) Len() int {
	return len(t.Rows)
}

// Render returns the table as a string
func (t *Table) Render() string {
	widths := make([]int, len(t.Headers))
	for i, h := range t.Headers {
		widths[i] = lipgloss.Width(h)
	}
	for _, row := range t.Rows {
		for i, cell := range row {
			if w := lipgloss.Width(t.truncate(cell)); w > widths[i] {
				widths[i] = w
			}
		}
	}

	var b strings.Builder
	b.WriteString(t.renderRow(t.Headers, widths, TableHeaderStyle))
	for _, row := range t.Rows {
		b.WriteString("\n")
		b.WriteString(t.renderRow(row, widths, TableCellStyle))
	}
	return b.String()
}

func (t *Table) renderRow(cells []string, widths []int, style lipgloss.Style) string {
	parts := make([]string, len(cells))
	for i, cell := range cells {
		cell = t.truncate(cell)
		pad := widths[i] - lipgloss.Width(cell)
		parts[i] = style.Render(cell) + strings.Repeat(" ", pad)
	}
	return "  " + strings.TrimRight(strings.Join(parts, "  "), " ")
}

func (t *Table) truncate(s string) string {
	return truncate(s, t.MaxCellWidth)
}

// truncate shortens s to width runes, ending in an ellipsis. Widths below 2
// leave s unchanged.
func truncate(s string, width int) string {
	if width <= 1 {
		return s
	}
	r := []rune(s)
	if len(r) <= width {
		return s
	}
	return string(r[:width-1]) + "…"
}

// String implements fmt.Stringer
func (t *Table) String() string {
	return t.Render()
}
