package ui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// RawOutput is a box for a raw payload, such as a SOAP response body or a
// device description document. Used when --raw is passed.
type RawOutput struct {
	Title    string
	Lines    []string
	Width    int
	MaxLines int // 0 = unlimited
}

// NewRawOutput creates a raw output box
func NewRawOutput(title, content string) *RawOutput {
	return &RawOutput{
		Title: title,
		Lines: strings.Split(strings.TrimRight(content, "\n"), "\n"),
		Width: GetTerminalWidth(),
	}
}

// SetWidth sets the terminal width for responsive rendering
func (o *RawOutput) SetWidth(width int) *RawOutput {
	o.Width = width
	return o
}

// SetMaxLines limits the number of lines displayed
func (o *RawOutput) SetMaxLines(max int) *RawOutput {
	o.MaxLines = max
	return o
}

// Render returns the styled box as a string
func (o *RawOutput) Render() string {
	width := o.Width
	if width < MinTerminalWidth {
		width = MinTerminalWidth
	}

	lines := o.Lines
	if o.MaxLines > 0 && len(lines) > o.MaxLines {
		hidden := len(lines) - o.MaxLines
		lines = append(lines[:o.MaxLines:o.MaxLines], fmt.Sprintf("... (%d more lines)", hidden))
	}

	content := lipgloss.JoinVertical(lipgloss.Left,
		RawTitleStyle.Render(o.Title),
		RawContentStyle.Render(strings.Join(lines, "\n")),
	)

	return lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(MutedColor).
		Width(width-4).
		Padding(0, 1).
		Render(content)
}

// String implements fmt.Stringer
func (o *RawOutput) String() string {
	return o.Render()
}
