package ui

import (
	"sort"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// Header is the banner printed at the start of a command.
type Header struct {
	Title   string            // e.g., "SSDP DISCOVERY"
	Command string            // e.g., "upnpctl discover"
	Params  map[string]string // e.g., {"Target": "ssdp:all", "MX": "3"}
	Width   int
}

// NewHeader creates a new header sized to the current terminal
func NewHeader(title, command string, params map[string]string) *Header {
	return &Header{
		Title:   title,
		Command: command,
		Params:  params,
		Width:   GetTerminalWidth(),
	}
}

// SetWidth sets the terminal width for responsive rendering
func (h *Header) SetWidth(width int) *Header {
	h.Width = width
	return h
}

// Render returns the styled header as a string. Parameters are listed in
// key order so repeated runs print identically.
func (h *Header) Render() string {
	width := h.Width
	if width < MinTerminalWidth {
		width = MinTerminalWidth
	}

	titleLine := HeaderTitleStyle.Render(strings.ToUpper(h.Title))
	commandLine := HeaderCommandStyle.Render(h.Command)
	content := lipgloss.JoinVertical(lipgloss.Left, titleLine, commandLine)

	if len(h.Params) > 0 {
		dividerWidth := width - 6
		if dividerWidth < 10 {
			dividerWidth = 10
		}
		divider := "  " + RenderHorizontalDivider(dividerWidth, "─")

		keys := sortedKeys(h.Params)
		paramLines := make([]string, 0, len(keys))
		for _, key := range keys {
			keyStyled := HeaderParamKeyStyle.Render(key + ":")
			paramLines = append(paramLines, keyStyled+" "+HeaderParamValueStyle.Render(h.Params[key]))
		}
		content = lipgloss.JoinVertical(lipgloss.Left, content, divider, strings.Join(paramLines, "\n"))
	}

	return HeaderBorderStyle(width).Render(content)
}

// String implements fmt.Stringer
func (h *Header) String() string {
	return h.Render()
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
