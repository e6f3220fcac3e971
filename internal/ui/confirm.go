package ui

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// Confirm displays a warning box and asks the user to type phrase to
// proceed. Returns true only on an exact match. EOF or a read error counts
// as a refusal.
func Confirm(in io.Reader, out io.Writer, title string, warnings []string, phrase string) bool {
	p := NewPrinter(out)
	width := p.Width()

	lines := []string{
		"",
		WarningTitleStyle.Render(fmt.Sprintf("   %s  WARNING  ─  %s", WarningMarker, title)),
		"",
	}
	bullet := lipgloss.NewStyle().Foreground(TextColor)
	for _, w := range warnings {
		lines = append(lines, bullet.Render("   • "+w))
	}
	lines = append(lines, "")

	p.Println(boxStyle(WarningColor, width).Render(strings.Join(lines, "\n")))
	p.Newline()
	p.Print(WarningTitleStyle.Render(fmt.Sprintf("To proceed, type %q and press Enter: ", phrase)))

	input, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && input == "" {
		p.Newline()
		return false
	}
	p.Newline()
	if strings.TrimSpace(input) == phrase {
		return true
	}

	p.Println(lipgloss.NewStyle().Foreground(MutedColor).Render("  Operation cancelled."))
	return false
}
