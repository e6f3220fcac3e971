package ui

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// Printer writes UI components to a writer. Commands hold one Printer and
// route all styled output through it.
type Printer struct {
	out   io.Writer
	width int
}

// NewPrinter creates a new Printer that writes to the given writer.
// If w is nil, os.Stdout is used.
func NewPrinter(w io.Writer) *Printer {
	if w == nil {
		w = os.Stdout
	}
	return &Printer{
		out:   w,
		width: GetTerminalWidth(),
	}
}

// Writer returns the underlying writer
func (p *Printer) Writer() io.Writer {
	return p.out
}

// Width returns the current terminal width used by this printer
func (p *Printer) Width() int {
	return p.width
}

// SetWidth overrides the detected terminal width
func (p *Printer) SetWidth(width int) *Printer {
	p.width = width
	return p
}

// Print writes content to the output
func (p *Printer) Print(content string) {
	_, _ = fmt.Fprint(p.out, content)
}

// Println writes content with a newline
func (p *Printer) Println(content string) {
	_, _ = fmt.Fprintln(p.out, content)
}

// Printf writes formatted content
func (p *Printer) Printf(format string, args ...any) {
	_, _ = fmt.Fprintf(p.out, format, args...)
}

// Newline prints an empty line
func (p *Printer) Newline() {
	_, _ = fmt.Fprintln(p.out)
}

// PrintHeader prints a command header box
func (p *Printer) PrintHeader(title, command string, params map[string]string) {
	p.Println(NewHeader(title, command, params).SetWidth(p.width).Render())
	p.Newline()
}

// PrintSuccess prints a success result box
func (p *Printer) PrintSuccess(title string, details map[string]string) {
	p.Println(NewSuccessResult(title, details).SetWidth(p.width).Render())
}

// PrintWarning prints a warning result box
func (p *Printer) PrintWarning(title string, details map[string]string) {
	p.Println(NewWarningResult(title, details).SetWidth(p.width).Render())
}

// PrintError prints an error result box with troubleshooting tips
func (p *Printer) PrintError(title string, err error, troubleshooting []string) {
	p.Println(NewFailureResult(title, err, troubleshooting).SetWidth(p.width).Render())
}

// PrintTable prints a table, or a muted placeholder when it has no rows
func (p *Printer) PrintTable(t *Table, empty string) {
	if t.Len() == 0 {
		p.Println(lipgloss.NewStyle().Foreground(MutedColor).PaddingLeft(2).Render(empty))
		return
	}
	p.Println(t.Render())
}

// PrintSection prints a bold section title followed by its body
func (p *Printer) PrintSection(title, body string) {
	p.Println(TableHeaderStyle.PaddingLeft(2).Render(title))
	p.Println(body)
	p.Newline()
}

// PrintRaw prints a raw payload box
func (p *Printer) PrintRaw(title, content string) {
	p.Println(NewRawOutput(title, content).SetWidth(p.width).Render())
}

// PrintPleaseWait prints a styled notice for an operation that blocks for a
// known window, e.g. PrintPleaseWait("Searching for devices", "5s").
func (p *Printer) PrintPleaseWait(message, durationHint string) {
	style := lipgloss.NewStyle().
		Foreground(PrimaryColor).
		Bold(true).
		PaddingLeft(2)
	hintStyle := lipgloss.NewStyle().
		Foreground(MutedColor).
		Italic(true)

	line := style.Render("⏳ " + message)
	if durationHint != "" {
		line += " " + hintStyle.Render("("+durationHint+")")
	}
	p.Println(line)
	p.Newline()
}

// TipsFromHint turns a multi-line troubleshooting hint into bullet items,
// dropping the "Troubleshooting:" label and bullet prefixes.
func TipsFromHint(hint string) []string {
	var tips []string
	for _, line := range strings.Split(hint, "\n") {
		line = strings.TrimSpace(line)
		line = strings.TrimSpace(strings.TrimPrefix(line, "•"))
		if line == "" || line == "Troubleshooting:" {
			continue
		}
		tips = append(tips, line)
	}
	return tips
}
