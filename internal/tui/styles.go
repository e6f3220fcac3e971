package tui

import (
	"github.com/charmbracelet/lipgloss"

	"github.com/muurk/upnpctl/internal/version"
)

// Application branding constants
const (
	AppName   = "UPNPCTL MONITOR"
	GitHubURL = "github.com/muurk/upnpctl"
)

// Layout constants for responsive terminal width
const (
	MinTerminalWidth = 72
	MaxContentWidth  = 120
	DefaultWidth     = 80
	DefaultHeight    = 24
)

// Color palette
var (
	PrimaryColor   = lipgloss.Color("#7D56F4") // Purple
	SecondaryColor = lipgloss.Color("#43BF6D") // Green
	WarningColor   = lipgloss.Color("#FFA500") // Orange
	ErrorColor     = lipgloss.Color("#FF0000") // Red

	TextColor   = lipgloss.Color("#FFFFFF")
	SubtleColor = lipgloss.Color("#626262")
	BorderColor = lipgloss.Color("#7D56F4")
)

var (
	TitleStyle = lipgloss.NewStyle().
			Foreground(PrimaryColor).
			Bold(true)

	SubtitleStyle = lipgloss.NewStyle().
			Foreground(SubtleColor).
			Italic(true)

	SpinnerStyle = lipgloss.NewStyle().
			Foreground(PrimaryColor)

	ErrorStyle = lipgloss.NewStyle().
			Foreground(ErrorColor).
			Bold(true)

	// status badges in the device list and event log
	AliveStyle = lipgloss.NewStyle().
			Foreground(SecondaryColor).
			Bold(true)

	UpdateStyle = lipgloss.NewStyle().
			Foreground(WarningColor).
			Bold(true)

	GoneStyle = lipgloss.NewStyle().
			Foreground(SubtleColor).
			Strikethrough(true)

	DetailKeyStyle = lipgloss.NewStyle().
			Foreground(SubtleColor).
			Width(14)

	DetailBoxStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(BorderColor).
			Padding(0, 1)

	LogStyle = lipgloss.NewStyle().
			Foreground(SubtleColor)
)

// RenderError renders an error message
func RenderError(text string) string {
	return ErrorStyle.Render("✗ " + text)
}

// BuildHeaderContent creates header content with app name, version and URL
func BuildHeaderContent() string {
	left := lipgloss.NewStyle().
		Foreground(TextColor).
		Bold(true).
		Render(AppName + " " + version.Version)

	right := lipgloss.NewStyle().
		Foreground(SubtleColor).
		Render(GitHubURL)

	return lipgloss.JoinHorizontal(lipgloss.Top, left, "  ", right)
}

// BuildFooterContent creates footer content with help text
func BuildFooterContent(helpText string) string {
	return lipgloss.NewStyle().
		Foreground(SubtleColor).
		Render(helpText)
}

// RenderApplicationContainer wraps screen content in the full-screen frame:
// header on top, content, footer pinned to the bottom, and an outer border.
func RenderApplicationContainer(content, footerText string, terminalWidth, terminalHeight int) string {
	if terminalWidth <= 0 {
		terminalWidth = DefaultWidth
	}
	if terminalHeight <= 0 {
		terminalHeight = DefaultHeight
	}

	headerStyle := lipgloss.NewStyle().
		BorderStyle(lipgloss.Border{Bottom: "─"}).
		BorderForeground(BorderColor).
		Width(terminalWidth-4).
		Padding(0, 1)

	footerStyle := lipgloss.NewStyle().
		BorderStyle(lipgloss.Border{Top: "─"}).
		BorderForeground(BorderColor).
		Width(terminalWidth-4).
		Padding(0, 1)

	contentStyle := lipgloss.NewStyle().
		Width(terminalWidth - 4)

	inner := lipgloss.JoinVertical(
		lipgloss.Left,
		headerStyle.Render(BuildHeaderContent()),
		contentStyle.Render(content),
		footerStyle.Render(BuildFooterContent(footerText)),
	)

	bordered := lipgloss.NewStyle().
		Border(lipgloss.NormalBorder()).
		BorderForeground(BorderColor).
		Width(terminalWidth - 2).
		Height(terminalHeight - 2).
		AlignVertical(lipgloss.Top).
		Render(inner)

	return lipgloss.Place(terminalWidth, terminalHeight, lipgloss.Left, lipgloss.Top, bordered)
}
