package ui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/lipgloss"
)

// targetColumn is where the outcome marker of a step line starts
const targetColumn = 52

// StepStatus is the state of one search target in a sweep
type StepStatus int

const (
	StepPending StepStatus = iota
	StepSearching
	StepAnswered // at least one response arrived
	StepSilent   // the window closed without a response
	StepFailed
)

func (s StepStatus) finished() bool {
	return s >= StepAnswered
}

// Step is one search target
type Step struct {
	Number int
	Target string
	Status StepStatus
	Found  int   // responses before de-duplication
	Err    error // set when Status is StepFailed
}

// Note summarises the outcome of a finished step
func (s Step) Note() string {
	switch s.Status {
	case StepAnswered:
		return responseCount(s.Found)
	case StepSilent:
		return "no answer"
	case StepFailed:
		if s.Err == nil {
			return "failed"
		}
		if s.Found > 0 {
			return fmt.Sprintf("%s, then %v", responseCount(s.Found), s.Err)
		}
		return s.Err.Error()
	default:
		return ""
	}
}

// Progress tracks a sweep across its search targets
type Progress struct {
	Steps     []Step
	Current   int // 1-based number of the target being searched, 0 before the first
	Responses int // total across finished targets
	Width     int
	bar       progress.Model
}

// NewProgress creates a tracker with one pending step per target
func NewProgress(targets []string) *Progress {
	steps := make([]Step, len(targets))
	for i, target := range targets {
		steps[i] = Step{Number: i + 1, Target: target}
	}
	p := &Progress{Steps: steps}
	return p.SetWidth(GetTerminalWidth())
}

// SetWidth sizes the bar to the terminal, leaving room for the counters
func (p *Progress) SetWidth(width int) *Progress {
	p.Width = width
	p.bar = progress.New(
		progress.WithDefaultGradient(),
		progress.WithWidth(min(max(width-36, 20), 50)),
	)
	return p
}

func (p *Progress) step(n int) (*Step, bool) {
	if n < 1 || n > len(p.Steps) {
		return nil, false
	}
	return &p.Steps[n-1], true
}

// Start marks target n as being searched
func (p *Progress) Start(n int) {
	s, ok := p.step(n)
	if !ok || s.Status.finished() {
		return
	}
	s.Status = StepSearching
	p.Current = n
}

// Finish records the outcome of target n and reports whether it changed
// anything; a target finishes once. Responses collected before an error
// still count.
func (p *Progress) Finish(n, found int, err error) bool {
	s, ok := p.step(n)
	if !ok || s.Status.finished() {
		return false
	}
	s.Found = found
	s.Err = err
	switch {
	case err != nil:
		s.Status = StepFailed
	case found > 0:
		s.Status = StepAnswered
	default:
		s.Status = StepSilent
	}
	p.Responses += found
	return true
}

// Finished counts targets whose search has ended, failed ones included
func (p *Progress) Finished() int {
	n := 0
	for _, s := range p.Steps {
		if s.Status.finished() {
			n++
		}
	}
	return n
}

// Percent is the finished share of targets, 0.0 to 1.0
func (p *Progress) Percent() float64 {
	if len(p.Steps) == 0 {
		return 0
	}
	return float64(p.Finished()) / float64(len(p.Steps))
}

// Render returns the bar followed by one line per target
func (p *Progress) Render() string {
	lines := make([]string, 0, len(p.Steps)+2)
	lines = append(lines, p.renderBar(), "")
	for _, s := range p.Steps {
		lines = append(lines, p.renderStepLine(s))
	}
	return strings.Join(lines, "\n")
}

func (p *Progress) String() string {
	return p.Render()
}

func (p *Progress) renderBar() string {
	counts := fmt.Sprintf("%3.0f%%  [%d/%d]  %s", p.Percent()*100, p.Finished(), len(p.Steps), responseCount(p.Responses))
	return lipgloss.NewStyle().
		PaddingLeft(2).
		Render(p.bar.ViewAs(p.Percent()) + "  " + counts)
}

func responseCount(n int) string {
	if n == 1 {
		return "1 response"
	}
	return fmt.Sprintf("%d responses", n)
}

func (p *Progress) renderStepLine(s Step) string {
	var marker string
	var style lipgloss.Style
	switch s.Status {
	case StepSearching:
		marker, style = StepMarkerRunning, StepRunningStyle
	case StepAnswered:
		marker, style = StepMarkerComplete, StepCompleteStyle
	case StepSilent:
		marker, style = StepMarkerSkipped, StepPendingStyle
	case StepFailed:
		marker, style = FailureMarker, ErrorTitleStyle
	default:
		marker, style = StepMarkerPending, StepPendingStyle
	}

	prefix := fmt.Sprintf("  [%d/%d] ", s.Number, len(p.Steps))
	target := s.Target
	if room := targetColumn - lipgloss.Width(prefix) - 1; lipgloss.Width(target) > room {
		target = truncate(target, room)
	}

	var b strings.Builder
	b.WriteString(prefix)
	b.WriteString(style.Render(target))
	b.WriteString(strings.Repeat(" ", max(targetColumn-lipgloss.Width(prefix)-lipgloss.Width(target), 1)))
	b.WriteString(style.Render(marker))
	if note := s.Note(); note != "" {
		b.WriteString("  ")
		b.WriteString(StepNoteStyle.Render("(" + note + ")"))
	}
	return b.String()
}

// StepCallback reports that target step finished with found responses, or
// with err when its search failed.
type StepCallback func(step, found int, err error)
