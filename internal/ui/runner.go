package ui

import (
	"context"
	"io"
	"os"
	"strconv"
	"time"
)

// RunnerConfig holds configuration for a multi-step command
type RunnerConfig struct {
	Title     string            // e.g., "SSDP Sweep"
	Command   string            // e.g., "upnpctl sweep"
	Params    map[string]string // shown in the header
	StepNames []string          // one entry per step
	Output    io.Writer         // default: os.Stdout

	// Troubleshooting returns tips for a failed run. Optional.
	Troubleshooting func(error) []string
}

// Runner prints header, step progress and a result box for a command made
// of several independent steps.
type Runner struct {
	config    RunnerConfig
	printer   *Printer
	progress  *Progress
	startTime time.Time
}

// Operation is the work a Runner executes. It reports progress through
// onStep and returns the details for the result box.
type Operation func(onStep StepCallback) (map[string]string, error)

// NewRunner creates a new runner
func NewRunner(config RunnerConfig) *Runner {
	if config.Output == nil {
		config.Output = os.Stdout
	}
	printer := NewPrinter(config.Output)

	var progress *Progress
	if len(config.StepNames) > 0 {
		progress = NewProgress(config.StepNames).SetWidth(printer.Width())
	}

	return &Runner{
		config:   config,
		printer:  printer,
		progress: progress,
	}
}

// Progress returns the runner's progress tracker, nil when there are no steps
func (r *Runner) Progress() *Progress {
	return r.progress
}

// Run prints the header, executes op and prints the result box. The first
// step starts with op; each reported step starts the next one. The duration,
// and the response total when there are steps, are added to the details on
// success.
func (r *Runner) Run(ctx context.Context, op Operation) (map[string]string, error) {
	r.startTime = time.Now()
	r.printer.PrintHeader(r.config.Title, r.config.Command, r.config.Params)
	r.start(1)

	details, err := op(r.onStep)
	if err == nil {
		err = ctx.Err()
	}
	duration := time.Since(r.startTime).Round(time.Millisecond)

	r.printer.Newline()
	if err != nil {
		var tips []string
		if r.config.Troubleshooting != nil {
			tips = r.config.Troubleshooting(err)
		}
		r.printer.PrintError(r.config.Title+" failed", err, tips)
		return details, err
	}

	if details == nil {
		details = make(map[string]string)
	}
	details["Duration"] = duration.String()
	if r.progress != nil {
		details["Responses"] = strconv.Itoa(r.progress.Responses)
	}
	r.printer.PrintSuccess(r.config.Title+" complete", details)
	return details, nil
}

func (r *Runner) start(step int) {
	if r.progress == nil || step > len(r.progress.Steps) || r.progress.Steps[step-1].Status != StepPending {
		return
	}
	r.progress.Start(step)
	// overwritten when the step finishes
	r.printer.Print(r.progress.renderStepLine(r.progress.Steps[step-1]) + "\r")
}

func (r *Runner) onStep(step, found int, err error) {
	if r.progress == nil || !r.progress.Finish(step, found, err) {
		return
	}
	r.printer.Println(r.progress.renderStepLine(r.progress.Steps[step-1]))
	r.start(step + 1)
}
