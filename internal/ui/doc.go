// Package ui provides terminal output components for the upnpctl CLI.
//
// Components are rendered with Lipgloss and follow a "print and move on"
// pattern: they format results for a human reader but never wait for input,
// with the exception of Confirm.
//
// # Components
//
//   - Header: command banner showing the operation and its parameters
//   - Progress: bar plus one line per search target with its response count
//   - Result: success, failure and warning boxes with key/value details
//   - Table: aligned columns for device and service listings
//   - RawOutput: boxed raw payloads (SOAP bodies, description XML) for --raw
//
// Runner ties them together for multi-step commands:
//
//	runner := ui.NewRunner(ui.RunnerConfig{
//	    Title:     "SSDP Sweep",
//	    Command:   "upnpctl sweep",
//	    StepNames: targets,
//	})
//	details, err := runner.Run(ctx, func(onStep ui.StepCallback) (map[string]string, error) {
//	    // ... search the first target ...
//	    onStep(1, 3, nil) // 3 responses; the second target starts
//	    return map[string]string{"Devices": "3"}, nil
//	})
//
// Logging is controlled separately through UPNPCTL_LOG_LEVEL and goes to
// stderr, so styled output on stdout stays clean.
package ui
