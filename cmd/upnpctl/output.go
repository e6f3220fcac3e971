package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/muurk/upnpctl/internal/controlpoint"
	"github.com/muurk/upnpctl/internal/logging"
	"github.com/muurk/upnpctl/internal/metrics"
	"github.com/muurk/upnpctl/internal/protocol"
	"github.com/muurk/upnpctl/internal/transport"
	"github.com/muurk/upnpctl/internal/ui"
)

// reportedError marks an error whose failure box was already printed, so
// main exits non-zero without printing it again.
type reportedError struct {
	err error
}

func (e *reportedError) Error() string { return e.err.Error() }
func (e *reportedError) Unwrap() error { return e.err }

func jsonOutput() bool {
	return outputFormat == "json"
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// fail reports err. In detailed mode it prints a failure box with
// troubleshooting tips; in json mode the error is left for main.
func fail(cmd *cobra.Command, title string, err error) error {
	if jsonOutput() {
		return err
	}
	p := ui.NewPrinter(cmd.OutOrStdout())
	p.PrintError(title, err, troubleshooting(err))
	return &reportedError{err: err}
}

func troubleshooting(err error) []string {
	return ui.TipsFromHint(transport.TroubleshootingHint(err))
}

// newControlPoint builds a control point from the effective settings.
func newControlPoint(m *metrics.Metrics) *controlpoint.ControlPoint {
	cfg := settings.ControlPointConfig()
	cfg.Metrics = m
	return newControlPointFrom(cfg)
}

func newControlPointFrom(cfg controlpoint.Config) *controlpoint.ControlPoint {
	logging.Debug("Control point configured",
		zap.Duration("discovery_timeout", cfg.DiscoveryTimeout),
		zap.Int("mx", cfg.SearchMX),
		zap.String("interface", cfg.Interface),
		zap.Int("callback_port", cfg.CallbackPort),
	)
	return controlpoint.New(cfg)
}

// signalContext is cancelled on Ctrl+C or SIGTERM.
func signalContext(cmd *cobra.Command) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
}

// parseArguments turns name=value pairs into action arguments, keeping
// their command-line order.
func parseArguments(pairs []string) (protocol.Arguments, error) {
	args := make(protocol.Arguments, 0, len(pairs))
	seen := make(map[string]bool, len(pairs))
	for _, pair := range pairs {
		name, value, ok := strings.Cut(pair, "=")
		name = strings.TrimSpace(name)
		if !ok || name == "" {
			return nil, fmt.Errorf("invalid argument %q (expected name=value)", pair)
		}
		if seen[name] {
			return nil, fmt.Errorf("argument %q given more than once", name)
		}
		seen[name] = true
		args = append(args, protocol.Argument{Name: name, Value: value})
	}
	return args, nil
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

func announcementTable(devices []protocol.Announcement) *ui.Table {
	t := ui.NewTable("USN", "LOCATION", "SERVER")
	for _, d := range devices {
		t.AddRow(orDash(d.USN), orDash(d.Location), orDash(d.Server))
	}
	return t
}
