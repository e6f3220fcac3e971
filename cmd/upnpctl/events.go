package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/muurk/upnpctl/internal/gena"
	"github.com/muurk/upnpctl/internal/logging"
	"github.com/muurk/upnpctl/internal/metrics"
	"github.com/muurk/upnpctl/internal/protocol"
	"github.com/muurk/upnpctl/internal/tui"
	"github.com/muurk/upnpctl/internal/ui"
)

// unsubscribeTimeout bounds the UNSUBSCRIBE sent on the way out
const unsubscribeTimeout = 5 * time.Second

// Event command flags
var (
	subTTL        uint32
	callbackHosts []string
	callbackPort  int
	captureDir    string
	runDuration   time.Duration
)

func init() {
	rootCmd.AddCommand(subscribeCmd)
	rootCmd.AddCommand(listenCmd)
	rootCmd.AddCommand(monitorCmd)

	subscribeCmd.Flags().Uint32Var(&subTTL, "ttl", 0, "Requested lease in seconds, 0 asks for infinite (default from config, 1800)")
	subscribeCmd.Flags().StringSliceVar(&callbackHosts, "callback-host", nil, "Address the device should call back (repeatable, default: local IPv4 addresses)")
	subscribeCmd.Flags().IntVar(&callbackPort, "port", 0, "Callback port (default from config, 8008)")
	subscribeCmd.Flags().StringVar(&captureDir, "capture-dir", "", "Write received events to a JSON Lines file in this directory")
	subscribeCmd.Flags().DurationVar(&runDuration, "duration", 0, "Stop after this long (default: until Ctrl+C)")

	listenCmd.Flags().DurationVar(&runDuration, "duration", 0, "Stop after this long (default: until Ctrl+C)")
}

// subscribeCmd subscribes to a service's events and prints them
var subscribeCmd = &cobra.Command{
	Use:   "subscribe <event-sub-url>",
	Short: "Subscribe to a service's events",
	Long: `Start a callback server, subscribe to the service's eventing URL and print
every event the device sends. The lease is renewed before it expires; if a
renewal is rejected a fresh subscription is made. Ctrl+C unsubscribes.

While running, the callback server also serves:
  GET /events    websocket stream of events as JSON
  GET /metrics   Prometheus metrics
  GET /healthz   liveness check`,
	Example: `  upnpctl subscribe http://192.168.1.1:5000/evt/IPConn
  upnpctl subscribe http://192.168.1.1:5000/evt/IPConn --callback-host 192.168.1.20 --port 9000
  upnpctl subscribe http://192.168.1.1:5000/evt/IPConn --capture-dir ./captures --format json`,
	Args: cobra.ExactArgs(1),
	RunE: runSubscribe,
}

func runSubscribe(cmd *cobra.Command, args []string) error {
	ctx, stop := signalContext(cmd)
	defer stop()
	if runDuration > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, runDuration)
		defer cancel()
	}

	eventSubURL := args[0]
	ttl := settings.Subscription.TTL
	if cmd.Flags().Changed("ttl") {
		ttl = subTTL
	}
	port := settings.Callback.Port
	if cmd.Flags().Changed("port") {
		port = callbackPort
	}
	hosts := settings.Callback.Hosts
	if len(callbackHosts) > 0 {
		hosts = callbackHosts
	}

	m := metrics.New()
	out := newEventPrinter(cmd.OutOrStdout())

	receiver := gena.NewReceiver(gena.ReceiverConfig{
		Port:       port,
		Handler:    out.print,
		Metrics:    m,
		CaptureDir: captureDir,
	})
	if err := receiver.Start(); err != nil {
		return fail(cmd, "Callback server failed", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := receiver.Shutdown(shutdownCtx); err != nil {
			logging.Warn("Receiver shutdown failed", zap.Error(err))
		}
	}()

	// the callback URL must carry the port actually bound
	cfg := settings.ControlPointConfig()
	cfg.Metrics = m
	cfg.CallbackPort = receiver.Port()
	cp := newControlPointFrom(cfg)

	sub, err := cp.SubscribeEvents(ctx, eventSubURL, hosts, ttl)
	if err != nil {
		return fail(cmd, "Subscribe failed", err)
	}

	if !jsonOutput() {
		p := ui.NewPrinter(cmd.OutOrStdout())
		p.PrintHeader("Event Subscription", "upnpctl subscribe", map[string]string{
			"Event URL": eventSubURL,
			"Callback":  receiver.Addr(),
		})
		p.PrintSuccess("Subscribed", subscriptionDetails(sub))
		p.Newline()
		p.Println(ui.StepNoteStyle.Render("  Waiting for events. Press Ctrl+C to unsubscribe."))
		p.Newline()
	}

	keeper := &leaseKeeper{
		margin: settings.Subscription.RenewMargin,
		renew: func(ctx context.Context, s gena.Subscription) (gena.Subscription, error) {
			return cp.RenewSubscription(ctx, s, ttl)
		},
		resubscribe: func(ctx context.Context) (gena.Subscription, error) {
			return cp.SubscribeEvents(ctx, eventSubURL, hosts, ttl)
		},
		onChange: func(s gena.Subscription, how string) {
			logging.LogSubscription(how, s.SID, s.LeaseSeconds)
			out.note(fmt.Sprintf("%s %s (lease %s)", how, s.SID, leaseString(s)))
		},
	}
	sub, keepErr := keeper.run(ctx, sub)

	unsubCtx, cancel := context.WithTimeout(context.Background(), unsubscribeTimeout)
	defer cancel()
	if err := cp.Unsubscribe(unsubCtx, sub); err != nil {
		logging.Warn("Unsubscribe failed", zap.String("sid", sub.SID), zap.Error(err))
		out.note("unsubscribe failed: " + err.Error())
	} else {
		out.note("unsubscribed " + sub.SID)
	}

	if keepErr != nil {
		return fail(cmd, "Subscription lost", keepErr)
	}
	return nil
}

func subscriptionDetails(sub gena.Subscription) map[string]string {
	details := map[string]string{
		"SID":   sub.SID,
		"Lease": leaseString(sub),
	}
	if !sub.Infinite() {
		details["Expires"] = sub.ExpiresAt().Format(time.TimeOnly)
	}
	return details
}

func leaseString(sub gena.Subscription) string {
	if sub.Infinite() {
		return "infinite"
	}
	return sub.Lease().String()
}

// leaseKeeper renews a subscription margin before each expiry until ctx is
// done. A rejected renewal is followed by one fresh subscription attempt.
type leaseKeeper struct {
	margin      time.Duration
	renew       func(context.Context, gena.Subscription) (gena.Subscription, error)
	resubscribe func(context.Context) (gena.Subscription, error)
	onChange    func(sub gena.Subscription, how string)
}

// run returns the subscription current when ctx ended, or an error when
// the lease could not be kept.
func (k *leaseKeeper) run(ctx context.Context, sub gena.Subscription) (gena.Subscription, error) {
	for {
		if sub.Infinite() {
			<-ctx.Done()
			return sub, nil
		}

		timer := time.NewTimer(max(time.Until(sub.RenewBy(k.margin)), 0))
		select {
		case <-ctx.Done():
			timer.Stop()
			return sub, nil
		case <-timer.C:
		}

		next, err := k.renew(ctx, sub)
		if err == nil {
			sub = next
			k.changed(sub, "renewed")
			continue
		}
		if ctx.Err() != nil {
			return sub, nil
		}
		logging.Warn("Renewal rejected, subscribing again", zap.String("sid", sub.SID), zap.Error(err))

		next, err = k.resubscribe(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return sub, nil
			}
			return sub, err
		}
		sub = next
		k.changed(sub, "resubscribed")
	}
}

func (k *leaseKeeper) changed(sub gena.Subscription, how string) {
	if k.onChange != nil {
		k.onChange(sub, how)
	}
}

// eventPrinter serialises output from concurrent receiver goroutines.
type eventPrinter struct {
	mu  sync.Mutex
	out io.Writer
	enc *json.Encoder
}

func newEventPrinter(w io.Writer) *eventPrinter {
	return &eventPrinter{out: w, enc: json.NewEncoder(w)}
}

// print writes one event: a JSON object per line in json mode, otherwise a
// timestamped block of name = value lines.
func (p *eventPrinter) print(ev gena.Event) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if jsonOutput() {
		_ = p.enc.Encode(ev)
		return
	}

	names := make([]string, 0, len(ev.Properties))
	width := 0
	for name := range ev.Properties {
		names = append(names, name)
		width = max(width, len(name))
	}
	sort.Strings(names)

	head := fmt.Sprintf("%s  SEQ %d  from %s", ev.ReceivedAt.Format(time.TimeOnly), ev.Seq, ev.RemoteAddr)
	_, _ = fmt.Fprintln(p.out, ui.HeaderParamKeyStyle.Render(head))
	for _, name := range names {
		_, _ = fmt.Fprintf(p.out, "    %-*s = %s\n", width, name, ev.Properties[name])
	}
}

// note writes a status line; json mode keeps stdout to events only
func (p *eventPrinter) note(line string) {
	if jsonOutput() {
		logging.Info(line)
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	_, _ = fmt.Fprintln(p.out, ui.StepNoteStyle.Render("  "+line))
}

// listenCmd prints presence notifications
var listenCmd = &cobra.Command{
	Use:   "listen",
	Short: "Print SSDP presence notifications",
	Long: `Join the SSDP multicast group and print every ssdp:alive, ssdp:update
and ssdp:byebye notification. Malformed datagrams are dropped silently; run
with --log-level debug to see them.`,
	Example: `  upnpctl listen
  upnpctl listen --duration 1m --format json`,
	Args: cobra.NoArgs,
	RunE: runListen,
}

// presenceRecord is the json form of a presence event
type presenceRecord struct {
	Kind       string                 `json:"nts"`
	Device     *protocol.Announcement `json:"device,omitempty"`
	USN        string                 `json:"usn,omitempty"`
	NT         string                 `json:"nt,omitempty"`
	ReceivedAt time.Time              `json:"received_at"`
}

func runListen(cmd *cobra.Command, args []string) error {
	ctx, stop := signalContext(cmd)
	defer stop()
	if runDuration > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, runDuration)
		defer cancel()
	}

	listener, err := newControlPoint(nil).ListenNotifications()
	if err != nil {
		return fail(cmd, "Cannot join the SSDP group", err)
	}
	defer listener.Close()

	w := cmd.OutOrStdout()
	if !jsonOutput() {
		p := ui.NewPrinter(w)
		p.PrintHeader("SSDP Notifications", "upnpctl listen", map[string]string{
			"Group": listener.Addr().String(),
		})
	}

	enc := json.NewEncoder(w)
	for {
		ev, err := listener.RecvContext(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fail(cmd, "Listener failed", err)
		}

		now := time.Now()
		if jsonOutput() {
			rec := presenceRecord{Kind: ev.Kind.String(), ReceivedAt: now}
			if usn, nt, ok := ev.ByeBye(); ok {
				rec.USN, rec.NT = usn, nt
			} else {
				dev := ev.Device
				rec.Device = &dev
			}
			if err := enc.Encode(rec); err != nil {
				return err
			}
			continue
		}
		_, _ = fmt.Fprintf(w, "%s  %s\n", now.Format(time.TimeOnly), presenceLine(ev))
	}
}

func presenceLine(ev protocol.PresenceEvent) string {
	kind := strings.TrimPrefix(ev.Kind.String(), "ssdp:")
	style := ui.StepCompleteStyle
	switch ev.Kind {
	case protocol.PresenceByeBye:
		return ui.ErrorTitleStyle.Render(fmt.Sprintf("%-7s", kind)) + " " + ev.USN
	case protocol.PresenceUpdate:
		style = ui.StepRunningStyle
	}
	line := style.Render(fmt.Sprintf("%-7s", kind)) + " " + ev.Device.USN + "  " + ev.Device.Location
	if age := ev.Device.MaxAge(); age > 0 {
		line += ui.StepNoteStyle.Render("  (max-age " + strconv.Itoa(age) + "s)")
	}
	return line
}

// monitorCmd runs the interactive monitor
var monitorCmd = &cobra.Command{
	Use:   "monitor",
	Short: "Watch devices live in an interactive screen",
	Long: `Open a full-screen monitor that searches for devices, then tracks them as
they announce themselves, update or leave. Select a device and press enter
to fetch its description.`,
	Args: cobra.NoArgs,
	RunE: runMonitor,
}

func runMonitor(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	cp := newControlPoint(nil)

	var events <-chan protocol.PresenceEvent
	listener, err := cp.ListenNotifications()
	if err != nil {
		// searches still work without the multicast group
		logging.Warn("Live updates disabled", zap.Error(err))
	} else {
		events = tui.PresenceFeed(ctx, listener)
		defer func() {
			cancel()
			_ = listener.Close()
		}()
	}

	model := tui.NewMonitorModel(ctx, tui.Source{
		Search:   cp.DiscoverDevices,
		Events:   events,
		Describe: cp.GetDeviceDescription,
	})
	_, err = tea.NewProgram(model, tea.WithAltScreen(), tea.WithContext(ctx)).Run()
	if err != nil && ctx.Err() == nil {
		return fmt.Errorf("monitor failed: %w", err)
	}
	return nil
}
