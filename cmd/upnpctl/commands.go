package main

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/muurk/upnpctl/internal/protocol"
	"github.com/muurk/upnpctl/internal/ssdp"
	"github.com/muurk/upnpctl/internal/ui"
)

// Command flags
var (
	sweepBudget time.Duration
	showRaw     bool
)

func init() {
	rootCmd.AddCommand(discoverCmd)
	rootCmd.AddCommand(searchCmd)
	rootCmd.AddCommand(sweepCmd)
	rootCmd.AddCommand(describeCmd)
	rootCmd.AddCommand(schemaCmd)
	rootCmd.AddCommand(invokeCmd)

	sweepCmd.Flags().DurationVar(&sweepBudget, "budget", 0, "Total time for the sweep, split across targets (default: --timeout)")
	describeCmd.Flags().BoolVar(&showRaw, "raw", false, "Also print the description document as served")
	invokeCmd.Flags().BoolVar(&showRaw, "raw", false, "Also print the SOAP response body")
}

// discoverCmd searches for every device
var discoverCmd = &cobra.Command{
	Use:   "discover",
	Short: "Discover UPnP devices on the network",
	Long: `Send an SSDP M-SEARCH for ssdp:all and list every device that answers
within the discovery window. Responses are de-duplicated by USN.`,
	Example: `  upnpctl discover
  upnpctl discover --timeout 10s --format json`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runSearch(cmd, protocol.SearchTargetAll)
	},
}

// searchCmd searches for one target
var searchCmd = &cobra.Command{
	Use:   "search <search-target>",
	Short: "Search for devices matching a search target",
	Long: `Send an SSDP M-SEARCH for a single search target, such as
upnp:rootdevice, a device or service URN, or uuid:<device-uuid>.`,
	Example: `  upnpctl search upnp:rootdevice
  upnpctl search urn:schemas-upnp-org:device:InternetGatewayDevice:1`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runSearch(cmd, args[0])
	},
}

func runSearch(cmd *cobra.Command, target string) error {
	ctx, stop := signalContext(cmd)
	defer stop()

	cp := newControlPoint(nil)
	p := ui.NewPrinter(cmd.OutOrStdout())
	if !jsonOutput() {
		p.PrintHeader("SSDP Search", "upnpctl "+cmd.Name(), map[string]string{
			"Target": target,
			"Window": settings.Discovery.Timeout.String(),
			"MX":     strconv.Itoa(settings.Discovery.MX),
		})
		p.PrintPleaseWait("Waiting for responses", settings.Discovery.Timeout.String())
	}

	devices, err := cp.SearchDevices(ctx, target)
	if err != nil {
		return fail(cmd, "Search failed", err)
	}

	if jsonOutput() {
		return printJSON(cmd.OutOrStdout(), devices)
	}
	p.PrintTable(announcementTable(devices), "No devices answered. Check that multicast traffic on UDP 1900 is allowed.")
	p.Newline()
	p.Printf("  %d device(s) found\n", len(devices))
	return nil
}

// sweepCmd searches several targets in turn
var sweepCmd = &cobra.Command{
	Use:   "sweep [search-target...]",
	Short: "Search several targets and merge the results",
	Long: `Search each target in turn with its own socket and merge the results.

Some devices only answer searches for their own type, so a sweep finds
devices that ssdp:all misses. Without arguments the targets come from
discovery.search_targets in the config file, or a built-in list of common
device types.`,
	Example: `  upnpctl sweep
  upnpctl sweep upnp:rootdevice urn:schemas-upnp-org:device:MediaRenderer:1 --budget 12s`,
	RunE: runSweep,
}

func runSweep(cmd *cobra.Command, args []string) error {
	ctx, stop := signalContext(cmd)
	defer stop()

	targets := args
	if len(targets) == 0 {
		targets = settings.Discovery.SearchTargets
	}
	if len(targets) == 0 {
		targets = ssdp.DefaultSweepTargets
	}
	budget := sweepBudget
	if budget <= 0 {
		budget = settings.Discovery.Timeout
	}

	cp := newControlPoint(nil)

	if jsonOutput() {
		devices, err := cp.SweepDevices(ctx, targets, budget, nil)
		if err != nil {
			return err
		}
		return printJSON(cmd.OutOrStdout(), devices)
	}

	var devices []protocol.Announcement
	runner := ui.NewRunner(ui.RunnerConfig{
		Title:           "SSDP Sweep",
		Command:         "upnpctl sweep",
		Params:          map[string]string{"Targets": strconv.Itoa(len(targets)), "Budget": budget.String()},
		StepNames:       targets,
		Output:          cmd.OutOrStdout(),
		Troubleshooting: troubleshooting,
	})

	_, err := runner.Run(ctx, func(onStep ui.StepCallback) (map[string]string, error) {
		var err error
		devices, err = cp.SweepDevices(ctx, targets, budget, func(sp ssdp.SweepProgress) {
			onStep(sp.Index+1, sp.Found, sp.Err)
		})
		if err != nil {
			return nil, err
		}
		return map[string]string{"Devices": strconv.Itoa(len(devices))}, nil
	})
	if err != nil {
		return &reportedError{err: err}
	}

	p := ui.NewPrinter(cmd.OutOrStdout())
	p.Newline()
	p.PrintTable(announcementTable(devices), "No devices answered any target.")
	return nil
}

// describeCmd fetches a device description
var describeCmd = &cobra.Command{
	Use:   "describe <location>",
	Short: "Fetch and print a device description",
	Long: `Fetch the device description at a LOCATION URL from discover, and print
the device identity, its services with resolved control and event URLs,
and any embedded devices.`,
	Example: `  upnpctl describe http://192.168.1.1:5000/rootDesc.xml
  upnpctl describe http://192.168.1.1:5000/rootDesc.xml --format json`,
	Args: cobra.ExactArgs(1),
	RunE: runDescribe,
}

func runDescribe(cmd *cobra.Command, args []string) error {
	ctx, stop := signalContext(cmd)
	defer stop()

	location := args[0]
	cp := newControlPoint(nil)

	desc, err := cp.GetDeviceDescription(ctx, location)
	if err != nil {
		return fail(cmd, "Describe failed", err)
	}
	if jsonOutput() {
		return printJSON(cmd.OutOrStdout(), desc)
	}

	p := ui.NewPrinter(cmd.OutOrStdout())
	p.PrintHeader("Device Description", "upnpctl describe", map[string]string{"Location": location})
	printDevice(p, desc, 0)

	if showRaw {
		raw, err := cp.GetServiceSchema(ctx, location, location)
		if err != nil {
			return fail(cmd, "Raw fetch failed", err)
		}
		p.PrintRaw("Description document", raw)
	}
	return nil
}

func printDevice(p *ui.Printer, d protocol.DeviceDescription, depth int) {
	details := map[string]string{
		"Type":         d.DeviceType,
		"UDN":          d.UDN,
		"Manufacturer": orDash(d.Manufacturer),
		"Model":        orDash(strings.TrimSpace(d.ModelName + " " + d.ModelNumber)),
	}
	if d.SerialNumber != "" {
		details["Serial"] = d.SerialNumber
	}
	if d.PresentationURL != "" {
		details["Presentation"] = d.PresentationURL
	}
	if d.URLBase != "" {
		details["URLBase"] = d.URLBase
	}

	name := orDash(d.FriendlyName)
	if depth > 0 {
		name = strings.Repeat("↳ ", depth) + name
	}
	p.PrintSuccess(name, details)

	services := ui.NewTable("SERVICE", "CONTROL", "EVENTS", "SCPD")
	for _, s := range d.Services {
		services.AddRow(s.ServiceType, s.ControlURL, orDash(s.EventSubURL), s.SCPDURL)
	}
	p.PrintTable(services, "No services.")
	p.Newline()

	for _, child := range d.Devices {
		printDevice(p, child, depth+1)
	}
}

// schemaCmd fetches a service control protocol description
var schemaCmd = &cobra.Command{
	Use:   "schema <location> <scpd-url>",
	Short: "Fetch a service description (SCPD)",
	Long: `Fetch the SCPD document of a service and print it verbatim. The SCPD URL
may be relative; it is resolved against the device description location.`,
	Example: `  upnpctl schema http://192.168.1.1:5000/rootDesc.xml /WANIPCn.xml`,
	Args:    cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signalContext(cmd)
		defer stop()

		schema, err := newControlPoint(nil).GetServiceSchema(ctx, args[0], args[1])
		if err != nil {
			return fail(cmd, "Schema fetch failed", err)
		}
		if jsonOutput() {
			return printJSON(cmd.OutOrStdout(), map[string]string{
				"location": args[0],
				"scpd_url": args[1],
				"schema":   schema,
			})
		}
		_, err = fmt.Fprintln(cmd.OutOrStdout(), schema)
		return err
	},
}

// invokeCmd invokes a SOAP action
var invokeCmd = &cobra.Command{
	Use:   "invoke <control-url> <service-type> <action> [name=value...]",
	Short: "Invoke an action on a service",
	Long: `Send a SOAP request for an action and print its output arguments.

Input arguments are given as name=value pairs and sent in the order given.
A SOAP fault is reported with its UPnP error code and description.`,
	Example: `  upnpctl invoke http://192.168.1.1:5000/ctl/IPConn \
    urn:schemas-upnp-org:service:WANIPConnection:1 GetExternalIPAddress

  upnpctl invoke http://192.168.1.1:5000/ctl/IPConn \
    urn:schemas-upnp-org:service:WANIPConnection:1 GetSpecificPortMappingEntry \
    NewRemoteHost= NewExternalPort=8080 NewProtocol=TCP`,
	Args: cobra.MinimumNArgs(3),
	RunE: runInvoke,
}

func runInvoke(cmd *cobra.Command, args []string) error {
	ctx, stop := signalContext(cmd)
	defer stop()

	controlURL, serviceType, action := args[0], args[1], args[2]
	in, err := parseArguments(args[3:])
	if err != nil {
		return err
	}

	cp := newControlPoint(nil)
	body, err := cp.InvokeAction(ctx, controlURL, serviceType, action, in)
	if err != nil {
		return fail(cmd, action+" failed", err)
	}
	result, err := cp.ParseActionResponse(body)
	if err != nil {
		return fail(cmd, action+" returned an unreadable response", err)
	}

	if jsonOutput() {
		outputs := make(map[string]string, result.Len())
		for _, name := range result.Names() {
			outputs[name] = result.Get(name)
		}
		return printJSON(cmd.OutOrStdout(), map[string]any{
			"action":       action,
			"service_type": serviceType,
			"outputs":      outputs,
		})
	}

	p := ui.NewPrinter(cmd.OutOrStdout())
	p.PrintHeader("Action", "upnpctl invoke", map[string]string{
		"Action":  action,
		"Service": serviceType,
		"Control": controlURL,
	})

	outputs := ui.NewTable("ARGUMENT", "VALUE")
	for _, name := range result.Names() {
		outputs.AddRow(name, result.Get(name))
	}
	p.PrintSuccess(action+" succeeded", map[string]string{"Outputs": strconv.Itoa(result.Len())})
	p.PrintTable(outputs, "The action returned no output arguments.")

	if showRaw {
		p.Newline()
		p.PrintRaw("SOAP response", body)
	}
	return nil
}
