package main

import (
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/spf13/cobra"

	"github.com/muurk/upnpctl/internal/mdns"
	"github.com/muurk/upnpctl/internal/snmp"
	"github.com/muurk/upnpctl/internal/ui"
)

// defaultWalkRoot is the system group
const defaultWalkRoot = "1.3.6.1.2.1.1"

// SNMP flags
var (
	snmpCommunity string
	snmpVersion   string
	snmpPort      uint16
	snmpRetries   int
	trapAddr      string
)

func init() {
	rootCmd.AddCommand(mdnsCmd)
	rootCmd.AddCommand(snmpCmd)

	snmpCmd.AddCommand(snmpSystemCmd)
	snmpCmd.AddCommand(snmpGetCmd)
	snmpCmd.AddCommand(snmpWalkCmd)
	snmpCmd.AddCommand(snmpTrapsCmd)

	snmpCmd.PersistentFlags().StringVar(&snmpCommunity, "community", "public", "Community string")
	snmpCmd.PersistentFlags().StringVar(&snmpVersion, "snmp-version", "2c", "Protocol version (1, 2c)")
	snmpCmd.PersistentFlags().Uint16Var(&snmpPort, "port", 161, "Agent UDP port")
	snmpCmd.PersistentFlags().IntVar(&snmpRetries, "retries", 1, "Retries per request")
	snmpTrapsCmd.Flags().StringVar(&trapAddr, "listen", snmp.DefaultTrapAddr, "Address to receive traps on")
}

var mdnsCmd = &cobra.Command{
	Use:   "mdns [service-type]",
	Short: "Browse mDNS/DNS-SD services",
	Long: `Browse multicast DNS service discovery. With a service type such as
_ipp._tcp only that type is browsed; without one every advertised type is
enumerated and browsed. Many UPnP devices also announce themselves here.`,
	Example: `  upnpctl mdns
  upnpctl mdns _googlecast._tcp --timeout 3s`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := signalContext(cmd)
		defer cancel()

		browser := mdns.NewBrowser()
		browser.Timeout = settings.Discovery.Timeout
		browser.Interface = settings.Discovery.Interface

		p := ui.NewPrinter(cmd.OutOrStdout())
		if !jsonOutput() {
			params := map[string]string{"Window": browser.Timeout.String()}
			if len(args) == 1 {
				params["Service Type"] = args[0]
			}
			p.PrintHeader("mDNS Browse", "upnpctl mdns", params)
		}

		var services []mdns.Service
		var err error
		if len(args) == 1 {
			services, err = browser.Browse(ctx, args[0])
		} else {
			services, err = browser.DiscoverAll(ctx)
		}
		if err != nil {
			return fail(cmd, "mDNS browse failed", err)
		}

		if jsonOutput() {
			if services == nil {
				services = []mdns.Service{}
			}
			return printJSON(cmd.OutOrStdout(), services)
		}

		t := ui.NewTable("INSTANCE", "TYPE", "ADDRESS", "TXT")
		for _, s := range services {
			t.AddRow(s.Instance, s.ServiceType, orDash(s.Address()), orDash(formatTXT(s.Text)))
		}
		p.PrintTable(t, "No services found")
		return nil
	},
}

func formatTXT(text map[string]string) string {
	keys := make([]string, 0, len(text))
	for k := range text {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		if text[k] == "" {
			parts = append(parts, k)
			continue
		}
		parts = append(parts, k+"="+text[k])
	}
	return strings.Join(parts, " ")
}

var snmpCmd = &cobra.Command{
	Use:   "snmp",
	Short: "Query SNMP agents and receive traps",
	Long: `Query the SNMP agent that many gateways and printers run next to their
UPnP stack. SNMPv1 and v2c are supported.`,
}

func newSNMPClient() (*snmp.Client, error) {
	v, err := snmp.ParseVersion(snmpVersion)
	if err != nil {
		return nil, err
	}
	return snmp.NewClient(snmp.Config{
		Community: snmpCommunity,
		Version:   v,
		Port:      snmpPort,
		Timeout:   settings.HTTP.Timeout,
		Retries:   snmpRetries,
	}), nil
}

var snmpSystemCmd = &cobra.Command{
	Use:     "system <host>",
	Short:   "Show an agent's system group",
	Example: `  upnpctl snmp system 192.168.1.1`,
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newSNMPClient()
		if err != nil {
			return err
		}
		ctx, cancel := signalContext(cmd)
		defer cancel()

		info, err := client.GetSystemInfo(ctx, args[0])
		if err != nil {
			return fail(cmd, "SNMP query failed", err)
		}
		if jsonOutput() {
			return printJSON(cmd.OutOrStdout(), info)
		}

		p := ui.NewPrinter(cmd.OutOrStdout())
		p.PrintSuccess("SNMP agent "+args[0], map[string]string{
			"Name":        orDash(info.Name),
			"Description": orDash(info.Descr),
			"Object ID":   orDash(info.ObjectID),
			"Uptime":      snmp.FormatTimeTicks(info.UpTime),
			"Contact":     orDash(info.Contact),
			"Location":    orDash(info.Location),
		})
		return nil
	},
}

var snmpGetCmd = &cobra.Command{
	Use:     "get <host> <oid>...",
	Short:   "Fetch individual OIDs",
	Example: `  upnpctl snmp get 192.168.1.1 1.3.6.1.2.1.1.5.0 1.3.6.1.2.1.2.1.0`,
	Args:    cobra.MinimumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newSNMPClient()
		if err != nil {
			return err
		}
		ctx, cancel := signalContext(cmd)
		defer cancel()

		responses, err := client.Get(ctx, args[0], args[1:])
		if err != nil {
			return fail(cmd, "SNMP get failed", err)
		}
		return printResponses(cmd, responses)
	},
}

var snmpWalkCmd = &cobra.Command{
	Use:   "walk <host> [root-oid]",
	Short: "Walk a subtree of an agent's MIB",
	Long: `Walk every variable under root-oid (the system group by default). v1
agents are walked with GETNEXT, v2c agents with GETBULK.`,
	Example: `  upnpctl snmp walk 192.168.1.1
  upnpctl snmp walk 192.168.1.1 1.3.6.1.2.1.2.2`,
	Args: cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newSNMPClient()
		if err != nil {
			return err
		}
		root := defaultWalkRoot
		if len(args) == 2 {
			root = args[1]
		}
		ctx, cancel := signalContext(cmd)
		defer cancel()

		responses, err := client.Walk(ctx, args[0], root)
		if err != nil {
			return fail(cmd, "SNMP walk failed", err)
		}
		return printResponses(cmd, responses)
	},
}

func printResponses(cmd *cobra.Command, responses []snmp.Response) error {
	if jsonOutput() {
		if responses == nil {
			responses = []snmp.Response{}
		}
		return printJSON(cmd.OutOrStdout(), responses)
	}
	t := ui.NewTable("OID", "TYPE", "VALUE")
	for _, r := range responses {
		t.AddRow(r.OID, r.Value.Kind.String(), r.Value.String())
	}
	ui.NewPrinter(cmd.OutOrStdout()).PrintTable(t, "No variables returned")
	return nil
}

var snmpTrapsCmd = &cobra.Command{
	Use:   "traps",
	Short: "Print SNMP traps and informs as they arrive",
	Long: `Listen for SNMP traps until interrupted. Informs are acknowledged.
Binding the standard port 162 usually needs elevated privileges, so the
default is 1162.`,
	Example: `  upnpctl snmp traps
  sudo upnpctl snmp traps --listen 0.0.0.0:162`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newSNMPClient()
		if err != nil {
			return err
		}
		ctx, cancel := signalContext(cmd)
		defer cancel()

		p := ui.NewPrinter(cmd.OutOrStdout())
		if !jsonOutput() {
			p.PrintHeader("SNMP Traps", "upnpctl snmp traps", map[string]string{
				"Listen":    trapAddr,
				"Community": snmpCommunity,
			})
			p.Println(ui.StepNoteStyle.Render("Waiting for traps. Press Ctrl+C to stop."))
		}

		var mu sync.Mutex
		err = client.ListenTraps(ctx, trapAddr, func(trap snmp.Trap) {
			mu.Lock()
			defer mu.Unlock()
			if jsonOutput() {
				_ = printJSON(cmd.OutOrStdout(), trap)
				return
			}
			printTrap(p, trap)
		})
		if err != nil {
			return fail(cmd, "Trap listener failed", err)
		}
		return nil
	},
}

func printTrap(p *ui.Printer, trap snmp.Trap) {
	kind := trap.Type.String()
	if trap.Inform {
		kind = "inform"
	}
	p.Newline()
	p.Printf("%s %s from %s\n", trap.ReceivedAt.Format(time.TimeOnly), kind, trap.Source)
	if trap.Enterprise != "" {
		p.Printf("  enterprise %s generic=%d specific=%d\n", trap.Enterprise, trap.GenericTrap, trap.SpecificTrap)
	}
	for _, vb := range trap.Varbinds {
		p.Println(fmt.Sprintf("  %s = %s", vb.OID, vb.Value.String()))
	}
}
