// Upnpctl is a UPnP control point for the local network.
//
// It discovers devices over SSDP, fetches and prints their descriptions,
// invokes SOAP actions, subscribes to GENA events, and watches presence
// announcements live. Supporting commands browse mDNS services and query
// SNMP agents found alongside UPnP devices.
//
// Usage:
//
//	upnpctl [command] [flags]
//
// See 'upnpctl --help' for available commands.
package main

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/muurk/upnpctl/internal/config"
	"github.com/muurk/upnpctl/internal/logging"
	"github.com/muurk/upnpctl/internal/version"
)

func main() {
	err := rootCmd.Execute()
	logging.Sync()
	if err != nil {
		var reported *reportedError
		if !errors.As(err, &reported) {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		}
		os.Exit(1)
	}
}

// Global flags
var (
	configPath   string
	logLevel     string
	outputFormat string
	ifaceName    string
	timeout      time.Duration
)

// settings is the effective configuration: the file overlaid with flags.
var settings = config.Default()

var rootCmd = &cobra.Command{
	Use:   "upnpctl",
	Short: "UPnP control point",
	Long: `A command-line UPnP control point.

Discovers devices with SSDP, reads device and service descriptions, invokes
SOAP actions, and subscribes to GENA events. Settings are read from
` + "`upnpctl config path`" + ` and may be overridden per command with flags.`,
	Version:           version.Version,
	SilenceUsage:      true,
	SilenceErrors:     true,
	PersistentPreRunE: loadSettings,
	Example: `  # Find every UPnP device on the LAN
  upnpctl discover

  # Show the services of a device
  upnpctl describe http://192.168.1.1:5000/rootDesc.xml

  # Ask an Internet gateway for its external address
  upnpctl invoke http://192.168.1.1:5000/ctl/IPConn \
    urn:schemas-upnp-org:service:WANIPConnection:1 GetExternalIPAddress

  # Watch devices come and go
  upnpctl monitor`,
}

func init() {
	rootCmd.CompletionOptions.DisableDefaultCmd = true

	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Config file (default is the user config directory)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level (debug, info, warn, error); overrides "+logging.LogLevelEnvVar)
	rootCmd.PersistentFlags().StringVar(&outputFormat, "format", "detailed", "Output format (detailed, json)")
	rootCmd.PersistentFlags().StringVar(&ifaceName, "interface", "", "Network interface for multicast traffic")
	rootCmd.PersistentFlags().DurationVar(&timeout, "timeout", 0, "Discovery window (default from config, 5s)")

	rootCmd.AddCommand(versionCmd)
}

// loadSettings reads the config file, applies flag overrides and starts
// logging. Logging stays silent unless a level is configured.
func loadSettings(cmd *cobra.Command, args []string) error {
	switch outputFormat {
	case "detailed", "json":
	default:
		return fmt.Errorf("unknown --format %q (expected detailed or json)", outputFormat)
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	flags := cmd.Flags()
	if flags.Changed("timeout") {
		cfg.Discovery.Timeout = timeout
	}
	if flags.Changed("interface") {
		cfg.Discovery.Interface = ifaceName
	}
	if flags.Changed("log-level") {
		cfg.LogLevel = logLevel
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	if err := logging.Initialize(cfg.LogLevel); err != nil {
		return err
	}
	settings = cfg
	return nil
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	RunE: func(cmd *cobra.Command, args []string) error {
		if jsonOutput() {
			return printJSON(cmd.OutOrStdout(), version.Get())
		}
		info := version.Get()
		fmt.Fprintf(cmd.OutOrStdout(), "upnpctl %s (commit: %s, %s, %s)\n", info.Version, info.Commit, info.GoVersion, info.Platform)
		return nil
	},
}
