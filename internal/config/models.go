package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/muurk/upnpctl/internal/controlpoint"
	"github.com/muurk/upnpctl/internal/gena"
	"github.com/muurk/upnpctl/internal/protocol"
	"github.com/muurk/upnpctl/internal/ssdp"
	"github.com/muurk/upnpctl/internal/transport"
)

// CurrentVersion is the config file format version
const CurrentVersion = 1

// Config represents the entire configuration file
type Config struct {
	Version      int                `yaml:"version"`
	Discovery    DiscoveryConfig    `yaml:"discovery"`
	Listener     ListenerConfig     `yaml:"listener"`
	Callback     CallbackConfig     `yaml:"callback"`
	HTTP         HTTPConfig         `yaml:"http"`
	Subscription SubscriptionConfig `yaml:"subscription"`
	LogLevel     string             `yaml:"log_level,omitempty"` // debug, info, warn, error (empty = silent)
}

// DiscoveryConfig controls SSDP searches
type DiscoveryConfig struct {
	Timeout       time.Duration `yaml:"timeout"`
	MX            int           `yaml:"mx"`
	SearchTargets []string      `yaml:"search_targets,omitempty"` // sweep targets, empty = built-in list
	Interface     string        `yaml:"interface,omitempty"`      // multicast interface name
}

// ListenerConfig controls the NOTIFY listener
type ListenerConfig struct {
	PollInterval time.Duration `yaml:"poll_interval"`
}

// CallbackConfig controls the event receiver and callback URLs
type CallbackConfig struct {
	Port  int      `yaml:"port"`
	Hosts []string `yaml:"hosts,omitempty"` // empty = local IPv4 addresses
}

// HTTPConfig controls description, control and eventing requests
type HTTPConfig struct {
	ConnectTimeout time.Duration `yaml:"connect_timeout"`
	Timeout        time.Duration `yaml:"timeout"`
	UserAgent      string        `yaml:"user_agent,omitempty"`
}

// SubscriptionConfig controls requested leases and renewal timing
type SubscriptionConfig struct {
	TTL         uint32        `yaml:"ttl"` // seconds, 0 = infinite
	RenewMargin time.Duration `yaml:"renew_margin"`
}

// Default returns a configuration with every field at its default
func Default() *Config {
	return &Config{
		Version: CurrentVersion,
		Discovery: DiscoveryConfig{
			Timeout: ssdp.DefaultTimeout,
			MX:      protocol.DefaultMX,
		},
		Listener: ListenerConfig{
			PollInterval: ssdp.DefaultPollInterval,
		},
		Callback: CallbackConfig{
			Port: gena.DefaultCallbackPort,
		},
		HTTP: HTTPConfig{
			ConnectTimeout: transport.DefaultConnectTimeout,
			Timeout:        transport.DefaultTimeout,
			UserAgent:      transport.DefaultUserAgent,
		},
		Subscription: SubscriptionConfig{
			TTL:         protocol.DefaultLeaseSeconds,
			RenewMargin: time.Minute,
		},
	}
}

// Validate reports every invalid field at once
func (c *Config) Validate() error {
	var errs []error
	if c.Version != CurrentVersion {
		errs = append(errs, fmt.Errorf("unsupported config version: %d (expected %d)", c.Version, CurrentVersion))
	}
	if c.Discovery.Timeout <= 0 {
		errs = append(errs, errors.New("discovery.timeout must be positive"))
	}
	if c.Discovery.MX < protocol.MinMX || c.Discovery.MX > protocol.MaxMX {
		errs = append(errs, fmt.Errorf("discovery.mx must be between %d and %d", protocol.MinMX, protocol.MaxMX))
	}
	for i, st := range c.Discovery.SearchTargets {
		if strings.TrimSpace(st) == "" {
			errs = append(errs, fmt.Errorf("discovery.search_targets[%d] is empty", i))
		}
	}
	if c.Listener.PollInterval <= 0 {
		errs = append(errs, errors.New("listener.poll_interval must be positive"))
	}
	if c.Callback.Port < 1 || c.Callback.Port > 65535 {
		errs = append(errs, fmt.Errorf("callback.port %d out of range", c.Callback.Port))
	}
	if c.HTTP.ConnectTimeout <= 0 || c.HTTP.Timeout <= 0 {
		errs = append(errs, errors.New("http timeouts must be positive"))
	}
	if c.Subscription.RenewMargin < 0 {
		errs = append(errs, errors.New("subscription.renew_margin must not be negative"))
	}
	if c.LogLevel != "" {
		switch strings.ToLower(c.LogLevel) {
		case "debug", "info", "warn", "warning", "error":
		default:
			errs = append(errs, fmt.Errorf("unknown log_level %q", c.LogLevel))
		}
	}
	return errors.Join(errs...)
}

// ControlPointConfig converts the file settings into a control point configuration
func (c *Config) ControlPointConfig() controlpoint.Config {
	return controlpoint.Config{
		DiscoveryTimeout:     c.Discovery.Timeout,
		SearchMX:             c.Discovery.MX,
		CallbackPort:         c.Callback.Port,
		ListenerPollInterval: c.Listener.PollInterval,
		Interface:            c.Discovery.Interface,
		HTTP: transport.Options{
			ConnectTimeout: c.HTTP.ConnectTimeout,
			Timeout:        c.HTTP.Timeout,
			UserAgent:      c.HTTP.UserAgent,
		},
	}
}
