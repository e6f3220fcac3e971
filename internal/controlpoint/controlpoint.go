// Package controlpoint composes discovery, description, control and eventing
// into a single UPnP control point. It holds no protocol logic of its own.
package controlpoint

import (
	"context"
	"net"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/muurk/upnpctl/internal/description"
	"github.com/muurk/upnpctl/internal/gena"
	"github.com/muurk/upnpctl/internal/logging"
	"github.com/muurk/upnpctl/internal/metrics"
	"github.com/muurk/upnpctl/internal/protocol"
	"github.com/muurk/upnpctl/internal/soap"
	"github.com/muurk/upnpctl/internal/ssdp"
	"github.com/muurk/upnpctl/internal/transport"
)

// Config is the immutable control point configuration
type Config struct {
	// DiscoveryTimeout is the response window of a single search
	DiscoveryTimeout time.Duration

	// SearchMX is the MX value sent with searches (clamped to 1..5)
	SearchMX int

	// CallbackPort is the port composed into subscription callback URLs
	CallbackPort int

	// ListenerPollInterval bounds each notification listener Recv
	ListenerPollInterval time.Duration

	// HTTP configures the description, control and eventing client
	HTTP transport.Options

	// Interface optionally names the multicast interface
	Interface string

	// Metrics is shared by every component (may be nil)
	Metrics *metrics.Metrics

	// SearchDestination overrides the multicast group for searches
	SearchDestination *net.UDPAddr
}

// DefaultConfig returns the stock configuration
func DefaultConfig() Config {
	return Config{
		DiscoveryTimeout:     ssdp.DefaultTimeout,
		SearchMX:             protocol.DefaultMX,
		CallbackPort:         gena.DefaultCallbackPort,
		ListenerPollInterval: ssdp.DefaultPollInterval,
		HTTP:                 transport.DefaultOptions(),
	}
}

// ControlPoint holds one of each protocol component
type ControlPoint struct {
	config   Config
	searcher *ssdp.Searcher
	fetcher  *description.Fetcher
	invoker  *soap.Invoker
	manager  *gena.Manager
}

// New creates a control point. Zero fields of cfg take their defaults.
func New(cfg Config) *ControlPoint {
	defaults := DefaultConfig()
	if cfg.DiscoveryTimeout <= 0 {
		cfg.DiscoveryTimeout = defaults.DiscoveryTimeout
	}
	if cfg.SearchMX == 0 {
		cfg.SearchMX = defaults.SearchMX
	}
	if cfg.CallbackPort == 0 {
		cfg.CallbackPort = defaults.CallbackPort
	}
	if cfg.ListenerPollInterval <= 0 {
		cfg.ListenerPollInterval = defaults.ListenerPollInterval
	}
	if cfg.HTTP.Metrics == nil {
		cfg.HTTP.Metrics = cfg.Metrics
	}

	client := transport.NewClient(cfg.HTTP)
	return &ControlPoint{
		config: cfg,
		searcher: ssdp.NewSearcher(ssdp.Options{
			Timeout:     cfg.DiscoveryTimeout,
			MX:          cfg.SearchMX,
			Interface:   cfg.Interface,
			Metrics:     cfg.Metrics,
			Destination: cfg.SearchDestination,
		}),
		fetcher: description.NewFetcher(client),
		invoker: soap.NewInvoker(client),
		manager: gena.NewManager(client),
	}
}

// Config returns the configuration in effect
func (cp *ControlPoint) Config() Config {
	return cp.config
}

// DiscoverDevices searches for all devices and services
func (cp *ControlPoint) DiscoverDevices(ctx context.Context) ([]protocol.Announcement, error) {
	return cp.searcher.DiscoverAll(ctx)
}

// SearchDevices searches for one target
func (cp *ControlPoint) SearchDevices(ctx context.Context, target string) ([]protocol.Announcement, error) {
	return cp.searcher.Search(ctx, target)
}

// SweepDevices searches several targets within budget and de-duplicates the result
func (cp *ControlPoint) SweepDevices(ctx context.Context, targets []string, budget time.Duration, progress func(ssdp.SweepProgress)) ([]protocol.Announcement, error) {
	return cp.searcher.Sweep(ctx, targets, budget, progress)
}

// GetDeviceDescription fetches a description with service URLs resolved
func (cp *ControlPoint) GetDeviceDescription(ctx context.Context, location string) (protocol.DeviceDescription, error) {
	return cp.fetcher.GetDeviceDescription(ctx, location)
}

// GetServiceSchema fetches an SCPD document verbatim
func (cp *ControlPoint) GetServiceSchema(ctx context.Context, baseURL, scpdURL string) (string, error) {
	return cp.fetcher.GetServiceSchema(ctx, baseURL, scpdURL)
}

// InvokeAction invokes an action and returns the raw response body
func (cp *ControlPoint) InvokeAction(ctx context.Context, controlURL, serviceType, action string, args protocol.Arguments) (string, error) {
	return cp.invoker.Invoke(ctx, controlURL, serviceType, action, args)
}

// ParseActionResponse decodes the output arguments of a response body
func (cp *ControlPoint) ParseActionResponse(body string) (*protocol.ActionResult, error) {
	return soap.ParseResponse(body)
}

// ListenNotifications opens a presence listener. The caller must Close it.
func (cp *ControlPoint) ListenNotifications() (*ssdp.Listener, error) {
	return ssdp.Listen(ssdp.ListenOptions{
		Interface:    cp.config.Interface,
		PollInterval: cp.config.ListenerPollInterval,
		Metrics:      cp.config.Metrics,
	})
}

// SubscribeEvents subscribes with one callback URL per host. With no hosts
// the local IPv4 addresses are used.
func (cp *ControlPoint) SubscribeEvents(ctx context.Context, eventSubURL string, callbackHosts []string, ttl uint32) (gena.Subscription, error) {
	if len(callbackHosts) == 0 {
		hosts, err := LocalIPv4Hosts()
		if err != nil {
			logging.Warn("Cannot enumerate local addresses for callbacks", zap.Error(err))
		}
		callbackHosts = hosts
	}
	return cp.manager.Subscribe(ctx, eventSubURL, cp.CallbackURLs(callbackHosts), ttl)
}

// RenewSubscription extends a subscription, keeping its SID
func (cp *ControlPoint) RenewSubscription(ctx context.Context, sub gena.Subscription, ttl uint32) (gena.Subscription, error) {
	return cp.manager.Renew(ctx, sub, ttl)
}

// Unsubscribe cancels a subscription
func (cp *ControlPoint) Unsubscribe(ctx context.Context, sub gena.Subscription) error {
	return cp.manager.Unsubscribe(ctx, sub)
}

// ParseEventPayload decodes a NOTIFY body
func (cp *ControlPoint) ParseEventPayload(body []byte) (map[string]string, error) {
	return gena.ParseEventPayload(body)
}

// CallbackURLs composes http://{host}:{CallbackPort}/notify for each host
func (cp *ControlPoint) CallbackURLs(hosts []string) []string {
	urls := make([]string, 0, len(hosts))
	port := strconv.Itoa(cp.config.CallbackPort)
	for _, host := range hosts {
		if host == "" {
			continue
		}
		urls = append(urls, "http://"+net.JoinHostPort(host, port)+protocol.NotifyPath)
	}
	return urls
}

// LocalIPv4Hosts returns the IPv4 addresses of up, non-loopback interfaces
func LocalIPv4Hosts() ([]string, error) {
	ifaces, err := net.Interfaces()
	if err != nil {
		return nil, err
	}

	var hosts []string
	for _, iface := range ifaces {
		if iface.Flags&net.FlagUp == 0 || iface.Flags&net.FlagLoopback != 0 {
			continue
		}
		addrs, err := iface.Addrs()
		if err != nil {
			continue
		}
		for _, addr := range addrs {
			ipnet, ok := addr.(*net.IPNet)
			if !ok {
				continue
			}
			if ip4 := ipnet.IP.To4(); ip4 != nil && !ip4.IsLoopback() {
				hosts = append(hosts, ip4.String())
			}
		}
	}
	return hosts, nil
}
