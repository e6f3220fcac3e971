package mdns

import (
	"context"
	"fmt"
	"net"
	"strings"
	"sync"
	"time"

	"github.com/grandcat/zeroconf"
	"github.com/miekg/dns"
	"go.uber.org/zap"

	"github.com/muurk/upnpctl/internal/logging"
)

const (
	// DefaultDomain is the mDNS browsing domain
	DefaultDomain = "local."

	// DefaultTimeout is how long a browse collects answers
	DefaultTimeout = 5 * time.Second

	// EnumerationType lists the service types present on the network
	EnumerationType = "_services._dns-sd._udp"
)

// Browser collects DNS-SD answers for a fixed window
type Browser struct {
	// Timeout is the browse window
	Timeout time.Duration

	// Domain is the browsing domain (default local.)
	Domain string

	// Interface optionally restricts browsing to one interface
	Interface string
}

// NewBrowser creates a browser with default settings
func NewBrowser() *Browser {
	return &Browser{
		Timeout: DefaultTimeout,
		Domain:  DefaultDomain,
	}
}

// NormalizeServiceType reduces forms such as "_ipp._tcp.local." or
// "_IPP._tcp" to "_ipp._tcp".
func NormalizeServiceType(serviceType string) (string, error) {
	name := strings.ToLower(strings.TrimSpace(serviceType))
	if name == "" {
		return "", fmt.Errorf("empty service type")
	}
	if _, ok := dns.IsDomainName(name); !ok {
		return "", fmt.Errorf("invalid service type %q", serviceType)
	}

	labels := dns.SplitDomainName(dns.Fqdn(name))
	if len(labels) < 2 {
		return "", fmt.Errorf("service type %q must look like _name._tcp", serviceType)
	}
	for i := 0; i+1 < len(labels); i++ {
		if strings.HasPrefix(labels[i], "_") && (labels[i+1] == "_tcp" || labels[i+1] == "_udp") {
			return labels[i] + "." + labels[i+1], nil
		}
	}
	return "", fmt.Errorf("service type %q must look like _name._tcp", serviceType)
}

// Browse collects instances of serviceType until the browse window or ctx ends.
// An expired window is not an error.
func (b *Browser) Browse(ctx context.Context, serviceType string) ([]Service, error) {
	st, err := NormalizeServiceType(serviceType)
	if err != nil {
		return nil, err
	}

	var (
		mu       sync.Mutex
		services []Service
		seen     = make(map[string]bool)
	)
	err = b.browse(ctx, st, b.timeout(), func(entry *zeroconf.ServiceEntry) {
		svc, ok := serviceFromEntry(entry)
		if !ok {
			return
		}
		mu.Lock()
		defer mu.Unlock()
		if seen[svc.key()] {
			return
		}
		seen[svc.key()] = true
		services = append(services, svc)
		logging.Debug("mDNS service resolved",
			zap.String("instance", svc.Instance),
			zap.String("service_type", svc.ServiceType),
			zap.String("address", svc.Address()),
		)
	})
	if err != nil {
		return nil, err
	}

	mu.Lock()
	defer mu.Unlock()
	sortServices(services)
	return services, nil
}

// ServiceTypes enumerates the service types announced on the network
func (b *Browser) ServiceTypes(ctx context.Context) ([]string, error) {
	var (
		mu    sync.Mutex
		types []string
		seen  = make(map[string]bool)
	)
	err := b.browse(ctx, EnumerationType, b.timeout(), func(entry *zeroconf.ServiceEntry) {
		st, err := NormalizeServiceType(entry.Instance)
		if err != nil {
			return
		}
		mu.Lock()
		defer mu.Unlock()
		if !seen[st] {
			seen[st] = true
			types = append(types, st)
		}
	})
	if err != nil {
		return nil, err
	}
	mu.Lock()
	defer mu.Unlock()
	return types, nil
}

// DiscoverAll enumerates service types, then browses each one. The browse
// window is split between the enumeration and the per-type browses.
func (b *Browser) DiscoverAll(ctx context.Context) ([]Service, error) {
	window := b.timeout() / 2
	enumerate := &Browser{Timeout: window, Domain: b.Domain, Interface: b.Interface}
	types, err := enumerate.ServiceTypes(ctx)
	if err != nil {
		return nil, err
	}
	if len(types) == 0 {
		return nil, nil
	}

	per := window / time.Duration(len(types))
	if per < 500*time.Millisecond {
		per = 500 * time.Millisecond
	}
	each := &Browser{Timeout: per, Domain: b.Domain, Interface: b.Interface}

	var all []Service
	for _, st := range types {
		if ctx.Err() != nil {
			break
		}
		found, err := each.Browse(ctx, st)
		if err != nil {
			logging.Warn("mDNS browse failed", zap.String("service_type", st), zap.Error(err))
			continue
		}
		all = append(all, found...)
	}
	sortServices(all)
	return all, nil
}

func (b *Browser) timeout() time.Duration {
	if b.Timeout <= 0 {
		return DefaultTimeout
	}
	return b.Timeout
}

func (b *Browser) domain() string {
	if b.Domain == "" {
		return DefaultDomain
	}
	return dns.Fqdn(b.Domain)
}

func (b *Browser) resolver() (*zeroconf.Resolver, error) {
	if b.Interface == "" {
		return zeroconf.NewResolver(nil)
	}
	iface, err := net.InterfaceByName(b.Interface)
	if err != nil {
		return nil, fmt.Errorf("unknown interface %q: %w", b.Interface, err)
	}
	return zeroconf.NewResolver(zeroconf.SelectIfaces([]net.Interface{*iface}))
}

// browse runs one zeroconf browse for window and hands every entry to fn
func (b *Browser) browse(ctx context.Context, serviceType string, window time.Duration, fn func(*zeroconf.ServiceEntry)) error {
	ctx, cancel := context.WithTimeout(ctx, window)
	defer cancel()

	resolver, err := b.resolver()
	if err != nil {
		return fmt.Errorf("failed to create mDNS resolver: %w", err)
	}

	entries := make(chan *zeroconf.ServiceEntry)
	done := make(chan struct{})
	go func() {
		defer close(done)
		for entry := range entries {
			fn(entry)
		}
	}()

	if err := resolver.Browse(ctx, serviceType, b.domain(), entries); err != nil {
		return fmt.Errorf("failed to browse for mDNS services: %w", err)
	}

	<-ctx.Done()
	select {
	case <-done:
	case <-time.After(time.Second):
		logging.Debug("mDNS resolver did not close its entry channel", zap.String("service_type", serviceType))
	}
	return nil
}
