package mdns

import (
	"fmt"
	"net"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/grandcat/zeroconf"
)

// Service is one resolved DNS-SD service instance
type Service struct {
	Instance     string            `json:"instance"`
	ServiceType  string            `json:"service_type"`
	Domain       string            `json:"domain"`
	HostName     string            `json:"hostname"`
	Port         int               `json:"port"`
	IPv4         []string          `json:"ipv4,omitempty"`
	IPv6         []string          `json:"ipv6,omitempty"`
	Text         map[string]string `json:"text,omitempty"`
	DiscoveredAt time.Time         `json:"discovered_at"`
}

// String returns a human-readable form of the service
func (s Service) String() string {
	return fmt.Sprintf("%s (%s) at %s", s.Instance, s.ServiceType, s.Address())
}

// Address returns host:port, preferring IPv4 and falling back to the host name
func (s Service) Address() string {
	host := strings.TrimSuffix(s.HostName, ".")
	switch {
	case len(s.IPv4) > 0:
		host = s.IPv4[0]
	case len(s.IPv6) > 0:
		host = s.IPv6[0]
	}
	return net.JoinHostPort(host, strconv.Itoa(s.Port))
}

// TXT returns a TXT attribute, or "" if absent
func (s Service) TXT(key string) string {
	if s.Text == nil {
		return ""
	}
	return s.Text[key]
}

// key identifies a service instance across repeated answers
func (s Service) key() string {
	return s.Instance + "|" + s.ServiceType + "|" + s.Domain
}

// serviceFromEntry converts a resolved zeroconf entry. Entries without any
// address are rejected.
func serviceFromEntry(entry *zeroconf.ServiceEntry) (Service, bool) {
	if entry == nil || (len(entry.AddrIPv4) == 0 && len(entry.AddrIPv6) == 0) {
		return Service{}, false
	}

	svc := Service{
		Instance:     unescapeInstance(entry.Instance),
		ServiceType:  entry.Service,
		Domain:       entry.Domain,
		HostName:     entry.HostName,
		Port:         entry.Port,
		Text:         parseTXT(entry.Text),
		DiscoveredAt: time.Now(),
	}
	for _, ip := range entry.AddrIPv4 {
		svc.IPv4 = append(svc.IPv4, ip.String())
	}
	for _, ip := range entry.AddrIPv6 {
		svc.IPv6 = append(svc.IPv6, ip.String())
	}
	return svc, true
}

// parseTXT splits key=value TXT strings. Keys without a value map to "".
func parseTXT(records []string) map[string]string {
	if len(records) == 0 {
		return nil
	}
	attrs := make(map[string]string, len(records))
	for _, txt := range records {
		key, value, _ := strings.Cut(txt, "=")
		if key == "" {
			continue
		}
		attrs[key] = value
	}
	return attrs
}

// unescapeInstance removes the backslash escapes DNS applies to instance labels
func unescapeInstance(name string) string {
	if !strings.Contains(name, `\`) {
		return name
	}
	var b strings.Builder
	escaped := false
	for _, r := range name {
		if r == '\\' && !escaped {
			escaped = true
			continue
		}
		escaped = false
		b.WriteRune(r)
	}
	return b.String()
}

// sortServices orders by service type, then instance
func sortServices(services []Service) {
	sort.Slice(services, func(i, j int) bool {
		if services[i].ServiceType != services[j].ServiceType {
			return services[i].ServiceType < services[j].ServiceType
		}
		return services[i].Instance < services[j].Instance
	})
}
