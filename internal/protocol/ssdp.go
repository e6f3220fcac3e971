package protocol

import (
	"fmt"
	"net"
	"strconv"
	"strings"
)

// SSDP multicast endpoint (IPv4 only)
const (
	MulticastGroup = "239.255.255.250"
	MulticastPort  = 1900
)

// Search targets
const (
	SearchTargetAll        = "ssdp:all"
	SearchTargetRootDevice = "upnp:rootdevice"
)

// NTS values carried by NOTIFY messages
const (
	NTSAlive  = "ssdp:alive"
	NTSByeBye = "ssdp:byebye"
	NTSUpdate = "ssdp:update"
)

// MX bounds. UPnP 1.1 requires 1..5 seconds.
const (
	DefaultMX = 3
	MinMX     = 1
	MaxMX     = 5
)

// Well-known device and service types
const (
	URNInternetGatewayDevice1 = "urn:schemas-upnp-org:device:InternetGatewayDevice:1"
	URNInternetGatewayDevice2 = "urn:schemas-upnp-org:device:InternetGatewayDevice:2"
	URNWANIPConnection1       = "urn:schemas-upnp-org:service:WANIPConnection:1"
	URNWANIPConnection2       = "urn:schemas-upnp-org:service:WANIPConnection:2"
	URNWANPPPConnection1      = "urn:schemas-upnp-org:service:WANPPPConnection:1"
	URNMediaRenderer1         = "urn:schemas-upnp-org:device:MediaRenderer:1"
	URNMediaServer1           = "urn:schemas-upnp-org:device:MediaServer:1"
)

// MulticastAddr is the SSDP group as a UDP address.
var MulticastAddr = &net.UDPAddr{
	IP:   net.IPv4(239, 255, 255, 250),
	Port: MulticastPort,
}

// Retained header keys (lower-cased)
const (
	headerLocation     = "location"
	headerUSN          = "usn"
	headerServer       = "server"
	headerST           = "st"
	headerNT           = "nt"
	headerCacheControl = "cache-control"
	headerNTS          = "nts"
)

var retainedHeaders = map[string]struct{}{
	headerLocation:     {},
	headerUSN:          {},
	headerServer:       {},
	headerST:           {},
	headerNT:           {},
	headerCacheControl: {},
	headerNTS:          {},
}

// Announcement describes a device advertised by a search response or a
// presence notification. Callers deduplicate by USN.
type Announcement struct {
	Location     string `json:"location"`
	USN          string `json:"usn"`
	Server       string `json:"server"`
	ST           string `json:"st"`
	CacheControl string `json:"cache_control"`
}

// MaxAge returns the max-age directive of CacheControl in seconds, or 0.
func (a Announcement) MaxAge() int {
	for _, directive := range strings.Split(a.CacheControl, ",") {
		key, value, ok := strings.Cut(strings.TrimSpace(directive), "=")
		if !ok || !strings.EqualFold(strings.TrimSpace(key), "max-age") {
			continue
		}
		n, err := strconv.Atoi(strings.TrimSpace(value))
		if err != nil || n < 0 {
			return 0
		}
		return n
	}
	return 0
}

// String returns a one-line summary
func (a Announcement) String() string {
	return fmt.Sprintf("%s at %s (%s)", a.USN, a.Location, a.ST)
}

// PresenceKind is the NTS sub-type of a presence notification.
type PresenceKind int

const (
	PresenceAlive PresenceKind = iota + 1
	PresenceByeBye
	PresenceUpdate
)

// String returns the NTS token for the kind
func (k PresenceKind) String() string {
	switch k {
	case PresenceAlive:
		return NTSAlive
	case PresenceByeBye:
		return NTSByeBye
	case PresenceUpdate:
		return NTSUpdate
	default:
		return fmt.Sprintf("PresenceKind(%d)", int(k))
	}
}

// PresenceEvent is a decoded NOTIFY message. Exactly one shape is populated
// depending on Kind: Alive and Update carry Device, ByeBye carries USN and NT.
// Values are only produced by ParseNotification.
type PresenceEvent struct {
	Kind   PresenceKind
	Device Announcement
	USN    string
	NT     string
}

// Alive returns the announcement if the event is ssdp:alive.
func (e PresenceEvent) Alive() (Announcement, bool) {
	return e.Device, e.Kind == PresenceAlive
}

// Update returns the announcement if the event is ssdp:update.
func (e PresenceEvent) Update() (Announcement, bool) {
	return e.Device, e.Kind == PresenceUpdate
}

// ByeBye returns the USN and NT if the event is ssdp:byebye.
func (e PresenceEvent) ByeBye() (usn, nt string, ok bool) {
	return e.USN, e.NT, e.Kind == PresenceByeBye
}

// String returns a one-line summary
func (e PresenceEvent) String() string {
	if e.Kind == PresenceByeBye {
		return fmt.Sprintf("%s %s (%s)", e.Kind, e.USN, e.NT)
	}
	return fmt.Sprintf("%s %s", e.Kind, e.Device)
}

// ClampMX bounds a requested MX to the range devices accept.
func ClampMX(mx int) int {
	if mx < MinMX {
		return MinMX
	}
	if mx > MaxMX {
		return MaxMX
	}
	return mx
}

// BuildSearchRequest builds an M-SEARCH datagram for the given search target.
func BuildSearchRequest(st string, mx int) []byte {
	var b strings.Builder
	b.WriteString("M-SEARCH * HTTP/1.1\r\n")
	fmt.Fprintf(&b, "HOST: %s:%d\r\n", MulticastGroup, MulticastPort)
	b.WriteString("MAN: \"ssdp:discover\"\r\n")
	fmt.Fprintf(&b, "MX: %d\r\n", ClampMX(mx))
	fmt.Fprintf(&b, "ST: %s\r\n", st)
	b.WriteString("\r\n")
	return []byte(b.String())
}

// Headers holds the retained SSDP headers keyed by lower-cased name.
type Headers map[string]string

// Get returns a header value by case-insensitive name
func (h Headers) Get(name string) string {
	return h[strings.ToLower(name)]
}

// ParseHeaders splits a datagram into its start line and retained headers.
func ParseHeaders(datagram []byte) (string, Headers) {
	text := strings.ReplaceAll(string(datagram), "\r\n", "\n")
	lines := strings.Split(text, "\n")

	startLine := strings.TrimSpace(lines[0])
	headers := make(Headers)
	for _, line := range lines[1:] {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		key, value, ok := strings.Cut(line, ":")
		if !ok {
			continue
		}
		key = strings.ToLower(strings.TrimSpace(key))
		if _, keep := retainedHeaders[key]; !keep {
			continue
		}
		headers[key] = strings.TrimSpace(value)
	}
	return startLine, headers
}

// ParseSearchResponse decodes a unicast M-SEARCH response.
func ParseSearchResponse(datagram []byte) (Announcement, error) {
	startLine, headers := ParseHeaders(datagram)
	if !isOKStatusLine(startLine) {
		return Announcement{}, ErrMalformedMessage
	}

	location := headers[headerLocation]
	if location == "" {
		return Announcement{}, ErrMalformedMessage
	}

	return Announcement{
		Location:     location,
		USN:          headers[headerUSN],
		Server:       headers[headerServer],
		ST:           headers[headerST],
		CacheControl: headers[headerCacheControl],
	}, nil
}

// ParseNotification decodes a NOTIFY message received on the multicast group.
func ParseNotification(datagram []byte) (PresenceEvent, error) {
	startLine, headers := ParseHeaders(datagram)
	if !isNotifyLine(startLine) {
		return PresenceEvent{}, ErrMalformedMessage
	}

	switch strings.ToLower(headers[headerNTS]) {
	case NTSAlive:
		device, err := announcementFromNotify(headers)
		if err != nil {
			return PresenceEvent{}, err
		}
		return PresenceEvent{Kind: PresenceAlive, Device: device}, nil

	case NTSUpdate:
		device, err := announcementFromNotify(headers)
		if err != nil {
			return PresenceEvent{}, err
		}
		return PresenceEvent{Kind: PresenceUpdate, Device: device}, nil

	case NTSByeBye:
		usn := headers[headerUSN]
		if usn == "" {
			return PresenceEvent{}, ErrMalformedMessage
		}
		return PresenceEvent{Kind: PresenceByeBye, USN: usn, NT: headers[headerNT]}, nil

	default:
		return PresenceEvent{}, ErrMalformedMessage
	}
}

func announcementFromNotify(headers Headers) (Announcement, error) {
	location := headers[headerLocation]
	if location == "" {
		return Announcement{}, ErrMalformedMessage
	}
	return Announcement{
		Location:     location,
		USN:          headers[headerUSN],
		Server:       headers[headerServer],
		ST:           headers[headerNT],
		CacheControl: headers[headerCacheControl],
	}, nil
}

// isOKStatusLine accepts "HTTP/1.0 200" and "HTTP/1.1 200" with any reason phrase.
func isOKStatusLine(line string) bool {
	fields := strings.Fields(line)
	if len(fields) < 2 {
		return false
	}
	return strings.HasPrefix(strings.ToUpper(fields[0]), "HTTP/1.") && fields[1] == "200"
}

func isNotifyLine(line string) bool {
	fields := strings.Fields(line)
	return len(fields) == 3 &&
		strings.EqualFold(fields[0], "NOTIFY") &&
		fields[1] == "*" &&
		strings.HasPrefix(strings.ToUpper(fields[2]), "HTTP/1.")
}
