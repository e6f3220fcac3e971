package protocol

import (
	"errors"
	"strings"
	"testing"
)

const sampleSearchResponse = "HTTP/1.1 200 OK\r\n" +
	"LOCATION: http://192.168.1.1:80/desc.xml\r\n" +
	"USN: uuid:abc::upnp:rootdevice\r\n" +
	"SERVER: TestServer/1.0\r\n" +
	"ST: upnp:rootdevice\r\n" +
	"CACHE-CONTROL: max-age=1800\r\n" +
	"\r\n"

func TestBuildSearchRequest(t *testing.T) {
	req := string(BuildSearchRequest(SearchTargetAll, 3))

	wantLines := []string{
		"M-SEARCH * HTTP/1.1",
		"HOST: 239.255.255.250:1900",
		`MAN: "ssdp:discover"`,
		"MX: 3",
		"ST: ssdp:all",
	}
	lines := strings.Split(req, "\r\n")
	for i, want := range wantLines {
		if lines[i] != want {
			t.Errorf("line %d = %q, want %q", i, lines[i], want)
		}
	}

	if !strings.HasSuffix(req, "\r\n\r\n") {
		t.Errorf("request does not end with a blank line: %q", req)
	}
}

func TestBuildSearchRequest_ClampsMX(t *testing.T) {
	tests := []struct {
		mx   int
		want string
	}{
		{0, "MX: 1"},
		{-4, "MX: 1"},
		{3, "MX: 3"},
		{5, "MX: 5"},
		{120, "MX: 5"},
	}

	for _, tt := range tests {
		req := string(BuildSearchRequest(SearchTargetRootDevice, tt.mx))
		if !strings.Contains(req, tt.want+"\r\n") {
			t.Errorf("BuildSearchRequest(mx=%d) missing %q in %q", tt.mx, tt.want, req)
		}
	}
}

func TestParseSearchResponse_Scenario(t *testing.T) {
	got, err := ParseSearchResponse([]byte(sampleSearchResponse))
	if err != nil {
		t.Fatalf("ParseSearchResponse() error = %v", err)
	}

	want := Announcement{
		Location:     "http://192.168.1.1:80/desc.xml",
		USN:          "uuid:abc::upnp:rootdevice",
		Server:       "TestServer/1.0",
		ST:           "upnp:rootdevice",
		CacheControl: "max-age=1800",
	}
	if got != want {
		t.Errorf("ParseSearchResponse() = %+v, want %+v", got, want)
	}

	if got.MaxAge() != 1800 {
		t.Errorf("MaxAge() = %d, want 1800", got.MaxAge())
	}
}

func TestParseSearchResponse(t *testing.T) {
	tests := []struct {
		name         string
		datagram     string
		wantErr      bool
		wantLocation string
	}{
		{
			name:         "lower-case headers and LF line endings",
			datagram:     "HTTP/1.1 200 OK\nlocation: http://10.0.0.1/d.xml\nusn: uuid:1\n\n",
			wantLocation: "http://10.0.0.1/d.xml",
		},
		{
			name:         "value containing colons is split on the first colon only",
			datagram:     "HTTP/1.1 200 OK\r\nLocation:http://10.0.0.2:49152/rootDesc.xml\r\n\r\n",
			wantLocation: "http://10.0.0.2:49152/rootDesc.xml",
		},
		{
			name:         "HTTP/1.0 status line",
			datagram:     "HTTP/1.0 200 OK\r\nLOCATION: http://10.0.0.3/\r\n\r\n",
			wantLocation: "http://10.0.0.3/",
		},
		{
			name:     "missing location",
			datagram: "HTTP/1.1 200 OK\r\nUSN: uuid:abc\r\nST: ssdp:all\r\n\r\n",
			wantErr:  true,
		},
		{
			name:     "empty location",
			datagram: "HTTP/1.1 200 OK\r\nLOCATION:   \r\n\r\n",
			wantErr:  true,
		},
		{
			name:     "non-200 status",
			datagram: "HTTP/1.1 404 Not Found\r\nLOCATION: http://10.0.0.1/\r\n\r\n",
			wantErr:  true,
		},
		{
			name:     "search request echoed back",
			datagram: string(BuildSearchRequest(SearchTargetAll, 3)),
			wantErr:  true,
		},
		{
			name:     "empty datagram",
			datagram: "",
			wantErr:  true,
		},
		{
			name:     "binary noise",
			datagram: "\x00\x01\x02\xff",
			wantErr:  true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseSearchResponse([]byte(tt.datagram))
			if tt.wantErr {
				if !errors.Is(err, ErrMalformedMessage) {
					t.Errorf("ParseSearchResponse() error = %v, want ErrMalformedMessage", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseSearchResponse() error = %v", err)
			}
			if got.Location != tt.wantLocation {
				t.Errorf("Location = %q, want %q", got.Location, tt.wantLocation)
			}
		})
	}
}

func TestParseHeaders_DropsUnknownHeaders(t *testing.T) {
	start, headers := ParseHeaders([]byte("HTTP/1.1 200 OK\r\nEXT:\r\nDATE: today\r\nLocation: http://x/\r\nX-User-Agent: redsonic\r\n\r\n"))

	if start != "HTTP/1.1 200 OK" {
		t.Errorf("start line = %q, want %q", start, "HTTP/1.1 200 OK")
	}
	if len(headers) != 1 {
		t.Errorf("len(headers) = %d, want 1 (%v)", len(headers), headers)
	}
	if headers.Get("LOCATION") != "http://x/" {
		t.Errorf("Get(LOCATION) = %q, want %q", headers.Get("LOCATION"), "http://x/")
	}
}

func TestParseNotification(t *testing.T) {
	tests := []struct {
		name     string
		datagram string
		wantErr  bool
		wantKind PresenceKind
		wantUSN  string
		wantNT   string
	}{
		{
			name: "alive",
			datagram: "NOTIFY * HTTP/1.1\r\nHOST: 239.255.255.250:1900\r\n" +
				"CACHE-CONTROL: max-age=1800\r\nLOCATION: http://192.168.1.20:49152/desc.xml\r\n" +
				"NT: upnp:rootdevice\r\nNTS: ssdp:alive\r\nSERVER: Linux UPnP/1.0\r\n" +
				"USN: uuid:dev1::upnp:rootdevice\r\n\r\n",
			wantKind: PresenceAlive,
			wantUSN:  "uuid:dev1::upnp:rootdevice",
			wantNT:   "upnp:rootdevice",
		},
		{
			name: "update",
			datagram: "NOTIFY * HTTP/1.1\r\nLOCATION: http://192.168.1.20:49152/desc.xml\r\n" +
				"NT: urn:schemas-upnp-org:device:MediaRenderer:1\r\nNTS: ssdp:update\r\n" +
				"USN: uuid:dev1::urn:schemas-upnp-org:device:MediaRenderer:1\r\n\r\n",
			wantKind: PresenceUpdate,
			wantUSN:  "uuid:dev1::urn:schemas-upnp-org:device:MediaRenderer:1",
			wantNT:   "urn:schemas-upnp-org:device:MediaRenderer:1",
		},
		{
			name: "byebye without location",
			datagram: "NOTIFY * HTTP/1.1\r\nHOST: 239.255.255.250:1900\r\n" +
				"NT: upnp:rootdevice\r\nNTS: ssdp:byebye\r\nUSN: uuid:dev1::upnp:rootdevice\r\n\r\n",
			wantKind: PresenceByeBye,
			wantUSN:  "uuid:dev1::upnp:rootdevice",
			wantNT:   "upnp:rootdevice",
		},
		{
			name: "byebye with location still yields byebye",
			datagram: "NOTIFY * HTTP/1.1\r\nLOCATION: http://192.168.1.20/desc.xml\r\n" +
				"NT: upnp:rootdevice\r\nnts: SSDP:BYEBYE\r\nUSN: uuid:dev2\r\n\r\n",
			wantKind: PresenceByeBye,
			wantUSN:  "uuid:dev2",
			wantNT:   "upnp:rootdevice",
		},
		{
			name:     "alive missing location",
			datagram: "NOTIFY * HTTP/1.1\r\nNT: upnp:rootdevice\r\nNTS: ssdp:alive\r\nUSN: uuid:x\r\n\r\n",
			wantErr:  true,
		},
		{
			name:     "byebye missing usn",
			datagram: "NOTIFY * HTTP/1.1\r\nNT: upnp:rootdevice\r\nNTS: ssdp:byebye\r\n\r\n",
			wantErr:  true,
		},
		{
			name:     "missing nts",
			datagram: "NOTIFY * HTTP/1.1\r\nLOCATION: http://x/\r\nUSN: uuid:x\r\n\r\n",
			wantErr:  true,
		},
		{
			name:     "unknown nts",
			datagram: "NOTIFY * HTTP/1.1\r\nLOCATION: http://x/\r\nNTS: ssdp:propchange\r\n\r\n",
			wantErr:  true,
		},
		{
			name:     "search request on the group",
			datagram: string(BuildSearchRequest(SearchTargetAll, 2)),
			wantErr:  true,
		},
		{
			name:     "search response is not a notification",
			datagram: sampleSearchResponse,
			wantErr:  true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ev, err := ParseNotification([]byte(tt.datagram))
			if tt.wantErr {
				if !errors.Is(err, ErrMalformedMessage) {
					t.Errorf("ParseNotification() error = %v, want ErrMalformedMessage", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseNotification() error = %v", err)
			}
			if ev.Kind != tt.wantKind {
				t.Fatalf("Kind = %v, want %v", ev.Kind, tt.wantKind)
			}

			switch ev.Kind {
			case PresenceByeBye:
				usn, nt, ok := ev.ByeBye()
				if !ok || usn != tt.wantUSN || nt != tt.wantNT {
					t.Errorf("ByeBye() = (%q, %q, %v), want (%q, %q, true)", usn, nt, ok, tt.wantUSN, tt.wantNT)
				}
				if _, ok := ev.Alive(); ok {
					t.Error("Alive() reported true for a byebye event")
				}
				if _, ok := ev.Update(); ok {
					t.Error("Update() reported true for a byebye event")
				}
			default:
				if ev.Device.USN != tt.wantUSN {
					t.Errorf("Device.USN = %q, want %q", ev.Device.USN, tt.wantUSN)
				}
				if ev.Device.ST != tt.wantNT {
					t.Errorf("Device.ST = %q, want %q", ev.Device.ST, tt.wantNT)
				}
				if _, _, ok := ev.ByeBye(); ok {
					t.Error("ByeBye() reported true for a presence announcement")
				}
			}
		})
	}
}

func TestAnnouncement_MaxAge(t *testing.T) {
	tests := []struct {
		cacheControl string
		want         int
	}{
		{"max-age=1800", 1800},
		{"MAX-AGE = 120", 120},
		{"no-cache, max-age=60", 60},
		{"max-age=abc", 0},
		{"", 0},
	}

	for _, tt := range tests {
		a := Announcement{CacheControl: tt.cacheControl}
		if got := a.MaxAge(); got != tt.want {
			t.Errorf("MaxAge(%q) = %d, want %d", tt.cacheControl, got, tt.want)
		}
	}
}

func TestPresenceKind_String(t *testing.T) {
	tests := []struct {
		kind PresenceKind
		want string
	}{
		{PresenceAlive, "ssdp:alive"},
		{PresenceByeBye, "ssdp:byebye"},
		{PresenceUpdate, "ssdp:update"},
		{PresenceKind(42), "PresenceKind(42)"},
	}

	for _, tt := range tests {
		if got := tt.kind.String(); got != tt.want {
			t.Errorf("PresenceKind(%d).String() = %q, want %q", int(tt.kind), got, tt.want)
		}
	}
}
