package ssdp

import (
	"context"
	"net"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/muurk/upnpctl/internal/protocol"
)

// responder is a loopback stand-in for devices answering M-SEARCH.
type responder struct {
	conn *net.UDPConn

	mu       sync.Mutex
	requests []string
}

// startResponder answers every request it receives with the output of reply.
func startResponder(t *testing.T, reply func(request string) [][]byte) *responder {
	t.Helper()

	conn, err := net.ListenUDP("udp4", &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1)})
	if err != nil {
		t.Fatalf("ListenUDP() error = %v", err)
	}
	r := &responder{conn: conn}
	t.Cleanup(func() { _ = conn.Close() })

	go func() {
		buf := make([]byte, 2048)
		for {
			n, from, err := conn.ReadFromUDP(buf)
			if err != nil {
				return
			}
			request := string(buf[:n])
			r.mu.Lock()
			r.requests = append(r.requests, request)
			r.mu.Unlock()
			for _, datagram := range reply(request) {
				_, _ = conn.WriteToUDP(datagram, from)
			}
		}
	}()
	return r
}

func (r *responder) addr() *net.UDPAddr {
	return r.conn.LocalAddr().(*net.UDPAddr)
}

func (r *responder) received() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.requests...)
}

func searchResponse(location, usn, st string) []byte {
	return []byte("HTTP/1.1 200 OK\r\n" +
		"CACHE-CONTROL: max-age=1800\r\n" +
		"LOCATION: " + location + "\r\n" +
		"SERVER: Linux/5.10 UPnP/1.0 test/1.0\r\n" +
		"ST: " + st + "\r\n" +
		"USN: " + usn + "\r\n\r\n")
}

func TestNewSearcher_Defaults(t *testing.T) {
	s := NewSearcher(Options{})
	if s.Timeout != DefaultTimeout {
		t.Errorf("Timeout = %v, want %v", s.Timeout, DefaultTimeout)
	}
	if s.MX != protocol.DefaultMX {
		t.Errorf("MX = %d, want %d", s.MX, protocol.DefaultMX)
	}
	if s.destination != protocol.MulticastAddr {
		t.Errorf("destination = %v, want multicast group", s.destination)
	}

	if got := NewSearcher(Options{MX: 30}).MX; got != protocol.MaxMX {
		t.Errorf("MX clamp = %d, want %d", got, protocol.MaxMX)
	}
}

func TestSearch_CollectsResponsesAndDropsGarbage(t *testing.T) {
	r := startResponder(t, func(string) [][]byte {
		return [][]byte{
			searchResponse("http://192.168.1.1:80/desc.xml", "uuid:abc::upnp:rootdevice", "upnp:rootdevice"),
			[]byte("this is not ssdp"),
			[]byte("HTTP/1.1 404 Not Found\r\nLOCATION: http://x/\r\n\r\n"),
			[]byte("HTTP/1.1 200 OK\r\nUSN: uuid:no-location\r\n\r\n"),
			searchResponse("http://192.168.1.2:49152/rootDesc.xml", "uuid:def::upnp:rootdevice", "upnp:rootdevice"),
			searchResponse("http://192.168.1.1:80/desc.xml", "uuid:abc::upnp:rootdevice", "upnp:rootdevice"),
		}
	})

	s := NewSearcher(Options{Timeout: 400 * time.Millisecond, MX: 2, Destination: r.addr()})
	start := time.Now()
	got, err := s.Search(context.Background(), protocol.SearchTargetRootDevice)
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if elapsed := time.Since(start); elapsed < 350*time.Millisecond {
		t.Errorf("Search() returned after %v, before the window closed", elapsed)
	}

	if len(got) != 3 {
		t.Fatalf("Search() returned %d announcements, want 3: %+v", len(got), got)
	}
	if got[0].USN != "uuid:abc::upnp:rootdevice" || got[1].USN != "uuid:def::upnp:rootdevice" {
		t.Errorf("announcements out of arrival order: %+v", got)
	}
	if got[0].Location != "http://192.168.1.1:80/desc.xml" || got[0].MaxAge() != 1800 {
		t.Errorf("first announcement = %+v", got[0])
	}

	requests := r.received()
	if len(requests) != 1 {
		t.Fatalf("responder saw %d requests, want exactly 1", len(requests))
	}
	if !strings.HasPrefix(requests[0], "M-SEARCH * HTTP/1.1\r\n") ||
		!strings.Contains(requests[0], "ST: upnp:rootdevice\r\n") ||
		!strings.Contains(requests[0], "MX: 2\r\n") {
		t.Errorf("unexpected request:\n%s", requests[0])
	}
}

func TestSearch_NoResponses(t *testing.T) {
	r := startResponder(t, func(string) [][]byte { return nil })

	s := NewSearcher(Options{Timeout: 200 * time.Millisecond, Destination: r.addr()})
	got, err := s.DiscoverAll(context.Background())
	if err != nil {
		t.Fatalf("DiscoverAll() error = %v", err)
	}
	if got == nil || len(got) != 0 {
		t.Errorf("DiscoverAll() = %#v, want empty non-nil slice", got)
	}
	if reqs := r.received(); len(reqs) != 1 || !strings.Contains(reqs[0], "ST: ssdp:all\r\n") {
		t.Errorf("requests = %q", reqs)
	}
}

func TestSearch_ContextCancelEndsWindowEarly(t *testing.T) {
	r := startResponder(t, func(string) [][]byte { return nil })

	ctx, cancel := context.WithTimeout(context.Background(), 150*time.Millisecond)
	defer cancel()

	s := NewSearcher(Options{Timeout: 10 * time.Second, Destination: r.addr()})
	start := time.Now()
	if _, err := s.Search(ctx, protocol.SearchTargetAll); err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if elapsed := time.Since(start); elapsed > 2*time.Second {
		t.Errorf("Search() took %v after the context expired", elapsed)
	}
}

func TestSearch_UnknownInterface(t *testing.T) {
	s := NewSearcher(Options{Timeout: 100 * time.Millisecond, Interface: "does-not-exist0"})
	if _, err := s.Search(context.Background(), protocol.SearchTargetAll); err == nil {
		t.Fatal("Search() with an unknown interface should fail")
	}
}

func TestSweep(t *testing.T) {
	r := startResponder(t, func(request string) [][]byte {
		switch {
		case strings.Contains(request, "ST: upnp:rootdevice\r\n"):
			return [][]byte{
				searchResponse("http://192.168.1.1/desc.xml", "uuid:igd::upnp:rootdevice", "upnp:rootdevice"),
				searchResponse("http://192.168.1.9/desc.xml", "uuid:tv::upnp:rootdevice", "upnp:rootdevice"),
			}
		case strings.Contains(request, protocol.URNInternetGatewayDevice1):
			return [][]byte{
				searchResponse("http://192.168.1.1/desc.xml", "uuid:igd::upnp:rootdevice", protocol.URNInternetGatewayDevice1),
				searchResponse("http://192.168.1.1/desc.xml", "uuid:igd::"+protocol.URNInternetGatewayDevice1, protocol.URNInternetGatewayDevice1),
			}
		}
		return nil
	})

	s := NewSearcher(Options{Destination: r.addr()})
	var progress []SweepProgress
	start := time.Now()
	got, err := s.Sweep(context.Background(),
		[]string{protocol.SearchTargetRootDevice, protocol.URNInternetGatewayDevice1},
		2*time.Second,
		func(p SweepProgress) { progress = append(progress, p) },
	)
	if err != nil {
		t.Fatalf("Sweep() error = %v", err)
	}
	elapsed := time.Since(start)
	if elapsed < 1900*time.Millisecond || elapsed > 4*time.Second {
		t.Errorf("Sweep() took %v, want about the 2s budget", elapsed)
	}

	if len(r.received()) != 2 {
		t.Errorf("responder saw %d requests, want one per target", len(r.received()))
	}
	if len(got) != 3 {
		t.Fatalf("Sweep() returned %d announcements, want 3 after de-duplication: %+v", len(got), got)
	}
	if len(progress) != 2 || progress[0].Found != 2 || progress[1].Found != 2 || progress[1].Index != 1 || progress[1].Total != 2 {
		t.Errorf("progress = %+v", progress)
	}
}

func TestSweepWindow(t *testing.T) {
	tests := []struct {
		name    string
		budget  time.Duration
		targets int
		want    time.Duration
	}{
		{"even split", 10 * time.Second, 5, 2 * time.Second},
		{"single target", 3 * time.Second, 1, 3 * time.Second},
		{"short budget raised to the minimum", 2 * time.Second, 5, time.Second},
		{"exact minimum", 5 * time.Second, 5, time.Second},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := sweepWindow(tt.budget, tt.targets); got != tt.want {
				t.Errorf("sweepWindow(%v, %d) = %v, want %v", tt.budget, tt.targets, got, tt.want)
			}
		})
	}
}

func TestDedupe(t *testing.T) {
	in := []protocol.Announcement{
		{USN: "uuid:a", Location: "http://1/"},
		{USN: "uuid:b", Location: "http://2/"},
		{USN: "uuid:a", Location: "http://1/other"},
		{USN: "", Location: "http://3/"},
		{USN: "", Location: "http://3/"},
	}

	got := Dedupe(in)
	if len(got) != 3 {
		t.Fatalf("Dedupe() = %+v, want 3 entries", got)
	}
	if got[0].Location != "http://1/" {
		t.Errorf("first seen should win, got %q", got[0].Location)
	}
}
