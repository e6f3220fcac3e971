package description

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/muurk/upnpctl/internal/protocol"
	"github.com/muurk/upnpctl/internal/transport"
)

const routerDescription = `<?xml version="1.0"?>
<root xmlns="urn:schemas-upnp-org:device-1-0">
  <specVersion><major>1</major><minor>0</minor></specVersion>
  <device>
    <deviceType>urn:schemas-upnp-org:device:InternetGatewayDevice:1</deviceType>
    <friendlyName>Test Router</friendlyName>
    <manufacturer>Acme</manufacturer>
    <modelName>R-1</modelName>
    <UDN>uuid:router-1</UDN>
    <serviceList>
      <service>
        <serviceType>urn:schemas-upnp-org:service:WANIPConnection:1</serviceType>
        <serviceId>urn:upnp-org:serviceId:WANIPConn1</serviceId>
        <SCPDURL>/WANIPCn.xml</SCPDURL>
        <controlURL>/ctl/WANIP</controlURL>
        <eventSubURL>/evt/WANIP</eventSubURL>
      </service>
    </serviceList>
  </device>
</root>`

const scpd = `<?xml version="1.0"?>
<scpd xmlns="urn:schemas-upnp-org:service-1-0"><actionList><action><name>GetExternalIPAddress</name></action></actionList></scpd>`

func newTestFetcher() *Fetcher {
	return NewFetcher(transport.NewClient(transport.DefaultOptions()))
}

func newDeviceServer(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/desc.xml", func(w http.ResponseWriter, r *http.Request) {
		if !strings.Contains(r.Header.Get("Accept"), "text/xml") {
			t.Errorf("Accept = %q", r.Header.Get("Accept"))
		}
		w.Header().Set("Content-Type", "text/xml")
		_, _ = w.Write([]byte(routerDescription))
	})
	mux.HandleFunc("/WANIPCn.xml", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(scpd))
	})
	mux.HandleFunc("/empty.xml", func(w http.ResponseWriter, r *http.Request) {})
	mux.HandleFunc("/html", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("<html><body>login</body></html>"))
	})
	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)
	return server
}

func TestGetDeviceDescription_ResolvesServiceURLs(t *testing.T) {
	server := newDeviceServer(t)

	desc, err := newTestFetcher().GetDeviceDescription(context.Background(), server.URL+"/desc.xml")
	if err != nil {
		t.Fatalf("GetDeviceDescription() error = %v", err)
	}

	if desc.FriendlyName != "Test Router" || desc.UDN != "uuid:router-1" {
		t.Errorf("desc = %+v", desc)
	}
	if len(desc.Services) != 1 {
		t.Fatalf("Services = %+v", desc.Services)
	}
	svc := desc.Services[0]
	if svc.ControlURL != server.URL+"/ctl/WANIP" {
		t.Errorf("ControlURL = %q, want %q", svc.ControlURL, server.URL+"/ctl/WANIP")
	}
	if svc.EventSubURL != server.URL+"/evt/WANIP" || svc.SCPDURL != server.URL+"/WANIPCn.xml" {
		t.Errorf("service URLs not resolved: %+v", svc)
	}
}

func TestGetDeviceDescription_URLBase(t *testing.T) {
	body := strings.Replace(routerDescription, "<specVersion>",
		"<URLBase>http://10.1.1.1:5431/</URLBase><specVersion>", 1)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(body))
	}))
	defer server.Close()

	desc, err := newTestFetcher().GetDeviceDescription(context.Background(), server.URL+"/dyndev/uuid:1")
	if err != nil {
		t.Fatalf("GetDeviceDescription() error = %v", err)
	}
	if got := desc.Services[0].ControlURL; got != "http://10.1.1.1:5431/ctl/WANIP" {
		t.Errorf("ControlURL = %q, want URLBase-relative", got)
	}
}

func TestGetRawDeviceDescription_KeepsRelativeURLs(t *testing.T) {
	server := newDeviceServer(t)

	desc, err := newTestFetcher().GetRawDeviceDescription(context.Background(), server.URL+"/desc.xml")
	if err != nil {
		t.Fatalf("GetRawDeviceDescription() error = %v", err)
	}
	if got := desc.Services[0].ControlURL; got != "/ctl/WANIP" {
		t.Errorf("ControlURL = %q, want raw /ctl/WANIP", got)
	}
}

func TestGetDeviceDescription_Errors(t *testing.T) {
	server := newDeviceServer(t)

	tests := []struct {
		name  string
		url   string
		check func(error) bool
		want  int
	}{
		{"not found", server.URL + "/missing.xml", transport.IsFetchError, http.StatusNotFound},
		{"empty body", server.URL + "/empty.xml", transport.IsFetchError, http.StatusOK},
		{"not a description", server.URL + "/html", transport.IsParseError, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := newTestFetcher().GetDeviceDescription(context.Background(), tt.url)
			if !tt.check(err) {
				t.Fatalf("GetDeviceDescription() error = %v", err)
			}
			var terr *transport.Error
			if errors.As(err, &terr) && terr.StatusCode != tt.want {
				t.Errorf("StatusCode = %d, want %d", terr.StatusCode, tt.want)
			}
		})
	}

	t.Run("parse error wraps codec error", func(t *testing.T) {
		_, err := newTestFetcher().GetDeviceDescription(context.Background(), server.URL+"/html")
		var perr *protocol.ParseError
		if !errors.As(err, &perr) || perr.Doc != protocol.DocDeviceDescription {
			t.Errorf("error chain = %v, want protocol.ParseError", err)
		}
	})
}

func TestGetServiceSchema(t *testing.T) {
	server := newDeviceServer(t)
	f := newTestFetcher()

	got, err := f.GetServiceSchema(context.Background(), server.URL+"/desc.xml", "/WANIPCn.xml")
	if err != nil {
		t.Fatalf("GetServiceSchema() error = %v", err)
	}
	if got != scpd {
		t.Errorf("schema body not returned verbatim: %q", got)
	}

	if _, err := f.GetServiceSchema(context.Background(), server.URL+"/desc.xml", "/nope.xml"); !transport.IsFetchError(err) {
		t.Errorf("missing schema error = %v, want fetch error", err)
	}
	if _, err := f.GetServiceSchema(context.Background(), "/relative", "also-relative"); !transport.IsFetchError(err) {
		t.Errorf("unresolvable schema error = %v, want fetch error", err)
	}
}

func TestGetServiceSchema_TooLarge(t *testing.T) {
	server := newDeviceServer(t)
	client := transport.NewClient(transport.DefaultOptions())
	client.MaxBodySize = int64(len(scpd) - 1)
	f := NewFetcher(client)

	got, err := f.GetServiceSchema(context.Background(), server.URL+"/desc.xml", "/WANIPCn.xml")
	if !transport.IsFetchError(err) {
		t.Fatalf("GetServiceSchema() error = %v, want fetch error", err)
	}
	if got != "" {
		t.Errorf("GetServiceSchema() returned %d bytes of a truncated schema", len(got))
	}
}
