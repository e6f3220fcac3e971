package soap

import (
	"context"
	"encoding/xml"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/muurk/upnpctl/internal/protocol"
	"github.com/muurk/upnpctl/internal/transport"
)

const externalIPResponse = `<?xml version="1.0"?>
<s:Envelope xmlns:s="http://schemas.xmlsoap.org/soap/envelope/" s:encodingStyle="http://schemas.xmlsoap.org/soap/encoding/">
<s:Body><u:GetExternalIPAddressResponse xmlns:u="urn:schemas-upnp-org:service:WANIPConnection:1">
<NewExternalIPAddress>203.0.113.7</NewExternalIPAddress>
</u:GetExternalIPAddressResponse></s:Body></s:Envelope>`

const conflictFault = `<?xml version="1.0"?>
<s:Envelope xmlns:s="http://schemas.xmlsoap.org/soap/envelope/"><s:Body><s:Fault>
<faultcode>s:Client</faultcode><faultstring>UPnPError</faultstring>
<detail><UPnPError xmlns="urn:schemas-upnp-org:control-1-0"><errorCode>718</errorCode>
<errorDescription>ConflictInMappingEntry</errorDescription></UPnPError></detail>
</s:Fault></s:Body></s:Envelope>`

type capturedRequest struct {
	method      string
	contentType string
	soapAction  string
	body        []byte
}

func newControlServer(t *testing.T, status int, response string) (*httptest.Server, *capturedRequest) {
	t.Helper()
	captured := &capturedRequest{}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		captured.method = r.Method
		captured.contentType = r.Header.Get("Content-Type")
		captured.soapAction = r.Header.Get("SOAPAction")
		captured.body, _ = io.ReadAll(r.Body)
		w.Header().Set("Content-Type", `text/xml; charset="utf-8"`)
		w.WriteHeader(status)
		_, _ = w.Write([]byte(response))
	}))
	t.Cleanup(server.Close)
	return server, captured
}

func newTestInvoker() *Invoker {
	return NewInvoker(transport.NewClient(transport.DefaultOptions()))
}

func TestInvoke_Scenario(t *testing.T) {
	server, captured := newControlServer(t, http.StatusOK, externalIPResponse)

	body, err := newTestInvoker().Invoke(context.Background(), server.URL+"/ctl/WANIP",
		protocol.URNWANIPConnection1, "GetExternalIPAddress", nil)
	if err != nil {
		t.Fatalf("Invoke() error = %v", err)
	}
	if body != externalIPResponse {
		t.Errorf("Invoke() did not return the raw body")
	}

	if captured.method != http.MethodPost {
		t.Errorf("method = %q, want POST", captured.method)
	}
	if captured.contentType != `text/xml; charset="utf-8"` {
		t.Errorf("Content-Type = %q", captured.contentType)
	}
	if captured.soapAction != `"urn:schemas-upnp-org:service:WANIPConnection:1#GetExternalIPAddress"` {
		t.Errorf("SOAPAction = %q", captured.soapAction)
	}

	var env struct {
		Body struct {
			Action struct {
				XMLName xml.Name
			} `xml:",any"`
		} `xml:"Body"`
	}
	if err := xml.Unmarshal(captured.body, &env); err != nil {
		t.Fatalf("request body is not XML: %v", err)
	}
	if env.Body.Action.XMLName.Local != "GetExternalIPAddress" ||
		env.Body.Action.XMLName.Space != protocol.URNWANIPConnection1 {
		t.Errorf("action element = %+v", env.Body.Action.XMLName)
	}

	result, err := ParseResponse(body)
	if err != nil {
		t.Fatalf("ParseResponse() error = %v", err)
	}
	if got := result.Get("NewExternalIPAddress"); got != "203.0.113.7" {
		t.Errorf("NewExternalIPAddress = %q", got)
	}
}

func TestInvoke_FaultIsActionError(t *testing.T) {
	server, _ := newControlServer(t, http.StatusInternalServerError, conflictFault)

	_, err := newTestInvoker().Invoke(context.Background(), server.URL, protocol.URNWANIPConnection1,
		"AddPortMapping", protocol.Arguments{{Name: "NewExternalPort", Value: "8080"}})
	if !transport.IsActionError(err) {
		t.Fatalf("Invoke() error = %v, want action error", err)
	}

	var terr *transport.Error
	if !errors.As(err, &terr) {
		t.Fatal("error is not a *transport.Error")
	}
	if terr.StatusCode != http.StatusInternalServerError {
		t.Errorf("StatusCode = %d, want 500", terr.StatusCode)
	}
	if terr.Body != conflictFault {
		t.Errorf("Body not carried on the error")
	}
	if terr.Fault == nil || terr.Fault.UPnPErrorCode != 718 {
		t.Errorf("Fault = %+v, want 718", terr.Fault)
	}
}

func TestInvoke_RejectsInvalidNames(t *testing.T) {
	server, captured := newControlServer(t, http.StatusOK, externalIPResponse)

	tests := []struct {
		name   string
		action string
		args   protocol.Arguments
	}{
		{"argument name with space", "AddPortMapping", protocol.Arguments{{Name: "a b", Value: "1"}}},
		{"action name with space", "Add Port", nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := newTestInvoker().Invoke(context.Background(), server.URL,
				protocol.URNWANIPConnection1, tt.action, tt.args)
			if err == nil {
				t.Fatal("Invoke() error = nil, want invalid name error")
			}
		})
	}
	if captured.method != "" {
		t.Errorf("request was sent with method %s, want none", captured.method)
	}
}

func TestInvokeAndParse(t *testing.T) {
	server, _ := newControlServer(t, http.StatusOK, externalIPResponse)

	result, err := newTestInvoker().InvokeAndParse(context.Background(), server.URL,
		protocol.URNWANIPConnection1, "GetExternalIPAddress", nil)
	if err != nil {
		t.Fatalf("InvokeAndParse() error = %v", err)
	}
	if result.Len() != 1 || result.Names()[0] != "NewExternalIPAddress" {
		t.Errorf("result = %v", result.Map())
	}

	bad, _ := newControlServer(t, http.StatusOK, "<html/>")
	if _, err := newTestInvoker().InvokeAndParse(context.Background(), bad.URL,
		protocol.URNWANIPConnection1, "GetExternalIPAddress", nil); !transport.IsParseError(err) {
		t.Errorf("InvokeAndParse() error = %v, want parse error", err)
	}
}

func TestParseResponse_Malformed(t *testing.T) {
	if _, err := ParseResponse("<s:Envelope"); !transport.IsParseError(err) {
		t.Errorf("ParseResponse() error = %v, want parse error", err)
	}
}
