// Package description retrieves UPnP device descriptions and service schemas over HTTP.
package description

import (
	"context"
	"net/http"

	"go.uber.org/zap"

	"github.com/muurk/upnpctl/internal/logging"
	"github.com/muurk/upnpctl/internal/protocol"
	"github.com/muurk/upnpctl/internal/transport"
)

const acceptXML = "text/xml, application/xml, */*"

// Fetcher retrieves description documents. It is stateless apart from its client.
type Fetcher struct {
	client *transport.Client
}

// NewFetcher creates a fetcher on the shared HTTP client
func NewFetcher(client *transport.Client) *Fetcher {
	return &Fetcher{client: client}
}

// GetDeviceDescription fetches and parses the document at location. Service
// URLs are resolved against the document's URLBase when present, otherwise
// against location.
func (f *Fetcher) GetDeviceDescription(ctx context.Context, location string) (protocol.DeviceDescription, error) {
	desc, err := f.GetRawDeviceDescription(ctx, location)
	if err != nil {
		return protocol.DeviceDescription{}, err
	}

	base := location
	if desc.URLBase != "" {
		base = desc.URLBase
	}
	resolved, err := desc.ResolveServices(base)
	if err != nil {
		return protocol.DeviceDescription{}, transport.NewParseError(location, err)
	}
	return resolved, nil
}

// GetRawDeviceDescription fetches and parses the document at location without
// resolving service URLs.
func (f *Fetcher) GetRawDeviceDescription(ctx context.Context, location string) (protocol.DeviceDescription, error) {
	body, err := f.get(ctx, "fetch", location)
	if err != nil {
		return protocol.DeviceDescription{}, err
	}
	if len(body) == 0 {
		return protocol.DeviceDescription{}, &transport.Error{
			Kind:       transport.KindFetch,
			Op:         "fetch",
			Message:    "empty description document",
			URL:        location,
			StatusCode: http.StatusOK,
		}
	}

	desc, err := protocol.ParseDeviceDescription(body)
	if err != nil {
		logging.LogRawBytes("Unparseable device description", body)
		return protocol.DeviceDescription{}, transport.NewParseError(location, err)
	}

	logging.Debug("Fetched device description",
		zap.String("location", location),
		zap.String("device_type", desc.DeviceType),
		zap.String("udn", desc.UDN),
		zap.Int("services", len(desc.AllServices())),
	)
	return desc, nil
}

// GetServiceSchema resolves ref against baseURL and returns the SCPD document verbatim.
func (f *Fetcher) GetServiceSchema(ctx context.Context, baseURL, ref string) (string, error) {
	target, err := protocol.ResolveURL(baseURL, ref)
	if err != nil {
		return "", &transport.Error{
			Kind:    transport.KindFetch,
			Op:      "schema",
			Message: "cannot resolve schema URL",
			URL:     ref,
			Err:     err,
		}
	}
	if target == "" {
		return "", &transport.Error{
			Kind:    transport.KindFetch,
			Op:      "schema",
			Message: "empty schema URL",
			URL:     baseURL,
		}
	}

	body, err := f.get(ctx, "schema", target)
	if err != nil {
		return "", err
	}
	return string(body), nil
}

func (f *Fetcher) get(ctx context.Context, op, target string) ([]byte, error) {
	resp, err := f.client.Do(ctx, transport.Request{
		Op:     op,
		Method: http.MethodGet,
		URL:    target,
		Header: http.Header{"Accept": []string{acceptXML}},
	})
	if err != nil {
		return nil, err
	}
	if !resp.OK() {
		return nil, transport.NewStatusError(transport.KindFetch, op, target, resp.StatusCode, resp.Body)
	}
	return resp.Body, nil
}
