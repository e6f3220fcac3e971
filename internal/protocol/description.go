package protocol

import (
	"fmt"
	"net/url"
	"strings"

	"go.uber.org/zap"

	"github.com/muurk/upnpctl/internal/logging"
)

// DeviceDescription is the parsed device element of a description document.
type DeviceDescription struct {
	DeviceType       string              `json:"device_type"`
	FriendlyName     string              `json:"friendly_name"`
	Manufacturer     string              `json:"manufacturer"`
	ManufacturerURL  string              `json:"manufacturer_url,omitempty"`
	ModelDescription string              `json:"model_description,omitempty"`
	ModelName        string              `json:"model_name"`
	ModelNumber      string              `json:"model_number,omitempty"`
	ModelURL         string              `json:"model_url,omitempty"`
	SerialNumber     string              `json:"serial_number,omitempty"`
	UDN              string              `json:"udn"`
	PresentationURL  string              `json:"presentation_url,omitempty"`
	Services         []ServiceDescriptor `json:"services"`
	Devices          []DeviceDescription `json:"devices,omitempty"`

	// URLBase is only set on the root device, and only by UPnP 1.0 devices.
	URLBase string `json:"url_base,omitempty"`
}

// ServiceDescriptor describes one service advertised by a device.
// URLs may be relative to the description location until resolved.
type ServiceDescriptor struct {
	ServiceType string `json:"service_type"`
	ServiceID   string `json:"service_id"`
	SCPDURL     string `json:"scpd_url"`
	ControlURL  string `json:"control_url"`
	EventSubURL string `json:"event_sub_url"`
}

// Resolve returns a copy with SCPDURL, ControlURL and EventSubURL made absolute.
func (s ServiceDescriptor) Resolve(base string) (ServiceDescriptor, error) {
	var err error
	if s.SCPDURL, err = ResolveURL(base, s.SCPDURL); err != nil {
		return s, err
	}
	if s.ControlURL, err = ResolveURL(base, s.ControlURL); err != nil {
		return s, err
	}
	if s.EventSubURL, err = ResolveURL(base, s.EventSubURL); err != nil {
		return s, err
	}
	return s, nil
}

// AllServices returns the services of the device and every embedded device,
// depth first, in document order.
func (d DeviceDescription) AllServices() []ServiceDescriptor {
	out := make([]ServiceDescriptor, 0, len(d.Services))
	out = append(out, d.Services...)
	for _, child := range d.Devices {
		out = append(out, child.AllServices()...)
	}
	return out
}

// FindService returns the first service (depth first) whose type starts with prefix.
// A prefix without version such as "urn:schemas-upnp-org:service:WANIPConnection"
// matches any version.
func (d DeviceDescription) FindService(prefix string) (ServiceDescriptor, bool) {
	for _, svc := range d.AllServices() {
		if strings.HasPrefix(svc.ServiceType, prefix) {
			return svc, true
		}
	}
	return ServiceDescriptor{}, false
}

// ResolveServices returns a copy of the tree with every service URL resolved against base.
func (d DeviceDescription) ResolveServices(base string) (DeviceDescription, error) {
	out := d
	out.Services = make([]ServiceDescriptor, 0, len(d.Services))
	for _, svc := range d.Services {
		resolved, err := svc.Resolve(base)
		if err != nil {
			return d, err
		}
		out.Services = append(out.Services, resolved)
	}
	if len(d.Devices) > 0 {
		out.Devices = make([]DeviceDescription, 0, len(d.Devices))
		for _, child := range d.Devices {
			resolved, err := child.ResolveServices(base)
			if err != nil {
				return d, err
			}
			out.Devices = append(out.Devices, resolved)
		}
	}
	return out, nil
}

// ResolveURL resolves ref against base following RFC 3986. Absolute refs are
// returned unchanged and an empty ref stays empty.
func ResolveURL(base, ref string) (string, error) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return "", nil
	}
	refURL, err := url.Parse(ref)
	if err != nil {
		return "", fmt.Errorf("invalid URL %q: %w", ref, err)
	}
	if refURL.IsAbs() {
		return refURL.String(), nil
	}
	baseURL, err := url.Parse(strings.TrimSpace(base))
	if err != nil {
		return "", fmt.Errorf("invalid base URL %q: %w", base, err)
	}
	if !baseURL.IsAbs() {
		return "", fmt.Errorf("base URL %q is not absolute", base)
	}
	return baseURL.ResolveReference(refURL).String(), nil
}

type xmlRoot struct {
	URLBase string     `xml:"URLBase"`
	Device  *xmlDevice `xml:"device"`
}

type xmlDevice struct {
	DeviceType       string       `xml:"deviceType"`
	FriendlyName     string       `xml:"friendlyName"`
	Manufacturer     string       `xml:"manufacturer"`
	ManufacturerURL  string       `xml:"manufacturerURL"`
	ModelDescription string       `xml:"modelDescription"`
	ModelName        string       `xml:"modelName"`
	ModelNumber      string       `xml:"modelNumber"`
	ModelURL         string       `xml:"modelURL"`
	SerialNumber     string       `xml:"serialNumber"`
	UDN              string       `xml:"UDN"`
	PresentationURL  string       `xml:"presentationURL"`
	Services         []xmlService `xml:"serviceList>service"`
	Devices          []xmlDevice  `xml:"deviceList>device"`
}

type xmlService struct {
	ServiceType string `xml:"serviceType"`
	ServiceID   string `xml:"serviceId"`
	SCPDURL     string `xml:"SCPDURL"`
	ControlURL  string `xml:"controlURL"`
	EventSubURL string `xml:"eventSubURL"`
}

// ParseDeviceDescription decodes a root › device description document.
// deviceType and UDN are required on the root device; every other field
// defaults to "". Embedded devices lacking either are skipped.
func ParseDeviceDescription(body []byte) (DeviceDescription, error) {
	var root xmlRoot
	dec := newXMLDecoder(body)

	start, err := nextStart(dec)
	if err != nil {
		return DeviceDescription{}, newParseError(DocDeviceDescription, "missing root element", err)
	}
	if start.Name.Local != "root" {
		return DeviceDescription{}, newParseError(DocDeviceDescription, fmt.Sprintf("unexpected root element <%s>", start.Name.Local), nil)
	}
	if err := dec.DecodeElement(&root, &start); err != nil {
		return DeviceDescription{}, newParseError(DocDeviceDescription, "malformed document", err)
	}
	if root.Device == nil {
		return DeviceDescription{}, newParseError(DocDeviceDescription, "missing device element", nil)
	}

	desc, err := convertDevice(*root.Device)
	if err != nil {
		return DeviceDescription{}, err
	}
	desc.URLBase = strings.TrimSpace(root.URLBase)
	return desc, nil
}

func convertDevice(d xmlDevice) (DeviceDescription, error) {
	desc := DeviceDescription{
		DeviceType:       strings.TrimSpace(d.DeviceType),
		FriendlyName:     strings.TrimSpace(d.FriendlyName),
		Manufacturer:     strings.TrimSpace(d.Manufacturer),
		ManufacturerURL:  strings.TrimSpace(d.ManufacturerURL),
		ModelDescription: strings.TrimSpace(d.ModelDescription),
		ModelName:        strings.TrimSpace(d.ModelName),
		ModelNumber:      strings.TrimSpace(d.ModelNumber),
		ModelURL:         strings.TrimSpace(d.ModelURL),
		SerialNumber:     strings.TrimSpace(d.SerialNumber),
		UDN:              strings.TrimSpace(d.UDN),
		PresentationURL:  strings.TrimSpace(d.PresentationURL),
		Services:         make([]ServiceDescriptor, 0, len(d.Services)),
	}
	if desc.DeviceType == "" {
		return DeviceDescription{}, newParseError(DocDeviceDescription, "device is missing deviceType", nil)
	}
	if desc.UDN == "" {
		return DeviceDescription{}, newParseError(DocDeviceDescription, "device is missing UDN", nil)
	}

	for _, s := range d.Services {
		desc.Services = append(desc.Services, ServiceDescriptor{
			ServiceType: strings.TrimSpace(s.ServiceType),
			ServiceID:   strings.TrimSpace(s.ServiceID),
			SCPDURL:     strings.TrimSpace(s.SCPDURL),
			ControlURL:  strings.TrimSpace(s.ControlURL),
			EventSubURL: strings.TrimSpace(s.EventSubURL),
		})
	}
	for _, child := range d.Devices {
		embedded, err := convertDevice(child)
		if err != nil {
			logging.Warn("Skipping embedded device",
				zap.String("parent_udn", desc.UDN),
				zap.String("device_type", strings.TrimSpace(child.DeviceType)),
				zap.String("friendly_name", strings.TrimSpace(child.FriendlyName)),
				zap.Error(err),
			)
			continue
		}
		desc.Devices = append(desc.Devices, embedded)
	}
	return desc, nil
}
