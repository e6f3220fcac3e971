// Package protocol implements the UPnP control-point wire formats.
//
// Everything in this package is pure: it builds and parses the text and XML
// messages exchanged with UPnP devices but never touches the network. The
// transports live in the ssdp, description, soap and gena packages.
//
// # SSDP (discovery)
//
// Search requests are sent to the multicast group 239.255.255.250:1900:
//
//	M-SEARCH * HTTP/1.1
//	HOST: 239.255.255.250:1900
//	MAN: "ssdp:discover"
//	MX: 3
//	ST: ssdp:all
//
// Devices answer with unicast HTTP-style responses and announce themselves
// with NOTIFY messages. Both are parsed header-by-header: each line is split
// on its first colon, the key is matched case-insensitively and only the
// headers a control point needs are retained (LOCATION, USN, SERVER, ST, NT,
// CACHE-CONTROL, NTS). A response without LOCATION is rejected with
// ErrMalformedMessage.
//
// NOTIFY messages decode into a PresenceEvent, a closed variant over
// ssdp:alive, ssdp:byebye and ssdp:update.
//
// # SOAP (control)
//
// BuildActionRequest produces the envelope for an action call. Argument values
// are always XML-escaped. ParseActionResponse walks the response as an XML
// token stream and returns the direct children of the action-response element
// in document order:
//
//	result, err := protocol.ParseActionResponse(body)
//	if err != nil {
//	    return err
//	}
//	ip := result.Get("NewExternalIPAddress")
//
// # GENA (eventing)
//
// FormatTimeout, ParseTimeout and FormatCallback encode the SUBSCRIBE headers,
// and ParsePropertySet decodes the body of an event notification.
//
// # Device descriptions
//
// ParseDeviceDescription decodes the root › device document, including
// embedded devices, into a DeviceDescription whose service list preserves
// document order.
package protocol
