package transport

import (
	"errors"
	"fmt"
	"net"
	"net/url"
	"os"
	"strings"
	"syscall"

	"github.com/muurk/upnpctl/internal/protocol"
)

// Kind is the category of a control-point failure
type Kind int

const (
	// KindNetwork covers socket, connect, DNS and timeout failures.
	KindNetwork Kind = iota
	// KindFetch is a non-2xx or empty response to a description or schema GET.
	KindFetch
	// KindAction is a non-2xx response to a SOAP action POST.
	KindAction
	// KindSubscribe is a failed SUBSCRIBE (initial or renewal).
	KindSubscribe
	// KindUnsubscribe is a non-2xx response to UNSUBSCRIBE.
	KindUnsubscribe
	// KindParse is a structurally invalid description or action response.
	KindParse
	// KindEventParse is a structurally invalid event property set.
	KindEventParse
)

// NetworkErrorSubtype provides more specific network error classification
type NetworkErrorSubtype int

const (
	NetworkErrorGeneral NetworkErrorSubtype = iota
	NetworkErrorTimeout
	NetworkErrorConnectionRefused
	NetworkErrorDNS
	NetworkErrorHostUnreachable
	NetworkErrorNetworkUnreachable
)

// String returns a human-readable name for the kind
func (k Kind) String() string {
	switch k {
	case KindNetwork:
		return "Network Error"
	case KindFetch:
		return "Fetch Error"
	case KindAction:
		return "Action Error"
	case KindSubscribe:
		return "Subscribe Error"
	case KindUnsubscribe:
		return "Unsubscribe Error"
	case KindParse:
		return "Parse Error"
	case KindEventParse:
		return "Event Parse Error"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

// Error is returned by every network-facing operation of the control point.
type Error struct {
	Kind           Kind                // Category of error
	Op             string              // Operation name, e.g. "fetch", "action", "subscribe"
	Message        string              // Human-readable error message
	URL            string              // Target URL (if any)
	StatusCode     int                 // HTTP status code (if applicable)
	Body           string              // Response body (if any)
	Err            error               // Underlying error (if any)
	NetworkSubtype NetworkErrorSubtype // More specific network error type
	Retryable      bool                // Whether repeating the call may succeed
	Fault          *protocol.Fault     // Decoded SOAP fault for action errors
}

// Error implements the error interface
func (e *Error) Error() string {
	msg := fmt.Sprintf("%s: %s", e.Kind, e.Message)
	if e.URL != "" {
		msg += " (" + e.URL + ")"
	}
	if e.Fault != nil {
		msg += ": " + e.Fault.Error()
	}
	if e.Err != nil {
		msg += fmt.Sprintf(" (caused by: %v)", e.Err)
	}
	return msg
}

// Unwrap returns the underlying error for error chain inspection
func (e *Error) Unwrap() error {
	return e.Err
}

// ClassifyNetworkError analyzes an error and returns a network Error with a subtype
func ClassifyNetworkError(err error, target string) *Error {
	if err == nil {
		return nil
	}

	if os.IsTimeout(err) {
		return &Error{
			Kind:           KindNetwork,
			Message:        "Request timed out",
			URL:            target,
			Err:            err,
			NetworkSubtype: NetworkErrorTimeout,
			Retryable:      true,
		}
	}

	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return &Error{
			Kind:           KindNetwork,
			Message:        fmt.Sprintf("DNS resolution failed for %s", dnsErr.Name),
			URL:            target,
			Err:            err,
			NetworkSubtype: NetworkErrorDNS,
			Retryable:      false,
		}
	}

	var opErr *net.OpError
	if errors.As(err, &opErr) {
		switch {
		case errors.Is(opErr.Err, syscall.ECONNREFUSED):
			return &Error{
				Kind:           KindNetwork,
				Message:        "Device refused connection",
				URL:            target,
				Err:            err,
				NetworkSubtype: NetworkErrorConnectionRefused,
				Retryable:      true,
			}
		case errors.Is(opErr.Err, syscall.EHOSTUNREACH):
			return &Error{
				Kind:           KindNetwork,
				Message:        "Host unreachable",
				URL:            target,
				Err:            err,
				NetworkSubtype: NetworkErrorHostUnreachable,
				Retryable:      true,
			}
		case errors.Is(opErr.Err, syscall.ENETUNREACH):
			return &Error{
				Kind:           KindNetwork,
				Message:        "Network unreachable",
				URL:            target,
				Err:            err,
				NetworkSubtype: NetworkErrorNetworkUnreachable,
				Retryable:      true,
			}
		}
	}

	var urlErr *url.Error
	if errors.As(err, &urlErr) && urlErr.Err != nil && urlErr.Err != err {
		return ClassifyNetworkError(urlErr.Err, target)
	}

	return &Error{
		Kind:           KindNetwork,
		Message:        "Network error occurred",
		URL:            target,
		Err:            err,
		NetworkSubtype: NetworkErrorGeneral,
		Retryable:      true,
	}
}

// NewNetworkError creates a network-level error with automatic classification
func NewNetworkError(op, target, message string, err error) *Error {
	classified := ClassifyNetworkError(err, target)
	if classified == nil {
		classified = &Error{Kind: KindNetwork, URL: target, Retryable: true}
	}
	classified.Op = op
	classified.Message = message
	return classified
}

// NewStatusError creates an error for a response whose status is not 2xx.
func NewStatusError(kind Kind, op, target string, statusCode int, body []byte) *Error {
	return &Error{
		Kind:       kind,
		Op:         op,
		Message:    fmt.Sprintf("unexpected status code: %d", statusCode),
		URL:        target,
		StatusCode: statusCode,
		Body:       string(body),
		Retryable:  statusCode >= 500,
	}
}

// NewBodyTooLargeError reports a response body over limit bytes. The kind
// follows the operation: action, subscribe and renew, unsubscribe, or fetch
// for everything else.
func NewBodyTooLargeError(op, target string, statusCode int, limit int64) *Error {
	kind := KindFetch
	switch op {
	case "action":
		kind = KindAction
	case "subscribe", "renew":
		kind = KindSubscribe
	case "unsubscribe":
		kind = KindUnsubscribe
	}
	return &Error{
		Kind:       kind,
		Op:         op,
		Message:    fmt.Sprintf("response body exceeds %d bytes", limit),
		URL:        target,
		StatusCode: statusCode,
		Retryable:  false,
	}
}

// NewActionError creates an action error, attaching the SOAP fault when the body carries one.
func NewActionError(target string, statusCode int, body []byte) *Error {
	e := NewStatusError(KindAction, "action", target, statusCode, body)
	if fault, ok := protocol.ParseFault(body); ok {
		e.Fault = fault
		e.Retryable = false
	}
	return e
}

// NewParseError wraps a description or action-response decode failure
func NewParseError(target string, err error) *Error {
	return &Error{
		Kind:      KindParse,
		Op:        "parse",
		Message:   "failed to parse response",
		URL:       target,
		Err:       err,
		Retryable: false,
	}
}

// NewEventParseError wraps a property-set decode failure
func NewEventParseError(err error) *Error {
	return &Error{
		Kind:      KindEventParse,
		Op:        "event",
		Message:   "failed to parse event payload",
		Err:       err,
		Retryable: false,
	}
}

func kindOf(err error) (Kind, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind, true
	}
	return 0, false
}

func hasKind(err error, kind Kind) bool {
	k, ok := kindOf(err)
	return ok && k == kind
}

// IsNetworkError checks if an error is a network error (including timeout, connection refused, DNS, etc.)
func IsNetworkError(err error) bool { return hasKind(err, KindNetwork) }

// IsFetchError checks if an error is a fetch error
func IsFetchError(err error) bool { return hasKind(err, KindFetch) }

// IsActionError checks if an error is an action error
func IsActionError(err error) bool { return hasKind(err, KindAction) }

// IsSubscribeError checks if an error is a subscribe or renew error
func IsSubscribeError(err error) bool { return hasKind(err, KindSubscribe) }

// IsUnsubscribeError checks if an error is an unsubscribe error
func IsUnsubscribeError(err error) bool { return hasKind(err, KindUnsubscribe) }

// IsParseError checks if an error is a description or action-response parse error
func IsParseError(err error) bool { return hasKind(err, KindParse) }

// IsEventParseError checks if an error is an event payload parse error
func IsEventParseError(err error) bool { return hasKind(err, KindEventParse) }

// IsTimeout reports whether the error is a network timeout
func IsTimeout(err error) bool {
	var e *Error
	return errors.As(err, &e) && e.Kind == KindNetwork && e.NetworkSubtype == NetworkErrorTimeout
}

// IsRetryable checks if an error may succeed when repeated
func IsRetryable(err error) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Retryable
	}
	return false
}

// TroubleshootingHint returns user-friendly troubleshooting advice for an error
func TroubleshootingHint(err error) string {
	var e *Error
	if !errors.As(err, &e) {
		return "An unexpected error occurred. Please try again."
	}

	switch e.Kind {
	case KindNetwork:
		switch e.NetworkSubtype {
		case NetworkErrorTimeout:
			return strings.Join([]string{
				"The device did not respond in time.",
				"Troubleshooting:",
				"  • Check that the device is powered on",
				"  • Try increasing --timeout",
				"  • Some devices answer slowly on first contact; retry once",
			}, "\n")
		case NetworkErrorConnectionRefused:
			return strings.Join([]string{
				"The device refused the connection.",
				"Troubleshooting:",
				"  • The URL may be stale; run discover again to get a fresh LOCATION",
				"  • Devices often move their HTTP port after a reboot",
			}, "\n")
		case NetworkErrorDNS:
			return strings.Join([]string{
				"Could not resolve the device hostname.",
				"Troubleshooting:",
				"  • Use the IP address from the SSDP LOCATION header instead",
				"  • Check your network DNS settings",
			}, "\n")
		case NetworkErrorHostUnreachable:
			return strings.Join([]string{
				"The device is not reachable on the network.",
				"Troubleshooting:",
				"  • Verify you are on the same subnet as the device",
				"  • Try pinging the device",
			}, "\n")
		case NetworkErrorNetworkUnreachable:
			return strings.Join([]string{
				"Your computer cannot reach the device's network.",
				"Troubleshooting:",
				"  • Check your network adapter settings",
				"  • Use --interface to select the LAN interface",
			}, "\n")
		default:
			return strings.Join([]string{
				"Network communication failed.",
				"Troubleshooting:",
				"  • Check your network connection",
				"  • Firewalls frequently block UDP 1900 and inbound callback ports",
			}, "\n")
		}

	case KindFetch:
		return fmt.Sprintf("The device returned HTTP %d for its description. The LOCATION may be outdated; run discover again.", e.StatusCode)

	case KindAction:
		if e.Fault != nil && e.Fault.UPnPErrorCode != 0 {
			return fmt.Sprintf("The device rejected the action with UPnP error %d (%s). Check the argument names and values against the service schema.",
				e.Fault.UPnPErrorCode, e.Fault.ErrorDescription)
		}
		return fmt.Sprintf("The device returned HTTP %d. Check the service type and action name.", e.StatusCode)

	case KindSubscribe:
		if e.StatusCode == 412 {
			return "The device reports a precondition failure. The subscription may have expired; subscribe again instead of renewing."
		}
		return "The device did not accept the subscription. Check the event URL and that the callback address is reachable from the device."

	case KindUnsubscribe:
		return "The device did not accept the unsubscribe. The subscription may already have expired."

	case KindParse:
		return "The device response is not a valid UPnP document. Try fetching it with describe --raw to inspect it."

	case KindEventParse:
		return "The event payload is not a valid property set."

	default:
		return "An error occurred. Please check the error message for details."
	}
}

// ShortMessage returns a concise, user-friendly error message
func ShortMessage(err error) string {
	var e *Error
	if !errors.As(err, &e) {
		return err.Error()
	}

	switch e.Kind {
	case KindNetwork:
		switch e.NetworkSubtype {
		case NetworkErrorTimeout:
			return "Device not responding (timeout)"
		case NetworkErrorConnectionRefused:
			return "Device refused connection"
		case NetworkErrorDNS:
			return "Cannot resolve device hostname"
		case NetworkErrorHostUnreachable:
			return "Device unreachable - check network connection"
		case NetworkErrorNetworkUnreachable:
			return "Network unreachable - check interface"
		default:
			return "Network error - check connection"
		}
	case KindFetch:
		return fmt.Sprintf("Description fetch failed (HTTP %d)", e.StatusCode)
	case KindAction:
		if e.Fault != nil {
			return "Action failed: " + e.Fault.Error()
		}
		return fmt.Sprintf("Action failed (HTTP %d)", e.StatusCode)
	case KindSubscribe:
		if e.StatusCode/100 == 2 {
			return "Subscription failed: " + e.Message
		}
		return fmt.Sprintf("Subscription failed (HTTP %d)", e.StatusCode)
	case KindUnsubscribe:
		return fmt.Sprintf("Unsubscribe failed (HTTP %d)", e.StatusCode)
	case KindParse:
		return "Failed to parse device response"
	case KindEventParse:
		return "Failed to parse event payload"
	default:
		return e.Message
	}
}
