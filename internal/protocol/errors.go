package protocol

import (
	"errors"
	"fmt"
)

// ErrMalformedMessage is returned for SSDP datagrams that cannot be decoded.
// Discovery drops these silently; the channel is shared with unrelated traffic.
var ErrMalformedMessage = errors.New("malformed SSDP message")

// DocumentKind identifies which XML document failed to parse.
type DocumentKind int

const (
	DocDeviceDescription DocumentKind = iota
	DocActionResponse
	DocPropertySet
)

// String returns a human-readable name for the document kind
func (k DocumentKind) String() string {
	switch k {
	case DocDeviceDescription:
		return "device description"
	case DocActionResponse:
		return "action response"
	case DocPropertySet:
		return "event property set"
	default:
		return fmt.Sprintf("DocumentKind(%d)", k)
	}
}

// ParseError reports a structurally invalid XML document.
type ParseError struct {
	Doc     DocumentKind
	Message string
	Err     error
}

// Error implements the error interface
func (e *ParseError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("parse %s: %s: %v", e.Doc, e.Message, e.Err)
	}
	return fmt.Sprintf("parse %s: %s", e.Doc, e.Message)
}

// Unwrap returns the underlying error
func (e *ParseError) Unwrap() error {
	return e.Err
}

func newParseError(doc DocumentKind, message string, err error) *ParseError {
	return &ParseError{Doc: doc, Message: message, Err: err}
}
