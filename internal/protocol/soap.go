package protocol

import (
	"bytes"
	"encoding/json"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"
	"unicode"

	"golang.org/x/net/html/charset"
)

// SOAP envelope constants
const (
	SOAPEnvelopeNS      = "http://schemas.xmlsoap.org/soap/envelope/"
	SOAPEncodingStyle   = "http://schemas.xmlsoap.org/soap/encoding/"
	SOAPContentType     = `text/xml; charset="utf-8"`
	SOAPActionHeaderKey = "SOAPAction"
)

// Argument is a single named action input.
type Argument struct {
	Name  string
	Value string
}

// Arguments is an ordered list of action inputs. Order is preserved on the wire.
type Arguments []Argument

// ArgumentsFromMap builds Arguments sorted by name so the encoding is deterministic.
func ArgumentsFromMap(m map[string]string) Arguments {
	args := make(Arguments, 0, len(m))
	for name, value := range m {
		args = append(args, Argument{Name: name, Value: value})
	}
	sort.Slice(args, func(i, j int) bool { return args[i].Name < args[j].Name })
	return args
}

// Map returns the arguments as a map. Later duplicates win.
func (a Arguments) Map() map[string]string {
	m := make(map[string]string, len(a))
	for _, arg := range a {
		m[arg.Name] = arg.Value
	}
	return m
}

var xmlEscaper = strings.NewReplacer(
	"&", "&amp;",
	"<", "&lt;",
	">", "&gt;",
	`"`, "&quot;",
	"'", "&apos;",
)

// EscapeXML escapes the five XML special characters.
func EscapeXML(s string) string {
	return xmlEscaper.Replace(s)
}

// SOAPActionHeader returns the quoted SOAPAction header value.
func SOAPActionHeader(serviceType, action string) string {
	return fmt.Sprintf(`"%s#%s"`, serviceType, action)
}

// BuildActionRequest builds the SOAP envelope for invoking action on serviceType.
func BuildActionRequest(serviceType, action string, args Arguments) []byte {
	var b bytes.Buffer
	b.WriteString(`<?xml version="1.0"?>` + "\n")
	fmt.Fprintf(&b, `<s:Envelope xmlns:s="%s" s:encodingStyle="%s">`+"\n", SOAPEnvelopeNS, SOAPEncodingStyle)
	b.WriteString("  <s:Body>\n")
	fmt.Fprintf(&b, `    <u:%s xmlns:u="%s">`+"\n", action, EscapeXML(serviceType))
	for _, arg := range args {
		fmt.Fprintf(&b, "      <%s>%s</%s>\n", arg.Name, EscapeXML(arg.Value), arg.Name)
	}
	fmt.Fprintf(&b, "    </u:%s>\n", action)
	b.WriteString("  </s:Body>\n")
	b.WriteString("</s:Envelope>\n")
	return b.Bytes()
}

// ValidateActionRequest checks that action and every argument name can be
// written as an unprefixed XML element name.
func ValidateActionRequest(action string, args Arguments) error {
	if !IsXMLName(action) {
		return fmt.Errorf("invalid action name %q", action)
	}
	for _, arg := range args {
		if !IsXMLName(arg.Name) {
			return fmt.Errorf("invalid argument name %q", arg.Name)
		}
	}
	return nil
}

// IsXMLName reports whether s is a non-colonized XML name.
func IsXMLName(s string) bool {
	if s == "" {
		return false
	}
	for i, r := range s {
		switch {
		case r == '_' || unicode.IsLetter(r):
		case i > 0 && (r == '-' || r == '.' || unicode.IsDigit(r) || unicode.Is(unicode.Mn, r)):
		default:
			return false
		}
	}
	return true
}

// ActionResult holds an action's output arguments in document order.
type ActionResult struct {
	names  []string
	values map[string]string
}

// NewActionResult returns an empty result
func NewActionResult() *ActionResult {
	return &ActionResult{values: make(map[string]string)}
}

// Set records a value. A repeated name keeps its first position.
func (r *ActionResult) Set(name, value string) {
	if r.values == nil {
		r.values = make(map[string]string)
	}
	if _, exists := r.values[name]; !exists {
		r.names = append(r.names, name)
	}
	r.values[name] = value
}

// Get returns the value for name, or "" if absent
func (r *ActionResult) Get(name string) string {
	if r == nil {
		return ""
	}
	return r.values[name]
}

// Lookup returns the value for name and whether it was present
func (r *ActionResult) Lookup(name string) (string, bool) {
	if r == nil {
		return "", false
	}
	v, ok := r.values[name]
	return v, ok
}

// Names returns the output argument names in document order
func (r *ActionResult) Names() []string {
	if r == nil {
		return nil
	}
	out := make([]string, len(r.names))
	copy(out, r.names)
	return out
}

// Len returns the number of output arguments
func (r *ActionResult) Len() int {
	if r == nil {
		return 0
	}
	return len(r.names)
}

// Map returns a copy of the values as an unordered map
func (r *ActionResult) Map() map[string]string {
	m := make(map[string]string, r.Len())
	if r == nil {
		return m
	}
	for k, v := range r.values {
		m[k] = v
	}
	return m
}

// MarshalJSON encodes the result as an object with keys in document order.
func (r *ActionResult) MarshalJSON() ([]byte, error) {
	var b bytes.Buffer
	b.WriteByte('{')
	for i, name := range r.Names() {
		if i > 0 {
			b.WriteByte(',')
		}
		key, err := json.Marshal(name)
		if err != nil {
			return nil, err
		}
		value, err := json.Marshal(r.values[name])
		if err != nil {
			return nil, err
		}
		b.Write(key)
		b.WriteByte(':')
		b.Write(value)
	}
	b.WriteByte('}')
	return b.Bytes(), nil
}

// errEndOfParent signals that the enclosing element closed before another child started.
var errEndOfParent = errors.New("end of parent element")

func newXMLDecoder(body []byte) *xml.Decoder {
	dec := xml.NewDecoder(bytes.NewReader(body))
	dec.CharsetReader = charset.NewReaderLabel
	return dec
}

// nextStart advances to the next child element of the current element.
func nextStart(dec *xml.Decoder) (xml.StartElement, error) {
	for {
		tok, err := dec.Token()
		if err != nil {
			return xml.StartElement{}, err
		}
		switch t := tok.(type) {
		case xml.StartElement:
			return t, nil
		case xml.EndElement:
			return xml.StartElement{}, errEndOfParent
		}
	}
}

// collectText reads up to the end of the element just opened and returns its
// character data, including text inside nested elements.
func collectText(dec *xml.Decoder) (string, error) {
	var b strings.Builder
	depth := 1
	for depth > 0 {
		tok, err := dec.Token()
		if err != nil {
			return "", err
		}
		switch t := tok.(type) {
		case xml.StartElement:
			depth++
		case xml.EndElement:
			depth--
		case xml.CharData:
			b.Write(t)
		}
	}
	return strings.TrimSpace(b.String()), nil
}

// drain consumes the rest of the document so trailing garbage is reported.
func drain(dec *xml.Decoder) error {
	for {
		if _, err := dec.Token(); err != nil {
			if err == io.EOF {
				return nil
			}
			return err
		}
	}
}

// ParseActionResponse extracts the direct children of the action-response
// element (Envelope › Body › *) as name → text pairs in document order.
func ParseActionResponse(body []byte) (*ActionResult, error) {
	dec := newXMLDecoder(body)

	envelope, err := nextStart(dec)
	if err != nil {
		return nil, newParseError(DocActionResponse, "missing envelope", err)
	}
	if envelope.Name.Local != "Envelope" {
		return nil, newParseError(DocActionResponse, fmt.Sprintf("unexpected root element <%s>", envelope.Name.Local), nil)
	}

	for {
		el, err := nextStart(dec)
		if err != nil {
			return nil, newParseError(DocActionResponse, "missing Body element", err)
		}
		if el.Name.Local == "Body" {
			break
		}
		if err := dec.Skip(); err != nil {
			return nil, newParseError(DocActionResponse, "malformed envelope", err)
		}
	}

	action, err := nextStart(dec)
	if err != nil {
		return nil, newParseError(DocActionResponse, "Body has no action response element", err)
	}
	if action.Name.Local == "Fault" {
		return nil, newParseError(DocActionResponse, "response is a SOAP fault", nil)
	}

	result := NewActionResult()
	for {
		child, err := nextStart(dec)
		if errors.Is(err, errEndOfParent) {
			break
		}
		if err != nil {
			return nil, newParseError(DocActionResponse, "malformed action response", err)
		}
		text, err := collectText(dec)
		if err != nil {
			return nil, newParseError(DocActionResponse, "malformed argument "+child.Name.Local, err)
		}
		result.Set(child.Name.Local, text)
	}

	if err := drain(dec); err != nil {
		return nil, newParseError(DocActionResponse, "malformed trailing content", err)
	}
	return result, nil
}

// Fault is a decoded SOAP fault, including the UPnP error detail when present.
type Fault struct {
	Code             string
	String           string
	UPnPErrorCode    int
	ErrorDescription string
}

// Error implements the error interface
func (f *Fault) Error() string {
	if f.UPnPErrorCode != 0 {
		return fmt.Sprintf("UPnP error %d: %s", f.UPnPErrorCode, f.ErrorDescription)
	}
	return fmt.Sprintf("SOAP fault %s: %s", f.Code, f.String)
}

type faultEnvelope struct {
	Body struct {
		Fault *struct {
			Code   string `xml:"faultcode"`
			String string `xml:"faultstring"`
			Detail struct {
				UPnPError struct {
					ErrorCode        int    `xml:"errorCode"`
					ErrorDescription string `xml:"errorDescription"`
				} `xml:"UPnPError"`
			} `xml:"detail"`
		} `xml:"Fault"`
	} `xml:"Body"`
}

// ParseFault decodes a SOAP fault body. ok is false when body is not a fault.
func ParseFault(body []byte) (*Fault, bool) {
	var env faultEnvelope
	dec := newXMLDecoder(body)
	if err := dec.Decode(&env); err != nil || env.Body.Fault == nil {
		return nil, false
	}
	f := env.Body.Fault
	return &Fault{
		Code:             strings.TrimSpace(f.Code),
		String:           strings.TrimSpace(f.String),
		UPnPErrorCode:    f.Detail.UPnPError.ErrorCode,
		ErrorDescription: strings.TrimSpace(f.Detail.UPnPError.ErrorDescription),
	}, true
}
