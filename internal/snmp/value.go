package snmp

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/gosnmp/gosnmp"
)

// Kind tags the variant held by a Value
type Kind int

const (
	KindNull Kind = iota
	KindInteger
	KindString
	KindOID
	KindIPAddress
	KindCounter32
	KindGauge32
	KindTimeTicks
	KindOpaque
	KindCounter64
)

var kindNames = map[Kind]string{
	KindNull:      "null",
	KindInteger:   "integer",
	KindString:    "string",
	KindOID:       "oid",
	KindIPAddress: "ip_address",
	KindCounter32: "counter32",
	KindGauge32:   "gauge32",
	KindTimeTicks: "timeticks",
	KindOpaque:    "opaque",
	KindCounter64: "counter64",
}

func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// Value is one SNMP variable value. Only the field matching Kind is set:
// Int for integers, Uint for counters, gauges and time ticks, Str for
// strings, OIDs and addresses, Bytes for opaque data.
type Value struct {
	Kind  Kind
	Int   int64
	Uint  uint64
	Str   string
	Bytes []byte
}

// Response pairs an OID with its value
type Response struct {
	OID   string `json:"oid"`
	Value Value  `json:"value"`
}

// FromPDU converts a decoded gosnmp variable. Exception values
// (noSuchObject, noSuchInstance, endOfMibView) become Null.
func FromPDU(pdu gosnmp.SnmpPDU) Value {
	switch pdu.Type {
	case gosnmp.Integer:
		return Value{Kind: KindInteger, Int: gosnmp.ToBigInt(pdu.Value).Int64()}
	case gosnmp.OctetString, gosnmp.BitString:
		return Value{Kind: KindString, Str: octets(pdu.Value)}
	case gosnmp.ObjectIdentifier:
		return Value{Kind: KindOID, Str: normalizeOID(fmt.Sprint(pdu.Value))}
	case gosnmp.IPAddress:
		if pdu.Value == nil {
			return Value{Kind: KindNull}
		}
		return Value{Kind: KindIPAddress, Str: fmt.Sprint(pdu.Value)}
	case gosnmp.Counter32:
		return Value{Kind: KindCounter32, Uint: gosnmp.ToBigInt(pdu.Value).Uint64()}
	case gosnmp.Gauge32, gosnmp.Uinteger32:
		return Value{Kind: KindGauge32, Uint: gosnmp.ToBigInt(pdu.Value).Uint64()}
	case gosnmp.TimeTicks:
		return Value{Kind: KindTimeTicks, Uint: gosnmp.ToBigInt(pdu.Value).Uint64()}
	case gosnmp.Counter64:
		return Value{Kind: KindCounter64, Uint: gosnmp.ToBigInt(pdu.Value).Uint64()}
	case gosnmp.Opaque, gosnmp.OpaqueFloat, gosnmp.OpaqueDouble:
		switch v := pdu.Value.(type) {
		case []byte:
			return Value{Kind: KindOpaque, Bytes: v}
		case nil:
			return Value{Kind: KindOpaque}
		default:
			return Value{Kind: KindOpaque, Bytes: []byte(fmt.Sprint(v))}
		}
	default:
		return Value{Kind: KindNull}
	}
}

func octets(v interface{}) string {
	switch s := v.(type) {
	case []byte:
		return string(s)
	case string:
		return s
	case nil:
		return ""
	default:
		return fmt.Sprint(s)
	}
}

// IsNull reports whether the value is absent
func (v Value) IsNull() bool {
	return v.Kind == KindNull
}

// String renders the value for display. Binary strings are shown as hex.
func (v Value) String() string {
	switch v.Kind {
	case KindNull:
		return "null"
	case KindInteger:
		return strconv.FormatInt(v.Int, 10)
	case KindString:
		if !printable(v.Str) {
			return "0x" + hex.EncodeToString([]byte(v.Str))
		}
		return v.Str
	case KindOID, KindIPAddress:
		return v.Str
	case KindTimeTicks:
		return FormatTimeTicks(v.Uint)
	case KindCounter32, KindGauge32, KindCounter64:
		return strconv.FormatUint(v.Uint, 10)
	case KindOpaque:
		return "0x" + hex.EncodeToString(v.Bytes)
	default:
		return ""
	}
}

// MarshalJSON encodes {"type": kind, "value": ...}
func (v Value) MarshalJSON() ([]byte, error) {
	out := struct {
		Type  string      `json:"type"`
		Value interface{} `json:"value"`
	}{Type: v.Kind.String()}

	switch v.Kind {
	case KindInteger:
		out.Value = v.Int
	case KindCounter32, KindGauge32, KindTimeTicks, KindCounter64:
		out.Value = v.Uint
	case KindString, KindOID, KindIPAddress, KindOpaque:
		out.Value = v.String()
	}
	return json.Marshal(out)
}

// FormatTimeTicks renders hundredths of a second as "3d 4h 5m 6.07s"
func FormatTimeTicks(ticks uint64) string {
	hundredths := ticks % 100
	seconds := ticks / 100
	days := seconds / 86400
	seconds %= 86400
	hours := seconds / 3600
	seconds %= 3600
	minutes := seconds / 60
	seconds %= 60

	var parts []string
	if days > 0 {
		parts = append(parts, fmt.Sprintf("%dd", days))
	}
	if days > 0 || hours > 0 {
		parts = append(parts, fmt.Sprintf("%dh", hours))
	}
	if days > 0 || hours > 0 || minutes > 0 {
		parts = append(parts, fmt.Sprintf("%dm", minutes))
	}
	parts = append(parts, fmt.Sprintf("%d.%02ds", seconds, hundredths))
	return strings.Join(parts, " ")
}

func printable(s string) bool {
	if !utf8.ValidString(s) {
		return false
	}
	for _, r := range s {
		if r < 0x20 && r != '\n' && r != '\r' && r != '\t' {
			return false
		}
	}
	return true
}
