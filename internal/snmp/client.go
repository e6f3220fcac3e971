// Package snmp queries SNMP agents on devices found by discovery and receives
// their traps. It sits beside the UPnP stack: many gateways that answer SSDP
// also run an SNMP agent.
package snmp

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/gosnmp/gosnmp"
	"go.uber.org/zap"

	"github.com/muurk/upnpctl/internal/logging"
)

// Version is an SNMP protocol version
type Version int

const (
	V1 Version = iota
	V2c
	V3
)

func (v Version) String() string {
	switch v {
	case V1:
		return "1"
	case V2c:
		return "2c"
	case V3:
		return "3"
	default:
		return fmt.Sprintf("version(%d)", int(v))
	}
}

// ParseVersion accepts "1", "2c" and "3" with an optional v prefix
func ParseVersion(s string) (Version, error) {
	switch strings.TrimPrefix(strings.ToLower(strings.TrimSpace(s)), "v") {
	case "1":
		return V1, nil
	case "2c", "2", "":
		return V2c, nil
	case "3":
		return V3, nil
	default:
		return 0, fmt.Errorf("unknown snmp version %q", s)
	}
}

// gosnmpVersion maps to the library version. SNMPv3 needs USM credentials,
// which this client does not carry.
func (v Version) gosnmpVersion() (gosnmp.SnmpVersion, error) {
	switch v {
	case V1:
		return gosnmp.Version1, nil
	case V2c:
		return gosnmp.Version2c, nil
	default:
		return 0, fmt.Errorf("unsupported snmp version %s", v)
	}
}

// Config describes how agents are queried
type Config struct {
	Community      string
	Version        Version
	Port           uint16
	Timeout        time.Duration
	Retries        int
	MaxRepetitions uint32
}

// SystemInfo is the system group of an agent
type SystemInfo struct {
	Descr    string `json:"sys_descr"`
	ObjectID string `json:"sys_object_id"`
	UpTime   uint64 `json:"sys_uptime"` // hundredths of a second
	Contact  string `json:"sys_contact"`
	Name     string `json:"sys_name"`
	Location string `json:"sys_location"`
}

// Client issues SNMP requests. Each call opens and closes its own socket.
type Client struct {
	cfg Config
}

// NewClient fills unset fields with defaults (public, v2c, port 161)
func NewClient(cfg Config) *Client {
	if strings.TrimSpace(cfg.Community) == "" {
		cfg.Community = "public"
	}
	if cfg.Port == 0 {
		cfg.Port = 161
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 2 * time.Second
	}
	if cfg.Retries < 0 {
		cfg.Retries = 0
	}
	if cfg.MaxRepetitions == 0 {
		cfg.MaxRepetitions = 10
	}
	return &Client{cfg: cfg}
}

// Config returns the effective configuration
func (c *Client) Config() Config {
	return c.cfg
}

func (c *Client) connect(ctx context.Context, target string) (*gosnmp.GoSNMP, error) {
	version, err := c.cfg.Version.gosnmpVersion()
	if err != nil {
		return nil, err
	}
	s := &gosnmp.GoSNMP{
		Target:         target,
		Port:           c.cfg.Port,
		Community:      c.cfg.Community,
		Version:        version,
		Timeout:        c.cfg.Timeout,
		Retries:        c.cfg.Retries,
		MaxRepetitions: c.cfg.MaxRepetitions,
		Context:        ctx,
	}
	if err := s.Connect(); err != nil {
		return nil, fmt.Errorf("failed to connect to %s: %w", target, err)
	}
	return s, nil
}

// Get fetches the given OIDs in one request
func (c *Client) Get(ctx context.Context, target string, oids []string) ([]Response, error) {
	if len(oids) == 0 {
		return nil, errors.New("no OIDs requested")
	}
	s, err := c.connect(ctx, target)
	if err != nil {
		return nil, err
	}
	defer func() { _ = s.Conn.Close() }()

	pkt, err := s.Get(oids)
	if err != nil {
		return nil, fmt.Errorf("snmp get %s: %w", target, err)
	}
	if pkt.Error != gosnmp.NoError {
		return nil, fmt.Errorf("snmp get %s: agent returned %s", target, pkt.Error)
	}

	out := make([]Response, 0, len(pkt.Variables))
	for _, pdu := range pkt.Variables {
		out = append(out, Response{OID: normalizeOID(pdu.Name), Value: FromPDU(pdu)})
	}
	logging.Debug("SNMP get", zap.String("target", target), zap.Int("variables", len(out)))
	return out, nil
}

// Walk returns every variable under baseOID. SNMPv1 agents are walked with
// GETNEXT, others with GETBULK.
func (c *Client) Walk(ctx context.Context, target, baseOID string) ([]Response, error) {
	s, err := c.connect(ctx, target)
	if err != nil {
		return nil, err
	}
	defer func() { _ = s.Conn.Close() }()

	var pdus []gosnmp.SnmpPDU
	if s.Version == gosnmp.Version1 {
		pdus, err = s.WalkAll(baseOID)
	} else {
		pdus, err = s.BulkWalkAll(baseOID)
	}
	if err != nil {
		return nil, fmt.Errorf("snmp walk %s %s: %w", target, baseOID, err)
	}

	out := make([]Response, 0, len(pdus))
	for _, pdu := range pdus {
		out = append(out, Response{OID: normalizeOID(pdu.Name), Value: FromPDU(pdu)})
	}
	logging.Debug("SNMP walk",
		zap.String("target", target),
		zap.String("base_oid", baseOID),
		zap.Int("variables", len(out)),
	)
	return out, nil
}

// GetSystemInfo fetches the system group
func (c *Client) GetSystemInfo(ctx context.Context, target string) (SystemInfo, error) {
	responses, err := c.Get(ctx, target, SystemOIDs)
	if err != nil {
		return SystemInfo{}, err
	}
	return systemInfoFrom(responses), nil
}

func systemInfoFrom(responses []Response) SystemInfo {
	var info SystemInfo
	for _, r := range responses {
		if r.Value.IsNull() {
			continue
		}
		switch r.OID {
		case OIDSysDescr:
			info.Descr = strings.TrimSpace(r.Value.Str)
		case OIDSysObjectID:
			info.ObjectID = r.Value.Str
		case OIDSysUpTime:
			info.UpTime = r.Value.Uint
		case OIDSysContact:
			info.Contact = strings.TrimSpace(r.Value.Str)
		case OIDSysName:
			info.Name = strings.TrimSpace(r.Value.Str)
		case OIDSysLocation:
			info.Location = strings.TrimSpace(r.Value.Str)
		}
	}
	return info
}
