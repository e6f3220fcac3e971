package snmp

import (
	"context"
	"errors"
	"net"
	"time"

	"github.com/gosnmp/gosnmp"
	"go.uber.org/zap"

	"github.com/muurk/upnpctl/internal/logging"
)

// DefaultTrapAddr avoids the privileged port 162
const DefaultTrapAddr = "0.0.0.0:1162"

// TrapType distinguishes v1 traps from v2c notifications
type TrapType int

const (
	TrapV1 TrapType = iota
	TrapV2
)

func (t TrapType) String() string {
	if t == TrapV1 {
		return "v1"
	}
	return "v2"
}

// MarshalText encodes the type as "v1" or "v2"
func (t TrapType) MarshalText() ([]byte, error) {
	return []byte(t.String()), nil
}

// Trap is one received trap or inform
type Trap struct {
	Type         TrapType   `json:"type"`
	Source       string     `json:"source"`
	AgentAddr    string     `json:"agent_addr,omitempty"`
	Enterprise   string     `json:"enterprise,omitempty"`
	GenericTrap  int        `json:"generic_trap"`
	SpecificTrap int        `json:"specific_trap"`
	Timestamp    uint       `json:"timestamp"`
	Inform       bool       `json:"inform"`
	Varbinds     []Response `json:"varbinds"`
	ReceivedAt   time.Time  `json:"received_at"`
}

// TrapFromPacket converts a packet delivered by the gosnmp trap listener
func TrapFromPacket(pkt *gosnmp.SnmpPacket, from *net.UDPAddr) Trap {
	trap := Trap{
		Type:         TrapV2,
		Enterprise:   normalizeOID(pkt.Enterprise),
		AgentAddr:    pkt.AgentAddress,
		GenericTrap:  pkt.GenericTrap,
		SpecificTrap: pkt.SpecificTrap,
		Timestamp:    pkt.Timestamp,
		Inform:       pkt.IsInform || pkt.PDUType == gosnmp.InformRequest,
		ReceivedAt:   time.Now(),
	}
	if pkt.Version == gosnmp.Version1 || pkt.PDUType == gosnmp.Trap {
		trap.Type = TrapV1
	}
	if from != nil {
		trap.Source = from.IP.String()
	}
	trap.Varbinds = make([]Response, 0, len(pkt.Variables))
	for _, pdu := range pkt.Variables {
		trap.Varbinds = append(trap.Varbinds, Response{OID: normalizeOID(pdu.Name), Value: FromPDU(pdu)})
	}
	return trap
}

// ListenTraps receives traps on addr until ctx ends, handing each to fn.
// Traps whose community differs from the client's are dropped.
func (c *Client) ListenTraps(ctx context.Context, addr string, fn func(Trap)) error {
	if addr == "" {
		addr = DefaultTrapAddr
	}
	version, err := c.cfg.Version.gosnmpVersion()
	if err != nil {
		return err
	}

	tl := gosnmp.NewTrapListener()
	tl.Params = &gosnmp.GoSNMP{
		Community: c.cfg.Community,
		Version:   version,
		Timeout:   c.cfg.Timeout,
	}
	tl.OnNewTrap = func(pkt *gosnmp.SnmpPacket, from *net.UDPAddr) {
		if pkt.Community != "" && pkt.Community != c.cfg.Community {
			logging.Debug("Dropped trap with foreign community", zap.Stringer("from", from))
			return
		}
		fn(TrapFromPacket(pkt, from))
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- tl.Listen(addr)
	}()

	select {
	case <-tl.Listening():
		logging.Info("Listening for SNMP traps", zap.String("addr", addr))
	case err := <-errCh:
		return err
	}

	select {
	case <-ctx.Done():
		tl.Close()
		<-errCh
		return nil
	case err := <-errCh:
		if err != nil && !errors.Is(err, net.ErrClosed) {
			return err
		}
		return nil
	}
}
