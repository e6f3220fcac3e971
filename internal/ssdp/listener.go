package ssdp

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/net/ipv4"

	"github.com/muurk/upnpctl/internal/logging"
	"github.com/muurk/upnpctl/internal/metrics"
	"github.com/muurk/upnpctl/internal/protocol"
	"github.com/muurk/upnpctl/internal/transport"
)

// DefaultPollInterval is the longest a single Recv blocks.
const DefaultPollInterval = time.Second

// ErrListenerClosed is returned by Recv after Close.
var ErrListenerClosed = errors.New("ssdp: listener closed")

// ListenOptions configures a Listener
type ListenOptions struct {
	// Interface restricts the group membership to one interface.
	// Empty joins on every up, multicast-capable interface.
	Interface string

	// PollInterval bounds each Recv call
	PollInterval time.Duration

	// Port overrides the SSDP port (0 means 1900)
	Port int

	// Metrics receives datagram observations (may be nil)
	Metrics *metrics.Metrics
}

// Listener receives NOTIFY presence announcements on the SSDP group.
// It exclusively owns its socket until Close.
type Listener struct {
	conn    net.PacketConn
	pc      *ipv4.PacketConn
	group   *net.UDPAddr
	joined  []*net.Interface
	poll    time.Duration
	metrics *metrics.Metrics
	buf     []byte

	mu     sync.Mutex
	closed bool
}

// Listen binds 0.0.0.0:1900 with address reuse and joins 239.255.255.250.
func Listen(opts ListenOptions) (*Listener, error) {
	if opts.Port == 0 {
		opts.Port = protocol.MulticastPort
	}
	return listen(opts, true)
}

func listen(opts ListenOptions, join bool) (*Listener, error) {
	poll := opts.PollInterval
	if poll <= 0 {
		poll = DefaultPollInterval
	}
	addr := fmt.Sprintf("0.0.0.0:%d", opts.Port)

	lc := net.ListenConfig{Control: reuseAddrControl}
	conn, err := lc.ListenPacket(context.Background(), "udp4", addr)
	if err != nil {
		return nil, transport.NewNetworkError("listen", addr, "failed to bind SSDP port", err)
	}

	l := &Listener{
		conn:    conn,
		pc:      ipv4.NewPacketConn(conn),
		group:   &net.UDPAddr{IP: protocol.MulticastAddr.IP},
		poll:    poll,
		metrics: opts.Metrics,
		buf:     make([]byte, maxDatagramSize),
	}

	if join {
		if err := l.joinGroup(opts.Interface); err != nil {
			_ = conn.Close()
			return nil, transport.NewNetworkError("listen", protocol.MulticastGroup, "failed to join SSDP multicast group", err)
		}
	}

	logging.Info("SSDP listener started",
		zap.String("addr", conn.LocalAddr().String()),
		zap.Int("interfaces", len(l.joined)),
	)
	return l, nil
}

func (l *Listener) joinGroup(name string) error {
	interfaces, err := multicastInterfaces(name)
	if err != nil {
		return err
	}

	var lastErr error
	for _, ifi := range interfaces {
		if err := l.pc.JoinGroup(ifi, l.group); err != nil {
			logging.Warn("Failed to join SSDP group", zap.String("interface", ifi.Name), zap.Error(err))
			lastErr = err
			continue
		}
		l.joined = append(l.joined, ifi)
	}
	if len(l.joined) > 0 {
		return nil
	}

	if name == "" {
		// let the kernel pick the interface
		err := l.pc.JoinGroup(nil, l.group)
		if err == nil {
			l.joined = append(l.joined, nil)
			return nil
		}
		lastErr = err
	}
	if lastErr == nil {
		lastErr = errors.New("no multicast-capable interface")
	}
	return lastErr
}

func multicastInterfaces(name string) ([]*net.Interface, error) {
	if name != "" {
		ifi, err := net.InterfaceByName(name)
		if err != nil {
			return nil, err
		}
		return []*net.Interface{ifi}, nil
	}

	all, err := net.Interfaces()
	if err != nil {
		return nil, err
	}
	var out []*net.Interface
	for i := range all {
		ifi := all[i]
		if ifi.Flags&net.FlagUp == 0 || ifi.Flags&net.FlagMulticast == 0 || ifi.Flags&net.FlagLoopback != 0 {
			continue
		}
		out = append(out, &ifi)
	}
	return out, nil
}

// Addr returns the bound local address
func (l *Listener) Addr() net.Addr {
	return l.conn.LocalAddr()
}

// Recv waits at most the poll interval for one datagram. It returns
// (event, true, nil) for a decoded notification and (zero, false, nil) on
// timeout or for a packet that is not a valid NOTIFY. Only socket failures
// are returned as errors.
func (l *Listener) Recv() (protocol.PresenceEvent, bool, error) {
	l.mu.Lock()
	closed := l.closed
	l.mu.Unlock()
	if closed {
		return protocol.PresenceEvent{}, false, ErrListenerClosed
	}

	if err := l.conn.SetReadDeadline(time.Now().Add(l.poll)); err != nil {
		return protocol.PresenceEvent{}, false, l.readError(err)
	}

	n, from, err := l.conn.ReadFrom(l.buf)
	if err != nil {
		if isTimeout(err) {
			return protocol.PresenceEvent{}, false, nil
		}
		return protocol.PresenceEvent{}, false, l.readError(err)
	}

	datagram := l.buf[:n]
	logging.LogDatagram("received", from.String(), datagram)
	ev, err := protocol.ParseNotification(datagram)
	if err != nil {
		l.metrics.ObserveDatagram(metrics.DatagramNotify, metrics.ResultDropped)
		logging.LogDroppedDatagram(from.String(), datagram, err)
		return protocol.PresenceEvent{}, false, nil
	}
	l.metrics.ObserveDatagram(metrics.DatagramNotify, metrics.ResultAccepted)
	return ev, true, nil
}

// RecvContext calls Recv until a notification arrives, ctx is done or the
// socket fails.
func (l *Listener) RecvContext(ctx context.Context) (protocol.PresenceEvent, error) {
	for {
		if err := ctx.Err(); err != nil {
			return protocol.PresenceEvent{}, err
		}
		ev, ok, err := l.Recv()
		if err != nil {
			return protocol.PresenceEvent{}, err
		}
		if ok {
			return ev, nil
		}
	}
}

func (l *Listener) readError(err error) error {
	l.mu.Lock()
	closed := l.closed
	l.mu.Unlock()
	if closed || errors.Is(err, net.ErrClosed) {
		return ErrListenerClosed
	}
	return transport.NewNetworkError("listen", l.conn.LocalAddr().String(), "failed to read from SSDP socket", err)
}

// Close leaves every joined group and releases the socket. It is safe to call
// more than once.
func (l *Listener) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return nil
	}
	l.closed = true

	for _, ifi := range l.joined {
		if err := l.pc.LeaveGroup(ifi, l.group); err != nil {
			logging.Debug("Failed to leave SSDP group", zap.Error(err))
		}
	}
	l.joined = nil

	err := l.conn.Close()
	logging.Info("SSDP listener stopped")
	return err
}
