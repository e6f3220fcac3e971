package ssdp

import (
	"context"
	"errors"
	"net"
	"os"
	"time"

	"go.uber.org/zap"
	"golang.org/x/net/ipv4"

	"github.com/muurk/upnpctl/internal/logging"
	"github.com/muurk/upnpctl/internal/metrics"
	"github.com/muurk/upnpctl/internal/protocol"
	"github.com/muurk/upnpctl/internal/transport"
)

const (
	// DefaultTimeout is the length of a search window
	DefaultTimeout = 5 * time.Second

	// MulticastTTL keeps search requests on the local network
	MulticastTTL = 2

	// readSlice bounds a single read so context cancellation is noticed promptly
	readSlice = 250 * time.Millisecond

	maxDatagramSize = 8192
)

// Options configures a Searcher
type Options struct {
	// Timeout is how long responses are collected after the request is sent
	Timeout time.Duration

	// MX is the maximum response delay requested from devices (clamped to 1..5)
	MX int

	// Interface optionally names the outgoing multicast interface
	Interface string

	// Metrics receives datagram and search observations (may be nil)
	Metrics *metrics.Metrics

	// Destination overrides the multicast group, e.g. a loopback responder in tests
	Destination *net.UDPAddr
}

// Searcher sends M-SEARCH requests and collects unicast responses.
// A Searcher holds no sockets between calls and is safe for concurrent use.
type Searcher struct {
	Timeout   time.Duration
	MX        int
	Interface string
	Metrics   *metrics.Metrics

	destination *net.UDPAddr
}

// NewSearcher creates a searcher, filling unset options with defaults.
func NewSearcher(opts Options) *Searcher {
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	if opts.MX == 0 {
		opts.MX = protocol.DefaultMX
	}
	dest := opts.Destination
	if dest == nil {
		dest = protocol.MulticastAddr
	}
	return &Searcher{
		Timeout:     opts.Timeout,
		MX:          protocol.ClampMX(opts.MX),
		Interface:   opts.Interface,
		Metrics:     opts.Metrics,
		destination: dest,
	}
}

// DiscoverAll searches for every device and service (ssdp:all).
func (s *Searcher) DiscoverAll(ctx context.Context) ([]protocol.Announcement, error) {
	return s.Search(ctx, protocol.SearchTargetAll)
}

// Search sends one M-SEARCH for st and returns every well-formed response
// received before the window closes, in arrival order. Duplicates are kept.
// An expired window or context is not an error.
func (s *Searcher) Search(ctx context.Context, st string) ([]protocol.Announcement, error) {
	return s.search(ctx, st, s.Timeout)
}

func (s *Searcher) search(ctx context.Context, st string, window time.Duration) ([]protocol.Announcement, error) {
	dest := s.destination.String()

	conn, err := net.ListenUDP("udp4", &net.UDPAddr{IP: net.IPv4zero, Port: 0})
	if err != nil {
		return nil, transport.NewNetworkError("search", dest, "failed to open search socket", err)
	}
	defer func() { _ = conn.Close() }()

	pc := ipv4.NewPacketConn(conn)
	if err := pc.SetMulticastTTL(MulticastTTL); err != nil {
		logging.Debug("Failed to set multicast TTL", zap.Error(err))
	}
	if s.Interface != "" {
		ifi, err := net.InterfaceByName(s.Interface)
		if err != nil {
			return nil, transport.NewNetworkError("search", dest, "unknown interface "+s.Interface, err)
		}
		if err := pc.SetMulticastInterface(ifi); err != nil {
			return nil, transport.NewNetworkError("search", dest, "failed to select interface "+s.Interface, err)
		}
	}

	payload := protocol.BuildSearchRequest(st, s.MX)
	start := time.Now()
	if _, err := conn.WriteToUDP(payload, s.destination); err != nil {
		return nil, transport.NewNetworkError("search", dest, "failed to send M-SEARCH", err)
	}
	logging.LogDatagram("sent", dest, payload)

	deadline := start.Add(window)
	if ctxDeadline, ok := ctx.Deadline(); ok && ctxDeadline.Before(deadline) {
		deadline = ctxDeadline
	}

	results := make([]protocol.Announcement, 0)
	buf := make([]byte, maxDatagramSize)
	for ctx.Err() == nil {
		now := time.Now()
		if !now.Before(deadline) {
			break
		}
		readDeadline := now.Add(readSlice)
		if readDeadline.After(deadline) {
			readDeadline = deadline
		}
		if err := conn.SetReadDeadline(readDeadline); err != nil {
			return results, transport.NewNetworkError("search", dest, "failed to set read deadline", err)
		}

		n, from, err := conn.ReadFromUDP(buf)
		if err != nil {
			if isTimeout(err) {
				continue
			}
			return results, transport.NewNetworkError("search", dest, "failed to read search response", err)
		}

		datagram := buf[:n]
		logging.LogDatagram("received", from.String(), datagram)
		announcement, err := protocol.ParseSearchResponse(datagram)
		if err != nil {
			s.Metrics.ObserveDatagram(metrics.DatagramSearchResponse, metrics.ResultDropped)
			logging.LogDroppedDatagram(from.String(), datagram, err)
			continue
		}
		s.Metrics.ObserveDatagram(metrics.DatagramSearchResponse, metrics.ResultAccepted)
		results = append(results, announcement)
	}

	s.Metrics.ObserveSearch(time.Since(start))
	logging.Debug("Search window closed",
		zap.String("st", st),
		zap.Int("responses", len(results)),
		zap.Duration("elapsed", time.Since(start)),
	)
	return results, nil
}

func isTimeout(err error) bool {
	if errors.Is(err, os.ErrDeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}
