// Package ssdp discovers UPnP devices on the local IPv4 network.
//
// Active discovery uses a Searcher: each Search opens a fresh UDP socket,
// sends one M-SEARCH to 239.255.255.250:1900 and collects unicast responses
// until the window closes.
//
//	s := ssdp.NewSearcher(ssdp.Options{Timeout: 5 * time.Second})
//	devices, err := s.Search(ctx, protocol.SearchTargetRootDevice)
//
// Passive discovery uses a Listener bound to the SSDP port and joined to the
// multicast group. Recv never blocks longer than the poll interval so callers
// can interleave other work:
//
//	l, err := ssdp.Listen(ssdp.ListenOptions{})
//	defer l.Close()
//	for {
//	    ev, ok, err := l.Recv()
//	    ...
//	}
package ssdp
