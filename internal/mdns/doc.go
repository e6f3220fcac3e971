// Package mdns browses DNS-SD services over multicast DNS.
//
// It complements SSDP discovery: many devices that speak UPnP also announce
// themselves over mDNS (_http._tcp, _ipp._tcp, _airplay._tcp and so on).
// Results are independent of the UPnP engine and only reported.
//
// # Usage Example
//
//	browser := mdns.NewBrowser()
//	services, err := browser.Browse(ctx, "_http._tcp")
//	for _, svc := range services {
//	    fmt.Println(svc.Instance, svc.Address())
//	}
//
// # Network Requirements
//
// mDNS uses UDP port 5353 on 224.0.0.251. Devices must be on the same
// network segment and the firewall must allow the traffic.
package mdns
