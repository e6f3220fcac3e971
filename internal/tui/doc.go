// Package tui implements the interactive `upnpctl monitor` screen.
//
// The monitor keeps a live registry of UPnP devices on the LAN. It seeds the
// registry with an SSDP search, then applies ssdp:alive, ssdp:update and
// ssdp:byebye notifications as they arrive from a Listener. Entries expire
// when their CACHE-CONTROL max-age lapses without a fresh announcement.
//
// # Architecture
//
// MonitorModel is a Bubble Tea model built from bubbles components:
//
//   - list: the device list, with filtering on USN, location and name
//   - spinner: shown while a search is in flight
//   - help/key: context-sensitive key bindings in the footer
//
// All network work happens in tea.Cmd functions supplied through Source, so
// the model itself is deterministic and can be driven by messages in tests.
//
// # Usage
//
//	feed := tui.PresenceFeed(ctx, listener)
//	m := tui.NewMonitorModel(ctx, tui.Source{
//	    Search:   cp.DiscoverDevices,
//	    Events:   feed,
//	    Describe: cp.GetDeviceDescription,
//	})
//	_, err := tea.NewProgram(m, tea.WithAltScreen()).Run()
//
// Every screen is wrapped by RenderApplicationContainer, which draws the
// header with the application name and the footer with help text.
package tui
