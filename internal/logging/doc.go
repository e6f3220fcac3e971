// Package logging provides structured logging for upnpctl.
//
// This package wraps a global zap logger with convenience functions for the
// patterns used by the discovery, description, control and eventing code.
// Logging is silent by default so CLI output stays clean; set
// UPNPCTL_LOG_LEVEL or pass --log-level to enable it.
//
// # Log Levels
//
//   - Debug: datagram and body dumps, dropped packets, HTTP exchanges
//   - Info: subscription lifecycle, event stream clients
//   - Warn: non-fatal issues (failed renewals, unreachable interfaces)
//   - Error: receiver startup failures
//
// # Specialized Logging
//
//	logging.LogDatagram("sent", "239.255.255.250:1900", payload)
//	logging.LogHTTPExchange("SUBSCRIBE", url, 200, elapsed)
//	logging.LogSubscription("renewed", sid, 1800)
//
// # Configuration
//
//	if err := logging.Initialize(level); err != nil {
//	    return err
//	}
//	defer logging.Sync()
//
// Logs are written to stderr in console format so that --format json output
// on stdout can be piped.
package logging
