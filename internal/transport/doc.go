// Package transport provides the HTTP client shared by the description,
// control and eventing components, and the error taxonomy every
// network-facing control-point operation reports.
//
// # Error Handling
//
// All failures are *Error values with a Kind:
//
//	desc, err := fetcher.GetDeviceDescription(ctx, location)
//	if transport.IsFetchError(err) {
//	    fmt.Println(transport.ShortMessage(err))
//	    fmt.Println(transport.TroubleshootingHint(err))
//	}
//
// Network failures are further classified by NetworkSubtype (timeout, DNS,
// connection refused, host or network unreachable). Nothing in this package
// retries; Retryable only tells the caller whether repeating may help.
package transport
