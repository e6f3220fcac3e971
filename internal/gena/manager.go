package gena

import (
	"context"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/muurk/upnpctl/internal/logging"
	"github.com/muurk/upnpctl/internal/protocol"
	"github.com/muurk/upnpctl/internal/transport"
)

// HTTP methods and headers used by event subscriptions
const (
	MethodSubscribe   = "SUBSCRIBE"
	MethodUnsubscribe = "UNSUBSCRIBE"
	MethodNotify      = "NOTIFY"

	headerCallback = "CALLBACK"
	headerNT       = "NT"
	headerNTS      = "NTS"
	headerSID      = "SID"
	headerSEQ      = "SEQ"
	headerTimeout  = "TIMEOUT"
)

// Manager issues subscription requests on the shared HTTP client
type Manager struct {
	client *transport.Client
}

// NewManager creates a subscription manager
func NewManager(client *transport.Client) *Manager {
	return &Manager{client: client}
}

// Subscribe asks the device at eventSubURL to send events to callbackURLs for
// ttl seconds (0 requests an infinite lease). The granted lease comes from the
// response TIMEOUT header and defaults to 1800 seconds when it is absent or
// unreadable.
func (m *Manager) Subscribe(ctx context.Context, eventSubURL string, callbackURLs []string, ttl uint32) (Subscription, error) {
	if len(callbackURLs) == 0 {
		return Subscription{}, &transport.Error{
			Kind:    transport.KindSubscribe,
			Op:      "subscribe",
			Message: "at least one callback URL is required",
			URL:     eventSubURL,
		}
	}

	resp, err := m.client.Do(ctx, transport.Request{
		Op:     "subscribe",
		Method: MethodSubscribe,
		URL:    eventSubURL,
		Header: http.Header{
			headerCallback: {protocol.FormatCallback(callbackURLs)},
			headerNT:       {protocol.EventNT},
			headerTimeout:  {protocol.FormatTimeout(ttl)},
		},
	})
	if err != nil {
		return Subscription{}, err
	}
	if !resp.OK() {
		return Subscription{}, transport.NewStatusError(transport.KindSubscribe, "subscribe", eventSubURL, resp.StatusCode, resp.Body)
	}

	sid := strings.TrimSpace(resp.Header.Get(headerSID))
	if sid == "" {
		return Subscription{}, &transport.Error{
			Kind:       transport.KindSubscribe,
			Op:         "subscribe",
			Message:    "response has no SID header",
			URL:        eventSubURL,
			StatusCode: resp.StatusCode,
			Body:       string(resp.Body),
		}
	}

	sub := Subscription{
		SID:          sid,
		EventSubURL:  eventSubURL,
		LeaseSeconds: grantedLease(resp.Header),
		CreatedAt:    time.Now(),
	}
	logging.LogSubscription("subscribed", sub.SID, sub.LeaseSeconds)
	logging.Debug("Subscription callbacks",
		zap.String("sid", sub.SID),
		zap.Strings("callbacks", callbackURLs),
	)
	return sub, nil
}

// Renew extends sub for ttl seconds. The returned subscription keeps the
// original SID even if the device reports a different one.
func (m *Manager) Renew(ctx context.Context, sub Subscription, ttl uint32) (Subscription, error) {
	resp, err := m.client.Do(ctx, transport.Request{
		Op:     "renew",
		Method: MethodSubscribe,
		URL:    sub.EventSubURL,
		Header: http.Header{
			headerSID:     {sub.SID},
			headerTimeout: {protocol.FormatTimeout(ttl)},
		},
	})
	if err != nil {
		return sub, err
	}
	if !resp.OK() {
		return sub, transport.NewStatusError(transport.KindSubscribe, "renew", sub.EventSubURL, resp.StatusCode, resp.Body)
	}

	if got := strings.TrimSpace(resp.Header.Get(headerSID)); got != "" && got != sub.SID {
		logging.Warn("Device returned a different SID on renewal, keeping the original",
			zap.String("sid", sub.SID),
			zap.String("returned_sid", got),
		)
	}

	renewed := sub
	renewed.LeaseSeconds = grantedLease(resp.Header)
	renewed.CreatedAt = time.Now()
	logging.LogSubscription("renewed", renewed.SID, renewed.LeaseSeconds)
	return renewed, nil
}

// Unsubscribe cancels sub. The subscription must be treated as terminated
// whatever the outcome.
func (m *Manager) Unsubscribe(ctx context.Context, sub Subscription) error {
	resp, err := m.client.Do(ctx, transport.Request{
		Op:     "unsubscribe",
		Method: MethodUnsubscribe,
		URL:    sub.EventSubURL,
		Header: http.Header{headerSID: {sub.SID}},
	})
	if err != nil {
		return err
	}
	if !resp.OK() {
		return transport.NewStatusError(transport.KindUnsubscribe, "unsubscribe", sub.EventSubURL, resp.StatusCode, resp.Body)
	}
	logging.LogSubscription("unsubscribed", sub.SID, sub.LeaseSeconds)
	return nil
}

// ParseEventPayload decodes a NOTIFY body into variable name/value pairs.
func ParseEventPayload(body []byte) (map[string]string, error) {
	props, err := protocol.ParsePropertySet(body)
	if err != nil {
		return nil, transport.NewEventParseError(err)
	}
	return props, nil
}

func grantedLease(h http.Header) uint32 {
	raw := h.Get(headerTimeout)
	if raw == "" {
		return protocol.DefaultLeaseSeconds
	}
	seconds, ok := protocol.ParseTimeout(raw)
	if !ok {
		logging.Debug("Unreadable TIMEOUT header, using default lease", zap.String("timeout", raw))
		return protocol.DefaultLeaseSeconds
	}
	return seconds
}
