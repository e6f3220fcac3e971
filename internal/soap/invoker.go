// Package soap invokes UPnP actions on a service's control URL.
package soap

import (
	"context"
	"net/http"

	"go.uber.org/zap"

	"github.com/muurk/upnpctl/internal/logging"
	"github.com/muurk/upnpctl/internal/protocol"
	"github.com/muurk/upnpctl/internal/transport"
)

// Invoker posts SOAP envelopes. It keeps no per-call state.
type Invoker struct {
	client *transport.Client
}

// NewInvoker creates an invoker on the shared HTTP client
func NewInvoker(client *transport.Client) *Invoker {
	return &Invoker{client: client}
}

// Invoke sends action with args (in order) and returns the raw response body.
// Names that are not valid XML element names are rejected before sending.
// A non-2xx status yields an action error carrying the status, the body and
// the decoded SOAP fault when there is one.
func (i *Invoker) Invoke(ctx context.Context, controlURL, serviceType, action string, args protocol.Arguments) (string, error) {
	if err := protocol.ValidateActionRequest(action, args); err != nil {
		return "", err
	}
	envelope := protocol.BuildActionRequest(serviceType, action, args)
	logging.LogRawBytes("SOAP request", envelope)

	resp, err := i.client.Do(ctx, transport.Request{
		Op:     "action",
		Method: http.MethodPost,
		URL:    controlURL,
		Header: http.Header{
			"Content-Type":                {protocol.SOAPContentType},
			protocol.SOAPActionHeaderKey: {protocol.SOAPActionHeader(serviceType, action)},
		},
		Body: envelope,
	})
	if err != nil {
		return "", err
	}

	if !resp.OK() {
		actionErr := transport.NewActionError(controlURL, resp.StatusCode, resp.Body)
		logging.Warn("Action failed",
			zap.String("action", action),
			zap.String("service_type", serviceType),
			zap.Int("status_code", resp.StatusCode),
			zap.Error(actionErr),
		)
		return "", actionErr
	}

	logging.Debug("Action succeeded",
		zap.String("action", action),
		zap.String("service_type", serviceType),
		zap.Int("response_bytes", len(resp.Body)),
	)
	return string(resp.Body), nil
}

// InvokeAndParse invokes action and decodes its output arguments.
func (i *Invoker) InvokeAndParse(ctx context.Context, controlURL, serviceType, action string, args protocol.Arguments) (*protocol.ActionResult, error) {
	body, err := i.Invoke(ctx, controlURL, serviceType, action, args)
	if err != nil {
		return nil, err
	}
	result, err := protocol.ParseActionResponse([]byte(body))
	if err != nil {
		return nil, transport.NewParseError(controlURL, err)
	}
	return result, nil
}

// ParseResponse decodes the output arguments of an action response body.
func ParseResponse(body string) (*protocol.ActionResult, error) {
	result, err := protocol.ParseActionResponse([]byte(body))
	if err != nil {
		return nil, transport.NewParseError("", err)
	}
	return result, nil
}
