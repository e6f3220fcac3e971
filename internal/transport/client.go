package transport

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	"github.com/muurk/upnpctl/internal/logging"
	"github.com/muurk/upnpctl/internal/metrics"
)

const (
	// DefaultConnectTimeout bounds TCP connection establishment
	DefaultConnectTimeout = 10 * time.Second

	// DefaultTimeout bounds a whole request including reading the body
	DefaultTimeout = 30 * time.Second

	// DefaultUserAgent is sent on every request unless overridden
	DefaultUserAgent = "upnpctl UPnP/1.1"

	// MaxBodySize is the default limit on a response body. Larger bodies
	// are rejected rather than truncated.
	MaxBodySize = 8 << 20
)

// Options configures a Client
type Options struct {
	ConnectTimeout time.Duration
	Timeout        time.Duration
	UserAgent      string
	Metrics        *metrics.Metrics
}

// DefaultOptions returns the stock timeouts and user agent
func DefaultOptions() Options {
	return Options{
		ConnectTimeout: DefaultConnectTimeout,
		Timeout:        DefaultTimeout,
		UserAgent:      DefaultUserAgent,
	}
}

// Client is the HTTP client shared by the description fetcher, the action
// invoker and the subscription manager. It does not retry.
type Client struct {
	// HTTPClient is the underlying HTTP client
	HTTPClient *http.Client

	// UserAgent is set on requests that do not carry one
	UserAgent string

	// Metrics receives one observation per request (may be nil)
	Metrics *metrics.Metrics

	// MaxBodySize overrides the response body limit when positive
	MaxBodySize int64
}

// NewClient creates a client with a connect timeout applied at dial time and
// an overall timeout on each request.
func NewClient(opts Options) *Client {
	if opts.ConnectTimeout <= 0 {
		opts.ConnectTimeout = DefaultConnectTimeout
	}
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	if opts.UserAgent == "" {
		opts.UserAgent = DefaultUserAgent
	}

	dialer := &net.Dialer{Timeout: opts.ConnectTimeout}
	httpTransport := &http.Transport{
		Proxy:                 nil,
		DialContext:           dialer.DialContext,
		MaxIdleConns:          16,
		IdleConnTimeout:       30 * time.Second,
		ResponseHeaderTimeout: opts.Timeout,
		DisableCompression:    true,
	}

	return &Client{
		HTTPClient: &http.Client{Transport: httpTransport, Timeout: opts.Timeout},
		UserAgent:  opts.UserAgent,
		Metrics:    opts.Metrics,
	}
}

// SetTimeout sets the overall HTTP request timeout
func (c *Client) SetTimeout(timeout time.Duration) {
	c.HTTPClient.Timeout = timeout
}

// Request describes one outbound exchange. Op names the operation for logs,
// metrics and errors ("fetch", "schema", "action", "subscribe", "renew",
// "unsubscribe").
type Request struct {
	Op     string
	Method string
	URL    string
	Header http.Header
	Body   []byte
}

// Response is a fully read HTTP response
type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte
}

// OK reports whether the status is 2xx
func (r *Response) OK() bool {
	return r.StatusCode >= 200 && r.StatusCode < 300
}

// Do sends the request and reads the whole body. Only transport failures are
// returned as errors; callers decide what a non-2xx status means.
func (c *Client) Do(ctx context.Context, r Request) (*Response, error) {
	var body io.Reader
	if r.Body != nil {
		body = bytes.NewReader(r.Body)
	}

	req, err := http.NewRequestWithContext(ctx, r.Method, r.URL, body)
	if err != nil {
		return nil, NewNetworkError(r.Op, r.URL, fmt.Sprintf("failed to create %s request", r.Method), err)
	}
	// keys are copied as given; some devices match SOAPAction and SID case-sensitively
	for key, values := range r.Header {
		req.Header[key] = append(req.Header[key], values...)
	}
	if req.Header.Get("User-Agent") == "" && c.UserAgent != "" {
		req.Header.Set("User-Agent", c.UserAgent)
	}

	start := time.Now()
	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		c.Metrics.ObserveHTTPRequest(r.Op, 0, time.Since(start))
		logging.LogHTTPExchange(r.Method, r.URL, 0, time.Since(start))
		return nil, NewNetworkError(r.Op, r.URL, fmt.Sprintf("%s request failed", r.Method), err)
	}
	defer func() { _ = resp.Body.Close() }()

	limit := c.bodyLimit()
	data, err := io.ReadAll(io.LimitReader(resp.Body, limit+1))
	elapsed := time.Since(start)
	c.Metrics.ObserveHTTPRequest(r.Op, resp.StatusCode, elapsed)
	logging.LogHTTPExchange(r.Method, r.URL, resp.StatusCode, elapsed)
	if err != nil {
		return nil, NewNetworkError(r.Op, r.URL, "failed to read response body", err)
	}
	if int64(len(data)) > limit {
		return nil, NewBodyTooLargeError(r.Op, r.URL, resp.StatusCode, limit)
	}

	return &Response{
		StatusCode: resp.StatusCode,
		Header:     resp.Header,
		Body:       data,
	}, nil
}

func (c *Client) bodyLimit() int64 {
	if c.MaxBodySize > 0 {
		return c.MaxBodySize
	}
	return MaxBodySize
}
