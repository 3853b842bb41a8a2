package netclient

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"time"

	"golang.org/x/net/proxy"
)

const (
	defaultTimeout      = 30 * time.Second
	defaultMaxRedirects = 10
)

// Client creates HTTP clients sharing one transport configuration.
type Client struct {
	proxyAddress string
	dialer       proxy.Dialer
	timeout      time.Duration
	maxRedirects int
	userAgent    string
	transport    http.RoundTripper
}

// Option configures a Client.
type Option func(*Client)

// WithProxy routes all connections through the SOCKS5 proxy at address ("host:port").
// An empty address means direct connections.
func WithProxy(address string) Option {
	return func(c *Client) {
		c.proxyAddress = address
	}
}

// WithTimeout sets the overall timeout of requests made with HTTPClient.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		c.timeout = d
	}
}

// WithMaxRedirects sets how many redirects a request follows before failing
// with ErrTooManyRedirects.
func WithMaxRedirects(n int) Option {
	return func(c *Client) {
		c.maxRedirects = n
	}
}

// WithUserAgent sets the User-Agent header of every request that has none.
func WithUserAgent(ua string) Option {
	return func(c *Client) {
		c.userAgent = ua
	}
}

// WithTransport replaces the base transport. Used in tests.
func WithTransport(rt http.RoundTripper) Option {
	return func(c *Client) {
		c.transport = rt
	}
}

// NewClient creates a new Client.
// A proxy address is validated but not dialed; the first request does that.
func NewClient(opts ...Option) (*Client, error) {
	c := &Client{
		timeout:      defaultTimeout,
		maxRedirects: defaultMaxRedirects,
	}
	for _, opt := range opts {
		opt(c)
	}

	if c.proxyAddress != "" {
		if !isValidProxyAddress(c.proxyAddress) {
			return nil, ErrInvalidProxyAddress
		}
		dialer, err := proxy.SOCKS5("tcp", c.proxyAddress, nil, proxy.Direct)
		if err != nil {
			return nil, fmt.Errorf("failed to create SOCKS5 dialer: %w", err)
		}
		c.dialer = dialer
	}
	if c.transport == nil {
		c.transport = c.buildTransport()
	}

	return c, nil
}

// isValidProxyAddress checks if the address is in valid "host:port" format.
func isValidProxyAddress(address string) bool {
	host, port, err := net.SplitHostPort(address)
	if err != nil || host == "" {
		return false
	}
	n, err := strconv.Atoi(port)
	return err == nil && n >= 1 && n <= 65535
}

// ProxyAddress returns the configured proxy address, empty for direct connections.
func (c *Client) ProxyAddress() string {
	return c.proxyAddress
}

// HTTPClient returns an *http.Client applying the configured policy.
func (c *Client) HTTPClient() *http.Client {
	return c.newHTTPClient(c.timeout)
}

// HTTPClientWithTimeout returns an *http.Client with a specific timeout.
// A zero timeout means requests are bounded by their context only.
func (c *Client) HTTPClientWithTimeout(timeout time.Duration) *http.Client {
	return c.newHTTPClient(timeout)
}

func (c *Client) newHTTPClient(timeout time.Duration) *http.Client {
	maxRedirects := c.maxRedirects
	return &http.Client{
		Transport: &userAgentTransport{base: c.transport, userAgent: c.userAgent},
		Timeout:   timeout,
		CheckRedirect: func(_ *http.Request, via []*http.Request) error {
			if len(via) > maxRedirects {
				return ErrTooManyRedirects
			}
			return nil
		},
	}
}

func (c *Client) buildTransport() http.RoundTripper {
	transport := http.DefaultTransport.(*http.Transport).Clone() //nolint:forcetypeassert // DefaultTransport is always *http.Transport
	transport.MaxIdleConnsPerHost = 4
	transport.IdleConnTimeout = 30 * time.Second

	if c.dialer != nil {
		dialer := c.dialer
		transport.Proxy = nil
		transport.DialContext = func(ctx context.Context, network, addr string) (net.Conn, error) {
			if cd, ok := dialer.(proxy.ContextDialer); ok {
				return cd.DialContext(ctx, network, addr)
			}
			return dialer.Dial(network, addr)
		}
	}
	return transport
}

// userAgentTransport sets the User-Agent header on requests that have none.
type userAgentTransport struct {
	base      http.RoundTripper
	userAgent string
}

// RoundTrip implements http.RoundTripper.
func (t *userAgentTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if t.userAgent == "" || req.Header.Get("User-Agent") != "" {
		return t.base.RoundTrip(req)
	}
	clone := req.Clone(req.Context())
	clone.Header.Set("User-Agent", t.userAgent)
	return t.base.RoundTrip(clone)
}
