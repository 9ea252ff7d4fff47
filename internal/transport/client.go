package transport

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"golang.org/x/net/proxy"
	"golang.org/x/time/rate"

	"github.com/imcrawler/imcrawler/internal/config"
)

// Connection pool and retry defaults.
const (
	// DefaultMaxIdleConns is the size of the shared idle connection pool.
	DefaultMaxIdleConns = 100

	// DefaultMaxIdleConnsPerHost lets every worker keep a connection to the
	// same host; image CDNs are usually shared by all seeds.
	DefaultMaxIdleConnsPerHost = 100

	// DefaultMaxRetries is the number of retries after the first attempt.
	DefaultMaxRetries = 5

	// DefaultBackoff is the base delay; attempt n waits DefaultBackoff * 2^n.
	DefaultBackoff = 500 * time.Millisecond

	// maxRedirects bounds redirect chains.
	maxRedirects = 10
)

// HostPolicy resolves request settings for a host. *config.Config implements it.
type HostPolicy interface {
	CredentialsFor(host string) (username, password string, ok bool)
	Site(host string) config.SiteConfig
}

// Client is the HTTP client shared by all crawl workers.
// It is safe for concurrent use.
type Client struct {
	httpClient   *http.Client
	proxyAddress string
	dialer       proxy.Dialer
}

// Option configures a Client.
type Option func(*clientOptions)

type clientOptions struct {
	timeout      time.Duration
	userAgent    string
	proxyAddress string
	rps          float64
	maxRetries   int
	backoff      time.Duration
	policy       HostPolicy
	logger       *slog.Logger
}

// WithTimeout sets the per-attempt request timeout.
func WithTimeout(d time.Duration) Option {
	return func(o *clientOptions) { o.timeout = d }
}

// WithUserAgent sets the User-Agent header.
func WithUserAgent(ua string) Option {
	return func(o *clientOptions) { o.userAgent = ua }
}

// WithProxy routes all connections through the SOCKS5 proxy at address.
func WithProxy(address string) Option {
	return func(o *clientOptions) { o.proxyAddress = address }
}

// WithRate caps the number of requests per second across all goroutines
// using the client. Retries count against the cap. Zero disables it.
func WithRate(rps float64) Option {
	return func(o *clientOptions) { o.rps = rps }
}

// WithRetries sets the maximum number of retries and the base backoff.
func WithRetries(maxRetries int, backoff time.Duration) Option {
	return func(o *clientOptions) {
		o.maxRetries = maxRetries
		o.backoff = backoff
	}
}

// WithHostPolicy supplies per-host credentials, cookies and headers.
func WithHostPolicy(p HostPolicy) Option {
	return func(o *clientOptions) { o.policy = p }
}

// WithLogger sets the logger used to report retries.
func WithLogger(l *slog.Logger) Option {
	return func(o *clientOptions) { o.logger = l }
}

// NewClient creates a Client. It validates the proxy address but does not
// contact the proxy; call CheckProxy for that.
func NewClient(opts ...Option) (*Client, error) {
	o := clientOptions{
		timeout:    config.DefaultTimeout,
		userAgent:  config.DefaultUserAgent,
		maxRetries: DefaultMaxRetries,
		backoff:    DefaultBackoff,
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(&o)
	}

	base := &http.Transport{
		Proxy:               http.ProxyFromEnvironment,
		MaxIdleConns:        DefaultMaxIdleConns,
		MaxIdleConnsPerHost: DefaultMaxIdleConnsPerHost,
		IdleConnTimeout:     90 * time.Second,
		TLSHandshakeTimeout: o.timeout,
		ForceAttemptHTTP2:   true,
	}

	c := &Client{proxyAddress: o.proxyAddress}

	if o.proxyAddress != "" {
		if _, _, err := net.SplitHostPort(o.proxyAddress); err != nil {
			return nil, fmt.Errorf("%w: %s", ErrInvalidProxyAddress, o.proxyAddress)
		}
		dialer, err := proxy.SOCKS5("tcp", o.proxyAddress, nil, proxy.Direct)
		if err != nil {
			return nil, fmt.Errorf("failed to create SOCKS5 dialer: %w", err)
		}
		c.dialer = dialer
		base.Proxy = nil
		base.DialContext = dialContext(dialer)
	}

	var limiter *rate.Limiter
	if o.rps > 0 {
		burst := int(o.rps)
		if burst < 1 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(o.rps), burst)
	}

	retry := &retryTransport{
		base:       base,
		timeout:    o.timeout,
		maxRetries: o.maxRetries,
		backoff:    o.backoff,
		limiter:    limiter,
		logger:     o.logger,
	}

	c.httpClient = &http.Client{
		Transport: &headerTransport{
			base:      retry,
			userAgent: o.userAgent,
			policy:    o.policy,
		},
		CheckRedirect: func(_ *http.Request, via []*http.Request) error {
			if len(via) >= maxRedirects {
				return http.ErrUseLastResponse
			}
			return nil
		},
	}
	return c, nil
}

// dialContext adapts a proxy.Dialer to http.Transport.DialContext.
func dialContext(d proxy.Dialer) func(ctx context.Context, network, addr string) (net.Conn, error) {
	if cd, ok := d.(proxy.ContextDialer); ok {
		return cd.DialContext
	}
	return func(ctx context.Context, network, addr string) (net.Conn, error) {
		type dialResult struct {
			conn net.Conn
			err  error
		}
		resultCh := make(chan dialResult, 1)
		go func() {
			conn, err := d.Dial(network, addr)
			resultCh <- dialResult{conn, err}
		}()
		select {
		case r := <-resultCh:
			return r.conn, r.err
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
}

// Get issues a GET for rawURL. The caller must close the response body.
// Non-2xx responses are returned without error; callers decide what a
// failure is.
func (c *Client) Get(ctx context.Context, rawURL string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	return c.httpClient.Do(req)
}

// ProxyAddress returns the configured SOCKS5 proxy address, or "".
func (c *Client) ProxyAddress() string {
	return c.proxyAddress
}

// CloseIdleConnections releases pooled connections.
func (c *Client) CloseIdleConnections() {
	c.httpClient.CloseIdleConnections()
}
