package consulkv

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-pkgz/requester"
	"github.com/go-pkgz/requester/middleware"
)

// defaults for client configuration
const (
	defaultAddress = "http://127.0.0.1:8500"
	defaultTimeout = 5 * time.Second
)

// Client talks to a single Consul agent over its HTTP KV API. All keys are
// resolved relative to the configured prefix, which is fixed at construction.
type Client struct {
	baseURL   string // agent address with the /v1 API root appended
	prefix    string // normalized, empty or "a/b/" form
	requester *requester.Requester
}

// clientConfig holds configuration options during client construction.
type clientConfig struct {
	token      string
	authUser   string
	authPasswd string
	namespace  string
	prefix     string
	timeout    time.Duration
	httpClient *http.Client
}

// Option is a functional option for configuring the client.
type Option func(*clientConfig)

// WithToken sets the ACL token, sent as X-Consul-Token on every request.
func WithToken(token string) Option {
	return func(cfg *clientConfig) {
		cfg.token = token
	}
}

// WithBasicAuth sets HTTP basic auth credentials for agents behind an
// authenticating proxy.
func WithBasicAuth(user, passwd string) Option {
	return func(cfg *clientConfig) {
		cfg.authUser = user
		cfg.authPasswd = passwd
	}
}

// WithNamespace sets the Consul enterprise namespace, sent as
// X-Consul-Namespace on every request.
func WithNamespace(namespace string) Option {
	return func(cfg *clientConfig) {
		cfg.namespace = namespace
	}
}

// WithPrefix scopes every key the client touches under the given prefix.
// The prefix is immutable for the lifetime of the client.
func WithPrefix(prefix string) Option {
	return func(cfg *clientConfig) {
		cfg.prefix = prefix
	}
}

// WithTimeout sets the per-request deadline.
func WithTimeout(timeout time.Duration) Option {
	return func(cfg *clientConfig) {
		if timeout > 0 {
			cfg.timeout = timeout
		}
	}
}

// WithHTTPClient sets a custom http.Client.
// Note: when using WithHTTPClient, the WithTimeout option has no effect
// since timeout is configured on the http.Client directly.
func WithHTTPClient(client *http.Client) Option {
	return func(cfg *clientConfig) {
		cfg.httpClient = client
	}
}

// New creates a Consul KV client for the given agent address. An empty
// address falls back to $CONSUL_HTTP_ADDR, then to the local agent on
// 127.0.0.1:8500. A bare host:port is accepted and treated as http.
func New(address string, opts ...Option) (*Client, error) {
	if address == "" {
		address = os.Getenv("CONSUL_HTTP_ADDR")
	}
	if address == "" {
		address = defaultAddress
	}
	if !strings.HasPrefix(address, "http://") && !strings.HasPrefix(address, "https://") {
		address = "http://" + address
	}
	address = strings.TrimSuffix(address, "/")
	if _, err := url.Parse(address); err != nil {
		return nil, fmt.Errorf("invalid address %q: %w", address, err)
	}

	cfg := &clientConfig{timeout: defaultTimeout}
	if env := os.Getenv("CONSUL_HTTP_TIMEOUT"); env != "" {
		if secs, err := strconv.Atoi(env); err == nil && secs > 0 {
			cfg.timeout = time.Duration(secs) * time.Second
		}
	}

	// apply options
	for _, opt := range opts {
		opt(cfg)
	}

	// build requester with middleware, auth headers ride on the transport
	var middlewares []middleware.RoundTripperHandler
	if cfg.token != "" {
		middlewares = append(middlewares, middleware.Header("X-Consul-Token", cfg.token))
	}
	if cfg.namespace != "" {
		middlewares = append(middlewares, middleware.Header("X-Consul-Namespace", cfg.namespace))
	}
	if cfg.authUser != "" {
		middlewares = append(middlewares, middleware.BasicAuth(cfg.authUser, cfg.authPasswd))
	}

	httpClient := cfg.httpClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: cfg.timeout}
	}

	return &Client{
		baseURL:   address + "/v1",
		prefix:    normalizePrefix(cfg.prefix),
		requester: requester.New(*httpClient, middlewares...),
	}, nil
}

// Prefix returns the prefix the client is scoped to, in normalized form.
func (c *Client) Prefix() string { return c.prefix }

// Prefixed returns a derived client scoped to prefix+subprefix. The derived
// client shares the underlying transport with its parent.
func (c *Client) Prefixed(subprefix string) *Client {
	derived := *c
	derived.prefix = c.prefix + normalizePrefix(subprefix)
	return &derived
}

// Close releases idle connections held by the underlying HTTP client.
// Derived clients from Prefixed share the same pool.
func (c *Client) Close() {
	c.requester.Client().CloseIdleConnections()
}

// Ping checks agent connectivity via the status endpoint.
func (c *Client) Ping(ctx context.Context) error {
	_, _, err := c.do(ctx, http.MethodGet, c.baseURL+"/status/leader", http.NoBody)
	return err
}

// kvURL builds the request URL for a KV key or scope. An empty key addresses
// the whole store root.
func (c *Client) kvURL(key string, query url.Values) (string, error) {
	u := c.baseURL + "/kv/"
	if key != "" {
		joined, err := url.JoinPath(c.baseURL, "kv", key)
		if err != nil {
			return "", fmt.Errorf("failed to build URL for %q: %w", key, err)
		}
		u = joined
	}
	if len(query) > 0 {
		u += "?" + query.Encode()
	}
	return u, nil
}

// fullKey resolves a caller-supplied key against the client prefix.
func (c *Client) fullKey(key string) string {
	return c.prefix + joinKey(splitKey(key))
}

// scope resolves a caller-supplied subprefix against the client prefix,
// keeping the trailing separator so listings don't match sibling keys that
// merely share the leading characters.
func (c *Client) scope(subprefix string) string {
	return c.prefix + normalizePrefix(subprefix)
}

// do issues a single request and maps the response. Transport failures come
// back as *TransportError, non-2xx statuses as sentinel errors or
// *ResponseError. No request is ever retried here.
func (c *Client) do(ctx context.Context, method, rawURL string, body io.Reader) ([]byte, Meta, error) {
	req, err := http.NewRequestWithContext(ctx, method, rawURL, body)
	if err != nil {
		return nil, Meta{}, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := c.requester.Do(req)
	if err != nil {
		return nil, Meta{}, &TransportError{Op: method + " " + req.URL.Path, Err: err}
	}
	defer resp.Body.Close()

	meta := parseMeta(resp.Header)
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, meta, &TransportError{Op: method + " " + req.URL.Path, Err: err}
	}

	if err := checkStatus(resp.StatusCode, data, meta); err != nil {
		return nil, meta, err
	}
	return data, meta, nil
}

// checkStatus maps HTTP status codes to the client's error kinds.
func checkStatus(status int, body []byte, meta Meta) error {
	switch {
	case status >= http.StatusOK && status < http.StatusMultipleChoices:
		return nil
	case status == http.StatusNotFound:
		return ErrNotFound
	case status == http.StatusUnauthorized:
		return ErrACLDisabled
	case status == http.StatusForbidden:
		return ErrForbidden
	case status == http.StatusConflict:
		return ErrConflict
	default:
		return &ResponseError{StatusCode: status, Body: strings.TrimSpace(string(body)), Meta: meta}
	}
}
