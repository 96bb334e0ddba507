package api

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/hashicorp/go-cleanhttp"
	"github.com/hashicorp/go-hclog"
	"github.com/hashicorp/go-retryablehttp"
	"github.com/hashicorp/go-rootcerts"
	"github.com/hashicorp/go-secure-stdlib/parseutil"
	"github.com/hashicorp/go-uuid"
	"github.com/saasbill/billing/helper/metricsutil"
	"github.com/saasbill/billing/version"
	"golang.org/x/net/http2"
	"golang.org/x/oauth2"
	"golang.org/x/time/rate"
)

const (
	EnvBillingAddress          = "BILLING_ADDR"
	EnvBillingAPIBase          = "BILLING_API_BASE"
	EnvBillingCACert           = "BILLING_CACERT"
	EnvBillingCACertBytes      = "BILLING_CACERT_BYTES"
	EnvBillingCAPath           = "BILLING_CAPATH"
	EnvBillingClientCert       = "BILLING_CLIENT_CERT"
	EnvBillingClientKey        = "BILLING_CLIENT_KEY"
	EnvBillingClientTimeout    = "BILLING_CLIENT_TIMEOUT"
	EnvBillingSkipVerify       = "BILLING_SKIP_VERIFY"
	EnvBillingTLSServerName    = "BILLING_TLS_SERVER_NAME"
	EnvBillingToken            = "BILLING_TOKEN"
	EnvBillingBatchConcurrency = "BILLING_BATCH_CONCURRENCY"
	EnvBillingProviderNotified = "BILLING_PROVIDER_NOTIFIED"
	EnvRateLimit               = "BILLING_RATE_LIMIT"
	EnvHTTPProxy               = "BILLING_HTTP_PROXY"

	HeaderCSRFToken  = "X-CSRFToken"
	HeaderRequestID  = "X-Request-Id"
	HeaderAuthorize  = "Authorization"
	HeaderUserAgent  = "User-Agent"
	ContentTypeJSON  = "application/json"
	DefaultAPIBase   = "/api"
	DefaultAddress   = "http://127.0.0.1:8000"
	defaultUserAgent = "billing-client"
)

// Config is used to configure the creation of the client.
type Config struct {
	modifyLock sync.RWMutex

	// Address is the scheme and host of the billing server, optionally with
	// a path prefix.
	Address string

	// APIBase is joined between Address and every request path.
	APIBase string

	// HttpClient is the HTTP client to use. Timeouts and TLS settings live
	// here; the dispatcher itself never retries or times out a request.
	HttpClient *http.Client

	// Timeout is applied to HttpClient when the client is created. Zero
	// means requests may hang for as long as the server keeps them open.
	Timeout time.Duration

	// Error is set by DefaultConfig when the environment could not be read.
	Error error

	Logger hclog.Logger

	// Limiter throttles outgoing requests when non-nil.
	Limiter *rate.Limiter

	// MetricSink receives request counters and durations.
	MetricSink *metricsutil.ClientMetricSink

	// Notifier receives messages rendered by the default failure handler.
	Notifier Notifier

	// ProviderNotified is appended to 5xx messages and shown when field
	// errors were displayed but no global message was extracted.
	ProviderNotified string

	// BatchConcurrency caps the number of in-flight members of a batch.
	// Zero means no cap.
	BatchConcurrency int

	// DisableRequestID stops the client from stamping X-Request-Id.
	DisableRequestID bool
}

// TLSConfig contains the parameters needed to configure TLS on the HTTP client
// used to communicate with the billing server.
type TLSConfig struct {
	// CACert is the path to a PEM-encoded CA cert file to use to verify the
	// server SSL certificate. It takes precedence over CACertBytes
	// and CAPath.
	CACert string

	// CACertBytes is a PEM-encoded certificate or bundle. It takes precedence
	// over CAPath.
	CACertBytes []byte

	// CAPath is the path to a directory of PEM-encoded CA cert files.
	CAPath string

	// ClientCert is the path to the certificate for mutual TLS.
	ClientCert string

	// ClientKey is the path to the private key for mutual TLS.
	ClientKey string

	// TLSServerName, if set, is used to set the SNI host when connecting via
	// TLS.
	TLSServerName string

	// Insecure enables or disables SSL verification
	Insecure bool

	// MinVersion is the minimum TLS version accepted. Zero keeps TLS 1.2.
	MinVersion uint16

	// CipherSuites restricts the negotiated cipher suites when non-empty.
	CipherSuites []uint16
}

// DefaultConfig returns a default configuration for the client. It is
// safe to modify the return value of this function.
//
// The default Address is http://127.0.0.1:8000, but this can be overridden by
// setting the `BILLING_ADDR` environment variable.
//
// If an error is encountered, it is stored in the Error field.
func DefaultConfig() *Config {
	config := &Config{
		Address:    DefaultAddress,
		APIBase:    DefaultAPIBase,
		HttpClient: cleanhttp.DefaultPooledClient(),
		Logger:     hclog.NewNullLogger(),
	}

	transport := config.HttpClient.Transport.(*http.Transport)
	transport.TLSHandshakeTimeout = 10 * time.Second
	transport.TLSClientConfig = &tls.Config{
		MinVersion: tls.VersionTLS12,
	}
	if err := http2.ConfigureTransport(transport); err != nil {
		config.Error = err
		return config
	}

	if err := config.ReadEnvironment(); err != nil {
		config.Error = err
		return config
	}

	return config
}

func (c *Config) configureTLS(t *TLSConfig) error {
	if c.HttpClient == nil {
		c.HttpClient = DefaultConfig().HttpClient
	}
	clientTLSConfig := c.HttpClient.Transport.(*http.Transport).TLSClientConfig

	var clientCert tls.Certificate
	foundClientCert := false

	switch {
	case t.ClientCert != "" && t.ClientKey != "":
		var err error
		clientCert, err = tls.LoadX509KeyPair(t.ClientCert, t.ClientKey)
		if err != nil {
			return err
		}
		foundClientCert = true
	case t.ClientCert != "" || t.ClientKey != "":
		return fmt.Errorf("both client cert and client key must be provided")
	}

	if t.CACert != "" || len(t.CACertBytes) != 0 || t.CAPath != "" {
		rootConfig := &rootcerts.Config{
			CAFile:        t.CACert,
			CACertificate: t.CACertBytes,
			CAPath:        t.CAPath,
		}
		if err := rootcerts.ConfigureTLS(clientTLSConfig, rootConfig); err != nil {
			return err
		}
	}

	if t.Insecure {
		clientTLSConfig.InsecureSkipVerify = true
	}

	if foundClientCert {
		// Ignore the server's preferential list of CAs and always present
		// the configured certificate.
		clientTLSConfig.GetClientCertificate = func(*tls.CertificateRequestInfo) (*tls.Certificate, error) {
			return &clientCert, nil
		}
	}

	if t.TLSServerName != "" {
		clientTLSConfig.ServerName = t.TLSServerName
	}

	if t.MinVersion != 0 {
		clientTLSConfig.MinVersion = t.MinVersion
	}

	if len(t.CipherSuites) > 0 {
		clientTLSConfig.CipherSuites = t.CipherSuites
	}

	return nil
}

// ConfigureTLS takes a set of TLS configurations and applies those to the
// HTTP client.
func (c *Config) ConfigureTLS(t *TLSConfig) error {
	c.modifyLock.Lock()
	defer c.modifyLock.Unlock()

	return c.configureTLS(t)
}

// ReadEnvironment reads configuration information from the environment. If
// there is an error, no configuration value is updated.
func (c *Config) ReadEnvironment() error {
	var envAddress string
	var envAPIBase string
	var envCACert string
	var envCACertBytes []byte
	var envCAPath string
	var envClientCert string
	var envClientKey string
	var envClientTimeout time.Duration
	var envInsecure bool
	var envTLSServerName string
	var envBatchConcurrency *uint64
	var envProviderNotified string
	var limit *rate.Limiter
	var envProxy string

	// Parse the environment variables
	if v := os.Getenv(EnvBillingAddress); v != "" {
		envAddress = v
	}
	if v, ok := os.LookupEnv(EnvBillingAPIBase); ok {
		envAPIBase = v
	}
	if v := os.Getenv(EnvBillingBatchConcurrency); v != "" {
		concurrency, err := strconv.ParseUint(v, 10, 32)
		if err != nil {
			return fmt.Errorf("could not parse %s", EnvBillingBatchConcurrency)
		}
		envBatchConcurrency = &concurrency
	}
	if v := os.Getenv(EnvBillingCACert); v != "" {
		envCACert = v
	}
	if v := os.Getenv(EnvBillingCACertBytes); v != "" {
		envCACertBytes = []byte(v)
	}
	if v := os.Getenv(EnvBillingCAPath); v != "" {
		envCAPath = v
	}
	if v := os.Getenv(EnvBillingClientCert); v != "" {
		envClientCert = v
	}
	if v := os.Getenv(EnvBillingClientKey); v != "" {
		envClientKey = v
	}
	if v := os.Getenv(EnvRateLimit); v != "" {
		rateLimit, burstLimit, err := ParseRateLimit(v)
		if err != nil {
			return err
		}
		limit = rate.NewLimiter(rate.Limit(rateLimit), burstLimit)
	}
	if t := os.Getenv(EnvBillingClientTimeout); t != "" {
		clientTimeout, err := parseutil.ParseDurationSecond(t)
		if err != nil {
			return fmt.Errorf("could not parse %q", EnvBillingClientTimeout)
		}
		envClientTimeout = clientTimeout
	}
	if v := os.Getenv(EnvBillingSkipVerify); v != "" {
		var err error
		envInsecure, err = strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("could not parse %s", EnvBillingSkipVerify)
		}
	}
	if v := os.Getenv(EnvBillingTLSServerName); v != "" {
		envTLSServerName = v
	}
	if v := os.Getenv(EnvHTTPProxy); v != "" {
		envProxy = v
	}
	if v := os.Getenv(EnvBillingProviderNotified); v != "" {
		envProviderNotified = v
	}

	// Configure the HTTP clients TLS configuration.
	t := &TLSConfig{
		CACert:        envCACert,
		CACertBytes:   envCACertBytes,
		CAPath:        envCAPath,
		ClientCert:    envClientCert,
		ClientKey:     envClientKey,
		TLSServerName: envTLSServerName,
		Insecure:      envInsecure,
	}

	c.modifyLock.Lock()
	defer c.modifyLock.Unlock()

	if limit != nil {
		c.Limiter = limit
	}

	if err := c.configureTLS(t); err != nil {
		return err
	}

	if envAddress != "" {
		c.Address = envAddress
	}

	if envAPIBase != "" {
		c.APIBase = envAPIBase
	}

	if envBatchConcurrency != nil {
		c.BatchConcurrency = int(*envBatchConcurrency)
	}

	if envClientTimeout != 0 {
		c.Timeout = envClientTimeout
	}

	if envProviderNotified != "" {
		c.ProviderNotified = envProviderNotified
	}

	if envProxy != "" {
		u, err := url.Parse(envProxy)
		if err != nil {
			return err
		}

		transport := c.HttpClient.Transport.(*http.Transport)
		transport.Proxy = http.ProxyURL(u)
	}

	return nil
}

// ParseRateLimit parses "rate:burst" or a bare rate, in which case the burst
// equals the rate.
func ParseRateLimit(val string) (rate float64, burst int, err error) {
	_, err = fmt.Sscanf(val, "%f:%d", &rate, &burst)
	if err != nil {
		rate, err = strconv.ParseFloat(val, 64)
		if err != nil {
			err = fmt.Errorf("%v was provided but incorrectly formatted", EnvRateLimit)
		}
		burst = int(rate)
	}

	return rate, burst, err
}

// Client is the client to the billing API. Create a client with NewClient.
type Client struct {
	modifyLock  sync.RWMutex
	addr        *url.URL
	apiBase     string
	config      *Config
	credentials *Credentials
	headers     http.Header
	transport   *retryablehttp.Client
	logger      hclog.Logger
	metrics     *metricsutil.ClientMetricSink
	notifier    Notifier
}

// NewClient returns a new client for the given configuration.
//
// If the configuration is nil, the client will be configured with
// DefaultConfig.
//
// If the environment variable `BILLING_TOKEN` is present, the token will be
// sent as a bearer token with every request.
func NewClient(c *Config) (*Client, error) {
	def := DefaultConfig()
	if def == nil {
		return nil, fmt.Errorf("could not create/read default configuration")
	}
	if def.Error != nil {
		return nil, fmt.Errorf("error encountered setting up default configuration: %w", def.Error)
	}

	if c == nil {
		c = def
	}

	c.modifyLock.Lock()
	defer c.modifyLock.Unlock()

	if c.HttpClient == nil {
		c.HttpClient = def.HttpClient
	}
	if c.HttpClient.Transport == nil {
		c.HttpClient.Transport = def.HttpClient.Transport
	}
	if c.Timeout != 0 {
		c.HttpClient.Timeout = c.Timeout
	}
	if c.Logger == nil {
		c.Logger = hclog.NewNullLogger()
	}
	if c.MetricSink == nil {
		c.MetricSink = metricsutil.BlackholeSink()
	}
	if c.Notifier == nil {
		c.Notifier = &LogNotifier{Logger: c.Logger.Named("messages")}
	}

	address := c.Address
	if address == "" {
		address = DefaultAddress
	}
	u, err := url.Parse(address)
	if err != nil {
		return nil, err
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("address %q must include a scheme and a host", address)
	}

	headers := make(http.Header)
	headers.Set(HeaderUserAgent, fmt.Sprintf("%s/%s", defaultUserAgent, version.GetVersion().VersionNumber()))

	client := &Client{
		addr:        u,
		apiBase:     c.APIBase,
		config:      c,
		credentials: NewCredentials(nil, nil),
		headers:     headers,
		logger:      c.Logger,
		metrics:     c.MetricSink,
		notifier:    c.Notifier,
	}
	client.transport = &retryablehttp.Client{
		HTTPClient:   c.HttpClient,
		Logger:       c.Logger.Named("transport"),
		RetryMax:     0,
		CheckRetry:   neverRetry,
		Backoff:      retryablehttp.DefaultBackoff,
		ErrorHandler: retryablehttp.PassthroughErrorHandler,
	}

	if token := os.Getenv(EnvBillingToken); token != "" {
		client.SetToken(token)
	}

	return client, nil
}

// neverRetry keeps every request to a single attempt; failures are surfaced
// to the caller for a manual retry.
func neverRetry(ctx context.Context, resp *http.Response, err error) (bool, error) {
	if ctx.Err() != nil {
		return false, ctx.Err()
	}
	return false, nil
}

// SetAddress sets the address of the billing server.
func (c *Client) SetAddress(addr string) error {
	u, err := url.Parse(addr)
	if err != nil {
		return fmt.Errorf("failed to set address: %w", err)
	}
	if u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("address %q must include a scheme and a host", addr)
	}

	c.modifyLock.Lock()
	defer c.modifyLock.Unlock()
	c.addr = u
	return nil
}

// Address returns the billing server address.
func (c *Client) Address() string {
	c.modifyLock.RLock()
	defer c.modifyLock.RUnlock()

	return c.addr.String()
}

// SetAPIBase sets the path joined between the address and request paths.
func (c *Client) SetAPIBase(base string) {
	c.modifyLock.Lock()
	defer c.modifyLock.Unlock()
	c.apiBase = base
}

// APIBase returns the path joined between the address and request paths.
func (c *Client) APIBase() string {
	c.modifyLock.RLock()
	defer c.modifyLock.RUnlock()

	return c.apiBase
}

// SetToken sets the bearer token directly. This won't perform any auth
// verification, it simply sets the token properly for future requests.
func (c *Client) SetToken(v string) {
	if v == "" {
		c.credentials.SetTokenSource(nil)
		return
	}
	c.credentials.SetTokenSource(oauth2.StaticTokenSource(&oauth2.Token{AccessToken: v}))
}

// SetTokenSource sets the source the bearer token is read from on every
// request.
func (c *Client) SetTokenSource(ts oauth2.TokenSource) {
	c.credentials.SetTokenSource(ts)
}

// Token returns the bearer token currently in use, if any.
func (c *Client) Token() string {
	token, err := c.credentials.BearerToken()
	if err != nil {
		return ""
	}
	return token
}

// ClearToken deletes the token if it is set or does nothing otherwise.
func (c *Client) ClearToken() {
	c.credentials.SetTokenSource(nil)
}

// SetPage sets the page CSRF tokens are discovered from.
func (c *Client) SetPage(p *Page) {
	c.credentials.SetPage(p)
}

// Credentials returns the credential context used by the client.
func (c *Client) Credentials() *Credentials {
	return c.credentials
}

// SetNotifier replaces the notifier used by the default failure handler.
func (c *Client) SetNotifier(n Notifier) {
	c.modifyLock.Lock()
	defer c.modifyLock.Unlock()
	c.notifier = n
}

// Headers gets the current set of headers used for requests. This returns a
// copy; to modify it call AddHeader or SetHeaders.
func (c *Client) Headers() http.Header {
	c.modifyLock.RLock()
	defer c.modifyLock.RUnlock()

	return c.headers.Clone()
}

// AddHeader allows a single header key/value pair to be added
// in a race-safe fashion.
func (c *Client) AddHeader(key, value string) {
	c.modifyLock.Lock()
	defer c.modifyLock.Unlock()
	c.headers.Add(key, value)
}

// SetHeaders clears all previous headers and uses only the given
// ones going forward.
func (c *Client) SetHeaders(headers http.Header) {
	c.modifyLock.Lock()
	defer c.modifyLock.Unlock()
	c.headers = headers.Clone()
}

// SetLimiter sets the rate limiter used for outgoing requests.
func (c *Client) SetLimiter(rateLimit float64, burst int) {
	c.config.modifyLock.Lock()
	defer c.config.modifyLock.Unlock()
	c.config.Limiter = rate.NewLimiter(rate.Limit(rateLimit), burst)
}

// NewRequest creates a new raw request object to query the billing server
// configured for this client. This is an advanced method and generally
// doesn't need to be called externally.
func (c *Client) NewRequest(method, requestPath string) *Request {
	c.modifyLock.RLock()
	addr := c.addr
	apiBase := c.apiBase
	headers := c.headers.Clone()
	c.modifyLock.RUnlock()

	req := &Request{
		Method:  strings.ToUpper(method),
		Params:  make(url.Values),
		Headers: headers,
	}

	p, err := url.Parse(requestPath)
	if err == nil && p.IsAbs() {
		req.URL = &url.URL{
			User:   p.User,
			Scheme: p.Scheme,
			Host:   p.Host,
		}
		setEscapedPath(req.URL, collapseSlashes(p.EscapedPath()))
		req.Params = p.Query()
		return req
	}

	rawPath := requestPath
	if err == nil {
		rawPath = p.EscapedPath()
		req.Params = p.Query()
	}
	req.URL = &url.URL{
		User:   addr.User,
		Scheme: addr.Scheme,
		Host:   addr.Host,
	}
	setEscapedPath(req.URL, JoinPath(addr.EscapedPath(), apiBase, rawPath))
	return req
}

// setEscapedPath keeps escaped separators such as %2F intact on the wire.
func setEscapedPath(u *url.URL, escaped string) {
	unescaped, err := url.PathUnescape(escaped)
	if err != nil {
		u.Path = escaped
		return
	}
	u.Path = unescaped
	if unescaped != escaped {
		u.RawPath = escaped
	}
}

// RawRequestWithContext performs the raw request given. This request may be
// against any path. It will return a *ResponseError for any non-2xx status
// along with the response, so callers can still read the body.
func (c *Client) RawRequestWithContext(ctx context.Context, r *Request) (*Response, error) {
	c.modifyLock.RLock()
	transport := c.transport
	logger := c.logger
	sink := c.metrics
	disableRequestID := c.config.DisableRequestID
	c.modifyLock.RUnlock()

	c.config.modifyLock.RLock()
	limiter := c.config.Limiter
	c.config.modifyLock.RUnlock()

	if ctx == nil {
		ctx = context.Background()
	}

	if limiter != nil {
		if err := limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("rate limiter: %w", err)
		}
	}

	if !disableRequestID && r.RequestID == "" {
		id, err := uuid.GenerateUUID()
		if err != nil {
			return nil, fmt.Errorf("failed to generate request id: %w", err)
		}
		r.RequestID = id
	}

	if err := c.credentials.Apply(r); err != nil {
		return nil, err
	}

	req, err := r.toRetryableHTTP()
	if err != nil {
		return nil, err
	}
	req = req.WithContext(ctx)

	logger.Trace("dispatching request", "method", r.Method, "url", r.URL.String(), "request_id", r.RequestID)

	start := time.Now()
	httpResp, err := transport.Do(req)
	sink.MeasureSinceWithLabels([]string{"billing", "request", "duration"}, start, requestLabels(r.Method, httpResp))
	sink.IncrCounterWithLabels([]string{"billing", "request"}, 1, requestLabels(r.Method, httpResp))

	if err != nil {
		if httpResp != nil && httpResp.Body != nil {
			httpResp.Body.Close()
		}
		logger.Debug("request failed", "method", r.Method, "url", r.URL.String(), "request_id", r.RequestID, "error", err)
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return &Response{Request: r, Err: err}, err
		}
		return &Response{Request: r, Err: err}, fmt.Errorf("error dispatching %s %s: %w", r.Method, r.URL.String(), err)
	}

	resp, err := newResponse(r, httpResp)
	if err != nil {
		return resp, err
	}

	logger.Debug("request completed", "method", r.Method, "url", r.URL.String(), "request_id", r.RequestID, "status", resp.StatusCode)

	if err := resp.Error(); err != nil {
		return resp, err
	}

	return resp, nil
}

func requestLabels(method string, resp *http.Response) []metricsutil.Label {
	status := "error"
	if resp != nil {
		status = fmt.Sprintf("%dxx", resp.StatusCode/100)
	}
	return []metricsutil.Label{
		{Name: "method", Value: method},
		{Name: "status", Value: status},
	}
}
