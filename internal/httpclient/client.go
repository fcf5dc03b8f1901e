package httpclient

import (
	"net"
	"net/http"
	"time"

	"github.com/aashari/go-onemin-gateway/internal/utils"
)

// Options holds HTTP client configuration options
type Options struct {
	// Timeout bounds the whole exchange including the body. Zero leaves it
	// to per-request contexts, which streaming callers need.
	Timeout               time.Duration
	DialTimeout           time.Duration
	ResponseHeaderTimeout time.Duration
	UserAgent             string
	MaxIdleConnsPerHost   int
}

// Factory creates configured HTTP clients
type Factory struct {
	defaultOptions Options
}

// NewFactory creates a new HTTP client factory with default options
func NewFactory(defaultOptions Options) *Factory {
	if defaultOptions.DialTimeout == 0 {
		defaultOptions.DialTimeout = 10 * time.Second
	}
	if defaultOptions.UserAgent == "" {
		defaultOptions.UserAgent = utils.UserAgent
	}
	if defaultOptions.MaxIdleConnsPerHost == 0 {
		defaultOptions.MaxIdleConnsPerHost = 32
	}
	return &Factory{defaultOptions: defaultOptions}
}

// CreateClient creates a new HTTP client with the specified options, falling
// back to the factory defaults for unset fields.
func (f *Factory) CreateClient(options Options) *http.Client {
	if options.Timeout == 0 {
		options.Timeout = f.defaultOptions.Timeout
	}
	if options.DialTimeout == 0 {
		options.DialTimeout = f.defaultOptions.DialTimeout
	}
	if options.ResponseHeaderTimeout == 0 {
		options.ResponseHeaderTimeout = f.defaultOptions.ResponseHeaderTimeout
	}
	if options.UserAgent == "" {
		options.UserAgent = f.defaultOptions.UserAgent
	}
	if options.MaxIdleConnsPerHost == 0 {
		options.MaxIdleConnsPerHost = f.defaultOptions.MaxIdleConnsPerHost
	}

	transport := &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   options.DialTimeout,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		ForceAttemptHTTP2:     true,
		MaxIdleConns:          100,
		MaxIdleConnsPerHost:   options.MaxIdleConnsPerHost,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ResponseHeaderTimeout: options.ResponseHeaderTimeout,
		ExpectContinueTimeout: time.Second,
	}

	return &http.Client{
		Timeout:   options.Timeout,
		Transport: &userAgentTransport{base: transport, userAgent: options.UserAgent},
	}
}

// CreateDefaultClient creates a client with default options
func (f *Factory) CreateDefaultClient() *http.Client {
	return f.CreateClient(Options{})
}

// userAgentTransport sets User-Agent on requests that carry none.
type userAgentTransport struct {
	base      http.RoundTripper
	userAgent string
}

func (t *userAgentTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if req.Header.Get(utils.HeaderUserAgent) == "" {
		req = req.Clone(req.Context())
		req.Header.Set(utils.HeaderUserAgent, t.userAgent)
	}
	return t.base.RoundTrip(req)
}
