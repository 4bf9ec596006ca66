package opensandbox

import (
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/opensandbox/sdk-go/internal/env"
	"github.com/opensandbox/sdk-go/internal/transport"
)

// DefaultDomain is the service address used when none is configured. It
// matches a local single-node deployment.
const DefaultDomain = "localhost:8080"

// Config is the connection configuration of the client.
type Config struct {
	// Domain is the host[:port] of the OpenSandbox service. Optional;
	// falls back to OPENSANDBOX_DOMAIN, then DefaultDomain.
	Domain string

	// APIKey authenticates every request as X-API-Key. Optional; falls
	// back to OPENSANDBOX_API_KEY. Local deployments may run without one.
	APIKey string

	// RequestTimeout bounds each control-plane request. It does not bound
	// command execution streams; only the caller's context does. Optional.
	RequestTimeout time.Duration

	// Secure switches the endpoint scheme to https.
	Secure bool

	// RetryMax enables transport-level retries of idempotent failures
	// (connection errors, 5xx). 0 disables retries.
	RetryMax int

	// RuntimeDomain is the domain suffix for per-port sandbox hosts built
	// by GetHost. Optional; Domain is used when empty.
	RuntimeDomain string

	// HTTPClient overrides the underlying HTTP client. Optional.
	HTTPClient *http.Client

	// Logger receives SDK diagnostics. Optional; defaults to a no-op
	// logger, or a development logger when OPENSANDBOX_DEBUG is set.
	Logger *zap.Logger
}

// Client is the high-level OpenSandbox client.
type Client struct {
	config    *Config
	logger    *zap.Logger
	transport transport.Client
	api       controlAPI
}

// NewClient builds a client from config. A nil config selects defaults for
// everything, which targets a local anonymous deployment.
func NewClient(config *Config) (*Client, error) {
	cfg := Config{}
	if config != nil {
		cfg = *config
	}
	if cfg.Domain == "" {
		cfg.Domain = env.DomainFromEnvironment()
	}
	if cfg.Domain == "" {
		cfg.Domain = DefaultDomain
	}
	if cfg.APIKey == "" {
		cfg.APIKey = env.APIKeyFromEnvironment()
	}

	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
		if debug, ok := env.DebugFromEnvironment(); ok && debug {
			if dev, err := zap.NewDevelopment(); err == nil {
				logger = dev
			}
		}
	}

	var core transport.Client = http.DefaultClient
	if cfg.HTTPClient != nil {
		core = cfg.HTTPClient
	}
	interceptors := []transport.Interceptor{
		transport.NewAuthInterceptor(cfg.APIKey, userAgent),
		transport.NewDebugInterceptor(logger),
	}
	if cfg.RetryMax > 0 {
		interceptors = append(interceptors, transport.NewRetryInterceptor(transport.RetryConfig{
			RetryMax: cfg.RetryMax,
		}))
	}

	c := &Client{
		config:    &cfg,
		logger:    logger,
		transport: transport.NewClient(core, interceptors...),
	}
	c.api = newRESTAPI(c.endpointURL(), c.transport, cfg.RequestTimeout)
	return c, nil
}

// endpointURL is the base URL of the service, scheme included.
func (c *Client) endpointURL() string {
	scheme := "http"
	if c.config.Secure {
		scheme = "https"
	}
	return scheme + "://" + c.config.Domain
}

// Logger returns the diagnostics logger the client was built with.
func (c *Client) Logger() *zap.Logger {
	return c.logger
}
