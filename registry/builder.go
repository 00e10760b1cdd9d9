package registry

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/gaborage/sdkcore/config"
	"github.com/gaborage/sdkcore/httpclient"
	"github.com/gaborage/sdkcore/identity"
	"github.com/gaborage/sdkcore/logger"
	"github.com/gaborage/sdkcore/middleware"
	"github.com/gaborage/sdkcore/resilience"
	"github.com/gaborage/sdkcore/telemetry"
)

// Builder configures one named client. Build validates the options before any
// transport is created.
type Builder struct {
	name        string
	opts        config.Options
	logger      logger.Logger
	tracking    *identity.Tracking
	listener    telemetry.Listener
	customizers []resilience.Customizer
	transport   http.RoundTripper
	monitor     *config.Monitor
	extra       []middleware.Middleware
	clientOpts  []httpclient.Option
	requestID   string
}

// NewBuilder starts a builder for the client registered under name.
func NewBuilder(name string, opts config.Options, log logger.Logger) *Builder {
	if log == nil {
		log = logger.Nop()
	}
	return &Builder{name: name, opts: opts, logger: log}
}

// WithSDKIdentity tracks requests as coming from id, with the source resolved from
// the running program.
func (b *Builder) WithSDKIdentity(id identity.SDKIdentity) *Builder {
	src, ok := identity.ResolveSource()
	t := identity.NewTracking(id, identity.DefaultRepositoryHost, src, ok)
	b.tracking = &t
	return b
}

// WithTracking sets precomputed tracking header values.
func (b *Builder) WithTracking(t identity.Tracking) *Builder {
	b.tracking = &t
	return b
}

// WithListener sets the telemetry listener. Defaults to telemetry.Noop.
func (b *Builder) WithListener(l telemetry.Listener) *Builder {
	b.listener = l
	return b
}

// WithResilience adds customizers applied after the default resilience stages.
func (b *Builder) WithResilience(customizers ...resilience.Customizer) *Builder {
	b.customizers = append(b.customizers, customizers...)
	return b
}

// WithTransport replaces the base transport. The caller keeps ownership of it.
func (b *Builder) WithTransport(rt http.RoundTripper) *Builder {
	b.transport = rt
	return b
}

// WithMonitor shares a monitor so options can be replaced while the client runs.
func (b *Builder) WithMonitor(m *config.Monitor) *Builder {
	b.monitor = m
	return b
}

// WithMiddleware adds middleware between resilience and tracking.
func (b *Builder) WithMiddleware(mws ...middleware.Middleware) *Builder {
	b.extra = append(b.extra, mws...)
	return b
}

// WithCoalescedGets shares concurrent identical GETs in the invoker.
func (b *Builder) WithCoalescedGets() *Builder {
	b.clientOpts = append(b.clientOpts, httpclient.WithCoalescedGets())
	return b
}

// WithRequestIDHeader changes the header carrying the request id.
func (b *Builder) WithRequestIDHeader(header string) *Builder {
	b.requestID = header
	return b
}

// Build validates the options and assembles the client.
func (b *Builder) Build() (*Client, error) {
	if strings.TrimSpace(b.name) == "" {
		return nil, errors.New("client name is required")
	}
	if b.opts == nil || b.opts.ClientSettings() == nil {
		return nil, config.NewMissingFieldError("options", "")
	}
	if err := config.Validate(b.opts); err != nil {
		return nil, fmt.Errorf("invalid options for client %s: %w", b.name, err)
	}

	settings := b.opts.ClientSettings()
	transportName := settings.HTTPClientName
	if transportName == "" {
		transportName = b.name
	}

	composer, err := resilience.NewComposer(transportName, resilience.FromOptions(settings.Resilience), b.logger, b.customizers...)
	if err != nil {
		return nil, err
	}

	monitor := b.monitor
	if monitor == nil {
		monitor = config.NewMonitor()
	}
	if err := monitor.Set(b.name, b.opts); err != nil {
		return nil, err
	}

	var tracking identity.Tracking
	if b.tracking != nil {
		tracking = *b.tracking
	} else {
		tracking = identity.DefaultTracking()
	}
	listener := b.listener
	if listener == nil {
		listener = telemetry.Noop{}
	}
	policy := telemetry.ParseFailurePolicy(settings.Telemetry.FailureHandlingOrDefault())

	base := b.transport
	owned := false
	if base == nil {
		base = http.DefaultTransport.(*http.Transport).Clone()
		owned = true
	}

	mws := []middleware.Middleware{
		middleware.Telemetry(listener, policy, b.logger, b.name),
		composer.Middleware(),
	}
	mws = append(mws, b.extra...)
	mws = append(mws,
		middleware.Tracking(tracking),
		middleware.Authentication(monitor, b.name),
		middleware.RequestID(b.requestID),
		middleware.CountAttempts(),
	)

	hc := &http.Client{Transport: middleware.Chain(base, mws...)}
	clientOpts := append([]httpclient.Option{httpclient.WithLogger(b.logger)}, b.clientOpts...)
	invoker, err := httpclient.New(hc, b.opts.GetBaseURL(), clientOpts...)
	if err != nil {
		return nil, err
	}

	b.logger.Debug().
		Str("client", b.name).
		Str("transport", transportName).
		Bool("resilience", composer.Settings().Enabled).
		Str("failure_handling", policy.String()).
		Msg("SDK client built")

	return &Client{
		name:       b.name,
		source:     monitor,
		httpClient: hc,
		invoker:    invoker,
		composer:   composer,
		base:       base,
		ownsBase:   owned,
	}, nil
}

// Client is one assembled named client.
type Client struct {
	name       string
	source     config.OptionsSource
	httpClient *http.Client
	invoker    *httpclient.Client
	composer   *resilience.Composer
	base       http.RoundTripper
	ownsBase   bool
}

// Name returns the registration name.
func (c *Client) Name() string { return c.name }

// Invoker returns the verb-shaped façade.
func (c *Client) Invoker() httpclient.Invoker { return c.invoker }

// HTTPClient returns the raw client for declarative proxies. Its transport carries
// the same pipeline as the invoker.
func (c *Client) HTTPClient() *http.Client { return c.httpClient }

// Options returns the options currently in effect.
func (c *Client) Options() config.Options {
	opts, _ := c.source.Current(c.name)
	return opts
}

// Resilience returns the client's resilience composer.
func (c *Client) Resilience() *resilience.Composer { return c.composer }

// Close releases idle connections of a transport the client created itself.
func (c *Client) Close() error {
	if c.ownsBase {
		if t, ok := c.base.(interface{ CloseIdleConnections() }); ok {
			t.CloseIdleConnections()
		}
	}
	return nil
}
