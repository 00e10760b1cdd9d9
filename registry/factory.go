package registry

import (
	"errors"
	"fmt"
	"slices"
	"sync"

	"github.com/gaborage/sdkcore/config"
	"github.com/gaborage/sdkcore/httpclient"
	"github.com/gaborage/sdkcore/identity"
	"github.com/gaborage/sdkcore/logger"
)

var (
	// ErrClientNotRegistered is returned for names the factory does not know.
	ErrClientNotRegistered = errors.New("client not registered")
	// ErrClientAlreadyRegistered is returned when a name is registered twice.
	ErrClientAlreadyRegistered = errors.New("client already registered")
)

// Configure adjusts a Builder before it is built.
type Configure func(*Builder)

// Factory owns several named clients and the monitor holding their live options.
type Factory struct {
	mu       sync.RWMutex
	logger   logger.Logger
	monitor  *config.Monitor
	tracking identity.Tracking
	defaults []Configure
	clients  map[string]*Client
}

// NewFactory creates a factory. The tracking values are resolved once here and shared
// by every client. defaults are applied to every builder before the per-registration
// configuration, so either may still replace the tracking values.
func NewFactory(log logger.Logger, defaults ...Configure) *Factory {
	if log == nil {
		log = logger.Nop()
	}
	return &Factory{
		logger:   log,
		monitor:  config.NewMonitor(),
		tracking: identity.DefaultTracking(),
		defaults: defaults,
		clients:  make(map[string]*Client),
	}
}

// Monitor returns the monitor shared by every client of the factory.
func (f *Factory) Monitor() *config.Monitor { return f.monitor }

// Tracking returns the tracking values shared by the factory's clients.
func (f *Factory) Tracking() identity.Tracking { return f.tracking }

// Register builds and stores a client under name.
func (f *Factory) Register(name string, opts config.Options, configure ...Configure) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if _, exists := f.clients[name]; exists {
		return fmt.Errorf("%w: %s", ErrClientAlreadyRegistered, name)
	}

	b := NewBuilder(name, opts, f.logger).WithMonitor(f.monitor).WithTracking(f.tracking)
	for _, fn := range f.defaults {
		fn(b)
	}
	for _, fn := range configure {
		fn(b)
	}
	client, err := b.Build()
	if err != nil {
		return err
	}
	f.clients[name] = client

	f.logger.Info().Str("client", name).Msg("SDK client registered")
	return nil
}

// RegisterFromLoader registers every client declared in the loader's configuration.
// Each failure is reported; valid clients are still registered.
func (f *Factory) RegisterFromLoader(l *config.Loader, configure ...Configure) error {
	var errs []error
	for _, name := range l.Names() {
		opts, err := l.Client(name)
		if err == nil {
			err = f.Register(name, opts, configure...)
		}
		if err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// WatchLoader pushes valid changes of the loader's file into the factory's clients.
func (f *Factory) WatchLoader(l *config.Loader) error {
	return l.Watch(f.monitor, f.logger)
}

// Get returns the client registered under name.
func (f *Factory) Get(name string) (*Client, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	c, ok := f.clients[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrClientNotRegistered, name)
	}
	return c, nil
}

// Invoker returns the invoker of the client registered under name.
func (f *Factory) Invoker(name string) (httpclient.Invoker, error) {
	c, err := f.Get(name)
	if err != nil {
		return nil, err
	}
	return c.Invoker(), nil
}

// Names returns the registered names in sorted order.
func (f *Factory) Names() []string {
	f.mu.RLock()
	names := make([]string, 0, len(f.clients))
	for n := range f.clients {
		names = append(names, n)
	}
	f.mu.RUnlock()
	slices.Sort(names)
	return names
}

// Reload replaces the live options of a registered client. Only values read per
// request, such as the API key, take effect; the transport is not rebuilt.
func (f *Factory) Reload(name string, opts config.Options) error {
	if _, err := f.Get(name); err != nil {
		return err
	}
	if err := f.monitor.Set(name, opts); err != nil {
		f.logger.Error().Err(err).Str("client", name).Msg("Client options reload rejected")
		return err
	}
	f.logger.Info().Str("client", name).Msg("Client options reloaded")
	return nil
}

// Close closes every client and empties the factory.
func (f *Factory) Close() error {
	f.mu.Lock()
	clients := f.clients
	f.clients = make(map[string]*Client)
	f.mu.Unlock()

	var errs []error
	for _, c := range clients {
		if err := c.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
